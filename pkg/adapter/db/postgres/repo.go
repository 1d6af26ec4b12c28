// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/storekit/storekit/pkg/core/cerr"
	"github.com/storekit/storekit/pkg/core/repo"
	"github.com/storekit/storekit/pkg/core/txn"
	"github.com/storekit/storekit/pkg/sqlgen"
)

// queryer is satisfied by *pgxpool.Pool, *pgxpool.Conn, and the
// pinned Conn of this package.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// RowMapper converts the current row of a pgx result set into an
// entity. Mappers must not advance the result set.
type RowMapper[T any] func(rows pgx.Rows) (*T, error)

// StructMapper returns a RowMapper which scans the row into T by
// column name using scany struct scanning (db tags).
func StructMapper[T any]() RowMapper[T] {
	return func(rows pgx.Rows) (*T, error) {
		var entity T
		if err := pgxscan.ScanRow(&entity, rows); err != nil {
			return nil, cerr.Mapping(err)
		}
		return &entity, nil
	}
}

type statements struct {
	table      sqlgen.Table
	selectByID string
	insert     string
	updateByID string
	deleteByID string

	mu      sync.Mutex
	byField map[string]string
}

func newStatements(t sqlgen.Table) (*statements, error) {
	s := &statements{table: t, byField: map[string]string{}}
	var err error
	if s.selectByID, err = sqlgen.SelectByID(sqlgen.Dollar, t); err != nil {
		return nil, err
	}
	if s.insert, err = sqlgen.Insert(sqlgen.Dollar, t, t.IDColumn); err != nil {
		return nil, err
	}
	if s.updateByID, err = sqlgen.UpdateByID(sqlgen.Dollar, t); err != nil {
		return nil, err
	}
	if s.deleteByID, err = sqlgen.DeleteByID(sqlgen.Dollar, t); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *statements) selectByField(field string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.byField[field]; ok {
		return q, nil
	}
	q, err := sqlgen.SelectByField(sqlgen.Dollar, s.table, field)
	if err != nil {
		return "", err
	}
	s.byField[field] = q
	return q, nil
}

// Repository implements repo.Repository over pgx. Generated keys are
// recovered with INSERT ... RETURNING, so any key type pgx can scan
// works.
type Repository[T any, K comparable] struct {
	pool   *Pool
	bound  queryer
	meta   repo.EntityMeta[T, K]
	mapper RowMapper[T]
	stmts  *statements
}

// NewRepository builds a repository over p for the entity described
// by meta. A nil mapper selects struct scanning by db tags.
func NewRepository[T any, K comparable](
	p *Pool,
	meta repo.EntityMeta[T, K],
	mapper RowMapper[T],
) (*Repository[T, K], error) {
	if mapper == nil {
		mapper = StructMapper[T]()
	}
	stmts, err := newStatements(sqlgen.Table{
		Name:          meta.Table(),
		IDColumn:      meta.IDColumn(),
		SelectColumns: meta.SelectColumns(),
		InsertColumns: meta.InsertColumns(),
		UpdateColumns: meta.UpdateColumns(),
	})
	if err != nil {
		return nil, cerr.Backend(fmt.Errorf("building statements for %s: %w", meta.Table(), err))
	}
	return &Repository[T, K]{pool: p, meta: meta, mapper: mapper, stmts: stmts}, nil
}

// WithConn returns a copy of the repository which prefers conn over
// the pool whenever no ambient transaction is active.
func (r *Repository[T, K]) WithConn(conn *Conn) *Repository[T, K] {
	rc := *r
	rc.bound = conn.conn
	return &rc
}

func (r *Repository[T, K]) queryer(ctx context.Context) queryer {
	if conn, ok := txn.ActiveConn(ctx); ok {
		if c, ok := conn.(*Conn); ok {
			return c.conn
		}
	}
	if r.bound != nil {
		return r.bound
	}
	return r.pool.Pool
}

func (r *Repository[T, K]) FindByID(ctx context.Context, id K) (*T, error) {
	rows, err := r.queryer(ctx).Query(ctx, r.stmts.selectByID, id)
	if err != nil {
		return nil, cerr.Backend(err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, cerr.Backend(err)
		}
		return nil, nil
	}
	return r.mapper(rows)
}

func (r *Repository[T, K]) FindByField(ctx context.Context, field string, value any) ([]T, error) {
	query, err := r.stmts.selectByField(field)
	if err != nil {
		return nil, cerr.Backend(err)
	}
	rows, err := r.queryer(ctx).Query(ctx, query, value)
	if err != nil {
		return nil, cerr.Backend(err)
	}
	defer rows.Close()
	var entities []T
	for rows.Next() {
		entity, err := r.mapper(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *entity)
	}
	if err := rows.Err(); err != nil {
		return nil, cerr.Backend(err)
	}
	return entities, nil
}

func (r *Repository[T, K]) Insert(ctx context.Context, entity *T) (*T, error) {
	q := r.queryer(ctx)
	rows, err := q.Query(ctx, r.stmts.insert, r.meta.InsertValues(entity)...)
	if err != nil {
		return nil, cerr.Backend(err)
	}
	var key K
	if !rows.Next() {
		rows.Close()
		err := rows.Err()
		if err == nil {
			err = errors.New("no row returned from INSERT ... RETURNING")
		}
		return nil, cerr.Backend(err)
	}
	if err := rows.Scan(&key); err != nil {
		rows.Close()
		return nil, cerr.Backend(fmt.Errorf("scanning returned key: %w", err))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, cerr.Backend(err)
	}
	stored, err := r.FindByID(ctx, key)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, cerr.NotFound(errors.New("entity not readable after insert"))
	}
	return stored, nil
}

func (r *Repository[T, K]) Update(ctx context.Context, entity *T) (*T, error) {
	key, ok := r.meta.ID(entity)
	if !ok {
		return nil, cerr.Backend(errors.New("entity carries no key"))
	}
	args := append(r.meta.UpdateValues(entity), key)
	if _, err := r.queryer(ctx).Exec(ctx, r.stmts.updateByID, args...); err != nil {
		return nil, cerr.Backend(err)
	}
	stored, err := r.FindByID(ctx, key)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, cerr.NotFound(fmt.Errorf("no %s row for updated key", r.meta.Table()))
	}
	return stored, nil
}

func (r *Repository[T, K]) DeleteByID(ctx context.Context, id K) (bool, error) {
	tag, err := r.queryer(ctx).Exec(ctx, r.stmts.deleteByID, id)
	if err != nil {
		return false, cerr.Backend(err)
	}
	return tag.RowsAffected() > 0, nil
}
