// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package sqlkit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/storekit/storekit/pkg/core/cerr"
	"github.com/storekit/storekit/pkg/core/repo"
	"github.com/storekit/storekit/pkg/core/txn"
	"github.com/storekit/storekit/pkg/sqlgen"
)

// queryer is satisfied by *sqlx.DB and *Conn; the repository resolves
// one of them per operation.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
}

// RowMapper converts the current row of a result set into an entity.
// Mappers must not advance the result set.
type RowMapper[T any] func(rows *sqlx.Rows) (*T, error)

// StructMapper returns a RowMapper which scans the row into T by
// column name using sqlx struct scanning (db tags).
func StructMapper[T any]() RowMapper[T] {
	return func(rows *sqlx.Rows) (*T, error) {
		var entity T
		if err := rows.StructScan(&entity); err != nil {
			return nil, cerr.Mapping(err)
		}
		return &entity, nil
	}
}

// statements caches the assembled SQL of one repository. Find-by-field
// statements are built lazily per column and memoized.
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
	if s.selectByID, err = sqlgen.SelectByID(sqlgen.Question, t); err != nil {
		return nil, err
	}
	if s.insert, err = sqlgen.Insert(sqlgen.Question, t, ""); err != nil {
		return nil, err
	}
	if s.updateByID, err = sqlgen.UpdateByID(sqlgen.Question, t); err != nil {
		return nil, err
	}
	if s.deleteByID, err = sqlgen.DeleteByID(sqlgen.Question, t); err != nil {
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
	q, err := sqlgen.SelectByField(sqlgen.Question, s.table, field)
	if err != nil {
		return "", err
	}
	s.byField[field] = q
	return q, nil
}

// Repository implements repo.Repository over a sqlx-wrapped
// database/sql driver. Generated keys are recovered through
// LastInsertId, so K must be int64 for entities with
// database-assigned keys; entities carrying their own keys may use
// any comparable K.
type Repository[T any, K comparable] struct {
	db     *sqlx.DB
	bound  queryer
	meta   repo.EntityMeta[T, K]
	mapper RowMapper[T]
	stmts  *statements
}

// NewRepository builds a repository over db for the entity described
// by meta, mapping rows with mapper.
func NewRepository[T any, K comparable](
	db *sqlx.DB,
	meta repo.EntityMeta[T, K],
	mapper RowMapper[T],
) (*Repository[T, K], error) {
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
	return &Repository[T, K]{db: db, meta: meta, mapper: mapper, stmts: stmts}, nil
}

// WithConn returns a copy of the repository which prefers conn over
// the pool whenever no ambient transaction is active, for explicitly
// transaction-scoped repository instances.
func (r *Repository[T, K]) WithConn(conn *Conn) *Repository[T, K] {
	rc := *r
	rc.bound = conn
	return &rc
}

// queryer resolves the statement target for one operation: the
// calling chain's transaction connection first, then the
// construction-time bound connection, then the pool.
func (r *Repository[T, K]) queryer(ctx context.Context) queryer {
	if conn, ok := txn.ActiveConn(ctx); ok {
		if c, ok := conn.(*Conn); ok {
			return c
		}
	}
	if r.bound != nil {
		return r.bound
	}
	return r.db
}

func (r *Repository[T, K]) FindByID(ctx context.Context, id K) (*T, error) {
	rows, err := r.queryer(ctx).QueryxContext(ctx, r.stmts.selectByID, id)
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
	rows, err := r.queryer(ctx).QueryxContext(ctx, query, value)
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
	res, err := q.ExecContext(ctx, r.stmts.insert, r.meta.InsertValues(entity)...)
	if err != nil {
		return nil, cerr.Backend(err)
	}
	key, ok := r.meta.ID(entity)
	if !ok {
		lastID, err := res.LastInsertId()
		if err != nil {
			return nil, cerr.Backend(fmt.Errorf("last insert id: %w", err))
		}
		if key, ok = any(lastID).(K); !ok {
			return nil, cerr.Backend(fmt.Errorf(
				"cannot derive a %T key from generated id %d", key, lastID,
			))
		}
	}
	// Read back on the same resolution path, so a row inserted
	// inside a transaction is fetched through that transaction's
	// connection.
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
	if _, err := r.queryer(ctx).ExecContext(ctx, r.stmts.updateByID, args...); err != nil {
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
	res, err := r.queryer(ctx).ExecContext(ctx, r.stmts.deleteByID, id)
	if err != nil {
		return false, cerr.Backend(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, cerr.Backend(err)
	}
	return n > 0, nil
}
