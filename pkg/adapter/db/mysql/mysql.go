// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package mysql adapts the mysql wire protocol (go-sql-driver/mysql
// through sqlx) to the transactional execution engine. Isolation and
// read-only mode are requested with SET TRANSACTION statements
// preceding START TRANSACTION; the lock-wait timeout is a session
// variable.
package mysql

import (
	"context"
	"fmt"

	_ "github.com/go-sql-driver/mysql" // mysql database/sql driver
	"github.com/jmoiron/sqlx"

	"github.com/storekit/storekit/pkg/adapter/db/sqlkit"
	"github.com/storekit/storekit/pkg/core/repo"
	"github.com/storekit/storekit/pkg/core/txn"
)

// Pool wraps the mysql connection pool.
type Pool struct {
	DB *sqlx.DB
}

// NewPool opens a mysql database by DSN and verifies it is reachable.
// maxConns limits the pool size when positive.
func NewPool(ctx context.Context, dsn string, maxConns int) (*Pool, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening mysql db: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("testing connection: %w", err)
	}
	return &Pool{DB: db}, nil
}

func (p *Pool) Close() error {
	return p.DB.Close()
}

// Backend returns the txn.Backend over this pool.
func (p *Pool) Backend() *Backend {
	return &Backend{db: p.DB}
}

// Manager returns a transaction manager over this pool.
func (p *Pool) Manager() *txn.Manager {
	return txn.NewManager(p.Backend())
}

// NewRepository builds a repository for the entity described by meta.
// A nil mapper selects struct scanning by db tags.
func NewRepository[T any, K comparable](
	p *Pool,
	meta repo.EntityMeta[T, K],
	mapper sqlkit.RowMapper[T],
) (*sqlkit.Repository[T, K], error) {
	if mapper == nil {
		mapper = sqlkit.StructMapper[T]()
	}
	return sqlkit.NewRepository(p.DB, meta, mapper)
}
