// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package postgres adapts the postgres wire protocol (pgx/v5) to the
// transactional execution engine. Isolation, read-only mode, and the
// statement timeout are all expressed as statements executed right
// after BEGIN on the pinned connection.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storekit/storekit/pkg/core/txn"
)

// Pool wraps a pgx connection pool.
type Pool struct {
	*pgxpool.Pool
}

// NewPool opens a postgres pool by connection URL and verifies the
// server is reachable. maxConns limits the pool size when positive.
func NewPool(ctx context.Context, url string, maxConns int32) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parsing pool config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("testing connection: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

// Backend returns the txn.Backend over this pool.
func (p *Pool) Backend() *Backend {
	return &Backend{pool: p.Pool}
}

// Manager returns a transaction manager over this pool.
func (p *Pool) Manager() *txn.Manager {
	return txn.NewManager(p.Backend())
}

// Conn is a connection pinned out of the pool for the duration of one
// transaction. It implements txn.Conn.
type Conn struct {
	conn *pgxpool.Conn
}

func (c *Conn) Close() error {
	c.conn.Release()
	return nil
}
