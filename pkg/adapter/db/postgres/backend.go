// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storekit/storekit/pkg/core/log"
	"github.com/storekit/storekit/pkg/core/txn"
)

// Backend implements txn.Backend with postgres' transaction-control
// dialect.
type Backend struct {
	pool *pgxpool.Pool
}

func (b *Backend) Name() string { return "postgres" }

func (b *Backend) Acquire(ctx context.Context) (txn.Conn, error) {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Conn{conn: conn}, nil
}

func isolationSQL(iso txn.Isolation) string {
	switch iso {
	case txn.ReadCommitted:
		return "SET TRANSACTION ISOLATION LEVEL READ COMMITTED"
	case txn.RepeatableRead:
		return "SET TRANSACTION ISOLATION LEVEL REPEATABLE READ"
	case txn.Serializable:
		return "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE"
	}
	return ""
}

func (b *Backend) Begin(ctx context.Context, conn txn.Conn, def txn.Definition) error {
	c := conn.(*Conn).conn
	if _, err := c.Exec(ctx, "BEGIN"); err != nil {
		return err
	}
	if iso := isolationSQL(def.Isolation); iso != "" {
		if _, err := c.Exec(ctx, iso); err != nil {
			return err
		}
	}
	if def.ReadOnly {
		if _, err := c.Exec(ctx, "SET TRANSACTION READ ONLY"); err != nil {
			log.Warn(ctx, "read-only mode not applied", log.Err("error", err))
		}
	}
	if def.Timeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL statement_timeout = %d", def.Timeout.Milliseconds())
		if _, err := c.Exec(ctx, stmt); err != nil {
			log.Warn(ctx, "statement timeout not applied",
				slog.Int64("timeout_ms", def.Timeout.Milliseconds()),
				log.Err("error", err))
		}
	}
	return nil
}

func (b *Backend) Commit(ctx context.Context, conn txn.Conn) error {
	_, err := conn.(*Conn).conn.Exec(ctx, "COMMIT")
	return err
}

func (b *Backend) Rollback(ctx context.Context, conn txn.Conn) error {
	_, err := conn.(*Conn).conn.Exec(ctx, "ROLLBACK")
	return err
}

func (b *Backend) Savepoint(ctx context.Context, conn txn.Conn, name string) error {
	_, err := conn.(*Conn).conn.Exec(ctx, "SAVEPOINT "+name)
	return err
}

func (b *Backend) ReleaseSavepoint(ctx context.Context, conn txn.Conn, name string) error {
	_, err := conn.(*Conn).conn.Exec(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

func (b *Backend) RollbackToSavepoint(ctx context.Context, conn txn.Conn, name string) error {
	_, err := conn.(*Conn).conn.Exec(ctx, "ROLLBACK TO SAVEPOINT "+name)
	return err
}
