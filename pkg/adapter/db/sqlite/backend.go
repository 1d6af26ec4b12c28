// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/storekit/storekit/pkg/adapter/db/sqlkit"
	"github.com/storekit/storekit/pkg/core/log"
	"github.com/storekit/storekit/pkg/core/txn"
)

// Backend implements txn.Backend with sqlite's transaction-control
// dialect.
type Backend struct {
	db *sqlx.DB
}

func (b *Backend) Name() string { return "sqlite" }

func (b *Backend) Acquire(ctx context.Context) (txn.Conn, error) {
	conn, err := b.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	return &sqlkit.Conn{Conn: conn}, nil
}

// beginSQL selects the BEGIN variant for the requested isolation.
// sqlite serializes writers regardless; the variants only control
// when the write lock is taken.
func beginSQL(iso txn.Isolation) string {
	switch iso {
	case txn.RepeatableRead:
		return "BEGIN IMMEDIATE"
	case txn.Serializable:
		return "BEGIN EXCLUSIVE"
	default:
		return "BEGIN DEFERRED"
	}
}

func (b *Backend) Begin(ctx context.Context, conn txn.Conn, def txn.Definition) error {
	c := conn.(*sqlkit.Conn)
	if def.ReadOnly {
		// Best-effort: older sqlite builds lack query_only.
		if _, err := c.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
			log.Warn(ctx, "read-only pragma not applied", log.Err("error", err))
		} else {
			c.ReadOnly = true
		}
	}
	busyMillis := int64(1000)
	if def.Timeout > 0 {
		busyMillis = def.Timeout.Milliseconds()
	}
	busy := fmt.Sprintf("PRAGMA busy_timeout = %d", busyMillis)
	if _, err := c.ExecContext(ctx, busy); err != nil {
		log.Warn(ctx, "busy timeout pragma not applied",
			slog.Int64("timeout_ms", busyMillis), log.Err("error", err))
	}
	_, err := c.ExecContext(ctx, beginSQL(def.Isolation))
	return err
}

func (b *Backend) Commit(ctx context.Context, conn txn.Conn) error {
	c := conn.(*sqlkit.Conn)
	if _, err := c.ExecContext(ctx, "COMMIT"); err != nil {
		return err
	}
	b.resetReadOnly(ctx, c)
	return nil
}

func (b *Backend) Rollback(ctx context.Context, conn txn.Conn) error {
	c := conn.(*sqlkit.Conn)
	if _, err := c.ExecContext(ctx, "ROLLBACK"); err != nil {
		return err
	}
	b.resetReadOnly(ctx, c)
	return nil
}

// resetReadOnly reverts the query_only pragma before the connection
// returns to the pool, so later checkouts are writable again.
func (b *Backend) resetReadOnly(ctx context.Context, c *sqlkit.Conn) {
	if !c.ReadOnly {
		return
	}
	if _, err := c.ExecContext(ctx, "PRAGMA query_only = OFF"); err != nil {
		log.Warn(ctx, "read-only pragma not reverted", log.Err("error", err))
		return
	}
	c.ReadOnly = false
}

func (b *Backend) Savepoint(ctx context.Context, conn txn.Conn, name string) error {
	_, err := conn.(*sqlkit.Conn).ExecContext(ctx, "SAVEPOINT "+name)
	return err
}

func (b *Backend) ReleaseSavepoint(ctx context.Context, conn txn.Conn, name string) error {
	_, err := conn.(*sqlkit.Conn).ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

func (b *Backend) RollbackToSavepoint(ctx context.Context, conn txn.Conn, name string) error {
	_, err := conn.(*sqlkit.Conn).ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name)
	return err
}
