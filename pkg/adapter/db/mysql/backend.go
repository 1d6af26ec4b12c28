// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mysql

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/jmoiron/sqlx"

	"github.com/storekit/storekit/pkg/adapter/db/sqlkit"
	"github.com/storekit/storekit/pkg/core/log"
	"github.com/storekit/storekit/pkg/core/txn"
)

// Backend implements txn.Backend with mysql's transaction-control
// dialect.
type Backend struct {
	db *sqlx.DB
}

func (b *Backend) Name() string { return "mysql" }

func (b *Backend) Acquire(ctx context.Context) (txn.Conn, error) {
	conn, err := b.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	return &sqlkit.Conn{Conn: conn}, nil
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
	c := conn.(*sqlkit.Conn)
	if iso := isolationSQL(def.Isolation); iso != "" {
		// SET TRANSACTION applies to the next transaction only,
		// so nothing needs to be reverted afterwards.
		if _, err := c.ExecContext(ctx, iso); err != nil {
			return err
		}
	}
	if def.ReadOnly {
		if _, err := c.ExecContext(ctx, "SET TRANSACTION READ ONLY"); err != nil {
			log.Warn(ctx, "read-only mode not applied", log.Err("error", err))
		}
	}
	if def.Timeout > 0 {
		secs := int64(math.Ceil(def.Timeout.Seconds()))
		if secs < 1 {
			secs = 1
		}
		stmt := fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", secs)
		if _, err := c.ExecContext(ctx, stmt); err != nil {
			log.Warn(ctx, "lock-wait timeout not applied",
				slog.Int64("timeout_s", secs), log.Err("error", err))
		}
	}
	_, err := c.ExecContext(ctx, "START TRANSACTION")
	return err
}

func (b *Backend) Commit(ctx context.Context, conn txn.Conn) error {
	_, err := conn.(*sqlkit.Conn).ExecContext(ctx, "COMMIT")
	return err
}

func (b *Backend) Rollback(ctx context.Context, conn txn.Conn) error {
	_, err := conn.(*sqlkit.Conn).ExecContext(ctx, "ROLLBACK")
	return err
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
