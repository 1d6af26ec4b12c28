// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mysql_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekit/storekit/pkg/adapter/db/mysql"
	"github.com/storekit/storekit/pkg/adapter/db/sqlkit"
	"github.com/storekit/storekit/pkg/core/model"
	"github.com/storekit/storekit/pkg/core/txn"
)

var errIntentional = errors.New("intentional failure")

// newTestDB connects to the mysql server named by the MYSQL_TEST_DSN
// environment variable, like
// user:pass@tcp(127.0.0.1:3306)/storekit_test
// and prepares an empty users table in it. Tests are skipped when the
// variable is not set.
func newTestDB(t *testing.T) (
	*txn.Manager,
	*sqlkit.Repository[model.User, int64],
) {
	t.Helper()
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN is not set; skipping mysql tests")
	}
	ctx := context.Background()
	p, err := mysql.NewPool(ctx, dsn, 4)
	require.NoError(t, err, "cannot connect to test database")
	t.Cleanup(func() {
		assert.NoError(t, p.Close(), "failed to close the pool")
	})
	_, err = p.DB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS users (
    id BIGINT PRIMARY KEY AUTO_INCREMENT,
    email VARCHAR(254) NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE
)`)
	require.NoError(t, err, "failed to create the users table")
	_, err = p.DB.ExecContext(ctx, "TRUNCATE TABLE users")
	require.NoError(t, err, "failed to empty the users table")
	users, err := mysql.NewRepository(p, model.UserMeta{}, nil)
	require.NoError(t, err)
	return p.Manager(), users
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	mgr, users := newTestDB(t)

	created, err := txn.Execute(ctx, mgr, txn.DefaultDefinition(),
		func(ctx context.Context) (*model.User, error) {
			return users.Insert(ctx, &model.User{Email: "a@x", Active: true})
		},
	)
	require.NoError(t, err)
	assert.NotZero(t, created.ID, "the database must assign the key")

	created.Active = false
	updated, err := txn.Execute(ctx, mgr, txn.DefaultDefinition(),
		func(ctx context.Context) (*model.User, error) {
			return users.Update(ctx, created)
		},
	)
	require.NoError(t, err)
	assert.False(t, updated.Active)

	absent, err := users.FindByID(ctx, created.ID+1)
	require.NoError(t, err, "absence is not an error")
	assert.Nil(t, absent)

	deleted, err := txn.Execute(ctx, mgr, txn.DefaultDefinition(),
		func(ctx context.Context) (bool, error) {
			return users.DeleteByID(ctx, created.ID)
		},
	)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestWorkErrorRollsBackInsert(t *testing.T) {
	ctx := context.Background()
	mgr, users := newTestDB(t)
	err := mgr.Execute(ctx, func(ctx context.Context) error {
		if _, err := users.Insert(ctx, &model.User{Email: "a@x", Active: true}); err != nil {
			return err
		}
		return errIntentional
	})
	assert.ErrorIs(t, err, errIntentional)

	found, err := users.FindByField(ctx, "email", "a@x")
	require.NoError(t, err)
	assert.Empty(t, found, "the insert must have been rolled back")
}

func TestNestedRollbackKeepsOuterEffects(t *testing.T) {
	ctx := context.Background()
	mgr, users := newTestDB(t)
	nested := txn.Definition{Propagation: txn.Nested}
	err := mgr.Execute(ctx, func(ctx context.Context) error {
		if _, err := users.Insert(ctx, &model.User{Email: "outer@x", Active: true}); err != nil {
			return err
		}
		inner := mgr.ExecuteWith(ctx, nested, func(ctx context.Context) error {
			if _, err := users.Insert(ctx, &model.User{Email: "inner@x", Active: true}); err != nil {
				return err
			}
			return errIntentional
		})
		if !errors.Is(inner, errIntentional) {
			return fmt.Errorf("unexpected inner error: %w", inner)
		}
		return nil
	})
	require.NoError(t, err)

	outer, err := users.FindByField(ctx, "email", "outer@x")
	require.NoError(t, err)
	assert.Len(t, outer, 1, "the outer insert must have been committed")

	inner, err := users.FindByField(ctx, "email", "inner@x")
	require.NoError(t, err)
	assert.Empty(t, inner, "the inner insert must have been rolled back")
}
