// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekit/storekit/pkg/adapter/db/sqlite"
	"github.com/storekit/storekit/pkg/adapter/db/sqlkit"
	"github.com/storekit/storekit/pkg/core/cerr"
	"github.com/storekit/storekit/pkg/core/model"
	"github.com/storekit/storekit/pkg/core/txn"
)

var errIntentional = errors.New("intentional failure")

// newTestDB opens a named in-memory database which is private to one
// test, creates the users table, and returns the pool together with a
// users repository and a transaction manager over it.
func newTestDB(t *testing.T) (
	*sqlite.Pool,
	*txn.Manager,
	*sqlkit.Repository[model.User, int64],
) {
	t.Helper()
	ctx := context.Background()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	p, err := sqlite.NewPool(ctx, dsn, 1)
	require.NoError(t, err, "failed to open in-memory database")
	t.Cleanup(func() {
		assert.NoError(t, p.Close(), "failed to close the pool")
	})
	_, err = p.DB.ExecContext(ctx, `CREATE TABLE users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE
)`)
	require.NoError(t, err, "failed to create the users table")
	users, err := sqlite.NewRepository(p, model.UserMeta{}, nil)
	require.NoError(t, err)
	return p, p.Manager(), users
}

func TestInsertAssignsGeneratedKey(t *testing.T) {
	ctx := context.Background()
	_, mgr, users := newTestDB(t)
	created, err := txn.Execute(ctx, mgr, txn.DefaultDefinition(),
		func(ctx context.Context) (*model.User, error) {
			return users.Insert(ctx, &model.User{Email: "a@x", Active: true})
		},
	)
	require.NoError(t, err)
	assert.NotZero(t, created.ID, "the database must assign the key")
	assert.Equal(t, "a@x", created.Email)
	assert.True(t, created.Active)
}

func TestFindByIDAbsentReturnsNil(t *testing.T) {
	ctx := context.Background()
	_, _, users := newTestDB(t)
	u, err := users.FindByID(ctx, 4242)
	require.NoError(t, err, "absence is not an error")
	assert.Nil(t, u)
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	_, mgr, users := newTestDB(t)
	err := mgr.Execute(ctx, func(ctx context.Context) error {
		created, err := users.Insert(ctx, &model.User{Email: "a@x", Active: true})
		if err != nil {
			return err
		}
		created.Active = false
		updated, err := users.Update(ctx, created)
		if err != nil {
			return err
		}
		assert.False(t, updated.Active)
		assert.Equal(t, created.ID, updated.ID)

		deleted, err := users.DeleteByID(ctx, created.ID)
		if err != nil {
			return err
		}
		assert.True(t, deleted)

		deleted, err = users.DeleteByID(ctx, created.ID)
		if err != nil {
			return err
		}
		assert.False(t, deleted, "second delete affects no rows")
		return nil
	})
	require.NoError(t, err)
}

func TestUpdateWithoutKeyFails(t *testing.T) {
	ctx := context.Background()
	_, _, users := newTestDB(t)
	_, err := users.Update(ctx, &model.User{Email: "a@x"})
	assert.True(t, cerr.IsBackend(err), "expected a backend error: %v", err)
}

func TestWorkErrorRollsBackInsert(t *testing.T) {
	ctx := context.Background()
	_, mgr, users := newTestDB(t)
	err := mgr.Execute(ctx, func(ctx context.Context) error {
		created, err := users.Insert(ctx, &model.User{Email: "a@x", Active: true})
		if err != nil {
			return err
		}
		// The row is visible inside its own transaction.
		inside, err := users.FindByID(ctx, created.ID)
		if err != nil {
			return err
		}
		assert.NotNil(t, inside)
		return errIntentional
	})
	assert.ErrorIs(t, err, errIntentional)

	found, err := users.FindByField(ctx, "email", "a@x")
	require.NoError(t, err)
	assert.Empty(t, found, "the insert must have been rolled back")
}

func TestNestedRollbackKeepsOuterEffects(t *testing.T) {
	ctx := context.Background()
	_, mgr, users := newTestDB(t)
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

func TestRequiredJoinsShareOneTransaction(t *testing.T) {
	ctx := context.Background()
	_, mgr, users := newTestDB(t)
	err := mgr.Execute(ctx, func(ctx context.Context) error {
		if _, err := users.Insert(ctx, &model.User{Email: "a@x", Active: true}); err != nil {
			return err
		}
		// The joined level fails; the whole transaction unwinds.
		return mgr.Execute(ctx, func(ctx context.Context) error {
			if _, err := users.Insert(ctx, &model.User{Email: "b@x", Active: true}); err != nil {
				return err
			}
			return errIntentional
		})
	})
	assert.ErrorIs(t, err, errIntentional)
	for _, email := range []string{"a@x", "b@x"} {
		found, err := users.FindByField(ctx, "email", email)
		require.NoError(t, err)
		assert.Empty(t, found, "no %s row must survive", email)
	}
}

func TestNeverRejectedInsideTransaction(t *testing.T) {
	ctx := context.Background()
	_, mgr, users := newTestDB(t)
	never := txn.Definition{Propagation: txn.Never}
	err := mgr.Execute(ctx, func(ctx context.Context) error {
		if _, err := users.Insert(ctx, &model.User{Email: "a@x", Active: true}); err != nil {
			return err
		}
		err := mgr.ExecuteWith(ctx, never, func(context.Context) error {
			t.Error("never-propagation work must not run")
			return nil
		})
		assert.True(t, cerr.IsBackend(err), "expected a backend error: %v", err)
		return nil
	})
	require.NoError(t, err)
	// The rejection must not have poisoned the outer transaction.
	found, err := users.FindByField(ctx, "email", "a@x")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestMarkRollbackOnlyDiscardsChain(t *testing.T) {
	ctx := context.Background()
	_, mgr, users := newTestDB(t)
	err := mgr.Execute(ctx, func(ctx context.Context) error {
		if _, err := users.Insert(ctx, &model.User{Email: "a@x", Active: true}); err != nil {
			return err
		}
		require.True(t, txn.MarkRollbackOnly(ctx))
		return nil
	})
	assert.ErrorIs(t, err, txn.ErrRollbackOnly)
	found, err := users.FindByField(ctx, "email", "a@x")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestReadOnlyTransactionRejectsWrites(t *testing.T) {
	ctx := context.Background()
	_, mgr, users := newTestDB(t)
	ro := txn.Definition{Propagation: txn.Required, ReadOnly: true}
	err := mgr.ExecuteWith(ctx, ro, func(ctx context.Context) error {
		_, err := users.Insert(ctx, &model.User{Email: "a@x", Active: true})
		return err
	})
	assert.True(t, cerr.IsBackend(err), "query_only must reject the write: %v", err)

	// The pooled connection must be writable again afterwards.
	err = mgr.Execute(ctx, func(ctx context.Context) error {
		_, err := users.Insert(ctx, &model.User{Email: "a@x", Active: true})
		return err
	})
	require.NoError(t, err)
}

func TestSupportsRunsWithoutTransaction(t *testing.T) {
	ctx := context.Background()
	_, mgr, users := newTestDB(t)
	def := txn.Definition{Propagation: txn.Supports, ReadOnly: true}
	found, err := txn.Execute(ctx, mgr, def,
		func(ctx context.Context) ([]model.User, error) {
			assert.False(t, txn.InTransaction(ctx))
			return users.FindByField(ctx, "email", "a@x")
		},
	)
	require.NoError(t, err)
	assert.Empty(t, found)
}
