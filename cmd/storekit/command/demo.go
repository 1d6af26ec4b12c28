// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/storekit/storekit/pkg/adapter/db/sqlite"
	"github.com/storekit/storekit/pkg/core/log"
	"github.com/storekit/storekit/pkg/core/model"
	"github.com/storekit/storekit/pkg/core/repo"
	"github.com/storekit/storekit/pkg/core/txn"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Walk through the propagation semantics on in-memory sqlite",
	RunE:  runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

var errDemo = errors.New("demo: intentional failure")

// runDemo exercises the propagation decision table against a
// throwaway in-memory database, one scenario per section:
//  1. Required with no active transaction starts and commits one.
//  2. A work error rolls the whole transaction back.
//  3. Nested keeps outer effects while rolling inner ones back.
//  4. Never inside an active transaction is rejected.
//  5. A rollback-only mark discards an otherwise successful chain.
func runDemo(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	p, err := sqlite.NewPool(ctx, "file::memory:?cache=shared", 1)
	if err != nil {
		return fmt.Errorf("opening in-memory sqlite: %w", err)
	}
	defer p.Close()
	if _, err := p.DB.ExecContext(ctx, `CREATE TABLE users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE
)`); err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}
	users, err := sqlite.NewRepository(p, model.UserMeta{}, nil)
	if err != nil {
		return fmt.Errorf("creating users repository: %w", err)
	}
	mgr := p.Manager()

	for _, sec := range []struct {
		title string
		run   func(context.Context, *txn.Manager, repo.Repository[model.User, int64]) error
	}{
		{"commit", demoCommit},
		{"rollback on error", demoRollback},
		{"nested savepoint", demoNested},
		{"never rejection", demoNever},
		{"rollback-only mark", demoRollbackOnly},
	} {
		log.Info(ctx, "--- "+sec.title+" ---")
		if err := sec.run(ctx, mgr, users); err != nil {
			return fmt.Errorf("%s: %w", sec.title, err)
		}
	}
	return nil
}

func demoCommit(
	ctx context.Context, mgr *txn.Manager, users repo.Repository[model.User, int64],
) error {
	err := mgr.Execute(ctx, func(ctx context.Context) error {
		_, err := users.Insert(ctx, &model.User{Email: "committed@example.com", Active: true})
		return err
	})
	if err != nil {
		return err
	}
	return reportCount(ctx, users, "committed@example.com", 1)
}

func demoRollback(
	ctx context.Context, mgr *txn.Manager, users repo.Repository[model.User, int64],
) error {
	err := mgr.Execute(ctx, func(ctx context.Context) error {
		if _, err := users.Insert(ctx, &model.User{Email: "doomed@example.com"}); err != nil {
			return err
		}
		return errDemo
	})
	if !errors.Is(err, errDemo) {
		return fmt.Errorf("expected the intentional failure, got: %w", err)
	}
	log.Info(ctx, "work failed as intended; transaction rolled back")
	return reportCount(ctx, users, "doomed@example.com", 0)
}

func demoNested(
	ctx context.Context, mgr *txn.Manager, users repo.Repository[model.User, int64],
) error {
	nested := txn.Definition{Propagation: txn.Nested}
	err := mgr.Execute(ctx, func(ctx context.Context) error {
		if _, err := users.Insert(ctx, &model.User{Email: "outer@example.com"}); err != nil {
			return err
		}
		inner := mgr.ExecuteWith(ctx, nested, func(ctx context.Context) error {
			if _, err := users.Insert(ctx, &model.User{Email: "inner@example.com"}); err != nil {
				return err
			}
			return errDemo
		})
		if !errors.Is(inner, errDemo) {
			return fmt.Errorf("expected the intentional failure, got: %w", inner)
		}
		log.Info(ctx, "inner level rolled back to its savepoint; outer continues")
		return nil
	})
	if err != nil {
		return err
	}
	if err := reportCount(ctx, users, "outer@example.com", 1); err != nil {
		return err
	}
	return reportCount(ctx, users, "inner@example.com", 0)
}

func demoNever(
	ctx context.Context, mgr *txn.Manager, users repo.Repository[model.User, int64],
) error {
	never := txn.Definition{Propagation: txn.Never}
	return mgr.Execute(ctx, func(ctx context.Context) error {
		err := mgr.ExecuteWith(ctx, never, func(context.Context) error {
			return errors.New("never-propagation work must not run")
		})
		if err == nil {
			return errors.New("expected Never to be rejected inside a transaction")
		}
		log.Info(ctx, "never rejected inside active transaction", log.Err("error", err))
		return nil
	})
}

func demoRollbackOnly(
	ctx context.Context, mgr *txn.Manager, users repo.Repository[model.User, int64],
) error {
	err := mgr.Execute(ctx, func(ctx context.Context) error {
		if _, err := users.Insert(ctx, &model.User{Email: "marked@example.com"}); err != nil {
			return err
		}
		txn.MarkRollbackOnly(ctx)
		return nil
	})
	if !errors.Is(err, txn.ErrRollbackOnly) {
		return fmt.Errorf("expected ErrRollbackOnly, got: %w", err)
	}
	log.Info(ctx, "chain succeeded but was marked rollback-only; effects discarded")
	return reportCount(ctx, users, "marked@example.com", 0)
}

func reportCount(
	ctx context.Context,
	users repo.Repository[model.User, int64],
	email string,
	want int,
) error {
	found, err := users.FindByField(ctx, "email", email)
	if err != nil {
		return err
	}
	log.Info(ctx, "visible rows",
		slog.String("email", email),
		slog.Int("count", len(found)),
		slog.Int("expected", want),
	)
	if len(found) != want {
		return fmt.Errorf("expected %d rows for %s, found %d", want, email, len(found))
	}
	return nil
}
