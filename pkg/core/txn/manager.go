// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/storekit/storekit/pkg/core/cerr"
	"github.com/storekit/storekit/pkg/core/log"
)

// ErrRollbackOnly is returned by Execute when the work completed
// without an error but the level had been marked rollback-only, so
// its effects were rolled back instead of committed.
var ErrRollbackOnly = errors.New("txn: transaction was marked rollback-only")

// Work is a single-shot unit of work executed under transactional
// semantics. The received context carries the chain's transactional
// scope and must be passed, directly or derived, to every repository
// operation and nested Execute call which should participate in it.
type Work func(ctx context.Context) error

// Manager drives units of work through the propagation state machine
// on top of one Backend. It is stateless apart from its configuration
// and safe for concurrent use by any number of chains.
type Manager struct {
	backend  Backend
	defaults Definition
}

// NewManager returns a Manager over the given backend using
// DefaultDefinition as the Execute default.
func NewManager(b Backend) *Manager {
	return &Manager{backend: b, defaults: DefaultDefinition()}
}

// WithDefaults returns a copy of the manager whose Execute method
// uses def instead of DefaultDefinition.
func (m *Manager) WithDefaults(def Definition) *Manager {
	return &Manager{backend: m.backend, defaults: def}
}

// Execute runs work under the manager's default definition.
func (m *Manager) Execute(ctx context.Context, work Work) error {
	return m.ExecuteWith(ctx, m.defaults, work)
}

// ExecuteWith runs work under the given definition. It decides,
// based on the definition's propagation and on whether the calling
// chain already has an active transaction, whether to start a
// transaction, join the active one, open a savepoint inside it, run
// without any transaction, or reject the call. On return, every
// transaction or savepoint opened by this call has been committed,
// released, or rolled back, and any connection acquired by this call
// has been returned to the pool; this holds on error, panic, and
// context-cancellation paths alike.
//
// The work's error, if any, is propagated unmodified after exactly
// one compensating action (rollback or savepoint rollback). Failures
// of the transaction-control statements themselves are reported as
// cerr.Backend errors.
func (m *Manager) ExecuteWith(ctx context.Context, def Definition, work Work) error {
	sc, ctx := withScope(ctx)
	active := sc.active()

	switch def.Propagation {
	case Never:
		if active {
			return cerr.Backend(errors.New(
				"txn: transaction active but propagation Never requested",
			))
		}
		return work(ctx)
	case Supports, NotSupported:
		if !active {
			return work(ctx)
		}
		// NotSupported joins instead of suspending; see the
		// constant's documentation.
		return m.runJoined(ctx, sc, work)
	case Required:
		if active {
			return m.runJoined(ctx, sc, work)
		}
		return m.runRoot(ctx, sc, def, work)
	case RequiresNew, Nested:
		if active {
			return m.runNested(ctx, sc, work)
		}
		return m.runRoot(ctx, sc, def, work)
	}
	return cerr.Backend(fmt.Errorf("txn: unknown propagation %d", int(def.Propagation)))
}

// runJoined executes work at a level which joins the chain's active
// transaction. No transaction-control statement is issued at this
// level; a rollback-only mark is promoted to the enclosing level so
// the owning level eventually rolls the physical transaction back.
func (m *Manager) runJoined(ctx context.Context, sc *scope, work Work) error {
	st := sc.pushStatus(false)
	defer func() {
		sc.popStatus()
		if st.rollbackOnly {
			if parent := sc.topStatus(); parent != nil {
				parent.markRollbackOnly()
			}
		}
	}()
	return work(ctx)
}

// runRoot starts a physical transaction, executes work, and settles
// it. The deferred scope guard guarantees that the connection is
// popped and returned to the pool on every exit path, rolling back
// first whenever the transaction has not been settled (work panicked
// or the surrounding task was canceled).
func (m *Manager) runRoot(ctx context.Context, sc *scope, def Definition, work Work) (err error) {
	conn, err := m.backend.Acquire(ctx)
	if err != nil {
		return cerr.Backend(fmt.Errorf("acquire connection: %w", err))
	}
	if err = m.backend.Begin(ctx, conn, def); err != nil {
		closeConn(ctx, m.backend, conn)
		return cerr.Backend(fmt.Errorf("begin: %w", err))
	}
	log.Debug(ctx, "transaction started",
		slog.String("backend", m.backend.Name()),
		slog.String("isolation", def.Isolation.String()),
		slog.Bool("read_only", def.ReadOnly),
	)
	sc.push(conn)
	st := sc.pushStatus(true)
	settled := false
	defer func() {
		sc.popStatus()
		sc.pop()
		if !settled {
			// Panic or cancellation path. Roll back with a
			// detached context so a canceled ctx cannot keep
			// the connection stuck inside a transaction.
			rctx := context.WithoutCancel(ctx)
			if rbErr := m.backend.Rollback(rctx, conn); rbErr != nil {
				log.Error(rctx, "rollback on abandoned transaction failed",
					slog.String("backend", m.backend.Name()),
					log.Err("error", rbErr),
				)
			}
		}
		closeConn(ctx, m.backend, conn)
	}()

	// A panic inside work unwinds through the guard above with
	// settled == false, so the transaction is rolled back and the
	// connection released before the panic reaches the caller.
	err = work(ctx)
	if err == nil {
		err = ctx.Err()
	}

	rctx := context.WithoutCancel(ctx)
	switch {
	case err != nil:
		settled = true
		if rbErr := m.backend.Rollback(rctx, conn); rbErr != nil {
			// The work error still takes precedence; the
			// compensation failure is only logged.
			log.Error(rctx, "rollback failed",
				slog.String("backend", m.backend.Name()),
				log.Err("error", rbErr),
			)
		}
		return err
	case st.rollbackOnly:
		settled = true
		if rbErr := m.backend.Rollback(rctx, conn); rbErr != nil {
			return cerr.Backend(fmt.Errorf("rollback: %w", rbErr))
		}
		return ErrRollbackOnly
	default:
		settled = true
		if cmErr := m.backend.Commit(rctx, conn); cmErr != nil {
			return cerr.Backend(fmt.Errorf("commit: %w", cmErr))
		}
		return nil
	}
}

// runNested opens a savepoint inside the chain's active transaction,
// executes work, and releases or rolls back to that savepoint. The
// savepoint depth returns to its pre-call value on every exit path.
func (m *Manager) runNested(ctx context.Context, sc *scope, work Work) (err error) {
	conn := sc.top()
	name := fmt.Sprintf("sp%d", sc.depth+1)
	if err = m.backend.Savepoint(ctx, conn, name); err != nil {
		return cerr.Backend(fmt.Errorf("savepoint %s: %w", name, err))
	}
	sc.depth++
	st := sc.pushStatus(false)
	settled := false
	defer func() {
		sc.popStatus()
		sc.depth--
		if !settled {
			rctx := context.WithoutCancel(ctx)
			if rbErr := m.backend.RollbackToSavepoint(rctx, conn, name); rbErr != nil {
				log.Error(rctx, "rollback to savepoint on abandoned work failed",
					slog.String("backend", m.backend.Name()),
					slog.String("savepoint", name),
					log.Err("error", rbErr),
				)
			}
		}
	}()

	err = work(ctx)
	if err == nil {
		err = ctx.Err()
	}

	rctx := context.WithoutCancel(ctx)
	switch {
	case err != nil:
		settled = true
		if rbErr := m.backend.RollbackToSavepoint(rctx, conn, name); rbErr != nil {
			log.Error(rctx, "rollback to savepoint failed",
				slog.String("backend", m.backend.Name()),
				slog.String("savepoint", name),
				log.Err("error", rbErr),
			)
		}
		return err
	case st.rollbackOnly:
		settled = true
		if rbErr := m.backend.RollbackToSavepoint(rctx, conn, name); rbErr != nil {
			return cerr.Backend(fmt.Errorf("rollback to savepoint %s: %w", name, rbErr))
		}
		return ErrRollbackOnly
	default:
		settled = true
		if rlErr := m.backend.ReleaseSavepoint(rctx, conn, name); rlErr != nil {
			return cerr.Backend(fmt.Errorf("release savepoint %s: %w", name, rlErr))
		}
		return nil
	}
}

func closeConn(ctx context.Context, b Backend, conn Conn) {
	if err := conn.Close(); err != nil {
		log.Warn(context.WithoutCancel(ctx), "releasing connection failed",
			slog.String("backend", b.Name()),
			log.Err("error", err),
		)
	}
}

// Execute runs work under def on manager m and returns its result.
// It is the typed variant of Manager.ExecuteWith for units of work
// which produce a value; on error the zero value is returned.
func Execute[R any](
	ctx context.Context,
	m *Manager,
	def Definition,
	work func(ctx context.Context) (R, error),
) (R, error) {
	var out R
	err := m.ExecuteWith(ctx, def, func(ctx context.Context) error {
		r, err := work(ctx)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return out, nil
}
