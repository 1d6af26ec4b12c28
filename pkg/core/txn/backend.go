// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package txn

import "context"

// Conn is a backend-native connection which has been checked out of
// its pool for the exclusive use of one call chain. The engine treats
// it as opaque; only the owning Backend knows how to execute
// statements on it. Close returns the connection to its pool.
type Conn interface {
	Close() error
}

// Backend adapts one database driver's transaction-control dialect to
// the shared propagation state machine. Every method operates on a
// Conn previously produced by Acquire of the same Backend.
//
// Begin must issue the dialect's transaction start statement for the
// given definition. Isolation selection failures are fatal, while
// read-only and timeout hints are best-effort: a backend which fails
// to apply them logs and proceeds. Commit must additionally revert
// any connection-level mode (such as a read-only pragma) which Begin
// toggled, since the connection returns to a shared pool afterwards;
// Rollback must do the same.
type Backend interface {
	// Name identifies the backend in log records.
	Name() string
	// Acquire checks one connection out of the backend's pool.
	Acquire(ctx context.Context) (Conn, error)
	// Begin starts a transaction on conn as described by def.
	Begin(ctx context.Context, conn Conn, def Definition) error
	// Commit commits the transaction which is open on conn.
	Commit(ctx context.Context, conn Conn) error
	// Rollback aborts the transaction which is open on conn.
	Rollback(ctx context.Context, conn Conn) error
	// Savepoint opens the named savepoint on conn.
	Savepoint(ctx context.Context, conn Conn, name string) error
	// ReleaseSavepoint releases the named savepoint, keeping its
	// effects inside the enclosing transaction.
	ReleaseSavepoint(ctx context.Context, conn Conn, name string) error
	// RollbackToSavepoint undoes every effect performed since the
	// named savepoint was opened.
	RollbackToSavepoint(ctx context.Context, conn Conn, name string) error
}
