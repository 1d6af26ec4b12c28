// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package txn implements the backend-agnostic transactional execution
// engine. A Manager runs units of work according to a Definition
// (propagation, isolation, read-only, timeout), guaranteeing at most
// one physical transaction per logical call chain, savepoint-based
// nesting, and deterministic commit or rollback based on the outcome
// of the enclosed work.
//
// The currently active connection stack is carried in the
// context.Context which is passed to the unit of work, under an
// unexported key. Repositories consult that context on every
// operation, so a repository which is constructed once, outside any
// transaction, transparently participates in whatever transaction is
// active for the calling chain. Each chain (goroutine handling one
// request or task) derives its own context, hence owns its own stack;
// no synchronization is needed beyond what context propagation
// already provides.
package txn

import "time"

// Propagation governs how a unit of work relates to an already-active
// transaction of the same call chain.
type Propagation int

const (
	// Required joins the active transaction, or starts a new one
	// when none is active.
	Required Propagation = iota
	// RequiresNew starts a new transaction when none is active.
	// When one is active, the work runs under a savepoint nested
	// inside it, so its effects can be undone independently.
	RequiresNew
	// Supports joins the active transaction if one is active and
	// runs without any transaction otherwise.
	Supports
	// NotSupported runs without a transaction when none is active.
	// When one is active, the work joins it instead of suspending
	// it; full suspension is not supported by this engine.
	NotSupported
	// Never runs without a transaction and fails with a backend
	// error, before the work is ever invoked, when a transaction
	// is active.
	Never
	// Nested behaves like RequiresNew: a savepoint inside an active
	// transaction, or a new transaction when none is active.
	Nested
)

func (p Propagation) String() string {
	switch p {
	case Required:
		return "required"
	case RequiresNew:
		return "requires-new"
	case Supports:
		return "supports"
	case NotSupported:
		return "not-supported"
	case Never:
		return "never"
	case Nested:
		return "nested"
	}
	return "unknown"
}

// Isolation requests a consistency guarantee for the transaction's
// reads relative to concurrent writers. Backends translate it to
// their own statements and treat unsupported levels as best-effort.
type Isolation int

const (
	// DefaultIsolation keeps the backend's default level.
	DefaultIsolation Isolation = iota
	ReadCommitted
	RepeatableRead
	Serializable
)

func (i Isolation) String() string {
	switch i {
	case DefaultIsolation:
		return "default"
	case ReadCommitted:
		return "read-committed"
	case RepeatableRead:
		return "repeatable-read"
	case Serializable:
		return "serializable"
	}
	return "unknown"
}

// Definition is an immutable value describing the desired transaction
// semantics for one Execute call. The zero value is usable and equals
// DefaultDefinition().
type Definition struct {
	Propagation Propagation
	Isolation   Isolation
	ReadOnly    bool
	// Timeout requests a lock-wait or statement timeout from the
	// backend. Zero means no explicit timeout. Application is
	// best-effort; backends which cannot honor it proceed anyway.
	Timeout time.Duration
}

// DefaultDefinition returns the Required/DefaultIsolation read-write
// definition with no timeout.
func DefaultDefinition() Definition {
	return Definition{
		Propagation: Required,
		Isolation:   DefaultIsolation,
	}
}
