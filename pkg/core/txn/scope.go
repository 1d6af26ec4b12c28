// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package txn

import "context"

// scope is the per-chain binding store. It records the stack of
// connections owned by the chain's active transactions (the stack has
// one entry per physical transaction, so its depth is normally zero
// or one; independent chains never share a scope) together with the
// savepoint depth of the topmost transaction and the per-level
// Status records.
//
// The scope is reached through an unexported context key, which makes
// the context passed to a unit of work the only proof of an
// established transactional context: callers cannot fabricate one.
type scope struct {
	conns    []Conn
	depth    int
	statuses []*Status
}

type scopeKey struct{}

// withScope returns the chain's scope, lazily creating it and
// deriving a carrying context on the first Execute call of a chain.
func withScope(ctx context.Context) (*scope, context.Context) {
	if sc, ok := ctx.Value(scopeKey{}).(*scope); ok {
		return sc, ctx
	}
	sc := &scope{}
	return sc, context.WithValue(ctx, scopeKey{}, sc)
}

func (sc *scope) active() bool {
	return len(sc.conns) > 0
}

func (sc *scope) top() Conn {
	return sc.conns[len(sc.conns)-1]
}

func (sc *scope) push(conn Conn) {
	sc.conns = append(sc.conns, conn)
	sc.depth = 0
}

func (sc *scope) pop() {
	sc.conns = sc.conns[:len(sc.conns)-1]
	sc.depth = 0
}

func (sc *scope) pushStatus(isNew bool) *Status {
	st := &Status{isNew: isNew}
	sc.statuses = append(sc.statuses, st)
	return st
}

func (sc *scope) popStatus() {
	sc.statuses = sc.statuses[:len(sc.statuses)-1]
}

func (sc *scope) topStatus() *Status {
	if n := len(sc.statuses); n > 0 {
		return sc.statuses[n-1]
	}
	return nil
}

// ActiveConn returns the connection owned by the calling chain's
// innermost active transaction, if any. Repositories use it to
// participate in the ambient transaction; application code has no
// reason to call it.
func ActiveConn(ctx context.Context) (Conn, bool) {
	sc, ok := ctx.Value(scopeKey{}).(*scope)
	if !ok || !sc.active() {
		return nil, false
	}
	return sc.top(), true
}

// InTransaction reports whether a transaction is active for the
// calling chain.
func InTransaction(ctx context.Context) bool {
	_, ok := ActiveConn(ctx)
	return ok
}
