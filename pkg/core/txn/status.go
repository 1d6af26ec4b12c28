// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package txn

import "context"

// Status records the state of one Execute level. It exists only for
// the lifetime of that Execute call and is discarded when the call
// returns.
type Status struct {
	isNew        bool
	rollbackOnly bool
}

// IsNewTransaction reports whether this level started the physical
// transaction (as opposed to joining one or opening a savepoint).
func (st *Status) IsNewTransaction() bool {
	return st.isNew
}

// IsRollbackOnly reports whether this level has been marked for
// rollback regardless of the work outcome.
func (st *Status) IsRollbackOnly() bool {
	return st.rollbackOnly
}

func (st *Status) markRollbackOnly() {
	st.rollbackOnly = true
}

// CurrentStatus returns the Status of the innermost Execute level of
// the calling chain, or nil when called outside any Execute.
func CurrentStatus(ctx context.Context) *Status {
	sc, ok := ctx.Value(scopeKey{}).(*scope)
	if !ok {
		return nil
	}
	return sc.topStatus()
}

// MarkRollbackOnly marks the innermost Execute level for rollback.
// When that level completes, its transaction or savepoint is rolled
// back and Execute returns ErrRollbackOnly even if the work returned
// nil. Marks made at a joining level are promoted to the enclosing
// level when the joining level completes successfully, so the
// physical transaction is eventually rolled back.
// It reports whether an Execute level was found to mark.
func MarkRollbackOnly(ctx context.Context) bool {
	st := CurrentStatus(ctx)
	if st == nil {
		return false
	}
	st.markRollbackOnly()
	return true
}
