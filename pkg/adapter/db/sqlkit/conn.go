// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package sqlkit holds the parts of the sqlite and mysql adapters
// which are identical once a database/sql driver is wrapped by sqlx:
// the pinned transaction connection and the generic repository. The
// dialect-specific transaction control stays in the adapter packages.
package sqlkit

import (
	"github.com/jmoiron/sqlx"
)

// Conn is a connection pinned out of a *sqlx.DB pool for the duration
// of one transaction. It implements txn.Conn; Close returns the
// connection to the pool.
type Conn struct {
	*sqlx.Conn

	// ReadOnly records that Begin toggled a connection-level
	// read-only mode (sqlite query_only pragma) which must be
	// reverted before the connection is pooled again.
	ReadOnly bool
}
