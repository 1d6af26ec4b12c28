// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package model defines the entities which are persisted through the
// repository layer, together with their hand-written metadata
// providers. Annotating structs with framework tags (db, json) is
// acceptable here since extra tags do not complicate the definition
// while preventing unnecessary struct duplication in the adapters.
package model

// User is the demo entity used by the example commands and the
// integration tests. ID zero means "not inserted yet"; the databases
// assign it on insert.
type User struct {
	ID     int64  `db:"id" json:"id"`
	Email  string `db:"email" json:"email"`
	Active bool   `db:"active" json:"active"`
}

// UserMeta implements repo.EntityMeta for User.
type UserMeta struct{}

func (UserMeta) Table() string           { return "users" }
func (UserMeta) IDColumn() string        { return "id" }
func (UserMeta) SelectColumns() []string { return []string{"id", "email", "active"} }
func (UserMeta) InsertColumns() []string { return []string{"email", "active"} }
func (UserMeta) UpdateColumns() []string { return []string{"email", "active"} }

func (UserMeta) ID(u *User) (int64, bool) {
	return u.ID, u.ID != 0
}

func (UserMeta) InsertValues(u *User) []any {
	return []any{u.Email, u.Active}
}

func (UserMeta) UpdateValues(u *User) []any {
	return []any{u.Email, u.Active}
}
