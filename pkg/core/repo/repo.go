// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package repo declares the database-agnostic repository contracts.
// Concrete implementations live in the pkg/adapter/db sub-packages;
// this package must stay free of driver dependencies.
package repo

import "context"

// Repository is a minimal asynchronous CRUD interface over an entity
// type T identified by a key of type K.
//
// Every operation resolves its connection in this order: the calling
// chain's active transaction connection (if the ctx carries one), a
// connection the repository was explicitly constructed with, and
// finally a fresh connection from the backend pool. A repository
// instance may therefore be constructed once and reused both inside
// and outside transactions.
type Repository[T any, K comparable] interface {
	// FindByID fetches an entity by its primary key.
	// It returns (nil, nil) when no such row exists.
	FindByID(ctx context.Context, id K) (*T, error)

	// FindByField fetches all entities whose named column equals
	// value. It is the low-level hook behind generated or
	// hand-written find-by-<field> helpers.
	FindByField(ctx context.Context, field string, value any) ([]T, error)

	// Insert stores a new entity and returns the stored form,
	// which may differ when the database generates fields such as
	// auto-incrementing keys.
	Insert(ctx context.Context, entity *T) (*T, error)

	// Update stores an existing entity and returns its stored
	// form. The entity must carry its key.
	Update(ctx context.Context, entity *T) (*T, error)

	// DeleteByID removes an entity by key and reports whether a
	// row was affected.
	DeleteByID(ctx context.Context, id K) (bool, error)
}

// EntityMeta is the metadata-provider collaborator. It exposes the
// table layout of an entity and per-field value extraction, so that
// repositories can assemble and bind statements without inspecting
// the entity themselves. Implementations are typically hand-written
// next to the model (see pkg/core/model) or generated.
type EntityMeta[T any, K comparable] interface {
	// Table is the table name.
	Table() string
	// IDColumn is the primary key column name.
	IDColumn() string
	// SelectColumns is the ordered column list of SELECT results;
	// row mappers observe columns in this order.
	SelectColumns() []string
	// InsertColumns is the ordered column list of INSERT
	// statements, excluding database-generated keys.
	InsertColumns() []string
	// UpdateColumns is the ordered column list of an UPDATE SET
	// clause.
	UpdateColumns() []string
	// ID extracts the entity's key; ok is false when the entity
	// has no key yet (not inserted).
	ID(entity *T) (id K, ok bool)
	// InsertValues extracts the values matching InsertColumns.
	InsertValues(entity *T) []any
	// UpdateValues extracts the values matching UpdateColumns.
	UpdateValues(entity *T) []any
}
