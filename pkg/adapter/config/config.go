// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package config is an adapter which accepts yaml formatted config
// files and allows the CLI commands to instantiate the database pool
// and the demo web server from validated settings.
package config

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/storekit/storekit/pkg/adapter/db/mysql"
	"github.com/storekit/storekit/pkg/adapter/db/postgres"
	"github.com/storekit/storekit/pkg/adapter/db/sqlite"
)

// Database holds the settings of one database connection pool.
type Database struct {
	// Driver selects the backend adapter.
	Driver string `yaml:"driver" validate:"required,oneof=sqlite mysql postgres"`
	// DSN is the driver-specific connection string or URL.
	DSN string `yaml:"dsn" validate:"required"`
	// MaxConns limits the pool size; zero keeps the driver default.
	MaxConns int32 `yaml:"max-conns" validate:"gte=0"`
}

// Web holds the demo REST server settings.
type Web struct {
	// Addr is the listen address, like ":8080".
	Addr string `yaml:"addr"`
}

// Config aggregates all settings of the storekit CLI.
type Config struct {
	Database Database `yaml:"database" validate:"required"`
	Web      Web      `yaml:"web"`
}

// Load reads, parses, and validates the yaml config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates yaml config data.
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("unmarshalling yaml: %w", err)
	}
	if err := c.ValidateAndNormalize(); err != nil {
		return nil, err
	}
	return c, nil
}

// ValidateAndNormalize validates the settings and fills defaults in.
func (c *Config) ValidateAndNormalize() error {
	if c.Web.Addr == "" {
		c.Web.Addr = ":8080"
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validating configs: %w", err)
	}
	return nil
}

// NewSQLitePool opens the sqlite pool described by these settings.
// Its siblings below do the same for the other drivers; the Driver
// field tells the caller which constructor applies.
func (d Database) NewSQLitePool(ctx context.Context) (*sqlite.Pool, error) {
	return sqlite.NewPool(ctx, d.DSN, int(d.MaxConns))
}

func (d Database) NewMySQLPool(ctx context.Context) (*mysql.Pool, error) {
	return mysql.NewPool(ctx, d.DSN, int(d.MaxConns))
}

func (d Database) NewPostgresPool(ctx context.Context) (*postgres.Pool, error) {
	return postgres.NewPool(ctx, d.DSN, d.MaxConns)
}
