// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package command

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/storekit/storekit/pkg/adapter/config"
	"github.com/storekit/storekit/pkg/adapter/db/mysql"
	"github.com/storekit/storekit/pkg/adapter/db/postgres"
	"github.com/storekit/storekit/pkg/adapter/db/sqlite"
	"github.com/storekit/storekit/pkg/adapter/restful/gin/usersrs"
	"github.com/storekit/storekit/pkg/core/model"
	"github.com/storekit/storekit/pkg/core/repo"
	"github.com/storekit/storekit/pkg/core/txn"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the demo users REST server",
	RunE:  startWebServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func startWebServer(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	c, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config.Load(%q): %w", cfgPath, err)
	}
	mgr, users, closePool, err := openUserStore(ctx, c.Database)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", c.Database.Driver, err)
	}
	defer closePool()
	e := gin.New()
	e.Use(gin.Logger(), gin.Recovery())
	usersrs.Register(e.Group("/api/v1/"), mgr, users)
	if err := e.Run(c.Web.Addr); err != nil {
		return fmt.Errorf("running Gin engine: %w", err)
	}
	return nil
}

// openUserStore opens the configured pool and builds the transaction
// manager plus users repository over it.
func openUserStore(ctx context.Context, d config.Database) (
	*txn.Manager,
	repo.Repository[model.User, int64],
	func() error,
	error,
) {
	switch d.Driver {
	case "sqlite":
		p, err := d.NewSQLitePool(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		users, err := sqlite.NewRepository(p, model.UserMeta{}, nil)
		if err != nil {
			_ = p.Close()
			return nil, nil, nil, err
		}
		return p.Manager(), users, p.Close, nil
	case "mysql":
		p, err := d.NewMySQLPool(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		users, err := mysql.NewRepository(p, model.UserMeta{}, nil)
		if err != nil {
			_ = p.Close()
			return nil, nil, nil, err
		}
		return p.Manager(), users, p.Close, nil
	case "postgres":
		p, err := d.NewPostgresPool(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		users, err := postgres.NewRepository(p, model.UserMeta{}, nil)
		if err != nil {
			p.Close()
			return nil, nil, nil, err
		}
		closer := func() error { p.Close(); return nil }
		return p.Manager(), users, closer, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown driver: %q", d.Driver)
}
