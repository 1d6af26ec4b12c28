// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package command provides the root and sub-commands of the storekit
// CLI. Commands are organized using the cobra library.
// The "serve" sub-command starts a demo REST server exposing the
// users repository through the transaction manager, while the "demo"
// sub-command runs a propagation walkthrough against an in-memory
// sqlite database.
//
//	./storekit serve [-c /path/of/config.yaml]
//	./storekit demo
package command

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "storekit",
	Short: "Backend-agnostic transactional repositories",
	Long: `Storekit coordinates transactions across heterogeneous database
drivers (sqlite, mysql, postgres). Call chains declare transactional
intent (propagation, isolation, read-only, timeout) through a
transaction manager, and repositories transparently participate in
whatever transaction is active for their chain, without a connection
handle being threaded through every function signature. This CLI
hosts a demo REST server and a scripted walkthrough of the
propagation semantics.`,
}

// Execute runs the rootCmd which in turn parses CLI arguments and
// flags and runs the most specific cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(fixConfigPath)
	rootCmd.PersistentFlags().StringVarP(
		&cfgPath, "config", "c", "", "config file path",
	)
}

// fixConfigPath ensures that cfgPath is set respectively by either
// the CLI args, the CONFIG_FILE environment variable, or its default
// value.
func fixConfigPath() {
	if cfgPath != "" {
		return
	}
	var found bool
	if cfgPath, found = os.LookupEnv("CONFIG_FILE"); !found {
		cfgPath = "configs/sample-config.yaml"
	}
}
