// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command picotmd is a small demo CLI driving the picotm transaction
// manager directly, without a kernel-level FUSE session: its demo
// subcommand runs a batch of concurrent transactions that write
// disjoint regions of one scratch file through txfd, and logs a line
// once all of them have committed.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/picotm-go/picotm/cfg"
	"github.com/picotm-go/picotm/logger"
)

var (
	cfgFile string
	appCfg  *cfg.Config
	bindErr error
)

var rootCmd = &cobra.Command{
	Use:   "picotmd",
	Short: "Run demo workloads through the picotm transaction manager",
	Long: `picotmd exercises txfd directly: it is not a mount helper or a
FUSE daemon, just a driver that runs concurrent transactions against
real file descriptors and logs when they have all committed. It does
not print the transaction manager's commit/abort/conflict/escalation
counts.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		loaded, err := cfg.Load(cmd.Flags(), cfgFile)
		if err != nil {
			return err
		}
		appCfg = loaded
		if err := cfg.Apply(appCfg); err != nil {
			return err
		}
		return logger.Init(appCfg.Logging)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file.")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(demoCmd)
}

// Execute runs the root command, matching the teacher's cmd.Execute
// convention (cmd/root.go) of printing any error to stderr and setting
// the process exit code instead of panicking.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
