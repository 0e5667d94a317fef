// Copyright 2025 The hgsubtree Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package run

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrzv/hgsubtree/commands"
	"github.com/mrzv/hgsubtree/internal/util/cmdutil"
	"github.com/mrzv/hgsubtree/pkg/printer"
)

const shortDocs = `Graft external repositories into subdirectories of a host repository`

const longDocs = `
hgsubtree keeps a durable, mergeable record of external repositories
imported into subdirectories of a Mercurial host repository. Each
configured subtree stays separately pullable and mergeable instead of
becoming a flat copy.
`

// GetMain returns the hgsubtree root command.
func GetMain(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "hgsubtree",
		Short:        shortDocs,
		Long:         longDocs,
		SilenceUsage: true,
		// We handle all errors in main after return from cobra so we can
		// adjust the error message coming from libraries
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := cmd.Flags().GetBool("help")
			if err != nil {
				return err
			}
			if h {
				return cmd.Help()
			}
			return cmd.Usage()
		},
	}

	// wire the global printer
	pr := printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr())

	// create context with associated printer
	ctx = printer.WithContext(ctx, pr)

	// enable stack traces
	cmd.PersistentFlags().BoolVar(&cmdutil.StackOnError, "stack-trace", false,
		"print a stack-trace on failure")

	cmd.InitDefaultHelpCmd()
	cmd.AddCommand(commands.GetHgSubtreeCommands(ctx, "hgsubtree")...)
	cmd.AddCommand(versionCmd)

	return cmd
}

var version = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of hgsubtree",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s\n", version)
	},
}
