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

// Package cmdpull contains the pull command.
package cmdpull

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mrzv/hgsubtree/internal/config"
	"github.com/mrzv/hgsubtree/internal/errors"
	"github.com/mrzv/hgsubtree/internal/util/cmdutil"
	"github.com/mrzv/hgsubtree/internal/util/pull"
	"github.com/mrzv/hgsubtree/internal/vcs/hg"
)

const shortDocs = `Pull subtree(s) and merge them into the host repository`

const longDocs = `
hgsubtree pull [NAME] [flags]

Pulls new upstream history for each configured subtree, places the
pulled files according to the subtree's destination rules, commits the
result and merges it back into the host mainline. With NAME, only that
subtree is synced.

The subtrees are read from the .hgsubtree file at the repository root.
`

const exampleDocs = `  # pull every configured subtree
  $ hgsubtree pull

  # pull a single subtree at a specific upstream revision
  $ hgsubtree pull vendor --rev 4.2
`

// NewRunner returns a command runner.
func NewRunner(ctx context.Context, parent string) *Runner {
	r := &Runner{
		ctx: ctx,
	}
	c := &cobra.Command{
		Use:     "pull [NAME]",
		Aliases: []string{"sp"},
		Args:    cobra.MaximumNArgs(1),
		Short:   shortDocs,
		Long:    longDocs,
		Example: exampleDocs,
		RunE:    r.runE,
		PreRunE: r.preRunE,
	}
	cmdutil.FixDocs("hgsubtree", parent, c)
	r.Command = c
	c.Flags().BoolVarP(&r.Pull.Edit, "edit", "e", false,
		"invoke the editor on commit messages")
	c.Flags().StringVarP(&r.Pull.RevOverride, "rev", "r", "",
		"pull this revision instead of the one specified in the config")
	c.Flags().StringVar(&r.source, "source", "",
		"pull from this source instead of the configured one (single subtree only)")
	c.Flags().StringVar(&r.configPath, "config", "",
		"path to the subtree configuration (defaults to .hgsubtree at the repo root)")
	c.Flags().BoolVar(&r.Pull.NoStrip, "no-strip", false,
		"keep substructure metadata files when collapsing")
	c.Flags().BoolVar(&r.Pull.Prune, "prune", false,
		"discard collapsed upstream history after a successful collapse (irreversible)")
	return r
}

// NewCommand returns the cobra command for pull.
func NewCommand(ctx context.Context, parent string) *cobra.Command {
	return NewRunner(ctx, parent).Command
}

// Runner contains the run function.
type Runner struct {
	ctx        context.Context
	Command    *cobra.Command
	Pull       pull.Command
	source     string
	configPath string
}

func (r *Runner) preRunE(_ *cobra.Command, args []string) error {
	const op errors.Op = "cmdpull.preRunE"

	repo, err := hg.NewRepo(r.ctx, ".")
	if err != nil {
		return errors.E(op, err)
	}
	r.Pull.Repo = repo

	configPath := r.configPath
	if configPath == "" {
		configPath = filepath.Join(repo.Root(), config.DefaultFileName)
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return errors.E(op, errors.IO, err)
	}
	specs, err := config.Load(data)
	if err != nil {
		return errors.E(op, err)
	}

	name := ""
	if len(args) == 1 {
		name = args[0]
	}
	r.Pull.Specs, err = config.Resolve(specs, name, r.source)
	if err != nil {
		return errors.E(op, err)
	}
	return nil
}

func (r *Runner) runE(_ *cobra.Command, _ []string) error {
	const op errors.Op = "cmdpull.runE"
	if err := r.Pull.Run(r.ctx); err != nil {
		return errors.E(op, err)
	}
	return nil
}
