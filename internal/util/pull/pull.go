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

// Package pull contains the library for pulling subtrees into the host
// repository.
package pull

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrzv/hgsubtree/internal/config"
	"github.com/mrzv/hgsubtree/internal/destination"
	"github.com/mrzv/hgsubtree/internal/errors"
	"github.com/mrzv/hgsubtree/internal/util/collapse"
	"github.com/mrzv/hgsubtree/internal/vcs"
	"github.com/mrzv/hgsubtree/pkg/printer"
)

// Commit message templates. The merge template matches the original
// Mercurial extension so existing host histories stay uniform.
const (
	moveMessage  = "subtree: move %s"
	mergeMessage = "subtree: update %s"
)

// Command pulls one or more subtrees and merges them back into the host
// mainline. Specs are processed strictly in sequence; each spec's merge
// commit becomes the origin the next spec merges onto.
type Command struct {
	// Repo is the host repository.
	Repo vcs.Repo

	// Specs are the subtree specs selected for this invocation.
	Specs []config.SubtreeSpec

	// Edit invokes the editor on commit messages.
	Edit bool

	// RevOverride pulls this revision instead of the configured one.
	RevOverride string

	// NoStrip disables substructure metadata stripping during collapse.
	NoStrip bool

	// Prune discards collapsed upstream history after a successful
	// collapse commit.
	Prune bool
}

// state names one step of the per-spec sync pipeline.
type state int

const (
	stateCheckRules state = iota
	statePull
	stateCollapse
	stateCheckout
	statePlaceFiles
	stateCommitPlacement
	stateMergeBack
	stateCommitMerge
	stateAdvance
	stateNoOp
	stateDone
)

// Run syncs every selected spec. The working copy must be clean before
// any mutation; a dirty working copy aborts the whole invocation.
func (c Command) Run(ctx context.Context) error {
	const op errors.Op = "pull.Run"
	pr := printer.FromContextOrDie(ctx)

	// Global precondition: the engine rewrites the working copy quite
	// dramatically, so uncommitted changes abort before any mutation.
	status, err := c.Repo.Status(ctx)
	if err != nil {
		return errors.E(op, errors.Vcs, err)
	}
	if status.Dirty() {
		return errors.E(op, errors.Precondition,
			fmt.Errorf("uncommitted changes in the working copy; commit or revert them first"))
	}

	origin, err := c.Repo.Parent(ctx)
	if err != nil {
		return errors.E(op, errors.Vcs, err)
	}

	for _, spec := range c.Specs {
		next, err := c.runSpec(ctx, spec, origin)
		if err != nil {
			return errors.E(op, spec.Name, err)
		}
		if next == "" {
			pr.OptPrintf(printer.NewOpt().Sub(spec.Name), "no changes, nothing to do\n")
			continue
		}
		pr.OptPrintf(printer.NewOpt().Sub(spec.Name), "updated to %s\n", vcs.ShortID(next))
		origin = next
	}
	return nil
}

// runSpec drives the state machine for one spec. It returns the new
// origin changeset, or the empty string when the sync was a no-op.
func (c Command) runSpec(ctx context.Context, spec config.SubtreeSpec, origin string) (string, error) {
	var (
		rules           []destination.Rule
		pulledHead      string
		placementCommit string
		mergeCommit     string
		err             error
	)

	for st := stateCheckRules; ; {
		switch st {
		case stateCheckRules:
			// Configuration problems surface before any VCS call for
			// this spec.
			rules, err = destination.ParseRules(spec.Destination)
			if err != nil {
				return "", err
			}
			// A missing block and a block of blank lines are the same
			// misconfiguration; neither may silently erase the manifest.
			if len(rules) == 0 {
				return "", errors.E(errors.Config,
					fmt.Errorf("no destination found for %s", spec.Name))
			}
			st = statePull

		case statePull:
			preTip, err := c.Repo.Tip(ctx)
			if err != nil {
				return "", errors.E(errors.Vcs, err)
			}
			rev := spec.Rev
			if c.RevOverride != "" {
				rev = c.RevOverride
			}
			pulledHead, err = c.Repo.Pull(ctx, spec.Source, rev)
			if err != nil {
				return "", errors.E(errors.Vcs, err)
			}
			if pulledHead == preTip {
				st = stateNoOp
				continue
			}
			if spec.Collapse {
				st = stateCollapse
			} else {
				st = stateCheckout
			}

		case stateCollapse:
			result, err := collapse.Command{
				Repo:       c.Repo,
				Name:       spec.Name,
				PulledHead: pulledHead,
				Edit:       c.Edit,
				NoStrip:    c.NoStrip,
				Prune:      c.Prune,
			}.Run(ctx)
			if err != nil {
				return "", err
			}
			if result.NoOp {
				st = stateNoOp
				continue
			}
			if result.PruneErr != nil {
				pr := printer.FromContextOrDie(ctx)
				pr.OptPrintf(printer.NewOpt().Sub(spec.Name),
					"warning: pruning collapsed history failed: %v\n", result.PruneErr)
			}
			// The collapse commit left the working copy at the
			// synthetic changeset; place files from there.
			st = statePlaceFiles

		case stateCheckout:
			if err := c.Repo.Checkout(ctx, pulledHead, true); err != nil {
				return "", errors.E(errors.Vcs, err)
			}
			st = statePlaceFiles

		case statePlaceFiles:
			manifest, err := c.Repo.Manifest(ctx)
			if err != nil {
				return "", errors.E(errors.Vcs, err)
			}
			plan := destination.NewPlan(rules, manifest, spec.Keep)
			if err := c.placeFiles(ctx, plan); err != nil {
				return "", err
			}
			st = stateCommitPlacement

		case stateCommitPlacement:
			placementCommit, err = c.Repo.Commit(ctx, fmt.Sprintf(moveMessage, spec.Name), c.Edit)
			if err != nil {
				if !errors.Is(err, vcs.ErrNoChanges) {
					return "", errors.E(errors.Vcs, err)
				}
				// The rules were an identity mapping; merge the
				// checkout itself.
				placementCommit, err = c.Repo.Parent(ctx)
				if err != nil {
					return "", errors.E(errors.Vcs, err)
				}
			}
			st = stateMergeBack

		case stateMergeBack:
			if err := c.Repo.Checkout(ctx, origin, false); err != nil {
				return "", errors.E(errors.Vcs, err)
			}
			if err := c.Repo.Merge(ctx, placementCommit); err != nil {
				// Conflicts are surfaced to the operator with the
				// working copy left intact for manual resolution.
				return "", errors.E(errors.Vcs, err)
			}
			st = stateCommitMerge

		case stateCommitMerge:
			mergeCommit, err = c.Repo.Commit(ctx, fmt.Sprintf(mergeMessage, spec.Name), c.Edit)
			if err != nil {
				if !errors.Is(err, vcs.ErrNoChanges) {
					return "", errors.E(errors.Vcs, err)
				}
				mergeCommit, err = c.Repo.Parent(ctx)
				if err != nil {
					return "", errors.E(errors.Vcs, err)
				}
			}
			st = stateAdvance

		case stateAdvance:
			return mergeCommit, nil

		case stateNoOp:
			// A collapse no-op leaves the working copy at the marker
			// changeset; put it back where the invocation started.
			parent, err := c.Repo.Parent(ctx)
			if err != nil {
				return "", errors.E(errors.Vcs, err)
			}
			if parent != origin {
				if err := c.Repo.Checkout(ctx, origin, false); err != nil {
					return "", errors.E(errors.Vcs, err)
				}
			}
			return "", nil
		}
	}
}

// placeFiles executes a placement plan: directories first so files have
// somewhere to land, copies before moves so one file can be duplicated
// and relocated in the same pass, and removals last so only files that
// truly ended up unmatched are deleted.
func (c Command) placeFiles(ctx context.Context, plan *destination.Plan) error {
	for _, dir := range plan.Mkdirs {
		if err := os.MkdirAll(filepath.Join(c.Repo.Root(), dir), 0755); err != nil {
			return errors.E(errors.IO, err)
		}
	}
	for _, target := range plan.CopyTargets() {
		if err := c.Repo.Copy(ctx, plan.Copies[target], target); err != nil {
			return errors.E(errors.Vcs, err)
		}
	}
	for _, target := range plan.MoveTargets() {
		if err := c.Repo.Rename(ctx, plan.Moves[target], target); err != nil {
			return errors.E(errors.Vcs, err)
		}
	}
	for _, path := range plan.Removals {
		if err := c.Repo.Remove(ctx, path); err != nil {
			return errors.E(errors.Vcs, err)
		}
	}
	return nil
}
