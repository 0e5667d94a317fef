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

// Package collapse compresses a pulled history range into a single
// synthetic changeset anchored to a persistent marker.
package collapse

import (
	"context"
	"fmt"

	"github.com/mrzv/hgsubtree/internal/errors"
	"github.com/mrzv/hgsubtree/internal/types"
	"github.com/mrzv/hgsubtree/internal/vcs"
)

// MarkerName returns the persistent marker name for a subtree.
func MarkerName(name types.SubtreeName) string {
	return "subtree@" + name.String()
}

// substructureFiles are VCS-specific metadata files that would corrupt
// the host repository's own subrepository bookkeeping if imported.
var substructureFiles = []string{".hgsub", ".hgsubstate", ".hgtags"}

// Command collapses the history pulled for one subtree into a synthetic
// changeset. The working copy must already contain the pulled history.
type Command struct {
	// Repo is the host repository.
	Repo vcs.Repo

	// Name is the subtree being collapsed.
	Name types.SubtreeName

	// PulledHead is the upstream tip just pulled.
	PulledHead string

	// Edit invokes the editor on the collapse commit message.
	Edit bool

	// NoStrip disables removal of substructure metadata files.
	NoStrip bool

	// Prune discards upstream history subsumed by the synthetic
	// changeset. Destructive; only runs after the commit succeeded.
	Prune bool
}

// Result reports the outcome of a collapse.
type Result struct {
	// Commit is the synthetic changeset, empty when NoOp is set.
	Commit string

	// NoOp is set when the synthetic commit would be identical to the
	// marker's current changeset. The caller must then treat the whole
	// sync as a no-op.
	NoOp bool

	// PruneErr reports a failure during optional history pruning. The
	// graft itself succeeded; this is a warning, not a sync failure.
	PruneErr error
}

// Run drives the collapse protocol: check out the marker (or the empty
// state), materialize PulledHead's tree, strip substructure metadata,
// commit, move the marker, and optionally prune the subsumed history.
// Failures before the commit leave the marker untouched.
func (c Command) Run(ctx context.Context) (Result, error) {
	const op errors.Op = "collapse.Run"

	marker := MarkerName(c.Name)
	exists, err := c.Repo.MarkerExists(ctx, marker)
	if err != nil {
		return Result{}, errors.E(op, c.Name, errors.Vcs, err)
	}

	base := vcs.NullRevision
	if exists {
		markers, err := c.Repo.ListMarkers(ctx)
		if err != nil {
			return Result{}, errors.E(op, c.Name, errors.Vcs, err)
		}
		base = markers[marker]
	}
	if err := c.Repo.Checkout(ctx, base, true); err != nil {
		return Result{}, errors.E(op, c.Name, errors.Vcs, err)
	}

	if err := c.Repo.RevertAllToTree(ctx, c.PulledHead); err != nil {
		return Result{}, errors.E(op, c.Name, errors.Vcs, err)
	}

	if !c.NoStrip {
		if err := c.stripSubstructure(ctx); err != nil {
			return Result{}, errors.E(op, c.Name, err)
		}
	}

	message := fmt.Sprintf("subtree: collapse %s at %s", c.Name, vcs.ShortID(c.PulledHead))
	commit, err := c.Repo.Commit(ctx, message, c.Edit)
	if err != nil {
		if errors.Is(err, vcs.ErrNoChanges) {
			return Result{NoOp: true}, nil
		}
		return Result{}, errors.E(op, c.Name, errors.Vcs, err)
	}

	// The marker is bookkeeping, not the working branch.
	if err := c.Repo.SetMarker(ctx, marker, commit, true); err != nil {
		return Result{}, errors.E(op, c.Name, errors.Vcs, err)
	}

	result := Result{Commit: commit}
	if c.Prune {
		if err := c.prune(ctx, marker); err != nil {
			result.PruneErr = errors.E(op, c.Name, errors.Prune, err)
		}
	}
	return result, nil
}

// stripSubstructure removes metadata files tracked in the materialized
// tree.
func (c Command) stripSubstructure(ctx context.Context) error {
	manifest, err := c.Repo.Manifest(ctx)
	if err != nil {
		return err
	}
	tracked := make(map[string]bool, len(manifest))
	for _, path := range manifest {
		tracked[path] = true
	}
	for _, name := range substructureFiles {
		if !tracked[name] {
			continue
		}
		if err := c.Repo.Remove(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// prune deletes markers subsumed by the pulled head and then discards
// the history reachable only from its ancestor set.
func (c Command) prune(ctx context.Context, ownMarker string) error {
	markers, err := c.Repo.ListMarkers(ctx)
	if err != nil {
		return err
	}
	for name, rev := range markers {
		if name == ownMarker {
			continue
		}
		subsumed, err := c.Repo.IsAncestor(ctx, rev, c.PulledHead)
		if err != nil {
			return err
		}
		if !subsumed {
			continue
		}
		if err := c.Repo.DeleteMarker(ctx, name); err != nil {
			return err
		}
	}
	return c.Repo.PruneHistory(ctx, c.PulledHead)
}
