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

// Package vcs defines the version-control primitives consumed by the
// subtree engine. The engine orchestrates these primitives and never
// implements storage, diffing or merging itself.
package vcs

import (
	"context"
	goerrors "errors"
)

// NullRevision is the designated empty state: no files, and no history
// ancestry to the host mainline.
const NullRevision = "null"

// ErrNoChanges is returned by Commit when the working copy holds nothing
// to commit.
var ErrNoChanges = goerrors.New("nothing changed")

// Status describes the working copy state. Every read is fresh; the
// engine never caches it across mutating calls.
type Status struct {
	Modified []string
	Added    []string
	Removed  []string
	Deleted  []string
	Unknown  []string
	Ignored  []string
	Clean    []string
}

// Dirty reports whether the working copy has uncommitted changes that
// would be destroyed by a subtree sync.
func (s Status) Dirty() bool {
	return len(s.Modified)+len(s.Added)+len(s.Removed)+len(s.Deleted) > 0
}

// Repo is the capability set the engine needs from a version control
// system. It is satisfied by the hg subpackage for Mercurial and by the
// fake subpackage for tests.
type Repo interface {
	// Root returns the absolute path to the repository root.
	Root() string

	// Status returns the working copy status.
	Status(ctx context.Context) (Status, error)

	// Pull force-pulls from source, accepting unrelated histories, and
	// returns the new repository tip. If rev is non-empty only that
	// revision (and its ancestors) is pulled.
	Pull(ctx context.Context, source, rev string) (string, error)

	// Tip returns the identity of the newest changeset in the repository.
	Tip(ctx context.Context) (string, error)

	// Parent returns the identity of the working copy parent changeset.
	Parent(ctx context.Context) (string, error)

	// Checkout updates the working copy to rev. With clean set, local
	// modifications are discarded.
	Checkout(ctx context.Context, rev string, clean bool) error

	// RevertAllToTree forces the working copy contents to exactly match
	// rev's tree without adopting its ancestry.
	RevertAllToTree(ctx context.Context, rev string) error

	// Manifest returns the tracked paths of the current checkout.
	Manifest(ctx context.Context) ([]string, error)

	// Rename relocates the source files into the target directory,
	// recording the rename in history.
	Rename(ctx context.Context, sources []string, target string) error

	// Copy duplicates the source files into the target directory,
	// recording the copy in history.
	Copy(ctx context.Context, sources []string, target string) error

	// Remove deletes a tracked path from the working copy.
	Remove(ctx context.Context, path string) error

	// Commit records the working copy as a new changeset and returns its
	// identity. Returns ErrNoChanges when there is nothing to commit.
	Commit(ctx context.Context, message string, edit bool) (string, error)

	// Merge merges rev into the working copy without committing.
	Merge(ctx context.Context, rev string) error

	// SetMarker creates or moves the named persistent marker to rev.
	// Inactive markers are bookkeeping only and do not track commits made
	// from the working copy.
	SetMarker(ctx context.Context, name, rev string, inactive bool) error

	// MarkerExists reports whether the named marker exists.
	MarkerExists(ctx context.Context, name string) (bool, error)

	// DeleteMarker removes the named marker.
	DeleteMarker(ctx context.Context, name string) error

	// ListMarkers returns all markers and the changesets they reference.
	ListMarkers(ctx context.Context) (map[string]string, error)

	// PruneHistory destroys the changesets reachable only from rev's
	// ancestor set. Irreversible.
	PruneHistory(ctx context.Context, rev string) error

	// IsAncestor reports whether a is an ancestor of b.
	IsAncestor(ctx context.Context, a, b string) (bool, error)
}

// ShortID returns the short (12 character) form of a changeset identity,
// matching what Mercurial displays.
func ShortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}
