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

// Package fake provides an in-memory implementation of vcs.Repo for
// testing the subtree engine without a Mercurial installation.
package fake

import (
	"context"
	"fmt"
	"path"
	"sort"

	"github.com/mrzv/hgsubtree/internal/vcs"
)

// Change is one queued upstream drop. Each Pull against the source
// consumes one change and grafts it as a new, parentless changeset.
type Change struct {
	Files map[string]string
}

type commit struct {
	id      string
	parents []string
	files   map[string]string
	message string
}

// Repo is an in-memory vcs.Repo. The zero value is not usable; construct
// with New.
type Repo struct {
	root    string
	seq     int
	commits map[string]*commit
	tip     string
	parent  string
	merged  string
	wc      map[string]string
	markers map[string]string
	queued  map[string][]Change

	// WorkingStatus, when set, is returned verbatim from Status.
	WorkingStatus *vcs.Status

	// FailPrune, when set, is returned from PruneHistory.
	FailPrune error

	// MergeConflict, when set, makes Merge fail.
	MergeConflict bool

	// Messages holds the commit messages recorded so far, in order.
	Messages []string

	// Pruned holds the revisions PruneHistory was invoked with.
	Pruned []string

	// CheckedOut holds every revision passed to Checkout, in order.
	CheckedOut []string
}

// New returns an empty repository whose working copy is at the null
// revision. root is used for mkdir side effects; a t.TempDir works.
func New(root string) *Repo {
	return &Repo{
		root: root,
		commits: map[string]*commit{
			vcs.NullRevision: {id: vcs.NullRevision, files: map[string]string{}},
		},
		tip:     vcs.NullRevision,
		parent:  vcs.NullRevision,
		wc:      map[string]string{},
		markers: map[string]string{},
		queued:  map[string][]Change{},
	}
}

// Seed commits the given files on top of the current working copy parent
// and checks the new changeset out. Used to establish the host mainline.
func (r *Repo) Seed(files map[string]string) string {
	r.wc = copyFiles(files)
	id := r.newCommit("seed", []string{r.parent})
	r.parent = id
	return id
}

// QueueUpstream queues a change that the next Pull from source will graft.
func (r *Repo) QueueUpstream(source string, files map[string]string) {
	r.queued[source] = append(r.queued[source], Change{Files: copyFiles(files)})
}

// Commits returns the number of changesets recorded, excluding null.
func (r *Repo) Commits() int {
	return len(r.commits) - 1
}

// FilesAt returns the tree of the given changeset.
func (r *Repo) FilesAt(rev string) map[string]string {
	c, ok := r.commits[rev]
	if !ok {
		return nil
	}
	return copyFiles(c.files)
}

// ParentsOf returns the parent changesets of rev.
func (r *Repo) ParentsOf(rev string) []string {
	c, ok := r.commits[rev]
	if !ok {
		return nil
	}
	return append([]string{}, c.parents...)
}

func (r *Repo) newCommit(message string, parents []string) string {
	r.seq++
	id := fmt.Sprintf("%040x", r.seq)
	r.commits[id] = &commit{
		id:      id,
		parents: parents,
		files:   copyFiles(r.wc),
		message: message,
	}
	r.tip = id
	return id
}

func (r *Repo) Root() string {
	return r.root
}

func (r *Repo) Status(context.Context) (vcs.Status, error) {
	if r.WorkingStatus != nil {
		return *r.WorkingStatus, nil
	}
	base := r.commits[r.parent].files
	var st vcs.Status
	for p := range r.wc {
		switch {
		case base[p] == r.wc[p]:
			st.Clean = append(st.Clean, p)
		case base[p] == "":
			st.Added = append(st.Added, p)
		default:
			st.Modified = append(st.Modified, p)
		}
	}
	for p := range base {
		if _, ok := r.wc[p]; !ok {
			st.Removed = append(st.Removed, p)
		}
	}
	return st, nil
}

func (r *Repo) Pull(_ context.Context, source, _ string) (string, error) {
	q := r.queued[source]
	if len(q) == 0 {
		return r.tip, nil
	}
	change := q[0]
	r.queued[source] = q[1:]

	r.seq++
	id := fmt.Sprintf("%040x", r.seq)
	r.commits[id] = &commit{
		id:      id,
		files:   copyFiles(change.Files),
		message: "upstream",
	}
	r.tip = id
	return r.tip, nil
}

func (r *Repo) Tip(context.Context) (string, error) {
	return r.tip, nil
}

func (r *Repo) Parent(context.Context) (string, error) {
	return r.parent, nil
}

func (r *Repo) Checkout(_ context.Context, rev string, _ bool) error {
	c, ok := r.commits[rev]
	if !ok {
		return fmt.Errorf("unknown revision %q", rev)
	}
	r.CheckedOut = append(r.CheckedOut, rev)
	r.parent = rev
	r.merged = ""
	r.wc = copyFiles(c.files)
	return nil
}

func (r *Repo) RevertAllToTree(_ context.Context, rev string) error {
	c, ok := r.commits[rev]
	if !ok {
		return fmt.Errorf("unknown revision %q", rev)
	}
	r.wc = copyFiles(c.files)
	return nil
}

func (r *Repo) Manifest(context.Context) ([]string, error) {
	paths := make([]string, 0, len(r.wc))
	for p := range r.wc {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (r *Repo) Rename(_ context.Context, sources []string, target string) error {
	if err := r.Copy(context.Background(), sources, target); err != nil {
		return err
	}
	for _, src := range sources {
		delete(r.wc, src)
	}
	return nil
}

func (r *Repo) Copy(_ context.Context, sources []string, target string) error {
	for _, src := range sources {
		content, ok := r.wc[src]
		if !ok {
			return fmt.Errorf("%s: no such file", src)
		}
		r.wc[path.Join(target, path.Base(src))] = content
	}
	return nil
}

func (r *Repo) Remove(_ context.Context, p string) error {
	if _, ok := r.wc[p]; !ok {
		return fmt.Errorf("%s: no such file", p)
	}
	delete(r.wc, p)
	return nil
}

func (r *Repo) Commit(_ context.Context, message string, _ bool) (string, error) {
	if r.merged == "" && sameFiles(r.wc, r.commits[r.parent].files) {
		return "", vcs.ErrNoChanges
	}
	parents := []string{r.parent}
	if r.merged != "" {
		parents = append(parents, r.merged)
	}
	id := r.newCommit(message, parents)
	r.parent = id
	r.merged = ""
	r.Messages = append(r.Messages, message)
	return id, nil
}

func (r *Repo) Merge(_ context.Context, rev string) error {
	if r.MergeConflict {
		return fmt.Errorf("unresolved merge conflicts (see hg resolve)")
	}
	c, ok := r.commits[rev]
	if !ok {
		return fmt.Errorf("unknown revision %q", rev)
	}
	for p, content := range c.files {
		r.wc[p] = content
	}
	r.merged = rev
	return nil
}

func (r *Repo) SetMarker(_ context.Context, name, rev string, _ bool) error {
	if _, ok := r.commits[rev]; !ok {
		return fmt.Errorf("unknown revision %q", rev)
	}
	r.markers[name] = rev
	return nil
}

func (r *Repo) MarkerExists(_ context.Context, name string) (bool, error) {
	_, ok := r.markers[name]
	return ok, nil
}

func (r *Repo) DeleteMarker(_ context.Context, name string) error {
	if _, ok := r.markers[name]; !ok {
		return fmt.Errorf("no marker %q", name)
	}
	delete(r.markers, name)
	return nil
}

func (r *Repo) ListMarkers(context.Context) (map[string]string, error) {
	markers := make(map[string]string, len(r.markers))
	for name, rev := range r.markers {
		markers[name] = rev
	}
	return markers, nil
}

func (r *Repo) PruneHistory(_ context.Context, rev string) error {
	if r.FailPrune != nil {
		return r.FailPrune
	}
	r.Pruned = append(r.Pruned, rev)
	return nil
}

func (r *Repo) IsAncestor(_ context.Context, a, b string) (bool, error) {
	seen := map[string]bool{}
	queue := []string{b}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == a {
			return true, nil
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		if c, ok := r.commits[cur]; ok {
			queue = append(queue, c.parents...)
		}
	}
	return false, nil
}

var _ vcs.Repo = &Repo{}

func sameFiles(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for p, content := range a {
		if b[p] != content {
			return false
		}
	}
	return true
}

func copyFiles(files map[string]string) map[string]string {
	out := make(map[string]string, len(files))
	for p, content := range files {
		out[p] = content
	}
	return out
}
