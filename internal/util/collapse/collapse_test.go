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

package collapse_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/mrzv/hgsubtree/internal/util/collapse"
	"github.com/mrzv/hgsubtree/internal/vcs"
	"github.com/mrzv/hgsubtree/internal/vcs/fake"
)

func TestRun_firstCollapseCreatesMarker(t *testing.T) {
	ctx := context.Background()
	repo := fake.New(t.TempDir())
	repo.Seed(map[string]string{"README": "host"})

	repo.QueueUpstream("upstream", map[string]string{"a.c": "int main;"})
	head, err := repo.Pull(ctx, "upstream", "")
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	result, err := Command{
		Repo:       repo,
		Name:       "vendor",
		PulledHead: head,
	}.Run(ctx)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	assert.False(t, result.NoOp)
	assert.NotEmpty(t, result.Commit)

	markers, err := repo.ListMarkers(ctx)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	assert.Equal(t, result.Commit, markers["subtree@vendor"])

	// the synthetic changeset has no ancestry to the pulled history
	assert.Equal(t, []string{vcs.NullRevision}, repo.ParentsOf(result.Commit))
	assert.Equal(t, map[string]string{"a.c": "int main;"}, repo.FilesAt(result.Commit))
}

func TestRun_markerMovesNotMultiplies(t *testing.T) {
	ctx := context.Background()
	repo := fake.New(t.TempDir())
	repo.Seed(map[string]string{"README": "host"})

	var lastCommit string
	for i := 0; i < 3; i++ {
		repo.QueueUpstream("upstream", map[string]string{
			"a.c": fmt.Sprintf("rev %d", i),
		})
		head, err := repo.Pull(ctx, "upstream", "")
		if !assert.NoError(t, err) {
			t.FailNow()
		}
		result, err := Command{
			Repo:       repo,
			Name:       "vendor",
			PulledHead: head,
		}.Run(ctx)
		if !assert.NoError(t, err) {
			t.FailNow()
		}
		assert.False(t, result.NoOp)
		lastCommit = result.Commit
	}

	markers, err := repo.ListMarkers(ctx)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	if !assert.Len(t, markers, 1) {
		t.FailNow()
	}
	assert.Equal(t, lastCommit, markers["subtree@vendor"])
}

func TestRun_identicalTreeIsNoOp(t *testing.T) {
	ctx := context.Background()
	repo := fake.New(t.TempDir())
	repo.Seed(map[string]string{"README": "host"})

	repo.QueueUpstream("upstream", map[string]string{"a.c": "same"})
	head, err := repo.Pull(ctx, "upstream", "")
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	first, err := Command{Repo: repo, Name: "vendor", PulledHead: head}.Run(ctx)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	// a second pull whose tree is identical to the marker's commit
	repo.QueueUpstream("upstream", map[string]string{"a.c": "same"})
	head, err = repo.Pull(ctx, "upstream", "")
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	second, err := Command{Repo: repo, Name: "vendor", PulledHead: head}.Run(ctx)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	assert.True(t, second.NoOp)
	assert.Empty(t, second.Commit)

	markers, err := repo.ListMarkers(ctx)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	assert.Equal(t, first.Commit, markers["subtree@vendor"])
}

func TestRun_stripsSubstructureMetadata(t *testing.T) {
	ctx := context.Background()
	repo := fake.New(t.TempDir())
	repo.Seed(map[string]string{"README": "host"})

	repo.QueueUpstream("upstream", map[string]string{
		"a.c":         "impl",
		".hgsub":      "paths",
		".hgsubstate": "deadbeef sub",
		".hgtags":     "deadbeef 1.0",
	})
	head, err := repo.Pull(ctx, "upstream", "")
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	result, err := Command{Repo: repo, Name: "vendor", PulledHead: head}.Run(ctx)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	assert.Equal(t, map[string]string{"a.c": "impl"}, repo.FilesAt(result.Commit))
}

func TestRun_noStripKeepsSubstructureMetadata(t *testing.T) {
	ctx := context.Background()
	repo := fake.New(t.TempDir())
	repo.Seed(map[string]string{"README": "host"})

	repo.QueueUpstream("upstream", map[string]string{
		"a.c":         "impl",
		".hgsubstate": "deadbeef sub",
	})
	head, err := repo.Pull(ctx, "upstream", "")
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	result, err := Command{
		Repo:       repo,
		Name:       "vendor",
		PulledHead: head,
		NoStrip:    true,
	}.Run(ctx)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	assert.Equal(t, map[string]string{
		"a.c":         "impl",
		".hgsubstate": "deadbeef sub",
	}, repo.FilesAt(result.Commit))
}

func TestRun_pruneFailureIsAWarning(t *testing.T) {
	ctx := context.Background()
	repo := fake.New(t.TempDir())
	repo.Seed(map[string]string{"README": "host"})
	repo.FailPrune = fmt.Errorf("strip: transaction abort")

	repo.QueueUpstream("upstream", map[string]string{"a.c": "x"})
	head, err := repo.Pull(ctx, "upstream", "")
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	result, err := Command{
		Repo:       repo,
		Name:       "vendor",
		PulledHead: head,
		Prune:      true,
	}.Run(ctx)

	// the graft itself succeeded
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	assert.NotEmpty(t, result.Commit)
	if !assert.Error(t, result.PruneErr) {
		t.FailNow()
	}
	assert.Contains(t, result.PruneErr.Error(), "prune warning")

	markers, err := repo.ListMarkers(ctx)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	assert.Equal(t, result.Commit, markers["subtree@vendor"])
}

func TestRun_pruneRunsAfterCommit(t *testing.T) {
	ctx := context.Background()
	repo := fake.New(t.TempDir())
	repo.Seed(map[string]string{"README": "host"})

	repo.QueueUpstream("upstream", map[string]string{"a.c": "x"})
	head, err := repo.Pull(ctx, "upstream", "")
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	result, err := Command{
		Repo:       repo,
		Name:       "vendor",
		PulledHead: head,
		Prune:      true,
	}.Run(ctx)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	assert.NoError(t, result.PruneErr)
	assert.Equal(t, []string{head}, repo.Pruned)
}

func TestMarkerName(t *testing.T) {
	assert.Equal(t, "subtree@vendor", MarkerName("vendor"))
}
