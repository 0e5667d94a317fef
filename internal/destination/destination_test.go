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

package destination_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	. "github.com/mrzv/hgsubtree/internal/destination"
	"github.com/mrzv/hgsubtree/internal/errors"
)

func TestParseRules(t *testing.T) {
	text := `
mkdir third_party/lib

move *.c third_party/lib
copy "docs with spaces/*.md" docs
`
	rules, err := ParseRules(text)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	expected := []Rule{
		{Op: Mkdir, Target: "third_party/lib"},
		{Op: Move, Pattern: "*.c", Target: "third_party/lib"},
		{Op: Copy, Pattern: "docs with spaces/*.md", Target: "docs"},
	}
	if diff := cmp.Diff(expected, rules); diff != "" {
		t.Errorf("unexpected rules (-want +got):\n%s", diff)
	}
}

func TestParseRules_errors(t *testing.T) {
	testCases := map[string]struct {
		text string
	}{
		"unknown operation": {
			text: "link *.c third_party\n",
		},
		"mkdir with too many arguments": {
			text: "mkdir a b\n",
		},
		"move without a target": {
			text: "move *.c\n",
		},
		"bad glob pattern": {
			text: "move [x- target\n",
		},
		"unbalanced quote": {
			text: `move "*.c target` + "\n",
		},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			_, err := ParseRules(tc.text)
			if !assert.Error(t, err) {
				t.FailNow()
			}
			assert.True(t, errors.IsKind(err, errors.Config),
				"expected a configuration error, got %v", err)
		})
	}
}

func TestNewPlan(t *testing.T) {
	testCases := map[string]struct {
		rules    string
		manifest []string
		keep     bool
		expected *Plan
	}{
		"unmatched files are removed": {
			rules:    "mkdir third_party/lib\nmove *.c third_party/lib\nmove *.h third_party/lib\n",
			manifest: []string{"a.c", "a.h", "README"},
			expected: &Plan{
				Mkdirs: []string{"third_party/lib"},
				Moves: map[string][]string{
					"third_party/lib": {"a.c", "a.h"},
				},
				Copies:   map[string][]string{},
				Removals: []string{"README"},
			},
		},
		"keep leaves unmatched files untouched": {
			rules:    "move *.c lib\n",
			manifest: []string{"a.c", "README"},
			keep:     true,
			expected: &Plan{
				Moves:  map[string][]string{"lib": {"a.c"}},
				Copies: map[string][]string{},
			},
		},
		"one file can match both a copy and a move": {
			rules:    "copy *.md docs\nmove *.md archive\n",
			manifest: []string{"NOTES.md"},
			expected: &Plan{
				Copies: map[string][]string{"docs": {"NOTES.md"}},
				Moves:  map[string][]string{"archive": {"NOTES.md"}},
			},
		},
		"duplicate mkdirs are collapsed": {
			rules:    "mkdir lib\nmkdir lib\nmove * lib\n",
			manifest: []string{"a"},
			expected: &Plan{
				Mkdirs: []string{"lib"},
				Moves:  map[string][]string{"lib": {"a"}},
				Copies: map[string][]string{},
			},
		},
		"bucket grouping by target": {
			rules:    "move *.c src\nmove *.h src\nmove *.md docs\n",
			manifest: []string{"x.h", "x.c", "x.md"},
			expected: &Plan{
				Moves: map[string][]string{
					"src":  {"x.c", "x.h"},
					"docs": {"x.md"},
				},
				Copies: map[string][]string{},
			},
		},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			rules, err := ParseRules(tc.rules)
			if !assert.NoError(t, err) {
				t.FailNow()
			}
			plan := NewPlan(rules, tc.manifest, tc.keep)
			if diff := cmp.Diff(tc.expected, plan); diff != "" {
				t.Errorf("unexpected plan (-want +got):\n%s", diff)
			}
		})
	}
}

// Every manifest path ends up moved, copied, removed or kept, and the
// plan is identical across repeated runs on the same input.
func TestNewPlan_deterministic(t *testing.T) {
	rules, err := ParseRules("move *.c src\ncopy *.c backup\nmove *.h src\n")
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	// deliberately unsorted manifest
	manifest := []string{"z.c", "a.h", "m.c", "README", "b.c"}

	first := NewPlan(rules, manifest, false)
	second := NewPlan(rules, manifest, false)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("plans differ across runs (-first +second):\n%s", diff)
	}

	assert.Equal(t, []string{"b.c", "m.c", "z.c"}, first.Copies["backup"])
	assert.Equal(t, []string{"a.h", "b.c", "m.c", "z.c"}, first.Moves["src"])
	assert.Equal(t, []string{"README"}, first.Removals)
	assert.Equal(t, []string{"backup"}, first.CopyTargets())
	assert.Equal(t, []string{"src"}, first.MoveTargets())
}
