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

// Package destination parses destination rule blocks and computes the
// placement of pulled files inside the host repository.
package destination

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/shlex"

	"github.com/mrzv/hgsubtree/internal/errors"
)

// Op is the operation of a single destination rule.
type Op string

const (
	Mkdir Op = "mkdir"
	Move  Op = "move"
	Copy  Op = "copy"
)

// Rule is one line of a destination rule block. For Mkdir only Target is
// set; for Move and Copy the Pattern is a shell glob matched against
// manifest-relative paths.
type Rule struct {
	Op      Op
	Pattern string
	Target  string
}

// ParseRules parses a destination rule block into an ordered rule list.
// Blank lines are ignored; each non-blank line is tokenized on whitespace,
// with quoting allowed for paths that contain spaces.
func ParseRules(text string) ([]Rule, error) {
	const op errors.Op = "destination.ParseRules"

	var rules []Rule
	for i, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		tokens, err := shlex.Split(line)
		if err != nil {
			return nil, errors.E(op, errors.Config,
				fmt.Errorf("rule %d: %w", i+1, err))
		}
		if len(tokens) == 0 {
			continue
		}
		rule, err := parseRule(tokens)
		if err != nil {
			return nil, errors.E(op, errors.Config,
				fmt.Errorf("rule %d: %w", i+1, err))
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseRule(tokens []string) (Rule, error) {
	switch Op(tokens[0]) {
	case Mkdir:
		if len(tokens) != 2 {
			return Rule{}, fmt.Errorf("mkdir takes exactly one path, got %d arguments", len(tokens)-1)
		}
		return Rule{Op: Mkdir, Target: tokens[1]}, nil
	case Move, Copy:
		if len(tokens) != 3 {
			return Rule{}, fmt.Errorf("%s takes a pattern and a target, got %d arguments",
				tokens[0], len(tokens)-1)
		}
		// Surface bad glob syntax here rather than mid-sync.
		if _, err := filepath.Match(tokens[1], ""); err != nil {
			return Rule{}, fmt.Errorf("%s: bad pattern %q: %w", tokens[0], tokens[1], err)
		}
		return Rule{Op: Op(tokens[0]), Pattern: tokens[1], Target: tokens[2]}, nil
	}
	return Rule{}, fmt.Errorf("unknown operation %q", tokens[0])
}

// Plan is the computed placement of a manifest. Copies and Moves group
// source files by target because the underlying rename/copy primitives
// operate on multiple sources to one destination in one call.
type Plan struct {
	Mkdirs   []string
	Copies   map[string][]string
	Moves    map[string][]string
	Removals []string
}

// CopyTargets returns the copy targets in a stable order.
func (p *Plan) CopyTargets() []string {
	return sortedKeys(p.Copies)
}

// MoveTargets returns the move targets in a stable order.
func (p *Plan) MoveTargets() []string {
	return sortedKeys(p.Moves)
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NewPlan computes the placement of every manifest path. A path matching
// multiple move/copy rules is assigned to all of them; a path matching
// none is removed unless keep is set, in which case it is left untouched.
// Iteration is sorted so repeated runs on identical inputs produce
// identical operation batches.
func NewPlan(rules []Rule, manifest []string, keep bool) *Plan {
	plan := &Plan{
		Copies: map[string][]string{},
		Moves:  map[string][]string{},
	}

	seenDir := map[string]bool{}
	for _, rule := range rules {
		if rule.Op != Mkdir || seenDir[rule.Target] {
			continue
		}
		seenDir[rule.Target] = true
		plan.Mkdirs = append(plan.Mkdirs, rule.Target)
	}

	paths := make([]string, len(manifest))
	copy(paths, manifest)
	sort.Strings(paths)

	for _, path := range paths {
		matched := false
		for _, rule := range rules {
			if rule.Op == Mkdir {
				continue
			}
			// Pattern validity was checked at parse time.
			ok, _ := filepath.Match(rule.Pattern, path)
			if !ok {
				continue
			}
			matched = true
			switch rule.Op {
			case Move:
				plan.Moves[rule.Target] = append(plan.Moves[rule.Target], path)
			case Copy:
				plan.Copies[rule.Target] = append(plan.Copies[rule.Target], path)
			}
		}
		if !matched && !keep {
			plan.Removals = append(plan.Removals, path)
		}
	}
	return plan
}
