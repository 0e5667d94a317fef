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

// Package config contains the typed representation of the .hgsubtree
// configuration file.
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/mrzv/hgsubtree/internal/errors"
	"github.com/mrzv/hgsubtree/internal/types"
)

// DefaultFileName is the name of the configuration file at the host
// repository root.
const DefaultFileName = ".hgsubtree"

// SubtreeSpec describes one configured subtree import. It is constructed
// once per invocation and immutable for the duration of a sync.
type SubtreeSpec struct {
	// Name is the unique key of the subtree.
	Name types.SubtreeName

	// Source is the location of the upstream repository.
	Source string

	// Rev selects a revision to pull instead of the upstream tip.
	Rev string

	// Destination is the raw multi-line rule text describing where the
	// pulled files are placed. Parsed by the destination package.
	Destination string

	// Collapse synthesizes one changeset per sync instead of importing
	// the full upstream history.
	Collapse bool

	// Keep preserves files not matched by any destination rule instead
	// of removing them.
	Keep bool
}

// Load parses the configuration text into subtree specs, preserving the
// declaration order. It fails on malformed syntax and duplicate names.
func Load(data []byte) ([]SubtreeSpec, error) {
	const op errors.Op = "config.Load"

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.E(op, errors.Config, err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, errors.E(op, errors.Config,
			fmt.Errorf("no subtrees configured"))
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, errors.E(op, errors.Config,
			fmt.Errorf("expected a mapping of subtree names, got %s on line %d",
				nodeKind(doc), doc.Line))
	}

	var specs []SubtreeSpec
	seen := map[string]bool{}
	for i := 0; i < len(doc.Content); i += 2 {
		key, value := doc.Content[i], doc.Content[i+1]
		name := key.Value
		if seen[name] {
			return nil, errors.E(op, errors.Config,
				fmt.Errorf("duplicate subtree %q on line %d", name, key.Line))
		}
		seen[name] = true

		spec, err := decodeSpec(name, value)
		if err != nil {
			return nil, errors.E(op, errors.Config, types.SubtreeName(name), err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// decodeSpec decodes one subtree section. Unknown keys are rejected so
// typos surface at load time rather than as silently ignored behavior.
func decodeSpec(name string, node *yaml.Node) (SubtreeSpec, error) {
	spec := SubtreeSpec{Name: types.SubtreeName(name)}
	if node.Kind != yaml.MappingNode {
		return spec, fmt.Errorf("subtree %q must be a mapping, got %s on line %d",
			name, nodeKind(node), node.Line)
	}
	for i := 0; i < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		var err error
		switch key.Value {
		case "source":
			err = value.Decode(&spec.Source)
		case "rev":
			err = value.Decode(&spec.Rev)
		case "destination":
			err = value.Decode(&spec.Destination)
		case "collapse":
			err = value.Decode(&spec.Collapse)
		case "keep":
			err = value.Decode(&spec.Keep)
		default:
			err = fmt.Errorf("unknown key %q on line %d", key.Value, key.Line)
		}
		if err != nil {
			return spec, err
		}
	}
	return spec, nil
}

// Resolve selects the specs for this invocation. If name is given, the
// single matching spec is returned. A source override is only legal when
// exactly one spec is selected.
func Resolve(specs []SubtreeSpec, name string, sourceOverride string) ([]SubtreeSpec, error) {
	const op errors.Op = "config.Resolve"

	if name == "" {
		if sourceOverride != "" {
			return nil, errors.E(op, errors.InvalidParam,
				fmt.Errorf("a source override requires selecting a single subtree by name"))
		}
		return specs, nil
	}

	for _, spec := range specs {
		if spec.Name.String() != name {
			continue
		}
		if sourceOverride != "" {
			spec.Source = sourceOverride
		}
		return []SubtreeSpec{spec}, nil
	}
	return nil, errors.E(op, errors.NotFound, types.SubtreeName(name),
		fmt.Errorf("subtree %q is not configured", name))
}

func nodeKind(node *yaml.Node) string {
	switch node.Kind {
	case yaml.DocumentNode:
		return "a document"
	case yaml.SequenceNode:
		return "a sequence"
	case yaml.MappingNode:
		return "a mapping"
	case yaml.ScalarNode:
		return "a scalar"
	case yaml.AliasNode:
		return "an alias"
	}
	return "an unknown node"
}
