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

// Package types defines the basic types used by the hgsubtree codebase.
package types

import (
	"os"
	"path/filepath"
	"strings"
)

// UniquePath represents the absolute unique OS-defined path to the host
// repository root on the filesystem.
type UniquePath string

// String returns the absolute path in string format.
func (u UniquePath) String() string {
	return string(u)
}

// RelativePath returns the relative path to the current working directory.
func (u UniquePath) RelativePath() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	rPath, err := filepath.Rel(cwd, string(u))
	if err != nil {
		return string(u), err
	}
	if strings.HasPrefix(rPath, "..") {
		return string(u), nil
	}
	return rPath, nil
}

// Empty returns true if the path is empty.
func (u UniquePath) Empty() bool {
	return len(u) == 0
}

// SubtreeName is the unique key of a configured subtree import.
type SubtreeName string

// String returns the subtree name in string format.
func (n SubtreeName) String() string {
	return string(n)
}

// Empty returns true if the name is empty.
func (n SubtreeName) Empty() bool {
	return len(n) == 0
}
