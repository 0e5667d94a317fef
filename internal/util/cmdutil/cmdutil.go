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

// Package cmdutil contains helpers shared by the CLI commands.
package cmdutil

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const (
	// StackTraceOnErrors is the environment variable that enables stack
	// traces on failures.
	StackTraceOnErrors = "HGSUBTREE_STACK_TRACE_ON_ERRORS"
	trueString         = "true"
)

// StackOnError if true, will print a stack trace on failure.
var StackOnError bool

// FixDocs replaces instances of old with new in the docs for c.
func FixDocs(old, new string, c *cobra.Command) {
	c.Use = strings.ReplaceAll(c.Use, old, new)
	c.Short = strings.ReplaceAll(c.Short, old, new)
	c.Long = strings.ReplaceAll(c.Long, old, new)
	c.Example = strings.ReplaceAll(c.Example, old, new)
}

// PrintErrorStacktrace reports whether failures should carry a stack
// trace.
func PrintErrorStacktrace() bool {
	e := os.Getenv(StackTraceOnErrors)
	if StackOnError || e == trueString || e == "1" {
		return true
	}
	return false
}
