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

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	goerrors "github.com/go-errors/errors"

	"github.com/mrzv/hgsubtree/internal/errors/resolver"
	"github.com/mrzv/hgsubtree/internal/util/cmdutil"
	"github.com/mrzv/hgsubtree/run"
)

func main() {
	os.Exit(runMain(os.Args))
}

// runMain does the real work, but returns an exit code rather than
// calling os.Exit directly so deferred functions still run.
func runMain(args []string) int {
	ctx := context.Background()

	if _, err := exec.LookPath("hg"); err != nil {
		fmt.Fprintln(os.Stderr, "hgsubtree requires that `hg` is installed and on the PATH")
		return 1
	}

	cmd := run.GetMain(ctx)
	cmd.SetArgs(args[1:])
	err := cmd.Execute()
	if err != nil {
		return handleErr(cmd.ErrOrStderr(), err)
	}
	return 0
}

// handleErr takes care of printing an error message for a given error.
func handleErr(w io.Writer, err error) int {
	if cmdutil.PrintErrorStacktrace() {
		fmt.Fprintf(os.Stderr, "%s", goerrors.Wrap(err, 1).ErrorStack())
	}

	// Find the best resolver and use it to produce a message for the
	// operator. If none of the resolvers can handle the error, fall back
	// to the raw text.
	if rr, found := resolver.ResolveError(err); found {
		fmt.Fprintf(w, "%s \n", rr.Message)
		return rr.ExitCode
	}
	fmt.Fprintf(w, "Error: %v \n", err)
	return 1
}
