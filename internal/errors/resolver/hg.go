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

package resolver

import (
	goerrors "errors"
	"fmt"
	"strings"

	"github.com/mrzv/hgsubtree/internal/vcs/hg"
)

//nolint:gochecknoinits
func init() {
	AddErrorResolver(&hgExecErrorResolver{})
}

const (
	genericHgExecError = `
Error: Failed to execute hg command {{ printf "%q" .hgcmd }}
{{- template "ExecOutputDetails" . }}
`

	mergeConflictError = `
Error: Merging the placement commit hit unresolved conflicts. The working
copy has been left in place; resolve the conflicts and commit manually.
{{- template "ExecOutputDetails" . }}
`
)

// hgExecErrorResolver is an implementation of the ErrorResolver interface
// that can produce error messages for errors of the hg.ExecError type.
type hgExecErrorResolver struct{}

func (*hgExecErrorResolver) Resolve(err error) (ResolvedResult, bool) {
	var execErr *hg.ExecError
	if !goerrors.As(err, &execErr) {
		return ResolvedResult{}, false
	}
	fullCommand := fmt.Sprintf("hg %s %s", execErr.Command,
		strings.Join(execErr.Args, " "))
	tmplArgs := map[string]interface{}{
		"hgcmd":  fullCommand,
		"stdout": execErr.StdOut,
		"stderr": execErr.StdErr,
	}
	switch {
	case strings.Contains(execErr.StdOut, "hg resolve") ||
		strings.Contains(execErr.StdErr, "hg resolve"):
		return ResolvedResult{Message: ExecuteTemplate(mergeConflictError, tmplArgs)}, true
	default:
		return ResolvedResult{Message: ExecuteTemplate(genericHgExecError, tmplArgs)}, true
	}
}
