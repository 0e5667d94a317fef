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
	"fmt"

	"github.com/mrzv/hgsubtree/internal/errors"
	"github.com/mrzv/hgsubtree/internal/vcs/hg"
)

//nolint:gochecknoinits
func init() {
	AddErrorResolver(&structuredErrorResolver{})
}

// structuredErrorResolver renders *errors.Error values. It is registered
// after the more specific resolvers, so it only fires when none of them
// recognized the chain.
type structuredErrorResolver struct{}

func (*structuredErrorResolver) Resolve(err error) (ResolvedResult, bool) {
	var structured *errors.Error
	if !errors.As(err, &structured) {
		return ResolvedResult{}, false
	}
	// Defer to the hg resolver when the chain bottoms out in an exec
	// failure; it renders the command output.
	var execErr *hg.ExecError
	if errors.As(err, &execErr) {
		return ResolvedResult{}, false
	}
	return ResolvedResult{
		Message: fmt.Sprintf("Error: %s", structured.Error()),
	}, true
}
