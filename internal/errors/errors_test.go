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

package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/mrzv/hgsubtree/internal/errors"
	"github.com/mrzv/hgsubtree/internal/types"
)

func TestE_formatting(t *testing.T) {
	testCases := map[string]struct {
		err  error
		want string
	}{
		"op and kind": {
			err:  E(Op("config.Load"), Config, fmt.Errorf("bad yaml")),
			want: "config.Load: configuration error: bad yaml",
		},
		"subtree name included": {
			err:  E(Op("pull.Run"), types.SubtreeName("vendor"), Vcs, fmt.Errorf("boom")),
			want: "pull.Run: subtree vendor: vcs error: boom",
		},
		"nested errors are indented": {
			err: E(Op("pull.Run"), types.SubtreeName("vendor"),
				E(Op("hg.Pull"), Vcs, fmt.Errorf("abort"))),
			want: "pull.Run: subtree vendor:\n\thg.Pull: vcs error: abort",
		},
		"duplicate fields collapse": {
			err: E(Op("pull.Run"), Vcs,
				E(Op("pull.Run"), Vcs, fmt.Errorf("abort"))),
			want: "pull.Run: vcs error:\n\tabort",
		},
	}
	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Error())
		})
	}
}

func TestIsKind(t *testing.T) {
	err := E(Op("pull.Run"), types.SubtreeName("vendor"),
		E(Op("collapse.Run"), Prune, fmt.Errorf("strip failed")))
	assert.True(t, IsKind(err, Prune))
	assert.False(t, IsKind(err, Config))
	assert.False(t, IsKind(fmt.Errorf("plain"), Prune))
	assert.False(t, IsKind(nil, Prune))
}
