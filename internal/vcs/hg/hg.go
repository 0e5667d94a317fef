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

// Package hg adapts a local Mercurial repository to the vcs.Repo
// capability set by shelling out to the hg executable.
package hg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/mrzv/hgsubtree/internal/errors"
	"github.com/mrzv/hgsubtree/internal/vcs"
)

// NewLocalRunner returns a new LocalRunner for the given directory.
func NewLocalRunner(dir string) (*LocalRunner, error) {
	const op errors.Op = "hg.NewLocalRunner"
	p, err := exec.LookPath("hg")
	if err != nil {
		return nil, errors.E(op, errors.Vcs,
			fmt.Errorf("no 'hg' program on path: %w", err))
	}

	return &LocalRunner{
		hgPath: p,
		Dir:    dir,
	}, nil
}

// LocalRunner runs hg commands in a local Mercurial repo.
type LocalRunner struct {
	// Path to the hg executable.
	hgPath string

	// Dir is the directory the commands are run in.
	Dir string
}

type RunResult struct {
	Stdout string
	Stderr string
}

// Run runs an hg command.
// Omit the 'hg' part of the command.
// The first return value contains the output to Stdout and Stderr when
// running the command.
func (r *LocalRunner) Run(ctx context.Context, command string, args ...string) (RunResult, error) {
	const op errors.Op = "hg.run"

	fullArgs := append([]string{command}, args...)
	cmd := exec.CommandContext(ctx, r.hgPath, fullArgs...)
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(),
		// Keep output parseable regardless of the operator's hgrc.
		"HGPLAIN=1")

	cmdStdout := &bytes.Buffer{}
	cmdStderr := &bytes.Buffer{}
	cmd.Stdout = cmdStdout
	cmd.Stderr = cmdStderr

	err := cmd.Run()
	if err != nil {
		return RunResult{}, errors.E(op, errors.Vcs, &ExecError{
			Command: command,
			Args:    args,
			Err:     err,
			StdOut:  cmdStdout.String(),
			StdErr:  cmdStderr.String(),
		})
	}
	return RunResult{
		Stdout: cmdStdout.String(),
		Stderr: cmdStderr.String(),
	}, nil
}

// ExecError is the error returned when the hg executable fails.
type ExecError struct {
	Command string
	Args    []string
	Err     error
	StdErr  string
	StdOut  string
}

func (e *ExecError) Error() string {
	b := new(strings.Builder)
	b.WriteString(e.Err.Error())
	b.WriteString(": ")
	b.WriteString(e.StdErr)
	return b.String()
}

// NewRepo locates the Mercurial repository containing dir and returns an
// adapter for it. All commands run at the repository root, not the
// current working directory.
func NewRepo(ctx context.Context, dir string) (*Repo, error) {
	const op errors.Op = "hg.NewRepo"
	runner, err := NewLocalRunner(dir)
	if err != nil {
		return nil, errors.E(op, err)
	}
	rr, err := runner.Run(ctx, "root")
	if err != nil {
		return nil, errors.E(op, err)
	}
	runner.Dir = strings.TrimSpace(rr.Stdout)
	return &Repo{runner: runner}, nil
}

// Repo implements vcs.Repo against a local Mercurial repository.
type Repo struct {
	runner *LocalRunner
}

var _ vcs.Repo = &Repo{}

func (r *Repo) Root() string {
	return r.runner.Dir
}

func (r *Repo) Status(ctx context.Context) (vcs.Status, error) {
	const op errors.Op = "hg.Status"
	rr, err := r.runner.Run(ctx, "status", "--all")
	if err != nil {
		return vcs.Status{}, errors.E(op, err)
	}

	var st vcs.Status
	scanner := bufio.NewScanner(strings.NewReader(rr.Stdout))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 3 {
			continue
		}
		path := line[2:]
		switch line[0] {
		case 'M':
			st.Modified = append(st.Modified, path)
		case 'A':
			st.Added = append(st.Added, path)
		case 'R':
			st.Removed = append(st.Removed, path)
		case '!':
			st.Deleted = append(st.Deleted, path)
		case '?':
			st.Unknown = append(st.Unknown, path)
		case 'I':
			st.Ignored = append(st.Ignored, path)
		case 'C':
			st.Clean = append(st.Clean, path)
		}
	}
	return st, nil
}

func (r *Repo) Pull(ctx context.Context, source, rev string) (string, error) {
	const op errors.Op = "hg.Pull"
	args := []string{"--force", source}
	if rev != "" {
		args = append(args, "--rev", rev)
	}
	if _, err := r.runner.Run(ctx, "pull", args...); err != nil {
		return "", errors.E(op, err)
	}
	return r.Tip(ctx)
}

func (r *Repo) Tip(ctx context.Context) (string, error) {
	const op errors.Op = "hg.Tip"
	rr, err := r.runner.Run(ctx, "log", "--rev", "tip", "--template", "{node}")
	if err != nil {
		return "", errors.E(op, err)
	}
	return strings.TrimSpace(rr.Stdout), nil
}

func (r *Repo) Parent(ctx context.Context) (string, error) {
	const op errors.Op = "hg.Parent"
	rr, err := r.runner.Run(ctx, "log", "--rev", ".", "--template", "{node}")
	if err != nil {
		return "", errors.E(op, err)
	}
	return strings.TrimSpace(rr.Stdout), nil
}

func (r *Repo) Checkout(ctx context.Context, rev string, clean bool) error {
	const op errors.Op = "hg.Checkout"
	args := []string{"--rev", rev}
	if clean {
		args = append(args, "--clean")
	}
	if _, err := r.runner.Run(ctx, "update", args...); err != nil {
		return errors.E(op, err)
	}
	return nil
}

func (r *Repo) RevertAllToTree(ctx context.Context, rev string) error {
	const op errors.Op = "hg.RevertAllToTree"
	if _, err := r.runner.Run(ctx, "revert", "--all", "--rev", rev); err != nil {
		return errors.E(op, err)
	}
	return nil
}

func (r *Repo) Manifest(ctx context.Context) ([]string, error) {
	const op errors.Op = "hg.Manifest"
	rr, err := r.runner.Run(ctx, "files")
	if err != nil {
		return nil, errors.E(op, err)
	}
	var paths []string
	scanner := bufio.NewScanner(strings.NewReader(rr.Stdout))
	for scanner.Scan() {
		if p := strings.TrimSpace(scanner.Text()); p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

func (r *Repo) Rename(ctx context.Context, sources []string, target string) error {
	const op errors.Op = "hg.Rename"
	args := append(append([]string{"--"}, sources...), target)
	if _, err := r.runner.Run(ctx, "rename", args...); err != nil {
		return errors.E(op, err)
	}
	return nil
}

func (r *Repo) Copy(ctx context.Context, sources []string, target string) error {
	const op errors.Op = "hg.Copy"
	args := append(append([]string{"--"}, sources...), target)
	if _, err := r.runner.Run(ctx, "copy", args...); err != nil {
		return errors.E(op, err)
	}
	return nil
}

func (r *Repo) Remove(ctx context.Context, path string) error {
	const op errors.Op = "hg.Remove"
	if _, err := r.runner.Run(ctx, "remove", "--force", "--", path); err != nil {
		return errors.E(op, err)
	}
	return nil
}

func (r *Repo) Commit(ctx context.Context, message string, edit bool) (string, error) {
	const op errors.Op = "hg.Commit"
	args := []string{"--message", message}
	if edit {
		args = append(args, "--edit")
	}
	if _, err := r.runner.Run(ctx, "commit", args...); err != nil {
		// hg exits non-zero with "nothing changed" when the tree is
		// identical to the parent. The engine needs to see that as a
		// no-op signal, not a failure.
		var execErr *ExecError
		if errors.As(err, &execErr) && strings.Contains(execErr.StdOut, "nothing changed") {
			return "", vcs.ErrNoChanges
		}
		return "", errors.E(op, err)
	}
	return r.Parent(ctx)
}

func (r *Repo) Merge(ctx context.Context, rev string) error {
	const op errors.Op = "hg.Merge"
	if _, err := r.runner.Run(ctx, "merge", "--rev", rev); err != nil {
		return errors.E(op, err)
	}
	return nil
}

func (r *Repo) SetMarker(ctx context.Context, name, rev string, inactive bool) error {
	const op errors.Op = "hg.SetMarker"
	args := []string{"--force", "--rev", rev}
	if inactive {
		args = append(args, "--inactive")
	}
	args = append(args, name)
	if _, err := r.runner.Run(ctx, "bookmark", args...); err != nil {
		return errors.E(op, err)
	}
	return nil
}

func (r *Repo) MarkerExists(ctx context.Context, name string) (bool, error) {
	const op errors.Op = "hg.MarkerExists"
	markers, err := r.ListMarkers(ctx)
	if err != nil {
		return false, errors.E(op, err)
	}
	_, ok := markers[name]
	return ok, nil
}

func (r *Repo) DeleteMarker(ctx context.Context, name string) error {
	const op errors.Op = "hg.DeleteMarker"
	if _, err := r.runner.Run(ctx, "bookmark", "--delete", name); err != nil {
		return errors.E(op, err)
	}
	return nil
}

func (r *Repo) ListMarkers(ctx context.Context) (map[string]string, error) {
	const op errors.Op = "hg.ListMarkers"
	rr, err := r.runner.Run(ctx, "bookmarks", "--template", "{bookmark}\\t{node}\\n")
	if err != nil {
		return nil, errors.E(op, err)
	}
	markers := map[string]string{}
	scanner := bufio.NewScanner(strings.NewReader(rr.Stdout))
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) != 2 {
			continue
		}
		markers[fields[0]] = fields[1]
	}
	return markers, nil
}

func (r *Repo) PruneHistory(ctx context.Context, rev string) error {
	const op errors.Op = "hg.PruneHistory"
	// Only changesets the host cannot reach any other way may go:
	// everything reachable from the working copy, from heads outside the
	// pulled range, or from a bookmark stays.
	doomed := fmt.Sprintf(
		"roots(ancestors(present(%[1]s)) and not ::((head() - heads(ancestors(present(%[1]s)))) + . + bookmark()))",
		rev)
	rr, err := r.runner.Run(ctx, "log", "--rev", doomed, "--template", "{node}\n")
	if err != nil {
		return errors.E(op, err)
	}
	// strip aborts on an empty revision set.
	if strings.TrimSpace(rr.Stdout) == "" {
		return nil
	}
	// The strip extension ships with Mercurial but is off by default.
	if _, err := r.runner.Run(ctx, "--config", "extensions.strip=", "strip",
		"--no-backup", "--rev", doomed); err != nil {
		return errors.E(op, err)
	}
	return nil
}

func (r *Repo) IsAncestor(ctx context.Context, a, b string) (bool, error) {
	const op errors.Op = "hg.IsAncestor"
	rr, err := r.runner.Run(ctx, "log", "--rev",
		fmt.Sprintf("present(%s) and ancestors(%s)", a, b),
		"--template", "{node}")
	if err != nil {
		return false, errors.E(op, err)
	}
	return strings.TrimSpace(rr.Stdout) != "", nil
}
