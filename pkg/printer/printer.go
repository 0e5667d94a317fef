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

// Package printer defines utilities to display hgsubtree CLI output.
package printer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mrzv/hgsubtree/internal/types"
)

// Printer defines capabilities to display content in the hgsubtree CLI.
// The main intention, at the moment, is to abstract away printing
// output in the CLI so that we can evolve the CLI UX.
type Printer interface {
	Printf(format string, args ...interface{})
	OptPrintf(opt *Options, format string, args ...interface{})
	OutStream() io.Writer
	ErrStream() io.Writer
}

// Options are optional options for printer
type Options struct {
	// Subtree is the name of the subtree the message refers to.
	Subtree types.SubtreeName
}

// NewOpt returns a pointer to new options
func NewOpt() *Options {
	return &Options{}
}

// Sub sets the subtree name in options
func (opt *Options) Sub(n types.SubtreeName) *Options {
	opt.Subtree = n
	return opt
}

// New returns an instance of Printer.
func New(outStream, errStream io.Writer) Printer {
	if outStream == nil {
		outStream = os.Stdout
	}
	if errStream == nil {
		errStream = os.Stderr
	}
	return &printer{
		outStream: outStream,
		errStream: errStream,
	}
}

// printer implements the default Printer to be used in the hgsubtree codebase.
type printer struct {
	outStream io.Writer
	errStream io.Writer
}

// The key type is unexported to prevent collisions with context keys defined in
// other packages.
type contextKey int

// printerKey is the context key for the printer.  Its value of zero is
// arbitrary.  If this package defined other context keys, they would have
// different integer values.
const printerKey contextKey = 0

// OutStream returns the StdOut stream, this can be used by callers to print
// command output to stdout, do not print error/debug logs to this stream
func (pr *printer) OutStream() io.Writer {
	return pr.outStream
}

// ErrStream returns the StdErr stream, this can be used by callers to print
// command output to stderr, print only error/debug/info logs to this stream
func (pr *printer) ErrStream() io.Writer {
	return pr.errStream
}

// Printf is the wrapper over fmt.Printf that displays the output.
// this will print messages to stderr stream
func (pr *printer) Printf(format string, args ...interface{}) {
	fmt.Fprintf(pr.errStream, format, args...)
}

// OptPrintf is the wrapper over fmt.Printf that displays the output according
// to the opt, this will print messages to stderr stream
func (pr *printer) OptPrintf(opt *Options, format string, args ...interface{}) {
	if opt == nil {
		fmt.Fprintf(pr.errStream, format, args...)
		return
	}
	if !opt.Subtree.Empty() {
		format = fmt.Sprintf("subtree %q: ", string(opt.Subtree)) + format
	}
	fmt.Fprintf(pr.errStream, format, args...)
}

// Helper functions to set and retrieve printer instance from a context.
// Defining them here avoids the context key collision.

// FromContextOrDie returns the printer instance associated with the context.
func FromContextOrDie(ctx context.Context) Printer {
	pr, ok := ctx.Value(printerKey).(Printer)
	if ok {
		return pr
	}
	panic("printer missing in context")
}

// WithContext creates new context from the given parent context
// by setting the printer instance.
func WithContext(ctx context.Context, pr Printer) context.Context {
	return context.WithValue(ctx, printerKey, pr)
}
