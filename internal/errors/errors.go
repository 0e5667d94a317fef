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

// Package errors defines the error handling used by the hgsubtree codebase.
package errors

import (
	goerrors "errors"
	"fmt"
	"strings"

	"github.com/mrzv/hgsubtree/internal/types"
)

// Error is an implementation of the error interface used in the hgsubtree
// codebase.
// It is based on the design in https://commandcenter.blogspot.com/2017/12/error-handling-in-upspin.html
type Error struct {
	// Subtree is the name of the subtree involved in the operation.
	Subtree types.SubtreeName

	// Op is the operation being performed, for ex. config.Load, pull.Run
	Op Op

	// Kind refers to the class of error.
	Kind Kind

	// Err refers to the wrapped error (if any).
	Err error
}

func (e *Error) Error() string {
	b := new(strings.Builder)

	if e.Op != "" {
		pad(b, ": ")
		b.WriteString(string(e.Op))
	}

	if e.Subtree != "" {
		pad(b, ": ")
		b.WriteString("subtree ")
		b.WriteString(string(e.Subtree))
	}

	if e.Kind != 0 {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}

	if e.Err != nil {
		if wrappedErr, ok := e.Err.(*Error); ok {
			if !wrappedErr.Zero() {
				pad(b, ":\n\t")
				b.WriteString(wrappedErr.Error())
			}
		} else {
			pad(b, ": ")
			b.WriteString(e.Err.Error())
		}
	}
	if b.Len() == 0 {
		return "no error"
	}
	return b.String()
}

// pad appends given str to the string buffer.
func pad(b *strings.Builder, str string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(str)
}

func (e *Error) Zero() bool {
	return e.Op == "" && e.Subtree == "" && e.Kind == 0 && e.Err == nil
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Op describes the operation being performed.
type Op string

// Kind describes the class of errors encountered.
type Kind int

const (
	Other        Kind = iota // Unclassified. Will not be printed.
	Precondition             // Working copy not in the required state.
	Config                   // Malformed configuration or rule syntax.
	NotFound                 // Named subtree absent from the configuration.
	InvalidParam             // Value is not valid.
	MissingParam             // Required value is missing or empty.
	Vcs                      // Errors from the underlying version control system.
	Prune                    // Non-fatal failure while pruning collapsed history.
	IO                       // Filesystem errors.
	Internal                 // Internal error.
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other error"
	case Precondition:
		return "precondition violated"
	case Config:
		return "configuration error"
	case NotFound:
		return "subtree not found"
	case InvalidParam:
		return "invalid parameter value"
	case MissingParam:
		return "missing parameter value"
	case Vcs:
		return "vcs error"
	case Prune:
		return "prune warning"
	case IO:
		return "io error"
	case Internal:
		return "internal error"
	}
	return "unknown kind"
}

func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errors.E must have at least one argument")
	}

	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case types.SubtreeName:
			e.Subtree = a
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case *Error:
			cp := *a
			e.Err = &cp
		case error:
			e.Err = a
		case string:
			e.Err = fmt.Errorf("%s", a)
		default:
			panic(fmt.Errorf("unknown type %T for value %v in call to errors.E", a, a))
		}
	}

	wrappedErr, ok := e.Err.(*Error)
	if !ok {
		return e
	}

	if e.Subtree == wrappedErr.Subtree {
		wrappedErr.Subtree = ""
	}

	if e.Op == wrappedErr.Op {
		wrappedErr.Op = ""
	}

	if e.Kind == wrappedErr.Kind {
		wrappedErr.Kind = 0
	}

	return e
}

// Is and As delegate to the standard library so callers don't need to
// import both packages.
func Is(err, target error) bool {
	return goerrors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return goerrors.As(err, target)
}

// IsKind reports whether any error in err's chain is an *Error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		e, ok := err.(*Error)
		if ok && e.Kind == kind {
			return true
		}
		err = goerrors.Unwrap(err)
	}
	return false
}
