// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package errs implements the error type narwhal returns across every
// layer: a kind (one of the handful of categories narwhal's protocol can
// fail with), an optional message, and an optional wrapped cause. Errors
// can be chained, so an I/O failure deep in the state file codec still
// carries its os.PathError cause up through the retry loop.
//
// Programmer errors (malformed state file, empty identity override) are
// deliberately not representable here; those go through package must
// instead, since they are contract violations rather than conditions a
// caller can recover from.
package errs

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"syscall"
)

// Separator is inserted between chained errors in an Error's message.
var Separator = ":\n\t"

// Kind classifies an Error into one of the categories narwhal's callers
// can act on.
type Kind int

const (
	// Other indicates an unclassified error.
	Other Kind = iota
	// IO indicates a filesystem operation failed for a reason other than
	// the target not existing.
	IO
	// Timeout indicates the filesystem mutex could not be acquired before
	// Config.Timeout elapsed.
	Timeout
	// Unsupported indicates the calling (host, pid) asked for something
	// inconsistent with its existing state-file entry: a second acquire
	// while already holding a lock, a mode change, or a release while not
	// holding one.
	Unsupported
)

var kinds = map[Kind]string{
	Other:       "unknown error",
	IO:          "i/o error",
	Timeout:     "timed out waiting for lock",
	Unsupported: "unsupported request",
}

// String returns a human-readable description of the error kind k.
func (k Kind) String() string {
	return kinds[k]
}

// kindErrnos mirrors the errno values narwhal's C ancestor set: ETIMEDOUT
// on a mutex-acquisition timeout, ENOTSUP on an unsupported request.
var kindErrnos = map[Kind]syscall.Errno{
	Timeout:     syscall.ETIMEDOUT,
	Unsupported: syscall.ENOTSUP,
}

// Errno returns the errno value conventionally associated with k, or false
// if there is no good match.
func (k Kind) Errno() (syscall.Errno, bool) {
	errno, ok := kindErrnos[k]
	return errno, ok
}

// Error is narwhal's standard error type. Errors should be constructed
// with E, which interprets its arguments according to a small set of
// rules.
type Error struct {
	// Kind is the error's category.
	Kind Kind
	// Message is an optional human-readable annotation.
	Message string
	// Err is the error that caused this one, if any. Chains of *Error
	// print in full via Error().
	Err error
}

// E constructs an error from the provided arguments:
//
//   - Kind sets the Error's kind.
//   - string sets (or appends to) the Error's message.
//   - error sets the Error's cause.
//
// If no Kind is given but a cause is, E classifies it: a cause
// implementing `Timeout() bool` that returns true becomes Kind Timeout.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errs.E: no args")
	}
	e := new(Error)
	var msg strings.Builder
	for _, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
		case string:
			if msg.Len() > 0 {
				msg.WriteString(" ")
			}
			msg.WriteString(arg)
		case *Error:
			cp := *arg
			if len(args) == 1 {
				return &cp
			}
			e.Err = &cp
		case error:
			e.Err = arg
		default:
			_, file, line, _ := runtime.Caller(1)
			return &Error{
				Kind:    Other,
				Message: fmt.Sprintf("errs.E: bad argument (type %T) from %s:%d: %v", arg, file, line, arg),
			}
		}
	}
	e.Message = msg.String()
	if e.Err == nil {
		return e
	}
	if prev, ok := e.Err.(*Error); ok {
		if prev.Kind == e.Kind || e.Kind == Other {
			e.Kind = prev.Kind
			prev.Kind = Other
		}
		return e
	}
	if e.Kind == Other {
		if t, ok := e.Err.(interface{ Timeout() bool }); ok && t.Timeout() {
			e.Kind = Timeout
		}
	}
	return e
}

// Error returns a human-readable description of e, chaining any cause.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b bytes.Buffer
	e.writeError(&b)
	return b.String()
}

func (e *Error) writeError(b *bytes.Buffer) {
	if e.Message != "" {
		pad(b, ": ")
		b.WriteString(e.Message)
	}
	if e.Kind != Other {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Err == nil {
		return
	}
	if err, ok := e.Err.(*Error); ok {
		pad(b, Separator)
		b.WriteString(err.Error())
	} else {
		pad(b, ": ")
		b.WriteString(e.Err.Error())
	}
}

// Timeout reports whether e is a timeout error, satisfying the
// conventional `interface{ Timeout() bool }`.
func (e *Error) Timeout() bool {
	return e.Kind == Timeout
}

// Unwrap returns e's cause, if any, enabling interoperability with the
// standard library's errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether err is the standard-library errno conventionally
// associated with e.Kind, so callers that never imported this package can
// still write errors.Is(err, syscall.ETIMEDOUT).
func (e *Error) Is(err error) bool {
	if err == nil {
		return false
	}
	if errno, ok := e.Kind.Errno(); ok {
		return errors.Is(err, errno)
	}
	return false
}

// Recover wraps err in an *Error if it is not already one.
func Recover(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return E(err).(*Error)
}

// Is reports whether err's kind (or the kind of any *Error in its chain)
// equals kind.
func Is(kind Kind, err error) bool {
	if err == nil {
		return false
	}
	return is(kind, Recover(err))
}

func is(kind Kind, e *Error) bool {
	if e.Kind != Other {
		return e.Kind == kind
	}
	if e.Err != nil {
		if e2, ok := e.Err.(*Error); ok {
			return is(kind, e2)
		}
	}
	return false
}

// Match reports whether every nonempty field of err1 matches the
// corresponding field of err2. Intended for tests.
func Match(err1, err2 error) bool {
	e1, e2 := Recover(err1), Recover(err2)
	if e1.Kind != Other && e1.Kind != e2.Kind {
		return false
	}
	if e1.Message != "" && e1.Message != e2.Message {
		return false
	}
	if e1.Err != nil {
		if e2.Err == nil {
			return false
		}
		if _, ok := e1.Err.(*Error); ok {
			return Match(e1.Err, e2.Err)
		}
		return e1.Err.Error() == e2.Err.Error()
	}
	return true
}

// New is synonymous with the standard library's errors.New, provided here
// so callers need only import one errors package.
func New(msg string) error {
	return errors.New(msg)
}

func pad(b *bytes.Buffer, s string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(s)
}

// IsNotExist reports whether err indicates a nonexistent file, looking
// through any *Error wrapping.
func IsNotExist(err error) bool {
	return os.IsNotExist(err) || errors.Is(err, os.ErrNotExist)
}
