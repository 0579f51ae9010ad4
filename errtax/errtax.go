// Package errtax is the error taxonomy of the dataflow graph runtime:
// Shape errors (programmer errors, reported at the call site), Resource
// errors, Graph errors (deferred, surfaced through the traversal cache's
// error queue), and Logic errors (internal corruption, not reachable
// from well-behaved callers).
//
// Shape, Resource, and Graph sentinels follow the teacher's discipline:
// package-level `var Err... = errors.New(...)`, checked with errors.Is,
// never stringified with caller context at the definition site. Logic
// errors additionally carry a stack trace (github.com/pkg/errors) since
// they are meant to be inspected post-mortem rather than branched on.
package errtax

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Shape errors: programmer errors, reported synchronously at the API
// entry point. The graph is left unchanged.
var (
	ErrInvalidHandle             = errors.New("errtax: invalid handle")
	ErrInvalidPort               = errors.New("errtax: invalid port")
	ErrPortArrayIndexRequired    = errors.New("errtax: port-array index required")
	ErrPortArrayIndexNotAllowed  = errors.New("errtax: port-array index not allowed on a scalar port")
	ErrIndexOutOfRange           = errors.New("errtax: index out of range")
	ErrCategoryMismatch          = errors.New("errtax: port category mismatch")
	ErrTypeMismatch              = errors.New("errtax: port element type mismatch")
	ErrNotAPortArray             = errors.New("errtax: port is not a port-array")
	ErrMultipleDataInputs        = errors.New("errtax: multiple data inputs on one port")
	ErrAlreadyConnected          = errors.New("errtax: data input already connected")
	ErrConnectionExists          = errors.New("errtax: connection already exists")
	ErrConnectionMissing         = errors.New("errtax: connection not found")
	ErrPortHasBuffers            = errors.New("errtax: port carries embedded buffers")
	ErrNotADataPort              = errors.New("errtax: port is not a data port")
	ErrFeedbackOnNonData         = errors.New("errtax: feedback edge requires a data port")
	ErrNotRegisteredForUpdate    = errors.New("errtax: node not registered for update")
	ErrAlreadyRegisteredForUpdate = errors.New("errtax: node already registered for update")
	ErrEmitThroughForwardedPort  = errors.New("errtax: emit through a forwarded port")
)

// Resource errors.
var (
	ErrOutOfMemory      = errors.New("errtax: out of memory")
	ErrPoolSizeExceeded = errors.New("errtax: pool size exceeded")
)

// Graph errors: deferred, collected during a traversal-cache refresh and
// drained by the render graph at the next sync.
var (
	ErrCycles            = errors.New("errtax: cycle detected under the traversal mask")
	ErrUnrelatedHierarchy = errors.New("errtax: alternate hierarchy unreachable under the traversal mask")
)

// Logic errors: internal corruption. Not reachable from well-behaved
// callers; fatal to the frame when they occur.
var (
	ErrBrokenList            = errors.New("errtax: broken intrusive list")
	ErrMissingReplacement    = errors.New("errtax: forwarding entry has no replacement")
	ErrDanglingArraySizeEntry = errors.New("errtax: dangling port-array size entry")
)

// Wrapf attaches call-site context to a Shape/Resource/Graph sentinel
// without losing errors.Is compatibility, mirroring the teacher's
// builder.builderErrorf convention.
func Wrapf(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)
}

// Logic wraps a Logic-kind sentinel with a stack trace, for errors that
// indicate the graph has already been corrupted and are meant to be
// inspected after the fact rather than branched on.
func Logic(sentinel error, context string) error {
	return pkgerrors.WithMessage(pkgerrors.WithStack(sentinel), context)
}

// StackTrace extracts the pkg/errors stack trace attached by Logic, if
// any, formatted as a slice of "file:line" frames. Returns nil if err
// was not produced by Logic.
func StackTrace(err error) []string {
	type stackTracer interface {
		StackTrace() pkgerrors.StackTrace
	}
	var st stackTracer
	for e := err; e != nil; {
		if s, ok := e.(stackTracer); ok {
			st = s
			break
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	if st == nil {
		return nil
	}
	frames := st.StackTrace()
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, fmt.Sprintf("%+s:%d", f, f))
	}

	return out
}
