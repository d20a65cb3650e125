// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package hive

import "fmt"

// Kind classifies an Error per the error taxonomy (spec.md §7). It is a
// machine-readable tag, not a Go type — every surfaced error is the same
// *Error struct with a different Kind.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindStatePrecondition Kind = "state_precondition"
	KindOverloaded      Kind = "overloaded"
	KindTimeout         Kind = "timeout"
	KindDependencyCycle Kind = "dependency_cycle"
	KindTransient       Kind = "transient"
	KindFatal           Kind = "fatal"
)

// Error is the machine-readable error envelope every component boundary
// wraps lower errors into. Message is short and human-facing; Remediation
// is optional guidance; Op/Resource carry the context a caller needs to
// act (operation name, agent/task id).
type Error struct {
	Kind        Kind
	Message     string
	Remediation string
	Op          string
	Resource    string
	RetryAfter  string // set on Overloaded errors as a hint, empty otherwise
	cause       error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind with an operation label and message.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap re-wraps a lower error with component context, preserving the
// original for errors.Is/As while attaching the taxonomy kind required at
// this boundary.
func Wrap(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: cause.Error(), cause: cause}
}

// WithResource attaches the offending resource id (agent/task/tool id).
func (e *Error) WithResource(resource string) *Error {
	e.Resource = resource
	return e
}

// WithRemediation attaches caller-facing guidance.
func (e *Error) WithRemediation(remediation string) *Error {
	e.Remediation = remediation
	return e
}

// WithRetryAfter attaches a retry-after hint, used for Overloaded errors.
func (e *Error) WithRetryAfter(hint string) *Error {
	e.RetryAfter = hint
	return e
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !asError(err, &e) {
		return false
	}
	return e.Kind == kind
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
