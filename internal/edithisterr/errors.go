// Package edithisterr defines the typed error kinds raised by the edit
// history engine, so callers can branch on failure category without
// string-matching error text.
package edithisterr

import (
	"errors"
	"fmt"
)

// Kind classifies an error raised by the engine.
type Kind string

const (
	// WorkspaceNotFound means no .mcp/ or .git/ directory was found on the
	// ancestor chain from the starting directory.
	WorkspaceNotFound Kind = "workspace_not_found"
	// AccessDenied means a path escapes the workspace, directly or via
	// symlink resolution.
	AccessDenied Kind = "access_denied"
	// LockTimeout means a lock could not be acquired before the deadline.
	LockTimeout Kind = "lock_timeout"
	// LogCorruption means a log line failed to parse.
	LogCorruption Kind = "log_corruption"
	// AmbiguousIdentifier means a short id prefix matched more than one
	// entry or conversation.
	AmbiguousIdentifier Kind = "ambiguous_identifier"
	// PatchFailed means the external patch tool refused to apply a diff.
	PatchFailed Kind = "patch_failed"
	// ExternalModification means a tracked file's hash no longer matches
	// the last recorded hash_after.
	ExternalModification Kind = "external_modification"
	// ReconstructionFailed means a reconstruction walk could not complete.
	ReconstructionFailed Kind = "reconstruction_failed"
	// IO covers filesystem failures not captured by a more specific kind.
	IO Kind = "io"
)

// Error is a typed error carrying a Kind alongside the usual message and
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind, wrapping an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is, or wraps, an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
