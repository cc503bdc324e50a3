package cli

import "github.com/edithist/edithist/internal/edithisterr"

// SilentError wraps an error a command has already printed to the user, so
// main doesn't print it a second time — grounded on the teacher's
// cli.SilentError used the same way in setup.go and resume.go.
type SilentError struct {
	Err error
}

// NewSilentError wraps err as a SilentError.
func NewSilentError(err error) *SilentError { return &SilentError{Err: err} }

func (e *SilentError) Error() string { return e.Err.Error() }
func (e *SilentError) Unwrap() error { return e.Err }

// ExitError carries an explicit process exit code, for the cases spec.md
// §6's exit-code table distinguishes from the generic "known error" (1):
// usage errors (2) and user interrupts (130).
type ExitError struct {
	Code int
	Err  error
}

// NewExitError builds an ExitError with the given code.
func NewExitError(code int, err error) *ExitError { return &ExitError{Code: code, Err: err} }

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// Exit codes per spec.md §6.
const (
	ExitOK              = 0
	ExitKnownError      = 1
	ExitUnexpectedError = 2
	ExitUserInterrupt   = 130
)

// ClassifyExit maps an engine error to spec.md §6's exit code table:
// WorkspaceNotFound, LockTimeout, AmbiguousIdentifier, and the other
// "known" kinds are 1; anything else unwraps to the generic 2.
func ClassifyExit(err error) int {
	if err == nil {
		return ExitOK
	}
	switch {
	case edithisterr.Is(err, edithisterr.WorkspaceNotFound),
		edithisterr.Is(err, edithisterr.LockTimeout),
		edithisterr.Is(err, edithisterr.AmbiguousIdentifier),
		edithisterr.Is(err, edithisterr.AccessDenied),
		edithisterr.Is(err, edithisterr.ExternalModification),
		edithisterr.Is(err, edithisterr.ReconstructionFailed),
		edithisterr.Is(err, edithisterr.PatchFailed),
		edithisterr.Is(err, edithisterr.IO):
		return ExitKnownError
	default:
		return ExitUnexpectedError
	}
}
