// Package errors provides structured error types for para.
// Errors carry the operation that failed and a kind for dispatch,
// so callers can distinguish a git failure from corrupt state.
package errors

import (
	"errors"
	"fmt"
)

// Op describes an operation, usually as "package.function".
type Op string

// Kind categorizes the type of error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindGit covers any failing git invocation against the repository.
	// Merge conflicts are never this kind; they are reported as data.
	KindGit
	// KindInvalidArgs covers malformed requests: empty branches, a feature
	// branch equal to its target, an unknown strategy name.
	KindInvalidArgs
	// KindFileOp covers state-file and scratch-directory I/O failures.
	KindFileOp
	// KindSerialization covers JSON encode/decode failures of persisted
	// state. A corrupt state file is always this kind, never "not found".
	KindSerialization
	// KindSessionNotFound covers continue/abort/recover calls with no
	// matching integration or archived session.
	KindSessionNotFound
	// KindConfig covers configuration load and validation failures.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindGit:
		return "git operation failed"
	case KindInvalidArgs:
		return "invalid arguments"
	case KindFileOp:
		return "file operation failed"
	case KindSerialization:
		return "serialization failed"
	case KindSessionNotFound:
		return "session not found"
	case KindConfig:
		return "configuration error"
	default:
		return "unknown error"
	}
}

// Error is the structured error type for para.
type Error struct {
	Op      Op     // Operation that failed
	Kind    Kind   // Category of error
	Err     error  // Underlying error
	Context string // Additional context
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Context, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// E creates a new Error. Arguments can be:
// - Op: the operation name
// - Kind: the error kind
// - string: context message
// - error: the underlying error
func E(args ...interface{}) error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case string:
			e.Context = a
		case error:
			e.Err = a
		}
	}
	if e.Err == nil {
		e.Err = errors.New(e.Context)
		e.Context = ""
	}
	return e
}

// Is reports whether err is of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// GetKind returns the Kind of an error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Integration errors
func NoActiveIntegration(op string) error {
	return E(Op(op), KindSessionNotFound, "no integration in progress")
}

func IntegrationInProgress(session string) error {
	return E(Op("integrate.Execute"), KindInvalidArgs,
		fmt.Sprintf("an integration for session %q is already in progress; run 'para continue' or 'para abort' first", session))
}

func StateCorrupt(path string, err error) error {
	return E(Op("state.Load"), KindSerialization,
		fmt.Sprintf("integration state file %s is unreadable; inspect it or run 'para clean'", path), err)
}

// Git errors
func GitFailed(op string, err error) error {
	return E(Op(op), KindGit, err)
}

func NotARepository(path string) error {
	return E(Op("git.Discover"), KindGit, fmt.Sprintf("%s is not inside a git repository", path))
}

func BranchNotFound(name string) error {
	return E(Op("git.BranchCommit"), KindGit, fmt.Sprintf("branch %q does not exist", name))
}

// Archive errors
func ArchiveNotFound(session string) error {
	return E(Op("archive.Find"), KindSessionNotFound,
		fmt.Sprintf("no archived branch found for session %q", session))
}

// Config errors
func ConfigLoadFailed(path string, err error) error {
	return E(Op("config.Load"), KindConfig, fmt.Sprintf("failed to load config from %s", path), err)
}

func ConfigInvalid(reason string) error {
	return E(Op("config.Validate"), KindConfig, reason)
}
