package download

import "errors"

// Registry-level errors, returned synchronously to callers.
var (
	ErrNotFound          = errors.New("download not found")
	ErrInvalidURL        = errors.New("invalid url")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInsufficientSpace = errors.New("insufficient disk space")
)

// Transfer-level errors. These never propagate to callers directly:
// the session captures them and surfaces them as the Error state of
// the affected download.
var (
	ErrNetwork             = errors.New("network error")
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
	ErrIncompleteTransfer  = errors.New("incomplete transfer")
	ErrIO                  = errors.New("file io error")
)
