package driver

import "errors"

// Failure taxonomy. Every failure is fatal to a run; none is retried locally.
var (
	// ErrNotFound: an element or browsing context did not appear within the timeout
	ErrNotFound = errors.New("not found")
	// ErrAmbiguousContext: tab discovery saw more than one new browsing context
	ErrAmbiguousContext = errors.New("ambiguous context")
	// ErrInvalidPosition: a masked-field position is missing, non-numeric or out of bounds
	ErrInvalidPosition = errors.New("invalid position")
	// ErrStaleContext: an operation targeted a closed or unknown browsing context
	ErrStaleContext = errors.New("stale context")
)

// Kind returns the taxonomy name of err, "" for nil and "Unknown" for anything else
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrAmbiguousContext):
		return "AmbiguousContext"
	case errors.Is(err, ErrInvalidPosition):
		return "InvalidPosition"
	case errors.Is(err, ErrStaleContext):
		return "StaleContext"
	}
	return "Unknown"
}
