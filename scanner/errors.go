package scanner

import (
	"errors"
	"fmt"
	"log"
)

// Platform failures reported by libraries. They mirror the media error names
// a camera stack raises and are matched with errors.Is.
var (
	ErrNotAllowed      = errors.New("camera permission denied")
	ErrNotFound        = errors.New("camera not found")
	ErrNotReadable     = errors.New("camera already in use")
	ErrOverconstrained = errors.New("camera constraints not supported")

	// ErrNoCode is returned by a FrameDecoder when a frame holds no symbol.
	ErrNoCode = errors.New("no code in frame")
)

// Reason classifies why a capture could not start.
type Reason int

const (
	ReasonUnknown Reason = iota
	ReasonNotFound
	ReasonBusy
	ReasonDenied
	ReasonUnsupported
)

func (r Reason) String() string {
	switch r {
	case ReasonNotFound:
		return "not found"
	case ReasonBusy:
		return "busy"
	case ReasonDenied:
		return "denied"
	case ReasonUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// StartError is returned by Adapter.Start.
type StartError struct {
	Reason Reason
	Err    error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("start capture (%s): %v", e.Reason, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// LibraryMissingError reports a library symbol that was not provided at
// startup. Only the affected library is unusable.
type LibraryMissingError struct {
	Kind   LibraryKind
	Symbol string
}

func (e *LibraryMissingError) Error() string {
	return fmt.Sprintf("%s library not loaded", e.Symbol)
}

func reasonFor(err error) Reason {
	switch {
	case errors.Is(err, ErrNotAllowed):
		return ReasonDenied
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrNotReadable):
		return ReasonBusy
	case errors.Is(err, ErrOverconstrained):
		return ReasonUnsupported
	default:
		return ReasonUnknown
	}
}

func toStartError(err error) error {
	if err == nil {
		return nil
	}
	var se *StartError
	if errors.As(err, &se) {
		return se
	}
	return &StartError{Reason: reasonFor(err), Err: err}
}

// startWithFallback runs start with the preferred constraints and, if the
// device rejects them, once more with the minimal set.
func startWithFallback(kind LibraryKind, start func(minimal bool) error) error {
	err := start(false)
	if errors.Is(err, ErrOverconstrained) {
		log.Printf("%s: constraints not supported, retrying with basic settings", kind)
		err = start(true)
	}
	return err
}
