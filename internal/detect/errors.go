package detect

import "errors"

var (
	// ErrEmptyImage reports a localization call with no pixel data.
	ErrEmptyImage = errors.New("detect: empty image")

	// ErrInvalidMode reports a capture mode the preprocessing stage cannot
	// dispatch on.
	ErrInvalidMode = errors.New("detect: invalid capture mode")

	// ErrNoBallFound reports that the adaptive search exhausted its
	// threshold range, or that scoring rejected every candidate.
	ErrNoBallFound = errors.New("detect: no ball found")
)
