package rate

import "errors"

var (
	// ErrRateLimited is returned by Enforce when the window is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidLimit is returned for limit < 1, a non-positive window or an empty identifier.
	ErrInvalidLimit = errors.New("invalid rate limit parameters")
)
