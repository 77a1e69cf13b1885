package goSession

import "time"

// Claims is the verified content of a credential.
type Claims struct {
	Subject   string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RateLimitResult is the outcome of one RateLimitCheck.
//
// Remaining is the budget left after this hit; ResetAfter is how long until
// the window resets and doubles as the retry hint for rejected hits.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration
}

// RetryAfterSeconds rounds ResetAfter up to whole seconds.
func (r RateLimitResult) RetryAfterSeconds() int {
	if r.ResetAfter <= 0 {
		return 0
	}
	secs := int(r.ResetAfter / time.Second)
	if r.ResetAfter%time.Second != 0 {
		secs++
	}
	return secs
}

// BackendInfo records the outcome of backend selection.
type BackendInfo struct {
	// Name is the store's name: "redis" or "memory".
	Name string
	// Remote is true when the networked backend is in use.
	Remote bool
	// FallbackReason explains why the in-process store was chosen. Empty
	// when Remote is true.
	FallbackReason string
	// SelectedAt is when Build made the choice.
	SelectedAt time.Time
}

// Session is a server-side session record.
type Session struct {
	ID        string
	UserID    string
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}
