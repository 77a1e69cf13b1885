package internal

import (
	"encoding/base64"
	"testing"
)

func TestNewSessionIDShape(t *testing.T) {
	id, err := NewSessionID()
	if err != nil {
		t.Fatalf("new session id: %v", err)
	}
	if len(id) != 22 {
		t.Fatalf("expected 22-char id, got %d (%q)", len(id), id)
	}
	raw, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		t.Fatalf("id is not base64url: %v", err)
	}
	if len(raw) != SessionIDBytes {
		t.Fatalf("expected %d bytes, got %d", SessionIDBytes, len(raw))
	}
}

func TestSessionIDsAreDistinct(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id, err := NewSessionID()
		if err != nil {
			t.Fatalf("new session id: %v", err)
		}
		if _, dup := seen[id]; dup {
			t.Fatal("duplicate session id")
		}
		seen[id] = struct{}{}
	}
}

func TestRandomIDRejectsNonPositiveLength(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := RandomID(n); err == nil {
			t.Fatalf("expected error for length %d", n)
		}
	}
}
