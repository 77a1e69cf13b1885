package session

import "time"

// Session is one server-side session record.
type Session struct {
	ID        string         `json:"id" cbor:"id"`
	UserID    string         `json:"user_id" cbor:"user_id"`
	Data      map[string]any `json:"data,omitempty" cbor:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at" cbor:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" cbor:"updated_at"`
}

func cloneData(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
