package kv

import "strings"

// Category is the second segment of every physical key.
type Category string

const (
	CategorySession   Category = "session"
	CategoryBlacklist Category = "blacklist"
	CategoryOnline    Category = "online"
	CategoryActivity  Category = "activity"
	CategoryCache     Category = "cache"
	CategoryRateLimit Category = "ratelimit"
)

// DefaultPrefix is used when a Keyspace is built with an empty prefix.
const DefaultPrefix = "gosession"

// Keyspace builds namespaced keys of the form <prefix>:<category>:<id>.
type Keyspace struct {
	prefix string
}

// NewKeyspace returns a Keyspace rooted at prefix. Surrounding colons and
// whitespace are trimmed.
func NewKeyspace(prefix string) Keyspace {
	prefix = strings.Trim(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Keyspace{prefix: prefix}
}

// Prefix returns the application prefix.
func (k Keyspace) Prefix() string {
	if k.prefix == "" {
		return DefaultPrefix
	}
	return k.prefix
}

// Key joins the category and id parts under the application prefix.
func (k Keyspace) Key(category Category, parts ...string) string {
	var b strings.Builder
	n := len(k.Prefix()) + len(category) + 2
	for _, p := range parts {
		n += len(p) + 1
	}
	b.Grow(n)

	b.WriteString(k.Prefix())
	b.WriteByte(':')
	b.WriteString(string(category))
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

var idEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// EscapeID encodes an id for use as a single key segment. Colons and
// percent signs are percent-encoded, so an escaped id never spans segments.
// Ids without either character are returned unchanged.
func EscapeID(id string) string {
	if !strings.ContainsAny(id, "%:") {
		return id
	}
	return idEscaper.Replace(id)
}

// CategoryPrefix returns "<prefix>:<category>:" for prefix scans.
func (k Keyspace) CategoryPrefix(category Category) string {
	return k.Key(category) + ":"
}
