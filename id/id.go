// Package id generates and validates job identifiers.
//
// Identifiers are UUIDv7 values rendered as "prefix_uuid". UUIDv7 embeds a
// millisecond timestamp, so identifiers created later sort after earlier
// ones, while remaining opaque strings to every store.
package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Prefix identifies the entity type encoded in an identifier.
type Prefix string

// PrefixJob is the prefix of job identifiers.
const PrefixJob Prefix = "job"

const separator = "_"

// New generates a new identifier with the given prefix.
// It panics if the system random source fails (programming or platform error).
func New(prefix Prefix) string {
	u, err := uuid.NewV7()
	if err != nil {
		panic(fmt.Sprintf("id: generate %q: %v", prefix, err))
	}
	return string(prefix) + separator + u.String()
}

// NewJobID returns a fresh job identifier.
func NewJobID() string { return New(PrefixJob) }

// ParseWithPrefix validates that s is an identifier carrying the expected
// prefix and returns it unchanged.
func ParseWithPrefix(s string, expected Prefix) (string, error) {
	if s == "" {
		return "", fmt.Errorf("id: parse %q: empty string", s)
	}
	prefix, suffix, ok := strings.Cut(s, separator)
	if !ok {
		return "", fmt.Errorf("id: parse %q: missing prefix", s)
	}
	if Prefix(prefix) != expected {
		return "", fmt.Errorf("id: expected prefix %q, got %q", expected, prefix)
	}
	if _, err := uuid.Parse(suffix); err != nil {
		return "", fmt.Errorf("id: parse %q: %w", s, err)
	}
	return s, nil
}

// ParseJobID validates a job identifier.
func ParseJobID(s string) (string, error) { return ParseWithPrefix(s, PrefixJob) }
