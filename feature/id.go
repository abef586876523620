// Package feature defines the identity and type model for feature flags:
// feature IDs, stable user IDs, value kinds, versions, axes, evaluation
// contexts, and the namespace declaration builder that produces the
// compiled schema consumed by the codec.
package feature

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// idPrefix is the leading segment of every serialized feature ID.
const idPrefix = "feature"

// idSeparator joins the prefix, namespace seed, and property name.
const idSeparator = "::"

// ID is the globally unique identifier of a feature, of the form
// feature::<namespace-seed>::<property-name>. IDs are derived
// deterministically at declaration time; equality is byte-wise and the
// natural string order is stable across processes.
type ID string

// NewID derives a feature ID from a namespace seed and a property name.
func NewID(seed, name string) ID {
	return ID(idPrefix + idSeparator + seed + idSeparator + name)
}

// ParseID validates the wire shape of a feature ID and returns its seed
// and property name components.
func ParseID(s string) (seed, name string, err error) {
	parts := strings.Split(s, idSeparator)
	if len(parts) != 3 || parts[0] != idPrefix || parts[1] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("malformed feature id %q (want feature::<seed>::<name>)", s)
	}
	return parts[1], parts[2], nil
}

// Seed returns the namespace-seed component of the ID, or "" if the ID
// is malformed.
func (id ID) Seed() string {
	seed, _, _ := ParseID(string(id))
	return seed
}

// Name returns the property-name component of the ID, or "" if the ID
// is malformed.
func (id ID) Name() string {
	_, name, _ := ParseID(string(id))
	return name
}

// HexID is a stable user or session identifier carried as a hex string.
// A valid HexID round-trips through hex decode/encode unchanged.
type HexID string

// ParseHexID validates that s is canonical hex (even length, lowercase,
// decode/encode round-trip identity) and returns it as a HexID.
func ParseHexID(s string) (HexID, error) {
	if s == "" {
		return "", fmt.Errorf("hex id must not be empty")
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("invalid hex id %q: %w", s, err)
	}
	if enc := hex.EncodeToString(raw); enc != s {
		return "", fmt.Errorf("invalid hex id %q: not canonical (round-trips to %q)", s, enc)
	}
	return HexID(s), nil
}
