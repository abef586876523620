package feature

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version is an application version (major, minor, patch), totally
// ordered lexicographically.
type Version struct {
	Major uint64 `json:"major"`
	Minor uint64 `json:"minor"`
	Patch uint64 `json:"patch"`
}

// ParseVersion parses a "major.minor.patch" string. Pre-release and
// build metadata are rejected; a version either parses fully or not at
// all.
func ParseVersion(s string) (Version, error) {
	v, err := semver.StrictNewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
	}
	if v.Prerelease() != "" || v.Metadata() != "" {
		return Version{}, fmt.Errorf("invalid version %q: pre-release and build metadata are not supported", s)
	}
	return Version{Major: v.Major(), Minor: v.Minor(), Patch: v.Patch()}, nil
}

// MustParseVersion is ParseVersion for compile-time constants; it
// panics on malformed input.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0, or 1 if v is less than, equal to, or greater
// than o.
func (v Version) Compare(o Version) int {
	if v.Major != o.Major {
		return compareUint(v.Major, o.Major)
	}
	if v.Minor != o.Minor {
		return compareUint(v.Minor, o.Minor)
	}
	return compareUint(v.Patch, o.Patch)
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// RangeType discriminates the four version-range shapes.
type RangeType string

const (
	RangeUnbounded  RangeType = "UNBOUNDED"
	RangeMinBound   RangeType = "MIN_BOUND"
	RangeMaxBound   RangeType = "MAX_BOUND"
	RangeFullyBound RangeType = "MIN_AND_MAX_BOUND"
)

// VersionRange constrains an application version. Endpoints are
// inclusive. The zero value is the unbounded range.
type VersionRange struct {
	Type RangeType
	Min  *Version
	Max  *Version
}

// Unbounded returns the range that contains every version.
func Unbounded() VersionRange { return VersionRange{Type: RangeUnbounded} }

// AtLeast returns the range [min, ∞).
func AtLeast(min Version) VersionRange {
	return VersionRange{Type: RangeMinBound, Min: &min}
}

// AtMost returns the range (-∞, max].
func AtMost(max Version) VersionRange {
	return VersionRange{Type: RangeMaxBound, Max: &max}
}

// Between returns the range [min, max].
func Between(min, max Version) VersionRange {
	return VersionRange{Type: RangeFullyBound, Min: &min, Max: &max}
}

// Contains reports whether v falls within the range, honoring inclusive
// endpoints.
func (r VersionRange) Contains(v Version) bool {
	switch r.Type {
	case RangeMinBound:
		return r.Min != nil && v.Compare(*r.Min) >= 0
	case RangeMaxBound:
		return r.Max != nil && v.Compare(*r.Max) <= 0
	case RangeFullyBound:
		return r.Min != nil && r.Max != nil &&
			v.Compare(*r.Min) >= 0 && v.Compare(*r.Max) <= 0
	default:
		return true
	}
}

// Bounded reports whether the range actually constrains anything; a
// bounded range contributes to rule specificity.
func (r VersionRange) Bounded() bool {
	return r.Type == RangeMinBound || r.Type == RangeMaxBound || r.Type == RangeFullyBound
}
