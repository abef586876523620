// Package rollout provides deterministic user bucketing for feature
// flag ramp-ups. A user's bucket depends only on the flag salt, the
// flag key, and the user's stable ID, so:
//   - the same user always gets the same result for a flag
//   - distribution across buckets is even (SHA-256 of the joined key)
//   - raising a ramp-up from 10% to 20% only adds users, never removes
package rollout

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math"
)

// Buckets is the size of the bucket space. Buckets are basis points of
// the ramp-up percentage, giving 0.01% resolution.
const Buckets = 10000

// NoBucket is the sentinel bucket for contexts without a stable ID. It
// is never inside any ramp-up.
const NoBucket = -1

// FullRampUp is the ramp-up at which every context is eligible without
// consulting a bucket.
const FullRampUp = 100.0

// ErrInvalidRampUp is returned when a ramp-up percentage is outside
// [0, 100].
var ErrInvalidRampUp = errors.New("ramp-up must be between 0 and 100")

// Bucket returns the deterministic bucket (0-9999) for the given salt,
// flag key, and stable ID. An empty stable ID yields NoBucket.
func Bucket(salt, flagKey, stableID string) int {
	if stableID == "" {
		return NoBucket
	}
	sum := sha256.Sum256([]byte(salt + ":" + flagKey + ":" + stableID))
	v := binary.BigEndian.Uint32(sum[:4])
	return int(v % Buckets)
}

// Threshold converts a ramp-up percentage to its basis-point cutoff,
// rounding to the nearest basis point.
func Threshold(rampUp float64) int {
	return int(math.Round(rampUp * 100))
}

// InRampUp reports whether a bucket is inside the given ramp-up
// percentage. NoBucket is never inside a ramp-up.
func InRampUp(rampUp float64, bucket int) bool {
	if bucket < 0 {
		return false
	}
	return bucket < Threshold(rampUp)
}

// ValidateRampUp checks that a ramp-up percentage lies in [0, 100].
func ValidateRampUp(rampUp float64) error {
	if rampUp < 0 || rampUp > 100 || math.IsNaN(rampUp) {
		return ErrInvalidRampUp
	}
	return nil
}
