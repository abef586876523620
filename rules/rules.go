// Package rules defines targeting rules for feature-flag evaluation:
// the predicate clauses a rule carries, AND-semantics matching against
// an evaluation context, and the specificity ordering that decides rule
// precedence.
package rules

import (
	"github.com/TimurManjosov/konditional/feature"
	"github.com/TimurManjosov/konditional/rollout"
)

// Predicate is an extension point for targeting clauses beyond the
// built-in ones. Implementations self-report their specificity
// contribution.
type Predicate interface {
	// Matches reports whether the context satisfies the predicate.
	Matches(ctx *feature.Context) bool
	// Specificity is the predicate's contribution to the owning
	// rule's specificity.
	Specificity() int
}

// Rule is a set of targeting clauses. A rule matches a context iff
// every non-empty clause is satisfied (AND semantics). An empty clause
// constrains nothing.
type Rule struct {
	// RampUp is the eligible fraction of buckets, in percent with
	// 0.01% resolution. New rules built with New default to 100.
	RampUp float64
	// Note is a free-form operator annotation.
	Note string
	// Allowlist enrolls specific stable IDs regardless of bucket.
	Allowlist []feature.HexID
	// Locales the rule targets; empty targets all locales.
	Locales []string
	// Platforms the rule targets; empty targets all platforms.
	Platforms []string
	// Versions constrains the app version; the zero value is
	// unbounded.
	Versions feature.VersionRange
	// Axes maps an axis ID to allowed value IDs. The context must
	// carry at least one allowed value on every constrained axis.
	Axes map[string][]string
	// Extension is an optional additional predicate.
	Extension Predicate
}

// New returns a rule with full ramp-up and no clauses: it matches every
// context.
func New() Rule {
	return Rule{RampUp: rollout.FullRampUp}
}

// Matches reports whether the context satisfies every non-empty clause.
// Ramp-up and allowlists are deliberately not part of matching; they
// gate eligibility after a match (the engine owns that step).
func (r *Rule) Matches(ctx *feature.Context) bool {
	if len(r.Locales) > 0 && !containsString(r.Locales, ctx.Locale) {
		return false
	}
	if len(r.Platforms) > 0 && !containsString(r.Platforms, ctx.Platform) {
		return false
	}
	if !r.Versions.Contains(ctx.AppVersion) {
		return false
	}
	for axisID, allowed := range r.Axes {
		if len(allowed) == 0 {
			continue
		}
		if !ctx.Axes.HasAny(axisID, allowed) {
			return false
		}
	}
	if r.Extension != nil && !r.Extension.Matches(ctx) {
		return false
	}
	return true
}

// Specificity counts the rule's non-empty clauses: locales, platforms,
// a bounded version range, and each constrained axis contribute one
// apiece; the extension predicate contributes what it reports.
func (r *Rule) Specificity() int {
	s := 0
	if len(r.Locales) > 0 {
		s++
	}
	if len(r.Platforms) > 0 {
		s++
	}
	if r.Versions.Bounded() {
		s++
	}
	for _, allowed := range r.Axes {
		if len(allowed) > 0 {
			s++
		}
	}
	if r.Extension != nil {
		s += r.Extension.Specificity()
	}
	return s
}

// RequiresStableID reports whether evaluating the rule against a
// context needs a stable ID: either the ramp-up is partial (a bucket
// must be computed) or an allowlist must be consulted.
func (r *Rule) RequiresStableID() bool {
	return r.RampUp < rollout.FullRampUp || len(r.Allowlist) > 0
}

// InAllowlist reports whether id is enrolled in the rule's allowlist.
func (r *Rule) InAllowlist(id feature.HexID) bool {
	if id == "" {
		return false
	}
	for _, a := range r.Allowlist {
		if a == id {
			return true
		}
	}
	return false
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
