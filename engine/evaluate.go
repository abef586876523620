package engine

import (
	"github.com/TimurManjosov/konditional/rollout"

	"github.com/TimurManjosov/konditional/feature"
)

// Decision classifies how an evaluation produced its value.
type Decision string

const (
	// DecisionRuleMatch: a conditional value won.
	DecisionRuleMatch Decision = "RULE_MATCH"
	// DecisionDefault: no rule won; the flag default was returned.
	DecisionDefault Decision = "DEFAULT"
	// DecisionInactive: the flag is switched off.
	DecisionInactive Decision = "INACTIVE"
	// DecisionDisabled: the registry kill-switch is set.
	DecisionDisabled Decision = "REGISTRY_DISABLED"
)

// Trace records how an evaluation arrived at its value.
type Trace struct {
	Decision Decision
	// MatchedIndex is the precedence-order index of the winning
	// conditional value, or -1.
	MatchedIndex int
	// MatchedSpecificity is the winning rule's specificity, or -1.
	MatchedSpecificity int
	// MatchedNote is the winning rule's note, if any.
	MatchedNote string
	// Bucket is the bucket computed during evaluation, or
	// rollout.NoBucket if none was needed.
	Bucket int
	// SkippedByRampUp is the index of the first conditional value
	// whose rule matched but whose ramp-up excluded the context, or
	// -1.
	SkippedByRampUp int
	// MissingStableID is set when a rule that requires a stable ID
	// was evaluated against a context without one.
	MissingStableID bool
}

func newTrace(decision Decision) Trace {
	return Trace{
		Decision:           decision,
		MatchedIndex:       -1,
		MatchedSpecificity: -1,
		Bucket:             rollout.NoBucket,
		SkippedByRampUp:    -1,
	}
}

// Evaluate selects the flag's value for the given context.
//
// Conditional values are visited in descending-specificity order. For
// each whose rule matches, eligibility is: the flag-level allowlist
// contains the stable ID, or the rule-level allowlist contains it, or
// the context's bucket falls inside the rule's ramp-up. The bucket is
// computed lazily on first need and reused for the rest of the call.
//
// A rule that needs a stable ID (partial ramp-up or an allowlist)
// against a context without one records a diagnostic on the trace and
// is skipped; evaluation continues and ultimately falls back to the
// default. This mirrors the contract that evaluation never panics on
// anonymous contexts.
func (f *Flag) Evaluate(ctx *feature.Context) (any, Trace) {
	if !f.active {
		return f.defaultV, newTrace(DecisionInactive)
	}

	trace := newTrace(DecisionDefault)
	bucket := rollout.NoBucket
	bucketComputed := false

	for i := range f.values {
		cv := &f.values[i]
		if !cv.Rule.Matches(ctx) {
			continue
		}

		eligible := false
		switch {
		case f.inAllowlist(ctx.StableID) || cv.Rule.InAllowlist(ctx.StableID):
			eligible = true
		case !ctx.HasStableID() && cv.Rule.RequiresStableID():
			trace.MissingStableID = true
		case cv.Rule.RampUp >= rollout.FullRampUp:
			// Full ramp-up without an allowlist needs no bucket,
			// so anonymous contexts match too.
			eligible = true
		default:
			if !bucketComputed {
				bucket = rollout.Bucket(f.salt, string(f.def.ID), string(ctx.StableID))
				bucketComputed = true
				trace.Bucket = bucket
			}
			eligible = rollout.InRampUp(cv.Rule.RampUp, bucket)
		}

		if eligible {
			trace.Decision = DecisionRuleMatch
			trace.MatchedIndex = i
			trace.MatchedSpecificity = cv.Rule.Specificity()
			trace.MatchedNote = cv.Rule.Note
			return cv.resolve(ctx), trace
		}
		if trace.SkippedByRampUp < 0 {
			trace.SkippedByRampUp = i
		}
	}

	return f.defaultV, trace
}
