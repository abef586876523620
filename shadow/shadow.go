// Package shadow compares a candidate configuration against the
// production baseline without altering returned values: both snapshots
// are evaluated, mismatches are classified and reported, and the
// baseline value is always what the caller receives.
package shadow

import (
	"fmt"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/TimurManjosov/konditional/engine"
	"github.com/TimurManjosov/konditional/feature"
	"github.com/TimurManjosov/konditional/hooks"
)

// MismatchKind classifies one way the candidate diverged from the
// baseline.
type MismatchKind string

const (
	// MismatchValue: the returned values differ.
	MismatchValue MismatchKind = "VALUE"
	// MismatchDecision: the decision class differs (rule vs default
	// vs inactive).
	MismatchDecision MismatchKind = "DECISION"
	// MismatchMatchedRule: both matched a rule, but a different one.
	MismatchMatchedRule MismatchKind = "MATCHED_RULE"
	// MismatchBucket: the computed buckets differ.
	MismatchBucket MismatchKind = "BUCKET"
)

// Outcome is one side of a shadow comparison.
type Outcome struct {
	Value any
	Trace engine.Trace
}

// Mismatch reports a divergence between baseline and candidate for one
// evaluation. Mismatches are informational; they never change the
// returned value.
type Mismatch struct {
	FeatureKey feature.ID
	Baseline   Outcome
	Candidate  Outcome
	Kinds      []MismatchKind
}

// Options tune shadow evaluation.
type Options struct {
	// EvaluateCandidateWhenBaselineInactive also exercises the
	// candidate when the baseline short-circuits on an inactive flag
	// or the registry kill-switch.
	EvaluateCandidateWhenBaselineInactive bool
	// Metrics receives one shadow-mode event per comparison; nil
	// disables recording.
	Metrics hooks.Metrics
	// Namespace labels metric events.
	Namespace string
}

// OnMismatch receives classified mismatches. Implementations must not
// block; they run synchronously on the evaluating goroutine.
type OnMismatch func(Mismatch)

// Evaluate runs the feature against both snapshots and returns the
// baseline value. A missing flag on either side is treated as the
// declared default with a DEFAULT decision, so candidate snapshots
// that drop a flag surface as DECISION or VALUE mismatches rather than
// errors.
func Evaluate[T any](f feature.Feature[T], ctx *feature.Context, baseline, candidate *engine.Snapshot, opts Options, onMismatch OnMismatch) (T, error) {
	start := time.Now()

	baselineOut := evaluateSide(f, ctx, baseline)

	inactive := baselineOut.Trace.Decision == engine.DecisionInactive ||
		baselineOut.Trace.Decision == engine.DecisionDisabled
	if inactive && !opts.EvaluateCandidateWhenBaselineInactive {
		return assertValue(f, baselineOut.Value)
	}

	candidateOut := evaluateSide(f, ctx, candidate)

	kinds := Classify(baselineOut, candidateOut)
	if len(kinds) > 0 && onMismatch != nil {
		onMismatch(Mismatch{
			FeatureKey: f.ID(),
			Baseline:   baselineOut,
			Candidate:  candidateOut,
			Kinds:      kinds,
		})
	}
	if opts.Metrics != nil {
		opts.Metrics.RecordEvaluation(hooks.EvaluationEvent{
			Namespace:          opts.Namespace,
			FeatureKey:         string(f.ID()),
			Mode:               hooks.ModeShadow,
			Duration:           time.Since(start),
			Decision:           string(baselineOut.Trace.Decision),
			Bucket:             baselineOut.Trace.Bucket,
			MatchedSpecificity: baselineOut.Trace.MatchedSpecificity,
		})
	}

	return assertValue(f, baselineOut.Value)
}

// Classify computes the mismatch kinds between two outcomes.
func Classify(baseline, candidate Outcome) []MismatchKind {
	var kinds []MismatchKind
	if !cmp.Equal(baseline.Value, candidate.Value) {
		kinds = append(kinds, MismatchValue)
	}
	if baseline.Trace.Decision != candidate.Trace.Decision {
		kinds = append(kinds, MismatchDecision)
	} else if baseline.Trace.Decision == engine.DecisionRuleMatch &&
		baseline.Trace.MatchedIndex != candidate.Trace.MatchedIndex {
		kinds = append(kinds, MismatchMatchedRule)
	}
	if baseline.Trace.Bucket != candidate.Trace.Bucket {
		kinds = append(kinds, MismatchBucket)
	}
	return kinds
}

func evaluateSide[T any](f feature.Feature[T], ctx *feature.Context, snap *engine.Snapshot) Outcome {
	flag, ok := snap.Flag(f.ID())
	if !ok {
		trace := engine.Trace{
			Decision:           engine.DecisionDefault,
			MatchedIndex:       -1,
			MatchedSpecificity: -1,
			Bucket:             -1,
			SkippedByRampUp:    -1,
		}
		return Outcome{Value: f.Default(), Trace: trace}
	}
	value, trace := flag.Evaluate(ctx)
	return Outcome{Value: value, Trace: trace}
}

func assertValue[T any](f feature.Feature[T], raw any) (T, error) {
	v, ok := raw.(T)
	if !ok {
		return f.Default(), fmt.Errorf("shadow: feature %s holds %T, not the declared type", f.ID(), raw)
	}
	return v, nil
}
