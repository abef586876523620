package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/TimurManjosov/konditional/engine"
	"github.com/TimurManjosov/konditional/feature"
	"github.com/TimurManjosov/konditional/hooks"
)

// ErrFeatureNotFound is returned (or wrapped in the panic message) when
// the evaluated feature has no flag in the snapshot. Hitting it means
// the configuration never covered a declared feature — a programmer or
// control-plane error, not a runtime condition.
var ErrFeatureNotFound = errors.New("feature not found in snapshot")

// ErrTypeMismatch is returned when a snapshot value is not assignable
// to the feature's declared Go type. It cannot happen for snapshots
// produced by the schema-aware codec.
var ErrTypeMismatch = errors.New("snapshot value does not match declared feature type")

// Source is anything evaluations can read a consistent snapshot from:
// a *Registry (live view) or a *Handle (pinned view).
type Source interface {
	Namespace() string
	view() (*engine.Snapshot, uint64, bool)
	hookset() (hooks.Logger, hooks.Metrics)
}

// Result is the diagnostic output of Explain.
type Result[T any] struct {
	Value T
	Trace engine.Trace
	// ConfigVersion is the snapshot meta version, if any.
	ConfigVersion string
	// SnapshotVersion is the registry's install counter for the
	// snapshot that served the evaluation.
	SnapshotVersion uint64
}

// Evaluate returns the feature's value for the context. It panics when
// the feature has no flag in the snapshot (unregistered feature —
// programmer error); every other condition degrades to the default.
func Evaluate[T any](src Source, f feature.Feature[T], ctx *feature.Context) T {
	v, err := EvaluateSafely(src, f, ctx)
	if errors.Is(err, ErrFeatureNotFound) {
		panic(fmt.Sprintf("konditional: evaluate %s: %v", f.ID(), err))
	}
	return v
}

// EvaluateSafely returns the feature's value for the context, or an
// error. It never panics.
func EvaluateSafely[T any](src Source, f feature.Feature[T], ctx *feature.Context) (T, error) {
	res, err := evaluate(src, f, ctx, hooks.ModeNormal)
	return res.Value, err
}

// Explain evaluates like EvaluateSafely and additionally returns the
// evaluation trace.
func Explain[T any](src Source, f feature.Feature[T], ctx *feature.Context) (Result[T], error) {
	return evaluate(src, f, ctx, hooks.ModeExplain)
}

func evaluate[T any](src Source, f feature.Feature[T], ctx *feature.Context, mode hooks.Mode) (Result[T], error) {
	start := time.Now()
	logger, metrics := src.hookset()
	snap, snapVersion, disabled := src.view()

	res := Result[T]{
		ConfigVersion:   snap.Meta().Version,
		SnapshotVersion: snapVersion,
	}

	if disabled {
		res.Value = f.Default()
		res.Trace = disabledTrace()
		record(metrics, src.Namespace(), f.ID(), mode, start, res.Trace, snap)
		return res, nil
	}

	flag, ok := snap.Flag(f.ID())
	if !ok {
		res.Value = f.Default()
		return res, fmt.Errorf("%w: %s", ErrFeatureNotFound, f.ID())
	}

	raw, trace := flag.Evaluate(ctx)
	res.Trace = trace

	if trace.MissingStableID {
		logger.Warn(func() string {
			return logf("feature %s: rule requires a stable id but context has none; using default", f.ID())
		})
	}

	value, ok := raw.(T)
	if !ok {
		res.Value = f.Default()
		return res, fmt.Errorf("%w: %s holds %T", ErrTypeMismatch, f.ID(), raw)
	}
	res.Value = value

	record(metrics, src.Namespace(), f.ID(), mode, start, trace, snap)
	return res, nil
}

func disabledTrace() engine.Trace {
	t := engine.Trace{
		Decision:           engine.DecisionDisabled,
		MatchedIndex:       -1,
		MatchedSpecificity: -1,
		Bucket:             -1,
		SkippedByRampUp:    -1,
	}
	return t
}

func record(metrics hooks.Metrics, namespace string, id feature.ID, mode hooks.Mode, start time.Time, trace engine.Trace, snap *engine.Snapshot) {
	metrics.RecordEvaluation(hooks.EvaluationEvent{
		Namespace:          namespace,
		FeatureKey:         string(id),
		Mode:               mode,
		Duration:           time.Since(start),
		Decision:           string(trace.Decision),
		ConfigVersion:      snap.Meta().Version,
		Bucket:             trace.Bucket,
		MatchedSpecificity: trace.MatchedSpecificity,
	})
}

func logf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
