package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/TimurManjosov/konditional/engine"
	"github.com/TimurManjosov/konditional/feature"
	"github.com/TimurManjosov/konditional/hooks"
	"github.com/TimurManjosov/konditional/rules"
)

type captureMetrics struct {
	mu     sync.Mutex
	events []hooks.EvaluationEvent
}

func (m *captureMetrics) RecordEvaluation(e hooks.EvaluationEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func (m *captureMetrics) last(t *testing.T) hooks.EvaluationEvent {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		t.Fatal("no evaluation events recorded")
	}
	return m.events[len(m.events)-1]
}

func TestEvaluate_PanicsOnUnregisteredFeature(t *testing.T) {
	ns := feature.NewNamespace("checkout", "a1f3")
	banner := feature.String(ns, "bannerText", "default")
	r := New("checkout") // empty snapshot: no flag for banner

	defer func() {
		if recover() == nil {
			t.Error("expected panic for a feature missing from the snapshot")
		}
	}()
	Evaluate(r, banner, &feature.Context{})
}

func TestEvaluateSafely_NeverPanics(t *testing.T) {
	ns := feature.NewNamespace("checkout", "a1f3")
	banner := feature.String(ns, "bannerText", "fallback")
	r := New("checkout")

	v, err := EvaluateSafely(r, banner, &feature.Context{})
	if !errors.Is(err, ErrFeatureNotFound) {
		t.Errorf("expected ErrFeatureNotFound, got %v", err)
	}
	if v != "fallback" {
		t.Errorf("expected declared default on error, got %q", v)
	}
}

func TestEvaluate_KillSwitchReturnsDefault(t *testing.T) {
	_, banner := testSetup(t)
	r := New("checkout")

	ios := rules.New()
	ios.Platforms = []string{"IOS"}
	r.Load(engine.NewSnapshot([]*engine.Flag{
		engine.NewFlag(banner.Definition(), "snapshot-default",
			engine.WithValues(engine.ConditionalValue{Rule: ios, Value: "ios-banner"})),
	}, engine.Meta{}))

	ctx := &feature.Context{Platform: "IOS", AppVersion: feature.MustParseVersion("1.0.0")}
	if v := Evaluate(r, banner, ctx); v != "ios-banner" {
		t.Fatalf("precondition: expected rule match, got %q", v)
	}

	r.DisableAll()
	res, err := Explain(r, banner, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Value != "default" {
		t.Errorf("kill-switch must return the declared default, got %q", res.Value)
	}
	if res.Trace.Decision != engine.DecisionDisabled {
		t.Errorf("decision = %s, want %s", res.Trace.Decision, engine.DecisionDisabled)
	}

	r.EnableAll()
	if v := Evaluate(r, banner, ctx); v != "ios-banner" {
		t.Error("rules should apply again after EnableAll")
	}
}

func TestExplain_TraceAndVersions(t *testing.T) {
	_, banner := testSetup(t)
	r := New("checkout")
	r.Load(snapWith(banner, "hello", "cfg-42"))

	res, err := Explain(r, banner, &feature.Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Value != "hello" {
		t.Errorf("value = %q", res.Value)
	}
	if res.ConfigVersion != "cfg-42" {
		t.Errorf("config version = %q", res.ConfigVersion)
	}
	if res.SnapshotVersion != r.Version() {
		t.Errorf("snapshot version = %d, want %d", res.SnapshotVersion, r.Version())
	}
	if res.Trace.Decision != engine.DecisionDefault {
		t.Errorf("decision = %s", res.Trace.Decision)
	}
}

func TestEvaluate_RecordsMetrics(t *testing.T) {
	_, banner := testSetup(t)
	metrics := &captureMetrics{}
	r := New("checkout", WithMetrics(metrics))
	r.Load(snapWith(banner, "hello", "cfg-1"))

	Evaluate(r, banner, &feature.Context{})
	e := metrics.last(t)
	if e.Namespace != "checkout" || e.FeatureKey != string(banner.ID()) {
		t.Errorf("unexpected event labels: %+v", e)
	}
	if e.Mode != hooks.ModeNormal || e.Decision != string(engine.DecisionDefault) {
		t.Errorf("unexpected event classification: %+v", e)
	}
	if e.ConfigVersion != "cfg-1" {
		t.Errorf("config version = %q", e.ConfigVersion)
	}

	if _, err := Explain(r, banner, &feature.Context{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e := metrics.last(t); e.Mode != hooks.ModeExplain {
		t.Errorf("explain should record explain mode, got %s", e.Mode)
	}
}

func TestEvaluate_TypeMismatch(t *testing.T) {
	// Hand-built snapshots can hold the wrong Go type; the safe API
	// must surface it instead of panicking.
	ns := feature.NewNamespace("checkout", "a1f3")
	banner := feature.String(ns, "bannerText", "fallback")
	r := New("checkout")
	r.Load(engine.NewSnapshot([]*engine.Flag{
		engine.NewFlag(banner.Definition(), 42),
	}, engine.Meta{}))

	v, err := EvaluateSafely(r, banner, &feature.Context{})
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
	if v != "fallback" {
		t.Errorf("expected declared default, got %q", v)
	}
}
