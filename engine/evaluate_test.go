package engine

import (
	"fmt"
	"testing"

	"github.com/TimurManjosov/konditional/feature"
	"github.com/TimurManjosov/konditional/rollout"
	"github.com/TimurManjosov/konditional/rules"
)

func testNamespace(t *testing.T) (*feature.Namespace, feature.Feature[bool], feature.Feature[string]) {
	t.Helper()
	ns := feature.NewNamespace("checkout", "a1f3")
	darkMode := feature.Bool(ns, "darkMode", false)
	banner := feature.String(ns, "bannerText", "default")
	return ns, darkMode, banner
}

func evalCtx(locale, platform, version string, stableID feature.HexID) *feature.Context {
	return &feature.Context{
		Locale:     locale,
		Platform:   platform,
		AppVersion: feature.MustParseVersion(version),
		StableID:   stableID,
	}
}

func platformRule(platform string, opts ...func(*rules.Rule)) rules.Rule {
	r := rules.New()
	r.Platforms = []string{platform}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func TestEvaluate_MatchingRuleWins(t *testing.T) {
	// Scenario: bool flag, default false, one IOS rule flipping it on.
	_, darkMode, _ := testNamespace(t)
	flag := NewFlag(darkMode.Definition(), false,
		WithValues(ConditionalValue{Rule: platformRule("IOS"), Value: true}))

	value, trace := flag.Evaluate(evalCtx("US", "IOS", "1.0.0", "01"))
	if value != true {
		t.Errorf("expected true, got %v", value)
	}
	if trace.Decision != DecisionRuleMatch || trace.MatchedIndex != 0 {
		t.Errorf("unexpected trace: %+v", trace)
	}
}

func TestEvaluate_NoMatchReturnsDefault(t *testing.T) {
	_, darkMode, _ := testNamespace(t)
	flag := NewFlag(darkMode.Definition(), false,
		WithValues(ConditionalValue{Rule: platformRule("IOS"), Value: true}))

	value, trace := flag.Evaluate(evalCtx("US", "ANDROID", "1.0.0", "01"))
	if value != false {
		t.Errorf("expected default false, got %v", value)
	}
	if trace.Decision != DecisionDefault {
		t.Errorf("unexpected decision %s", trace.Decision)
	}
}

func TestEvaluate_SpecificityTiebreak(t *testing.T) {
	// Two matching rules: locale+platform (specificity 2) must beat
	// platform-only (1) regardless of definition order.
	_, _, banner := testNamespace(t)
	specific := rules.New()
	specific.Platforms = []string{"IOS"}
	specific.Locales = []string{"US"}

	flag := NewFlag(banner.Definition(), "none",
		WithValues(
			ConditionalValue{Rule: platformRule("IOS"), Value: "B"},
			ConditionalValue{Rule: specific, Value: "A"},
		))

	value, trace := flag.Evaluate(evalCtx("US", "IOS", "1.0.0", "02"))
	if value != "A" {
		t.Errorf("expected the more specific rule to win, got %v", value)
	}
	if trace.MatchedSpecificity != 2 {
		t.Errorf("matched specificity = %d, want 2", trace.MatchedSpecificity)
	}
}

func TestEvaluate_EqualSpecificityKeepsDefinitionOrder(t *testing.T) {
	_, _, banner := testNamespace(t)
	flag := NewFlag(banner.Definition(), "none",
		WithValues(
			ConditionalValue{Rule: platformRule("IOS"), Value: "first"},
			ConditionalValue{Rule: platformRule("IOS"), Value: "second"},
		))

	value, _ := flag.Evaluate(evalCtx("US", "IOS", "1.0.0", "02"))
	if value != "first" {
		t.Errorf("earlier-defined rule should win ties, got %v", value)
	}
}

func TestEvaluate_Inactive(t *testing.T) {
	_, darkMode, _ := testNamespace(t)
	flag := NewFlag(darkMode.Definition(), false,
		WithInactive(),
		WithValues(ConditionalValue{Rule: rules.New(), Value: true}))

	value, trace := flag.Evaluate(evalCtx("US", "IOS", "1.0.0", "01"))
	if value != false {
		t.Errorf("inactive flag must return default, got %v", value)
	}
	if trace.Decision != DecisionInactive {
		t.Errorf("unexpected decision %s", trace.Decision)
	}
}

func TestEvaluate_RampUpExcludesAndRecordsSkip(t *testing.T) {
	_, darkMode, _ := testNamespace(t)

	// Find a stable id outside a 10% ramp-up for this flag and salt.
	var outsider feature.HexID
	for i := 0; ; i++ {
		id := fmt.Sprintf("%04x", i)
		if !rollout.InRampUp(10, rollout.Bucket(DefaultSalt, string(darkMode.ID()), id)) {
			outsider = feature.HexID(id)
			break
		}
	}

	ramped := rules.New()
	ramped.RampUp = 10
	flag := NewFlag(darkMode.Definition(), false,
		WithValues(ConditionalValue{Rule: ramped, Value: true}))

	value, trace := flag.Evaluate(evalCtx("US", "IOS", "1.0.0", outsider))
	if value != false {
		t.Errorf("bucketed-out context must fall back to default, got %v", value)
	}
	if trace.Decision != DecisionDefault || trace.SkippedByRampUp != 0 {
		t.Errorf("unexpected trace: %+v", trace)
	}
	if trace.Bucket == rollout.NoBucket {
		t.Error("bucket should have been computed and recorded")
	}
}

func TestEvaluate_RampUpIncludes(t *testing.T) {
	_, darkMode, _ := testNamespace(t)

	var insider feature.HexID
	for i := 0; ; i++ {
		id := fmt.Sprintf("%04x", i)
		if rollout.InRampUp(10, rollout.Bucket(DefaultSalt, string(darkMode.ID()), id)) {
			insider = feature.HexID(id)
			break
		}
	}

	ramped := rules.New()
	ramped.RampUp = 10
	flag := NewFlag(darkMode.Definition(), false,
		WithValues(ConditionalValue{Rule: ramped, Value: true}))

	if value, _ := flag.Evaluate(evalCtx("US", "IOS", "1.0.0", insider)); value != true {
		t.Errorf("in-ramp-up context should get the rule value, got %v", value)
	}
}

func TestEvaluate_RuleAllowlistBypassesBucket(t *testing.T) {
	_, darkMode, _ := testNamespace(t)
	r := rules.New()
	r.RampUp = 0
	r.Allowlist = []feature.HexID{"beef"}
	flag := NewFlag(darkMode.Definition(), false,
		WithValues(ConditionalValue{Rule: r, Value: true}))

	if value, _ := flag.Evaluate(evalCtx("US", "IOS", "1.0.0", "beef")); value != true {
		t.Error("allowlisted id should win despite 0% ramp-up")
	}
	if value, _ := flag.Evaluate(evalCtx("US", "IOS", "1.0.0", "cafe")); value != false {
		t.Error("non-allowlisted id should fall through a 0% ramp-up")
	}
}

func TestEvaluate_FlagAllowlistBypassesBucket(t *testing.T) {
	_, darkMode, _ := testNamespace(t)
	r := rules.New()
	r.RampUp = 0
	flag := NewFlag(darkMode.Definition(), false,
		WithAllowlist("beef"),
		WithValues(ConditionalValue{Rule: r, Value: true}))

	if value, _ := flag.Evaluate(evalCtx("US", "IOS", "1.0.0", "beef")); value != true {
		t.Error("flag-level allowlist should win despite 0% ramp-up")
	}
}

func TestEvaluate_MissingStableID(t *testing.T) {
	_, darkMode, _ := testNamespace(t)
	ramped := rules.New()
	ramped.RampUp = 50
	flag := NewFlag(darkMode.Definition(), false,
		WithValues(ConditionalValue{Rule: ramped, Value: true}))

	value, trace := flag.Evaluate(evalCtx("US", "IOS", "1.0.0", ""))
	if value != false {
		t.Errorf("anonymous context against a partial ramp-up must default, got %v", value)
	}
	if !trace.MissingStableID {
		t.Error("trace should record the missing stable id diagnostic")
	}
	if trace.Decision != DecisionDefault {
		t.Errorf("unexpected decision %s", trace.Decision)
	}
}

func TestEvaluate_FullRampUpWithoutStableID(t *testing.T) {
	// A 100% rule with no allowlist needs no bucket, so anonymous
	// contexts match.
	_, darkMode, _ := testNamespace(t)
	flag := NewFlag(darkMode.Definition(), false,
		WithValues(ConditionalValue{Rule: rules.New(), Value: true}))

	value, trace := flag.Evaluate(evalCtx("US", "IOS", "1.0.0", ""))
	if value != true {
		t.Errorf("expected match without stable id, got %v", value)
	}
	if trace.MissingStableID {
		t.Error("no diagnostic expected for a full ramp-up")
	}
}

func TestEvaluate_ContextualValue(t *testing.T) {
	_, _, banner := testNamespace(t)
	flag := NewFlag(banner.Definition(), "none",
		WithValues(ConditionalValue{
			Rule:       rules.New(),
			Contextual: func(ctx *feature.Context) any { return "hello-" + ctx.Locale },
		}))

	if value, _ := flag.Evaluate(evalCtx("US", "IOS", "1.0.0", "01")); value != "hello-US" {
		t.Errorf("contextual value not computed from context: %v", value)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	_, darkMode, _ := testNamespace(t)
	ramped := rules.New()
	ramped.RampUp = 37.5
	flag := NewFlag(darkMode.Definition(), false,
		WithValues(ConditionalValue{Rule: ramped, Value: true}))

	c := evalCtx("US", "IOS", "1.0.0", "0123")
	first, _ := flag.Evaluate(c)
	for i := 0; i < 100; i++ {
		if v, _ := flag.Evaluate(c); v != first {
			t.Fatal("evaluation is not deterministic")
		}
	}
}
