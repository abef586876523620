package feature

import (
	"encoding/json"
	"testing"
)

type theme string

const (
	themeLight theme = "LIGHT"
	themeDark  theme = "DARK"
)

type retryPolicy struct {
	MaxAttempts int     `json:"maxAttempts"`
	Backoff     float64 `json:"backoff"`
}

func TestNamespace_Declarations(t *testing.T) {
	ns := NewNamespace("checkout", "a1f3")

	darkMode := Bool(ns, "darkMode", false)
	limit := Int(ns, "requestLimit", 100)
	ratio := Double(ns, "sampleRatio", 0.25)
	banner := String(ns, "bannerText", "hello")
	th := Enum(ns, "theme", "Theme", []theme{themeLight, themeDark}, themeLight)
	retry := Struct(ns, "retryPolicy", "RetryPolicy", retryPolicy{MaxAttempts: 3, Backoff: 1.5})

	if ns.Len() != 6 {
		t.Fatalf("expected 6 declarations, got %d", ns.Len())
	}
	if darkMode.ID() != "feature::a1f3::darkMode" {
		t.Errorf("unexpected id %q", darkMode.ID())
	}
	if darkMode.Default() != false || limit.Default() != 100 || ratio.Default() != 0.25 {
		t.Error("scalar defaults wrong")
	}
	if banner.Default() != "hello" || th.Default() != themeLight {
		t.Error("string/enum defaults wrong")
	}
	if retry.Default().MaxAttempts != 3 {
		t.Error("struct default wrong")
	}

	if _, ok := ns.LookupFeature(darkMode.ID()); !ok {
		t.Error("declared feature not found by id")
	}
	if _, ok := ns.LookupFeature("feature::a1f3::nope"); ok {
		t.Error("undeclared feature found")
	}
}

func TestNamespace_DuplicatePanics(t *testing.T) {
	ns := NewNamespace("checkout", "a1f3")
	Bool(ns, "darkMode", false)
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate declaration")
		}
	}()
	Bool(ns, "darkMode", true)
}

func TestEnum_DefaultMustBeVariant(t *testing.T) {
	ns := NewNamespace("checkout", "a1f3")
	defer func() {
		if recover() == nil {
			t.Error("expected panic for default outside variant set")
		}
	}()
	Enum(ns, "theme", "Theme", []theme{themeLight}, themeDark)
}

func TestDefinition_DecodeValue(t *testing.T) {
	ns := NewNamespace("checkout", "a1f3")
	th := Enum(ns, "theme", "Theme", []theme{themeLight, themeDark}, themeLight)
	retry := Struct(ns, "retryPolicy", "RetryPolicy", retryPolicy{})

	v, err := th.Definition().DecodeValue(json.RawMessage(`"DARK"`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != themeDark {
		t.Errorf("got %v", v)
	}

	if _, err := th.Definition().DecodeValue(json.RawMessage(`"NEON"`)); err == nil {
		t.Error("expected error for unknown variant")
	}
	if _, err := th.Definition().DecodeValue(json.RawMessage(`42`)); err == nil {
		t.Error("expected error for non-string enum value")
	}

	rv, err := retry.Definition().DecodeValue(json.RawMessage(`{"maxAttempts":5,"backoff":2}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rv.(retryPolicy).MaxAttempts != 5 {
		t.Errorf("got %+v", rv)
	}
}

func TestDefinition_EncodeValue_KindMismatch(t *testing.T) {
	ns := NewNamespace("checkout", "a1f3")
	darkMode := Bool(ns, "darkMode", false)
	if _, err := darkMode.Definition().EncodeValue("not-a-bool"); err == nil {
		t.Error("expected error encoding a string as a bool feature")
	}
}
