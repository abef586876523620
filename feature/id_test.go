package feature

import "testing"

func TestNewID_Shape(t *testing.T) {
	id := NewID("a1f3", "darkMode")
	if id != "feature::a1f3::darkMode" {
		t.Errorf("unexpected id %q", id)
	}
	if id.Seed() != "a1f3" || id.Name() != "darkMode" {
		t.Errorf("component accessors wrong: seed=%q name=%q", id.Seed(), id.Name())
	}
}

func TestParseID(t *testing.T) {
	seed, name, err := ParseID("feature::a1f3::darkMode")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seed != "a1f3" || name != "darkMode" {
		t.Errorf("got seed=%q name=%q", seed, name)
	}
}

func TestParseID_Malformed(t *testing.T) {
	bad := []string{
		"",
		"darkMode",
		"feature::darkMode",
		"flag::a1f3::darkMode",
		"feature::::darkMode",
		"feature::a1f3::",
	}
	for _, s := range bad {
		if _, _, err := ParseID(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestParseHexID_RoundTrip(t *testing.T) {
	id, err := ParseHexID("a1b2c3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "a1b2c3" {
		t.Errorf("got %q", id)
	}
}

func TestParseHexID_Invalid(t *testing.T) {
	bad := []string{"", "xyz", "abc", "A1B2", "0x12"}
	for _, s := range bad {
		if _, err := ParseHexID(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}
