package auth

import (
	"strings"
	"testing"
)

func TestGenerateAPIKey(t *testing.T) {
	key, err := GenerateAPIKey("kdl_")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(key, "kdl_") {
		t.Errorf("key missing prefix: %q", key)
	}
	other, _ := GenerateAPIKey("kdl_")
	if key == other {
		t.Error("two generated keys should differ")
	}
}

func TestHashAndVerifyAPIKey(t *testing.T) {
	key, _ := GenerateAPIKey("kdl_")
	hash, err := HashAPIKey(key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !VerifyAPIKey(key, hash) {
		t.Error("key should verify against its own hash")
	}
	if VerifyAPIKey(key+"x", hash) {
		t.Error("tampered key should not verify")
	}
}

func TestVerifyAPIKeyConstantTime(t *testing.T) {
	if !VerifyAPIKeyConstantTime("abc", "abc") {
		t.Error("equal keys should verify")
	}
	if VerifyAPIKeyConstantTime("abc", "abd") {
		t.Error("different keys should not verify")
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer tok-123":  "tok-123",
		"bearer tok-123":  "tok-123",
		"  Bearer  x  ":   "x",
		"tok-without-tag": "tok-without-tag",
		"":                "",
	}
	for header, want := range cases {
		if got := ExtractBearerToken(header); got != want {
			t.Errorf("ExtractBearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}
