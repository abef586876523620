package codec

import (
	"testing"

	"github.com/TimurManjosov/konditional/feature"
)

// Shared schema fixture for codec tests.

type theme string

const (
	themeLight theme = "LIGHT"
	themeDark  theme = "DARK"
)

type retryPolicy struct {
	MaxAttempts int     `json:"maxAttempts"`
	Backoff     float64 `json:"backoff"`
}

type fixture struct {
	ns       *feature.Namespace
	darkMode feature.Feature[bool]
	limit    feature.Feature[int64]
	theme    feature.Feature[theme]
	retry    feature.Feature[retryPolicy]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ns := feature.NewNamespace("checkout", "a1f3")
	return &fixture{
		ns:       ns,
		darkMode: feature.Bool(ns, "darkMode", false),
		limit:    feature.Int(ns, "requestLimit", 100),
		theme:    feature.Enum(ns, "theme", "Theme", []theme{themeLight, themeDark}, themeLight),
		retry:    feature.Struct(ns, "retryPolicy", "RetryPolicy", retryPolicy{MaxAttempts: 3, Backoff: 1.5}),
	}
}

// minimalDoc covers every declared feature with its defaults, ready to
// be extended per test.
func (f *fixture) minimalDoc() string {
	return `{
	  "meta": {"version": "cfg-1", "source": "test"},
	  "flags": [
	    {"key": "feature::a1f3::darkMode", "defaultValue": {"type": "BOOLEAN", "value": false}},
	    {"key": "feature::a1f3::requestLimit", "defaultValue": {"type": "INT", "value": 100}},
	    {"key": "feature::a1f3::theme", "defaultValue": {"type": "ENUM", "value": "LIGHT", "enumClassName": "Theme"}},
	    {"key": "feature::a1f3::retryPolicy", "defaultValue": {"type": "DATA_CLASS", "value": {"maxAttempts": 3, "backoff": 1.5}, "dataClassName": "RetryPolicy"}}
	  ]
	}`
}
