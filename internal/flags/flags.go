// Package flags declares the namespace the konditional binaries serve.
// Host applications embed the engine and declare their own namespaces;
// this one doubles as the daemon's schema and as a realistic example.
package flags

import "github.com/TimurManjosov/konditional/feature"

// Theme is the app color scheme enum.
type Theme string

const (
	ThemeLight  Theme = "LIGHT"
	ThemeDark   Theme = "DARK"
	ThemeSystem Theme = "SYSTEM"
)

// RetryPolicy tunes client-side request retries.
type RetryPolicy struct {
	MaxAttempts int     `json:"maxAttempts"`
	BackoffMs   int     `json:"backoffMs"`
	Multiplier  float64 `json:"multiplier"`
}

// Namespace is the compiled schema for the "app" namespace.
var Namespace = feature.NewNamespace("app", "7a21")

// Tier is the subscription axis shared by several rules.
var Tier = feature.NewAxis("tier", "free", "premium", "enterprise")

var (
	// DarkMode gates the dark UI.
	DarkMode = feature.Bool(Namespace, "darkMode", false)

	// CheckoutV2 gates the rewritten checkout funnel.
	CheckoutV2 = feature.Bool(Namespace, "checkoutV2", false)

	// RequestLimit caps client request bursts.
	RequestLimit = feature.Int(Namespace, "requestLimit", 120)

	// SampleRatio tunes client-side trace sampling.
	SampleRatio = feature.Double(Namespace, "sampleRatio", 0.05)

	// SupportURL points clients at the support portal.
	SupportURL = feature.String(Namespace, "supportUrl", "https://support.example.com")

	// DefaultTheme selects the initial color scheme.
	DefaultTheme = feature.Enum(Namespace, "defaultTheme", "Theme",
		[]Theme{ThemeLight, ThemeDark, ThemeSystem}, ThemeSystem)

	// Retries configures the client retry policy.
	Retries = feature.Struct(Namespace, "retries", "RetryPolicy",
		RetryPolicy{MaxAttempts: 3, BackoffMs: 200, Multiplier: 2})
)

func init() {
	if err := Namespace.Axes().Register(Tier); err != nil {
		panic(err)
	}
}
