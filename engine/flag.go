// Package engine holds the per-flag evaluation core: flag definitions
// with their precedence-ordered conditional values, the evaluation
// algorithm producing a value plus trace, and the immutable snapshot
// type the registry swaps atomically.
package engine

import (
	"sort"

	"github.com/TimurManjosov/konditional/feature"
	"github.com/TimurManjosov/konditional/rules"
)

// DefaultSalt is the bucketing salt used when a flag does not override
// it.
const DefaultSalt = "v1"

// ContextualValue computes a rule value from the evaluation context.
// Contextual values are an in-memory convenience; the codec refuses to
// serialize them.
type ContextualValue func(*feature.Context) any

// ConditionalValue binds a targeting rule to the value returned when
// the rule wins. Exactly one of Value and Contextual is set.
type ConditionalValue struct {
	Rule       rules.Rule
	Value      any
	Contextual ContextualValue
}

// IsContextual reports whether the value is computed from the context.
func (cv *ConditionalValue) IsContextual() bool { return cv.Contextual != nil }

func (cv *ConditionalValue) resolve(ctx *feature.Context) any {
	if cv.Contextual != nil {
		return cv.Contextual(ctx)
	}
	return cv.Value
}

// Flag is the runtime definition of a single feature: declared
// identity, default value, bucketing salt, active switch, flag-level
// ramp-up allowlist, and conditional values held sorted by descending
// specificity (insertion order breaks ties).
type Flag struct {
	def       *feature.Definition
	defaultV  any
	salt      string
	active    bool
	allowlist []feature.HexID
	values    []ConditionalValue
}

// FlagOption configures a Flag under construction.
type FlagOption func(*Flag)

// WithSalt overrides the bucketing salt.
func WithSalt(salt string) FlagOption {
	return func(f *Flag) { f.salt = salt }
}

// WithInactive builds the flag switched off: every evaluation returns
// the default.
func WithInactive() FlagOption {
	return func(f *Flag) { f.active = false }
}

// WithActive sets the active switch explicitly.
func WithActive(active bool) FlagOption {
	return func(f *Flag) { f.active = active }
}

// WithAllowlist sets the flag-level ramp-up allowlist.
func WithAllowlist(ids ...feature.HexID) FlagOption {
	return func(f *Flag) { f.allowlist = append([]feature.HexID(nil), ids...) }
}

// WithValues sets the conditional values. They may be given in any
// order; the flag stores them sorted by descending specificity with
// the given order as tiebreaker.
func WithValues(values ...ConditionalValue) FlagOption {
	return func(f *Flag) { f.values = append([]ConditionalValue(nil), values...) }
}

// NewFlag builds a flag for a declared feature with the given runtime
// default.
func NewFlag(def *feature.Definition, defaultValue any, opts ...FlagOption) *Flag {
	f := &Flag{
		def:      def,
		defaultV: defaultValue,
		salt:     DefaultSalt,
		active:   true,
	}
	for _, opt := range opts {
		opt(f)
	}
	sortBySpecificity(f.values)
	return f
}

// sortBySpecificity orders conditional values by descending rule
// specificity, preserving the definition order of equal-specificity
// rules.
func sortBySpecificity(values []ConditionalValue) {
	sort.SliceStable(values, func(i, j int) bool {
		return values[i].Rule.Specificity() > values[j].Rule.Specificity()
	})
}

// Feature returns the flag's feature ID.
func (f *Flag) Feature() feature.ID { return f.def.ID }

// Definition returns the trusted feature registration.
func (f *Flag) Definition() *feature.Definition { return f.def }

// Kind returns the declared value kind.
func (f *Flag) Kind() feature.Kind { return f.def.Kind }

// Default returns the runtime default value.
func (f *Flag) Default() any { return f.defaultV }

// Salt returns the bucketing salt.
func (f *Flag) Salt() string { return f.salt }

// Active reports whether the flag is switched on.
func (f *Flag) Active() bool { return f.active }

// Allowlist returns a copy of the flag-level ramp-up allowlist.
func (f *Flag) Allowlist() []feature.HexID {
	return append([]feature.HexID(nil), f.allowlist...)
}

// Values returns a copy of the conditional values in precedence order.
func (f *Flag) Values() []ConditionalValue {
	return append([]ConditionalValue(nil), f.values...)
}

// HasContextualValues reports whether any conditional value is
// contextual (and therefore not serializable).
func (f *Flag) HasContextualValues() bool {
	for i := range f.values {
		if f.values[i].IsContextual() {
			return true
		}
	}
	return false
}

func (f *Flag) inAllowlist(id feature.HexID) bool {
	if id == "" {
		return false
	}
	for _, a := range f.allowlist {
		if a == id {
			return true
		}
	}
	return false
}
