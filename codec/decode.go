package codec

import (
	"encoding/json"
	"fmt"

	"github.com/TimurManjosov/konditional/engine"
	"github.com/TimurManjosov/konditional/feature"
	"github.com/TimurManjosov/konditional/hooks"
	"github.com/TimurManjosov/konditional/rollout"
	"github.com/TimurManjosov/konditional/rules"
)

// Schema is the trusted, in-memory compiled schema for a namespace.
// *feature.Namespace satisfies it.
type Schema interface {
	Name() string
	LookupFeature(feature.ID) (*feature.Definition, bool)
	Definitions() []*feature.Definition
}

// UnknownKeyStrategy selects what decode does with payload flags whose
// key is not registered in the schema.
type UnknownKeyStrategy int

const (
	// UnknownKeyFail rejects the snapshot (default).
	UnknownKeyFail UnknownKeyStrategy = iota
	// UnknownKeySkip drops the entry with a warning.
	UnknownKeySkip
)

// MissingFlagPolicy selects what decode does when a declared feature
// has no entry in the payload.
type MissingFlagPolicy int

const (
	// MissingFlagReject rejects the snapshot (default).
	MissingFlagReject MissingFlagPolicy = iota
	// MissingFlagFillDefaults synthesizes a flag from the declared
	// default.
	MissingFlagFillDefaults
)

// Options tune decode behavior. The zero value is the strict default.
type Options struct {
	UnknownKeys  UnknownKeyStrategy
	MissingFlags MissingFlagPolicy
	// DefaultSalt is the bucketing salt applied to flags whose
	// document carries none. Empty keeps the engine default.
	DefaultSalt string
	// Logger receives skip warnings; nil discards them.
	Logger hooks.Logger
}

func (o Options) logger() hooks.Logger {
	if o.Logger == nil {
		return hooks.NopLogger{}
	}
	return o.Logger
}

// Materialized wraps a snapshot that passed schema-directed decode.
// Only this package constructs it, so downstream callers can require a
// trusted snapshot by type.
type Materialized struct {
	snap *engine.Snapshot
}

// Snapshot returns the decoded snapshot.
func (m *Materialized) Snapshot() *engine.Snapshot { return m.snap }

// Decode parses and validates snapshot JSON against the schema. On any
// failure it returns a *ParseError and no snapshot; it never mutates
// shared state, so a failed decode leaves whatever the caller installed
// before fully intact.
func Decode(data []byte, schema Schema, opts Options) (*Materialized, error) {
	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Kind: KindInvalidJSON, Detail: "snapshot document", Err: err}
	}
	return materialize(doc.Meta, doc.Flags, nil, schema, opts)
}

// materialize validates flag docs into a snapshot. base carries flags
// surviving from a prior snapshot during patch application; payload
// entries replace base entries with the same key.
func materialize(meta *metaDoc, docs []flagDoc, base map[feature.ID]*engine.Flag, schema Schema, opts Options) (*Materialized, error) {
	logger := opts.logger()
	flags := make(map[feature.ID]*engine.Flag, len(docs)+len(base))
	for id, f := range base {
		flags[id] = f
	}

	seen := make(map[feature.ID]struct{}, len(docs))
	for i := range docs {
		doc := &docs[i]
		if doc.Key == "" {
			return nil, parseErrf(KindInvalidSnapshot, "flag entry %d has no key", i)
		}
		if _, _, err := feature.ParseID(doc.Key); err != nil {
			return nil, &ParseError{Kind: KindInvalidSnapshot, Detail: "malformed flag key", Err: err}
		}
		id := feature.ID(doc.Key)
		if _, dup := seen[id]; dup {
			return nil, keyedErr(KindInvalidSnapshot, id, "duplicate flag key", nil)
		}
		seen[id] = struct{}{}

		def, ok := schema.LookupFeature(id)
		if !ok {
			if opts.UnknownKeys == UnknownKeySkip {
				logger.Warn(func() string {
					return fmt.Sprintf("codec: skipping unknown feature key %s for namespace %s", id, schema.Name())
				})
				continue
			}
			return nil, keyedErr(KindFeatureNotFound, id, "feature not registered in schema", nil)
		}

		flag, err := decodeFlag(doc, def, opts)
		if err != nil {
			return nil, err
		}
		flags[id] = flag
	}

	if missing := missingDeclared(schema, flags); len(missing) > 0 {
		switch opts.MissingFlags {
		case MissingFlagFillDefaults:
			for _, def := range missing {
				flags[def.ID] = engine.NewFlag(def, def.Default, saltOption(nil, opts)...)
			}
		default:
			return nil, keyedErr(KindInvalidSnapshot, missing[0].ID,
				fmt.Sprintf("%d declared feature(s) missing from payload", len(missing)), nil)
		}
	}

	ordered := make([]*engine.Flag, 0, len(flags))
	for _, f := range flags {
		ordered = append(ordered, f)
	}
	return &Materialized{snap: engine.NewSnapshot(ordered, decodeMeta(meta))}, nil
}

func decodeMeta(doc *metaDoc) engine.Meta {
	if doc == nil {
		return engine.Meta{}
	}
	meta := engine.Meta{}
	if doc.Version != nil {
		meta.Version = *doc.Version
	}
	if doc.GeneratedAtEpochMilli != nil {
		meta.GeneratedAtEpochMilli = *doc.GeneratedAtEpochMilli
	}
	if doc.Source != nil {
		meta.Source = *doc.Source
	}
	return meta
}

func missingDeclared(schema Schema, flags map[feature.ID]*engine.Flag) []*feature.Definition {
	var missing []*feature.Definition
	for _, def := range schema.Definitions() {
		if _, ok := flags[def.ID]; !ok {
			missing = append(missing, def)
		}
	}
	return missing
}

// saltOption resolves the bucketing salt for a flag: the document's
// own salt wins, then the operator-configured default, then the engine
// default.
func saltOption(docSalt *string, copts Options) []engine.FlagOption {
	switch {
	case docSalt != nil:
		return []engine.FlagOption{engine.WithSalt(*docSalt)}
	case copts.DefaultSalt != "":
		return []engine.FlagOption{engine.WithSalt(copts.DefaultSalt)}
	}
	return nil
}

func decodeFlag(doc *flagDoc, def *feature.Definition, copts Options) (*engine.Flag, error) {
	defaultValue, err := decodeValue(doc.DefaultValue, def, "defaultValue")
	if err != nil {
		return nil, err
	}

	opts := append([]engine.FlagOption{}, saltOption(doc.Salt, copts)...)
	if doc.IsActive != nil {
		opts = append(opts, engine.WithActive(*doc.IsActive))
	}

	allowlist, err := decodeAllowlist(doc.RampUpAllowlist, def.ID)
	if err != nil {
		return nil, err
	}
	if len(allowlist) > 0 {
		opts = append(opts, engine.WithAllowlist(allowlist...))
	}

	values := make([]engine.ConditionalValue, 0, len(doc.Rules))
	for i := range doc.Rules {
		cv, err := decodeRule(&doc.Rules[i], def, i)
		if err != nil {
			return nil, err
		}
		values = append(values, cv)
	}
	if len(values) > 0 {
		opts = append(opts, engine.WithValues(values...))
	}

	return engine.NewFlag(def, defaultValue, opts...), nil
}

func decodeRule(doc *ruleDoc, def *feature.Definition, index int) (engine.ConditionalValue, error) {
	var cv engine.ConditionalValue

	value, err := decodeValue(doc.Value, def, fmt.Sprintf("rules[%d].value", index))
	if err != nil {
		return cv, err
	}

	rule := rules.New()
	if doc.RampUp != nil {
		if err := rollout.ValidateRampUp(*doc.RampUp); err != nil {
			return cv, keyedErr(KindInvalidRollout, def.ID,
				fmt.Sprintf("rules[%d].rampUp %v out of range", index, *doc.RampUp), err)
		}
		rule.RampUp = *doc.RampUp
	}
	if doc.Note != nil {
		rule.Note = *doc.Note
	}
	rule.Allowlist, err = decodeAllowlist(doc.RampUpAllowlist, def.ID)
	if err != nil {
		return cv, err
	}
	rule.Locales = append(rule.Locales, doc.Locales...)
	rule.Platforms = append(rule.Platforms, doc.Platforms...)

	rule.Versions, err = decodeVersionRange(doc.VersionRange, def.ID, index)
	if err != nil {
		return cv, err
	}

	if len(doc.Axes) > 0 {
		rule.Axes = make(map[string][]string, len(doc.Axes))
		for axisID, values := range doc.Axes {
			if axisID == "" {
				return cv, keyedErr(KindSchemaViolation, def.ID,
					fmt.Sprintf("rules[%d] has an axis constraint with an empty axis id", index), nil)
			}
			rule.Axes[axisID] = append([]string(nil), values...)
		}
	}

	if doc.Expression != nil && *doc.Expression != "" {
		if err := rules.ValidateExpression(*doc.Expression); err != nil {
			return cv, keyedErr(KindSchemaViolation, def.ID,
				fmt.Sprintf("rules[%d].expression is not valid JSON Logic", index), err)
		}
		rule.Extension = rules.Expression{Source: *doc.Expression}
	}

	cv.Rule = rule
	cv.Value = value
	return cv, nil
}

func decodeAllowlist(entries []string, key feature.ID) ([]feature.HexID, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make([]feature.HexID, 0, len(entries))
	for _, e := range entries {
		id, err := feature.ParseHexID(e)
		if err != nil {
			return nil, keyedErr(KindInvalidHexID, key, fmt.Sprintf("allowlist entry %q", e), err)
		}
		out = append(out, id)
	}
	return out, nil
}

func decodeVersionRange(doc *versionRangeDoc, key feature.ID, index int) (feature.VersionRange, error) {
	if doc == nil {
		return feature.Unbounded(), nil
	}
	parse := func(field string, s *string) (feature.Version, error) {
		if s == nil {
			return feature.Version{}, keyedErr(KindInvalidVersion, key,
				fmt.Sprintf("rules[%d].versionRange.%s is required for type %s", index, field, doc.Type), nil)
		}
		v, err := feature.ParseVersion(*s)
		if err != nil {
			return feature.Version{}, keyedErr(KindInvalidVersion, key,
				fmt.Sprintf("rules[%d].versionRange.%s", index, field), err)
		}
		return v, nil
	}

	switch feature.RangeType(doc.Type) {
	case feature.RangeUnbounded, "":
		return feature.Unbounded(), nil
	case feature.RangeMinBound:
		min, err := parse("min", doc.Min)
		if err != nil {
			return feature.VersionRange{}, err
		}
		return feature.AtLeast(min), nil
	case feature.RangeMaxBound:
		max, err := parse("max", doc.Max)
		if err != nil {
			return feature.VersionRange{}, err
		}
		return feature.AtMost(max), nil
	case feature.RangeFullyBound:
		min, err := parse("min", doc.Min)
		if err != nil {
			return feature.VersionRange{}, err
		}
		max, err := parse("max", doc.Max)
		if err != nil {
			return feature.VersionRange{}, err
		}
		return feature.Between(min, max), nil
	default:
		return feature.VersionRange{}, keyedErr(KindInvalidSnapshot, key,
			fmt.Sprintf("rules[%d].versionRange.type %q is unknown", index, doc.Type), nil)
	}
}

// decodeValue materializes a tagged value through the feature's
// compiled decoder. The payload's type tag must agree with the declared
// kind; enumClassName and dataClassName are deliberately ignored.
func decodeValue(doc *taggedValueDoc, def *feature.Definition, field string) (any, error) {
	if doc == nil {
		return nil, keyedErr(KindInvalidSnapshot, def.ID, field+" is required", nil)
	}
	if doc.Type != "" && doc.Type != string(def.Kind) {
		return nil, keyedErr(KindTypeMismatch, def.ID,
			fmt.Sprintf("%s tagged %s but feature is declared %s", field, doc.Type, def.Kind), nil)
	}
	if len(doc.Value) == 0 {
		return nil, keyedErr(KindInvalidSnapshot, def.ID, field+".value is required", nil)
	}
	v, err := def.DecodeValue(doc.Value)
	if err != nil {
		return nil, keyedErr(KindTypeMismatch, def.ID, field, err)
	}
	return v, nil
}
