package codec

import (
	"encoding/json"
	"sort"

	"github.com/TimurManjosov/konditional/engine"
	"github.com/TimurManjosov/konditional/feature"
	"github.com/TimurManjosov/konditional/rules"
)

// Encode renders a snapshot as deterministic JSON: flags sorted by
// feature ID, rules in the flag's precedence order (descending
// specificity, definition order among rules of equal specificity), and
// every set field as a sorted array. The original definition order of
// rules with different specificity is not kept. Encoding the same
// snapshot twice yields byte-identical output.
//
// Contextual rule values and non-serializable extension predicates are
// rejected with a typed error.
func Encode(snap *engine.Snapshot) ([]byte, error) {
	doc := snapshotDoc{Flags: make([]flagDoc, 0, snap.Len())}

	if meta := snap.Meta(); meta != (engine.Meta{}) {
		doc.Meta = &metaDoc{}
		if meta.Version != "" {
			doc.Meta.Version = &meta.Version
		}
		if meta.GeneratedAtEpochMilli != 0 {
			doc.Meta.GeneratedAtEpochMilli = &meta.GeneratedAtEpochMilli
		}
		if meta.Source != "" {
			doc.Meta.Source = &meta.Source
		}
	}

	for _, flag := range snap.Flags() {
		fd, err := encodeFlag(flag)
		if err != nil {
			return nil, err
		}
		doc.Flags = append(doc.Flags, fd)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, &ParseError{Kind: KindInvalidSnapshot, Detail: "marshal snapshot", Err: err}
	}
	return data, nil
}

func encodeFlag(flag *engine.Flag) (flagDoc, error) {
	def := flag.Definition()

	defaultValue, err := encodeValue(flag.Default(), def, "defaultValue")
	if err != nil {
		return flagDoc{}, err
	}

	fd := flagDoc{
		Key:             string(flag.Feature()),
		DefaultValue:    defaultValue,
		RampUpAllowlist: sortedHexIDs(flag.Allowlist()),
	}
	if salt := flag.Salt(); salt != engine.DefaultSalt {
		fd.Salt = &salt
	}
	if !flag.Active() {
		active := false
		fd.IsActive = &active
	}

	values := flag.Values()
	for i := range values {
		rd, err := encodeRule(&values[i], def, i)
		if err != nil {
			return flagDoc{}, err
		}
		fd.Rules = append(fd.Rules, rd)
	}
	return fd, nil
}

func encodeRule(cv *engine.ConditionalValue, def *feature.Definition, index int) (ruleDoc, error) {
	if cv.IsContextual() {
		return ruleDoc{}, keyedErr(KindSchemaViolation, def.ID,
			"contextual rule values are not serializable", nil)
	}
	value, err := encodeValue(cv.Value, def, "rule value")
	if err != nil {
		return ruleDoc{}, err
	}

	r := &cv.Rule
	rd := ruleDoc{
		Value:           value,
		RampUpAllowlist: sortedHexIDs(r.Allowlist),
		Locales:         sortedStrings(r.Locales),
		Platforms:       sortedStrings(r.Platforms),
	}
	if r.RampUp != 100 {
		rampUp := r.RampUp
		rd.RampUp = &rampUp
	}
	if r.Note != "" {
		note := r.Note
		rd.Note = &note
	}
	if r.Versions.Bounded() {
		rd.VersionRange = encodeVersionRange(r.Versions)
	}
	if len(r.Axes) > 0 {
		rd.Axes = make(map[string][]string, len(r.Axes))
		for axisID, values := range r.Axes {
			rd.Axes[axisID] = sortedStrings(values)
		}
	}
	if r.Extension != nil {
		expr, ok := r.Extension.(rules.Expression)
		if !ok {
			return ruleDoc{}, keyedErr(KindSchemaViolation, def.ID,
				"extension predicate is not serializable", nil)
		}
		source := expr.Source
		rd.Expression = &source
	}
	return rd, nil
}

func encodeVersionRange(r feature.VersionRange) *versionRangeDoc {
	doc := &versionRangeDoc{Type: string(r.Type)}
	if r.Min != nil {
		min := r.Min.String()
		doc.Min = &min
	}
	if r.Max != nil {
		max := r.Max.String()
		doc.Max = &max
	}
	return doc
}

func encodeValue(v any, def *feature.Definition, field string) (*taggedValueDoc, error) {
	raw, err := def.EncodeValue(v)
	if err != nil {
		return nil, keyedErr(KindTypeMismatch, def.ID, field, err)
	}
	doc := &taggedValueDoc{Type: string(def.Kind), Value: raw}
	if def.EnumClass != "" {
		enumClass := def.EnumClass
		doc.EnumClassName = &enumClass
	}
	if def.StructClass != "" {
		structClass := def.StructClass
		doc.DataClassName = &structClass
	}
	return doc, nil
}

func sortedStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func sortedHexIDs(in []feature.HexID) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, id := range in {
		out[i] = string(id)
	}
	sort.Strings(out)
	return out
}
