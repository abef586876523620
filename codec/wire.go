package codec

import "encoding/json"

// Wire documents. Field names and defaults follow the snapshot JSON
// contract: salt defaults to "v1", isActive to true, rampUp to 100,
// array fields to empty.

type snapshotDoc struct {
	Meta  *metaDoc  `json:"meta,omitempty"`
	Flags []flagDoc `json:"flags"`
}

type metaDoc struct {
	Version               *string `json:"version,omitempty"`
	GeneratedAtEpochMilli *int64  `json:"generatedAtEpochMillis,omitempty"`
	Source                *string `json:"source,omitempty"`
}

type flagDoc struct {
	Key             string          `json:"key"`
	DefaultValue    *taggedValueDoc `json:"defaultValue"`
	Salt            *string         `json:"salt,omitempty"`
	IsActive        *bool           `json:"isActive,omitempty"`
	RampUpAllowlist []string        `json:"rampUpAllowlist,omitempty"`
	Rules           []ruleDoc       `json:"rules,omitempty"`
}

type ruleDoc struct {
	Value           *taggedValueDoc     `json:"value"`
	RampUp          *float64            `json:"rampUp,omitempty"`
	RampUpAllowlist []string            `json:"rampUpAllowlist,omitempty"`
	Note            *string             `json:"note,omitempty"`
	Locales         []string            `json:"locales,omitempty"`
	Platforms       []string            `json:"platforms,omitempty"`
	VersionRange    *versionRangeDoc    `json:"versionRange,omitempty"`
	Axes            map[string][]string `json:"axes,omitempty"`
	Expression      *string             `json:"expression,omitempty"`
}

type versionRangeDoc struct {
	Type string  `json:"type"`
	Min  *string `json:"min,omitempty"`
	Max  *string `json:"max,omitempty"`
}

// taggedValueDoc is the tagged value encoding. EnumClassName and
// DataClassName exist on the wire for cross-client compatibility; the
// decoder never reads them (the trusted schema dictates the type).
type taggedValueDoc struct {
	Type          string          `json:"type"`
	Value         json.RawMessage `json:"value"`
	EnumClassName *string         `json:"enumClassName,omitempty"`
	DataClassName *string         `json:"dataClassName,omitempty"`
}

type patchDoc struct {
	Meta       *metaDoc  `json:"meta,omitempty"`
	Flags      []flagDoc `json:"flags,omitempty"`
	RemoveKeys []string  `json:"removeKeys,omitempty"`
}
