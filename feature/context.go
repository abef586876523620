package feature

// Context carries the evaluation inputs for a single user or session.
// StableID may be empty for anonymous contexts; rules that need a
// bucket or an allowlist check against such a context produce a
// diagnostic and fall back to the default value.
type Context struct {
	Locale     string         `json:"locale,omitempty"`
	Platform   string         `json:"platform,omitempty"`
	AppVersion Version        `json:"appVersion"`
	StableID   HexID          `json:"stableId,omitempty"`
	Axes       AxisValues     `json:"axes,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// HasStableID reports whether the context identifies a stable user.
func (c *Context) HasStableID() bool {
	return c != nil && c.StableID != ""
}

// LogicData flattens the context into the attribute map handed to
// extension predicates. Well-known fields win over same-named custom
// attributes.
func (c *Context) LogicData() map[string]any {
	if c == nil {
		return map[string]any{}
	}
	data := make(map[string]any, len(c.Attributes)+len(c.Axes)+5)
	for k, v := range c.Attributes {
		data[k] = v
	}
	if len(c.Axes) > 0 {
		axes := make(map[string]any, len(c.Axes))
		for axisID, values := range c.Axes {
			ids := make([]any, len(values))
			for i, v := range values {
				ids[i] = v
			}
			axes[axisID] = ids
		}
		data["axes"] = axes
	}
	if c.Locale != "" {
		data["locale"] = c.Locale
	}
	if c.Platform != "" {
		data["platform"] = c.Platform
	}
	if c.StableID != "" {
		data["stableId"] = string(c.StableID)
	}
	data["appVersion"] = c.AppVersion.String()
	return data
}
