package codec

import (
	"encoding/json"

	"github.com/TimurManjosov/konditional/engine"
	"github.com/TimurManjosov/konditional/feature"
)

// ApplyPatch applies a patch document to the current snapshot: keys in
// removeKeys are dropped, flags in the payload are upserted (replacing
// any prior entry for the same key), and the result is revalidated
// against the schema exactly like a full decode. The patched snapshot
// is deterministic given identical inputs; the current snapshot is
// never modified.
func ApplyPatch(current *engine.Snapshot, schema Schema, patchJSON []byte, opts Options) (*Materialized, error) {
	var doc patchDoc
	if err := json.Unmarshal(patchJSON, &doc); err != nil {
		return nil, &ParseError{Kind: KindInvalidJSON, Detail: "patch document", Err: err}
	}

	removed := make(map[feature.ID]struct{}, len(doc.RemoveKeys))
	for _, key := range doc.RemoveKeys {
		if _, _, err := feature.ParseID(key); err != nil {
			return nil, &ParseError{Kind: KindInvalidSnapshot, Detail: "malformed removeKeys entry", Err: err}
		}
		removed[feature.ID(key)] = struct{}{}
	}

	base := make(map[feature.ID]*engine.Flag, current.Len())
	for _, flag := range current.Flags() {
		if _, drop := removed[flag.Feature()]; drop {
			continue
		}
		base[flag.Feature()] = flag
	}

	meta := doc.Meta
	if meta == nil {
		// A patch without its own meta keeps the current snapshot's.
		m := current.Meta()
		meta = &metaDoc{}
		if m.Version != "" {
			meta.Version = &m.Version
		}
		if m.GeneratedAtEpochMilli != 0 {
			meta.GeneratedAtEpochMilli = &m.GeneratedAtEpochMilli
		}
		if m.Source != "" {
			meta.Source = &m.Source
		}
	}

	return materialize(meta, doc.Flags, base, schema, opts)
}
