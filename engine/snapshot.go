package engine

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/TimurManjosov/konditional/feature"
)

// Meta carries optional snapshot provenance.
type Meta struct {
	Version               string
	GeneratedAtEpochMilli int64
	Source                string
}

// Snapshot is an immutable, complete configuration of a namespace: one
// flag per declared feature that the configuration covers, plus
// provenance metadata and a content checksum for cache validation.
// Snapshots are never mutated after construction; the registry swaps
// whole snapshots atomically.
type Snapshot struct {
	flags    map[feature.ID]*Flag
	meta     Meta
	checksum uint64
}

// NewSnapshot builds a snapshot from flags. Duplicate feature IDs keep
// the last flag given.
func NewSnapshot(flags []*Flag, meta Meta) *Snapshot {
	m := make(map[feature.ID]*Flag, len(flags))
	for _, f := range flags {
		m[f.Feature()] = f
	}
	s := &Snapshot{flags: m, meta: meta}
	s.checksum = s.fingerprint()
	return s
}

// Flag looks up a flag by feature ID.
func (s *Snapshot) Flag(id feature.ID) (*Flag, bool) {
	f, ok := s.flags[id]
	return f, ok
}

// Len returns the number of flags in the snapshot.
func (s *Snapshot) Len() int { return len(s.flags) }

// Meta returns the snapshot's provenance metadata.
func (s *Snapshot) Meta() Meta { return s.meta }

// Features returns the snapshot's feature IDs in stable sorted order.
func (s *Snapshot) Features() []feature.ID {
	ids := make([]feature.ID, 0, len(s.flags))
	for id := range s.flags {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Flags returns the snapshot's flags in feature-ID order.
func (s *Snapshot) Flags() []*Flag {
	ids := s.Features()
	out := make([]*Flag, len(ids))
	for i, id := range ids {
		out[i] = s.flags[id]
	}
	return out
}

// Checksum is a content hash over the snapshot's structure, usable as a
// cheap change-detection tag. Contextual values hash by presence only.
func (s *Snapshot) Checksum() uint64 { return s.checksum }

// Tag renders the checksum in weak-ETag form.
func (s *Snapshot) Tag() string {
	return fmt.Sprintf(`W/"%016x"`, s.checksum)
}

func (s *Snapshot) fingerprint() uint64 {
	d := xxhash.New()
	fmt.Fprintf(d, "meta:%s:%d:%s\n", s.meta.Version, s.meta.GeneratedAtEpochMilli, s.meta.Source)
	for _, id := range s.Features() {
		f := s.flags[id]
		fmt.Fprintf(d, "flag:%s:%s:%t:%v\n", id, f.salt, f.active, f.defaultV)
		for _, a := range f.allowlist {
			fmt.Fprintf(d, "allow:%s\n", a)
		}
		for i := range f.values {
			cv := &f.values[i]
			r := &cv.Rule
			fmt.Fprintf(d, "rule:%g:%q:%v:%v:%v:%v:%v\n",
				r.RampUp, r.Note, r.Allowlist, r.Locales, r.Platforms, r.Versions, sortedAxes(r.Axes))
			if cv.IsContextual() {
				fmt.Fprint(d, "value:contextual\n")
			} else {
				fmt.Fprintf(d, "value:%v\n", cv.Value)
			}
		}
	}
	return d.Sum64()
}

func sortedAxes(axes map[string][]string) []string {
	out := make([]string, 0, len(axes))
	for id, values := range axes {
		out = append(out, fmt.Sprintf("%s=%v", id, values))
	}
	sort.Strings(out)
	return out
}
