package feature

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// decodeFunc materializes a runtime value of the declared kind from its
// raw JSON encoding. One is compiled per feature at declaration time so
// the codec never consults payload-provided type names.
type decodeFunc func(json.RawMessage) (any, error)

// encodeFunc is the inverse of decodeFunc.
type encodeFunc func(any) (json.RawMessage, error)

// Definition is the trusted, in-memory registration of a single
// feature: its identity, declared kind, declared default, and the
// compiled value codec.
type Definition struct {
	ID           ID
	Name         string
	Kind         Kind
	Default      any
	EnumClass    string   // declared enum type name, informational only
	EnumVariants []string // allowed variant names for KindEnum, sorted
	StructClass  string   // declared struct type name, informational only

	decode decodeFunc
	encode encodeFunc
}

// DecodeValue decodes raw JSON into a runtime value of the declared
// kind.
func (d *Definition) DecodeValue(raw json.RawMessage) (any, error) {
	return d.decode(raw)
}

// EncodeValue encodes a runtime value of the declared kind to JSON.
func (d *Definition) EncodeValue(v any) (json.RawMessage, error) {
	return d.encode(v)
}

// Namespace is a logical grouping of features sharing an identifier
// seed and an axis catalog. Feature declarations happen once, during
// program initialization; the populated namespace then acts as the
// compiled schema for codec decode.
type Namespace struct {
	name string
	seed string
	axes *AxisCatalog

	mu     sync.RWMutex
	defs   map[ID]*Definition
	byName map[string]*Definition
}

// NewNamespace creates an empty namespace. The seed feeds feature ID
// derivation and must be stable across releases.
func NewNamespace(name, seed string) *Namespace {
	if name == "" || seed == "" {
		panic("feature: namespace name and seed must not be empty")
	}
	return &Namespace{
		name:   name,
		seed:   seed,
		axes:   NewAxisCatalog(),
		defs:   make(map[ID]*Definition),
		byName: make(map[string]*Definition),
	}
}

// Name returns the namespace name.
func (ns *Namespace) Name() string { return ns.name }

// Seed returns the namespace identifier seed.
func (ns *Namespace) Seed() string { return ns.seed }

// Axes returns the namespace's axis catalog.
func (ns *Namespace) Axes() *AxisCatalog { return ns.axes }

// LookupFeature resolves a feature ID against the trusted registration
// index.
func (ns *Namespace) LookupFeature(id ID) (*Definition, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	d, ok := ns.defs[id]
	return d, ok
}

// Definitions returns all registered definitions sorted by feature ID.
func (ns *Namespace) Definitions() []*Definition {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	out := make([]*Definition, 0, len(ns.defs))
	for _, d := range ns.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered features.
func (ns *Namespace) Len() int {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return len(ns.defs)
}

// register installs a definition, panicking on duplicate names.
// Duplicate registration is a programmer error: declarations run once
// at init time.
func (ns *Namespace) register(d *Definition) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if _, dup := ns.byName[d.Name]; dup {
		panic(fmt.Sprintf("feature: %q already declared in namespace %q", d.Name, ns.name))
	}
	ns.defs[d.ID] = d
	ns.byName[d.Name] = d
}

// Feature is a typed handle to a declared feature. It is the
// compile-time key applications pass to the evaluation API.
type Feature[T any] struct {
	def *Definition
}

// ID returns the feature's globally unique identifier.
func (f Feature[T]) ID() ID { return f.def.ID }

// Definition returns the underlying trusted registration.
func (f Feature[T]) Definition() *Definition { return f.def }

// Default returns the declared default value.
func (f Feature[T]) Default() T { return f.def.Default.(T) }

// Bool declares a boolean feature.
func Bool(ns *Namespace, name string, def bool) Feature[bool] {
	d := &Definition{
		ID:      NewID(ns.seed, name),
		Name:    name,
		Kind:    KindBool,
		Default: def,
		decode:  decodeScalar[bool](KindBool),
		encode:  encodeScalar[bool](KindBool),
	}
	ns.register(d)
	return Feature[bool]{def: d}
}

// Int declares an integer feature.
func Int(ns *Namespace, name string, def int64) Feature[int64] {
	d := &Definition{
		ID:      NewID(ns.seed, name),
		Name:    name,
		Kind:    KindInt,
		Default: def,
		decode:  decodeScalar[int64](KindInt),
		encode:  encodeScalar[int64](KindInt),
	}
	ns.register(d)
	return Feature[int64]{def: d}
}

// Double declares a floating-point feature.
func Double(ns *Namespace, name string, def float64) Feature[float64] {
	d := &Definition{
		ID:      NewID(ns.seed, name),
		Name:    name,
		Kind:    KindDouble,
		Default: def,
		decode:  decodeScalar[float64](KindDouble),
		encode:  encodeScalar[float64](KindDouble),
	}
	ns.register(d)
	return Feature[float64]{def: d}
}

// String declares a string feature.
func String(ns *Namespace, name string, def string) Feature[string] {
	d := &Definition{
		ID:      NewID(ns.seed, name),
		Name:    name,
		Kind:    KindString,
		Default: def,
		decode:  decodeScalar[string](KindString),
		encode:  encodeScalar[string](KindString),
	}
	ns.register(d)
	return Feature[string]{def: d}
}

// Enum declares an enum feature over a string-based variant type. The
// default must be one of the variants.
func Enum[E ~string](ns *Namespace, name, enumClass string, variants []E, def E) Feature[E] {
	names := make([]string, len(variants))
	allowed := make(map[string]struct{}, len(variants))
	for i, v := range variants {
		names[i] = string(v)
		allowed[string(v)] = struct{}{}
	}
	sort.Strings(names)
	if _, ok := allowed[string(def)]; !ok {
		panic(fmt.Sprintf("feature: default %q is not a variant of enum %q", def, enumClass))
	}
	d := &Definition{
		ID:           NewID(ns.seed, name),
		Name:         name,
		Kind:         KindEnum,
		Default:      def,
		EnumClass:    enumClass,
		EnumVariants: names,
		decode: func(raw json.RawMessage) (any, error) {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, fmt.Errorf("enum value must be a string: %w", err)
			}
			if _, ok := allowed[s]; !ok {
				return nil, fmt.Errorf("%q is not a variant of enum %q", s, enumClass)
			}
			return E(s), nil
		},
		encode: func(v any) (json.RawMessage, error) {
			e, ok := v.(E)
			if !ok {
				return nil, fmt.Errorf("value %T is not enum %q", v, enumClass)
			}
			return json.Marshal(string(e))
		},
	}
	ns.register(d)
	return Feature[E]{def: d}
}

// Struct declares a structured feature carrying a Go struct value. The
// struct's JSON shape is the wire encoding; the compiled codec closure
// is the only decode path, so payload-provided class names never select
// a type.
func Struct[S any](ns *Namespace, name, structClass string, def S) Feature[S] {
	d := &Definition{
		ID:          NewID(ns.seed, name),
		Name:        name,
		Kind:        KindStruct,
		Default:     def,
		StructClass: structClass,
		decode: func(raw json.RawMessage) (any, error) {
			var v S
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("invalid %s value: %w", structClass, err)
			}
			return v, nil
		},
		encode: func(v any) (json.RawMessage, error) {
			s, ok := v.(S)
			if !ok {
				return nil, fmt.Errorf("value %T is not %s", v, structClass)
			}
			return json.Marshal(s)
		},
	}
	ns.register(d)
	return Feature[S]{def: d}
}

func decodeScalar[T any](kind Kind) decodeFunc {
	return func(raw json.RawMessage) (any, error) {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("invalid %s value: %w", kind, err)
		}
		return v, nil
	}
}

func encodeScalar[T any](kind Kind) encodeFunc {
	return func(v any) (json.RawMessage, error) {
		t, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("value %T does not match declared kind %s", v, kind)
		}
		return json.Marshal(t)
	}
}
