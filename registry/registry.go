// Package registry holds the runtime state of a namespace: the current
// configuration snapshot behind an atomically swappable pointer, a
// bounded rollback history, a kill-switch, and the observability hooks.
// Reads are wait-free; control-plane writes (load, rollback) serialize
// on a single mutex and form one linearizable order, witnessed by a
// monotone version counter carried with every swap. The kill-switch is
// a separate atomic flag, set and cleared outside that mutex and not
// versioned.
package registry

import (
	"sync"
	"sync/atomic"

	"github.com/TimurManjosov/konditional/engine"
	"github.com/TimurManjosov/konditional/feature"
	"github.com/TimurManjosov/konditional/hooks"
)

// DefaultHistoryCapacity bounds the rollback history unless overridden
// with WithHistoryCapacity.
const DefaultHistoryCapacity = 32

// versioned pairs a snapshot with its install version so readers
// observe both in one atomic load.
type versioned struct {
	snap    *engine.Snapshot
	version uint64
}

// Registry is the per-namespace snapshot holder. The zero value is not
// usable; construct with New.
type Registry struct {
	namespace string

	mu         sync.Mutex // guards current swaps, history, version
	current    atomic.Pointer[versioned]
	history    []*engine.Snapshot // oldest first, tail-most last
	historyCap int
	version    uint64

	disabled atomic.Bool

	logger  hooks.Logger
	metrics hooks.Metrics
}

// Option configures a Registry under construction.
type Option func(*Registry)

// WithHistoryCapacity bounds the rollback history. Values below 1 keep
// the default.
func WithHistoryCapacity(n int) Option {
	return func(r *Registry) {
		if n >= 1 {
			r.historyCap = n
		}
	}
}

// WithLogger installs the logger hook.
func WithLogger(l hooks.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics installs the metrics hook.
func WithMetrics(m hooks.Metrics) Option {
	return func(r *Registry) {
		if m != nil {
			r.metrics = m
		}
	}
}

// New creates a registry for the named namespace, starting from an
// empty snapshot.
func New(namespace string, opts ...Option) *Registry {
	r := &Registry{
		namespace:  namespace,
		historyCap: DefaultHistoryCapacity,
		logger:     hooks.NopLogger{},
		metrics:    hooks.NopMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.current.Store(&versioned{snap: engine.NewSnapshot(nil, engine.Meta{})})
	return r
}

// Namespace returns the registry's namespace name.
func (r *Registry) Namespace() string { return r.namespace }

// Load atomically installs snap as the current snapshot. The previous
// current snapshot is pushed onto the history tail; if the history then
// exceeds its capacity the oldest entry is dropped.
func (r *Registry) Load(snap *engine.Snapshot) {
	if snap == nil {
		return
	}
	r.mu.Lock()
	prev := r.current.Load()
	r.history = append(r.history, prev.snap)
	if len(r.history) > r.historyCap {
		r.history = r.history[len(r.history)-r.historyCap:]
	}
	r.version++
	installed := r.version
	r.current.Store(&versioned{snap: snap, version: installed})
	depth := len(r.history)
	r.mu.Unlock()

	r.logger.Info(func() string {
		return logf("registry %s: loaded snapshot version=%d flags=%d tag=%s history=%d",
			r.namespace, installed, snap.Len(), snap.Tag(), depth)
	})
}

// Rollback atomically pops steps entries from the history tail and
// installs the earliest popped entry as current. It returns false and
// changes nothing when fewer than steps entries exist or steps < 1.
func (r *Registry) Rollback(steps int) bool {
	if steps < 1 {
		return false
	}
	r.mu.Lock()
	if len(r.history) < steps {
		r.mu.Unlock()
		return false
	}
	target := r.history[len(r.history)-steps]
	r.history = r.history[:len(r.history)-steps]
	r.version++
	installed := r.version
	r.current.Store(&versioned{snap: target, version: installed})
	r.mu.Unlock()

	r.logger.Warn(func() string {
		return logf("registry %s: rolled back %d step(s) to snapshot tag=%s (version=%d)",
			r.namespace, steps, target.Tag(), installed)
	})
	return true
}

// Current returns the current snapshot. Wait-free.
func (r *Registry) Current() *engine.Snapshot {
	return r.current.Load().snap
}

// Version returns the monotone install counter accompanying the
// current snapshot.
func (r *Registry) Version() uint64 {
	return r.current.Load().version
}

// History returns a consistent copy of the rollback history, tail-most
// (most recently replaced) last.
func (r *Registry) History() []*engine.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*engine.Snapshot(nil), r.history...)
}

// DisableAll sets the kill-switch: every evaluation returns the
// feature's declared default until EnableAll.
func (r *Registry) DisableAll() {
	r.disabled.Store(true)
	r.logger.Warn(func() string { return logf("registry %s: kill-switch engaged", r.namespace) })
}

// EnableAll clears the kill-switch.
func (r *Registry) EnableAll() {
	r.disabled.Store(false)
	r.logger.Info(func() string { return logf("registry %s: kill-switch released", r.namespace) })
}

// Disabled reports whether the kill-switch is set.
func (r *Registry) Disabled() bool { return r.disabled.Load() }

// FindFlag looks up a flag in the current snapshot.
func (r *Registry) FindFlag(id feature.ID) (*engine.Flag, bool) {
	return r.Current().Flag(id)
}

// Snapshot returns a handle pinning the current snapshot. A composite
// evaluation over several features through the handle sees one
// consistent snapshot even if swaps happen in between.
func (r *Registry) Snapshot() *Handle {
	v := r.current.Load()
	return &Handle{
		registry: r,
		snap:     v.snap,
		version:  v.version,
		disabled: r.disabled.Load(),
	}
}

// Handle pins exactly one snapshot (and the kill-switch state observed
// at pin time) for its lifetime.
type Handle struct {
	registry *Registry
	snap     *engine.Snapshot
	version  uint64
	disabled bool
}

// Snapshot returns the pinned snapshot.
func (h *Handle) Snapshot() *engine.Snapshot { return h.snap }

// Version returns the pinned install version.
func (h *Handle) Version() uint64 { return h.version }

// FindFlag looks up a flag in the pinned snapshot.
func (h *Handle) FindFlag(id feature.ID) (*engine.Flag, bool) {
	return h.snap.Flag(id)
}

// view implementations let the generic evaluation functions run
// against either the live registry or a pinned handle.

func (r *Registry) view() (*engine.Snapshot, uint64, bool) {
	v := r.current.Load()
	return v.snap, v.version, r.disabled.Load()
}

func (r *Registry) hookset() (hooks.Logger, hooks.Metrics) { return r.logger, r.metrics }

func (h *Handle) view() (*engine.Snapshot, uint64, bool) {
	return h.snap, h.version, h.disabled
}

func (h *Handle) hookset() (hooks.Logger, hooks.Metrics) { return h.registry.hookset() }

func (h *Handle) Namespace() string { return h.registry.namespace }
