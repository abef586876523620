package registry

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/TimurManjosov/konditional/engine"
	"github.com/TimurManjosov/konditional/feature"
)

func testSetup(t *testing.T) (*feature.Namespace, feature.Feature[string]) {
	t.Helper()
	ns := feature.NewNamespace("checkout", "a1f3")
	banner := feature.String(ns, "bannerText", "default")
	return ns, banner
}

func snapWith(banner feature.Feature[string], value string, version string) *engine.Snapshot {
	return engine.NewSnapshot(
		[]*engine.Flag{engine.NewFlag(banner.Definition(), value)},
		engine.Meta{Version: version})
}

func TestRegistry_LoadAndCurrent(t *testing.T) {
	_, banner := testSetup(t)
	r := New("checkout")

	if r.Current().Len() != 0 {
		t.Fatal("fresh registry should hold an empty snapshot")
	}
	if r.Version() != 0 {
		t.Fatalf("fresh registry version = %d", r.Version())
	}

	snap := snapWith(banner, "v1", "v1")
	r.Load(snap)
	if r.Current() != snap {
		t.Error("Load did not install the snapshot")
	}
	if r.Version() != 1 {
		t.Errorf("version = %d, want 1", r.Version())
	}
	if got := len(r.History()); got != 1 {
		t.Errorf("history length = %d, want 1 (the initial empty snapshot)", got)
	}
}

func TestRegistry_HistoryBound(t *testing.T) {
	_, banner := testSetup(t)
	r := New("checkout", WithHistoryCapacity(3))

	for i := 0; i < 10; i++ {
		r.Load(snapWith(banner, "v", ""))
	}
	if got := len(r.History()); got != 3 {
		t.Errorf("history length = %d, want cap 3", got)
	}
}

func TestRegistry_Rollback(t *testing.T) {
	_, banner := testSetup(t)
	r := New("checkout")

	s1 := snapWith(banner, "one", "v1")
	s2 := snapWith(banner, "two", "v2")
	s3 := snapWith(banner, "three", "v3")
	r.Load(s1)
	r.Load(s2)
	r.Load(s3)

	if !r.Rollback(2) {
		t.Fatal("rollback(2) should succeed")
	}
	if r.Current() != s1 {
		t.Errorf("expected s1 current after rollback(2), got meta %q", r.Current().Meta().Version)
	}
	// s1 was pushed when s2 installed; rollback(2) pops s2 and s1 and
	// installs s1, leaving only the initial empty snapshot.
	if got := len(r.History()); got != 1 {
		t.Errorf("history length = %d, want 1", got)
	}
}

func TestRegistry_RollbackTooDeep(t *testing.T) {
	_, banner := testSetup(t)
	r := New("checkout")
	r.Load(snapWith(banner, "one", "v1"))

	before := r.Current()
	if r.Rollback(5) {
		t.Error("rollback deeper than history should fail")
	}
	if r.Current() != before {
		t.Error("failed rollback must not change current")
	}
	if r.Rollback(0) {
		t.Error("rollback(0) should fail")
	}
}

func TestRegistry_VersionMonotone(t *testing.T) {
	_, banner := testSetup(t)
	r := New("checkout")

	last := r.Version()
	for i := 0; i < 5; i++ {
		r.Load(snapWith(banner, "v", ""))
		if v := r.Version(); v <= last {
			t.Fatalf("version did not advance: %d -> %d", last, v)
		} else {
			last = v
		}
	}
	r.Rollback(1)
	if v := r.Version(); v <= last {
		t.Error("rollback should also advance the install version")
	}
}

func TestRegistry_KillSwitch(t *testing.T) {
	r := New("checkout")
	if r.Disabled() {
		t.Error("fresh registry should be enabled")
	}
	r.DisableAll()
	if !r.Disabled() {
		t.Error("DisableAll should set the kill-switch")
	}
	r.EnableAll()
	if r.Disabled() {
		t.Error("EnableAll should clear the kill-switch")
	}
}

func TestRegistry_FindFlag(t *testing.T) {
	_, banner := testSetup(t)
	r := New("checkout")
	r.Load(snapWith(banner, "hello", ""))

	flag, ok := r.FindFlag(banner.ID())
	if !ok || flag.Default() != "hello" {
		t.Errorf("FindFlag returned %v, %v", flag, ok)
	}
	if _, ok := r.FindFlag("feature::a1f3::missing"); ok {
		t.Error("unknown feature should not be found")
	}
}

func TestHandle_PinsSnapshot(t *testing.T) {
	_, banner := testSetup(t)
	r := New("checkout")
	s1 := snapWith(banner, "one", "v1")
	r.Load(s1)

	h := r.Snapshot()
	r.Load(snapWith(banner, "two", "v2"))

	if h.Snapshot() != s1 {
		t.Error("handle must keep the pinned snapshot across swaps")
	}
	if v := Evaluate(h, banner, &feature.Context{}); v != "one" {
		t.Errorf("pinned evaluation = %q, want %q", v, "one")
	}
	if v := Evaluate(r, banner, &feature.Context{}); v != "two" {
		t.Errorf("live evaluation = %q, want %q", v, "two")
	}
}

func TestRegistry_ConcurrentLoadRollbackEvaluate(t *testing.T) {
	// Readers must only ever observe installed snapshot values, and
	// after a rollback to s1 completes, only s1's value.
	_, banner := testSetup(t)
	r := New("checkout")

	s1 := snapWith(banner, "one", "v1")
	s2 := snapWith(banner, "two", "v2")
	s3 := snapWith(banner, "three", "v3")
	r.Load(s1)
	r.Load(s2)
	r.Load(s3)

	valid := map[string]bool{"one": true, "two": true, "three": true}
	var rolledBack atomic.Bool
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 2000; j++ {
				after := rolledBack.Load()
				v := Evaluate(r, banner, &feature.Context{})
				if !valid[v] {
					t.Errorf("observed value %q outside installed snapshots", v)
					return
				}
				if after && v != "one" {
					t.Errorf("observed %q after rollback completed", v)
					return
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if !r.Rollback(2) {
			t.Error("rollback(2) should succeed")
		}
		rolledBack.Store(true)
	}()

	wg.Wait()
	if r.Current() != s1 {
		t.Error("rollback should have installed s1")
	}
}
