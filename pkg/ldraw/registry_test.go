package ldraw

import "testing"

func TestRegistryStates(t *testing.T) {
	reg := NewRegistry()

	if _, state := reg.Lookup("3001.dat"); state != EntryUnknown {
		t.Errorf("state = %v, want unknown", state)
	}

	reg.MarkPending("3001.dat")
	if _, state := reg.Lookup("3001.dat"); state != EntryPending {
		t.Errorf("state = %v, want pending", state)
	}
	if !reg.Known("3001.dat") {
		t.Error("pending identity not known")
	}

	pt := NewPartType("3001.dat")
	reg.Register(pt)
	got, state := reg.Lookup("3001.DAT") // lookup normalizes
	if state != EntryLoaded || got != pt {
		t.Errorf("Lookup = (%v, %v), want loaded part", got, state)
	}

	// Re-marking a loaded entry must not regress it to pending.
	reg.MarkPending("3001.dat")
	if _, state := reg.Lookup("3001.dat"); state != EntryLoaded {
		t.Error("MarkPending regressed a loaded entry")
	}
}

func TestRegistryRemove(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewPartType("a.ldr"))
	reg.Remove("a.ldr")
	if reg.Known("a.ldr") {
		t.Error("removed identity still known")
	}
}

func TestRegistryLoadedAndPendingAreSorted(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewPartType("b.ldr"))
	reg.Register(NewPartType("a.ldr"))
	reg.MarkPending("z.dat")
	reg.MarkPending("y.dat")

	loaded := reg.Loaded()
	if len(loaded) != 2 || loaded[0].ID != "a.ldr" || loaded[1].ID != "b.ldr" {
		t.Errorf("Loaded = %v", loaded)
	}
	pending := reg.PendingIDs()
	if len(pending) != 2 || pending[0] != "y.dat" || pending[1] != "z.dat" {
		t.Errorf("PendingIDs = %v", pending)
	}
}
