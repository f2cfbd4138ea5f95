package mapregistry

import (
	"sort"
	"testing"
)

func TestAssignAndLookup(t *testing.T) {
	r := New[string]()

	if _, ok := r.Lookup(1); ok {
		t.Fatal("empty registry should not resolve map 1")
	}

	r.Assign(1, "alpha")
	r.Assign(2, "alpha")
	r.Assign(3, "beta")

	h, ok := r.Lookup(1)
	if !ok || h != "alpha" {
		t.Errorf("Lookup(1) = %q, %v; want alpha, true", h, ok)
	}
	if !r.Owns(2, "alpha") {
		t.Error("alpha should own map 2")
	}
	if r.Owns(2, "beta") {
		t.Error("beta should not own map 2")
	}
	if r.Owns(99, "alpha") {
		t.Error("nobody owns map 99")
	}
}

func TestReassignReplacesOwner(t *testing.T) {
	r := New[string]()
	r.Assign(1, "alpha")
	r.Assign(1, "beta")

	h, ok := r.Lookup(1)
	if !ok || h != "beta" {
		t.Errorf("Lookup(1) = %q, %v; want beta, true", h, ok)
	}
	if r.Owns(1, "alpha") {
		t.Error("alpha lost ownership on reassignment")
	}
}

func TestReleaseFreesAllMapsOfHandle(t *testing.T) {
	r := New[string]()
	r.Assign(1, "alpha")
	r.Assign(2, "alpha")
	r.Assign(3, "beta")

	freed := r.Release("alpha")
	sort.Ints(freed)
	if len(freed) != 2 || freed[0] != 1 || freed[1] != 2 {
		t.Errorf("Release(alpha) = %v, want [1 2]", freed)
	}
	if _, ok := r.Lookup(1); ok {
		t.Error("map 1 still resolves after release")
	}
	if _, ok := r.Lookup(3); !ok {
		t.Error("map 3 must survive alpha's release")
	}
	if freed := r.Release("alpha"); len(freed) != 0 {
		t.Errorf("second Release(alpha) = %v, want empty", freed)
	}
}

func TestStatsFollowOwnership(t *testing.T) {
	r := New[string]()
	r.Assign(1, "alpha")

	r.SetStats(1, Stats{Entities: 10, Monsters: 4, Players: []int{7, 8}})
	s, ok := r.Stats(1)
	if !ok || s.Entities != 10 || s.Monsters != 4 || len(s.Players) != 2 {
		t.Errorf("Stats(1) = %+v, %v", s, ok)
	}

	// Stats for an unassigned map are dropped.
	r.SetStats(2, Stats{Entities: 1})
	if _, ok := r.Stats(2); ok {
		t.Error("stats recorded for unassigned map")
	}

	r.Release("alpha")
	if _, ok := r.Stats(1); ok {
		t.Error("stats survived the owner's release")
	}
}

func TestIterate(t *testing.T) {
	r := New[string]()
	r.Assign(1, "alpha")
	r.Assign(2, "beta")

	seen := map[int]string{}
	r.Iterate(func(mapID int, h string, _ Stats) {
		seen[mapID] = h
	})
	if len(seen) != 2 || seen[1] != "alpha" || seen[2] != "beta" {
		t.Errorf("Iterate saw %v", seen)
	}
}
