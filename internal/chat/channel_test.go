package chat

import (
	"sort"
	"testing"
)

func TestChannelManagerIDsFromFreelist(t *testing.T) {
	m := newChannelManager()

	a := m.create("alpha", "", "", true)
	b := m.create("beta", "", "", true)
	c := m.create("gamma", "", "", true)
	if a.ID != 1 || b.ID != 2 || c.ID != 3 {
		t.Fatalf("ids = %d,%d,%d; want 1,2,3", a.ID, b.ID, c.ID)
	}

	m.remove(b)
	if m.byID(2) != nil {
		t.Error("removed channel still resolvable by id")
	}
	if m.lookup("beta") != nil {
		t.Error("removed channel still resolvable by name")
	}

	// The freed id is reused before the counter advances.
	d := m.create("delta", "", "", true)
	if d.ID != 2 {
		t.Errorf("reused id = %d, want 2", d.ID)
	}
	e := m.create("epsilon", "", "", true)
	if e.ID != 4 {
		t.Errorf("next id = %d, want 4", e.ID)
	}
}

func TestChannelManagerLookup(t *testing.T) {
	m := newChannelManager()
	ch := m.create("lobby", "welcome", "pw", true)

	if m.lookup("lobby") != ch {
		t.Error("lookup by name failed")
	}
	if m.byID(ch.ID) != ch {
		t.Error("lookup by id failed")
	}
	if m.lookup("absent") != nil {
		t.Error("unknown name resolved")
	}
}

func TestChannelMembers(t *testing.T) {
	m := newChannelManager()
	ch := m.create("lobby", "", "", true)

	one := &Client{characterName: "One"}
	two := &Client{characterName: "Two"}
	ch.clients[one] = struct{}{}
	ch.clients[two] = struct{}{}

	names := ch.memberNames()
	sort.Strings(names)
	if len(names) != 2 || names[0] != "One" || names[1] != "Two" {
		t.Errorf("memberNames = %v", names)
	}
	if len(ch.memberClients()) != 2 {
		t.Errorf("memberClients = %d entries, want 2", len(ch.memberClients()))
	}
}
