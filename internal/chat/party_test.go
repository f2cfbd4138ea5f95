package chat

import (
	"testing"
	"time"
)

func TestPartyInviteConsumedOnce(t *testing.T) {
	m := newPartyManager()
	now := time.Now()

	m.addInvite("Ann", "Bob", now)
	if !m.takeInvite("Ann", "Bob", now) {
		t.Fatal("fresh invite not found")
	}
	if m.takeInvite("Ann", "Bob", now) {
		t.Error("invite consumed twice")
	}
}

func TestPartyInviteMatchesBothNames(t *testing.T) {
	m := newPartyManager()
	now := time.Now()

	m.addInvite("Ann", "Bob", now)
	if m.takeInvite("Bob", "Ann", now) {
		t.Error("reversed names matched")
	}
	if m.takeInvite("Ann", "Cid", now) {
		t.Error("wrong invitee matched")
	}
	if !m.takeInvite("Ann", "Bob", now) {
		t.Error("correct pair not found")
	}
}

func TestPartyInviteExpires(t *testing.T) {
	m := newPartyManager()
	now := time.Now()

	m.addInvite("Ann", "Bob", now)
	later := now.Add(inviteFreshness + time.Second)
	if m.takeInvite("Ann", "Bob", later) {
		t.Error("expired invite answered")
	}
	if len(m.invites) != 0 {
		t.Errorf("expired invites not swept: %d left", len(m.invites))
	}
}

func TestPartyInviteOldestFirst(t *testing.T) {
	m := newPartyManager()
	now := time.Now()

	m.addInvite("Ann", "Bob", now)
	m.addInvite("Ann", "Bob", now.Add(time.Second))
	if !m.takeInvite("Ann", "Bob", now.Add(2*time.Second)) {
		t.Fatal("invite not found")
	}
	if len(m.invites) != 1 {
		t.Fatalf("take must consume exactly one invite, %d left", len(m.invites))
	}
	// The survivor is the newer one.
	if got := m.invites[0].deadline; !got.Equal(now.Add(time.Second).Add(inviteFreshness)) {
		t.Errorf("kept invite has deadline %v", got)
	}
}

func TestNewPartyIDsAreSequential(t *testing.T) {
	m := newPartyManager()
	p1 := m.newParty()
	p2 := m.newParty()
	if p1.ID != 1 || p2.ID != 2 {
		t.Errorf("party ids = %d, %d; want 1, 2", p1.ID, p2.ID)
	}
	if p1.members == nil {
		t.Error("party members map not initialised")
	}
}
