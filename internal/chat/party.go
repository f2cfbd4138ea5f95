package chat

import "time"

// inviteFreshness is how long a party invite stays answerable.
const inviteFreshness = 60 * time.Second

// Party is an ephemeral play group; it exists only while it has members.
type Party struct {
	ID      int
	members map[*Client]struct{}
}

type partyInvite struct {
	inviter  string
	invitee  string
	deadline time.Time
}

// partyManager holds parties and the outstanding invite FIFO. Expired
// invites are swept lazily whenever the FIFO is consulted. Guarded by the
// server mutex.
type partyManager struct {
	invites []partyInvite
	nextID  int
}

func newPartyManager() *partyManager {
	return &partyManager{nextID: 1}
}

func (m *partyManager) sweep(now time.Time) {
	kept := m.invites[:0]
	for _, inv := range m.invites {
		if now.Before(inv.deadline) {
			kept = append(kept, inv)
		}
	}
	m.invites = kept
}

func (m *partyManager) addInvite(inviter, invitee string, now time.Time) {
	m.sweep(now)
	m.invites = append(m.invites, partyInvite{
		inviter:  inviter,
		invitee:  invitee,
		deadline: now.Add(inviteFreshness),
	})
}

// takeInvite consumes the oldest fresh invite from inviter to invitee.
func (m *partyManager) takeInvite(inviter, invitee string, now time.Time) bool {
	m.sweep(now)
	for i, inv := range m.invites {
		if inv.inviter == inviter && inv.invitee == invitee {
			m.invites = append(m.invites[:i], m.invites[i+1:]...)
			return true
		}
	}
	return false
}

func (m *partyManager) newParty() *Party {
	p := &Party{ID: m.nextID, members: map[*Client]struct{}{}}
	m.nextID++
	return p
}
