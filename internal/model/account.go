package model

import "time"

// Access levels. Banning overwrites the level; the expiry sweep resets it
// to AccessPlayer.
const (
	AccessBanned = 1
	AccessPlayer = 10
	AccessGM     = 50
	AccessAdmin  = 99
)

// Account is the login-level identity owning up to the configured number of
// characters. Password and email are stored as hex SHA-256 digests; the
// random salt is re-minted on every login attempt and never persisted.
type Account struct {
	ID           int // -1 until first persisted
	Name         string
	Password     string // hash
	Email        string // hash
	RandomSalt   string
	Level        int
	Registration time.Time
	LastLogin    time.Time

	// Characters by slot (1..maxCharacters).
	Characters map[int]*Character
}

// NewAccount returns an account that has not yet been persisted.
func NewAccount() *Account {
	return &Account{
		ID:         -1,
		Level:      AccessPlayer,
		Characters: map[int]*Character{},
	}
}

// IsSlotEmpty reports whether no character occupies the slot.
func (a *Account) IsSlotEmpty(slot int) bool {
	_, ok := a.Characters[slot]
	return !ok
}

// AddCharacter attaches ch under its slot.
func (a *Account) AddCharacter(ch *Character) {
	if a.Characters == nil {
		a.Characters = map[int]*Character{}
	}
	a.Characters[ch.Slot] = ch
}

// DelCharacter detaches the character in the slot, if any.
func (a *Account) DelCharacter(slot int) {
	delete(a.Characters, slot)
}
