package model

// Attribute holds the persisted base value and the cached modified value of
// one character attribute.
type Attribute struct {
	Base     float64
	Modified float64
}

// QuestInfo is one quest log entry.
type QuestInfo struct {
	ID          int
	State       int
	Title       string
	Description string
}

// InventoryItem is one inventory slot. EquipmentSlot is zero when the item
// is not equipped.
type InventoryItem struct {
	Slot          int
	ItemID        int
	Amount        int
	EquipmentSlot int
}

// Possessions groups inventory and the set of equipped inventory slots.
// The two views are reconciled only by SetItem/equip operations so that
// every equipped slot always exists in the inventory.
type Possessions struct {
	Inventory map[int]InventoryItem
	Equipment map[int]struct{} // inventory slots currently equipped
}

// NewPossessions returns empty possessions.
func NewPossessions() Possessions {
	return Possessions{
		Inventory: map[int]InventoryItem{},
		Equipment: map[int]struct{}{},
	}
}

// SetItem stores an inventory entry and keeps the equipment set consistent.
func (p *Possessions) SetItem(it InventoryItem) {
	p.Inventory[it.Slot] = it
	if it.EquipmentSlot != 0 {
		p.Equipment[it.Slot] = struct{}{}
	} else {
		delete(p.Equipment, it.Slot)
	}
}

// Character is a playable persona bound to one map and position. While held
// at the account endpoint it is owned by its Account; after handoff the
// owning game server has the authoritative copy.
type Character struct {
	DatabaseID   int // -1 until first persisted
	AccountID    int
	AccountLevel int
	Name         string
	Slot         int
	Gender       int
	HairStyle    int
	HairColor    int

	AttributePoints  int
	CorrectionPoints int

	MapID int
	X     int
	Y     int

	Attributes    map[int]Attribute
	StatusEffects map[int]int // status id → ticks remaining
	KillCounts    map[int]int // monster id → kills
	Abilities     map[int]struct{}
	Quests        []QuestInfo

	Possessions Possessions
}

// NewCharacter returns a named character that has not yet been persisted.
func NewCharacter(name string) *Character {
	return &Character{
		DatabaseID:    -1,
		Name:          name,
		Attributes:    map[int]Attribute{},
		StatusEffects: map[int]int{},
		KillCounts:    map[int]int{},
		Abilities:     map[int]struct{}{},
		Possessions:   NewPossessions(),
	}
}

// SetAttribute sets the base value of an attribute, creating it if needed.
func (c *Character) SetAttribute(id int, base float64) {
	a := c.Attributes[id]
	a.Base = base
	c.Attributes[id] = a
}

// SetModAttribute sets the cached modified value of an attribute.
func (c *Character) SetModAttribute(id int, mod float64) {
	a := c.Attributes[id]
	a.Modified = mod
	c.Attributes[id] = a
}
