package model

import "testing"

func TestPossessionsSetItem(t *testing.T) {
	p := NewPossessions()

	p.SetItem(InventoryItem{Slot: 1, ItemID: 500, Amount: 1, EquipmentSlot: 1})
	if _, ok := p.Equipment[1]; !ok {
		t.Error("equipped slot missing from equipment set")
	}

	// Unequipping through SetItem removes the slot from the set.
	p.SetItem(InventoryItem{Slot: 1, ItemID: 500, Amount: 1})
	if _, ok := p.Equipment[1]; ok {
		t.Error("unequipped slot still in equipment set")
	}
	if p.Inventory[1].ItemID != 500 {
		t.Error("inventory entry lost on unequip")
	}
}

func TestCharacterAttributes(t *testing.T) {
	ch := NewCharacter("Taw")
	if ch.DatabaseID != -1 {
		t.Errorf("fresh character has database id %d, want -1", ch.DatabaseID)
	}

	ch.SetAttribute(1, 10)
	ch.SetModAttribute(1, 12)
	if a := ch.Attributes[1]; a.Base != 10 || a.Modified != 12 {
		t.Errorf("attribute = %+v, want base 10 mod 12", a)
	}

	// Setting the base must not clobber the cached modified value.
	ch.SetAttribute(1, 11)
	if a := ch.Attributes[1]; a.Base != 11 || a.Modified != 12 {
		t.Errorf("attribute = %+v, want base 11 mod 12", a)
	}
}

func TestAccountSlots(t *testing.T) {
	a := NewAccount()
	if a.Level != AccessPlayer {
		t.Errorf("fresh account level = %d, want %d", a.Level, AccessPlayer)
	}
	if !a.IsSlotEmpty(1) {
		t.Error("fresh account slot 1 not empty")
	}

	ch := NewCharacter("Taw")
	ch.Slot = 1
	a.AddCharacter(ch)
	if a.IsSlotEmpty(1) {
		t.Error("occupied slot reported empty")
	}
	if a.Characters[1] != ch {
		t.Error("character not reachable by slot")
	}

	a.DelCharacter(1)
	if !a.IsSlotEmpty(1) {
		t.Error("slot not freed by DelCharacter")
	}
}
