// Package chardata encodes character snapshots for the server-to-server
// handoff and the roster records shown at character select. The snapshot
// field order is fixed; deserialisation mirrors it exactly. Inventory
// entries run to end-of-message because their count is not transmitted.
package chardata

import (
	"sort"

	"github.com/Ablu/manaserv/internal/model"
	"github.com/Ablu/manaserv/internal/wire"
)

// Serialize appends the full snapshot of ch to msg.
func Serialize(ch *model.Character, msg *wire.MessageOut) {
	msg.WriteInt8(ch.AccountLevel)
	msg.WriteInt8(ch.Gender)
	msg.WriteInt8(ch.HairStyle)
	msg.WriteInt8(ch.HairColor)
	msg.WriteInt16(ch.AttributePoints)
	msg.WriteInt16(ch.CorrectionPoints)

	attrIDs := sortedKeys(ch.Attributes)
	msg.WriteInt16(len(attrIDs))
	for _, id := range attrIDs {
		msg.WriteInt16(id)
		msg.WriteDouble(ch.Attributes[id].Base)
		msg.WriteDouble(ch.Attributes[id].Modified)
	}

	statusIDs := sortedKeys(ch.StatusEffects)
	msg.WriteInt16(len(statusIDs))
	for _, id := range statusIDs {
		msg.WriteInt16(id)
		msg.WriteInt16(ch.StatusEffects[id])
	}

	msg.WriteInt16(ch.MapID)
	msg.WriteInt16(ch.X)
	msg.WriteInt16(ch.Y)

	monsterIDs := sortedKeys(ch.KillCounts)
	msg.WriteInt16(len(monsterIDs))
	for _, id := range monsterIDs {
		msg.WriteInt16(id)
		msg.WriteInt32(ch.KillCounts[id])
	}

	abilityIDs := sortedKeys(ch.Abilities)
	msg.WriteInt16(len(abilityIDs))
	for _, id := range abilityIDs {
		msg.WriteInt32(id)
	}

	msg.WriteInt16(len(ch.Quests))
	for _, q := range ch.Quests {
		msg.WriteInt16(q.ID)
		msg.WriteInt8(q.State)
		msg.WriteString(q.Title)
		msg.WriteString(q.Description)
	}

	// Inventory last: entries run to end-of-message.
	slots := sortedKeys(ch.Possessions.Inventory)
	for _, slot := range slots {
		it := ch.Possessions.Inventory[slot]
		msg.WriteInt16(it.Slot)
		msg.WriteInt16(it.ItemID)
		msg.WriteInt16(it.Amount)
		if _, equipped := ch.Possessions.Equipment[slot]; equipped {
			msg.WriteInt8(1)
		} else {
			msg.WriteInt8(0)
		}
	}
}

// Deserialize reads a full snapshot into ch, replacing its mutable state.
func Deserialize(ch *model.Character, msg *wire.MessageIn) error {
	ch.AccountLevel = msg.ReadInt8()
	ch.Gender = msg.ReadInt8()
	ch.HairStyle = msg.ReadInt8()
	ch.HairColor = msg.ReadInt8()
	ch.AttributePoints = msg.ReadInt16()
	ch.CorrectionPoints = msg.ReadInt16()

	ch.Attributes = map[int]model.Attribute{}
	attrCount := msg.ReadInt16()
	for i := 0; i < attrCount && msg.Err() == nil; i++ {
		id := msg.ReadInt16()
		base := msg.ReadDouble()
		mod := msg.ReadDouble()
		ch.Attributes[id] = model.Attribute{Base: base, Modified: mod}
	}

	ch.StatusEffects = map[int]int{}
	statusCount := msg.ReadInt16()
	for i := 0; i < statusCount && msg.Err() == nil; i++ {
		id := msg.ReadInt16()
		ticks := msg.ReadInt16()
		ch.StatusEffects[id] = ticks
	}

	ch.MapID = msg.ReadInt16()
	ch.X = msg.ReadInt16()
	ch.Y = msg.ReadInt16()

	ch.KillCounts = map[int]int{}
	killCount := msg.ReadInt16()
	for i := 0; i < killCount && msg.Err() == nil; i++ {
		id := msg.ReadInt16()
		kills := msg.ReadInt32()
		ch.KillCounts[id] = kills
	}

	ch.Abilities = map[int]struct{}{}
	abilityCount := msg.ReadInt16()
	for i := 0; i < abilityCount && msg.Err() == nil; i++ {
		ch.Abilities[msg.ReadInt32()] = struct{}{}
	}

	ch.Quests = nil
	questCount := msg.ReadInt16()
	for i := 0; i < questCount && msg.Err() == nil; i++ {
		ch.Quests = append(ch.Quests, model.QuestInfo{
			ID:          msg.ReadInt16(),
			State:       msg.ReadInt8(),
			Title:       msg.ReadString(),
			Description: msg.ReadString(),
		})
	}

	ch.Possessions = model.NewPossessions()
	for msg.Unread() > 0 && msg.Err() == nil {
		it := model.InventoryItem{
			Slot:   msg.ReadInt16(),
			ItemID: msg.ReadInt16(),
			Amount: msg.ReadInt16(),
		}
		if msg.ReadInt8() != 0 {
			it.EquipmentSlot = it.Slot
		}
		ch.Possessions.SetItem(it)
	}

	return msg.Err()
}

// WriteRosterEntry appends the character-select record: slot, name, looks,
// points, equipped items and attributes. Attribute values go out as int32 in
// units of 1/256 for legacy clients.
func WriteRosterEntry(ch *model.Character, msg *wire.MessageOut) {
	msg.WriteInt8(ch.Slot)
	msg.WriteString(ch.Name)
	msg.WriteInt8(ch.Gender)
	msg.WriteInt8(ch.HairStyle)
	msg.WriteInt8(ch.HairColor)
	msg.WriteInt16(ch.AttributePoints)
	msg.WriteInt16(ch.CorrectionPoints)

	equipped := sortedKeys(ch.Possessions.Equipment)
	msg.WriteInt8(len(equipped))
	for _, slot := range equipped {
		it := ch.Possessions.Inventory[slot]
		msg.WriteInt16(it.EquipmentSlot)
		msg.WriteInt16(it.ItemID)
	}

	attrIDs := sortedKeys(ch.Attributes)
	msg.WriteInt8(len(attrIDs))
	for _, id := range attrIDs {
		a := ch.Attributes[id]
		msg.WriteInt32(id)
		msg.WriteInt32(int(a.Base * 256))
		msg.WriteInt32(int(a.Modified * 256))
	}
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
