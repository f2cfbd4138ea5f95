package chardata

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Ablu/manaserv/internal/model"
	"github.com/Ablu/manaserv/internal/wire"
)

func sampleCharacter() *model.Character {
	ch := model.NewCharacter("Taw")
	ch.DatabaseID = 42
	ch.AccountLevel = model.AccessPlayer
	ch.Gender = 1
	ch.HairStyle = 3
	ch.HairColor = 5
	ch.AttributePoints = 12
	ch.CorrectionPoints = 2
	ch.MapID = 7
	ch.X = 1024
	ch.Y = 2048

	ch.Attributes[1] = model.Attribute{Base: 10, Modified: 12.5}
	ch.Attributes[5] = model.Attribute{Base: 7, Modified: 7}
	ch.StatusEffects[3] = 120
	ch.KillCounts[1002] = 17
	ch.Abilities[2] = struct{}{}
	ch.Quests = append(ch.Quests, model.QuestInfo{
		ID: 9, State: 1, Title: "herd", Description: "bring the pigs home",
	})
	ch.Possessions.SetItem(model.InventoryItem{Slot: 1, ItemID: 500, Amount: 1, EquipmentSlot: 1})
	ch.Possessions.SetItem(model.InventoryItem{Slot: 4, ItemID: 211, Amount: 30})
	return ch
}

func TestSnapshotRoundTrip(t *testing.T) {
	src := sampleCharacter()

	msg := wire.NewMessageOut(wire.GAMsgPlayerData)
	Serialize(src, msg)

	in, err := wire.NewMessageIn(msg.Bytes())
	require.NoError(t, err)

	dst := model.NewCharacter(src.Name)
	dst.DatabaseID = src.DatabaseID
	require.NoError(t, Deserialize(dst, in))

	require.Equal(t, src.AccountLevel, dst.AccountLevel)
	require.Equal(t, src.Gender, dst.Gender)
	require.Equal(t, src.HairStyle, dst.HairStyle)
	require.Equal(t, src.HairColor, dst.HairColor)
	require.Equal(t, src.AttributePoints, dst.AttributePoints)
	require.Equal(t, src.CorrectionPoints, dst.CorrectionPoints)
	require.Equal(t, src.MapID, dst.MapID)
	require.Equal(t, src.X, dst.X)
	require.Equal(t, src.Y, dst.Y)
	require.Equal(t, src.Attributes, dst.Attributes)
	require.Equal(t, src.StatusEffects, dst.StatusEffects)
	require.Equal(t, src.KillCounts, dst.KillCounts)
	require.Equal(t, src.Abilities, dst.Abilities)
	require.Equal(t, src.Quests, dst.Quests)
	require.Equal(t, src.Possessions.Inventory, dst.Possessions.Inventory)
	require.Equal(t, src.Possessions.Equipment, dst.Possessions.Equipment)
	require.Zero(t, in.Unread())
}

func TestSnapshotRoundTripEmptyCharacter(t *testing.T) {
	src := model.NewCharacter("Bare")

	msg := wire.NewMessageOut(wire.GAMsgPlayerData)
	Serialize(src, msg)

	in, err := wire.NewMessageIn(msg.Bytes())
	require.NoError(t, err)

	dst := model.NewCharacter(src.Name)
	require.NoError(t, Deserialize(dst, in))
	require.Empty(t, dst.Attributes)
	require.Empty(t, dst.Possessions.Inventory)
}

func TestDeserializeTruncatedSnapshot(t *testing.T) {
	src := sampleCharacter()
	msg := wire.NewMessageOut(wire.GAMsgPlayerData)
	Serialize(src, msg)

	in, err := wire.NewMessageIn(msg.Bytes()[:20])
	require.NoError(t, err)

	dst := model.NewCharacter(src.Name)
	require.Error(t, Deserialize(dst, in))
}

func TestRosterEntryEncoding(t *testing.T) {
	ch := sampleCharacter()
	ch.Slot = 2

	msg := wire.NewMessageOut(wire.APMsgCharInfo)
	WriteRosterEntry(ch, msg)

	in, err := wire.NewMessageIn(msg.Bytes())
	require.NoError(t, err)

	require.Equal(t, 2, in.ReadInt8())
	require.Equal(t, "Taw", in.ReadString())
	require.Equal(t, ch.Gender, in.ReadInt8())
	require.Equal(t, ch.HairStyle, in.ReadInt8())
	require.Equal(t, ch.HairColor, in.ReadInt8())
	require.Equal(t, ch.AttributePoints, in.ReadInt16())
	require.Equal(t, ch.CorrectionPoints, in.ReadInt16())

	require.Equal(t, 1, in.ReadInt8(), "one equipped item")
	require.Equal(t, 1, in.ReadInt16())   // equipment slot
	require.Equal(t, 500, in.ReadInt16()) // item id

	require.Equal(t, 2, in.ReadInt8(), "two attributes")
	require.Equal(t, 1, in.ReadInt32())
	require.Equal(t, 10*256, in.ReadInt32())
	require.Equal(t, int(12.5*256), in.ReadInt32())

	require.NoError(t, in.Err())
}
