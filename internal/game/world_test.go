package game

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Ablu/manaserv/internal/model"
)

func testCharacter(id, mapID int) *model.Character {
	ch := model.NewCharacter("test")
	ch.DatabaseID = id
	ch.MapID = mapID
	return ch
}

func TestWorldMaps(t *testing.T) {
	w := NewWorld()
	require.False(t, w.HasMap(1))

	w.InstallMap(&MapState{ID: 1, Vars: map[string]string{"weather": "rain"}})
	require.True(t, w.HasMap(1))
	require.False(t, w.HasMap(2))
}

func TestWorldVars(t *testing.T) {
	w := NewWorld()
	require.Empty(t, w.WorldVar("season"))

	w.SetWorldVar("season", "winter")
	require.Equal(t, "winter", w.WorldVar("season"))

	w.SetWorldVar("season", "spring")
	require.Equal(t, "spring", w.WorldVar("season"))
}

func TestWorldPlayerPresence(t *testing.T) {
	w := NewWorld()
	ch := testCharacter(42, 1)

	w.AddPlayer(ch)
	require.Same(t, ch, w.Player(42))

	left := w.RemovePlayer(42)
	require.Same(t, ch, left)
	require.Nil(t, w.Player(42))
	require.Nil(t, w.RemovePlayer(42), "second removal finds nothing")
}

func TestWorldSyncQueue(t *testing.T) {
	w := NewWorld()
	ch := testCharacter(42, 1)

	w.AddPlayer(ch)
	w.QueuePointsSync(42, 5, 3)
	w.QueueAttributeSync(42, 7, 10.0, 12.0)
	w.RemovePlayer(42)

	entries := w.DrainSync()
	require.Len(t, entries, 4)

	require.Equal(t, syncOnline, entries[0].kind)
	require.True(t, entries[0].online)

	require.Equal(t, syncPoints, entries[1].kind)
	require.Equal(t, 5, entries[1].charPoints)
	require.Equal(t, 3, entries[1].corrPoints)

	require.Equal(t, syncAttribute, entries[2].kind)
	require.Equal(t, 7, entries[2].attrID)
	require.Equal(t, 10.0, entries[2].base)
	require.Equal(t, 12.0, entries[2].mod)

	require.Equal(t, syncOnline, entries[3].kind)
	require.False(t, entries[3].online)

	require.Empty(t, w.DrainSync(), "drain must clear the queue")
}

func TestWorldMapStats(t *testing.T) {
	w := NewWorld()
	w.InstallMap(&MapState{ID: 1, Vars: map[string]string{}})
	w.InstallMap(&MapState{ID: 2, Vars: map[string]string{}})

	w.AddPlayer(testCharacter(10, 1))
	w.AddPlayer(testCharacter(11, 1))
	// Player on a map this server does not run; not reported.
	w.AddPlayer(testCharacter(12, 9))

	stats := w.MapStats()
	require.Len(t, stats, 2)
	require.Len(t, stats[1], 2)
	require.Empty(t, stats[2])
}
