package game

import (
	"sync"

	"github.com/Ablu/manaserv/internal/model"
)

// MapState is one map activated for this server by the account process.
type MapState struct {
	ID         int
	Vars       map[string]string
	FloorItems []model.FloorItem
}

// syncKind discriminates pending delta entries.
type syncKind int

const (
	syncPoints syncKind = iota
	syncAttribute
	syncOnline
)

type syncEntry struct {
	kind   syncKind
	charID int

	charPoints int
	corrPoints int

	attrID int
	base   float64
	mod    float64

	online bool
}

// World is the mutable server-side state: activated maps, world variables,
// present players and the delta queue drained by the tick loop.
type World struct {
	mu      sync.Mutex
	maps    map[int]*MapState
	vars    map[string]string
	players map[int]*model.Character // by character id
	pending []syncEntry
}

func NewWorld() *World {
	return &World{
		maps:    map[int]*MapState{},
		vars:    map[string]string{},
		players: map[int]*model.Character{},
	}
}

// InstallMap activates a map received from the account server.
func (w *World) InstallMap(m *MapState) {
	w.mu.Lock()
	w.maps[m.ID] = m
	w.mu.Unlock()
}

// HasMap reports whether the map is active on this server.
func (w *World) HasMap(mapID int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.maps[mapID]
	return ok
}

// SetWorldVar applies a world-scope variable, either from the registration
// response or from a fan-out.
func (w *World) SetWorldVar(name, value string) {
	w.mu.Lock()
	w.vars[name] = value
	w.mu.Unlock()
}

// WorldVar reads a world-scope variable.
func (w *World) WorldVar(name string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.vars[name]
}

// AddPlayer makes the character present and queues its online delta.
func (w *World) AddPlayer(ch *model.Character) {
	w.mu.Lock()
	w.players[ch.DatabaseID] = ch
	w.pending = append(w.pending, syncEntry{kind: syncOnline, charID: ch.DatabaseID, online: true})
	w.mu.Unlock()
}

// RemovePlayer removes the character and queues its offline delta. The
// returned snapshot is uploaded to the account server by the caller.
func (w *World) RemovePlayer(characterID int) *model.Character {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch, ok := w.players[characterID]
	if !ok {
		return nil
	}
	delete(w.players, characterID)
	w.pending = append(w.pending, syncEntry{kind: syncOnline, charID: characterID, online: false})
	return ch
}

// Player returns the present character with the id.
func (w *World) Player(characterID int) *model.Character {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.players[characterID]
}

// QueuePointsSync records a character/correction point change for the next
// sync batch.
func (w *World) QueuePointsSync(charID, charPoints, corrPoints int) {
	w.mu.Lock()
	w.pending = append(w.pending, syncEntry{
		kind: syncPoints, charID: charID,
		charPoints: charPoints, corrPoints: corrPoints,
	})
	w.mu.Unlock()
}

// QueueAttributeSync records an attribute change for the next sync batch.
func (w *World) QueueAttributeSync(charID, attrID int, base, mod float64) {
	w.mu.Lock()
	w.pending = append(w.pending, syncEntry{
		kind: syncAttribute, charID: charID,
		attrID: attrID, base: base, mod: mod,
	})
	w.mu.Unlock()
}

// DrainSync takes the queued deltas.
func (w *World) DrainSync() []syncEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.pending
	w.pending = nil
	return out
}

// MapStats snapshots per-map counters for the statistics upload.
func (w *World) MapStats() map[int][]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	stats := map[int][]int{}
	for id := range w.maps {
		stats[id] = nil
	}
	for _, ch := range w.players {
		if _, ok := stats[ch.MapID]; ok {
			stats[ch.MapID] = append(stats[ch.MapID], ch.DatabaseID)
		}
	}
	return stats
}
