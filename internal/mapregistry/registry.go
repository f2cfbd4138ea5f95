// Package mapregistry keeps the runtime directory of which game server is
// authoritative for which map. Reads happen on every character select and
// server change; writes only on game-server churn.
package mapregistry

import "sync"

// Stats carries the per-map counters refreshed from game-server statistics
// messages.
type Stats struct {
	Entities int
	Monsters int
	Players  []int // character ids
}

// Registry maps mapId → owning handle. H is the link connection type of the
// owning game server. At most one handle owns a map at a time.
type Registry[H comparable] struct {
	mu    sync.RWMutex
	maps  map[int]H
	stats map[int]Stats
}

// New returns an empty registry.
func New[H comparable]() *Registry[H] {
	return &Registry[H]{
		maps:  map[int]H{},
		stats: map[int]Stats{},
	}
}

// Assign makes h the owner of the map.
func (r *Registry[H]) Assign(mapID int, h H) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maps[mapID] = h
	r.stats[mapID] = Stats{}
}

// Lookup returns the owner of the map, if any.
func (r *Registry[H]) Lookup(mapID int) (H, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.maps[mapID]
	return h, ok
}

// Owns reports whether h currently owns the map.
func (r *Registry[H]) Owns(mapID int, h H) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cur, ok := r.maps[mapID]
	return ok && cur == h
}

// SetStats refreshes per-map counters. Unknown map ids are ignored by the
// caller, which validates ownership first.
func (r *Registry[H]) SetStats(mapID int, s Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.maps[mapID]; ok {
		r.stats[mapID] = s
	}
}

// Stats returns the last reported counters for the map.
func (r *Registry[H]) Stats(mapID int) (Stats, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stats[mapID]
	return s, ok
}

// Release removes every assignment owned by h and returns the freed map ids.
func (r *Registry[H]) Release(h H) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var freed []int
	for id, cur := range r.maps {
		if cur == h {
			delete(r.maps, id)
			delete(r.stats, id)
			freed = append(freed, id)
		}
	}
	return freed
}

// Iterate calls fn for every assignment under the read lock.
func (r *Registry[H]) Iterate(fn func(mapID int, h H, s Stats)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, h := range r.maps {
		fn(id, h, r.stats[id])
	}
}
