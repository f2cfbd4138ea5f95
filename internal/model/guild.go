package model

// Guild member rights bitmask.
const (
	GuildRightNone   = 0
	GuildRightInvite = 1
	GuildRightKick   = 2
	GuildRightOwner  = 255
)

// Guild is a persistent named group of characters. Each guild owns an
// auto-joined chat channel carrying its name.
type Guild struct {
	ID      int
	Name    string
	Members map[int]int // character id → rights bitmask
}

// NewGuild returns a guild that has not yet been persisted.
func NewGuild(name string) *Guild {
	return &Guild{ID: -1, Name: name, Members: map[int]int{}}
}

// Owner returns the character id holding owner rights, or 0.
func (g *Guild) Owner() int {
	for id, rights := range g.Members {
		if rights == GuildRightOwner {
			return id
		}
	}
	return 0
}

// HasMember reports whether the character belongs to the guild.
func (g *Guild) HasMember(characterID int) bool {
	_, ok := g.Members[characterID]
	return ok
}

// Rights returns the member's rights bitmask, 0 for non-members.
func (g *Guild) Rights(characterID int) int {
	return g.Members[characterID]
}
