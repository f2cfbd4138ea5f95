package chat

import (
	"context"
	"fmt"
	"sort"

	"github.com/Ablu/manaserv/internal/model"
	"github.com/Ablu/manaserv/internal/storage"
)

// guildManager caches every guild in memory and writes every mutation
// through to storage. Guarded by the server mutex.
type guildManager struct {
	store  *storage.Storage
	guilds map[int]*model.Guild
}

func newGuildManager(ctx context.Context, store *storage.Storage) (*guildManager, error) {
	list, err := store.GetGuildList(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading guilds: %w", err)
	}
	m := &guildManager{store: store, guilds: map[int]*model.Guild{}}
	for _, g := range list {
		m.guilds[g.ID] = g
	}
	return m, nil
}

func (m *guildManager) byID(id int) *model.Guild {
	return m.guilds[id]
}

func (m *guildManager) byName(name string) *model.Guild {
	for _, g := range m.guilds {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// guildsFor returns the guilds the character belongs to, id order.
func (m *guildManager) guildsFor(characterID int) []*model.Guild {
	var out []*model.Guild
	for _, g := range m.guilds {
		if g.HasMember(characterID) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *guildManager) create(ctx context.Context, name string, ownerID int) (*model.Guild, error) {
	g := model.NewGuild(name)
	if err := m.store.AddGuild(ctx, g); err != nil {
		return nil, err
	}
	if err := m.store.AddGuildMember(ctx, g.ID, ownerID); err != nil {
		return nil, err
	}
	if err := m.store.SetGuildMemberRights(ctx, g.ID, ownerID, model.GuildRightOwner); err != nil {
		return nil, err
	}
	g.Members[ownerID] = model.GuildRightOwner
	m.guilds[g.ID] = g
	return g, nil
}

func (m *guildManager) addMember(ctx context.Context, g *model.Guild, characterID int) error {
	if err := m.store.AddGuildMember(ctx, g.ID, characterID); err != nil {
		return err
	}
	g.Members[characterID] = model.GuildRightNone
	return nil
}

func (m *guildManager) setRights(ctx context.Context, g *model.Guild, characterID, rights int) error {
	if err := m.store.SetGuildMemberRights(ctx, g.ID, characterID, rights); err != nil {
		return err
	}
	g.Members[characterID] = rights
	return nil
}

// removeMember drops the character. When the owner leaves, ownership passes
// to the lowest-id remaining member; when the last member leaves, the guild
// is deleted and the caller removes its channel. Returns whether the guild
// is gone.
func (m *guildManager) removeMember(ctx context.Context, g *model.Guild, characterID int) (removed bool, err error) {
	wasOwner := g.Rights(characterID) == model.GuildRightOwner

	if err := m.store.RemoveGuildMember(ctx, g.ID, characterID); err != nil {
		return false, err
	}
	delete(g.Members, characterID)

	if len(g.Members) == 0 {
		if err := m.store.RemoveGuild(ctx, g.ID); err != nil {
			return false, err
		}
		delete(m.guilds, g.ID)
		return true, nil
	}

	if wasOwner {
		ids := make([]int, 0, len(g.Members))
		for id := range g.Members {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		if err := m.setRights(ctx, g, ids[0], model.GuildRightOwner); err != nil {
			return false, err
		}
	}
	return false, nil
}
