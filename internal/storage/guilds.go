package storage

import (
	"context"
	"fmt"

	"github.com/Ablu/manaserv/internal/model"
)

// AddGuild persists a new guild and fills its generated id.
func (s *Storage) AddGuild(ctx context.Context, g *model.Guild) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO mana_guilds (name) VALUES ($1) RETURNING id`, g.Name).Scan(&g.ID)
	if err != nil {
		return fmt.Errorf("inserting guild %q: %w", g.Name, err)
	}
	return nil
}

// RemoveGuild deletes the guild; memberships cascade.
func (s *Storage) RemoveGuild(ctx context.Context, guildID int) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM mana_guilds WHERE id = $1`, guildID); err != nil {
		return fmt.Errorf("deleting guild %d: %w", guildID, err)
	}
	return nil
}

// AddGuildMember records a membership with default rights.
func (s *Storage) AddGuildMember(ctx context.Context, guildID, characterID int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO mana_guild_members (guild_id, member_id, rights) VALUES ($1, $2, $3)
		 ON CONFLICT (guild_id, member_id) DO NOTHING`,
		guildID, characterID, model.GuildRightNone)
	if err != nil {
		return fmt.Errorf("adding member %d to guild %d: %w", characterID, guildID, err)
	}
	return nil
}

// RemoveGuildMember drops a membership.
func (s *Storage) RemoveGuildMember(ctx context.Context, guildID, characterID int) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM mana_guild_members WHERE guild_id = $1 AND member_id = $2`,
		guildID, characterID)
	if err != nil {
		return fmt.Errorf("removing member %d from guild %d: %w", characterID, guildID, err)
	}
	return nil
}

// SetGuildMemberRights overwrites a member's rights bitmask.
func (s *Storage) SetGuildMemberRights(ctx context.Context, guildID, characterID, rights int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE mana_guild_members SET rights = $1 WHERE guild_id = $2 AND member_id = $3`,
		rights, guildID, characterID)
	if err != nil {
		return fmt.Errorf("setting rights of member %d in guild %d: %w", characterID, guildID, err)
	}
	return nil
}

// GetGuildList loads every guild with its member rights map. Called once at
// startup to seed the in-memory guild manager.
func (s *Storage) GetGuildList(ctx context.Context) ([]*model.Guild, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM mana_guilds ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing guilds: %w", err)
	}

	var guilds []*model.Guild
	for rows.Next() {
		g := model.NewGuild("")
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning guild row: %w", err)
		}
		guilds = append(guilds, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating guild rows: %w", err)
	}

	for _, g := range guilds {
		rows, err := s.pool.Query(ctx,
			`SELECT member_id, rights FROM mana_guild_members WHERE guild_id = $1`, g.ID)
		if err != nil {
			return nil, fmt.Errorf("listing members of guild %d: %w", g.ID, err)
		}
		for rows.Next() {
			var memberID, rights int
			if err := rows.Scan(&memberID, &rights); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning guild member row: %w", err)
			}
			g.Members[memberID] = rights
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterating guild member rows: %w", err)
		}
	}
	return guilds, nil
}
