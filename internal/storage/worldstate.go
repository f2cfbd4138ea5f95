package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
)

// Map id namespaces for world state variables.
const (
	SystemMap = -1 // server bookkeeping (database_version, item_db_version)
	WorldMap  = 0  // world-global variables shared across game servers
)

// GetWorldStateVar reads one world state variable scoped to a map id.
// Missing variables return "" without an error.
func (s *Storage) GetWorldStateVar(ctx context.Context, name string, mapID int) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM mana_world_states WHERE state_name = $1 AND map_id = $2`,
		name, mapID).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading world state %q/%d: %w", name, mapID, err)
	}
	return value, nil
}

// SetWorldStateVar upserts one world state variable. An empty value deletes
// the row.
func (s *Storage) SetWorldStateVar(ctx context.Context, name string, mapID int, value string) error {
	if value == "" {
		_, err := s.pool.Exec(ctx,
			`DELETE FROM mana_world_states WHERE state_name = $1 AND map_id = $2`,
			name, mapID)
		if err != nil {
			return fmt.Errorf("deleting world state %q/%d: %w", name, mapID, err)
		}
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO mana_world_states (state_name, map_id, value, moddate)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (state_name, map_id) DO UPDATE SET value = $3, moddate = now()`,
		name, mapID, value)
	if err != nil {
		return fmt.Errorf("writing world state %q/%d: %w", name, mapID, err)
	}
	return nil
}

// GetAllWorldStateVars returns every variable scoped to the map id.
func (s *Storage) GetAllWorldStateVars(ctx context.Context, mapID int) (map[string]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT state_name, value FROM mana_world_states WHERE map_id = $1`, mapID)
	if err != nil {
		return nil, fmt.Errorf("listing world states for map %d: %w", mapID, err)
	}
	defer rows.Close()

	vars := map[string]string{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scanning world state row: %w", err)
		}
		vars[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating world state rows: %w", err)
	}
	return vars, nil
}

// ItemDatabaseVersion returns the persisted item_db_version, 0 when unset.
func (s *Storage) ItemDatabaseVersion(ctx context.Context) (int, error) {
	raw, err := s.GetWorldStateVar(ctx, "item_db_version", SystemMap)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("malformed item_db_version %q: %w", raw, err)
	}
	return version, nil
}

// GetQuestVar reads one named quest variable of a character, "" when unset.
func (s *Storage) GetQuestVar(ctx context.Context, characterID int, name string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM mana_quests WHERE owner_id = $1 AND name = $2`,
		characterID, name).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading quest var %q of character %d: %w", name, characterID, err)
	}
	return value, nil
}

// SetQuestVar upserts one named quest variable of a character.
func (s *Storage) SetQuestVar(ctx context.Context, characterID int, name, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO mana_quests (owner_id, name, value) VALUES ($1, $2, $3)
		 ON CONFLICT (owner_id, name) DO UPDATE SET value = $3`,
		characterID, name, value)
	if err != nil {
		return fmt.Errorf("writing quest var %q of character %d: %w", name, characterID, err)
	}
	return nil
}
