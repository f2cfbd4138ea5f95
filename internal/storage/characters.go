package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/Ablu/manaserv/internal/model"
)

const characterColumns = `c.id, c.user_id, a.level, c.name, c.slot, c.gender,
	c.hair_style, c.hair_color, c.char_pts, c.correct_pts, c.map_id, c.x, c.y`

// GetCharacterByID loads a character with all sub-tables. Returns nil, nil
// when no such character exists.
func (s *Storage) GetCharacterByID(ctx context.Context, id int) (*model.Character, error) {
	return s.getCharacter(ctx,
		`SELECT `+characterColumns+`
		 FROM mana_characters c JOIN mana_accounts a ON a.id = c.user_id
		 WHERE c.id = $1`, id)
}

// GetCharacterByName loads a character with all sub-tables. Returns nil, nil
// when no such character exists.
func (s *Storage) GetCharacterByName(ctx context.Context, name string) (*model.Character, error) {
	return s.getCharacter(ctx,
		`SELECT `+characterColumns+`
		 FROM mana_characters c JOIN mana_accounts a ON a.id = c.user_id
		 WHERE c.name = $1`, name)
}

func (s *Storage) getCharacter(ctx context.Context, query string, arg any) (*model.Character, error) {
	ch := model.NewCharacter("")
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&ch.DatabaseID, &ch.AccountID, &ch.AccountLevel, &ch.Name, &ch.Slot,
		&ch.Gender, &ch.HairStyle, &ch.HairColor,
		&ch.AttributePoints, &ch.CorrectionPoints,
		&ch.MapID, &ch.X, &ch.Y,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying character: %w", err)
	}
	if err := s.loadCharacterDetails(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// charactersForAccount loads every character of the account, keyed by slot.
func (s *Storage) charactersForAccount(ctx context.Context, acc *model.Account) (map[int]*model.Character, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, slot, gender, hair_style, hair_color,
		        char_pts, correct_pts, map_id, x, y
		 FROM mana_characters WHERE user_id = $1 ORDER BY slot`, acc.ID)
	if err != nil {
		return nil, fmt.Errorf("listing characters of account %d: %w", acc.ID, err)
	}

	chars := map[int]*model.Character{}
	for rows.Next() {
		ch := model.NewCharacter("")
		err := rows.Scan(
			&ch.DatabaseID, &ch.AccountID, &ch.Name, &ch.Slot,
			&ch.Gender, &ch.HairStyle, &ch.HairColor,
			&ch.AttributePoints, &ch.CorrectionPoints,
			&ch.MapID, &ch.X, &ch.Y,
		)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning character row: %w", err)
		}
		ch.AccountLevel = acc.Level
		chars[ch.Slot] = ch
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating character rows: %w", err)
	}

	for _, ch := range chars {
		if err := s.loadCharacterDetails(ctx, ch); err != nil {
			return nil, err
		}
	}
	return chars, nil
}

// loadCharacterDetails fills attributes, status effects, kill stats,
// abilities, quest log and possessions of an already-scanned character.
func (s *Storage) loadCharacterDetails(ctx context.Context, ch *model.Character) error {
	id := ch.DatabaseID

	rows, err := s.pool.Query(ctx,
		`SELECT attr_id, base, mod FROM mana_char_attr WHERE char_id = $1`, id)
	if err != nil {
		return fmt.Errorf("loading attributes of character %d: %w", id, err)
	}
	for rows.Next() {
		var attrID int
		var base, mod float64
		if err := rows.Scan(&attrID, &base, &mod); err != nil {
			rows.Close()
			return fmt.Errorf("scanning attribute row: %w", err)
		}
		ch.Attributes[attrID] = model.Attribute{Base: base, Modified: mod}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating attribute rows: %w", err)
	}

	rows, err = s.pool.Query(ctx,
		`SELECT status_id, remaining_ticks FROM mana_char_status_effects WHERE char_id = $1`, id)
	if err != nil {
		return fmt.Errorf("loading status effects of character %d: %w", id, err)
	}
	for rows.Next() {
		var statusID, ticks int
		if err := rows.Scan(&statusID, &ticks); err != nil {
			rows.Close()
			return fmt.Errorf("scanning status effect row: %w", err)
		}
		ch.StatusEffects[statusID] = ticks
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating status effect rows: %w", err)
	}

	rows, err = s.pool.Query(ctx,
		`SELECT monster_id, kills FROM mana_char_kill_stats WHERE char_id = $1`, id)
	if err != nil {
		return fmt.Errorf("loading kill stats of character %d: %w", id, err)
	}
	for rows.Next() {
		var monsterID, kills int
		if err := rows.Scan(&monsterID, &kills); err != nil {
			rows.Close()
			return fmt.Errorf("scanning kill stat row: %w", err)
		}
		ch.KillCounts[monsterID] = kills
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating kill stat rows: %w", err)
	}

	rows, err = s.pool.Query(ctx,
		`SELECT ability_id FROM mana_char_abilities WHERE char_id = $1`, id)
	if err != nil {
		return fmt.Errorf("loading abilities of character %d: %w", id, err)
	}
	for rows.Next() {
		var abilityID int
		if err := rows.Scan(&abilityID); err != nil {
			rows.Close()
			return fmt.Errorf("scanning ability row: %w", err)
		}
		ch.Abilities[abilityID] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating ability rows: %w", err)
	}

	rows, err = s.pool.Query(ctx,
		`SELECT quest_id, quest_state, quest_title, quest_description
		 FROM mana_questlog WHERE char_id = $1`, id)
	if err != nil {
		return fmt.Errorf("loading quest log of character %d: %w", id, err)
	}
	for rows.Next() {
		var q model.QuestInfo
		if err := rows.Scan(&q.ID, &q.State, &q.Title, &q.Description); err != nil {
			rows.Close()
			return fmt.Errorf("scanning quest log row: %w", err)
		}
		ch.Quests = append(ch.Quests, q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating quest log rows: %w", err)
	}

	rows, err = s.pool.Query(ctx,
		`SELECT slot, class_id, amount, equipped FROM mana_inventories WHERE owner_id = $1`, id)
	if err != nil {
		return fmt.Errorf("loading inventory of character %d: %w", id, err)
	}
	for rows.Next() {
		var it model.InventoryItem
		if err := rows.Scan(&it.Slot, &it.ItemID, &it.Amount, &it.EquipmentSlot); err != nil {
			rows.Close()
			return fmt.Errorf("scanning inventory row: %w", err)
		}
		ch.Possessions.SetItem(it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating inventory rows: %w", err)
	}

	return nil
}

// GetCharacterID resolves a character name to its id, -1 when missing.
func (s *Storage) GetCharacterID(ctx context.Context, name string) (int, error) {
	var id int
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM mana_characters WHERE name = $1`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return -1, nil
	}
	if err != nil {
		return -1, fmt.Errorf("resolving character name %q: %w", name, err)
	}
	return id, nil
}

// DoesCharacterNameExist reports whether the name is taken.
func (s *Storage) DoesCharacterNameExist(ctx context.Context, name string) (bool, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(name) FROM mana_characters WHERE name = $1`, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking character name %q: %w", name, err)
	}
	return count > 0, nil
}

// UpdateCharacter writes the full character state in one transaction.
func (s *Storage) UpdateCharacter(ctx context.Context, ch *model.Character) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning character update: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("character update rollback failed", "character", ch.DatabaseID, "err", err)
		}
	}()

	if err := s.updateCharacterTx(ctx, tx, ch); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing character update: %w", err)
	}
	return nil
}

func (s *Storage) updateCharacterTx(ctx context.Context, tx pgx.Tx, ch *model.Character) error {
	_, err := tx.Exec(ctx,
		`UPDATE mana_characters
		 SET user_id = $1, name = $2, slot = $3, gender = $4,
		     hair_style = $5, hair_color = $6, char_pts = $7, correct_pts = $8,
		     map_id = $9, x = $10, y = $11
		 WHERE id = $12`,
		ch.AccountID, ch.Name, ch.Slot, ch.Gender,
		ch.HairStyle, ch.HairColor, ch.AttributePoints, ch.CorrectionPoints,
		ch.MapID, ch.X, ch.Y, ch.DatabaseID)
	if err != nil {
		return fmt.Errorf("updating character %d: %w", ch.DatabaseID, err)
	}
	return s.writeCharacterDetailsTx(ctx, tx, ch)
}

func (s *Storage) insertCharacterTx(ctx context.Context, tx pgx.Tx, ch *model.Character) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO mana_characters
		     (user_id, name, slot, gender, hair_style, hair_color,
		      char_pts, correct_pts, map_id, x, y)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		ch.AccountID, ch.Name, ch.Slot, ch.Gender, ch.HairStyle, ch.HairColor,
		ch.AttributePoints, ch.CorrectionPoints, ch.MapID, ch.X, ch.Y,
	).Scan(&ch.DatabaseID)
	if err != nil {
		return fmt.Errorf("inserting character %q: %w", ch.Name, err)
	}
	return s.writeCharacterDetailsTx(ctx, tx, ch)
}

// writeCharacterDetailsTx rewrites all character sub-tables. Delete-then-
// insert keeps the writes idempotent without tracking per-row dirtiness.
func (s *Storage) writeCharacterDetailsTx(ctx context.Context, tx pgx.Tx, ch *model.Character) error {
	id := ch.DatabaseID

	if _, err := tx.Exec(ctx, `DELETE FROM mana_char_attr WHERE char_id = $1`, id); err != nil {
		return fmt.Errorf("clearing attributes of character %d: %w", id, err)
	}
	for attrID, attr := range ch.Attributes {
		_, err := tx.Exec(ctx,
			`INSERT INTO mana_char_attr (char_id, attr_id, base, mod) VALUES ($1, $2, $3, $4)`,
			id, attrID, attr.Base, attr.Modified)
		if err != nil {
			return fmt.Errorf("writing attribute %d of character %d: %w", attrID, id, err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM mana_char_status_effects WHERE char_id = $1`, id); err != nil {
		return fmt.Errorf("clearing status effects of character %d: %w", id, err)
	}
	for statusID, ticks := range ch.StatusEffects {
		_, err := tx.Exec(ctx,
			`INSERT INTO mana_char_status_effects (char_id, status_id, remaining_ticks) VALUES ($1, $2, $3)`,
			id, statusID, ticks)
		if err != nil {
			return fmt.Errorf("writing status effect %d of character %d: %w", statusID, id, err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM mana_char_kill_stats WHERE char_id = $1`, id); err != nil {
		return fmt.Errorf("clearing kill stats of character %d: %w", id, err)
	}
	for monsterID, kills := range ch.KillCounts {
		_, err := tx.Exec(ctx,
			`INSERT INTO mana_char_kill_stats (char_id, monster_id, kills) VALUES ($1, $2, $3)`,
			id, monsterID, kills)
		if err != nil {
			return fmt.Errorf("writing kill stat %d of character %d: %w", monsterID, id, err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM mana_char_abilities WHERE char_id = $1`, id); err != nil {
		return fmt.Errorf("clearing abilities of character %d: %w", id, err)
	}
	for abilityID := range ch.Abilities {
		_, err := tx.Exec(ctx,
			`INSERT INTO mana_char_abilities (char_id, ability_id) VALUES ($1, $2)`,
			id, abilityID)
		if err != nil {
			return fmt.Errorf("writing ability %d of character %d: %w", abilityID, id, err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM mana_questlog WHERE char_id = $1`, id); err != nil {
		return fmt.Errorf("clearing quest log of character %d: %w", id, err)
	}
	for _, q := range ch.Quests {
		_, err := tx.Exec(ctx,
			`INSERT INTO mana_questlog (char_id, quest_id, quest_state, quest_title, quest_description)
			 VALUES ($1, $2, $3, $4, $5)`,
			id, q.ID, q.State, q.Title, q.Description)
		if err != nil {
			return fmt.Errorf("writing quest %d of character %d: %w", q.ID, id, err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM mana_inventories WHERE owner_id = $1`, id); err != nil {
		return fmt.Errorf("clearing inventory of character %d: %w", id, err)
	}
	for _, it := range ch.Possessions.Inventory {
		_, err := tx.Exec(ctx,
			`INSERT INTO mana_inventories (owner_id, slot, class_id, amount, equipped)
			 VALUES ($1, $2, $3, $4, $5)`,
			id, it.Slot, it.ItemID, it.Amount, it.EquipmentSlot)
		if err != nil {
			return fmt.Errorf("writing inventory slot %d of character %d: %w", it.Slot, id, err)
		}
	}

	return nil
}

// DelCharacter removes the character; sub-tables cascade.
func (s *Storage) DelCharacter(ctx context.Context, characterID int) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM mana_characters WHERE id = $1`, characterID); err != nil {
		return fmt.Errorf("deleting character %d: %w", characterID, err)
	}
	return nil
}

// UpdateCharacterPoints overwrites the free point pools.
func (s *Storage) UpdateCharacterPoints(ctx context.Context, characterID, charPoints, corrPoints int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE mana_characters SET char_pts = $1, correct_pts = $2 WHERE id = $3`,
		charPoints, corrPoints, characterID)
	if err != nil {
		return fmt.Errorf("updating points of character %d: %w", characterID, err)
	}
	return nil
}

// UpdateCharacterPointsTx is the transactional variant used by sync batches.
func (s *Storage) UpdateCharacterPointsTx(ctx context.Context, tx pgx.Tx, characterID, charPoints, corrPoints int) error {
	_, err := tx.Exec(ctx,
		`UPDATE mana_characters SET char_pts = $1, correct_pts = $2 WHERE id = $3`,
		charPoints, corrPoints, characterID)
	if err != nil {
		return fmt.Errorf("updating points of character %d: %w", characterID, err)
	}
	return nil
}

// UpdateAttribute upserts one attribute of a character.
func (s *Storage) UpdateAttribute(ctx context.Context, characterID, attrID int, base, mod float64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO mana_char_attr (char_id, attr_id, base, mod) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (char_id, attr_id) DO UPDATE SET base = $3, mod = $4`,
		characterID, attrID, base, mod)
	if err != nil {
		return fmt.Errorf("updating attribute %d of character %d: %w", attrID, characterID, err)
	}
	return nil
}

// UpdateAttributeTx is the transactional variant used by sync batches.
func (s *Storage) UpdateAttributeTx(ctx context.Context, tx pgx.Tx, characterID, attrID int, base, mod float64) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO mana_char_attr (char_id, attr_id, base, mod) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (char_id, attr_id) DO UPDATE SET base = $3, mod = $4`,
		characterID, attrID, base, mod)
	if err != nil {
		return fmt.Errorf("updating attribute %d of character %d: %w", attrID, characterID, err)
	}
	return nil
}

// UpdateKillCount upserts one monster kill counter.
func (s *Storage) UpdateKillCount(ctx context.Context, characterID, monsterID, kills int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO mana_char_kill_stats (char_id, monster_id, kills) VALUES ($1, $2, $3)
		 ON CONFLICT (char_id, monster_id) DO UPDATE SET kills = $3`,
		characterID, monsterID, kills)
	if err != nil {
		return fmt.Errorf("updating kill count of character %d: %w", characterID, err)
	}
	return nil
}

// InsertStatusEffect records one active status effect.
func (s *Storage) InsertStatusEffect(ctx context.Context, characterID, statusID, ticks int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO mana_char_status_effects (char_id, status_id, remaining_ticks) VALUES ($1, $2, $3)`,
		characterID, statusID, ticks)
	if err != nil {
		return fmt.Errorf("inserting status effect %d of character %d: %w", statusID, characterID, err)
	}
	return nil
}
