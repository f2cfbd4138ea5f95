package storage

import (
	"context"
	"fmt"

	"github.com/Ablu/manaserv/internal/model"
)

// GetFloorItemsOnMap lists persistent floor items of one map.
func (s *Storage) GetFloorItemsOnMap(ctx context.Context, mapID int) ([]model.FloorItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT map_id, item_id, amount, pos_x, pos_y FROM mana_floor_items WHERE map_id = $1`,
		mapID)
	if err != nil {
		return nil, fmt.Errorf("listing floor items of map %d: %w", mapID, err)
	}
	defer rows.Close()

	var items []model.FloorItem
	for rows.Next() {
		var it model.FloorItem
		if err := rows.Scan(&it.MapID, &it.ItemID, &it.Amount, &it.X, &it.Y); err != nil {
			return nil, fmt.Errorf("scanning floor item row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating floor item rows: %w", err)
	}
	return items, nil
}

// AddFloorItem persists one dropped item stack.
func (s *Storage) AddFloorItem(ctx context.Context, it model.FloorItem) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO mana_floor_items (map_id, item_id, amount, pos_x, pos_y)
		 VALUES ($1, $2, $3, $4, $5)`,
		it.MapID, it.ItemID, it.Amount, it.X, it.Y)
	if err != nil {
		return fmt.Errorf("inserting floor item on map %d: %w", it.MapID, err)
	}
	return nil
}

// RemoveFloorItem deletes the exact stack. The whole tuple is the identity,
// so stacks differing only in amount are left alone.
func (s *Storage) RemoveFloorItem(ctx context.Context, it model.FloorItem) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM mana_floor_items
		 WHERE map_id = $1 AND item_id = $2 AND amount = $3 AND pos_x = $4 AND pos_y = $5`,
		it.MapID, it.ItemID, it.Amount, it.X, it.Y)
	if err != nil {
		return fmt.Errorf("deleting floor item on map %d: %w", it.MapID, err)
	}
	return nil
}
