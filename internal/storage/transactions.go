package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Ablu/manaserv/internal/model"
)

// AddTransaction appends one audit record.
func (s *Storage) AddTransaction(ctx context.Context, t model.Transaction) error {
	when := t.Time
	if when.IsZero() {
		when = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO mana_transactions (char_id, action, message, time) VALUES ($1, $2, $3, $4)`,
		t.CharacterID, t.Action, t.Message, when)
	if err != nil {
		return fmt.Errorf("inserting transaction for character %d: %w", t.CharacterID, err)
	}
	return nil
}

// GetTransactions returns the newest records, capped at num.
func (s *Storage) GetTransactions(ctx context.Context, num int) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, char_id, action, message, time
		 FROM mana_transactions ORDER BY id DESC LIMIT $1`, num)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID, &t.CharacterID, &t.Action, &t.Message, &t.Time); err != nil {
			return nil, fmt.Errorf("scanning transaction row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transaction rows: %w", err)
	}
	return out, nil
}

// GetTransactionsSince returns records newer than the given time, oldest first.
func (s *Storage) GetTransactionsSince(ctx context.Context, since time.Time) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, char_id, action, message, time
		 FROM mana_transactions WHERE time >= $1 ORDER BY id`, since)
	if err != nil {
		return nil, fmt.Errorf("listing transactions since %s: %w", since, err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID, &t.CharacterID, &t.Action, &t.Message, &t.Time); err != nil {
			return nil, fmt.Errorf("scanning transaction row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transaction rows: %w", err)
	}
	return out, nil
}
