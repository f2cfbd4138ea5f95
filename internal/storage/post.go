package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Ablu/manaserv/internal/model"
)

// StoreLetter inserts or updates a letter with its attachments in one
// transaction and fills the generated id on first store.
func (s *Storage) StoreLetter(ctx context.Context, letter *model.Letter) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning letter store: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("letter store rollback failed", "letter", letter.ID, "err", err)
		}
	}()

	if letter.ID <= 0 {
		err = tx.QueryRow(ctx,
			`INSERT INTO mana_post
			     (sender_id, receiver_id, letter_type, expiration_date, sending_date, letter_text)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			letter.SenderID, letter.ReceiverID, letter.Type,
			letter.Expiry, time.Now(), letter.Text,
		).Scan(&letter.ID)
		if err != nil {
			return fmt.Errorf("inserting letter: %w", err)
		}
	} else {
		_, err = tx.Exec(ctx,
			`UPDATE mana_post
			 SET sender_id = $1, receiver_id = $2, letter_type = $3,
			     expiration_date = $4, letter_text = $5
			 WHERE id = $6`,
			letter.SenderID, letter.ReceiverID, letter.Type,
			letter.Expiry, letter.Text, letter.ID)
		if err != nil {
			return fmt.Errorf("updating letter %d: %w", letter.ID, err)
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM mana_post_attachments WHERE letter_id = $1`, letter.ID); err != nil {
			return fmt.Errorf("clearing attachments of letter %d: %w", letter.ID, err)
		}
	}

	for _, att := range letter.Attachments {
		_, err := tx.Exec(ctx,
			`INSERT INTO mana_post_attachments (letter_id, item_id, amount) VALUES ($1, $2, $3)`,
			letter.ID, att.ItemID, att.Amount)
		if err != nil {
			return fmt.Errorf("inserting attachment of letter %d: %w", letter.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing letter store: %w", err)
	}
	return nil
}

// CountPost returns how many letters are waiting for the character.
func (s *Storage) CountPost(ctx context.Context, receiverID int) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM mana_post WHERE receiver_id = $1`, receiverID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting post of character %d: %w", receiverID, err)
	}
	return n, nil
}

// GetStoredPost returns every letter addressed to the character, with
// attachments and resolved sender names.
func (s *Storage) GetStoredPost(ctx context.Context, receiverID int) ([]*model.Letter, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.sender_id, sc.name, p.receiver_id, rc.name,
		        p.letter_type, p.expiration_date, p.letter_text
		 FROM mana_post p
		 JOIN mana_characters sc ON sc.id = p.sender_id
		 JOIN mana_characters rc ON rc.id = p.receiver_id
		 WHERE p.receiver_id = $1 ORDER BY p.id`, receiverID)
	if err != nil {
		return nil, fmt.Errorf("listing post of character %d: %w", receiverID, err)
	}

	var letters []*model.Letter
	for rows.Next() {
		l := &model.Letter{}
		err := rows.Scan(&l.ID, &l.SenderID, &l.SenderName, &l.ReceiverID, &l.ReceiverName,
			&l.Type, &l.Expiry, &l.Text)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning letter row: %w", err)
		}
		letters = append(letters, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating letter rows: %w", err)
	}

	for _, l := range letters {
		rows, err := s.pool.Query(ctx,
			`SELECT item_id, amount FROM mana_post_attachments WHERE letter_id = $1`, l.ID)
		if err != nil {
			return nil, fmt.Errorf("listing attachments of letter %d: %w", l.ID, err)
		}
		for rows.Next() {
			var att model.Attachment
			if err := rows.Scan(&att.ItemID, &att.Amount); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning attachment row: %w", err)
			}
			l.Attachments = append(l.Attachments, att)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterating attachment rows: %w", err)
		}
	}
	return letters, nil
}

// DeletePost removes a delivered letter; attachments cascade.
func (s *Storage) DeletePost(ctx context.Context, letterID int) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM mana_post WHERE id = $1`, letterID); err != nil {
		return fmt.Errorf("deleting letter %d: %w", letterID, err)
	}
	return nil
}
