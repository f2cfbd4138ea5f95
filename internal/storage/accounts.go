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

// GetAccountByName returns the account with its character map populated.
// Returns nil, nil when no such account exists. Banned accounts are still
// returned so the session can be denied.
func (s *Storage) GetAccountByName(ctx context.Context, username string) (*model.Account, error) {
	return s.getAccount(ctx,
		`SELECT id, username, password, email, level, registration, lastlogin
		 FROM mana_accounts WHERE username = $1`, username)
}

// GetAccountByID returns the account with its character map populated.
func (s *Storage) GetAccountByID(ctx context.Context, id int) (*model.Account, error) {
	return s.getAccount(ctx,
		`SELECT id, username, password, email, level, registration, lastlogin
		 FROM mana_accounts WHERE id = $1`, id)
}

func (s *Storage) getAccount(ctx context.Context, query string, arg any) (*model.Account, error) {
	acc := model.NewAccount()
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&acc.ID, &acc.Name, &acc.Password, &acc.Email,
		&acc.Level, &acc.Registration, &acc.LastLogin,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}

	chars, err := s.charactersForAccount(ctx, acc)
	if err != nil {
		return nil, err
	}
	acc.Characters = chars
	return acc, nil
}

// AddAccount persists a new account and fills its generated id. The account
// must carry already-hashed credentials.
func (s *Storage) AddAccount(ctx context.Context, acc *model.Account) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO mana_accounts (username, password, email, level, registration, lastlogin)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		acc.Name, acc.Password, acc.Email, acc.Level, acc.Registration, acc.LastLogin,
	).Scan(&acc.ID)
	if err != nil {
		return fmt.Errorf("inserting account %q: %w", acc.Name, err)
	}
	return nil
}

// Flush upserts the account and all its characters in one transaction:
// the account row is updated, in-memory characters are inserted or updated,
// and characters present in storage but absent from the account are deleted.
func (s *Storage) Flush(ctx context.Context, acc *model.Account) error {
	if acc.ID < 0 {
		return fmt.Errorf("flushing unpersisted account %q", acc.Name)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning flush for account %d: %w", acc.ID, err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("flush rollback failed", "account", acc.ID, "err", err)
		}
	}()

	_, err = tx.Exec(ctx,
		`UPDATE mana_accounts
		 SET username = $1, password = $2, email = $3, level = $4, lastlogin = $5
		 WHERE id = $6`,
		acc.Name, acc.Password, acc.Email, acc.Level, acc.LastLogin, acc.ID,
	)
	if err != nil {
		return fmt.Errorf("updating account %d: %w", acc.ID, err)
	}

	for _, ch := range acc.Characters {
		ch.AccountID = acc.ID
		if ch.DatabaseID >= 0 {
			if err := s.updateCharacterTx(ctx, tx, ch); err != nil {
				return err
			}
		} else {
			if err := s.insertCharacterTx(ctx, tx, ch); err != nil {
				return err
			}
		}
	}

	// Characters in storage but no longer in memory are removed.
	rows, err := tx.Query(ctx,
		`SELECT id, name FROM mana_characters WHERE user_id = $1`, acc.ID)
	if err != nil {
		return fmt.Errorf("listing characters of account %d: %w", acc.ID, err)
	}
	type dbChar struct {
		id   int
		name string
	}
	var stored []dbChar
	for rows.Next() {
		var c dbChar
		if err := rows.Scan(&c.id, &c.name); err != nil {
			rows.Close()
			return fmt.Errorf("scanning character row: %w", err)
		}
		stored = append(stored, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating character rows: %w", err)
	}

	for _, c := range stored {
		found := false
		for _, ch := range acc.Characters {
			if ch.Name == c.name {
				found = true
				break
			}
		}
		if !found {
			if _, err := tx.Exec(ctx, `DELETE FROM mana_characters WHERE id = $1`, c.id); err != nil {
				return fmt.Errorf("deleting character %d: %w", c.id, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing flush for account %d: %w", acc.ID, err)
	}
	return nil
}

// DelAccount deletes the account. Characters, guild memberships, mail,
// quest logs and inventories cascade through the schema.
func (s *Storage) DelAccount(ctx context.Context, acc *model.Account) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM mana_accounts WHERE id = $1`, acc.ID); err != nil {
		return fmt.Errorf("deleting account %d: %w", acc.ID, err)
	}
	return nil
}

// UpdateLastLogin records the last successful login.
func (s *Storage) UpdateLastLogin(ctx context.Context, acc *model.Account) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE mana_accounts SET lastlogin = $1 WHERE id = $2`, acc.LastLogin, acc.ID)
	if err != nil {
		return fmt.Errorf("updating last login for account %d: %w", acc.ID, err)
	}
	return nil
}

// DoesUserNameExist reports whether an account carries the username.
func (s *Storage) DoesUserNameExist(ctx context.Context, name string) (bool, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(username) FROM mana_accounts WHERE username = $1`, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking username %q: %w", name, err)
	}
	return count > 0, nil
}

// DoesEmailAddressExist reports whether an account carries the email hash.
func (s *Storage) DoesEmailAddressExist(ctx context.Context, emailHash string) (bool, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(email) FROM mana_accounts WHERE email = $1`, emailHash).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking email hash: %w", err)
	}
	return count > 0, nil
}

// SetAccountLevel changes the account's access level.
func (s *Storage) SetAccountLevel(ctx context.Context, accountID, level int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE mana_accounts SET level = $1 WHERE id = $2`, level, accountID)
	if err != nil {
		return fmt.Errorf("setting level %d on account %d: %w", level, accountID, err)
	}
	return nil
}

// BanCharacter flips the owning account's level to Banned for the given
// duration in minutes.
func (s *Storage) BanCharacter(ctx context.Context, characterID, minutes int) error {
	bannedUntil := time.Now().Add(time.Duration(minutes) * time.Minute)
	tag, err := s.pool.Exec(ctx,
		`UPDATE mana_accounts SET level = $1, banned_until = $2
		 WHERE id = (SELECT user_id FROM mana_characters WHERE id = $3)`,
		model.AccessBanned, bannedUntil, characterID)
	if err != nil {
		return fmt.Errorf("banning owner of character %d: %w", characterID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("banning owner of character %d: no such character", characterID)
	}
	return nil
}

// CheckBannedAccounts lifts expired bans. The prior level is not persisted,
// so lifted accounts come back as Player.
func (s *Storage) CheckBannedAccounts(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE mana_accounts SET level = $1, banned_until = NULL
		 WHERE level = $2 AND banned_until IS NOT NULL AND banned_until <= now()`,
		model.AccessPlayer, model.AccessBanned)
	if err != nil {
		return fmt.Errorf("sweeping expired bans: %w", err)
	}
	return nil
}

// SetOnlineStatus adds or removes the character from the online list.
func (s *Storage) SetOnlineStatus(ctx context.Context, characterID int, online bool) error {
	var err error
	if online {
		_, err = s.pool.Exec(ctx,
			`INSERT INTO mana_online_list (char_id, login_date) VALUES ($1, now())
			 ON CONFLICT (char_id) DO NOTHING`, characterID)
	} else {
		_, err = s.pool.Exec(ctx,
			`DELETE FROM mana_online_list WHERE char_id = $1`, characterID)
	}
	if err != nil {
		return fmt.Errorf("setting online status of character %d: %w", characterID, err)
	}
	return nil
}

// SetOnlineStatusTx is the transactional variant used by player-sync batches.
func (s *Storage) SetOnlineStatusTx(ctx context.Context, tx pgx.Tx, characterID int, online bool) error {
	var err error
	if online {
		_, err = tx.Exec(ctx,
			`INSERT INTO mana_online_list (char_id, login_date) VALUES ($1, now())
			 ON CONFLICT (char_id) DO NOTHING`, characterID)
	} else {
		_, err = tx.Exec(ctx,
			`DELETE FROM mana_online_list WHERE char_id = $1`, characterID)
	}
	if err != nil {
		return fmt.Errorf("setting online status of character %d: %w", characterID, err)
	}
	return nil
}
