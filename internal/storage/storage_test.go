package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Ablu/manaserv/internal/model"
)

// openTestStorage connects to the database named by MANASERV_TEST_DSN and
// applies migrations. Tests are skipped when the variable is unset.
func openTestStorage(t *testing.T) *Storage {
	t.Helper()
	dsn := os.Getenv("MANASERV_TEST_DSN")
	if dsn == "" {
		t.Skip("MANASERV_TEST_DSN not set")
	}

	ctx := context.Background()
	require.NoError(t, RunMigrations(ctx, dsn))

	s, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Open(ctx))
	return s
}

func testAccount(t *testing.T) *model.Account {
	t.Helper()
	acc := model.NewAccount()
	acc.Name = fmt.Sprintf("test%d", time.Now().UnixNano())
	acc.Password = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	acc.Email = "fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210"
	acc.Registration = time.Now()
	acc.LastLogin = time.Now()
	return acc
}

func TestAccountLifecycle(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	acc := testAccount(t)
	require.NoError(t, s.AddAccount(ctx, acc))
	require.Greater(t, acc.ID, 0, "AddAccount must fill the id")
	t.Cleanup(func() { _ = s.DelAccount(ctx, acc) })

	loaded, err := s.GetAccountByName(ctx, acc.Name)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, acc.ID, loaded.ID)
	require.Equal(t, acc.Password, loaded.Password)
	require.Equal(t, model.AccessPlayer, loaded.Level)

	exists, err := s.DoesUserNameExist(ctx, acc.Name)
	require.NoError(t, err)
	require.True(t, exists)

	missing, err := s.GetAccountByName(ctx, acc.Name+"x")
	require.NoError(t, err)
	require.Nil(t, missing, "unknown account must yield nil, nil")
}

func TestCharacterFlushRoundTrip(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	acc := testAccount(t)
	require.NoError(t, s.AddAccount(ctx, acc))
	t.Cleanup(func() { _ = s.DelAccount(ctx, acc) })

	ch := model.NewCharacter(fmt.Sprintf("Hero%d", time.Now().UnixNano()%1_000_000))
	ch.AccountID = acc.ID
	ch.Slot = 1
	ch.Gender = 1
	ch.MapID = 1
	ch.X = 100
	ch.Y = 200
	ch.SetAttribute(1, 10)
	ch.SetModAttribute(1, 10)
	ch.Possessions.SetItem(model.InventoryItem{Slot: 1, ItemID: 500, Amount: 2})
	acc.AddCharacter(ch)

	require.NoError(t, s.Flush(ctx, acc))
	require.GreaterOrEqual(t, ch.DatabaseID, 0, "Flush must assign a database id")

	loaded, err := s.GetCharacterByName(ctx, ch.Name)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, acc.ID, loaded.AccountID)
	require.Equal(t, 1, loaded.MapID)
	require.Equal(t, 10.0, loaded.Attributes[1].Base)
	require.Equal(t, 2, loaded.Possessions.Inventory[1].Amount)

	// Removing the character from the account deletes it on the next flush.
	acc.DelCharacter(1)
	require.NoError(t, s.Flush(ctx, acc))
	gone, err := s.GetCharacterByName(ctx, ch.Name)
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestPostCountTracksInbox(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	acc := testAccount(t)
	require.NoError(t, s.AddAccount(ctx, acc))
	t.Cleanup(func() { _ = s.DelAccount(ctx, acc) })

	suffix := time.Now().UnixNano() % 1_000_000
	sender := model.NewCharacter(fmt.Sprintf("Sender%d", suffix))
	sender.AccountID = acc.ID
	sender.Slot = 1
	receiver := model.NewCharacter(fmt.Sprintf("Recv%d", suffix))
	receiver.AccountID = acc.ID
	receiver.Slot = 2
	acc.AddCharacter(sender)
	acc.AddCharacter(receiver)
	require.NoError(t, s.Flush(ctx, acc))

	n, err := s.CountPost(ctx, receiver.DatabaseID)
	require.NoError(t, err)
	require.Zero(t, n, "fresh inbox must be empty")

	for i := 0; i < 2; i++ {
		letter := &model.Letter{
			SenderID:   sender.DatabaseID,
			ReceiverID: receiver.DatabaseID,
			Expiry:     time.Now().Add(time.Hour),
			Text:       fmt.Sprintf("letter %d", i),
		}
		require.NoError(t, s.StoreLetter(ctx, letter))
		t.Cleanup(func() { _ = s.DeletePost(ctx, letter.ID) })
	}

	n, err = s.CountPost(ctx, receiver.DatabaseID)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	letters, err := s.GetStoredPost(ctx, receiver.DatabaseID)
	require.NoError(t, err)
	require.Len(t, letters, 2)

	require.NoError(t, s.DeletePost(ctx, letters[0].ID))
	n, err = s.CountPost(ctx, receiver.DatabaseID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestWorldStateVars(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	name := fmt.Sprintf("testvar%d", time.Now().UnixNano())
	require.NoError(t, s.SetWorldStateVar(ctx, name, WorldMap, "alpha"))

	v, err := s.GetWorldStateVar(ctx, name, WorldMap)
	require.NoError(t, err)
	require.Equal(t, "alpha", v)

	// Empty value deletes the variable.
	require.NoError(t, s.SetWorldStateVar(ctx, name, WorldMap, ""))
	v, err = s.GetWorldStateVar(ctx, name, WorldMap)
	require.NoError(t, err)
	require.Empty(t, v)
}
