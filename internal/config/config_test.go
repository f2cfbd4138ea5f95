package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePortsFallbacks(t *testing.T) {
	cfg := DefaultAccountServer()
	cfg.ClientPort = 9601
	cfg.GamePort = 0
	cfg.ChatPort = 0
	cfg.ChatHost = "chat.internal"
	cfg.PublicChatHost = ""

	cfg.ResolvePorts()

	require.Equal(t, 9604, cfg.GamePort)
	require.Equal(t, 9603, cfg.ChatPort)
	require.Equal(t, "chat.internal", cfg.PublicChatHost)
}

func TestResolvePortsKeepsExplicitValues(t *testing.T) {
	cfg := DefaultAccountServer()
	cfg.GamePort = 7000
	cfg.ChatPort = 7001
	cfg.PublicChatHost = "chat.example.org"

	cfg.ResolvePorts()

	require.Equal(t, 7000, cfg.GamePort)
	require.Equal(t, 7001, cfg.ChatPort)
	require.Equal(t, "chat.example.org", cfg.PublicChatHost)
}

func TestValidate(t *testing.T) {
	base := DefaultAccountServer()
	base.Password = "secret"

	t.Run("valid", func(t *testing.T) {
		cfg := base
		require.NoError(t, cfg.Validate())
	})

	t.Run("empty password", func(t *testing.T) {
		cfg := base
		cfg.Password = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("no modifiable attributes", func(t *testing.T) {
		cfg := base
		cfg.Attributes.Modifiable = nil
		require.Error(t, cfg.Validate())
	})

	t.Run("budget above reach", func(t *testing.T) {
		cfg := base
		// 6 attributes capped at 20 cannot spend 200 points.
		cfg.Attributes.StartingPoints = 200
		require.Error(t, cfg.Validate())
	})

	t.Run("budget below floor", func(t *testing.T) {
		cfg := base
		// 6 attributes of at least 1 cannot spend only 3 points.
		cfg.Attributes.StartingPoints = 3
		require.Error(t, cfg.Validate())
	})
}

func TestLoadAccountServerMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadAccountServer(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, 9601, cfg.ClientPort)
	require.Equal(t, 9604, cfg.GamePort, "fallback ports must be resolved")
	require.Equal(t, 9603, cfg.ChatPort)
}

func TestLoadAccountServerParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "account.yaml")
	data := `
net_accountListenToClientPort: 7100
net_password: hunter2
account_maxCharacters: 5
maps:
  - id: 1
    server: main
  - id: 2
    server: main
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadAccountServer(path)
	require.NoError(t, err)
	require.Equal(t, 7100, cfg.ClientPort)
	require.Equal(t, "hunter2", cfg.Password)
	require.Equal(t, 5, cfg.MaxCharacters)
	require.Equal(t, 7103, cfg.GamePort)
	require.Len(t, cfg.Maps, 2)
	require.Equal(t, MapEntry{ID: 2, Server: "main"}, cfg.Maps[1])
	// Untouched keys keep their defaults.
	require.Equal(t, 17, cfg.NumHairStyles)
}

func TestLoadAccountServerRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("net_password: [unterminated"), 0o644))

	_, err := LoadAccountServer(path)
	require.Error(t, err)
}

func TestLoadGameServer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.yaml")
	data := `
name: world-1
net_gameListenToClientPort: 9704
net_password: hunter2
game_tickMillis: 50
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadGameServer(path)
	require.NoError(t, err)
	require.Equal(t, "world-1", cfg.Name)
	require.Equal(t, 9704, cfg.ClientPort)
	require.Equal(t, 50, cfg.TickMillis)
	require.Equal(t, 100, cfg.SyncEveryTicks, "unset keys keep defaults")
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "db.internal", Port: 5433,
		User: "mana", Password: "pw", DBName: "manaserv", SSLMode: "disable",
	}
	require.Equal(t,
		"postgres://mana:pw@db.internal:5433/manaserv?sslmode=disable",
		d.DSN())
}
