package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Exit codes used by the server binaries.
const (
	ExitOK                 = 0
	ExitConfigNotFound     = 2
	ExitBadConfigParameter = 3
	ExitMapMissing         = 5
	ExitNetException       = 6
)

// AccountServer holds all configuration for the account/chat server process.
type AccountServer struct {
	// Network
	BindAddress    string `yaml:"bind_address"`
	ClientPort     int    `yaml:"net_accountListenToClientPort"`
	GamePort       int    `yaml:"net_gameListenToClientPort"` // fallback: ClientPort+3
	ChatPort       int    `yaml:"net_chatListenToClientPort"` // fallback: ClientPort+2
	GameServerPort int    `yaml:"net_gameServerPort"`         // server-to-server link
	Password       string `yaml:"net_password"`               // shared secret, required non-empty
	MaxClients     int    `yaml:"net_maxClients"`
	UpdateHost     string `yaml:"net_defaultUpdateHost"`
	ClientDataURL  string `yaml:"net_clientDataUrl"`
	ChatHost       string `yaml:"net_chatHost"`
	PublicChatHost string `yaml:"net_publicChatHost"`

	// Database
	Database DatabaseConfig `yaml:"database"`

	// Accounts
	MaxCharacters      int    `yaml:"account_maxCharacters"`
	AllowRegister      bool   `yaml:"account_allowRegister"`
	DenyRegisterReason string `yaml:"account_denyRegisterReason"`

	// Character creation
	NumHairStyles int `yaml:"char_numHairStyles"`
	NumHairColors int `yaml:"char_numHairColors"`
	NumGenders    int `yaml:"char_numGenders"`
	MinNameLength int `yaml:"char_minNameLength"`
	MaxNameLength int `yaml:"char_maxNameLength"`
	StartMap      int `yaml:"char_startMap"`
	StartX        int `yaml:"char_startX"`
	StartY        int `yaml:"char_startY"`

	// Attribute budget for new characters.
	Attributes AttributeConfig `yaml:"attributes"`

	// Chat
	MaxChannelNameLength int `yaml:"chat_maxChannelNameLength"`

	// Mail
	MaxLetters     int `yaml:"mail_maxLetters"`
	MaxAttachments int `yaml:"mail_maxAttachments"`

	// Admin
	DefaultMuteLength int `yaml:"command_defaultMuteLength"` // seconds

	// Static directory of which game server hosts which map.
	Maps []MapEntry `yaml:"maps"`
}

// MapEntry declares which game server (by registered name) owns a map.
type MapEntry struct {
	ID     int    `yaml:"id"`
	Server string `yaml:"server"`
}

// AttributeConfig describes the modifiable attribute set and the point
// budget available at character creation.
type AttributeConfig struct {
	Modifiable     []int           `yaml:"modifiable"`
	Defaults       map[int]float64 `yaml:"defaults"`
	StartingPoints int             `yaml:"starting_points"`
	Minimum        int             `yaml:"minimum"`
	Maximum        int             `yaml:"maximum"`
}

// GameServer holds configuration for a game server process.
type GameServer struct {
	Name           string `yaml:"name"`
	BindAddress    string `yaml:"bind_address"`
	ClientPort     int    `yaml:"net_gameListenToClientPort"`
	PublicAddress  string `yaml:"net_publicAddress"`
	AccountHost    string `yaml:"net_accountHost"`
	AccountPort    int    `yaml:"net_accountServerPort"`
	Password       string `yaml:"net_password"`
	ItemDBVersion  int    `yaml:"game_itemDbVersion"`
	TickMillis     int    `yaml:"game_tickMillis"`
	SyncEveryTicks int    `yaml:"game_syncEveryTicks"`

	FloorItemDecayTime int `yaml:"game_floorItemDecayTime"` // ticks
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultAccountServer returns AccountServer config with the documented
// defaults. GamePort and ChatPort are resolved from ClientPort when unset.
func DefaultAccountServer() AccountServer {
	return AccountServer{
		BindAddress:    "0.0.0.0",
		ClientPort:     9601,
		GameServerPort: 9610,
		MaxClients:     1000,
		ChatHost:       "localhost",
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "mana",
			Password: "mana",
			DBName:   "mana",
			SSLMode:  "disable",
		},
		MaxCharacters: 3,
		AllowRegister: true,
		NumHairStyles: 17,
		NumHairColors: 11,
		NumGenders:    2,
		MinNameLength: 4,
		MaxNameLength: 25,
		StartMap:      1,
		StartX:        1024,
		StartY:        1024,
		Attributes: AttributeConfig{
			Modifiable:     []int{1, 2, 3, 4, 5, 6},
			StartingPoints: 60,
			Minimum:        1,
			Maximum:        20,
		},
		MaxChannelNameLength: 15,
		MaxLetters:           10,
		MaxAttachments:       3,
		DefaultMuteLength:    60,
	}
}

// DefaultGameServer returns GameServer config with sensible defaults.
func DefaultGameServer() GameServer {
	return GameServer{
		Name:           "default",
		BindAddress:    "0.0.0.0",
		ClientPort:     9604,
		PublicAddress:  "127.0.0.1",
		AccountHost:    "127.0.0.1",
		AccountPort:    9610,
		ItemDBVersion:  1,
		TickMillis:     100,
		SyncEveryTicks: 100,

		FloorItemDecayTime: 6000,
	}
}

// ResolvePorts fills GamePort and ChatPort from their documented fallbacks
// when the config file leaves them unset.
func (c *AccountServer) ResolvePorts() {
	if c.GamePort == 0 {
		c.GamePort = c.ClientPort + 3
	}
	if c.ChatPort == 0 {
		c.ChatPort = c.ClientPort + 2
	}
	if c.PublicChatHost == "" {
		c.PublicChatHost = c.ChatHost
	}
}

// Validate rejects configurations the servers cannot run with.
func (c *AccountServer) Validate() error {
	if c.Password == "" {
		return fmt.Errorf("net_password must not be empty")
	}
	attrs := c.Attributes
	if len(attrs.Modifiable) == 0 {
		return fmt.Errorf("attributes.modifiable must not be empty")
	}
	if attrs.StartingPoints == 0 || attrs.Minimum == 0 || attrs.Maximum == 0 {
		return fmt.Errorf("attribute starting points are incomplete or not set")
	}
	n := len(attrs.Modifiable)
	if n*attrs.Maximum < attrs.StartingPoints || n*attrs.Minimum > attrs.StartingPoints {
		return fmt.Errorf("attribute point budget makes character creation impossible")
	}
	return nil
}

// LoadAccountServer loads account server config from a YAML file.
// A missing file yields the defaults.
func LoadAccountServer(path string) (AccountServer, error) {
	cfg := DefaultAccountServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ResolvePorts()
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.ResolvePorts()
	return cfg, nil
}

// LoadGameServer loads game server config from a YAML file.
// A missing file yields the defaults.
func LoadGameServer(path string) (GameServer, error) {
	cfg := DefaultGameServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
