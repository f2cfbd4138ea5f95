package account

import (
	"net"
	"sync"

	"github.com/Ablu/manaserv/internal/model"
	"github.com/Ablu/manaserv/internal/wire"
)

// State of one client connection at the account endpoint.
type State int

const (
	// StateLogin accepts authentication traffic only.
	StateLogin State = iota
	// StateQueued waits for a reconnect token match.
	StateQueued
	// StateConnected has exactly one bound account.
	StateConnected
)

// Client is one player connection. Handlers run on the connection's read
// goroutine; sends may additionally come from a token match fired on a
// game-server link goroutine, so writes go through a mutex.
type Client struct {
	conn net.Conn
	ip   string

	mu      sync.Mutex
	state   State
	account *model.Account
	version int
}

func newClient(conn net.Conn) *Client {
	ip := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return &Client{conn: conn, ip: ip}
}

func (c *Client) send(msg *wire.MessageOut) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return wire.WriteMessage(c.conn, msg)
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Account returns the bound account, nil unless Connected.
func (c *Client) Account() *model.Account {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.account
}

// bind attaches the account and moves the client to Connected.
func (c *Client) bind(acc *model.Account) {
	c.mu.Lock()
	c.account = acc
	c.state = StateConnected
	c.mu.Unlock()
}

// unbind releases the bound account and returns the client to Login.
func (c *Client) unbind() {
	c.mu.Lock()
	c.account = nil
	c.state = StateLogin
	c.mu.Unlock()
}
