package chat

import (
	"net"
	"sync"

	"github.com/Ablu/manaserv/internal/wire"
)

// Client is one chat connection. Until its token matches it is unknown:
// no character, no name, nothing dispatched except the initial connect.
type Client struct {
	conn net.Conn

	sendMu sync.Mutex

	// Guarded by the server mutex.
	authenticated bool
	characterName string
	characterID   int
	accountLevel  int
	channels      map[*Channel]struct{}
	party         *Party
}

func newClient(conn net.Conn) *Client {
	return &Client{
		conn:     conn,
		channels: map[*Channel]struct{}{},
	}
}

func (c *Client) send(msg *wire.MessageOut) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return wire.WriteMessage(c.conn, msg)
}
