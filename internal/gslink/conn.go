package gslink

import (
	"net"
	"sync"

	"github.com/Ablu/manaserv/internal/chardata"
	"github.com/Ablu/manaserv/internal/model"
	"github.com/Ablu/manaserv/internal/wire"
)

// Conn is one registered game server. Fan-out sends and handoffs arrive from
// foreign goroutines, so all writes go through the send mutex.
type Conn struct {
	conn net.Conn

	sendMu sync.Mutex

	mu         sync.Mutex
	name       string
	addr       string
	port       int
	registered bool
}

func newConn(conn net.Conn) *Conn {
	return &Conn{conn: conn}
}

func (c *Conn) send(msg *wire.MessageOut) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return wire.WriteMessage(c.conn, msg)
}

func (c *Conn) register(name, addr string, port int) {
	c.mu.Lock()
	c.name = name
	c.addr = addr
	c.port = port
	c.registered = true
	c.mu.Unlock()
}

// Name returns the registered server name, "" before registration.
func (c *Conn) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// Address returns the external address clients should dial.
func (c *Conn) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

// Port returns the external client port.
func (c *Conn) Port() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port
}

func (c *Conn) isRegistered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registered
}

// SendPlayerEnter pushes a character snapshot ahead of the client arriving
// with the token.
func (c *Conn) SendPlayerEnter(tok string, ch *model.Character) error {
	msg := wire.NewMessageOut(wire.AGMsgPlayerEnter)
	msg.WriteFixedString(tok, wire.TokenLength)
	msg.WriteInt32(ch.DatabaseID)
	msg.WriteString(ch.Name)
	chardata.Serialize(ch, msg)
	return c.send(msg)
}
