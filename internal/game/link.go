package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/Ablu/manaserv/internal/chardata"
	"github.com/Ablu/manaserv/internal/config"
	"github.com/Ablu/manaserv/internal/model"
	"github.com/Ablu/manaserv/internal/token"
	"github.com/Ablu/manaserv/internal/wire"
)

// Link is the game server's connection to the account process. Registration
// happens in Dial; afterwards the read loop applies pushed state and the
// tick loop uses the senders.
type Link struct {
	cfg    config.GameServer
	world  *World
	enters *token.Collector[*Session, *model.Character]

	conn   net.Conn
	sendMu sync.Mutex
}

// Dial connects to the account server and registers this game server.
// A rejected password is fatal.
func Dial(ctx context.Context, cfg config.GameServer, world *World, enters *token.Collector[*Session, *model.Character]) (*Link, error) {
	addr := fmt.Sprintf("%s:%d", cfg.AccountHost, cfg.AccountPort)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing account server %s: %w", addr, err)
	}

	l := &Link{cfg: cfg, world: world, enters: enters, conn: conn}

	reg := wire.NewMessageOut(wire.GAMsgRegister)
	reg.WriteString(cfg.Name)
	reg.WriteString(cfg.PublicAddress)
	reg.WriteInt16(cfg.ClientPort)
	reg.WriteString(cfg.Password)
	reg.WriteInt32(cfg.ItemDBVersion)
	if err := l.send(reg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("registering with account server: %w", err)
	}

	resp, err := wire.ReadMessage(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("reading registration response: %w", err)
	}
	if resp.ID() != wire.AGMsgRegisterResponse {
		conn.Close()
		return nil, fmt.Errorf("unexpected registration response id 0x%04X", resp.ID())
	}
	dbStatus := resp.ReadInt16()
	pwStatus := resp.ReadInt16()
	if pwStatus != wire.PasswordOK {
		conn.Close()
		return nil, fmt.Errorf("account server rejected the shared secret")
	}
	if dbStatus != wire.DataVersionOK {
		slog.Warn("item database version outdated against account server")
	}
	for resp.Unread() > 0 && resp.Err() == nil {
		name := resp.ReadString()
		value := resp.ReadString()
		world.SetWorldVar(name, value)
	}
	if err := resp.Err(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("malformed registration response: %w", err)
	}

	slog.Info("registered with account server", "addr", addr, "name", cfg.Name)
	return l, nil
}

// Run reads pushed messages until the context is cancelled or the link
// drops.
func (l *Link) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		l.conn.Close()
	}()

	for {
		msg, err := wire.ReadMessage(l.conn)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("account server link lost: %w", err)
		}
		l.handle(msg)
		if err := msg.Err(); err != nil {
			return fmt.Errorf("malformed message 0x%04X from account server: %w", msg.ID(), err)
		}
	}
}

func (l *Link) handle(msg *wire.MessageIn) {
	switch msg.ID() {
	case wire.AGMsgActiveMap:
		l.handleActiveMap(msg)
	case wire.AGMsgPlayerEnter:
		l.handlePlayerEnter(msg)
	case wire.AGMsgSetVarWorld:
		name := msg.ReadString()
		value := msg.ReadString()
		if msg.Err() == nil {
			l.world.SetWorldVar(name, value)
		}
	case wire.AGMsgRedirectResponse:
		id := msg.ReadInt32()
		tok := msg.ReadFixedString(wire.TokenLength)
		address := msg.ReadString()
		port := msg.ReadInt16()
		if msg.Err() == nil {
			slog.Info("redirect granted", "character", id, "address", address, "port", port, "token_len", len(tok))
		}
	case wire.AGMsgGetVarChrResponse:
		id := msg.ReadInt32()
		name := msg.ReadString()
		value := msg.ReadString()
		if msg.Err() == nil {
			slog.Debug("quest var received", "character", id, "var", name, "value", value)
		}
	case wire.CGMsgPostResponse:
		id := msg.ReadInt32()
		slog.Debug("mailbox delivered", "character", id, "bytes", msg.Unread())
		for msg.Unread() > 0 && msg.Err() == nil {
			msg.ReadString()
			msg.ReadString()
			n := msg.ReadInt16()
			for i := 0; i < n && msg.Err() == nil; i++ {
				msg.ReadInt32()
				msg.ReadInt16()
			}
		}
	case wire.CGMsgStorePostResponse:
		id := msg.ReadInt32()
		status := msg.ReadInt8()
		if msg.Err() == nil {
			slog.Debug("letter stored", "sender", id, "status", status)
		}
	case wire.CGMsgChangedParty:
		id := msg.ReadInt32()
		partyID := msg.ReadInt32()
		if msg.Err() == nil {
			slog.Debug("party changed", "character", id, "party", partyID)
		}
	default:
		slog.Warn("unknown message from account server", "id", msg.ID())
	}
}

func (l *Link) handleActiveMap(msg *wire.MessageIn) {
	mapID := msg.ReadInt16()
	m := &MapState{ID: mapID, Vars: map[string]string{}}
	varCount := msg.ReadInt16()
	for i := 0; i < varCount && msg.Err() == nil; i++ {
		name := msg.ReadString()
		m.Vars[name] = msg.ReadString()
	}
	itemCount := msg.ReadInt16()
	for i := 0; i < itemCount && msg.Err() == nil; i++ {
		m.FloorItems = append(m.FloorItems, model.FloorItem{
			MapID:  mapID,
			ItemID: msg.ReadInt32(),
			Amount: msg.ReadInt16(),
			X:      msg.ReadInt16(),
			Y:      msg.ReadInt16(),
		})
	}
	if msg.Err() != nil {
		return
	}
	l.world.InstallMap(m)
	slog.Info("map activated", "map", mapID, "vars", varCount, "floor_items", itemCount)
}

func (l *Link) handlePlayerEnter(msg *wire.MessageIn) {
	tok := msg.ReadFixedString(wire.TokenLength)
	id := msg.ReadInt32()
	name := msg.ReadString()
	if msg.Err() != nil {
		return
	}
	ch := model.NewCharacter(name)
	ch.DatabaseID = id
	if err := chardata.Deserialize(ch, msg); err != nil {
		slog.Warn("player snapshot undecodable", "character", id, "err", err)
		return
	}
	l.enters.AddPendingConnect(tok, ch)
	slog.Debug("player handoff staged", "character", name)
}

func (l *Link) send(msg *wire.MessageOut) error {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	return wire.WriteMessage(l.conn, msg)
}

// SendPlayerData uploads the authoritative snapshot of a departing player.
func (l *Link) SendPlayerData(ch *model.Character) error {
	msg := wire.NewMessageOut(wire.GAMsgPlayerData)
	msg.WriteInt32(ch.DatabaseID)
	chardata.Serialize(ch, msg)
	return l.send(msg)
}

// SendSyncBatch uploads queued deltas as one PLAYER_SYNC message. The tick
// loop skips the call when the queue drained empty.
func (l *Link) SendSyncBatch(entries []syncEntry) error {
	msg := wire.NewMessageOut(wire.GAMsgPlayerSync)
	for _, e := range entries {
		switch e.kind {
		case syncPoints:
			msg.WriteInt8(wire.SyncCharacterPoints)
			msg.WriteInt32(e.charID)
			msg.WriteInt32(e.charPoints)
			msg.WriteInt32(e.corrPoints)
		case syncAttribute:
			msg.WriteInt8(wire.SyncCharacterAttribute)
			msg.WriteInt32(e.charID)
			msg.WriteInt32(e.attrID)
			msg.WriteDouble(e.base)
			msg.WriteDouble(e.mod)
		case syncOnline:
			msg.WriteInt8(wire.SyncOnlineStatus)
			msg.WriteInt32(e.charID)
			if e.online {
				msg.WriteInt8(1)
			} else {
				msg.WriteInt8(0)
			}
		}
	}
	return l.send(msg)
}

// SendStatistics uploads per-map player lists.
func (l *Link) SendStatistics(stats map[int][]int) error {
	msg := wire.NewMessageOut(wire.GAMsgStatistics)
	for mapID, players := range stats {
		msg.WriteInt16(mapID)
		msg.WriteInt32(len(players)) // entities: players are the only entities tracked here
		msg.WriteInt32(0)            // monsters
		msg.WriteInt16(len(players))
		for _, id := range players {
			msg.WriteInt32(id)
		}
	}
	return l.send(msg)
}
