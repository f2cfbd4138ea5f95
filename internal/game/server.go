// Package game is the game server process: it registers with the account
// server over the link, admits players by token and runs the world tick
// loop. Gameplay simulation itself lives elsewhere; this package carries
// the session and synchronisation backbone.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/Ablu/manaserv/internal/config"
	"github.com/Ablu/manaserv/internal/model"
	"github.com/Ablu/manaserv/internal/token"
	"github.com/Ablu/manaserv/internal/wire"
)

// Session is one player connection to the game server.
type Session struct {
	conn net.Conn

	sendMu sync.Mutex

	mu        sync.Mutex
	character *model.Character
}

func newSession(conn net.Conn) *Session {
	return &Session{conn: conn}
}

func (s *Session) send(msg *wire.MessageOut) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return wire.WriteMessage(s.conn, msg)
}

func (s *Session) Character() *model.Character {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.character
}

func (s *Session) bind(ch *model.Character) {
	s.mu.Lock()
	s.character = ch
	s.mu.Unlock()
}

// Server is the player-facing endpoint of the game server process.
type Server struct {
	cfg    config.GameServer
	world  *World
	enters *token.Collector[*Session, *model.Character]

	link *Link
}

// NewServer creates the endpoint; the link is attached after Dial.
func NewServer(cfg config.GameServer, world *World) *Server {
	s := &Server{cfg: cfg, world: world}
	s.enters = token.NewCollector[*Session, *model.Character](s, token.DefaultTimeout)
	return s
}

// Enters exposes the token collector the link feeds.
func (s *Server) Enters() *token.Collector[*Session, *model.Character] {
	return s.enters
}

// SetLink attaches the account server link.
func (s *Server) SetLink(l *Link) { s.link = l }

// Run accepts player connections until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.ClientPort)
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	slog.Info("game endpoint listening", "addr", addr)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.enters.Run(ctx, time.Second)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			slog.Error("game accept failed", "err", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveConn(ctx, conn)
		}()
	}

	wg.Wait()
	return nil
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	session := newSession(conn)
	defer s.dropSession(session)

	for {
		msg, err := wire.ReadMessage(conn)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) && ctx.Err() == nil {
				slog.Debug("game connection closed", "addr", conn.RemoteAddr(), "err", err)
			}
			return
		}

		switch msg.ID() {
		case wire.PGMsgConnect:
			tok := msg.ReadFixedString(wire.TokenLength)
			if msg.Err() != nil {
				return
			}
			if session.Character() != nil {
				reply := wire.NewMessageOut(wire.GPMsgConnectResponse)
				reply.WriteInt8(wire.ErrFailure)
				s.sendOrLog(session, reply)
				continue
			}
			s.enters.AddPendingClient(tok, session)
		default:
			slog.Debug("unknown message from game client", "id", msg.ID())
			s.sendOrLog(session, wire.NewMessageOut(wire.XXMsgInvalid))
		}
		if msg.Err() != nil {
			return
		}
	}
}

// dropSession uploads the authoritative snapshot of a leaving player.
func (s *Server) dropSession(session *Session) {
	s.enters.RemovePendingClient(func(c *Session) bool { return c == session })

	ch := session.Character()
	if ch == nil {
		return
	}
	if left := s.world.RemovePlayer(ch.DatabaseID); left != nil && s.link != nil {
		if err := s.link.SendPlayerData(left); err != nil {
			slog.Error("player snapshot upload failed", "character", left.DatabaseID, "err", err)
		}
	}
	slog.Info("player left", "character", ch.Name)
}

// TokenMatched admits the player staged under the token.
func (s *Server) TokenMatched(session *Session, ch *model.Character) {
	session.bind(ch)
	s.world.AddPlayer(ch)

	reply := wire.NewMessageOut(wire.GPMsgConnectResponse)
	reply.WriteInt8(wire.ErrOK)
	reply.WriteInt16(ch.MapID)
	reply.WriteInt16(ch.X)
	reply.WriteInt16(ch.Y)
	s.sendOrLog(session, reply)
	slog.Info("player entered", "character", ch.Name, "map", ch.MapID)
}

// DeletePendingClient times out a session whose snapshot never arrived.
func (s *Server) DeletePendingClient(session *Session) {
	reply := wire.NewMessageOut(wire.GPMsgConnectResponse)
	reply.WriteInt8(wire.ErrTimeOut)
	s.sendOrLog(session, reply)
	session.conn.Close()
}

// DeletePendingConnect drops a staged snapshot whose client never arrived.
func (s *Server) DeletePendingConnect(ch *model.Character) {
	slog.Debug("staged player expired", "character", ch.Name)
}

func (s *Server) sendOrLog(session *Session, msg *wire.MessageOut) {
	if err := session.send(msg); err != nil {
		slog.Debug("send to game client failed", "err", err)
	}
}
