// Package gslink is the account-process side of the server-to-server link:
// game servers register here, claim their maps, and stream player state back
// for persistence.
package gslink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/Ablu/manaserv/internal/config"
	"github.com/Ablu/manaserv/internal/mapregistry"
	"github.com/Ablu/manaserv/internal/storage"
	"github.com/Ablu/manaserv/internal/wire"
)

// ReconnectPreparer primes the account endpoint for a client that a game
// server sends back with a token.
type ReconnectPreparer interface {
	PrepareReconnect(characterID int, tok string)
}

// ChatSide receives the chat-bound messages relayed over the game link.
type ChatSide interface {
	AnnounceFromGame(senderName, text string)
	HandlePartyInvite(inviterName, inviteeName string)
}

// Server accepts and serves game-server link connections.
type Server struct {
	cfg      config.AccountServer
	store    *storage.Storage
	registry *mapregistry.Registry[*Conn]

	chat      ChatSide
	reconnect ReconnectPreparer

	runCtx context.Context

	mu    sync.Mutex
	conns []*Conn // registration order, for deterministic fan-out
}

// NewServer wires the link endpoint. The chat side and reconnect preparer
// are set by the owning process before Run.
func NewServer(cfg config.AccountServer, store *storage.Storage, registry *mapregistry.Registry[*Conn]) *Server {
	return &Server{cfg: cfg, store: store, registry: registry}
}

// SetChatSide installs the chat relay target.
func (s *Server) SetChatSide(chat ChatSide) { s.chat = chat }

// SetReconnectPreparer installs the account-side reconnect target.
func (s *Server) SetReconnectPreparer(r ReconnectPreparer) { s.reconnect = r }

// ServerForMap resolves the registered game server owning a map.
func (s *Server) ServerForMap(mapID int) (*Conn, bool) {
	return s.registry.Lookup(mapID)
}

// NotifyPartyChange tells the game server owning the character about a
// party membership change.
func (s *Server) NotifyPartyChange(characterID, partyID int) {
	ctx := s.runCtx
	if ctx == nil {
		ctx = context.Background()
	}

	ch, err := s.store.GetCharacterByID(ctx, characterID)
	if err != nil || ch == nil {
		slog.Error("party change character lookup failed", "character", characterID, "err", err)
		return
	}
	target, ok := s.registry.Lookup(ch.MapID)
	if !ok {
		slog.Debug("party change for unserved map", "character", characterID, "map", ch.MapID)
		return
	}

	msg := wire.NewMessageOut(wire.CGMsgChangedParty)
	msg.WriteInt32(characterID)
	msg.WriteInt32(partyID)
	if err := target.send(msg); err != nil {
		slog.Error("party change send failed", "server", target.Name(), "err", err)
	}
}

// Run accepts game-server connections until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.runCtx = ctx

	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.GameServerPort)
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	slog.Info("game server link listening", "addr", addr)

	var wg sync.WaitGroup
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
			slog.Error("game link accept failed", "err", err)
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

func (s *Server) serveConn(ctx context.Context, nc net.Conn) {
	defer nc.Close()

	conn := newConn(nc)
	slog.Info("game server connected", "addr", nc.RemoteAddr())
	defer s.disconnect(conn)

	for {
		msg, err := wire.ReadMessage(nc)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) && ctx.Err() == nil {
				slog.Info("game server link closed", "server", conn.Name(), "err", err)
			}
			return
		}
		if keep := s.dispatch(ctx, conn, msg); !keep {
			return
		}
	}
}

func (s *Server) addConn(conn *Conn) {
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) disconnect(conn *Conn) {
	s.mu.Lock()
	for i, c := range s.conns {
		if c == conn {
			s.conns = append(s.conns[:i], s.conns[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	freed := s.registry.Release(conn)
	if len(freed) > 0 {
		slog.Warn("game server dropped, maps released", "server", conn.Name(), "maps", freed)
	}
}

// broadcast sends a copy of msg to every registered game server in
// registration order.
func (s *Server) broadcast(msg *wire.MessageOut) {
	s.mu.Lock()
	conns := make([]*Conn, len(s.conns))
	copy(conns, s.conns)
	s.mu.Unlock()

	for _, c := range conns {
		if err := c.send(msg); err != nil {
			slog.Error("fan-out send failed", "server", c.Name(), "err", err)
		}
	}
}
