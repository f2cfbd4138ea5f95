// Package account implements the player-facing account endpoint: login with
// a salted challenge, registration, character management and the token
// handoff to the owning game server and the chat endpoint.
package account

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
	"github.com/Ablu/manaserv/internal/storage"
	"github.com/Ablu/manaserv/internal/token"
	"github.com/Ablu/manaserv/internal/wire"
)

// loginAttemptSpacing is the per-source-address minimum time between login
// attempts.
const loginAttemptSpacing = time.Second

// bannedSweepInterval is how often expired bans are lifted.
const bannedSweepInterval = time.Minute

// GameHandle is one registered game server as seen from character select.
type GameHandle interface {
	Address() string
	Port() int
	SendPlayerEnter(tok string, ch *model.Character) error
}

// GameDirectory resolves which game server owns a map.
type GameDirectory interface {
	ServerForMap(mapID int) (GameHandle, bool)
}

// ChatRegistrar primes the chat endpoint for a token handoff.
type ChatRegistrar interface {
	RegisterPendingConnect(tok, characterName string, accountLevel int)
}

// Server is the account endpoint.
type Server struct {
	cfg   config.AccountServer
	store *storage.Storage
	games GameDirectory
	chat  ChatRegistrar

	reconnects *token.Collector[*Client, int]

	runCtx context.Context

	mu          sync.Mutex
	clients     map[*Client]struct{}
	pending     map[string]*model.Account // username → account with fresh salt
	lastAttempt map[string]time.Time      // source ip → last login attempt
}

// NewServer wires the account endpoint. The game directory and chat
// registrar come from the link and chat endpoints of the same process.
func NewServer(cfg config.AccountServer, store *storage.Storage, games GameDirectory, chat ChatRegistrar) *Server {
	s := &Server{
		cfg:         cfg,
		store:       store,
		games:       games,
		chat:        chat,
		clients:     map[*Client]struct{}{},
		pending:     map[string]*model.Account{},
		lastAttempt: map[string]time.Time{},
	}
	s.reconnects = token.NewCollector[*Client, int](s, token.DefaultTimeout)
	return s
}

// PrepareReconnect primes the token collector for a client that a game
// server announced will re-dial the account endpoint.
func (s *Server) PrepareReconnect(characterID int, tok string) {
	s.reconnects.AddPendingConnect(tok, characterID)
}

// Run accepts player connections until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.runCtx = ctx

	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.ClientPort)
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	slog.Info("account endpoint listening", "addr", addr)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.reconnects.Run(ctx, time.Second)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.banSweep(ctx)
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
			slog.Error("account accept failed", "err", err)
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

	client := newClient(conn)
	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()
	defer s.dropClient(client)

	slog.Debug("player connected", "addr", conn.RemoteAddr())

	for {
		msg, err := wire.ReadMessage(conn)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) && ctx.Err() == nil {
				slog.Debug("player connection closed", "addr", conn.RemoteAddr(), "err", err)
			}
			return
		}
		if keep := s.dispatch(ctx, client, msg); !keep {
			return
		}
	}
}

func (s *Server) dropClient(client *Client) {
	s.reconnects.RemovePendingClient(func(c *Client) bool { return c == client })

	if acc := client.Account(); acc != nil {
		s.forgetPending(acc.Name)
	}
	client.unbind()

	s.mu.Lock()
	delete(s.clients, client)
	s.mu.Unlock()
}

func (s *Server) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// stashPending parks the account with its fresh salt between the challenge
// trigger and the login attempt.
func (s *Server) stashPending(acc *model.Account) {
	s.mu.Lock()
	s.pending[acc.Name] = acc
	s.mu.Unlock()
}

func (s *Server) takePending(username string) *model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.pending[username]
	if !ok {
		return nil
	}
	delete(s.pending, username)
	return acc
}

func (s *Server) forgetPending(username string) {
	s.mu.Lock()
	delete(s.pending, username)
	s.mu.Unlock()
}

// allowLoginAttempt enforces the per-source-address spacing.
func (s *Server) allowLoginAttempt(ip string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastAttempt[ip]; ok && now.Sub(last) < loginAttemptSpacing {
		return false
	}
	s.lastAttempt[ip] = now
	for addr, last := range s.lastAttempt {
		if now.Sub(last) > loginAttemptSpacing {
			delete(s.lastAttempt, addr)
		}
	}
	return true
}

func (s *Server) banSweep(ctx context.Context) {
	ticker := time.NewTicker(bannedSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.store.CheckBannedAccounts(ctx); err != nil {
				slog.Error("ban sweep failed", "err", err)
			}
		}
	}
}

// TokenMatched completes a reconnect: the tunneled character id leads to the
// account, which is bound fresh from storage.
func (s *Server) TokenMatched(client *Client, characterID int) {
	ctx := s.runCtx
	if ctx == nil {
		ctx = context.Background()
	}

	reply := wire.NewMessageOut(wire.APMsgReconnectResponse)

	ch, err := s.store.GetCharacterByID(ctx, characterID)
	if err != nil {
		slog.Error("reconnect character lookup failed", "character", characterID, "err", err)
		reply.WriteInt8(wire.ErrFailure)
		s.sendOrLog(client, reply)
		return
	}
	if ch == nil {
		reply.WriteInt8(wire.ErrFailure)
		s.sendOrLog(client, reply)
		return
	}

	acc, err := s.store.GetAccountByID(ctx, ch.AccountID)
	if err != nil || acc == nil {
		slog.Error("reconnect account lookup failed", "account", ch.AccountID, "err", err)
		reply.WriteInt8(wire.ErrFailure)
		s.sendOrLog(client, reply)
		return
	}

	client.bind(acc)
	reply.WriteInt8(wire.ErrOK)
	s.sendOrLog(client, reply)
}

// DeletePendingClient times out a queued client.
func (s *Server) DeletePendingClient(client *Client) {
	reply := wire.NewMessageOut(wire.APMsgReconnectResponse)
	reply.WriteInt8(wire.ErrTimeOut)
	s.sendOrLog(client, reply)
	client.conn.Close()
}

// DeletePendingConnect drops an unclaimed reconnect announcement.
func (s *Server) DeletePendingConnect(characterID int) {
	slog.Debug("reconnect token expired", "character", characterID)
}

func (s *Server) sendOrLog(client *Client, msg *wire.MessageOut) {
	if err := client.send(msg); err != nil {
		slog.Debug("send to player failed", "err", err)
	}
}
