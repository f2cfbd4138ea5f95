// Package chat implements the chat endpoint: token-gated connect, channels,
// guilds and parties. A client exists for the rest of the system only after
// its token matched the pending connect deposited at character select.
package chat

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

// pendingChat is the payload parked by the account endpoint under a token.
type pendingChat struct {
	characterName string
	accountLevel  int
}

// GameNotifier tells the game server owning a character about party
// membership changes.
type GameNotifier interface {
	NotifyPartyChange(characterID, partyID int)
}

// Server is the chat endpoint.
type Server struct {
	cfg   config.AccountServer
	store *storage.Storage

	tokens *token.Collector[*Client, pendingChat]
	games  GameNotifier

	runCtx context.Context

	mu           sync.Mutex
	byName       map[string]*Client
	channels     *channelManager
	guilds       *guildManager
	parties      *partyManager
	guildInvites map[*Client]map[int]struct{} // outstanding invites by invitee
}

// NewServer wires the chat endpoint, loading the guild cache from storage.
func NewServer(ctx context.Context, cfg config.AccountServer, store *storage.Storage) (*Server, error) {
	guilds, err := newGuildManager(ctx, store)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:          cfg,
		store:        store,
		byName:       map[string]*Client{},
		channels:     newChannelManager(),
		guilds:       guilds,
		parties:      newPartyManager(),
		guildInvites: map[*Client]map[int]struct{}{},
	}
	s.tokens = token.NewCollector[*Client, pendingChat](s, token.DefaultTimeout)
	return s, nil
}

// SetGameNotifier installs the party-change relay; set before Run.
func (s *Server) SetGameNotifier(games GameNotifier) { s.games = games }

// RegisterPendingConnect primes the collector for a client that character
// select sent this way.
func (s *Server) RegisterPendingConnect(tok, characterName string, accountLevel int) {
	s.tokens.AddPendingConnect(tok, pendingChat{
		characterName: characterName,
		accountLevel:  accountLevel,
	})
}

// AnnounceFromGame broadcasts a server announcement to every authenticated
// chat client.
func (s *Server) AnnounceFromGame(senderName, text string) {
	msg := wire.NewMessageOut(wire.CPMsgAnnouncement)
	msg.WriteString(text)
	msg.WriteString(senderName)

	s.mu.Lock()
	targets := make([]*Client, 0, len(s.byName))
	for _, c := range s.byName {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		s.sendOrLog(c, msg)
	}
}

// HandlePartyInvite relays an invite arriving over the game link to the
// invitee's chat connection.
func (s *Server) HandlePartyInvite(inviterName, inviteeName string) {
	s.mu.Lock()
	invitee := s.byName[inviteeName]
	if invitee != nil {
		s.parties.addInvite(inviterName, inviteeName, time.Now())
	}
	s.mu.Unlock()

	if invitee == nil {
		slog.Debug("party invite for offline character", "invitee", inviteeName)
		return
	}
	msg := wire.NewMessageOut(wire.CPMsgPartyInvited)
	msg.WriteString(inviterName)
	s.sendOrLog(invitee, msg)
}

// Run accepts chat connections until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.runCtx = ctx

	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.ChatPort)
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	slog.Info("chat endpoint listening", "addr", addr)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.tokens.Run(ctx, time.Second)
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
			slog.Error("chat accept failed", "err", err)
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
	defer s.dropClient(client)

	for {
		msg, err := wire.ReadMessage(conn)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) && ctx.Err() == nil {
				slog.Debug("chat connection closed", "addr", conn.RemoteAddr(), "err", err)
			}
			return
		}
		if keep := s.dispatch(ctx, client, msg); !keep {
			return
		}
	}
}

// TokenMatched completes chat authentication and replays guild presence.
func (s *Server) TokenMatched(client *Client, payload pendingChat) {
	ctx := s.runCtx
	if ctx == nil {
		ctx = context.Background()
	}

	characterID, err := s.store.GetCharacterID(ctx, payload.characterName)
	if err != nil || characterID < 0 {
		slog.Error("chat connect character lookup failed", "name", payload.characterName, "err", err)
		reply := wire.NewMessageOut(wire.CPMsgConnectResponse)
		reply.WriteInt8(wire.ErrFailure)
		s.sendOrLog(client, reply)
		client.conn.Close()
		return
	}

	s.mu.Lock()
	client.authenticated = true
	client.characterName = payload.characterName
	client.characterID = characterID
	client.accountLevel = payload.accountLevel
	s.byName[payload.characterName] = client
	guilds := s.guilds.guildsFor(characterID)
	s.mu.Unlock()

	reply := wire.NewMessageOut(wire.CPMsgConnectResponse)
	reply.WriteInt8(wire.ErrOK)
	s.sendOrLog(client, reply)
	slog.Info("chat client connected", "character", payload.characterName)

	for _, g := range guilds {
		s.rejoinGuild(client, g)
	}
}

// rejoinGuild restores one guild binding after connect: the rejoin notice,
// the auto-joined guild channel, and the online event to other members.
func (s *Server) rejoinGuild(client *Client, g *model.Guild) {
	s.mu.Lock()
	ch := s.channels.lookup(g.Name)
	if ch == nil {
		ch = s.channels.create(g.Name, "", "", false)
	}
	ch.clients[client] = struct{}{}
	client.channels[ch] = struct{}{}
	members := s.onlineGuildMembersLocked(g, client)
	rights := g.Rights(client.characterID)
	s.mu.Unlock()

	rejoin := wire.NewMessageOut(wire.CPMsgGuildRejoin)
	rejoin.WriteString(g.Name)
	rejoin.WriteInt16(g.ID)
	rejoin.WriteInt16(rights)
	rejoin.WriteInt16(ch.ID)
	rejoin.WriteString(ch.Announcement)
	s.sendOrLog(client, rejoin)

	for _, m := range members {
		s.sendGuildUpdate(m, g.ID, client.characterName, wire.GuildEventOnlinePlayer)
	}
}

// DeletePendingClient times out a chat connection that never matched.
func (s *Server) DeletePendingClient(client *Client) {
	reply := wire.NewMessageOut(wire.CPMsgConnectResponse)
	reply.WriteInt8(wire.ErrTimeOut)
	s.sendOrLog(client, reply)
	client.conn.Close()
}

// DeletePendingConnect drops an unclaimed handoff.
func (s *Server) DeletePendingConnect(payload pendingChat) {
	slog.Debug("chat handoff token expired", "character", payload.characterName)
}

// dropClient reclaims all chat state of a disconnecting connection.
func (s *Server) dropClient(client *Client) {
	s.tokens.RemovePendingClient(func(c *Client) bool { return c == client })

	s.mu.Lock()
	if !client.authenticated {
		s.mu.Unlock()
		return
	}
	client.authenticated = false
	delete(s.byName, client.characterName)
	delete(s.guildInvites, client)

	type channelLeave struct {
		channelID int
		targets   []*Client
	}
	var leaves []channelLeave
	for ch := range client.channels {
		delete(ch.clients, client)
		delete(client.channels, ch)
		leaves = append(leaves, channelLeave{ch.ID, ch.memberClients()})
		if len(ch.clients) == 0 && ch.Joinable {
			s.channels.remove(ch)
		}
	}

	partyTargets, partyID := s.leavePartyLocked(client)

	type guildLeave struct {
		guildID int
		targets []*Client
	}
	var guildLeaves []guildLeave
	for _, g := range s.guilds.guildsFor(client.characterID) {
		guildLeaves = append(guildLeaves, guildLeave{g.ID, s.onlineGuildMembersLocked(g, client)})
	}
	s.mu.Unlock()

	for _, leave := range leaves {
		for _, t := range leave.targets {
			s.sendChannelEvent(t, leave.channelID, wire.ChatEventLeavingPlayer, client.characterName, "")
		}
	}
	if partyID != 0 {
		for _, t := range partyTargets {
			left := wire.NewMessageOut(wire.CPMsgPartyMemberLeft)
			left.WriteInt32(client.characterID)
			s.sendOrLog(t, left)
		}
		if s.games != nil {
			s.games.NotifyPartyChange(client.characterID, 0)
		}
	}
	for _, leave := range guildLeaves {
		for _, t := range leave.targets {
			s.sendGuildUpdate(t, leave.guildID, client.characterName, wire.GuildEventOfflinePlayer)
		}
	}
	slog.Info("chat client disconnected", "character", client.characterName)
}

// leavePartyLocked removes the client from its party and returns the
// remaining members to notify. Caller holds the server mutex.
func (s *Server) leavePartyLocked(client *Client) ([]*Client, int) {
	p := client.party
	if p == nil {
		return nil, 0
	}
	delete(p.members, client)
	client.party = nil
	remaining := make([]*Client, 0, len(p.members))
	for m := range p.members {
		remaining = append(remaining, m)
	}
	return remaining, p.ID
}

// onlineGuildMembersLocked returns connected members of g except self.
// Caller holds the server mutex.
func (s *Server) onlineGuildMembersLocked(g *model.Guild, self *Client) []*Client {
	var out []*Client
	for _, c := range s.byName {
		if c != self && g.HasMember(c.characterID) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) sendChannelEvent(target *Client, channelID, event int, arg1, arg2 string) {
	msg := wire.NewMessageOut(wire.CPMsgChannelEvent)
	msg.WriteInt16(channelID)
	msg.WriteInt8(event)
	msg.WriteString(arg1)
	if arg2 != "" {
		msg.WriteString(arg2)
	}
	s.sendOrLog(target, msg)
}

func (s *Server) sendGuildUpdate(target *Client, guildID int, characterName string, event int) {
	msg := wire.NewMessageOut(wire.CPMsgGuildUpdateList)
	msg.WriteInt16(guildID)
	msg.WriteString(characterName)
	msg.WriteInt8(event)
	s.sendOrLog(target, msg)
}

func (s *Server) sendOrLog(client *Client, msg *wire.MessageOut) {
	if err := client.send(msg); err != nil {
		slog.Debug("send to chat client failed", "err", err)
	}
}

func (s *Server) audit(ctx context.Context, characterID, action int, message string) {
	err := s.store.AddTransaction(ctx, model.Transaction{
		CharacterID: characterID,
		Action:      action,
		Message:     message,
	})
	if err != nil {
		slog.Error("audit record failed", "action", action, "err", err)
	}
}
