package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/Ablu/manaserv/internal/model"
	"github.com/Ablu/manaserv/internal/stringfilter"
	"github.com/Ablu/manaserv/internal/wire"
)

// dispatch routes one message. The first message on a connection must be
// the token connect; everything else requires authentication. Each handler
// replies on its own; there is no shared fall-through between handlers.
func (s *Server) dispatch(ctx context.Context, client *Client, msg *wire.MessageIn) bool {
	if msg.ID() == wire.PCMsgConnect {
		s.handleConnect(client, msg)
		return msg.Err() == nil
	}

	s.mu.Lock()
	authed := client.authenticated
	s.mu.Unlock()
	if !authed {
		slog.Warn("chat message before authentication", "id", msg.ID())
		return false
	}

	switch msg.ID() {
	case wire.PCMsgDisconnect:
		s.handleDisconnect(client)
		return false
	case wire.PCMsgChat:
		s.handleChat(client, msg)
	case wire.PCMsgPrivMsg:
		s.handlePrivMsg(client, msg)
	case wire.PCMsgWho:
		s.handleWho(client)
	case wire.PCMsgEnterChannel:
		s.handleEnterChannel(ctx, client, msg)
	case wire.PCMsgQuitChannel:
		s.handleQuitChannel(ctx, client, msg)
	case wire.PCMsgListChannels:
		s.handleListChannels(ctx, client)
	case wire.PCMsgListChannelUsers:
		s.handleListChannelUsers(ctx, client, msg)
	case wire.PCMsgTopicChange:
		s.handleTopicChange(ctx, client, msg)
	case wire.PCMsgUserMode:
		s.handleUserMode(ctx, client, msg)
	case wire.PCMsgKickUser:
		s.handleKickUser(ctx, client, msg)
	case wire.PCMsgGuildCreate:
		s.handleGuildCreate(ctx, client, msg)
	case wire.PCMsgGuildInvite:
		s.handleGuildInvite(client, msg)
	case wire.PCMsgGuildAccept:
		s.handleGuildAccept(ctx, client, msg)
	case wire.PCMsgGuildGetMembers:
		s.handleGuildGetMembers(client, msg)
	case wire.PCMsgGuildPromoteMember:
		s.handleGuildPromoteMember(ctx, client, msg)
	case wire.PCMsgGuildKickMember:
		s.handleGuildKickMember(ctx, client, msg)
	case wire.PCMsgGuildQuit:
		s.handleGuildQuit(ctx, client, msg)
	case wire.PCMsgPartyInviteAnswer:
		s.handlePartyInviteAnswer(client, msg)
	case wire.PCMsgPartyQuit:
		s.handlePartyQuit(client)
	default:
		slog.Debug("unknown message from chat client", "id", msg.ID())
		s.sendOrLog(client, wire.NewMessageOut(wire.XXMsgInvalid))
		return true
	}

	if err := msg.Err(); err != nil {
		slog.Warn("malformed message from chat client", "id", msg.ID(), "err", err)
		return false
	}
	return true
}

func (s *Server) handleConnect(client *Client, msg *wire.MessageIn) {
	tok := msg.ReadFixedString(wire.TokenLength)
	if msg.Err() != nil {
		return
	}

	s.mu.Lock()
	authed := client.authenticated
	s.mu.Unlock()
	if authed {
		reply := wire.NewMessageOut(wire.CPMsgConnectResponse)
		reply.WriteInt8(wire.ErrFailure)
		s.sendOrLog(client, reply)
		return
	}
	s.tokens.AddPendingClient(tok, client)
}

func (s *Server) handleDisconnect(client *Client) {
	reply := wire.NewMessageOut(wire.CPMsgDisconnectResponse)
	reply.WriteInt8(wire.ErrOK)
	s.sendOrLog(client, reply)
}

func (s *Server) handleChat(client *Client, msg *wire.MessageIn) {
	text := msg.ReadString()
	channelID := msg.ReadInt16()
	if msg.Err() != nil {
		return
	}

	s.mu.Lock()
	ch := s.channels.byID(channelID)
	var targets []*Client
	if ch != nil {
		if _, member := ch.clients[client]; member {
			targets = ch.memberClients()
		}
	}
	s.mu.Unlock()

	if targets == nil {
		s.sendError(client, wire.ErrInvalidArgument)
		return
	}

	out := wire.NewMessageOut(wire.CPMsgPubMsg)
	out.WriteInt16(channelID)
	out.WriteString(client.characterName)
	out.WriteString(text)
	for _, t := range targets {
		s.sendOrLog(t, out)
	}
}

func (s *Server) handlePrivMsg(client *Client, msg *wire.MessageIn) {
	receiver := msg.ReadString()
	text := msg.ReadString()
	if msg.Err() != nil {
		return
	}

	s.mu.Lock()
	target := s.byName[receiver]
	s.mu.Unlock()

	if target == nil {
		s.sendError(client, wire.ErrInvalidArgument)
		return
	}
	out := wire.NewMessageOut(wire.CPMsgPrivMsg)
	out.WriteString(client.characterName)
	out.WriteString(text)
	s.sendOrLog(target, out)
}

func (s *Server) handleWho(client *Client) {
	s.mu.Lock()
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	s.mu.Unlock()

	reply := wire.NewMessageOut(wire.CPMsgWhoResponse)
	for _, name := range names {
		reply.WriteString(name)
	}
	s.sendOrLog(client, reply)
}

// handleEnterChannel joins an existing channel or auto-creates a public one
// under the naming rules, then announces the new member.
func (s *Server) handleEnterChannel(ctx context.Context, client *Client, msg *wire.MessageIn) {
	name := msg.ReadString()
	password := msg.ReadString()
	if msg.Err() != nil {
		return
	}
	name = stringfilter.Normalize(name)

	reply := wire.NewMessageOut(wire.CPMsgEnterChannelResponse)

	s.mu.Lock()
	ch := s.channels.lookup(name)
	if ch == nil {
		if !s.channelNameAllowedLocked(name) {
			s.mu.Unlock()
			reply.WriteInt8(wire.ErrInvalidArgument)
			s.sendOrLog(client, reply)
			return
		}
		ch = s.channels.create(name, "", password, true)
	}
	if !ch.Joinable && !s.guildMemberOfChannelLocked(ch, client) {
		s.mu.Unlock()
		reply.WriteInt8(wire.ErrInsufficientRights)
		s.sendOrLog(client, reply)
		return
	}
	if ch.Password != "" && ch.Password != password {
		s.mu.Unlock()
		reply.WriteInt8(wire.ErrInsufficientRights)
		s.sendOrLog(client, reply)
		return
	}
	ch.clients[client] = struct{}{}
	client.channels[ch] = struct{}{}
	targets := ch.memberClients()
	names := ch.memberNames()
	s.mu.Unlock()

	reply.WriteInt8(wire.ErrOK)
	reply.WriteInt16(ch.ID)
	reply.WriteString(ch.Name)
	reply.WriteString(ch.Announcement)
	for _, n := range names {
		reply.WriteString(n)
	}
	s.sendOrLog(client, reply)

	for _, t := range targets {
		if t != client {
			s.sendChannelEvent(t, ch.ID, wire.ChatEventNewPlayer, client.characterName, "")
		}
	}
	s.audit(ctx, client.characterID, model.TransChannelJoin, name)
}

// channelNameAllowedLocked applies the auto-creation naming rules. Caller
// holds the server mutex.
func (s *Server) channelNameAllowedLocked(name string) bool {
	if len(name) == 0 || len(name) > s.cfg.MaxChannelNameLength {
		return false
	}
	if stringfilter.FindDoubleQuotes(name) || !stringfilter.FilterContent(name) {
		return false
	}
	return s.guilds.byName(name) == nil
}

// guildMemberOfChannelLocked reports whether the client belongs to the guild
// owning a non-joinable channel. Caller holds the server mutex.
func (s *Server) guildMemberOfChannelLocked(ch *Channel, client *Client) bool {
	g := s.guilds.byName(ch.Name)
	return g != nil && g.HasMember(client.characterID)
}

func (s *Server) handleQuitChannel(ctx context.Context, client *Client, msg *wire.MessageIn) {
	channelID := msg.ReadInt16()
	if msg.Err() != nil {
		return
	}

	reply := wire.NewMessageOut(wire.CPMsgQuitChannelResponse)

	s.mu.Lock()
	ch := s.channels.byID(channelID)
	if ch == nil {
		s.mu.Unlock()
		reply.WriteInt8(wire.ErrInvalidArgument)
		s.sendOrLog(client, reply)
		return
	}
	if _, member := ch.clients[client]; !member {
		s.mu.Unlock()
		reply.WriteInt8(wire.ErrFailure)
		s.sendOrLog(client, reply)
		return
	}
	delete(ch.clients, client)
	delete(client.channels, ch)
	targets := ch.memberClients()
	if len(ch.clients) == 0 && ch.Joinable {
		s.channels.remove(ch)
	}
	s.mu.Unlock()

	reply.WriteInt8(wire.ErrOK)
	reply.WriteInt16(channelID)
	s.sendOrLog(client, reply)

	for _, t := range targets {
		s.sendChannelEvent(t, channelID, wire.ChatEventLeavingPlayer, client.characterName, "")
	}
	s.audit(ctx, client.characterID, model.TransChannelQuit, ch.Name)
}

func (s *Server) handleListChannels(ctx context.Context, client *Client) {
	type entry struct {
		name  string
		users int
	}
	s.mu.Lock()
	var entries []entry
	for _, ch := range s.channels.channels {
		if ch.Joinable {
			entries = append(entries, entry{ch.Name, len(ch.clients)})
		}
	}
	s.mu.Unlock()

	reply := wire.NewMessageOut(wire.CPMsgListChannelsResponse)
	for _, e := range entries {
		reply.WriteString(e.name)
		reply.WriteInt16(e.users)
	}
	s.sendOrLog(client, reply)
	s.audit(ctx, client.characterID, model.TransChannelList, "")
}

func (s *Server) handleListChannelUsers(ctx context.Context, client *Client, msg *wire.MessageIn) {
	name := msg.ReadString()
	if msg.Err() != nil {
		return
	}

	s.mu.Lock()
	ch := s.channels.lookup(name)
	var names []string
	if ch != nil {
		names = ch.memberNames()
	}
	s.mu.Unlock()

	reply := wire.NewMessageOut(wire.CPMsgListChannelUsersResponse)
	reply.WriteString(name)
	for _, n := range names {
		reply.WriteString(n)
	}
	s.sendOrLog(client, reply)
	s.audit(ctx, client.characterID, model.TransChannelUserlist, name)
}

// channelPrivilegedLocked reports whether the client may administrate the
// channel: GM level, or guild owner for a guild channel. Caller holds the
// server mutex.
func (s *Server) channelPrivilegedLocked(ch *Channel, client *Client) bool {
	if client.accountLevel >= model.AccessGM {
		return true
	}
	if g := s.guilds.byName(ch.Name); g != nil {
		return g.Rights(client.characterID) == model.GuildRightOwner
	}
	return false
}

func (s *Server) handleTopicChange(ctx context.Context, client *Client, msg *wire.MessageIn) {
	channelID := msg.ReadInt16()
	topic := msg.ReadString()
	if msg.Err() != nil {
		return
	}

	s.mu.Lock()
	ch := s.channels.byID(channelID)
	if ch == nil || !s.channelPrivilegedLocked(ch, client) {
		s.mu.Unlock()
		s.sendError(client, wire.ErrInsufficientRights)
		return
	}
	ch.Announcement = topic
	targets := ch.memberClients()
	s.mu.Unlock()

	for _, t := range targets {
		s.sendChannelEvent(t, channelID, wire.ChatEventTopicChange, client.characterName, topic)
	}
	s.audit(ctx, client.characterID, model.TransChannelTopic, topic)
}

func (s *Server) handleUserMode(ctx context.Context, client *Client, msg *wire.MessageIn) {
	channelID := msg.ReadInt16()
	name := msg.ReadString()
	mode := msg.ReadInt8()
	if msg.Err() != nil {
		return
	}

	s.mu.Lock()
	ch := s.channels.byID(channelID)
	if ch == nil || !s.channelPrivilegedLocked(ch, client) {
		s.mu.Unlock()
		s.sendError(client, wire.ErrInsufficientRights)
		return
	}
	targets := ch.memberClients()
	s.mu.Unlock()

	for _, t := range targets {
		msg := wire.NewMessageOut(wire.CPMsgChannelEvent)
		msg.WriteInt16(channelID)
		msg.WriteInt8(wire.ChatEventModeChange)
		msg.WriteString(client.characterName)
		msg.WriteString(name)
		msg.WriteInt8(mode)
		s.sendOrLog(t, msg)
	}
	s.audit(ctx, client.characterID, model.TransChannelMode, name)
}

func (s *Server) handleKickUser(ctx context.Context, client *Client, msg *wire.MessageIn) {
	channelID := msg.ReadInt16()
	name := msg.ReadString()
	if msg.Err() != nil {
		return
	}

	s.mu.Lock()
	ch := s.channels.byID(channelID)
	if ch == nil || !s.channelPrivilegedLocked(ch, client) {
		s.mu.Unlock()
		s.sendError(client, wire.ErrInsufficientRights)
		return
	}
	target := s.byName[name]
	if target == nil {
		s.mu.Unlock()
		s.sendError(client, wire.ErrInvalidArgument)
		return
	}
	if _, member := ch.clients[target]; !member {
		s.mu.Unlock()
		s.sendError(client, wire.ErrInvalidArgument)
		return
	}
	delete(ch.clients, target)
	delete(target.channels, ch)
	targets := ch.memberClients()
	targets = append(targets, target)
	s.mu.Unlock()

	for _, t := range targets {
		msg := wire.NewMessageOut(wire.CPMsgChannelEvent)
		msg.WriteInt16(channelID)
		msg.WriteInt8(wire.ChatEventKickedPlayer)
		msg.WriteString(name)
		msg.WriteString(client.characterName)
		s.sendOrLog(t, msg)
	}
	s.audit(ctx, client.characterID, model.TransChannelKick, name)
}

func (s *Server) handleGuildCreate(ctx context.Context, client *Client, msg *wire.MessageIn) {
	name := msg.ReadString()
	if msg.Err() != nil {
		return
	}
	name = stringfilter.Normalize(name)

	reply := wire.NewMessageOut(wire.CPMsgGuildCreateResponse)

	s.mu.Lock()
	switch {
	case stringfilter.FindDoubleQuotes(name) || !stringfilter.FilterContent(name):
		s.mu.Unlock()
		reply.WriteInt8(wire.ErrInvalidArgument)
		s.sendOrLog(client, reply)
		return
	case len(name) == 0 || len(name) > s.cfg.MaxChannelNameLength:
		s.mu.Unlock()
		reply.WriteInt8(wire.ErrInvalidArgument)
		s.sendOrLog(client, reply)
		return
	case s.guilds.byName(name) != nil || s.channels.lookup(name) != nil:
		s.mu.Unlock()
		reply.WriteInt8(wire.ErrAlreadyTaken)
		s.sendOrLog(client, reply)
		return
	}

	g, err := s.guilds.create(ctx, name, client.characterID)
	if err != nil {
		s.mu.Unlock()
		slog.Error("guild creation failed", "name", name, "err", err)
		reply.WriteInt8(wire.ErrFailure)
		s.sendOrLog(client, reply)
		return
	}
	ch := s.channels.create(name, "", "", false)
	ch.clients[client] = struct{}{}
	client.channels[ch] = struct{}{}
	s.mu.Unlock()

	reply.WriteInt8(wire.ErrOK)
	reply.WriteString(g.Name)
	reply.WriteInt16(g.ID)
	reply.WriteInt16(ch.ID)
	s.sendOrLog(client, reply)
	s.audit(ctx, client.characterID, model.TransGuildCreate, name)
	slog.Info("guild created", "name", name, "owner", client.characterName)
}

func (s *Server) handleGuildInvite(client *Client, msg *wire.MessageIn) {
	guildID := msg.ReadInt16()
	inviteeName := msg.ReadString()
	if msg.Err() != nil {
		return
	}

	reply := wire.NewMessageOut(wire.CPMsgGuildInviteResponse)

	s.mu.Lock()
	g := s.guilds.byID(guildID)
	invitee := s.byName[inviteeName]
	switch {
	case g == nil:
		s.mu.Unlock()
		reply.WriteInt8(wire.ErrInvalidArgument)
		s.sendOrLog(client, reply)
		return
	case g.Rights(client.characterID)&model.GuildRightInvite == 0 &&
		g.Rights(client.characterID) != model.GuildRightOwner:
		s.mu.Unlock()
		reply.WriteInt8(wire.ErrInsufficientRights)
		s.sendOrLog(client, reply)
		return
	case invitee == nil:
		s.mu.Unlock()
		reply.WriteInt8(wire.ErrInvalidArgument)
		s.sendOrLog(client, reply)
		return
	case g.HasMember(invitee.characterID):
		s.mu.Unlock()
		reply.WriteInt8(wire.ErrAlreadyTaken)
		s.sendOrLog(client, reply)
		return
	}
	if s.guildInvites[invitee] == nil {
		s.guildInvites[invitee] = map[int]struct{}{}
	}
	s.guildInvites[invitee][guildID] = struct{}{}
	s.mu.Unlock()

	invited := wire.NewMessageOut(wire.CPMsgGuildInvited)
	invited.WriteString(client.characterName)
	invited.WriteString(g.Name)
	invited.WriteInt16(g.ID)
	s.sendOrLog(invitee, invited)

	reply.WriteInt8(wire.ErrOK)
	s.sendOrLog(client, reply)
}

func (s *Server) handleGuildAccept(ctx context.Context, client *Client, msg *wire.MessageIn) {
	guildID := msg.ReadInt16()
	if msg.Err() != nil {
		return
	}

	reply := wire.NewMessageOut(wire.CPMsgGuildAcceptResponse)

	s.mu.Lock()
	g := s.guilds.byID(guildID)
	invites := s.guildInvites[client]
	if g == nil || invites == nil {
		s.mu.Unlock()
		reply.WriteInt8(wire.ErrInvalidArgument)
		s.sendOrLog(client, reply)
		return
	}
	if _, ok := invites[guildID]; !ok {
		s.mu.Unlock()
		reply.WriteInt8(wire.ErrInvalidArgument)
		s.sendOrLog(client, reply)
		return
	}
	delete(invites, guildID)

	if err := s.guilds.addMember(ctx, g, client.characterID); err != nil {
		s.mu.Unlock()
		slog.Error("guild join failed", "guild", g.Name, "err", err)
		reply.WriteInt8(wire.ErrFailure)
		s.sendOrLog(client, reply)
		return
	}
	ch := s.channels.lookup(g.Name)
	if ch == nil {
		ch = s.channels.create(g.Name, "", "", false)
	}
	ch.clients[client] = struct{}{}
	client.channels[ch] = struct{}{}
	members := s.onlineGuildMembersLocked(g, client)
	s.mu.Unlock()

	reply.WriteInt8(wire.ErrOK)
	reply.WriteString(g.Name)
	reply.WriteInt16(g.ID)
	reply.WriteInt16(ch.ID)
	s.sendOrLog(client, reply)

	for _, m := range members {
		s.sendGuildUpdate(m, g.ID, client.characterName, wire.GuildEventNewPlayer)
	}
}

func (s *Server) handleGuildGetMembers(client *Client, msg *wire.MessageIn) {
	guildID := msg.ReadInt16()
	if msg.Err() != nil {
		return
	}

	reply := wire.NewMessageOut(wire.CPMsgGuildGetMembersResponse)

	ctx := s.runCtx
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	g := s.guilds.byID(guildID)
	if g == nil || !g.HasMember(client.characterID) {
		s.mu.Unlock()
		reply.WriteInt8(wire.ErrInvalidArgument)
		s.sendOrLog(client, reply)
		return
	}
	memberIDs := make([]int, 0, len(g.Members))
	for id := range g.Members {
		memberIDs = append(memberIDs, id)
	}
	online := map[int]bool{}
	for _, c := range s.byName {
		online[c.characterID] = true
	}
	s.mu.Unlock()

	reply.WriteInt8(wire.ErrOK)
	reply.WriteInt16(guildID)
	for _, id := range memberIDs {
		name := ""
		if ch, err := s.store.GetCharacterByID(ctx, id); err == nil && ch != nil {
			name = ch.Name
		}
		reply.WriteString(name)
		if online[id] {
			reply.WriteInt8(1)
		} else {
			reply.WriteInt8(0)
		}
	}
	s.sendOrLog(client, reply)
}

func (s *Server) handleGuildPromoteMember(ctx context.Context, client *Client, msg *wire.MessageIn) {
	guildID := msg.ReadInt16()
	name := msg.ReadString()
	rights := msg.ReadInt8()
	if msg.Err() != nil {
		return
	}

	reply := wire.NewMessageOut(wire.CPMsgGuildPromoteMemberResponse)

	s.mu.Lock()
	g := s.guilds.byID(guildID)
	target := s.byName[name]
	switch {
	case g == nil || g.Rights(client.characterID) != model.GuildRightOwner:
		s.mu.Unlock()
		reply.WriteInt8(wire.ErrInsufficientRights)
		s.sendOrLog(client, reply)
		return
	case target == nil || !g.HasMember(target.characterID):
		s.mu.Unlock()
		reply.WriteInt8(wire.ErrInvalidArgument)
		s.sendOrLog(client, reply)
		return
	}
	err := s.guilds.setRights(ctx, g, target.characterID, rights)
	s.mu.Unlock()

	if err != nil {
		slog.Error("guild promotion failed", "guild", g.Name, "member", name, "err", err)
		reply.WriteInt8(wire.ErrFailure)
	} else {
		reply.WriteInt8(wire.ErrOK)
	}
	s.sendOrLog(client, reply)
}

func (s *Server) handleGuildKickMember(ctx context.Context, client *Client, msg *wire.MessageIn) {
	guildID := msg.ReadInt16()
	name := msg.ReadString()
	if msg.Err() != nil {
		return
	}

	reply := wire.NewMessageOut(wire.CPMsgGuildKickMemberResponse)

	s.mu.Lock()
	g := s.guilds.byID(guildID)
	target := s.byName[name]
	rights := 0
	if g != nil {
		rights = g.Rights(client.characterID)
	}
	switch {
	case g == nil:
		s.mu.Unlock()
		reply.WriteInt8(wire.ErrInvalidArgument)
		s.sendOrLog(client, reply)
		return
	case rights&model.GuildRightKick == 0 && rights != model.GuildRightOwner:
		s.mu.Unlock()
		reply.WriteInt8(wire.ErrInsufficientRights)
		s.sendOrLog(client, reply)
		return
	case target == nil || !g.HasMember(target.characterID):
		s.mu.Unlock()
		reply.WriteInt8(wire.ErrInvalidArgument)
		s.sendOrLog(client, reply)
		return
	}
	_, err := s.guilds.removeMember(ctx, g, target.characterID)
	var members []*Client
	var guildChannel *Channel
	if err == nil {
		guildChannel = s.channels.lookup(g.Name)
		if guildChannel != nil {
			delete(guildChannel.clients, target)
			delete(target.channels, guildChannel)
		}
		members = s.onlineGuildMembersLocked(g, target)
	}
	s.mu.Unlock()

	if err != nil {
		slog.Error("guild kick failed", "guild", g.Name, "member", name, "err", err)
		reply.WriteInt8(wire.ErrFailure)
		s.sendOrLog(client, reply)
		return
	}
	reply.WriteInt8(wire.ErrOK)
	s.sendOrLog(client, reply)

	for _, m := range members {
		s.sendGuildUpdate(m, guildID, name, wire.GuildEventLeavingPlayer)
	}
	s.sendGuildUpdate(target, guildID, name, wire.GuildEventLeavingPlayer)
}

func (s *Server) handleGuildQuit(ctx context.Context, client *Client, msg *wire.MessageIn) {
	guildID := msg.ReadInt16()
	if msg.Err() != nil {
		return
	}

	reply := wire.NewMessageOut(wire.CPMsgGuildQuitResponse)

	s.mu.Lock()
	g := s.guilds.byID(guildID)
	if g == nil || !g.HasMember(client.characterID) {
		s.mu.Unlock()
		reply.WriteInt8(wire.ErrInvalidArgument)
		s.sendOrLog(client, reply)
		return
	}
	guildName := g.Name
	removed, err := s.guilds.removeMember(ctx, g, client.characterID)
	var members []*Client
	if err == nil {
		guildChannel := s.channels.lookup(guildName)
		if guildChannel != nil {
			delete(guildChannel.clients, client)
			delete(client.channels, guildChannel)
			if removed {
				s.channels.remove(guildChannel)
			}
		}
		if !removed {
			members = s.onlineGuildMembersLocked(g, client)
		}
	}
	s.mu.Unlock()

	if err != nil {
		slog.Error("guild quit failed", "guild", guildName, "err", err)
		reply.WriteInt8(wire.ErrFailure)
		s.sendOrLog(client, reply)
		return
	}
	reply.WriteInt8(wire.ErrOK)
	reply.WriteInt16(guildID)
	s.sendOrLog(client, reply)

	for _, m := range members {
		s.sendGuildUpdate(m, guildID, client.characterName, wire.GuildEventLeavingPlayer)
	}
	s.audit(ctx, client.characterID, model.TransGuildQuit, guildName)
}

func (s *Server) handlePartyInviteAnswer(client *Client, msg *wire.MessageIn) {
	inviterName := msg.ReadString()
	accepted := msg.ReadInt8() != 0
	if msg.Err() != nil {
		return
	}

	reply := wire.NewMessageOut(wire.CPMsgPartyInviteResponse)
	reply.WriteString(inviterName)

	s.mu.Lock()
	valid := s.parties.takeInvite(inviterName, client.characterName, time.Now())
	inviter := s.byName[inviterName]
	if !valid || inviter == nil {
		s.mu.Unlock()
		reply.WriteInt8(wire.ErrTimeOut)
		s.sendOrLog(client, reply)
		return
	}
	if !accepted {
		s.mu.Unlock()
		reply.WriteInt8(wire.ErrFailure)
		s.sendOrLog(client, reply)
		s.sendOrLog(inviter, reply)
		return
	}

	p := inviter.party
	if p == nil {
		p = s.parties.newParty()
		p.members[inviter] = struct{}{}
		inviter.party = p
	}
	existing := make([]*Client, 0, len(p.members))
	for m := range p.members {
		existing = append(existing, m)
	}
	p.members[client] = struct{}{}
	client.party = p
	partyID := p.ID
	inviterWasNew := len(existing) == 1 && existing[0] == inviter
	s.mu.Unlock()

	reply.WriteInt8(wire.ErrOK)
	s.sendOrLog(client, reply)

	newMember := wire.NewMessageOut(wire.CPMsgPartyNewMember)
	newMember.WriteInt32(client.characterID)
	newMember.WriteString(client.characterName)
	for _, m := range existing {
		s.sendOrLog(m, newMember)
	}

	if s.games != nil {
		if inviterWasNew {
			s.games.NotifyPartyChange(inviter.characterID, partyID)
		}
		s.games.NotifyPartyChange(client.characterID, partyID)
	}
}

func (s *Server) handlePartyQuit(client *Client) {
	s.mu.Lock()
	targets, partyID := s.leavePartyLocked(client)
	s.mu.Unlock()

	reply := wire.NewMessageOut(wire.CPMsgPartyQuitResponse)
	if partyID == 0 {
		reply.WriteInt8(wire.ErrFailure)
		s.sendOrLog(client, reply)
		return
	}
	reply.WriteInt8(wire.ErrOK)
	s.sendOrLog(client, reply)

	left := wire.NewMessageOut(wire.CPMsgPartyMemberLeft)
	left.WriteInt32(client.characterID)
	for _, t := range targets {
		s.sendOrLog(t, left)
	}
	if s.games != nil {
		s.games.NotifyPartyChange(client.characterID, 0)
	}
}

func (s *Server) sendError(client *Client, code int) {
	msg := wire.NewMessageOut(wire.CPMsgError)
	msg.WriteInt8(code)
	s.sendOrLog(client, msg)
}
