package account

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/Ablu/manaserv/internal/chardata"
	"github.com/Ablu/manaserv/internal/model"
	"github.com/Ablu/manaserv/internal/stringfilter"
	"github.com/Ablu/manaserv/internal/token"
	"github.com/Ablu/manaserv/internal/wire"
)

// dispatch routes one message. The return value reports whether the
// connection stays open: a malformed message drops the peer, an unknown id
// only earns an invalid-message reply.
func (s *Server) dispatch(ctx context.Context, client *Client, msg *wire.MessageIn) bool {
	switch msg.ID() {
	case wire.PAMsgLoginRandTrigger:
		s.handleLoginRandTrigger(ctx, client, msg)
	case wire.PAMsgLogin:
		s.handleLogin(ctx, client, msg)
	case wire.PAMsgLogout:
		s.handleLogout(client)
	case wire.PAMsgReconnect:
		s.handleReconnect(client, msg)
	case wire.PAMsgRegister:
		s.handleRegister(ctx, client, msg)
	case wire.PAMsgUnregister:
		s.handleUnregister(ctx, client, msg)
	case wire.PAMsgRequestRegisterInfo:
		s.handleRequestRegisterInfo(client)
	case wire.PAMsgEmailChange:
		s.handleEmailChange(ctx, client, msg)
	case wire.PAMsgPasswordChange:
		s.handlePasswordChange(ctx, client, msg)
	case wire.PAMsgCharCreate:
		s.handleCharCreate(ctx, client, msg)
	case wire.PAMsgCharSelect:
		s.handleCharSelect(ctx, client, msg)
	case wire.PAMsgCharDelete:
		s.handleCharDelete(ctx, client, msg)
	default:
		slog.Debug("unknown message from player", "id", msg.ID())
		s.sendOrLog(client, wire.NewMessageOut(wire.XXMsgInvalid))
		return true
	}

	if err := msg.Err(); err != nil {
		slog.Warn("malformed message from player", "id", msg.ID(), "err", err)
		return false
	}
	return true
}

// handleLoginRandTrigger answers the salt challenge. The salt goes out even
// for unknown usernames so the reply does not leak which accounts exist.
func (s *Server) handleLoginRandTrigger(ctx context.Context, client *Client, msg *wire.MessageIn) {
	username := msg.ReadString()
	salt := randomSalt()

	if msg.Err() == nil {
		acc, err := s.store.GetAccountByName(ctx, username)
		if err != nil {
			slog.Error("account lookup failed", "user", username, "err", err)
		} else if acc != nil {
			acc.RandomSalt = salt
			s.stashPending(acc)
		}
	}

	reply := wire.NewMessageOut(wire.APMsgLoginRandTriggerResponse)
	reply.WriteString(salt)
	s.sendOrLog(client, reply)
}

func (s *Server) handleLogin(ctx context.Context, client *Client, msg *wire.MessageIn) {
	version := msg.ReadInt32()
	username := msg.ReadString()
	saltedHash := msg.ReadString()
	if msg.Err() != nil {
		return
	}

	reply := wire.NewMessageOut(wire.APMsgLoginResponse)

	if client.State() != StateLogin {
		reply.WriteInt8(wire.ErrFailure)
		s.sendOrLog(client, reply)
		return
	}
	if version < wire.MinProtocolVersion {
		reply.WriteInt8(wire.LoginInvalidVersion)
		s.sendOrLog(client, reply)
		return
	}
	if !s.allowLoginAttempt(client.ip, time.Now()) {
		reply.WriteInt8(wire.LoginInvalidTime)
		s.sendOrLog(client, reply)
		return
	}

	acc := s.takePending(username)
	if acc == nil || sha256Hex(acc.Password+acc.RandomSalt) != saltedHash {
		reply.WriteInt8(wire.ErrInvalidArgument)
		s.sendOrLog(client, reply)
		return
	}
	if acc.Level == model.AccessBanned {
		reply.WriteInt8(wire.LoginBanned)
		s.sendOrLog(client, reply)
		return
	}
	if s.clientCount() > s.cfg.MaxClients {
		reply.WriteInt8(wire.ErrServerFull)
		s.sendOrLog(client, reply)
		return
	}

	acc.LastLogin = time.Now()
	if err := s.store.UpdateLastLogin(ctx, acc); err != nil {
		slog.Error("updating last login failed", "account", acc.ID, "err", err)
		reply.WriteInt8(wire.ErrFailure)
		s.sendOrLog(client, reply)
		return
	}

	client.mu.Lock()
	client.version = version
	client.mu.Unlock()
	client.bind(acc)

	reply.WriteInt8(wire.ErrOK)
	s.writeServerInfo(reply)
	if version >= 10 {
		for _, slot := range sortedSlots(acc) {
			chardata.WriteRosterEntry(acc.Characters[slot], reply)
		}
		s.sendOrLog(client, reply)
	} else {
		// Legacy clients expect one CHAR_INFO message per character.
		s.sendOrLog(client, reply)
		for _, slot := range sortedSlots(acc) {
			info := wire.NewMessageOut(wire.APMsgCharInfo)
			chardata.WriteRosterEntry(acc.Characters[slot], info)
			s.sendOrLog(client, info)
		}
	}
	slog.Info("player logged in", "user", acc.Name, "account", acc.ID)
}

func (s *Server) handleLogout(client *Client) {
	switch client.State() {
	case StateConnected:
		if acc := client.Account(); acc != nil {
			s.forgetPending(acc.Name)
		}
		client.unbind()
	case StateQueued:
		s.reconnects.RemovePendingClient(func(c *Client) bool { return c == client })
		client.setState(StateLogin)
	}

	reply := wire.NewMessageOut(wire.APMsgLogoutResponse)
	reply.WriteInt8(wire.ErrOK)
	s.sendOrLog(client, reply)
}

func (s *Server) handleReconnect(client *Client, msg *wire.MessageIn) {
	tok := msg.ReadFixedString(wire.TokenLength)
	if msg.Err() != nil {
		return
	}
	if client.State() != StateLogin {
		reply := wire.NewMessageOut(wire.APMsgReconnectResponse)
		reply.WriteInt8(wire.ErrFailure)
		s.sendOrLog(client, reply)
		return
	}
	client.setState(StateQueued)
	s.reconnects.AddPendingClient(tok, client)
}

func (s *Server) handleRegister(ctx context.Context, client *Client, msg *wire.MessageIn) {
	version := msg.ReadInt32()
	username := msg.ReadString()
	password := msg.ReadString()
	email := msg.ReadString()
	_ = msg.ReadString() // captcha answer; no captcha backend configured
	if msg.Err() != nil {
		return
	}

	reply := wire.NewMessageOut(wire.APMsgRegisterResponse)

	status := wire.ErrOK
	switch {
	case client.State() != StateLogin:
		status = wire.ErrFailure
	case version < wire.MinProtocolVersion:
		status = wire.RegisterInvalidVersion
	case !s.cfg.AllowRegister:
		status = wire.ErrFailure
	case len(username) < s.cfg.MinNameLength || len(username) > s.cfg.MaxNameLength:
		status = wire.ErrInvalidArgument
	case stringfilter.FindDoubleQuotes(username) || !stringfilter.FilterContent(username):
		status = wire.ErrInvalidArgument
	case !stringfilter.IsEmailValid(email):
		status = wire.ErrInvalidArgument
	case password == "":
		status = wire.ErrInvalidArgument
	}
	if status != wire.ErrOK {
		reply.WriteInt8(status)
		s.sendOrLog(client, reply)
		return
	}

	if exists, err := s.store.DoesUserNameExist(ctx, username); err != nil {
		slog.Error("username check failed", "err", err)
		status = wire.ErrFailure
	} else if exists {
		status = wire.RegisterExistsUsername
	}
	emailHash := sha256Hex(email)
	if status == wire.ErrOK {
		if exists, err := s.store.DoesEmailAddressExist(ctx, emailHash); err != nil {
			slog.Error("email check failed", "err", err)
			status = wire.ErrFailure
		} else if exists {
			status = wire.RegisterExistsEmail
		}
	}
	if status != wire.ErrOK {
		reply.WriteInt8(status)
		s.sendOrLog(client, reply)
		return
	}

	now := time.Now()
	acc := model.NewAccount()
	acc.Name = username
	acc.Password = password
	acc.Email = emailHash
	acc.Registration = now
	acc.LastLogin = now
	if err := s.store.AddAccount(ctx, acc); err != nil {
		slog.Error("account creation failed", "user", username, "err", err)
		reply.WriteInt8(wire.ErrFailure)
		s.sendOrLog(client, reply)
		return
	}

	client.mu.Lock()
	client.version = version
	client.mu.Unlock()
	client.bind(acc)

	reply.WriteInt8(wire.ErrOK)
	s.writeServerInfo(reply)
	s.sendOrLog(client, reply)
	slog.Info("account registered", "user", username, "account", acc.ID)
}

func (s *Server) handleUnregister(ctx context.Context, client *Client, msg *wire.MessageIn) {
	username := msg.ReadString()
	password := msg.ReadString()
	if msg.Err() != nil {
		return
	}

	reply := wire.NewMessageOut(wire.APMsgUnregisterResponse)

	acc := client.Account()
	if acc == nil || acc.Name != username {
		reply.WriteInt8(wire.ErrNoLogin)
		s.sendOrLog(client, reply)
		return
	}
	if sha256Hex(acc.Password+acc.RandomSalt) != password {
		reply.WriteInt8(wire.ErrInvalidArgument)
		s.sendOrLog(client, reply)
		return
	}

	if err := s.store.DelAccount(ctx, acc); err != nil {
		slog.Error("account deletion failed", "account", acc.ID, "err", err)
		reply.WriteInt8(wire.ErrFailure)
		s.sendOrLog(client, reply)
		return
	}
	s.forgetPending(acc.Name)
	client.unbind()

	reply.WriteInt8(wire.ErrOK)
	s.sendOrLog(client, reply)
	slog.Info("account unregistered", "user", username)
}

func (s *Server) handleRequestRegisterInfo(client *Client) {
	reply := wire.NewMessageOut(wire.APMsgRegisterInfoResponse)
	if !s.cfg.AllowRegister {
		reply.WriteInt8(0)
		reply.WriteString(s.cfg.DenyRegisterReason)
	} else {
		reply.WriteInt8(1)
		reply.WriteInt8(s.cfg.MinNameLength)
		reply.WriteInt8(s.cfg.MaxNameLength)
		reply.WriteString("") // captcha image url
		reply.WriteString("") // captcha instructions
	}
	s.sendOrLog(client, reply)
}

func (s *Server) handleEmailChange(ctx context.Context, client *Client, msg *wire.MessageIn) {
	email := msg.ReadString()
	if msg.Err() != nil {
		return
	}

	reply := wire.NewMessageOut(wire.APMsgEmailChangeResponse)

	acc := client.Account()
	switch {
	case acc == nil:
		reply.WriteInt8(wire.ErrNoLogin)
	case !stringfilter.IsEmailValid(email):
		reply.WriteInt8(wire.ErrInvalidArgument)
	default:
		emailHash := sha256Hex(email)
		exists, err := s.store.DoesEmailAddressExist(ctx, emailHash)
		switch {
		case err != nil:
			slog.Error("email check failed", "err", err)
			reply.WriteInt8(wire.ErrFailure)
		case exists:
			reply.WriteInt8(wire.ErrEmailAlreadyExists)
		default:
			acc.Email = emailHash
			if err := s.store.Flush(ctx, acc); err != nil {
				slog.Error("email change flush failed", "account", acc.ID, "err", err)
				reply.WriteInt8(wire.ErrFailure)
			} else {
				reply.WriteInt8(wire.ErrOK)
			}
		}
	}
	s.sendOrLog(client, reply)
}

func (s *Server) handlePasswordChange(ctx context.Context, client *Client, msg *wire.MessageIn) {
	oldSalted := msg.ReadString()
	newPassword := msg.ReadString()
	if msg.Err() != nil {
		return
	}

	reply := wire.NewMessageOut(wire.APMsgPasswordChangeResponse)

	acc := client.Account()
	switch {
	case acc == nil:
		reply.WriteInt8(wire.ErrNoLogin)
	case sha256Hex(acc.Password+acc.RandomSalt) != oldSalted:
		reply.WriteInt8(wire.ErrInvalidArgument)
	case newPassword == "":
		reply.WriteInt8(wire.ErrInvalidArgument)
	default:
		acc.Password = newPassword
		if err := s.store.Flush(ctx, acc); err != nil {
			slog.Error("password change flush failed", "account", acc.ID, "err", err)
			reply.WriteInt8(wire.ErrFailure)
		} else {
			reply.WriteInt8(wire.ErrOK)
		}
	}
	s.sendOrLog(client, reply)
}

func (s *Server) handleCharCreate(ctx context.Context, client *Client, msg *wire.MessageIn) {
	name := msg.ReadString()
	hairStyle := msg.ReadInt8()
	hairColor := msg.ReadInt8()
	gender := msg.ReadInt8()

	// Old clients send no slot byte; treat their request as targeting an
	// invalid slot instead of tearing the connection down.
	slot := -1
	if msg.Unread() > 2*len(s.cfg.Attributes.Modifiable) {
		slot = msg.ReadInt8()
	}
	attrs := make([]int, len(s.cfg.Attributes.Modifiable))
	for i := range attrs {
		attrs[i] = msg.ReadInt16()
	}
	if msg.Err() != nil {
		return
	}

	reply := wire.NewMessageOut(wire.APMsgCharCreateResponse)

	acc := client.Account()
	if acc == nil {
		reply.WriteInt8(wire.ErrNoLogin)
		s.sendOrLog(client, reply)
		return
	}

	name = stringfilter.Normalize(name)
	if status := s.validateNewCharacter(ctx, acc, name, hairStyle, hairColor, gender, slot, attrs); status != wire.ErrOK {
		reply.WriteInt8(status)
		s.sendOrLog(client, reply)
		return
	}

	ch := model.NewCharacter(name)
	ch.AccountID = acc.ID
	ch.AccountLevel = acc.Level
	ch.Slot = slot
	ch.Gender = gender
	ch.HairStyle = hairStyle
	ch.HairColor = hairColor
	ch.MapID = s.cfg.StartMap
	ch.X = s.cfg.StartX
	ch.Y = s.cfg.StartY
	for id, def := range s.cfg.Attributes.Defaults {
		ch.SetAttribute(id, def)
		ch.SetModAttribute(id, def)
	}
	for i, id := range s.cfg.Attributes.Modifiable {
		ch.SetAttribute(id, float64(attrs[i]))
		ch.SetModAttribute(id, float64(attrs[i]))
	}

	acc.AddCharacter(ch)
	if err := s.store.Flush(ctx, acc); err != nil {
		slog.Error("character creation flush failed", "account", acc.ID, "err", err)
		acc.DelCharacter(slot)
		reply.WriteInt8(wire.ErrFailure)
		s.sendOrLog(client, reply)
		return
	}
	s.audit(ctx, ch.DatabaseID, model.TransCharCreate, name)

	reply.WriteInt8(wire.ErrOK)
	chardata.WriteRosterEntry(ch, reply)
	s.sendOrLog(client, reply)
	slog.Info("character created", "name", name, "account", acc.ID, "slot", slot)
}

func (s *Server) validateNewCharacter(ctx context.Context, acc *model.Account, name string, hairStyle, hairColor, gender, slot int, attrs []int) int {
	cfg := &s.cfg
	switch {
	case stringfilter.FindDoubleQuotes(name):
		return wire.ErrInvalidArgument
	case hairStyle < 0 || hairStyle >= cfg.NumHairStyles:
		return wire.CreateInvalidHairstyle
	case hairColor < 0 || hairColor >= cfg.NumHairColors:
		return wire.CreateInvalidHaircolor
	case gender < 0 || gender >= cfg.NumGenders:
		return wire.CreateInvalidGender
	case !stringfilter.FilterContent(name):
		return wire.ErrInvalidArgument
	case len(name) < cfg.MinNameLength || len(name) > cfg.MaxNameLength:
		return wire.ErrInvalidArgument
	}

	if exists, err := s.store.DoesCharacterNameExist(ctx, name); err != nil {
		slog.Error("character name check failed", "err", err)
		return wire.ErrFailure
	} else if exists {
		return wire.CreateExistsName
	}

	if slot < 1 || slot > cfg.MaxCharacters {
		return wire.CreateInvalidSlot
	}
	if len(acc.Characters) >= cfg.MaxCharacters {
		return wire.CreateTooMuchCharacters
	}
	if !acc.IsSlotEmpty(slot) {
		return wire.CreateInvalidSlot
	}

	sum := 0
	for _, v := range attrs {
		if v < cfg.Attributes.Minimum || v > cfg.Attributes.Maximum {
			return wire.CreateAttributesOutOfRange
		}
		sum += v
	}
	if sum > cfg.Attributes.StartingPoints {
		return wire.CreateAttributesTooHigh
	}
	if sum < cfg.Attributes.StartingPoints {
		return wire.CreateAttributesTooLow
	}
	return wire.ErrOK
}

// handleCharSelect hands the character over: the owning game server gets the
// snapshot, the chat endpoint gets the name/level binding, and the client
// gets the token and both addresses.
func (s *Server) handleCharSelect(ctx context.Context, client *Client, msg *wire.MessageIn) {
	slot := msg.ReadInt8()
	if msg.Err() != nil {
		return
	}

	reply := wire.NewMessageOut(wire.APMsgCharSelectResponse)

	acc := client.Account()
	if acc == nil {
		reply.WriteInt8(wire.ErrNoLogin)
		s.sendOrLog(client, reply)
		return
	}
	ch, ok := acc.Characters[slot]
	if !ok {
		reply.WriteInt8(wire.ErrInvalidArgument)
		s.sendOrLog(client, reply)
		return
	}

	game, ok := s.games.ServerForMap(ch.MapID)
	if !ok {
		slog.Warn("no game server for map", "map", ch.MapID, "character", ch.Name)
		reply.WriteInt8(wire.ErrFailure)
		s.sendOrLog(client, reply)
		return
	}

	tok := token.New()
	s.chat.RegisterPendingConnect(tok, ch.Name, acc.Level)
	if err := game.SendPlayerEnter(tok, ch); err != nil {
		slog.Error("player handoff failed", "character", ch.Name, "err", err)
		reply.WriteInt8(wire.ErrFailure)
		s.sendOrLog(client, reply)
		return
	}
	s.audit(ctx, ch.DatabaseID, model.TransCharSelected, ch.Name)

	reply.WriteInt8(wire.ErrOK)
	reply.WriteFixedString(tok, wire.TokenLength)
	reply.WriteString(game.Address())
	reply.WriteInt16(game.Port())
	reply.WriteString(s.cfg.PublicChatHost)
	reply.WriteInt16(s.cfg.ChatPort)
	s.sendOrLog(client, reply)
}

func (s *Server) handleCharDelete(ctx context.Context, client *Client, msg *wire.MessageIn) {
	slot := msg.ReadInt8()
	if msg.Err() != nil {
		return
	}

	reply := wire.NewMessageOut(wire.APMsgCharDeleteResponse)

	acc := client.Account()
	if acc == nil {
		reply.WriteInt8(wire.ErrNoLogin)
		s.sendOrLog(client, reply)
		return
	}
	ch, ok := acc.Characters[slot]
	if !ok {
		reply.WriteInt8(wire.ErrInvalidArgument)
		s.sendOrLog(client, reply)
		return
	}

	s.audit(ctx, ch.DatabaseID, model.TransCharDeleted, ch.Name)
	acc.DelCharacter(slot)
	if err := s.store.Flush(ctx, acc); err != nil {
		slog.Error("character deletion flush failed", "account", acc.ID, "err", err)
		acc.AddCharacter(ch)
		reply.WriteInt8(wire.ErrFailure)
		s.sendOrLog(client, reply)
		return
	}

	reply.WriteInt8(wire.ErrOK)
	s.sendOrLog(client, reply)
	slog.Info("character deleted", "name", ch.Name, "account", acc.ID)
}

func (s *Server) writeServerInfo(msg *wire.MessageOut) {
	msg.WriteString(s.cfg.UpdateHost)
	msg.WriteString(s.cfg.ClientDataURL)
	msg.WriteInt8(s.cfg.MaxCharacters)
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

func sortedSlots(acc *model.Account) []int {
	slots := make([]int, 0, len(acc.Characters))
	for slot := range acc.Characters {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	return slots
}
