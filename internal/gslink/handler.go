package gslink

import (
	"context"
	"log/slog"
	"time"

	"github.com/Ablu/manaserv/internal/chardata"
	"github.com/Ablu/manaserv/internal/mapregistry"
	"github.com/Ablu/manaserv/internal/model"
	"github.com/Ablu/manaserv/internal/storage"
	"github.com/Ablu/manaserv/internal/token"
	"github.com/Ablu/manaserv/internal/wire"
)

// letterExpiry is how long stored mail stays deliverable.
const letterExpiry = 30 * 24 * time.Hour

func (s *Server) dispatch(ctx context.Context, conn *Conn, msg *wire.MessageIn) bool {
	if msg.ID() != wire.GAMsgRegister && !conn.isRegistered() {
		slog.Warn("message before registration", "id", msg.ID(), "addr", conn.conn.RemoteAddr())
		return false
	}

	keep := true
	switch msg.ID() {
	case wire.GAMsgRegister:
		keep = s.handleRegister(ctx, conn, msg)
	case wire.GAMsgPlayerData:
		s.handlePlayerData(ctx, conn, msg)
	case wire.GAMsgPlayerSync:
		s.handlePlayerSync(ctx, conn, msg)
	case wire.GAMsgRedirect:
		s.handleRedirect(ctx, conn, msg)
	case wire.GAMsgPlayerReconnect:
		s.handlePlayerReconnect(conn, msg)
	case wire.GAMsgGetVarChr:
		s.handleGetVarChr(ctx, conn, msg)
	case wire.GAMsgSetVarChr:
		s.handleSetVarChr(ctx, conn, msg)
	case wire.GAMsgSetVarWorld:
		s.handleSetVarWorld(ctx, conn, msg)
	case wire.GAMsgSetVarMap:
		s.handleSetVarMap(ctx, conn, msg)
	case wire.GAMsgBanPlayer:
		s.handleBanPlayer(ctx, conn, msg)
	case wire.GAMsgChangeAccountLevel:
		s.handleChangeAccountLevel(ctx, conn, msg)
	case wire.GAMsgStatistics:
		s.handleStatistics(conn, msg)
	case wire.GAMsgCreateItemOnMap:
		s.handleCreateItemOnMap(ctx, conn, msg)
	case wire.GAMsgRemoveItemOnMap:
		s.handleRemoveItemOnMap(ctx, conn, msg)
	case wire.GAMsgAnnounce:
		s.handleAnnounce(ctx, conn, msg)
	case wire.GAMsgTransaction:
		s.handleTransaction(ctx, conn, msg)
	case wire.GCMsgRequestPost:
		s.handleRequestPost(ctx, conn, msg)
	case wire.GCMsgStorePost:
		s.handleStorePost(ctx, conn, msg)
	case wire.GCMsgPartyInvite:
		s.handlePartyInvite(conn, msg)
	default:
		slog.Warn("unknown message from game server", "server", conn.Name(), "id", msg.ID())
		if err := conn.send(wire.NewMessageOut(wire.XXMsgInvalid)); err != nil {
			slog.Error("send to game server failed", "server", conn.Name(), "err", err)
		}
		return true
	}

	if err := msg.Err(); err != nil {
		slog.Warn("malformed message from game server", "server", conn.Name(), "id", msg.ID(), "err", err)
		return false
	}
	return keep
}

// handleRegister authenticates the game server, replies with the item-db
// status and world variables, then activates every map the configuration
// assigns to this server name.
func (s *Server) handleRegister(ctx context.Context, conn *Conn, msg *wire.MessageIn) bool {
	name := msg.ReadString()
	address := msg.ReadString()
	port := msg.ReadInt16()
	password := msg.ReadString()
	itemDBVersion := msg.ReadInt32()
	if msg.Err() != nil {
		return false
	}

	reply := wire.NewMessageOut(wire.AGMsgRegisterResponse)

	if password != s.cfg.Password {
		slog.Warn("game server registration rejected: bad password", "name", name, "addr", conn.conn.RemoteAddr())
		reply.WriteInt16(wire.DataVersionOutdated)
		reply.WriteInt16(wire.PasswordBad)
		if err := conn.send(reply); err != nil {
			slog.Error("send to game server failed", "err", err)
		}
		return false
	}

	wantVersion, err := s.store.ItemDatabaseVersion(ctx)
	if err != nil {
		slog.Error("item db version lookup failed", "err", err)
		return false
	}
	dbStatus := wire.DataVersionOK
	if itemDBVersion != wantVersion {
		dbStatus = wire.DataVersionOutdated
	}

	worldVars, err := s.store.GetAllWorldStateVars(ctx, storage.WorldMap)
	if err != nil {
		slog.Error("world variable lookup failed", "err", err)
		return false
	}

	reply.WriteInt16(dbStatus)
	reply.WriteInt16(wire.PasswordOK)
	for k, v := range worldVars {
		reply.WriteString(k)
		reply.WriteString(v)
	}
	if err := conn.send(reply); err != nil {
		slog.Error("send to game server failed", "err", err)
		return false
	}

	conn.register(name, address, port)
	s.addConn(conn)
	slog.Info("game server registered", "name", name, "address", address, "port", port)

	for _, entry := range s.cfg.Maps {
		if entry.Server != name {
			continue
		}
		if err := s.activateMap(ctx, conn, entry.ID); err != nil {
			slog.Error("map activation failed", "map", entry.ID, "server", name, "err", err)
			continue
		}
		s.registry.Assign(entry.ID, conn)
	}
	return true
}

func (s *Server) activateMap(ctx context.Context, conn *Conn, mapID int) error {
	mapVars, err := s.store.GetAllWorldStateVars(ctx, mapID)
	if err != nil {
		return err
	}
	items, err := s.store.GetFloorItemsOnMap(ctx, mapID)
	if err != nil {
		return err
	}

	msg := wire.NewMessageOut(wire.AGMsgActiveMap)
	msg.WriteInt16(mapID)
	msg.WriteInt16(len(mapVars))
	for k, v := range mapVars {
		msg.WriteString(k)
		msg.WriteString(v)
	}
	msg.WriteInt16(len(items))
	for _, it := range items {
		msg.WriteInt32(it.ItemID)
		msg.WriteInt16(it.Amount)
		msg.WriteInt16(it.X)
		msg.WriteInt16(it.Y)
	}
	return conn.send(msg)
}

// handlePlayerData persists the authoritative character state uploaded by
// the owning game server.
func (s *Server) handlePlayerData(ctx context.Context, conn *Conn, msg *wire.MessageIn) {
	id := msg.ReadInt32()
	if msg.Err() != nil {
		return
	}

	ch, err := s.store.GetCharacterByID(ctx, id)
	if err != nil {
		slog.Error("character lookup failed", "character", id, "err", err)
		return
	}
	if ch == nil {
		slog.Warn("player data for unknown character", "character", id, "server", conn.Name())
		return
	}
	if err := chardata.Deserialize(ch, msg); err != nil {
		slog.Warn("player data undecodable", "character", id, "err", err)
		return
	}
	if err := s.store.UpdateCharacter(ctx, ch); err != nil {
		slog.Error("character persist failed", "character", id, "err", err)
	}
}

// handlePlayerSync applies a delta batch inside one storage transaction.
func (s *Server) handlePlayerSync(ctx context.Context, conn *Conn, msg *wire.MessageIn) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		slog.Error("player sync begin failed", "err", err)
		return
	}
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(ctx); err != nil {
				slog.Error("player sync rollback failed", "err", err)
			}
		}
	}()

	for msg.Unread() > 0 && msg.Err() == nil {
		kind := msg.ReadInt8()
		switch kind {
		case wire.SyncCharacterPoints:
			charID := msg.ReadInt32()
			charPts := msg.ReadInt32()
			corrPts := msg.ReadInt32()
			if msg.Err() != nil {
				return
			}
			if err := s.store.UpdateCharacterPointsTx(ctx, tx, charID, charPts, corrPts); err != nil {
				slog.Error("sync points failed", "character", charID, "err", err)
				return
			}
		case wire.SyncCharacterAttribute:
			charID := msg.ReadInt32()
			attrID := msg.ReadInt32()
			base := msg.ReadDouble()
			mod := msg.ReadDouble()
			if msg.Err() != nil {
				return
			}
			if err := s.store.UpdateAttributeTx(ctx, tx, charID, attrID, base, mod); err != nil {
				slog.Error("sync attribute failed", "character", charID, "err", err)
				return
			}
		case wire.SyncOnlineStatus:
			charID := msg.ReadInt32()
			online := msg.ReadInt8() != 0
			if msg.Err() != nil {
				return
			}
			if err := s.store.SetOnlineStatusTx(ctx, tx, charID, online); err != nil {
				slog.Error("sync online status failed", "character", charID, "err", err)
				return
			}
		default:
			slog.Warn("unknown sync entry kind", "kind", kind, "server", conn.Name())
			return
		}
	}
	if msg.Err() != nil {
		return
	}

	if err := tx.Commit(ctx); err != nil {
		slog.Error("player sync commit failed", "err", err)
		return
	}
	committed = true
}

// handleRedirect repeats the token handoff towards the game server owning
// the character's new map.
func (s *Server) handleRedirect(ctx context.Context, conn *Conn, msg *wire.MessageIn) {
	id := msg.ReadInt32()
	if msg.Err() != nil {
		return
	}

	ch, err := s.store.GetCharacterByID(ctx, id)
	if err != nil || ch == nil {
		slog.Error("redirect character lookup failed", "character", id, "err", err)
		return
	}
	target, ok := s.registry.Lookup(ch.MapID)
	if !ok {
		slog.Error("redirect to unserved map", "character", id, "map", ch.MapID)
		return
	}

	tok := token.New()
	if err := target.SendPlayerEnter(tok, ch); err != nil {
		slog.Error("redirect handoff failed", "character", id, "server", target.Name(), "err", err)
		return
	}

	reply := wire.NewMessageOut(wire.AGMsgRedirectResponse)
	reply.WriteInt32(id)
	reply.WriteFixedString(tok, wire.TokenLength)
	reply.WriteString(target.Address())
	reply.WriteInt16(target.Port())
	if err := conn.send(reply); err != nil {
		slog.Error("send to game server failed", "server", conn.Name(), "err", err)
	}
}

func (s *Server) handlePlayerReconnect(conn *Conn, msg *wire.MessageIn) {
	id := msg.ReadInt32()
	tok := msg.ReadFixedString(wire.TokenLength)
	if msg.Err() != nil {
		return
	}
	s.reconnect.PrepareReconnect(id, tok)
}

func (s *Server) handleGetVarChr(ctx context.Context, conn *Conn, msg *wire.MessageIn) {
	id := msg.ReadInt32()
	name := msg.ReadString()
	if msg.Err() != nil {
		return
	}

	value, err := s.store.GetQuestVar(ctx, id, name)
	if err != nil {
		slog.Error("quest var read failed", "character", id, "var", name, "err", err)
		return
	}

	reply := wire.NewMessageOut(wire.AGMsgGetVarChrResponse)
	reply.WriteInt32(id)
	reply.WriteString(name)
	reply.WriteString(value)
	if err := conn.send(reply); err != nil {
		slog.Error("send to game server failed", "server", conn.Name(), "err", err)
	}
}

func (s *Server) handleSetVarChr(ctx context.Context, conn *Conn, msg *wire.MessageIn) {
	id := msg.ReadInt32()
	name := msg.ReadString()
	value := msg.ReadString()
	if msg.Err() != nil {
		return
	}
	if err := s.store.SetQuestVar(ctx, id, name, value); err != nil {
		slog.Error("quest var write failed", "character", id, "var", name, "err", err)
	}
}

// handleSetVarWorld persists the variable at world scope and fans it out to
// every registered game server, the sender included.
func (s *Server) handleSetVarWorld(ctx context.Context, conn *Conn, msg *wire.MessageIn) {
	name := msg.ReadString()
	value := msg.ReadString()
	if msg.Err() != nil {
		return
	}

	if err := s.store.SetWorldStateVar(ctx, name, storage.WorldMap, value); err != nil {
		slog.Error("world var write failed", "var", name, "err", err)
		return
	}

	out := wire.NewMessageOut(wire.AGMsgSetVarWorld)
	out.WriteString(name)
	out.WriteString(value)
	s.broadcast(out)
}

func (s *Server) handleSetVarMap(ctx context.Context, conn *Conn, msg *wire.MessageIn) {
	mapID := msg.ReadInt16()
	name := msg.ReadString()
	value := msg.ReadString()
	if msg.Err() != nil {
		return
	}
	if !s.registry.Owns(mapID, conn) {
		slog.Warn("map var from non-owner", "map", mapID, "server", conn.Name())
		return
	}
	if err := s.store.SetWorldStateVar(ctx, name, mapID, value); err != nil {
		slog.Error("map var write failed", "map", mapID, "var", name, "err", err)
	}
}

func (s *Server) handleBanPlayer(ctx context.Context, conn *Conn, msg *wire.MessageIn) {
	id := msg.ReadInt32()
	minutes := msg.ReadInt16()
	if msg.Err() != nil {
		return
	}
	if err := s.store.BanCharacter(ctx, id, minutes); err != nil {
		slog.Error("ban failed", "character", id, "err", err)
		return
	}
	slog.Info("player banned", "character", id, "minutes", minutes, "by", conn.Name())
}

func (s *Server) handleChangeAccountLevel(ctx context.Context, conn *Conn, msg *wire.MessageIn) {
	id := msg.ReadInt32()
	level := msg.ReadInt16()
	if msg.Err() != nil {
		return
	}

	ch, err := s.store.GetCharacterByID(ctx, id)
	if err != nil || ch == nil {
		slog.Error("level change character lookup failed", "character", id, "err", err)
		return
	}
	if err := s.store.SetAccountLevel(ctx, ch.AccountID, level); err != nil {
		slog.Error("level change failed", "account", ch.AccountID, "err", err)
		return
	}
	slog.Info("account level changed", "account", ch.AccountID, "level", level, "by", conn.Name())
}

// handleStatistics refreshes per-map counters. Maps this sender does not own
// are skipped after their fields are consumed.
func (s *Server) handleStatistics(conn *Conn, msg *wire.MessageIn) {
	for msg.Unread() > 0 && msg.Err() == nil {
		mapID := msg.ReadInt16()
		stats := mapregistry.Stats{
			Entities: msg.ReadInt32(),
			Monsters: msg.ReadInt32(),
		}
		playerCount := msg.ReadInt16()
		for i := 0; i < playerCount && msg.Err() == nil; i++ {
			stats.Players = append(stats.Players, msg.ReadInt32())
		}
		if msg.Err() != nil {
			return
		}
		if !s.registry.Owns(mapID, conn) {
			continue
		}
		s.registry.SetStats(mapID, stats)
	}
}

func (s *Server) handleCreateItemOnMap(ctx context.Context, conn *Conn, msg *wire.MessageIn) {
	it := model.FloorItem{
		MapID:  msg.ReadInt16(),
		ItemID: msg.ReadInt32(),
		Amount: msg.ReadInt16(),
		X:      msg.ReadInt16(),
		Y:      msg.ReadInt16(),
	}
	if msg.Err() != nil {
		return
	}
	if err := s.store.AddFloorItem(ctx, it); err != nil {
		slog.Error("floor item persist failed", "map", it.MapID, "err", err)
	}
}

func (s *Server) handleRemoveItemOnMap(ctx context.Context, conn *Conn, msg *wire.MessageIn) {
	it := model.FloorItem{
		MapID:  msg.ReadInt16(),
		ItemID: msg.ReadInt32(),
		Amount: msg.ReadInt16(),
		X:      msg.ReadInt16(),
		Y:      msg.ReadInt16(),
	}
	if msg.Err() != nil {
		return
	}
	if err := s.store.RemoveFloorItem(ctx, it); err != nil {
		slog.Error("floor item removal failed", "map", it.MapID, "err", err)
	}
}

func (s *Server) handleAnnounce(ctx context.Context, conn *Conn, msg *wire.MessageIn) {
	text := msg.ReadString()
	senderID := msg.ReadInt32()
	senderName := msg.ReadString()
	if msg.Err() != nil {
		return
	}
	s.chat.AnnounceFromGame(senderName, text)
	s.auditTransaction(ctx, senderID, model.TransMsgAnnounce, text)
}

func (s *Server) handleTransaction(ctx context.Context, conn *Conn, msg *wire.MessageIn) {
	id := msg.ReadInt32()
	action := msg.ReadInt32()
	message := msg.ReadString()
	if msg.Err() != nil {
		return
	}
	s.auditTransaction(ctx, id, action, message)
}

func (s *Server) auditTransaction(ctx context.Context, characterID, action int, message string) {
	err := s.store.AddTransaction(ctx, model.Transaction{
		CharacterID: characterID,
		Action:      action,
		Message:     message,
	})
	if err != nil {
		slog.Error("audit record failed", "action", action, "err", err)
	}
}

// handleRequestPost delivers the character's mailbox and clears it.
func (s *Server) handleRequestPost(ctx context.Context, conn *Conn, msg *wire.MessageIn) {
	id := msg.ReadInt32()
	if msg.Err() != nil {
		return
	}

	letters, err := s.store.GetStoredPost(ctx, id)
	if err != nil {
		slog.Error("post lookup failed", "character", id, "err", err)
		return
	}

	reply := wire.NewMessageOut(wire.CGMsgPostResponse)
	reply.WriteInt32(id)
	for _, l := range letters {
		reply.WriteString(l.SenderName)
		reply.WriteString(l.Text)
		reply.WriteInt16(len(l.Attachments))
		for _, att := range l.Attachments {
			reply.WriteInt32(att.ItemID)
			reply.WriteInt16(att.Amount)
		}
	}
	if err := conn.send(reply); err != nil {
		slog.Error("send to game server failed", "server", conn.Name(), "err", err)
		return
	}

	for _, l := range letters {
		if err := s.store.DeletePost(ctx, l.ID); err != nil {
			slog.Error("post deletion failed", "letter", l.ID, "err", err)
		}
	}
}

// handleStorePost files a letter, capping attachments at the configured
// maximum and rejecting the letter outright when the receiver's inbox holds
// the configured limit already.
func (s *Server) handleStorePost(ctx context.Context, conn *Conn, msg *wire.MessageIn) {
	senderID := msg.ReadInt32()
	receiverName := msg.ReadString()
	text := msg.ReadString()
	var attachments []model.Attachment
	for msg.Unread() > 0 && msg.Err() == nil {
		att := model.Attachment{
			ItemID: msg.ReadInt32(),
			Amount: msg.ReadInt16(),
		}
		if len(attachments) < s.cfg.MaxAttachments {
			attachments = append(attachments, att)
		}
	}
	if msg.Err() != nil {
		return
	}

	reply := wire.NewMessageOut(wire.CGMsgStorePostResponse)
	reply.WriteInt32(senderID)

	receiverID, err := s.store.GetCharacterID(ctx, receiverName)
	if err != nil || receiverID < 0 {
		slog.Warn("letter to unknown character", "receiver", receiverName, "err", err)
		reply.WriteInt8(wire.ErrInvalidArgument)
		if err := conn.send(reply); err != nil {
			slog.Error("send to game server failed", "server", conn.Name(), "err", err)
		}
		return
	}

	stored, err := s.store.CountPost(ctx, receiverID)
	if err != nil {
		slog.Error("post count failed", "receiver", receiverID, "err", err)
		reply.WriteInt8(wire.ErrFailure)
		if err := conn.send(reply); err != nil {
			slog.Error("send to game server failed", "server", conn.Name(), "err", err)
		}
		return
	}
	if stored >= s.cfg.MaxLetters {
		slog.Debug("letter rejected, inbox full", "receiver", receiverID, "stored", stored)
		reply.WriteInt8(wire.ErrFailure)
		if err := conn.send(reply); err != nil {
			slog.Error("send to game server failed", "server", conn.Name(), "err", err)
		}
		return
	}

	letter := &model.Letter{
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Expiry:      time.Now().Add(letterExpiry),
		Text:        text,
		Attachments: attachments,
	}
	if err := s.store.StoreLetter(ctx, letter); err != nil {
		slog.Error("letter store failed", "sender", senderID, "err", err)
		reply.WriteInt8(wire.ErrFailure)
	} else {
		reply.WriteInt8(wire.ErrOK)
	}
	if err := conn.send(reply); err != nil {
		slog.Error("send to game server failed", "server", conn.Name(), "err", err)
	}
}

func (s *Server) handlePartyInvite(conn *Conn, msg *wire.MessageIn) {
	inviter := msg.ReadString()
	invitee := msg.ReadString()
	if msg.Err() != nil {
		return
	}
	s.chat.HandlePartyInvite(inviter, invitee)
}
