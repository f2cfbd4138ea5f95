package wire

// Message ids. The prefix names the direction: PA player→account,
// AP account→player, PC player→chat, CP chat→player, GA game→account,
// AG account→game, GC game→chat (relayed through the account process),
// CG chat→game.
const (
	PAMsgRegister               uint16 = 0x0000
	APMsgRegisterResponse       uint16 = 0x0002
	PAMsgUnregister             uint16 = 0x0003
	APMsgUnregisterResponse     uint16 = 0x0004
	PAMsgRequestRegisterInfo    uint16 = 0x0005
	APMsgRegisterInfoResponse   uint16 = 0x0006
	PAMsgEmailChange            uint16 = 0x0007
	APMsgEmailChangeResponse    uint16 = 0x0008
	PAMsgPasswordChange         uint16 = 0x0009
	APMsgPasswordChangeResponse uint16 = 0x000A

	PAMsgLogin                    uint16 = 0x0010
	APMsgLoginResponse            uint16 = 0x0012
	PAMsgLogout                   uint16 = 0x0013
	APMsgLogoutResponse           uint16 = 0x0014
	PAMsgLoginRandTrigger         uint16 = 0x0015
	APMsgLoginRandTriggerResponse uint16 = 0x0016
	PAMsgReconnect                uint16 = 0x0017
	APMsgReconnectResponse        uint16 = 0x0018

	PAMsgCharCreate         uint16 = 0x0020
	APMsgCharCreateResponse uint16 = 0x0021
	APMsgCharInfo           uint16 = 0x0022
	PAMsgCharSelect         uint16 = 0x0026
	APMsgCharSelectResponse uint16 = 0x0027
	PAMsgCharDelete         uint16 = 0x0028
	APMsgCharDeleteResponse uint16 = 0x0029

	// Game endpoint handshake. Gameplay traffic is out of scope here; the
	// game server only needs the token presentation.
	PGMsgConnect         uint16 = 0x0050
	GPMsgConnectResponse uint16 = 0x0051

	// Chat endpoint.
	PCMsgConnect            uint16 = 0x0450
	CPMsgConnectResponse    uint16 = 0x0451
	PCMsgDisconnect         uint16 = 0x0452
	CPMsgDisconnectResponse uint16 = 0x0453
	PCMsgChat               uint16 = 0x0460
	CPMsgError              uint16 = 0x0461
	CPMsgPubMsg             uint16 = 0x0462
	CPMsgAnnouncement       uint16 = 0x0463
	CPMsgPrivMsg            uint16 = 0x0464
	PCMsgPrivMsg            uint16 = 0x0465
	PCMsgWho                uint16 = 0x0466
	CPMsgWhoResponse        uint16 = 0x0467

	PCMsgEnterChannel             uint16 = 0x0470
	CPMsgEnterChannelResponse     uint16 = 0x0471
	PCMsgQuitChannel              uint16 = 0x0472
	CPMsgQuitChannelResponse      uint16 = 0x0473
	PCMsgListChannels             uint16 = 0x0474
	CPMsgListChannelsResponse     uint16 = 0x0475
	PCMsgListChannelUsers         uint16 = 0x0476
	CPMsgListChannelUsersResponse uint16 = 0x0477
	PCMsgTopicChange              uint16 = 0x0478
	PCMsgUserMode                 uint16 = 0x0479
	PCMsgKickUser                 uint16 = 0x047A
	CPMsgChannelEvent             uint16 = 0x047B

	PCMsgGuildCreate                uint16 = 0x0480
	CPMsgGuildCreateResponse        uint16 = 0x0481
	PCMsgGuildInvite                uint16 = 0x0482
	CPMsgGuildInviteResponse        uint16 = 0x0483
	CPMsgGuildInvited               uint16 = 0x0484
	PCMsgGuildAccept                uint16 = 0x0485
	CPMsgGuildAcceptResponse        uint16 = 0x0486
	PCMsgGuildGetMembers            uint16 = 0x0487
	CPMsgGuildGetMembersResponse    uint16 = 0x0488
	PCMsgGuildPromoteMember         uint16 = 0x0489
	CPMsgGuildPromoteMemberResponse uint16 = 0x048A
	PCMsgGuildKickMember            uint16 = 0x048B
	CPMsgGuildKickMemberResponse    uint16 = 0x048C
	PCMsgGuildQuit                  uint16 = 0x048D
	CPMsgGuildQuitResponse          uint16 = 0x048E
	CPMsgGuildRejoin                uint16 = 0x048F
	CPMsgGuildUpdateList            uint16 = 0x0490

	CPMsgPartyInvited        uint16 = 0x04A0
	PCMsgPartyInviteAnswer   uint16 = 0x04A1
	CPMsgPartyInviteResponse uint16 = 0x04A2
	PCMsgPartyQuit           uint16 = 0x04A3
	CPMsgPartyQuitResponse   uint16 = 0x04A4
	CPMsgPartyNewMember      uint16 = 0x04A5
	CPMsgPartyMemberLeft     uint16 = 0x04A6

	// Game server ↔ account server link.
	GAMsgRegister           uint16 = 0x0500
	AGMsgRegisterResponse   uint16 = 0x0501
	AGMsgActiveMap          uint16 = 0x0502
	AGMsgPlayerEnter        uint16 = 0x0510
	GAMsgPlayerData         uint16 = 0x0520
	GAMsgRedirect           uint16 = 0x0530
	AGMsgRedirectResponse   uint16 = 0x0531
	GAMsgPlayerReconnect    uint16 = 0x0532
	GAMsgPlayerSync         uint16 = 0x0540
	GAMsgGetVarChr          uint16 = 0x0546
	AGMsgGetVarChrResponse  uint16 = 0x0547
	GAMsgSetVarChr          uint16 = 0x0548
	GAMsgSetVarWorld        uint16 = 0x0549
	AGMsgSetVarWorld        uint16 = 0x054A
	GAMsgSetVarMap          uint16 = 0x054B
	GAMsgBanPlayer          uint16 = 0x0550
	GAMsgChangeAccountLevel uint16 = 0x0551
	GAMsgStatistics         uint16 = 0x0560
	GAMsgCreateItemOnMap    uint16 = 0x0570
	GAMsgRemoveItemOnMap    uint16 = 0x0571
	GAMsgAnnounce           uint16 = 0x0580
	GAMsgTransaction        uint16 = 0x0581

	GCMsgRequestPost       uint16 = 0x05A0
	CGMsgPostResponse      uint16 = 0x05A1
	GCMsgStorePost         uint16 = 0x05A2
	CGMsgStorePostResponse uint16 = 0x05A3
	GCMsgPartyInvite       uint16 = 0x05B0
	CGMsgChangedParty      uint16 = 0x05B1

	// Reply to a peer that sent an unrecognised message id.
	XXMsgInvalid uint16 = 0x7FFF
)

// PlayerSync entry kinds inside a GAMsgPlayerSync batch.
const (
	SyncCharacterPoints    = 0x01
	SyncCharacterAttribute = 0x02
	SyncOnlineStatus       = 0x03
)

// Channel event kinds carried by CPMsgChannelEvent.
const (
	ChatEventNewPlayer     = 0
	ChatEventLeavingPlayer = 1
	ChatEventTopicChange   = 2
	ChatEventModeChange    = 3
	ChatEventKickedPlayer  = 4
)

// Guild list update kinds carried by CPMsgGuildUpdateList.
const (
	GuildEventNewPlayer     = 0
	GuildEventLeavingPlayer = 1
	GuildEventOnlinePlayer  = 2
	GuildEventOfflinePlayer = 3
)

// MinProtocolVersion is the oldest client protocol accepted at login.
const MinProtocolVersion = 9

// TokenLength is the fixed length of handoff tokens on the wire.
const TokenLength = 32
