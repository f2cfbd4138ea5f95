package model

import "time"

// Transaction action codes. Append-only audit records, distinct from
// database transactions.
const (
	TransCharCreate      = 1
	TransCharSelected    = 2
	TransCharDeleted     = 3
	TransMsgAnnounce     = 10
	TransChannelJoin     = 20
	TransChannelKick     = 21
	TransChannelMode     = 22
	TransChannelQuit     = 23
	TransChannelList     = 24
	TransChannelUserlist = 25
	TransChannelTopic    = 26
	TransGuildCreate     = 30
	TransGuildQuit       = 31
)

// Transaction is one audit row.
type Transaction struct {
	ID          int
	CharacterID int
	Action      int
	Message     string
	Time        time.Time
}
