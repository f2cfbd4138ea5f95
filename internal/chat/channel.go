package chat

// Channel is one chat room. Membership lives in two reconciled views:
// channel→clients here and client→channels on the Client; both are guarded
// by the server mutex and only touched by join/leave operations.
type Channel struct {
	ID           int
	Name         string
	Announcement string
	Password     string
	Joinable     bool // false for guild channels

	clients map[*Client]struct{}
}

func (ch *Channel) memberClients() []*Client {
	out := make([]*Client, 0, len(ch.clients))
	for c := range ch.clients {
		out = append(out, c)
	}
	return out
}

func (ch *Channel) memberNames() []string {
	names := make([]string, 0, len(ch.clients))
	for c := range ch.clients {
		names = append(names, c.characterName)
	}
	return names
}

// channelManager allocates channel ids from a freelist before falling back
// to a monotonic counter, so emptied channels return small ids to reuse.
// Guarded by the server mutex.
type channelManager struct {
	channels map[int]*Channel
	byName   map[string]*Channel
	freelist []int
	nextID   int
}

func newChannelManager() *channelManager {
	return &channelManager{
		channels: map[int]*Channel{},
		byName:   map[string]*Channel{},
		nextID:   1,
	}
}

func (m *channelManager) create(name, announcement, password string, joinable bool) *Channel {
	var id int
	if n := len(m.freelist); n > 0 {
		id = m.freelist[n-1]
		m.freelist = m.freelist[:n-1]
	} else {
		id = m.nextID
		m.nextID++
	}
	ch := &Channel{
		ID:           id,
		Name:         name,
		Announcement: announcement,
		Password:     password,
		Joinable:     joinable,
		clients:      map[*Client]struct{}{},
	}
	m.channels[id] = ch
	m.byName[name] = ch
	return ch
}

func (m *channelManager) remove(ch *Channel) {
	delete(m.channels, ch.ID)
	delete(m.byName, ch.Name)
	m.freelist = append(m.freelist, ch.ID)
}

func (m *channelManager) byID(id int) *Channel {
	return m.channels[id]
}

func (m *channelManager) lookup(name string) *Channel {
	return m.byName[name]
}
