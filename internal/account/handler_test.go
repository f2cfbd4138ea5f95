package account

import (
	"context"
	"net"
	"testing"

	"github.com/Ablu/manaserv/internal/config"
	"github.com/Ablu/manaserv/internal/wire"
)

// charCreatePayload builds a CHAR_CREATE message. Old clients omit the slot
// byte between the gender and the attribute values.
func charCreatePayload(t *testing.T, cfg config.AccountServer, withSlot bool) *wire.MessageIn {
	t.Helper()
	out := wire.NewMessageOut(wire.PAMsgCharCreate)
	out.WriteString("Taw")
	out.WriteInt8(1) // hair style
	out.WriteInt8(1) // hair color
	out.WriteInt8(0) // gender
	if withSlot {
		out.WriteInt8(1)
	}
	for range cfg.Attributes.Modifiable {
		out.WriteInt16(10)
	}
	msg, err := wire.NewMessageIn(out.Bytes())
	if err != nil {
		t.Fatalf("building message: %v", err)
	}
	return msg
}

// A character creation request without the slot byte must earn a reply like
// any other rejected creation, not a dropped connection.
func TestCharCreatePayloadVariants(t *testing.T) {
	cfg := config.DefaultAccountServer()
	s := NewServer(cfg, nil, nil, nil)

	tests := []struct {
		name     string
		withSlot bool
	}{
		{"old client without slot byte", false},
		{"current client with slot byte", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, peer := net.Pipe()
			defer server.Close()
			defer peer.Close()

			client := newClient(server)
			msg := charCreatePayload(t, cfg, tc.withSlot)

			keep := make(chan bool, 1)
			go func() {
				keep <- s.dispatch(context.Background(), client, msg)
			}()

			reply, err := wire.ReadMessage(peer)
			if err != nil {
				t.Fatalf("reading reply: %v", err)
			}
			if reply.ID() != wire.APMsgCharCreateResponse {
				t.Fatalf("reply id = 0x%04X, want 0x%04X", reply.ID(), wire.APMsgCharCreateResponse)
			}
			// The client never logged in, so both layouts answer the
			// same status; what matters is that a reply arrives at all.
			if status := reply.ReadInt8(); status != wire.ErrNoLogin {
				t.Fatalf("status = %d, want %d", status, wire.ErrNoLogin)
			}
			if !<-keep {
				t.Fatal("dispatch dropped the connection")
			}
		})
	}
}
