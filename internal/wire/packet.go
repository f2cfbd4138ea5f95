package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// HeaderSize is the 16-bit frame length prefix.
	HeaderSize = 2

	// MaxFrameSize caps a single message frame. Anything larger is a
	// protocol violation and the connection is dropped.
	MaxFrameSize = 64 * 1024
)

// WriteMessage frames and writes one message: 16-bit length of (id+payload)
// followed by the message bytes.
func WriteMessage(w io.Writer, msg *MessageOut) error {
	body := msg.Bytes()
	if len(body) > MaxFrameSize {
		return fmt.Errorf("message 0x%04X exceeds frame size: %d bytes", msg.ID(), len(body))
	}

	var header [HeaderSize]byte
	binary.BigEndian.PutUint16(header[:], uint16(len(body)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("writing frame header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("writing frame body: %w", err)
	}
	return nil
}

// ReadMessage reads one framed message from r.
func ReadMessage(r io.Reader) (*MessageIn, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("reading frame header: %w", err)
	}

	frameLen := int(binary.BigEndian.Uint16(header[:]))
	if frameLen < 2 {
		return nil, fmt.Errorf("invalid frame length: %d", frameLen)
	}

	frame := make([]byte, frameLen)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, fmt.Errorf("reading frame body: %w", err)
	}

	return NewMessageIn(frame)
}
