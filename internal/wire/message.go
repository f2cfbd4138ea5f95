package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MessageOut builds an outgoing message: 16-bit message id followed by typed
// fields in network byte order. Strings are length-prefixed (int16, UTF-8)
// unless written with WriteFixedString.
type MessageOut struct {
	buf []byte
}

// NewMessageOut starts a message with the given id.
func NewMessageOut(id uint16) *MessageOut {
	m := &MessageOut{buf: make([]byte, 0, 64)}
	m.buf = binary.BigEndian.AppendUint16(m.buf, id)
	return m
}

func (m *MessageOut) WriteInt8(v int) *MessageOut {
	m.buf = append(m.buf, byte(v))
	return m
}

func (m *MessageOut) WriteInt16(v int) *MessageOut {
	m.buf = binary.BigEndian.AppendUint16(m.buf, uint16(v))
	return m
}

func (m *MessageOut) WriteInt32(v int) *MessageOut {
	m.buf = binary.BigEndian.AppendUint32(m.buf, uint32(v))
	return m
}

// WriteDouble writes a float64 as its fixed 8-byte IEEE-754 encoding.
func (m *MessageOut) WriteDouble(v float64) *MessageOut {
	m.buf = binary.BigEndian.AppendUint64(m.buf, math.Float64bits(v))
	return m
}

func (m *MessageOut) WriteString(s string) *MessageOut {
	m.buf = binary.BigEndian.AppendUint16(m.buf, uint16(len(s)))
	m.buf = append(m.buf, s...)
	return m
}

// WriteFixedString writes exactly length bytes, truncating or zero-padding.
// Used for tokens, whose length is known on both sides.
func (m *MessageOut) WriteFixedString(s string, length int) *MessageOut {
	b := make([]byte, length)
	copy(b, s)
	m.buf = append(m.buf, b...)
	return m
}

// ID returns the message id.
func (m *MessageOut) ID() uint16 {
	return binary.BigEndian.Uint16(m.buf[:2])
}

// Bytes returns the encoded message (id + payload).
func (m *MessageOut) Bytes() []byte {
	return m.buf
}

// MessageIn decodes an incoming message. Read methods latch the first
// decoding error; callers check Err once after reading all fields. A short
// read on a required field is a protocol violation and the connection is
// dropped by the caller.
type MessageIn struct {
	id   uint16
	data []byte
	pos  int
	err  error
}

// NewMessageIn wraps a received frame (id + payload).
func NewMessageIn(frame []byte) (*MessageIn, error) {
	if len(frame) < 2 {
		return nil, fmt.Errorf("message frame too short: %d bytes", len(frame))
	}
	return &MessageIn{
		id:   binary.BigEndian.Uint16(frame[:2]),
		data: frame[2:],
	}, nil
}

// ID returns the message id.
func (m *MessageIn) ID() uint16 { return m.id }

// Unread returns the number of payload bytes not yet consumed.
func (m *MessageIn) Unread() int { return len(m.data) - m.pos }

// Err returns the first decoding error, if any.
func (m *MessageIn) Err() error { return m.err }

func (m *MessageIn) short(what string, n int) {
	if m.err == nil {
		m.err = fmt.Errorf("short read: %s needs %d bytes, %d left", what, n, m.Unread())
	}
}

func (m *MessageIn) ReadInt8() int {
	if m.err != nil {
		return 0
	}
	if m.Unread() < 1 {
		m.short("int8", 1)
		return 0
	}
	v := int(int8(m.data[m.pos]))
	m.pos++
	return v
}

// ReadByte returns the next byte unsigned.
func (m *MessageIn) ReadByte() byte {
	if m.err != nil {
		return 0
	}
	if m.Unread() < 1 {
		m.short("byte", 1)
		return 0
	}
	v := m.data[m.pos]
	m.pos++
	return v
}

func (m *MessageIn) ReadInt16() int {
	if m.err != nil {
		return 0
	}
	if m.Unread() < 2 {
		m.short("int16", 2)
		return 0
	}
	v := int(int16(binary.BigEndian.Uint16(m.data[m.pos:])))
	m.pos += 2
	return v
}

func (m *MessageIn) ReadInt32() int {
	if m.err != nil {
		return 0
	}
	if m.Unread() < 4 {
		m.short("int32", 4)
		return 0
	}
	v := int(int32(binary.BigEndian.Uint32(m.data[m.pos:])))
	m.pos += 4
	return v
}

func (m *MessageIn) ReadDouble() float64 {
	if m.err != nil {
		return 0
	}
	if m.Unread() < 8 {
		m.short("double", 8)
		return 0
	}
	v := math.Float64frombits(binary.BigEndian.Uint64(m.data[m.pos:]))
	m.pos += 8
	return v
}

func (m *MessageIn) ReadString() string {
	if m.err != nil {
		return ""
	}
	n := m.ReadInt16()
	if m.err != nil {
		return ""
	}
	if n < 0 || m.Unread() < n {
		m.short("string", n)
		return ""
	}
	s := string(m.data[m.pos : m.pos+n])
	m.pos += n
	return s
}

// ReadFixedString reads exactly length bytes, trimming trailing zero padding.
func (m *MessageIn) ReadFixedString(length int) string {
	if m.err != nil {
		return ""
	}
	if m.Unread() < length {
		m.short("fixed string", length)
		return ""
	}
	b := m.data[m.pos : m.pos+length]
	m.pos += length
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end])
}
