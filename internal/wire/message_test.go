package wire

import (
	"bytes"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	out := NewMessageOut(PAMsgLogin)
	out.WriteInt8(-5)
	out.WriteInt16(-1234)
	out.WriteInt32(70000)
	out.WriteDouble(3.5)
	out.WriteString("hello")
	out.WriteString("")
	out.WriteFixedString("tok", 8)

	in, err := NewMessageIn(out.Bytes())
	if err != nil {
		t.Fatalf("NewMessageIn: %v", err)
	}
	if in.ID() != PAMsgLogin {
		t.Errorf("id = 0x%04X, want 0x%04X", in.ID(), PAMsgLogin)
	}
	if got := in.ReadInt8(); got != -5 {
		t.Errorf("int8 = %d, want -5", got)
	}
	if got := in.ReadInt16(); got != -1234 {
		t.Errorf("int16 = %d, want -1234", got)
	}
	if got := in.ReadInt32(); got != 70000 {
		t.Errorf("int32 = %d, want 70000", got)
	}
	if got := in.ReadDouble(); got != 3.5 {
		t.Errorf("double = %v, want 3.5", got)
	}
	if got := in.ReadString(); got != "hello" {
		t.Errorf("string = %q, want %q", got, "hello")
	}
	if got := in.ReadString(); got != "" {
		t.Errorf("empty string = %q, want empty", got)
	}
	if got := in.ReadFixedString(8); got != "tok" {
		t.Errorf("fixed string = %q, want %q", got, "tok")
	}
	if in.Unread() != 0 {
		t.Errorf("unread = %d, want 0", in.Unread())
	}
	if in.Err() != nil {
		t.Errorf("err = %v, want nil", in.Err())
	}
}

func TestMessageInErrorLatches(t *testing.T) {
	out := NewMessageOut(PAMsgLogin)
	out.WriteInt8(7)

	in, err := NewMessageIn(out.Bytes())
	if err != nil {
		t.Fatalf("NewMessageIn: %v", err)
	}
	if got := in.ReadInt8(); got != 7 {
		t.Fatalf("int8 = %d, want 7", got)
	}
	// Payload is exhausted; every further read must fail and return zero.
	if got := in.ReadInt32(); got != 0 {
		t.Errorf("int32 after exhaustion = %d, want 0", got)
	}
	if in.Err() == nil {
		t.Fatal("expected latched error after short read")
	}
	first := in.Err()
	if got := in.ReadString(); got != "" {
		t.Errorf("string after error = %q, want empty", got)
	}
	if in.Err() != first {
		t.Errorf("error was replaced: %v != %v", in.Err(), first)
	}
}

func TestMessageInStringBeyondPayload(t *testing.T) {
	out := NewMessageOut(PCMsgChat)
	out.WriteInt16(100) // claims 100 bytes of string data
	out.WriteInt8('x')

	in, err := NewMessageIn(out.Bytes())
	if err != nil {
		t.Fatalf("NewMessageIn: %v", err)
	}
	if got := in.ReadString(); got != "" {
		t.Errorf("string = %q, want empty", got)
	}
	if in.Err() == nil {
		t.Error("expected error for string length beyond payload")
	}
}

func TestFixedStringTruncates(t *testing.T) {
	out := NewMessageOut(PAMsgLogin)
	out.WriteFixedString("longer-than-four", 4)

	in, err := NewMessageIn(out.Bytes())
	if err != nil {
		t.Fatalf("NewMessageIn: %v", err)
	}
	if got := in.ReadFixedString(4); got != "long" {
		t.Errorf("fixed string = %q, want %q", got, "long")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	out := NewMessageOut(APMsgLoginResponse)
	out.WriteInt8(int(ErrOK))
	out.WriteString("payload")
	if err := WriteMessage(&buf, out); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	in, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if in.ID() != APMsgLoginResponse {
		t.Errorf("id = 0x%04X, want 0x%04X", in.ID(), APMsgLoginResponse)
	}
	if got := in.ReadInt8(); got != int(ErrOK) {
		t.Errorf("status = %d, want %d", got, ErrOK)
	}
	if got := in.ReadString(); got != "payload" {
		t.Errorf("string = %q, want %q", got, "payload")
	}
}

func TestFrameTooShort(t *testing.T) {
	// Frame length 1 cannot hold a message id.
	r := bytes.NewReader([]byte{0x00, 0x01, 0xFF})
	if _, err := ReadMessage(r); err == nil {
		t.Fatal("expected error for undersized frame")
	}
}

func TestWriteMessageOversized(t *testing.T) {
	out := NewMessageOut(GAMsgPlayerData)
	out.WriteFixedString("", MaxFrameSize)

	var buf bytes.Buffer
	if err := WriteMessage(&buf, out); err == nil {
		t.Fatal("expected error for oversized frame")
	}
	if buf.Len() != 0 {
		t.Errorf("oversized frame leaked %d bytes", buf.Len())
	}
}

func TestMessageInTwoByteMinimum(t *testing.T) {
	if _, err := NewMessageIn([]byte{0x12}); err == nil {
		t.Fatal("expected error for one-byte frame")
	}
}
