// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func TestWriteReadPacket(t *testing.T) {
	t.Parallel()
	var buffer bytes.Buffer
	if err := WriteMessage(&buffer, MsgCEnter, 10, 20, uint32(5), KeyModifierMask(0x0002)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	if err := WriteMessage(&buffer, MsgCLeave); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	first, err := ReadPacket(&buffer)
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if code, _ := Code(first); code != "CINN" {
		t.Fatalf("first code = %q", code)
	}
	var x, y int16
	var sequence uint32
	var mask KeyModifierMask
	if err := Unpack(first, MsgCEnter, &x, &y, &sequence, &mask); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if x != 10 || y != 20 || sequence != 5 || mask != 2 {
		t.Errorf("got (%d,%d) seq %d mask %d", x, y, sequence, mask)
	}

	second, err := ReadPacket(&buffer)
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if string(second) != "COUT" {
		t.Errorf("second packet = %q", second)
	}

	if _, err := ReadPacket(&buffer); err != io.EOF {
		t.Errorf("ReadPacket at end = %v, want io.EOF", err)
	}
}

func TestWriteMessageSingleWrite(t *testing.T) {
	t.Parallel()
	counter := &countingWriter{}
	if err := WriteMessage(counter, MsgDClipboard, 0, 0, "payload"); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	if counter.writes != 1 {
		t.Fatalf("WriteMessage issued %d writes, want 1", counter.writes)
	}
}

type countingWriter struct{ writes int }

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return len(p), nil
}

func TestReadPacketTruncated(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
	}{
		{"partial header", []byte{0x00, 0x00}},
		{"partial body", []byte{0x00, 0x00, 0x00, 0x08, 'D', 'M'}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadPacket(bytes.NewReader(test.data))
			if !errors.Is(err, ErrUnexpectedEOF) {
				t.Fatalf("ReadPacket = %v, want UnexpectedEOF", err)
			}
		})
	}
}

func TestReadPacketTooLarge(t *testing.T) {
	t.Parallel()
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], MaxPacketLength+1)
	_, err := ReadPacket(bytes.NewReader(header[:]))
	if !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("ReadPacket = %v, want MalformedMessage", err)
	}
}

func TestReadPacketPreservesReaderError(t *testing.T) {
	t.Parallel()
	sentinel := errors.New("connection reset by peer")
	_, err := ReadPacket(failingReader{err: sentinel})
	if !errors.Is(err, sentinel) {
		t.Fatalf("ReadPacket = %v, want wrapped %v", err, sentinel)
	}
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestHelloBack(t *testing.T) {
	t.Parallel()
	var buffer bytes.Buffer
	if err := WriteHelloBack(&buffer, Version1_2, "alice"); err != nil {
		t.Fatalf("WriteHelloBack: %v", err)
	}
	packet, err := ReadPacket(&buffer)
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	version, name, err := ParseHelloBack(packet)
	if err != nil {
		t.Fatalf("ParseHelloBack: %v", err)
	}
	if version != Version1_2 || name != "alice" {
		t.Errorf("got %s %q", version, name)
	}
}

func TestHelloBackInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		packet []byte
	}{
		{"negative minor", mustPack(t, MsgHelloBack, 1, int16(-1), "alice")},
		{"zero major", mustPack(t, MsgHelloBack, 0, 3, "alice")},
		{"empty name", mustPack(t, MsgHelloBack, 1, 3, "")},
		{"wrong prefix", []byte("Synergx\x00\x01\x00\x03\x00\x00\x00\x01a")},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if _, _, err := ParseHelloBack(test.packet); !errors.Is(err, ErrMalformedMessage) {
				t.Fatalf("ParseHelloBack = %v, want MalformedMessage", err)
			}
		})
	}
}

func TestHello(t *testing.T) {
	t.Parallel()
	var buffer bytes.Buffer
	if err := WriteHello(&buffer, Current); err != nil {
		t.Fatalf("WriteHello: %v", err)
	}
	packet, err := ReadPacket(&buffer)
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	version, err := ParseHello(packet)
	if err != nil {
		t.Fatalf("ParseHello: %v", err)
	}
	if version != Current {
		t.Errorf("version = %s, want %s", version, Current)
	}
}

func mustPack(t *testing.T, format string, args ...any) []byte {
	t.Helper()
	packet, err := Pack(format, args...)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	return packet
}

func TestVersionOrder(t *testing.T) {
	t.Parallel()
	if !Version1_0.Less(Version1_3) || Version1_3.Less(Version1_2) {
		t.Error("minor ordering wrong")
	}
	if !Version1_3.Less(Version{Major: 2}) {
		t.Error("major ordering wrong")
	}
	if Version1_3.String() != "1.3" {
		t.Errorf("String() = %q", Version1_3.String())
	}
}
