// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestPackLayout(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		format string
		args   []any
		want   []byte
	}{
		{
			name:   "bare code",
			format: MsgCClose,
			want:   []byte("CBYE"),
		},
		{
			name:   "hello",
			format: MsgHello,
			args:   []any{1, 3},
			want:   []byte("Synergy\x00\x01\x00\x03"),
		},
		{
			name:   "negative coordinate",
			format: MsgDMouseRelMove,
			args:   []any{int16(-2), 5},
			want:   []byte("DMRM\xff\xfe\x00\x05"),
		},
		{
			name:   "string",
			format: MsgDClipboard,
			args:   []any{ClipboardSelection, uint32(9), "hi"},
			want:   []byte("DCLP\x01\x00\x00\x00\x09\x00\x00\x00\x02hi"),
		},
		{
			name:   "vector",
			format: MsgDSetOptions,
			args:   []any{[]uint32{uint32(OptionHeartbeat), 5000}},
			want:   []byte("DSOP\x00\x00\x00\x02HART\x00\x00\x13\x88"),
		},
		{
			name:   "percent literal",
			format: "X%%%1i",
			args:   []any{KeyID(7)},
			want:   []byte("X%\x07"),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got, err := Pack(test.format, test.args...)
			if err != nil {
				t.Fatalf("Pack: %v", err)
			}
			if !bytes.Equal(got, test.want) {
				t.Errorf("Pack = %q, want %q", got, test.want)
			}
		})
	}
}

func TestPackProgrammingErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		format string
		args   []any
	}{
		{"missing argument", MsgCEnter, []any{1, 2, 3}},
		{"extra argument", MsgCNoop, []any{1}},
		{"bad directive", "%3i", []any{1}},
		{"dangling percent", "ABC%", nil},
		{"wrong type", MsgDMouseDown, []any{"left"}},
		{"string for vector", MsgDSetOptions, []any{"HART"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Pack(test.format, test.args...); err == nil {
				t.Fatal("Pack succeeded")
			}
		})
	}
}

func TestUnpackRoundTrip(t *testing.T) {
	t.Parallel()
	packet, err := Pack(MsgDInfo, 0, 0, 1920, 1080, 0, int16(-1), 540)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	var x, y, width, height, zone, cursorX, cursorY int16
	if err := Unpack(packet, MsgDInfo, &x, &y, &width, &height, &zone, &cursorX, &cursorY); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if width != 1920 || height != 1080 || cursorX != -1 || cursorY != 540 {
		t.Errorf("got %dx%d cursor (%d,%d)", width, height, cursorX, cursorY)
	}

	packet, err = Pack(MsgDSetOptions, []uint32{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	var options []uint32
	if err := Unpack(packet, MsgDSetOptions, &options); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if !reflect.DeepEqual(options, []uint32{1, 2, 3, 4}) {
		t.Errorf("options = %v", options)
	}

	packet, err = Pack(MsgDClipboard, ClipboardClipboard, 77, []byte{0, 1, 2})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	var id ClipboardID
	var sequence uint32
	var data []byte
	if err := Unpack(packet, MsgDClipboard, &id, &sequence, &data); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if id != ClipboardClipboard || sequence != 77 || !bytes.Equal(data, []byte{0, 1, 2}) {
		t.Errorf("got id %d seq %d data %v", id, sequence, data)
	}
}

func TestUnpackMalformed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		packet []byte
		format string
		want   error
	}{
		{"truncated integer", []byte("DMMV\x00\x01\x00"), MsgDMouseMove, ErrUnexpectedEOF},
		{"truncated code", []byte("DM"), MsgDMouseMove, ErrUnexpectedEOF},
		{"literal mismatch", []byte("DMMX\x00\x01\x00\x02"), MsgDMouseMove, ErrMalformedMessage},
		{"trailing bytes", []byte("DMMV\x00\x01\x00\x02\x00"), MsgDMouseMove, ErrMalformedMessage},
		{"string overruns packet", []byte("DCLP\x00\x00\x00\x00\x01\x00\x00\x00\x09ab"), MsgDClipboard, ErrUnexpectedEOF},
		{"vector overruns packet", []byte("DSOP\xff\xff\xff\xff\x00"), MsgDSetOptions, ErrUnexpectedEOF},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			targets := targetsFor(test.format)
			err := Unpack(test.packet, test.format, targets...)
			if !errors.Is(err, test.want) {
				t.Fatalf("Unpack error = %v, want %v", err, test.want)
			}
			var protocolErr *Error
			if !errors.As(err, &protocolErr) {
				t.Fatalf("Unpack error %T is not *Error", err)
			}
		})
	}
}

func targetsFor(format string) []any {
	switch format {
	case MsgDMouseMove:
		var x, y int16
		return []any{&x, &y}
	case MsgDClipboard:
		var id uint8
		var sequence uint32
		var data []byte
		return []any{&id, &sequence, &data}
	case MsgDSetOptions:
		var options []uint32
		return []any{&options}
	}
	return nil
}

func TestUnpackTargetMismatch(t *testing.T) {
	t.Parallel()
	var wide int32
	err := Unpack([]byte("DMDN\x01"), MsgDMouseDown, &wide)
	if err == nil {
		t.Fatal("Unpack into a 4-byte target for %1i succeeded")
	}
	var protocolErr *Error
	if errors.As(err, &protocolErr) {
		t.Fatalf("target mismatch reported as protocol error %v", err)
	}
}
