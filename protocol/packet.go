// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// packetHeaderLength is the size of the big-endian length prefix.
const packetHeaderLength = 4

// MaxPacketLength bounds a single packet. The largest legitimate packet
// is a DCLP carrying a clipboard; anything beyond this is treated as a
// corrupt or hostile stream.
const MaxPacketLength = 4 * 1024 * 1024

// codeLength is the size of a message code such as "DINF".
const codeLength = 4

// WriteMessage packs format and args and writes the result to w as one
// packet, in a single Write call so concurrent writers on a stream that
// serializes Write never interleave packets. The caller flushes.
func WriteMessage(w io.Writer, format string, args ...any) error {
	buffer := make([]byte, packetHeaderLength, packetHeaderLength+64)
	buffer, err := AppendPack(buffer, format, args...)
	if err != nil {
		return err
	}
	payloadLength := len(buffer) - packetHeaderLength
	if payloadLength > MaxPacketLength {
		return fmt.Errorf("protocol: packet of %d bytes exceeds maximum %d", payloadLength, MaxPacketLength)
	}
	binary.BigEndian.PutUint32(buffer[:packetHeaderLength], uint32(payloadLength))
	if _, err := w.Write(buffer); err != nil {
		return fmt.Errorf("write %s: %w", messageName(format), err)
	}
	return nil
}

// ReadPacket reads one packet from r. Errors from r are returned
// wrapped, so stream failures keep their classification; a stream that
// ends inside a packet yields UnexpectedEOF, and an oversized length
// yields MalformedMessage. A clean end of stream exactly between
// packets is returned as io.EOF.
func ReadPacket(r io.Reader) ([]byte, error) {
	var header [packetHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &Error{Kind: UnexpectedEOF, Detail: "packet header", Err: err}
		}
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read packet header: %w", err)
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > MaxPacketLength {
		return nil, malformed("packet length %d exceeds maximum %d", length, MaxPacketLength)
	}
	packet := make([]byte, length)
	if _, err := io.ReadFull(r, packet); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || err == io.EOF {
			return nil, &Error{Kind: UnexpectedEOF, Detail: fmt.Sprintf("packet body of %d bytes", length), Err: err}
		}
		return nil, fmt.Errorf("read packet body: %w", err)
	}
	return packet, nil
}

// Code returns the four-letter message code at the start of packet.
func Code(packet []byte) (string, error) {
	if len(packet) < codeLength {
		return "", truncated("packet of %d bytes has no message code", len(packet))
	}
	return string(packet[:codeLength]), nil
}

// CodeOf returns the message code a format string starts with.
func CodeOf(format string) string {
	if len(format) < codeLength {
		return format
	}
	return format[:codeLength]
}

// messageName is CodeOf for log and error text, naming hello messages
// by their prefix.
func messageName(format string) string {
	if len(format) >= len(helloPrefix) && format[:len(helloPrefix)] == helloPrefix {
		return "hello"
	}
	return CodeOf(format)
}
