// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol implements the wire format spoken between the server
// and remote screens, byte-compatible with synergy 1.x clients.
//
// Every message travels as one packet: a 4-byte big-endian length
// followed by that many bytes ([WriteMessage], [ReadPacket]). Inside a
// packet the layout is described by a printf-style format string shared
// by the encoder ([Pack]) and the decoder ([Unpack]):
//
//	%1i %2i %4i   unsigned big-endian integer of 1, 2 or 4 bytes
//	%1I %2I %4I   4-byte element count, then that many integers
//	%s            4-byte length, then that many bytes
//	%%            a literal percent sign
//
// Any other byte in the format is a literal that must match exactly when
// decoding. Message formats start with a four-letter code (see
// messages.go), so the same format string both builds a message and
// recognizes it. The codec knows nothing about versions; the client
// proxy picks which formats to use for the version negotiated at
// handshake.
//
// Decoding failures are [*Error] values with kinds MalformedMessage,
// UnexpectedEOF, UnknownMessageCode and VersionMismatch.
package protocol
