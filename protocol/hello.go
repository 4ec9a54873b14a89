// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "io"

// maxNameLength bounds the screen name in a hello back. Real names are
// host names.
const maxNameLength = 1024

// WriteHello sends the server's hello announcing version.
func WriteHello(w io.Writer, version Version) error {
	return WriteMessage(w, MsgHello, version.Major, version.Minor)
}

// ParseHello decodes a server hello packet.
func ParseHello(packet []byte) (Version, error) {
	var version Version
	if err := Unpack(packet, MsgHello, &version.Major, &version.Minor); err != nil {
		return Version{}, err
	}
	return version, nil
}

// WriteHelloBack sends a client's hello back.
func WriteHelloBack(w io.Writer, version Version, name string) error {
	return WriteMessage(w, MsgHelloBack, version.Major, version.Minor, name)
}

// ParseHelloBack decodes a client's hello back. Invalid version numbers
// and empty or oversized names are MalformedMessage.
func ParseHelloBack(packet []byte) (Version, string, error) {
	var version Version
	var name string
	if err := Unpack(packet, MsgHelloBack, &version.Major, &version.Minor, &name); err != nil {
		return Version{}, "", err
	}
	if !version.Valid() {
		return Version{}, "", malformed("invalid version %d.%d", int16(version.Major), int16(version.Minor))
	}
	if name == "" {
		return Version{}, "", malformed("empty screen name")
	}
	if len(name) > maxNameLength {
		return Version{}, "", malformed("screen name of %d bytes exceeds %d", len(name), maxNameLength)
	}
	return version, name, nil
}
