// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "fmt"

// Version is a protocol version as exchanged in the hello messages.
type Version struct {
	Major uint16
	Minor uint16
}

// Versions this implementation speaks. Each minor revision changed the
// vocabulary; see the client proxy's dialect table.
var (
	Version1_0 = Version{Major: 1, Minor: 0}
	Version1_1 = Version{Major: 1, Minor: 1}
	Version1_2 = Version{Major: 1, Minor: 2}
	Version1_3 = Version{Major: 1, Minor: 3}
)

// Current is the version the server announces in its hello.
var Current = Version1_3

// String returns "major.minor".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Less orders versions.
func (v Version) Less(other Version) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	return v.Minor < other.Minor
}

// Valid reports whether v could name a real version. Major 0 never
// existed, and signed peers sending negative numbers arrive with the
// top bit set.
func (v Version) Valid() bool {
	return v.Major > 0 && v.Major < 0x8000 && v.Minor < 0x8000
}
