// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clientproxy

import (
	"fmt"
	"maps"
	"slices"

	"github.com/bureau-foundation/deskshare/protocol"
)

// liveness selects how a dialect detects a dead peer.
type liveness int

const (
	// heartbeatDeadline drops the screen when no traffic arrives for
	// beatsUntilDeath heartbeat periods. The period is unset until the
	// HART option is sent, so the deadline starts disabled.
	heartbeatDeadline liveness = iota + 1

	// keepAliveExchange sends CALV every period and drops the screen
	// after beatsUntilDeath periods without traffic. Enabled by default.
	keepAliveExchange
)

// beatsUntilDeath is how many silent periods a screen survives.
const beatsUntilDeath = 3

// handler processes one inbound packet.
type handler func(p *ClientProxy, packet []byte) error

// dialect is everything that differs between protocol versions.
type dialect struct {
	version protocol.Version

	keyDown   string
	keyRepeat string
	keyUp     string
	// keyButton is set when key messages carry the physical button.
	keyButton bool

	// mouseRelativeMove is empty when the version has no DMRM.
	mouseRelativeMove string
	mouseWheel        string
	// horizontalWheel is set when DMWM carries both deltas.
	horizontalWheel bool

	liveness liveness

	// handshake handles packets while Connecting, inbound while Ready.
	handshake map[string]handler
	inbound   map[string]handler
}

// derive copies d for the next version. Handler tables are cloned so
// the new version can extend them.
func (d *dialect) derive(version protocol.Version) *dialect {
	next := *d
	next.version = version
	next.handshake = maps.Clone(d.handshake)
	next.inbound = maps.Clone(d.inbound)
	return &next
}

var dialects = buildDialects()

func buildDialects() map[protocol.Version]*dialect {
	code := protocol.CodeOf

	v1_0 := &dialect{
		version:    protocol.Version1_0,
		keyDown:    protocol.MsgDKeyDown1_0,
		keyRepeat:  protocol.MsgDKeyRepeat1_0,
		keyUp:      protocol.MsgDKeyUp1_0,
		mouseWheel: protocol.MsgDMouseWheel1_0,
		liveness:   heartbeatDeadline,
		handshake: map[string]handler{
			code(protocol.MsgCNoop): (*ClientProxy).handleNoop,
			code(protocol.MsgDInfo): (*ClientProxy).handleInfo,
		},
		inbound: map[string]handler{
			code(protocol.MsgCNoop):      (*ClientProxy).handleNoop,
			code(protocol.MsgDInfo):      (*ClientProxy).handleInfo,
			code(protocol.MsgCClipboard): (*ClientProxy).handleGrabClipboard,
			code(protocol.MsgDClipboard): (*ClientProxy).handleClipboard,
		},
	}

	v1_1 := v1_0.derive(protocol.Version1_1)
	v1_1.keyDown = protocol.MsgDKeyDown
	v1_1.keyRepeat = protocol.MsgDKeyRepeat
	v1_1.keyUp = protocol.MsgDKeyUp
	v1_1.keyButton = true

	v1_2 := v1_1.derive(protocol.Version1_2)
	v1_2.mouseRelativeMove = protocol.MsgDMouseRelMove

	v1_3 := v1_2.derive(protocol.Version1_3)
	v1_3.mouseWheel = protocol.MsgDMouseWheel
	v1_3.horizontalWheel = true
	v1_3.liveness = keepAliveExchange
	v1_3.inbound[code(protocol.MsgCKeepAlive)] = (*ClientProxy).handleNoop

	return map[protocol.Version]*dialect{
		v1_0.version: v1_0,
		v1_1.version: v1_1,
		v1_2.version: v1_2,
		v1_3.version: v1_3,
	}
}

// lookupDialect returns the dialect for version or a VersionMismatch
// error.
func lookupDialect(version protocol.Version) (*dialect, error) {
	d, ok := dialects[version]
	if !ok {
		return nil, &protocol.Error{
			Kind:   protocol.VersionMismatch,
			Detail: fmt.Sprintf("protocol %s is not supported", version),
		}
	}
	return d, nil
}

// Supports reports whether a proxy can speak version.
func Supports(version protocol.Version) bool {
	_, ok := dialects[version]
	return ok
}

// SupportedVersions returns every version a proxy can speak, oldest
// first.
func SupportedVersions() []protocol.Version {
	versions := slices.Collect(maps.Keys(dialects))
	slices.SortFunc(versions, func(a, b protocol.Version) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})
	return versions
}
