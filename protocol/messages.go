// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

// helloPrefix opens both hello messages instead of a four-letter code.
const helloPrefix = "Synergy"

// Handshake. The server speaks first with its version; the client
// answers with the version it will speak and its screen name.
const (
	// MsgHello is server→client: major, minor.
	MsgHello = "Synergy%2i%2i"

	// MsgHelloBack is client→server: major, minor, screen name.
	MsgHelloBack = "Synergy%2i%2i%s"
)

// Commands.
const (
	// MsgCNoop carries nothing. Clients send it during the handshake
	// and as traffic that keeps a heartbeat deadline from expiring.
	MsgCNoop = "CNOP"

	// MsgCClose asks the client to close the connection.
	MsgCClose = "CBYE"

	// MsgCEnter: x, y, sequence number, modifier mask. The cursor has
	// entered the client's screen.
	MsgCEnter = "CINN%2i%2i%4i%2i"

	// MsgCLeave: the cursor has left the client's screen.
	MsgCLeave = "COUT"

	// MsgCClipboard: clipboard id, sequence number. Sent in either
	// direction when a side takes ownership of a clipboard.
	MsgCClipboard = "CCLP%1i%4i"

	// MsgCScreenSaver: 1 to start the screen saver, 0 to stop it.
	MsgCScreenSaver = "CSEC%1i"

	// MsgCResetOptions resets all options to their defaults.
	MsgCResetOptions = "CROP"

	// MsgCInfoAck acknowledges a DINF.
	MsgCInfoAck = "CIAK"

	// MsgCKeepAlive is echoed by 1.3 clients; either side drops the
	// connection when keep-alives stop arriving.
	MsgCKeepAlive = "CALV"
)

// Data messages.
const (
	// MsgDKeyDown1_0: key id, modifier mask.
	MsgDKeyDown1_0 = "DKDN%2i%2i"
	// MsgDKeyDown: key id, modifier mask, physical key button. Since 1.1.
	MsgDKeyDown = "DKDN%2i%2i%2i"

	// MsgDKeyRepeat1_0: key id, modifier mask, repeat count.
	MsgDKeyRepeat1_0 = "DKRP%2i%2i%2i"
	// MsgDKeyRepeat: key id, modifier mask, repeat count, button. Since 1.1.
	MsgDKeyRepeat = "DKRP%2i%2i%2i%2i"

	// MsgDKeyUp1_0: key id, modifier mask.
	MsgDKeyUp1_0 = "DKUP%2i%2i"
	// MsgDKeyUp: key id, modifier mask, button. Since 1.1.
	MsgDKeyUp = "DKUP%2i%2i%2i"

	// MsgDMouseDown: button id.
	MsgDMouseDown = "DMDN%1i"
	// MsgDMouseUp: button id.
	MsgDMouseUp = "DMUP%1i"

	// MsgDMouseMove: absolute x, y.
	MsgDMouseMove = "DMMV%2i%2i"
	// MsgDMouseRelMove: dx, dy. Since 1.2.
	MsgDMouseRelMove = "DMRM%2i%2i"

	// MsgDMouseWheel1_0: vertical delta.
	MsgDMouseWheel1_0 = "DMWM%2i"
	// MsgDMouseWheel: horizontal delta, vertical delta. Since 1.3.
	MsgDMouseWheel = "DMWM%2i%2i"

	// MsgDClipboard: clipboard id, sequence number, marshalled
	// clipboard (see Clipboard).
	MsgDClipboard = "DCLP%1i%4i%s"

	// MsgDInfo is client→server: screen x, y, width, height, an
	// obsolete jump-zone size, cursor x, cursor y.
	MsgDInfo = "DINF%2i%2i%2i%2i%2i%2i%2i"

	// MsgDSetOptions: option id/value pairs flattened into one vector.
	MsgDSetOptions = "DSOP%4I"
)

// Queries.
const (
	// MsgQInfo asks the client to send a DINF.
	MsgQInfo = "QINF"
)

// Errors, sent by the server immediately before it drops a connection.
const (
	// MsgEIncompatible: the server's major, minor. The client's version
	// is not supported.
	MsgEIncompatible = "EICV%2i%2i"

	// MsgEBusy: a screen with the client's name is already connected.
	MsgEBusy = "EBSY"

	// MsgEUnknown: the client's name is not part of the configuration.
	MsgEUnknown = "EUNK"

	// MsgEBad: the client violated the protocol.
	MsgEBad = "EBAD"
)

// KeyID is a platform independent key symbol.
type KeyID uint16

// KeyModifierMask is a set of modifier bits.
type KeyModifierMask uint16

// KeyButton is a physical key identifier, sent since 1.1.
type KeyButton uint16

// ButtonID identifies a mouse button; 1 is the left button.
type ButtonID uint8

// ClipboardID selects one of the screen's clipboards.
type ClipboardID uint8

const (
	// ClipboardClipboard is the explicit copy/paste clipboard.
	ClipboardClipboard ClipboardID = 0
	// ClipboardSelection is the X11 primary selection.
	ClipboardSelection ClipboardID = 1
	// ClipboardEnd is one past the last valid id.
	ClipboardEnd ClipboardID = 2
)

// OptionID is a four-character option code packed big-endian.
type OptionID uint32

// Option packs a four-character code into an OptionID.
func Option(code string) OptionID {
	var id OptionID
	for i := 0; i < 4 && i < len(code); i++ {
		id = id<<8 | OptionID(code[i])
	}
	return id
}

// OptionHeartbeat sets the heartbeat or keep-alive period, in
// milliseconds. Zero or negative disables it.
var OptionHeartbeat = Option("HART")
