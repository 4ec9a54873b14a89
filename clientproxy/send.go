// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clientproxy

import (
	"context"

	"github.com/bureau-foundation/deskshare/protocol"
)

// OptionValue is one option id and value sent with SetOptions.
type OptionValue struct {
	ID    protocol.OptionID
	Value int32
}

// send writes one packet and flushes it, bounded by the close timeout.
// A failure disconnects the proxy.
func (p *ClientProxy) send(format string, args ...any) error {
	if p.State() == Disconnected {
		return ErrDisconnected
	}
	if err := p.sendQuietly(format, args...); err != nil {
		p.disconnect(err)
		return err
	}
	return nil
}

// sendQuietly is send without the disconnect.
func (p *ClientProxy) sendQuietly(format string, args ...any) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.closeTimeout)
	defer cancel()

	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	if err := protocol.WriteMessage(p.stream, format, args...); err != nil {
		return err
	}
	return p.stream.Flush(ctx)
}

// Enter tells the screen the cursor has entered it at x, y.
func (p *ClientProxy) Enter(x, y int16, sequence uint32, mask protocol.KeyModifierMask) error {
	p.logger.Debug("send enter", "x", x, "y", y, "sequence", sequence)
	return p.send(protocol.MsgCEnter, x, y, sequence, mask)
}

// Leave tells the screen the cursor has left it.
func (p *ClientProxy) Leave() error {
	return p.send(protocol.MsgCLeave)
}

// SetClipboard sends clipboard content to the screen, unless the
// screen's copy is already current.
func (p *ClientProxy) SetClipboard(id protocol.ClipboardID, clipboard protocol.Clipboard) error {
	if id >= protocol.ClipboardEnd {
		return validClipboard(id, "DCLP")
	}
	p.mu.Lock()
	if !p.clipboard[id].dirty {
		p.mu.Unlock()
		return nil
	}
	p.clipboard[id].dirty = false
	p.mu.Unlock()

	data := clipboard.Marshal()
	p.logger.Debug("send clipboard", "clipboard", id, "size", len(data))
	return p.send(protocol.MsgDClipboard, id, uint32(0), data)
}

// GrabClipboard tells the screen another screen owns clipboard id. The
// screen's copy becomes stale, so the next SetClipboard sends.
func (p *ClientProxy) GrabClipboard(id protocol.ClipboardID) error {
	if id >= protocol.ClipboardEnd {
		return validClipboard(id, "CCLP")
	}
	p.mu.Lock()
	p.clipboard[id].dirty = true
	p.mu.Unlock()
	return p.send(protocol.MsgCClipboard, id, uint32(0))
}

// SetClipboardDirty marks the screen's copy of clipboard id stale or
// current without sending anything.
func (p *ClientProxy) SetClipboardDirty(id protocol.ClipboardID, dirty bool) {
	if id >= protocol.ClipboardEnd {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clipboard[id].dirty = dirty
}

// KeyDown sends a key press. Protocol 1.0 has no physical button field
// and drops it.
func (p *ClientProxy) KeyDown(key protocol.KeyID, mask protocol.KeyModifierMask, button protocol.KeyButton) error {
	if p.dialect.keyButton {
		return p.send(p.dialect.keyDown, key, mask, button)
	}
	return p.send(p.dialect.keyDown, key, mask)
}

// KeyRepeat sends count auto-repeats of a held key.
func (p *ClientProxy) KeyRepeat(key protocol.KeyID, mask protocol.KeyModifierMask, count uint16, button protocol.KeyButton) error {
	if p.dialect.keyButton {
		return p.send(p.dialect.keyRepeat, key, mask, count, button)
	}
	return p.send(p.dialect.keyRepeat, key, mask, count)
}

// KeyUp sends a key release.
func (p *ClientProxy) KeyUp(key protocol.KeyID, mask protocol.KeyModifierMask, button protocol.KeyButton) error {
	if p.dialect.keyButton {
		return p.send(p.dialect.keyUp, key, mask, button)
	}
	return p.send(p.dialect.keyUp, key, mask)
}

// MouseDown sends a button press.
func (p *ClientProxy) MouseDown(button protocol.ButtonID) error {
	return p.send(protocol.MsgDMouseDown, button)
}

// MouseUp sends a button release.
func (p *ClientProxy) MouseUp(button protocol.ButtonID) error {
	return p.send(protocol.MsgDMouseUp, button)
}

// MouseMove moves the cursor to x, y on the screen.
func (p *ClientProxy) MouseMove(x, y int16) error {
	return p.send(protocol.MsgDMouseMove, x, y)
}

// MouseRelativeMove moves the cursor by dx, dy. Screens older than 1.2
// cannot receive relative moves; the call is a no-op for them.
func (p *ClientProxy) MouseRelativeMove(dx, dy int16) error {
	if p.dialect.mouseRelativeMove == "" {
		p.logger.Debug("relative move not supported by protocol, dropped")
		return nil
	}
	return p.send(p.dialect.mouseRelativeMove, dx, dy)
}

// MouseWheel sends wheel motion. Screens older than 1.3 receive only
// the vertical delta.
func (p *ClientProxy) MouseWheel(xDelta, yDelta int16) error {
	if p.dialect.horizontalWheel {
		return p.send(p.dialect.mouseWheel, xDelta, yDelta)
	}
	return p.send(p.dialect.mouseWheel, yDelta)
}

// Screensaver starts or stops the screen's screen saver.
func (p *ClientProxy) Screensaver(on bool) error {
	return p.send(protocol.MsgCScreenSaver, on)
}

// ResetOptions returns the screen's options, and the proxy's liveness
// period, to their defaults.
func (p *ClientProxy) ResetOptions() error {
	if err := p.send(protocol.MsgCResetOptions); err != nil {
		return err
	}
	p.setRate(p.defaultRate())
	return nil
}

// SetOptions sends options to the screen. A HART option also sets the
// proxy's liveness period, in milliseconds; zero or less disables it.
func (p *ClientProxy) SetOptions(options ...OptionValue) error {
	flattened := make([]uint32, 0, 2*len(options))
	for _, option := range options {
		flattened = append(flattened, uint32(option.ID), uint32(option.Value))
	}
	if err := p.send(protocol.MsgDSetOptions, flattened); err != nil {
		return err
	}
	for _, option := range options {
		if option.ID == protocol.OptionHeartbeat {
			p.setRate(heartbeatRate(option.Value))
		}
	}
	return nil
}

// QueryInfo asks the screen to send a fresh DINF.
func (p *ClientProxy) QueryInfo() error {
	return p.send(protocol.MsgQInfo)
}
