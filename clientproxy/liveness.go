// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clientproxy

import (
	"fmt"
	"time"

	"github.com/bureau-foundation/deskshare/protocol"
	"github.com/bureau-foundation/deskshare/stream"
)

// heartbeatRate converts a HART option value in milliseconds.
func heartbeatRate(milliseconds int32) time.Duration {
	if milliseconds <= 0 {
		return 0
	}
	return time.Duration(milliseconds) * time.Millisecond
}

func (p *ClientProxy) defaultRate() time.Duration {
	if p.dialect.liveness == keepAliveExchange {
		return p.keepAliveRate
	}
	return 0
}

// setRate changes the liveness period and restarts the timers.
func (p *ClientProxy) setRate(rate time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rate == rate {
		return
	}
	p.logger.Debug("liveness period changed", "period", rate)
	p.rate = rate
	p.armLocked()
}

// armLocked replaces the timers for the current rate. Must be called
// with p.mu held.
func (p *ClientProxy) armLocked() {
	p.stopTimersLocked()
	if !p.timersArmed || p.rate <= 0 || p.state == Disconnected {
		return
	}
	generation := p.generation
	p.lastTraffic = p.clock.Now()
	p.deathTimer = p.clock.AfterFunc(beatsUntilDeath*p.rate, func() {
		p.flatline(generation)
	})
	if p.dialect.liveness == keepAliveExchange {
		p.keepAliveTimer = p.clock.AfterFunc(p.rate, func() {
			p.sendKeepAlive(generation)
		})
	}
}

// stopTimersLocked must be called with p.mu held.
func (p *ClientProxy) stopTimersLocked() {
	p.generation++
	if p.deathTimer != nil {
		p.deathTimer.Stop()
		p.deathTimer = nil
	}
	if p.keepAliveTimer != nil {
		p.keepAliveTimer.Stop()
		p.keepAliveTimer = nil
	}
}

// refreshDeadline pushes the death deadline back after inbound traffic.
func (p *ClientProxy) refreshDeadline() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastTraffic = p.clock.Now()
	if p.deathTimer != nil {
		p.deathTimer.Reset(beatsUntilDeath * p.rate)
	}
}

func (p *ClientProxy) flatline(generation uint64) {
	p.mu.Lock()
	if generation != p.generation {
		p.mu.Unlock()
		return
	}
	silence := beatsUntilDeath * p.rate
	// Traffic that reset the timer after it fired keeps the screen.
	if p.clock.Now().Sub(p.lastTraffic) < silence {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.disconnect(&stream.Error{
		Kind: stream.Timeout,
		Op:   "heartbeat",
		Err:  fmt.Errorf("no traffic from %q for %v", p.name, silence),
	})
}

func (p *ClientProxy) sendKeepAlive(generation uint64) {
	p.mu.Lock()
	current := generation == p.generation
	p.mu.Unlock()
	if !current {
		return
	}
	if err := p.send(protocol.MsgCKeepAlive); err != nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if generation == p.generation && p.keepAliveTimer != nil {
		p.keepAliveTimer.Reset(p.rate)
	}
}
