// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package status

import (
	"fmt"
	"sync"
	"time"
)

// Code is a coarse connection status.
type Code int

const (
	// Connecting means the handshake is done and the screen has not yet
	// reported its shape.
	Connecting Code = iota + 1

	// Ready means the screen is attached and can receive input.
	Ready

	// Disconnected means the session is over.
	Disconnected

	// Failed reports an error. The session may or may not survive it;
	// a Disconnected update follows if it does not.
	Failed
)

// String returns the status name.
func (c Code) String() string {
	switch c {
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Disconnected:
		return "disconnected"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Update is one status report.
type Update struct {
	// Sender names the reporting party, normally a screen name.
	Sender  string
	Code    Code
	Message string
	Time    time.Time
}

// Publisher accepts status updates. Implementations must not block.
type Publisher interface {
	PostStatus(sender string, code Code, message string)
}

// Nop is a Publisher that discards updates.
type Nop struct{}

// PostStatus does nothing.
func (Nop) PostStatus(string, Code, string) {}

// subscriberBuffer is the channel capacity of each subscription.
const subscriberBuffer = 64

// Broadcaster is a Publisher that fans updates out to subscribers. The
// zero value is not usable; call NewBroadcaster.
type Broadcaster struct {
	now func() time.Time

	mutex       sync.Mutex
	subscribers map[chan Update]struct{}
	last        map[string]Update
}

// NewBroadcaster returns a Broadcaster stamping updates with now, or
// time.Now when now is nil.
func NewBroadcaster(now func() time.Time) *Broadcaster {
	if now == nil {
		now = time.Now
	}
	return &Broadcaster{
		now:         now,
		subscribers: make(map[chan Update]struct{}),
		last:        make(map[string]Update),
	}
}

// PostStatus records the update and offers it to every subscriber. A
// subscriber whose buffer is full misses the update.
func (b *Broadcaster) PostStatus(sender string, code Code, message string) {
	update := Update{Sender: sender, Code: code, Message: message, Time: b.now()}

	// Held across the sends: unsubscribe closes channels under it.
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.last[sender] = update
	for subscriber := range b.subscribers {
		select {
		case subscriber <- update:
		default:
		}
	}
}

// Subscribe returns a channel of future updates and a function that
// ends the subscription and closes the channel.
func (b *Broadcaster) Subscribe() (<-chan Update, func()) {
	channel := make(chan Update, subscriberBuffer)
	b.mutex.Lock()
	b.subscribers[channel] = struct{}{}
	b.mutex.Unlock()

	var once sync.Once
	return channel, func() {
		once.Do(func() {
			b.mutex.Lock()
			delete(b.subscribers, channel)
			b.mutex.Unlock()
			close(channel)
		})
	}
}

// Last returns the most recent update from sender.
func (b *Broadcaster) Last(sender string) (Update, bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	update, ok := b.last[sender]
	return update, ok
}

// Snapshot returns the most recent update from every sender.
func (b *Broadcaster) Snapshot() []Update {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	updates := make([]Update, 0, len(b.last))
	for _, update := range b.last {
		updates = append(updates, update)
	}
	return updates
}
