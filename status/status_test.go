// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package status

import (
	"testing"
	"time"

	"github.com/bureau-foundation/deskshare/lib/testutil"
)

func fixedTime() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestBroadcasterDelivers(t *testing.T) {
	t.Parallel()
	broadcaster := NewBroadcaster(fixedTime)
	updates, cancel := broadcaster.Subscribe()
	defer cancel()

	broadcaster.PostStatus("alice", Ready, "")

	update := testutil.RequireReceive(t, updates, 5*time.Second, "waiting for update")
	if update.Sender != "alice" || update.Code != Ready {
		t.Fatalf("update = %+v, want alice ready", update)
	}
	if !update.Time.Equal(fixedTime()) {
		t.Errorf("Time = %v, want %v", update.Time, fixedTime())
	}
}

func TestBroadcasterNeverBlocks(t *testing.T) {
	t.Parallel()
	broadcaster := NewBroadcaster(fixedTime)
	updates, cancel := broadcaster.Subscribe()
	defer cancel()

	for range subscriberBuffer + 10 {
		broadcaster.PostStatus("alice", Connecting, "")
	}
	broadcaster.PostStatus("alice", Disconnected, "bye")

	if len(updates) != subscriberBuffer {
		t.Fatalf("buffered %d updates, want %d", len(updates), subscriberBuffer)
	}
	last, ok := broadcaster.Last("alice")
	if !ok || last.Code != Disconnected || last.Message != "bye" {
		t.Fatalf("Last = %+v, %v; want the dropped disconnect", last, ok)
	}
}

func TestBroadcasterCancel(t *testing.T) {
	t.Parallel()
	broadcaster := NewBroadcaster(fixedTime)
	updates, cancel := broadcaster.Subscribe()
	cancel()
	cancel()

	broadcaster.PostStatus("bob", Failed, "boom")
	if _, open := <-updates; open {
		t.Fatal("received on a cancelled subscription")
	}
	if got := len(broadcaster.Snapshot()); got != 1 {
		t.Fatalf("Snapshot has %d entries, want 1", got)
	}
}
