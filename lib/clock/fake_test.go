// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	clock := Fake(epoch)
	clock.Advance(5 * time.Second)
	want := epoch.Add(5 * time.Second)
	if got := clock.Now(); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeClockAfter(t *testing.T) {
	clock := Fake(epoch)
	channel := clock.After(3 * time.Second)

	clock.Advance(2 * time.Second)
	select {
	case <-channel:
		t.Fatal("After fired before its deadline")
	default:
	}

	clock.Advance(time.Second)
	select {
	case <-channel:
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeClockAfterFuncOrder(t *testing.T) {
	clock := Fake(epoch)
	var order []int
	clock.AfterFunc(2*time.Second, func() { order = append(order, 2) })
	clock.AfterFunc(time.Second, func() { order = append(order, 1) })

	clock.Advance(5 * time.Second)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("callbacks ran in order %v, want [1 2]", order)
	}
}

func TestFakeClockTimerStop(t *testing.T) {
	clock := Fake(epoch)
	fired := false
	timer := clock.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("Stop on a pending timer returned false")
	}
	if timer.Stop() {
		t.Fatal("second Stop returned true")
	}
	clock.Advance(time.Minute)
	if fired {
		t.Fatal("stopped timer fired")
	}
}

func TestFakeClockTimerReset(t *testing.T) {
	clock := Fake(epoch)
	fired := 0
	timer := clock.AfterFunc(time.Second, func() { fired++ })

	clock.Advance(500 * time.Millisecond)
	timer.Reset(time.Second)
	clock.Advance(700 * time.Millisecond)
	if fired != 0 {
		t.Fatal("timer fired before its reset deadline")
	}
	clock.Advance(300 * time.Millisecond)
	if fired != 1 {
		t.Fatalf("fired %d times, want 1", fired)
	}
	if timer.Reset(time.Second) {
		t.Fatal("Reset after firing reported the timer as pending")
	}
	clock.Advance(time.Second)
	if fired != 2 {
		t.Fatalf("re-armed timer fired %d times in total, want 2", fired)
	}
}

func TestFakeClockCallbackCanRearm(t *testing.T) {
	clock := Fake(epoch)
	count := 0
	var timer *Timer
	timer = clock.AfterFunc(time.Second, func() {
		count++
		timer.Reset(time.Second)
	})

	clock.Advance(time.Second)
	clock.Advance(time.Second)
	if count != 2 {
		t.Fatalf("callback ran %d times, want 2", count)
	}
	if clock.PendingTimers() != 1 {
		t.Fatalf("PendingTimers() = %d, want 1", clock.PendingTimers())
	}
}

func TestFakeClockWaitForTimers(t *testing.T) {
	clock := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-clock.After(time.Second)
		close(done)
	}()

	clock.WaitForTimers(1)
	clock.Advance(time.Second)
	<-done
}
