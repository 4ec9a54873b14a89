// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/deskshare/clientproxy"
	"github.com/bureau-foundation/deskshare/event"
	"github.com/bureau-foundation/deskshare/lib/codec"
	"github.com/bureau-foundation/deskshare/lib/testutil"
	"github.com/bureau-foundation/deskshare/protocol"
)

// startAdmin serves the fixture's admin socket until the test ends.
func startAdmin(t *testing.T, f *fixture) string {
	t.Helper()
	socketPath := filepath.Join(testutil.SocketDir(t), "admin.sock")
	admin := NewAdminServer(f.server, socketPath, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := admin.Serve(ctx); err != nil {
			t.Errorf("admin Serve: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	waitForSocket(t, socketPath)
	return socketPath
}

// waitForSocket polls until the socket file exists. Bounded by the
// test context.
func waitForSocket(t *testing.T, path string) {
	t.Helper()
	for {
		if _, err := os.Stat(path); err == nil {
			return
		}
		if t.Context().Err() != nil {
			t.Fatalf("socket %s did not appear before test context expired", path)
		}
		runtime.Gosched()
	}
}

func call(t *testing.T, socketPath string, request AdminRequest, result any) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	return AdminCall(ctx, socketPath, request, result)
}

func TestAdminListScreens(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	socketPath := startAdmin(t, f)
	alice, _ := f.connect("alice", protocol.Version1_3)
	bob, _ := f.connect("bob", protocol.Version1_1)

	var screens []ScreenInfo
	if err := call(t, socketPath, AdminRequest{Action: ActionListScreens}, &screens); err != nil {
		t.Fatalf("list-screens: %v", err)
	}
	if len(screens) != 2 {
		t.Fatalf("list-screens returned %d screens, want 2", len(screens))
	}
	for i, want := range []*clientproxy.ClientProxy{alice, bob} {
		got := screens[i]
		if got.Name != want.Name() {
			t.Errorf("screen %d is %q, want %q", i, got.Name, want.Name())
		}
		if got.Protocol != want.Version().String() {
			t.Errorf("%s protocol = %q, want %q", got.Name, got.Protocol, want.Version())
		}
		if got.State != "ready" {
			t.Errorf("%s state = %q, want ready", got.Name, got.State)
		}
		if got.Target != want.EventTarget().String() {
			t.Errorf("%s target = %q, want %q", got.Name, got.Target, want.EventTarget())
		}
		if got.Width != 1280 || got.Height != 800 {
			t.Errorf("%s is %dx%d, want 1280x800", got.Name, got.Width, got.Height)
		}
	}
}

func TestAdminClipboard(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	socketPath := startAdmin(t, f)

	changed := make(chan clientproxy.ClipboardInfo, 4)
	f.queue.AddHandler(f.server.Events().ClipboardChanged(), event.AnyTarget, func(e event.Event) {
		changed <- e.Payload.(clientproxy.ClipboardInfo)
	})

	_, screen := f.connect("alice", protocol.Version1_3)
	content := protocol.Clipboard{Formats: map[protocol.ClipboardFormat][]byte{
		protocol.FormatText: []byte("quarterly numbers"),
		protocol.FormatHTML: []byte("<b>quarterly numbers</b>"),
	}}
	screen.send(protocol.MsgDClipboard, protocol.ClipboardSelection, uint32(7), content.Marshal())
	info := testutil.RequireReceive(t, changed, waitTimeout, "waiting for clipboardChanged")

	var result ClipboardContent
	request := AdminRequest{Action: ActionClipboard, Screen: "alice", Clipboard: uint8(protocol.ClipboardSelection)}
	if err := call(t, socketPath, request, &result); err != nil {
		t.Fatalf("clipboard: %v", err)
	}
	if result.Text != "quarterly numbers" || result.HTML != "<b>quarterly numbers</b>" {
		t.Errorf("clipboard content = %q / %q", result.Text, result.HTML)
	}
	if result.Sequence != 7 {
		t.Errorf("sequence = %d, want 7", result.Sequence)
	}
	if result.Digest != info.Digest.String() {
		t.Errorf("digest = %s, want %s", result.Digest, info.Digest)
	}

	request.Clipboard = uint8(protocol.ClipboardClipboard)
	if err := call(t, socketPath, request, &result); err == nil {
		t.Error("clipboard the screen never sent was returned")
	}
}

func TestAdminDisconnectScreen(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	socketPath := startAdmin(t, f)
	_, screen := f.connect("alice", protocol.Version1_0)

	request := AdminRequest{Action: ActionDisconnectScreen, Screen: "alice"}
	if err := call(t, socketPath, request, nil); err != nil {
		t.Fatalf("disconnect-screen: %v", err)
	}
	screen.expect("CBYE")
	screen.expectHangUp()

	testutil.RequireReceive(t, f.disconnected, waitTimeout, "waiting for disconnected")
	f.sync()
	if _, ok := f.server.Client("alice"); ok {
		t.Error("alice is still in the table")
	}
}

func TestAdminStatus(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	socketPath := startAdmin(t, f)
	f.connect("alice", protocol.Version1_2)

	var entries []StatusEntry
	if err := call(t, socketPath, AdminRequest{Action: ActionStatus}, &entries); err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(entries) != 1 || entries[0].Screen != "alice" || entries[0].Status != "ready" {
		t.Errorf("status = %+v, want alice ready", entries)
	}
}

func TestAdminErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	socketPath := startAdmin(t, f)

	tests := []struct {
		name    string
		request AdminRequest
		want    string
	}{
		{"missing action", AdminRequest{}, "missing required field: action"},
		{"unknown action", AdminRequest{Action: "reboot"}, `unknown action "reboot"`},
		{"disconnect without screen", AdminRequest{Action: ActionDisconnectScreen}, "missing required field: screen"},
		{"disconnect absent screen", AdminRequest{Action: ActionDisconnectScreen, Screen: "carol"}, "not connected"},
		{"clipboard of absent screen", AdminRequest{Action: ActionClipboard, Screen: "carol"}, "not connected"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := call(t, socketPath, test.request, nil)
			if err == nil {
				t.Fatal("call succeeded")
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("error %q does not mention %q", err, test.want)
			}
		})
	}
}

func TestAdminWireKeys(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		value any
		want  []string
	}{
		{
			name:  "request",
			value: AdminRequest{Action: ActionClipboard, Screen: "alice", Clipboard: 1},
			want:  []string{"action", "clipboard", "screen"},
		},
		{
			name:  "request omits empty fields",
			value: AdminRequest{Action: ActionStatus},
			want:  []string{"action"},
		},
		{
			name:  "screen",
			value: ScreenInfo{Name: "alice"},
			want:  []string{"height", "name", "protocol", "state", "target", "width", "x", "y"},
		},
		{
			name:  "clipboard",
			value: ClipboardContent{Screen: "alice", Text: "hello"},
			want:  []string{"clipboard", "digest", "screen", "sequence", "text"},
		},
		{
			name:  "status",
			value: StatusEntry{Screen: "alice", Status: "ready", Time: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
			want:  []string{"screen", "status", "time"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			data, err := codec.Marshal(test.value)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var fields map[string]any
			if err := codec.Unmarshal(data, &fields); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if got := slices.Sorted(maps.Keys(fields)); !slices.Equal(got, test.want) {
				t.Errorf("keys = %v, want %v", got, test.want)
			}
		})
	}
}
