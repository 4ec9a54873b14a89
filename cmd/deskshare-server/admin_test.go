// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/bureau-foundation/deskshare/event"
	"github.com/bureau-foundation/deskshare/lib/testutil"
	"github.com/bureau-foundation/deskshare/protocol"
	"github.com/bureau-foundation/deskshare/server"
)

func TestAdminRequest(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		command []string
		opts    options
		want    server.AdminRequest
		wantErr string
	}{
		{
			name:    "list",
			command: []string{"list-screens"},
			want:    server.AdminRequest{Action: server.ActionListScreens},
		},
		{
			name:    "clipboard selection",
			command: []string{"clipboard", "alice"},
			opts:    options{selection: true},
			want:    server.AdminRequest{Action: server.ActionClipboard, Screen: "alice", Clipboard: uint8(protocol.ClipboardSelection)},
		},
		{
			name:    "disconnect",
			command: []string{"disconnect-screen", "bob"},
			want:    server.AdminRequest{Action: server.ActionDisconnectScreen, Screen: "bob"},
		},
		{
			name:    "disconnect without name",
			command: []string{"disconnect-screen"},
			wantErr: "usage: disconnect-screen NAME",
		},
		{
			name:    "status with argument",
			command: []string{"status", "alice"},
			wantErr: "takes no arguments",
		},
		{
			name:    "selection outside clipboard",
			command: []string{"list-screens"},
			opts:    options{selection: true},
			wantErr: "--selection",
		},
		{
			name:    "unknown",
			command: []string{"reboot"},
			wantErr: `unknown command "reboot"`,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got, err := adminRequest(test.command, test.opts)
			if test.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), test.wantErr) {
					t.Fatalf("adminRequest error = %v, want %q", err, test.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("adminRequest: %v", err)
			}
			if got != test.want {
				t.Errorf("adminRequest = %+v, want %+v", got, test.want)
			}
		})
	}
}

func TestRunAdminCommand(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	queue := event.NewQueue(event.NewRegistry(), logger)
	srv, err := server.New(server.Config{Queue: queue, Logger: logger})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	socketPath := filepath.Join(testutil.SocketDir(t), "admin.sock")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = server.NewAdminServer(srv, socketPath, logger).Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	for {
		if _, err := os.Stat(socketPath); err == nil {
			break
		}
		if t.Context().Err() != nil {
			t.Fatal("admin socket did not appear")
		}
		runtime.Gosched()
	}

	var out bytes.Buffer
	if err := runAdminCommand(context.Background(), socketPath, []string{"list-screens"}, options{}, &out); err != nil {
		t.Fatalf("list-screens: %v", err)
	}
	var screens []any
	if err := json.Unmarshal(out.Bytes(), &screens); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if len(screens) != 0 {
		t.Errorf("list-screens = %v, want none", screens)
	}

	err = runAdminCommand(context.Background(), socketPath, []string{"disconnect-screen", "carol"}, options{}, &out)
	if err == nil || !strings.Contains(err.Error(), "not connected") {
		t.Errorf("disconnect-screen carol = %v, want not connected", err)
	}

	if err := runAdminCommand(context.Background(), "", []string{"status"}, options{}, &out); err == nil {
		t.Error("command without an admin socket succeeded")
	}
}
