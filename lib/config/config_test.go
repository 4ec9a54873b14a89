// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "deskshare.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Listen != ":24800" {
		t.Errorf("expected listen=:24800, got %s", cfg.Listen)
	}
	if cfg.Timeouts.Handshake != 30*time.Second {
		t.Errorf("expected handshake=30s, got %s", cfg.Timeouts.Handshake)
	}
	if cfg.Timeouts.Close != 3*time.Second || cfg.Timeouts.KeepAlive != 3*time.Second {
		t.Errorf("expected close=3s keep_alive=3s, got %s %s", cfg.Timeouts.Close, cfg.Timeouts.KeepAlive)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoadWithoutVariable(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.AdminSocket != "/run/user/1000/deskshare.sock" {
		t.Errorf("expected admin socket under XDG_RUNTIME_DIR, got %s", cfg.AdminSocket)
	}
}

func TestLoadWithVariable(t *testing.T) {
	configPath := writeConfig(t, `
listen: 127.0.0.1:24801
screens: [alice, bob]
`)
	t.Setenv(EnvironmentVariable, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Listen != "127.0.0.1:24801" {
		t.Errorf("expected listen=127.0.0.1:24801, got %s", cfg.Listen)
	}
	if !slices.Equal(cfg.Screens, []string{"alice", "bob"}) {
		t.Errorf("expected screens=[alice bob], got %v", cfg.Screens)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")
	configPath := writeConfig(t, `
admin_socket: ${XDG_RUNTIME_DIR:-/var/run}/desk-admin.sock
timeouts:
  handshake: 10s
  keep_alive: 1500ms
  tcp_user: 20s
clipboard:
  max_bytes: 1048576
log_level: debug
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.AdminSocket != "/var/run/desk-admin.sock" {
		t.Errorf("expected admin_socket=/var/run/desk-admin.sock, got %s", cfg.AdminSocket)
	}
	if cfg.Timeouts.Handshake != 10*time.Second {
		t.Errorf("expected handshake=10s, got %s", cfg.Timeouts.Handshake)
	}
	if cfg.Timeouts.KeepAlive != 1500*time.Millisecond {
		t.Errorf("expected keep_alive=1.5s, got %s", cfg.Timeouts.KeepAlive)
	}
	if cfg.Timeouts.TCPUser != 20*time.Second {
		t.Errorf("expected tcp_user=20s, got %s", cfg.Timeouts.TCPUser)
	}
	// Omitted keys keep their defaults.
	if cfg.Timeouts.Close != 3*time.Second {
		t.Errorf("expected close=3s, got %s", cfg.Timeouts.Close)
	}
	if cfg.Listen != ":24800" {
		t.Errorf("expected listen=:24800, got %s", cfg.Listen)
	}
	if cfg.Clipboard.MaxBytes != 1<<20 {
		t.Errorf("expected max_bytes=1048576, got %d", cfg.Clipboard.MaxBytes)
	}
	if level, err := cfg.Level(); err != nil || level != slog.LevelDebug {
		t.Errorf("Level() = %v, %v; want debug", level, err)
	}
}

func TestLoadFileEmpty(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Listen != ":24800" {
		t.Errorf("expected defaults from an empty file, got listen=%s", cfg.Listen)
	}
}

func TestLoadFileRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "listne: :24800\n", "listne"},
		{"bad duration", "timeouts:\n  close: soon\n", "soon"},
		{"two documents", "listen: :1\n---\nlisten: :2\n", "multiple YAML documents"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("LoadFile succeeded")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile of a missing file succeeded")
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("DESKSHARE_TEST_PRESENT", "value")
	t.Setenv("DESKSHARE_TEST_EMPTY", "")

	tests := []struct {
		input    string
		expected string
	}{
		{"${DESKSHARE_TEST_PRESENT}/admin.sock", "value/admin.sock"},
		{"${DESKSHARE_TEST_EMPTY:-default}", "default"},
		{"${DESKSHARE_TEST_PRESENT:-default}", "value"},
		{"${DESKSHARE_TEST_EMPTY}", ""},
		{"no variables here", "no variables here"},
	}
	for _, tt := range tests {
		if result := expandVars(tt.input); result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "listen without port",
			modify:  func(c *Config) { c.Listen = "localhost" },
			wantErr: true,
		},
		{
			name:    "zero handshake timeout",
			modify:  func(c *Config) { c.Timeouts.Handshake = 0 },
			wantErr: true,
		},
		{
			name:    "negative keep-alive",
			modify:  func(c *Config) { c.Timeouts.KeepAlive = -time.Second },
			wantErr: true,
		},
		{
			name:    "zero clipboard limit",
			modify:  func(c *Config) { c.Clipboard.MaxBytes = 0 },
			wantErr: true,
		},
		{
			name:    "unknown log level",
			modify:  func(c *Config) { c.LogLevel = "chatty" },
			wantErr: true,
		},
		{
			name:    "duplicate screen",
			modify:  func(c *Config) { c.Screens = []string{"alice", "bob", "alice"} },
			wantErr: true,
		},
		{
			name:    "disabled admin socket",
			modify:  func(c *Config) { c.AdminSocket = "" },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
