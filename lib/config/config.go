// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file when no --config flag is
// given.
const EnvironmentVariable = "DESKSHARE_CONFIG"

// Config is the server configuration.
type Config struct {
	// Listen is the TCP address screens connect to.
	// Default: :24800
	Listen string `yaml:"listen"`

	// AdminSocket is the Unix socket for the admin commands. Empty
	// disables the admin socket.
	// Default: ${XDG_RUNTIME_DIR:-/tmp}/deskshare.sock
	AdminSocket string `yaml:"admin_socket"`

	// Screens lists the screen names allowed to connect. Empty allows
	// any name.
	Screens []string `yaml:"screens"`

	Timeouts  TimeoutsConfig  `yaml:"timeouts"`
	Clipboard ClipboardConfig `yaml:"clipboard"`

	// LogLevel is one of debug, info, warn, error.
	// Default: info
	LogLevel string `yaml:"log_level"`
}

// TimeoutsConfig holds the session timers. Values are Go durations
// ("30s", "1500ms").
type TimeoutsConfig struct {
	// Handshake bounds the wait for a screen's hello back.
	// Default: 30s
	Handshake time.Duration `yaml:"handshake"`

	// Close bounds a goodbye message and every flush.
	// Default: 3s
	Close time.Duration `yaml:"close"`

	// KeepAlive is the keep-alive period for 1.3 screens. A screen is
	// dropped after three periods of silence.
	// Default: 3s
	KeepAlive time.Duration `yaml:"keep_alive"`

	// TCPUser sets TCP_USER_TIMEOUT on screen connections. Zero keeps
	// the kernel default.
	TCPUser time.Duration `yaml:"tcp_user"`
}

// ClipboardConfig sizes the clipboard store.
type ClipboardConfig struct {
	// MaxBytes bounds the compressed bytes kept for all screens.
	// Default: 64 MiB
	MaxBytes int64 `yaml:"max_bytes"`
}

// Default returns the configuration used for fields the file omits.
func Default() *Config {
	return &Config{
		Listen:      ":24800",
		AdminSocket: "${XDG_RUNTIME_DIR:-/tmp}/deskshare.sock",
		Timeouts: TimeoutsConfig{
			Handshake: 30 * time.Second,
			Close:     3 * time.Second,
			KeepAlive: 3 * time.Second,
		},
		Clipboard: ClipboardConfig{
			MaxBytes: 64 * 1024 * 1024,
		},
		LogLevel: "info",
	}
}

// Load loads the file named by DESKSHARE_CONFIG. Unlike LoadFile it
// accepts an unset variable and returns the defaults, so the server
// runs without any file at all.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads path over the defaults. Unknown keys are errors, so a
// misspelt setting does not silently keep its default.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := decodeStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.expandVariables()
	return cfg, nil
}

func decodeStrict(data []byte, out any) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			// An empty file keeps every default.
			return nil
		}
		return err
	}
	var extra any
	if err := decoder.Decode(&extra); err == nil {
		return errors.New("multiple YAML documents are not allowed")
	} else if !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) expandVariables() {
	c.AdminSocket = expandVars(c.AdminSocket)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		errs = append(errs, fmt.Errorf("listen %q: %w", c.Listen, err))
	}
	if c.Timeouts.Handshake <= 0 {
		errs = append(errs, errors.New("timeouts.handshake must be positive"))
	}
	if c.Timeouts.Close <= 0 {
		errs = append(errs, errors.New("timeouts.close must be positive"))
	}
	if c.Timeouts.KeepAlive <= 0 {
		errs = append(errs, errors.New("timeouts.keep_alive must be positive"))
	}
	if c.Timeouts.TCPUser < 0 {
		errs = append(errs, errors.New("timeouts.tcp_user must not be negative"))
	}
	if c.Clipboard.MaxBytes <= 0 {
		errs = append(errs, errors.New("clipboard.max_bytes must be positive"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[string]bool, len(c.Screens))
	for _, name := range c.Screens {
		switch {
		case name == "":
			errs = append(errs, errors.New("screens: empty name"))
		case seen[name]:
			errs = append(errs, fmt.Errorf("screens: %q listed twice", name))
		}
		seen[name] = true
	}

	return errors.Join(errs...)
}

// Level returns LogLevel as a slog level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level %q: want debug, info, warn or error", c.LogLevel)
	}
	return level, nil
}
