// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/deskshare/event"
	"github.com/bureau-foundation/deskshare/lib/clipstore"
	"github.com/bureau-foundation/deskshare/lib/config"
	"github.com/bureau-foundation/deskshare/lib/version"
	"github.com/bureau-foundation/deskshare/server"
	"github.com/bureau-foundation/deskshare/status"
)

// shutdownTimeout bounds the goodbyes to every screen on exit.
const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	listen      string
	adminSocket string
	selection   bool
	showVersion bool
}

func run(args []string) error {
	var opts options
	flagSet := pflag.NewFlagSet("deskshare-server", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to config file (default: $"+config.EnvironmentVariable+", else built-in defaults)")
	flagSet.StringVar(&opts.listen, "listen", "", "address screens connect to (overrides the config file)")
	flagSet.StringVar(&opts.adminSocket, "admin-socket", "", "admin socket path (overrides the config file)")
	flagSet.BoolVar(&opts.selection, "selection", false, "clipboard: read the primary selection instead of the clipboard")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	flagSet.SortFlags = false
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if opts.showVersion {
		fmt.Printf("deskshare-server %s\n", version.Full())
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	if command := flagSet.Args(); len(command) > 0 {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runAdminCommand(ctx, cfg.AdminSocket, command, opts, os.Stdout)
	}
	return serve(cfg)
}

func loadConfig(opts options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.listen != "" {
		cfg.Listen = opts.listen
	}
	if opts.adminSocket != "" {
		cfg.AdminSocket = opts.adminSocket
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func serve(cfg *config.Config) error {
	level, _ := cfg.Level()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("starting deskshare-server", "version", version.Info())
	logger.Info("loaded configuration",
		"listen", cfg.Listen,
		"admin_socket", cfg.AdminSocket,
		"screens", len(cfg.Screens),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue := event.NewQueue(event.NewRegistry(), logger)
	statuses := status.NewBroadcaster(time.Now)
	srv, err := server.New(server.Config{
		Queue:            queue,
		AllowedScreens:   cfg.Screens,
		HandshakeTimeout: cfg.Timeouts.Handshake,
		CloseTimeout:     cfg.Timeouts.Close,
		KeepAliveRate:    cfg.Timeouts.KeepAlive,
		UserTimeout:      cfg.Timeouts.TCPUser,
		Clipboards:       clipstore.New(cfg.Clipboard.MaxBytes),
		Status:           statuses,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Listen, err)
	}

	// The queue outlives the server so the disconnects from Shutdown
	// are still delivered.
	queueCtx, stopQueue := context.WithCancel(context.Background())
	queueDone := make(chan struct{})
	go func() {
		defer close(queueDone)
		_ = queue.Run(queueCtx)
	}()
	defer func() {
		stopQueue()
		<-queueDone
	}()

	go logStatus(ctx, logger, statuses)

	errs := make(chan error, 2)
	running := 1
	go func() {
		errs <- srv.Serve(ctx, listener)
	}()
	if cfg.AdminSocket != "" {
		running++
		admin := server.NewAdminServer(srv, cfg.AdminSocket, logger)
		go func() {
			errs <- admin.Serve(ctx)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case runErr = <-errs:
		// Before cancellation only a failed listener or socket returns.
		running--
		logger.Error("server stopped early", "error", runErr)
		if runErr == nil {
			runErr = errors.New("server stopped early")
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	for ; running > 0; running-- {
		if err := <-errs; err != nil && runErr == nil {
			runErr = err
		}
	}
	logger.Info("shutdown complete")
	return runErr
}

// logStatus reports screen status changes until ctx is done.
func logStatus(ctx context.Context, logger *slog.Logger, statuses *status.Broadcaster) {
	updates, unsubscribe := statuses.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			attrs := []any{"screen", update.Sender, "status", update.Code.String()}
			if update.Message != "" {
				attrs = append(attrs, "message", update.Message)
			}
			logger.Debug("screen status", attrs...)
		}
	}
}
