// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/deskshare/clientproxy"
	"github.com/bureau-foundation/deskshare/event"
	"github.com/bureau-foundation/deskshare/lib/clipstore"
	"github.com/bureau-foundation/deskshare/lib/clock"
	"github.com/bureau-foundation/deskshare/protocol"
	"github.com/bureau-foundation/deskshare/status"
	"github.com/bureau-foundation/deskshare/stream"
)

// DefaultHandshakeTimeout bounds the wait for a screen's hello back.
const DefaultHandshakeTimeout = 30 * time.Second

var (
	// ErrNameInUse rejects a screen whose name is already connected.
	ErrNameInUse = errors.New("server: screen name already in use")

	// ErrUnknownScreen rejects a screen whose name is not configured.
	ErrUnknownScreen = errors.New("server: screen is not configured")

	// ErrNotConnected is returned for operations on absent screens.
	ErrNotConnected = errors.New("server: screen is not connected")

	// ErrServerClosed is returned by Accept after Shutdown.
	ErrServerClosed = errors.New("server: shut down")
)

// Config holds the server's settings and collaborators.
type Config struct {
	// Queue carries proxy events. Required; its Run loop must be
	// running for disconnected screens to leave the table.
	Queue *event.Queue

	// AllowedScreens restricts which names may connect. Empty allows
	// any name.
	AllowedScreens []string

	// HandshakeTimeout bounds the hello exchange. Default
	// DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// CloseTimeout bounds close messages and every flush. Default
	// clientproxy.DefaultCloseTimeout.
	CloseTimeout time.Duration

	// KeepAliveRate is the 1.3 keep-alive period. Default
	// clientproxy.DefaultKeepAliveRate.
	KeepAliveRate time.Duration

	// UserTimeout sets TCP_USER_TIMEOUT on accepted connections. Zero
	// leaves the kernel default.
	UserTimeout time.Duration

	// Clipboards is shared by all proxies. Created when nil.
	Clipboards *clipstore.Store

	// Status receives proxy status and backs the admin status action.
	// Optional.
	Status *status.Broadcaster

	Clock  clock.Clock
	Logger *slog.Logger
}

// Server owns the connected screens.
type Server struct {
	config Config
	events *clientproxy.Events
	logger *slog.Logger

	// ctx bounds every proxy's reader; Shutdown cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	clients   map[string]*clientproxy.ClientProxy
	listeners map[net.Listener]struct{}
	closed    bool

	// readers counts running proxy readers.
	readers sync.WaitGroup
}

// New returns a server with no screens.
func New(config Config) (*Server, error) {
	if config.Queue == nil {
		return nil, errors.New("server: queue is required")
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if config.CloseTimeout <= 0 {
		config.CloseTimeout = clientproxy.DefaultCloseTimeout
	}
	if config.KeepAliveRate <= 0 {
		config.KeepAliveRate = clientproxy.DefaultKeepAliveRate
	}
	if config.Clipboards == nil {
		config.Clipboards = clipstore.New(0)
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:    config,
		events:    clientproxy.NewEvents(config.Queue.Registry()),
		logger:    config.Logger,
		ctx:       ctx,
		cancel:    cancel,
		clients:   make(map[string]*clientproxy.ClientProxy),
		listeners: make(map[net.Listener]struct{}),
	}, nil
}

// Events returns the proxy event types, for subscribing on the queue.
func (s *Server) Events() *clientproxy.Events { return s.events }

// Clipboards returns the shared clipboard store.
func (s *Server) Clipboards() *clipstore.Store { return s.config.Clipboards }

// Serve accepts connections on listener until ctx is cancelled or
// Shutdown is called. Each connection is handshaken on its own
// goroutine. Serve waits for handshakes in progress before returning.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrServerClosed
	}
	s.listeners[listener] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.listeners, listener)
		s.mu.Unlock()
	}()

	stop := context.AfterFunc(ctx, func() {
		listener.Close()
	})
	defer stop()

	s.logger.Info("listening for screens", "address", listener.Addr().String())

	var handshakes sync.WaitGroup
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}
		handshakes.Add(1)
		go func() {
			defer handshakes.Done()
			s.serveConn(ctx, conn)
		}()
	}
	handshakes.Wait()
	return nil
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	logger := s.logger.With("remote", conn.RemoteAddr().String())
	wrapped, err := stream.NewConn(conn, stream.ConnOptions{
		FlushTimeout: s.config.CloseTimeout,
		UserTimeout:  s.config.UserTimeout,
	})
	if err != nil {
		logger.Warn("setting TCP user timeout", "error", err)
	}
	proxy, err := s.Accept(ctx, wrapped)
	if err != nil {
		if stream.IsExpectedClose(err) {
			logger.Debug("connection closed during handshake", "error", err)
		} else {
			logger.Warn("handshake failed", "error", err)
		}
		return
	}
	logger.Info("screen connected", "screen", proxy.Name(), "protocol", proxy.Version().String())
}

// Accept runs the hello exchange on st, starts the new proxy's reader
// and waits for the screen to report its shape. Only a Ready proxy is
// added to the table and returned. The handshake timeout covers both
// phases. On failure the screen has been told why where the protocol
// allows, st is closed, no proxy event has been published, and the
// error matches ErrNameInUse, ErrUnknownScreen, ErrServerClosed,
// clientproxy.ErrNotReady, a *protocol.Error or a *stream.Error.
func (s *Server) Accept(ctx context.Context, st stream.Stream) (*clientproxy.ClientProxy, error) {
	if s.isClosed() {
		st.Close()
		return nil, ErrServerClosed
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.HandshakeTimeout)
	defer cancel()

	version, name, err := s.exchangeHello(ctx, st)
	if err != nil {
		var protocolErr *protocol.Error
		if errors.As(err, &protocolErr) {
			s.reject(ctx, st, protocol.MsgEBad)
		}
		st.Close()
		return nil, err
	}

	if !clientproxy.Supports(version) {
		s.reject(ctx, st, protocol.MsgEIncompatible, protocol.Current.Major, protocol.Current.Minor)
		st.Close()
		return nil, &protocol.Error{
			Kind:   protocol.VersionMismatch,
			Detail: fmt.Sprintf("screen %q speaks %s, server supports %s to %s", name, version, protocol.Version1_0, protocol.Current),
		}
	}

	if !s.allowed(name) {
		s.reject(ctx, st, protocol.MsgEUnknown)
		st.Close()
		return nil, fmt.Errorf("%w: %q", ErrUnknownScreen, name)
	}

	// Refused before a proxy exists so the live screen's status stays
	// put. add repeats the check for screens racing through together.
	if s.nameInUse(name) {
		s.reject(ctx, st, protocol.MsgEBusy)
		st.Close()
		return nil, fmt.Errorf("%w: %q", ErrNameInUse, name)
	}

	var publisher status.Publisher = status.Nop{}
	if s.config.Status != nil {
		publisher = s.config.Status
	}
	proxy, err := clientproxy.New(clientproxy.Config{
		Name:          name,
		Stream:        st,
		Version:       version,
		Queue:         s.config.Queue,
		Events:        s.events,
		Clipboards:    s.config.Clipboards,
		Status:        publisher,
		Clock:         s.config.Clock,
		Logger:        s.logger,
		CloseTimeout:  s.config.CloseTimeout,
		KeepAliveRate: s.config.KeepAliveRate,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	// Subscribed before the reader starts, so a disconnect right after
	// ready is never dispatched without it.
	s.config.Queue.AddHandler(s.events.Disconnected(), proxy.EventTarget(), func(event.Event) {
		s.remove(proxy)
	})
	s.readers.Add(1)
	go func() {
		defer s.readers.Done()
		err := proxy.Run(s.ctx)
		if err != nil && !stream.IsExpectedClose(err) && !errors.Is(err, context.Canceled) {
			s.logger.Debug("screen reader stopped", "screen", name, "error", err)
		}
	}()

	if err := proxy.WaitReady(ctx); err != nil {
		s.config.Queue.RemoveHandlers(proxy.EventTarget())
		proxy.Release()
		return nil, fmt.Errorf("screen %q: %w", name, err)
	}

	if err := s.add(proxy); err != nil {
		if closeErr := proxy.Close(ctx, protocol.MsgEBusy); closeErr != nil {
			s.logger.Debug("sending busy", "screen", name, "error", closeErr)
		}
		proxy.Release()
		return nil, err
	}
	return proxy, nil
}

// exchangeHello sends the server hello and waits for the hello back.
func (s *Server) exchangeHello(ctx context.Context, st stream.Stream) (protocol.Version, string, error) {
	if err := protocol.WriteHello(st, protocol.Current); err != nil {
		return protocol.Version{}, "", err
	}
	if err := st.Flush(ctx); err != nil {
		return protocol.Version{}, "", fmt.Errorf("sending hello: %w", err)
	}

	type readResult struct {
		packet []byte
		err    error
	}
	result := make(chan readResult, 1)
	go func() {
		packet, err := protocol.ReadPacket(st)
		result <- readResult{packet, err}
	}()

	select {
	case read := <-result:
		if read.err != nil {
			return protocol.Version{}, "", fmt.Errorf("reading hello back: %w", read.err)
		}
		return protocol.ParseHelloBack(read.packet)
	case <-ctx.Done():
		// Closing unblocks the reader goroutine.
		st.Close()
		return protocol.Version{}, "", &stream.Error{Kind: stream.Timeout, Op: "handshake", Err: ctx.Err()}
	}
}

// reject sends a refusal and flushes it, best effort.
func (s *Server) reject(ctx context.Context, st stream.Stream, format string, args ...any) {
	if err := protocol.WriteMessage(st, format, args...); err != nil {
		s.logger.Debug("sending refusal", "message", protocol.CodeOf(format), "error", err)
		return
	}
	if err := st.Flush(ctx); err != nil {
		s.logger.Debug("flushing refusal", "message", protocol.CodeOf(format), "error", err)
	}
}

func (s *Server) allowed(name string) bool {
	return len(s.config.AllowedScreens) == 0 || slices.Contains(s.config.AllowedScreens, name)
}

func (s *Server) nameInUse(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.clients[name]
	return ok && existing.State() != clientproxy.Disconnected
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// add inserts a Ready proxy. A table entry whose proxy has already
// disconnected is replaced, since its event may not have been
// dispatched yet. A proxy that disconnected before add is refused: its
// event may already have been dispatched, and nothing would remove it.
func (s *Server) add(proxy *clientproxy.ClientProxy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServerClosed
	}
	if proxy.State() == clientproxy.Disconnected {
		return fmt.Errorf("%w: %q left during the handshake", ErrNotConnected, proxy.Name())
	}
	if existing, ok := s.clients[proxy.Name()]; ok && existing.State() != clientproxy.Disconnected {
		return fmt.Errorf("%w: %q", ErrNameInUse, proxy.Name())
	}
	s.clients[proxy.Name()] = proxy
	return nil
}

// remove drops proxy from the table, if it is still there, and
// releases it.
func (s *Server) remove(proxy *clientproxy.ClientProxy) {
	s.mu.Lock()
	listed := s.clients[proxy.Name()] == proxy
	if listed {
		delete(s.clients, proxy.Name())
	}
	s.mu.Unlock()

	s.config.Queue.RemoveHandlers(proxy.EventTarget())
	if err := proxy.Release(); err != nil {
		s.logger.Debug("releasing screen", "screen", proxy.Name(), "error", err)
	}
	if listed {
		s.logger.Info("screen removed", "screen", proxy.Name())
	}
}

// Client returns the connected proxy named name.
func (s *Server) Client(name string) (*clientproxy.ClientProxy, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proxy, ok := s.clients[name]
	return proxy, ok
}

// Clients returns every connected proxy, ordered by name.
func (s *Server) Clients() []*clientproxy.ClientProxy {
	s.mu.Lock()
	defer s.mu.Unlock()
	proxies := make([]*clientproxy.ClientProxy, 0, len(s.clients))
	for _, proxy := range s.clients {
		proxies = append(proxies, proxy)
	}
	slices.SortFunc(proxies, func(a, b *clientproxy.ClientProxy) int {
		return cmp.Compare(a.Name(), b.Name())
	})
	return proxies
}

// Disconnect says goodbye to the named screen and disconnects it. The
// table entry goes when the disconnected event is dispatched. The
// error reports a failed goodbye; the screen is disconnected anyway.
func (s *Server) Disconnect(ctx context.Context, name string) error {
	proxy, ok := s.Client(name)
	// A disconnected proxy stays listed until its event is dispatched.
	if !ok || proxy.State() == clientproxy.Disconnected {
		return fmt.Errorf("%w: %q", ErrNotConnected, name)
	}
	err := proxy.Close(ctx, protocol.MsgCClose)
	proxy.Disconnect(nil)
	return err
}

// Shutdown stops every Serve loop, says goodbye to every screen,
// releases them and waits for their readers, until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for listener := range s.listeners {
		listener.Close()
	}
	proxies := make([]*clientproxy.ClientProxy, 0, len(s.clients))
	for _, proxy := range s.clients {
		proxies = append(proxies, proxy)
	}
	s.mu.Unlock()

	var errs []error
	for _, proxy := range proxies {
		if proxy.State() != clientproxy.Disconnected {
			if err := proxy.Close(ctx, protocol.MsgCClose); err != nil {
				s.logger.Debug("saying goodbye", "screen", proxy.Name(), "error", err)
			}
		}
		if err := proxy.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.readers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for screen readers: %w", ctx.Err()))
	}
	return errors.Join(errs...)
}
