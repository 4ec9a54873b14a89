// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/deskshare/lib/clipstore"
	"github.com/bureau-foundation/deskshare/lib/codec"
	"github.com/bureau-foundation/deskshare/protocol"
)

// Admin actions.
const (
	ActionListScreens      = "list-screens"
	ActionDisconnectScreen = "disconnect-screen"
	ActionClipboard        = "clipboard"
	ActionStatus           = "status"
)

// AdminRequest is the body of every admin socket request.
type AdminRequest struct {
	Action    string `cbor:"action"`
	Screen    string `cbor:"screen,omitempty"`
	Clipboard uint8  `cbor:"clipboard,omitempty"`
}

// AdminResponse is the envelope of every admin socket response.
type AdminResponse struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// ScreenInfo describes one connected screen in list-screens.
type ScreenInfo struct {
	Name     string `cbor:"name"`
	Protocol string `cbor:"protocol"`
	State    string `cbor:"state"`
	Target   string `cbor:"target"`
	X        int16  `cbor:"x"`
	Y        int16  `cbor:"y"`
	Width    int16  `cbor:"width"`
	Height   int16  `cbor:"height"`
}

// ClipboardContent is the clipboard action's result.
type ClipboardContent struct {
	Screen    string `cbor:"screen"`
	Clipboard uint8  `cbor:"clipboard"`
	Sequence  uint32 `cbor:"sequence"`
	Digest    string `cbor:"digest"`
	Text      string `cbor:"text,omitempty"`
	HTML      string `cbor:"html,omitempty"`
	Bitmap    []byte `cbor:"bitmap,omitempty"`
}

// StatusEntry is one screen's latest status in the status action.
type StatusEntry struct {
	Screen  string    `cbor:"screen"`
	Status  string    `cbor:"status"`
	Message string    `cbor:"message,omitempty"`
	Time    time.Time `cbor:"time"`
}

type adminAction func(ctx context.Context, request AdminRequest) (any, error)

// AdminServer answers one CBOR request per connection on a Unix socket.
type AdminServer struct {
	server     *Server
	socketPath string
	logger     *slog.Logger
	actions    map[string]adminAction

	// active counts in-flight requests; Serve waits for them.
	active sync.WaitGroup
}

// NewAdminServer returns an admin server for server on socketPath.
func NewAdminServer(server *Server, socketPath string, logger *slog.Logger) *AdminServer {
	if logger == nil {
		logger = slog.Default()
	}
	admin := &AdminServer{
		server:     server,
		socketPath: socketPath,
		logger:     logger,
	}
	admin.actions = map[string]adminAction{
		ActionListScreens:      admin.listScreens,
		ActionDisconnectScreen: admin.disconnectScreen,
		ActionClipboard:        admin.clipboard,
		ActionStatus:           admin.status,
	}
	return admin
}

// Serve listens on the socket until ctx is cancelled, then waits for
// requests in progress. A stale socket file is replaced, and the socket
// file is removed on return.
func (a *AdminServer) Serve(ctx context.Context) error {
	if err := os.Remove(a.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", a.socketPath, err)
	}
	listener, err := net.Listen("unix", a.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(a.socketPath)
	}()
	stop := context.AfterFunc(ctx, func() {
		listener.Close()
	})
	defer stop()

	a.logger.Info("admin socket listening", "path", a.socketPath)
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			a.logger.Error("admin accept failed", "error", err)
			continue
		}
		a.active.Add(1)
		go func() {
			defer a.active.Done()
			a.handleConnection(ctx, conn)
		}()
	}
	a.active.Wait()
	return nil
}

const (
	adminReadTimeout  = 10 * time.Second
	adminWriteTimeout = 10 * time.Second
	maxAdminRequest   = 64 * 1024
)

func (a *AdminServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(adminReadTimeout))

	var request AdminRequest
	if err := codec.NewDecoder(io.LimitReader(conn, maxAdminRequest)).Decode(&request); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		a.respond(conn, nil, fmt.Errorf("invalid request: %w", err))
		return
	}
	if request.Action == "" {
		a.respond(conn, nil, errors.New("missing required field: action"))
		return
	}
	action, ok := a.actions[request.Action]
	if !ok {
		a.respond(conn, nil, fmt.Errorf("unknown action %q", request.Action))
		return
	}
	result, err := action(ctx, request)
	if err != nil {
		a.logger.Debug("admin action failed", "action", request.Action, "error", err)
	}
	a.respond(conn, result, err)
}

func (a *AdminServer) respond(conn net.Conn, result any, actionErr error) {
	conn.SetWriteDeadline(time.Now().Add(adminWriteTimeout))
	response := AdminResponse{OK: actionErr == nil}
	if actionErr != nil {
		response.Error = actionErr.Error()
	} else if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			response = AdminResponse{Error: fmt.Sprintf("internal: marshaling response: %v", err)}
		} else {
			response.Data = data
		}
	}
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		a.logger.Debug("writing admin response", "error", err)
	}
}

func (a *AdminServer) listScreens(context.Context, AdminRequest) (any, error) {
	proxies := a.server.Clients()
	screens := make([]ScreenInfo, 0, len(proxies))
	for _, proxy := range proxies {
		shape := proxy.Shape()
		screens = append(screens, ScreenInfo{
			Name:     proxy.Name(),
			Protocol: proxy.Version().String(),
			State:    proxy.State().String(),
			Target:   proxy.EventTarget().String(),
			X:        shape.X,
			Y:        shape.Y,
			Width:    shape.Width,
			Height:   shape.Height,
		})
	}
	return screens, nil
}

func (a *AdminServer) disconnectScreen(ctx context.Context, request AdminRequest) (any, error) {
	if request.Screen == "" {
		return nil, errors.New("missing required field: screen")
	}
	return nil, a.server.Disconnect(ctx, request.Screen)
}

func (a *AdminServer) clipboard(_ context.Context, request AdminRequest) (any, error) {
	proxy, ok := a.server.Client(request.Screen)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotConnected, request.Screen)
	}
	id := protocol.ClipboardID(request.Clipboard)
	info, ok := proxy.Clipboard(id)
	if !ok {
		return nil, fmt.Errorf("screen %q has not sent clipboard %d", request.Screen, id)
	}
	content, err := a.server.Clipboards().Get(info.Digest)
	if err != nil {
		if errors.Is(err, clipstore.ErrNotFound) {
			return nil, fmt.Errorf("clipboard %d of %q is no longer stored", id, request.Screen)
		}
		return nil, err
	}
	result := ClipboardContent{
		Screen:    request.Screen,
		Clipboard: uint8(id),
		Sequence:  info.Sequence,
		Digest:    info.Digest.String(),
		Bitmap:    content.Formats[protocol.FormatBitmap],
	}
	result.Text, _ = content.Text()
	result.HTML = string(content.Formats[protocol.FormatHTML])
	return result, nil
}

func (a *AdminServer) status(context.Context, AdminRequest) (any, error) {
	if a.server.config.Status == nil {
		return nil, errors.New("status reporting is not enabled")
	}
	updates := a.server.config.Status.Snapshot()
	entries := make([]StatusEntry, 0, len(updates))
	for _, update := range updates {
		entries = append(entries, StatusEntry{
			Screen:  update.Sender,
			Status:  update.Code.String(),
			Message: update.Message,
			Time:    update.Time,
		})
	}
	slices.SortFunc(entries, func(a, b StatusEntry) int {
		return cmp.Compare(a.Screen, b.Screen)
	})
	return entries, nil
}

// AdminCall sends request to the admin socket at socketPath and decodes
// the result into result, which may be nil.
func AdminCall(ctx context.Context, socketPath string, request AdminRequest, result any) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", socketPath, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return fmt.Errorf("sending %s request: %w", request.Action, err)
	}
	var response AdminResponse
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		return fmt.Errorf("reading %s response: %w", request.Action, err)
	}
	if !response.OK {
		return fmt.Errorf("%s: %s", request.Action, response.Error)
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding %s result: %w", request.Action, err)
		}
	}
	return nil
}
