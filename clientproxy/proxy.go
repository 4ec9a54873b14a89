// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clientproxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/deskshare/event"
	"github.com/bureau-foundation/deskshare/lib/clipstore"
	"github.com/bureau-foundation/deskshare/lib/clock"
	"github.com/bureau-foundation/deskshare/protocol"
	"github.com/bureau-foundation/deskshare/status"
	"github.com/bureau-foundation/deskshare/stream"
)

// DefaultCloseTimeout bounds Close when the config leaves it unset.
const DefaultCloseTimeout = 3 * time.Second

// DefaultKeepAliveRate is the 1.3 keep-alive period.
const DefaultKeepAliveRate = 3 * time.Second

var (
	// ErrDisconnected is returned by sends on a disconnected proxy.
	ErrDisconnected = errors.New("clientproxy: disconnected")

	// ErrReleased is returned by Close after Release.
	ErrReleased = errors.New("clientproxy: stream released")

	// ErrNotReady is returned by WaitReady when the session ended before
	// the screen reported its shape.
	ErrNotReady = errors.New("clientproxy: disconnected before ready")
)

// State is the session state.
type State int32

const (
	Connecting State = iota
	Ready
	Disconnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Disconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config holds a proxy's collaborators.
type Config struct {
	// Name is the screen name from the hello back. Required.
	Name string

	// Stream is handed over to the proxy. Required.
	Stream stream.Stream

	// Version is the protocol version agreed at handshake.
	Version protocol.Version

	// Queue receives lifecycle events. Required.
	Queue *event.Queue

	// Events supplies the shared event types. Required, and must be
	// built on Queue's registry.
	Events *Events

	// Clipboards stores content received in DCLP. A private store is
	// created when nil.
	Clipboards *clipstore.Store

	// Status receives coarse status. Default status.Nop.
	Status status.Publisher

	// Clock drives liveness timers. Default clock.Real.
	Clock clock.Clock

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// CloseTimeout bounds Close and every send's flush. Default
	// DefaultCloseTimeout.
	CloseTimeout time.Duration

	// KeepAliveRate is the default 1.3 keep-alive period. Default
	// DefaultKeepAliveRate.
	KeepAliveRate time.Duration
}

// clipboardState tracks one of the screen's clipboards.
type clipboardState struct {
	// received is set once the screen has sent content.
	received bool
	sequence uint32
	digest   clipstore.Digest
	// dirty means the screen's copy may be stale, so SetClipboard must
	// send. Cleared by SetClipboard, set by GrabClipboard.
	dirty bool
}

// ClientProxy is the server side of one screen's session.
type ClientProxy struct {
	name       string
	target     event.Target
	dialect    *dialect
	stream     stream.Stream
	queue      *event.Queue
	events     *Events
	clipboards *clipstore.Store
	status     status.Publisher
	clock      clock.Clock
	logger     *slog.Logger

	closeTimeout  time.Duration
	keepAliveRate time.Duration

	running atomic.Bool

	// sendMu keeps each packet's write and flush together, so packets
	// reach the stream in call order.
	sendMu sync.Mutex

	// ready closes on Connecting to Ready, done on entering Disconnected.
	ready chan struct{}
	done  chan struct{}

	mu        sync.Mutex
	state     State
	cause     error
	released  bool
	shape     Shape
	clipboard [protocol.ClipboardEnd]clipboardState

	// rate is the current heartbeat or keep-alive period; zero disables
	// liveness. generation invalidates callbacks of replaced timers.
	rate           time.Duration
	timersArmed    bool
	generation     uint64
	lastTraffic    time.Time
	deathTimer     *clock.Timer
	keepAliveTimer *clock.Timer
}

// New builds a proxy for a screen that completed the hello exchange.
// An unsupported version yields a VersionMismatch *protocol.Error.
func New(config Config) (*ClientProxy, error) {
	if config.Name == "" {
		return nil, errors.New("clientproxy: name is required")
	}
	if config.Stream == nil {
		return nil, errors.New("clientproxy: stream is required")
	}
	if config.Queue == nil || config.Events == nil {
		return nil, errors.New("clientproxy: queue and events are required")
	}
	if config.Events.Registry() != config.Queue.Registry() {
		return nil, errors.New("clientproxy: events and queue use different registries")
	}
	d, err := lookupDialect(config.Version)
	if err != nil {
		return nil, err
	}

	if config.Clipboards == nil {
		config.Clipboards = clipstore.New(0)
	}
	if config.Status == nil {
		config.Status = status.Nop{}
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.CloseTimeout <= 0 {
		config.CloseTimeout = DefaultCloseTimeout
	}
	if config.KeepAliveRate <= 0 {
		config.KeepAliveRate = DefaultKeepAliveRate
	}

	target := event.NewTarget()
	p := &ClientProxy{
		name:          config.Name,
		target:        target,
		dialect:       d,
		stream:        config.Stream,
		queue:         config.Queue,
		events:        config.Events,
		clipboards:    config.Clipboards,
		status:        config.Status,
		clock:         config.Clock,
		closeTimeout:  config.CloseTimeout,
		keepAliveRate: config.KeepAliveRate,
		ready:         make(chan struct{}),
		done:          make(chan struct{}),
		logger: config.Logger.With(
			"screen", config.Name,
			"protocol", d.version.String(),
			"target", target.String(),
		),
	}
	for id := range p.clipboard {
		p.clipboard[id].dirty = true
	}
	p.rate = p.defaultRate()
	p.status.PostStatus(p.name, status.Connecting, "protocol "+d.version.String())
	return p, nil
}

// Name returns the screen name. It never changes.
func (p *ClientProxy) Name() string { return p.name }

// Stream returns the owned stream. Callers must not read from it.
func (p *ClientProxy) Stream() stream.Stream { return p.stream }

// EventTarget returns the identity events about this proxy carry.
func (p *ClientProxy) EventTarget() event.Target { return p.target }

// Version returns the protocol version in use.
func (p *ClientProxy) Version() protocol.Version { return p.dialect.version }

// ReadyEventType returns the ready event type.
func (p *ClientProxy) ReadyEventType() event.Type { return p.events.Ready() }

// DisconnectedEventType returns the disconnected event type.
func (p *ClientProxy) DisconnectedEventType() event.Type { return p.events.Disconnected() }

// ClipboardChangedEventType returns the clipboardChanged event type.
func (p *ClientProxy) ClipboardChangedEventType() event.Type { return p.events.ClipboardChanged() }

// ClipboardGrabbedEventType returns the clipboardGrabbed event type.
func (p *ClientProxy) ClipboardGrabbedEventType() event.Type { return p.events.ClipboardGrabbed() }

// ShapeChangedEventType returns the shapeChanged event type.
func (p *ClientProxy) ShapeChangedEventType() event.Type { return p.events.ShapeChanged() }

// State returns the current session state.
func (p *ClientProxy) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Cause returns why the proxy disconnected: nil while connected and
// after a requested disconnect.
func (p *ClientProxy) Cause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cause
}

// Shape returns the last shape the screen reported.
func (p *ClientProxy) Shape() Shape {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shape
}

// CursorPos returns the cursor position from the last DINF.
func (p *ClientProxy) CursorPos() (x, y int16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shape.CursorX, p.shape.CursorY
}

// Clipboard returns what the screen last sent for clipboard id. ok is
// false until the screen has sent content for it. The content itself is
// in the clipboard store under the returned digest.
func (p *ClientProxy) Clipboard(id protocol.ClipboardID) (info ClipboardInfo, ok bool) {
	if id >= protocol.ClipboardEnd {
		return ClipboardInfo{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	state := p.clipboard[id]
	if !state.received {
		return ClipboardInfo{}, false
	}
	return ClipboardInfo{Name: p.name, ID: id, Sequence: state.sequence, Digest: state.digest}, true
}

// Clipboards returns the store clipboard content is kept in.
func (p *ClientProxy) Clipboards() *clipstore.Store { return p.clipboards }

// Run reads and handles packets until the session ends, and returns
// the disconnect cause: nil when the session ended through Disconnect
// or Release. A session that ends while Connecting publishes no event;
// Run's result and WaitReady are the only report of it. Cancelling ctx
// disconnects with the context's cause. Run may be called once.
func (p *ClientProxy) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return errors.New("clientproxy: Run called twice")
	}
	stop := context.AfterFunc(ctx, func() {
		p.disconnect(context.Cause(ctx))
	})
	defer stop()

	p.mu.Lock()
	p.timersArmed = true
	p.armLocked()
	p.mu.Unlock()

	for {
		packet, err := protocol.ReadPacket(p.stream)
		if p.State() == Disconnected {
			return p.Cause()
		}
		if err != nil {
			p.disconnect(fmt.Errorf("reading from %q: %w", p.name, err))
			return p.Cause()
		}
		p.refreshDeadline()
		if err := p.handle(packet); err != nil {
			if p.State() == Disconnected {
				return p.Cause()
			}
			var protocolErr *protocol.Error
			if errors.As(err, &protocolErr) {
				// Tell the screen why before dropping it.
				_ = p.sendQuietly(protocol.MsgEBad)
			}
			p.disconnect(err)
			return p.Cause()
		}
	}
}

// WaitReady blocks until the screen is Ready. If the session ends
// first the error matches ErrNotReady and wraps the cause; if ctx is
// done first it is a stream Timeout.
func (p *ClientProxy) WaitReady(ctx context.Context) error {
	select {
	case <-p.ready:
		return nil
	case <-p.done:
	case <-ctx.Done():
		return &stream.Error{Kind: stream.Timeout, Op: "wait ready", Err: context.Cause(ctx)}
	}
	select {
	case <-p.ready:
		return nil
	default:
	}
	if cause := p.Cause(); cause != nil {
		return fmt.Errorf("%w: %w", ErrNotReady, cause)
	}
	return ErrNotReady
}

// handle dispatches one packet on the current state's handler table.
func (p *ClientProxy) handle(packet []byte) error {
	code, err := protocol.Code(packet)
	if err != nil {
		return err
	}
	state := p.State()
	table := p.dialect.inbound
	if state == Connecting {
		table = p.dialect.handshake
	}
	handle, ok := table[code]
	if !ok {
		return &protocol.Error{
			Kind:   protocol.UnknownMessageCode,
			Code:   code,
			Detail: fmt.Sprintf("not accepted from a %s screen", state),
		}
	}
	return handle(p, packet)
}

func (p *ClientProxy) handleNoop(packet []byte) error {
	if len(packet) != 4 {
		code, _ := protocol.Code(packet)
		return &protocol.Error{Kind: protocol.MalformedMessage, Code: code, Detail: "unexpected payload"}
	}
	return nil
}

func (p *ClientProxy) handleInfo(packet []byte) error {
	var shape Shape
	var zoneSize int16
	if err := protocol.Unpack(packet, protocol.MsgDInfo,
		&shape.X, &shape.Y, &shape.Width, &shape.Height,
		&zoneSize, &shape.CursorX, &shape.CursorY,
	); err != nil {
		return err
	}
	if shape.Width <= 0 || shape.Height <= 0 {
		return &protocol.Error{
			Kind:   protocol.MalformedMessage,
			Code:   "DINF",
			Detail: fmt.Sprintf("screen size %dx%d", shape.Width, shape.Height),
		}
	}
	if shape.CursorX < 0 || shape.CursorY < 0 || shape.CursorX >= shape.Width || shape.CursorY >= shape.Height {
		shape.CursorX = shape.Width / 2
		shape.CursorY = shape.Height / 2
	}

	p.mu.Lock()
	p.shape = shape
	p.mu.Unlock()
	p.logger.Debug("received screen info",
		"x", shape.X, "y", shape.Y, "width", shape.Width, "height", shape.Height,
	)

	if err := p.send(protocol.MsgCInfoAck); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case Connecting:
		p.state = Ready
		close(p.ready)
		p.logger.Info("screen ready")
		p.status.PostStatus(p.name, status.Ready, "")
		p.post(p.events.Ready(), nil)
	case Ready:
		p.post(p.events.ShapeChanged(), ShapeInfo{Name: p.name, Shape: shape})
	}
	return nil
}

func (p *ClientProxy) handleGrabClipboard(packet []byte) error {
	var id protocol.ClipboardID
	var sequence uint32
	if err := protocol.Unpack(packet, protocol.MsgCClipboard, &id, &sequence); err != nil {
		return err
	}
	if err := validClipboard(id, "CCLP"); err != nil {
		return err
	}
	p.logger.Debug("screen grabbed clipboard", "clipboard", id, "sequence", sequence)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.post(p.events.ClipboardGrabbed(), ClipboardInfo{Name: p.name, ID: id, Sequence: sequence})
	return nil
}

func (p *ClientProxy) handleClipboard(packet []byte) error {
	var id protocol.ClipboardID
	var sequence uint32
	var data []byte
	if err := protocol.Unpack(packet, protocol.MsgDClipboard, &id, &sequence, &data); err != nil {
		return err
	}
	if err := validClipboard(id, "DCLP"); err != nil {
		return err
	}
	content, err := protocol.UnmarshalClipboard(data)
	if err != nil {
		return err
	}
	digest, err := p.clipboards.Put(content)
	if err != nil {
		return fmt.Errorf("storing clipboard %d from %q: %w", id, p.name, err)
	}
	p.logger.Debug("received clipboard",
		"clipboard", id, "sequence", sequence, "size", content.Size(), "digest", digest.Short(),
	)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.clipboard[id].received = true
	p.clipboard[id].sequence = sequence
	p.clipboard[id].digest = digest
	p.post(p.events.ClipboardChanged(), ClipboardInfo{Name: p.name, ID: id, Sequence: sequence, Digest: digest})
	return nil
}

func validClipboard(id protocol.ClipboardID, code string) error {
	if id >= protocol.ClipboardEnd {
		return &protocol.Error{
			Kind:   protocol.MalformedMessage,
			Code:   code,
			Detail: fmt.Sprintf("clipboard id %d out of range", id),
		}
	}
	return nil
}

// post must be called with p.mu held, so events are queued in the
// order their state transitions happened.
func (p *ClientProxy) post(eventType event.Type, payload any) {
	p.queue.Post(event.Event{Type: eventType, Target: p.target, Payload: payload})
}

// Close writes message, a bare message code such as protocol.MsgCClose
// or protocol.MsgEBusy, and then flushes exactly once whatever the
// write returned. The flush gives up at ctx's deadline or after the
// close timeout. Close leaves the stream open. A failure is returned
// and also disconnects the proxy. A Disconnected proxy writes nothing
// and returns ErrDisconnected.
func (p *ClientProxy) Close(ctx context.Context, message string) error {
	p.mu.Lock()
	released, state := p.released, p.state
	p.mu.Unlock()
	if released {
		return ErrReleased
	}
	if state == Disconnected {
		return ErrDisconnected
	}

	ctx, cancel := context.WithTimeout(ctx, p.closeTimeout)
	defer cancel()

	p.logger.Debug("sending close", "message", protocol.CodeOf(message))
	p.sendMu.Lock()
	writeErr := protocol.WriteMessage(p.stream, message)
	flushErr := p.stream.Flush(ctx)
	p.sendMu.Unlock()

	if err := errors.Join(writeErr, flushErr); err != nil {
		err = fmt.Errorf("sending close %q to %q: %w", protocol.CodeOf(message), p.name, err)
		p.disconnect(err)
		return err
	}
	return nil
}

// Disconnect ends the session. cause is carried in the disconnected
// event, or returned by Run and WaitReady if the screen never became
// Ready; pass nil for a requested disconnect. The stream is closed so
// the reader stops, but stays owned by the proxy until Release.
// Disconnecting twice has no effect.
func (p *ClientProxy) Disconnect(cause error) {
	p.disconnect(cause)
}

// Release disconnects if necessary and closes the stream. After Release
// the proxy performs no further I/O. Safe to call more than once.
func (p *ClientProxy) Release() error {
	p.disconnect(nil)

	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return nil
	}
	p.released = true
	p.mu.Unlock()

	if err := p.stream.Close(); err != nil && !errors.Is(err, stream.ErrClosed) {
		return fmt.Errorf("releasing stream of %q: %w", p.name, err)
	}
	return nil
}

// disconnect moves to Disconnected, once. Only a Ready proxy publishes
// the disconnected event.
func (p *ClientProxy) disconnect(cause error) bool {
	p.mu.Lock()
	if p.state == Disconnected {
		p.mu.Unlock()
		return false
	}
	wasReady := p.state == Ready
	p.state = Disconnected
	p.cause = cause
	p.stopTimersLocked()
	close(p.done)
	if wasReady {
		p.post(p.events.Disconnected(), DisconnectInfo{Name: p.name, Cause: cause})
	}
	p.mu.Unlock()

	_ = p.stream.Close()

	switch {
	case cause == nil:
		p.logger.Info("screen disconnected")
	case stream.IsExpectedClose(cause), errors.Is(cause, context.Canceled):
		p.logger.Info("screen disconnected", "reason", cause.Error())
	default:
		p.logger.Warn("screen disconnected", "error", cause)
		p.status.PostStatus(p.name, status.Failed, cause.Error())
	}
	p.status.PostStatus(p.name, status.Disconnected, "")
	return true
}
