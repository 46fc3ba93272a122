package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rocketscienceinc/caro/internal/apperror"
	"github.com/rocketscienceinc/caro/internal/protocol"
	"github.com/rocketscienceinc/caro/transport"
)

type State int32

const (
	StateIdle State = iota
	StateListening
	StateDialing
	StateConnected
	StateClosed
)

func (that State) String() string {
	switch that {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateDialing:
		return "dialing"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(that))
	}
}

type EventKind int

const (
	EventConnectionChanged EventKind = iota + 1
	EventMessage
)

// Event is the only thing the read loop hands to the outside world.
type Event struct {
	Kind EventKind

	// Connected - set for EventConnectionChanged.
	Connected bool
	// Err - why the session went down, nil after a local Close.
	Err error

	// Message - set for EventMessage. Ping and Pong are answered inside the session and never emitted.
	Message protocol.Message
}

type Config struct {
	// HeartbeatInterval - how often Ping is sent once connected. Zero disables it.
	HeartbeatInterval time.Duration
	// HeartbeatTimeout - a peer that has not sent Pong for this long is considered gone.
	HeartbeatTimeout time.Duration
	// EventBuffer - capacity of the Events channel.
	EventBuffer int
}

const defaultEventBuffer = 16

// Session is one peer connection: Idle -> Listening | Dialing -> Connected -> Closed.
// A Session is used once; a new game over a new connection needs a new Session.
type Session struct {
	logger    *slog.Logger
	transport transport.Transport
	cfg       Config

	mu      sync.Mutex
	state   State
	conn    transport.Conn
	pending transport.Pending
	stopCtx func() bool

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	lastPong atomic.Int64
}

func New(logger *slog.Logger, tr transport.Transport, cfg Config) *Session {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}

	return &Session{
		logger:    logger.With("component", "session"),
		transport: tr,
		cfg:       cfg,
		events:    make(chan Event, cfg.EventBuffer),
		done:      make(chan struct{}),
	}
}

// Host - opens the rendezvous endpoint and waits for one peer in the background.
// The returned address is where the peer should dial. Failing to listen closes
// the session like any other connection failure and is also returned to the
// caller; everything after that is reported through Events only.
func (that *Session) Host(ctx context.Context) (string, error) {
	log := that.logger.With("method", "Host")

	if err := that.transition(StateIdle, StateListening); err != nil {
		return "", err
	}

	pending, err := that.transport.Listen(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", apperror.ErrConnectionFailed, err)
		that.closeWith(err)
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	that.mu.Lock()
	if that.state != StateListening {
		that.mu.Unlock()
		_ = pending.Close()
		return "", apperror.ErrSessionClosed
	}
	that.pending = pending
	that.mu.Unlock()

	that.bindContext(ctx)

	log.Info("waiting for peer", "addr", pending.Addr())

	go func() {
		conn, err := pending.Accept(ctx)
		_ = pending.Close()

		if err != nil {
			that.closeWith(fmt.Errorf("%w: %w", apperror.ErrConnectionFailed, err))
			return
		}

		that.connected(conn)
	}()

	return pending.Addr(), nil
}

// Join - dials addr in the background; the outcome arrives as an EventConnectionChanged.
func (that *Session) Join(ctx context.Context, addr string) error {
	if err := that.transition(StateIdle, StateDialing); err != nil {
		return err
	}

	that.bindContext(ctx)

	that.logger.Info("dialing peer", "method", "Join", "addr", addr)

	go func() {
		conn, err := that.transport.Dial(ctx, addr)
		if err != nil {
			that.closeWith(fmt.Errorf("%w: %w", apperror.ErrConnectionFailed, err))
			return
		}

		that.connected(conn)
	}()

	return nil
}

// Send - frames and writes msg. A write failure closes the session.
func (that *Session) Send(msg protocol.Message) error {
	that.mu.Lock()
	state, conn := that.state, that.conn
	that.mu.Unlock()

	if state != StateConnected {
		return fmt.Errorf("%w: session is %s", apperror.ErrNotConnected, state)
	}

	frame, err := protocol.Frame(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", msg.Type(), err)
	}

	if err = conn.WriteBytes(frame); err != nil {
		err = fmt.Errorf("%w: %w", apperror.ErrConnectionFailed, err)
		that.closeWith(err)
		return err
	}

	return nil
}

func (that *Session) Events() <-chan Event {
	return that.events
}

// Done - closed once the session reaches StateClosed.
func (that *Session) Done() <-chan struct{} {
	return that.done
}

func (that *Session) State() State {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.state
}

// Err - why the session closed. Nil while open or after a local Close.
func (that *Session) Err() error {
	select {
	case <-that.done:
		return that.closeErr
	default:
		return nil
	}
}

// Close - releases the transport and stops the read loop. Safe to call any number of times.
func (that *Session) Close() error {
	that.closeWith(nil)

	return nil
}

func (that *Session) transition(from, to State) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.state != from {
		return fmt.Errorf("%w: cannot go from %s to %s", apperror.ErrInvalidSessionState, that.state, to)
	}

	that.state = to

	return nil
}

// bindContext - cancelling ctx closes the session.
func (that *Session) bindContext(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() {
		that.closeWith(fmt.Errorf("%w: %w", apperror.ErrSessionClosed, ctx.Err()))
	})

	that.mu.Lock()
	that.stopCtx = stop
	that.mu.Unlock()
}

func (that *Session) connected(conn transport.Conn) {
	that.mu.Lock()
	if that.state == StateClosed {
		that.mu.Unlock()
		_ = conn.Close()
		return
	}
	that.state = StateConnected
	that.conn = conn
	that.mu.Unlock()

	that.lastPong.Store(time.Now().UnixNano())

	that.logger.Info("peer connected")

	that.emit(Event{Kind: EventConnectionChanged, Connected: true})

	go that.readLoop(conn)
	go that.heartbeat()
}

// readLoop - the only reader of conn. It ends when conn is closed.
func (that *Session) readLoop(conn transport.Conn) {
	log := that.logger.With("method", "readLoop")

	var buffer protocol.FrameBuffer

	for {
		chunk, err := conn.ReadChunk()
		if err != nil {
			if errors.Is(err, io.EOF) {
				that.closeWith(fmt.Errorf("%w: peer closed the connection", apperror.ErrSessionClosed))
				return
			}
			that.closeWith(fmt.Errorf("%w: %w", apperror.ErrConnectionFailed, err))
			return
		}

		frames, overflow := buffer.Feed(chunk)
		if overflow {
			log.Warn("dropped oversized frame", "limit", protocol.MaxFrameSize)
		}

		for _, frame := range frames {
			msg, err := protocol.DecodeErr(frame)
			if err != nil {
				log.Warn("dropped undecodable message", "error", err)
				continue
			}

			if !that.dispatch(msg) {
				return
			}
		}
	}
}

// dispatch - returns false once the session is over.
func (that *Session) dispatch(msg protocol.Message) bool {
	switch msg.(type) {
	case protocol.Ping:
		// the peer's reader may be busy writing to us, so the answer must not block reading
		go func() {
			if err := that.Send(protocol.Pong{}); err != nil {
				that.logger.Warn("failed to answer ping", "error", err)
			}
		}()
		return true
	case protocol.Pong:
		that.lastPong.Store(time.Now().UnixNano())
		return true
	case protocol.SessionEnd:
		that.emit(Event{Kind: EventMessage, Message: msg})
		that.closeWith(fmt.Errorf("%w: peer ended the session", apperror.ErrSessionClosed))
		return false
	default:
		return that.emit(Event{Kind: EventMessage, Message: msg})
	}
}

func (that *Session) heartbeat() {
	if that.cfg.HeartbeatInterval <= 0 {
		return
	}

	ticker := time.NewTicker(that.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-that.done:
			return
		case <-ticker.C:
		}

		if that.cfg.HeartbeatTimeout > 0 {
			silence := time.Since(time.Unix(0, that.lastPong.Load()))
			if silence > that.cfg.HeartbeatTimeout {
				that.closeWith(fmt.Errorf("%w: no pong for %s", apperror.ErrPongTimeout, silence.Round(time.Millisecond)))
				return
			}
		}

		if err := that.Send(protocol.Ping{}); err != nil {
			return
		}
	}
}

// emit - blocks until the consumer takes ev or the session closes.
func (that *Session) emit(ev Event) bool {
	select {
	case that.events <- ev:
		return true
	case <-that.done:
		return false
	}
}

func (that *Session) closeWith(reason error) {
	that.closeOnce.Do(func() {
		that.mu.Lock()
		previous := that.state
		that.state = StateClosed
		conn, pending, stop := that.conn, that.pending, that.stopCtx
		that.mu.Unlock()

		that.closeErr = reason

		if previous != StateIdle {
			select {
			case that.events <- Event{Kind: EventConnectionChanged, Connected: false, Err: reason}:
			default:
				that.logger.Warn("event buffer full, disconnect only visible through Done")
			}
		}

		close(that.done)

		if stop != nil {
			stop()
		}
		if pending != nil {
			_ = pending.Close()
		}
		if conn != nil {
			_ = conn.Close()
		}

		if reason != nil {
			that.logger.Info("session closed", "from", previous.String(), "reason", reason)
		} else {
			that.logger.Info("session closed", "from", previous.String())
		}
	})
}
