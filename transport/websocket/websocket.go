package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/caro/internal/apperror"
	"github.com/rocketscienceinc/caro/transport"
)

const (
	wsPath   = "/ws"
	pingPath = "/ping"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  transport.ReadChunkSize,
	WriteBufferSize: transport.ReadChunkSize,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// Transport - the host serves GET /ws for exactly one peer and GET /ping for health checks.
type Transport struct {
	logger *slog.Logger

	listenAddr   string
	dialTimeout  time.Duration
	writeTimeout time.Duration
}

func New(logger *slog.Logger, listenAddr string, dialTimeout, writeTimeout time.Duration) *Transport {
	return &Transport{
		logger:       logger.With("component", "websocket"),
		listenAddr:   listenAddr,
		dialTimeout:  dialTimeout,
		writeTimeout: writeTimeout,
	}
}

func (that *Transport) Listen(ctx context.Context) (transport.Pending, error) {
	var lc net.ListenConfig

	listener, err := lc.Listen(ctx, "tcp", that.listenAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrTransportUnavailable, err)
	}

	p := &pending{
		logger:       that.logger,
		listener:     listener,
		writeTimeout: that.writeTimeout,
		conns:        make(chan *conn, 1),
		closed:       make(chan struct{}),
	}

	router := chi.NewRouter()
	router.Get(pingPath, PingHandler)
	router.Get(wsPath, p.upgrade)

	p.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		if err := p.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			that.logger.Error("rendezvous server stopped", "error", err)
		}
	}()

	that.logger.Info("listening", "addr", listener.Addr().String())

	return p, nil
}

// Dial - addr is either host:port or a full ws:// URL.
func (that *Transport) Dial(ctx context.Context, addr string) (transport.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: that.dialTimeout,
		ReadBufferSize:   transport.ReadChunkSize,
		WriteBufferSize:  transport.ReadChunkSize,
	}

	ws, resp, err := dialer.DialContext(ctx, peerURL(addr), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil, fmt.Errorf("%w: peer already has an opponent", apperror.ErrConnectionFailed)
		}
		return nil, fmt.Errorf("%w: %w", apperror.ErrConnectionFailed, err)
	}

	that.logger.Info("connected", "peer", ws.RemoteAddr().String())

	return newConn(ws, that.writeTimeout), nil
}

func peerURL(addr string) string {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return addr
	}

	return "ws://" + addr + wsPath
}

type pending struct {
	logger       *slog.Logger
	listener     net.Listener
	server       *http.Server
	writeTimeout time.Duration

	taken     atomic.Bool
	conns     chan *conn
	closeOnce sync.Once
	closed    chan struct{}
}

// upgrade - only the first peer gets through; later ones see 409 Conflict.
func (that *pending) upgrade(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "upgrade")

	if !that.taken.CompareAndSwap(false, true) {
		log.Warn("rejected second peer", "remote", r.RemoteAddr)
		http.Error(w, "game already has two players", http.StatusConflict)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		that.taken.Store(false)
		return
	}

	select {
	case that.conns <- newConn(ws, that.writeTimeout):
		log.Info("peer connected", "remote", r.RemoteAddr)
	case <-that.closed:
		_ = ws.Close()
	}
}

// Accept - waits for the first upgraded peer. The HTTP server keeps answering
// /ping and refusing /ws until Close.
func (that *pending) Accept(ctx context.Context) (transport.Conn, error) {
	select {
	case c := <-that.conns:
		return c, nil
	case <-that.closed:
		return nil, fmt.Errorf("%w: listener closed", apperror.ErrConnectionFailed)
	case <-ctx.Done():
		_ = that.Close()
		return nil, fmt.Errorf("%w: %w", apperror.ErrConnectionFailed, ctx.Err())
	}
}

func (that *pending) Addr() string {
	return that.listener.Addr().String()
}

// Close - stops the HTTP server. Upgraded connections are hijacked and stay open.
func (that *pending) Close() error {
	var err error
	that.closeOnce.Do(func() {
		close(that.closed)
		err = that.server.Close()
	})

	return err
}
