package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/rocketscienceinc/caro/internal/apperror"
	"github.com/rocketscienceinc/caro/transport"
)

type Transport struct {
	logger *slog.Logger

	listenAddr   string
	dialTimeout  time.Duration
	writeTimeout time.Duration
}

func New(logger *slog.Logger, listenAddr string, dialTimeout, writeTimeout time.Duration) *Transport {
	return &Transport{
		logger:       logger.With("component", "tcp"),
		listenAddr:   listenAddr,
		dialTimeout:  dialTimeout,
		writeTimeout: writeTimeout,
	}
}

// Listen - opens the listening socket. Failing to bind is reported as ErrTransportUnavailable.
func (that *Transport) Listen(ctx context.Context) (transport.Pending, error) {
	var lc net.ListenConfig

	listener, err := lc.Listen(ctx, "tcp", that.listenAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrTransportUnavailable, err)
	}

	that.logger.Info("listening", "addr", listener.Addr().String())

	return &pending{
		listener:     listener,
		writeTimeout: that.writeTimeout,
	}, nil
}

func (that *Transport) Dial(ctx context.Context, addr string) (transport.Conn, error) {
	dialer := net.Dialer{Timeout: that.dialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrConnectionFailed, err)
	}

	that.logger.Info("connected", "peer", conn.RemoteAddr().String())

	return transport.NewStreamConn(conn, that.writeTimeout), nil
}

type pending struct {
	listener     net.Listener
	writeTimeout time.Duration

	closeOnce sync.Once
}

// Accept - one-shot: the listener is closed once a peer is in, so nobody else can connect.
func (that *pending) Accept(ctx context.Context) (transport.Conn, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = that.Close()
	})
	defer stop()

	conn, err := that.listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", apperror.ErrConnectionFailed, ctx.Err())
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, fmt.Errorf("%w: listener closed", apperror.ErrConnectionFailed)
		}
		return nil, fmt.Errorf("%w: %w", apperror.ErrConnectionFailed, err)
	}

	_ = that.Close()

	return transport.NewStreamConn(conn, that.writeTimeout), nil
}

func (that *pending) Addr() string {
	return that.listener.Addr().String()
}

func (that *pending) Close() error {
	var err error
	that.closeOnce.Do(func() {
		err = that.listener.Close()
	})

	return err
}
