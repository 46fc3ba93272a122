// Package transport defines the byte-stream contract sessions run over and
// adapts net.Conn to it. Implementations live in the tcp, websocket and
// memory subpackages.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// ReadChunkSize - upper bound of bytes returned by one ReadChunk on a stream connection.
const ReadChunkSize = 1024

var ErrConnClosed = errors.New("connection closed")

// Conn is an established, order-preserving byte stream with no framing of its own.
type Conn interface {
	// ReadChunk - blocks until some bytes arrive. io.EOF marks the end of the stream.
	ReadChunk() ([]byte, error)
	WriteBytes(data []byte) error
	// Close - unblocks a pending ReadChunk. Safe to call more than once.
	Close() error
}

// Pending is an open rendezvous endpoint waiting for exactly one peer.
type Pending interface {
	Accept(ctx context.Context) (Conn, error)
	Addr() string
	Close() error
}

type Transport interface {
	Listen(ctx context.Context) (Pending, error)
	Dial(ctx context.Context, addr string) (Conn, error)
}

type streamConn struct {
	conn         net.Conn
	writeTimeout time.Duration

	buf       []byte
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewStreamConn - adapts a net.Conn. writeTimeout bounds every WriteBytes, zero disables it.
func NewStreamConn(conn net.Conn, writeTimeout time.Duration) Conn {
	return &streamConn{
		conn:         conn,
		writeTimeout: writeTimeout,
		buf:          make([]byte, ReadChunkSize),
	}
}

func (that *streamConn) ReadChunk() ([]byte, error) {
	n, err := that.conn.Read(that.buf)
	if n > 0 {
		return append([]byte(nil), that.buf[:n]...), nil
	}

	if err == nil {
		return nil, nil
	}

	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return nil, io.EOF
	}

	return nil, fmt.Errorf("failed to read: %w", err)
}

func (that *streamConn) WriteBytes(data []byte) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if that.writeTimeout > 0 {
		if err := that.conn.SetWriteDeadline(time.Now().Add(that.writeTimeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	if _, err := that.conn.Write(data); err != nil {
		if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
			return ErrConnClosed
		}
		return fmt.Errorf("failed to write: %w", err)
	}

	return nil
}

func (that *streamConn) Close() error {
	that.closeOnce.Do(func() {
		that.closeErr = that.conn.Close()
	})

	return that.closeErr
}
