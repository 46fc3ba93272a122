package websocket

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/caro/transport"
)

const closeGracePeriod = time.Second

// conn - one websocket message is one chunk of the stream.
type conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newConn(ws *websocket.Conn, writeTimeout time.Duration) *conn {
	_ = ws.SetReadDeadline(time.Time{})

	return &conn{
		ws:           ws,
		writeTimeout: writeTimeout,
	}
}

func (that *conn) ReadChunk() ([]byte, error) {
	_, data, err := that.ws.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
			errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read websocket message: %w", err)
	}

	return data, nil
}

func (that *conn) WriteBytes(data []byte) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if that.writeTimeout > 0 {
		if err := that.ws.SetWriteDeadline(time.Now().Add(that.writeTimeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	if err := that.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
			return transport.ErrConnClosed
		}
		return fmt.Errorf("failed to write websocket message: %w", err)
	}

	return nil
}

// Close - tells the peer goodbye when possible, then drops the socket.
func (that *conn) Close() error {
	that.closeOnce.Do(func() {
		that.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = that.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		that.writeMu.Unlock()

		that.closeErr = that.ws.Close()
	})

	return that.closeErr
}
