// Package memory is an in-process transport over net.Pipe. Peers find each
// other by name on a shared Network.
package memory

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rocketscienceinc/caro/internal/apperror"
	"github.com/rocketscienceinc/caro/transport"
)

type Network struct {
	mu        sync.Mutex
	listeners map[string]*pending
	seq       int

	// WriteTimeout - applied to every connection created on this network.
	WriteTimeout time.Duration
}

func NewNetwork() *Network {
	return &Network{
		listeners:    make(map[string]*pending),
		WriteTimeout: 5 * time.Second,
	}
}

// Transport - an endpoint on the network. listenAddr is the name Listen registers,
// an empty one gets a generated name.
func (that *Network) Transport(listenAddr string) transport.Transport {
	return &memoryTransport{network: that, listenAddr: listenAddr}
}

type memoryTransport struct {
	network    *Network
	listenAddr string
}

func (that *memoryTransport) Listen(_ context.Context) (transport.Pending, error) {
	network := that.network

	network.mu.Lock()
	defer network.mu.Unlock()

	addr := that.listenAddr
	if addr == "" {
		network.seq++
		addr = "memory-" + strconv.Itoa(network.seq)
	}

	if _, ok := network.listeners[addr]; ok {
		return nil, fmt.Errorf("%w: address %s in use", apperror.ErrTransportUnavailable, addr)
	}

	p := &pending{
		network: network,
		addr:    addr,
		conns:   make(chan net.Conn, 1),
		closed:  make(chan struct{}),
	}
	network.listeners[addr] = p

	return p, nil
}

// Dial - hands one end of a pipe to the listener. A listener that already has a
// peer waiting refuses further dials.
func (that *memoryTransport) Dial(ctx context.Context, addr string) (transport.Conn, error) {
	network := that.network

	network.mu.Lock()
	p, ok := network.listeners[addr]
	network.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: nobody listens on %s", apperror.ErrConnectionFailed, addr)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrConnectionFailed, err)
	}

	local, remote := net.Pipe()

	select {
	case p.conns <- remote:
	default:
		_ = local.Close()
		_ = remote.Close()
		return nil, fmt.Errorf("%w: %s is busy", apperror.ErrConnectionFailed, addr)
	}

	return transport.NewStreamConn(local, network.WriteTimeout), nil
}

type pending struct {
	network *Network
	addr    string
	conns   chan net.Conn

	closeOnce sync.Once
	closed    chan struct{}
}

func (that *pending) Accept(ctx context.Context) (transport.Conn, error) {
	select {
	case conn := <-that.conns:
		_ = that.Close()
		return transport.NewStreamConn(conn, that.network.WriteTimeout), nil
	case <-that.closed:
		return nil, fmt.Errorf("%w: listener closed", apperror.ErrConnectionFailed)
	case <-ctx.Done():
		_ = that.Close()
		return nil, fmt.Errorf("%w: %w", apperror.ErrConnectionFailed, ctx.Err())
	}
}

func (that *pending) Addr() string {
	return that.addr
}

// Close - unregisters the address. A dialled pipe nobody accepted is closed too.
func (that *pending) Close() error {
	that.closeOnce.Do(func() {
		that.network.mu.Lock()
		if that.network.listeners[that.addr] == that {
			delete(that.network.listeners, that.addr)
		}
		that.network.mu.Unlock()

		close(that.closed)

		select {
		case conn := <-that.conns:
			_ = conn.Close()
		default:
		}
	})

	return nil
}
