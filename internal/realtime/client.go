package realtime

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

type SessionKind int32

const (
	KindProducer SessionKind = iota
	KindSubscriber
)

func (k SessionKind) String() string {
	if k == KindSubscriber {
		return "subscriber"
	}
	return "producer"
}

var (
	ErrClientClosed   = errors.New("client connection closed")
	ErrSendBufferFull = errors.New("client send buffer full")
)

// Client is one live WebSocket connection. Outgoing messages go through a
// buffered channel drained by writePump; Send never blocks the caller.
type Client struct {
	ID          string
	ConnectedAt time.Time

	conn   *websocket.Conn
	send   chan interface{}
	done   chan struct{}
	closed atomic.Bool
	kind   atomic.Int32
}

func NewClient(conn *websocket.Conn, id string, kind SessionKind) *Client {
	c := &Client{
		ID:          id,
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan interface{}, 256),
		done:        make(chan struct{}),
	}
	c.kind.Store(int32(kind))
	return c
}

func (c *Client) Kind() SessionKind {
	return SessionKind(c.kind.Load())
}

// SetKind upgrades the connection's role, e.g. on a subscribe message.
func (c *Client) SetKind(kind SessionKind) {
	c.kind.Store(int32(kind))
}

// Send queues a message for delivery. Returns an error if the connection is
// closed or its buffer is full; the caller decides whether that condemns
// the connection.
func (c *Client) Send(msg interface{}) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrSendBufferFull
	}
}

// Close is idempotent and safe from any goroutine.
func (c *Client) Close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

func (c *Client) Closed() bool {
	return c.closed.Load()
}
