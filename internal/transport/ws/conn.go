package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrSlowConsumer is returned by Send when the outbound buffer is full.
var ErrSlowConsumer = errors.New("ws: send buffer full")

var errClosed = errors.New("ws: connection closed")

const writeWait = 5 * time.Second

// wsConn adapts a gorilla connection to relay.Conn.
// Writes go through a buffered channel drained by a single writer goroutine.
type wsConn struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	once   sync.Once
	mu     sync.RWMutex
	closed chan struct{}
}

func newWsConn(id string, c *websocket.Conn, buffer int) *wsConn {
	return &wsConn{
		id:     id,
		conn:   c,
		send:   make(chan []byte, buffer),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	select {
	case <-c.closed:
		return errClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrSlowConsumer
	}
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		close(c.closed)
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// writeLoop owns all writes to the socket, including keepalive pings.
func (c *wsConn) writeLoop(pingEvery time.Duration) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}
