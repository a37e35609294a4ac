// Package wsclient is the participant side of the relay connection.
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cwrk-planet/watch-party/internal/protocol"
)

var ErrClosed = errors.New("wsclient: connection closed")

const writeWait = 5 * time.Second

// Client writes encoded frames to the relay and hands inbound frames to a callback.
// It satisfies syncengine.Transport.
type Client struct {
	conn *websocket.Conn

	mu     sync.Mutex // serializes writes
	once   sync.Once
	closed chan struct{}
}

// Dial connects to a relay endpoint such as ws://localhost:8080/ws.
func Dial(ctx context.Context, url string, header http.Header) (*Client, error) {
	d := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := d.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{conn: conn, closed: make(chan struct{})}, nil
}

// Send encodes v and writes it as one text frame.
func (c *Client) Send(v any) error {
	data, err := protocol.Encode(v)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Run reads frames until ctx is done or the connection drops.
// onFrame is called sequentially from the reading goroutine.
func (c *Client) Run(ctx context.Context, onFrame func([]byte) error) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			select {
			case <-c.closed:
				return nil
			default:
			}
			return fmt.Errorf("read: %w", err)
		}
		if typ != websocket.TextMessage {
			continue
		}
		if err := onFrame(data); err != nil {
			slog.Debug("wsclient: frame dropped", "err", err)
		}
	}
}

// Close sends a close frame and tears the connection down. Safe to call twice.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		close(c.closed)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}
