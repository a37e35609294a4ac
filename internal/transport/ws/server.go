// Package ws serves the relay over WebSocket.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cwrk-planet/watch-party/internal/relay"
)

// FrameHandler consumes inbound frames of a connection.
type FrameHandler interface {
	Handle(ctx context.Context, conn relay.Conn, data []byte)
	Disconnect(ctx context.Context, conn relay.Conn)
}

type Options struct {
	MaxFrameBytes  int64
	PingEvery      time.Duration
	SendBuffer     int
	AllowedOrigins []string // empty allows any origin
}

type Server struct {
	upgrader websocket.Upgrader
	handler  FrameHandler
	opts     Options

	mu    sync.Mutex
	conns map[*wsConn]struct{}
}

func NewServer(h FrameHandler, opts Options) *Server {
	if opts.MaxFrameBytes <= 0 {
		opts.MaxFrameBytes = 64 << 10
	}
	if opts.PingEvery <= 0 {
		opts.PingEvery = 25 * time.Second
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}

	s := &Server{handler: h, opts: opts, conns: make(map[*wsConn]struct{})}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(s.opts.AllowedOrigins, origin)
}

// ServeHTTP upgrades the request and pumps frames until the peer goes away.
// Room membership is established by the join_room frame, not by the URL.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		slog.Warn("ws upgrade failed", "err", err, "remote", r.RemoteAddr)
		return
	}

	c := newWsConn(uuid.NewString(), conn, s.opts.SendBuffer)
	log := slog.With("conn", c.ID(), "remote", r.RemoteAddr)
	log.Debug("ws connected")

	// keeps request values (trace ids) without its cancellation
	ctx := context.WithoutCancel(r.Context())

	s.track(c, true)
	defer s.track(c, false)

	go c.writeLoop(s.opts.PingEvery)
	s.readLoop(ctx, c)

	s.handler.Disconnect(ctx, c)
	_ = c.Close()
	log.Debug("ws disconnected")
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	c.conn.SetReadLimit(s.opts.MaxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))
	})

	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				slog.Debug("ws read failed", "conn", c.ID(), "err", err)
			}
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))
		s.handler.Handle(ctx, c, data)
	}
}

func (s *Server) track(c *wsConn, live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if live {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

// Shutdown closes every live connection. Each read loop then runs its normal disconnect path.
// http.Server.Shutdown does not touch hijacked connections, so call this from RegisterOnShutdown.
func (s *Server) Shutdown() {
	s.mu.Lock()
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"), time.Now().Add(writeWait))
		_ = c.Close()
	}
	slog.Info("ws shutdown", "closed", len(conns))
}

// Live reports the number of open connections, joined or not.
func (s *Server) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
