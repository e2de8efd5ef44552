package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/craquetonbudget/bonsplans/internal/middleware"
	"github.com/craquetonbudget/bonsplans/internal/models"
	"github.com/craquetonbudget/bonsplans/internal/service"
)

const (
	sendBuffer   = 8
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	maxMessage   = 4096
)

// socketMessage is the envelope of every frame in both directions.
type socketMessage struct {
	Type      string            `json:"type"`
	Token     string            `json:"token,omitempty"`
	Tokens    *service.Tokens   `json:"tokens,omitempty"`
	Principal *models.Principal `json:"principal,omitempty"`
}

type socketClient struct {
	conn *websocket.Conn
	send chan []byte
}

// ThemeSocket pushes theme tokens to connected storefronts. Each connection
// also carries its own session: clients send {"type":"session","token":...}
// after sign-in or refresh and {"type":"logout"} on sign-out, and receive
// the resulting principal.
type ThemeSocket struct {
	resolver middleware.SessionResolver
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*socketClient]struct{}
	last    []byte
}

// NewThemeSocket constructs a ThemeSocket. It implements service.TokenSink.
func NewThemeSocket(resolver middleware.SessionResolver, log *zap.Logger) *ThemeSocket {
	return &ThemeSocket{
		resolver: resolver,
		log:      log,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		clients:  make(map[*socketClient]struct{}),
	}
}

// ApplyTokens broadcasts t to every connection. Connections that cannot
// keep up are dropped.
func (s *ThemeSocket) ApplyTokens(t service.Tokens) {
	msg, err := json.Marshal(socketMessage{Type: "tokens", Tokens: &t})
	if err != nil {
		s.log.Error("failed to encode theme tokens", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = msg
	for c := range s.clients {
		s.sendLocked(c, msg)
	}
}

func (s *ThemeSocket) sendLocked(c *socketClient, msg []byte) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
		s.log.Warn("dropping slow theme subscriber")
		s.removeLocked(c)
	}
}

func (s *ThemeSocket) send(c *socketClient, v socketMessage) {
	msg, err := json.Marshal(v)
	if err != nil {
		s.log.Error("failed to encode socket message", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.sendLocked(c, msg)
	s.mu.Unlock()
}

func (s *ThemeSocket) removeLocked(c *socketClient) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
}

func (s *ThemeSocket) remove(c *socketClient) {
	s.mu.Lock()
	s.removeLocked(c)
	s.mu.Unlock()
}

// Clients returns the number of open connections.
func (s *ThemeSocket) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close disconnects every client.
func (s *ThemeSocket) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		s.removeLocked(c)
	}
}

// ServeHTTP handles GET /api/theme/ws.
func (s *ThemeSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &socketClient{conn: conn, send: make(chan []byte, sendBuffer)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	if s.last != nil {
		c.send <- s.last
	}
	s.mu.Unlock()

	go s.writeLoop(c)
	s.readLoop(r.Context(), c, middleware.TokenFromRequest(r))
}

// sessionFor resolves token; any failure yields no session.
func (s *ThemeSocket) sessionFor(ctx context.Context, token string) *models.Session {
	if token == "" {
		return nil
	}
	sess, err := s.resolver.Session(ctx, token)
	if err != nil {
		return nil
	}
	return &sess
}

func (s *ThemeSocket) readLoop(ctx context.Context, c *socketClient, token string) {
	defer func() {
		s.remove(c)
		_ = c.conn.Close()
	}()

	gate := service.NewGate(s.resolver)
	p := gate.OnSessionChange(ctx, s.sessionFor(ctx, token))
	s.send(c, socketMessage{Type: "principal", Principal: &p})

	c.conn.SetReadLimit(maxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg socketMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "session":
			p := gate.OnSessionChange(ctx, s.sessionFor(ctx, msg.Token))
			s.send(c, socketMessage{Type: "principal", Principal: &p})
		case "logout":
			gate.Logout()
			p := gate.Principal()
			s.send(c, socketMessage{Type: "principal", Principal: &p})
		}
	}
}

func (s *ThemeSocket) writeLoop(c *socketClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
