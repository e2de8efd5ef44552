package http

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/craquetonbudget/bonsplans/internal/models"
	"github.com/craquetonbudget/bonsplans/internal/service"
)

func dialSocket(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) socketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg socketMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func principalKind(t *testing.T, conn *websocket.Conn) models.PrincipalKind {
	t.Helper()
	msg := readMessage(t, conn)
	require.Equal(t, "principal", msg.Type)
	require.NotNil(t, msg.Principal)
	return msg.Principal.Kind
}

func TestThemeSocket_BroadcastsTokens(t *testing.T) {
	sock := NewThemeSocket(newFakeResolver(), zap.NewNop())
	defer sock.Close()
	sock.ApplyTokens(service.TokensFor(service.DefaultTheme()))

	srv := httptest.NewServer(sock)
	defer srv.Close()
	conn := dialSocket(t, srv)

	first := readMessage(t, conn)
	require.Equal(t, "tokens", first.Type)
	assert.Equal(t, "#6366f1", first.Tokens.Vars["--primary"])

	require.Equal(t, models.Anonymous, principalKind(t, conn))

	theme := service.DefaultTheme()
	theme.PrimaryColor = "#000000"
	sock.ApplyTokens(service.TokensFor(theme))

	next := readMessage(t, conn)
	require.Equal(t, "tokens", next.Type)
	assert.Equal(t, "#000000", next.Tokens.Vars["--primary"])
	assert.Equal(t, 1, sock.Clients())
}

func TestThemeSocket_SessionChanges(t *testing.T) {
	sock := NewThemeSocket(newFakeResolver(), zap.NewNop())
	defer sock.Close()
	srv := httptest.NewServer(sock)
	defer srv.Close()
	conn := dialSocket(t, srv)

	require.Equal(t, models.Anonymous, principalKind(t, conn))

	require.NoError(t, conn.WriteJSON(socketMessage{Type: "session", Token: "tok-user"}))
	assert.Equal(t, models.Customer, principalKind(t, conn))

	require.NoError(t, conn.WriteJSON(socketMessage{Type: "session", Token: "tok-admin"}))
	assert.Equal(t, models.Administrator, principalKind(t, conn))

	require.NoError(t, conn.WriteJSON(socketMessage{Type: "session", Token: "forged"}))
	assert.Equal(t, models.Anonymous, principalKind(t, conn))

	require.NoError(t, conn.WriteJSON(socketMessage{Type: "session", Token: "tok-user"}))
	assert.Equal(t, models.Customer, principalKind(t, conn))
	require.NoError(t, conn.WriteJSON(socketMessage{Type: "logout"}))
	assert.Equal(t, models.Anonymous, principalKind(t, conn))
}

func TestThemeSocket_CloseDisconnects(t *testing.T) {
	sock := NewThemeSocket(newFakeResolver(), zap.NewNop())
	srv := httptest.NewServer(sock)
	defer srv.Close()
	conn := dialSocket(t, srv)
	principalKind(t, conn)

	sock.Close()
	assert.Equal(t, 0, sock.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

var _ service.TokenSink = (*ThemeSocket)(nil)
