package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chatapp/config"
	"chatapp/internal/handler"
	"chatapp/internal/repository/memory"
	"chatapp/internal/services"
	"chatapp/internal/websocket"
	"chatapp/pkg/logger"
)

func newTestServer(t *testing.T, health func(context.Context) error) *Server {
	t.Helper()
	cfg := &config.Config{AppPort: "0", AppMode: TestMode, CORSOrigin: "*"}
	store := memory.NewStore()
	hub := websocket.NewHub(logger.Nop())
	chats := services.NewChatService(store.Chats, logger.Nop())
	messages := services.NewMessageService(store.Messages, store.Chats, hub, services.DefaultMessageConfig(), logger.Nop())
	summaries := services.NewSummaryService(store.Chats, store.Messages, store.Users, logger.Nop())

	srv := New(cfg, logger.Nop())
	srv.SetupRoutes(&Handlers{
		Chat:      handler.NewChatHandler(chats, summaries),
		Message:   handler.NewMessageHandler(messages, nil, 0),
		WebSocket: websocket.NewHandler(hub, messages, websocket.NewRoomAuthorizer(chats, true), nil, websocket.HandlerConfig{}, logger.Nop()),
	}, Options{Health: health, UploadDir: t.TempDir()})
	return srv
}

func get(srv *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Routes(t *testing.T) {
	t.Run("should answer ping", func(t *testing.T) {
		rec := get(newTestServer(t, nil), "/ping")

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "pong")
	})

	t.Run("should report unhealthy storage", func(t *testing.T) {
		srv := newTestServer(t, func(context.Context) error { return errors.New("db down") })

		rec := get(srv, "/health")

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Contains(t, rec.Body.String(), "UNHEALTHY")
	})

	t.Run("should route chat lookups next to the user listing", func(t *testing.T) {
		srv := newTestServer(t, nil)

		require.Equal(t, http.StatusOK, get(srv, "/chats/user/"+uuid.NewString()).Code)
		require.Equal(t, http.StatusNotFound, get(srv, "/chats/"+uuid.NewString()).Code)
		require.Equal(t, http.StatusNotFound, get(srv, "/messages/"+uuid.NewString()).Code)
		require.Equal(t, http.StatusNotFound, get(srv, "/messages/chat/"+uuid.NewString()).Code)
	})

	t.Run("should carry a request id on every response", func(t *testing.T) {
		rec := get(newTestServer(t, nil), "/ping")

		require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	})
}
