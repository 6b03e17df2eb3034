package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/npezzotti/go-chat-gateway/internal/config"
	"github.com/npezzotti/go-chat-gateway/internal/server"
	"github.com/npezzotti/go-chat-gateway/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewGoChatApp(t *testing.T) {
	mux := http.NewServeMux()
	logger := testutil.TestLogger(t)
	cs := &server.ChatServer{}
	rooms := &mockRoomLister{}
	cfg := &config.Config{
		ServerAddr:     "localhost:8080",
		ServerId:       "gw-1",
		AllowedOrigins: []string{"http://localhost:3000"},
	}

	app := NewGoChatApp(mux, logger, cs, rooms, cfg)

	assert.NotNil(t, app, "expected app to be initialized")
	assert.NotNil(t, app.mux, "expected mux to be initialized")
	assert.Equal(t, logger, app.log, "expected logger to be set")
	assert.Equal(t, cs, app.cs, "expected chat server to be set")
	assert.Equal(t, rooms, app.rooms, "expected room lister to be set")
	assert.Equal(t, "gw-1", app.serverId, "expected server id to be set")
	assert.Equal(t, cfg.AllowedOrigins, app.allowedOrigins, "expected allowed origins to be set")
	assert.Equal(t, cfg.ServerAddr, app.mux.Addr, "expected server address to match config")
}

func TestGoChatApp_CORS(t *testing.T) {
	app := NewGoChatApp(http.NewServeMux(), testutil.TestLogger(t), nil, &mockRoomLister{}, &config.Config{
		ServerId:       "gw-1",
		AllowedOrigins: []string{"http://localhost:3000"},
	})

	tcases := []struct {
		name   string
		origin string
		want   string
	}{
		{name: "allowed origin", origin: "http://localhost:3000", want: "http://localhost:3000"},
		{name: "disallowed origin", origin: "http://evil.test", want: ""},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("Origin", tc.origin)
			rr := httptest.NewRecorder()

			app.mux.Handler.ServeHTTP(rr, req)

			assert.Equal(t, tc.want, rr.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestGoChatApp_Shutdown(t *testing.T) {
	app := NewGoChatApp(http.NewServeMux(), testutil.TestLogger(t), nil, &mockRoomLister{}, &config.Config{
		ServerAddr:     "127.0.0.1:0",
		AllowedOrigins: []string{"*"},
	})

	assert.NoError(t, app.Shutdown(context.Background()), "expected shutdown of an idle server to succeed")
}
