package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-chat-gateway/internal/config"
	"github.com/npezzotti/go-chat-gateway/internal/server"
	"github.com/npezzotti/go-chat-gateway/internal/types"
)

// RoomLister reports known rooms with their current member counts.
type RoomLister interface {
	ListRooms(ctx context.Context) ([]types.RoomInfo, error)
	MemberCount(ctx context.Context, room string) (int64, error)
}

type GoChatApp struct {
	log            *log.Logger
	mux            *http.Server
	cs             *server.ChatServer
	rooms          RoomLister
	serverId       string
	allowedOrigins []string
}

func NewGoChatApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, rooms RoomLister, cfg *config.Config) *GoChatApp {
	s := &GoChatApp{
		log:            logger,
		cs:             cs,
		rooms:          rooms,
		serverId:       cfg.ServerId,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /health", s.healthCheck)
	mux.HandleFunc("GET /api/rooms", s.listRooms)
	mux.HandleFunc("GET /api/rooms/{room}", s.getRoom)
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
	)(mux)

	h = s.recoverPanics(h)

	s.mux = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *GoChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *GoChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
