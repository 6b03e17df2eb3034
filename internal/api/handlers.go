package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-chat-gateway/internal/chat"
	"github.com/npezzotti/go-chat-gateway/internal/server"
	"github.com/npezzotti/go-chat-gateway/internal/types"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Server    string    `json:"server"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *GoChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *GoChatApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	s.writeJson(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Server:    s.serverId,
		Timestamp: types.Now(),
	})
}

func (s *GoChatApp) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.rooms.ListRooms(r.Context())
	if err != nil {
		s.log.Println("list rooms:", err)
		errResp := NewServiceUnavailableError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, rooms)
}

func (s *GoChatApp) getRoom(w http.ResponseWriter, r *http.Request) {
	room := r.PathValue("room")
	count, err := s.rooms.MemberCount(r.Context(), room)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, chat.ErrInvalidInput) {
			errResp = NewBadRequestError(err)
		} else {
			s.log.Printf("member count %q: %v", room, err)
			errResp = NewServiceUnavailableError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, types.RoomInfo{
		Id:          room,
		Name:        room,
		MemberCount: count,
	})
}

func (s *GoChatApp) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// non-browser clients
		return true
	}

	return slices.Contains(s.allowedOrigins, "*") || slices.Contains(s.allowedOrigins, origin)
}

func (s *GoChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(conn, s.cs, s.log)
	s.cs.RegisterClient(client)
	s.log.Printf("client %s connected from %s", client.Id(), r.RemoteAddr)

	go client.Write()
	go client.Read()
}
