package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/npezzotti/go-chat-gateway/internal/chat"
	"github.com/npezzotti/go-chat-gateway/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Join    *Join    `json:"join,omitempty"`
	Send    *Send    `json:"send,omitempty"`
	Typing  *Typing  `json:"typing,omitempty"`
	History *History `json:"history,omitempty"`
}

type Join struct {
	DisplayName string `json:"display_name"`
	Room        string `json:"room"`
}

type Send struct {
	Room string `json:"room"`
	Body string `json:"body"`
}

type Typing struct {
	Room     string `json:"room"`
	IsTyping bool   `json:"is_typing"`
}

type History struct {
	Room string `json:"room"`
}

type ServerMessage struct {
	BaseMessage
	Response     *Response      `json:"response,omitempty"`
	Message      *types.Message `json:"message,omitempty"`
	Notification *Notification  `json:"notification,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

type Notification struct {
	Presence *types.Presence    `json:"presence,omitempty"`
	Typing   *types.TypingState `json:"typing,omitempty"`
}

type JoinResult struct {
	SessionId   string `json:"session_id"`
	Room        string `json:"room"`
	MemberCount int64  `json:"member_count"`
}

type HistoryResult struct {
	Room     string          `json:"room"`
	Messages []types.Message `json:"messages"`
}

// eventMessage converts a bus event into what local clients receive.
func eventMessage(ev types.Event) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
	}

	switch ev.Type {
	case types.EventMessage:
		msg.Message = ev.Message
		if ev.Message != nil {
			msg.Timestamp = ev.Message.Timestamp
		}
	case types.EventPresence:
		msg.Notification = &Notification{Presence: ev.Presence}
		if ev.Presence != nil {
			msg.Timestamp = ev.Presence.Timestamp
		}
	case types.EventTyping:
		msg.Notification = &Notification{Typing: ev.Typing}
	default:
		return nil
	}

	return msg
}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func errResponse(id, code int, text string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        text,
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	return errResponse(id, http.StatusBadRequest, "invalid message format")
}

func ErrBadRequest(id int, text string) *ServerMessage {
	return errResponse(id, http.StatusBadRequest, text)
}

func ErrNotAuthenticated(id int) *ServerMessage {
	return errResponse(id, http.StatusUnauthorized, "not authenticated")
}

func ErrNotInRoom(id int) *ServerMessage {
	return errResponse(id, http.StatusForbidden, "not a member of room")
}

func ErrAlreadyJoined(id int) *ServerMessage {
	return errResponse(id, http.StatusConflict, "already joined a room")
}

func ErrMessageTooLong(id int) *ServerMessage {
	return errResponse(id, http.StatusRequestEntityTooLarge, "message too long")
}

func ErrTooManyRequests(id int) *ServerMessage {
	return errResponse(id, http.StatusTooManyRequests, "too many requests")
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return errResponse(id, http.StatusServiceUnavailable, "service unavailable")
}

func ErrInternalError(id int) *ServerMessage {
	return errResponse(id, http.StatusInternalServerError, "internal server error")
}

// errorMessage maps a chat error to the notice sent to the caller.
func errorMessage(id int, err error) *ServerMessage {
	switch {
	case errors.Is(err, chat.ErrNotAuthenticated):
		return ErrNotAuthenticated(id)
	case errors.Is(err, chat.ErrNotInRoom):
		return ErrNotInRoom(id)
	case errors.Is(err, chat.ErrAlreadyJoined):
		return ErrAlreadyJoined(id)
	case errors.Is(err, chat.ErrMessageTooLong):
		return ErrMessageTooLong(id)
	case errors.Is(err, chat.ErrInvalidInput):
		return ErrBadRequest(id, "invalid input")
	case errors.Is(err, chat.ErrStoreUnavailable), errors.Is(err, chat.ErrBusUnavailable):
		return ErrServiceUnavailable(id)
	default:
		return ErrInternalError(id)
	}
}

func Now() time.Time {
	return types.Now()
}
