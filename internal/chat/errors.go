package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned when a connection has no session.
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrBusUnavailable   = errors.New("bus unavailable")
	ErrInvalidInput     = errors.New("invalid input")
	// ErrEmptyMessage is dropped by callers without notifying the client.
	ErrEmptyMessage   = fmt.Errorf("%w: empty message", ErrInvalidInput)
	ErrMessageTooLong = fmt.Errorf("%w: message too long", ErrInvalidInput)
	ErrNotInRoom      = errors.New("not a member of room")
	ErrAlreadyJoined  = errors.New("already joined a room")
)

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func busErr(err error) error {
	return fmt.Errorf("%w: %v", ErrBusUnavailable, err)
}
