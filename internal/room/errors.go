package room

import (
	"errors"
	"fmt"
)

var (
	ErrRoomMismatch   = errors.New("room code mismatch")
	ErrSecretMismatch = errors.New("room secret mismatch")
	ErrUnknownInvite  = errors.New("no pending invite")
	ErrConflict       = errors.New("already hosting participants")
	ErrNegotiation    = errors.New("negotiation failed")
	ErrNotHost        = errors.New("not hosting a room")
)

// RoomError is returned by room operations. Err is one of the sentinels
// above; Details is a sentence suitable for the user.
type RoomError struct {
	Op      string
	Err     error
	Details string
}

func (e *RoomError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RoomError) Unwrap() error {
	return e.Err
}

func newError(op string, err error) *RoomError {
	return &RoomError{Op: op, Err: err}
}

func wrapError(op string, err error, details string) *RoomError {
	return &RoomError{Op: op, Err: err, Details: details}
}

// userMessage picks the text shown for a failed operation.
func userMessage(err error) string {
	var roomErr *RoomError
	if errors.As(err, &roomErr) && roomErr.Details != "" {
		return roomErr.Details
	}
	return err.Error()
}
