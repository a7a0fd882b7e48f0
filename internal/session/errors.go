package session

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRoomID     = errors.New("invalid room id")
	ErrNameTaken         = errors.New("name already taken in room")
	ErrInvalidTarget     = errors.New("target is not a member of the sender's room")
	ErrNotHost           = errors.New("requester is not the room host")
	ErrUnknownTarget     = errors.New("target is not a member of the room")
	ErrRateLimited       = errors.New("chat rate limit exceeded")
	ErrMessageTooLong    = errors.New("message too long")
	ErrEmptyMessage      = errors.New("message is empty")
	ErrNotInRoom         = errors.New("connection is not in a room")
	ErrAlreadyInRoom     = errors.New("connection is already in a room")
	ErrUnknownConnection = errors.New("unknown connection")
)

// Operation names, matching the inbound event that triggers them.
const (
	OpJoin         = EventJoinRoom
	OpOffer        = EventOffer
	OpAnswer       = EventAnswer
	OpIceCandidate = EventIceCandidate
	OpChat         = EventChatMessage
	OpMuteAll      = EventHostMuteAll
	OpKick         = EventHostKickUser
)

// Error records the operation and room an error happened in.
type Error struct {
	Op   string
	Room string
	Err  error
}

func (e *Error) Error() string {
	if e.Room != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Room, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func opError(op, room string, err error) *Error {
	return &Error{Op: op, Room: room, Err: err}
}

// UserMessage returns the text sent to the client in an error event.
func UserMessage(err error) string {
	var opErr *Error
	hasOp := errors.As(err, &opErr)

	switch {
	case errors.Is(err, ErrInvalidRoomID):
		return "Invalid room ID. Must be 6 digits."
	case errors.Is(err, ErrNameTaken):
		return "Name already taken in this room. Please choose a different name."
	case errors.Is(err, ErrInvalidTarget):
		return "Invalid target user"
	case errors.Is(err, ErrNotHost):
		if hasOp && opErr.Op == OpMuteAll {
			return "Only host can mute all"
		}
		return "Only host can kick users"
	case errors.Is(err, ErrUnknownTarget):
		return "User not found"
	case errors.Is(err, ErrRateLimited):
		return "Message rate limit exceeded. Please wait a moment."
	case errors.Is(err, ErrEmptyMessage):
		return "Message cannot be empty"
	case errors.Is(err, ErrMessageTooLong):
		return "Message too long"
	case errors.Is(err, ErrNotInRoom), errors.Is(err, ErrUnknownConnection):
		return "You must join a room first"
	case errors.Is(err, ErrAlreadyInRoom):
		return "You are already in a room. Leave it before joining another."
	}

	if hasOp {
		switch opErr.Op {
		case OpJoin:
			return "Failed to join room"
		case OpChat:
			return "Failed to send message"
		}
	}
	return "Request failed"
}
