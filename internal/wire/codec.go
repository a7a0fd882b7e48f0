// Package wire encodes and decodes the event frames exchanged over a
// signaling WebSocket. Every frame is an envelope {"event": name, "data": payload}.
package wire

import (
	"errors"

	"github.com/gorilla/websocket"
)

// Subprotocol names a client can request during the WebSocket handshake.
const (
	SubprotocolJSON    = "json"
	SubprotocolMsgpack = "msgpack"
)

var (
	ErrMissingEvent = errors.New("frame has no event name")
	ErrFrameType    = errors.New("unexpected frame type")
)

// Codec turns events into frames and back.
type Codec interface {
	Name() string

	// FrameType is the websocket message type frames are sent as.
	FrameType() int

	Encode(event string, data any) ([]byte, error)
	Decode(frame []byte) (*Envelope, error)
}

// Envelope is a decoded frame whose payload is decoded lazily by Bind.
type Envelope struct {
	Event string

	data   []byte
	unpack func(data []byte, v any) error
}

// Bind decodes the payload into v. A frame without data leaves v untouched.
func (e *Envelope) Bind(v any) error {
	if len(e.data) == 0 {
		return nil
	}
	return e.unpack(e.data, v)
}

// Subprotocols lists the subprotocols the server accepts, preferred first.
func Subprotocols() []string {
	return []string{SubprotocolMsgpack, SubprotocolJSON}
}

// ForSubprotocol returns the codec negotiated for a connection. An empty or
// unknown subprotocol falls back to JSON.
func ForSubprotocol(name string) Codec {
	if name == SubprotocolMsgpack {
		return Msgpack
	}
	return JSON
}

// CheckFrameType rejects frames that do not match the codec, e.g. a text
// frame on a msgpack connection.
func CheckFrameType(c Codec, messageType int) error {
	if messageType == c.FrameType() {
		return nil
	}
	if c.FrameType() == websocket.TextMessage && messageType == websocket.BinaryMessage {
		// Browsers occasionally send JSON as a binary blob.
		return nil
	}
	return ErrFrameType
}
