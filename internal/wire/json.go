package wire

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
)

// JSON is the default codec, used by browser clients.
var JSON Codec = jsonCodec{}

type jsonCodec struct{}

type jsonOut struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type jsonIn struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func (jsonCodec) Name() string   { return SubprotocolJSON }
func (jsonCodec) FrameType() int { return websocket.TextMessage }

func (jsonCodec) Encode(event string, data any) ([]byte, error) {
	b, err := json.Marshal(jsonOut{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return b, nil
}

func (jsonCodec) Decode(frame []byte) (*Envelope, error) {
	var in jsonIn
	if err := json.Unmarshal(frame, &in); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if in.Event == "" {
		return nil, ErrMissingEvent
	}

	data := []byte(in.Data)
	if string(data) == "null" {
		data = nil
	}
	return &Envelope{Event: in.Event, data: data, unpack: json.Unmarshal}, nil
}
