package wire

import (
	"bytes"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack encodes frames as MessagePack binary messages. Field names follow
// the json struct tags so both codecs share one set of payload types.
var Msgpack Codec = msgpackCodec{}

type msgpackCodec struct{}

type msgpackOut struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type msgpackIn struct {
	Event string             `json:"event"`
	Data  msgpack.RawMessage `json:"data,omitempty"`
}

func (msgpackCodec) Name() string   { return SubprotocolMsgpack }
func (msgpackCodec) FrameType() int { return websocket.BinaryMessage }

func (msgpackCodec) Encode(event string, data any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(msgpackOut{Event: event, Data: data}); err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Decode(frame []byte) (*Envelope, error) {
	var in msgpackIn
	if err := unpackMsgpack(frame, &in); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if in.Event == "" {
		return nil, ErrMissingEvent
	}

	data := []byte(in.Data)
	if len(data) == 1 && data[0] == msgpackNil {
		data = nil
	}
	return &Envelope{Event: in.Event, data: data, unpack: unpackMsgpack}, nil
}

const msgpackNil = 0xc0

func unpackMsgpack(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
