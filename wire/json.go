package wire

import (
	"encoding/json"
	"fmt"

	"echo/protocol"
)

// JSONCodec encodes protocol messages as a tagged JSON envelope, human
// inspectable by default; an optional Compressor wraps the encoded bytes.
type JSONCodec struct {
	Compressor Compressor
}

// NewJSONCodec returns a JSONCodec; if compressor is nil, frames are
// sent uncompressed.
func NewJSONCodec(compressor Compressor) JSONCodec {
	return JSONCodec{Compressor: compressor}
}

type envelope struct {
	Kind string          `json:"kind"`
	Body json.RawMessage `json:"body"`
}

func (c JSONCodec) wrap(kind string, body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal %s: %w", kind, err)
	}
	frame, err := json.Marshal(envelope{Kind: kind, Body: raw})
	if err != nil {
		return nil, fmt.Errorf("wire: marshal envelope: %w", err)
	}
	return c.compress(frame)
}

func (c JSONCodec) compress(frame []byte) ([]byte, error) {
	if c.Compressor == nil {
		return frame, nil
	}
	return c.Compressor.Compress(frame)
}

func (c JSONCodec) decompress(frame []byte) ([]byte, error) {
	if c.Compressor == nil {
		return frame, nil
	}
	return c.Compressor.Decompress(frame)
}

// EncodeIncoming implements site.Codec.
func (c JSONCodec) EncodeIncoming(msg protocol.Incoming) ([]byte, error) {
	switch m := msg.(type) {
	case protocol.Advertisement:
		return c.wrap("advertisement", m)
	case protocol.Ready:
		return c.wrap("ready", m)
	case protocol.Event:
		return c.wrap("event", m)
	case protocol.Done:
		return c.wrap("done", m)
	default:
		return nil, fmt.Errorf("wire: unknown incoming message %T", msg)
	}
}

// DecodeIncoming implements site.Codec.
func (c JSONCodec) DecodeIncoming(data []byte) (protocol.Incoming, error) {
	frame, err := c.decompress(data)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("wire: unmarshal envelope: %w", err)
	}
	switch env.Kind {
	case "advertisement":
		var m protocol.Advertisement
		err = json.Unmarshal(env.Body, &m)
		return m, err
	case "ready":
		var m protocol.Ready
		err = json.Unmarshal(env.Body, &m)
		return m, err
	case "event":
		var m protocol.Event
		err = json.Unmarshal(env.Body, &m)
		return m, err
	case "done":
		var m protocol.Done
		err = json.Unmarshal(env.Body, &m)
		return m, err
	default:
		return nil, fmt.Errorf("wire: unknown incoming kind %q", env.Kind)
	}
}

// EncodeOutgoing implements site.Codec.
func (c JSONCodec) EncodeOutgoing(msg protocol.Outgoing) ([]byte, error) {
	switch m := msg.(type) {
	case protocol.Acknowledge:
		return c.wrap("acknowledge", m)
	case protocol.Request:
		return c.wrap("request", m)
	case protocol.Done:
		return c.wrap("done", m)
	default:
		return nil, fmt.Errorf("wire: unknown outgoing message %T", msg)
	}
}

// DecodeOutgoing implements site.Codec.
func (c JSONCodec) DecodeOutgoing(data []byte) (protocol.Outgoing, error) {
	frame, err := c.decompress(data)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("wire: unmarshal envelope: %w", err)
	}
	switch env.Kind {
	case "acknowledge":
		var m protocol.Acknowledge
		err = json.Unmarshal(env.Body, &m)
		return m, err
	case "request":
		var m protocol.Request
		err = json.Unmarshal(env.Body, &m)
		return m, err
	case "done":
		var m protocol.Done
		err = json.Unmarshal(env.Body, &m)
		return m, err
	default:
		return nil, fmt.Errorf("wire: unknown outgoing kind %q", env.Kind)
	}
}
