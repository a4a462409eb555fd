package wire

import (
	"encoding/json"
	"testing"

	"echo/protocol"
)

func TestJSONCodecRoundTripsEveryMessage(t *testing.T) {
	codec := NewJSONCodec(nil)
	testCodecRoundTrip(t, codec)
}

func TestJSONCodecRoundTripsWithSnappy(t *testing.T) {
	codec := NewJSONCodec(NewSnappyCompressor())
	testCodecRoundTrip(t, codec)
}

func TestProtoCodecRoundTripsEveryMessage(t *testing.T) {
	codec := NewProtoCodec(nil)
	testCodecRoundTrip(t, codec)
}

func TestProtoCodecRoundTripsWithZstd(t *testing.T) {
	codec := NewProtoCodec(NewZstdCompressor())
	testCodecRoundTrip(t, codec)
}

func TestJSONCodecRoundTripsWithNoopCompressor(t *testing.T) {
	codec := NewJSONCodec(NewNoopCompressor())
	testCodecRoundTrip(t, codec)
}

type roundTripCodec interface {
	EncodeIncoming(protocol.Incoming) ([]byte, error)
	DecodeIncoming([]byte) (protocol.Incoming, error)
	EncodeOutgoing(protocol.Outgoing) ([]byte, error)
	DecodeOutgoing([]byte) (protocol.Outgoing, error)
}

func testCodecRoundTrip(t *testing.T, codec roundTripCodec) {
	t.Helper()

	incoming := []protocol.Incoming{
		protocol.Advertisement{Site: 7},
		protocol.Ready{},
		protocol.Event{Seq: 3, Site: 7, Body: json.RawMessage(`{"x":1}`)},
		protocol.Done{},
	}
	for _, want := range incoming {
		frame, err := codec.EncodeIncoming(want)
		if err != nil {
			t.Fatalf("encode %#v: %v", want, err)
		}
		got, err := codec.DecodeIncoming(frame)
		if err != nil {
			t.Fatalf("decode %#v: %v", want, err)
		}
		assertIncomingEqual(t, want, got)
	}

	outgoing := []protocol.Outgoing{
		protocol.Acknowledge{Site: 2, NextSeqno: 5},
		protocol.Request{Site: 2, NextForSite: 5, NextForAll: 9, Count: 100},
		protocol.Done{},
	}
	for _, want := range outgoing {
		frame, err := codec.EncodeOutgoing(want)
		if err != nil {
			t.Fatalf("encode %#v: %v", want, err)
		}
		got, err := codec.DecodeOutgoing(frame)
		if err != nil {
			t.Fatalf("decode %#v: %v", want, err)
		}
		assertOutgoingEqual(t, want, got)
	}
}

func assertIncomingEqual(t *testing.T, want, got protocol.Incoming) {
	t.Helper()
	switch w := want.(type) {
	case protocol.Advertisement:
		g, ok := got.(protocol.Advertisement)
		if !ok || g.Site != w.Site {
			t.Fatalf("Advertisement mismatch: want %+v got %+v", w, got)
		}
	case protocol.Ready:
		if _, ok := got.(protocol.Ready); !ok {
			t.Fatalf("expected Ready, got %T", got)
		}
	case protocol.Event:
		g, ok := got.(protocol.Event)
		if !ok || g.Seq != w.Seq || g.Site != w.Site || string(g.Body) != string(w.Body) {
			t.Fatalf("Event mismatch: want %+v got %+v", w, got)
		}
	case protocol.Done:
		if _, ok := got.(protocol.Done); !ok {
			t.Fatalf("expected Done, got %T", got)
		}
	}
}

func assertOutgoingEqual(t *testing.T, want, got protocol.Outgoing) {
	t.Helper()
	switch w := want.(type) {
	case protocol.Acknowledge:
		g, ok := got.(protocol.Acknowledge)
		if !ok || g.Site != w.Site || g.NextSeqno != w.NextSeqno {
			t.Fatalf("Acknowledge mismatch: want %+v got %+v", w, got)
		}
	case protocol.Request:
		g, ok := got.(protocol.Request)
		if !ok || g.Site != w.Site || g.NextForSite != w.NextForSite || g.NextForAll != w.NextForAll || g.Count != w.Count {
			t.Fatalf("Request mismatch: want %+v got %+v", w, got)
		}
	case protocol.Done:
		if _, ok := got.(protocol.Done); !ok {
			t.Fatalf("expected Done, got %T", got)
		}
	}
}
