// Package grpcstream carries opaque Echo wire frames over a single
// bidirectional-streaming gRPC method. No protoc-generated service stubs
// are available in this environment, so the service is registered by
// hand as a grpc.ServiceDesc with one grpc.StreamDesc, and frames are
// carried as raw []byte using a custom encoding.Codec — the same
// "generic proxy" technique real gRPC codebases use to relay opaque
// payloads without compiled message types.
package grpcstream

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"echo/site"
)

const codecName = "raw"

func init() {
	encoding.RegisterCodec(rawCodec{})
}

// rawCodec marshals/unmarshals the wire's own already-encoded []byte
// frames directly, so gRPC never needs a generated message type.
type rawCodec struct{}

func (rawCodec) Name() string { return codecName }

func (rawCodec) Marshal(v any) ([]byte, error) {
	frame, ok := v.(*[]byte)
	if !ok {
		return v.([]byte), nil
	}
	return *frame, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	frame, ok := v.(*[]byte)
	if !ok {
		return nil
	}
	*frame = append([]byte(nil), data...)
	return nil
}

// ServiceName is the fully-qualified gRPC service name this package
// registers, for use in ServiceDesc and by clients constructing the
// method path by hand (no stub is generated to do it for them).
const ServiceName = "echo.Sync"

const fullMethod = "/" + ServiceName + "/Stream"

// ServiceDesc is the hand-authored grpc.ServiceDesc for the single
// bidi-streaming Sync.Stream method; pass a Handler implementation to
// grpc.NewServer.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Handler)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       streamHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
}

// Handler is implemented by the server-side binding point; its sole
// purpose is to satisfy grpc.ServiceDesc.HandlerType's reflection
// contract (grpc looks up Handler.(type) only to find streamHandler).
type Handler interface {
	Stream(site.Transport) error
}

// server adapts a per-connection callback to Handler so RegisterService
// has a concrete receiver; each accepted stream gets a fresh Transport.
type server struct {
	onStream func(site.Transport) error
}

func (s *server) Stream(t site.Transport) error { return s.onStream(t) }

// Register installs the Sync service on grpcServer; onStream is invoked
// once per accepted stream with the Transport bridging it.
func Register(grpcServer *grpc.Server, onStream func(site.Transport) error) {
	grpcServer.RegisterService(&ServiceDesc, &server{onStream: onStream})
}

func streamHandler(srv any, stream grpc.ServerStream) error {
	h := srv.(Handler)
	inbound := make(chan []byte, 256)
	outbound := make(chan []byte, 256)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(inbound)
		for {
			var frame []byte
			if err := stream.RecvMsg(&frame); err != nil {
				return
			}
			select {
			case inbound <- frame:
			case <-done:
				return
			}
		}
	}()
	go func() {
		for frame := range outbound {
			if err := stream.SendMsg(&frame); err != nil {
				return
			}
		}
	}()

	return h.Stream(site.Transport{Inbound: inbound, Outbound: outbound})
}

// Dial opens the Sync.Stream bidi call against an established
// *grpc.ClientConn and returns the site.Transport bridging it.
func Dial(ctx context.Context, conn *grpc.ClientConn) (site.Transport, error) {
	stream, err := conn.NewStream(ctx, &ServiceDesc.Streams[0], fullMethod, grpc.CallContentSubtype(codecName))
	if err != nil {
		return site.Transport{}, err
	}

	inbound := make(chan []byte, 256)
	outbound := make(chan []byte, 256)
	done := make(chan struct{})

	go func() {
		defer close(inbound)
		for {
			var frame []byte
			if err := stream.RecvMsg(&frame); err != nil {
				return
			}
			select {
			case inbound <- frame:
			case <-done:
				return
			}
		}
	}()
	go func() {
		for frame := range outbound {
			if err := stream.SendMsg(&frame); err != nil {
				return
			}
		}
		_ = stream.CloseSend()
	}()

	go func() {
		<-ctx.Done()
		close(done)
	}()

	return site.Transport{Inbound: inbound, Outbound: outbound}, nil
}
