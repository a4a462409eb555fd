package grpcstream

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"echo/site"
)

func TestStreamRoundTripsFrames(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	srv := grpc.NewServer()
	Register(srv, func(t site.Transport) error {
		for frame := range t.Inbound {
			t.Outbound <- append([]byte("echo:"), frame...)
		}
		close(t.Outbound)
		return nil
	})
	go srv.Serve(lis)
	defer srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(ctx, lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()), grpc.WithBlock())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	transport, err := Dial(ctx, conn)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	transport.Outbound <- []byte("hello")

	select {
	case got := <-transport.Inbound:
		if string(got) != "echo:hello" {
			t.Fatalf("unexpected frame: %q", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for echoed frame")
	}
}
