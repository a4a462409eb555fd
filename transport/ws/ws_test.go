package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAcceptDialRoundTripsFrames(t *testing.T) {
	opts := Options{PingInterval: 50 * time.Millisecond, MaxPayloadBytes: 1 << 16}

	var server http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		transport, err := Accept(w, r, opts, nil)
		if err != nil {
			t.Errorf("Accept: %v", err)
			return
		}
		frame := <-transport.Inbound
		transport.Outbound <- append([]byte("echo:"), frame...)
	})
	srv := httptest.NewServer(server)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	client, err := Dial(url, "", opts)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	client.Outbound <- []byte("hello")

	select {
	case got := <-client.Inbound:
		if string(got) != "echo:hello" {
			t.Fatalf("unexpected echoed frame: %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echoed frame")
	}
}
