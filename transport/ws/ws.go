// Package ws adapts a gorilla/websocket connection to the site.Transport
// shape: a reader pump and a writer pump bridging the socket to the
// inbound/outbound byte channels site.Site drives an exchange with,
// following the teacher's client reader/writer goroutine pair.
package ws

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"echo/internal/auth"
	"echo/internal/logging"
	"echo/site"
)

// pongWaitMultiplier mirrors the teacher's read-deadline-equals-N-pings
// convention: the read deadline is pingInterval * pongWaitMultiplier,
// extended on every received frame and on every pong.
const pongWaitMultiplier = 2

const writeWait = 10 * time.Second

// Options bounds frame size and keepalive cadence, sourced from
// config.Config in a running site process.
type Options struct {
	PingInterval    time.Duration
	MaxPayloadBytes int64
	Log             *logging.Logger
}

var upgrader = websocket.Upgrader{}

// Accept upgrades an inbound HTTP request to a websocket connection and
// returns the site.Transport pumping bytes over it. tokenVerifier may be
// nil to skip peer handshake authentication.
func Accept(w http.ResponseWriter, r *http.Request, opts Options, tokenVerifier *auth.HMACTokenVerifier) (site.Transport, error) {
	if tokenVerifier != nil {
		claims, err := verifyRequestToken(r, tokenVerifier)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return site.Transport{}, err
		}
		if opts.Log != nil {
			opts.Log.Debug("accepted peer handshake", logging.Site(claims.Subject))
		}
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return site.Transport{}, err
	}
	return pump(conn, opts), nil
}

// Dial opens a websocket connection to a peer and returns its Transport.
// If token is non-empty it is sent as the auth_token query parameter.
func Dial(url string, token string, opts Options) (site.Transport, error) {
	dialer := websocket.DefaultDialer
	if token != "" {
		url = url + "?auth_token=" + token
	}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return site.Transport{}, err
	}
	return pump(conn, opts), nil
}

func verifyRequestToken(r *http.Request, verifier *auth.HMACTokenVerifier) (*auth.TokenClaims, error) {
	token := r.URL.Query().Get("auth_token")
	if token == "" {
		token = r.Header.Get("Authorization")
	}
	if token == "" {
		return nil, errors.New("ws: missing auth token")
	}
	return verifier.Verify(token)
}

// pump wires conn's read/write loops to fresh inbound/outbound channels,
// per spec.md §6 "transport layer is responsible for framing... and
// connection lifecycle": closing Inbound signals "peer finished", and
// site closing Outbound is this adapter's signal to tear the socket down.
func pump(conn *websocket.Conn, opts Options) site.Transport {
	inbound := make(chan []byte, 256)
	outbound := make(chan []byte, 256)

	pingInterval := opts.PingInterval
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	waitDuration := pongWaitMultiplier * pingInterval

	if opts.MaxPayloadBytes > 0 {
		conn.SetReadLimit(opts.MaxPayloadBytes)
	}
	_ = conn.SetReadDeadline(time.Now().Add(waitDuration))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(waitDuration))
	})

	go readPump(conn, inbound, waitDuration, opts.Log)
	go writePump(conn, outbound, pingInterval)

	return site.Transport{Inbound: inbound, Outbound: outbound}
}

func readPump(conn *websocket.Conn, inbound chan<- []byte, waitDuration time.Duration, log *logging.Logger) {
	defer close(inbound)
	defer conn.Close()
	for {
		messageType, msg, err := conn.ReadMessage()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				logWarn(log, "read deadline exceeded", err)
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logWarn(log, "unexpected websocket close", err)
			}
			return
		}
		if err := conn.SetReadDeadline(time.Now().Add(waitDuration)); err != nil {
			return
		}
		if messageType != websocket.BinaryMessage && messageType != websocket.TextMessage {
			continue
		}
		inbound <- msg
	}
}

func writePump(conn *websocket.Conn, outbound <-chan []byte, pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer conn.Close()
	for {
		select {
		case frame, ok := <-outbound:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func logWarn(log *logging.Logger, msg string, err error) {
	if log == nil {
		return
	}
	log.Warn(msg, logging.Error(err))
}
