// Command echo-site runs one participant in the replication system: it
// accepts peer connections over WebSocket and gRPC, dials any configured
// peers, and keeps an on-disk journal of every event it originates or
// learns about, following the teacher's main.go wiring style (load
// config, build a logger, assemble the dependent services, serve).
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"google.golang.org/grpc"

	"echo/eventlog"
	"echo/identifier"
	"echo/internal/auth"
	"echo/internal/config"
	"echo/internal/logging"
	"echo/site"
	"echo/transport/grpcstream"
	"echo/transport/ws"
	"echo/wire"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize structured logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	siteID := identifier.Site(cfg.SiteIdentifier)
	codec := wire.NewJSONCodec(compressorFor(cfg.Compression))

	s, journal := openSite(cfg, siteID, codec, logger)
	s.SetLogger(logger)
	if journal != nil {
		defer journal.Close()
		go tailJournal(s, journal, logger)
	}

	var verifier *auth.HMACTokenVerifier
	if cfg.PeerAuthSecret != "" {
		verifier, err = auth.NewHMACTokenVerifier(cfg.PeerAuthSecret, 30*time.Second)
		if err != nil {
			logger.Fatal("failed to configure peer auth verifier", logging.Error(err))
		}
	}

	wsOpts := ws.Options{PingInterval: cfg.PingInterval, MaxPayloadBytes: cfg.MaxPayloadBytes, Log: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/sync", func(w http.ResponseWriter, r *http.Request) {
		acceptWS(s, verifier, wsOpts, logger, w, r)
	})
	mux.HandleFunc("/healthz", healthzHandler())

	httpServer := &http.Server{Addr: cfg.Address, Handler: logging.HTTPTraceMiddleware(logger)(mux)}

	grpcServer := grpc.NewServer()
	grpcstream.Register(grpcServer, func(t site.Transport) error {
		return s.Incoming(t, s.Store().Snapshot().Sites())
	})

	go serveGRPC(grpcServer, cfg.GRPCAddress, logger)
	defer grpcServer.GracefulStop()

	for _, addr := range cfg.PeerAddresses {
		go dialPeer(context.Background(), s, addr, cfg.PeerAuthToken, wsOpts, logger)
	}

	logger.Info("echo site listening",
		logging.String("address", cfg.Address),
		logging.String("grpc_address", cfg.GRPCAddress),
		logging.Int("site", int(siteID)))

	if cfg.TLSCertPath != "" {
		if err := httpServer.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath); err != nil {
			logger.Fatal("echo site server terminated", logging.Error(err))
		}
		return
	}
	if err := httpServer.ListenAndServe(); err != nil {
		logger.Fatal("echo site server terminated", logging.Error(err))
	}
}

func openSite(cfg *config.Config, siteID identifier.Site, codec wire.JSONCodec, logger *logging.Logger) (*site.Site, *eventlog.Journal) {
	if cfg.JournalPath == "" {
		return site.New(siteID, codec), nil
	}
	log, err := eventlog.LoadJournal(cfg.JournalPath)
	if err != nil {
		logger.Fatal("failed to load journal", logging.Error(err), logging.String("path", cfg.JournalPath))
	}
	journal, err := eventlog.OpenJournal(cfg.JournalPath)
	if err != nil {
		logger.Fatal("failed to open journal", logging.Error(err), logging.String("path", cfg.JournalPath))
	}
	return site.Resume(siteID, codec, log), journal
}

// tailJournal mirrors every local or peer-learned insertion onto disk, per
// spec.md §6's optional append-ordered storage: it watches the store's
// insertion feed rather than intercepting Set, so it never sits on the
// exchange's hot path.
func tailJournal(s *site.Site, journal *eventlog.Journal, logger *logging.Logger) {
	inserted, unsubscribe := s.Store().Subscribe()
	defer unsubscribe()
	for id := range inserted {
		body, ok := s.Store().Snapshot().Get(id.Seq, id.Site)
		if !ok {
			continue
		}
		if err := journal.Append(id.Seq, id.Site, body); err != nil {
			logger.Error("failed to append journal record", logging.EventIDField(id), logging.Error(err))
		}
	}
}

func compressorFor(name string) wire.Compressor {
	switch name {
	case "snappy":
		return wire.NewSnappyCompressor()
	case "zstd":
		return wire.NewZstdCompressor()
	case "none":
		return wire.NewNoopCompressor()
	default:
		return wire.NewGZIPCompressor()
	}
}

func acceptWS(s *site.Site, verifier *auth.HMACTokenVerifier, opts ws.Options, logger *logging.Logger, w http.ResponseWriter, r *http.Request) {
	transport, err := ws.Accept(w, r, opts, verifier)
	if err != nil {
		logger.Warn("rejecting websocket peer", logging.Error(err))
		return
	}
	if err := s.Incoming(transport, s.Store().Snapshot().Sites()); err != nil {
		logger.Warn("incoming exchange ended", logging.Error(err))
	}
}

func dialPeer(ctx context.Context, s *site.Site, addr, token string, opts ws.Options, logger *logging.Logger) {
	peerLogger := logger.With(logging.String("peer", addr))
	for {
		transport, err := ws.Dial(addr, token, opts)
		if err != nil {
			peerLogger.Warn("dial failed, retrying", logging.Error(err))
		} else if err := s.Outgoing(transport); err != nil {
			peerLogger.Warn("outgoing exchange ended, retrying", logging.Error(err))
		}
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return
		}
	}
}

func serveGRPC(server *grpc.Server, addr string, logger *logging.Logger) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal("failed to start gRPC listener", logging.Error(err), logging.String("address", addr))
	}
	logger.Info("gRPC sync server listening", logging.String("address", addr))
	if err := server.Serve(listener); err != nil {
		logger.Fatal("gRPC server terminated", logging.Error(err))
	}
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	}
}
