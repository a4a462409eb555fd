package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAddr is the default TCP address a site listens on for peers.
	DefaultAddr = ":43127"
	// DefaultPingInterval controls the keepalive cadence for WebSocket connections.
	DefaultPingInterval = 30 * time.Second
	// DefaultMaxPayloadBytes limits inbound WebSocket frame size.
	DefaultMaxPayloadBytes int64 = 1 << 20
	// DefaultMaxClients is the default for Config.MaxClients (zero means no
	// limit). The site process does not read MaxClients and does not limit
	// concurrent peer connections.
	DefaultMaxClients = 256
	// DefaultGRPCAddr is the default listen address for the gRPC sync service.
	DefaultGRPCAddr = ":43128"

	// DefaultCompression names the wire.Compressor used when none is configured.
	DefaultCompression = "gzip"

	// DefaultJournalFlushInterval is the default for
	// Config.JournalFlushInterval. The journal does not read it: it flushes
	// after every record and never fsyncs.
	DefaultJournalFlushInterval = 5 * time.Second
	// DefaultInitialCredit is the default for Config.InitialCredit. No
	// exchange reads it: an Outgoing FSM always requests
	// protocol.MaxRequestCount events per site.
	DefaultInitialCredit uint64 = 1 << 16

	// DefaultLogLevel controls verbosity for site logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "echo.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true
)

// Config captures all runtime tunables for an Echo site process.
type Config struct {
	SiteIdentifier  uint32
	Address         string
	GRPCAddress     string
	AllowedOrigins  []string
	MaxPayloadBytes int64
	PingInterval    time.Duration
	MaxClients      int
	TLSCertPath     string
	TLSKeyPath      string
	AdminToken      string
	PeerAuthSecret  string
	PeerAuthToken   string
	PeerAddresses   []string

	Compression           string
	JournalPath           string
	JournalFlushInterval  time.Duration
	InitialCredit         uint64

	Logging LoggingConfig
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads the site configuration from environment variables, applying
// sane defaults and returning descriptive errors for invalid overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Address:              getString("ECHO_ADDR", DefaultAddr),
		GRPCAddress:          getString("ECHO_GRPC_ADDR", DefaultGRPCAddr),
		AllowedOrigins:       parseList(os.Getenv("ECHO_ALLOWED_ORIGINS")),
		MaxPayloadBytes:      DefaultMaxPayloadBytes,
		PingInterval:         DefaultPingInterval,
		MaxClients:           DefaultMaxClients,
		TLSCertPath:          strings.TrimSpace(os.Getenv("ECHO_TLS_CERT")),
		TLSKeyPath:           strings.TrimSpace(os.Getenv("ECHO_TLS_KEY")),
		AdminToken:           strings.TrimSpace(os.Getenv("ECHO_ADMIN_TOKEN")),
		PeerAuthSecret:       strings.TrimSpace(os.Getenv("ECHO_PEER_AUTH_SECRET")),
		PeerAuthToken:        strings.TrimSpace(os.Getenv("ECHO_PEER_AUTH_TOKEN")),
		PeerAddresses:        parseList(os.Getenv("ECHO_PEER_ADDRESSES")),
		Compression:          getString("ECHO_COMPRESSION", DefaultCompression),
		JournalPath:          strings.TrimSpace(os.Getenv("ECHO_JOURNAL_PATH")),
		JournalFlushInterval: DefaultJournalFlushInterval,
		InitialCredit:        DefaultInitialCredit,
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("ECHO_LOG_LEVEL", DefaultLogLevel)),
			Path:       strings.TrimSpace(getString("ECHO_LOG_PATH", DefaultLogPath)),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("ECHO_SITE_IDENTIFIER")); raw != "" {
		value, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			problems = append(problems, fmt.Sprintf("ECHO_SITE_IDENTIFIER must be a non-negative 32-bit integer, got %q", raw))
		} else {
			cfg.SiteIdentifier = uint32(value)
		}
	} else {
		problems = append(problems, "ECHO_SITE_IDENTIFIER must be set")
	}

	if raw := strings.TrimSpace(os.Getenv("ECHO_MAX_PAYLOAD_BYTES")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("ECHO_MAX_PAYLOAD_BYTES must be a positive integer, got %q", raw))
		} else {
			cfg.MaxPayloadBytes = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ECHO_PING_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("ECHO_PING_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.PingInterval = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ECHO_MAX_CLIENTS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("ECHO_MAX_CLIENTS must be a non-negative integer, got %q", raw))
		} else {
			cfg.MaxClients = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ECHO_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("ECHO_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ECHO_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("ECHO_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ECHO_LOG_MAX_AGE_DAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("ECHO_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ECHO_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("ECHO_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ECHO_JOURNAL_FLUSH_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("ECHO_JOURNAL_FLUSH_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.JournalFlushInterval = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ECHO_INITIAL_CREDIT")); raw != "" {
		value, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || value == 0 {
			problems = append(problems, fmt.Sprintf("ECHO_INITIAL_CREDIT must be a positive integer, got %q", raw))
		} else {
			cfg.InitialCredit = value
		}
	}

	switch cfg.Compression {
	case "gzip", "snappy", "zstd", "none":
	default:
		problems = append(problems, fmt.Sprintf("ECHO_COMPRESSION must be one of gzip, snappy, zstd, none, got %q", cfg.Compression))
	}

	if (cfg.TLSCertPath == "") != (cfg.TLSKeyPath == "") {
		problems = append(problems, "ECHO_TLS_CERT and ECHO_TLS_KEY must be provided together")
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf(strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			values = append(values, item)
		}
	}
	return values
}
