// Package config loads the agent's runtime configuration, adapted from
// the teacher's config.go: the same godotenv.Load()-then-env.Parse()
// loading sequence and LoadConfig/Validate/Print/LogConfig shape, but
// covering the QAPI configuration surface (spec.md §6.4) instead of the
// websocket fanout server's options.
package config

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ioticlabs/qapi-core/internal/protocol"
)

// Config holds every recognised option from spec.md §6.4 plus the ambient
// logging/metrics/stash settings the teacher's own config.go carries
// alongside its domain options.
type Config struct {
	// Broker connection (spec §6.4).
	Host   []string `env:"QAPI_HOST" envSeparator:"," envDefault:"localhost:9092"`
	VHost  string   `env:"QAPI_VHOST" envDefault:""`
	Prefix string   `env:"QAPI_PREFIX" envDefault:""`
	Epid   string   `env:"QAPI_EPID,required"`
	Passwd string   `env:"QAPI_PASSWD" envDefault:""`
	Token  string   `env:"QAPI_TOKEN" envDefault:""` // hex-encoded HMAC key
	SSLCA  string   `env:"QAPI_SSLCA" envDefault:""`

	Prefetch      int           `env:"QAPI_PREFETCH" envDefault:"128"`
	AckFraction   float64       `env:"QAPI_ACK_FRACTION" envDefault:"0.5"`
	Heartbeat     time.Duration `env:"QAPI_HEARTBEAT" envDefault:"30s"`
	SocketTimeout time.Duration `env:"QAPI_SOCKET_TIMEOUT" envDefault:"10s"`

	StartupIgnoreExc      bool          `env:"QAPI_STARTUP_IGNORE_EXC" envDefault:"false"`
	ConnRetryDelay        time.Duration `env:"QAPI_CONN_RETRY_DELAY" envDefault:"5s"`
	ConnErrorLogThreshold time.Duration `env:"QAPI_CONN_ERROR_LOG_THRESHOLD" envDefault:"180s"`

	NetworkRetryTimeout time.Duration `env:"QAPI_NETWORK_RETRY_TIMEOUT" envDefault:"300s"`
	SendQueueSize       int           `env:"QAPI_SEND_QUEUE_SIZE" envDefault:"128"`
	Throttle            string        `env:"QAPI_THROTTLE" envDefault:""`
	MaxEncodedLength    int           `env:"QAPI_MAX_ENCODED_LENGTH" envDefault:"64225"`
	AutoEncodeDecode    bool          `env:"QAPI_AUTO_ENCODE_DECODE" envDefault:"true"`
	Lang                string        `env:"QAPI_LANG" envDefault:""`

	// Ambient: logging, metrics, stash persistence - not part of spec
	// §6.4 but required for a runnable agent, mirroring the teacher's own
	// habit of carrying these alongside the domain options.
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	MetricsAddr     string        `env:"METRICS_ADDR" envDefault:":9090"`
	MetricsInterval time.Duration `env:"METRICS_SAMPLE_INTERVAL" envDefault:"15s"`
	StashFile       string        `env:"STASH_FILE" envDefault:"./stash.dat"`
	StashWorkers    int           `env:"STASH_WORKERS" envDefault:"2"`
}

// LoadConfig reads an optional .env file (missing is fine) then parses
// the process environment into a Config, validating the result.
func LoadConfig(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil && logger != nil {
		logger.Debug().Err(err).Msg("config: no .env file loaded")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks range, enum and logical-consistency constraints beyond
// what struct tags express, matching the teacher's Validate style.
func (c *Config) Validate() error {
	if len(c.Host) == 0 {
		return fmt.Errorf("host must name at least one broker")
	}
	if c.Epid == "" {
		return fmt.Errorf("epid is required")
	}
	if c.Prefetch < 1 {
		return fmt.Errorf("prefetch must be positive, got %d", c.Prefetch)
	}
	if c.AckFraction <= 0 || c.AckFraction > 1 {
		return fmt.Errorf("ack_fraction must be in (0, 1], got %f", c.AckFraction)
	}
	if c.ConnRetryDelay < time.Second {
		return fmt.Errorf("conn_retry_delay must be at least 1s, got %s", c.ConnRetryDelay)
	}
	if c.SendQueueSize < 0 {
		return fmt.Errorf("send_queue_size must be >= 0, got %d", c.SendQueueSize)
	}
	if c.Token != "" {
		if _, err := hex.DecodeString(c.Token); err != nil {
			return fmt.Errorf("token must be hex-encoded: %w", err)
		}
	}
	switch c.LogFormat {
	case "json", "pretty":
	default:
		return fmt.Errorf("log format must be json or pretty, got %q", c.LogFormat)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("log level must be one of debug/info/warn/error/fatal, got %q", c.LogLevel)
	}
	return nil
}

// tokenBytes hex-decodes Token into the HMAC key protocol.Config expects;
// Validate has already confirmed this parses.
func (c *Config) tokenBytes() []byte {
	b, _ := hex.DecodeString(c.Token)
	return b
}

// ProtocolConfig translates this configuration into a protocol.Config,
// ready for protocol.New, with logger attached.
func (c *Config) ProtocolConfig(logger zerolog.Logger) protocol.Config {
	return protocol.Config{
		Brokers:             c.Host,
		Epid:                c.Epid,
		VHost:               c.VHost,
		Prefix:              c.Prefix,
		Passwd:              c.Passwd,
		TLSCAFile:           c.SSLCA,
		Prefetch:            c.Prefetch,
		AckFraction:         c.AckFraction,
		Heartbeat:           c.Heartbeat,
		SocketTimeout:       c.SocketTimeout,
		ConnRetryDelay:      c.ConnRetryDelay,
		ConnErrorLogThresh:  c.ConnErrorLogThreshold,
		StartupIgnoreExc:    c.StartupIgnoreExc,
		Token:               c.tokenBytes(),
		Lang:                c.Lang,
		NetworkRetryTimeout: c.NetworkRetryTimeout,
		SendQueueSize:       c.SendQueueSize,
		ThrottleConf:        c.Throttle,
		MaxEncodedLength:    c.MaxEncodedLength,
		AutoEncodeDecode:    c.AutoEncodeDecode,
		Logger:              logger,
	}
}

// Print writes a human-readable configuration dump to stdout, for
// startup logs before the structured logger exists, matching the
// teacher's Print().
func (c *Config) Print() {
	fmt.Println("=== QAPI Agent Configuration ===")
	fmt.Printf("Host:                     %v\n", c.Host)
	fmt.Printf("VHost:                    %s\n", c.VHost)
	fmt.Printf("Prefix:                   %s\n", c.Prefix)
	fmt.Printf("Epid:                     %s\n", c.Epid)
	fmt.Printf("SSLCA:                    %s\n", c.SSLCA)
	fmt.Printf("Prefetch:                 %d\n", c.Prefetch)
	fmt.Printf("AckFraction:              %f\n", c.AckFraction)
	fmt.Printf("Heartbeat:                %s\n", c.Heartbeat)
	fmt.Printf("SocketTimeout:            %s\n", c.SocketTimeout)
	fmt.Printf("StartupIgnoreExc:         %t\n", c.StartupIgnoreExc)
	fmt.Printf("ConnRetryDelay:           %s\n", c.ConnRetryDelay)
	fmt.Printf("ConnErrorLogThreshold:    %s\n", c.ConnErrorLogThreshold)
	fmt.Printf("NetworkRetryTimeout:      %s\n", c.NetworkRetryTimeout)
	fmt.Printf("SendQueueSize:            %d\n", c.SendQueueSize)
	fmt.Printf("Throttle:                 %s\n", c.Throttle)
	fmt.Printf("MaxEncodedLength:         %d\n", c.MaxEncodedLength)
	fmt.Printf("AutoEncodeDecode:         %t\n", c.AutoEncodeDecode)
	fmt.Printf("Lang:                     %s\n", c.Lang)
	fmt.Printf("LogLevel/LogFormat:       %s/%s\n", c.LogLevel, c.LogFormat)
	fmt.Printf("MetricsAddr:              %s\n", c.MetricsAddr)
	fmt.Printf("StashFile:                %s\n", c.StashFile)
	fmt.Println("================================")
}

// LogConfig writes the same information as Print but as a structured log
// event, for use once the zerolog logger is available.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Strs("host", c.Host).
		Str("vhost", c.VHost).
		Str("prefix", c.Prefix).
		Str("epid", c.Epid).
		Int("prefetch", c.Prefetch).
		Float64("ack_fraction", c.AckFraction).
		Dur("heartbeat", c.Heartbeat).
		Dur("socket_timeout", c.SocketTimeout).
		Bool("startup_ignore_exc", c.StartupIgnoreExc).
		Dur("conn_retry_delay", c.ConnRetryDelay).
		Dur("conn_error_log_threshold", c.ConnErrorLogThreshold).
		Dur("network_retry_timeout", c.NetworkRetryTimeout).
		Int("send_queue_size", c.SendQueueSize).
		Str("throttle", c.Throttle).
		Int("max_encoded_length", c.MaxEncodedLength).
		Bool("auto_encode_decode", c.AutoEncodeDecode).
		Str("lang", c.Lang).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Str("metrics_addr", c.MetricsAddr).
		Str("stash_file", c.StashFile).
		Msg("configuration loaded")
}
