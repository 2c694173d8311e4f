package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func validConfig() *Config {
	return &Config{
		Host:           []string{"localhost:9092"},
		Epid:           "agent-1",
		Prefetch:       128,
		AckFraction:    0.5,
		ConnRetryDelay: time.Second,
		LogFormat:      "json",
		LogLevel:       "info",
	}
}

func TestValidateRequiresHost(t *testing.T) {
	cfg := validConfig()
	cfg.Host = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error when no broker host is configured")
	}
}

func TestValidateRequiresEpid(t *testing.T) {
	cfg := validConfig()
	cfg.Epid = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error when epid is empty")
	}
}

func TestValidateRejectsOutOfRangeAckFraction(t *testing.T) {
	cfg := validConfig()
	cfg.AckFraction = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for ack_fraction > 1")
	}
	cfg.AckFraction = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for ack_fraction <= 0")
	}
}

func TestValidateRejectsShortConnRetryDelay(t *testing.T) {
	cfg := validConfig()
	cfg.ConnRetryDelay = 100 * time.Millisecond
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for conn_retry_delay below 1s")
	}
}

func TestValidateRejectsNonHexToken(t *testing.T) {
	cfg := validConfig()
	cfg.Token = "not-hex!"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for a non-hex token")
	}
}

func TestValidateRejectsUnknownLogFormat(t *testing.T) {
	cfg := validConfig()
	cfg.LogFormat = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an unrecognised log format")
	}
}

func TestProtocolConfigTranslatesTokenAndCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.Token = "deadbeef"
	cfg.Passwd = "secret"
	cfg.Prefix = "ns"
	pc := cfg.ProtocolConfig(zerolog.Nop())
	if string(pc.Token) != "\xde\xad\xbe\xef" {
		t.Fatalf("unexpected decoded token bytes: %x", pc.Token)
	}
	if pc.Passwd != "secret" || pc.Prefix != "ns" {
		t.Fatalf("expected credentials to pass through, got %+v", pc)
	}
}
