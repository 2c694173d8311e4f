package link

import (
	"errors"
	"testing"
	"time"

	"github.com/ioticlabs/qapi-core/internal/qerr"
)

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateDisconnected: "disconnected",
		StateConnecting:   "connecting",
		StateReady:        "ready",
		State(99):         "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.Prefetch != 128 {
		t.Fatalf("expected default prefetch 128, got %d", cfg.Prefetch)
	}
	if cfg.AckFraction != 0.5 {
		t.Fatalf("expected default ack fraction 0.5, got %v", cfg.AckFraction)
	}
	if cfg.ConnRetryDelay != 5*time.Second {
		t.Fatalf("expected default retry delay 5s, got %v", cfg.ConnRetryDelay)
	}
	if cfg.ConnErrorLogThresh != 180*time.Second {
		t.Fatalf("expected default error log threshold 180s, got %v", cfg.ConnErrorLogThresh)
	}
}

func TestConfigTopics(t *testing.T) {
	cfg := Config{Epid: "agent-1"}
	if cfg.dataTopic() != "agent-1.data" {
		t.Fatalf("unexpected data topic %q", cfg.dataTopic())
	}
	if cfg.keepAliveTopic() != "agent-1.keepalive" {
		t.Fatalf("unexpected keep-alive topic %q", cfg.keepAliveTopic())
	}
}

func TestConfigTopicsWithVHostAndPrefix(t *testing.T) {
	cfg := Config{Epid: "agent-1", VHost: "prod", Prefix: "ns"}
	if cfg.dataTopic() != "ns.prod.agent-1.data" {
		t.Fatalf("unexpected namespaced data topic %q", cfg.dataTopic())
	}
	if cfg.keepAliveTopic() != "ns.prod.agent-1.keepalive" {
		t.Fatalf("unexpected namespaced keep-alive topic %q", cfg.keepAliveTopic())
	}
}

func TestSASLOptsEmptyWithoutUsername(t *testing.T) {
	if opts := (Config{}).saslOpts(); opts != nil {
		t.Fatalf("expected no SASL opts without a username, got %d", len(opts))
	}
	if opts := (Config{Username: "u", Password: "p"}).saslOpts(); len(opts) != 1 {
		t.Fatalf("expected one SASL opt with a username set, got %d", len(opts))
	}
}

func TestRestrictedCipherSuitesNonEmpty(t *testing.T) {
	suites := restrictedCipherSuites()
	if len(suites) == 0 {
		t.Fatal("expected at least one cipher suite")
	}
}

func TestClassifyConnErr(t *testing.T) {
	if got := classifyConnErr(errors.New("SASL authentication failed")); got != qerr.KindAccessDenied {
		t.Fatalf("expected KindAccessDenied, got %v", got)
	}
	if got := classifyConnErr(errors.New("connection reset by peer")); got != qerr.KindLinkError {
		t.Fatalf("expected KindLinkError, got %v", got)
	}
}

func TestContainsAny(t *testing.T) {
	if !containsAny("connection refused: ACL denied", "ACL") {
		t.Fatal("expected match")
	}
	if containsAny("plain timeout", "ACL", "SASL") {
		t.Fatal("expected no match")
	}
}

func TestLoadCAPoolMissingFile(t *testing.T) {
	if _, err := loadCAPool("/nonexistent/ca.pem"); err == nil {
		t.Fatal("expected error for missing CA file")
	}
}

func TestTickOrDefault(t *testing.T) {
	if tickOrDefault(0) != 30*time.Second {
		t.Fatalf("expected 30s default")
	}
	if tickOrDefault(5 * time.Second) != 5*time.Second {
		t.Fatalf("expected passthrough of explicit value")
	}
}
