package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ioticlabs/qapi-core/internal/wire"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog ", 50))
	for _, method := range []int{wire.CompNone, wire.CompZlib, wire.CompLZ4F} {
		enc, err := Compress(method, payload)
		if err != nil {
			t.Fatalf("Compress(method=%d): %v", method, err)
		}
		dec, err := Decompress(method, enc, 0)
		if err != nil {
			t.Fatalf("Decompress(method=%d): %v", method, err)
		}
		if !bytes.Equal(dec, payload) {
			t.Fatalf("method %d: round trip mismatch", method)
		}
	}
}

func TestDecompressOversizeCapped(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 2000)
	enc, err := Compress(wire.CompZlib, payload)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if _, err := Decompress(wire.CompZlib, enc, 100); err != ErrOversize {
		t.Fatalf("expected ErrOversize, got %v", err)
	}
}

func TestDecompressUncompressedOversize(t *testing.T) {
	payload := bytes.Repeat([]byte("y"), 50)
	if _, err := Decompress(wire.CompNone, payload, 10); err != ErrOversize {
		t.Fatalf("expected ErrOversize, got %v", err)
	}
}

func TestCompressUnknownMethod(t *testing.T) {
	if _, err := Compress(99, []byte("x")); err != ErrUnknownCompression {
		t.Fatalf("expected ErrUnknownCompression, got %v", err)
	}
	if _, err := Decompress(99, []byte("x"), 0); err != ErrUnknownCompression {
		t.Fatalf("expected ErrUnknownCompression, got %v", err)
	}
}
