package codec

import (
	"bytes"
	"testing"
)

func TestWrapperRoundTrip(t *testing.T) {
	w := Wrapper{
		Seq:         123,
		Compression: 1,
		Inner:       []byte("inner-bytes"),
		HMAC:        bytes.Repeat([]byte{0xAB}, HMACSize),
	}
	enc, err := EncodeWrapper(w)
	if err != nil {
		t.Fatalf("EncodeWrapper: %v", err)
	}
	dec, err := DecodeWrapper(enc)
	if err != nil {
		t.Fatalf("DecodeWrapper: %v", err)
	}
	if dec.Seq != w.Seq || dec.Compression != w.Compression {
		t.Fatalf("mismatch: got %+v want %+v", dec, w)
	}
	if !bytes.Equal(dec.Inner, w.Inner) || !bytes.Equal(dec.HMAC, w.HMAC) {
		t.Fatalf("byte fields mismatch: got %+v want %+v", dec, w)
	}
}

func TestDecodeWrapperMissingKey(t *testing.T) {
	doc := map[string]any{
		"s": uint64(1),
		"c": int64(0),
		"m": []byte("x"),
	}
	enc, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := DecodeWrapper(enc); err == nil {
		t.Fatal("expected error for missing h key")
	}
}

func TestInnerRequestRoundTrip(t *testing.T) {
	ref := "ab0001"
	rng := "0/50"
	req := InnerRequest{
		Resource:  1,
		Type:      1,
		ClientRef: &ref,
		Action:    []string{"create"},
		Payload:   map[string]any{"lid": "thing1"},
		Range:     &rng,
	}
	enc, err := EncodeInnerRequest(req)
	if err != nil {
		t.Fatalf("EncodeInnerRequest: %v", err)
	}
	dec, err := DecodeInnerRequest(enc)
	if err != nil {
		t.Fatalf("DecodeInnerRequest: %v", err)
	}
	if dec.Resource != req.Resource || dec.Type != req.Type {
		t.Fatalf("mismatch: got %+v want %+v", dec, req)
	}
	if dec.ClientRef == nil || *dec.ClientRef != ref {
		t.Fatalf("client ref mismatch: %+v", dec)
	}
	if len(dec.Action) != 1 || dec.Action[0] != "create" {
		t.Fatalf("action mismatch: %+v", dec.Action)
	}
	if dec.Range == nil || *dec.Range != rng {
		t.Fatalf("range mismatch: %+v", dec)
	}
}

func TestDecodeInnerResponseRequiresShape(t *testing.T) {
	doc := map[string]any{"t": int64(1), "c": nil, "p": map[string]any{}}
	enc, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	resp, err := DecodeInnerResponse(enc)
	if err != nil {
		t.Fatalf("DecodeInnerResponse: %v", err)
	}
	if resp.Type != 1 {
		t.Fatalf("unexpected type: %+v", resp)
	}

	missing := map[string]any{"t": int64(1), "c": nil}
	enc2, _ := Marshal(missing)
	if _, err := DecodeInnerResponse(enc2); err == nil {
		t.Fatal("expected error for missing payload key")
	}
}
