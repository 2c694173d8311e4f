package codec

import "testing"

func TestHMACVerify(t *testing.T) {
	token := []byte("secret-token")
	inner := []byte("the quick brown fox")
	h := HMAC(token, inner, 42)
	if !VerifyHMAC(token, inner, 42, h) {
		t.Fatal("expected signature to verify")
	}
}

func TestHMACRejectsTamperedSeq(t *testing.T) {
	token := []byte("secret-token")
	inner := []byte("payload")
	h := HMAC(token, inner, 1)
	if VerifyHMAC(token, inner, 2, h) {
		t.Fatal("expected verification to fail for mismatched seq")
	}
}

func TestHMACRejectsTamperedInner(t *testing.T) {
	token := []byte("secret-token")
	h := HMAC(token, []byte("payload-a"), 1)
	if VerifyHMAC(token, []byte("payload-b"), 1, h) {
		t.Fatal("expected verification to fail for mismatched inner")
	}
}

func TestHMACRejectsWrongToken(t *testing.T) {
	inner := []byte("payload")
	h := HMAC([]byte("token-a"), inner, 1)
	if VerifyHMAC([]byte("token-b"), inner, 1, h) {
		t.Fatal("expected verification to fail for mismatched token")
	}
}
