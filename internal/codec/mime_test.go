package codec

import "testing"

func TestExpandIdxMimetype(t *testing.T) {
	full, err := ExpandIdxMimetype("idx/1")
	if err != nil || full != MimeUBJSON {
		t.Fatalf("idx/1 expansion: got (%q, %v)", full, err)
	}
	full, err = ExpandIdxMimetype("idx/2")
	if err != nil || full != MimeText {
		t.Fatalf("idx/2 expansion: got (%q, %v)", full, err)
	}
	passthrough, err := ExpandIdxMimetype("application/json")
	if err != nil || passthrough != "application/json" {
		t.Fatalf("passthrough: got (%q, %v)", passthrough, err)
	}
	if _, err := ExpandIdxMimetype("idx/99"); err == nil {
		t.Fatal("expected error for unmapped shorthand")
	}
}

func TestShrinkMimetype(t *testing.T) {
	if got := ShrinkMimetype(MimeUBJSON); got != "idx/1" {
		t.Fatalf("got %q want idx/1", got)
	}
	if got := ShrinkMimetype("application/json"); got != "application/json" {
		t.Fatalf("got %q want unchanged", got)
	}
}

func TestValidMimetype(t *testing.T) {
	if !ValidMimetype("a") {
		t.Fatal("single char should be valid")
	}
	if ValidMimetype("") {
		t.Fatal("empty should be invalid")
	}
	long := make([]byte, MaxMimeLength+1)
	for i := range long {
		long[i] = 'a'
	}
	if ValidMimetype(string(long)) {
		t.Fatal("over-length mime should be invalid")
	}
}
