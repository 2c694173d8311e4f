package codec

import (
	"strings"
	"testing"
	"time"
)

func TestCheckLid(t *testing.T) {
	if _, err := CheckLid("thing1"); err != nil {
		t.Fatalf("expected valid lid, got %v", err)
	}
	if _, err := CheckLid(""); err == nil {
		t.Fatal("expected error for empty lid")
	}
	if _, err := CheckLid(" leading"); err == nil {
		t.Fatal("expected error for leading whitespace")
	}
	long := strings.Repeat("a", MaxLidLen+1)
	if _, err := CheckLid(long); err == nil {
		t.Fatal("expected error for over-length lid")
	}
}

func TestCheckTags(t *testing.T) {
	tags, err := CheckTags([]string{"outdoor", "temp_sensor"})
	if err != nil {
		t.Fatalf("expected valid tags, got %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(tags))
	}
	if _, err := CheckTags(nil); err == nil {
		t.Fatal("expected error for empty tag list")
	}
	if _, err := CheckTags([]string{"a"}); err == nil {
		t.Fatal("expected error for too-short tag")
	}
	if _, err := CheckTags([]string{"has space"}); err == nil {
		t.Fatal("expected error for tag with whitespace")
	}
}

func TestCheckLang(t *testing.T) {
	lang, err := CheckLang("EN", "")
	if err != nil || lang != "en" {
		t.Fatalf("got (%q, %v) want (en, nil)", lang, err)
	}
	if _, err := CheckLang("", "en"); err != nil {
		t.Fatalf("expected default to apply, got %v", err)
	}
	if _, err := CheckLang("eng", ""); err == nil {
		t.Fatal("expected error for 3-letter code")
	}
}

func TestCheckMime(t *testing.T) {
	if _, err := CheckMime(MimeUBJSON); err != nil {
		t.Fatalf("expected valid mime, got %v", err)
	}
	if _, err := CheckMime("x"); err == nil {
		t.Fatal("expected error for single-char mime")
	}
}

func TestCheckValueType(t *testing.T) {
	if _, err := CheckValueType("float"); err != nil {
		t.Fatalf("expected valid type, got %v", err)
	}
	if _, err := CheckValueType("not-a-type"); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestCheckValueUnit(t *testing.T) {
	unit, err := CheckValueUnit("http://qudt.org/vocab/unit#DegreeCelsius")
	if err != nil {
		t.Fatalf("expected valid unit, got %v", err)
	}
	if unit == "" {
		t.Fatal("expected non-empty unit")
	}
	if _, err := CheckValueUnit("not a url"); err == nil {
		t.Fatal("expected error for malformed url")
	}
	if _, err := CheckValueUnit("ftp://example.com/x"); err == nil {
		t.Fatal("expected error for non-http(s) scheme")
	}
}

func TestCheckLocation(t *testing.T) {
	if err := CheckLocation(51.5, -0.1); err != nil {
		t.Fatalf("expected valid location, got %v", err)
	}
	if err := CheckLocation(91, 0); err == nil {
		t.Fatal("expected error for out-of-range latitude")
	}
	if err := CheckLocation(0, 181); err == nil {
		t.Fatal("expected error for out-of-range longitude")
	}
}

func TestCheckDatetime(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s, err := CheckDatetime(ts)
	if err != nil {
		t.Fatalf("expected valid datetime, got %v", err)
	}
	if !strings.HasSuffix(s, "Z") {
		t.Fatalf("expected ISO8601 Z suffix, got %q", s)
	}
}
