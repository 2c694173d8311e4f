package codec

import (
	"reflect"
	"testing"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	cases := []any{
		nil,
		true,
		false,
		int64(-42),
		uint64(42),
		float64(3.25),
		"hello world",
		[]byte{1, 2, 3, 0xff},
		[]any{int64(1), "two", true, nil},
		map[string]any{"a": int64(1), "b": "two"},
	}
	for _, c := range cases {
		enc, err := Marshal(c)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", c, err)
		}
		dec, err := Unmarshal(enc)
		if err != nil {
			t.Fatalf("Unmarshal(%v): %v", c, err)
		}
		if !reflect.DeepEqual(dec, c) {
			t.Fatalf("round trip mismatch: got %#v, want %#v", dec, c)
		}
	}
}

func TestMarshalNestedObject(t *testing.T) {
	doc := map[string]any{
		"s": uint64(7),
		"arr": []any{
			map[string]any{"x": int64(1)},
			map[string]any{"x": int64(2)},
		},
	}
	enc, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	dec, err := Unmarshal(enc)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(dec, doc) {
		t.Fatalf("mismatch: got %#v want %#v", dec, doc)
	}
}

func TestUnmarshalTruncated(t *testing.T) {
	if _, err := Unmarshal([]byte{tagInt, 0, 0, 0}); err == nil {
		t.Fatal("expected error for truncated int")
	}
	if _, err := Unmarshal(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
	if _, err := Unmarshal([]byte{'?'}); err == nil {
		t.Fatal("expected error for unknown tag")
	}
}

func TestUnmarshalTrailingBytes(t *testing.T) {
	enc, _ := Marshal(int64(1))
	enc = append(enc, 0xAA)
	if _, err := Unmarshal(enc); err == nil {
		t.Fatal("expected error for trailing bytes")
	}
}

func TestUnmarshalUnterminatedContainer(t *testing.T) {
	if _, err := Unmarshal([]byte{tagArray}); err == nil {
		t.Fatal("expected error for unterminated array")
	}
	if _, err := Unmarshal([]byte{tagObject}); err == nil {
		t.Fatal("expected error for unterminated object")
	}
}

func TestMarshalUnsupportedType(t *testing.T) {
	if _, err := Marshal(struct{ X int }{1}); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}
