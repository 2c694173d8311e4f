package codec

import (
	"fmt"

	"github.com/ioticlabs/qapi-core/internal/wire"
)

// Wrapper is the outer, signed broker envelope: exactly the keys s
// (sequence), c (compression method), m (inner, possibly compressed) and h
// (HMAC-SHA256 over the uncompressed inner bytes || big-endian seq).
type Wrapper struct {
	Seq         uint64
	Compression int
	Inner       []byte
	HMAC        []byte
}

// EncodeWrapper serialises a Wrapper to its tagged-binary wire form.
func EncodeWrapper(w Wrapper) ([]byte, error) {
	doc := map[string]any{
		wire.WrapSeq:         uint64(w.Seq),
		wire.WrapCompression: int64(w.Compression),
		wire.WrapMessage:     w.Inner,
		wire.WrapHash:        w.HMAC,
	}
	return Marshal(doc)
}

// DecodeWrapper parses a Wrapper from its tagged-binary wire form, failing
// if any key is missing or of the wrong type.
func DecodeWrapper(data []byte) (Wrapper, error) {
	v, err := Unmarshal(data)
	if err != nil {
		return Wrapper{}, err
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return Wrapper{}, fmt.Errorf("%w: wrapper is not an object", ErrMalformed)
	}

	seq, err := requireUint(doc, wire.WrapSeq)
	if err != nil {
		return Wrapper{}, err
	}
	compAny, err := requireInt(doc, wire.WrapCompression)
	if err != nil {
		return Wrapper{}, err
	}
	inner, ok := doc[wire.WrapMessage].([]byte)
	if !ok {
		return Wrapper{}, fmt.Errorf("%w: wrapper.m not bytes", ErrMalformed)
	}
	h, ok := doc[wire.WrapHash].([]byte)
	if !ok {
		return Wrapper{}, fmt.Errorf("%w: wrapper.h not bytes", ErrMalformed)
	}

	return Wrapper{Seq: seq, Compression: int(compAny), Inner: inner, HMAC: h}, nil
}

func requireUint(doc map[string]any, key string) (uint64, error) {
	v, ok := doc[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing key %q", ErrMalformed, key)
	}
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int64:
		if t < 0 {
			return 0, fmt.Errorf("%w: negative value for %q", ErrMalformed, key)
		}
		return uint64(t), nil
	default:
		return 0, fmt.Errorf("%w: %q not an integer", ErrMalformed, key)
	}
}

func requireInt(doc map[string]any, key string) (int64, error) {
	v, ok := doc[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing key %q", ErrMalformed, key)
	}
	switch t := v.(type) {
	case int64:
		return t, nil
	case uint64:
		return int64(t), nil
	default:
		return 0, fmt.Errorf("%w: %q not an integer", ErrMalformed, key)
	}
}

// InnerRequest is the structured request body carried inside the wrapper.
type InnerRequest struct {
	Resource  int
	Type      int
	ClientRef *string
	Action    []string
	Payload   map[string]any
	Range     *string
}

// EncodeInnerRequest serialises an InnerRequest, required keys r, t, c, a,
// p, with optional g (offset/limit range).
func EncodeInnerRequest(m InnerRequest) ([]byte, error) {
	doc := map[string]any{
		wire.MsgResource: int64(m.Resource),
		wire.MsgType:     int64(m.Type),
	}
	if m.ClientRef != nil {
		doc[wire.MsgClientRef] = *m.ClientRef
	} else {
		doc[wire.MsgClientRef] = nil
	}
	if m.Action != nil {
		arr := make([]any, len(m.Action))
		for i, a := range m.Action {
			arr[i] = a
		}
		doc[wire.MsgAction] = arr
	} else {
		doc[wire.MsgAction] = nil
	}
	if m.Payload != nil {
		doc[wire.MsgPayload] = m.Payload
	} else {
		doc[wire.MsgPayload] = nil
	}
	if m.Range != nil {
		doc[wire.MsgRange] = *m.Range
	}
	return Marshal(doc)
}

// DecodeInnerRequest parses an InnerRequest, validating the required shape.
func DecodeInnerRequest(data []byte) (InnerRequest, error) {
	v, err := Unmarshal(data)
	if err != nil {
		return InnerRequest{}, err
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return InnerRequest{}, fmt.Errorf("%w: inner message not an object", ErrMalformed)
	}
	r, err := requireInt(doc, wire.MsgResource)
	if err != nil {
		return InnerRequest{}, err
	}
	t, err := requireInt(doc, wire.MsgType)
	if err != nil {
		return InnerRequest{}, err
	}
	m := InnerRequest{Resource: int(r), Type: int(t)}
	if cr, ok := doc[wire.MsgClientRef].(string); ok {
		m.ClientRef = &cr
	}
	if arr, ok := doc[wire.MsgAction].([]any); ok {
		for _, a := range arr {
			s, _ := a.(string)
			m.Action = append(m.Action, s)
		}
	}
	if p, ok := doc[wire.MsgPayload].(map[string]any); ok {
		m.Payload = p
	}
	if rg, ok := doc[wire.MsgRange].(string); ok {
		m.Range = &rg
	}
	return m, nil
}

// InnerResponse is the structured response body carried inside the
// wrapper: required keys c, t, p; anything else is rejected.
type InnerResponse struct {
	ClientRef *string
	Type      int
	Payload   map[string]any
}

// DecodeInnerResponse parses an InnerResponse, requiring exactly c, t, p.
func DecodeInnerResponse(data []byte) (InnerResponse, error) {
	v, err := Unmarshal(data)
	if err != nil {
		return InnerResponse{}, err
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return InnerResponse{}, fmt.Errorf("%w: inner response not an object", ErrMalformed)
	}
	t, err := requireInt(doc, wire.MsgType)
	if err != nil {
		return InnerResponse{}, err
	}
	if _, ok := doc[wire.MsgClientRef]; !ok {
		return InnerResponse{}, fmt.Errorf("%w: missing key %q", ErrMalformed, wire.MsgClientRef)
	}
	if _, ok := doc[wire.MsgPayload]; !ok {
		return InnerResponse{}, fmt.Errorf("%w: missing key %q", ErrMalformed, wire.MsgPayload)
	}
	if len(doc) != 3 {
		return InnerResponse{}, fmt.Errorf("%w: unexpected keys in inner response", ErrMalformed)
	}
	resp := InnerResponse{Type: int(t)}
	if cr, ok := doc[wire.MsgClientRef].(string); ok {
		resp.ClientRef = &cr
	}
	if p, ok := doc[wire.MsgPayload].(map[string]any); ok {
		resp.Payload = p
	}
	return resp, nil
}
