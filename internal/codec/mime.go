package codec

import "fmt"

// MIME shorthand table, grounded on Core/Mime.py: the container accepts
// compact "idx/N" references for the handful of MIME types it knows about,
// to avoid repeating the full string on every message.
const (
	MimeUBJSON = "application/ubjson"
	MimeText   = "text/plain; charset=utf8"
)

// MaxMimeLength is the maximum permitted length of a MIME string.
const MaxMimeLength = 64

var idxToMime = map[string]string{
	"idx/1": MimeUBJSON,
	"idx/2": MimeText,
}

var mimeToIdx = map[string]string{
	MimeUBJSON: "idx/1",
	MimeText:   "idx/2",
}

// ExpandIdxMimetype expands an "idx/N" shorthand to its full MIME string.
// Non-shorthand strings are returned unchanged. An unmapped "idx/N" returns
// an error (ShrinkMimetype never produces one); a caller decoding inbound
// data may keep the raw string instead, as the protocol package's sample
// decoding does.
func ExpandIdxMimetype(mime string) (string, error) {
	if full, ok := idxToMime[mime]; ok {
		return full, nil
	}
	if len(mime) > 4 && mime[:4] == "idx/" {
		return "", fmt.Errorf("codec: unmapped mime shorthand %q", mime)
	}
	return mime, nil
}

// ShrinkMimetype returns the idx/N shorthand for a known MIME type, or the
// type unchanged if it has no shorthand.
func ShrinkMimetype(mime string) string {
	if idx, ok := mimeToIdx[mime]; ok {
		return idx
	}
	return mime
}

// ValidMimetype reports whether mime is a syntactically acceptable MIME
// string (length bound only; the container is authoritative on meaning).
func ValidMimetype(mime string) bool {
	return len(mime) > 0 && len(mime) <= MaxMimeLength
}
