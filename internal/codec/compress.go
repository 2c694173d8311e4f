package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"

	"github.com/ioticlabs/qapi-core/internal/wire"
)

// DefaultMaxDecompressedSize is the default decompression size cap (1 MiB),
// past which Decompress reports ErrOversize so callers can drop the
// message instead of exhausting memory on a hostile payload.
const DefaultMaxDecompressedSize = 1 << 20

// ErrOversize is returned by Decompress when the decompressed output would
// exceed the caller-supplied size cap.
var ErrOversize = fmt.Errorf("codec: decompressed size exceeds limit")

// ErrUnknownCompression is returned for an unrecognised compression method.
var ErrUnknownCompression = fmt.Errorf("codec: unknown compression method")

// Compress encodes data using the given compression method (wire.CompNone,
// wire.CompZlib or wire.CompLZ4F).
func Compress(method int, data []byte) ([]byte, error) {
	switch method {
	case wire.CompNone:
		return data, nil
	case wire.CompZlib:
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case wire.CompLZ4F:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if err := w.Apply(lz4.ChecksumOption(true)); err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, ErrUnknownCompression
	}
}

// Decompress decodes data using method, capping the decompressed size at
// maxSize (use DefaultMaxDecompressedSize if maxSize <= 0). Exceeding the
// cap reports ErrOversize.
func Decompress(method int, data []byte, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxDecompressedSize
	}
	switch method {
	case wire.CompNone:
		if len(data) > maxSize {
			return nil, ErrOversize
		}
		return data, nil
	case wire.CompZlib:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return readCapped(r, maxSize)
	case wire.CompLZ4F:
		r := lz4.NewReader(bytes.NewReader(data))
		return readCapped(r, maxSize)
	default:
		return nil, ErrUnknownCompression
	}
}

// readCapped reads from r until EOF, failing with ErrOversize the instant
// more than maxSize bytes have been produced (so a hostile payload cannot
// cause unbounded allocation).
func readCapped(r io.Reader, maxSize int) ([]byte, error) {
	limited := io.LimitReader(r, int64(maxSize)+1)
	out, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if len(out) > maxSize {
		return nil, ErrOversize
	}
	return out, nil
}
