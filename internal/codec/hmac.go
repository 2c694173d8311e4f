package codec

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
)

// HMACSize is the length in bytes of a computed HMAC-SHA256 digest.
const HMACSize = sha256.Size

// HMAC computes HMAC_SHA256(token, inner || big_endian_uint64(seq)), the
// signature carried in the wrapper's `h` field. It is always taken over the
// inner message's serialisation *before* compression.
func HMAC(token []byte, inner []byte, seq uint64) []byte {
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)

	mac := hmac.New(sha256.New, token)
	mac.Write(inner)
	mac.Write(seqBytes[:])
	return mac.Sum(nil)
}

// VerifyHMAC reports whether h is the correct signature for (inner, seq)
// under token, using a constant-time comparison.
func VerifyHMAC(token []byte, inner []byte, seq uint64, h []byte) bool {
	expected := HMAC(token, inner, seq)
	return hmac.Equal(expected, h)
}
