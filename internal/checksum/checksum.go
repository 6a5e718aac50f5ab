// Package checksum computes content digests used to detect no-op rewrites.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Reader digests everything read through it.
type Reader struct {
	r io.Reader
	h hash.Hash
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	h := sha256.New()
	return &Reader{r: io.TeeReader(r, h), h: h}
}

func (r *Reader) Read(p []byte) (int, error) {
	return r.r.Read(p)
}

// Sum returns the hex-encoded digest of the bytes read so far.
func (r *Reader) Sum() string {
	return hex.EncodeToString(r.h.Sum(nil))
}
