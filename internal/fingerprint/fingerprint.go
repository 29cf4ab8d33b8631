// Package fingerprint derives stable content hashes from pixel buffers
// for provenance records.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image/png"

	"github.com/InkLayer/WatermarkStation/internal/pixbuf"
)

// Algorithm names the digest in persisted metadata.
const Algorithm = "SHA-256"

// Compute hashes a canonical PNG encoding of the buffer. The encoder
// settings are fixed, so identical pixel content always yields the same
// digest and any single sample change yields a different one.
func Compute(b *pixbuf.Buffer) (string, error) {
	if b == nil {
		return "", pixbuf.ErrBadDimensions
	}
	if err := b.Validate(); err != nil {
		return "", err
	}

	h := sha256.New()
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(h, b.ToNRGBA()); err != nil {
		return "", fmt.Errorf("encode canonical png: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Sum is the raw-bytes variant used for object keys and tests.
func Sum(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}
