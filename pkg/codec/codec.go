// Package codec implements the value pipeline for stored blobs: optional
// Zstandard compression and a truncated SHA-256 integrity checksum.
//
// Compression is self-describing through the zstd frame magic rather than
// a stored flag: Compress only emits a frame when it is strictly smaller
// than the input, and Decompress sniffs the magic to decide whether to
// decode. Both directions fail open to the raw bytes so a codec fault can
// never make stored data unreadable.
package codec

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/equicloud/equicloud/internal/logger"
)

// ChecksumBytes is the number of SHA-256 bytes kept in a checksum.
const ChecksumBytes = 8

// MaxDecompressBytes caps decoded output to defend against
// decompression bombs.
const MaxDecompressBytes = 10 * 1024 * 1024

// zstdMagic is the little-endian Zstandard frame magic number.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// Codec compresses and decompresses blob values. The zero-value Codec is
// not usable; construct with New.
type Codec struct {
	enabled bool
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New builds a Codec. When enabled is false Compress passes values
// through untouched; Decompress always sniffs, since previously stored
// values may be compressed regardless of the current setting.
func New(enabled bool, level int) (*Codec, error) {
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil,
		zstd.WithDecoderMaxMemory(MaxDecompressBytes),
		zstd.WithDecoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Codec{enabled: enabled, encoder: encoder, decoder: decoder}, nil
}

// Compress returns the zstd encoding of data when compression is enabled
// and the encoding is strictly smaller than the input; otherwise the
// input is returned unchanged.
func (c *Codec) Compress(data []byte) []byte {
	if !c.enabled || len(data) == 0 {
		return data
	}
	out := c.encoder.EncodeAll(data, make([]byte, 0, len(data)))
	if len(out) < len(data) {
		return out
	}
	return data
}

// Decompress decodes data when it begins with the zstd frame magic.
// Inputs without the magic, failed decodes, and decodes that would exceed
// MaxDecompressBytes all return the raw input unchanged.
func (c *Codec) Decompress(data []byte) []byte {
	if len(data) < 4 || !bytes.Equal(data[:4], zstdMagic) {
		return data
	}
	out, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		logger.Warn("Failed to decompress stored value, returning raw bytes", "error", err)
		return data
	}
	if len(out) > MaxDecompressBytes {
		logger.Warn("Decompressed value exceeds ceiling, returning raw bytes",
			"decoded_bytes", len(out), "ceiling", MaxDecompressBytes)
		return data
	}
	return out
}

// Checksum returns the hex encoding of the first ChecksumBytes bytes of
// SHA-256(data). Checksums are always computed over the uncompressed
// representation.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:ChecksumBytes])
}
