package codec

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionType defines the compression algorithm used.
type CompressionType uint8

const (
	// CompressionNone indicates no compression.
	CompressionNone CompressionType = 0
	// CompressionLZ4 indicates LZ4 block compression (fast, good for hot data).
	CompressionLZ4 CompressionType = 1
	// CompressionZstd indicates zstd block compression (better ratio).
	CompressionZstd CompressionType = 2
)

func (t CompressionType) String() string {
	switch t {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// zstd encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	// Level 3 balances compression ratio vs speed
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// Envelope format: [UncompressedSize uint32][CompressedSize uint32][Data...]
// If CompressedSize == 0, the record is stored uncompressed.
const envelopeHeaderSize = 8

// compressMinSize is the smallest blob worth compressing. Below it the
// record is stored raw inside the envelope.
const compressMinSize = 512

// maxUncompressedSize bounds the allocation implied by an envelope header.
// Attribute records are metadata and never approach this.
const maxUncompressedSize = 1 << 30

// Compressed layers block compression over a base codec. Records under
// compressMinSize, and records that do not compress well (ratio above 0.9),
// are stored uncompressed inside the envelope, so decoding always works
// regardless of what Encode decided.
type Compressed struct {
	Inner       Codec
	Compression CompressionType
}

// Name returns the compound codec name, e.g. "native+zstd".
func (c Compressed) Name() string {
	return c.Inner.Name() + "+" + c.Compression.String()
}

// Encode encodes the record with the inner codec and wraps it in a
// compression envelope.
func (c Compressed) Encode(rec *Record) ([]byte, error) {
	raw, err := c.Inner.Encode(rec)
	if err != nil {
		return nil, err
	}
	return compressEnvelope(raw, c.Compression)
}

// Decode unwraps the compression envelope and decodes with the inner codec.
func (c Compressed) Decode(data []byte) (*Record, error) {
	raw, err := decompressEnvelope(data, c.Compression)
	if err != nil {
		return nil, err
	}
	return c.Inner.Decode(raw)
}

func compressEnvelope(data []byte, compressionType CompressionType) ([]byte, error) {
	var compressed []byte
	var err error

	if len(data) >= compressMinSize {
		switch compressionType {
		case CompressionLZ4:
			compressed, err = compressLZ4(data)
		case CompressionZstd:
			compressed, err = compressZstd(data)
		}
		if err != nil {
			return nil, err
		}
	}

	// If compression doesn't help (ratio > 0.9), store uncompressed
	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		result := make([]byte, envelopeHeaderSize+len(data))
		binary.LittleEndian.PutUint32(result[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(result[4:], 0) // 0 = uncompressed
		copy(result[envelopeHeaderSize:], data)
		return result, nil
	}

	result := make([]byte, envelopeHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(result[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(result[4:], uint32(len(compressed)))
	copy(result[envelopeHeaderSize:], compressed)
	return result, nil
}

func compressLZ4(data []byte) ([]byte, error) {
	compressed := make([]byte, lz4.CompressBlockBound(len(data)))

	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // incompressible
	}
	return compressed[:n], nil
}

func compressZstd(data []byte) ([]byte, error) {
	enc := getZstdEncoder()
	defer putZstdEncoder(enc)

	return enc.EncodeAll(data, nil), nil
}

func decompressEnvelope(data []byte, compressionType CompressionType) ([]byte, error) {
	if len(data) < envelopeHeaderSize {
		return nil, fmt.Errorf("%w: envelope is %d bytes", ErrMalformed, len(data))
	}

	uncompressedSize := binary.LittleEndian.Uint32(data[0:])
	compressedSize := binary.LittleEndian.Uint32(data[4:])
	if uncompressedSize > maxUncompressedSize {
		return nil, fmt.Errorf("%w: envelope claims %d uncompressed bytes", ErrMalformed, uncompressedSize)
	}

	if compressedSize == 0 {
		if uint32(len(data)) < envelopeHeaderSize+uncompressedSize {
			return nil, fmt.Errorf("%w: stored envelope truncated", ErrMalformed)
		}
		return data[envelopeHeaderSize : envelopeHeaderSize+uncompressedSize], nil
	}

	if uint32(len(data)) < envelopeHeaderSize+compressedSize {
		return nil, fmt.Errorf("%w: compressed envelope truncated", ErrMalformed)
	}
	compressedData := data[envelopeHeaderSize : envelopeHeaderSize+compressedSize]
	result := make([]byte, uncompressedSize)

	switch compressionType {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(compressedData, result)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrMalformed, err)
		}
		if uint32(n) != uncompressedSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrMalformed)
		}
		return result, nil

	case CompressionZstd:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)

		decoded, err := dec.DecodeAll(compressedData, result[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrMalformed, err)
		}
		if uint32(len(decoded)) != uncompressedSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrMalformed)
		}
		return decoded, nil

	default:
		return nil, fmt.Errorf("%w: envelope is compressed but codec expects %s", ErrMalformed, compressionType)
	}
}
