// Package codec serializes attribute records into backing store objects.
//
// Gridgo intentionally treats codec selection as a breaking-change boundary:
// if you change codecs, persisted bytes created by older codecs may no longer
// decode. The dataset manifest records the codec name, and blobs are only
// decoded with the codec named there.
//
// Records are self-describing within a codec: each blob carries the stored
// type, its class and the element count, so it can be decoded without
// consulting the dataset's type registry.
package codec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/gridgo/dtype"
)

// ErrMalformed is returned when a blob cannot be decoded as an attribute
// record.
var ErrMalformed = errors.New("malformed attribute record")

// Record is one attribute as persisted: identity, typing and exactly one
// payload representation, selected by Class.
//
//   - numeric, text, opaque, enum, compound: Bytes holds N packed elements
//   - vlen: VLens holds N independently sized element buffers
//   - string: Strings holds N entries, nil entries are null
type Record struct {
	Name     string      `json:"name"`
	Type     dtype.ID    `json:"type"`
	Class    dtype.Class `json:"class"`
	BaseSize int         `json:"base_size,omitempty"` // element size for user types; 0 for atomic
	N        int         `json:"n"`

	Bytes   []byte    `json:"bytes,omitempty"`
	VLens   [][]byte  `json:"vlens,omitempty"`
	Strings []*string `json:"strings,omitempty"`
}

// ElemSize returns the packed element size implied by the record's typing,
// or 0 when elements are not fixed size.
func (r *Record) ElemSize() int {
	if dtype.IsUser(r.Type) {
		return r.BaseSize
	}
	return dtype.Size(r.Type)
}

// Validate checks that the payload representation matches the declared class
// and count.
func (r *Record) Validate() error {
	switch r.Class {
	case dtype.ClassVLen:
		if len(r.VLens) != r.N {
			return fmt.Errorf("%w: %d vlen elements, header says %d", ErrMalformed, len(r.VLens), r.N)
		}
	case dtype.ClassString:
		if len(r.Strings) != r.N {
			return fmt.Errorf("%w: %d string elements, header says %d", ErrMalformed, len(r.Strings), r.N)
		}
	default:
		if es := r.ElemSize(); es > 0 && len(r.Bytes) != r.N*es {
			return fmt.Errorf("%w: payload is %d bytes, header says %d", ErrMalformed, len(r.Bytes), r.N*es)
		}
	}
	return nil
}

// Codec encodes/decodes attribute records.
// Implementations must be safe for concurrent use.
type Codec interface {
	Encode(rec *Record) ([]byte, error)
	Decode(data []byte) (*Record, error)
	Name() string
}

// ByName returns a built-in codec by its stable name.
//
// This is used with the dataset manifest, which stores the codec name so a
// dataset can be reopened with the codec that wrote it. Compound names layer
// compression over a base codec: "native+zstd", "xdr+lz4".
func ByName(name string) (Codec, bool) {
	base, comp, compressed := strings.Cut(name, "+")

	var c Codec
	switch base {
	case "native":
		c = Native{}
	case "xdr":
		c = XDR{}
	case "json":
		c = JSON{}
	default:
		return nil, false
	}
	if !compressed {
		return c, true
	}

	switch comp {
	case "zstd":
		return Compressed{Inner: c, Compression: CompressionZstd}, true
	case "lz4":
		return Compressed{Inner: c, Compression: CompressionLZ4}, true
	default:
		return nil, false
	}
}

// MustEncode is a helper for internal tests/benchmarks.
func MustEncode(c Codec, rec *Record) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Encode(rec)
	if err != nil {
		panic(fmt.Errorf("codec %s encode failed: %w", c.Name(), err))
	}
	return b
}
