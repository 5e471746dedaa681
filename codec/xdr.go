package codec

import (
	"bytes"
	"fmt"
	"math"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/hupe1980/gridgo/dtype"
)

const xdrRecordVersion = 1

// xdrRecord is the on-wire form. XDR has no nullable string, so string
// payloads travel as parallel present/value arrays of length N.
type xdrRecord struct {
	Version  uint32
	Name     string
	Type     uint32
	Class    uint32
	BaseSize uint32
	N        uint32
	Bytes    []byte
	VLens    [][]byte
	Present  []bool
	Strings  []string
}

// XDR is the External Data Representation attribute record codec ("xdr").
// It is the default for classic-model datasets, where the payload bytes stay
// interchangeable with classic-era tooling.
type XDR struct{}

// Name returns the unique name of the codec ("xdr").
func (XDR) Name() string { return "xdr" }

// Encode marshals the record in XDR form.
func (XDR) Encode(rec *Record) ([]byte, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	w := xdrRecord{
		Version:  xdrRecordVersion,
		Name:     rec.Name,
		Type:     uint32(rec.Type),
		Class:    uint32(rec.Class),
		BaseSize: uint32(rec.BaseSize),
		N:        uint32(rec.N),
		Bytes:    rec.Bytes,
		VLens:    rec.VLens,
	}
	if rec.Class == dtype.ClassString {
		w.Present = make([]bool, len(rec.Strings))
		w.Strings = make([]string, len(rec.Strings))
		for i, s := range rec.Strings {
			if s != nil {
				w.Present[i] = true
				w.Strings[i] = *s
			}
		}
	}

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &w); err != nil {
		return nil, fmt.Errorf("xdr marshal: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode unmarshals a blob produced by Encode.
func (XDR) Decode(data []byte) (*Record, error) {
	var w xdrRecord
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &w); err != nil {
		return nil, fmt.Errorf("%w: xdr unmarshal: %v", ErrMalformed, err)
	}
	if w.Version != xdrRecordVersion {
		return nil, fmt.Errorf("%w: unsupported record version %d", ErrMalformed, w.Version)
	}
	if w.N > math.MaxInt32 {
		return nil, fmt.Errorf("%w: element count %d", ErrMalformed, w.N)
	}

	rec := &Record{
		Name:     w.Name,
		Type:     dtype.ID(w.Type),
		Class:    dtype.Class(w.Class),
		BaseSize: int(w.BaseSize),
		N:        int(w.N),
		Bytes:    w.Bytes,
		VLens:    w.VLens,
	}
	// XDR decodes zero-length buffers as empty slices; normalize to nil so
	// records survive round trips under deep equality.
	if len(rec.Bytes) == 0 {
		rec.Bytes = nil
	}
	if len(rec.VLens) == 0 {
		rec.VLens = nil
	} else {
		for i, el := range rec.VLens {
			if len(el) == 0 {
				rec.VLens[i] = nil
			}
		}
	}
	if rec.Class == dtype.ClassString {
		if len(w.Present) != len(w.Strings) {
			return nil, fmt.Errorf("%w: %d presence flags for %d strings", ErrMalformed, len(w.Present), len(w.Strings))
		}
		if len(w.Strings) > 0 {
			rec.Strings = make([]*string, len(w.Strings))
			for i, present := range w.Present {
				if present {
					s := w.Strings[i]
					rec.Strings[i] = &s
				}
			}
		}
	}

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}
