package codec

import (
	"fmt"

	gojson "github.com/goccy/go-json"
)

// JSON is an attribute record codec backed by github.com/goccy/go-json.
//
// Notes:
//   - Byte payloads are base64 in the JSON form, so blobs are larger than
//     with the native codec. Use it when store objects should be readable by
//     tools outside gridgo.
//   - Null string elements map to JSON null, which keeps string attributes
//     faithful across the round trip.
type JSON struct{}

// Encode marshals the record to JSON.
func (JSON) Encode(rec *Record) ([]byte, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return gojson.Marshal(rec)
}

// Decode unmarshals JSON data produced by Encode.
func (JSON) Decode(data []byte) (*Record, error) {
	var rec Record
	if err := gojson.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the codec used for newly created datasets.
//
// NOTE: This affects newly-created datasets only. Existing datasets are
// self-describing (the manifest stores the codec name) and are opened by
// selecting the appropriate codec by name.
var Default Codec = Compressed{Inner: Native{}, Compression: CompressionZstd}

// Classic is the codec used for newly created classic-model datasets.
var Classic Codec = XDR{}
