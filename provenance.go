package gridgo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hupe1980/gridgo/storage"
)

// Version is the library version stamped into the provenance of datasets
// created by this build.
const Version = "0.1.0"

// provenanceVersion is the encoding version of the provenance text itself.
// Version 2 is comma-separated key=value pairs; version 1, the legacy
// encoding, used pipes.
const provenanceVersion = 2

// buildProvenance renders the provenance text for a new dataset.
func buildProvenance() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "version=%d", provenanceVersion)
	fmt.Fprintf(&sb, ",gridgo=%s", Version)
	fmt.Fprintf(&sb, ",store=%d", storage.ManifestVersion)
	return sb.String()
}

// ProvenancePair is one key=value entry of a provenance text.
type ProvenancePair struct {
	Key   string
	Value string
}

// ProvenanceInfo is the parsed form of the provenance attribute.
type ProvenanceInfo struct {
	// Version is the encoding version of the text.
	Version int
	// Pairs holds the remaining entries in their written order.
	Pairs []ProvenancePair
}

// Get returns the value for key, or "".
func (p *ProvenanceInfo) Get(key string) string {
	for _, pair := range p.Pairs {
		if pair.Key == key {
			return pair.Value
		}
	}
	return ""
}

// ParseProvenance parses a provenance text in either the current
// comma-separated encoding or the legacy pipe-separated one. The first pair
// must be version=N.
func ParseProvenance(text string) (*ProvenanceInfo, error) {
	if text == "" {
		return nil, fmt.Errorf("empty provenance")
	}
	sep := ","
	if strings.Contains(text, "|") {
		sep = "|"
	}
	parts := strings.Split(text, sep)

	key, value, ok := strings.Cut(parts[0], "=")
	if !ok || key != "version" {
		return nil, fmt.Errorf("provenance does not start with a version pair: %q", parts[0])
	}
	v, err := strconv.Atoi(value)
	if err != nil || v < 1 {
		return nil, fmt.Errorf("bad provenance version %q", value)
	}

	info := &ProvenanceInfo{Version: v}
	for _, part := range parts[1:] {
		k, val, ok := strings.Cut(part, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("bad provenance pair %q", part)
		}
		info.Pairs = append(info.Pairs, ProvenancePair{Key: k, Value: val})
	}
	return info, nil
}
