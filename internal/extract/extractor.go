// Package extract maps raw provider payloads into canonical candidate
// records. Providers do not share a wire format, so each schema has its own
// extractor function; a registry dispatches on the schema name configured
// per source. Adding a source with a new wire format is a pure
// data-plus-function addition.
package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/internal/model"
)

// Options carries per-source extraction settings.
type Options struct {
	SourceID string
	Unit     int

	// MinQuality filters out records below this grade ("thumbnail",
	// "subsampled", "full"). Empty keeps everything.
	MinQuality string
}

// Func parses one raw unit payload into candidate records. A payload that
// cannot be parsed at all returns an error wrapping errors.ErrParse; a
// malformed individual item is skipped, never fatal. Output order is not
// stable.
type Func func(raw []byte, opts Options) ([]model.CandidateRecord, error)

// Registry maps provider schema names to extractor functions.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry returns a Registry with all built-in schema extractors.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	r.Register("m20", ExtractM20)
	r.Register("msl", ExtractMSL)
	return r
}

// Register adds or replaces the extractor for a schema name.
func (r *Registry) Register(schema string, fn Func) {
	r.funcs[schema] = fn
}

// Lookup returns the extractor for a schema name.
func (r *Registry) Lookup(schema string) (Func, error) {
	fn, ok := r.funcs[schema]
	if !ok {
		return nil, fmt.Errorf("no extractor registered for schema %q", schema)
	}
	return fn, nil
}

// qualityRank orders image grades so MinQuality can be compared. Unknown
// grades rank as full quality rather than being dropped.
func qualityRank(q string) int {
	switch strings.ToLower(strings.TrimSpace(q)) {
	case "thumbnail", "thumb":
		return 0
	case "subsampled", "downsampled":
		return 1
	default:
		return 2
	}
}

func meetsQuality(sample, min string) bool {
	if min == "" {
		return true
	}
	return qualityRank(sample) >= qualityRank(min)
}

// flexInt tolerates providers sending numbers as strings, floats, or null.
type flexInt struct {
	Value int
	Set   bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		return nil
	}
	s = strings.Trim(s, `"`)
	if n, err := strconv.Atoi(s); err == nil {
		f.Value, f.Set = n, true
		return nil
	}
	if x, err := strconv.ParseFloat(s, 64); err == nil {
		f.Value, f.Set = int(x), true
		return nil
	}
	// Alternate-typed field: treat as absent, never fail the record.
	return nil
}

func (f flexInt) ptr() *int {
	if !f.Set {
		return nil
	}
	v := f.Value
	return &v
}

// flexFloat is flexInt's float counterpart.
type flexFloat struct {
	Value float64
	Set   bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "null" || s == "" {
		return nil
	}
	if x, err := strconv.ParseFloat(s, 64); err == nil {
		f.Value, f.Set = x, true
	}
	return nil
}

func (f flexFloat) ptr() *float64 {
	if !f.Set {
		return nil
	}
	v := f.Value
	return &v
}

// flexString tolerates providers sending identifiers as JSON numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return nil
		}
		*f = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime tries the timestamp layouts seen across providers. A zero time
// means the field was absent or unreadable.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// parseTuple reads "(a,b,...)" strings such as dimension pairs and
// subframe rectangles.
func parseTuple(s string) []int {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil
		}
		out = append(out, n)
	}
	return out
}

// compactRaw re-encodes the original item so the stored payload is exactly
// what the provider sent, byte-trimmed.
func compactRaw(item json.RawMessage) json.RawMessage {
	raw := make(json.RawMessage, len(item))
	copy(raw, item)
	return raw
}
