package domain

import (
	"encoding/json"
	"math"

	"github.com/tidwall/gjson"
)

// Record is an opaque upstream payload. The proxy never models the full
// upstream schema; it reads specific dotted paths out of the raw document and
// forwards the rest untouched. Records are fetched per request and discarded
// after reduction, so the type is a thin view over the original bytes.
type Record struct {
	raw []byte
}

// NewRecord wraps a raw JSON document. The bytes are retained as-is; callers
// must not mutate them afterwards.
func NewRecord(raw []byte) Record { return Record{raw: raw} }

// Raw returns the original upstream bytes for pass-through responses.
func (r Record) Raw() json.RawMessage { return json.RawMessage(r.raw) }

// Float reads a numeric value at a dotted path (e.g. "epa.unitless").
// The boolean result is false when the path is absent, not a number, or a
// non-finite number. Missing values are excluded rather than zero-filled, so
// a false result must never be treated as 0.
func (r Record) Float(path string) (float64, bool) {
	res := gjson.GetBytes(r.raw, path)
	if res.Type != gjson.Number {
		return 0, false
	}
	v := res.Float()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// String reads a string value at a dotted path. Returns "" with false when
// the path is absent or holds a non-string value.
func (r Record) String(path string) (string, bool) {
	res := gjson.GetBytes(r.raw, path)
	if res.Type != gjson.String {
		return "", false
	}
	return res.Str, true
}
