package types

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Columns of the raw record convention used when records are re-read from raw tables
const (
	RawDataColumn      = "_airbyte_data"
	RawEmittedAtColumn = "_airbyte_emitted_at"
	RawIDColumn        = "_airbyte_ab_id"
)

// IsRaw reports whether the record wraps its payload in the raw convention
func (r *Record) IsRaw() bool {
	if r == nil || r.Data == nil {
		return false
	}
	_, ok := r.Data[RawDataColumn]
	return ok
}

// UnpackRaw returns the record with its raw payload unwrapped. The payload may be
// an object or a JSON encoded string. Records not following the convention are
// returned unchanged.
func (r *Record) UnpackRaw() (*Record, error) {
	if !r.IsRaw() {
		return r, nil
	}

	var data map[string]any
	switch payload := r.Data[RawDataColumn].(type) {
	case map[string]any:
		data = payload
	case string:
		if err := json.Unmarshal([]byte(payload), &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal raw payload of stream %s: %s", r.Stream, err)
		}
	case nil:
		data = map[string]any{}
	default:
		return nil, fmt.Errorf("unsupported raw payload type %T in stream %s", payload, r.Stream)
	}

	unpacked := &Record{
		Stream:    r.Stream,
		Namespace: r.Namespace,
		EmittedAt: r.EmittedAt,
		Data:      data,
	}
	switch emittedAt := r.Data[RawEmittedAtColumn].(type) {
	case float64:
		unpacked.EmittedAt = int64(emittedAt)
	case int64:
		unpacked.EmittedAt = emittedAt
	case int:
		unpacked.EmittedAt = int64(emittedAt)
	case json.Number:
		if value, err := emittedAt.Int64(); err == nil {
			unpacked.EmittedAt = value
		}
	}
	return unpacked, nil
}
