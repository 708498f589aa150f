package types

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// FieldPath addresses a (possibly nested) field of a record. An empty path means no field.
type FieldPath []string

func NewFieldPath(segments ...string) FieldPath {
	return FieldPath(segments)
}

func (f FieldPath) IsZero() bool {
	return len(f) == 0
}

func (f FieldPath) String() string {
	return strings.Join(f, ".")
}

// Lookup resolves the path against a record
func (f FieldPath) Lookup(record map[string]any) (any, bool) {
	if len(f) == 0 {
		return nil, false
	}

	var current any = record
	for _, segment := range f {
		object, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = object[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// UnmarshalJSON accepts either a single field name or a list of segments
func (f *FieldPath) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*f = FieldPath{}
		if single != "" {
			*f = FieldPath{single}
		}
		return nil
	}

	var segments []string
	if err := json.Unmarshal(data, &segments); err != nil {
		return fmt.Errorf("field path must be a string or a list of strings: %s", err)
	}
	*f = FieldPath(segments)
	return nil
}

// PrimaryKey is an ordered list of field paths; more than one path makes it a compound key
type PrimaryKey []FieldPath

// NewPrimaryKey builds a key out of top level field names
func NewPrimaryKey(fields ...string) PrimaryKey {
	key := make(PrimaryKey, 0, len(fields))
	for _, field := range fields {
		key = append(key, FieldPath{field})
	}
	return key
}

func (k PrimaryKey) IsZero() bool {
	return len(k) == 0
}

// Values extracts the key values from the record, in key order
func (k PrimaryKey) Values(record map[string]any) ([]any, error) {
	values := make([]any, 0, len(k))
	for _, path := range k {
		value, found := path.Lookup(record)
		if !found {
			return nil, fmt.Errorf("primary key field [%s] missing from record", path)
		}
		values = append(values, value)
	}
	return values, nil
}

// UnmarshalJSON accepts "id", ["a", "b"] (compound of top level fields) or [["a"], ["b", "c"]]
func (k *PrimaryKey) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*k = PrimaryKey{}
		if single != "" {
			*k = NewPrimaryKey(single)
		}
		return nil
	}

	var paths [][]string
	if err := json.Unmarshal(data, &paths); err == nil {
		key := make(PrimaryKey, 0, len(paths))
		for _, path := range paths {
			key = append(key, FieldPath(path))
		}
		*k = key
		return nil
	}

	var fields []string
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("primary key must be a string, a list of strings or a list of paths: %s", err)
	}
	*k = NewPrimaryKey(fields...)
	return nil
}
