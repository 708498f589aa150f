package typeutils

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

// Compare returns 0 for equal, -1 if a < b else 1 if a > b. Strings that both
// parse as timestamps are compared as instants, so cursors rendered with
// different offsets or precision still order correctly.
func Compare(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	switch aVal := a.(type) {
	case uint, uint8, uint16, uint32, uint64:
		if !isNumeric(b) {
			break
		}
		if isFloat(b) {
			return compareFloats(toFloat(a), toFloat(b))
		}
		aUint := reflect.ValueOf(a).Convert(reflect.TypeFor[uint64]()).Uint()
		bUint, ok := toUint(b)
		if !ok {
			return 1
		}
		return compareOrdered(aUint, bUint)
	case int, int8, int16, int32, int64:
		if !isNumeric(b) {
			break
		}
		if isFloat(b) {
			return compareFloats(toFloat(a), toFloat(b))
		}
		aInt := reflect.ValueOf(a).Convert(reflect.TypeFor[int64]()).Int()
		bInt, ok := toInt(b)
		if !ok {
			return -1
		}
		return compareOrdered(aInt, bInt)
	case float32, float64:
		if !isNumeric(b) {
			break
		}
		return compareFloats(toFloat(a), toFloat(b))
	case time.Time:
		if bTime, ok := asTime(b); ok {
			return aVal.Compare(bTime)
		}
	case Time:
		if bTime, ok := asTime(b); ok {
			return aVal.Time.Compare(bTime)
		}
	case bool:
		if bBool, ok := b.(bool); ok {
			// false < true
			if !aVal && bBool {
				return -1
			} else if aVal && !bBool {
				return 1
			}
			return 0
		}
	case string:
		if bStr, ok := b.(string); ok {
			aTime, aErr := ParseTimestamp(aVal)
			bTime, bErr := ParseTimestamp(bStr)
			if aErr == nil && bErr == nil {
				return aTime.Compare(bTime)
			}
			return strings.Compare(aVal, bStr)
		}
		if bTime, ok := asTime(b); ok {
			if aTime, err := ParseTimestamp(aVal); err == nil {
				return aTime.Compare(bTime)
			}
		}
	}

	// mixed or unknown types fall back to their string form
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

// Max returns the larger of the two values according to Compare; a wins ties
func Max(a, b any) any {
	if Compare(b, a) > 0 {
		return b
	}
	return a
}

func compareOrdered[T int64 | uint64](a, b T) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

func compareFloats(aFloat, bFloat float64) int {
	if math.IsNaN(aFloat) {
		if math.IsNaN(bFloat) {
			return 0
		}
		return -1
	}
	if math.IsNaN(bFloat) {
		return 1
	}
	if math.IsInf(aFloat, 0) || math.IsInf(bFloat, 0) {
		if aFloat == bFloat {
			return 0
		} else if aFloat < bFloat {
			return -1
		}
		return 1
	}

	const eps = 1e-6
	diff := aFloat - bFloat
	if math.Abs(diff) < eps {
		return 0
	} else if diff < 0 {
		return -1
	}
	return 1
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

func isFloat(v any) bool {
	switch v.(type) {
	case float32, float64:
		return true
	}
	return false
}

func toFloat(v any) float64 {
	return reflect.ValueOf(v).Convert(reflect.TypeFor[float64]()).Float()
}

func toInt(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	default:
		return rv.Convert(reflect.TypeFor[int64]()).Int(), true
	}
}

func toUint(v any) (uint64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		if i < 0 {
			return 0, false
		}
		return uint64(i), true
	default:
		return rv.Convert(reflect.TypeFor[uint64]()).Uint(), true
	}
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case Time:
		return t.Time, true
	case string:
		parsed, err := ParseTimestamp(t)
		return parsed, err == nil
	}
	return time.Time{}, false
}
