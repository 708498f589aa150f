package typeutils

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// String renders ids and cursor values without float noise: JSON numbers that
// hold integers are printed without a fraction.
func String(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		if value == math.Trunc(value) && math.Abs(value) < 1e15 {
			return strconv.FormatInt(int64(value), 10)
		}
		return strconv.FormatFloat(value, 'f', -1, 64)
	case time.Time:
		return FormatTimestamp(value)
	case Time:
		return FormatTimestamp(value.Time)
	case fmt.Stringer:
		return value.String()
	default:
		return fmt.Sprint(value)
	}
}
