package screening

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Bounds for fractional JSON numbers before truncation.
const (
	maxCoercible = math.MaxInt32
	minCoercible = math.MinInt32
)

// Rejection reasons reported per field.
const (
	reasonMissing     = "missing"
	reasonNull        = "must not be null"
	reasonNotInteger  = "not an integer"
	reasonOutOfRange  = "out of range"
	reasonUnsupported = "unsupported type"
)

// ParseInput validates a decoded JSON object and coerces each of the eleven
// required fields to an integer. Extra keys are ignored. Every rejected field
// is reported in the returned ValidationErrors.
func ParseInput(raw map[string]any) (Input, error) {
	var (
		in   Input
		errs ValidationErrors
	)
	for _, name := range FeatureNames {
		v, ok := raw[name]
		if !ok {
			errs = append(errs, FieldError{Field: name, Reason: reasonMissing})
			continue
		}
		n, reason := coerceInt(v)
		if reason != "" {
			errs = append(errs, FieldError{Field: name, Reason: reason})
			continue
		}
		*in.field(name) = n
	}
	if len(errs) > 0 {
		return Input{}, errs
	}
	return in, nil
}

// coerceInt converts a JSON-decoded value to int. Fractional numbers truncate
// toward zero; strings must hold a base-10 integer.
func coerceInt(v any) (int, string) {
	switch t := v.(type) {
	case nil:
		return 0, reasonNull
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return fromInt64(i)
		}
		f, err := t.Float64()
		if err != nil {
			return 0, reasonNotInteger
		}
		return fromFloat(f)
	case float64:
		return fromFloat(t)
	case float32:
		return fromFloat(float64(t))
	case int:
		return t, ""
	case int64:
		return fromInt64(t)
	case int32:
		return int(t), ""
	case bool:
		if t {
			return 1, ""
		}
		return 0, ""
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, reasonNotInteger
		}
		return fromInt64(i)
	default:
		return 0, reasonUnsupported
	}
}

func fromInt64(i int64) (int, string) {
	if i > maxCoercible || i < minCoercible {
		return 0, reasonOutOfRange
	}
	return int(i), ""
}

func fromFloat(f float64) (int, string) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, reasonNotInteger
	}
	f = math.Trunc(f)
	if f > maxCoercible || f < minCoercible {
		return 0, reasonOutOfRange
	}
	return int(f), ""
}
