package audience

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/cast"

	"audience/internal/constants"
)

// CoerceFunc converts a raw rule value into the type the stored field uses.
type CoerceFunc func(raw interface{}) (interface{}, error)

var (
	errNullValue = errors.New("value is null")

	integerPrefix = regexp.MustCompile(`^[+-]?\d+`)
	floatPrefix   = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)
)

var fieldCoercers = map[string]CoerceFunc{
	constants.FieldLastVisit:   coerceDate,
	constants.FieldVisits:      coerceInteger,
	constants.FieldTotalSpends: coerceFloat,
}

// Coerce converts raw to the canonical type of field. Fields without a
// registered coercer pass through unchanged.
func Coerce(field string, raw interface{}) (interface{}, error) {
	if fn, ok := fieldCoercers[field]; ok {
		return fn(raw)
	}
	return raw, nil
}

// IsDateField reports whether comparisons on field operate on instants.
func IsDateField(field string) bool {
	return field == constants.FieldLastVisit
}

// coerceInteger parses the leading base-10 integer of the value's text form,
// so "12abc" is 12 and "4.9" is 4.
func coerceInteger(raw interface{}) (interface{}, error) {
	text, err := numericText(raw)
	if err != nil {
		return nil, err
	}

	prefix := integerPrefix.FindString(text)
	if prefix == "" {
		return nil, fmt.Errorf("%q is not an integer", text)
	}

	n, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse integer %q: %w", prefix, err)
	}

	return n, nil
}

func coerceFloat(raw interface{}) (interface{}, error) {
	text, err := numericText(raw)
	if err != nil {
		return nil, err
	}

	prefix := floatPrefix.FindString(text)
	if prefix == "" {
		return nil, fmt.Errorf("%q is not a number", text)
	}

	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return nil, fmt.Errorf("parse number %q: %w", prefix, err)
	}

	return f, nil
}

func numericText(raw interface{}) (string, error) {
	if raw == nil {
		return "", errNullValue
	}

	if _, ok := raw.(bool); ok {
		return "", fmt.Errorf("boolean %v is not a number", raw)
	}

	text, err := cast.ToStringE(raw)
	if err != nil {
		return "", fmt.Errorf("value of type %T is not a number: %w", raw, err)
	}

	return strings.TrimSpace(text), nil
}

// coerceDate accepts date strings in any layout dateparse understands (read
// as UTC when they carry no zone) and numbers as epoch milliseconds.
func coerceDate(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case nil:
		return nil, errNullValue
	case time.Time:
		return v.UTC(), nil
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return nil, errors.New("empty date")
		}
		t, err := dateparse.ParseIn(text, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", text, err)
		}
		return t.UTC(), nil
	case float64, float32, int, int32, int64, json.Number:
		ms, err := cast.ToInt64E(v)
		if err != nil {
			return nil, fmt.Errorf("parse epoch milliseconds %v: %w", v, err)
		}
		return time.UnixMilli(ms).UTC(), nil
	default:
		return nil, fmt.Errorf("value of type %T is not a date", raw)
	}
}
