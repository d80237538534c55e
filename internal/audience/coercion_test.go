package audience

import (
	"strconv"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce_Visits(t *testing.T) {
	tests := []struct {
		name     string
		raw      interface{}
		expected int64
	}{
		{name: "numeric string", raw: "5", expected: 5},
		{name: "leading integer prefix", raw: "12abc", expected: 12},
		{name: "surrounding spaces", raw: "  7 ", expected: 7},
		{name: "negative", raw: "-3", expected: -3},
		{name: "decimal string truncates", raw: "4.9", expected: 4},
		{name: "json number", raw: float64(10), expected: 10},
		{name: "fractional json number", raw: 4.9, expected: 4},
		{name: "go int", raw: 8, expected: 8},
		{name: "zero", raw: 0, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Coerce("visits", tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestCoerce_VisitsRejects(t *testing.T) {
	for _, raw := range []interface{}{"abc", "", nil, true, []interface{}{1}, "99999999999999999999"} {
		_, err := Coerce("visits", raw)
		assert.Error(t, err, "raw=%v", raw)
	}
}

func TestCoerce_TotalSpends(t *testing.T) {
	tests := []struct {
		name     string
		raw      interface{}
		expected float64
	}{
		{name: "decimal string", raw: "12.5", expected: 12.5},
		{name: "leading prefix", raw: "12.5kg", expected: 12.5},
		{name: "exponent", raw: "1e3", expected: 1000},
		{name: "leading dot", raw: ".5", expected: 0.5},
		{name: "integer", raw: 3, expected: 3},
		{name: "json number", raw: 99.99, expected: 99.99},
		{name: "zero", raw: "0", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Coerce("total_spends", tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestCoerce_TotalSpendsRejects(t *testing.T) {
	for _, raw := range []interface{}{"free", "", nil, false} {
		_, err := Coerce("total_spends", raw)
		assert.Error(t, err, "raw=%v", raw)
	}
}

func TestCoerce_LastVisit(t *testing.T) {
	tests := []struct {
		name     string
		raw      interface{}
		expected time.Time
	}{
		{name: "date only", raw: "2024-03-15", expected: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{name: "rfc3339 utc", raw: "2024-03-15T10:30:00Z", expected: time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)},
		{name: "rfc3339 offset", raw: "2024-03-15T10:30:00+02:00", expected: time.Date(2024, 3, 15, 8, 30, 0, 0, time.UTC)},
		{name: "epoch milliseconds", raw: float64(1710498600000), expected: time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)},
		{name: "time value", raw: time.Date(2024, 3, 15, 12, 0, 0, 0, time.FixedZone("X", 3600)), expected: time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Coerce("last_visit", tt.raw)
			require.NoError(t, err)

			got, ok := v.(time.Time)
			require.True(t, ok)
			assert.True(t, tt.expected.Equal(got), "expected %s, got %s", tt.expected, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestCoerce_LastVisitRejects(t *testing.T) {
	for _, raw := range []interface{}{"not a date", "", nil, true, map[string]interface{}{}} {
		_, err := Coerce("last_visit", raw)
		assert.Error(t, err, "raw=%v", raw)
	}
}

func TestCoerce_OtherFieldsPassThrough(t *testing.T) {
	values := []interface{}{"Paris", 42, nil, map[string]interface{}{"zip": "75001"}}
	for _, raw := range values {
		v, err := Coerce("city", raw)
		require.NoError(t, err)
		assert.Equal(t, raw, v)
	}
}

func TestCoerce_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("visits round-trips decimal text", prop.ForAll(
		func(n int64) bool {
			v, err := Coerce("visits", strconv.FormatInt(n, 10))
			return err == nil && v == n
		},
		gen.Int64Range(-1e15, 1e15),
	))

	properties.Property("visits accepts JSON numbers", prop.ForAll(
		func(n int64) bool {
			v, err := Coerce("visits", float64(n))
			return err == nil && v == n
		},
		gen.Int64Range(-1e15, 1e15),
	))

	properties.Property("total_spends preserves JSON numbers", prop.ForAll(
		func(f float64) bool {
			v, err := Coerce("total_spends", f)
			return err == nil && v == f
		},
		gen.Float64Range(-1e9, 1e9),
	))

	properties.Property("last_visit reads RFC3339 as the same instant", prop.ForAll(
		func(sec int64) bool {
			want := time.Unix(sec, 0).UTC()
			v, err := Coerce("last_visit", want.Format(time.RFC3339))
			if err != nil {
				return false
			}
			got, ok := v.(time.Time)
			return ok && got.Equal(want)
		},
		gen.Int64Range(0, 4102444800),
	))

	properties.TestingRun(t)
}
