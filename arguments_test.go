package exprquery

import (
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"
)

func TestParseParameterValue(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected any
	}{
		{name: "integer", raw: "10", expected: int64(10)},
		{name: "negative integer", raw: "-3", expected: int64(-3)},
		{name: "float", raw: "1.5", expected: 1.5},
		{name: "bool", raw: "true", expected: true},
		{name: "null", raw: "null", expected: nil},
		{name: "string", raw: "alice", expected: "alice"},
		{name: "quoted number", raw: `"10"`, expected: "10"},
		{name: "flow list", raw: "[1, 2]", expected: []any{int64(1), int64(2)}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := ParseParameterValue(tc.raw)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestParseParameterFile(t *testing.T) {
	values, err := ParseParameterFile([]byte("name: alice\nids:\n  - 1\n  - 2\n"))
	assert.NoError(t, err)
	assert.Equal(t, any("alice"), values["name"])
	assert.Equal(t, 2, len(values))

	values, err = ParseParameterFile(nil)
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{}, values)

	_, err = ParseParameterFile([]byte("- not\n- a map\n"))
	assert.IsError(t, err, ErrInvalidParameterValue)
}

func TestBindArguments(t *testing.T) {
	config, err := ParseConfig([]byte(`
expression:
  variables:
    age: int
    at: timestamp
    name: string
    price: decimal
    ratio: double
    timeout: duration
`))
	assert.NoError(t, err)

	args, err := config.BindArguments(map[string]any{
		"age":     uint64(42),
		"at":      "2024-01-02T03:04:05Z",
		"name":    int64(7),
		"price":   "1.25",
		"ratio":   int64(2),
		"timeout": "1m30s",
	})
	assert.NoError(t, err)
	assert.Equal(t, 6, len(args))
	assert.Equal(t, any(int64(42)), args[0])
	assert.Equal(t, any(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)), args[1])
	assert.Equal(t, any("7"), args[2])
	assert.True(t, decimal.RequireFromString("1.25").Equal(args[3].(decimal.Decimal)))
	assert.Equal(t, any(2.0), args[4])
	assert.Equal(t, any(90*time.Second), args[5])
}

func TestBindArguments_MissingValuesAreNil(t *testing.T) {
	config, err := ParseConfig([]byte("expression:\n  variables:\n    a: any\n    b: any\n"))
	assert.NoError(t, err)

	args, err := config.BindArguments(map[string]any{"b": "x"})
	assert.NoError(t, err)
	assert.Equal(t, []any{nil, "x"}, args)
}

func TestBindArguments_Errors(t *testing.T) {
	config, err := ParseConfig([]byte("expression:\n  variables:\n    age: int\n    flag: bool\n"))
	assert.NoError(t, err)

	_, err = config.BindArguments(map[string]any{"unknown": 1})
	assert.IsError(t, err, ErrUnknownParameter)

	_, err = config.BindArguments(map[string]any{"age": "old"})
	assert.IsError(t, err, ErrInvalidParameterValue)

	_, err = config.BindArguments(map[string]any{"age": 1.5})
	assert.IsError(t, err, ErrInvalidParameterValue)

	for _, huge := range []float64{1e30, -1e30, 9223372036854775808.0} {
		_, err = config.BindArguments(map[string]any{"age": huge})
		assert.IsError(t, err, ErrInvalidParameterValue)
		assert.Contains(t, err.Error(), "overflows int")
	}

	args, err := config.BindArguments(map[string]any{"age": 1e18})
	assert.NoError(t, err)
	assert.Equal(t, any(int64(1e18)), args[0])

	_, err = config.BindArguments(map[string]any{"flag": int64(1)})
	assert.IsError(t, err, ErrInvalidParameterValue)
	assert.Contains(t, err.Error(), "'flag'")
}
