package exprquery

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/shopspring/decimal"
)

// ParseParameterValue decodes a command line value as a YAML scalar, so
// 10, true and null keep their types and anything else stays a string.
func ParseParameterValue(raw string) (any, error) {
	var value any

	err := yaml.Unmarshal([]byte(raw), &value)
	if err != nil {
		return nil, fmt.Errorf("%w: '%s': %w", ErrInvalidParameterValue, raw, err)
	}

	return normalizeValue(value), nil
}

// ParseParameterFile decodes a YAML mapping of variable name to value.
func ParseParameterFile(data []byte) (map[string]any, error) {
	var values map[string]any

	err := yaml.Unmarshal(data, &values)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameterValue, err)
	}

	if values == nil {
		values = map[string]any{}
	}

	return values, nil
}

// BindArguments orders values the way Parameters declares the variables and
// converts each one to the Go type its declared type expects. Variables with
// no value are bound to nil.
func (c *Config) BindArguments(values map[string]any) ([]any, error) {
	for name := range values {
		if _, ok := c.Expression.Variables[name]; !ok {
			return nil, fmt.Errorf("%w: '%s'", ErrUnknownParameter, name)
		}
	}

	parameters, err := c.Parameters()
	if err != nil {
		return nil, err
	}

	args := make([]any, len(parameters))

	for i, param := range parameters {
		value, ok := values[param.Name]
		if !ok || value == nil {
			continue
		}

		converted, err := convertValue(c.Expression.Variables[param.Name], normalizeValue(value))
		if err != nil {
			return nil, fmt.Errorf("%w: '%s': %w", ErrInvalidParameterValue, param.Name, err)
		}

		args[i] = converted
	}

	return args, nil
}

// normalizeValue turns the integer types YAML decoders produce into int64
// when they fit, so they match CEL's int.
func normalizeValue(value any) any {
	switch v := value.(type) {
	case int:
		return int64(v)
	case uint64:
		if v <= math.MaxInt64 {
			return int64(v)
		}

		return v
	case []any:
		result := make([]any, len(v))
		for i, elem := range v {
			result[i] = normalizeValue(elem)
		}

		return result
	case map[string]any:
		result := make(map[string]any, len(v))
		for key, elem := range v {
			result[key] = normalizeValue(elem)
		}

		return result
	}

	return value
}

func convertValue(typeName string, value any) (any, error) {
	switch strings.ToLower(strings.TrimSpace(typeName)) {
	case "string":
		if s, ok := value.(string); ok {
			return s, nil
		}

		return fmt.Sprint(value), nil
	case "int":
		return toInt64(value)
	case "uint":
		return toUint64(value)
	case "double", "float":
		return toFloat64(value)
	case "bool":
		if b, ok := value.(bool); ok {
			return b, nil
		}

		if s, ok := value.(string); ok {
			return strconv.ParseBool(s)
		}
	case "bytes":
		if s, ok := value.(string); ok {
			return []byte(s), nil
		}
	case "decimal":
		return toDecimal(value)
	case "timestamp":
		switch v := value.(type) {
		case time.Time:
			return v, nil
		case string:
			return time.Parse(time.RFC3339, v)
		}
	case "duration":
		switch v := value.(type) {
		case time.Duration:
			return v, nil
		case string:
			return time.ParseDuration(v)
		}
	case "list":
		if list, ok := value.([]any); ok {
			return list, nil
		}
	case "map":
		if m, ok := value.(map[string]any); ok {
			return m, nil
		}
	default:
		return value, nil
	}

	return nil, fmt.Errorf("cannot use %v (%T) as %s", value, value, typeName)
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case uint64:
		return 0, fmt.Errorf("%d overflows int", v)
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%v is not an integer", v)
		}

		// float64(math.MaxInt64) rounds up to 2^63, which is already out of range
		if v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, fmt.Errorf("%v overflows int", v)
		}

		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	}

	return 0, fmt.Errorf("cannot use %v (%T) as int", value, value)
}

func toUint64(value any) (uint64, error) {
	switch v := value.(type) {
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("%d is negative", v)
		}

		return uint64(v), nil
	case uint64:
		return v, nil
	case string:
		return strconv.ParseUint(v, 10, 64)
	}

	return 0, fmt.Errorf("cannot use %v (%T) as uint", value, value)
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	}

	return 0, fmt.Errorf("cannot use %v (%T) as double", value, value)
}

func toDecimal(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case int64:
		return decimal.NewFromInt(v), nil
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		return decimal.NewFromString(v)
	}

	return decimal.Decimal{}, fmt.Errorf("cannot use %v (%T) as decimal", value, value)
}
