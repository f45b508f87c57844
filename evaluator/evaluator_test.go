package evaluator

import (
	"context"
	"database/sql"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/google/cel-go/cel"
	"github.com/jackc/pgx/v5"
	"github.com/shibukawa/exprquery/extractor"
	"github.com/shibukawa/exprquery/quotation"
	"github.com/shopspring/decimal"
)

func newTestQueryContext(t *testing.T) *EvaluatingQueryContext {
	t.Helper()

	parser, err := NewCELParser()
	assert.NoError(t, err)

	qc, err := extractor.New(extractor.SyntheticNames("p"), extractor.Concat)
	assert.NoError(t, err)

	eqc, err := NewEvaluatingQueryContext(qc, parser)
	assert.NoError(t, err)

	return eqc
}

func TestEvaluate(t *testing.T) {
	testCases := []struct {
		name          string
		query         string
		parameters    Parameters
		args          []any
		expectedQuery string
		expected      map[string]any
	}{
		{
			name:  "named and positional expressions",
			query: "SELECT * FROM users WHERE name = :#{name} AND age > ?#{age + 1}",
			parameters: Parameters{
				{Name: "name", Type: cel.StringType},
				{Name: "age", Type: cel.IntType},
			},
			args:          []any{"alice", 20},
			expectedQuery: "SELECT * FROM users WHERE name = :p0 AND age > ?p1",
			expected:      map[string]any{"p0": "alice", "p1": int64(21)},
		},
		{
			name:          "positional access through args",
			query:         "x = :#{args[1]}",
			parameters:    Parameters{{Name: "first"}, {Name: "second"}},
			args:          []any{"a", "b"},
			expectedQuery: "x = :p0",
			expected:      map[string]any{"p0": "b"},
		},
		{
			name:          "quoted expression stays in the query",
			query:         "note = ':#{name}' AND name = :#{name + '%'}",
			parameters:    Parameters{{Name: "name", Type: cel.StringType}},
			args:          []any{"bob"},
			expectedQuery: "note = ':#{name}' AND name = :p0",
			expected:      map[string]any{"p0": "bob%"},
		},
		{
			name:          "list result",
			query:         "id IN (:#{ids.map(i, i * 10)})",
			parameters:    Parameters{{Name: "ids", Type: cel.ListType(cel.IntType)}},
			args:          []any{[]int{1, 2}},
			expectedQuery: "id IN (:p0)",
			expected:      map[string]any{"p0": []any{int64(10), int64(20)}},
		},
		{
			name:          "null result",
			query:         "deleted_at IS :#{null}",
			expectedQuery: "deleted_at IS :p0",
			expected:      map[string]any{"p0": nil},
		},
		{
			name:          "no expressions",
			query:         "SELECT 1",
			expectedQuery: "SELECT 1",
			expected:      map[string]any{},
		},
	}

	qc := newTestQueryContext(t)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := qc.Parse(tc.query, tc.parameters)
			assert.NoError(t, err)
			assert.Equal(t, tc.expectedQuery, ev.Query())

			result, err := ev.Evaluate(context.Background(), tc.args...)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, result.Values())
			assert.Equal(t, len(tc.expected), result.Len())
		})
	}
}

func TestEvaluatePlainExpressions(t *testing.T) {
	testCases := []struct {
		query    string
		expected any
	}{
		{query: ":#{name}", expected: "alice"},
		{query: ":#{1}", expected: int64(1)},
		{query: ":#{args[0]}", expected: "alice"},
		{query: ":#{'x'}", expected: "x"},
	}

	parser, err := NewCELParser()
	assert.NoError(t, err)

	qc, err := NewEvaluatingQueryContext(extractor.Default, parser)
	assert.NoError(t, err)

	for _, tc := range testCases {
		t.Run(tc.query, func(t *testing.T) {
			ev, err := qc.Parse(tc.query, Parameters{{Name: "name", Type: cel.StringType}})
			assert.NoError(t, err)
			assert.Equal(t, ":"+extractor.DefaultSyntheticPrefix+"0", ev.Query())

			result, err := ev.Evaluate(context.Background(), "alice")
			assert.NoError(t, err)

			value, ok := result.Value(extractor.DefaultSyntheticPrefix + "0")
			assert.True(t, ok)
			assert.Equal(t, tc.expected, value)
		})
	}
}

func TestEvaluateMapResult(t *testing.T) {
	ev, err := newTestQueryContext(t).Parse("doc = :#{attrs}", Parameters{
		{Name: "attrs", Type: cel.MapType(cel.StringType, cel.DynType)},
	})
	assert.NoError(t, err)

	result, err := ev.Evaluate(context.Background(), map[string]any{"owner": "carol", "tags": []string{"a"}})
	assert.NoError(t, err)

	value, ok := result.Value("p0")
	assert.True(t, ok)
	assert.Equal(t, any(map[string]any{"owner": "carol", "tags": []any{"a"}}), value)
}

func TestEvaluateDecimal(t *testing.T) {
	qc := newTestQueryContext(t)

	ev, err := qc.Parse(
		"total = :#{price * 2} AND cheap = :#{price < 5} AND exact = :#{decimal('0.1') + decimal('0.2') == decimal('0.3')} AND r = :#{price.round(1)}",
		Parameters{{Name: "price", Type: DecimalType}},
	)
	assert.NoError(t, err)

	result, err := ev.Evaluate(context.Background(), decimal.RequireFromString("1.25"))
	assert.NoError(t, err)

	total, _ := result.Value("p0")
	assert.True(t, decimal.RequireFromString("2.5").Equal(total.(decimal.Decimal)))

	cheap, _ := result.Value("p1")
	assert.Equal(t, any(true), cheap)

	exact, _ := result.Value("p2")
	assert.Equal(t, any(true), exact)

	rounded, _ := result.Value("p3")
	assert.True(t, decimal.RequireFromString("1.3").Equal(rounded.(decimal.Decimal)))
}

func TestEvaluateSystemValues(t *testing.T) {
	qc := newTestQueryContext(t).WithSystemValues(map[string]any{
		"tenant": "acme",
		"user":   "admin",
	})

	ev, err := qc.Parse("tenant = :#{system.tenant} AND user = :#{system.user}", nil)
	assert.NoError(t, err)

	result, err := ev.Evaluate(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"p0": "acme", "p1": "admin"}, result.Values())

	ctx := WithSystemValue(context.Background(), "tenant", "other")

	result, err = ev.Evaluate(ctx)
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"p0": "other", "p1": "admin"}, result.Values())
}

func TestWithSystemValueDoesNotModifyParent(t *testing.T) {
	parent := WithSystemValue(context.Background(), "a", 1)
	child := WithSystemValue(parent, "b", 2)

	assert.Equal(t, map[string]any{"a": 1}, systemValuesFromContext(parent))
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, systemValuesFromContext(child))
}

func TestEvaluateLogger(t *testing.T) {
	ev, err := newTestQueryContext(t).Parse("a = :#{x} AND b = :#{x * 2}", Parameters{{Name: "x", Type: cel.IntType}})
	assert.NoError(t, err)

	var entries []EvaluationLogEntry

	ctx := WithLogger(context.Background(), func(_ context.Context, entry EvaluationLogEntry) {
		entries = append(entries, entry)
	})

	_, err = ev.Evaluate(ctx, 4)
	assert.NoError(t, err)

	assert.Equal(t, 2, len(entries))
	assert.Equal(t, "p0", entries[0].Name)
	assert.Equal(t, "x", entries[0].Expression)
	assert.Equal(t, any(int64(4)), entries[0].Value)
	assert.Equal(t, "p1", entries[1].Name)
	assert.Equal(t, any(int64(8)), entries[1].Value)
	assert.Equal(t, "a = :p0 AND b = :p1", entries[1].Query)
	assert.Equal(t, "", entries[1].Error)
	assert.True(t, !entries[1].EndAt.Before(entries[1].StartAt))
}

func TestEvaluateErrors(t *testing.T) {
	qc := newTestQueryContext(t)

	t.Run("compile error", func(t *testing.T) {
		_, err := qc.Parse("x = :#{unknown_variable}", nil)
		assert.IsError(t, err, ErrCompile)
		assert.Contains(t, err.Error(), "unknown_variable")
	})

	t.Run("evaluation error", func(t *testing.T) {
		ev, err := qc.Parse("x = :#{10 / divisor}", Parameters{{Name: "divisor", Type: cel.IntType}})
		assert.NoError(t, err)

		var logged []EvaluationLogEntry

		ctx := WithLogger(context.Background(), func(_ context.Context, entry EvaluationLogEntry) {
			logged = append(logged, entry)
		})

		result, err := ev.Evaluate(ctx, 0)
		assert.Zero(t, result)
		assert.IsError(t, err, ErrEvaluate)
		assert.Equal(t, 1, len(logged))
		assert.NotEqual(t, "", logged[0].Error)
	})

	t.Run("argument count", func(t *testing.T) {
		ev, err := qc.Parse("x = :#{a}", Parameters{{Name: "a"}})
		assert.NoError(t, err)

		_, err = ev.Evaluate(context.Background())
		assert.IsError(t, err, ErrArgumentCount)

		_, err = ev.Evaluate(context.Background(), 1, 2)
		assert.IsError(t, err, ErrArgumentCount)
	})

	t.Run("unterminated quote", func(t *testing.T) {
		_, err := qc.Parse("x = :#{a} AND y = 'open", Parameters{{Name: "a"}})
		assert.IsError(t, err, quotation.ErrUnterminatedQuote)
	})

	t.Run("invalid parameters", func(t *testing.T) {
		invalid := []Parameters{
			{{Name: ""}},
			{{Name: ArgsVariable}},
			{{Name: SystemVariable}},
			{{Name: "a"}, {Name: "a"}},
		}

		for _, parameters := range invalid {
			_, err := qc.Parse("x = :#{1}", parameters)
			assert.IsError(t, err, ErrInvalidParameter)
		}
	})
}

func TestNewEvaluatingQueryContextRequiresArguments(t *testing.T) {
	parser, err := NewCELParser()
	assert.NoError(t, err)

	_, err = NewEvaluatingQueryContext(nil, parser)
	assert.IsError(t, err, ErrNilQueryContext)

	_, err = NewEvaluatingQueryContext(extractor.Default, nil)
	assert.IsError(t, err, ErrNilParser)
}

func TestEvaluationArgs(t *testing.T) {
	qc, err := extractor.New(extractor.SyntheticNames("arg"), extractor.AtSign)
	assert.NoError(t, err)

	parser, err := NewCELParser()
	assert.NoError(t, err)

	eqc, err := NewEvaluatingQueryContext(qc, parser)
	assert.NoError(t, err)

	ev, err := eqc.Parse("SELECT * FROM t WHERE a = :#{a} AND b = :#{b}", Parameters{{Name: "a"}, {Name: "b"}})
	assert.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE a = @arg0 AND b = @arg1", ev.Query())

	result, err := ev.Evaluate(context.Background(), "x", true)
	assert.NoError(t, err)

	assert.Equal(t, []string{"arg0", "arg1"}, result.Names())
	assert.Equal(t, []any{sql.Named("arg0", "x"), sql.Named("arg1", true)}, result.NamedArgs())
	assert.Equal(t, pgx.NamedArgs{"arg0": "x", "arg1": true}, result.PgxNamedArgs())
}

func TestTypeByName(t *testing.T) {
	testCases := []struct {
		name     string
		expected *cel.Type
	}{
		{name: "", expected: cel.DynType},
		{name: "any", expected: cel.DynType},
		{name: "String", expected: cel.StringType},
		{name: "int", expected: cel.IntType},
		{name: "uint", expected: cel.UintType},
		{name: "double", expected: cel.DoubleType},
		{name: "bool", expected: cel.BoolType},
		{name: "bytes", expected: cel.BytesType},
		{name: "timestamp", expected: cel.TimestampType},
		{name: "duration", expected: cel.DurationType},
		{name: "decimal", expected: DecimalType},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := TypeByName(tc.name)
			assert.NoError(t, err)
			assert.True(t, tc.expected.IsExactType(actual))
		})
	}

	_, err := TypeByName("matrix")
	assert.IsError(t, err, ErrInvalidParameter)
}
