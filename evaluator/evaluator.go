// Package evaluator evaluates the expressions an extractor.Extractor pulled
// out of a query against the arguments of a query method invocation.
//
// Typical usage:
//
//	parser, _ := evaluator.NewCELParser()
//	qc, _ := evaluator.NewEvaluatingQueryContext(extractor.Default, parser)
//	ev, _ := qc.Parse("SELECT * FROM users WHERE name LIKE :#{name + '%'}", evaluator.Parameters{
//		{Name: "name", Type: cel.StringType},
//	})
//	result, _ := ev.Evaluate(ctx, "Alice")
//	db.QueryContext(ctx, ev.Query(), result.NamedArgs()...)
package evaluator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"

	"github.com/jackc/pgx/v5"
	"github.com/shibukawa/exprquery/extractor"
)

// Sentinel errors
var (
	ErrNilQueryContext  = errors.New("query context must not be nil")
	ErrNilParser        = errors.New("expression parser must not be nil")
	ErrInvalidParameter = errors.New("invalid parameter declaration")
	ErrCompile          = errors.New("failed to compile expression")
	ErrEvaluate         = errors.New("failed to evaluate expression")
	ErrArgumentCount    = errors.New("argument count does not match parameters")
)

// EvaluatingQueryContext extends an extractor.QueryContext with an
// expression parser, so parsed queries can be evaluated.
type EvaluatingQueryContext struct {
	queryContext *extractor.QueryContext
	parser       ExpressionParser
	systemValues map[string]any
}

// NewEvaluatingQueryContext combines the placeholder sources of qc with parser.
func NewEvaluatingQueryContext(qc *extractor.QueryContext, parser ExpressionParser) (*EvaluatingQueryContext, error) {
	if qc == nil {
		return nil, ErrNilQueryContext
	}

	if parser == nil {
		return nil, ErrNilParser
	}

	return &EvaluatingQueryContext{
		queryContext: qc,
		parser:       parser,
	}, nil
}

// WithSystemValues returns a copy using values as the defaults of the system variable.
func (c *EvaluatingQueryContext) WithSystemValues(values map[string]any) *EvaluatingQueryContext {
	copied := *c
	copied.systemValues = maps.Clone(values)

	return &copied
}

// QueryContext returns the underlying extraction context.
func (c *EvaluatingQueryContext) QueryContext() *extractor.QueryContext {
	return c.queryContext
}

type compiledParameter struct {
	name       string
	expression Expression
}

// Evaluator holds a rewritten query and the compiled expressions of its
// placeholders. It is immutable and safe for concurrent use.
type Evaluator struct {
	extractor    *extractor.Extractor
	parameters   Parameters
	compiled     []compiledParameter
	systemValues map[string]any
}

// Parse extracts the expressions of query and compiles them against parameters.
func (c *EvaluatingQueryContext) Parse(query string, parameters Parameters) (*Evaluator, error) {
	e, err := c.queryContext.Parse(query)
	if err != nil {
		return nil, err
	}

	compiler, err := c.parser.ForParameters(parameters)
	if err != nil {
		return nil, err
	}

	compiled := make([]compiledParameter, 0, e.Size())

	for name, source := range e.Parameters().All() {
		expression, err := compiler.Compile(source)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter '%s' expression '%s': %w", ErrCompile, name, source, err)
		}

		compiled = append(compiled, compiledParameter{name: name, expression: expression})
	}

	return &Evaluator{
		extractor:    e,
		parameters:   append(Parameters(nil), parameters...),
		compiled:     compiled,
		systemValues: c.systemValues,
	}, nil
}

// Query returns the rewritten query.
func (ev *Evaluator) Query() string {
	return ev.extractor.Query()
}

// Extractor returns the extraction result the evaluator was built from.
func (ev *Evaluator) Extractor() *extractor.Extractor {
	return ev.extractor
}

// Evaluate evaluates every expression against args, which are matched to the
// parameters by position. Expressions run in order of appearance.
func (ev *Evaluator) Evaluate(ctx context.Context, args ...any) (*Evaluation, error) {
	if len(args) != len(ev.parameters) {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrArgumentCount, len(ev.parameters), len(args))
	}

	system := make(map[string]any, len(ev.systemValues))
	maps.Copy(system, ev.systemValues)
	maps.Copy(system, systemValuesFromContext(ctx))

	vars := make(map[string]any, len(args)+2)
	for i, param := range ev.parameters {
		vars[param.Name] = args[i]
	}

	vars[ArgsVariable] = args
	vars[SystemVariable] = system

	result := &Evaluation{
		names:  make([]string, 0, len(ev.compiled)),
		values: make(map[string]any, len(ev.compiled)),
	}

	for _, c := range ev.compiled {
		logger := startEvaluationLog(ctx, ev.Query(), c.name, c.expression.Source())

		value, err := c.expression.Evaluate(vars)
		logger.write(ctx, value, err)

		if err != nil {
			return nil, fmt.Errorf("%w: parameter '%s' expression '%s': %w", ErrEvaluate, c.name, c.expression.Source(), err)
		}

		result.names = append(result.names, c.name)
		result.values[c.name] = value
	}

	return result, nil
}

// Evaluation maps placeholder names to evaluated values in order of appearance.
type Evaluation struct {
	names  []string
	values map[string]any
}

// Len returns the number of evaluated parameters.
func (r *Evaluation) Len() int {
	return len(r.names)
}

// Names returns the placeholder names in order.
func (r *Evaluation) Names() []string {
	return append([]string(nil), r.names...)
}

// Value returns the value bound to name.
func (r *Evaluation) Value(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Values returns a copy of the name to value mapping.
func (r *Evaluation) Values() map[string]any {
	return maps.Clone(r.values)
}

// NamedArgs returns the values as sql.NamedArg in order, for drivers that
// support named parameters.
func (r *Evaluation) NamedArgs() []any {
	args := make([]any, len(r.names))
	for i, name := range r.names {
		args[i] = sql.Named(name, r.values[name])
	}

	return args
}

// PgxNamedArgs returns the values for queries rewritten with the "@name"
// replacement style.
func (r *Evaluation) PgxNamedArgs() pgx.NamedArgs {
	args := make(pgx.NamedArgs, len(r.names))
	for _, name := range r.names {
		args[name] = r.values[name]
	}

	return args
}
