package evaluator

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

const (
	// ArgsVariable holds all invocation arguments as a list, for positional access like args[0].
	ArgsVariable = "args"
	// SystemVariable holds the system values as a map of string to any.
	SystemVariable = "system"
)

// Parameter describes one argument of the query method. A nil Type declares
// the parameter as dyn.
type Parameter struct {
	Name string
	Type *cel.Type
}

// Parameters lists the arguments of the query method in invocation order.
type Parameters []Parameter

// Names returns the parameter names in order.
func (p Parameters) Names() []string {
	names := make([]string, len(p))
	for i, param := range p {
		names[i] = param.Name
	}

	return names
}

// Expression is a compiled expression ready for evaluation.
type Expression interface {
	Source() string
	Evaluate(vars map[string]any) (any, error)
}

// ExpressionCompiler compiles expressions against one parameter list.
type ExpressionCompiler interface {
	Compile(expression string) (Expression, error)
}

// ExpressionParser creates a compiler for the parameters of a query method.
type ExpressionParser interface {
	ForParameters(parameters Parameters) (ExpressionCompiler, error)
}

// CELParser compiles expressions with the Common Expression Language.
type CELParser struct {
	env *cel.Env
}

var _ ExpressionParser = (*CELParser)(nil)

// NewCELParser creates a parser whose base environment declares args, system
// and the decimal library. Additional options extend the base environment.
func NewCELParser(opts ...cel.EnvOption) (*CELParser, error) {
	base := []cel.EnvOption{
		cel.Variable(ArgsVariable, cel.ListType(cel.DynType)),
		cel.Variable(SystemVariable, cel.MapType(cel.StringType, cel.DynType)),
		DecimalLibrary(),
	}

	env, err := cel.NewEnv(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &CELParser{env: env}, nil
}

// ForParameters declares one variable per parameter.
func (p *CELParser) ForParameters(parameters Parameters) (ExpressionCompiler, error) {
	opts := make([]cel.EnvOption, 0, len(parameters))
	seen := make(map[string]bool, len(parameters))

	for _, param := range parameters {
		if param.Name == "" {
			return nil, fmt.Errorf("%w: parameter name must not be empty", ErrInvalidParameter)
		}

		if param.Name == ArgsVariable || param.Name == SystemVariable {
			return nil, fmt.Errorf("%w: '%s' is reserved", ErrInvalidParameter, param.Name)
		}

		if seen[param.Name] {
			return nil, fmt.Errorf("%w: duplicate parameter '%s'", ErrInvalidParameter, param.Name)
		}

		seen[param.Name] = true

		typ := param.Type
		if typ == nil {
			typ = cel.DynType
		}

		opts = append(opts, cel.Variable(param.Name, typ))
	}

	env, err := p.env.Extend(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}

	return &celCompiler{env: env}, nil
}

type celCompiler struct {
	env *cel.Env
}

func (c *celCompiler) Compile(expression string) (Expression, error) {
	ast, issues := c.env.Compile(expression)
	if issues.Err() != nil {
		return nil, issues.Err()
	}

	program, err := c.env.Program(ast)
	if err != nil {
		return nil, err
	}

	return &celExpression{source: expression, program: program}, nil
}

type celExpression struct {
	source  string
	program cel.Program
}

func (e *celExpression) Source() string {
	return e.source
}

func (e *celExpression) Evaluate(vars map[string]any) (any, error) {
	result, _, err := e.program.Eval(vars)
	if err != nil {
		return nil, err
	}

	return toNative(result)
}

// toNative converts a CEL result to a plain Go value. Lists become []any and
// maps become map[string]any, recursively.
func toNative(val ref.Val) (any, error) {
	switch v := val.(type) {
	case *types.Err:
		return nil, fmt.Errorf("%s", v.String())
	case types.Null:
		return nil, nil
	case *Decimal:
		return v.Decimal, nil
	case traits.Lister:
		size, ok := v.Size().(types.Int)
		if !ok {
			return nil, fmt.Errorf("unexpected list size %v", v.Size())
		}

		result := make([]any, 0, int(size))
		for i := types.Int(0); i < size; i++ {
			elem, err := toNative(v.Get(i))
			if err != nil {
				return nil, err
			}

			result = append(result, elem)
		}

		return result, nil
	case traits.Mapper:
		result := make(map[string]any)

		it := v.Iterator()
		for it.HasNext() == types.True {
			key := it.Next()

			elem, err := toNative(v.Get(key))
			if err != nil {
				return nil, err
			}

			result[fmt.Sprint(key.Value())] = elem
		}

		return result, nil
	}

	return val.Value(), nil
}

// TypeByName resolves the type names accepted in configuration files.
func TypeByName(name string) (*cel.Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "any", "dyn":
		return cel.DynType, nil
	case "string":
		return cel.StringType, nil
	case "int":
		return cel.IntType, nil
	case "uint":
		return cel.UintType, nil
	case "double", "float":
		return cel.DoubleType, nil
	case "bool":
		return cel.BoolType, nil
	case "bytes":
		return cel.BytesType, nil
	case "timestamp":
		return cel.TimestampType, nil
	case "duration":
		return cel.DurationType, nil
	case "decimal":
		return DecimalType, nil
	case "list":
		return cel.ListType(cel.DynType), nil
	case "map":
		return cel.MapType(cel.StringType, cel.DynType), nil
	}

	return nil, fmt.Errorf("%w: unknown type '%s'", ErrInvalidParameter, name)
}
