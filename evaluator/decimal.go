package evaluator

import (
	"fmt"
	"math/big"
	"reflect"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/operators"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"github.com/shopspring/decimal"
)

// DecimalTypeName is the CEL type name of exact decimal values.
const DecimalTypeName = "exprquery.Decimal"

// DecimalType is the CEL type of exact decimal values.
var DecimalType = types.NewObjectType(DecimalTypeName,
	traits.AdderType, traits.SubtractorType, traits.MultiplierType, traits.ComparerType)

// Decimal wraps decimal.Decimal as a CEL value.
type Decimal struct {
	decimal.Decimal
}

var (
	_ ref.Val           = (*Decimal)(nil)
	_ traits.Adder      = (*Decimal)(nil)
	_ traits.Subtractor = (*Decimal)(nil)
	_ traits.Multiplier = (*Decimal)(nil)
	_ traits.Comparer   = (*Decimal)(nil)
)

// Type implements ref.Val.
func (d *Decimal) Type() ref.Type {
	return DecimalType
}

// Value returns the wrapped decimal.Decimal.
func (d *Decimal) Value() any {
	return d.Decimal
}

// ConvertToNative implements ref.Val.
func (d *Decimal) ConvertToNative(typeDesc reflect.Type) (any, error) {
	switch typeDesc {
	case reflect.TypeOf(decimal.Decimal{}):
		return d.Decimal, nil
	case reflect.TypeOf(&decimal.Decimal{}):
		v := d.Decimal
		return &v, nil
	case reflect.TypeOf(float64(0)):
		f, _ := d.Float64()
		return f, nil
	case reflect.TypeOf(""):
		return d.String(), nil
	}

	return nil, fmt.Errorf("unsupported native conversion from decimal to %v", typeDesc)
}

// ConvertToType implements ref.Val.
func (d *Decimal) ConvertToType(typeVal ref.Type) ref.Val {
	switch typeVal {
	case types.DoubleType:
		f, _ := d.Float64()
		return types.Double(f)
	case types.StringType:
		return types.String(d.String())
	case types.IntType:
		return types.Int(d.IntPart())
	case DecimalType:
		return d
	case types.TypeType:
		return DecimalType
	}

	return types.NewErr("type conversion error from '%s' to '%s'", DecimalTypeName, typeVal.TypeName())
}

// Equal implements ref.Val.
func (d *Decimal) Equal(other ref.Val) ref.Val {
	o, ok := toDecimal(other)
	if !ok {
		return types.False
	}

	return types.Bool(d.Decimal.Equal(o))
}

// Add implements traits.Adder.
func (d *Decimal) Add(other ref.Val) ref.Val {
	o, ok := toDecimal(other)
	if !ok {
		return types.MaybeNoSuchOverloadErr(other)
	}

	return &Decimal{d.Decimal.Add(o)}
}

// Subtract implements traits.Subtractor.
func (d *Decimal) Subtract(subtrahend ref.Val) ref.Val {
	o, ok := toDecimal(subtrahend)
	if !ok {
		return types.MaybeNoSuchOverloadErr(subtrahend)
	}

	return &Decimal{d.Decimal.Sub(o)}
}

// Multiply implements traits.Multiplier.
func (d *Decimal) Multiply(other ref.Val) ref.Val {
	o, ok := toDecimal(other)
	if !ok {
		return types.MaybeNoSuchOverloadErr(other)
	}

	return &Decimal{d.Decimal.Mul(o)}
}

// Compare implements traits.Comparer.
func (d *Decimal) Compare(other ref.Val) ref.Val {
	o, ok := toDecimal(other)
	if !ok {
		return types.MaybeNoSuchOverloadErr(other)
	}

	return types.Int(d.Cmp(o))
}

// toDecimal widens decimal, int, uint and double CEL values.
func toDecimal(val ref.Val) (decimal.Decimal, bool) {
	switch v := val.(type) {
	case *Decimal:
		return v.Decimal, true
	case types.Int:
		return decimal.NewFromInt(int64(v)), true
	case types.Uint:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(v)), 0), true
	case types.Double:
		return decimal.NewFromFloat(float64(v)), true
	}

	return decimal.Decimal{}, false
}

type decimalAdapter struct{}

func (decimalAdapter) NativeToValue(value any) ref.Val {
	switch v := value.(type) {
	case *Decimal:
		return v
	case decimal.Decimal:
		return &Decimal{v}
	case *decimal.Decimal:
		if v == nil {
			return types.NullValue
		}

		return &Decimal{*v}
	}

	return types.DefaultTypeAdapter.NativeToValue(value)
}

var _ types.Adapter = decimalAdapter{}

// decimalOperator declares decimal overloads of a standard operator. They carry
// no binding: the standard singleton dispatches on the traits of the left operand.
func decimalOperator(name, id string, result *cel.Type) cel.EnvOption {
	return cel.Function(name,
		cel.Overload(id+"_decimal_decimal", []*cel.Type{DecimalType, DecimalType}, result),
		cel.Overload(id+"_decimal_int", []*cel.Type{DecimalType, cel.IntType}, result),
		cel.Overload(id+"_decimal_double", []*cel.Type{DecimalType, cel.DoubleType}, result),
	)
}

func parseDecimal(val ref.Val) ref.Val {
	s, ok := val.(types.String)
	if !ok {
		return types.MaybeNoSuchOverloadErr(val)
	}

	d, err := decimal.NewFromString(string(s))
	if err != nil {
		return types.NewErr("invalid decimal string: %s", string(s))
	}

	return &Decimal{d}
}

type decimalLibrary struct{}

func (decimalLibrary) CompileOptions() []cel.EnvOption {
	widen := cel.UnaryBinding(func(val ref.Val) ref.Val {
		d, ok := toDecimal(val)
		if !ok {
			return types.MaybeNoSuchOverloadErr(val)
		}

		return &Decimal{d}
	})

	return []cel.EnvOption{
		cel.CustomTypeAdapter(decimalAdapter{}),
		cel.Function("decimal",
			cel.Overload("decimal_string", []*cel.Type{cel.StringType}, DecimalType, cel.UnaryBinding(parseDecimal)),
			cel.Overload("decimal_int", []*cel.Type{cel.IntType}, DecimalType, widen),
			cel.Overload("decimal_double", []*cel.Type{cel.DoubleType}, DecimalType, widen),
		),
		cel.Function("round",
			cel.MemberOverload("decimal_round_int", []*cel.Type{DecimalType, cel.IntType}, DecimalType,
				cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
					d, ok := lhs.(*Decimal)
					if !ok {
						return types.MaybeNoSuchOverloadErr(lhs)
					}

					places, ok := rhs.(types.Int)
					if !ok {
						return types.MaybeNoSuchOverloadErr(rhs)
					}

					return &Decimal{d.Round(int32(places))}
				}),
			),
		),
		decimalOperator(operators.Add, "add", DecimalType),
		decimalOperator(operators.Subtract, "subtract", DecimalType),
		decimalOperator(operators.Multiply, "multiply", DecimalType),
		decimalOperator(operators.Less, "less", cel.BoolType),
		decimalOperator(operators.LessEquals, "less_equals", cel.BoolType),
		decimalOperator(operators.Greater, "greater", cel.BoolType),
		decimalOperator(operators.GreaterEquals, "greater_equals", cel.BoolType),
	}
}

func (decimalLibrary) ProgramOptions() []cel.ProgramOption {
	return nil
}

var _ cel.Library = decimalLibrary{}

// DecimalLibrary adds the decimal type, the decimal() conversion and round()
// to a CEL environment. Arithmetic and ordering accept a decimal on the left
// and a decimal, int or double on the right.
func DecimalLibrary() cel.EnvOption {
	return cel.Lib(decimalLibrary{})
}
