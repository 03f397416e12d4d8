package exec

import (
	"math"

	"kvsql/internal/errs"
	"kvsql/internal/sql/ast"
	"kvsql/internal/value"
)

// row is the (columns, values) context expression evaluation runs
// against (spec.md §4.9 "Expression evaluation"). A Scan filter uses a
// single context for both comparison sides; a join's non-hash path
// builds one combined context from its two input rows before evaluating.
type row struct {
	columns []string
	values  []value.Value
}

func indexOf(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}

func evalExpr(e ast.Expr, r row) (value.Value, error) {
	switch v := e.(type) {
	case *ast.Literal:
		return v.Value, nil
	case *ast.ColumnRef:
		idx := indexOf(r.columns, v.Name)
		if idx < 0 {
			return value.Value{}, errs.Internal("unknown column %q", v.Name)
		}
		return r.values[idx], nil
	case *ast.BinaryExpr:
		l, err := evalExpr(v.Left, r)
		if err != nil {
			return value.Value{}, err
		}
		rv, err := evalExpr(v.Right, r)
		if err != nil {
			return value.Value{}, err
		}
		return evalArith(v.Op, l, rv)
	case *ast.FuncCall:
		return value.Value{}, errs.Internal("function %s cannot be evaluated outside an aggregate", v.Name)
	default:
		return value.Value{}, errs.Internal("unsupported expression")
	}
}

func evalArith(op string, l, r value.Value) (value.Value, error) {
	if l.IsNull() || r.IsNull() {
		return value.NewNull(), nil
	}
	if !isNumeric(l) || !isNumeric(r) {
		return value.Value{}, errs.Internal("arithmetic requires numeric operands")
	}
	if l.Kind() == value.Int && r.Kind() == value.Int {
		li, ri := l.AsInt(), r.AsInt()
		switch op {
		case "+":
			return value.NewInt(li + ri), nil
		case "-":
			return value.NewInt(li - ri), nil
		case "*":
			return value.NewInt(li * ri), nil
		case "/":
			if ri == 0 {
				return value.Value{}, errs.Internal("division by zero")
			}
			if li%ri == 0 {
				return value.NewInt(li / ri), nil
			}
			return value.NewFloat(float64(li) / float64(ri)), nil
		case "^":
			if ri >= 0 {
				result := int64(1)
				for i := int64(0); i < ri; i++ {
					result *= li
				}
				return value.NewInt(result), nil
			}
		}
	}
	lf, rf := numericOf(l), numericOf(r)
	switch op {
	case "+":
		return value.NewFloat(lf + rf), nil
	case "-":
		return value.NewFloat(lf - rf), nil
	case "*":
		return value.NewFloat(lf * rf), nil
	case "/":
		return value.NewFloat(lf / rf), nil
	case "^":
		return value.NewFloat(math.Pow(lf, rf)), nil
	default:
		return value.Value{}, errs.Internal("unknown operator %s", op)
	}
}

func isNumeric(v value.Value) bool {
	return v.Kind() == value.Int || v.Kind() == value.Float
}

func numericOf(v value.Value) float64 {
	if v.Kind() == value.Int {
		return float64(v.AsInt())
	}
	return v.AsFloat()
}

// evalComparison implements spec.md §4.9's three-valued comparison
// semantics: Null on either side yields Null, same-variant values compare
// natively, Int/Float mixed promotes to float64, anything else is
// Internal.
func evalComparison(cmp *ast.Comparison, r row) (value.Value, error) {
	l, err := evalExpr(cmp.Left, r)
	if err != nil {
		return value.Value{}, err
	}
	rv, err := evalExpr(cmp.Right, r)
	if err != nil {
		return value.Value{}, err
	}
	return compareOp(cmp.Op, l, rv)
}

func compareOp(op string, l, r value.Value) (value.Value, error) {
	if l.IsNull() || r.IsNull() {
		return value.NewNull(), nil
	}
	sameVariant := l.Kind() == r.Kind()
	numericMixed := isNumeric(l) && isNumeric(r)
	if !sameVariant && !numericMixed {
		return value.Value{}, errs.Internal("cannot compare incompatible types")
	}
	c := value.Compare(l, r)
	var result bool
	switch op {
	case "=":
		result = c == 0
	case "!=":
		result = c != 0
	case ">":
		result = c > 0
	case ">=":
		result = c >= 0
	case "<":
		result = c < 0
	case "<=":
		result = c <= 0
	default:
		return value.Value{}, errs.Internal("unknown comparison operator %s", op)
	}
	return value.NewBool(result), nil
}

// isTrue reports whether a filter/Having/ON result includes the row: only
// an explicit Bool(true) does, per spec.md §4.9's three-valued logic.
func isTrue(v value.Value) bool {
	return v.Kind() == value.Bool && v.AsBool()
}
