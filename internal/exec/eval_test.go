package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvsql/internal/sql/ast"
	"kvsql/internal/value"
)

func TestEvalArithIntDivisionStaysIntWhenExact(t *testing.T) {
	v, err := evalArith("/", value.NewInt(10), value.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, value.Int, v.Kind())
	assert.Equal(t, int64(5), v.AsInt())
}

func TestEvalArithIntDivisionPromotesToFloatWhenInexact(t *testing.T) {
	v, err := evalArith("/", value.NewInt(10), value.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, value.Float, v.Kind())
}

func TestEvalArithDivisionByZeroErrors(t *testing.T) {
	_, err := evalArith("/", value.NewInt(1), value.NewInt(0))
	assert.Error(t, err)
}

func TestEvalArithNullPropagates(t *testing.T) {
	v, err := evalArith("+", value.NewNull(), value.NewInt(1))
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestCompareOpNullYieldsNull(t *testing.T) {
	v, err := compareOp("=", value.NewNull(), value.NewInt(1))
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestCompareOpIntFloatMixed(t *testing.T) {
	v, err := compareOp("<", value.NewInt(1), value.NewFloat(1.5))
	require.NoError(t, err)
	assert.True(t, v.AsBool())
}

func TestCompareOpIncompatibleTypesErrors(t *testing.T) {
	_, err := compareOp("=", value.NewString("x"), value.NewInt(1))
	assert.Error(t, err)
}

func TestIsTrueOnlyAcceptsExplicitBoolTrue(t *testing.T) {
	assert.True(t, isTrue(value.NewBool(true)))
	assert.False(t, isTrue(value.NewBool(false)))
	assert.False(t, isTrue(value.NewNull()))
	assert.False(t, isTrue(value.NewInt(1)))
}

func TestEvalExprColumnRefLookup(t *testing.T) {
	r := row{columns: []string{"a", "b"}, values: []value.Value{value.NewInt(1), value.NewInt(2)}}
	v, err := evalExpr(&ast.ColumnRef{Name: "b"}, r)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.AsInt())
}

func TestEvalExprUnknownColumnErrors(t *testing.T) {
	r := row{columns: []string{"a"}, values: []value.Value{value.NewInt(1)}}
	_, err := evalExpr(&ast.ColumnRef{Name: "missing"}, r)
	assert.Error(t, err)
}
