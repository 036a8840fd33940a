package term

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEval(t *testing.T) {
	in := Interp{
		Vars: map[string]Value{"x": IntValue(-7), "b": BoolValue(true)},
		Funcs: map[string]Function{
			"f": {Params: []string{"p"}, Body: Call("*", Call("p"), IntLit(2))},
		},
	}

	tests := []struct {
		name string
		expr *Expr
		want Value
	}{
		{"add", Call("+", Call("x"), IntLit(10)), IntValue(3)},
		{"euclidean div", Call("/", Call("x"), IntLit(2)), IntValue(-4)},
		{"euclidean mod", Call("mod", Call("x"), IntLit(2)), IntValue(1)},
		{"negative divisor", Call("mod", Call("x"), IntLit(-2)), IntValue(1)},
		{"ite", Call("ite", Call("b"), IntLit(1), IntLit(2)), IntValue(1)},
		{"implies", Call("=>", BoolLit(false), BoolLit(false)), BoolValue(true)},
		{"bool equality", Call("=", Call("b"), BoolLit(true)), BoolValue(true)},
		{"defined function", Call("f", IntLit(4)), IntValue(8)},
		{"let shadows", Let([]Binding{{Name: "x", Sort: Int, Value: IntLit(1)}}, Call("x")), IntValue(1)},
		{
			"parallel let",
			Let([]Binding{
				{Name: "x", Sort: Int, Value: IntLit(1)},
				{Name: "y", Sort: Int, Value: Call("x")},
			}, Call("y")),
			IntValue(-7),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(tt.expr, in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEval_Undefined(t *testing.T) {
	_, err := Eval(Call("/", IntLit(1), IntLit(0)), Interp{})
	assert.ErrorIs(t, err, ErrUndefined)

	_, err = Eval(Call("g", IntLit(1)), Interp{})
	assert.ErrorIs(t, err, ErrUndefined)

	_, err = Eval(Ref("Start", Int), Interp{})
	assert.Error(t, err)
}

func TestEval_Overflow(t *testing.T) {
	big := IntLit(1 << 32)
	tests := []struct {
		name string
		expr *Expr
	}{
		{"mul", Call("*", big, big)},
		{"add", Call("+", IntLit(math.MaxInt64), IntLit(1))},
		{"sub", Call("-", IntLit(math.MinInt64), IntLit(1))},
		{"div", Call("/", IntLit(math.MinInt64), IntLit(-1))},
		{"nested in comparison", Call(">", Call("*", big, big), IntLit(0))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Eval(tt.expr, Interp{})
			assert.ErrorIs(t, err, ErrUndefined)
		})
	}

	got, err := Eval(Call("*", IntLit(math.MinInt64), IntLit(1)), Interp{})
	require.NoError(t, err)
	assert.Equal(t, IntValue(math.MinInt64), got)
}
