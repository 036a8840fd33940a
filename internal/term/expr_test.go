package term

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpr_Format(t *testing.T) {
	e := Call("+", Call("x"), IntLit(-3))
	assert.Equal(t, "(+ x (- 3))", e.String())

	let := Let([]Binding{{Name: "y", Sort: Int, Value: IntLit(1)}}, Call("*", Call("y"), Ref("Start", Int)))
	assert.Equal(t, "(let ((y Int 1)) (* y Start))", let.String())

	assert.Equal(t, "(Constant Int)", Slot(KindConstantSlot, Int).String())

	renamed := Format(e, func(s string) string {
		if s == "x" {
			return "decli0"
		}
		return s
	})
	assert.Equal(t, "(+ decli0 (- 3))", renamed)
}

func TestExpr_HolesAndConcrete(t *testing.T) {
	partial := Call("+", Ref("Start", Int), Slot(KindConstantSlot, Int))
	assert.False(t, partial.Concrete())
	assert.Equal(t, 2, partial.Holes())
	assert.Equal(t, 3, partial.Size())
	assert.Equal(t, 2, partial.Depth())

	concrete := Call("+", IntLit(1), IntLit(1))
	assert.True(t, concrete.Concrete())
	assert.Equal(t, 0, concrete.Holes())
}

func TestExpr_ReplaceIsIndependent(t *testing.T) {
	left := Ref("Start", Int)
	right := Ref("Start", Int)
	root := Call("+", left, right)

	out := Replace(root, left, IntLit(1))
	assert.Equal(t, "(+ 1 Start)", out.String())
	assert.Equal(t, "(+ Start Start)", root.String(), "original must be untouched")

	// No node is shared between input and output.
	seen := map[*Expr]bool{}
	root.Walk(func(e *Expr) bool { seen[e] = true; return true })
	out.Walk(func(e *Expr) bool {
		assert.False(t, seen[e])
		return true
	})
}

func TestExpr_WalkOrder(t *testing.T) {
	e := Let(
		[]Binding{{Name: "a", Sort: Int, Value: Ref("A", Int)}},
		Call("+", Ref("B", Int), Ref("C", Int)),
	)
	var order []string
	e.Walk(func(x *Expr) bool {
		if x.Kind == KindNonterminal {
			order = append(order, x.Name)
		}
		return true
	})
	assert.Equal(t, []string{"A", "B", "C"}, order)
}

func TestExpr_Clone(t *testing.T) {
	e := Call("ite", Call("<", Call("x"), IntLit(0)), IntLit(0), Call("x"))
	c := e.Clone()
	require.Equal(t, e.String(), c.String())
	c.Args[1].Value = IntValue(5)
	assert.Equal(t, "(ite (< x 0) 0 x)", e.String())
}

func TestSort_Key(t *testing.T) {
	d := FuncDet{Name: "ite", Params: []Sort{Bool, Int, Int}}
	assert.Equal(t, "ite(Bool,Int,Int)", d.Key())
	assert.Equal(t, Alias("MyInt"), SortNamed("MyInt"))
	assert.True(t, SortNamed("Bool").Resolved())
	assert.False(t, Alias("T").Resolved())
}

func TestGrammar_Rules(t *testing.T) {
	start := &GenRule{Name: "Start", Sort: Int, Alternatives: []*Expr{
		Call("+", Ref("Start", Int), Ref("Term", Int)),
		Ref("Term", Int),
	}}
	term := &GenRule{Name: "Term", Sort: Int, Alternatives: []*Expr{IntLit(0)}}

	g, err := NewGrammar("Start", []*GenRule{start, term})
	require.NoError(t, err)
	assert.Same(t, start, g.StartRule())
	assert.Equal(t, []string{"Start", "Term"}, g.References("Start"))
	assert.Empty(t, g.References("Term"))

	_, err = NewGrammar("Start", []*GenRule{start, start})
	assert.Error(t, err)
}
