package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sygus/internal/term"
)

func rule(name string, sort term.Sort, alts ...*term.Expr) *term.GenRule {
	return &term.GenRule{Name: name, Sort: sort, Alternatives: alts}
}

func ref(name string) *term.Expr { return term.Ref(name, term.Int) }

func build(t *testing.T, rules ...*term.GenRule) *Graph {
	t.Helper()
	g, err := term.NewGrammar("S", rules)
	require.NoError(t, err)
	return FromGrammar(g, nil)
}

func TestGraph_Relations(t *testing.T) {
	g := build(t,
		rule("S", term.Int, term.Call("+", ref("S"), ref("T")), ref("T")),
		rule("T", term.Int, term.IntLit(0)),
		rule("U", term.Int, ref("T")),
	)

	t.Run("Dependencies", func(t *testing.T) {
		deps := g.GetDependencies("S")
		require.Len(t, deps, 2)
		assert.Equal(t, "S", deps[0].Name)
		assert.Equal(t, "T", deps[1].Name)
	})

	t.Run("Dependents", func(t *testing.T) {
		dependents := g.GetDependents("T")
		require.Len(t, dependents, 2)
		assert.Equal(t, "S", dependents[0].Name)
		assert.Equal(t, "U", dependents[1].Name)
	})

	t.Run("Reachable", func(t *testing.T) {
		assert.Equal(t, []string{"S", "T"}, Names(g.Reachable()))
	})

	t.Run("Metrics", func(t *testing.T) {
		assert.Equal(t, Metrics{Nonterminals: 3, Alternatives: 4, Edges: 4, SelfLoops: 1}, g.Metrics())
	})
}

func TestGraph_Productive(t *testing.T) {
	g := build(t,
		rule("S", term.Int, ref("A"), ref("B")),
		rule("A", term.Int, term.Call("+", ref("A"), ref("A"))),
		rule("B", term.Int, term.Call("+", ref("A"), ref("C")), ref("C")),
		rule("C", term.Int, term.IntLit(1)),
	)
	prod, err := g.Productive()
	require.NoError(t, err)
	assert.True(t, prod["S"])
	assert.False(t, prod["A"], "A only derives itself")
	assert.True(t, prod["B"])
	assert.True(t, prod["C"])
}

func TestGraph_MinHeightsAndRecursion(t *testing.T) {
	g := build(t,
		rule("S", term.Int, term.Call("+", ref("S"), ref("T")), ref("T")),
		rule("T", term.Int, term.Call("*", ref("U"), ref("U"))),
		rule("U", term.Int, term.IntLit(2)),
	)
	assert.Equal(t, map[string]int{"U": 1, "T": 2, "S": 3}, g.MinHeights())

	all := map[string]bool{"S": true, "T": true, "U": true}
	assert.Equal(t, []string{"S"}, g.Recursive(all))

	finite := build(t,
		rule("S", term.Int, term.Call("+", ref("T"), ref("T"))),
		rule("T", term.Int, term.IntLit(0), term.IntLit(1)),
	)
	assert.Empty(t, finite.Recursive(map[string]bool{"S": true, "T": true}))
}
