package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sygus/internal/term"
)

func TestLeftmostHole(t *testing.T) {
	a := term.Ref("A", term.Int)
	b := term.Slot(term.KindLocalSlot, term.Int)
	let := term.Let(
		[]term.Binding{{Name: "l0", Sort: term.Int, Value: term.IntLit(1)}},
		term.Call("+", b, a),
	)
	root := term.Call("*", term.IntLit(2), let)

	h, ok := leftmostHole(root)
	require.True(t, ok)
	assert.Same(t, b, h.node)
	assert.Equal(t, 4, h.depth)
	require.Len(t, h.locals, 1)
	assert.Equal(t, "l0", h.locals[0].Name)

	_, ok = leftmostHole(term.Call("+", term.IntLit(1), term.IntLit(2)))
	assert.False(t, ok)
}

func TestLeftmostHole_BindingsNotInScopeOfTheirValues(t *testing.T) {
	slot := term.Slot(term.KindLocalSlot, term.Int)
	let := term.Let([]term.Binding{{Name: "l0", Sort: term.Int, Value: slot}}, term.Call("l0"))
	h, ok := leftmostHole(let)
	require.True(t, ok)
	assert.Same(t, slot, h.node)
	assert.Empty(t, h.locals)
}

func TestLocalsOf_Shadowing(t *testing.T) {
	locals := []term.Binding{
		{Name: "l0", Sort: term.Int},
		{Name: "l1", Sort: term.Bool},
		{Name: "l2", Sort: term.Int},
		{Name: "l0", Sort: term.Int},
	}
	got := localsOf(locals, term.Int)
	require.Len(t, got, 2)
	assert.Equal(t, "l0", got[0].Name)
	assert.Equal(t, "l2", got[1].Name)
}

func TestFrontiers(t *testing.T) {
	entries := []*entry{
		{score: 0.5, seq: 1},
		{score: 0.9, seq: 2},
		{score: 0.5, seq: 3},
		{score: 0.9, seq: 4},
	}

	q := &fifo{}
	p := &priority{}
	for _, e := range entries {
		q.push(e)
		p.push(e)
	}
	var fifoOrder, prioOrder []uint64
	for q.len() > 0 {
		fifoOrder = append(fifoOrder, q.pop().seq)
	}
	for p.len() > 0 {
		prioOrder = append(prioOrder, p.pop().seq)
	}
	assert.Equal(t, []uint64{1, 2, 3, 4}, fifoOrder)
	assert.Equal(t, []uint64{2, 4, 1, 3}, prioOrder)
}
