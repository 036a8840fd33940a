package search

import (
	"sort"

	"sygus/internal/resolver"
	"sygus/internal/term"
)

// hole is the leftmost unexpanded position of a partial candidate.
type hole struct {
	node   *term.Expr
	depth  int
	locals []term.Binding // let-bound names visible at node, innermost last
}

// leftmostHole finds the first hole in pre-order, the same order as
// term.Expr.Walk. Let-bound names are visible in the body only.
func leftmostHole(root *term.Expr) (hole, bool) {
	var find func(e *term.Expr, depth int, locals []term.Binding) (hole, bool)
	find = func(e *term.Expr, depth int, locals []term.Binding) (hole, bool) {
		if e == nil {
			return hole{}, false
		}
		if e.IsHole() {
			return hole{node: e, depth: depth, locals: locals}, true
		}
		for _, a := range e.Args {
			if h, ok := find(a, depth+1, locals); ok {
				return h, true
			}
		}
		for _, b := range e.Bindings {
			if h, ok := find(b.Value, depth+1, locals); ok {
				return h, true
			}
		}
		if e.Body != nil {
			inner := locals
			if len(e.Bindings) > 0 {
				inner = append(append([]term.Binding(nil), locals...), e.Bindings...)
			}
			return find(e.Body, depth+1, inner)
		}
		return hole{}, false
	}
	return find(root, 1, nil)
}

// pool holds the fillers for grammar slots.
type pool struct {
	constants map[term.SortKind][]*term.Expr
	inputs    map[term.SortKind][]*term.Expr
}

// newPool collects the constants of each sort appearing in the
// constraints, plus 0 and 1 or true and false, in ascending order.
func newPool(p *resolver.Problem) *pool {
	ints := map[int64]bool{0: true, 1: true}
	for _, c := range p.Constraints {
		c.Walk(func(e *term.Expr) bool {
			if e.Kind == term.KindLiteral && e.Sort.Kind == term.SortInt {
				ints[e.Value.Int] = true
			}
			return true
		})
	}
	values := make([]int64, 0, len(ints))
	for v := range ints {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	pl := &pool{
		constants: map[term.SortKind][]*term.Expr{
			term.SortBool: {term.BoolLit(false), term.BoolLit(true)},
		},
		inputs: map[term.SortKind][]*term.Expr{
			term.SortInt:  p.Target.ParamsOf(term.Int),
			term.SortBool: p.Target.ParamsOf(term.Bool),
		},
	}
	for _, v := range values {
		pl.constants[term.SortInt] = append(pl.constants[term.SortInt], term.IntLit(v))
	}
	return pl
}

func localsOf(locals []term.Binding, s term.Sort) []*term.Expr {
	var out []*term.Expr
	seen := make(map[string]bool)
	// Innermost first; a shadowed name is offered once.
	for i := len(locals) - 1; i >= 0; i-- {
		b := locals[i]
		if b.Sort == s && !seen[b.Name] {
			seen[b.Name] = true
			out = append(out, &term.Expr{Kind: term.KindCall, Name: b.Name, Sort: b.Sort})
		}
	}
	return out
}

// fillers returns what a slot hole may be replaced with.
func (pl *pool) fillers(h hole) []*term.Expr {
	s := h.node.Sort
	switch h.node.Kind {
	case term.KindConstantSlot:
		return pl.constants[s.Kind]
	case term.KindInputSlot:
		return pl.inputs[s.Kind]
	case term.KindLocalSlot:
		return localsOf(h.locals, s)
	case term.KindVariableSlot:
		out := append([]*term.Expr(nil), pl.inputs[s.Kind]...)
		return append(out, localsOf(h.locals, s)...)
	}
	return nil
}
