package resolver

import (
	"sygus/internal/term"
)

// expr returns a resolved copy of e with every node sorted and every user
// name replaced by its canonical name.
func (s *session) expr(e *term.Expr) (*term.Expr, error) {
	switch e.Kind {
	case term.KindLiteral:
		return term.Lit(e.Value), nil

	case term.KindConstantSlot, term.KindVariableSlot, term.KindInputSlot, term.KindLocalSlot:
		sort, err := s.resolveSort(e.Sort)
		if err != nil {
			return nil, err
		}
		return term.Slot(e.Kind, sort), nil

	case term.KindNonterminal:
		// Already resolved input; keep it as is.
		return e.Clone(), nil

	case term.KindLet:
		return s.let(e)

	case term.KindCall:
		args := make([]*term.Expr, len(e.Args))
		sorts := make([]term.Sort, len(e.Args))
		for i, a := range e.Args {
			ra, err := s.expr(a)
			if err != nil {
				return nil, err
			}
			args[i] = ra
			sorts[i] = ra.Sort
		}
		return s.lookup(e.Name, args, sorts)
	}
	return nil, s.fail(UnknownFunction, "unexpected expression %s", e)
}

// lookup applies the fixed precedence: innermost lexical scope, defined,
// declared, synthesis target, internal operators.
func (s *session) lookup(name string, args []*term.Expr, sorts []term.Sort) (*term.Expr, error) {
	if len(args) == 0 {
		for i := len(s.scopes) - 1; i >= 0; i-- {
			b, ok := s.scopes[i][name]
			if !ok {
				continue
			}
			if b.nonterminal {
				return term.Ref(b.name, b.sort), nil
			}
			return &term.Expr{Kind: term.KindCall, Name: b.name, Sort: b.sort}, nil
		}
	}
	key := term.FuncDet{Name: name, Params: sorts}.Key()
	for _, tbl := range []map[string]entry{s.defined, s.declared, s.synth, s.internal} {
		if ent, ok := tbl[key]; ok {
			return &term.Expr{Kind: term.KindCall, Name: ent.name, Sort: ent.sort, Args: args}, nil
		}
	}
	return nil, s.fail(UnknownFunction, "no function %s", term.FuncDet{Name: name, Params: sorts})
}

// let resolves bindings in the enclosing scope, then the body with all
// bindings visible.
func (s *session) let(e *term.Expr) (*term.Expr, error) {
	sc := make(scope, len(e.Bindings))
	bindings := make([]term.Binding, len(e.Bindings))
	for i, b := range e.Bindings {
		if _, dup := sc[b.Name]; dup {
			return nil, s.fail(DuplicateSymbol, "let binds %s twice", b.Name)
		}
		sort, err := s.resolveSort(b.Sort)
		if err != nil {
			return nil, err
		}
		v, err := s.expr(b.Value)
		if err != nil {
			return nil, err
		}
		if v.Sort != sort {
			return nil, s.fail(LetSortMismatch, "%s declared %s, bound to %s of sort %s", b.Name, sort, b.Value, v.Sort)
		}
		canonical := s.fresh(bySort("l", sort), b.Name)
		bindings[i] = term.Binding{Name: canonical, Sort: sort, Value: v}
		sc[b.Name] = binding{name: canonical, sort: sort}
	}
	s.push(sc)
	body, err := s.expr(e.Body)
	s.pop()
	if err != nil {
		return nil, err
	}
	out := term.Let(bindings, body)
	out.Sort = body.Sort
	return out, nil
}
