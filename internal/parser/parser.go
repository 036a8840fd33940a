// Package parser turns SyGuS-v1 problem text into the raw command list
// consumed by the resolver. It checks shape only; names and sorts are left
// for resolution.
package parser

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"sygus/internal/sexpr"
	"sygus/internal/term"
)

// SyntaxError reports malformed input at a source position.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d:%d: %s", e.Line, e.Col, e.Msg)
}

func errAt(n *sexpr.Node, format string, args ...any) error {
	return &SyntaxError{Line: n.Line, Col: n.Col, Msg: fmt.Sprintf(format, args...)}
}

// ParseFile reads and parses the problem stored at path.
func ParseFile(path string) (*term.Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read problem: %w", err)
	}
	return Parse(string(data))
}

// Parse parses a whole problem.
func Parse(src string) (*term.Problem, error) {
	nodes, err := sexpr.Parse(src)
	if err != nil {
		var se *sexpr.Error
		if errors.As(err, &se) {
			return nil, &SyntaxError{Line: se.Line, Col: se.Col, Msg: se.Msg}
		}
		return nil, err
	}
	p := &term.Problem{}
	for _, n := range nodes {
		cmd, err := parseCommand(n)
		if err != nil {
			return nil, err
		}
		p.Commands = append(p.Commands, cmd)
	}
	return p, nil
}

func parseCommand(n *sexpr.Node) (term.Command, error) {
	if n.Kind != sexpr.List || n.Head() == "" {
		return nil, errAt(n, "expected a command, got %s", n)
	}
	args := n.Items[1:]
	want := func(k int) error {
		if len(args) != k {
			return errAt(n, "%s takes %d arguments, got %d", n.Head(), k, len(args))
		}
		return nil
	}

	switch n.Head() {
	case "set-logic":
		if err := want(1); err != nil {
			return nil, err
		}
		name, err := symbol(args[0])
		if err != nil {
			return nil, err
		}
		return &term.SetLogic{Logic: name}, nil

	case "define-sort":
		if err := want(2); err != nil {
			return nil, err
		}
		name, err := symbol(args[0])
		if err != nil {
			return nil, err
		}
		return &term.DefineSort{Name: name, Sort: sortOf(args[1])}, nil

	case "declare-var":
		if err := want(2); err != nil {
			return nil, err
		}
		name, err := symbol(args[0])
		if err != nil {
			return nil, err
		}
		return &term.DeclareVar{Name: name, Sort: sortOf(args[1])}, nil

	case "declare-fun":
		if err := want(3); err != nil {
			return nil, err
		}
		name, err := symbol(args[0])
		if err != nil {
			return nil, err
		}
		if args[1].Kind != sexpr.List {
			return nil, errAt(args[1], "expected a sort list")
		}
		params := make([]term.Sort, len(args[1].Items))
		for i, s := range args[1].Items {
			params[i] = sortOf(s)
		}
		return &term.DeclareFun{Name: name, Params: params, Sort: sortOf(args[2])}, nil

	case "define-fun":
		if err := want(4); err != nil {
			return nil, err
		}
		name, err := symbol(args[0])
		if err != nil {
			return nil, err
		}
		params, err := paramList(args[1])
		if err != nil {
			return nil, err
		}
		body, err := parseTerm(args[3], false)
		if err != nil {
			return nil, err
		}
		return &term.DefineFun{Name: name, Params: params, Sort: sortOf(args[2]), Body: body}, nil

	case "synth-fun":
		if len(args) != 3 && len(args) != 4 {
			return nil, errAt(n, "synth-fun takes 3 or 4 arguments, got %d", len(args))
		}
		name, err := symbol(args[0])
		if err != nil {
			return nil, err
		}
		params, err := paramList(args[1])
		if err != nil {
			return nil, err
		}
		sf := &term.SynthFun{Name: name, Params: params, Sort: sortOf(args[2])}
		if len(args) == 4 {
			if sf.Rules, err = ruleList(args[3]); err != nil {
				return nil, err
			}
		}
		return sf, nil

	case "constraint":
		if err := want(1); err != nil {
			return nil, err
		}
		e, err := parseTerm(args[0], false)
		if err != nil {
			return nil, err
		}
		return &term.Constraint{Expr: e}, nil

	case "check-synth":
		if err := want(0); err != nil {
			return nil, err
		}
		return &term.CheckSynth{}, nil

	case "set-options":
		if err := want(1); err != nil {
			return nil, err
		}
		if args[0].Kind != sexpr.List || len(args[0].Items) == 0 {
			return nil, errAt(args[0], "expected a non-empty option list")
		}
		cmd := &term.SetOptions{}
		for _, o := range args[0].Items {
			if o.Kind != sexpr.List || len(o.Items) != 2 || o.Items[0].Kind != sexpr.Atom || o.Items[1].Kind != sexpr.String {
				return nil, errAt(o, "expected (symbol \"value\")")
			}
			cmd.Options = append(cmd.Options, term.Option{Name: o.Items[0].Text, Value: o.Items[1].Text})
		}
		return cmd, nil
	}
	return nil, errAt(n, "unknown command %q", n.Head())
}

func symbol(n *sexpr.Node) (string, error) {
	if n.Kind != sexpr.Atom {
		return "", errAt(n, "expected a symbol, got %s", n)
	}
	if _, isNum := n.Int(); isNum {
		return "", errAt(n, "expected a symbol, got numeral %s", n.Text)
	}
	return n.Text, nil
}

// sortOf maps a sort expression to a Sort. Compound sorts such as
// (BitVec 8) become aliases that the resolver will reject as unknown.
func sortOf(n *sexpr.Node) term.Sort {
	if n.Kind == sexpr.Atom {
		return term.SortNamed(n.Text)
	}
	return term.Alias(n.String())
}

func paramList(n *sexpr.Node) ([]term.Param, error) {
	if n.Kind != sexpr.List {
		return nil, errAt(n, "expected a parameter list")
	}
	params := make([]term.Param, 0, len(n.Items))
	for _, p := range n.Items {
		if p.Kind != sexpr.List || len(p.Items) != 2 {
			return nil, errAt(p, "expected (name sort)")
		}
		name, err := symbol(p.Items[0])
		if err != nil {
			return nil, err
		}
		params = append(params, term.Param{Name: name, Sort: sortOf(p.Items[1])})
	}
	return params, nil
}

func ruleList(n *sexpr.Node) ([]*term.GenRule, error) {
	if n.Kind != sexpr.List || len(n.Items) == 0 {
		return nil, errAt(n, "expected a non-empty grammar")
	}
	rules := make([]*term.GenRule, 0, len(n.Items))
	for _, r := range n.Items {
		if r.Kind != sexpr.List || len(r.Items) != 3 {
			return nil, errAt(r, "expected (nonterminal sort (alternatives))")
		}
		name, err := symbol(r.Items[0])
		if err != nil {
			return nil, err
		}
		altList := r.Items[2]
		if altList.Kind != sexpr.List || len(altList.Items) == 0 {
			return nil, errAt(altList, "nonterminal %s has no alternatives", name)
		}
		rule := &term.GenRule{Name: name, Sort: sortOf(r.Items[1])}
		for _, a := range altList.Items {
			alt, err := parseTerm(a, true)
			if err != nil {
				return nil, err
			}
			rule.Alternatives = append(rule.Alternatives, alt)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

var slotKinds = map[string]term.Kind{
	"Constant":      term.KindConstantSlot,
	"Variable":      term.KindVariableSlot,
	"InputVariable": term.KindInputSlot,
	"LocalVariable": term.KindLocalSlot,
}

// parseTerm converts a term. With grammar set, slot placeholders are
// accepted as well.
func parseTerm(n *sexpr.Node, grammar bool) (*term.Expr, error) {
	switch n.Kind {
	case sexpr.String:
		return nil, errAt(n, "string literals are not supported")
	case sexpr.Atom:
		if v, ok := n.Int(); ok {
			return term.IntLit(v), nil
		}
		if n.IsNumeral() {
			return nil, errAt(n, "numeral %s out of range", n.Text)
		}
		switch n.Text {
		case "true":
			return term.BoolLit(true), nil
		case "false":
			return term.BoolLit(false), nil
		}
		return term.Call(n.Text), nil
	}

	if len(n.Items) == 0 {
		return nil, errAt(n, "empty term")
	}
	head := n.Head()
	if head == "" {
		return nil, errAt(n, "expected a function symbol, got %s", n.Items[0])
	}
	if kind, ok := slotKinds[head]; ok && grammar && len(n.Items) == 2 {
		return term.Slot(kind, sortOf(n.Items[1])), nil
	}
	if head == "let" {
		return parseLet(n, grammar)
	}
	// (- 5) is the SMT-LIB spelling of a negative numeral.
	if head == "-" && len(n.Items) == 2 && n.Items[1].IsNumeral() {
		if v, ok := n.Items[1].Int(); ok {
			return term.IntLit(-v), nil
		}
		if v, err := strconv.ParseInt("-"+n.Items[1].Text, 10, 64); err == nil {
			return term.IntLit(v), nil
		}
		return nil, errAt(n, "numeral %s out of range", n)
	}
	args := make([]*term.Expr, 0, len(n.Items)-1)
	for _, a := range n.Items[1:] {
		e, err := parseTerm(a, grammar)
		if err != nil {
			return nil, err
		}
		args = append(args, e)
	}
	return term.Call(head, args...), nil
}

func parseLet(n *sexpr.Node, grammar bool) (*term.Expr, error) {
	if len(n.Items) != 3 || n.Items[1].Kind != sexpr.List || len(n.Items[1].Items) == 0 {
		return nil, errAt(n, "expected (let ((name sort value) ...) body)")
	}
	var bindings []term.Binding
	for _, c := range n.Items[1].Items {
		if c.Kind != sexpr.List || len(c.Items) != 3 {
			return nil, errAt(c, "expected (name sort value)")
		}
		name, err := symbol(c.Items[0])
		if err != nil {
			return nil, err
		}
		v, err := parseTerm(c.Items[2], grammar)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, term.Binding{Name: name, Sort: sortOf(c.Items[1]), Value: v})
	}
	body, err := parseTerm(n.Items[2], grammar)
	if err != nil {
		return nil, err
	}
	return term.Let(bindings, body), nil
}
