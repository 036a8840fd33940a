package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"sygus/internal/resolver"
	"sygus/internal/sexpr"
	"sygus/internal/term"
)

// smtName maps internal operator spellings that differ in SMT-LIB.
var smtName = map[string]string{
	"/": "div",
}

// Term renders a resolved expression as an SMT-LIB term.
func Term(e *term.Expr) string {
	var sb strings.Builder
	writeTerm(&sb, e)
	return sb.String()
}

func writeTerm(sb *strings.Builder, e *term.Expr) {
	switch e.Kind {
	case term.KindLiteral:
		writeValue(sb, e.Value)
	case term.KindCall:
		name := e.Name
		if alt, ok := smtName[name]; ok {
			name = alt
		}
		if len(e.Args) == 0 {
			sb.WriteString(name)
			return
		}
		sb.WriteByte('(')
		sb.WriteString(name)
		for _, a := range e.Args {
			sb.WriteByte(' ')
			writeTerm(sb, a)
		}
		sb.WriteByte(')')
	case term.KindLet:
		sb.WriteString("(let (")
		for i, b := range e.Bindings {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteByte('(')
			sb.WriteString(b.Name)
			sb.WriteByte(' ')
			writeTerm(sb, b.Value)
			sb.WriteByte(')')
		}
		sb.WriteString(") ")
		writeTerm(sb, e.Body)
		sb.WriteByte(')')
	default:
		// Holes never reach the solver; render them recognizably.
		fmt.Fprintf(sb, "|hole:%s|", e)
	}
}

func writeValue(sb *strings.Builder, v term.Value) {
	if v.Sort.Kind == term.SortBool {
		sb.WriteString(strconv.FormatBool(v.Bool))
		return
	}
	if v.Int < 0 {
		sb.WriteString("(- ")
		sb.WriteString(strconv.FormatUint(uint64(-(v.Int+1))+1, 10))
		sb.WriteByte(')')
		return
	}
	sb.WriteString(strconv.FormatInt(v.Int, 10))
}

func declareFun(f *resolver.Function) string {
	sorts := make([]string, len(f.Params))
	for i, p := range f.Params {
		sorts[i] = p.Sort.String()
	}
	return fmt.Sprintf("(declare-fun %s (%s) %s)", f.Name, strings.Join(sorts, " "), f.Sort)
}

func defineFun(name string, params []term.Param, sort term.Sort, body *term.Expr) string {
	ps := make([]string, len(params))
	for i, p := range params {
		ps[i] = fmt.Sprintf("(%s %s)", p.Name, p.Sort)
	}
	return fmt.Sprintf("(define-fun %s (%s) %s %s)", name, strings.Join(ps, " "), sort, Term(body))
}

// conjunction renders (and c1 ... cn) folded to binary applications, as
// the internal and is binary.
func conjunction(cs []*term.Expr) string {
	switch len(cs) {
	case 0:
		return "true"
	case 1:
		return Term(cs[0])
	}
	return fmt.Sprintf("(and %s %s)", Term(cs[0]), conjunction(cs[1:]))
}

// errOutOfRange marks a well-formed Int model value that does not fit in
// an int64.
var errOutOfRange = errors.New("Int value out of range")

// parseValue reads a model value: a numeral, (- n), true or false.
func parseValue(n *sexpr.Node, sort term.Sort) (term.Value, error) {
	if sort.Kind == term.SortBool {
		switch {
		case n.IsAtom("true"):
			return term.BoolValue(true), nil
		case n.IsAtom("false"):
			return term.BoolValue(false), nil
		}
		return term.Value{}, fmt.Errorf("bad Bool value %s", n)
	}
	m, neg := n, false
	if n.Head() == "-" && len(n.Items) == 2 {
		m, neg = n.Items[1], true
	}
	z, ok := numeral(m)
	if !ok {
		return term.Value{}, fmt.Errorf("bad Int value %s", n)
	}
	if neg {
		z.Neg(z)
	}
	if !z.IsInt64() {
		return term.Value{}, fmt.Errorf("%w: %s", errOutOfRange, n)
	}
	return term.IntValue(z.Int64()), nil
}

// numeral parses a decimal numeral of any size.
func numeral(n *sexpr.Node) (*big.Int, bool) {
	if n == nil || n.Kind != sexpr.Atom || n.Text == "" || n.Text[0] < '0' || n.Text[0] > '9' {
		return nil, false
	}
	return new(big.Int).SetString(n.Text, 10)
}
