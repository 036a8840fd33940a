package term

import (
	"strconv"
	"strings"
)

// Kind tags the variant held by an Expr.
type Kind int

const (
	KindLiteral Kind = iota
	KindCall
	KindLet
	// KindNonterminal is a reference to a grammar rule. The parser never
	// produces it: a bare symbol is a zero-argument call until the resolver
	// finds it among the nonterminals in scope.
	KindNonterminal
	KindConstantSlot
	KindVariableSlot
	KindInputSlot
	KindLocalSlot
)

var kindNames = map[Kind]string{
	KindLiteral:      "literal",
	KindCall:         "call",
	KindLet:          "let",
	KindNonterminal:  "nonterminal",
	KindConstantSlot: "Constant",
	KindVariableSlot: "Variable",
	KindInputSlot:    "InputVariable",
	KindLocalSlot:    "LocalVariable",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IsSlot reports whether k is one of the grammar-only placeholder kinds.
func (k Kind) IsSlot() bool {
	switch k {
	case KindConstantSlot, KindVariableSlot, KindInputSlot, KindLocalSlot:
		return true
	}
	return false
}

// Value is a concrete Int or Bool.
type Value struct {
	Sort Sort
	Int  int64
	Bool bool
}

func IntValue(n int64) Value { return Value{Sort: Int, Int: n} }
func BoolValue(b bool) Value { return Value{Sort: Bool, Bool: b} }

func (v Value) String() string {
	if v.Sort.Kind == SortBool {
		return strconv.FormatBool(v.Bool)
	}
	return strconv.FormatInt(v.Int, 10)
}

// Binding is one `(name sort value)` clause of a let.
type Binding struct {
	Name  string
	Sort  Sort
	Value *Expr
}

// Expr is a term, a grammar alternative or a partial candidate. Sort is
// None until the resolver has run. Exprs are treated as immutable once
// built; use Clone or Replace to derive new trees.
type Expr struct {
	Kind     Kind
	Sort     Sort
	Name     string
	Value    Value
	Args     []*Expr
	Bindings []Binding
	Body     *Expr
}

func IntLit(n int64) *Expr {
	return &Expr{Kind: KindLiteral, Sort: Int, Value: IntValue(n)}
}

func BoolLit(b bool) *Expr {
	return &Expr{Kind: KindLiteral, Sort: Bool, Value: BoolValue(b)}
}

func Lit(v Value) *Expr {
	return &Expr{Kind: KindLiteral, Sort: v.Sort, Value: v}
}

// Call builds an unresolved application. A zero-argument call doubles as a
// variable or nonterminal reference before resolution.
func Call(name string, args ...*Expr) *Expr {
	return &Expr{Kind: KindCall, Name: name, Args: args}
}

func Let(bindings []Binding, body *Expr) *Expr {
	return &Expr{Kind: KindLet, Bindings: bindings, Body: body}
}

// Ref builds a resolved nonterminal reference.
func Ref(name string, sort Sort) *Expr {
	return &Expr{Kind: KindNonterminal, Name: name, Sort: sort}
}

func Slot(kind Kind, sort Sort) *Expr {
	return &Expr{Kind: kind, Sort: sort}
}

// IsHole reports whether e still has to be replaced during expansion.
func (e *Expr) IsHole() bool {
	return e.Kind == KindNonterminal || e.Kind.IsSlot()
}

// Clone returns a deep copy of e sharing no nodes with it.
func (e *Expr) Clone() *Expr {
	if e == nil {
		return nil
	}
	c := *e
	if e.Args != nil {
		c.Args = make([]*Expr, len(e.Args))
		for i, a := range e.Args {
			c.Args[i] = a.Clone()
		}
	}
	if e.Bindings != nil {
		c.Bindings = make([]Binding, len(e.Bindings))
		for i, b := range e.Bindings {
			c.Bindings[i] = Binding{Name: b.Name, Sort: b.Sort, Value: b.Value.Clone()}
		}
	}
	c.Body = e.Body.Clone()
	return &c
}

// Replace returns a deep copy of root in which the node identical to
// target (pointer equality) is replaced by a copy of with.
func Replace(root, target, with *Expr) *Expr {
	if root == nil {
		return nil
	}
	if root == target {
		return with.Clone()
	}
	c := *root
	if root.Args != nil {
		c.Args = make([]*Expr, len(root.Args))
		for i, a := range root.Args {
			c.Args[i] = Replace(a, target, with)
		}
	}
	if root.Bindings != nil {
		c.Bindings = make([]Binding, len(root.Bindings))
		for i, b := range root.Bindings {
			c.Bindings[i] = Binding{Name: b.Name, Sort: b.Sort, Value: Replace(b.Value, target, with)}
		}
	}
	c.Body = Replace(root.Body, target, with)
	return &c
}

// Walk visits e in pre-order: let bindings before the let body, call
// arguments left to right. Returning false from fn stops the walk.
func (e *Expr) Walk(fn func(*Expr) bool) bool {
	if e == nil {
		return true
	}
	if !fn(e) {
		return false
	}
	for _, a := range e.Args {
		if !a.Walk(fn) {
			return false
		}
	}
	for _, b := range e.Bindings {
		if !b.Value.Walk(fn) {
			return false
		}
	}
	return e.Body.Walk(fn)
}

// Concrete reports whether e contains no holes.
func (e *Expr) Concrete() bool {
	concrete := true
	e.Walk(func(n *Expr) bool {
		if n.IsHole() {
			concrete = false
		}
		return concrete
	})
	return concrete
}

// Holes counts the holes in e.
func (e *Expr) Holes() int {
	n := 0
	e.Walk(func(x *Expr) bool {
		if x.IsHole() {
			n++
		}
		return true
	})
	return n
}

// Depth is the height of the tree; a leaf has depth 1.
func (e *Expr) Depth() int {
	if e == nil {
		return 0
	}
	d := 0
	for _, a := range e.Args {
		if ad := a.Depth(); ad > d {
			d = ad
		}
	}
	for _, b := range e.Bindings {
		if bd := b.Value.Depth(); bd > d {
			d = bd
		}
	}
	if bd := e.Body.Depth(); bd > d {
		d = bd
	}
	return d + 1
}

// Size counts the nodes of e.
func (e *Expr) Size() int {
	n := 0
	e.Walk(func(*Expr) bool {
		n++
		return true
	})
	return n
}

func (e *Expr) String() string {
	return Format(e, nil)
}

// Format renders e in surface syntax. rename, when non-nil, maps every
// identifier (call names, nonterminals, let names) before printing.
func Format(e *Expr, rename func(string) string) string {
	var sb strings.Builder
	format(&sb, e, rename)
	return sb.String()
}

func format(sb *strings.Builder, e *Expr, rename func(string) string) {
	name := func(s string) string {
		if rename == nil {
			return s
		}
		return rename(s)
	}
	if e == nil {
		sb.WriteString("<nil>")
		return
	}
	switch e.Kind {
	case KindLiteral:
		if e.Value.Sort.Kind != SortBool && e.Value.Int < 0 {
			// Negative numerals are spelled (- n).
			sb.WriteString("(- ")
			sb.WriteString(strconv.FormatUint(uint64(-(e.Value.Int+1))+1, 10))
			sb.WriteByte(')')
			return
		}
		sb.WriteString(e.Value.String())
	case KindCall:
		if len(e.Args) == 0 {
			sb.WriteString(name(e.Name))
			return
		}
		sb.WriteByte('(')
		sb.WriteString(name(e.Name))
		for _, a := range e.Args {
			sb.WriteByte(' ')
			format(sb, a, rename)
		}
		sb.WriteByte(')')
	case KindLet:
		sb.WriteString("(let (")
		for i, b := range e.Bindings {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteByte('(')
			sb.WriteString(name(b.Name))
			sb.WriteByte(' ')
			sb.WriteString(b.Sort.String())
			sb.WriteByte(' ')
			format(sb, b.Value, rename)
			sb.WriteByte(')')
		}
		sb.WriteString(") ")
		format(sb, e.Body, rename)
		sb.WriteByte(')')
	case KindNonterminal:
		sb.WriteString(name(e.Name))
	default:
		sb.WriteByte('(')
		sb.WriteString(e.Kind.String())
		sb.WriteByte(' ')
		sb.WriteString(e.Sort.String())
		sb.WriteByte(')')
	}
}
