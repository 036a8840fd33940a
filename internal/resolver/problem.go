package resolver

import (
	"fmt"
	"strings"

	"sygus/internal/term"
)

// Function is a declared, defined or synthesized function after renaming.
// Params of declared functions carry sorts only.
type Function struct {
	Name     string
	Original string
	Params   []term.Param
	Sort     term.Sort
	Body     *term.Expr
}

// Det is the overload key of f.
func (f *Function) Det() term.FuncDet {
	sorts := make([]term.Sort, len(f.Params))
	for i, p := range f.Params {
		sorts[i] = p.Sort
	}
	return term.FuncDet{Name: f.Name, Params: sorts}
}

// Target is the function to synthesize together with its grammar. Rule
// names in Grammar are canonical.
type Target struct {
	Function
	Grammar *term.Grammar
}

// ParamsOf lists the target parameters of sort s as references.
func (t *Target) ParamsOf(s term.Sort) []*term.Expr {
	var out []*term.Expr
	for _, p := range t.Params {
		if p.Sort == s {
			out = append(out, &term.Expr{Kind: term.KindCall, Name: p.Name, Sort: p.Sort})
		}
	}
	return out
}

// Stats summarizes what a resolution pass registered.
type Stats struct {
	Sorts        int
	Declared     int
	Defined      int
	Nonterminals int
	Constraints  int
	Renamed      int
}

// Problem is the resolved, uniquely renamed form of a SyGuS problem. It is
// read-only after Resolve returns.
type Problem struct {
	Logic       string
	Options     []term.Option
	Sorts       map[string]term.Sort
	Declared    []*Function
	Defined     []*Function
	Target      *Target
	Constraints []*term.Expr
	Stats       Stats

	names map[string]string
}

// Original maps a canonical name back to its surface spelling. Names the
// resolver did not introduce map to themselves.
func (p *Problem) Original(canonical string) string {
	if orig, ok := p.names[canonical]; ok {
		return orig
	}
	return canonical
}

// Variables returns the declared zero-arity functions, i.e. the universally
// quantified variables of the constraints.
func (p *Problem) Variables() []*Function {
	var out []*Function
	for _, f := range p.Declared {
		if len(f.Params) == 0 {
			out = append(out, f)
		}
	}
	return out
}

// Format renders a resolved expression with original names.
func (p *Problem) Format(e *term.Expr) string {
	return term.Format(e, p.Original)
}

// Render renders body as a define-fun of the synthesis target using
// original names.
func (p *Problem) Render(body *term.Expr) string {
	t := p.Target
	params := make([]string, len(t.Params))
	for i, prm := range t.Params {
		params[i] = fmt.Sprintf("(%s %s)", p.Original(prm.Name), prm.Sort)
	}
	return fmt.Sprintf("(define-fun %s (%s) %s %s)",
		t.Original, strings.Join(params, " "), t.Sort, p.Format(body))
}
