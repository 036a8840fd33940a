package term

import (
	"fmt"
	"strings"
)

// StartSymbol is the surface name of the rule every grammar must define.
const StartSymbol = "Start"

// GenRule is a nonterminal with its sort and ordered production
// alternatives.
type GenRule struct {
	Name         string
	Sort         Sort
	Alternatives []*Expr
}

func (r *GenRule) String() string {
	alts := make([]string, len(r.Alternatives))
	for i, a := range r.Alternatives {
		alts[i] = a.String()
	}
	return fmt.Sprintf("(%s %s (%s))", r.Name, r.Sort, strings.Join(alts, " "))
}

// Grammar holds the rules of a synthesis target in declaration order.
type Grammar struct {
	Rules []*GenRule
	// Start is the name of the start rule as stored in Rules.
	Start string
	index map[string]int
}

// NewGrammar indexes rules by name. It fails on duplicate names.
func NewGrammar(start string, rules []*GenRule) (*Grammar, error) {
	g := &Grammar{Rules: rules, Start: start, index: make(map[string]int, len(rules))}
	for i, r := range rules {
		if _, dup := g.index[r.Name]; dup {
			return nil, fmt.Errorf("duplicate nonterminal %q", r.Name)
		}
		g.index[r.Name] = i
	}
	return g, nil
}

// Rule returns the rule called name.
func (g *Grammar) Rule(name string) (*GenRule, bool) {
	i, ok := g.index[name]
	if !ok {
		return nil, false
	}
	return g.Rules[i], true
}

// StartRule returns the rule named by g.Start.
func (g *Grammar) StartRule() *GenRule {
	r, _ := g.Rule(g.Start)
	return r
}

// References lists, in order of first appearance, the nonterminals used by
// the alternatives of rule name.
func (g *Grammar) References(name string) []string {
	r, ok := g.Rule(name)
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, alt := range r.Alternatives {
		alt.Walk(func(e *Expr) bool {
			if e.Kind == KindNonterminal && !seen[e.Name] {
				seen[e.Name] = true
				out = append(out, e.Name)
			}
			return true
		})
	}
	return out
}
