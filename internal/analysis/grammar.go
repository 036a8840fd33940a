// Package analysis reports structural properties of a synthesis grammar and
// prunes alternatives that can never become concrete.
package analysis

import (
	"fmt"

	"sygus/internal/graph"
	"sygus/internal/term"
)

// GrammarReport summarizes a grammar. Node lists are in declaration order.
type GrammarReport struct {
	Metrics      graph.Metrics
	Unreachable  []*graph.Node
	Unproductive []*graph.Node
	Recursive    []*graph.Node
	// Finite is true when the reachable productive part of the grammar
	// has no cycle, so breadth-first search is guaranteed to terminate.
	Finite    bool
	MinHeight map[string]int
	// StartProductive is false when no concrete program exists at all.
	StartProductive bool
}

// Analyzer performs structural analysis on a grammar dependency graph.
type Analyzer struct {
	g *graph.Graph
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(g *graph.Graph) *Analyzer {
	return &Analyzer{g: g}
}

// ForGrammar builds the graph for grammar and wraps it.
func ForGrammar(grammar *term.Grammar, original func(string) string) *Analyzer {
	return NewAnalyzer(graph.FromGrammar(grammar, original))
}

// Analyze computes the full report.
func (a *Analyzer) Analyze() (*GrammarReport, error) {
	productive, err := a.g.Productive()
	if err != nil {
		return nil, fmt.Errorf("productivity analysis failed: %w", err)
	}
	reachable := a.g.Reachable()

	report := &GrammarReport{
		Metrics:         a.g.Metrics(),
		MinHeight:       a.g.MinHeights(),
		StartProductive: productive[a.g.Start],
	}
	useful := make(map[string]bool)
	for _, n := range a.g.Ordered() {
		if !reachable[n.Name] {
			report.Unreachable = append(report.Unreachable, n)
		}
		if !productive[n.Name] {
			report.Unproductive = append(report.Unproductive, n)
		}
		if reachable[n.Name] && productive[n.Name] {
			useful[n.Name] = true
		}
	}
	for _, name := range a.g.Recursive(useful) {
		report.Recursive = append(report.Recursive, a.g.Nodes[name])
	}
	report.Finite = len(report.Recursive) == 0
	return report, nil
}

// Prune returns a copy of grammar without the alternatives that refer to
// unproductive nonterminals. Rules left without alternatives are kept
// empty so references to them stay resolvable.
func (a *Analyzer) Prune(grammar *term.Grammar) (*term.Grammar, int, error) {
	productive, err := a.g.Productive()
	if err != nil {
		return nil, 0, fmt.Errorf("productivity analysis failed: %w", err)
	}
	dropped := 0
	rules := make([]*term.GenRule, len(grammar.Rules))
	for i, r := range grammar.Rules {
		nr := &term.GenRule{Name: r.Name, Sort: r.Sort}
		for _, alt := range r.Alternatives {
			ok := true
			alt.Walk(func(e *term.Expr) bool {
				if e.Kind == term.KindNonterminal && !productive[e.Name] {
					ok = false
				}
				return ok
			})
			if ok {
				nr.Alternatives = append(nr.Alternatives, alt)
			} else {
				dropped++
			}
		}
		rules[i] = nr
	}
	pruned, err := term.NewGrammar(grammar.Start, rules)
	if err != nil {
		return nil, 0, err
	}
	return pruned, dropped, nil
}
