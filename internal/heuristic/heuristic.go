// Package heuristic is the port through which an external ranking model
// orders the search. A Heuristic assigns one relative weight to every
// alternative of the nonterminal being expanded.
package heuristic

import (
	"math"

	"sygus/internal/term"
)

// DefaultWeight is applied to every alternative absent a heuristic.
const DefaultWeight = 0.9

// Site describes the nonterminal occurrence about to be expanded.
type Site struct {
	Nonterminal  string // canonical name
	Original     string // surface name, e.g. "Start"
	Sort         term.Sort
	Alternatives []*term.Expr
	Depth        int // depth of the occurrence in the partial candidate, root = 1
}

// Heuristic scores the alternatives of a site. Implementations must be
// pure and return len(site.Alternatives) weights; weights are relative
// multipliers and need not sum to one.
type Heuristic interface {
	Name() string
	Score(site Site, partial *term.Expr) []float64
}

// Outcome of a verified candidate, reported through Feedback.
type Verdict int

const (
	Rejected Verdict = iota
	Accepted
	Inconclusive
)

// Feedback is sent to a Learner after each verification.
type Feedback struct {
	Candidate *term.Expr
	Verdict   Verdict
	// Counterexamples maps constraint index to variable assignment.
	Counterexamples map[int]map[string]term.Value
}

// Learner is implemented by heuristics that want verification results,
// e.g. to collect training data. Observe must not block.
type Learner interface {
	Observe(Feedback)
}

// Uniform assigns the same weight to every alternative. With the default
// weight priority search degenerates to near breadth-first order.
type Uniform struct {
	Weight float64
}

func NewUniform() Uniform { return Uniform{Weight: DefaultWeight} }

func (u Uniform) Name() string { return "uniform" }

func (u Uniform) Score(site Site, _ *term.Expr) []float64 {
	w := u.Weight
	if w <= 0 {
		w = DefaultWeight
	}
	out := make([]float64, len(site.Alternatives))
	for i := range out {
		out[i] = w
	}
	return out
}

// TerminalFirst prefers alternatives with fewer holes: a concrete
// alternative keeps weight 1, each hole multiplies by the base weight.
type TerminalFirst struct {
	Base float64
}

func NewTerminalFirst() TerminalFirst { return TerminalFirst{Base: DefaultWeight} }

func (h TerminalFirst) Name() string { return "terminal-first" }

func (h TerminalFirst) Score(site Site, _ *term.Expr) []float64 {
	base := h.Base
	if base <= 0 || base > 1 {
		base = DefaultWeight
	}
	out := make([]float64, len(site.Alternatives))
	for i, alt := range site.Alternatives {
		holes := alt.Holes()
		if holes == 0 {
			out[i] = 1
			continue
		}
		out[i] = math.Pow(base, float64(1+holes))
	}
	return out
}

// Sanitize replaces invalid weights with fallback. It returns the cleaned
// weights and whether anything was replaced. A slice of the wrong length
// is replaced entirely.
func Sanitize(weights []float64, n int, fallback float64) ([]float64, bool) {
	if len(weights) != n {
		out := make([]float64, n)
		for i := range out {
			out[i] = fallback
		}
		return out, true
	}
	out := make([]float64, n)
	replaced := false
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			out[i] = fallback
			replaced = true
			continue
		}
		out[i] = w
	}
	return out, replaced
}
