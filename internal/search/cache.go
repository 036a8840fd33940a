package search

import (
	"sygus/internal/oracle"
	"sygus/internal/resolver"
	"sygus/internal/term"
)

// cexCache rejects candidates that fail a counterexample returned for an
// earlier candidate, without asking the oracle.
type cexCache struct {
	problem *resolver.Problem
	models  []oracle.Counterexample
	funcs   map[string]term.Function
	limit   int
}

func newCexCache(p *resolver.Problem, limit int) *cexCache {
	funcs := make(map[string]term.Function, len(p.Defined)+1)
	for _, f := range p.Defined {
		funcs[f.Name] = function(f.Params, f.Body)
	}
	return &cexCache{problem: p, funcs: funcs, limit: limit}
}

func function(params []term.Param, body *term.Expr) term.Function {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return term.Function{Params: names, Body: body}
}

func (c *cexCache) add(cexs []oracle.Counterexample) {
	for _, cex := range cexs {
		if c.limit > 0 && len(c.models) >= c.limit {
			// Keep the most recent models.
			c.models = append(c.models[:0], c.models[1:]...)
		}
		c.models = append(c.models, cex)
	}
}

// rejects reports whether body provably fails one of the cached models.
// Constraints that cannot be evaluated, e.g. because they use an
// uninterpreted function, never reject.
func (c *cexCache) rejects(body *term.Expr) bool {
	if len(c.models) == 0 {
		return false
	}
	t := c.problem.Target
	funcs := make(map[string]term.Function, len(c.funcs)+1)
	for k, v := range c.funcs {
		funcs[k] = v
	}
	funcs[t.Name] = function(t.Params, body)

	for _, cex := range c.models {
		in := term.Interp{Vars: cex.Model, Funcs: funcs}
		constraints := c.problem.Constraints
		if cex.Constraint != oracle.WholeSpecIndex && cex.Constraint < len(constraints) {
			constraints = constraints[cex.Constraint : cex.Constraint+1]
		}
		for _, con := range constraints {
			v, err := term.Eval(con, in)
			if err == nil && !v.Bool {
				return true
			}
		}
	}
	return false
}
