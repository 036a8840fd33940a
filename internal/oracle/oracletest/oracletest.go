// Package oracletest provides in-memory stand-ins for the SMT solver.
package oracletest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"sygus/internal/oracle"
	"sygus/internal/resolver"
	"sygus/internal/sexpr"
	"sygus/internal/term"
)

// Scripted is a Solver whose replies come from Handler. Commands Handler
// does not answer (empty reply) get "success".
type Scripted struct {
	Handler func(cmd string) string

	mu     sync.Mutex
	log    []string
	closed bool
}

func (s *Scripted) Exec(ctx context.Context, cmd string) (*sexpr.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, oracle.ErrClosed
	}
	s.log = append(s.log, cmd)
	s.mu.Unlock()

	reply := ""
	if s.Handler != nil {
		reply = s.Handler(cmd)
	}
	if reply == "" {
		reply = "success"
	}
	nodes, err := sexpr.Parse(reply)
	if err != nil {
		return nil, err
	}
	if len(nodes) != 1 {
		return nil, fmt.Errorf("scripted reply %q is not one expression", reply)
	}
	return nodes[0], nil
}

func (s *Scripted) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Log returns every command received so far.
func (s *Scripted) Log() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.log...)
}

// Closed reports whether Close was called.
func (s *Scripted) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Answers replies to successive check-sat commands with checkSat and to
// successive get-value commands with models. Running out of answers
// yields a solver error.
func Answers(checkSat []string, models []string) func(string) string {
	var mu sync.Mutex
	return func(cmd string) string {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case cmd == "(check-sat)":
			if len(checkSat) == 0 {
				return `(error "no scripted check-sat answer")`
			}
			r := checkSat[0]
			checkSat = checkSat[1:]
			return r
		case strings.HasPrefix(cmd, "(get-value"):
			if len(models) == 0 {
				return `(error "no scripted model")`
			}
			r := models[0]
			models = models[1:]
			return r
		}
		return ""
	}
}

// ErrInjected is the fault produced by EvalVerifier.FailAt.
var ErrInjected = errors.New("injected solver failure")

// EvalVerifier checks candidates by evaluating every constraint over all
// assignments of the problem's variables, Int variables ranging over
// [Min, Max]. It stands in for a solver on small problems.
type EvalVerifier struct {
	Problem *resolver.Problem
	Min     int64
	Max     int64
	// FailAt makes the n-th call (1-based) return a *oracle.Fault.
	FailAt int

	mu    sync.Mutex
	calls int
	seen  []string
}

func NewEvalVerifier(p *resolver.Problem) *EvalVerifier {
	return &EvalVerifier{Problem: p, Min: -3, Max: 3}
}

// Calls returns the number of Verify calls.
func (v *EvalVerifier) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

// Seen returns the candidates verified so far, in order, with original
// names.
func (v *EvalVerifier) Seen() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.seen...)
}

func (v *EvalVerifier) Verify(ctx context.Context, body *term.Expr) (oracle.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return oracle.Verdict{}, err
	}
	v.mu.Lock()
	v.calls++
	call := v.calls
	v.seen = append(v.seen, v.Problem.Format(body))
	v.mu.Unlock()
	if v.FailAt > 0 && call == v.FailAt {
		return oracle.Verdict{}, &oracle.Fault{Reason: "scripted", Err: ErrInjected}
	}

	in := term.Interp{Funcs: map[string]term.Function{}}
	for _, f := range v.Problem.Defined {
		in.Funcs[f.Name] = function(f.Params, f.Body)
	}
	t := v.Problem.Target
	in.Funcs[t.Name] = function(t.Params, body)

	verdict := oracle.Verdict{Status: oracle.Valid}
	unknown := false
	vars := v.Problem.Variables()
	for ci, c := range v.Problem.Constraints {
		cex, undecided := v.refute(c, vars, in)
		if undecided {
			unknown = true
		}
		if cex != nil {
			verdict.Counterexamples = append(verdict.Counterexamples, oracle.Counterexample{Constraint: ci, Model: cex})
		}
	}
	switch {
	case len(verdict.Counterexamples) > 0:
		verdict.Status = oracle.Invalid
	case unknown:
		verdict.Status = oracle.Unknown
	}
	return verdict, nil
}

func function(params []term.Param, body *term.Expr) term.Function {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return term.Function{Params: names, Body: body}
}

// refute searches for an assignment falsifying c.
func (v *EvalVerifier) refute(c *term.Expr, vars []*resolver.Function, in term.Interp) (map[string]term.Value, bool) {
	assign := make(map[string]term.Value, len(vars))
	undecided := false
	var walk func(i int) map[string]term.Value
	walk = func(i int) map[string]term.Value {
		if i == len(vars) {
			in.Vars = assign
			got, err := term.Eval(c, in)
			if err != nil {
				undecided = true
				return nil
			}
			if !got.Bool {
				out := make(map[string]term.Value, len(assign))
				for k, val := range assign {
					out[k] = val
				}
				return out
			}
			return nil
		}
		for _, val := range v.domain(vars[i].Sort) {
			assign[vars[i].Name] = val
			if cex := walk(i + 1); cex != nil {
				return cex
			}
		}
		return nil
	}
	return walk(0), undecided
}

func (v *EvalVerifier) domain(s term.Sort) []term.Value {
	if s.Kind == term.SortBool {
		return []term.Value{term.BoolValue(false), term.BoolValue(true)}
	}
	var out []term.Value
	for n := v.Min; n <= v.Max; n++ {
		out = append(out, term.IntValue(n))
	}
	return out
}
