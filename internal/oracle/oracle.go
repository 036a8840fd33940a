// Package oracle decides candidate validity with an external SMT solver.
// One Oracle owns one solver session for its whole lifetime; global
// declarations are sent once and every query is scoped with push/pop.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"sygus/internal/resolver"
	"sygus/internal/sexpr"
	"sygus/internal/term"
)

// Mode selects how constraints are checked.
type Mode int

const (
	// PerConstraint checks the negation of each constraint in its own
	// scope and reports counterexamples by constraint index.
	PerConstraint Mode = iota
	// WholeSpec checks the negated conjunction once.
	WholeSpec
)

func (m Mode) String() string {
	if m == WholeSpec {
		return "whole-spec"
	}
	return "per-constraint"
}

// ParseMode maps a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "per-constraint":
		return PerConstraint, nil
	case "whole-spec":
		return WholeSpec, nil
	}
	return 0, fmt.Errorf("unsupported oracle mode: %s", s)
}

type Status int

const (
	Valid Status = iota
	Invalid
	// Unknown means the solver could not decide in time. The candidate is
	// not proven but not refuted either.
	Unknown
)

func (s Status) String() string {
	switch s {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// WholeSpecIndex is the constraint index of a whole-spec counterexample.
const WholeSpecIndex = -1

// Counterexample is a variable assignment under which Constraint fails.
// Model keys are canonical variable names.
type Counterexample struct {
	Constraint int
	Model      map[string]term.Value
}

type Verdict struct {
	Status          Status
	Counterexamples []Counterexample
}

// Fault is an internal solver failure. It is never a verdict.
type Fault struct {
	Reason string
	Err    error
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return "oracle fault: " + f.Reason
	}
	return fmt.Sprintf("oracle fault: %s: %v", f.Reason, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

type Option func(*Oracle)

func WithMode(m Mode) Option { return func(o *Oracle) { o.mode = m } }

// WithTimeout bounds each check-sat. The solver answers unknown when the
// bound is hit. Solvers that reply unsupported to the timeout option run
// without a per-query bound.
func WithTimeout(d time.Duration) Option { return func(o *Oracle) { o.timeout = d } }

func WithLogger(l *zap.Logger) Option { return func(o *Oracle) { o.logger = l } }

// Oracle verifies candidates of one resolved problem.
type Oracle struct {
	solver  Solver
	problem *resolver.Problem
	mode    Mode
	timeout time.Duration
	logger  *zap.Logger

	vars     []*resolver.Function
	getValue string
	negated  []string
	ready    bool
	queries  int
}

func New(s Solver, p *resolver.Problem, opts ...Option) *Oracle {
	o := &Oracle{
		solver:  s,
		problem: p,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.vars = p.Variables()
	if len(o.vars) > 0 {
		names := make([]string, len(o.vars))
		for i, v := range o.vars {
			names[i] = v.Name
		}
		o.getValue = fmt.Sprintf("(get-value (%s))", strings.Join(names, " "))
	}
	if o.mode == WholeSpec {
		o.negated = []string{fmt.Sprintf("(assert (not %s))", conjunction(p.Constraints))}
	} else {
		for _, c := range p.Constraints {
			o.negated = append(o.negated, fmt.Sprintf("(assert (not %s))", Term(c)))
		}
	}
	return o
}

func (o *Oracle) Mode() Mode { return o.mode }

// Queries returns the number of Verify calls that reached the solver.
func (o *Oracle) Queries() int { return o.queries }

// Preamble lists the session setup commands in the order they are sent.
func (o *Oracle) Preamble() []string {
	cmds := []string{
		"(set-option :print-success true)",
		"(set-option :produce-models true)",
	}
	if o.timeout > 0 {
		cmds = append(cmds, fmt.Sprintf("(set-option :timeout %d)", o.timeout.Milliseconds()))
	}
	cmds = append(cmds, fmt.Sprintf("(set-logic %s)", resolver.SupportedLogic))
	for _, f := range o.problem.Declared {
		cmds = append(cmds, declareFun(f))
	}
	for _, f := range o.problem.Defined {
		cmds = append(cmds, defineFun(f.Name, f.Params, f.Sort, f.Body))
	}
	return cmds
}

func (o *Oracle) setup(ctx context.Context) error {
	if o.ready {
		return nil
	}
	for _, cmd := range o.Preamble() {
		send := o.expectSuccess
		if strings.HasPrefix(cmd, "(set-option :timeout ") {
			send = o.optional
		}
		if err := send(ctx, cmd); err != nil {
			return err
		}
	}
	o.ready = true
	return nil
}

// Verify checks body as the definition of the synthesis target against
// every constraint. Solver failures are returned as *Fault; context
// cancellation is returned as the context error.
func (o *Oracle) Verify(ctx context.Context, body *term.Expr) (Verdict, error) {
	if !body.Concrete() {
		return Verdict{}, fmt.Errorf("candidate %s still has holes", body)
	}
	if err := o.setup(ctx); err != nil {
		return Verdict{}, err
	}
	o.queries++

	t := o.problem.Target
	if err := o.expectSuccess(ctx, "(push 1)"); err != nil {
		return Verdict{}, err
	}
	verdict, err := o.check(ctx, defineFun(t.Name, t.Params, t.Sort, body))
	if err != nil {
		return Verdict{}, err
	}
	if err := o.expectSuccess(ctx, "(pop 1)"); err != nil {
		return Verdict{}, err
	}
	o.logger.Debug("candidate verified",
		zap.String("candidate", o.problem.Format(body)),
		zap.Stringer("status", verdict.Status),
		zap.Int("counterexamples", len(verdict.Counterexamples)))
	return verdict, nil
}

func (o *Oracle) check(ctx context.Context, definition string) (Verdict, error) {
	if err := o.expectSuccess(ctx, definition); err != nil {
		return Verdict{}, err
	}
	verdict := Verdict{Status: Valid}
	unknown := false
	for i, assertion := range o.negated {
		index := i
		if o.mode == WholeSpec {
			index = WholeSpecIndex
		}
		if err := o.expectSuccess(ctx, "(push 1)"); err != nil {
			return Verdict{}, err
		}
		if err := o.expectSuccess(ctx, assertion); err != nil {
			return Verdict{}, err
		}
		status, err := o.checkSat(ctx)
		if err != nil {
			return Verdict{}, err
		}
		switch status {
		case "unsat":
		case "unknown":
			unknown = true
		case "sat":
			model, err := o.model(ctx)
			if err != nil {
				return Verdict{}, err
			}
			verdict.Counterexamples = append(verdict.Counterexamples, Counterexample{Constraint: index, Model: model})
		}
		if err := o.expectSuccess(ctx, "(pop 1)"); err != nil {
			return Verdict{}, err
		}
	}
	switch {
	case len(verdict.Counterexamples) > 0:
		verdict.Status = Invalid
	case unknown:
		verdict.Status = Unknown
	}
	return verdict, nil
}

func (o *Oracle) exec(ctx context.Context, cmd string) (*sexpr.Node, error) {
	resp, err := o.solver.Exec(ctx, cmd)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		o.logger.Error("solver failure", zap.String("command", cmd), zap.Error(err))
		return nil, &Fault{Reason: "solver I/O failed", Err: err}
	}
	if resp.Head() == "error" {
		msg := resp.String()
		if len(resp.Items) > 1 {
			msg = resp.Items[1].Text
		}
		o.logger.Error("solver error", zap.String("command", cmd), zap.String("error", msg))
		return nil, &Fault{Reason: fmt.Sprintf("solver rejected %s: %s", cmd, msg)}
	}
	return resp, nil
}

func (o *Oracle) expectSuccess(ctx context.Context, cmd string) error {
	resp, err := o.exec(ctx, cmd)
	if err != nil {
		return err
	}
	if !resp.IsAtom("success") {
		return &Fault{Reason: fmt.Sprintf("unexpected response %s to %s", resp, cmd)}
	}
	return nil
}

// optional sends a setup command the solver may not implement. An
// unsupported reply is logged and the session continues without it.
func (o *Oracle) optional(ctx context.Context, cmd string) error {
	resp, err := o.exec(ctx, cmd)
	if err != nil {
		return err
	}
	switch {
	case resp.IsAtom("success"):
		return nil
	case resp.IsAtom("unsupported"):
		o.logger.Warn("solver does not support option", zap.String("command", cmd))
		return nil
	}
	return &Fault{Reason: fmt.Sprintf("unexpected response %s to %s", resp, cmd)}
}

func (o *Oracle) checkSat(ctx context.Context) (string, error) {
	resp, err := o.exec(ctx, "(check-sat)")
	if err != nil {
		return "", err
	}
	for _, s := range []string{"sat", "unsat", "unknown"} {
		if resp.IsAtom(s) {
			return s, nil
		}
	}
	// Some solvers print timeout instead of unknown.
	if resp.IsAtom("timeout") {
		return "unknown", nil
	}
	return "", &Fault{Reason: fmt.Sprintf("unexpected check-sat response %s", resp)}
}

func (o *Oracle) model(ctx context.Context) (map[string]term.Value, error) {
	model := make(map[string]term.Value, len(o.vars))
	if o.getValue == "" {
		return model, nil
	}
	resp, err := o.exec(ctx, o.getValue)
	if err != nil {
		return nil, err
	}
	if resp.Kind != sexpr.List || len(resp.Items) != len(o.vars) {
		return nil, &Fault{Reason: fmt.Sprintf("malformed model %s", resp)}
	}
	for i, pair := range resp.Items {
		if pair.Kind != sexpr.List || len(pair.Items) != 2 {
			return nil, &Fault{Reason: fmt.Sprintf("malformed model entry %s", pair)}
		}
		v, err := parseValue(pair.Items[1], o.vars[i].Sort)
		if errors.Is(err, errOutOfRange) {
			o.logger.Warn("model value out of range, binding dropped",
				zap.String("variable", o.vars[i].Name),
				zap.Stringer("value", pair.Items[1]))
			continue
		}
		if err != nil {
			return nil, &Fault{Reason: "malformed model value", Err: err}
		}
		model[o.vars[i].Name] = v
	}
	return model, nil
}

// Close ends the solver session.
func (o *Oracle) Close() error {
	return o.solver.Close()
}
