// Package resolver checks a parsed problem for scope and sort correctness
// and renames every user identifier to a fresh canonical name.
package resolver

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"sygus/internal/term"
)

// SupportedLogic is the only logic accepted by set-logic.
const SupportedLogic = "LIA"

type Option func(*Resolver)

func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// Resolver is stateless between calls; every Resolve starts a fresh
// session with its own tables and renaming counters.
type Resolver struct {
	logger *zap.Logger
}

func New(opts ...Option) *Resolver {
	r := &Resolver{logger: zap.NewNop()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve is shorthand for New().Resolve(p).
func Resolve(p *term.Problem) (*Problem, error) {
	return New().Resolve(p)
}

// Resolve processes the commands of p in order, stopping at check-synth.
func (r *Resolver) Resolve(p *term.Problem) (*Problem, error) {
	s := newSession()
	for _, cmd := range p.Commands {
		if _, done := cmd.(*term.CheckSynth); done {
			break
		}
		if err := s.command(cmd); err != nil {
			r.logger.Debug("resolution failed", zap.Error(err))
			return nil, err
		}
	}
	if s.out.Target == nil {
		return nil, &SetupError{Kind: NoSynthTarget, Detail: "problem has no synth-fun"}
	}
	s.out.names = s.names
	s.out.Stats.Renamed = len(s.names)
	r.logger.Debug("problem resolved",
		zap.String("target", s.out.Target.Original),
		zap.Int("declared", s.out.Stats.Declared),
		zap.Int("defined", s.out.Stats.Defined),
		zap.Int("nonterminals", s.out.Stats.Nonterminals),
		zap.Int("constraints", s.out.Stats.Constraints))
	return s.out, nil
}

// entry is a registered global function.
type entry struct {
	name string
	sort term.Sort
}

// binding is a lexical scope entry.
type binding struct {
	name        string
	sort        term.Sort
	nonterminal bool
}

type scope map[string]binding

type session struct {
	aliases  map[string]term.Sort
	declared map[string]entry
	defined  map[string]entry
	synth    map[string]entry
	internal map[string]entry
	scopes   []scope
	counters map[string]int
	names    map[string]string
	cmd      string
	out      *Problem
}

func newSession() *session {
	s := &session{
		aliases:  make(map[string]term.Sort),
		declared: make(map[string]entry),
		defined:  make(map[string]entry),
		synth:    make(map[string]entry),
		internal: make(map[string]entry),
		counters: make(map[string]int),
		names:    make(map[string]string),
		out:      &Problem{Sorts: make(map[string]term.Sort)},
	}
	for _, b := range term.Builtins {
		s.internal[b.Det.Key()] = entry{name: b.Det.Name, sort: b.Result}
	}
	return s
}

func (s *session) fail(kind ErrorKind, format string, args ...any) error {
	return &SetupError{Kind: kind, Command: s.cmd, Detail: fmt.Sprintf(format, args...)}
}

// fresh allocates the next canonical name of a category and records the
// original spelling.
func (s *session) fresh(category, original string) string {
	n := s.counters[category]
	s.counters[category] = n + 1
	name := category + strconv.Itoa(n)
	s.names[name] = original
	return name
}

// bySort picks the Bool or Int flavor of a category prefix.
func bySort(prefix string, sort term.Sort) string {
	if sort.Kind == term.SortBool {
		return prefix + "b"
	}
	return prefix + "i"
}

func (s *session) push(sc scope) { s.scopes = append(s.scopes, sc) }
func (s *session) pop()          { s.scopes = s.scopes[:len(s.scopes)-1] }

func (s *session) resolveSort(sort term.Sort) (term.Sort, error) {
	if sort.Resolved() {
		return sort, nil
	}
	if sort.Kind == term.SortAlias {
		if target, ok := s.aliases[sort.Name]; ok {
			return target, nil
		}
	}
	return term.None, s.fail(UnknownSort, "unknown sort %s", sort)
}

// taken reports whether det is already registered in any global table.
func (s *session) taken(det term.FuncDet) bool {
	key := det.Key()
	for _, tbl := range []map[string]entry{s.declared, s.defined, s.synth, s.internal} {
		if _, ok := tbl[key]; ok {
			return true
		}
	}
	return false
}

func (s *session) command(cmd term.Command) error {
	switch c := cmd.(type) {
	case *term.SetLogic:
		s.cmd = "set-logic"
		if c.Logic != SupportedLogic {
			return s.fail(UnsupportedLogic, "logic %s is not supported, only %s", c.Logic, SupportedLogic)
		}
		s.out.Logic = c.Logic
	case *term.SetOptions:
		s.out.Options = append(s.out.Options, c.Options...)
	case *term.DefineSort:
		s.cmd = "define-sort " + c.Name
		return s.defineSort(c)
	case *term.DeclareVar:
		s.cmd = "declare-var " + c.Name
		return s.declare(c.Name, nil, c.Sort, "var")
	case *term.DeclareFun:
		s.cmd = "declare-fun " + c.Name
		prefix := "decl"
		if len(c.Params) > 0 {
			prefix = "declf"
		}
		return s.declare(c.Name, c.Params, c.Sort, prefix)
	case *term.DefineFun:
		s.cmd = "define-fun " + c.Name
		return s.defineFun(c)
	case *term.SynthFun:
		s.cmd = "synth-fun " + c.Name
		return s.synthFun(c)
	case *term.Constraint:
		s.cmd = "constraint"
		return s.constraint(c)
	case *term.CheckSynth:
	default:
		return fmt.Errorf("unhandled command %T", cmd)
	}
	return nil
}

func (s *session) defineSort(c *term.DefineSort) error {
	if _, ok := s.aliases[c.Name]; ok || c.Name == "Int" || c.Name == "Bool" {
		return s.fail(DuplicateSymbol, "sort %s already defined", c.Name)
	}
	target, err := s.resolveSort(c.Sort)
	if err != nil {
		return err
	}
	s.aliases[c.Name] = target
	s.out.Sorts[c.Name] = target
	s.out.Stats.Sorts++
	return nil
}

func (s *session) declare(name string, params []term.Sort, sort term.Sort, prefix string) error {
	resolved := make([]term.Sort, len(params))
	for i, p := range params {
		rs, err := s.resolveSort(p)
		if err != nil {
			return err
		}
		resolved[i] = rs
	}
	ret, err := s.resolveSort(sort)
	if err != nil {
		return err
	}
	det := term.FuncDet{Name: name, Params: resolved}
	if s.taken(det) {
		return s.fail(DuplicateSymbol, "%s is already defined", det)
	}
	category := prefix
	if prefix != "declf" {
		category = bySort(prefix, ret)
	}
	canonical := s.fresh(category, name)
	s.declared[det.Key()] = entry{name: canonical, sort: ret}

	f := &Function{Name: canonical, Original: name, Sort: ret}
	for _, ps := range resolved {
		f.Params = append(f.Params, term.Param{Sort: ps})
	}
	s.out.Declared = append(s.out.Declared, f)
	s.out.Stats.Declared++
	return nil
}

// params resolves a parameter list into a fresh scope.
func (s *session) params(in []term.Param, prefix string) ([]term.Param, scope, error) {
	out := make([]term.Param, len(in))
	sc := make(scope, len(in))
	for i, p := range in {
		if _, dup := sc[p.Name]; dup {
			return nil, nil, s.fail(DuplicateSymbol, "parameter %s appears twice", p.Name)
		}
		sort, err := s.resolveSort(p.Sort)
		if err != nil {
			return nil, nil, err
		}
		canonical := s.fresh(bySort(prefix, sort), p.Name)
		out[i] = term.Param{Name: canonical, Sort: sort}
		sc[p.Name] = binding{name: canonical, sort: sort}
	}
	return out, sc, nil
}

func paramSorts(ps []term.Param) []term.Sort {
	out := make([]term.Sort, len(ps))
	for i, p := range ps {
		out[i] = p.Sort
	}
	return out
}

func (s *session) defineFun(c *term.DefineFun) error {
	ret, err := s.resolveSort(c.Sort)
	if err != nil {
		return err
	}
	params, sc, err := s.params(c.Params, "pd")
	if err != nil {
		return err
	}
	s.push(sc)
	body, err := s.expr(c.Body)
	s.pop()
	if err != nil {
		return err
	}
	if body.Sort != ret {
		return s.fail(TypeMismatch, "body has sort %s, declared %s", body.Sort, ret)
	}

	det := term.FuncDet{Name: c.Name, Params: paramSorts(params)}
	if s.taken(det) {
		return s.fail(DuplicateSymbol, "%s is already defined", det)
	}
	category := "deff"
	if len(params) == 0 {
		category = bySort("def", ret)
	}
	canonical := s.fresh(category, c.Name)
	s.defined[det.Key()] = entry{name: canonical, sort: ret}
	s.out.Defined = append(s.out.Defined, &Function{
		Name: canonical, Original: c.Name, Params: params, Sort: ret, Body: body,
	})
	s.out.Stats.Defined++
	return nil
}

func (s *session) synthFun(c *term.SynthFun) error {
	ret, err := s.resolveSort(c.Sort)
	if err != nil {
		return err
	}
	params, psc, err := s.params(c.Params, "ps")
	if err != nil {
		return err
	}

	// Nonterminals are all visible in every alternative, so the scope is
	// filled before any alternative is resolved.
	nsc := make(scope, len(c.Rules))
	rules := make([]*term.GenRule, len(c.Rules))
	var start string
	for i, r := range c.Rules {
		if _, dup := nsc[r.Name]; dup {
			return s.fail(DuplicateSymbol, "nonterminal %s defined twice", r.Name)
		}
		sort, err := s.resolveSort(r.Sort)
		if err != nil {
			return err
		}
		canonical := s.fresh(bySort("s", sort), r.Name)
		nsc[r.Name] = binding{name: canonical, sort: sort, nonterminal: true}
		rules[i] = &term.GenRule{Name: canonical, Sort: sort}
		if r.Name == term.StartSymbol {
			start = canonical
			if sort != ret {
				return s.fail(StartSortMismatch, "Start has sort %s, function returns %s", sort, ret)
			}
		}
	}
	if start == "" {
		return s.fail(MissingStartSymbol, "grammar has no %s rule", term.StartSymbol)
	}

	s.push(psc)
	s.push(nsc)
	for i, r := range c.Rules {
		for _, alt := range r.Alternatives {
			e, err := s.expr(alt)
			if err != nil {
				s.pop()
				s.pop()
				return err
			}
			if e.Sort != rules[i].Sort {
				s.pop()
				s.pop()
				return s.fail(ProductionSortMismatch, "alternative %s of %s has sort %s, want %s",
					alt, r.Name, e.Sort, rules[i].Sort)
			}
			rules[i].Alternatives = append(rules[i].Alternatives, e)
		}
	}
	s.pop()
	s.pop()

	if s.out.Target != nil {
		return s.fail(MultipleSynthTargets, "%s is already being synthesized", s.out.Target.Original)
	}
	det := term.FuncDet{Name: c.Name, Params: paramSorts(params)}
	if s.taken(det) {
		return s.fail(DuplicateSymbol, "%s is already defined", det)
	}
	grammar, err := term.NewGrammar(start, rules)
	if err != nil {
		return s.fail(DuplicateSymbol, "%v", err)
	}
	canonical := s.fresh("synth", c.Name)
	s.synth[det.Key()] = entry{name: canonical, sort: ret}
	s.out.Target = &Target{
		Function: Function{Name: canonical, Original: c.Name, Params: params, Sort: ret},
		Grammar:  grammar,
	}
	s.out.Stats.Nonterminals = len(rules)
	return nil
}

func (s *session) constraint(c *term.Constraint) error {
	e, err := s.expr(c.Expr)
	if err != nil {
		return err
	}
	if e.Sort != term.Bool {
		return s.fail(NonBooleanConstraint, "constraint %s has sort %s", c.Expr, e.Sort)
	}
	s.out.Constraints = append(s.out.Constraints, e)
	s.out.Stats.Constraints++
	return nil
}
