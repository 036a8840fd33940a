package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sygus/internal/analysis"
	"sygus/internal/heuristic"
	"sygus/internal/oracle"
	"sygus/internal/resolver"
	"sygus/internal/term"
)

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = l } }

func WithStrategy(s Strategy) Option { return func(e *Engine) { e.strategy = s } }

func WithTracer(t Tracer) Option { return func(e *Engine) { e.tracer = t } }

func WithRecorder(r Recorder) Option { return func(e *Engine) { e.recorder = r } }

// WithCounterexampleCache keeps up to limit counterexample models and
// uses them to reject candidates before calling the verifier. A
// negative limit disables the cache, zero keeps every model.
func WithCounterexampleCache(limit int) Option {
	return func(e *Engine) { e.cacheLimit = limit; e.cache = limit >= 0 }
}

// WithDefaultWeight sets the weight used for slot fills and as the
// replacement for invalid heuristic weights.
func WithDefaultWeight(w float64) Option {
	return func(e *Engine) {
		if w > 0 {
			e.defaultWeight = w
		}
	}
}

// WithPruning drops alternatives that reference unproductive
// nonterminals before the search starts. On by default.
func WithPruning(on bool) Option { return func(e *Engine) { e.prune = on } }

// Engine runs one search at a time against one Verifier. It is not safe
// for concurrent use; see Portfolio for parallel search.
type Engine struct {
	verifier      Verifier
	strategy      Strategy
	logger        *zap.Logger
	tracer        Tracer
	recorder      Recorder
	cache         bool
	cacheLimit    int
	defaultWeight float64
	prune         bool
}

func NewEngine(v Verifier, opts ...Option) *Engine {
	e := &Engine{
		verifier:      v,
		logger:        zap.NewNop(),
		recorder:      nopRecorder{},
		defaultWeight: heuristic.DefaultWeight,
		prune:         true,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// run is the state of one Synthesize call.
type run struct {
	*Engine
	problem  *resolver.Problem
	grammar  *term.Grammar
	h        heuristic.Heuristic
	learner  heuristic.Learner
	budget   Budget
	pool     *pool
	cex      *cexCache
	frontier frontier
	seq      uint64
	stats    Stats
	start    time.Time
}

// Synthesize searches for a body of p's target that the verifier accepts.
// Search-time terminal states are reported in Result.Outcome; the error
// is non-nil only for verifier faults and internal failures. h may be nil,
// in which case every alternative gets the default weight.
func (e *Engine) Synthesize(ctx context.Context, p *resolver.Problem, h heuristic.Heuristic, b Budget) (*Result, error) {
	if p == nil || p.Target == nil {
		return nil, errors.New("problem has no synthesis target")
	}
	if h == nil {
		h = heuristic.Uniform{Weight: e.defaultWeight}
	}

	r := &run{
		Engine:  e,
		problem: p,
		grammar: p.Target.Grammar,
		h:       h,
		budget:  b,
		pool:    newPool(p),
		start:   time.Now(),
	}
	if l, ok := h.(heuristic.Learner); ok {
		r.learner = l
	}
	if e.cache {
		r.cex = newCexCache(p, e.cacheLimit)
	}
	if e.prune {
		pruned, dropped, err := analysis.ForGrammar(r.grammar, p.Original).Prune(r.grammar)
		if err != nil {
			return nil, err
		}
		if dropped > 0 {
			e.logger.Info("dropped unproductive alternatives", zap.Int("count", dropped))
		}
		r.grammar = pruned
	}
	if e.strategy == Priority {
		r.frontier = &priority{}
	} else {
		r.frontier = &fifo{}
	}

	runCtx := ctx
	if b.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	outcome, candidate, err := r.loop(ctx, runCtx)
	r.stats.Elapsed = time.Since(r.start)
	if err != nil {
		e.logger.Error("search aborted", zap.Error(err), zap.Int("iterations", r.stats.Iterations))
		return nil, err
	}

	res := &Result{
		Outcome:   outcome,
		Strategy:  e.strategy,
		Heuristic: h.Name(),
		Stats:     r.stats,
	}
	if outcome == Valid {
		res.Candidate = candidate
		res.Definition = p.Render(candidate)
	}
	e.recorder.Finished(outcome.String(), r.stats.Elapsed)
	e.logger.Info("search finished",
		zap.Stringer("outcome", outcome),
		zap.Stringer("strategy", e.strategy),
		zap.Int("iterations", r.stats.Iterations),
		zap.Int("verifications", r.stats.Verifications),
		zap.Duration("elapsed", r.stats.Elapsed),
		zap.String("definition", res.Definition))
	return res, nil
}

// stopped maps context state to an outcome: the caller's context means
// cancellation, the run's own deadline means the budget ran out.
func stopped(ctx, runCtx context.Context) (Outcome, bool) {
	if ctx.Err() != nil {
		return Cancelled, true
	}
	if runCtx.Err() != nil {
		return BudgetExceeded, true
	}
	return 0, false
}

func (r *run) loop(ctx, runCtx context.Context) (Outcome, *term.Expr, error) {
	root := term.Ref(r.grammar.Start, r.problem.Target.Sort)
	r.expand(&entry{expr: root, score: 1}, false)

	for {
		if out, done := stopped(ctx, runCtx); done {
			return out, nil, nil
		}
		if r.frontier.len() == 0 {
			return Exhausted, nil, nil
		}
		if r.budget.MaxIterations > 0 && r.stats.Iterations >= r.budget.MaxIterations {
			return BudgetExceeded, nil, nil
		}

		cur := r.frontier.pop()
		r.stats.Iterations++
		r.recorder.Iteration()
		concrete := cur.expr.Concrete()
		if r.tracer != nil {
			r.tracer(Event{
				Iteration: r.stats.Iterations,
				Seq:       cur.seq,
				Score:     cur.score,
				Candidate: cur.expr,
				Concrete:  concrete,
			})
		}

		if !concrete {
			r.expand(cur, true)
			if r.budget.MaxFrontier > 0 && r.frontier.len() > r.budget.MaxFrontier {
				r.logger.Info("frontier limit reached", zap.Int("size", r.frontier.len()))
				return BudgetExceeded, nil, nil
			}
			continue
		}

		if r.cex != nil && r.cex.rejects(cur.expr) {
			r.stats.CacheRejects++
			continue
		}
		if r.budget.MaxVerifications > 0 && r.stats.Verifications >= r.budget.MaxVerifications {
			return BudgetExceeded, nil, nil
		}

		began := time.Now()
		verdict, err := r.verifier.Verify(runCtx, cur.expr)
		r.stats.Verifications++
		if err != nil {
			if out, done := stopped(ctx, runCtx); done && !isFault(err) {
				return out, nil, nil
			}
			return 0, nil, fmt.Errorf("verifying %s: %w", r.problem.Format(cur.expr), err)
		}
		r.recorder.Verified(verdict.Status, time.Since(began))
		r.logger.Debug("candidate checked",
			zap.String("candidate", r.problem.Format(cur.expr)),
			zap.Stringer("status", verdict.Status),
			zap.Float64("score", cur.score))
		r.observe(cur.expr, verdict)

		switch verdict.Status {
		case oracle.Valid:
			return Valid, cur.expr, nil
		case oracle.Unknown:
			r.stats.Unknowns++
		case oracle.Invalid:
			if r.cex != nil {
				r.cex.add(verdict.Counterexamples)
			}
		}
	}
}

func isFault(err error) bool {
	var f *oracle.Fault
	return errors.As(err, &f)
}

func (r *run) observe(body *term.Expr, v oracle.Verdict) {
	if r.learner == nil {
		return
	}
	fb := heuristic.Feedback{Candidate: body, Verdict: heuristic.Rejected}
	switch v.Status {
	case oracle.Valid:
		fb.Verdict = heuristic.Accepted
	case oracle.Unknown:
		fb.Verdict = heuristic.Inconclusive
	}
	if len(v.Counterexamples) > 0 {
		fb.Counterexamples = make(map[int]map[string]term.Value, len(v.Counterexamples))
		for _, c := range v.Counterexamples {
			fb.Counterexamples[c.Constraint] = c.Model
		}
	}
	r.learner.Observe(fb)
}

// expand replaces the leftmost hole of cur with each of its fillers and
// pushes the results. counted is false for the initial Start expansion.
func (r *run) expand(cur *entry, counted bool) {
	h, ok := leftmostHole(cur.expr)
	if !ok {
		return
	}
	if counted {
		r.stats.Expansions++
	}

	var fillers []*term.Expr
	var weights []float64
	if h.node.Kind == term.KindNonterminal {
		rule, found := r.grammar.Rule(h.node.Name)
		if !found {
			r.logger.Warn("reference to unknown nonterminal", zap.String("name", h.node.Name))
			return
		}
		fillers = rule.Alternatives
		weights = r.weights(rule, h, cur.expr)
	} else {
		fillers = r.pool.fillers(h)
		weights = make([]float64, len(fillers))
		for i := range weights {
			weights[i] = r.defaultWeight
		}
	}

	pushed := 0
	for i, f := range fillers {
		child := term.Replace(cur.expr, h.node, f)
		if r.budget.MaxDepth > 0 && child.Depth() > r.budget.MaxDepth {
			r.stats.Pruned++
			continue
		}
		r.seq++
		r.frontier.push(&entry{expr: child, score: cur.score * weights[i], seq: r.seq})
		pushed++
	}
	r.recorder.Expanded(pushed)
	if n := r.frontier.len(); n > r.stats.MaxFrontier {
		r.stats.MaxFrontier = n
	}
}

// weights asks the heuristic about a nonterminal site. Breadth-first
// search ignores scores, so the heuristic is not consulted there.
func (r *run) weights(rule *term.GenRule, h hole, partial *term.Expr) []float64 {
	n := len(rule.Alternatives)
	if r.strategy == BFS {
		out := make([]float64, n)
		for i := range out {
			out[i] = r.defaultWeight
		}
		return out
	}
	site := heuristic.Site{
		Nonterminal:  rule.Name,
		Original:     r.problem.Original(rule.Name),
		Sort:         rule.Sort,
		Alternatives: rule.Alternatives,
		Depth:        h.depth,
	}
	w, replaced := heuristic.Sanitize(r.h.Score(site, partial), n, r.defaultWeight)
	if replaced {
		r.logger.Warn("invalid heuristic weights replaced by default",
			zap.String("heuristic", r.h.Name()),
			zap.String("nonterminal", site.Original),
			zap.Float64("default", r.defaultWeight))
	}
	return w
}
