package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sygus/internal/analysis"
	"sygus/internal/config"
	"sygus/internal/graph"
	"sygus/internal/heuristic"
	"sygus/internal/oracle"
	"sygus/internal/parser"
	"sygus/internal/report"
	"sygus/internal/resolver"
	"sygus/internal/search"
	"sygus/internal/storage"
)

// VerifierFactory opens a verifier session for p. release ends it.
type VerifierFactory func(ctx context.Context, p *resolver.Problem) (v search.Verifier, release func() error, err error)

// Session runs a problem file through every stage: parse, resolve,
// analyze, open the oracle, synthesize, record the run, write the report.
type Session struct {
	Config *config.Config
	Logger *zap.Logger
	// Store is optional; nil skips the run ledger.
	Store storage.Store
	// Recorder is optional; nil disables search metrics.
	Recorder search.Recorder
	// Verifiers defaults to a solver subprocess per session.
	Verifiers VerifierFactory
	// ReportPath is optional; empty skips the JSON report.
	ReportPath string
	// Out receives human-readable progress lines.
	Out io.Writer
	Now func() time.Time
}

type Loaded struct {
	Path    string
	Hash    string
	Problem *resolver.Problem
	Grammar *analysis.GrammarReport
}

type RunResult struct {
	RunID  string
	Loaded *Loaded
	Result *search.Result
	Report *report.Report
	// Feedback holds the verification results seen by the heuristic when
	// heuristic.record is set.
	Feedback []heuristic.Feedback
}

func NewSession(cfg *config.Config, logger *zap.Logger) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		Config: cfg,
		Logger: logger,
		Out:    io.Discard,
		Now:    time.Now,
	}
	s.Verifiers = s.processVerifier
	return s
}

func (s *Session) printf(format string, args ...any) {
	if s.Out != nil {
		fmt.Fprintf(s.Out, format, args...)
	}
}

// Check parses, resolves and analyzes path without searching.
func (s *Session) Check(path string) (*Loaded, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read problem: %w", err)
	}
	return s.load(path, src)
}

// Run solves the problem in path.
func (s *Session) Run(ctx context.Context, path string) (*RunResult, error) {
	started := s.Now()
	loaded, err := s.Check(path)
	if err != nil {
		return nil, err
	}

	res, feedback, err := s.synthesizeStage(ctx, loaded.Problem)
	if err != nil {
		return nil, err
	}

	out := &RunResult{RunID: uuid.NewString(), Loaded: loaded, Result: res, Feedback: feedback}
	if err := s.recordStage(ctx, out, started); err != nil {
		return nil, err
	}
	if err := s.reportStage(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Session) load(path string, src []byte) (*Loaded, error) {
	sum := sha256.Sum256(src)
	loaded := &Loaded{Path: path, Hash: hex.EncodeToString(sum[:])}

	raw, err := parser.Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	p, err := resolver.New(resolver.WithLogger(s.Logger)).Resolve(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	loaded.Problem = p
	s.Logger.Debug("problem resolved",
		zap.String("target", p.Target.Original),
		zap.Int("constraints", p.Stats.Constraints),
		zap.Int("nonterminals", p.Stats.Nonterminals),
		zap.Int("renamed", p.Stats.Renamed))

	g, err := analysis.ForGrammar(p.Target.Grammar, p.Original).Analyze()
	if err != nil {
		return nil, err
	}
	loaded.Grammar = g
	if len(g.Unproductive) > 0 {
		s.Logger.Warn("grammar has unproductive nonterminals",
			zap.Strings("nonterminals", originals(g.Unproductive)))
	}
	if !g.StartProductive {
		s.Logger.Warn("start symbol derives no concrete term; search will exhaust immediately")
	}
	s.printf("Loaded %s: target %s, %d constraints, %d nonterminals (finite=%t)\n",
		path, p.Target.Original, len(p.Constraints), g.Metrics.Nonterminals, g.Finite)
	return loaded, nil
}

func originals(nodes []*graph.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Original
	}
	return out
}

func (s *Session) budget() search.Budget {
	c := s.Config.Search
	return search.Budget{
		MaxIterations:    c.MaxIterations,
		MaxVerifications: c.MaxVerifications,
		Timeout:          c.Timeout,
		MaxFrontier:      c.MaxFrontier,
		MaxDepth:         c.MaxDepth,
	}
}

func (s *Session) engineOptions() []search.Option {
	opts := []search.Option{search.WithDefaultWeight(s.Config.Heuristic.DefaultWeight)}
	if s.Config.Search.CounterexampleCache {
		opts = append(opts, search.WithCounterexampleCache(0))
	}
	if s.Recorder != nil {
		opts = append(opts, search.WithRecorder(s.Recorder))
	}
	return opts
}

func (s *Session) heuristic(kind string, p *resolver.Problem) (heuristic.Heuristic, error) {
	return heuristic.New(heuristic.Options{
		Kind:          kind,
		TablePath:     s.Config.Heuristic.Table,
		DefaultWeight: s.Config.Heuristic.DefaultWeight,
		Rename:        p.Original,
	})
}

func (s *Session) synthesizeStage(ctx context.Context, p *resolver.Problem) (*search.Result, []heuristic.Feedback, error) {
	strategy, err := search.ParseStrategy(s.Config.Search.Strategy)
	if err != nil {
		return nil, nil, err
	}
	h, err := s.heuristic(s.Config.Heuristic.Kind, p)
	if err != nil {
		return nil, nil, err
	}
	var rec *heuristic.Recorder
	if s.Config.Heuristic.Record {
		rec = heuristic.NewRecorder(h)
		h = rec
	}

	var res *search.Result
	if s.Config.Search.Workers > 1 {
		workers, err := s.workers(strategy, h, p)
		if err != nil {
			return nil, nil, err
		}
		pf := &search.Portfolio{
			Workers: workers,
			NewVerifier: func(ctx context.Context) (search.Verifier, func() error, error) {
				return s.Verifiers(ctx, p)
			},
			Options: s.engineOptions(),
			Logger:  s.Logger,
		}
		s.printf("Searching with %d workers\n", len(workers))
		res, err = pf.Synthesize(ctx, p, s.budget())
		if err != nil {
			return nil, nil, fmt.Errorf("synthesis failed: %w", err)
		}
	} else {
		v, release, err := s.Verifiers(ctx, p)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open oracle: %w", err)
		}
		defer func() {
			if err := release(); err != nil {
				s.Logger.Warn("failed to close oracle", zap.Error(err))
			}
		}()

		opts := append(s.engineOptions(), search.WithStrategy(strategy), search.WithLogger(s.Logger))
		s.printf("Searching (%s, %s)\n", strategy, h.Name())
		res, err = search.NewEngine(v, opts...).Synthesize(ctx, p, h, s.budget())
		if err != nil {
			return nil, nil, fmt.Errorf("synthesis failed: %w", err)
		}
	}

	s.Logger.Info("synthesis finished",
		zap.Stringer("outcome", res.Outcome),
		zap.String("worker", res.Worker),
		zap.Int("iterations", res.Stats.Iterations),
		zap.Int("verifications", res.Stats.Verifications),
		zap.Duration("elapsed", res.Stats.Elapsed))
	if rec == nil {
		return res, nil, nil
	}
	feedback := rec.Feedback()
	s.Logger.Info("verification feedback recorded", zap.Int("entries", len(feedback)))
	return res, feedback, nil
}

type variant struct {
	strategy search.Strategy
	kind     string
}

var portfolioVariants = []variant{
	{search.BFS, "uniform"},
	{search.Priority, "terminal-first"},
	{search.Priority, "uniform"},
}

// workers builds the portfolio: the configured strategy first, then the
// other built-in combinations in a fixed order.
func (s *Session) workers(strategy search.Strategy, h heuristic.Heuristic, p *resolver.Problem) ([]search.Worker, error) {
	n := s.Config.Search.Workers
	out := []search.Worker{{Name: fmt.Sprintf("%s/%s", strategy, h.Name()), Strategy: strategy, Heuristic: h}}
	for i := 0; len(out) < n; i++ {
		v := portfolioVariants[i%len(portfolioVariants)]
		if i < len(portfolioVariants) && v.strategy == strategy && v.kind == h.Name() {
			continue
		}
		vh, err := s.heuristic(v.kind, p)
		if err != nil {
			return nil, err
		}
		name := fmt.Sprintf("%s/%s", v.strategy, vh.Name())
		if i >= len(portfolioVariants) {
			name = fmt.Sprintf("%s#%d", name, len(out))
		}
		out = append(out, search.Worker{Name: name, Strategy: v.strategy, Heuristic: vh})
	}
	return out, nil
}

func (s *Session) processVerifier(ctx context.Context, p *resolver.Problem) (search.Verifier, func() error, error) {
	mode, err := oracle.ParseMode(s.Config.Solver.Mode)
	if err != nil {
		return nil, nil, err
	}
	solver, err := oracle.StartProcess(s.Config.SolverArgv(), s.Logger)
	if err != nil {
		return nil, nil, err
	}
	o := oracle.New(solver, p,
		oracle.WithMode(mode),
		oracle.WithTimeout(s.Config.Solver.Timeout),
		oracle.WithLogger(s.Logger))
	return o, o.Close, nil
}

func (s *Session) recordStage(ctx context.Context, out *RunResult, started time.Time) error {
	if s.Store == nil {
		return nil
	}
	p, res := out.Loaded.Problem, out.Result
	run := &storage.Run{
		ID:            out.RunID,
		ProblemPath:   out.Loaded.Path,
		ProblemHash:   out.Loaded.Hash,
		Target:        p.Target.Original,
		Strategy:      res.Strategy.String(),
		Heuristic:     res.Heuristic,
		Worker:        res.Worker,
		Outcome:       res.Outcome.String(),
		Definition:    res.Definition,
		Iterations:    res.Stats.Iterations,
		Expansions:    res.Stats.Expansions,
		Verifications: res.Stats.Verifications,
		Elapsed:       res.Stats.Elapsed,
		StartedAt:     started,
		Details: map[string]any{
			"unknowns":      res.Stats.Unknowns,
			"cache_rejects": res.Stats.CacheRejects,
			"pruned":        res.Stats.Pruned,
			"max_frontier":  res.Stats.MaxFrontier,
			"workers":       s.Config.Search.Workers,
			"solver_mode":   s.Config.Solver.Mode,
		},
	}
	if s.Config.Heuristic.Record {
		run.Details["feedback"] = feedbackTally(out.Feedback)
	}
	if err := s.Store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	g := graph.FromGrammar(p.Target.Grammar, p.Original)
	if err := s.Store.SaveGrammar(ctx, out.RunID, g); err != nil {
		return fmt.Errorf("failed to record grammar: %w", err)
	}
	s.Logger.Debug("run recorded", zap.String("run_id", out.RunID))
	return nil
}

// feedbackTally counts recorded feedback by verdict.
func feedbackTally(fb []heuristic.Feedback) map[string]int {
	tally := map[string]int{"accepted": 0, "rejected": 0, "inconclusive": 0}
	for _, f := range fb {
		switch f.Verdict {
		case heuristic.Accepted:
			tally["accepted"]++
		case heuristic.Inconclusive:
			tally["inconclusive"]++
		default:
			tally["rejected"]++
		}
	}
	return tally
}

func (s *Session) reportStage(out *RunResult) error {
	l := out.Loaded
	out.Report = report.New(out.RunID, report.Source{Path: l.Path, Hash: l.Hash}, l.Problem, l.Grammar, out.Result, s.Now())
	if s.ReportPath == "" {
		return nil
	}
	if err := report.Save(s.ReportPath, out.Report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	s.printf("Report written to %s\n", s.ReportPath)
	return nil
}
