package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sygus/internal/heuristic"
	"sygus/internal/resolver"
)

// Worker configures one member of a portfolio.
type Worker struct {
	Name      string
	Strategy  Strategy
	Heuristic heuristic.Heuristic
}

// VerifierFactory opens a fresh verifier session. Each worker owns the
// session it opens; release is called when the worker is done.
type VerifierFactory func(ctx context.Context) (v Verifier, release func() error, err error)

// Portfolio runs independent searches in parallel over the same resolved
// problem, each with its own verifier session. The first Valid result
// wins and cancels the others; a verifier fault in any worker aborts all.
type Portfolio struct {
	Workers     []Worker
	NewVerifier VerifierFactory
	// Options are applied to every worker's engine before its strategy.
	Options []Option
	Logger  *zap.Logger
}

func (pf *Portfolio) Synthesize(ctx context.Context, p *resolver.Problem, b Budget) (*Result, error) {
	if len(pf.Workers) == 0 {
		return nil, fmt.Errorf("portfolio has no workers")
	}
	logger := pf.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()

	solvedCtx, solved := context.WithCancel(ctx)
	defer solved()
	g, gctx := errgroup.WithContext(solvedCtx)

	var (
		mu      sync.Mutex
		winner  *Result
		results = make([]*Result, len(pf.Workers))
	)
	for i, w := range pf.Workers {
		i, w := i, w
		g.Go(func() error {
			v, release, err := pf.NewVerifier(gctx)
			if err != nil {
				if gctx.Err() != nil {
					// Another worker already finished the portfolio.
					return nil
				}
				return fmt.Errorf("worker %s: %w", w.Name, err)
			}
			defer func() {
				if err := release(); err != nil {
					logger.Warn("failed to release verifier", zap.String("worker", w.Name), zap.Error(err))
				}
			}()

			opts := append(append([]Option(nil), pf.Options...),
				WithStrategy(w.Strategy),
				WithLogger(logger.With(zap.String("worker", w.Name))))
			res, err := NewEngine(v, opts...).Synthesize(gctx, p, w.Heuristic, b)
			if err != nil {
				return fmt.Errorf("worker %s: %w", w.Name, err)
			}
			res.Worker = w.Name

			mu.Lock()
			defer mu.Unlock()
			results[i] = res
			if res.Outcome == Valid && winner == nil {
				winner = res
				solved()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if winner != nil {
		logger.Info("portfolio solved", zap.String("worker", winner.Worker), zap.Duration("elapsed", time.Since(start)))
		return winner, nil
	}
	return combine(ctx, results, time.Since(start)), nil
}

// combine merges unsuccessful worker results. The portfolio is exhausted
// only if every worker exhausted its search space.
func combine(ctx context.Context, results []*Result, elapsed time.Duration) *Result {
	out := &Result{Outcome: Exhausted, Worker: "portfolio"}
	for _, r := range results {
		if r == nil {
			out.Outcome = Cancelled
			continue
		}
		out.Stats.Iterations += r.Stats.Iterations
		out.Stats.Expansions += r.Stats.Expansions
		out.Stats.Verifications += r.Stats.Verifications
		out.Stats.Unknowns += r.Stats.Unknowns
		out.Stats.CacheRejects += r.Stats.CacheRejects
		out.Stats.Pruned += r.Stats.Pruned
		if r.Stats.MaxFrontier > out.Stats.MaxFrontier {
			out.Stats.MaxFrontier = r.Stats.MaxFrontier
		}
		if r.Outcome != Exhausted {
			out.Outcome = BudgetExceeded
		}
	}
	if ctx.Err() != nil {
		out.Outcome = Cancelled
	}
	out.Stats.Elapsed = elapsed
	return out
}
