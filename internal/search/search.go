// Package search implements enumerative synthesis: it expands grammar
// nonterminals leftmost-first, verifies every concrete candidate with an
// oracle and stops at the first valid one or when a budget runs out.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sygus/internal/oracle"
	"sygus/internal/term"
)

// Strategy selects the frontier discipline.
type Strategy int

const (
	// BFS is a FIFO frontier; shorter candidates are tried first and the
	// heuristic is never consulted.
	BFS Strategy = iota
	// Priority orders the frontier by score, the product of the heuristic
	// weights of the alternatives chosen so far.
	Priority
)

func (s Strategy) String() string {
	if s == Priority {
		return "priority"
	}
	return "bfs"
}

func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bfs", "breadth-first":
		return BFS, nil
	case "priority", "best-first":
		return Priority, nil
	}
	return 0, fmt.Errorf("unsupported search strategy: %s", s)
}

// Outcome is the terminal state of a search.
type Outcome int

const (
	Valid Outcome = iota
	Exhausted
	BudgetExceeded
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Valid:
		return "valid"
	case Exhausted:
		return "exhausted"
	case BudgetExceeded:
		return "budget_exceeded"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Budget bounds a search. Zero fields are unlimited.
type Budget struct {
	MaxIterations    int
	MaxVerifications int
	Timeout          time.Duration
	// MaxFrontier ends the search when the frontier grows beyond it.
	MaxFrontier int
	// MaxDepth drops partial candidates deeper than this.
	MaxDepth int
}

// Verifier decides a concrete candidate body of the synthesis target.
// *oracle.Oracle is the production implementation.
type Verifier interface {
	Verify(ctx context.Context, body *term.Expr) (oracle.Verdict, error)
}

type Stats struct {
	Iterations    int
	Expansions    int
	Verifications int
	Unknowns      int
	CacheRejects  int
	Pruned        int
	MaxFrontier   int
	Elapsed       time.Duration
}

// Result of Synthesize. Candidate and Definition are set only when
// Outcome is Valid.
type Result struct {
	Outcome   Outcome
	Candidate *term.Expr
	// Definition is the define-fun of the target using original names.
	Definition string
	Strategy   Strategy
	Heuristic  string
	Worker     string
	Stats      Stats
}

// Event is passed to a Tracer for every entry popped from the frontier.
type Event struct {
	Iteration int
	Seq       uint64
	Score     float64
	Candidate *term.Expr
	Concrete  bool
}

type Tracer func(Event)

// Recorder receives search measurements. metrics.Recorder implements it.
type Recorder interface {
	Iteration()
	Expanded(children int)
	Verified(status oracle.Status, took time.Duration)
	Finished(outcome string, took time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) Iteration()                            {}
func (nopRecorder) Expanded(int)                          {}
func (nopRecorder) Verified(oracle.Status, time.Duration) {}
func (nopRecorder) Finished(string, time.Duration)        {}
