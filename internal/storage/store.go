package storage

import (
	"context"
	"errors"
	"time"

	"sygus/internal/graph"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Run is one synthesis attempt as kept in the ledger.
type Run struct {
	ID            string
	ProblemPath   string
	ProblemHash   string
	Target        string
	Strategy      string
	Heuristic     string
	Worker        string
	Outcome       string
	Definition    string
	Iterations    int
	Expansions    int
	Verifications int
	Elapsed       time.Duration
	StartedAt     time.Time
	// Details holds free-form run data such as the budget and cache stats.
	Details map[string]any
}

// Store combines run history and grammar snapshot persistence.
type Store interface {
	RunStore
	GrammarStore
	Close() error
}

// RunStore defines operations for the run ledger.
type RunStore interface {
	// SaveRun upserts a run by id.
	SaveRun(ctx context.Context, run *Run) error

	// GetRun retrieves a run by id.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns the most recent runs first. limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
}

// GrammarStore keeps the nonterminal graph a run searched.
type GrammarStore interface {
	// SaveGrammar replaces the snapshot stored for runID.
	SaveGrammar(ctx context.Context, runID string, g *graph.Graph) error

	// LoadGrammar rebuilds the snapshot stored for runID.
	LoadGrammar(ctx context.Context, runID string) (*graph.Graph, error)
}
