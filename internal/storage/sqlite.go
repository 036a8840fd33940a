package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sygus/internal/graph"
	"sygus/internal/term"

	_ "github.com/mattn/go-sqlite3"
)

// timeLayout is fixed width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			problem_path TEXT,
			problem_hash TEXT,
			target TEXT,
			strategy TEXT,
			heuristic TEXT,
			worker TEXT,
			outcome TEXT,
			definition TEXT,
			iterations INTEGER,
			expansions INTEGER,
			verifications INTEGER,
			elapsed_ms INTEGER,
			started_at TEXT,
			details JSON
		);`,
		`CREATE TABLE IF NOT EXISTS grammars (
			run_id TEXT PRIMARY KEY,
			start TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS nonterminals (
			run_id TEXT,
			position INTEGER,
			name TEXT,
			original TEXT,
			sort TEXT,
			alternatives INTEGER,
			PRIMARY KEY (run_id, name)
		);`,
		`CREATE TABLE IF NOT EXISTS grammar_edges (
			run_id TEXT,
			from_name TEXT,
			to_name TEXT,
			alt INTEGER,
			PRIMARY KEY (run_id, from_name, to_name, alt)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_hash ON runs(problem_hash);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// --- RunStore Implementation ---

const runColumns = "id, problem_path, problem_hash, target, strategy, heuristic, worker, outcome, definition, iterations, expansions, verifications, elapsed_ms, started_at, details"

func (s *SQLiteStore) SaveRun(ctx context.Context, r *Run) error {
	if r == nil || r.ID == "" {
		return errors.New("run id is required")
	}
	details, err := json.Marshal(r.Details)
	if err != nil {
		return fmt.Errorf("failed to encode run details: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			problem_path=excluded.problem_path,
			problem_hash=excluded.problem_hash,
			target=excluded.target,
			strategy=excluded.strategy,
			heuristic=excluded.heuristic,
			worker=excluded.worker,
			outcome=excluded.outcome,
			definition=excluded.definition,
			iterations=excluded.iterations,
			expansions=excluded.expansions,
			verifications=excluded.verifications,
			elapsed_ms=excluded.elapsed_ms,
			started_at=excluded.started_at,
			details=excluded.details
	`, r.ID, r.ProblemPath, r.ProblemHash, r.Target, r.Strategy, r.Heuristic, r.Worker, r.Outcome, r.Definition,
		r.Iterations, r.Expansions, r.Verifications, r.Elapsed.Milliseconds(),
		r.StartedAt.UTC().Format(timeLayout), details)

	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var elapsedMS int64
	var started string
	var details []byte
	if err := row.Scan(&r.ID, &r.ProblemPath, &r.ProblemHash, &r.Target, &r.Strategy, &r.Heuristic, &r.Worker, &r.Outcome, &r.Definition,
		&r.Iterations, &r.Expansions, &r.Verifications, &elapsedMS, &started, &details); err != nil {
		return nil, err
	}
	r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	if t, err := time.Parse(timeLayout, started); err == nil {
		r.StartedAt = t
	}
	if len(details) > 0 {
		_ = json.Unmarshal(details, &r.Details)
	}
	return &r, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// --- GrammarStore Implementation ---

func (s *SQLiteStore) SaveGrammar(ctx context.Context, runID string, g *graph.Graph) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// 1. Drop the previous snapshot
	for _, table := range []string{"grammars", "nonterminals", "grammar_edges"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", runID); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO grammars (run_id, start) VALUES (?, ?)", runID, g.Start); err != nil {
		return err
	}

	// 2. Save Nodes
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nonterminals (run_id, position, name, original, sort, alternatives)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, n := range g.Ordered() {
		if _, err := stmt.ExecContext(ctx, runID, i, n.Name, n.Original, n.Sort.String(), n.Alternatives); err != nil {
			return err
		}
	}

	// 3. Save Edges
	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO grammar_edges (run_id, from_name, to_name, alt) VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, from_name, to_name, alt) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer edgeStmt.Close()

	for _, edge := range g.Edges {
		if _, err := edgeStmt.ExecContext(ctx, runID, edge.From, edge.To, edge.Alt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadGrammar(ctx context.Context, runID string) (*graph.Graph, error) {
	g := graph.NewGraph()

	row := s.db.QueryRowContext(ctx, "SELECT start FROM grammars WHERE run_id = ?", runID)
	if err := row.Scan(&g.Start); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no grammar for %s", ErrNotFound, runID)
		}
		return nil, err
	}

	// 1. Load Nodes
	rows, err := s.db.QueryContext(ctx, "SELECT name, original, sort, alternatives FROM nonterminals WHERE run_id = ? ORDER BY position", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query nonterminals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n graph.Node
		var sort string
		if err := rows.Scan(&n.Name, &n.Original, &sort, &n.Alternatives); err != nil {
			return nil, fmt.Errorf("failed to scan nonterminal: %w", err)
		}
		n.Sort = term.SortNamed(sort)
		g.AddNode(&n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// 2. Load Edges
	edgeRows, err := s.db.QueryContext(ctx, "SELECT from_name, to_name, alt FROM grammar_edges WHERE run_id = ? ORDER BY from_name, alt, to_name", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var edge graph.Edge
		if err := edgeRows.Scan(&edge.From, &edge.To, &edge.Alt); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		g.Edges = append(g.Edges, edge)
	}

	return g, edgeRows.Err()
}
