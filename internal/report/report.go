// Package report writes the machine-readable summary of a synthesis run.
package report

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"sygus/internal/analysis"
	"sygus/internal/graph"
	"sygus/internal/resolver"
	"sygus/internal/search"
)

const SchemaVersion = "1"

//go:embed report.schema.json
var schemaSource string

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

type Report struct {
	SchemaVersion string          `json:"schema_version"`
	RunID         string          `json:"run_id"`
	GeneratedAt   string          `json:"generated_at"`
	Problem       ProblemSummary  `json:"problem"`
	Grammar       *GrammarSummary `json:"grammar,omitempty"`
	Result        ResultSummary   `json:"result"`
	Stats         StatsSummary    `json:"stats"`
}

type ProblemSummary struct {
	Path         string `json:"path,omitempty"`
	Hash         string `json:"hash,omitempty"`
	Target       string `json:"target"`
	Logic        string `json:"logic"`
	Constraints  int    `json:"constraints"`
	Nonterminals int    `json:"nonterminals"`
}

// GrammarSummary uses surface nonterminal names.
type GrammarSummary struct {
	Unreachable  []string       `json:"unreachable,omitempty"`
	Unproductive []string       `json:"unproductive,omitempty"`
	Recursive    []string       `json:"recursive,omitempty"`
	Finite       bool           `json:"finite"`
	MinHeight    map[string]int `json:"min_height,omitempty"`
}

type ResultSummary struct {
	Outcome    string `json:"outcome"`
	Definition string `json:"definition,omitempty"`
	Strategy   string `json:"strategy"`
	Heuristic  string `json:"heuristic,omitempty"`
	Worker     string `json:"worker,omitempty"`
}

type StatsSummary struct {
	Iterations    int   `json:"iterations"`
	Expansions    int   `json:"expansions"`
	Verifications int   `json:"verifications"`
	Unknowns      int   `json:"unknowns"`
	CacheRejects  int   `json:"cache_rejects"`
	Pruned        int   `json:"pruned"`
	MaxFrontier   int   `json:"max_frontier"`
	ElapsedMS     int64 `json:"elapsed_ms"`
}

// Source locates the problem file a run was made for.
type Source struct {
	Path string
	Hash string
}

// New assembles a report. grammar may be nil when analysis was skipped.
func New(runID string, src Source, p *resolver.Problem, grammar *analysis.GrammarReport, res *search.Result, now time.Time) *Report {
	r := &Report{
		SchemaVersion: SchemaVersion,
		RunID:         runID,
		GeneratedAt:   now.UTC().Format(time.RFC3339),
		Problem: ProblemSummary{
			Path:         src.Path,
			Hash:         src.Hash,
			Target:       p.Target.Original,
			Logic:        p.Logic,
			Constraints:  len(p.Constraints),
			Nonterminals: p.Stats.Nonterminals,
		},
		Result: ResultSummary{
			Outcome:    res.Outcome.String(),
			Definition: res.Definition,
			Strategy:   res.Strategy.String(),
			Heuristic:  res.Heuristic,
			Worker:     res.Worker,
		},
		Stats: StatsSummary{
			Iterations:    res.Stats.Iterations,
			Expansions:    res.Stats.Expansions,
			Verifications: res.Stats.Verifications,
			Unknowns:      res.Stats.Unknowns,
			CacheRejects:  res.Stats.CacheRejects,
			Pruned:        res.Stats.Pruned,
			MaxFrontier:   res.Stats.MaxFrontier,
			ElapsedMS:     res.Stats.Elapsed.Milliseconds(),
		},
	}
	if res.Outcome != search.Valid {
		r.Result.Definition = ""
	}
	if grammar != nil {
		r.Grammar = summarize(grammar, p)
	}
	return r
}

func originals(nodes []*graph.Node) []string {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Original)
	}
	return out
}

func summarize(g *analysis.GrammarReport, p *resolver.Problem) *GrammarSummary {
	s := &GrammarSummary{
		Unreachable:  originals(g.Unreachable),
		Unproductive: originals(g.Unproductive),
		Recursive:    originals(g.Recursive),
		Finite:       g.Finite,
	}
	if len(g.MinHeight) > 0 {
		s.MinHeight = make(map[string]int, len(g.MinHeight))
		for name, h := range g.MinHeight {
			s.MinHeight[p.Original(name)] = h
		}
	}
	return s
}

func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = jsonschema.CompileString("report.schema.json", schemaSource)
	})
	return compiledSchema, schemaErr
}

// Validate checks r against the embedded JSON schema.
func (r *Report) Validate() error {
	if r == nil {
		return fmt.Errorf("report is nil")
	}
	sch, err := schema()
	if err != nil {
		return fmt.Errorf("failed to compile report schema: %w", err)
	}

	var v any
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report for schema validation: %w", err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("failed to normalize report for schema validation: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("report schema validation failed: %w", err)
	}
	return nil
}

func Save(path string, r *Report) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0644)
}

func Load(path string) (*Report, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
