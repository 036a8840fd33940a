package heuristic

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"sygus/internal/term"
)

// Table is a static heuristic read from YAML, keyed by surface nonterminal
// name and the rendered alternative:
//
//	default: 0.9
//	rules:
//	  Start:
//	    "x": 1.0
//	    "(+ Start Start)": 0.5
//
// Alternatives are rendered with original names, so keys match the
// problem file. Missing entries get Default.
type Table struct {
	Default float64                       `yaml:"default"`
	Rules   map[string]map[string]float64 `yaml:"rules"`

	// rename maps canonical names back to surface names.
	rename func(string) string
}

// LoadTable reads a YAML table from path.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read heuristic table: %w", err)
	}
	return ParseTable(data)
}

func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse heuristic table: %w", err)
	}
	if t.Default == 0 {
		t.Default = DefaultWeight
	}
	if t.Default < 0 {
		return nil, fmt.Errorf("invalid default weight %v", t.Default)
	}
	for nt, alts := range t.Rules {
		for alt, w := range alts {
			if w < 0 {
				return nil, fmt.Errorf("invalid weight %v for %s alternative %s", w, nt, alt)
			}
		}
	}
	return &t, nil
}

// WithNames returns a copy of t that renders alternatives through rename.
func (t *Table) WithNames(rename func(string) string) *Table {
	c := *t
	c.rename = rename
	return &c
}

func (t *Table) Name() string { return "table" }

func (t *Table) Score(site Site, _ *term.Expr) []float64 {
	out := make([]float64, len(site.Alternatives))
	weights := t.Rules[site.Original]
	for i, alt := range site.Alternatives {
		out[i] = t.Default
		if w, ok := weights[term.Format(alt, t.rename)]; ok {
			out[i] = w
		}
	}
	return out
}
