package heuristic

import (
	"fmt"
	"strings"
)

type Options struct {
	Kind          string
	TablePath     string
	DefaultWeight float64
	// Rename maps canonical names to surface names for table lookups.
	Rename func(string) string
}

// New builds the heuristic named by opts.Kind: "uniform" (the default),
// "terminal-first" or "table".
func New(opts Options) (Heuristic, error) {
	weight := opts.DefaultWeight
	if weight <= 0 {
		weight = DefaultWeight
	}

	kind := strings.ToLower(strings.TrimSpace(opts.Kind))
	if kind == "" {
		kind = "uniform"
	}

	switch kind {
	case "uniform":
		return Uniform{Weight: weight}, nil
	case "terminal-first":
		return TerminalFirst{Base: weight}, nil
	case "table":
		if opts.TablePath == "" {
			return nil, fmt.Errorf("table heuristic requires a table path")
		}
		t, err := LoadTable(opts.TablePath)
		if err != nil {
			return nil, err
		}
		return t.WithNames(opts.Rename), nil
	default:
		return nil, fmt.Errorf("unsupported heuristic: %s", opts.Kind)
	}
}
