package graph

import "sygus/internal/term"

// Node is a grammar nonterminal.
type Node struct {
	Name         string // canonical name
	Original     string
	Sort         term.Sort
	Alternatives int
}

// Edge says that alternative Alt of From refers to To.
type Edge struct {
	From string
	To   string
	Alt  int
}
