package graph

// Metrics summarizes the size of a grammar graph.
type Metrics struct {
	Nonterminals int
	Alternatives int
	Edges        int
	SelfLoops    int
}

func (g *Graph) Metrics() Metrics {
	m := Metrics{}
	if g == nil {
		return m
	}
	m.Nonterminals = len(g.Nodes)
	for _, n := range g.Nodes {
		m.Alternatives += n.Alternatives
	}
	m.Edges = len(g.Edges)
	for _, e := range g.Edges {
		if e.From == e.To {
			m.SelfLoops++
		}
	}
	return m
}
