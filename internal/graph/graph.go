// Package graph models a grammar as a dependency graph between
// nonterminals and answers the structural questions the search needs:
// which rules are reachable, which can ever produce a concrete term, and
// whether the language is finite.
package graph

import (
	"fmt"
	"sort"

	"github.com/go-air/gini"
	"github.com/go-air/gini/z"

	"sygus/internal/term"
)

const unsatisfiable = -1

// Graph manages nonterminals and the references between them.
type Graph struct {
	Nodes map[string]*Node
	Edges []Edge
	Start string

	// order keeps nodes in grammar declaration order.
	order []string
	// refs[name][i] lists the distinct nonterminals used by alternative i.
	refs map[string][][]string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes: make(map[string]*Node),
		refs:  make(map[string][][]string),
	}
}

// FromGrammar builds the dependency graph of g. original maps canonical
// names to surface names and may be nil.
func FromGrammar(g *term.Grammar, original func(string) string) *Graph {
	out := NewGraph()
	out.Start = g.Start
	for _, r := range g.Rules {
		orig := r.Name
		if original != nil {
			orig = original(r.Name)
		}
		out.AddNode(&Node{Name: r.Name, Original: orig, Sort: r.Sort, Alternatives: len(r.Alternatives)})
	}
	for _, r := range g.Rules {
		for i, alt := range r.Alternatives {
			seen := make(map[string]bool)
			var used []string
			alt.Walk(func(e *term.Expr) bool {
				if e.Kind == term.KindNonterminal && !seen[e.Name] {
					seen[e.Name] = true
					used = append(used, e.Name)
				}
				return true
			})
			out.refs[r.Name] = append(out.refs[r.Name], used)
			for _, to := range used {
				out.Edges = append(out.Edges, Edge{From: r.Name, To: to, Alt: i})
			}
		}
	}
	return out
}

// AddNode adds a nonterminal. Adding a name twice replaces the node but
// keeps its original position.
func (g *Graph) AddNode(n *Node) {
	if n == nil {
		return
	}
	if _, ok := g.Nodes[n.Name]; !ok {
		g.order = append(g.order, n.Name)
	}
	g.Nodes[n.Name] = n
}

// Ordered returns the nodes in declaration order.
func (g *Graph) Ordered() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.Nodes[name])
	}
	return out
}

// GetDependencies returns the nonterminals that name refers to.
func (g *Graph) GetDependencies(name string) []*Node {
	var deps []*Node
	seen := make(map[string]bool)
	for _, edge := range g.Edges {
		if edge.From == name && !seen[edge.To] {
			seen[edge.To] = true
			if node, ok := g.Nodes[edge.To]; ok {
				deps = append(deps, node)
			}
		}
	}
	return deps
}

// GetDependents returns the nonterminals that refer to name.
func (g *Graph) GetDependents(name string) []*Node {
	var deps []*Node
	seen := make(map[string]bool)
	for _, edge := range g.Edges {
		if edge.To == name && !seen[edge.From] {
			seen[edge.From] = true
			if node, ok := g.Nodes[edge.From]; ok {
				deps = append(deps, node)
			}
		}
	}
	return deps
}

// Reachable returns the nonterminals reachable from Start, Start included.
func (g *Graph) Reachable() map[string]bool {
	seen := make(map[string]bool)
	if _, ok := g.Nodes[g.Start]; !ok {
		return seen
	}
	queue := []string{g.Start}
	seen[g.Start] = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range g.GetDependencies(cur) {
			if !seen[dep.Name] {
				seen[dep.Name] = true
				queue = append(queue, dep.Name)
			}
		}
	}
	return seen
}

// Productive returns the nonterminals that derive at least one concrete
// term. Each alternative contributes the Horn clause
// N <- M1 and ... and Mk over the nonterminals it uses; N is productive
// exactly when the clauses together with not-N are unsatisfiable.
func (g *Graph) Productive() (map[string]bool, error) {
	vars := make(map[string]z.Lit, len(g.order))
	for i, name := range g.order {
		vars[name] = z.Var(i + 1).Pos()
	}

	s := gini.New()
	for _, name := range g.order {
		for _, used := range g.refs[name] {
			s.Add(vars[name])
			for _, m := range used {
				lit, ok := vars[m]
				if !ok {
					return nil, fmt.Errorf("nonterminal %s refers to unknown %s", name, m)
				}
				s.Add(lit.Not())
			}
			s.Add(z.LitNull)
		}
	}

	out := make(map[string]bool, len(g.order))
	for _, name := range g.order {
		if len(g.refs[name]) == 0 {
			out[name] = false
			continue
		}
		s.Assume(vars[name].Not())
		out[name] = s.Solve() == unsatisfiable
	}
	return out, nil
}

// MinHeights returns, for each productive nonterminal, the height of its
// shallowest concrete derivation. An alternative without nonterminals has
// height 1.
func (g *Graph) MinHeights() map[string]int {
	h := make(map[string]int)
	for changed := true; changed; {
		changed = false
		for _, name := range g.order {
			for _, used := range g.refs[name] {
				best := 0
				ok := true
				for _, m := range used {
					mh, known := h[m]
					if !known {
						ok = false
						break
					}
					if mh > best {
						best = mh
					}
				}
				if !ok {
					continue
				}
				if cur, known := h[name]; !known || best+1 < cur {
					h[name] = best + 1
					changed = true
				}
			}
		}
	}
	return h
}

// Recursive lists, in declaration order, the nonterminals within keep that
// lie on a cycle of keep-internal references made only by alternatives
// whose nonterminals all belong to keep.
func (g *Graph) Recursive(keep map[string]bool) []string {
	adj := make(map[string][]string)
	for _, name := range g.order {
		if !keep[name] {
			continue
		}
		for _, used := range g.refs[name] {
			usable := true
			for _, m := range used {
				if !keep[m] {
					usable = false
					break
				}
			}
			if usable {
				adj[name] = append(adj[name], used...)
			}
		}
	}

	var out []string
	for _, name := range g.order {
		if keep[name] && reaches(adj, name, name) {
			out = append(out, name)
		}
	}
	return out
}

// reaches reports whether to is reachable from from in one or more steps.
func reaches(adj map[string][]string, from, to string) bool {
	seen := make(map[string]bool)
	stack := append([]string(nil), adj[from]...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == to {
			return true
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		stack = append(stack, adj[cur]...)
	}
	return false
}

// Names returns the keys of set in sorted order.
func Names(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k, v := range set {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
