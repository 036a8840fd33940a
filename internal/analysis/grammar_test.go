package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sygus/internal/term"
)

func ref(name string) *term.Expr { return term.Ref(name, term.Int) }

func grammar(t *testing.T, rules ...*term.GenRule) *term.Grammar {
	t.Helper()
	g, err := term.NewGrammar("Start", rules)
	require.NoError(t, err)
	return g
}

func names(t *testing.T, report *GrammarReport) (unreachable, unproductive, recursive []string) {
	t.Helper()
	for _, n := range report.Unreachable {
		unreachable = append(unreachable, n.Original)
	}
	for _, n := range report.Unproductive {
		unproductive = append(unproductive, n.Original)
	}
	for _, n := range report.Recursive {
		recursive = append(recursive, n.Original)
	}
	return
}

func TestAnalyze(t *testing.T) {
	g := grammar(t,
		&term.GenRule{Name: "Start", Sort: term.Int, Alternatives: []*term.Expr{
			term.IntLit(0), term.Call("+", ref("Start"), ref("Loop")), term.Call("-", ref("Start"), ref("One")),
		}},
		&term.GenRule{Name: "Loop", Sort: term.Int, Alternatives: []*term.Expr{term.Call("+", ref("Loop"), ref("One"))}},
		&term.GenRule{Name: "One", Sort: term.Int, Alternatives: []*term.Expr{term.IntLit(1)}},
		&term.GenRule{Name: "Dead", Sort: term.Int, Alternatives: []*term.Expr{term.IntLit(2)}},
	)

	report, err := ForGrammar(g, nil).Analyze()
	require.NoError(t, err)

	unreachable, unproductive, recursive := names(t, report)
	assert.Equal(t, []string{"Dead"}, unreachable)
	assert.Equal(t, []string{"Loop"}, unproductive)
	assert.Equal(t, []string{"Start"}, recursive)
	assert.False(t, report.Finite)
	assert.True(t, report.StartProductive)
	assert.Equal(t, 1, report.MinHeight["Start"])
}

func TestAnalyze_Finite(t *testing.T) {
	g := grammar(t,
		&term.GenRule{Name: "Start", Sort: term.Int, Alternatives: []*term.Expr{
			term.IntLit(0), term.IntLit(1), term.Call("+", ref("Leaf"), ref("Leaf")),
		}},
		&term.GenRule{Name: "Leaf", Sort: term.Int, Alternatives: []*term.Expr{term.IntLit(1)}},
	)
	report, err := ForGrammar(g, nil).Analyze()
	require.NoError(t, err)
	assert.True(t, report.Finite)
	assert.Equal(t, 2, report.MinHeight["Leaf"]+report.MinHeight["Start"])
}

func TestPrune(t *testing.T) {
	g := grammar(t,
		&term.GenRule{Name: "Start", Sort: term.Int, Alternatives: []*term.Expr{
			term.IntLit(0), term.Call("+", ref("Start"), ref("Loop")),
		}},
		&term.GenRule{Name: "Loop", Sort: term.Int, Alternatives: []*term.Expr{term.Call("+", ref("Loop"), ref("Loop"))}},
	)
	pruned, dropped, err := ForGrammar(g, nil).Prune(g)
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)
	assert.Len(t, pruned.StartRule().Alternatives, 1)
	loop, ok := pruned.Rule("Loop")
	require.True(t, ok)
	assert.Empty(t, loop.Alternatives)
	assert.Len(t, g.StartRule().Alternatives, 2, "input grammar is not modified")
}
