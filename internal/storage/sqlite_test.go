package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"sygus/internal/graph"
	"sygus/internal/term"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRun(id string, started time.Time) *Run {
	return &Run{
		ID:            id,
		ProblemPath:   "max2.sl",
		ProblemHash:   "abc123",
		Target:        "max2",
		Strategy:      "bfs",
		Heuristic:     "uniform",
		Worker:        "main",
		Outcome:       "valid",
		Definition:    "(define-fun max2 ((x Int) (y Int)) Int (ite (>= x y) x y))",
		Iterations:    120,
		Expansions:    450,
		Verifications: 17,
		Elapsed:       1500 * time.Millisecond,
		StartedAt:     started,
		Details:       map[string]any{"max_depth": 4},
	}
}

func TestSQLiteStore_RunRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 12, 0, 0, 250, time.UTC)
	require.NoError(t, store.SaveRun(ctx, testRun("r1", started)))

	got, err := store.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "max2", got.Target)
	assert.Equal(t, "valid", got.Outcome)
	assert.Equal(t, 17, got.Verifications)
	assert.Equal(t, 1500*time.Millisecond, got.Elapsed)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Equal(t, float64(4), got.Details["max_depth"])

	// Upsert replaces the row.
	updated := testRun("r1", started)
	updated.Outcome = "exhausted"
	updated.Definition = ""
	require.NoError(t, store.SaveRun(ctx, updated))
	got, err = store.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "exhausted", got.Outcome)
	assert.Empty(t, got.Definition)
}

func TestSQLiteStore_GetRunMissing(t *testing.T) {
	store := newStore(t)
	_, err := store.GetRun(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_SaveRunRequiresID(t *testing.T) {
	store := newStore(t)
	require.Error(t, store.SaveRun(context.Background(), &Run{}))
}

func TestSQLiteStore_ListRunsNewestFirst(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		// sub-second offsets must still order correctly
		started := base.Add(time.Duration(i) * 500 * time.Millisecond)
		require.NoError(t, store.SaveRun(ctx, testRun(fmt.Sprintf("r%d", i), started)))
	}

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"r2", "r1", "r0"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})

	runs, err = store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID)
}

func TestSQLiteStore_GrammarSnapshot(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	ref := func(name string) *term.Expr { return term.Ref(name, term.Int) }
	gr, err := term.NewGrammar("S", []*term.GenRule{
		{Name: "S", Sort: term.Int, Alternatives: []*term.Expr{term.Call("+", ref("S"), ref("T")), ref("T")}},
		{Name: "T", Sort: term.Int, Alternatives: []*term.Expr{term.IntLit(0), term.Call("ite", term.Ref("B", term.Bool), ref("T"), ref("T"))}},
		{Name: "B", Sort: term.Bool, Alternatives: []*term.Expr{term.BoolLit(true)}},
	})
	require.NoError(t, err)
	g := graph.FromGrammar(gr, nil)

	require.NoError(t, store.SaveGrammar(ctx, "r1", g))
	// saving twice keeps a single snapshot
	require.NoError(t, store.SaveGrammar(ctx, "r1", g))

	loaded, err := store.LoadGrammar(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "S", loaded.Start)

	var names []string
	for _, n := range loaded.Ordered() {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"S", "T", "B"}, names)
	assert.Equal(t, term.Bool, loaded.Nodes["B"].Sort)
	assert.Equal(t, g.Metrics(), loaded.Metrics())
	assert.Equal(t, []string{"B", "S", "T"}, graph.Names(loaded.Reachable()))

	_, err = store.LoadGrammar(ctx, "other")
	require.ErrorIs(t, err, ErrNotFound)
}
