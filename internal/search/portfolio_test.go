package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"sygus/internal/heuristic"
	"sygus/internal/oracle"
	"sygus/internal/oracle/oracletest"
	"sygus/internal/resolver"
)

func factory(p *resolver.Problem, failAt int) VerifierFactory {
	return func(ctx context.Context) (Verifier, func() error, error) {
		v := oracletest.NewEvalVerifier(p)
		v.FailAt = failAt
		return v, func() error { return nil }, nil
	}
}

func workers() []Worker {
	return []Worker{
		{Name: "bfs", Strategy: BFS},
		{Name: "terminal-first", Strategy: Priority, Heuristic: heuristic.NewTerminalFirst()},
	}
}

func TestPortfolio_FirstValidWins(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := resolve(t, plusOne)
	newVerifier := factory(p, 0)
	pf := &Portfolio{Workers: workers(), NewVerifier: newVerifier}

	res, err := pf.Synthesize(context.Background(), p, Budget{})
	require.NoError(t, err)
	require.Equal(t, Valid, res.Outcome)
	assert.Equal(t, "(define-fun f () Int (+ 1 1))", res.Definition)
	assert.Contains(t, []string{"bfs", "terminal-first"}, res.Worker)
}

func TestPortfolio_Exhausted(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := resolve(t, `
(synth-fun f () Int ((Start Int (0))))
(constraint (= (f) 1))
`)
	newVerifier := factory(p, 0)
	pf := &Portfolio{Workers: workers(), NewVerifier: newVerifier}

	res, err := pf.Synthesize(context.Background(), p, Budget{})
	require.NoError(t, err)
	assert.Equal(t, Exhausted, res.Outcome)
	assert.Equal(t, 2, res.Stats.Verifications)
	assert.Equal(t, "portfolio", res.Worker)
}

func TestPortfolio_BudgetExceeded(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := resolve(t, unsolvable)
	newVerifier := factory(p, 0)
	pf := &Portfolio{Workers: workers(), NewVerifier: newVerifier}

	res, err := pf.Synthesize(context.Background(), p, Budget{MaxIterations: 20})
	require.NoError(t, err)
	assert.Equal(t, BudgetExceeded, res.Outcome)
	assert.Equal(t, 40, res.Stats.Iterations)
}

func TestPortfolio_FaultAborts(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := resolve(t, unsolvable)
	newVerifier := factory(p, 1)
	pf := &Portfolio{Workers: workers(), NewVerifier: newVerifier}

	_, err := pf.Synthesize(context.Background(), p, Budget{})
	var fault *oracle.Fault
	assert.ErrorAs(t, err, &fault)
}

func TestPortfolio_NoWorkers(t *testing.T) {
	_, err := (&Portfolio{}).Synthesize(context.Background(), nil, Budget{})
	assert.Error(t, err)
}
