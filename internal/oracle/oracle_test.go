package oracle_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sygus/internal/oracle"
	"sygus/internal/oracle/oracletest"
	"sygus/internal/parser"
	"sygus/internal/resolver"
	"sygus/internal/term"
)

const problemSrc = `
(set-logic LIA)
(define-fun half ((n Int)) Int (/ n 2))
(synth-fun f ((x Int)) Int ((Start Int (x 0 (- 1) (+ Start Start)))))
(declare-var a Int)
(declare-var b Bool)
(constraint (>= (f a) a))
(constraint (=> b (= (f a) (f a))))
(check-synth)
`

func resolve(t *testing.T, src string) *resolver.Problem {
	t.Helper()
	raw, err := parser.Parse(src)
	require.NoError(t, err)
	p, err := resolver.Resolve(raw)
	require.NoError(t, err)
	return p
}

func param(p *resolver.Problem) *term.Expr {
	return p.Target.ParamsOf(term.Int)[0]
}

func TestOracle_ValidPerConstraint(t *testing.T) {
	p := resolve(t, problemSrc)
	s := &oracletest.Scripted{Handler: oracletest.Answers([]string{"unsat", "unsat"}, nil)}
	o := oracle.New(s, p, oracle.WithTimeout(1500*time.Millisecond))

	v, err := o.Verify(context.Background(), param(p))
	require.NoError(t, err)
	assert.Equal(t, oracle.Valid, v.Status)
	assert.Empty(t, v.Counterexamples)

	assert.Equal(t, []string{
		"(set-option :print-success true)",
		"(set-option :produce-models true)",
		"(set-option :timeout 1500)",
		"(set-logic LIA)",
		"(declare-fun vari0 () Int)",
		"(declare-fun varb0 () Bool)",
		"(define-fun deff0 ((pdi0 Int)) Int (div pdi0 2))",
		"(push 1)",
		"(define-fun synth0 ((psi0 Int)) Int psi0)",
		"(push 1)",
		"(assert (not (>= (synth0 vari0) vari0)))",
		"(check-sat)",
		"(pop 1)",
		"(push 1)",
		"(assert (not (=> varb0 (= (synth0 vari0) (synth0 vari0)))))",
		"(check-sat)",
		"(pop 1)",
		"(pop 1)",
	}, s.Log())
}

func TestOracle_PreambleSentOnce(t *testing.T) {
	p := resolve(t, problemSrc)
	s := &oracletest.Scripted{Handler: oracletest.Answers([]string{"unsat", "unsat", "unsat", "unsat"}, nil)}
	o := oracle.New(s, p)

	_, err := o.Verify(context.Background(), param(p))
	require.NoError(t, err)
	_, err = o.Verify(context.Background(), term.IntLit(0))
	require.NoError(t, err)

	declarations := 0
	for _, cmd := range s.Log() {
		if cmd == "(declare-fun vari0 () Int)" {
			declarations++
		}
	}
	assert.Equal(t, 1, declarations)
	assert.Equal(t, 2, o.Queries())
}

func TestOracle_Counterexample(t *testing.T) {
	p := resolve(t, problemSrc)
	s := &oracletest.Scripted{Handler: oracletest.Answers(
		[]string{"sat", "unsat"},
		[]string{"((vari0 (- 4)) (varb0 false))"},
	)}
	o := oracle.New(s, p)

	v, err := o.Verify(context.Background(), term.IntLit(-1))
	require.NoError(t, err)
	assert.Equal(t, oracle.Invalid, v.Status)
	require.Len(t, v.Counterexamples, 1)
	assert.Equal(t, 0, v.Counterexamples[0].Constraint)
	assert.Equal(t, map[string]term.Value{
		"vari0": term.IntValue(-4),
		"varb0": term.BoolValue(false),
	}, v.Counterexamples[0].Model)
	assert.Contains(t, s.Log(), "(define-fun synth0 ((psi0 Int)) Int (- 1))")
	assert.Contains(t, s.Log(), "(get-value (vari0 varb0))")
}

func TestOracle_CounterexampleOutOfRangeValue(t *testing.T) {
	p := resolve(t, problemSrc)
	s := &oracletest.Scripted{Handler: oracletest.Answers(
		[]string{"sat", "unsat"},
		[]string{"((vari0 100000000000000000000) (varb0 true))"},
	)}
	o := oracle.New(s, p)

	v, err := o.Verify(context.Background(), term.IntLit(-1))
	require.NoError(t, err)
	assert.Equal(t, oracle.Invalid, v.Status)
	require.Len(t, v.Counterexamples, 1)
	assert.Equal(t, map[string]term.Value{"varb0": term.BoolValue(true)}, v.Counterexamples[0].Model)
}

func TestOracle_WholeSpec(t *testing.T) {
	p := resolve(t, problemSrc)
	s := &oracletest.Scripted{Handler: oracletest.Answers([]string{"sat"}, []string{"((vari0 3) (varb0 true))"})}
	o := oracle.New(s, p, oracle.WithMode(oracle.WholeSpec))

	v, err := o.Verify(context.Background(), term.IntLit(0))
	require.NoError(t, err)
	assert.Equal(t, oracle.Invalid, v.Status)
	require.Len(t, v.Counterexamples, 1)
	assert.Equal(t, oracle.WholeSpecIndex, v.Counterexamples[0].Constraint)
	assert.Contains(t, s.Log(),
		"(assert (not (and (>= (synth0 vari0) vari0) (=> varb0 (= (synth0 vari0) (synth0 vari0))))))")
}

func TestOracle_TimeoutOption(t *testing.T) {
	p := resolve(t, problemSrc)
	reply := func(answer string) func(string) string {
		answers := oracletest.Answers([]string{"unsat", "unsat"}, nil)
		return func(cmd string) string {
			if strings.HasPrefix(cmd, "(set-option :timeout") {
				return answer
			}
			return answers(cmd)
		}
	}

	t.Run("unsupported is skipped", func(t *testing.T) {
		s := &oracletest.Scripted{Handler: reply("unsupported")}
		v, err := oracle.New(s, p, oracle.WithTimeout(time.Second)).Verify(context.Background(), param(p))
		require.NoError(t, err)
		assert.Equal(t, oracle.Valid, v.Status)
	})

	t.Run("other replies fault", func(t *testing.T) {
		s := &oracletest.Scripted{Handler: reply("maybe")}
		_, err := oracle.New(s, p, oracle.WithTimeout(time.Second)).Verify(context.Background(), param(p))
		var fault *oracle.Fault
		assert.ErrorAs(t, err, &fault)
	})

	t.Run("unsupported elsewhere faults", func(t *testing.T) {
		s := &oracletest.Scripted{Handler: func(cmd string) string {
			if strings.HasPrefix(cmd, "(set-logic") {
				return "unsupported"
			}
			return ""
		}}
		_, err := oracle.New(s, p).Verify(context.Background(), param(p))
		var fault *oracle.Fault
		assert.ErrorAs(t, err, &fault)
	})
}

func TestOracle_Unknown(t *testing.T) {
	p := resolve(t, problemSrc)
	s := &oracletest.Scripted{Handler: oracletest.Answers([]string{"unknown", "unsat"}, nil)}
	o := oracle.New(s, p)

	v, err := o.Verify(context.Background(), param(p))
	require.NoError(t, err)
	assert.Equal(t, oracle.Unknown, v.Status)
}

func TestOracle_Faults(t *testing.T) {
	p := resolve(t, problemSrc)

	t.Run("solver error response", func(t *testing.T) {
		s := &oracletest.Scripted{Handler: func(cmd string) string {
			if cmd == "(check-sat)" {
				return `(error "out of memory")`
			}
			return ""
		}}
		_, err := oracle.New(s, p).Verify(context.Background(), param(p))
		var fault *oracle.Fault
		require.ErrorAs(t, err, &fault)
		assert.Contains(t, fault.Reason, "out of memory")
	})

	t.Run("unexpected response", func(t *testing.T) {
		s := &oracletest.Scripted{Handler: func(cmd string) string {
			if cmd == "(check-sat)" {
				return "maybe"
			}
			return ""
		}}
		_, err := oracle.New(s, p).Verify(context.Background(), param(p))
		var fault *oracle.Fault
		assert.ErrorAs(t, err, &fault)
	})

	t.Run("closed session", func(t *testing.T) {
		s := &oracletest.Scripted{}
		o := oracle.New(s, p)
		require.NoError(t, o.Close())
		_, err := o.Verify(context.Background(), param(p))
		var fault *oracle.Fault
		require.ErrorAs(t, err, &fault)
		assert.True(t, errors.Is(err, oracle.ErrClosed))
	})
}

func TestOracle_Cancelled(t *testing.T) {
	p := resolve(t, problemSrc)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := oracle.New(&oracletest.Scripted{}, p).Verify(ctx, param(p))
	assert.ErrorIs(t, err, context.Canceled)
	var fault *oracle.Fault
	assert.False(t, errors.As(err, &fault))
}

func TestOracle_RejectsPartialCandidate(t *testing.T) {
	p := resolve(t, problemSrc)
	_, err := oracle.New(&oracletest.Scripted{}, p).Verify(context.Background(), term.Ref("si0", term.Int))
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	m, err := oracle.ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, oracle.PerConstraint, m)
	m, err = oracle.ParseMode("whole-spec")
	require.NoError(t, err)
	assert.Equal(t, oracle.WholeSpec, m)
	_, err = oracle.ParseMode("batch")
	assert.Error(t, err)
}
