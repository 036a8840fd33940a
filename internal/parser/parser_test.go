package parser

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sygus/internal/term"
)

const maxProblem = `
(set-logic LIA)
(define-sort MyInt Int)
(synth-fun max2 ((x Int) (y Int)) Int
  ((Start Int (x y 0 1
               (+ Start Start)
               (ite StartBool Start Start)))
   (StartBool Bool ((and StartBool StartBool)
                    (<= Start Start)))))
(declare-var x Int)
(declare-var y Int)
(constraint (>= (max2 x y) x))
(constraint (or (= x (max2 x y)) (= y (max2 x y))))
(check-synth)
`

func TestParse_Commands(t *testing.T) {
	p, err := Parse(maxProblem)
	require.NoError(t, err)
	require.Len(t, p.Commands, 8)

	assert.Equal(t, &term.SetLogic{Logic: "LIA"}, p.Commands[0])
	assert.Equal(t, &term.DefineSort{Name: "MyInt", Sort: term.Int}, p.Commands[1])

	sf, ok := p.Commands[2].(*term.SynthFun)
	require.True(t, ok)
	assert.Equal(t, "max2", sf.Name)
	assert.Equal(t, []term.Param{{Name: "x", Sort: term.Int}, {Name: "y", Sort: term.Int}}, sf.Params)
	require.Len(t, sf.Rules, 2)
	assert.Equal(t, "Start", sf.Rules[0].Name)
	assert.Len(t, sf.Rules[0].Alternatives, 6)
	assert.Equal(t, "(ite StartBool Start Start)", sf.Rules[0].Alternatives[5].String())
	assert.Equal(t, term.Bool, sf.Rules[1].Sort)

	c, ok := p.Commands[6].(*term.Constraint)
	require.True(t, ok)
	assert.Equal(t, "(or (= x (max2 x y)) (= y (max2 x y)))", c.Expr.String())

	assert.IsType(t, &term.CheckSynth{}, p.Commands[7])
}

func TestParse_GrammarTerms(t *testing.T) {
	src := `(synth-fun f ((x Int)) Int
  ((Start Int ((Constant Int) (InputVariable Int) (- 3)
               (let ((z Int (Variable Int))) (+ z Start))))))
(declare-fun g (Int Bool) Int)
(set-options ((samples "10")))`
	p, err := Parse(src)
	require.NoError(t, err)

	alts := p.Commands[0].(*term.SynthFun).Rules[0].Alternatives
	assert.Equal(t, term.KindConstantSlot, alts[0].Kind)
	assert.Equal(t, term.KindInputSlot, alts[1].Kind)
	assert.Equal(t, term.KindLiteral, alts[2].Kind)
	assert.Equal(t, int64(-3), alts[2].Value.Int)
	assert.Equal(t, "(let ((z Int (Variable Int))) (+ z Start))", alts[3].String())

	assert.Equal(t, &term.DeclareFun{Name: "g", Params: []term.Sort{term.Int, term.Bool}, Sort: term.Int}, p.Commands[1])
	assert.Equal(t, &term.SetOptions{Options: []term.Option{{Name: "samples", Value: "10"}}}, p.Commands[2])
}

func TestParse_SlotsOnlyInGrammar(t *testing.T) {
	p, err := Parse(`(constraint (= (Constant Int) 1))`)
	require.NoError(t, err)
	e := p.Commands[0].(*term.Constraint).Expr
	assert.Equal(t, term.KindCall, e.Args[0].Kind, "outside a grammar Constant is an ordinary call")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"unknown command", "(frobnicate)", "unknown command"},
		{"arity", "(set-logic)", "takes 1 arguments"},
		{"bad param", "(define-fun f (x) Int x)", "expected (name sort)"},
		{"empty alternatives", "(synth-fun f () Int ((Start Int ())))", "no alternatives"},
		{"unbalanced", "(check-synth", "unterminated"},
		{"numeral name", "(declare-var 3 Int)", "numeral"},
		{"numeral out of range", "(constraint (= 99999999999999999999 1))", "numeral 99999999999999999999 out of range"},
		{"negative numeral out of range", "(constraint (= (- 9223372036854775809) 1))", "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			var se *SyntaxError
			require.ErrorAs(t, err, &se)
			assert.Contains(t, se.Msg, tt.msg)
		})
	}
}

func TestParse_NumeralBounds(t *testing.T) {
	p, err := Parse("(constraint (= (- 9223372036854775808) 9223372036854775807))")
	require.NoError(t, err)
	e := p.Commands[0].(*term.Constraint).Expr
	assert.Equal(t, int64(math.MinInt64), e.Args[0].Value.Int)
	assert.Equal(t, int64(math.MaxInt64), e.Args[1].Value.Int)
}
