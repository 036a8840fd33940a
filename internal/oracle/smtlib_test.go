package oracle

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sygus/internal/sexpr"
	"sygus/internal/term"
)

func TestTerm(t *testing.T) {
	e := &term.Expr{Kind: term.KindLet, Sort: term.Int,
		Bindings: []term.Binding{{Name: "li0", Sort: term.Int, Value: term.IntLit(-2)}},
		Body:     &term.Expr{Kind: term.KindCall, Name: "/", Sort: term.Int, Args: []*term.Expr{{Kind: term.KindCall, Name: "li0"}, term.IntLit(3)}},
	}
	assert.Equal(t, "(let ((li0 (- 2))) (div li0 3))", Term(e))
	assert.Equal(t, "(- 9223372036854775808)", Term(term.IntLit(math.MinInt64)))
	assert.Equal(t, "true", conjunction(nil))
}

func TestParseValue(t *testing.T) {
	nodes, err := sexpr.Parse("7 (- 7) true")
	require.NoError(t, err)

	v, err := parseValue(nodes[0], term.Int)
	require.NoError(t, err)
	assert.Equal(t, term.IntValue(7), v)

	v, err = parseValue(nodes[1], term.Int)
	require.NoError(t, err)
	assert.Equal(t, term.IntValue(-7), v)

	v, err = parseValue(nodes[2], term.Bool)
	require.NoError(t, err)
	assert.Equal(t, term.BoolValue(true), v)

	_, err = parseValue(nodes[2], term.Int)
	assert.Error(t, err)
}

func TestParseValue_OutOfRange(t *testing.T) {
	nodes, err := sexpr.Parse("100000000000000000000 (- 100000000000000000000) (- 9223372036854775808) x1")
	require.NoError(t, err)

	_, err = parseValue(nodes[0], term.Int)
	assert.ErrorIs(t, err, errOutOfRange)
	_, err = parseValue(nodes[1], term.Int)
	assert.ErrorIs(t, err, errOutOfRange)

	v, err := parseValue(nodes[2], term.Int)
	require.NoError(t, err)
	assert.Equal(t, term.IntValue(math.MinInt64), v)

	_, err = parseValue(nodes[3], term.Int)
	require.Error(t, err)
	assert.NotErrorIs(t, err, errOutOfRange)
}
