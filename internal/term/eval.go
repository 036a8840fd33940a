package term

import (
	"errors"
	"fmt"
	"math"
	"math/big"
)

// ErrUndefined is returned when an expression has no value under SMT-LIB
// semantics the evaluator can reproduce, e.g. division by zero or an
// uninterpreted function application. Int results outside the int64
// range are undefined as well, since SMT-LIB integers do not wrap.
var ErrUndefined = errors.New("undefined value")

// Function is an interpreted function body over named parameters.
type Function struct {
	Params []string
	Body   *Expr
}

// Interp supplies values for free variables and bodies for defined
// functions. Names are matched exactly as they appear in the expression.
type Interp struct {
	Vars  map[string]Value
	Funcs map[string]Function
}

// Eval evaluates a concrete expression. Holes are an error.
func Eval(e *Expr, in Interp) (Value, error) {
	return eval(e, in, nil)
}

type frame struct {
	vars   map[string]Value
	parent *frame
}

func (f *frame) lookup(name string) (Value, bool) {
	for ; f != nil; f = f.parent {
		if v, ok := f.vars[name]; ok {
			return v, true
		}
	}
	return Value{}, false
}

func eval(e *Expr, in Interp, env *frame) (Value, error) {
	switch e.Kind {
	case KindLiteral:
		return e.Value, nil
	case KindLet:
		f := &frame{vars: make(map[string]Value, len(e.Bindings)), parent: env}
		for _, b := range e.Bindings {
			v, err := eval(b.Value, in, env)
			if err != nil {
				return Value{}, err
			}
			f.vars[b.Name] = v
		}
		return eval(e.Body, in, f)
	case KindCall:
		if len(e.Args) == 0 {
			if v, ok := env.lookup(e.Name); ok {
				return v, nil
			}
			if v, ok := in.Vars[e.Name]; ok {
				return v, nil
			}
		}
		if e.Name == "ite" && len(e.Args) == 3 {
			c, err := eval(e.Args[0], in, env)
			if err != nil {
				return Value{}, err
			}
			if c.Bool {
				return eval(e.Args[1], in, env)
			}
			return eval(e.Args[2], in, env)
		}
		args := make([]Value, len(e.Args))
		for i, a := range e.Args {
			v, err := eval(a, in, env)
			if err != nil {
				return Value{}, err
			}
			args[i] = v
		}
		if fn, ok := in.Funcs[e.Name]; ok {
			if len(fn.Params) != len(args) {
				return Value{}, fmt.Errorf("%s: want %d arguments, got %d", e.Name, len(fn.Params), len(args))
			}
			f := &frame{vars: make(map[string]Value, len(args))}
			for i, p := range fn.Params {
				f.vars[p] = args[i]
			}
			return eval(fn.Body, in, f)
		}
		if IsBuiltin(e.Name) {
			return applyBuiltin(e.Name, args)
		}
		return Value{}, fmt.Errorf("%s: %w", e.Name, ErrUndefined)
	default:
		return Value{}, fmt.Errorf("cannot evaluate %s", e.Kind)
	}
}

func applyBuiltin(name string, args []Value) (Value, error) {
	if name == "not" {
		if len(args) != 1 {
			return Value{}, fmt.Errorf("not: want 1 argument, got %d", len(args))
		}
		return BoolValue(!args[0].Bool), nil
	}
	if len(args) != 2 {
		return Value{}, fmt.Errorf("%s: want 2 arguments, got %d", name, len(args))
	}
	a, b := args[0], args[1]
	switch name {
	case "+":
		return checked(new(big.Int).Add(big.NewInt(a.Int), big.NewInt(b.Int)))
	case "-":
		return checked(new(big.Int).Sub(big.NewInt(a.Int), big.NewInt(b.Int)))
	case "*":
		return checked(new(big.Int).Mul(big.NewInt(a.Int), big.NewInt(b.Int)))
	case "/":
		q, _, err := euclid(a.Int, b.Int)
		return IntValue(q), err
	case "mod":
		_, r, err := euclid(a.Int, b.Int)
		return IntValue(r), err
	case ">":
		return BoolValue(a.Int > b.Int), nil
	case ">=":
		return BoolValue(a.Int >= b.Int), nil
	case "<":
		return BoolValue(a.Int < b.Int), nil
	case "<=":
		return BoolValue(a.Int <= b.Int), nil
	case "=":
		if a.Sort.Kind == SortBool {
			return BoolValue(a.Bool == b.Bool), nil
		}
		return BoolValue(a.Int == b.Int), nil
	case "and":
		return BoolValue(a.Bool && b.Bool), nil
	case "or":
		return BoolValue(a.Bool || b.Bool), nil
	case "=>":
		return BoolValue(!a.Bool || b.Bool), nil
	}
	return Value{}, fmt.Errorf("%s: %w", name, ErrUndefined)
}

func checked(z *big.Int) (Value, error) {
	if !z.IsInt64() {
		return Value{}, fmt.Errorf("integer overflow: %w", ErrUndefined)
	}
	return IntValue(z.Int64()), nil
}

// euclid implements SMT-LIB integer division: the remainder is always
// non-negative.
func euclid(a, b int64) (int64, int64, error) {
	if b == 0 {
		return 0, 0, fmt.Errorf("division by zero: %w", ErrUndefined)
	}
	if a == math.MinInt64 && b == -1 {
		return 0, 0, fmt.Errorf("integer overflow: %w", ErrUndefined)
	}
	q, r := a/b, a%b
	if r < 0 {
		if b > 0 {
			q--
			r += b
		} else {
			q++
			r -= b
		}
	}
	return q, r, nil
}
