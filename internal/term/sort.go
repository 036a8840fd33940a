package term

import (
	"fmt"
	"strings"
)

// SortKind distinguishes the built-in sorts from named aliases.
type SortKind int

const (
	SortNone SortKind = iota
	SortInt
	SortBool
	SortAlias
)

// Sort is Int, Bool or a named alias. The zero value is the unresolved sort.
type Sort struct {
	Kind SortKind
	Name string // alias name, only set for SortAlias
}

var (
	None = Sort{}
	Int  = Sort{Kind: SortInt}
	Bool = Sort{Kind: SortBool}
)

// Alias returns a named sort reference that still has to be looked up.
func Alias(name string) Sort {
	return Sort{Kind: SortAlias, Name: name}
}

// SortNamed maps surface spelling to a Sort. Anything that is not a
// built-in sort name is treated as an alias.
func SortNamed(name string) Sort {
	switch name {
	case "Int":
		return Int
	case "Bool":
		return Bool
	default:
		return Alias(name)
	}
}

// Resolved reports whether s is one of the built-in sorts.
func (s Sort) Resolved() bool {
	return s.Kind == SortInt || s.Kind == SortBool
}

func (s Sort) String() string {
	switch s.Kind {
	case SortInt:
		return "Int"
	case SortBool:
		return "Bool"
	case SortAlias:
		return s.Name
	default:
		return "?"
	}
}

// FuncDet is the overload-resolution key of a function: its name and the
// ordered sorts of its parameters.
type FuncDet struct {
	Name   string
	Params []Sort
}

// Key is a comparable rendering of the determinant, usable as a map key.
func (d FuncDet) Key() string {
	var sb strings.Builder
	sb.WriteString(d.Name)
	sb.WriteByte('(')
	for i, p := range d.Params {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(p.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

func (d FuncDet) String() string {
	names := make([]string, len(d.Params))
	for i, p := range d.Params {
		names[i] = p.String()
	}
	return fmt.Sprintf("%s (%s)", d.Name, strings.Join(names, " "))
}
