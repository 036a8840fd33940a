package resolver

import (
	"errors"
	"fmt"
)

// ErrorKind classifies setup failures found while resolving a problem.
type ErrorKind int

const (
	UnknownSort ErrorKind = iota + 1
	DuplicateSymbol
	TypeMismatch
	MissingStartSymbol
	StartSortMismatch
	ProductionSortMismatch
	NonBooleanConstraint
	UnsupportedLogic
	MultipleSynthTargets
	UnknownFunction
	LetSortMismatch
	NoSynthTarget
)

var kindNames = map[ErrorKind]string{
	UnknownSort:            "UnknownSort",
	DuplicateSymbol:        "DuplicateSymbol",
	TypeMismatch:           "TypeMismatch",
	MissingStartSymbol:     "MissingStartSymbol",
	StartSortMismatch:      "StartSortMismatch",
	ProductionSortMismatch: "ProductionSortMismatch",
	NonBooleanConstraint:   "NonBooleanConstraint",
	UnsupportedLogic:       "UnsupportedLogic",
	MultipleSynthTargets:   "MultipleSynthTargets",
	UnknownFunction:        "UnknownFunction",
	LetSortMismatch:        "LetSortMismatch",
	NoSynthTarget:          "NoSynthTarget",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// SetupError aborts resolution. Command names the offending command, e.g.
// "synth-fun max2".
type SetupError struct {
	Kind    ErrorKind
	Command string
	Detail  string
}

func (e *SetupError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", e.Command, e.Kind, e.Detail)
}

// KindOf extracts the ErrorKind of a wrapped *SetupError.
func KindOf(err error) (ErrorKind, bool) {
	var se *SetupError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}
