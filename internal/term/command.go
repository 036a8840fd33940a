package term

// Param is a named, sorted function parameter.
type Param struct {
	Name string
	Sort Sort
}

// Command is one top-level SyGuS command. The set of implementations is
// closed; consumers switch over the concrete types.
type Command interface {
	command()
}

type SetLogic struct {
	Logic string
}

type DefineSort struct {
	Name string
	Sort Sort
}

type DeclareVar struct {
	Name string
	Sort Sort
}

type DeclareFun struct {
	Name   string
	Params []Sort
	Sort   Sort
}

type DefineFun struct {
	Name   string
	Params []Param
	Sort   Sort
	Body   *Expr
}

type SynthFun struct {
	Name   string
	Params []Param
	Sort   Sort
	Rules  []*GenRule
}

type Constraint struct {
	Expr *Expr
}

type CheckSynth struct{}

// Option is one `(symbol "string")` pair of set-options.
type Option struct {
	Name  string
	Value string
}

type SetOptions struct {
	Options []Option
}

func (*SetLogic) command()   {}
func (*DefineSort) command() {}
func (*DeclareVar) command() {}
func (*DeclareFun) command() {}
func (*DefineFun) command()  {}
func (*SynthFun) command()   {}
func (*Constraint) command() {}
func (*CheckSynth) command() {}
func (*SetOptions) command() {}

// Problem is the raw command list produced by the parser.
type Problem struct {
	Commands []Command
}
