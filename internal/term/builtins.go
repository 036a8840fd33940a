package term

// Builtin is the signature of an internal operator.
type Builtin struct {
	Det    FuncDet
	Result Sort
}

// Builtins lists the fixed internal operators with every accepted overload.
var Builtins = []Builtin{
	{FuncDet{"+", []Sort{Int, Int}}, Int},
	{FuncDet{"-", []Sort{Int, Int}}, Int},
	{FuncDet{"*", []Sort{Int, Int}}, Int},
	{FuncDet{"/", []Sort{Int, Int}}, Int},
	{FuncDet{"mod", []Sort{Int, Int}}, Int},
	{FuncDet{">", []Sort{Int, Int}}, Bool},
	{FuncDet{">=", []Sort{Int, Int}}, Bool},
	{FuncDet{"<", []Sort{Int, Int}}, Bool},
	{FuncDet{"<=", []Sort{Int, Int}}, Bool},
	{FuncDet{"=", []Sort{Int, Int}}, Bool},
	{FuncDet{"=", []Sort{Bool, Bool}}, Bool},
	{FuncDet{"and", []Sort{Bool, Bool}}, Bool},
	{FuncDet{"or", []Sort{Bool, Bool}}, Bool},
	{FuncDet{"=>", []Sort{Bool, Bool}}, Bool},
	{FuncDet{"not", []Sort{Bool}}, Bool},
	{FuncDet{"ite", []Sort{Bool, Int, Int}}, Int},
	{FuncDet{"ite", []Sort{Bool, Bool, Bool}}, Bool},
}

var builtinNames = func() map[string]bool {
	m := make(map[string]bool)
	for _, b := range Builtins {
		m[b.Det.Name] = true
	}
	return m
}()

// IsBuiltin reports whether name is one of the internal operator names.
func IsBuiltin(name string) bool {
	return builtinNames[name]
}
