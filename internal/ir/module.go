package ir

import "github.com/google/uuid"

// Global is a module-scope variable: a scalar or array, optionally
// const, with a flattened initializer list (spec.md §3's GlobalVar
// entity; zero-fill for any elements past len(Init)).
type Global struct {
	valueBase
	Name    string
	Const   bool
	Init    []int32 // length <= ElemType().Size()/4; remaining elements are zero
	StrData []byte  // non-nil for a printf literal segment: asmprint emits .asciiz instead of .word
}

func NewGlobal(name string, typ Type, isConst bool, init []int32) *Global {
	return &Global{
		valueBase: valueBase{typ: PointerTo(typ)},
		Name:      name,
		Const:     isConst,
		Init:      init,
	}
}

// ElemType is the pointed-to type (the variable's actual declared
// type; ValueType() is always a pointer since a global is used as an
// address).
func (g *Global) ElemType() Type {
	return *g.ValueType().Elem
}

// Module is the whole compiland: every global, every function
// (including intrinsics), and the pipeline-wide Changed flag spec.md
// §5 uses to drive the fixpoint optimizer loop.
type Module struct {
	Globals    []*Global
	Funcs      []*Function
	Strings    []*StringConst // deduplicated printf string payloads, turned into .asciiz globals by internal/mir/lower
	Intrinsics map[string]*Function
	BuildID    string
	Changed    bool

	nextValueID int
}

func NewModule() *Module {
	m := &Module{
		Intrinsics: make(map[string]*Function),
		BuildID:    uuid.NewString(),
	}
	m.declareIntrinsics()
	return m
}

func (m *Module) declareIntrinsics() {
	add := func(name string, ret Type, params []Type, variadic bool) {
		ps := make([]*Param, len(params))
		for i, t := range params {
			ps[i] = NewParam("", t)
		}
		fn := NewFunction(name, ret, ps)
		fn.Intrinsic = true
		fn.Variadic = variadic
		m.Intrinsics[name] = fn
	}
	add("getint", Int32, nil, false)
	add("putint", Void, []Type{Int32}, false)
	add("putch", Void, []Type{Int32}, false)
	add("putstr", Void, []Type{PointerTo(Int32)}, false)
	add("printf", Void, []Type{PointerTo(Int32)}, true)
}

func (m *Module) AddFunc(fn *Function) {
	m.Funcs = append(m.Funcs, fn)
}

func (m *Module) AddGlobal(g *Global) {
	m.Globals = append(m.Globals, g)
}

// FindFunc looks up a user-defined function by name (not an
// intrinsic); used by the builder when resolving a call's callee.
func (m *Module) FindFunc(name string) *Function {
	for _, fn := range m.Funcs {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// NextID hands out a module-wide-unique small integer, used to name
// virtual registers and temporaries during printing and lowering; it
// does not participate in value identity or hashing (spec.md §4.5's
// LVN keys on structural content, never on id).
func (m *Module) NextID() int {
	m.nextValueID++
	return m.nextValueID
}

// InternString deduplicates identical string payloads across printf
// call sites into a single Global (spec.md §4.1).
func (m *Module) InternString(data []byte) *StringConst {
	sc := NewStringConst(data)
	for _, existing := range m.Strings {
		if string(existing.Data) == string(sc.Data) {
			return existing
		}
	}
	m.Strings = append(m.Strings, sc)
	return sc
}
