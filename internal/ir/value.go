package ir

// Value is any SSA value: a literal, a virtual register produced by
// an instruction, a basic block label, a global, or a function.
// spec.md §3's Use invariant (I2) is enforced through addUse/removeUse,
// which only this package's concrete Value types implement.
type Value interface {
	ValueID() int
	ValueType() Type
	UseList() []*Use
	addUse(u *Use)
	removeUse(u *Use)
}

type valueBase struct {
	id   int
	typ  Type
	uses []*Use
}

func (v *valueBase) ValueID() int      { return v.id }
func (v *valueBase) ValueType() Type   { return v.typ }
func (v *valueBase) UseList() []*Use   { return v.uses }

func (v *valueBase) addUse(u *Use) {
	v.uses = append(v.uses, u)
}

func (v *valueBase) removeUse(u *Use) {
	for i, x := range v.uses {
		if x == u {
			v.uses = append(v.uses[:i], v.uses[i+1:]...)
			return
		}
	}
}

// Use is a directed operand edge from User (always an instruction) to
// Value at operand position Index. Every Use appears in exactly one
// Value's use-list (spec.md §3 I2); SetOperand keeps both sides in
// lock-step.
type Use struct {
	User  *Instruction
	Value Value
	Index int
}

func newUse(user *Instruction, index int, val Value) *Use {
	u := &Use{User: user, Index: index}
	if val != nil {
		u.Value = val
		val.addUse(u)
	}
	return u
}

// Set replaces this use's referent, maintaining I2 on both ends.
func (u *Use) Set(val Value) {
	if u.Value != nil {
		u.Value.removeUse(u)
	}
	u.Value = val
	if val != nil {
		val.addUse(u)
	}
}

// Const is an immediate 32-bit integer literal; immutable once built.
type Const struct {
	valueBase
	Val int32
}

func NewConst(v int32) *Const {
	return &Const{valueBase: valueBase{id: -1, typ: Int32}, Val: v}
}

// ConstZero is shared for mem2reg's "no reaching definition" default
// (spec.md §4.3 step 3).
var ConstZero = NewConst(0)

// StringConst is a compile-time string payload, materialized as a
// Global with a TArray-of-i32(byte) init rather than used directly as
// an operand (spec.md §4.1: long printf segments become global ASCII
// arrays).
type StringConst struct {
	valueBase
	Data []byte // includes trailing NUL
}

func NewStringConst(data []byte) *StringConst {
	d := append([]byte(nil), data...)
	if len(d) == 0 || d[len(d)-1] != 0 {
		d = append(d, 0)
	}
	return &StringConst{
		valueBase: valueBase{id: -1, typ: ArrayOf(Int32, len(d))},
		Data:      d,
	}
}
