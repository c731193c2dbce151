package ir

import "testing"

// buildAddOne builds: func @f(i32 %x) -> i32 { bb0: %t = add %x, 1; ret %t }
func buildAddOne() (*Function, *Instruction) {
	x := NewParam("x", Int32)
	fn := NewFunction("f", Int32, []*Param{x})
	bb := fn.NewBlock("entry")
	add := bb.Append(NewBinOp(OpAdd, x, NewConst(1)))
	bb.Append(NewRet(add))
	return fn, add
}

func TestBuildAndUseList(t *testing.T) {
	_, add := buildAddOne()
	if len(add.Operands) != 2 {
		t.Fatalf("want 2 operands, got %d", len(add.Operands))
	}
	if len(add.UseList()) != 1 {
		t.Fatalf("add should be used once (by ret), got %d", len(add.UseList()))
	}
}

func TestReplaceAllUsesWith(t *testing.T) {
	fn, add := buildAddOne()
	c := NewConst(42)
	add.ReplaceAllUsesWith(c)
	ret := fn.Entry().Insts[1]
	if ret.Operand(0) != Value(c) {
		t.Fatalf("ret should now read the replacement const")
	}
	if len(add.UseList()) != 0 {
		t.Fatalf("add should have no uses left, got %d", len(add.UseList()))
	}
}

func TestSetOperandMaintainsUseList(t *testing.T) {
	x := NewParam("x", Int32)
	y := NewParam("y", Int32)
	add := NewBinOp(OpAdd, x, NewConst(0))
	if len(x.UseList()) != 1 {
		t.Fatalf("x should have 1 use")
	}
	add.SetOperand(0, y)
	if len(x.UseList()) != 0 {
		t.Fatalf("x should have 0 uses after SetOperand, got %d", len(x.UseList()))
	}
	if len(y.UseList()) != 1 {
		t.Fatalf("y should have 1 use after SetOperand, got %d", len(y.UseList()))
	}
}

func TestRebuildCFG(t *testing.T) {
	x := NewParam("x", Int32)
	fn := NewFunction("f", Int32, []*Param{x})
	entry := fn.NewBlock("entry")
	then := fn.NewBlock("then")
	els := fn.NewBlock("else")
	join := fn.NewBlock("join")

	cond := entry.Append(NewIcmp(CondNe, x, ConstZero))
	entry.Append(NewCondBr(cond, then, els))
	then.Append(NewBr(join))
	els.Append(NewBr(join))
	phi := NewPhi(Int32)
	phi.AddIncoming(then, NewConst(1))
	phi.AddIncoming(els, NewConst(2))
	join.Append(phi)
	join.Append(NewRet(phi))

	RebuildCFG(fn)

	if len(entry.Succs) != 2 {
		t.Fatalf("entry should have 2 successors, got %d", len(entry.Succs))
	}
	if len(join.Preds) != 2 {
		t.Fatalf("join should have 2 predecessors, got %d", len(join.Preds))
	}
	if v, ok := phi.IncomingFor(then); !ok || v.(*Const).Val != 1 {
		t.Fatalf("phi incoming from then should be 1")
	}
}

func TestGetElementPtrElemType(t *testing.T) {
	arrTy := ArrayOf(Int32, 10)
	base := NewAlloca(arrTy)
	gep := NewGetElementPtr(base, []Value{NewConst(0), NewConst(3)}, "a")
	if gep.ValueType().Kind != TPointer || gep.ValueType().Elem.Kind != TInt32 {
		t.Fatalf("gep of [10 x i32]* indexed twice should yield i32*, got %s", gep.ValueType())
	}
}
