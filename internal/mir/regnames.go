package mir

// Physical register numbers, the standard MIPS-32 calling-convention
// layout. AllocatablePool is the 18-register pool spec.md §4.13 hands to
// Chaitin-Briggs ($t0-$t9, $s0-$s7); everything else is either
// reserved ($zero, $at, $gp, $sp, $fp, $ra, $k0-$k1) or a fixed
// calling-convention slot the lowering pass targets directly ($a0-$a3,
// $v0-$v1).
const (
	RegZero = 0
	RegAt   = 1
	RegV0   = 2
	RegV1   = 3
	RegA0   = 4
	RegA1   = 5
	RegA2   = 6
	RegA3   = 7
	RegT0   = 8
	RegT1   = 9
	RegT2   = 10
	RegT3   = 11
	RegT4   = 12
	RegT5   = 13
	RegT6   = 14
	RegT7   = 15
	RegS0   = 16
	RegS1   = 17
	RegS2   = 18
	RegS3   = 19
	RegS4   = 20
	RegS5   = 21
	RegS6   = 22
	RegS7   = 23
	RegT8   = 24
	RegT9   = 25
	RegK0   = 26
	RegK1   = 27
	RegGp   = 28
	RegSp   = 29
	RegFp   = 30
	RegRa   = 31
)

var regNames = [32]string{
	"zero", "at", "v0", "v1", "a0", "a1", "a2", "a3",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
	"t8", "t9", "k0", "k1", "gp", "sp", "fp", "ra",
}

// RegName renders a physical register number as its $-prefixed MIPS
// assembler name.
func RegName(num int) string {
	if num < 0 || num >= len(regNames) {
		return "?"
	}
	return "$" + regNames[num]
}

// AllocatablePool is the register set the allocator may assign a
// virtual register to, in the teacher's preference order (caller-saved
// temporaries first, since most SysY functions are leaves or call only
// a handful of times; callee-saved last since using one forces a
// save/restore pair in the prologue/epilogue).
var AllocatablePool = []int{
	RegT0, RegT1, RegT2, RegT3, RegT4, RegT5, RegT6, RegT7, RegT8, RegT9,
	RegS0, RegS1, RegS2, RegS3, RegS4, RegS5, RegS6, RegS7,
}

// IsCalleeSaved reports whether num must be preserved across a call
// (spec.md §4.13's prologue/epilogue save/restore step).
func IsCalleeSaved(num int) bool {
	return num >= RegS0 && num <= RegS7
}

// ArgRegs is the first four argument words; beyond that, lowerCall
// (lower/instr.go) stores outgoing arguments at 0($sp), 4($sp), ... in
// the caller's frame.
var ArgRegs = []int{RegA0, RegA1, RegA2, RegA3}
