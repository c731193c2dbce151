package opt

import "sysyc/internal/mir"

// StrengthReduce rewrites a multiply, divide, or remainder by a
// compile-time constant into a shift/add/sub sequence (spec.md
// §4.11): a power-of-two constant reduces to a single shift (with the
// textbook rounding-toward-zero correction for signed division); any
// other constant multiply reduces to a shift-and-add/sub chain over
// the constant's canonical signed-digit (NAF) representation -- the
// "Booth-style two-bit signed-difference pattern" spec.md names, since
// a run of set bits collapses to one subtraction instead of one
// addition per bit; any other constant divide or remainder reduces via
// a Granlund-Montgomery "magic number" signed multiply-high sequence.
// Division by a non-constant operand is untouched and reaches
// internal/asmprint as the plain div/rem pseudo-op.
func StrengthReduce(mf *mir.MFunction) bool {
	changed := false
	for _, b := range mf.Blocks {
		var out []*mir.MInstruction
		for _, in := range b.Insts {
			reduced := reduceOne(mf, in)
			if reduced == nil {
				out = append(out, in)
				continue
			}
			out = append(out, reduced...)
			changed = true
		}
		b.Insts = out
	}
	return changed
}

func reduceOne(mf *mir.MFunction, in *mir.MInstruction) []*mir.MInstruction {
	if in.Op != mir.MMul && in.Op != mir.MDiv && in.Op != mir.MRem {
		return nil
	}
	if len(in.Operands) != 3 || in.Operands[2].Kind != mir.OImm {
		return nil
	}
	c := in.Operands[2].Imm
	dst := in.Operands[0].Reg
	rs := in.Operands[1]

	switch in.Op {
	case mir.MMul:
		return mulByConst(mf, dst, rs, c)
	case mir.MDiv:
		if k, neg, ok := pow2Info(c); ok {
			return divPow2Signed(mf, dst, rs, k, neg)
		}
		return divByConst(mf, dst, rs, c)
	case mir.MRem:
		if k, _, ok := pow2Info(c); ok {
			if k == 0 {
				return []*mir.MInstruction{{Op: mir.MLi, Operands: []mir.Operand{mir.RegOp(dst), mir.ImmOp(0)}}}
			}
			q := mf.NewVReg()
			seq := divPow2(mf, q, rs, k)
			scaled := mf.NewVReg()
			seq = append(seq, &mir.MInstruction{Op: mir.MSll, Operands: []mir.Operand{mir.RegOp(scaled), mir.RegOp(q), mir.ImmOp(int32(k))}})
			seq = append(seq, &mir.MInstruction{Op: mir.MSubu, Operands: []mir.Operand{mir.RegOp(dst), rs, mir.RegOp(scaled)}})
			return seq
		}
		q := mf.NewVReg()
		seq := divByConst(mf, q, rs, c)
		scaled := mf.NewVReg()
		seq = append(seq, mulByConst(mf, scaled, mir.RegOp(q), c)...)
		seq = append(seq, &mir.MInstruction{Op: mir.MSubu, Operands: []mir.Operand{mir.RegOp(dst), rs, mir.RegOp(scaled)}})
		return seq
	}
	return nil
}

// zeroOp is the $zero physical register as a source operand.
func zeroOp() mir.Operand { return mir.RegOp(mir.Phys(mir.RegZero)) }

// pow2Info reports whether |c| is a power of two (c itself may be
// negative), returning the shift amount and c's sign. The
// Granlund-Montgomery magic-number algorithm below is only valid for
// divisors that are not a power of two (in either sign), so every
// caller must route those through the shift-based path instead.
func pow2Info(c int32) (k int, neg bool, ok bool) {
	if c == 0 {
		return 0, false, false
	}
	mag := c
	neg = c < 0
	if neg {
		mag = -c
	}
	k, ok = log2(mag)
	return k, neg, ok
}

// log2 reports k such that c == 2^k, for c > 0.
func log2(c int32) (int, bool) {
	if c <= 0 {
		return 0, false
	}
	k := 0
	for c > 1 {
		if c&1 != 0 {
			return 0, false
		}
		c >>= 1
		k++
	}
	return k, true
}

// divPow2 emits the standard rounding-toward-zero signed division by
// 2^k: add (2^k-1) to rs when rs is negative, then arithmetic-shift
// right by k.
//
//	t0 = rs >> 31          (all-ones if negative, else 0)
//	t1 = t0 >>> (32-k)     (the low k bits of t0, i.e. 2^k-1 or 0)
//	t2 = rs + t1
//	dst = t2 >> k          (arithmetic)
func divPow2(mf *mir.MFunction, dst mir.Reg, rs mir.Operand, k int) []*mir.MInstruction {
	sign := mf.NewVReg()
	bias := mf.NewVReg()
	biased := mf.NewVReg()
	return []*mir.MInstruction{
		{Op: mir.MSra, Operands: []mir.Operand{mir.RegOp(sign), rs, mir.ImmOp(31)}},
		{Op: mir.MSrl, Operands: []mir.Operand{mir.RegOp(bias), mir.RegOp(sign), mir.ImmOp(int32(32 - k))}},
		{Op: mir.MAddu, Operands: []mir.Operand{mir.RegOp(biased), rs, mir.RegOp(bias)}},
		{Op: mir.MSra, Operands: []mir.Operand{mir.RegOp(dst), mir.RegOp(biased), mir.ImmOp(int32(k))}},
	}
}

// divPow2Signed is divPow2 generalized to a divisor whose magnitude is
// 2^k but whose sign may be negative: n/(-d) == -(n/d) for
// truncating division, so it divides by the magnitude and negates.
func divPow2Signed(mf *mir.MFunction, dst mir.Reg, rs mir.Operand, k int, neg bool) []*mir.MInstruction {
	if k == 0 {
		if !neg {
			return []*mir.MInstruction{{Op: mir.MMove, Operands: []mir.Operand{mir.RegOp(dst), rs}}}
		}
		return []*mir.MInstruction{{Op: mir.MSubu, Operands: []mir.Operand{mir.RegOp(dst), zeroOp(), rs}}}
	}
	if !neg {
		return divPow2(mf, dst, rs, k)
	}
	tmp := mf.NewVReg()
	seq := divPow2(mf, tmp, rs, k)
	seq = append(seq, &mir.MInstruction{Op: mir.MSubu, Operands: []mir.Operand{mir.RegOp(dst), zeroOp(), mir.RegOp(tmp)}})
	return seq
}

// nafDigits returns c's non-adjacent-form signed-digit recoding: one
// entry per bit position (LSB first), each in {-1, 0, 1}, with no two
// consecutive nonzero entries. c must be >= 0.
func nafDigits(c int64) []int {
	var digits []int
	for c != 0 {
		if c&1 != 0 {
			d := 2 - int(c&3)
			digits = append(digits, d)
			c -= int64(d)
		} else {
			digits = append(digits, 0)
		}
		c >>= 1
	}
	return digits
}

// mulByConst reduces `rs * c` to a shift-and-add/sub chain over c's
// NAF recoding (spec.md §4.11's Booth-style multiply reduction),
// subsuming the power-of-two case (a single shift) as the one-term
// special case of the same algorithm.
func mulByConst(mf *mir.MFunction, dst mir.Reg, rs mir.Operand, c int32) []*mir.MInstruction {
	switch c {
	case 0:
		return []*mir.MInstruction{{Op: mir.MLi, Operands: []mir.Operand{mir.RegOp(dst), mir.ImmOp(0)}}}
	case 1:
		return []*mir.MInstruction{{Op: mir.MMove, Operands: []mir.Operand{mir.RegOp(dst), rs}}}
	case -1:
		return []*mir.MInstruction{{Op: mir.MSubu, Operands: []mir.Operand{mir.RegOp(dst), zeroOp(), rs}}}
	}
	neg := c < 0
	mag := int64(c)
	if neg {
		mag = -mag
	}
	digits := nafDigits(mag)

	var seq []*mir.MInstruction
	var acc mir.Operand
	haveAcc := false
	for i, d := range digits {
		if d == 0 {
			continue
		}
		term := rs
		if i > 0 {
			sh := mf.NewVReg()
			seq = append(seq, &mir.MInstruction{Op: mir.MSll, Operands: []mir.Operand{mir.RegOp(sh), rs, mir.ImmOp(int32(i))}})
			term = mir.RegOp(sh)
		}
		if !haveAcc {
			if d > 0 {
				acc = term
			} else {
				neg0 := mf.NewVReg()
				seq = append(seq, &mir.MInstruction{Op: mir.MSubu, Operands: []mir.Operand{mir.RegOp(neg0), zeroOp(), term}})
				acc = mir.RegOp(neg0)
			}
			haveAcc = true
			continue
		}
		next := mf.NewVReg()
		if d > 0 {
			seq = append(seq, &mir.MInstruction{Op: mir.MAddu, Operands: []mir.Operand{mir.RegOp(next), acc, term}})
		} else {
			seq = append(seq, &mir.MInstruction{Op: mir.MSubu, Operands: []mir.Operand{mir.RegOp(next), acc, term}})
		}
		acc = mir.RegOp(next)
	}
	if !haveAcc {
		acc = mir.ImmOp(0)
	}
	if neg {
		seq = append(seq, &mir.MInstruction{Op: mir.MSubu, Operands: []mir.Operand{mir.RegOp(dst), zeroOp(), acc}})
	} else {
		seq = append(seq, &mir.MInstruction{Op: mir.MMove, Operands: []mir.Operand{mir.RegOp(dst), acc}})
	}
	return seq
}

// magic computes the Granlund-Montgomery signed-division magic
// multiplier and shift for |d| (the same pair for d and -d), following Hacker's Delight's
// "magic" routine: for every 32-bit n, n/d == (mulhs(M, n) [+ n if M<0])
// >> s, with one more +1 if the shifted result is negative, negated
// again if d < 0. Callers must exclude d in {-1, 0, 1} and any
// power-of-two magnitude -- pow2Info's caller already routes those
// through the shift-based path instead, since this algorithm's anc/ad
// remainder computation assumes ad is not a power of two.
func magic(d int32) (m int32, s int) {
	ad := uint32(d)
	if d < 0 {
		ad = uint32(-d)
	}
	const two31 = uint32(1) << 31
	t := two31
	anc := t - 1 - t%ad
	p := 31
	q1 := two31 / anc
	r1 := two31 - q1*anc
	q2 := two31 / ad
	r2 := two31 - q2*ad
	var delta uint32
	for {
		p++
		q1 *= 2
		r1 *= 2
		if r1 >= anc {
			q1++
			r1 -= anc
		}
		q2 *= 2
		r2 *= 2
		if r2 >= ad {
			q2++
			r2 -= ad
		}
		delta = ad - r2
		if !(q1 < delta || (q1 == delta && r1 == 0)) {
			break
		}
	}
	mag := int32(q2 + 1)
	return mag, p - 32
}

// divByConst emits the magic-number signed-division sequence for a
// non-power-of-two constant divisor (spec.md §4.11):
//
//	q = mulhs(M, n)
//	if M < 0: q = q + n
//	if s > 0: q = q >> s     (arithmetic)
//	q = q + ((unsigned)q >>> 31)
//	if d < 0: q = -q
func divByConst(mf *mir.MFunction, dst mir.Reg, rs mir.Operand, c int32) []*mir.MInstruction {
	m, s := magic(c)
	var seq []*mir.MInstruction

	mReg := mf.NewVReg()
	seq = append(seq, &mir.MInstruction{Op: mir.MLi, Operands: []mir.Operand{mir.RegOp(mReg), mir.ImmOp(m)}})

	hi := mf.NewVReg()
	seq = append(seq, &mir.MInstruction{Op: mir.MMulhs, Operands: []mir.Operand{mir.RegOp(hi), rs, mir.RegOp(mReg)}})
	q := mir.RegOp(hi)

	if m < 0 {
		next := mf.NewVReg()
		seq = append(seq, &mir.MInstruction{Op: mir.MAddu, Operands: []mir.Operand{mir.RegOp(next), q, rs}})
		q = mir.RegOp(next)
	}
	if s > 0 {
		next := mf.NewVReg()
		seq = append(seq, &mir.MInstruction{Op: mir.MSra, Operands: []mir.Operand{mir.RegOp(next), q, mir.ImmOp(int32(s))}})
		q = mir.RegOp(next)
	}
	signBit := mf.NewVReg()
	seq = append(seq, &mir.MInstruction{Op: mir.MSrl, Operands: []mir.Operand{mir.RegOp(signBit), q, mir.ImmOp(31)}})

	if c < 0 {
		corrected := mf.NewVReg()
		seq = append(seq, &mir.MInstruction{Op: mir.MAddu, Operands: []mir.Operand{mir.RegOp(corrected), q, mir.RegOp(signBit)}})
		seq = append(seq, &mir.MInstruction{Op: mir.MSubu, Operands: []mir.Operand{mir.RegOp(dst), zeroOp(), mir.RegOp(corrected)}})
	} else {
		seq = append(seq, &mir.MInstruction{Op: mir.MAddu, Operands: []mir.Operand{mir.RegOp(dst), q, mir.RegOp(signBit)}})
	}
	return seq
}
