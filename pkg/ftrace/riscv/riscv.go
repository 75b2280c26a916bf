// Package riscv decodes the RV64 control-transfer instructions the tracer
// reacts to: jal and jalr.
package riscv

// NumRegs is the size of the integer register file passed by the emulator.
const NumRegs = 32

// Register indices used by the calling convention.
const (
	RegZero = 0
	RegRA   = 1
	RegA0   = 10
	RegA1   = 11
	RegA7   = 17
)

const (
	opcodeJAL  = 0b1101111
	opcodeJALR = 0b1100111
)

// Kind classifies a decoded control transfer.
type Kind int

const (
	// Jump is any jal/jalr that is not a function return.
	Jump Kind = iota
	// Return is `jalr x0, 0(ra)` and friends: rs1 == ra, rd == zero.
	Return
)

func (k Kind) String() string {
	if k == Return {
		return "return"
	}
	return "jump"
}

// Transfer is a decoded jal/jalr.
type Transfer struct {
	Kind   Kind
	Target uint64
	Rd     uint32
	Rs1    uint32
}

// Decode inspects inst executed at pc. ok is false for instructions that do
// not transfer control, and for jalr when regs is nil.
func Decode(pc uint64, inst uint32, regs *[NumRegs]uint64) (t Transfer, ok bool) {
	rd := uint32(Bits(uint64(inst), 11, 7))
	rs1 := uint32(Bits(uint64(inst), 19, 15))

	switch {
	case inst&0x7f == opcodeJAL:
		t = Transfer{Kind: Jump, Target: pc + ImmJ(inst), Rd: rd}
	case inst&0x7f == opcodeJALR && Bits(uint64(inst), 14, 12) == 0:
		if regs == nil {
			return Transfer{}, false
		}
		t = Transfer{
			Kind:   Jump,
			Target: (regs[rs1] + ImmI(inst)) &^ 1,
			Rd:     rd,
			Rs1:    rs1,
		}
		if rs1 == RegRA && rd == RegZero {
			t.Kind = Return
		}
	default:
		return Transfer{}, false
	}
	return t, true
}

// Bits extracts value[hi:lo] inclusive. Out-of-range requests yield 0.
func Bits(value uint64, hi, lo uint) uint64 {
	if hi < lo || hi > 63 {
		return 0
	}
	width := hi - lo + 1
	if width == 64 {
		return value
	}
	return (value >> lo) & (1<<width - 1)
}

// SignExtend treats the low width bits of value as a two's complement
// number and extends it to 64 bits. Widths outside 1..64 return value.
func SignExtend(value uint64, width uint) uint64 {
	if width == 0 || width >= 64 {
		return value
	}
	shift := 64 - width
	return uint64(int64(value<<shift) >> shift)
}

// ImmI returns the sign-extended I-type immediate.
func ImmI(inst uint32) uint64 {
	return SignExtend(Bits(uint64(inst), 31, 20), 12)
}

// ImmJ returns the sign-extended J-type immediate.
func ImmJ(inst uint32) uint64 {
	i := uint64(inst)
	imm := Bits(i, 31, 31)<<20 |
		Bits(i, 19, 12)<<12 |
		Bits(i, 20, 20)<<11 |
		Bits(i, 30, 21)<<1
	return SignExtend(imm, 21)
}
