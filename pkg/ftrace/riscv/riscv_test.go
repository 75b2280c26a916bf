package riscv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJAL(t *testing.T) {
	var regs [NumRegs]uint64

	cases := []struct {
		name   string
		pc     uint64
		inst   uint32
		target uint64
		rd     uint32
	}{
		{"backward call", 0x8000_0400, 0xc81ff0ef, 0x8000_0080, RegRA},
		{"forward call", 0x8000_0000, 0x040000ef, 0x8000_0040, RegRA},
		{"short backward", 0x8000_0100, 0xfc1ff0ef, 0x8000_00c0, RegRA},
		{"plain jump bit 11", 0x8000_0000, 0x0010006f, 0x8000_0800, RegZero},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr, ok := Decode(tc.pc, tc.inst, &regs)
			require.True(t, ok)
			assert.Equal(t, Jump, tr.Kind)
			assert.Equal(t, tc.target, tr.Target)
			assert.Equal(t, tc.rd, tr.Rd)
		})
	}
}

func TestDecodeJALR(t *testing.T) {
	var regs [NumRegs]uint64
	regs[15] = 0x8000_1001
	regs[RegRA] = 0x8000_0204

	// jalr ra, 0(a5): low bit of the target is cleared.
	tr, ok := Decode(0x8000_0000, 0x000780e7, &regs)
	require.True(t, ok)
	assert.Equal(t, Jump, tr.Kind)
	assert.Equal(t, uint64(0x8000_1000), tr.Target)
	assert.Equal(t, uint32(15), tr.Rs1)

	// jalr ra, -8(a5)
	tr, ok = Decode(0x8000_0000, 0xff8780e7, &regs)
	require.True(t, ok)
	assert.Equal(t, uint64(0x8000_0ff8), tr.Target)

	// ret
	tr, ok = Decode(0x8000_0300, 0x00008067, &regs)
	require.True(t, ok)
	assert.Equal(t, Return, tr.Kind)
	assert.Equal(t, uint64(0x8000_0204), tr.Target)
}

func TestDecodeWithoutRegisters(t *testing.T) {
	_, ok := Decode(0x1000, 0x000080e7, nil)
	assert.False(t, ok)

	tr, ok := Decode(0x1000, 0x008000ef, nil)
	require.True(t, ok)
	assert.Equal(t, uint64(0x1008), tr.Target)
}

func TestDecodeIgnoresOtherInstructions(t *testing.T) {
	var regs [NumRegs]uint64
	for _, inst := range []uint32{
		0x00000013, // nop
		0x00b50533, // add a0, a0, a1
		0x00f71463, // bne
		0x000790e7, // jalr with funct3 != 0
	} {
		_, ok := Decode(0, inst, &regs)
		assert.False(t, ok, "inst 0x%08x", inst)
	}
}

func TestBits(t *testing.T) {
	assert.Equal(t, uint64(0b101), Bits(0b1010, 3, 1))
	assert.Equal(t, uint64(1), Bits(1<<63, 63, 63))
	assert.Equal(t, ^uint64(0), Bits(^uint64(0), 63, 0))
	assert.Zero(t, Bits(0xff, 1, 2))
	assert.Zero(t, Bits(0xff, 64, 0))
}

func TestSignExtend(t *testing.T) {
	assert.Equal(t, uint64(0x7ff), SignExtend(0x7ff, 12))
	assert.Equal(t, ^uint64(0), SignExtend(0xfff, 12))
	assert.Equal(t, uint64(0xffff_ffff_ffff_f800), SignExtend(0x800, 12))
	assert.Equal(t, uint64(0x1234), SignExtend(0x1234, 64))
	assert.Equal(t, uint64(0x1234), SignExtend(0x1234, 0))
}

func TestImmediates(t *testing.T) {
	assert.Equal(t, uint64(0xffff_ffff_ffff_fc80), ImmJ(0xc81ff0ef))
	assert.Equal(t, uint64(0x40), ImmJ(0x040000ef))
	assert.Equal(t, uint64(0xffff_ffff_ffff_fff8), ImmI(0xff8780e7))
	assert.Zero(t, ImmI(0x00008067))
}
