// Package insts provides MIPS32/MIPS64 instruction definitions and decoding.
//
// Decoding follows the architecture's nested opcode fields: the major
// opcode in bits [31:26] selects either a complete instruction or one of the
// SPECIAL, REGIMM, SPECIAL2, SPECIAL3, COP0, COP1 and COP1X groups, each of
// which is resolved through further fields (function, rt, rs, fmt, sa). A bit
// pattern that no level maps yields OpReserved. Mode checks (64-bit, Release
// 2, FPU enable) are left to the translator, so the decoder is a pure
// function of the instruction word.
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x24420007) // ADDIU $2, $2, 7
//	fmt.Printf("Op: %v, Rt: %d, Rs: %d, Imm: %d\n", inst.Op, inst.Rt, inst.Rs, inst.SImm())
package insts

import "fmt"

// Reg is a general-purpose register operand. Register 0 is the hard-wired
// zero register: reads yield 0 and writes are discarded, and consumers must
// branch on IsZero rather than rely on array storage.
type Reg uint8

// Zero is the hard-wired zero register.
const Zero Reg = 0

// RA is the link register used by JAL and the branch-and-link family.
const RA Reg = 31

// IsZero reports whether r is the hard-wired zero register.
func (r Reg) IsZero() bool { return r == Zero }

// Index returns the register number.
func (r Reg) Index() int { return int(r) }

func (r Reg) String() string { return fmt.Sprintf("$%d", uint8(r)) }
