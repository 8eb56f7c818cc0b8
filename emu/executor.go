package emu

import (
	"fmt"
	"math/bits"

	"github.com/sarchlab/vcore/tcg"
)

// ExecResult reports how a block finished.
type ExecResult struct {
	// Faulted is true when the block was abandoned because the target
	// delivered an exception.
	Faulted bool

	// Ops is the number of micro-ops executed.
	Ops int
}

// Executor interprets micro-op blocks. It stands in for a host code
// generator and holds no state between blocks.
type Executor struct {
	temps [tcg.NumTemps]uint64
}

// NewExecutor creates an Executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Exec runs b against t until the block leaves or faults.
func (x *Executor) Exec(b *tcg.Block, t tcg.Target) ExecResult {
	x.temps = [tcg.NumTemps]uint64{}
	ops := b.Ops
	n := 0

	for i := 0; i < len(ops); i++ {
		op := &ops[i]
		n++

		switch op.Code {
		case tcg.OpNop, tcg.OpSetLabel:
		case tcg.OpMovi:
			x.temps[op.Dst] = op.Imm
		case tcg.OpMov:
			x.temps[op.Dst] = x.temps[op.Src1]
		case tcg.OpLoadReg:
			x.temps[op.Dst] = t.Reg(op.Reg)
		case tcg.OpStoreReg:
			t.SetReg(op.Reg, x.temps[op.Src1])
		case tcg.OpAdd, tcg.OpSub:
			v, overflow := addSub(op.Code, op.Width, x.temps[op.Src1], x.temps[op.Src2])
			if op.Trap && overflow {
				t.Raise(op.Imm2, 0)
				return ExecResult{Faulted: true, Ops: n}
			}

			x.temps[op.Dst] = v
		case tcg.OpAnd, tcg.OpOr, tcg.OpXor, tcg.OpNor,
			tcg.OpShl, tcg.OpShr, tcg.OpSar, tcg.OpRotr:
			x.temps[op.Dst] = logic(op.Code, op.Width, x.temps[op.Src1], x.temps[op.Src2])
		case tcg.OpSetEq, tcg.OpSetNe, tcg.OpSetLt, tcg.OpSetLtu, tcg.OpSetGe, tcg.OpSetGeu:
			x.temps[op.Dst] = compare(op.Code, x.temps[op.Src1], x.temps[op.Src2])
		case tcg.OpExt:
			x.temps[op.Dst] = signExtend(x.temps[op.Src1], op.Width)
		case tcg.OpZext:
			x.temps[op.Dst] = zeroExtend(x.temps[op.Src1], op.Width)
		case tcg.OpLoad:
			v, ok := t.Load(x.temps[op.Src1], int(op.Width), op.Signed, int(op.MemIdx))
			if !ok {
				return ExecResult{Faulted: true, Ops: n}
			}

			x.temps[op.Dst] = v
		case tcg.OpStore:
			if !t.Store(x.temps[op.Src1], int(op.Width), x.temps[op.Src2], int(op.MemIdx)) {
				return ExecResult{Faulted: true, Ops: n}
			}
		case tcg.OpBrCond:
			if (x.temps[op.Src1] != 0) != op.Negate {
				i = findLabel(ops, i, op.Label)
			}
		case tcg.OpCall:
			v, ok := t.Call(op.Helper, x.temps[op.Src1], x.temps[op.Src2], op.Imm, op.Imm2)
			if !ok {
				return ExecResult{Faulted: true, Ops: n}
			}

			x.temps[op.Dst] = v
		case tcg.OpRaise:
			t.Raise(op.Imm, op.Imm2)
			return ExecResult{Faulted: true, Ops: n}
		case tcg.OpDebug:
			t.Debug()
			return ExecResult{Faulted: true, Ops: n}
		case tcg.OpGotoTB:
			t.SetPC(op.Imm)
			return ExecResult{Ops: n}
		case tcg.OpExitTB:
			return ExecResult{Ops: n}
		default:
			panic(fmt.Sprintf("emu: unknown micro-op %v in block at 0x%x", op.Code, b.PC))
		}
	}

	return ExecResult{Ops: n}
}

// findLabel returns the index of the SetLabel op for label l. Labels are
// always bound after the branches that use them.
func findLabel(ops []tcg.Op, from, l int) int {
	for j := from + 1; j < len(ops); j++ {
		if ops[j].Code == tcg.OpSetLabel && ops[j].Label == l {
			return j
		}
	}

	panic(fmt.Sprintf("emu: label L%d is not bound after op %d", l, from))
}

func addSub(code tcg.Opcode, width uint8, a, b uint64) (uint64, bool) {
	if width == 32 {
		x, y := int32(a), int32(b)

		var r int32
		if code == tcg.OpAdd {
			r = x + y
			return uint64(int64(r)), (x >= 0) == (y >= 0) && (r >= 0) != (x >= 0)
		}

		r = x - y

		return uint64(int64(r)), (x >= 0) != (y >= 0) && (r >= 0) != (x >= 0)
	}

	x, y := int64(a), int64(b)

	var r int64
	if code == tcg.OpAdd {
		r = x + y
		return uint64(r), (x >= 0) == (y >= 0) && (r >= 0) != (x >= 0)
	}

	r = x - y

	return uint64(r), (x >= 0) != (y >= 0) && (r >= 0) != (x >= 0)
}

func logic(code tcg.Opcode, width uint8, a, b uint64) uint64 {
	if width == 32 {
		x, y := uint32(a), uint32(b)
		n := y & 31

		var r uint32

		switch code {
		case tcg.OpAnd:
			r = x & y
		case tcg.OpOr:
			r = x | y
		case tcg.OpXor:
			r = x ^ y
		case tcg.OpNor:
			r = ^(x | y)
		case tcg.OpShl:
			r = x << n
		case tcg.OpShr:
			r = x >> n
		case tcg.OpSar:
			r = uint32(int32(x) >> n)
		case tcg.OpRotr:
			r = bits.RotateLeft32(x, -int(n))
		}

		return uint64(int64(int32(r)))
	}

	n := b & 63

	switch code {
	case tcg.OpAnd:
		return a & b
	case tcg.OpOr:
		return a | b
	case tcg.OpXor:
		return a ^ b
	case tcg.OpNor:
		return ^(a | b)
	case tcg.OpShl:
		return a << n
	case tcg.OpShr:
		return a >> n
	case tcg.OpSar:
		return uint64(int64(a) >> n)
	case tcg.OpRotr:
		return bits.RotateLeft64(a, -int(n))
	}

	return 0
}

func compare(code tcg.Opcode, a, b uint64) uint64 {
	var r bool

	switch code {
	case tcg.OpSetEq:
		r = a == b
	case tcg.OpSetNe:
		r = a != b
	case tcg.OpSetLt:
		r = int64(a) < int64(b)
	case tcg.OpSetLtu:
		r = a < b
	case tcg.OpSetGe:
		r = int64(a) >= int64(b)
	case tcg.OpSetGeu:
		r = a >= b
	}

	if r {
		return 1
	}

	return 0
}

func signExtend(v uint64, width uint8) uint64 {
	if width >= 64 {
		return v
	}

	shift := 64 - uint(width)

	return uint64(int64(v<<shift) >> shift)
}

func zeroExtend(v uint64, width uint8) uint64 {
	if width >= 64 {
		return v
	}

	return v & (uint64(1)<<width - 1)
}
