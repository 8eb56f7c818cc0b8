package mips

import (
	"github.com/sarchlab/vcore/insts"
	"github.com/sarchlab/vcore/tcg"
)

// genCop0 emits the system control instructions.
func (ctx *disasContext) genCop0(inst *insts.Instruction) {
	if ctx.hflags&HFlagCP0 == 0 {
		ctx.generateException(ExcCpU, 0)
		return
	}

	b := ctx.b
	reg, sel := uint8(inst.Rd), inst.Sel

	switch inst.Op {
	case insts.OpMFC0, insts.OpDMFC0:
		if ctx.c.cp0Lookup(reg, sel) == nil && ctx.c.strictCP0 {
			ctx.generateException(ExcRI, 0)
			return
		}

		var wide uint64
		if inst.Op == insts.OpDMFC0 {
			wide = 1
		}

		b.Call(helperMfc0, tcg.T0, tcg.T0, tcg.T0, uint64(reg)<<3|uint64(sel), wide)
		ctx.storeGPR(inst.Rt, tcg.T0)
	case insts.OpMTC0, insts.OpDMTC0:
		ctx.genMtc0(inst)
	case insts.OpTLBP:
		b.Call(helperTlbp, tcg.T0, tcg.T0, tcg.T0, 0, 0)
	case insts.OpTLBR, insts.OpTLBWI, insts.OpTLBWR:
		h := map[insts.Op]tcg.Helper{
			insts.OpTLBR: helperTlbr, insts.OpTLBWI: helperTlbwi, insts.OpTLBWR: helperTlbwr,
		}[inst.Op]

		ctx.saveState(true)
		b.Call(h, tcg.T0, tcg.T0, tcg.T0, 0, 0)
		ctx.bstate = bsStop
	case insts.OpERET, insts.OpDERET:
		if ctx.hflags&HFlagBMask != 0 ||
			inst.Op == insts.OpDERET && ctx.hflags&HFlagDM == 0 {
			ctx.generateException(ExcRI, 0)
			return
		}

		h := helperEret
		if inst.Op == insts.OpDERET {
			h = helperDeret
		}

		ctx.saveState(true)
		b.Call(h, tcg.T0, tcg.T0, tcg.T0, 0, 0)
		ctx.bstate = bsExcp
		ctx.exit = tcg.ExitBranch
	case insts.OpWAIT:
		ctx.commitNext()
		b.Call(helperWait, tcg.T0, tcg.T0, tcg.T0, 0, 0)
		ctx.bstate = bsExcp
		ctx.exit = tcg.ExitStop
	case insts.OpDI, insts.OpEI:
		h := helperDi
		if inst.Op == insts.OpEI {
			h = helperEi
		}

		ctx.saveState(true)
		b.Call(h, tcg.T0, tcg.T0, tcg.T0, 0, 0)
		ctx.storeGPR(inst.Rt, tcg.T0)
		ctx.bstate = bsStop
	case insts.OpRDPGPR, insts.OpWRPGPR:
		// A single shadow set: both are plain moves.
		ctx.loadGPR(tcg.T0, inst.Rt)
		ctx.storeGPR(inst.Rd, tcg.T0)
	default:
		ctx.generateException(ExcRI, 0)
	}
}

// genMtc0 emits a CP0 register write. What happens after the write depends
// on the register: Status and Debug change the hidden flags, so the block
// must end with the new PC already committed.
func (ctx *disasContext) genMtc0(inst *insts.Instruction) {
	b := ctx.b
	reg, sel := uint8(inst.Rd), inst.Sel
	imm := uint64(reg)<<3 | uint64(sel)

	r := ctx.c.cp0Lookup(reg, sel)
	if r == nil && ctx.c.strictCP0 {
		ctx.generateException(ExcRI, 0)
		return
	}

	effect := cp0None
	if r != nil {
		effect = r.effect
	}

	switch {
	case effect == cp0Exit && ctx.hflags&HFlagBMask == 0:
		ctx.commitNext()
		ctx.loadGPR(tcg.T0, inst.Rt)
		b.Call(helperMtc0, tcg.T0, tcg.T0, tcg.T0, imm, 0)
		ctx.bstate = bsExcp
		ctx.exit = tcg.ExitStop
	case effect == cp0Exit:
		// In a delay slot the pending branch still has to complete.
		ctx.saveState(true)
		ctx.loadGPR(tcg.T0, inst.Rt)
		b.Call(helperMtc0, tcg.T0, tcg.T0, tcg.T0, imm, 0)
		ctx.dynHFlags = true
		ctx.bstate = bsStop
	case effect == cp0Stop:
		ctx.saveState(true)
		ctx.loadGPR(tcg.T0, inst.Rt)
		b.Call(helperMtc0, tcg.T0, tcg.T0, tcg.T0, imm, 0)
		ctx.bstate = bsStop
	default:
		ctx.loadGPR(tcg.T0, inst.Rt)
		b.Call(helperMtc0, tcg.T0, tcg.T0, tcg.T0, imm, 0)
	}
}

// commitNext stores the hidden flags and the address of the next
// instruction, for helpers that leave the block without returning to it.
func (ctx *disasContext) commitNext() {
	ctx.saveState(false)
	ctx.b.Movi(tcg.T3, ctx.pc+4)
	ctx.b.StoreReg(RegPC, tcg.T3)
	ctx.savedPC = ctx.pc + 4
}

// genCop1 emits the floating-point instructions other than the BC1
// branches and the COP1 loads and stores.
func (ctx *disasContext) genCop1(inst *insts.Instruction) {
	if ctx.hflags&HFlagFPU == 0 {
		ctx.generateException(ExcCpU, 1)
		return
	}

	b := ctx.b

	switch inst.Op {
	case insts.OpMFC1, insts.OpDMFC1, insts.OpMFHC1, insts.OpCFC1:
		h := map[insts.Op]tcg.Helper{
			insts.OpMFC1: helperMfc1, insts.OpDMFC1: helperDmfc1,
			insts.OpMFHC1: helperMfhc1, insts.OpCFC1: helperCfc1,
		}[inst.Op]

		b.Call(h, tcg.T0, tcg.T0, tcg.T0, uint64(inst.Fs), 0)
		ctx.storeGPR(inst.Rt, tcg.T0)
	case insts.OpMTC1, insts.OpDMTC1, insts.OpMTHC1:
		h := map[insts.Op]tcg.Helper{
			insts.OpMTC1: helperMtc1, insts.OpDMTC1: helperDmtc1, insts.OpMTHC1: helperMthc1,
		}[inst.Op]

		ctx.loadGPR(tcg.T0, inst.Rt)
		b.Call(h, tcg.T0, tcg.T0, tcg.T0, uint64(inst.Fs), 0)
	case insts.OpCTC1:
		ctx.saveState(true)
		ctx.loadGPR(tcg.T0, inst.Rt)
		b.Call(helperCtc1, tcg.T0, tcg.T0, tcg.T0, uint64(inst.Fs), 0)
		ctx.bstate = bsStop
	case insts.OpLWXC1, insts.OpLDXC1, insts.OpLUXC1,
		insts.OpSWXC1, insts.OpSDXC1, insts.OpSUXC1:
		ctx.genCop1Indexed(inst)
	case insts.OpPREFX:
	case insts.OpALNVPS:
		ctx.generateException(ExcRI, 0)
	default:
		if !ctx.fpEncodable(inst) {
			ctx.generateException(ExcRI, 0)
			return
		}

		ctx.saveState(true)
		ctx.loadGPR(tcg.T0, inst.Rt)
		b.Call(helperFPArith, tcg.T0, tcg.T0, tcg.T0, uint64(inst.Word), 0)
	}
}

// fpEncodable checks the format and register operands of an arithmetic
// instruction against the current FPU mode.
func (ctx *disasContext) fpEncodable(inst *insts.Instruction) bool {
	f64 := ctx.hflags&HFlagF64 != 0
	format := inst.Fmt

	switch inst.Op {
	case insts.OpFCVTS:
		if format == insts.FmtS {
			return false
		}
	case insts.OpFCVTD:
		if format == insts.FmtD {
			return false
		}
	default:
		if format != insts.FmtS && format != insts.FmtD {
			return false
		}
	}

	if format == insts.FmtPS || format == insts.FmtL && !f64 {
		return false
	}

	switch inst.Op {
	case insts.OpFROUNDL, insts.OpFTRUNCL, insts.OpFCEILL, insts.OpFFLOORL, insts.OpFCVTL:
		if !f64 {
			return false
		}
	}

	if f64 {
		return true
	}

	// With 32-bit registers, doubles live in even/odd pairs.
	wide := func(f insts.FPFormat) bool { return f == insts.FmtD || f == insts.FmtL }
	if wide(format) && (inst.Fs|inst.Ft|inst.Fr)&1 != 0 {
		return false
	}

	var dst insts.FPFormat

	switch inst.Op {
	case insts.OpFCMP:
		return true
	case insts.OpFCVTS, insts.OpFROUNDW, insts.OpFTRUNCW, insts.OpFCEILW,
		insts.OpFFLOORW, insts.OpFCVTW:
		dst = insts.FmtS
	case insts.OpFCVTD:
		dst = insts.FmtD
	default:
		dst = format
	}

	return !wide(dst) || inst.Fd&1 == 0
}

var cop1MemShapes = map[insts.Op]struct {
	size  uint8
	store bool
}{
	insts.OpLWC1:  {4, false},
	insts.OpLDC1:  {8, false},
	insts.OpSWC1:  {4, true},
	insts.OpSDC1:  {8, true},
	insts.OpLWXC1: {4, false},
	insts.OpLDXC1: {8, false},
	insts.OpLUXC1: {8, false},
	insts.OpSWXC1: {4, true},
	insts.OpSDXC1: {8, true},
	insts.OpSUXC1: {8, true},
}

// genCop1Mem emits LWC1, LDC1, SWC1 and SDC1.
func (ctx *disasContext) genCop1Mem(inst *insts.Instruction) {
	if ctx.hflags&HFlagFPU == 0 {
		ctx.generateException(ExcCpU, 1)
		return
	}

	ctx.saveState(true)
	ctx.genAddr(tcg.T0, inst.Rs, inst.SImm())
	ctx.genFPAccess(inst.Op, inst.Ft)
}

// genCop1Indexed emits the COP1X base plus index loads and stores. The
// loaded register is fd, the stored one fs.
func (ctx *disasContext) genCop1Indexed(inst *insts.Instruction) {
	b := ctx.b

	ctx.saveState(true)
	ctx.loadGPR(tcg.T0, inst.Rs)
	ctx.loadGPR(tcg.T1, inst.Rt)
	b.Arith(tcg.OpAdd, ctx.addrWidth(), tcg.T0, tcg.T0, tcg.T1)

	if inst.Op == insts.OpLUXC1 || inst.Op == insts.OpSUXC1 {
		b.Movi(tcg.T1, ^uint64(7))
		b.Arith(tcg.OpAnd, 64, tcg.T0, tcg.T0, tcg.T1)
	}

	fr := inst.Fd
	if cop1MemShapes[inst.Op].store {
		fr = inst.Fs
	}

	ctx.genFPAccess(inst.Op, fr)
}

// genFPAccess moves FPR fr to or from the address in T0.
func (ctx *disasContext) genFPAccess(op insts.Op, fr uint8) {
	b := ctx.b
	shape := cop1MemShapes[op]

	if shape.store {
		h := helperMfc1
		if shape.size == 8 {
			h = helperDmfc1
		}

		b.Call(h, tcg.T1, tcg.T1, tcg.T1, uint64(fr), 0)
		b.Store(tcg.T0, tcg.T1, shape.size, ctx.memIdx)

		return
	}

	h := helperMtc1
	if shape.size == 8 {
		h = helperDmtc1
	}

	b.Load(tcg.T1, tcg.T0, shape.size, false, ctx.memIdx)
	b.Call(h, tcg.T1, tcg.T1, tcg.T1, uint64(fr), 0)
}
