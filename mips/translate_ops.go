package mips

import (
	"github.com/sarchlab/vcore/insts"
	"github.com/sarchlab/vcore/tcg"
)

// genInteger emits the integer, memory and trap instructions.
func (ctx *disasContext) genInteger(inst *insts.Instruction) {
	switch inst.Op {
	case insts.OpADDI, insts.OpADDIU, insts.OpDADDI, insts.OpDADDIU,
		insts.OpSLTI, insts.OpSLTIU, insts.OpANDI, insts.OpORI, insts.OpXORI, insts.OpLUI:
		ctx.genArithImm(inst)
	case insts.OpADD, insts.OpADDU, insts.OpSUB, insts.OpSUBU,
		insts.OpDADD, insts.OpDADDU, insts.OpDSUB, insts.OpDSUBU,
		insts.OpAND, insts.OpOR, insts.OpXOR, insts.OpNOR, insts.OpSLT, insts.OpSLTU:
		ctx.genArith(inst)
	case insts.OpSLL, insts.OpSRL, insts.OpSRA, insts.OpROTR,
		insts.OpDSLL, insts.OpDSRL, insts.OpDSRA, insts.OpDROTR,
		insts.OpDSLL32, insts.OpDSRL32, insts.OpDSRA32, insts.OpDROTR32:
		ctx.genShiftImm(inst)
	case insts.OpSLLV, insts.OpSRLV, insts.OpSRAV, insts.OpROTRV,
		insts.OpDSLLV, insts.OpDSRLV, insts.OpDSRAV, insts.OpDROTRV:
		ctx.genShiftVar(inst)
	case insts.OpMOVZ, insts.OpMOVN:
		ctx.genCondMove(inst)
	case insts.OpMFHI, insts.OpMFLO, insts.OpMTHI, insts.OpMTLO:
		ctx.genHiLo(inst)
	case insts.OpMULT, insts.OpMULTU, insts.OpDIV, insts.OpDIVU,
		insts.OpDMULT, insts.OpDMULTU, insts.OpDDIV, insts.OpDDIVU,
		insts.OpMADD, insts.OpMADDU, insts.OpMSUB, insts.OpMSUBU:
		ctx.genMulDiv(inst)
	case insts.OpMUL, insts.OpCLZ, insts.OpCLO, insts.OpDCLZ, insts.OpDCLO,
		insts.OpWSBH, insts.OpDSBH, insts.OpDSHD:
		ctx.genUnaryHelper(inst)
	case insts.OpSEB, insts.OpSEH:
		if inst.Rd.IsZero() {
			return
		}

		width := uint8(8)
		if inst.Op == insts.OpSEH {
			width = 16
		}

		ctx.loadGPR(tcg.T0, inst.Rt)
		ctx.b.Ext(width, tcg.T0, tcg.T0)
		ctx.storeGPR(inst.Rd, tcg.T0)
	case insts.OpEXT, insts.OpINS, insts.OpDEXT, insts.OpDEXTM, insts.OpDEXTU,
		insts.OpDINS, insts.OpDINSM, insts.OpDINSU:
		if inst.Rt.IsZero() {
			return
		}

		ctx.loadGPR(tcg.T0, inst.Rs)
		ctx.loadGPR(tcg.T1, inst.Rt)
		ctx.b.Call(helperBitField, tcg.T0, tcg.T0, tcg.T1, uint64(inst.Word), 0)
		ctx.storeGPR(inst.Rt, tcg.T0)
	case insts.OpRDHWR:
		ctx.genRdhwr(inst)
	case insts.OpTGE, insts.OpTGEU, insts.OpTLT, insts.OpTLTU, insts.OpTEQ, insts.OpTNE,
		insts.OpTGEI, insts.OpTGEIU, insts.OpTLTI, insts.OpTLTIU, insts.OpTEQI, insts.OpTNEI:
		ctx.genTrap(inst)
	case insts.OpSYSCALL:
		ctx.generateException(ExcSyscall, 0)
	case insts.OpBREAK:
		ctx.generateException(ExcBreak, 0)
	case insts.OpSDBBP:
		ctx.generateException(ExcDBp, 0)
	case insts.OpSYNC, insts.OpSYNCI, insts.OpPREF:
	case insts.OpCACHE:
		if ctx.hflags&HFlagCP0 == 0 {
			ctx.generateException(ExcCpU, 0)
		}
	case insts.OpMOVCI:
		ctx.genMovci(inst)
	case insts.OpLWL, insts.OpLWR, insts.OpSWL, insts.OpSWR,
		insts.OpLDL, insts.OpLDR, insts.OpSDL, insts.OpSDR:
		ctx.genUnaligned(inst)
	case insts.OpLL, insts.OpLLD, insts.OpSC, insts.OpSCD:
		ctx.genAtomic(inst)
	case insts.OpLB, insts.OpLBU, insts.OpLH, insts.OpLHU, insts.OpLW, insts.OpLWU, insts.OpLD:
		ctx.genLoad(inst)
	case insts.OpSB, insts.OpSH, insts.OpSW, insts.OpSD:
		ctx.genStore(inst)
	case insts.OpLWC1, insts.OpLDC1, insts.OpSWC1, insts.OpSDC1:
		ctx.genCop1Mem(inst)
	default:
		ctx.generateException(ExcRI, 0)
	}
}

func (ctx *disasContext) genArithImm(inst *insts.Instruction) {
	b := ctx.b
	rt, rs := inst.Rt, inst.Rs
	simm := uint64(inst.SImm())

	trapping := inst.Op == insts.OpADDI || inst.Op == insts.OpDADDI
	if rt.IsZero() && !trapping {
		return
	}

	switch inst.Op {
	case insts.OpADDI, insts.OpDADDI:
		width := uint8(32)
		if inst.Op == insts.OpDADDI {
			width = 64
		}

		ctx.saveState(true)
		ctx.loadGPR(tcg.T0, rs)
		b.Movi(tcg.T1, simm)
		b.ArithTrap(tcg.OpAdd, width, tcg.T0, tcg.T0, tcg.T1, uint64(ExcOverflow))
		ctx.storeGPR(rt, tcg.T0)
	case insts.OpADDIU, insts.OpDADDIU:
		if rs.IsZero() {
			b.Movi(tcg.T0, simm)
			ctx.storeGPR(rt, tcg.T0)

			return
		}

		width := uint8(32)
		if inst.Op == insts.OpDADDIU {
			width = 64
		}

		ctx.loadGPR(tcg.T0, rs)
		b.Movi(tcg.T1, simm)
		b.Arith(tcg.OpAdd, width, tcg.T0, tcg.T0, tcg.T1)
		ctx.storeGPR(rt, tcg.T0)
	case insts.OpSLTI, insts.OpSLTIU:
		code := tcg.OpSetLt
		if inst.Op == insts.OpSLTIU {
			code = tcg.OpSetLtu
		}

		ctx.loadGPR(tcg.T0, rs)
		b.Movi(tcg.T1, simm)
		b.Arith(code, 64, tcg.T0, tcg.T0, tcg.T1)
		ctx.storeGPR(rt, tcg.T0)
	case insts.OpANDI, insts.OpORI, insts.OpXORI:
		code := map[insts.Op]tcg.Opcode{
			insts.OpANDI: tcg.OpAnd, insts.OpORI: tcg.OpOr, insts.OpXORI: tcg.OpXor,
		}[inst.Op]

		ctx.loadGPR(tcg.T0, rs)
		b.Movi(tcg.T1, uint64(inst.Imm))
		b.Arith(code, 64, tcg.T0, tcg.T0, tcg.T1)
		ctx.storeGPR(rt, tcg.T0)
	case insts.OpLUI:
		b.Movi(tcg.T0, sext32(uint64(inst.Imm)<<16))
		ctx.storeGPR(rt, tcg.T0)
	}
}

var arithOps = map[insts.Op]struct {
	code  tcg.Opcode
	width uint8
	trap  bool
}{
	insts.OpADD:   {tcg.OpAdd, 32, true},
	insts.OpADDU:  {tcg.OpAdd, 32, false},
	insts.OpSUB:   {tcg.OpSub, 32, true},
	insts.OpSUBU:  {tcg.OpSub, 32, false},
	insts.OpDADD:  {tcg.OpAdd, 64, true},
	insts.OpDADDU: {tcg.OpAdd, 64, false},
	insts.OpDSUB:  {tcg.OpSub, 64, true},
	insts.OpDSUBU: {tcg.OpSub, 64, false},
	insts.OpAND:   {tcg.OpAnd, 64, false},
	insts.OpOR:    {tcg.OpOr, 64, false},
	insts.OpXOR:   {tcg.OpXor, 64, false},
	insts.OpNOR:   {tcg.OpNor, 64, false},
	insts.OpSLT:   {tcg.OpSetLt, 64, false},
	insts.OpSLTU:  {tcg.OpSetLtu, 64, false},
}

func (ctx *disasContext) genArith(inst *insts.Instruction) {
	a := arithOps[inst.Op]
	if inst.Rd.IsZero() && !a.trap {
		return
	}

	ctx.loadGPR(tcg.T0, inst.Rs)
	ctx.loadGPR(tcg.T1, inst.Rt)

	if a.trap {
		ctx.saveState(true)
		ctx.b.ArithTrap(a.code, a.width, tcg.T0, tcg.T0, tcg.T1, uint64(ExcOverflow))
	} else {
		ctx.b.Arith(a.code, a.width, tcg.T0, tcg.T0, tcg.T1)
	}

	ctx.storeGPR(inst.Rd, tcg.T0)
}

func shiftCode(op insts.Op) tcg.Opcode {
	switch op {
	case insts.OpSLL, insts.OpSLLV, insts.OpDSLL, insts.OpDSLL32, insts.OpDSLLV:
		return tcg.OpShl
	case insts.OpSRL, insts.OpSRLV, insts.OpDSRL, insts.OpDSRL32, insts.OpDSRLV:
		return tcg.OpShr
	case insts.OpSRA, insts.OpSRAV, insts.OpDSRA, insts.OpDSRA32, insts.OpDSRAV:
		return tcg.OpSar
	}

	return tcg.OpRotr
}

func (ctx *disasContext) genShiftImm(inst *insts.Instruction) {
	if inst.Rd.IsZero() {
		return
	}

	sa := uint64(inst.Sa)
	width := uint8(64)

	switch inst.Op {
	case insts.OpSLL, insts.OpSRL, insts.OpSRA, insts.OpROTR:
		width = 32
	case insts.OpDSLL32, insts.OpDSRL32, insts.OpDSRA32, insts.OpDROTR32:
		sa += 32
	}

	ctx.loadGPR(tcg.T0, inst.Rt)
	ctx.b.Movi(tcg.T1, sa)
	ctx.b.Arith(shiftCode(inst.Op), width, tcg.T0, tcg.T0, tcg.T1)
	ctx.storeGPR(inst.Rd, tcg.T0)
}

func (ctx *disasContext) genShiftVar(inst *insts.Instruction) {
	if inst.Rd.IsZero() {
		return
	}

	width := uint8(32)

	switch inst.Op {
	case insts.OpDSLLV, insts.OpDSRLV, insts.OpDSRAV, insts.OpDROTRV:
		width = 64
	}

	ctx.loadGPR(tcg.T0, inst.Rt)
	ctx.loadGPR(tcg.T1, inst.Rs)
	ctx.b.Arith(shiftCode(inst.Op), width, tcg.T0, tcg.T0, tcg.T1)
	ctx.storeGPR(inst.Rd, tcg.T0)
}

func (ctx *disasContext) genCondMove(inst *insts.Instruction) {
	if inst.Rd.IsZero() {
		return
	}

	b := ctx.b
	skip := b.NewLabel()

	ctx.loadGPR(tcg.T0, inst.Rt)

	if inst.Op == insts.OpMOVZ {
		b.BrCond(tcg.T0, skip)
	} else {
		b.BrCondZero(tcg.T0, skip)
	}

	ctx.loadGPR(tcg.T1, inst.Rs)
	ctx.storeGPR(inst.Rd, tcg.T1)
	b.SetLabel(skip)
}

func (ctx *disasContext) genHiLo(inst *insts.Instruction) {
	switch inst.Op {
	case insts.OpMFHI, insts.OpMFLO:
		if inst.Rd.IsZero() {
			return
		}

		reg := RegHI
		if inst.Op == insts.OpMFLO {
			reg = RegLO
		}

		ctx.b.LoadReg(tcg.T0, reg)
		ctx.storeGPR(inst.Rd, tcg.T0)
	case insts.OpMTHI, insts.OpMTLO:
		reg := RegHI
		if inst.Op == insts.OpMTLO {
			reg = RegLO
		}

		ctx.loadGPR(tcg.T0, inst.Rs)
		ctx.b.StoreReg(reg, tcg.T0)
	}
}

var mulDivHelpers = map[insts.Op]tcg.Helper{
	insts.OpMULT: helperMult, insts.OpMULTU: helperMultu,
	insts.OpDIV: helperDiv, insts.OpDIVU: helperDivu,
	insts.OpDMULT: helperDmult, insts.OpDMULTU: helperDmultu,
	insts.OpDDIV: helperDdiv, insts.OpDDIVU: helperDdivu,
	insts.OpMADD: helperMadd, insts.OpMADDU: helperMaddu,
	insts.OpMSUB: helperMsub, insts.OpMSUBU: helperMsubu,
}

func (ctx *disasContext) genMulDiv(inst *insts.Instruction) {
	ctx.loadGPR(tcg.T0, inst.Rs)
	ctx.loadGPR(tcg.T1, inst.Rt)
	ctx.b.Call(mulDivHelpers[inst.Op], tcg.T0, tcg.T0, tcg.T1, 0, 0)
}

var unaryHelpers = map[insts.Op]tcg.Helper{
	insts.OpMUL: helperMul,
	insts.OpCLZ: helperClz, insts.OpCLO: helperClo,
	insts.OpDCLZ: helperDclz, insts.OpDCLO: helperDclo,
	insts.OpWSBH: helperWsbh, insts.OpDSBH: helperDsbh, insts.OpDSHD: helperDshd,
}

// genUnaryHelper emits a helper writing rd. CLZ and friends name their
// source in rs; the byte swaps and MUL use rt.
func (ctx *disasContext) genUnaryHelper(inst *insts.Instruction) {
	if inst.Rd.IsZero() {
		return
	}

	switch inst.Op {
	case insts.OpWSBH, insts.OpDSBH, insts.OpDSHD:
		ctx.loadGPR(tcg.T0, inst.Rt)
	default:
		ctx.loadGPR(tcg.T0, inst.Rs)
	}

	ctx.loadGPR(tcg.T1, inst.Rt)
	ctx.b.Call(unaryHelpers[inst.Op], tcg.T0, tcg.T0, tcg.T1, 0, 0)
	ctx.storeGPR(inst.Rd, tcg.T0)
}

func (ctx *disasContext) genRdhwr(inst *insts.Instruction) {
	if inst.Rd > 3 {
		ctx.generateException(ExcRI, 0)
		return
	}

	ctx.saveState(true)
	ctx.b.Call(helperRdhwr, tcg.T0, tcg.T0, tcg.T0, uint64(inst.Rd), 0)
	ctx.storeGPR(inst.Rt, tcg.T0)
}

// genTrap emits the conditional traps. Identical operands decide the
// condition statically.
func (ctx *disasContext) genTrap(inst *insts.Instruction) {
	b := ctx.b
	imm := false

	switch inst.Op {
	case insts.OpTGEI, insts.OpTGEIU, insts.OpTLTI, insts.OpTLTIU, insts.OpTEQI, insts.OpTNEI:
		imm = true
	}

	static := !imm && inst.Rs == inst.Rt || imm && inst.Rs.IsZero() && inst.Imm == 0
	if static {
		switch inst.Op {
		case insts.OpTEQ, insts.OpTEQI, insts.OpTGE, insts.OpTGEI, insts.OpTGEU, insts.OpTGEIU:
			ctx.generateException(ExcTrap, 0)
		}

		return
	}

	ctx.loadGPR(tcg.T0, inst.Rs)

	if imm {
		b.Movi(tcg.T1, uint64(inst.SImm()))
	} else {
		ctx.loadGPR(tcg.T1, inst.Rt)
	}

	var code tcg.Opcode

	switch inst.Op {
	case insts.OpTEQ, insts.OpTEQI:
		code = tcg.OpSetEq
	case insts.OpTNE, insts.OpTNEI:
		code = tcg.OpSetNe
	case insts.OpTGE, insts.OpTGEI:
		code = tcg.OpSetGe
	case insts.OpTGEU, insts.OpTGEIU:
		code = tcg.OpSetGeu
	case insts.OpTLT, insts.OpTLTI:
		code = tcg.OpSetLt
	case insts.OpTLTU, insts.OpTLTIU:
		code = tcg.OpSetLtu
	}

	b.Arith(code, 64, tcg.T0, tcg.T0, tcg.T1)
	ctx.saveState(true)

	skip := b.NewLabel()
	b.BrCondZero(tcg.T0, skip)
	b.Raise(uint64(ExcTrap), 0)
	b.SetLabel(skip)

	ctx.bstate = bsStop
}

func (ctx *disasContext) genMovci(inst *insts.Instruction) {
	if ctx.hflags&HFlagFPU == 0 {
		ctx.generateException(ExcCpU, 1)
		return
	}

	if inst.Rd.IsZero() {
		return
	}

	b := ctx.b
	tf := uint64(inst.Rt) & 1
	skip := b.NewLabel()

	b.Call(helperFPCond, tcg.T0, tcg.T0, tcg.T0, uint64(inst.CC)|tf<<8, 1)
	b.BrCondZero(tcg.T0, skip)
	ctx.loadGPR(tcg.T1, inst.Rs)
	ctx.storeGPR(inst.Rd, tcg.T1)
	b.SetLabel(skip)
}

var loadShapes = map[insts.Op]struct {
	size   uint8
	signed bool
}{
	insts.OpLB:  {1, true},
	insts.OpLBU: {1, false},
	insts.OpLH:  {2, true},
	insts.OpLHU: {2, false},
	insts.OpLW:  {4, true},
	insts.OpLWU: {4, false},
	insts.OpLD:  {8, false},
	insts.OpSB:  {1, false},
	insts.OpSH:  {2, false},
	insts.OpSW:  {4, false},
	insts.OpSD:  {8, false},
}

// genLoad emits a load. A zero destination still performs the access.
func (ctx *disasContext) genLoad(inst *insts.Instruction) {
	shape := loadShapes[inst.Op]

	ctx.saveState(true)
	ctx.genAddr(tcg.T0, inst.Rs, inst.SImm())
	ctx.b.Load(tcg.T1, tcg.T0, shape.size, shape.signed, ctx.memIdx)
	ctx.storeGPR(inst.Rt, tcg.T1)
}

func (ctx *disasContext) genStore(inst *insts.Instruction) {
	shape := loadShapes[inst.Op]

	ctx.saveState(true)
	ctx.genAddr(tcg.T0, inst.Rs, inst.SImm())
	ctx.loadGPR(tcg.T1, inst.Rt)
	ctx.b.Store(tcg.T0, tcg.T1, shape.size, ctx.memIdx)
}

var unalignedHelpers = map[insts.Op]tcg.Helper{
	insts.OpLWL: helperLwl, insts.OpLWR: helperLwr,
	insts.OpSWL: helperSwl, insts.OpSWR: helperSwr,
	insts.OpLDL: helperLdl, insts.OpLDR: helperLdr,
	insts.OpSDL: helperSdl, insts.OpSDR: helperSdr,
}

func (ctx *disasContext) genUnaligned(inst *insts.Instruction) {
	ctx.saveState(true)
	ctx.genAddr(tcg.T0, inst.Rs, inst.SImm())
	ctx.loadGPR(tcg.T1, inst.Rt)
	ctx.b.Call(unalignedHelpers[inst.Op], tcg.T0, tcg.T0, tcg.T1, uint64(ctx.memIdx), 0)

	switch inst.Op {
	case insts.OpLWL, insts.OpLWR, insts.OpLDL, insts.OpLDR:
		ctx.storeGPR(inst.Rt, tcg.T0)
	}
}

func (ctx *disasContext) genAtomic(inst *insts.Instruction) {
	h := map[insts.Op]tcg.Helper{
		insts.OpLL: helperLL, insts.OpLLD: helperLLD,
		insts.OpSC: helperSC, insts.OpSCD: helperSCD,
	}[inst.Op]

	ctx.saveState(true)
	ctx.genAddr(tcg.T0, inst.Rs, inst.SImm())
	ctx.loadGPR(tcg.T1, inst.Rt)
	ctx.b.Call(h, tcg.T0, tcg.T0, tcg.T1, uint64(ctx.memIdx), 0)
	ctx.storeGPR(inst.Rt, tcg.T0)
}

// genBranch emits a branch or jump. The condition and any register target
// are committed before the link register is written, so a branch that
// links through its own source register sees the old value.
func (ctx *disasContext) genBranch(inst *insts.Instruction) {
	if ctx.hflags&HFlagBMask != 0 {
		ctx.generateException(ExcRI, 0)
		return
	}

	b := ctx.b
	pc := ctx.pc
	op := inst.Op
	btgt := pc + 4 + uint64(inst.SImm()<<2)
	link := insts.Reg(0)
	bcond := false

	switch op {
	case insts.OpBEQ, insts.OpBEQL, insts.OpBNE, insts.OpBNEL:
		if inst.Rs != inst.Rt {
			bcond = true

			ctx.loadGPR(tcg.T0, inst.Rs)
			ctx.loadGPR(tcg.T1, inst.Rt)

			code := tcg.OpSetEq
			if op == insts.OpBNE || op == insts.OpBNEL {
				code = tcg.OpSetNe
			}

			b.Arith(code, 64, tcg.T0, tcg.T0, tcg.T1)
		}
	case insts.OpBGEZ, insts.OpBGEZL, insts.OpBGEZAL, insts.OpBGEZALL,
		insts.OpBGTZ, insts.OpBGTZL, insts.OpBLEZ, insts.OpBLEZL,
		insts.OpBLTZ, insts.OpBLTZL, insts.OpBLTZAL, insts.OpBLTZALL:
		if !inst.Rs.IsZero() {
			bcond = true

			ctx.loadGPR(tcg.T0, inst.Rs)
			b.Movi(tcg.T1, 0)

			switch op {
			case insts.OpBGEZ, insts.OpBGEZL, insts.OpBGEZAL, insts.OpBGEZALL:
				b.Arith(tcg.OpSetGe, 64, tcg.T0, tcg.T0, tcg.T1)
			case insts.OpBGTZ, insts.OpBGTZL:
				b.Arith(tcg.OpSetLt, 64, tcg.T0, tcg.T1, tcg.T0)
			case insts.OpBLEZ, insts.OpBLEZL:
				b.Arith(tcg.OpSetGe, 64, tcg.T0, tcg.T1, tcg.T0)
			default:
				b.Arith(tcg.OpSetLt, 64, tcg.T0, tcg.T0, tcg.T1)
			}
		}
	case insts.OpJ, insts.OpJAL:
		btgt = (pc+4)&^0x0FFFFFFF | uint64(inst.Target)<<2
	case insts.OpJR, insts.OpJALR:
		ctx.loadGPR(tcg.T2, inst.Rs)
		b.StoreReg(RegBTarget, tcg.T2)
	case insts.OpBC1F, insts.OpBC1T, insts.OpBC1FL, insts.OpBC1TL,
		insts.OpBC1FANY2, insts.OpBC1TANY2, insts.OpBC1FANY4, insts.OpBC1TANY4:
		if ctx.hflags&HFlagFPU == 0 {
			ctx.generateException(ExcCpU, 1)
			return
		}

		bcond = true
		ctx.genFPCond(inst)
	}

	switch op {
	case insts.OpBLTZAL, insts.OpBLTZALL, insts.OpBGEZAL, insts.OpBGEZALL, insts.OpJAL:
		link = 31
	case insts.OpJALR:
		link = inst.Rd
	}

	likely := false

	switch op {
	case insts.OpBEQL, insts.OpBNEL, insts.OpBGEZL, insts.OpBGTZL, insts.OpBLEZL,
		insts.OpBLTZL, insts.OpBGEZALL, insts.OpBLTZALL, insts.OpBC1FL, insts.OpBC1TL:
		likely = true
	}

	if !bcond {
		switch op {
		case insts.OpBNE, insts.OpBGTZ, insts.OpBLTZ:
			// never taken
			return
		case insts.OpBLTZAL:
			ctx.writeLink(link, pc+8)
			return
		case insts.OpBNEL, insts.OpBGTZL, insts.OpBLTZL:
			ctx.pc += 4
			return
		case insts.OpBLTZALL:
			ctx.writeLink(link, pc+8)
			ctx.pc += 4

			return
		case insts.OpJR, insts.OpJALR:
			ctx.hflags |= HFlagBR
		default:
			ctx.hflags |= HFlagB
		}
	} else {
		b.StoreReg(RegBCond, tcg.T0)

		if likely {
			ctx.hflags |= HFlagBL
		} else {
			ctx.hflags |= HFlagBC
		}
	}

	ctx.btarget = btgt
	ctx.writeLink(link, pc+8)
}

func (ctx *disasContext) writeLink(r insts.Reg, v uint64) {
	if r.IsZero() {
		return
	}

	ctx.b.Movi(tcg.T0, v)
	ctx.storeGPR(r, tcg.T0)
}

// genFPCond evaluates a BC1 condition into T0.
func (ctx *disasContext) genFPCond(inst *insts.Instruction) {
	count := uint64(1)

	switch inst.Op {
	case insts.OpBC1FANY2, insts.OpBC1TANY2:
		count = 2
	case insts.OpBC1FANY4, insts.OpBC1TANY4:
		count = 4
	}

	var tf uint64

	switch inst.Op {
	case insts.OpBC1T, insts.OpBC1TL, insts.OpBC1TANY2, insts.OpBC1TANY4:
		tf = 1
	}

	ctx.b.Call(helperFPCond, tcg.T0, tcg.T0, tcg.T0, uint64(inst.CC)|tf<<8, count)
}
