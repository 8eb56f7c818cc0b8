package mips

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/vcore/insts"
	"github.com/sarchlab/vcore/tcg"
	"github.com/sarchlab/vcore/trace"
)

// maxOpsPerInsn bounds the ops one guest instruction can emit, including
// the branch completion and block epilogue that may follow it.
const maxOpsPerInsn = 48

// PageBits is log2 of the smallest page a translation covers.
const PageBits = 12

const pageMask = ^uint64(1<<PageBits - 1)

type bstate uint8

const (
	bsNone   bstate = iota // keep translating
	bsStop                 // end the block, continue at the next pc
	bsBranch               // branch completion already left the block
	bsExcp                 // the block leaves through an exception or helper
)

// disasContext is the translator state for one block.
type disasContext struct {
	c *CPU
	b *tcg.Builder

	pc      uint64
	savedPC uint64

	hflags      uint32
	savedHFlags uint32

	btarget uint64
	// btargetInReg is set when the block opens in a delay slot; the
	// target of the pending branch then only exists in RegBTarget.
	btargetInReg bool

	// dynHFlags is set once a helper has recomputed the hidden flags at
	// run time; the static copy above is stale from then on.
	dynHFlags bool

	bstate bstate
	exit   tcg.Exit
	memIdx uint8
}

// TranslateBlock translates the guest code at pc under the hidden flags.
// It reads code through the address translation unit but does not change
// guest state; faults found while fetching are delivered by the block
// when it runs.
func (c *CPU) TranslateBlock(pc uint64, flags uint32) *tcg.Block {
	ctx := &disasContext{
		c:            c,
		b:            tcg.NewBuilder(c.maxBlockOps),
		pc:           pc,
		savedPC:      pc,
		hflags:       flags,
		savedHFlags:  flags,
		btargetInReg: flags&HFlagBMask != 0,
		exit:         tcg.ExitFallthrough,
	}

	if flags&HFlagUM == 0 {
		ctx.memIdx = 1
	}

	user := flags&HFlagUM != 0
	numInsns := 0

	for ctx.bstate == bsNone {
		if ctx.b.Remaining() < maxOpsPerInsn {
			ctx.exit = tcg.ExitBufferFull
			break
		}

		if c.breakpoints[ctx.pc] {
			ctx.saveState(true)
			ctx.b.Debug()
			ctx.bstate = bsExcp
			ctx.exit = tcg.ExitBreakpoint

			break
		}

		if ctx.pc&3 != 0 {
			ctx.saveState(true)
			ctx.b.Call(helperAddressError, tcg.T0, tcg.T0, tcg.T0, ctx.pc, 0)
			ctx.bstate = bsExcp
			ctx.exit = tcg.ExitException

			break
		}

		word, ok := c.fetchCode(ctx.pc, user)
		if !ok {
			if numInsns == 0 {
				ctx.saveState(true)
				ctx.b.Call(helperFetchFault, tcg.T0, tcg.T0, tcg.T0, ctx.pc, 0)
				ctx.b.ExitTB()
				ctx.bstate = bsExcp
				ctx.exit = tcg.ExitException
			}

			break
		}

		inst := c.decoder.Decode(word)
		inDelaySlot := ctx.hflags&HFlagBMask != 0

		if ctx.hflags&HFlagBMask == HFlagBL {
			ctx.likelyNotTaken()
		}

		ctx.decode(inst)

		if inDelaySlot && ctx.bstate != bsExcp {
			ctx.completeBranch()
		}

		if ctx.bstate == bsExcp && ctx.exit == tcg.ExitFallthrough {
			ctx.exit = tcg.ExitException
		}

		ctx.pc += 4
		numInsns++

		if ctx.bstate != bsNone {
			break
		}

		if c.singleStep {
			ctx.exit = tcg.ExitSingleStep
			break
		}

		if ctx.pc&pageMask != pc&pageMask {
			ctx.exit = tcg.ExitPageBoundary
			break
		}
	}

	switch ctx.bstate {
	case bsNone, bsStop:
		if ctx.bstate == bsStop && ctx.exit == tcg.ExitFallthrough {
			ctx.exit = tcg.ExitStop
		}

		ctx.saveState(false)
		ctx.b.GotoTB(ctx.pc)
	case bsBranch:
		ctx.exit = tcg.ExitBranch
	case bsExcp:
		ctx.b.ExitTB()
	}

	block := &tcg.Block{
		PC:       pc,
		Flags:    flags,
		Size:     ctx.pc - pc,
		NumInsns: numInsns,
		Ops:      ctx.b.Ops(),
		Exit:     ctx.exit,
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    trace.HookPosBlockTranslated,
		Item:   block,
	})

	return block
}

// saveState makes the guest registers agree with the translator's static
// view before an op that can leave the block.
func (ctx *disasContext) saveState(doPC bool) {
	b := ctx.b

	if doPC && ctx.pc != ctx.savedPC {
		b.Movi(tcg.T3, ctx.pc)
		b.StoreReg(RegPC, tcg.T3)
		ctx.savedPC = ctx.pc
	}

	if ctx.hflags == ctx.savedHFlags {
		return
	}

	b.Movi(tcg.T3, uint64(ctx.hflags))
	b.StoreReg(RegHFlags, tcg.T3)
	ctx.savedHFlags = ctx.hflags

	switch ctx.hflags & HFlagBMask {
	case HFlagB, HFlagBC, HFlagBL:
		if !ctx.btargetInReg {
			b.Movi(tcg.T3, ctx.btarget)
			b.StoreReg(RegBTarget, tcg.T3)
		}
	}
}

// generateException raises exc at the current instruction.
func (ctx *disasContext) generateException(exc Exception, code uint64) {
	ctx.saveState(true)
	ctx.b.Raise(uint64(exc), code)
	ctx.bstate = bsExcp
}

// likelyNotTaken skips the delay slot of a branch-likely whose condition
// turned out false.
func (ctx *disasContext) likelyNotTaken() {
	b := ctx.b
	taken := b.NewLabel()

	b.LoadReg(tcg.T0, RegBCond)
	b.BrCond(tcg.T0, taken)
	b.Movi(tcg.T3, uint64(ctx.hflags&^HFlagBMask))
	b.StoreReg(RegHFlags, tcg.T3)
	b.GotoTB(ctx.pc + 4)
	b.SetLabel(taken)
}

// completeBranch ends the block after a delay slot.
func (ctx *disasContext) completeBranch() {
	b := ctx.b
	br := ctx.hflags & HFlagBMask

	ctx.hflags &^= HFlagBMask
	ctx.bstate = bsBranch

	if ctx.dynHFlags {
		b.LoadReg(tcg.T3, RegHFlags)
		b.Movi(tcg.T2, uint64(^HFlagBMask))
		b.Arith(tcg.OpAnd, 64, tcg.T3, tcg.T3, tcg.T2)
		b.StoreReg(RegHFlags, tcg.T3)
		ctx.savedHFlags = ctx.hflags
	} else {
		ctx.saveState(false)
	}

	switch br {
	case HFlagB, HFlagBL:
		ctx.gotoTarget()
	case HFlagBC:
		taken := b.NewLabel()

		b.LoadReg(tcg.T0, RegBCond)
		b.BrCond(tcg.T0, taken)
		b.GotoTB(ctx.pc + 4)
		b.SetLabel(taken)
		ctx.gotoTarget()
	case HFlagBR:
		b.LoadReg(tcg.T0, RegBTarget)
		b.StoreReg(RegPC, tcg.T0)
		b.ExitTB()
	}
}

func (ctx *disasContext) gotoTarget() {
	if !ctx.btargetInReg {
		ctx.b.GotoTB(ctx.btarget)
		return
	}

	ctx.b.LoadReg(tcg.T0, RegBTarget)
	ctx.b.StoreReg(RegPC, tcg.T0)
	ctx.b.ExitTB()
}

func (ctx *disasContext) loadGPR(t tcg.Temp, r insts.Reg) {
	if r.IsZero() {
		ctx.b.Movi(t, 0)
		return
	}

	ctx.b.LoadReg(t, int(r))
}

func (ctx *disasContext) storeGPR(r insts.Reg, t tcg.Temp) {
	if r.IsZero() {
		return
	}

	ctx.b.StoreReg(int(r), t)
}

// addrWidth is the width of effective address arithmetic.
func (ctx *disasContext) addrWidth() uint8 {
	if ctx.hflags&HFlag64 != 0 {
		return 64
	}

	return 32
}

// genAddr computes base + off into dst. It clobbers T1.
func (ctx *disasContext) genAddr(dst tcg.Temp, base insts.Reg, off int64) {
	ctx.loadGPR(dst, base)

	if off != 0 {
		ctx.b.Movi(tcg.T1, uint64(off))
		ctx.b.Arith(tcg.OpAdd, ctx.addrWidth(), dst, dst, tcg.T1)
	}
}

// decode emits one instruction after the generic architecture checks.
func (ctx *disasContext) decode(inst *insts.Instruction) {
	m := ctx.c.model

	switch {
	case inst.Op == insts.OpReserved:
		ctx.generateException(ExcRI, 0)
		return
	case inst.Op.Is64() && ctx.hflags&HFlag64 == 0:
		ctx.generateException(ExcRI, 0)
		return
	case inst.Op.IsRelease2() && !m.IsRelease2():
		ctx.generateException(ExcRI, 0)
		return
	}

	switch {
	case inst.Op.IsBranch():
		ctx.genBranch(inst)
	case inst.Format == insts.FormatCop0:
		ctx.genCop0(inst)
	case inst.Format == insts.FormatCop1, inst.Format == insts.FormatCop1X:
		ctx.genCop1(inst)
	case inst.Format == insts.FormatCop2:
		ctx.generateException(ExcCpU, 2)
	default:
		ctx.genInteger(inst)
	}
}
