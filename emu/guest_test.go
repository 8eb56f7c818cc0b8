package emu_test

import (
	"github.com/sarchlab/vcore/tcg"
)

const (
	helperSum tcg.Helper = iota
	helperFail
	helperSleep
)

const badAddr = 0xBAD0

// fakeGuest is a register file and a word-addressed memory with just
// enough behavior to drive the executor and the run loop.
type fakeGuest struct {
	regs  [8]uint64
	mem   map[uint64]uint64
	pc    uint64
	flags uint32

	raised  []uint64
	debugs  int
	waiting bool
	trap    bool
	irq     bool
	count   uint32

	translate    func(pc uint64, flags uint32) *tcg.Block
	translations int
}

func newFakeGuest() *fakeGuest {
	return &fakeGuest{mem: make(map[uint64]uint64)}
}

func (g *fakeGuest) Reg(idx int) uint64       { return g.regs[idx] }
func (g *fakeGuest) SetReg(idx int, v uint64) { g.regs[idx] = v }
func (g *fakeGuest) SetPC(pc uint64)          { g.pc = pc }

func (g *fakeGuest) Load(vaddr uint64, _ int, _ bool, _ int) (uint64, bool) {
	if vaddr == badAddr {
		g.Raise(2, 0)
		return 0, false
	}

	return g.mem[vaddr], true
}

func (g *fakeGuest) Store(vaddr uint64, _ int, v uint64, _ int) bool {
	if vaddr == badAddr {
		g.Raise(3, 0)
		return false
	}

	g.mem[vaddr] = v

	return true
}

func (g *fakeGuest) Call(h tcg.Helper, a, b, imm, _ uint64) (uint64, bool) {
	switch h {
	case helperSum:
		return a + b + imm, true
	case helperFail:
		g.Raise(imm, 0)
		return 0, false
	case helperSleep:
		g.waiting = true
	}

	return 0, true
}

func (g *fakeGuest) Raise(exc, _ uint64) { g.raised = append(g.raised, exc) }

func (g *fakeGuest) Debug() {
	g.debugs++
	g.trap = true
}

func (g *fakeGuest) TranslateBlock(pc uint64, flags uint32) *tcg.Block {
	g.translations++
	return g.translate(pc, flags)
}

func (g *fakeGuest) BlockKey() (uint64, uint32) { return g.pc, g.flags }

func (g *fakeGuest) ProcessInterrupts() bool {
	if !g.irq {
		return false
	}

	g.irq = false
	g.waiting = false
	g.pc = 0x80

	return true
}

func (g *fakeGuest) Waiting() bool { return g.waiting }

func (g *fakeGuest) TakeDebugTrap() bool {
	t := g.trap
	g.trap = false

	return t
}

func (g *fakeGuest) AdvanceCount(n uint32) { g.count += n }

// block assembles ops into a block at pc.
func block(pc uint64, insns int, exit tcg.Exit, emit func(b *tcg.Builder)) *tcg.Block {
	b := tcg.NewBuilder(64)
	emit(b)

	return &tcg.Block{
		PC:       pc,
		Size:     uint64(4 * insns),
		NumInsns: insns,
		Ops:      b.Ops(),
		Exit:     exit,
	}
}
