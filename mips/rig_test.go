package mips_test

import (
	"io"

	. "github.com/onsi/gomega"

	"github.com/sarchlab/vcore/emu"
	"github.com/sarchlab/vcore/mem"
	"github.com/sarchlab/vcore/mips"
	"github.com/sarchlab/vcore/tcg"
	"github.com/sarchlab/vcore/trace"
)

const resetPC = uint64(0xFFFFFFFFBFC00000)

// rig is a CPU on 512MiB of RAM, enough to back the kseg1 reset vector.
type rig struct {
	cpu     *mips.CPU
	ram     *mem.RAM
	sys     *mem.System
	machine *emu.Machine
	rec     *trace.Recorder
}

func newRig(model string, opts ...mips.Option) *rig {
	ram := mem.NewRAM(0, 0x20000000)
	sys := mem.NewSystem(ram, mem.NewSoftTLB(mem.DefaultTLBConfig()))
	rec := &trace.Recorder{}

	cpu, err := mips.New(model, sys, append(opts, mips.WithHook(rec))...)
	Expect(err).NotTo(HaveOccurred())

	return &rig{
		cpu: cpu,
		ram: ram,
		sys: sys,
		rec: rec,
		machine: emu.NewMachine(cpu,
			emu.WithCodeGenerations(sys),
			emu.WithMaxInstructions(10000),
			emu.WithStderr(io.Discard),
		),
	}
}

// load writes words at a kseg0/kseg1 address.
func (r *rig) load(vaddr uint64, words ...uint32) {
	paddr := vaddr & 0x1FFFFFFF
	for i, w := range words {
		Expect(r.ram.Store(paddr+uint64(4*i), 4, uint64(w))).To(Succeed())
	}
}

// setStatus writes Status the way MTC0 does.
func (r *rig) setStatus(v uint32) {
	r.cpu.MTC0(12, 0, uint64(v))
}

func (r *rig) blocks() []*tcg.Block {
	var out []*tcg.Block
	for _, ev := range r.rec.Events(trace.HookPosBlockTranslated) {
		out = append(out, ev.Item.(*tcg.Block))
	}

	return out
}

func (r *rig) excCode() uint32 {
	return (r.cpu.CP0.Cause >> mips.CauseExcCodeShift) & 0x1F
}

func hasOp(b *tcg.Block, code tcg.Opcode) bool {
	for _, op := range b.Ops {
		if op.Code == code {
			return true
		}
	}

	return false
}

// Instruction encoders.

func iType(op, rs, rt uint32, imm uint16) uint32 {
	return op<<26 | rs<<21 | rt<<16 | uint32(imm)
}

func rType(rs, rt, rd, sa, fn uint32) uint32 {
	return rs<<21 | rt<<16 | rd<<11 | sa<<6 | fn
}

func addiu(rt, rs uint32, imm int16) uint32 { return iType(0x09, rs, rt, uint16(imm)) }
func addi(rt, rs uint32, imm int16) uint32  { return iType(0x08, rs, rt, uint16(imm)) }
func ori(rt, rs uint32, imm uint16) uint32  { return iType(0x0D, rs, rt, imm) }
func lui(rt uint32, imm uint16) uint32      { return iType(0x0F, 0, rt, imm) }
func lw(rt, base uint32, off int16) uint32  { return iType(0x23, base, rt, uint16(off)) }
func sw(rt, base uint32, off int16) uint32  { return iType(0x2B, base, rt, uint16(off)) }
func lwl(rt, base uint32, off int16) uint32 { return iType(0x22, base, rt, uint16(off)) }
func lwr(rt, base uint32, off int16) uint32 { return iType(0x26, base, rt, uint16(off)) }
func ll(rt, base uint32, off int16) uint32  { return iType(0x30, base, rt, uint16(off)) }
func sc(rt, base uint32, off int16) uint32  { return iType(0x38, base, rt, uint16(off)) }
func lwc1(ft, base uint32, off int16) uint32 {
	return iType(0x31, base, ft, uint16(off))
}

func beq(rs, rt uint32, off int16) uint32  { return iType(0x04, rs, rt, uint16(off)) }
func bne(rs, rt uint32, off int16) uint32  { return iType(0x05, rs, rt, uint16(off)) }
func bnel(rs, rt uint32, off int16) uint32 { return iType(0x15, rs, rt, uint16(off)) }
func beql(rs, rt uint32, off int16) uint32 { return iType(0x14, rs, rt, uint16(off)) }
func bltzal(rs uint32, off int16) uint32   { return iType(0x01, rs, 0x10, uint16(off)) }
func j(target uint64) uint32               { return 0x02<<26 | uint32(target>>2)&0x03FFFFFF }
func jr(rs uint32) uint32                  { return rType(rs, 0, 0, 0, 0x08) }
func jalr(rd, rs uint32) uint32            { return rType(rs, 0, rd, 0, 0x09) }

func addu(rd, rs, rt uint32) uint32  { return rType(rs, rt, rd, 0, 0x21) }
func daddu(rd, rs, rt uint32) uint32 { return rType(rs, rt, rd, 0, 0x2D) }
func teq(rs, rt uint32) uint32       { return rType(rs, rt, 0, 0, 0x34) }
func mult(rs, rt uint32) uint32      { return rType(rs, rt, 0, 0, 0x18) }
func mflo(rd uint32) uint32          { return rType(0, 0, rd, 0, 0x12) }
func mfhi(rd uint32) uint32          { return rType(0, 0, rd, 0, 0x10) }
func sll(rd, rt, sa uint32) uint32   { return rType(0, rt, rd, sa, 0x00) }
func movz(rd, rs, rt uint32) uint32  { return rType(rs, rt, rd, 0, 0x0A) }

const (
	nop     = uint32(0)
	syscall = uint32(0x0000000C)
	wait    = uint32(0x42000020)
	eret    = uint32(0x42000018)
	tlbwi   = uint32(0x42000002)
)

func mtc0(rt, rd, sel uint32) uint32 { return 0x40800000 | rt<<16 | rd<<11 | sel }
func mfc0(rt, rd, sel uint32) uint32 { return 0x40000000 | rt<<16 | rd<<11 | sel }
func mtc1(rt, fs uint32) uint32      { return 0x44800000 | rt<<16 | fs<<11 }
func mfc1(rt, fs uint32) uint32      { return 0x44000000 | rt<<16 | fs<<11 }

func addS(fd, fs, ft uint32) uint32 { return 0x46000000 | 16<<21 | ft<<16 | fs<<11 | fd<<6 }
func ceqS(fs, ft uint32) uint32     { return 0x46000000 | 16<<21 | ft<<16 | fs<<11 | 0x32 }
func bc1t(off int16) uint32         { return 0x45010000 | uint32(uint16(off)) }
