package mips

import (
	"fmt"
	"math/bits"

	"github.com/sarchlab/vcore/insts"
	"github.com/sarchlab/vcore/mem"
	"github.com/sarchlab/vcore/tcg"
)

// Runtime helpers called from translated blocks.
const (
	helperAddressError tcg.Helper = iota
	helperFetchFault

	helperMult
	helperMultu
	helperMul
	helperDiv
	helperDivu
	helperDmult
	helperDmultu
	helperDdiv
	helperDdivu
	helperMadd
	helperMaddu
	helperMsub
	helperMsubu

	helperClz
	helperClo
	helperDclz
	helperDclo
	helperBitField // imm = instruction word
	helperWsbh
	helperDsbh
	helperDshd

	helperLwl // imm = memIdx
	helperLwr
	helperSwl
	helperSwr
	helperLdl
	helperLdr
	helperSdl
	helperSdr
	helperLL
	helperLLD
	helperSC
	helperSCD

	helperMfc0 // imm = reg<<3 | sel, imm2 = 1 for the 64-bit forms
	helperMtc0
	helperTlbwi
	helperTlbwr
	helperTlbp
	helperTlbr
	helperEret
	helperDeret
	helperWait
	helperDi
	helperEi
	helperRdhwr // imm = rd

	helperMfc1 // imm = fs
	helperMtc1
	helperDmfc1
	helperDmtc1
	helperMfhc1
	helperMthc1
	helperCfc1
	helperCtc1
	helperFPArith // imm = instruction word
	helperFPCond  // imm = cc | tf<<8, imm2 = count
)

// Call implements tcg.Target.
func (c *CPU) Call(h tcg.Helper, a, b, imm, imm2 uint64) (uint64, bool) {
	switch h {
	case helperAddressError:
		c.raiseAddressFault(&Fault{Exc: ExcAdEL, VAddr: imm})
		return 0, false
	case helperFetchFault:
		return c.fetchFault(imm)
	case helperMult, helperMultu, helperMul, helperDiv, helperDivu,
		helperDmult, helperDmultu, helperDdiv, helperDdivu,
		helperMadd, helperMaddu, helperMsub, helperMsubu:
		return c.mulDiv(h, a, b), true
	case helperClz:
		return uint64(bits.LeadingZeros32(uint32(a))), true
	case helperClo:
		return uint64(bits.LeadingZeros32(^uint32(a))), true
	case helperDclz:
		return uint64(bits.LeadingZeros64(a)), true
	case helperDclo:
		return uint64(bits.LeadingZeros64(^a)), true
	case helperBitField:
		return bitField(c.decoder.Decode(uint32(imm)), a, b), true
	case helperWsbh:
		v := uint32(a)
		return sext32(uint64((v&0x00FF00FF)<<8 | (v&0xFF00FF00)>>8)), true
	case helperDsbh:
		return (a&0x00FF00FF00FF00FF)<<8 | (a&0xFF00FF00FF00FF00)>>8, true
	case helperDshd:
		a = (a&0x0000FFFF0000FFFF)<<16 | (a&0xFFFF0000FFFF0000)>>16
		return a<<32 | a>>32, true
	case helperLwl, helperLwr, helperSwl, helperSwr,
		helperLdl, helperLdr, helperSdl, helperSdr:
		return c.unaligned(h, a, b, int(imm))
	case helperLL, helperLLD:
		return c.loadLinked(h == helperLLD, a, int(imm))
	case helperSC, helperSCD:
		return c.storeConditional(h == helperSCD, a, b, int(imm))
	case helperMfc0:
		v := c.MFC0(uint8(imm>>3), uint8(imm&7))
		if imm2 == 0 {
			v = sext32(v)
		}

		return v, true
	case helperMtc0:
		c.MTC0(uint8(imm>>3), uint8(imm&7), a)
		return 0, true
	case helperTlbwi:
		c.TLBWI()
		return 0, true
	case helperTlbwr:
		c.TLBWR()
		return 0, true
	case helperTlbp:
		c.TLBP()
		return 0, true
	case helperTlbr:
		c.TLBR()
		return 0, true
	case helperEret:
		c.Eret()
		return 0, true
	case helperDeret:
		c.Deret()
		return 0, true
	case helperWait:
		c.Halted = true
		return 0, true
	case helperDi:
		old := c.CP0.Status
		c.CP0.Status &^= StatusIE

		return sext32(uint64(old)), true
	case helperEi:
		old := c.CP0.Status
		c.CP0.Status |= StatusIE

		return sext32(uint64(old)), true
	case helperRdhwr:
		return c.rdhwr(uint8(imm))
	case helperMfc1:
		return sext32(uint64(c.FPU.Single(uint8(imm)))), true
	case helperMtc1:
		c.FPU.SetSingle(uint8(imm), uint32(a))
		return 0, true
	case helperDmfc1:
		return c.FPU.Double(uint8(imm), c.fr64()), true
	case helperDmtc1:
		c.FPU.SetDouble(uint8(imm), a, c.fr64())
		return 0, true
	case helperMfhc1:
		return sext32(uint64(c.FPU.High(uint8(imm), c.fr64()))), true
	case helperMthc1:
		c.FPU.SetHigh(uint8(imm), uint32(a), c.fr64())
		return 0, true
	case helperCfc1:
		return sext32(uint64(c.FPU.ReadControl(uint8(imm)))), true
	case helperCtc1:
		if c.FPU.WriteControl(uint8(imm), uint32(a)) {
			c.Raise(uint64(ExcFPE), 0)
			return 0, false
		}

		return 0, true
	case helperFPArith:
		if !c.fpArith(c.decoder.Decode(uint32(imm)), a) {
			c.Raise(uint64(ExcFPE), 0)
			return 0, false
		}

		return 0, true
	case helperFPCond:
		if c.fpCond(uint8(imm), int(imm2), imm>>8&1 != 0) {
			return 1, true
		}

		return 0, true
	}

	panic(fmt.Sprintf("mips: unknown helper %d", h))
}

// fetchFault delivers the fault of an instruction fetch that failed at
// translation time.
func (c *CPU) fetchFault(pc uint64) (uint64, bool) {
	user := c.HFlags&HFlagUM != 0

	paddr, _, err := c.Translate(pc, mem.AccessExecute, user)
	if err != nil {
		c.raiseAddressFault(err)
		return 0, false
	}

	if _, err := c.bus.FetchCode(paddr); err != nil {
		c.Raise(uint64(ExcIBE), 0)
		return 0, false
	}

	// The mapping was repaired since translation; nothing to deliver.
	return 0, true
}

func splitAcc(hi, lo uint64) uint64 {
	return hi<<32 | lo&0xFFFFFFFF
}

func (c *CPU) setAcc(acc uint64) {
	c.LO = sext32(acc)
	c.HI = sext32(acc >> 32)
}

func (c *CPU) mulDiv(h tcg.Helper, a, b uint64) uint64 {
	switch h {
	case helperMult:
		c.setAcc(uint64(int64(int32(a)) * int64(int32(b))))
	case helperMultu:
		c.setAcc(uint64(uint32(a)) * uint64(uint32(b)))
	case helperMul:
		return sext32(uint64(int32(a) * int32(b)))
	case helperDiv:
		x, y := int32(a), int32(b)
		if y == 0 {
			return 0
		}

		if x == -1<<31 && y == -1 {
			c.LO, c.HI = sext32(uint64(uint32(x))), 0
			return 0
		}

		c.LO, c.HI = uint64(int64(x/y)), uint64(int64(x%y))
	case helperDivu:
		x, y := uint32(a), uint32(b)
		if y == 0 {
			return 0
		}

		c.LO, c.HI = sext32(uint64(x/y)), sext32(uint64(x%y))
	case helperDmult:
		hi, lo := bits.Mul64(a, b)
		if int64(a) < 0 {
			hi -= b
		}

		if int64(b) < 0 {
			hi -= a
		}

		c.HI, c.LO = hi, lo
	case helperDmultu:
		c.HI, c.LO = bits.Mul64(a, b)
	case helperDdiv:
		x, y := int64(a), int64(b)
		if y == 0 {
			return 0
		}

		if x == -1<<63 && y == -1 {
			c.LO, c.HI = uint64(x), 0
			return 0
		}

		c.LO, c.HI = uint64(x/y), uint64(x%y)
	case helperDdivu:
		if b == 0 {
			return 0
		}

		c.LO, c.HI = a/b, a%b
	case helperMadd:
		c.setAcc(splitAcc(c.HI, c.LO) + uint64(int64(int32(a))*int64(int32(b))))
	case helperMaddu:
		c.setAcc(splitAcc(c.HI, c.LO) + uint64(uint32(a))*uint64(uint32(b)))
	case helperMsub:
		c.setAcc(splitAcc(c.HI, c.LO) - uint64(int64(int32(a))*int64(int32(b))))
	case helperMsubu:
		c.setAcc(splitAcc(c.HI, c.LO) - uint64(uint32(a))*uint64(uint32(b)))
	}

	return 0
}

func mask64(n uint) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}

	return uint64(1)<<n - 1
}

// bitField implements EXT, INS and their 64-bit variants. rs is the
// source, rt the insert destination.
func bitField(inst *insts.Instruction, rs, rt uint64) uint64 {
	sa, rd := uint(inst.Sa), uint(inst.Rd)

	var pos, size uint

	switch inst.Op {
	case insts.OpEXT:
		if sa+rd+1 > 32 {
			return rt
		}

		return sext32((rs >> sa) & mask64(rd+1))
	case insts.OpDEXT:
		pos, size = sa, rd+1
	case insts.OpDEXTM:
		pos, size = sa, rd+33
	case insts.OpDEXTU:
		pos, size = sa+32, rd+1
	case insts.OpINS, insts.OpDINS, insts.OpDINSM, insts.OpDINSU:
		return insertField(inst.Op, sa, rd, rs, rt)
	}

	if pos+size > 64 {
		return rt
	}

	return (rs >> pos) & mask64(size)
}

func insertField(op insts.Op, lsb, msb uint, rs, rt uint64) uint64 {
	switch op {
	case insts.OpDINSM:
		msb += 32
	case insts.OpDINSU:
		lsb += 32
		msb += 32
	}

	if msb < lsb {
		return rt
	}

	m := mask64(msb-lsb+1) << lsb
	v := rt&^m | (rs<<lsb)&m

	if op == insts.OpINS {
		return sext32(v)
	}

	return v
}

func (c *CPU) bigEndian() bool {
	return c.CP0.Config0&config0BE != 0
}

// unaligned implements the LWL family. a is the effective address, b the
// current rt value.
func (c *CPU) unaligned(h tcg.Helper, a, b uint64, memIdx int) (uint64, bool) {
	size := 4
	if h >= helperLdl {
		size = 8
	}

	bitsz := uint(size) * 8
	full := mask64(bitsz)
	aligned := a &^ uint64(size-1)
	o := uint(a & uint64(size-1))

	if c.bigEndian() {
		o = uint(size-1) - o
	}

	w, ok := c.Load(aligned, size, false, memIdx)
	if !ok {
		return 0, false
	}

	var v uint64

	switch h {
	case helperLwl, helperLdl:
		shift := (uint(size) - 1 - o) * 8
		v = b&mask64(shift) | w<<shift&full
	case helperLwr, helperLdr:
		shift := o * 8
		v = b&^(full>>shift)&full | w>>shift
	case helperSwl, helperSdl:
		shift := (uint(size) - 1 - o) * 8
		w = w&^(full>>shift) | (b&full)>>shift
	case helperSwr, helperSdr:
		shift := o * 8
		w = w&mask64(shift) | b<<shift&full
	}

	switch h {
	case helperSwl, helperSwr, helperSdl, helperSdr:
		return 0, c.Store(aligned, size, w, memIdx)
	}

	if size == 4 {
		v = sext32(v)
	}

	return v, true
}

func (c *CPU) loadLinked(double bool, addr uint64, memIdx int) (uint64, bool) {
	size := 4
	if double {
		size = 8
	}

	v, ok := c.Load(addr, size, !double, memIdx)
	if !ok {
		return 0, false
	}

	paddr, ok := c.translateAccess(addr, mem.AccessRead, privOf(memIdx))
	if !ok {
		return 0, false
	}

	c.llAddr = paddr
	c.llBit = true

	return v, true
}

func (c *CPU) storeConditional(double bool, addr, v uint64, memIdx int) (uint64, bool) {
	size := 4
	if double {
		size = 8
	}

	if addr&uint64(size-1) != 0 {
		c.raiseAddressFault(&Fault{Exc: ExcAdES, VAddr: addr})
		return 0, false
	}

	paddr, ok := c.translateAccess(addr, mem.AccessWrite, privOf(memIdx))
	if !ok {
		return 0, false
	}

	if !c.llBit || paddr != c.llAddr {
		c.llBit = false
		return 0, true
	}

	if !c.Store(addr, size, v, memIdx) {
		return 0, false
	}

	c.llBit = false

	return 1, true
}

// rdhwr reads hardware register rd, gated by HWREna outside kernel mode.
func (c *CPU) rdhwr(rd uint8) (uint64, bool) {
	if c.HFlags&HFlagCP0 == 0 && c.CP0.HWREna&(1<<rd) == 0 {
		c.Raise(uint64(ExcRI), 0)
		return 0, false
	}

	switch rd {
	case 0:
		return uint64(c.CP0.EBase & 0x3FF), true
	case 1:
		return 32, true
	case 2:
		return sext32(uint64(c.CP0.Count)), true
	case 3:
		return 2, true
	}

	c.Raise(uint64(ExcRI), 0)

	return 0, false
}
