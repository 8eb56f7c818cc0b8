package arm

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/vcore/trace"
)

// Mode is a processor mode as encoded in CPSR.M.
type Mode uint32

// Processor modes.
const (
	ModeUSR Mode = 0x10
	ModeFIQ Mode = 0x11
	ModeIRQ Mode = 0x12
	ModeSVC Mode = 0x13
	ModeABT Mode = 0x17
	ModeUND Mode = 0x1b
	ModeSYS Mode = 0x1f
)

var modeNames = map[Mode]string{
	ModeUSR: "usr",
	ModeFIQ: "fiq",
	ModeIRQ: "irq",
	ModeSVC: "svc",
	ModeABT: "abt",
	ModeUND: "und",
	ModeSYS: "sys",
}

func (m Mode) String() string {
	if n, ok := modeNames[m]; ok {
		return n
	}

	return fmt.Sprintf("mode(0x%x)", uint32(m))
}

// CPSR fields.
const (
	CPSRM  uint32 = 0x1f
	CPSRT  uint32 = 1 << 5
	CPSRF  uint32 = 1 << 6
	CPSRI  uint32 = 1 << 7
	CPSRA  uint32 = 1 << 8
	CPSRE  uint32 = 1 << 9
	CPSRGE uint32 = 0xf << 16
	CPSRJ  uint32 = 1 << 24
	CPSRQ  uint32 = 1 << 27
	CPSRV  uint32 = 1 << 28
	CPSRC  uint32 = 1 << 29
	CPSRZ  uint32 = 1 << 30
	CPSRN  uint32 = 1 << 31

	CPSRNZCV = CPSRN | CPSRZ | CPSRC | CPSRV

	// CPSRCached are the bits held in the flag cache rather than in the
	// packed word.
	CPSRCached = CPSRT | CPSRQ | CPSRNZCV
)

// Register arena layout. Slots 0-15 hold the user bank, 16-20 the FIQ
// copies of r8-r12, and each privileged bank owns an r13/r14 pair.
const (
	numBanks = 6
	fiqSlot  = 16
	bankSlot = 21
	numSlots = bankSlot + 2*(numBanks-1)
	bankUser = 0
	bankFIQ  = 5
	regSP    = 13
	regLR    = 14
	regPC    = 15
)

func bankOf(m Mode) (int, bool) {
	switch m {
	case ModeUSR, ModeSYS:
		return 0, true
	case ModeSVC:
		return 1, true
	case ModeABT:
		return 2, true
	case ModeUND:
		return 3, true
	case ModeIRQ:
		return 4, true
	case ModeFIQ:
		return bankFIQ, true
	}

	return 0, false
}

// slot returns the arena index of rn as seen from mode m.
func slot(m Mode, bank, n int) uint8 {
	switch {
	case n >= 8 && n <= 12 && m == ModeFIQ:
		return uint8(fiqSlot + n - 8)
	case (n == regSP || n == regLR) && bank != bankUser:
		return uint8(bankSlot + 2*(bank-1) + n - regSP)
	}

	return uint8(n)
}

// Mode returns the current processor mode.
func (c *CPU) Mode() Mode { return Mode(c.uncachedCPSR & CPSRM) }

// CPSR packs the status word from the flag cache and the stored bits.
func (c *CPU) CPSR() uint32 {
	v := c.uncachedCPSR &^ CPSRCached
	v |= c.NF & CPSRN
	v |= (c.VF >> 3) & CPSRV
	v |= (c.CF & 1) << 29
	v |= (c.QF & 1) << 27

	if c.ZF == 0 {
		v |= CPSRZ
	}

	if c.Thumb {
		v |= CPSRT
	}

	return v
}

// SetCPSR writes the bits of v selected by mask. A change of the mode
// field switches register banks first; an invalid mode panics.
func (c *CPU) SetCPSR(v, mask uint32) {
	if mask&CPSRN != 0 {
		c.NF = v & CPSRN
	}

	if mask&CPSRZ != 0 {
		c.ZF = ^v & CPSRZ
	}

	if mask&CPSRC != 0 {
		c.CF = (v >> 29) & 1
	}

	if mask&CPSRV != 0 {
		c.VF = (v << 3) & CPSRN
	}

	if mask&CPSRQ != 0 {
		c.QF = (v >> 27) & 1
	}

	if mask&CPSRT != 0 {
		c.Thumb = v&CPSRT != 0
	}

	if (c.uncachedCPSR^v)&mask&CPSRM != 0 {
		c.SwitchMode(Mode((c.uncachedCPSR&^mask | v&mask) & CPSRM))
	}

	mask &^= CPSRCached | CPSRM
	c.uncachedCPSR = c.uncachedCPSR&^mask | v&mask
}

// SwitchMode changes the processor mode, remapping the banked registers
// and the live SPSR. Switching to the current mode does nothing.
func (c *CPU) SwitchMode(m Mode) {
	old := c.Mode()
	if m == old {
		return
	}

	bank, ok := bankOf(m)
	if !ok {
		panic(fmt.Sprintf("arm: bad mode 0x%x", uint32(m)))
	}

	c.remap(m, bank)
	c.uncachedCPSR = c.uncachedCPSR&^CPSRM | uint32(m)

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    trace.HookPosModeSwitch,
		Detail: trace.ModeDetail{From: old.String(), To: m.String()},
	})
}

func (c *CPU) remap(m Mode, bank int) {
	for n := 8; n <= regLR; n++ {
		c.live[n] = slot(m, bank, n)
	}

	c.bank = bank
}

// Reg reads rn of the current mode.
func (c *CPU) Reg(n int) uint32 { return c.regs[c.live[n]] }

// SetReg writes rn of the current mode.
func (c *CPU) SetReg(n int, v uint32) { c.regs[c.live[n]] = v }

// PC returns r15.
func (c *CPU) PC() uint32 { return c.regs[regPC] }

// SetPC writes r15.
func (c *CPU) SetPC(v uint32) { c.regs[regPC] = v }

// BankedReg reads rn as seen from mode m without switching to it.
func (c *CPU) BankedReg(m Mode, n int) uint32 {
	bank, ok := bankOf(m)
	if !ok {
		panic(fmt.Sprintf("arm: bad mode 0x%x", uint32(m)))
	}

	return c.regs[slot(m, bank, n)]
}

// SPSR reads the saved status of the current mode. User and system mode
// have no SPSR of their own and share one unused slot.
func (c *CPU) SPSR() uint32 { return c.spsr[c.bank] }

// SetSPSR writes the saved status of the current mode.
func (c *CPU) SetSPSR(v uint32) { c.spsr[c.bank] = v }

// BankedSPSR reads the saved status of mode m.
func (c *CPU) BankedSPSR(m Mode) uint32 {
	bank, ok := bankOf(m)
	if !ok {
		panic(fmt.Sprintf("arm: bad mode 0x%x", uint32(m)))
	}

	return c.spsr[bank]
}

// SetNZ sets N and Z from a result.
func (c *CPU) SetNZ(result uint32) {
	c.NF = result
	c.ZF = result
}

// Condition evaluates an ARM condition code against the flags.
func (c *CPU) Condition(cond uint32) bool {
	n := c.NF&CPSRN != 0
	z := c.ZF == 0
	cf := c.CF != 0
	v := c.VF&CPSRN != 0

	switch cond & 0xf {
	case 0x0:
		return z
	case 0x1:
		return !z
	case 0x2:
		return cf
	case 0x3:
		return !cf
	case 0x4:
		return n
	case 0x5:
		return !n
	case 0x6:
		return v
	case 0x7:
		return !v
	case 0x8:
		return cf && !z
	case 0x9:
		return !cf || z
	case 0xa:
		return n == v
	case 0xb:
		return n != v
	case 0xc:
		return !z && n == v
	case 0xd:
		return z || n != v
	}

	return true
}
