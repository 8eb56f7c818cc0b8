// Package mips models a MIPS32/MIPS64 processor for dynamic translation:
// the register state, the CP0 system control block, the TLB based address
// translation, exception delivery and the block translator that turns guest
// code into tcg micro-operations.
package mips

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/vcore/insts"
	"github.com/sarchlab/vcore/mem"
	"github.com/sarchlab/vcore/trace"
)

// Register indices in the tcg register namespace. 0-31 are the GPRs.
const (
	RegHI = 32 + iota
	RegLO
	RegPC
	RegBTarget
	RegBCond
	RegHFlags
)

// Hidden flags. They are part of the translation block key.
const (
	HFlagUM  uint32 = 1 << 0 // user mode
	HFlagDM  uint32 = 1 << 1 // debug mode
	HFlagCP0 uint32 = 1 << 2 // CP0 accessible
	HFlagFPU uint32 = 1 << 3 // CP1 usable
	HFlagF64 uint32 = 1 << 4 // 64-bit FPU registers
	HFlag64  uint32 = 1 << 5 // 64-bit operations enabled

	// Branch state, three bits.
	HFlagB     uint32 = 1 << 8 // unconditional branch pending
	HFlagBC    uint32 = 2 << 8 // conditional branch pending
	HFlagBL    uint32 = 3 << 8 // likely branch pending
	HFlagBR    uint32 = 4 << 8 // register branch pending
	HFlagBMask uint32 = 7 << 8
)

// Reset and debug vectors.
const (
	ResetVector uint64 = 0xFFFFFFFFBFC00000
	DebugVector uint64 = 0xFFFFFFFFBFC00480
)

// DefaultMaxBlockOps is the op buffer size used when no option overrides it.
const DefaultMaxBlockOps = 512

// CPU is one MIPS processor.
type CPU struct {
	*sim.HookableBase

	model   *Model
	bus     mem.Bus
	lookup  mem.Lookup
	decoder *insts.Decoder

	gpr [32]uint64

	HI, LO  uint64
	PC      uint64
	HFlags  uint32
	BTarget uint64
	BCond   uint64

	FPU FPU
	CP0 CP0
	TLB TLB

	// ExceptionIndex is the pending exception, ExcNone when idle.
	ExceptionIndex Exception
	// ErrorCode qualifies ExceptionIndex: the refill flag for TLB
	// exceptions, the coprocessor number for CpU.
	ErrorCode uint64
	// Halted is set by WAIT until an interrupt arrives.
	Halted bool

	llAddr uint64
	llBit  bool

	breakpoints map[uint64]bool
	singleStep  bool
	debugTrap   bool
	strictCP0   bool
	maxBlockOps int
}

// Option configures a CPU.
type Option func(*CPU)

// WithStrictCP0 selects how accesses to unmodelled CP0 registers are
// handled. Strict accesses raise Reserved Instruction; otherwise they are
// reported on the event sink and read as zero or dropped.
func WithStrictCP0(strict bool) Option {
	return func(c *CPU) {
		c.strictCP0 = strict
	}
}

// WithMaxBlockOps sets the op buffer size of translated blocks.
func WithMaxBlockOps(n int) Option {
	return func(c *CPU) {
		c.maxBlockOps = n
	}
}

// WithSingleStep ends every translated block after one instruction.
func WithSingleStep(on bool) Option {
	return func(c *CPU) {
		c.singleStep = on
	}
}

// WithHook attaches an event hook.
func WithHook(h sim.Hook) Option {
	return func(c *CPU) {
		c.AcceptHook(h)
	}
}

// New creates a CPU of the named model on bus and resets it.
func New(model string, bus mem.Bus, opts ...Option) (*CPU, error) {
	m, err := LookupModel(model)
	if err != nil {
		return nil, err
	}

	if bus == nil {
		return nil, ErrNoBus
	}

	c := &CPU{
		HookableBase: sim.NewHookableBase(),
		model:        m,
		bus:          bus,
		decoder:      insts.NewDecoder(),
		breakpoints:  make(map[uint64]bool),
		strictCP0:    true,
		maxBlockOps:  DefaultMaxBlockOps,
	}

	if l, ok := bus.(mem.Lookup); ok {
		c.lookup = l
	}

	for _, opt := range opts {
		opt(c)
	}

	c.TLB.init(m.NumTLB)
	c.Reset()

	return c, nil
}

// Model returns the CPU model.
func (c *CPU) Model() *Model { return c.model }

// Reset puts the CPU in its power-on state.
func (c *CPU) Reset() {
	c.gpr = [32]uint64{}
	c.HI, c.LO = 0, 0
	c.BTarget, c.BCond = 0, 0
	c.llBit = false
	c.Halted = false
	c.debugTrap = false
	c.ExceptionIndex = ExcNone
	c.ErrorCode = 0

	c.CP0.reset(c.model)
	c.TLB.reset(c.segMask())
	c.FPU.reset(c.model)

	c.PC = ResetVector
	c.HFlags = 0
	c.ComputeHFlags()
	c.flush(mem.FlushAll())
}

// GPR reads a general-purpose register. The zero register reads as 0.
func (c *CPU) GPR(r insts.Reg) uint64 {
	if r.IsZero() {
		return 0
	}

	return c.gpr[r]
}

// SetGPR writes a general-purpose register. Writes to the zero register
// are discarded.
func (c *CPU) SetGPR(r insts.Reg, v uint64) {
	if r.IsZero() {
		return
	}

	c.gpr[r] = v
}

// Flags returns the hidden flags that key the next translation block.
func (c *CPU) Flags() uint32 { return c.HFlags }

// kernelMode reports whether the CPU runs with kernel privilege.
func (c *CPU) kernelMode() bool {
	st := c.CP0.Status
	return st&(StatusEXL|StatusERL) != 0 || (st>>StatusKSUShift)&3 != 2 || c.CP0.Debug&DebugDM != 0
}

// ComputeHFlags derives the mode bits of HFlags from Status, Debug and the
// model, keeping the branch state.
func (c *CPU) ComputeHFlags() {
	h := c.HFlags & HFlagBMask
	st := c.CP0.Status

	if !c.kernelMode() {
		h |= HFlagUM
	}

	if c.CP0.Debug&DebugDM != 0 {
		h |= HFlagDM
	}

	if h&HFlagUM == 0 || st&StatusCU0 != 0 {
		h |= HFlagCP0
	}

	if c.model.HasFPU() && st&StatusCU1 != 0 {
		h |= HFlagFPU

		if st&StatusFR != 0 {
			h |= HFlagF64
		}
	}

	if c.model.Is64 && (h&HFlagUM == 0 || st&StatusUX != 0) {
		h |= HFlag64
	}

	c.HFlags = h
}

// AddBreakpoint registers a breakpoint address. Translated code is
// flushed since blocks embed their breakpoints.
func (c *CPU) AddBreakpoint(pc uint64) {
	c.breakpoints[pc] = true
	c.flush(mem.FlushCode())
}

// RemoveBreakpoint removes a breakpoint address.
func (c *CPU) RemoveBreakpoint(pc uint64) {
	delete(c.breakpoints, pc)
	c.flush(mem.FlushCode())
}

// SetSingleStep enables or disables single-instruction blocks.
func (c *CPU) SetSingleStep(on bool) {
	c.singleStep = on
	c.flush(mem.FlushCode())
}

// TakeDebugTrap reports and clears a pending host debug stop.
func (c *CPU) TakeDebugTrap() bool {
	hit := c.debugTrap
	c.debugTrap = false

	return hit
}

// BlockKey returns the pc and hidden flags that select the next block.
func (c *CPU) BlockKey() (uint64, uint32) { return c.PC, c.HFlags }

// Waiting reports whether the CPU is halted in WAIT.
func (c *CPU) Waiting() bool { return c.Halted }

func (c *CPU) flush(scope mem.Scope) {
	c.bus.FlushTranslations(scope)
	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    trace.HookPosTranslationFlush,
		Detail: scope,
	})
}

// Reg implements tcg.Target.
func (c *CPU) Reg(idx int) uint64 {
	switch {
	case idx < 32:
		return c.GPR(insts.Reg(idx))
	case idx == RegHI:
		return c.HI
	case idx == RegLO:
		return c.LO
	case idx == RegPC:
		return c.PC
	case idx == RegBTarget:
		return c.BTarget
	case idx == RegBCond:
		return c.BCond
	case idx == RegHFlags:
		return uint64(c.HFlags)
	}

	panic(fmt.Sprintf("mips: read of unknown register index %d", idx))
}

// SetReg implements tcg.Target.
func (c *CPU) SetReg(idx int, v uint64) {
	switch {
	case idx < 32:
		c.SetGPR(insts.Reg(idx), v)
	case idx == RegHI:
		c.HI = v
	case idx == RegLO:
		c.LO = v
	case idx == RegPC:
		c.PC = v
	case idx == RegBTarget:
		c.BTarget = v
	case idx == RegBCond:
		c.BCond = v
	case idx == RegHFlags:
		c.HFlags = uint32(v)
	default:
		panic(fmt.Sprintf("mips: write of unknown register index %d", idx))
	}
}

// SetPC implements tcg.Target.
func (c *CPU) SetPC(pc uint64) { c.PC = pc }

// Raise implements tcg.Target.
func (c *CPU) Raise(exc, code uint64) {
	c.ExceptionIndex = Exception(exc)
	c.ErrorCode = code
	c.DoInterrupt()
}

// Debug implements tcg.Target. It stops the host run loop without
// entering a guest exception.
func (c *CPU) Debug() {
	c.debugTrap = true
}

func privOf(memIdx int) mem.Privilege {
	if memIdx == 0 {
		return mem.PrivUser
	}

	return mem.PrivKernel
}

// Load implements tcg.Target.
func (c *CPU) Load(vaddr uint64, size int, signed bool, memIdx int) (uint64, bool) {
	if vaddr&uint64(size-1) != 0 {
		c.raiseAddressFault(&Fault{Exc: ExcAdEL, VAddr: vaddr})
		return 0, false
	}

	paddr, ok := c.translateAccess(vaddr, mem.AccessRead, privOf(memIdx))
	if !ok {
		return 0, false
	}

	v, err := c.bus.Load(paddr, size)
	if err != nil {
		c.Raise(uint64(ExcDBE), 0)
		return 0, false
	}

	if signed {
		shift := 64 - uint(size)*8
		v = uint64(int64(v<<shift) >> shift)
	}

	return v, true
}

// Store implements tcg.Target.
func (c *CPU) Store(vaddr uint64, size int, v uint64, memIdx int) bool {
	if vaddr&uint64(size-1) != 0 {
		c.raiseAddressFault(&Fault{Exc: ExcAdES, VAddr: vaddr})
		return false
	}

	paddr, ok := c.translateAccess(vaddr, mem.AccessWrite, privOf(memIdx))
	if !ok {
		return false
	}

	if c.llBit && paddr&^7 == c.llAddr&^7 {
		c.llBit = false
	}

	if err := c.bus.Store(paddr, size, v); err != nil {
		c.Raise(uint64(ExcDBE), 0)
		return false
	}

	return true
}

// translateAccess maps vaddr through the translation cache, falling back
// to the TLB walk and inserting the result. Faults are delivered.
func (c *CPU) translateAccess(vaddr uint64, access mem.Access, priv mem.Privilege) (uint64, bool) {
	if c.lookup != nil {
		if tr, ok := c.lookup.LookupTranslation(vaddr, priv); ok && tr.Prot.Allows(access) {
			return tr.PAddr, true
		}
	}

	paddr, prot, err := c.Translate(vaddr, access, priv == mem.PrivUser)
	if err != nil {
		c.raiseAddressFault(err)
		return 0, false
	}

	c.bus.InsertTranslation(vaddr, paddr, prot, priv)

	return paddr, true
}

// fetchCode reads an instruction word for the translator. It never
// records fault state; a failed fetch is reported to the caller.
func (c *CPU) fetchCode(vaddr uint64, user bool) (uint32, bool) {
	paddr, _, err := c.Translate(vaddr, mem.AccessExecute, user)
	if err != nil {
		return 0, false
	}

	word, berr := c.bus.FetchCode(paddr)
	if berr != nil {
		return 0, false
	}

	return word, true
}

func sext32(v uint64) uint64 {
	return uint64(int64(int32(v)))
}
