// Package arm models the privileged side of an ARM processor: the banked
// register file and packed status word, the CP15 system control
// coprocessor, MPU and page-table address translation, and exception
// entry.
package arm

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/vcore/mem"
	"github.com/sarchlab/vcore/trace"
)

// DefaultBootQuirkLimit is the address below which translated accesses
// always succeed, letting boot code run before the page tables exist.
const DefaultBootQuirkLimit = 0x4000

// Interrupt is a set of pending interrupt requests.
type Interrupt uint32

// Interrupt request bits.
const (
	InterruptHard Interrupt = 1 << iota
	InterruptFIQ
	// InterruptExitTB asks the run loop to leave the current block.
	InterruptExitTB
)

// VFP holds the identity and control registers of the floating-point
// unit.
type VFP struct {
	FPSID uint32
	FPSCR uint32
	FPEXC uint32
	MVFR0 uint32
	MVFR1 uint32
}

// CPU is one ARM processor.
type CPU struct {
	*sim.HookableBase

	model    *Model
	Features Feature
	bus      mem.Bus
	lookup   mem.Lookup

	regs [numSlots]uint32
	live [16]uint8
	bank int
	spsr [numBanks]uint32

	uncachedCPSR uint32

	// Flag cache. N is bit 31 of NF, Z is set when ZF is zero, C is CF,
	// V is bit 31 of VF and Q is QF.
	NF, ZF, CF, VF, QF uint32
	Thumb              bool

	CP15 CP15
	VFP  VFP
	// WCID is the iwMMXt coprocessor ID register.
	WCID uint32

	// ExceptionIndex is the pending exception, ExcNone when idle.
	ExceptionIndex   Exception
	InterruptRequest Interrupt
	// Halted is set by wait-for-interrupt until an interrupt arrives.
	Halted bool

	coprocessors [numCoprocessors]Coprocessor

	strictSysRegs  bool
	bootQuirkLimit uint32
	monitor        Monitor
	highVectors    bool
}

// Option configures a CPU.
type Option func(*CPU)

// WithStrictSystemRegisters selects how accesses to unmodelled CP15
// registers are handled. Strict accesses fail with
// ErrUnimplementedRegister and leave an undefined instruction exception
// pending; otherwise they are reported on the event sink and read as zero
// or dropped.
func WithStrictSystemRegisters(strict bool) Option {
	return func(c *CPU) {
		c.strictSysRegs = strict
	}
}

// WithBootQuirkLimit sets the address below which the page-table walk
// grants full access. Zero disables the quirk.
func WithBootQuirkLimit(limit uint32) Option {
	return func(c *CPU) {
		c.bootQuirkLimit = limit
	}
}

// WithDebugMonitor enables the software interrupt intercept.
func WithDebugMonitor(m Monitor) Option {
	return func(c *CPU) {
		c.monitor = m
	}
}

// WithHighVectors sets the V bit of the control register on reset.
func WithHighVectors(on bool) Option {
	return func(c *CPU) {
		c.highVectors = on
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
		HookableBase:   sim.NewHookableBase(),
		model:          m,
		bus:            bus,
		bootQuirkLimit: DefaultBootQuirkLimit,
	}

	if l, ok := bus.(mem.Lookup); ok {
		c.lookup = l
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Reset()

	return c, nil
}

// Model returns the CPU model.
func (c *CPU) Model() *Model { return c.model }

// SetModel switches the CPU to another model and resets it.
func (c *CPU) SetModel(name string) error {
	m, err := LookupModel(name)
	if err != nil {
		return err
	}

	c.model = m
	c.Reset()

	return nil
}

// Reset puts the CPU in its power-on state: supervisor mode with
// interrupts and aborts masked, registers cleared and the identity
// registers loaded from the model.
func (c *CPU) Reset() {
	m := c.model

	c.regs = [numSlots]uint32{}
	c.spsr = [numBanks]uint32{}
	c.NF, c.ZF, c.CF, c.VF, c.QF = 0, 1, 0, 0, 0
	c.Thumb = false

	c.uncachedCPSR = uint32(ModeSVC) | CPSRA | CPSRF | CPSRI
	for n := range c.live {
		c.live[n] = uint8(n)
	}

	bank, _ := bankOf(ModeSVC)
	c.remap(ModeSVC, bank)

	c.Features = m.Features
	c.CP15 = CP15{
		CPUID:     m.CPUID,
		CacheType: m.CacheType,
		Control:   m.ResetControl,
	}
	if c.highVectors {
		c.CP15.Control |= ControlV
	}
	c.VFP = VFP{FPSID: m.FPSID, MVFR0: m.MVFR0, MVFR1: m.MVFR1}
	c.WCID = m.WCID

	c.ExceptionIndex = ExcNone
	c.InterruptRequest = 0
	c.Halted = false

	c.flush(mem.FlushAll())
}

// HasFeature reports whether the CPU implements f.
func (c *CPU) HasFeature(f Feature) bool { return c.Features.Has(f) }

// SetIRQ drives the IRQ line.
func (c *CPU) SetIRQ(level bool) { c.setLine(InterruptHard, level) }

// SetFIQ drives the FIQ line.
func (c *CPU) SetFIQ(level bool) { c.setLine(InterruptFIQ, level) }

func (c *CPU) setLine(bit Interrupt, level bool) {
	if level {
		c.InterruptRequest |= bit
		return
	}

	c.InterruptRequest &^= bit
}

// Waiting reports whether the CPU is halted in wait-for-interrupt.
func (c *CPU) Waiting() bool { return c.Halted }

// ProcessInterrupts wakes a halted CPU when a line is raised and takes
// the highest priority unmasked interrupt. It reports whether an
// exception was entered.
func (c *CPU) ProcessInterrupts() bool {
	if c.InterruptRequest&(InterruptHard|InterruptFIQ) != 0 {
		c.Halted = false
	}

	switch {
	case c.InterruptRequest&InterruptFIQ != 0 && c.uncachedCPSR&CPSRF == 0:
		c.ExceptionIndex = ExcFIQ
	case c.InterruptRequest&InterruptHard != 0 && c.uncachedCPSR&CPSRI == 0:
		c.ExceptionIndex = ExcIRQ
	default:
		return false
	}

	c.DoInterrupt()

	return true
}

// TakeExitRequest reports and clears a pending request to leave the
// current translation block.
func (c *CPU) TakeExitRequest() bool {
	pending := c.InterruptRequest&InterruptExitTB != 0
	c.InterruptRequest &^= InterruptExitTB

	return pending
}

func (c *CPU) flush(scope mem.Scope) {
	c.bus.FlushTranslations(scope)
	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    trace.HookPosTranslationFlush,
		Detail: scope,
	})
}
