package mips

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/vcore/mem"
	"github.com/sarchlab/vcore/trace"
)

// Exception is an exception class. It is wider than the Cause.ExcCode
// values because reset, NMI and the debug exceptions do not use Cause.
type Exception int

// Exception classes.
const (
	ExcNone Exception = iota
	ExcReset
	ExcSReset
	ExcNMI
	ExcDSS
	ExcDINT
	ExcDDBL
	ExcDDBS
	ExcDIB
	ExcDBp
	ExcInterrupt
	ExcMod
	ExcTLBL
	ExcTLBS
	ExcAdEL
	ExcAdES
	ExcIBE
	ExcDBE
	ExcSyscall
	ExcBreak
	ExcRI
	ExcCpU
	ExcOverflow
	ExcTrap
	ExcFPE
	ExcWatch
)

type excKind uint8

const (
	excGeneral excKind = iota
	excDebug
	excReset
)

type excInfo struct {
	name string
	kind excKind
	code uint32 // Cause.ExcCode for general exceptions, Debug bit otherwise
}

var exceptions = map[Exception]excInfo{
	ExcReset:     {name: "reset", kind: excReset},
	ExcSReset:    {name: "soft reset", kind: excReset},
	ExcNMI:       {name: "nmi", kind: excReset},
	ExcDSS:       {name: "debug single step", kind: excDebug, code: DebugDSS},
	ExcDINT:      {name: "debug interrupt", kind: excDebug, code: DebugDINT},
	ExcDDBL:      {name: "debug data break load", kind: excDebug, code: DebugDDBL},
	ExcDDBS:      {name: "debug data break store", kind: excDebug, code: DebugDDBS},
	ExcDIB:       {name: "debug instruction break", kind: excDebug, code: DebugDIB},
	ExcDBp:       {name: "debug breakpoint", kind: excDebug, code: DebugDBp},
	ExcInterrupt: {name: "interrupt", code: 0},
	ExcMod:       {name: "tlb modified", code: 1},
	ExcTLBL:      {name: "tlb load", code: 2},
	ExcTLBS:      {name: "tlb store", code: 3},
	ExcAdEL:      {name: "address error load", code: 4},
	ExcAdES:      {name: "address error store", code: 5},
	ExcIBE:       {name: "instruction bus error", code: 6},
	ExcDBE:       {name: "data bus error", code: 7},
	ExcSyscall:   {name: "syscall", code: 8},
	ExcBreak:     {name: "break", code: 9},
	ExcRI:        {name: "reserved instruction", code: 10},
	ExcCpU:       {name: "coprocessor unusable", code: 11},
	ExcOverflow:  {name: "overflow", code: 12},
	ExcTrap:      {name: "trap", code: 13},
	ExcFPE:       {name: "floating point", code: 15},
	ExcWatch:     {name: "watch", code: 23},
}

func (e Exception) String() string {
	if info, ok := exceptions[e]; ok {
		return info.name
	}

	if e == ExcNone {
		return "none"
	}

	return fmt.Sprintf("exception(%d)", int(e))
}

// CauseCode returns the Cause.ExcCode value of a general exception class.
func (e Exception) CauseCode() uint32 {
	return exceptions[e].code
}

// DoInterrupt delivers ExceptionIndex: it saves the restart PC, switches
// to the exception level and jumps to the vector. It panics on a class it
// does not know.
func (c *CPU) DoInterrupt() {
	exc := c.ExceptionIndex

	info, ok := exceptions[exc]
	if !ok {
		panic(fmt.Sprintf("mips: unknown exception class %d", int(exc)))
	}

	pc := c.PC
	inDelaySlot := c.HFlags&HFlagBMask != 0

	switch info.kind {
	case excDebug:
		c.CP0.Debug &^= DebugDSS | DebugDBp | DebugDDBL | DebugDDBS | DebugDIB | DebugDINT
		c.CP0.Debug |= info.code

		if c.CP0.Debug&DebugDM == 0 {
			c.CP0.DEPC = pc
			c.CP0.Debug &^= DebugDBD

			if inDelaySlot {
				c.CP0.DEPC = pc - 4
				c.CP0.Debug |= DebugDBD
			}

			c.CP0.Debug |= DebugDM
		}

		c.PC = DebugVector
	case excReset:
		c.CP0.ErrorEPC = pc
		if inDelaySlot {
			c.CP0.ErrorEPC = pc - 4
		}

		c.CP0.Status |= StatusERL | StatusBEV
		c.CP0.Status &^= StatusNMI | StatusSR

		switch exc {
		case ExcNMI:
			c.CP0.Status |= StatusNMI
		case ExcSReset:
			c.CP0.Status |= StatusSR
		}

		c.PC = ResetVector
	default:
		c.PC = c.generalVector() + c.vectorOffset(exc)

		if c.CP0.Status&StatusEXL == 0 {
			c.CP0.EPC = pc
			c.CP0.Cause &^= CauseBD

			if inDelaySlot {
				c.CP0.EPC = pc - 4
				c.CP0.Cause |= CauseBD
			}

			c.CP0.Status |= StatusEXL
		}

		c.CP0.Cause &^= CauseExcCodeMask | 3<<CauseCEShift
		c.CP0.Cause |= info.code << CauseExcCodeShift

		if exc == ExcCpU {
			c.CP0.Cause |= uint32(c.ErrorCode&3) << CauseCEShift
		}
	}

	if info.kind == excReset && exc != ExcNMI {
		c.flush(mem.FlushAll())
	}

	c.HFlags &^= HFlagBMask
	c.llBit = false
	c.ComputeHFlags()

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    trace.HookPosException,
		Detail: trace.ExceptionDetail{Class: info.name, PC: pc, Vector: c.PC},
	})

	c.ExceptionIndex = ExcNone
	c.ErrorCode = 0
}

// generalVector returns the vector base of a general exception.
func (c *CPU) generalVector() uint64 {
	if c.CP0.Status&StatusBEV != 0 {
		return 0xFFFFFFFFBFC00200
	}

	return sext32(uint64(c.CP0.EBase & 0xFFFFF000))
}

// vectorOffset selects the refill, interrupt or general entry point.
func (c *CPU) vectorOffset(exc Exception) uint64 {
	switch exc {
	case ExcTLBL, ExcTLBS:
		if c.ErrorCode == 1 && c.CP0.Status&StatusEXL == 0 {
			if c.model.Is64 && c.xtlbRefill() {
				return 0x080
			}

			return 0x000
		}
	case ExcInterrupt:
		if c.CP0.Cause&CauseIV != 0 {
			return 0x200
		}
	}

	return 0x180
}

// xtlbRefill reports whether the faulting address belongs to a segment
// whose refill uses the 64-bit handler.
func (c *CPU) xtlbRefill() bool {
	st := c.CP0.Status

	switch c.CP0.BadVAddr >> 62 {
	case 0:
		return st&StatusUX != 0
	case 1:
		return st&StatusSX != 0
	case 3:
		return st&StatusKX != 0
	}

	return false
}

// PendingInterrupt reports whether an enabled interrupt is waiting.
func (c *CPU) PendingInterrupt() bool {
	st := c.CP0.Status
	if st&StatusIE == 0 || st&(StatusEXL|StatusERL) != 0 || c.CP0.Debug&DebugDM != 0 {
		return false
	}

	return c.interruptLines() != 0
}

func (c *CPU) interruptLines() uint32 {
	return (c.CP0.Cause >> CauseIPShift) & (c.CP0.Status >> StatusIMShift) & 0xFF
}

// ProcessInterrupts is called between blocks. It wakes a halted CPU when a
// masked-in line is raised and delivers the interrupt when it is enabled.
func (c *CPU) ProcessInterrupts() bool {
	if c.interruptLines() != 0 {
		c.Halted = false
	}

	if !c.PendingInterrupt() {
		return false
	}

	c.ExceptionIndex = ExcInterrupt
	c.ErrorCode = 0
	c.DoInterrupt()

	return true
}

// Eret returns from an exception or error level.
func (c *CPU) Eret() {
	if c.CP0.Status&StatusERL != 0 {
		c.PC = c.CP0.ErrorEPC
		c.CP0.Status &^= StatusERL
		c.flush(mem.FlushAll())
	} else {
		c.PC = c.CP0.EPC
		c.CP0.Status &^= StatusEXL
	}

	c.HFlags &^= HFlagBMask
	c.llBit = false
	c.ComputeHFlags()
}

// Deret returns from debug mode.
func (c *CPU) Deret() {
	c.PC = c.CP0.DEPC
	c.CP0.Debug &^= DebugDM
	c.HFlags &^= HFlagBMask
	c.ComputeHFlags()
}
