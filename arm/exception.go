package arm

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/vcore/trace"
)

// Exception is an exception class.
type Exception int

// Exception classes.
const (
	ExcNone Exception = iota - 1
	_
	ExcUDEF
	ExcSWI
	ExcPrefetchAbort
	ExcDataAbort
	ExcIRQ
	ExcFIQ
	ExcBKPT
)

type excInfo struct {
	name   string
	mode   Mode
	vector uint32
	mask   uint32
	// offset is added to r15 to form the return link.
	offset      uint32
	thumbOffset uint32
}

var exceptions = map[Exception]excInfo{
	ExcUDEF:          {"undefined instruction", ModeUND, 0x04, CPSRI, 4, 2},
	ExcSWI:           {"software interrupt", ModeSVC, 0x08, CPSRI, 0, 0},
	ExcPrefetchAbort: {"prefetch abort", ModeABT, 0x0c, CPSRA | CPSRI, 4, 4},
	ExcBKPT:          {"breakpoint", ModeABT, 0x0c, CPSRA | CPSRI, 4, 4},
	ExcDataAbort:     {"data abort", ModeABT, 0x10, CPSRA | CPSRI, 8, 8},
	ExcIRQ:           {"irq", ModeIRQ, 0x18, CPSRA | CPSRI, 4, 4},
	ExcFIQ:           {"fiq", ModeFIQ, 0x1c, CPSRA | CPSRI | CPSRF, 4, 4},
}

func (e Exception) String() string {
	if e == ExcNone {
		return "none"
	}

	if info, ok := exceptions[e]; ok {
		return info.name
	}

	return fmt.Sprintf("exception(%d)", int(e))
}

// Software interrupt numbers taken by the debug monitor.
const (
	MonitorSWI      = 0x123456
	MonitorThumbSWI = 0xab
)

// Monitor services debug monitor calls. The result is written to r0.
type Monitor interface {
	Call(c *CPU) uint32
}

// MonitorFunc adapts a function to Monitor.
type MonitorFunc func(c *CPU) uint32

// Call implements Monitor.
func (f MonitorFunc) Call(c *CPU) uint32 { return f(c) }

// monitorCall reports whether the pending software interrupt is a debug
// monitor request from a privileged mode.
func (c *CPU) monitorCall() bool {
	if c.monitor == nil || c.Mode() == ModeUSR {
		return false
	}

	pc := c.PC()

	if c.Thumb {
		insn, ok := c.peekCode(pc-2, 2)
		return ok && insn&0xff == MonitorThumbSWI
	}

	insn, ok := c.peekCode(pc-4, 4)

	return ok && insn&0xffffff == MonitorSWI
}

// DoInterrupt enters ExceptionIndex: it banks the status word into the
// new mode's SPSR, masks interrupts, links r14 and jumps to the vector.
// It panics on a class it does not know.
func (c *CPU) DoInterrupt() {
	exc := c.ExceptionIndex

	info, ok := exceptions[exc]
	if !ok {
		panic(fmt.Sprintf("arm: unhandled exception %d", int(exc)))
	}

	c.ExceptionIndex = ExcNone

	if exc == ExcSWI && c.monitorCall() {
		c.SetReg(0, c.monitor.Call(c))
		return
	}

	vector := info.vector
	if c.CP15.Control&ControlV != 0 {
		vector += 0xffff0000
	}

	offset := info.offset
	if c.Thumb {
		offset = info.thumbOffset
	}

	pc := c.PC()
	saved := c.CPSR()

	c.SwitchMode(info.mode)
	c.SetSPSR(saved)
	c.uncachedCPSR |= info.mask
	c.Thumb = false
	c.SetReg(regLR, pc+offset)
	c.SetPC(vector)
	c.InterruptRequest |= InterruptExitTB

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    trace.HookPosException,
		Detail: trace.ExceptionDetail{Class: info.name, PC: uint64(pc), Vector: uint64(vector)},
	})
}
