// Package emu runs translated guest code: a reference interpreter for tcg
// blocks, a cache of translated blocks and the run loop joining them to a
// guest CPU.
package emu

import (
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/vcore/tcg"
)

// Guest is a CPU the run loop can drive.
type Guest interface {
	tcg.Target

	// TranslateBlock translates the code at pc under the hidden flags.
	TranslateBlock(pc uint64, flags uint32) *tcg.Block
	// BlockKey returns the key of the next block to run.
	BlockKey() (pc uint64, flags uint32)
	// ProcessInterrupts delivers a pending enabled interrupt.
	ProcessInterrupts() bool
	// Waiting reports whether the guest sleeps until an interrupt.
	Waiting() bool
	// TakeDebugTrap reports and clears a breakpoint or single-step stop.
	TakeDebugTrap() bool
}

// Counter is implemented by guests with a free-running counter driven by
// retired instructions.
type Counter interface {
	AdvanceCount(n uint32)
}

// CodeGenerations is implemented by memory collaborators that count the
// events invalidating translated code.
type CodeGenerations interface {
	CodeGeneration() uint64
}

// StepResult represents the result of running one block.
type StepResult struct {
	// Exited is true when a breakpoint or single step stopped the guest.
	Exited bool

	// Halted is true when the guest waits for an interrupt.
	Halted bool

	// Err is set if the run loop cannot continue.
	Err error
}

// Machine runs a guest block by block.
type Machine struct {
	guest Guest
	exec  *Executor
	cache *BlockCache
	gens  CodeGenerations

	stdout     io.Writer
	stderr     io.Writer
	traceBlock bool

	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// MachineOption is a functional option for configuring the Machine.
type MachineOption func(*Machine)

// WithStdout sets the writer for block traces.
func WithStdout(w io.Writer) MachineOption {
	return func(m *Machine) {
		m.stdout = w
	}
}

// WithStderr sets the writer for run-loop errors.
func WithStderr(w io.Writer) MachineOption {
	return func(m *Machine) {
		m.stderr = w
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) MachineOption {
	return func(m *Machine) {
		m.maxInstructions = max
	}
}

// WithCodeGenerations sets the source whose counter invalidates the
// block cache.
func WithCodeGenerations(g CodeGenerations) MachineOption {
	return func(m *Machine) {
		m.gens = g
	}
}

// WithBlockTrace prints one line per executed block to stdout.
func WithBlockTrace(on bool) MachineOption {
	return func(m *Machine) {
		m.traceBlock = on
	}
}

// NewMachine creates a Machine running g.
func NewMachine(g Guest, opts ...MachineOption) *Machine {
	m := &Machine{
		guest:  g,
		exec:   NewExecutor(),
		cache:  NewBlockCache(),
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Cache returns the machine's block cache.
func (m *Machine) Cache() *BlockCache {
	return m.cache
}

// InstructionCount returns the number of guest instructions retired. A
// block abandoned on an exception counts as one instruction.
func (m *Machine) InstructionCount() uint64 {
	return m.instructionCount
}

// Step delivers pending interrupts, then finds or translates the next
// block and runs it.
func (m *Machine) Step() StepResult {
	if m.maxInstructions > 0 && m.instructionCount >= m.maxInstructions {
		return StepResult{Err: fmt.Errorf("%w: %d", ErrInstructionLimit, m.maxInstructions)}
	}

	m.guest.ProcessInterrupts()

	if m.guest.Waiting() {
		return StepResult{Halted: true}
	}

	block := m.lookup()
	res := m.exec.Exec(block, m.guest)

	retired := block.NumInsns
	if res.Faulted {
		retired = 1
	}

	m.instructionCount += uint64(retired)

	if c, ok := m.guest.(Counter); ok {
		c.AdvanceCount(uint32(retired))
	}

	if m.traceBlock {
		_, _ = fmt.Fprintf(m.stdout, "block 0x%x flags 0x%x insns %d exit %v faulted %v\n",
			block.PC, block.Flags, block.NumInsns, block.Exit, res.Faulted)
	}

	if m.guest.TakeDebugTrap() {
		return StepResult{Exited: true}
	}

	if block.Exit == tcg.ExitSingleStep && !res.Faulted {
		return StepResult{Exited: true}
	}

	return StepResult{Halted: m.guest.Waiting()}
}

func (m *Machine) lookup() *tcg.Block {
	if m.gens != nil {
		m.cache.Sync(m.gens.CodeGeneration())
	}

	pc, flags := m.guest.BlockKey()
	if b, ok := m.cache.Get(pc, flags); ok {
		return b
	}

	b := m.guest.TranslateBlock(pc, flags)

	// The translator may have flushed translations while reading code.
	if m.gens != nil {
		m.cache.Sync(m.gens.CodeGeneration())
	}

	m.cache.PutKey(pc, flags, b)

	return b
}

// Run steps until the guest halts, stops on a debug trap or an error
// occurs. A halted guest is not an error.
func (m *Machine) Run() StepResult {
	for {
		result := m.Step()
		if result.Err != nil {
			_, _ = fmt.Fprintf(m.stderr, "Emulation error: %v\n", result.Err)
			return result
		}

		if result.Exited || result.Halted {
			return result
		}
	}
}
