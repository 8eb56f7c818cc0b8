// Package trace defines the structured events emitted by the CPU cores and
// a few hooks that consume them.
//
// Cores embed an Akita sim.HookableBase. A host enables tracing on one CPU
// instance by attaching a hook to it; nothing is process-wide.
package trace

import (
	"fmt"
	"io"
	"sync"

	"github.com/sarchlab/akita/v4/sim"
)

// Hook positions invoked by the cores.
var (
	// HookPosBlockTranslated fires after a block is translated. Item is the
	// *tcg.Block.
	HookPosBlockTranslated = &sim.HookPos{Name: "BlockTranslated"}
	// HookPosException fires when an exception is delivered. Detail is an
	// ExceptionDetail.
	HookPosException = &sim.HookPos{Name: "Exception"}
	// HookPosUnimplementedRegister fires on access to a system register the
	// core does not model. Detail is a RegisterDetail.
	HookPosUnimplementedRegister = &sim.HookPos{Name: "UnimplementedRegister"}
	// HookPosTranslationFlush fires whenever the core asks the memory
	// collaborator to drop translations. Detail is the mem.Scope.
	HookPosTranslationFlush = &sim.HookPos{Name: "TranslationFlush"}
	// HookPosMMUFault fires when a translation fails. Detail is the fault.
	HookPosMMUFault = &sim.HookPos{Name: "MMUFault"}
	// HookPosModeSwitch fires when the processor mode changes. Detail is a
	// ModeDetail.
	HookPosModeSwitch = &sim.HookPos{Name: "ModeSwitch"}
)

// ExceptionDetail describes a delivered exception.
type ExceptionDetail struct {
	Class  string
	PC     uint64
	Vector uint64
}

func (d ExceptionDetail) String() string {
	return fmt.Sprintf("%s at 0x%x -> 0x%x", d.Class, d.PC, d.Vector)
}

// RegisterDetail describes a system register access.
type RegisterDetail struct {
	Write bool
	Name  string
	Value uint64
}

func (d RegisterDetail) String() string {
	if d.Write {
		return fmt.Sprintf("Unimplemented %s register write (0x%x)", d.Name, d.Value)
	}

	return fmt.Sprintf("Unimplemented %s register read", d.Name)
}

// ModeDetail describes a processor mode change.
type ModeDetail struct {
	From string
	To   string
}

func (d ModeDetail) String() string {
	return d.From + " -> " + d.To
}

// Logger prints one line per event to an io.Writer.
type Logger struct {
	w io.Writer
}

// NewLogger creates a Logger writing to w.
func NewLogger(w io.Writer) *Logger {
	return &Logger{w: w}
}

// Func implements sim.Hook.
func (l *Logger) Func(ctx sim.HookCtx) {
	if ctx.Pos == nil {
		return
	}

	if ctx.Detail != nil {
		fmt.Fprintf(l.w, "%s: %v\n", ctx.Pos.Name, ctx.Detail)
		return
	}

	fmt.Fprintf(l.w, "%s\n", ctx.Pos.Name)
}

// Filter forwards only events at the listed positions.
type Filter struct {
	next sim.Hook
	pos  map[*sim.HookPos]bool
}

// NewFilter wraps next so it only sees events at the given positions.
func NewFilter(next sim.Hook, positions ...*sim.HookPos) *Filter {
	f := &Filter{next: next, pos: make(map[*sim.HookPos]bool)}
	for _, p := range positions {
		f.pos[p] = true
	}

	return f
}

// Func implements sim.Hook.
func (f *Filter) Func(ctx sim.HookCtx) {
	if f.pos[ctx.Pos] {
		f.next.Func(ctx)
	}
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []sim.HookCtx
}

// Func implements sim.Hook.
func (r *Recorder) Func(ctx sim.HookCtx) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ctx)
}

// Events returns the recorded events at pos, or all events if pos is nil.
func (r *Recorder) Events(pos *sim.HookPos) []sim.HookCtx {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []sim.HookCtx

	for _, e := range r.events {
		if pos == nil || e.Pos == pos {
			out = append(out, e)
		}
	}

	return out
}

// Reset drops the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = nil
}
