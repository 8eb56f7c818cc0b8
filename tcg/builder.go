package tcg

// Builder appends micro-operations to a bounded op buffer.
type Builder struct {
	ops       []Op
	max       int
	numLabels int
}

// NewBuilder creates a builder whose buffer holds max ops.
func NewBuilder(max int) *Builder {
	return &Builder{
		ops: make([]Op, 0, max),
		max: max,
	}
}

// Ops returns the ops emitted so far.
func (b *Builder) Ops() []Op { return b.ops }

// Len returns the number of emitted ops.
func (b *Builder) Len() int { return len(b.ops) }

// Remaining returns the free space in the buffer. Translators check it
// before each guest instruction; the buffer itself never truncates.
func (b *Builder) Remaining() int { return b.max - len(b.ops) }

// Emit appends op.
func (b *Builder) Emit(op Op) {
	b.ops = append(b.ops, op)
}

// NewLabel allocates a label id.
func (b *Builder) NewLabel() int {
	b.numLabels++
	return b.numLabels - 1
}

// SetLabel binds label l to the current position.
func (b *Builder) SetLabel(l int) {
	b.Emit(Op{Code: OpSetLabel, Label: l})
}

// Movi loads an immediate.
func (b *Builder) Movi(dst Temp, imm uint64) {
	b.Emit(Op{Code: OpMovi, Dst: dst, Imm: imm})
}

// Mov copies a temp.
func (b *Builder) Mov(dst, src Temp) {
	b.Emit(Op{Code: OpMov, Dst: dst, Src1: src})
}

// LoadReg reads a guest register.
func (b *Builder) LoadReg(dst Temp, reg int) {
	b.Emit(Op{Code: OpLoadReg, Dst: dst, Reg: reg})
}

// StoreReg writes a guest register.
func (b *Builder) StoreReg(reg int, src Temp) {
	b.Emit(Op{Code: OpStoreReg, Reg: reg, Src1: src})
}

// Arith emits a two-operand ALU op at the given bit width.
func (b *Builder) Arith(code Opcode, width uint8, dst, src1, src2 Temp) {
	b.Emit(Op{Code: code, Width: width, Dst: dst, Src1: src1, Src2: src2})
}

// ArithTrap emits an add or sub that raises exception class exc on signed
// overflow.
func (b *Builder) ArithTrap(code Opcode, width uint8, dst, src1, src2 Temp, exc uint64) {
	b.Emit(Op{Code: code, Width: width, Dst: dst, Src1: src1, Src2: src2, Trap: true, Imm2: exc})
}

// Ext sign-extends src from width bits.
func (b *Builder) Ext(width uint8, dst, src Temp) {
	b.Emit(Op{Code: OpExt, Width: width, Dst: dst, Src1: src})
}

// Zext zero-extends src from width bits.
func (b *Builder) Zext(width uint8, dst, src Temp) {
	b.Emit(Op{Code: OpZext, Width: width, Dst: dst, Src1: src})
}

// Load reads size bytes at the address in addr.
func (b *Builder) Load(dst, addr Temp, size uint8, signed bool, memIdx uint8) {
	b.Emit(Op{Code: OpLoad, Dst: dst, Src1: addr, Width: size, Signed: signed, MemIdx: memIdx})
}

// Store writes size bytes of val at the address in addr.
func (b *Builder) Store(addr, val Temp, size uint8, memIdx uint8) {
	b.Emit(Op{Code: OpStore, Src1: addr, Src2: val, Width: size, MemIdx: memIdx})
}

// BrCond jumps to l when src is non-zero.
func (b *Builder) BrCond(src Temp, l int) {
	b.Emit(Op{Code: OpBrCond, Src1: src, Label: l})
}

// BrCondZero jumps to l when src is zero.
func (b *Builder) BrCondZero(src Temp, l int) {
	b.Emit(Op{Code: OpBrCond, Src1: src, Label: l, Negate: true})
}

// Call invokes a target helper.
func (b *Builder) Call(h Helper, dst, src1, src2 Temp, imm, imm2 uint64) {
	b.Emit(Op{Code: OpCall, Helper: h, Dst: dst, Src1: src1, Src2: src2, Imm: imm, Imm2: imm2})
}

// Raise raises an exception class with an error code.
func (b *Builder) Raise(exc, code uint64) {
	b.Emit(Op{Code: OpRaise, Imm: exc, Imm2: code})
}

// GotoTB leaves the block continuing at pc.
func (b *Builder) GotoTB(pc uint64) {
	b.Emit(Op{Code: OpGotoTB, Imm: pc})
}

// ExitTB leaves the block.
func (b *Builder) ExitTB() {
	b.Emit(Op{Code: OpExitTB})
}

// Debug raises the debug trap.
func (b *Builder) Debug() {
	b.Emit(Op{Code: OpDebug})
}
