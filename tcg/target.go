package tcg

// Target is the CPU a block executes against. Methods that can fault
// return false after the target has delivered the exception; the executor
// then abandons the rest of the block.
type Target interface {
	Reg(idx int) uint64
	SetReg(idx int, v uint64)

	Load(vaddr uint64, size int, signed bool, memIdx int) (uint64, bool)
	Store(vaddr uint64, size int, v uint64, memIdx int) bool

	Call(h Helper, a, b, imm, imm2 uint64) (uint64, bool)
	Raise(exc, code uint64)
	Debug()

	// SetPC commits the program counter when a block leaves through
	// OpGotoTB.
	SetPC(pc uint64)
}
