// Package tcg defines the architecture-neutral micro-operations produced by
// the block translators and consumed by an execution backend.
package tcg

import "fmt"

// Temp names a scratch value slot local to one block.
type Temp uint8

// Temporaries available to translators.
const (
	T0 Temp = iota
	T1
	T2
	T3

	NumTemps = 4
)

// Opcode identifies a micro-operation.
type Opcode uint8

// Micro-operations. Unless noted, Dst receives the result and Src1/Src2 are
// the operands.
const (
	OpNop Opcode = iota

	OpMovi     // Dst = Imm
	OpMov      // Dst = Src1
	OpLoadReg  // Dst = reg[Reg]
	OpStoreReg // reg[Reg] = Src1

	OpAdd // Trap: raise Imm2 on signed overflow at Width
	OpSub // Trap: raise Imm2 on signed overflow at Width
	OpAnd
	OpOr
	OpXor
	OpNor
	OpShl
	OpShr
	OpSar
	OpRotr

	OpSetEq
	OpSetNe
	OpSetLt
	OpSetLtu
	OpSetGe
	OpSetGeu

	OpExt  // Dst = sign-extend(Src1) from Width bits
	OpZext // Dst = zero-extend(Src1) from Width bits

	OpLoad  // Dst = mem[Src1] of Width bytes
	OpStore // mem[Src1] = Src2, Width bytes

	OpBrCond   // if (Src1 != 0) == !Negate, jump to Label
	OpSetLabel // Label marks this position
	OpCall     // Dst = Helper(Src1, Src2, Imm, Imm2)
	OpRaise    // raise exception class Imm with code Imm2
	OpGotoTB   // PC = Imm, leave the block
	OpExitTB   // leave the block, PC already stored
	OpDebug    // raise the debug trap (breakpoint or single step)
)

var opcodeNames = [...]string{
	OpNop:      "nop",
	OpMovi:     "movi",
	OpMov:      "mov",
	OpLoadReg:  "ld_reg",
	OpStoreReg: "st_reg",
	OpAdd:      "add",
	OpSub:      "sub",
	OpAnd:      "and",
	OpOr:       "or",
	OpXor:      "xor",
	OpNor:      "nor",
	OpShl:      "shl",
	OpShr:      "shr",
	OpSar:      "sar",
	OpRotr:     "rotr",
	OpSetEq:    "seteq",
	OpSetNe:    "setne",
	OpSetLt:    "setlt",
	OpSetLtu:   "setltu",
	OpSetGe:    "setge",
	OpSetGeu:   "setgeu",
	OpExt:      "ext",
	OpZext:     "zext",
	OpLoad:     "ld",
	OpStore:    "st",
	OpBrCond:   "brcond",
	OpSetLabel: "set_label",
	OpCall:     "call",
	OpRaise:    "raise",
	OpGotoTB:   "goto_tb",
	OpExitTB:   "exit_tb",
	OpDebug:    "debug",
}

func (o Opcode) String() string {
	if int(o) < len(opcodeNames) && opcodeNames[o] != "" {
		return opcodeNames[o]
	}

	return fmt.Sprintf("op%d", uint8(o))
}

// Helper identifies a target-specific helper routine. Values are assigned
// by each architecture package.
type Helper uint16

// Op is one micro-operation.
type Op struct {
	Code  Opcode
	Dst   Temp
	Src1  Temp
	Src2  Temp
	Width uint8 // bits for ALU ops, bytes for memory ops

	Signed bool // sign-extend loads
	Trap   bool // overflow-checked arithmetic
	Negate bool // branch when Src1 == 0

	MemIdx uint8 // privilege used for memory ops
	Reg    int
	Label  int
	Helper Helper
	Imm    uint64
	Imm2   uint64
}

func (op Op) String() string {
	switch op.Code {
	case OpMovi:
		return fmt.Sprintf("movi t%d, 0x%x", op.Dst, op.Imm)
	case OpLoadReg:
		return fmt.Sprintf("ld_reg t%d, r%d", op.Dst, op.Reg)
	case OpStoreReg:
		return fmt.Sprintf("st_reg r%d, t%d", op.Reg, op.Src1)
	case OpLoad:
		return fmt.Sprintf("ld%d t%d, [t%d]", op.Width*8, op.Dst, op.Src1)
	case OpStore:
		return fmt.Sprintf("st%d [t%d], t%d", op.Width*8, op.Src1, op.Src2)
	case OpBrCond:
		return fmt.Sprintf("brcond t%d, L%d", op.Src1, op.Label)
	case OpSetLabel:
		return fmt.Sprintf("L%d:", op.Label)
	case OpCall:
		return fmt.Sprintf("call h%d, t%d, t%d, t%d, 0x%x", op.Helper, op.Dst, op.Src1, op.Src2, op.Imm)
	case OpRaise:
		return fmt.Sprintf("raise %d, %d", op.Imm, op.Imm2)
	case OpGotoTB:
		return fmt.Sprintf("goto_tb 0x%x", op.Imm)
	case OpExitTB, OpDebug, OpNop:
		return op.Code.String()
	}

	return fmt.Sprintf("%s%d t%d, t%d, t%d", op.Code, op.Width, op.Dst, op.Src1, op.Src2)
}

// Exit is the reason a block stopped growing.
type Exit uint8

// Block exits.
const (
	ExitFallthrough Exit = iota
	ExitPageBoundary
	ExitBufferFull
	ExitBranch
	ExitStop
	ExitException
	ExitBreakpoint
	ExitSingleStep
)

var exitNames = [...]string{
	ExitFallthrough:  "fallthrough",
	ExitPageBoundary: "page boundary",
	ExitBufferFull:   "op buffer full",
	ExitBranch:       "branch",
	ExitStop:         "stop",
	ExitException:    "exception",
	ExitBreakpoint:   "breakpoint",
	ExitSingleStep:   "single step",
}

func (e Exit) String() string {
	if int(e) < len(exitNames) {
		return exitNames[e]
	}

	return fmt.Sprintf("exit%d", uint8(e))
}

// Block is the output of translating one run of guest instructions.
type Block struct {
	PC       uint64
	Flags    uint32
	Size     uint64 // guest bytes covered
	NumInsns int
	Ops      []Op
	Exit     Exit
}
