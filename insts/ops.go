package insts

import "fmt"

// Op represents a MIPS opcode.
type Op uint16

// MIPS opcodes.
const (
	OpReserved Op = iota

	// Major opcodes.
	OpJ
	OpJAL
	OpBEQ
	OpBNE
	OpBLEZ
	OpBGTZ
	OpADDI
	OpADDIU
	OpSLTI
	OpSLTIU
	OpANDI
	OpORI
	OpXORI
	OpLUI
	OpBEQL
	OpBNEL
	OpBLEZL
	OpBGTZL
	OpDADDI
	OpDADDIU
	OpLDL
	OpLDR
	OpLB
	OpLH
	OpLWL
	OpLW
	OpLBU
	OpLHU
	OpLWR
	OpLWU
	OpSB
	OpSH
	OpSWL
	OpSW
	OpSDL
	OpSDR
	OpSWR
	OpCACHE
	OpLL
	OpLWC1
	OpLWC2
	OpPREF
	OpLLD
	OpLDC1
	OpLDC2
	OpLD
	OpSC
	OpSWC1
	OpSWC2
	OpSCD
	OpSDC1
	OpSDC2
	OpSD

	// SPECIAL.
	OpSLL
	OpMOVCI
	OpSRL
	OpROTR
	OpSRA
	OpSLLV
	OpSRLV
	OpROTRV
	OpSRAV
	OpJR
	OpJALR
	OpMOVZ
	OpMOVN
	OpSYSCALL
	OpBREAK
	OpSYNC
	OpMFHI
	OpMTHI
	OpMFLO
	OpMTLO
	OpDSLLV
	OpDSRLV
	OpDROTRV
	OpDSRAV
	OpMULT
	OpMULTU
	OpDIV
	OpDIVU
	OpDMULT
	OpDMULTU
	OpDDIV
	OpDDIVU
	OpADD
	OpADDU
	OpSUB
	OpSUBU
	OpAND
	OpOR
	OpXOR
	OpNOR
	OpSLT
	OpSLTU
	OpDADD
	OpDADDU
	OpDSUB
	OpDSUBU
	OpTGE
	OpTGEU
	OpTLT
	OpTLTU
	OpTEQ
	OpTNE
	OpDSLL
	OpDSRL
	OpDROTR
	OpDSRA
	OpDSLL32
	OpDSRL32
	OpDROTR32
	OpDSRA32

	// REGIMM.
	OpBLTZ
	OpBGEZ
	OpBLTZL
	OpBGEZL
	OpTGEI
	OpTGEIU
	OpTLTI
	OpTLTIU
	OpTEQI
	OpTNEI
	OpBLTZAL
	OpBGEZAL
	OpBLTZALL
	OpBGEZALL
	OpSYNCI

	// SPECIAL2.
	OpMADD
	OpMADDU
	OpMUL
	OpMSUB
	OpMSUBU
	OpCLZ
	OpCLO
	OpDCLZ
	OpDCLO
	OpSDBBP

	// SPECIAL3.
	OpEXT
	OpDEXTM
	OpDEXTU
	OpDEXT
	OpINS
	OpDINSM
	OpDINSU
	OpDINS
	OpWSBH
	OpSEB
	OpSEH
	OpDSBH
	OpDSHD
	OpRDHWR

	// COP0.
	OpMFC0
	OpDMFC0
	OpMTC0
	OpDMTC0
	OpRDPGPR
	OpWRPGPR
	OpDI
	OpEI
	OpTLBR
	OpTLBWI
	OpTLBWR
	OpTLBP
	OpERET
	OpDERET
	OpWAIT

	// COP1 moves and branches.
	OpMFC1
	OpDMFC1
	OpCFC1
	OpMFHC1
	OpMTC1
	OpDMTC1
	OpCTC1
	OpMTHC1
	OpBC1F
	OpBC1T
	OpBC1FL
	OpBC1TL
	OpBC1FANY2
	OpBC1TANY2
	OpBC1FANY4
	OpBC1TANY4

	// COP1 arithmetic, format in Instruction.Fmt.
	OpFADD
	OpFSUB
	OpFMUL
	OpFDIV
	OpFSQRT
	OpFABS
	OpFMOV
	OpFNEG
	OpFROUNDL
	OpFTRUNCL
	OpFCEILL
	OpFFLOORL
	OpFROUNDW
	OpFTRUNCW
	OpFCEILW
	OpFFLOORW
	OpFMOVCF
	OpFMOVZ
	OpFMOVN
	OpFRECIP
	OpFRSQRT
	OpFCVTS
	OpFCVTD
	OpFCVTW
	OpFCVTL
	OpFCMP // condition in Instruction.Cond

	// COP1X.
	OpLWXC1
	OpLDXC1
	OpLUXC1
	OpSWXC1
	OpSDXC1
	OpSUXC1
	OpPREFX
	OpALNVPS
	OpFMADD
	OpFMSUB
	OpFNMADD
	OpFNMSUB

	// COP2 (any encoding).
	OpCOP2

	numOps
)

var opNames = map[Op]string{
	OpReserved: "reserved",
	OpJ:        "j",
	OpJAL:      "jal",
	OpBEQ:      "beq",
	OpBNE:      "bne",
	OpBLEZ:     "blez",
	OpBGTZ:     "bgtz",
	OpADDI:     "addi",
	OpADDIU:    "addiu",
	OpSLTI:     "slti",
	OpSLTIU:    "sltiu",
	OpANDI:     "andi",
	OpORI:      "ori",
	OpXORI:     "xori",
	OpLUI:      "lui",
	OpBEQL:     "beql",
	OpBNEL:     "bnel",
	OpBLEZL:    "blezl",
	OpBGTZL:    "bgtzl",
	OpDADDI:    "daddi",
	OpDADDIU:   "daddiu",
	OpLDL:      "ldl",
	OpLDR:      "ldr",
	OpLB:       "lb",
	OpLH:       "lh",
	OpLWL:      "lwl",
	OpLW:       "lw",
	OpLBU:      "lbu",
	OpLHU:      "lhu",
	OpLWR:      "lwr",
	OpLWU:      "lwu",
	OpSB:       "sb",
	OpSH:       "sh",
	OpSWL:      "swl",
	OpSW:       "sw",
	OpSDL:      "sdl",
	OpSDR:      "sdr",
	OpSWR:      "swr",
	OpCACHE:    "cache",
	OpLL:       "ll",
	OpLWC1:     "lwc1",
	OpLWC2:     "lwc2",
	OpPREF:     "pref",
	OpLLD:      "lld",
	OpLDC1:     "ldc1",
	OpLDC2:     "ldc2",
	OpLD:       "ld",
	OpSC:       "sc",
	OpSWC1:     "swc1",
	OpSWC2:     "swc2",
	OpSCD:      "scd",
	OpSDC1:     "sdc1",
	OpSDC2:     "sdc2",
	OpSD:       "sd",
	OpSLL:      "sll",
	OpMOVCI:    "movci",
	OpSRL:      "srl",
	OpROTR:     "rotr",
	OpSRA:      "sra",
	OpSLLV:     "sllv",
	OpSRLV:     "srlv",
	OpROTRV:    "rotrv",
	OpSRAV:     "srav",
	OpJR:       "jr",
	OpJALR:     "jalr",
	OpMOVZ:     "movz",
	OpMOVN:     "movn",
	OpSYSCALL:  "syscall",
	OpBREAK:    "break",
	OpSYNC:     "sync",
	OpMFHI:     "mfhi",
	OpMTHI:     "mthi",
	OpMFLO:     "mflo",
	OpMTLO:     "mtlo",
	OpDSLLV:    "dsllv",
	OpDSRLV:    "dsrlv",
	OpDROTRV:   "drotrv",
	OpDSRAV:    "dsrav",
	OpMULT:     "mult",
	OpMULTU:    "multu",
	OpDIV:      "div",
	OpDIVU:     "divu",
	OpDMULT:    "dmult",
	OpDMULTU:   "dmultu",
	OpDDIV:     "ddiv",
	OpDDIVU:    "ddivu",
	OpADD:      "add",
	OpADDU:     "addu",
	OpSUB:      "sub",
	OpSUBU:     "subu",
	OpAND:      "and",
	OpOR:       "or",
	OpXOR:      "xor",
	OpNOR:      "nor",
	OpSLT:      "slt",
	OpSLTU:     "sltu",
	OpDADD:     "dadd",
	OpDADDU:    "daddu",
	OpDSUB:     "dsub",
	OpDSUBU:    "dsubu",
	OpTGE:      "tge",
	OpTGEU:     "tgeu",
	OpTLT:      "tlt",
	OpTLTU:     "tltu",
	OpTEQ:      "teq",
	OpTNE:      "tne",
	OpDSLL:     "dsll",
	OpDSRL:     "dsrl",
	OpDROTR:    "drotr",
	OpDSRA:     "dsra",
	OpDSLL32:   "dsll32",
	OpDSRL32:   "dsrl32",
	OpDROTR32:  "drotr32",
	OpDSRA32:   "dsra32",
	OpBLTZ:     "bltz",
	OpBGEZ:     "bgez",
	OpBLTZL:    "bltzl",
	OpBGEZL:    "bgezl",
	OpTGEI:     "tgei",
	OpTGEIU:    "tgeiu",
	OpTLTI:     "tlti",
	OpTLTIU:    "tltiu",
	OpTEQI:     "teqi",
	OpTNEI:     "tnei",
	OpBLTZAL:   "bltzal",
	OpBGEZAL:   "bgezal",
	OpBLTZALL:  "bltzall",
	OpBGEZALL:  "bgezall",
	OpSYNCI:    "synci",
	OpMADD:     "madd",
	OpMADDU:    "maddu",
	OpMUL:      "mul",
	OpMSUB:     "msub",
	OpMSUBU:    "msubu",
	OpCLZ:      "clz",
	OpCLO:      "clo",
	OpDCLZ:     "dclz",
	OpDCLO:     "dclo",
	OpSDBBP:    "sdbbp",
	OpEXT:      "ext",
	OpDEXTM:    "dextm",
	OpDEXTU:    "dextu",
	OpDEXT:     "dext",
	OpINS:      "ins",
	OpDINSM:    "dinsm",
	OpDINSU:    "dinsu",
	OpDINS:     "dins",
	OpWSBH:     "wsbh",
	OpSEB:      "seb",
	OpSEH:      "seh",
	OpDSBH:     "dsbh",
	OpDSHD:     "dshd",
	OpRDHWR:    "rdhwr",
	OpMFC0:     "mfc0",
	OpDMFC0:    "dmfc0",
	OpMTC0:     "mtc0",
	OpDMTC0:    "dmtc0",
	OpRDPGPR:   "rdpgpr",
	OpWRPGPR:   "wrpgpr",
	OpDI:       "di",
	OpEI:       "ei",
	OpTLBR:     "tlbr",
	OpTLBWI:    "tlbwi",
	OpTLBWR:    "tlbwr",
	OpTLBP:     "tlbp",
	OpERET:     "eret",
	OpDERET:    "deret",
	OpWAIT:     "wait",
	OpMFC1:     "mfc1",
	OpDMFC1:    "dmfc1",
	OpCFC1:     "cfc1",
	OpMFHC1:    "mfhc1",
	OpMTC1:     "mtc1",
	OpDMTC1:    "dmtc1",
	OpCTC1:     "ctc1",
	OpMTHC1:    "mthc1",
	OpBC1F:     "bc1f",
	OpBC1T:     "bc1t",
	OpBC1FL:    "bc1fl",
	OpBC1TL:    "bc1tl",
	OpBC1FANY2: "bc1any2f",
	OpBC1TANY2: "bc1any2t",
	OpBC1FANY4: "bc1any4f",
	OpBC1TANY4: "bc1any4t",
	OpFADD:     "add",
	OpFSUB:     "sub",
	OpFMUL:     "mul",
	OpFDIV:     "div",
	OpFSQRT:    "sqrt",
	OpFABS:     "abs",
	OpFMOV:     "mov",
	OpFNEG:     "neg",
	OpFROUNDL:  "round.l",
	OpFTRUNCL:  "trunc.l",
	OpFCEILL:   "ceil.l",
	OpFFLOORL:  "floor.l",
	OpFROUNDW:  "round.w",
	OpFTRUNCW:  "trunc.w",
	OpFCEILW:   "ceil.w",
	OpFFLOORW:  "floor.w",
	OpFMOVCF:   "movcf",
	OpFMOVZ:    "movz",
	OpFMOVN:    "movn",
	OpFRECIP:   "recip",
	OpFRSQRT:   "rsqrt",
	OpFCVTS:    "cvt.s",
	OpFCVTD:    "cvt.d",
	OpFCVTW:    "cvt.w",
	OpFCVTL:    "cvt.l",
	OpFCMP:     "c",
	OpLWXC1:    "lwxc1",
	OpLDXC1:    "ldxc1",
	OpLUXC1:    "luxc1",
	OpSWXC1:    "swxc1",
	OpSDXC1:    "sdxc1",
	OpSUXC1:    "suxc1",
	OpPREFX:    "prefx",
	OpALNVPS:   "alnv.ps",
	OpFMADD:    "madd",
	OpFMSUB:    "msub",
	OpFNMADD:   "nmadd",
	OpFNMSUB:   "nmsub",
	OpCOP2:     "cop2",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}

	return fmt.Sprintf("op(%d)", uint16(o))
}

// IsBranch reports whether o is a branch or jump, the instructions that
// open a delay slot.
func (o Op) IsBranch() bool {
	switch o {
	case OpJ, OpJAL, OpJR, OpJALR,
		OpBEQ, OpBNE, OpBLEZ, OpBGTZ,
		OpBEQL, OpBNEL, OpBLEZL, OpBGTZL,
		OpBLTZ, OpBGEZ, OpBLTZL, OpBGEZL,
		OpBLTZAL, OpBGEZAL, OpBLTZALL, OpBGEZALL,
		OpBC1F, OpBC1T, OpBC1FL, OpBC1TL,
		OpBC1FANY2, OpBC1TANY2, OpBC1FANY4, OpBC1TANY4:
		return true
	}

	return false
}

// Is64 reports whether o is only available on 64-bit implementations.
func (o Op) Is64() bool {
	switch o {
	case OpDADDI, OpDADDIU, OpLDL, OpLDR, OpLWU, OpSDL, OpSDR, OpLLD, OpLD, OpSCD, OpSD,
		OpDSLLV, OpDSRLV, OpDROTRV, OpDSRAV, OpDMULT, OpDMULTU, OpDDIV, OpDDIVU,
		OpDADD, OpDADDU, OpDSUB, OpDSUBU,
		OpDSLL, OpDSRL, OpDROTR, OpDSRA, OpDSLL32, OpDSRL32, OpDROTR32, OpDSRA32,
		OpDCLZ, OpDCLO, OpDEXTM, OpDEXTU, OpDEXT, OpDINSM, OpDINSU, OpDINS,
		OpDSBH, OpDSHD, OpDMFC0, OpDMTC0, OpDMFC1, OpDMTC1:
		return true
	}

	return false
}

// IsRelease2 reports whether o was introduced by Release 2 of the
// architecture.
func (o Op) IsRelease2() bool {
	switch o {
	case OpROTR, OpROTRV, OpDROTR, OpDROTRV, OpDROTR32,
		OpEXT, OpDEXTM, OpDEXTU, OpDEXT, OpINS, OpDINSM, OpDINSU, OpDINS,
		OpWSBH, OpSEB, OpSEH, OpDSBH, OpDSHD, OpRDHWR, OpSYNCI,
		OpRDPGPR, OpWRPGPR, OpDI, OpEI, OpMFHC1, OpMTHC1:
		return true
	}

	return false
}
