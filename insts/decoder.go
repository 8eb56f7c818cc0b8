package insts

// Format represents the instruction group an opcode was decoded from.
type Format uint8

// Instruction formats.
const (
	FormatReserved Format = iota
	FormatI               // Major opcode with rs, rt, immediate
	FormatJ               // J, JAL
	FormatR               // SPECIAL
	FormatRegImm          // REGIMM
	FormatSpecial2        // SPECIAL2
	FormatSpecial3        // SPECIAL3
	FormatCop0            // COP0
	FormatCop1            // COP1
	FormatCop1X           // COP1X
	FormatCop2            // COP2 and its load/stores
)

// FPFormat is the fmt field of a COP1 arithmetic instruction.
type FPFormat uint8

// Floating-point formats.
const (
	FmtS  FPFormat = 16
	FmtD  FPFormat = 17
	FmtW  FPFormat = 20
	FmtL  FPFormat = 21
	FmtPS FPFormat = 22
)

func (f FPFormat) String() string {
	switch f {
	case FmtS:
		return "s"
	case FmtD:
		return "d"
	case FmtW:
		return "w"
	case FmtL:
		return "l"
	case FmtPS:
		return "ps"
	}

	return "?"
}

// Instruction represents a decoded MIPS instruction.
type Instruction struct {
	Word   uint32 // Raw instruction word
	Op     Op     // Operation code
	Format Format // Encoding group

	// Integer fields
	Rs  Reg    // bits [25:21]
	Rt  Reg    // bits [20:16]
	Rd  Reg    // bits [15:11]
	Sa  uint8  // bits [10:6]
	Imm uint16 // bits [15:0]

	Target uint32 // bits [25:0], J and JAL
	Code   uint32 // SYSCALL, BREAK and SDBBP code field
	Sel    uint8  // COP0 register select, bits [2:0]

	// Floating-point fields
	Fmt  FPFormat
	Fs   uint8 // bits [15:11]
	Ft   uint8 // bits [20:16]
	Fd   uint8 // bits [10:6]
	Fr   uint8 // bits [25:21], COP1X multiply-add
	CC   uint8 // condition code
	Cond uint8 // C.cond condition, bits [3:0]
}

// SImm returns the immediate sign-extended to 64 bits.
func (i *Instruction) SImm() int64 {
	return int64(int16(i.Imm))
}

// Decoder decodes MIPS machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new MIPS instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Major opcode values, bits [31:26].
const (
	majSpecial  = 0x00
	majRegImm   = 0x01
	majCop0     = 0x10
	majCop1     = 0x11
	majCop2     = 0x12
	majCop1X    = 0x13
	majSpecial2 = 0x1C
	majSpecial3 = 0x1F
)

// majorOp maps the opcodes that need no further field to select an operation.
func majorOp(opcode uint32) Op {
	switch opcode {
	case 0x02:
		return OpJ
	case 0x03:
		return OpJAL
	case 0x04:
		return OpBEQ
	case 0x05:
		return OpBNE
	case 0x06:
		return OpBLEZ
	case 0x07:
		return OpBGTZ
	case 0x08:
		return OpADDI
	case 0x09:
		return OpADDIU
	case 0x0A:
		return OpSLTI
	case 0x0B:
		return OpSLTIU
	case 0x0C:
		return OpANDI
	case 0x0D:
		return OpORI
	case 0x0E:
		return OpXORI
	case 0x0F:
		return OpLUI
	case 0x14:
		return OpBEQL
	case 0x15:
		return OpBNEL
	case 0x16:
		return OpBLEZL
	case 0x17:
		return OpBGTZL
	case 0x18:
		return OpDADDI
	case 0x19:
		return OpDADDIU
	case 0x1A:
		return OpLDL
	case 0x1B:
		return OpLDR
	case 0x20:
		return OpLB
	case 0x21:
		return OpLH
	case 0x22:
		return OpLWL
	case 0x23:
		return OpLW
	case 0x24:
		return OpLBU
	case 0x25:
		return OpLHU
	case 0x26:
		return OpLWR
	case 0x27:
		return OpLWU
	case 0x28:
		return OpSB
	case 0x29:
		return OpSH
	case 0x2A:
		return OpSWL
	case 0x2B:
		return OpSW
	case 0x2C:
		return OpSDL
	case 0x2D:
		return OpSDR
	case 0x2E:
		return OpSWR
	case 0x2F:
		return OpCACHE
	case 0x30:
		return OpLL
	case 0x31:
		return OpLWC1
	case 0x32:
		return OpLWC2
	case 0x33:
		return OpPREF
	case 0x34:
		return OpLLD
	case 0x35:
		return OpLDC1
	case 0x36:
		return OpLDC2
	case 0x37:
		return OpLD
	case 0x38:
		return OpSC
	case 0x39:
		return OpSWC1
	case 0x3A:
		return OpSWC2
	case 0x3B:
		return OpSCD
	case 0x3D:
		return OpSDC1
	case 0x3E:
		return OpSDC2
	case 0x3F:
		return OpSD
	}

	return OpReserved
}

func specialOp(fn uint32) Op {
	switch fn {
	case 0x00:
		return OpSLL
	case 0x01:
		return OpMOVCI
	case 0x02:
		return OpSRL
	case 0x03:
		return OpSRA
	case 0x04:
		return OpSLLV
	case 0x06:
		return OpSRLV
	case 0x07:
		return OpSRAV
	case 0x08:
		return OpJR
	case 0x09:
		return OpJALR
	case 0x0A:
		return OpMOVZ
	case 0x0B:
		return OpMOVN
	case 0x0C:
		return OpSYSCALL
	case 0x0D:
		return OpBREAK
	case 0x0F:
		return OpSYNC
	case 0x10:
		return OpMFHI
	case 0x11:
		return OpMTHI
	case 0x12:
		return OpMFLO
	case 0x13:
		return OpMTLO
	case 0x14:
		return OpDSLLV
	case 0x16:
		return OpDSRLV
	case 0x17:
		return OpDSRAV
	case 0x18:
		return OpMULT
	case 0x19:
		return OpMULTU
	case 0x1A:
		return OpDIV
	case 0x1B:
		return OpDIVU
	case 0x1C:
		return OpDMULT
	case 0x1D:
		return OpDMULTU
	case 0x1E:
		return OpDDIV
	case 0x1F:
		return OpDDIVU
	case 0x20:
		return OpADD
	case 0x21:
		return OpADDU
	case 0x22:
		return OpSUB
	case 0x23:
		return OpSUBU
	case 0x24:
		return OpAND
	case 0x25:
		return OpOR
	case 0x26:
		return OpXOR
	case 0x27:
		return OpNOR
	case 0x2A:
		return OpSLT
	case 0x2B:
		return OpSLTU
	case 0x2C:
		return OpDADD
	case 0x2D:
		return OpDADDU
	case 0x2E:
		return OpDSUB
	case 0x2F:
		return OpDSUBU
	case 0x30:
		return OpTGE
	case 0x31:
		return OpTGEU
	case 0x32:
		return OpTLT
	case 0x33:
		return OpTLTU
	case 0x34:
		return OpTEQ
	case 0x36:
		return OpTNE
	case 0x38:
		return OpDSLL
	case 0x3A:
		return OpDSRL
	case 0x3B:
		return OpDSRA
	case 0x3C:
		return OpDSLL32
	case 0x3E:
		return OpDSRL32
	case 0x3F:
		return OpDSRA32
	}

	return OpReserved
}

func regImmOp(rt uint32) Op {
	switch rt {
	case 0x00:
		return OpBLTZ
	case 0x01:
		return OpBGEZ
	case 0x02:
		return OpBLTZL
	case 0x03:
		return OpBGEZL
	case 0x08:
		return OpTGEI
	case 0x09:
		return OpTGEIU
	case 0x0A:
		return OpTLTI
	case 0x0B:
		return OpTLTIU
	case 0x0C:
		return OpTEQI
	case 0x0E:
		return OpTNEI
	case 0x10:
		return OpBLTZAL
	case 0x11:
		return OpBGEZAL
	case 0x12:
		return OpBLTZALL
	case 0x13:
		return OpBGEZALL
	case 0x1F:
		return OpSYNCI
	}

	return OpReserved
}

func special2Op(fn uint32) Op {
	switch fn {
	case 0x00:
		return OpMADD
	case 0x01:
		return OpMADDU
	case 0x02:
		return OpMUL
	case 0x04:
		return OpMSUB
	case 0x05:
		return OpMSUBU
	case 0x20:
		return OpCLZ
	case 0x21:
		return OpCLO
	case 0x24:
		return OpDCLZ
	case 0x25:
		return OpDCLO
	case 0x3F:
		return OpSDBBP
	}

	return OpReserved
}

func special3Op(fn uint32) Op {
	switch fn {
	case 0x00:
		return OpEXT
	case 0x01:
		return OpDEXTM
	case 0x02:
		return OpDEXTU
	case 0x03:
		return OpDEXT
	case 0x04:
		return OpINS
	case 0x05:
		return OpDINSM
	case 0x06:
		return OpDINSU
	case 0x07:
		return OpDINS
	case 0x3B:
		return OpRDHWR
	}

	return OpReserved
}

func cop0Op(fn uint32) Op {
	switch fn {
	case 0x01:
		return OpTLBR
	case 0x02:
		return OpTLBWI
	case 0x06:
		return OpTLBWR
	case 0x08:
		return OpTLBP
	case 0x18:
		return OpERET
	case 0x1F:
		return OpDERET
	case 0x20:
		return OpWAIT
	}

	return OpReserved
}

func cop1MoveOp(rs uint32) Op {
	switch rs {
	case 0x00:
		return OpMFC1
	case 0x01:
		return OpDMFC1
	case 0x02:
		return OpCFC1
	case 0x03:
		return OpMFHC1
	case 0x04:
		return OpMTC1
	case 0x05:
		return OpDMTC1
	case 0x06:
		return OpCTC1
	case 0x07:
		return OpMTHC1
	}

	return OpReserved
}

func cop1ArithOp(fn uint32) Op {
	switch fn {
	case 0x00:
		return OpFADD
	case 0x01:
		return OpFSUB
	case 0x02:
		return OpFMUL
	case 0x03:
		return OpFDIV
	case 0x04:
		return OpFSQRT
	case 0x05:
		return OpFABS
	case 0x06:
		return OpFMOV
	case 0x07:
		return OpFNEG
	case 0x08:
		return OpFROUNDL
	case 0x09:
		return OpFTRUNCL
	case 0x0A:
		return OpFCEILL
	case 0x0B:
		return OpFFLOORL
	case 0x0C:
		return OpFROUNDW
	case 0x0D:
		return OpFTRUNCW
	case 0x0E:
		return OpFCEILW
	case 0x0F:
		return OpFFLOORW
	case 0x11:
		return OpFMOVCF
	case 0x12:
		return OpFMOVZ
	case 0x13:
		return OpFMOVN
	case 0x15:
		return OpFRECIP
	case 0x16:
		return OpFRSQRT
	case 0x20:
		return OpFCVTS
	case 0x21:
		return OpFCVTD
	case 0x24:
		return OpFCVTW
	case 0x25:
		return OpFCVTL
	}

	return OpReserved
}

func cop1xOp(fn uint32) Op {
	switch fn {
	case 0x00:
		return OpLWXC1
	case 0x01:
		return OpLDXC1
	case 0x05:
		return OpLUXC1
	case 0x08:
		return OpSWXC1
	case 0x09:
		return OpSDXC1
	case 0x0D:
		return OpSUXC1
	case 0x0F:
		return OpPREFX
	case 0x1E:
		return OpALNVPS
	}

	return OpReserved
}

// Decode decodes a 32-bit MIPS instruction word.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{
		Word: word,
		Op:   OpReserved,
		Rs:   Reg((word >> 21) & 0x1F),  // bits [25:21]
		Rt:   Reg((word >> 16) & 0x1F),  // bits [20:16]
		Rd:   Reg((word >> 11) & 0x1F),  // bits [15:11]
		Sa:   uint8((word >> 6) & 0x1F), // bits [10:6]
		Imm:  uint16(word),
	}

	switch word >> 26 {
	case majSpecial:
		d.decodeSpecial(word, inst)
	case majRegImm:
		d.decodeRegImm(inst)
	case majCop0:
		d.decodeCop0(word, inst)
	case majCop1:
		d.decodeCop1(word, inst)
	case majCop1X:
		d.decodeCop1X(word, inst)
	case majCop2, 0x32, 0x36, 0x3A, 0x3E:
		inst.Op = OpCOP2
		inst.Format = FormatCop2
	case majSpecial2:
		d.decodeSpecial2(word, inst)
	case majSpecial3:
		d.decodeSpecial3(word, inst)
	default:
		d.decodeMajor(word, inst)
	}

	if inst.Op == OpReserved {
		inst.Format = FormatReserved
	}

	return inst
}

// decodeMajor decodes opcodes fully identified by bits [31:26].
func (d *Decoder) decodeMajor(word uint32, inst *Instruction) {
	inst.Op = majorOp(word >> 26)

	switch inst.Op {
	case OpJ, OpJAL:
		inst.Format = FormatJ
		inst.Target = word & 0x03FFFFFF // bits [25:0]
	case OpLWC1, OpLDC1, OpSWC1, OpSDC1:
		inst.Format = FormatI
		inst.Ft = uint8(inst.Rt)
	default:
		inst.Format = FormatI
	}
}

// decodeSpecial decodes the SPECIAL group by function, bits [5:0].
// SRL, SRLV, DSRL, DSRLV and DSRL32 share their function with the Release 2
// rotates; the rs (or sa) field bit 0 selects the rotate.
func (d *Decoder) decodeSpecial(word uint32, inst *Instruction) {
	inst.Format = FormatR
	fn := word & 0x3F
	op := specialOp(fn)

	switch op {
	case OpSRL, OpDSRL, OpDSRL32:
		switch inst.Rs {
		case 0:
		case 1:
			op = rotateOf(op)
		default:
			op = OpReserved
		}
	case OpSRLV, OpDSRLV:
		switch inst.Sa {
		case 0:
		case 1:
			op = rotateOf(op)
		default:
			op = OpReserved
		}
	case OpMOVCI:
		inst.CC = uint8((word >> 18) & 0x7) // bits [20:18]
		if word&(1<<17) != 0 {              // bit 17 must be zero
			op = OpReserved
		}
	case OpSYSCALL, OpBREAK:
		inst.Code = (word >> 6) & 0xFFFFF // bits [25:6]
	case OpJR, OpJALR:
		// sa holds the hint: 0 for the plain jump, 16 for the hazard barrier.
		if inst.Sa != 0 && inst.Sa != 16 {
			op = OpReserved
		}
	}

	inst.Op = op
}

func rotateOf(op Op) Op {
	switch op {
	case OpSRL:
		return OpROTR
	case OpDSRL:
		return OpDROTR
	case OpDSRL32:
		return OpDROTR32
	case OpSRLV:
		return OpROTRV
	case OpDSRLV:
		return OpDROTRV
	}

	return OpReserved
}

// decodeRegImm decodes the REGIMM group by rt, bits [20:16].
func (d *Decoder) decodeRegImm(inst *Instruction) {
	inst.Format = FormatRegImm
	inst.Op = regImmOp(uint32(inst.Rt))
}

// decodeSpecial2 decodes the SPECIAL2 group by function, bits [5:0].
func (d *Decoder) decodeSpecial2(word uint32, inst *Instruction) {
	inst.Format = FormatSpecial2
	inst.Op = special2Op(word & 0x3F)

	if inst.Op == OpSDBBP {
		inst.Code = (word >> 6) & 0xFFFFF // bits [25:6]
	}
}

// decodeSpecial3 decodes the SPECIAL3 group by function, bits [5:0], then
// BSHFL and DBSHFL by sa, bits [10:6].
func (d *Decoder) decodeSpecial3(word uint32, inst *Instruction) {
	inst.Format = FormatSpecial3

	switch word & 0x3F {
	case 0x20: // BSHFL
		switch inst.Sa {
		case 0x02:
			inst.Op = OpWSBH
		case 0x10:
			inst.Op = OpSEB
		case 0x18:
			inst.Op = OpSEH
		}
	case 0x24: // DBSHFL
		switch inst.Sa {
		case 0x02:
			inst.Op = OpDSBH
		case 0x05:
			inst.Op = OpDSHD
		}
	default:
		inst.Op = special3Op(word & 0x3F)
	}
}

// decodeCop0 decodes the COP0 group by rs, bits [25:21]. With the CO bit
// (bit 25) set the function field, bits [5:0], selects a TLB or exception
// return operation.
func (d *Decoder) decodeCop0(word uint32, inst *Instruction) {
	inst.Format = FormatCop0
	inst.Sel = uint8(word & 0x7) // bits [2:0]

	if word&(1<<25) != 0 {
		inst.Op = cop0Op(word & 0x3F)
		return
	}

	switch inst.Rs {
	case 0x00:
		inst.Op = OpMFC0
	case 0x01:
		inst.Op = OpDMFC0
	case 0x04:
		inst.Op = OpMTC0
	case 0x05:
		inst.Op = OpDMTC0
	case 0x0A:
		inst.Op = OpRDPGPR
	case 0x0B: // MFMC0: rd must name Status, sel 0
		if inst.Rd != 12 || word&0x7DF != 0 {
			return
		}

		if word&0x20 != 0 { // sc, bit 5
			inst.Op = OpEI
		} else {
			inst.Op = OpDI
		}
	case 0x0E:
		inst.Op = OpWRPGPR
	}
}

// decodeCop1 decodes the COP1 group by rs (fmt), bits [25:21]: moves,
// BC1 branches resolved by nd/tf in bits [17:16], and arithmetic resolved
// by the function field, bits [5:0].
func (d *Decoder) decodeCop1(word uint32, inst *Instruction) {
	inst.Format = FormatCop1
	inst.Fmt = FPFormat(inst.Rs)
	inst.Ft = uint8(inst.Rt)
	inst.Fs = uint8(inst.Rd)
	inst.Fd = inst.Sa

	rs := uint32(inst.Rs)

	switch {
	case rs < 0x08:
		inst.Op = cop1MoveOp(rs)
	case rs == 0x08 || rs == 0x09 || rs == 0x0A:
		inst.CC = uint8((word >> 18) & 0x7) // bits [20:18]
		ndtf := (word >> 16) & 0x3          // bits [17:16]

		switch rs {
		case 0x08:
			inst.Op = [4]Op{OpBC1F, OpBC1T, OpBC1FL, OpBC1TL}[ndtf]
		case 0x09:
			if ndtf < 2 {
				inst.Op = [2]Op{OpBC1FANY2, OpBC1TANY2}[ndtf]
			}
		case 0x0A:
			if ndtf < 2 {
				inst.Op = [2]Op{OpBC1FANY4, OpBC1TANY4}[ndtf]
			}
		}
	case rs == uint32(FmtS) || rs == uint32(FmtD) || rs == uint32(FmtW) ||
		rs == uint32(FmtL) || rs == uint32(FmtPS):
		fn := word & 0x3F

		if fn >= 0x30 {
			inst.Op = OpFCMP
			inst.Cond = uint8(fn & 0xF)
			inst.CC = inst.Fd >> 2
			return
		}

		inst.Op = cop1ArithOp(fn)

		if inst.Op == OpFMOVCF {
			inst.CC = uint8((word >> 18) & 0x7)
		}
	}
}

// decodeCop1X decodes the COP1X group by function, bits [5:0]. Multiply-add
// forms carry their operation in bits [5:3] and the format in bits [2:0].
func (d *Decoder) decodeCop1X(word uint32, inst *Instruction) {
	inst.Format = FormatCop1X
	inst.Fr = uint8(inst.Rs)
	inst.Ft = uint8(inst.Rt)
	inst.Fs = uint8(inst.Rd)
	inst.Fd = inst.Sa

	fn := word & 0x3F

	switch fn >> 3 {
	case 4, 5, 6, 7:
		switch fn & 0x7 {
		case 0:
			inst.Fmt = FmtS
		case 1:
			inst.Fmt = FmtD
		case 6:
			inst.Fmt = FmtPS
		default:
			return
		}

		inst.Op = [4]Op{OpFMADD, OpFMSUB, OpFNMADD, OpFNMSUB}[fn>>3-4]
	default:
		inst.Op = cop1xOp(fn)
	}
}
