package mips

import (
	"math"

	"github.com/sarchlab/vcore/insts"
)

// FCSR fields.
const (
	fcsrRMMask      uint32 = 3
	fcsrFlagsShift         = 2
	fcsrEnableShift        = 7
	fcsrCauseShift         = 12
	fcsrFCC0        uint32 = 1 << 23
	fcsrFS          uint32 = 1 << 24

	fcsrWritable uint32 = 0xFF83FFFF
)

// FPU exception bits, in flag order.
const (
	fpInexact   uint32 = 1 << 0
	fpUnderflow uint32 = 1 << 1
	fpOverflow  uint32 = 1 << 2
	fpDivZero   uint32 = 1 << 3
	fpInvalid   uint32 = 1 << 4
)

// FPU is the coprocessor 1 state.
type FPU struct {
	FPR   [32]uint64
	FCR0  uint32
	FCR31 uint32
}

func (f *FPU) reset(m *Model) {
	*f = FPU{FCR0: m.FCR0}
}

// fccBit returns the FCSR bit of condition code cc.
func fccBit(cc uint8) uint32 {
	if cc == 0 {
		return fcsrFCC0
	}

	return 1 << (24 + uint32(cc))
}

// FCC reports condition code cc.
func (f *FPU) FCC(cc uint8) bool {
	return f.FCR31&fccBit(cc) != 0
}

func (f *FPU) setFCC(cc uint8, v bool) {
	if v {
		f.FCR31 |= fccBit(cc)
	} else {
		f.FCR31 &^= fccBit(cc)
	}
}

// Single returns the low word of register n.
func (f *FPU) Single(n uint8) uint32 {
	return uint32(f.FPR[n])
}

// SetSingle writes the low word of register n.
func (f *FPU) SetSingle(n uint8, v uint32) {
	f.FPR[n] = f.FPR[n]&^0xFFFFFFFF | uint64(v)
}

// Double reads a 64-bit value. With fr64 clear it is the even/odd pair
// starting at n.
func (f *FPU) Double(n uint8, fr64 bool) uint64 {
	if fr64 {
		return f.FPR[n]
	}

	return uint64(uint32(f.FPR[n&^1])) | uint64(uint32(f.FPR[n|1]))<<32
}

// SetDouble writes a 64-bit value, split over the pair when fr64 is clear.
func (f *FPU) SetDouble(n uint8, v uint64, fr64 bool) {
	if fr64 {
		f.FPR[n] = v
		return
	}

	f.SetSingle(n&^1, uint32(v))
	f.SetSingle(n|1, uint32(v>>32))
}

// High reads the upper word of a 64-bit value, for MFHC1.
func (f *FPU) High(n uint8, fr64 bool) uint32 {
	return uint32(f.Double(n, fr64) >> 32)
}

// SetHigh writes the upper word of a 64-bit value, for MTHC1.
func (f *FPU) SetHigh(n uint8, v uint32, fr64 bool) {
	d := f.Double(n, fr64)
	f.SetDouble(n, d&0xFFFFFFFF|uint64(v)<<32, fr64)
}

// ReadControl implements CFC1.
func (f *FPU) ReadControl(fs uint8) uint32 {
	switch fs {
	case 0:
		return f.FCR0
	case 25:
		return f.FCR31>>24&0xFE | f.FCR31>>23&1
	case 26:
		return f.FCR31 & 0x0003F07C
	case 28:
		return f.FCR31&0x00000F83 | f.FCR31>>22&4
	case 31:
		return f.FCR31
	}

	return 0
}

// WriteControl implements CTC1. It reports whether the new cause bits
// trap.
func (f *FPU) WriteControl(fs uint8, v uint32) bool {
	switch fs {
	case 25:
		if v&0xFFFFFF00 != 0 {
			return false
		}

		f.FCR31 = f.FCR31&0x017FFFFF | (v&0xFE)<<24 | (v&1)<<23
	case 26:
		if v&0xFFFC0F83 != 0 {
			return false
		}

		f.FCR31 = f.FCR31&0xFFFC0F83 | v&0x0003F07C
	case 28:
		if v&0xFFFFF078 != 0 {
			return false
		}

		f.FCR31 = f.FCR31&0xFEFFF07C | v&0x00000F83 | (v&4)<<22
	case 31:
		f.FCR31 = v & fcsrWritable
	default:
		return false
	}

	return f.trapping()
}

// trapping reports whether a raised cause bit is enabled. Unimplemented
// operation (cause bit 5) always traps.
func (f *FPU) trapping() bool {
	cause := f.FCR31 >> fcsrCauseShift & 0x3F
	enable := f.FCR31>>fcsrEnableShift&0x1F | 0x20

	return cause&enable != 0
}

// raise records exception bits of one operation. It reports whether the
// operation traps; the destination is then left unchanged.
func (f *FPU) raise(exc uint32) bool {
	f.FCR31 &^= 0x3F << fcsrCauseShift
	f.FCR31 |= exc << fcsrCauseShift

	if f.trapping() {
		return true
	}

	f.FCR31 |= exc << fcsrFlagsShift

	return false
}

func (f *FPU) roundingMode() uint32 {
	return f.FCR31 & fcsrRMMask
}

func roundWith(rm uint32, v float64) float64 {
	switch rm {
	case 1:
		return math.Trunc(v)
	case 2:
		return math.Ceil(v)
	case 3:
		return math.Floor(v)
	}

	return math.RoundToEven(v)
}

// toWord converts with the invalid result 0x7FFFFFFF on NaN or overflow.
func toWord(v float64) (uint32, uint32) {
	if math.IsNaN(v) || v >= 1<<31 || v < -(1<<31) {
		return 0x7FFFFFFF, fpInvalid
	}

	return uint32(int32(v)), 0
}

func toLong(v float64) (uint64, uint32) {
	if math.IsNaN(v) || v >= 1<<63 || v < -(1<<63) {
		return 0x7FFFFFFFFFFFFFFF, fpInvalid
	}

	return uint64(int64(v)), 0
}

func (c *CPU) fr64() bool {
	return c.CP0.Status&StatusFR != 0
}

func (c *CPU) fpRead(format insts.FPFormat, n uint8) float64 {
	switch format {
	case insts.FmtS:
		return float64(math.Float32frombits(c.FPU.Single(n)))
	case insts.FmtD:
		return math.Float64frombits(c.FPU.Double(n, c.fr64()))
	case insts.FmtW:
		return float64(int32(c.FPU.Single(n)))
	case insts.FmtL:
		return float64(int64(c.FPU.Double(n, c.fr64())))
	}

	return 0
}

// fpConvert stores v in an integer format using rounding mode rm.
func (c *CPU) fpConvert(format insts.FPFormat, n uint8, v float64, rm uint32) bool {
	r := roundWith(rm, v)

	if format == insts.FmtW {
		w, exc := toWord(r)
		if c.FPU.raise(exc) {
			return false
		}

		c.FPU.SetSingle(n, w)

		return true
	}

	l, exc := toLong(r)
	if c.FPU.raise(exc) {
		return false
	}

	c.FPU.SetDouble(n, l, c.fr64())

	return true
}

func (c *CPU) fpStore(format insts.FPFormat, n uint8, v float64, exc uint32) bool {
	if math.IsNaN(v) {
		exc |= fpInvalid
	}

	if c.FPU.raise(exc) {
		return false
	}

	switch format {
	case insts.FmtS:
		c.FPU.SetSingle(n, math.Float32bits(float32(v)))
	case insts.FmtD:
		c.FPU.SetDouble(n, math.Float64bits(v), c.fr64())
	}

	return true
}

// fpArith executes one COP1 or COP1X arithmetic instruction. gpr is the
// value of the GPR named by rt, used by MOVZ and MOVN. It returns false
// after raising a floating-point exception.
func (c *CPU) fpArith(inst *insts.Instruction, gpr uint64) bool {
	format := inst.Fmt
	fs, ft, fd := inst.Fs, inst.Ft, inst.Fd

	switch inst.Op {
	case insts.OpFADD, insts.OpFSUB, insts.OpFMUL, insts.OpFDIV:
		a, b := c.fpRead(format, fs), c.fpRead(format, ft)

		var r float64

		var exc uint32

		switch inst.Op {
		case insts.OpFADD:
			r = a + b
		case insts.OpFSUB:
			r = a - b
		case insts.OpFMUL:
			r = a * b
		case insts.OpFDIV:
			if b == 0 && a != 0 && !math.IsNaN(a) {
				exc |= fpDivZero
			}

			r = a / b
		}

		return c.fpStore(format, fd, r, exc)
	case insts.OpFSQRT:
		a := c.fpRead(format, fs)
		return c.fpStore(format, fd, math.Sqrt(a), 0)
	case insts.OpFRECIP:
		return c.fpStore(format, fd, 1/c.fpRead(format, fs), 0)
	case insts.OpFRSQRT:
		return c.fpStore(format, fd, 1/math.Sqrt(c.fpRead(format, fs)), 0)
	case insts.OpFABS, insts.OpFNEG, insts.OpFMOV:
		c.fpMoveBits(inst)
		return true
	case insts.OpFROUNDL, insts.OpFROUNDW:
		return c.fpConvert(convTarget(inst.Op), fd, c.fpRead(format, fs), 0)
	case insts.OpFTRUNCL, insts.OpFTRUNCW:
		return c.fpConvert(convTarget(inst.Op), fd, c.fpRead(format, fs), 1)
	case insts.OpFCEILL, insts.OpFCEILW:
		return c.fpConvert(convTarget(inst.Op), fd, c.fpRead(format, fs), 2)
	case insts.OpFFLOORL, insts.OpFFLOORW:
		return c.fpConvert(convTarget(inst.Op), fd, c.fpRead(format, fs), 3)
	case insts.OpFCVTW, insts.OpFCVTL:
		return c.fpConvert(convTarget(inst.Op), fd, c.fpRead(format, fs), c.FPU.roundingMode())
	case insts.OpFCVTS:
		v := c.fpRead(format, fs)

		var exc uint32
		if math.IsInf(float64(float32(v)), 0) && !math.IsInf(v, 0) {
			exc = fpOverflow | fpInexact
		}

		return c.fpStore(insts.FmtS, fd, v, exc)
	case insts.OpFCVTD:
		return c.fpStore(insts.FmtD, fd, c.fpRead(format, fs), 0)
	case insts.OpFMOVCF:
		if c.FPU.FCC(inst.CC) == (inst.Ft&1 != 0) {
			c.fpCopy(format, fd, fs)
		}

		return true
	case insts.OpFMOVZ:
		if gpr == 0 {
			c.fpCopy(format, fd, fs)
		}

		return true
	case insts.OpFMOVN:
		if gpr != 0 {
			c.fpCopy(format, fd, fs)
		}

		return true
	case insts.OpFCMP:
		return c.fpCompare(inst)
	case insts.OpFMADD, insts.OpFMSUB, insts.OpFNMADD, insts.OpFNMSUB:
		r := c.fpRead(format, fs) * c.fpRead(format, ft)
		add := c.fpRead(format, inst.Fr)

		switch inst.Op {
		case insts.OpFMADD:
			r += add
		case insts.OpFMSUB:
			r -= add
		case insts.OpFNMADD:
			r = -(r + add)
		case insts.OpFNMSUB:
			r = -(r - add)
		}

		return c.fpStore(format, fd, r, 0)
	}

	return true
}

func convTarget(op insts.Op) insts.FPFormat {
	switch op {
	case insts.OpFROUNDL, insts.OpFTRUNCL, insts.OpFCEILL, insts.OpFFLOORL, insts.OpFCVTL:
		return insts.FmtL
	}

	return insts.FmtW
}

func (c *CPU) fpCopy(format insts.FPFormat, fd, fs uint8) {
	if format == insts.FmtS || format == insts.FmtW {
		c.FPU.SetSingle(fd, c.FPU.Single(fs))
		return
	}

	c.FPU.SetDouble(fd, c.FPU.Double(fs, c.fr64()), c.fr64())
}

// fpMoveBits implements ABS, NEG and MOV on the raw sign bit.
func (c *CPU) fpMoveBits(inst *insts.Instruction) {
	if inst.Fmt == insts.FmtS {
		v := c.FPU.Single(inst.Fs)

		switch inst.Op {
		case insts.OpFABS:
			v &^= 1 << 31
		case insts.OpFNEG:
			v ^= 1 << 31
		}

		c.FPU.SetSingle(inst.Fd, v)

		return
	}

	v := c.FPU.Double(inst.Fs, c.fr64())

	switch inst.Op {
	case insts.OpFABS:
		v &^= 1 << 63
	case insts.OpFNEG:
		v ^= 1 << 63
	}

	c.FPU.SetDouble(inst.Fd, v, c.fr64())
}

// fpCompare implements C.cond.fmt. Conditions 8-15 signal on unordered
// operands.
func (c *CPU) fpCompare(inst *insts.Instruction) bool {
	a, b := c.fpRead(inst.Fmt, inst.Fs), c.fpRead(inst.Fmt, inst.Ft)
	unordered := math.IsNaN(a) || math.IsNaN(b)
	cond := inst.Cond

	var exc uint32
	if unordered && cond&8 != 0 {
		exc = fpInvalid
	}

	if c.FPU.raise(exc) {
		return false
	}

	r := cond&1 != 0 && unordered ||
		cond&2 != 0 && !unordered && a == b ||
		cond&4 != 0 && !unordered && a < b

	c.FPU.setFCC(inst.CC, r)

	return true
}

// fpCond evaluates the condition codes cc..cc+count-1 for the BC1 family
// and MOVF/MOVT. With tf set it reports whether any code is true,
// otherwise whether any code is false.
func (c *CPU) fpCond(cc uint8, count int, tf bool) bool {
	for i := 0; i < count; i++ {
		if c.FPU.FCC(cc+uint8(i)) == tf {
			return true
		}
	}

	return false
}
