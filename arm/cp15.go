package arm

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/vcore/mem"
	"github.com/sarchlab/vcore/trace"
)

// Control register bits.
const (
	ControlM uint32 = 1 << 0  // MMU or MPU enable
	ControlS uint32 = 1 << 8  // system protection
	ControlR uint32 = 1 << 9  // ROM protection
	ControlV uint32 = 1 << 13 // high vectors
)

// CP15 is the system control coprocessor state.
type CP15 struct {
	CPUID     uint32
	CacheType uint32

	Control      uint32
	CoprocAccess uint32

	// TTB is the translation table base. MPU cores use DataCacheable and
	// InsnCacheable instead.
	TTB           uint32
	DataCacheable uint32
	InsnCacheable uint32

	// DomainAccess holds the 16 two-bit domain access fields, or the
	// write buffer bits on MPU cores.
	DomainAccess uint32

	// DataStatus and InsnStatus are the fault status registers. MPU cores
	// keep the extended access permissions here.
	DataStatus uint32
	InsnStatus uint32

	DataAddr uint32
	InsnAddr uint32
	Regions  [8]uint32

	DataLockdown uint32
	InsnLockdown uint32

	FCSEPID   uint32
	ContextID uint32

	// CPAR is the XScale coprocessor access register.
	CPAR uint32

	// TI925T implementation registers.
	TIConfig uint32
	IMax     uint32
	IMin     uint32
	ThreadID uint32
}

type cp15Field struct {
	crn, crm, op1, op2 uint32
}

func decodeCP15(insn uint32) cp15Field {
	return cp15Field{
		crn: (insn >> 16) & 0xf,
		crm: insn & 0xf,
		op1: (insn >> 21) & 7,
		op2: (insn >> 5) & 7,
	}
}

func (r cp15Field) String() string {
	return fmt.Sprintf("cp15 c%d,%d,c%d,%d", r.crn, r.op1, r.crm, r.op2)
}

// simpleAP packs extended MPU access permissions, four bits per region,
// into the two bit per region format.
func simpleAP(v uint32) uint32 {
	var out uint32

	mask := uint32(3)
	for i := 0; i < 16; i += 2 {
		out |= (v >> i) & mask
		mask <<= 2
	}

	return out
}

// extendedAP widens two bit per region MPU access permissions to four
// bits per region.
func extendedAP(v uint32) uint32 {
	var out uint32

	mask := uint32(3)
	for i := 0; i < 16; i += 2 {
		out |= (v & mask) << i
		mask <<= 2
	}

	return out
}

// SetCP15 performs an MCR to the system control coprocessor.
func (c *CPU) SetCP15(insn, v uint32) error {
	r := decodeCP15(insn)
	mpu := c.HasFeature(FeatureMPU)
	cp := &c.CP15

	switch r.crn {
	case 1:
		switch r.op2 {
		case 0:
			if !c.HasFeature(FeatureXScale) || r.crm == 0 {
				cp.Control = v
			}

			c.flush(mem.FlushAll())
			c.InterruptRequest |= InterruptExitTB
		case 1:
			if !c.HasFeature(FeatureXScale) {
				return c.badCP15(r, true, v)
			}
		case 2:
			cp.CoprocAccess = v
			c.flush(mem.FlushCode())
			c.InterruptRequest |= InterruptExitTB
		default:
			return c.badCP15(r, true, v)
		}
	case 2:
		if !mpu {
			cp.TTB = v
			c.flush(mem.FlushAll())

			break
		}

		switch r.op2 {
		case 0:
			cp.DataCacheable = v
		case 1:
			cp.InsnCacheable = v
		default:
			return c.badCP15(r, true, v)
		}
	case 3:
		if cp.DomainAccess != v && !mpu {
			c.flush(mem.FlushAll())
		}

		cp.DomainAccess = v
	case 5:
		return c.setCP15FaultStatus(r, v)
	case 6:
		switch {
		case mpu && r.crm < 8:
			if cp.Regions[r.crm] != v {
				c.flush(mem.FlushAll())
			}

			cp.Regions[r.crm] = v
		case !mpu && r.op2 == 0:
			cp.DataAddr = v
		case !mpu && r.op2 == 1:
			cp.InsnAddr = v
		default:
			return c.badCP15(r, true, v)
		}
	case 7:
		if c.HasFeature(FeatureOMAPCP) {
			cp.IMax = 0
			cp.IMin = 0xff0
		}

		if r.crm == 0 && r.op2 == 4 {
			c.waitForInterrupt()
		}
	case 8:
		if r.op2 > 1 {
			return c.badCP15(r, true, v)
		}

		// Section mappings are cached one small page at a time, so a
		// single entry invalidate drops everything.
		c.flush(mem.FlushAll())
	case 9:
		switch {
		case r.crm == 0 && r.op2 == 0:
			cp.DataLockdown = v
		case r.crm == 0 && r.op2 == 1:
			cp.InsnLockdown = v
		default:
			return c.badCP15(r, true, v)
		}
	case 10:
	case 13:
		switch {
		case r.op2 == 0 && !mpu:
			if cp.FCSEPID != v {
				c.flush(mem.FlushAll())
			}

			cp.FCSEPID = v
		case r.op2 == 1:
			if cp.ContextID != v && !mpu {
				c.flush(mem.FlushAll())
			}

			cp.ContextID = v
		default:
			return c.badCP15(r, true, v)
		}
	case 15:
		return c.setCP15Impl(r, v)
	default:
		return c.badCP15(r, true, v)
	}

	return nil
}

func (c *CPU) setCP15FaultStatus(r cp15Field, v uint32) error {
	mpu := c.HasFeature(FeatureMPU)

	switch r.op2 {
	case 0, 1:
		if mpu {
			v = extendedAP(v)
		}
	case 2, 3:
		if !mpu {
			return c.badCP15(r, true, v)
		}
	default:
		return c.badCP15(r, true, v)
	}

	// On MPU cores these registers hold the region permissions.
	if mpu {
		c.flush(mem.FlushAll())
	}

	if r.op2&1 == 0 {
		c.CP15.DataStatus = v
	} else {
		c.CP15.InsnStatus = v
	}

	return nil
}

func (c *CPU) setCP15Impl(r cp15Field, v uint32) error {
	cp := &c.CP15

	switch {
	case c.HasFeature(FeatureXScale):
		if r.op2 != 0 || r.crm != 1 {
			return c.badCP15(r, true, v)
		}

		c.flush(mem.FlushCode())
		cp.CPAR = v&0x3fff | 2
	case c.HasFeature(FeatureOMAPCP):
		switch r.crm {
		case 0:
		case 1:
			cp.TIConfig = v & 0xe7
			cp.CPUID = IDTI925T
			if v&(1<<5) != 0 {
				cp.CPUID = IDTI915T
			}
		case 2:
			cp.IMax = v
		case 3:
			cp.IMin = v
		case 4:
			cp.ThreadID = v & 0xffff
		case 8:
			c.waitForInterrupt()
		default:
			return c.badCP15(r, true, v)
		}
	}

	return nil
}

// GetCP15 performs an MRC from the system control coprocessor.
func (c *CPU) GetCP15(insn uint32) (uint32, error) {
	r := decodeCP15(insn)
	mpu := c.HasFeature(FeatureMPU)
	cp := &c.CP15

	switch r.crn {
	case 0:
		switch r.op2 {
		case 1:
			return cp.CacheType, nil
		case 2:
			return 0, nil
		}

		return cp.CPUID, nil
	case 1:
		switch r.op2 {
		case 0:
			return cp.Control, nil
		case 1:
			if c.HasFeature(FeatureAuxCR) {
				return 1, nil
			}

			if c.HasFeature(FeatureXScale) {
				return 0, nil
			}
		case 2:
			return cp.CoprocAccess, nil
		}
	case 2:
		switch {
		case !mpu:
			return cp.TTB, nil
		case r.op2 == 0:
			return cp.DataCacheable, nil
		case r.op2 == 1:
			return cp.InsnCacheable, nil
		}
	case 3:
		return cp.DomainAccess, nil
	case 5:
		switch {
		case r.op2 == 0 && mpu:
			return simpleAP(cp.DataStatus), nil
		case r.op2 == 1 && mpu:
			return simpleAP(cp.InsnStatus), nil
		case r.op2 == 0 || r.op2 == 2 && mpu:
			return cp.DataStatus, nil
		case r.op2 == 1 || r.op2 == 3 && mpu:
			return cp.InsnStatus, nil
		}
	case 6:
		switch {
		case mpu && r.crm < 8:
			return cp.Regions[r.crm], nil
		case !mpu && r.op2 == 0:
			return cp.DataAddr, nil
		case !mpu && r.op2 == 1:
			return cp.InsnAddr, nil
		}
	case 7:
		// Test and clean operations report completion through Z.
		c.NF = 0
		c.ZF = 0

		return 0, nil
	case 9:
		switch r.op2 {
		case 0:
			return cp.DataLockdown, nil
		case 1:
			return cp.InsnLockdown, nil
		}
	case 10:
		return 0, nil
	case 13:
		switch r.op2 {
		case 0:
			return cp.FCSEPID, nil
		case 1:
			return cp.ContextID, nil
		}
	case 15:
		return c.getCP15Impl(r)
	}

	return 0, c.badCP15(r, false, 0)
}

func (c *CPU) getCP15Impl(r cp15Field) (uint32, error) {
	cp := &c.CP15

	switch {
	case c.HasFeature(FeatureXScale):
		if r.op2 == 0 && r.crm == 1 {
			return cp.CPAR, nil
		}

		return 0, c.badCP15(r, false, 0)
	case c.HasFeature(FeatureOMAPCP):
		switch r.crm {
		case 0, 8:
			return 0, nil
		case 1:
			return cp.TIConfig, nil
		case 2:
			return cp.IMax, nil
		case 3:
			return cp.IMin, nil
		case 4:
			return cp.ThreadID, nil
		}

		return 0, c.badCP15(r, false, 0)
	}

	return 0, nil
}

// badCP15 applies the unimplemented register policy. It returns nil when
// the access is tolerated.
func (c *CPU) badCP15(r cp15Field, write bool, v uint32) error {
	if c.strictSysRegs {
		c.ExceptionIndex = ExcUDEF

		op := "read"
		if write {
			op = "write"
		}

		return fmt.Errorf("%w: %s %s", ErrUnimplementedRegister, op, r)
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    trace.HookPosUnimplementedRegister,
		Detail: trace.RegisterDetail{Write: write, Name: r.String(), Value: uint64(v)},
	})

	return nil
}

func (c *CPU) waitForInterrupt() {
	c.Halted = true
	c.InterruptRequest |= InterruptExitTB
}
