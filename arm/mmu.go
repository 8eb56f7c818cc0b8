package arm

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/vcore/mem"
	"github.com/sarchlab/vcore/trace"
)

// Fault status codes.
const (
	FaultMPUPermission      uint32 = 1
	FaultMPUBackground      uint32 = 2
	FaultSectionTranslation uint32 = 5
	FaultPageTranslation    uint32 = 7
	FaultExternal           uint32 = 8
	FaultSectionDomain      uint32 = 9
	FaultPageDomain         uint32 = 11
	FaultSectionPermission  uint32 = 13
	FaultPagePermission     uint32 = 15
)

// PageBits is log2 of the granule translations are inserted with: 1KiB,
// the smallest page the walk can produce.
const PageBits = 10

const (
	fcseLimit     = 0x02000000
	smallPageMask = 1<<PageBits - 1

	protRead = mem.ProtRead | mem.ProtExec
	protRW   = mem.ProtAll
)

// Fault is an address translation failure.
type Fault struct {
	Code   uint32
	Domain uint32
	VAddr  uint32
	Access mem.Access
}

// Status returns the fault status register encoding.
func (f *Fault) Status() uint32 { return f.Code | f.Domain<<4 }

func (f *Fault) Error() string {
	return fmt.Sprintf("arm: %s fault 0x%x at 0x%08x", f.Access, f.Status(), f.VAddr)
}

func privOf(isUser bool) mem.Privilege {
	if isUser {
		return mem.PrivUser
	}

	return mem.PrivKernel
}

// CheckAP returns the protection granted by a section or page access
// permission field under the given domain access value. Zero means the
// access is not permitted.
func (c *CPU) CheckAP(ap, domainAccess uint32, access mem.Access, isUser bool) mem.Prot {
	if domainAccess == 3 {
		return protRW
	}

	switch ap {
	case 0:
		if access == mem.AccessWrite {
			return 0
		}

		switch (c.CP15.Control >> 8) & 3 {
		case 1:
			if isUser {
				return 0
			}

			return protRead
		case 2:
			return protRead
		}

		return 0
	case 1:
		if isUser {
			return 0
		}

		return protRW
	case 2:
		if !isUser {
			return protRW
		}

		if access == mem.AccessWrite {
			return 0
		}

		return protRead
	case 3:
		return protRW
	}

	return 0
}

// GetPhysAddr translates addr for one access without touching any CPU
// state. Failures are returned as *Fault.
func (c *CPU) GetPhysAddr(addr uint32, access mem.Access, isUser bool) (uint32, mem.Prot, error) {
	va := addr
	if va < fcseLimit {
		va += c.CP15.FCSEPID
	}

	switch {
	case c.CP15.Control&ControlM == 0:
		return va, protRW, nil
	case c.HasFeature(FeatureMPU):
		return c.mpuLookup(addr, va, access, isUser)
	}

	return c.walk(addr, va, access, isUser)
}

func (c *CPU) mpuLookup(addr, va uint32, access mem.Access, isUser bool) (uint32, mem.Prot, error) {
	fault := func(code uint32) (uint32, mem.Prot, error) {
		return 0, 0, &Fault{Code: code, VAddr: addr, Access: access}
	}

	n := 7
	for ; n >= 0; n-- {
		base := c.CP15.Regions[n]
		if base&1 == 0 {
			continue
		}

		mask := uint32(1) << ((base >> 1) & 0x1f)
		mask = mask<<1 - 1

		if (base^va)&^mask == 0 {
			break
		}
	}

	if n < 0 {
		return fault(FaultMPUBackground)
	}

	perms := c.CP15.DataStatus
	if access == mem.AccessExecute {
		perms = c.CP15.InsnStatus
	}

	var prot mem.Prot

	switch (perms >> (n * 4)) & 0xf {
	case 1:
		if isUser {
			return fault(FaultMPUPermission)
		}

		prot = protRW
	case 2:
		prot = protRead
		if !isUser {
			prot = protRW
		}
	case 3:
		prot = protRW
	case 5:
		if isUser {
			return fault(FaultMPUPermission)
		}

		prot = protRead
	case 6:
		prot = protRead
	default:
		return fault(FaultMPUPermission)
	}

	if !prot.Allows(access) {
		return fault(FaultMPUPermission)
	}

	return va, prot, nil
}

func (c *CPU) loadDescriptor(paddr uint32) uint32 {
	v, err := c.bus.Load(uint64(paddr), 4)
	if err != nil {
		return 0
	}

	return uint32(v)
}

// walk runs the two level page table walk.
func (c *CPU) walk(addr, va uint32, access mem.Access, isUser bool) (uint32, mem.Prot, error) {
	table := c.CP15.TTB&0xffffc000 | (va>>18)&0x3ffc
	desc := c.loadDescriptor(table)
	kind := desc & 3
	domain := (desc >> 5) & 0xf
	domainAccess := (c.CP15.DomainAccess >> (domain * 2)) & 3

	fault := func(code uint32) (uint32, mem.Prot, error) {
		f := &Fault{Code: code, Domain: domain, VAddr: addr, Access: access}
		return 0, 0, f
	}

	if kind == 0 {
		return fault(FaultSectionTranslation)
	}

	if domainAccess == 0 || domainAccess == 2 {
		if kind == 2 {
			return fault(FaultSectionDomain)
		}

		return fault(FaultPageDomain)
	}

	var phys, ap, code uint32

	if kind == 2 {
		phys = desc&0xfff00000 | va&0x000fffff
		ap = (desc >> 10) & 3
		code = FaultSectionPermission
	} else {
		if kind == 1 {
			table = desc&0xfffffc00 | (va>>10)&0x3fc
		} else {
			table = desc&0xfffff000 | (va>>8)&0xffc
		}

		desc = c.loadDescriptor(table)
		code = FaultPagePermission

		switch desc & 3 {
		case 0:
			return fault(FaultPageTranslation)
		case 1:
			phys = desc&0xffff0000 | va&0xffff
			ap = (desc >> (4 + (va>>13)&6)) & 3
		case 2:
			phys = desc&0xfffff000 | va&0xfff
			ap = (desc >> (4 + (va>>9)&6)) & 3
		case 3:
			switch {
			case c.HasFeature(FeatureXScale):
				phys = desc&0xfffff000 | va&0xfff
			case kind == 1:
				return fault(FaultPageTranslation)
			default:
				phys = desc&0xfffffc00 | va&0x3ff
			}

			ap = (desc >> 4) & 3
		}
	}

	prot := c.CheckAP(ap, domainAccess, access, isUser)
	if va < c.bootQuirkLimit {
		prot = protRW
	}

	if !prot.Allows(access) {
		return fault(code)
	}

	return phys, prot, nil
}

// HandleMMUFault resolves a translation miss. On success the 1KiB page
// holding addr is inserted into the memory collaborator's translation
// cache; on failure the fault registers are updated and an abort is left
// pending in ExceptionIndex.
func (c *CPU) HandleMMUFault(addr uint32, access mem.Access, isUser bool) bool {
	_, ok := c.translate(addr, access, isUser)
	return ok
}

func (c *CPU) translate(addr uint32, access mem.Access, isUser bool) (uint32, bool) {
	phys, prot, err := c.GetPhysAddr(addr, access, isUser)
	if err != nil {
		c.recordAbort(err.(*Fault))
		return 0, false
	}

	c.bus.InsertTranslation(
		uint64(addr&^smallPageMask),
		uint64(phys&^smallPageMask),
		prot,
		privOf(isUser),
	)

	return phys, true
}

// recordAbort latches a fault into the status and address registers and
// leaves the matching abort pending. MPU cores have no fault registers;
// their c5 holds the region permissions.
func (c *CPU) recordAbort(f *Fault) {
	mpu := c.HasFeature(FeatureMPU)

	if f.Access == mem.AccessExecute {
		if !mpu {
			c.CP15.InsnStatus = f.Status()
			c.CP15.InsnAddr = f.VAddr
		}

		c.ExceptionIndex = ExcPrefetchAbort
	} else {
		if !mpu {
			c.CP15.DataStatus = f.Status()
			c.CP15.DataAddr = f.VAddr
		}

		c.ExceptionIndex = ExcDataAbort
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    trace.HookPosMMUFault,
		Detail: f,
	})
}

// translateAccess maps vaddr through the translation cache, falling back
// to the walk.
func (c *CPU) translateAccess(vaddr uint32, access mem.Access, isUser bool) (uint64, bool) {
	if c.lookup != nil {
		tr, ok := c.lookup.LookupTranslation(uint64(vaddr), privOf(isUser))
		if ok && tr.Prot.Allows(access) {
			return tr.PAddr, true
		}
	}

	phys, ok := c.translate(vaddr, access, isUser)

	return uint64(phys), ok
}

func (c *CPU) busAbort(vaddr uint32, access mem.Access) {
	c.recordAbort(&Fault{Code: FaultExternal, VAddr: vaddr, Access: access})
}

// Load reads width bytes at vaddr. On failure an abort is pending.
func (c *CPU) Load(vaddr uint32, width int, isUser bool) (uint32, bool) {
	paddr, ok := c.translateAccess(vaddr, mem.AccessRead, isUser)
	if !ok {
		return 0, false
	}

	v, err := c.bus.Load(paddr, width)
	if err != nil {
		c.busAbort(vaddr, mem.AccessRead)
		return 0, false
	}

	return uint32(v), true
}

// Store writes width bytes at vaddr. On failure an abort is pending.
func (c *CPU) Store(vaddr uint32, width int, v uint32, isUser bool) bool {
	paddr, ok := c.translateAccess(vaddr, mem.AccessWrite, isUser)
	if !ok {
		return false
	}

	if err := c.bus.Store(paddr, width, uint64(v)); err != nil {
		c.busAbort(vaddr, mem.AccessWrite)
		return false
	}

	return true
}

// Fetch reads an instruction of width bytes at vaddr. On failure a
// prefetch abort is pending.
func (c *CPU) Fetch(vaddr uint32, width int, isUser bool) (uint32, bool) {
	paddr, ok := c.translateAccess(vaddr, mem.AccessExecute, isUser)
	if !ok {
		return 0, false
	}

	v, err := c.bus.Load(paddr, width)
	if err != nil {
		c.busAbort(vaddr, mem.AccessExecute)
		return 0, false
	}

	return uint32(v), true
}

// peekCode reads code without recording faults.
func (c *CPU) peekCode(vaddr uint32, width int) (uint32, bool) {
	phys, _, err := c.GetPhysAddr(vaddr, mem.AccessExecute, c.Mode() == ModeUSR)
	if err != nil {
		return 0, false
	}

	v, berr := c.bus.Load(uint64(phys), width)
	if berr != nil {
		return 0, false
	}

	return uint32(v), true
}
