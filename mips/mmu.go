package mips

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/vcore/mem"
	"github.com/sarchlab/vcore/trace"
)

// TLBEntry is one R4K joint TLB entry mapping an even/odd page pair.
type TLBEntry struct {
	VPN2     uint64
	PageMask uint32
	ASID     uint8
	G        bool
	V        [2]bool
	D        [2]bool
	C        [2]uint8
	PFN      [2]uint64 // physical address of each page
}

// TLB is the joint TLB.
type TLB struct {
	Entries []TLBEntry
}

func (t *TLB) init(n int) {
	t.Entries = make([]TLBEntry, n)
}

// reset parks every entry on a distinct kseg0 page, which is never looked
// up through the TLB.
func (t *TLB) reset(segMask uint64) {
	for i := range t.Entries {
		t.Entries[i] = TLBEntry{VPN2: (0xFFFFFFFF80000000 + uint64(i)<<13) & segMask}
	}
}

// Fault is an address translation failure.
type Fault struct {
	Exc   Exception
	VAddr uint64
	// Refill marks a TLB miss, which uses the refill vector.
	Refill bool
}

func (f *Fault) Error() string {
	if f.Refill {
		return fmt.Sprintf("%v refill at 0x%x", f.Exc, f.VAddr)
	}

	return fmt.Sprintf("%v at 0x%x", f.Exc, f.VAddr)
}

func (c *CPU) segMask() uint64 {
	if !c.model.Is64 {
		return 0xFFFFFFFF
	}

	return 0xC000000000000000 | (uint64(1)<<c.model.SEGBITS - 1)
}

func (c *CPU) paMask() uint64 {
	return uint64(1)<<c.model.PABITS - 1
}

func addressFault(vaddr uint64, access mem.Access) *Fault {
	if access == mem.AccessWrite {
		return &Fault{Exc: ExcAdES, VAddr: vaddr}
	}

	return &Fault{Exc: ExcAdEL, VAddr: vaddr}
}

// Translate maps a virtual address for the given access. It does not touch
// CP0; the returned *Fault describes a failure.
func (c *CPU) Translate(vaddr uint64, access mem.Access, user bool) (uint64, mem.Prot, error) {
	kernel := !user
	st := c.CP0.Status
	a := int64(vaddr)

	switch {
	case a >= 0 && a < 0x80000000:
		// kuseg
		if kernel && st&StatusERL != 0 {
			return vaddr & 0xFFFFFFFF, mem.ProtAll, nil
		}

		return c.tlbMap(vaddr, access)
	case c.model.Is64 && a >= 0 && vaddr < 1<<c.model.SEGBITS:
		// xuseg
		if user && st&StatusUX == 0 || kernel && st&StatusKX == 0 {
			return 0, 0, addressFault(vaddr, access)
		}

		return c.tlbMap(vaddr, access)
	case c.model.Is64 && vaddr>>62 == 1:
		// xsseg, supervisor is treated as kernel
		if user || st&StatusKX == 0 || vaddr&0x3FFFFFFFFFFFFFFF >= 1<<c.model.SEGBITS {
			return 0, 0, addressFault(vaddr, access)
		}

		return c.tlbMap(vaddr, access)
	case c.model.Is64 && vaddr>>62 == 2:
		// xkphys
		if user || st&StatusKX == 0 || vaddr&0x07FFFFFFFFFFFFFF > c.paMask() {
			return 0, 0, addressFault(vaddr, access)
		}

		return vaddr & c.paMask(), mem.ProtAll, nil
	case c.model.Is64 && vaddr>>62 == 3 && a < -0x80000000:
		// xkseg
		if user || st&StatusKX == 0 || vaddr&0x3FFFFFFFFFFFFFFF >= 1<<c.model.SEGBITS {
			return 0, 0, addressFault(vaddr, access)
		}

		return c.tlbMap(vaddr, access)
	case a >= -0x80000000 && a < -0x60000000:
		// kseg0
		if user {
			return 0, 0, addressFault(vaddr, access)
		}

		return vaddr - 0xFFFFFFFF80000000, mem.ProtAll, nil
	case a >= -0x60000000 && a < -0x40000000:
		// kseg1
		if user {
			return 0, 0, addressFault(vaddr, access)
		}

		return vaddr - 0xFFFFFFFFA0000000, mem.ProtAll, nil
	case a >= -0x40000000:
		// sseg/kseg2 and kseg3
		if user {
			return 0, 0, addressFault(vaddr, access)
		}

		return c.tlbMap(vaddr, access)
	}

	return 0, 0, addressFault(vaddr, access)
}

// tlbMap looks vaddr up in the joint TLB under the current ASID.
func (c *CPU) tlbMap(vaddr uint64, access mem.Access) (uint64, mem.Prot, error) {
	asid := uint8(c.CP0.EntryHi)
	seg := c.segMask()

	for i := range c.TLB.Entries {
		e := &c.TLB.Entries[i]
		mask := uint64(e.PageMask) | 0x1FFF
		tag := vaddr &^ mask & seg
		vpn := e.VPN2 &^ mask

		if !(e.G || e.ASID == asid) || vpn != tag {
			continue
		}

		n := 0
		if vaddr&(mask>>1+1) != 0 {
			n = 1
		}

		if !e.V[n] {
			return 0, 0, c.tlbFault(vaddr, access, false)
		}

		if access == mem.AccessWrite && !e.D[n] {
			return 0, 0, &Fault{Exc: ExcMod, VAddr: vaddr}
		}

		prot := mem.ProtRead | mem.ProtExec
		if e.D[n] {
			prot |= mem.ProtWrite
		}

		return e.PFN[n] | vaddr&(mask>>1), prot, nil
	}

	return 0, 0, c.tlbFault(vaddr, access, true)
}

func (c *CPU) tlbFault(vaddr uint64, access mem.Access, refill bool) *Fault {
	if access == mem.AccessWrite {
		return &Fault{Exc: ExcTLBS, VAddr: vaddr, Refill: refill}
	}

	return &Fault{Exc: ExcTLBL, VAddr: vaddr, Refill: refill}
}

// raiseAddressFault records a translation failure in CP0 and delivers it.
func (c *CPU) raiseAddressFault(err error) {
	f, ok := err.(*Fault)
	if !ok {
		panic(fmt.Sprintf("mips: unexpected translation error %v", err))
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    trace.HookPosMMUFault,
		Detail: f,
	})

	c.CP0.BadVAddr = f.VAddr

	var code uint64

	switch f.Exc {
	case ExcTLBL, ExcTLBS, ExcMod:
		c.CP0.Context = c.CP0.Context&^0x007FFFFF | (f.VAddr>>9)&0x007FFFF0
		c.CP0.EntryHi = c.CP0.EntryHi&0xFF | f.VAddr&^0x1FFF&c.segMask()

		if !c.model.Is64 {
			c.CP0.EntryHi = sext32(c.CP0.EntryHi)
		} else {
			segBits := c.model.SEGBITS
			c.CP0.XContext = c.CP0.XContext&(^uint64(0)<<(segBits-7)) |
				(f.VAddr&0xC00000000000)<<(segBits-9) |
				(f.VAddr&(uint64(1)<<segBits-1)&^0x1FFF)>>9
		}

		if f.Refill {
			code = 1
		}
	}

	c.Raise(uint64(f.Exc), code)
}

func entryLoPFN(lo uint64) uint64 {
	return (lo >> 6) << 12
}

func (c *CPU) tlbEntryFromCP0() TLBEntry {
	mask := uint64(c.CP0.PageMask) | 0x1FFF
	lo0, lo1 := c.CP0.EntryLo0, c.CP0.EntryLo1

	return TLBEntry{
		VPN2:     c.CP0.EntryHi &^ mask & c.segMask(),
		PageMask: c.CP0.PageMask,
		ASID:     uint8(c.CP0.EntryHi),
		G:        lo0&1 != 0 && lo1&1 != 0,
		V:        [2]bool{lo0&2 != 0, lo1&2 != 0},
		D:        [2]bool{lo0&4 != 0, lo1&4 != 0},
		C:        [2]uint8{uint8(lo0>>3) & 7, uint8(lo1>>3) & 7},
		PFN:      [2]uint64{entryLoPFN(lo0) &^ (mask >> 1), entryLoPFN(lo1) &^ (mask >> 1)},
	}
}

func (c *CPU) tlbWrite(idx int) {
	c.TLB.Entries[idx] = c.tlbEntryFromCP0()
	c.flush(mem.FlushAll())
}

// TLBWI writes the entry selected by Index.
func (c *CPU) TLBWI() {
	idx := int(c.CP0.Index&0x7FFFFFFF) % len(c.TLB.Entries)
	c.tlbWrite(idx)
}

// TLBWR writes the entry selected by Random, then steps Random down
// towards Wired.
func (c *CPU) TLBWR() {
	c.tlbWrite(int(c.CP0.Random))

	n := uint32(len(c.TLB.Entries))
	if c.CP0.Random <= c.CP0.Wired || c.CP0.Random == 0 {
		c.CP0.Random = n - 1
	} else {
		c.CP0.Random--
	}
}

// TLBP probes for an entry matching EntryHi.
func (c *CPU) TLBP() {
	asid := uint8(c.CP0.EntryHi)

	for i := range c.TLB.Entries {
		e := &c.TLB.Entries[i]
		mask := uint64(e.PageMask) | 0x1FFF

		if (e.G || e.ASID == asid) && e.VPN2&^mask == c.CP0.EntryHi&^mask&c.segMask() {
			c.CP0.Index = uint32(i)
			return
		}
	}

	c.CP0.Index |= 0x80000000
}

// TLBR reads the entry selected by Index into EntryHi, PageMask and
// EntryLo0/1.
func (c *CPU) TLBR() {
	idx := int(c.CP0.Index&0x7FFFFFFF) % len(c.TLB.Entries)
	e := &c.TLB.Entries[idx]

	if uint8(c.CP0.EntryHi) != e.ASID {
		c.flush(mem.FlushAll())
	}

	hi := e.VPN2 | uint64(e.ASID)
	if !c.model.Is64 {
		hi = sext32(hi)
	}

	c.CP0.EntryHi = hi
	c.CP0.PageMask = e.PageMask
	c.CP0.EntryLo0 = entryLo(e, 0)
	c.CP0.EntryLo1 = entryLo(e, 1)
}

func entryLo(e *TLBEntry, n int) uint64 {
	lo := (e.PFN[n]>>12)<<6 | uint64(e.C[n])<<3
	if e.D[n] {
		lo |= 4
	}

	if e.V[n] {
		lo |= 2
	}

	if e.G {
		lo |= 1
	}

	return lo
}
