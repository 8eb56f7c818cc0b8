package arm_test

import (
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vcore/arm"
	"github.com/sarchlab/vcore/mem"
	"github.com/sarchlab/vcore/trace"
)

// rig is a CPU on 16MiB of RAM with a TLB over 1KiB pages.
type rig struct {
	cpu *arm.CPU
	ram *mem.RAM
	sys *mem.System
	rec *trace.Recorder
}

func newRig(model string, opts ...arm.Option) *rig {
	ram := mem.NewRAM(0, 0x1000000)
	tlb := mem.NewSoftTLB(mem.TLBConfig{Sets: 64, Ways: 4, PageBits: 10})
	sys := mem.NewSystem(ram, tlb)
	rec := &trace.Recorder{}

	cpu, err := arm.New(model, sys, append(opts, arm.WithHook(rec))...)
	Expect(err).NotTo(HaveOccurred())

	return &rig{cpu: cpu, ram: ram, sys: sys, rec: rec}
}

func (r *rig) poke(paddr uint32, v uint32) {
	Expect(r.ram.Store(uint64(paddr), 4, uint64(v))).To(Succeed())
}

func (r *rig) peek(paddr uint32) uint32 {
	v, err := r.ram.Load(uint64(paddr), 4)
	Expect(err).NotTo(HaveOccurred())

	return uint32(v)
}

// mcr writes a CP15 register the way an MCR instruction would.
func (r *rig) mcr(crn, crm, op2, v uint32) {
	Expect(r.cpu.SetCP15(cp15(crn, crm, op2), v)).To(Succeed())
}

func (r *rig) mrc(crn, crm, op2 uint32) uint32 {
	v, err := r.cpu.GetCP15(cp15(crn, crm, op2))
	Expect(err).NotTo(HaveOccurred())

	return v
}

// enableMMU points the walk at ttb, makes every domain a client and turns
// translation on.
func (r *rig) enableMMU(ttb uint32) {
	r.mcr(2, 0, 0, ttb)
	r.mcr(3, 0, 0, 0x55555555)
	r.mcr(1, 0, 0, r.cpu.CP15.Control|arm.ControlM)
}

// section maps the 1MiB section holding va to pa.
func (r *rig) section(ttb, va, pa, ap, domain uint32) {
	r.poke(ttb+(va>>20)*4, pa&0xfff00000|ap<<10|domain<<5|2)
}

// coarse points the first level entry for va at a coarse second level
// table.
func (r *rig) coarse(ttb, va, l2, domain uint32) {
	r.poke(ttb+(va>>20)*4, l2&0xfffffc00|domain<<5|1)
}

// smallPage maps the 4KiB page holding va with one access field per
// 1KiB subpage.
func (r *rig) smallPage(l2, va, pa uint32, aps [4]uint32) {
	desc := pa&0xfffff000 | 2
	for i, ap := range aps {
		desc |= ap << (4 + 2*i)
	}

	r.poke(l2+((va>>12)&0xff)*4, desc)
}

func cp15(crn, crm, op2 uint32) uint32 {
	return 0xEE000F10 | crn<<16 | op2<<5 | crm
}
