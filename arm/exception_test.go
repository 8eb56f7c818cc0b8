package arm_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vcore/arm"
	"github.com/sarchlab/vcore/mem"
	"github.com/sarchlab/vcore/trace"
)

var _ = Describe("Exceptions", func() {
	var (
		r   *rig
		cpu *arm.CPU
	)

	BeforeEach(func() {
		r = newRig("arm926")
		cpu = r.cpu
	})

	raise := func(exc arm.Exception) {
		cpu.ExceptionIndex = exc
		cpu.DoInterrupt()
	}

	It("should enter the data abort handler through the high vectors", func() {
		r.enableMMU(ttb)
		r.mcr(1, 0, 0, cpu.CP15.Control|arm.ControlV)
		cpu.SetCPSR(arm.CPSRC, arm.CPSRNZCV|arm.CPSRI)
		cpu.SetPC(0x8000)
		before := cpu.CPSR()

		_, ok := cpu.Load(0x00300000, 4, false)
		Expect(ok).To(BeFalse())
		cpu.DoInterrupt()

		Expect(cpu.PC()).To(Equal(uint32(0xffff0010)))
		Expect(cpu.Mode()).To(Equal(arm.ModeABT))
		Expect(cpu.BankedSPSR(arm.ModeABT)).To(Equal(before))
		Expect(cpu.Reg(14)).To(Equal(uint32(0x8008)))
		Expect(cpu.CPSR() & (arm.CPSRA | arm.CPSRI)).To(Equal(arm.CPSRA | arm.CPSRI))
		Expect(cpu.CP15.DataStatus).To(Equal(arm.FaultSectionTranslation))
		Expect(cpu.CP15.DataAddr).To(Equal(uint32(0x00300000)))
		Expect(cpu.ExceptionIndex).To(Equal(arm.ExcNone))
		Expect(cpu.TakeExitRequest()).To(BeTrue())
	})

	It("should use the low vectors by default", func() {
		cpu.SetPC(0x100)
		raise(arm.ExcPrefetchAbort)

		Expect(cpu.PC()).To(Equal(uint32(0x0c)))
		Expect(cpu.Reg(14)).To(Equal(uint32(0x104)))

		evs := r.rec.Events(trace.HookPosException)
		Expect(evs).To(HaveLen(1))
		Expect(evs[0].Detail).To(Equal(trace.ExceptionDetail{
			Class:  "prefetch abort",
			PC:     0x100,
			Vector: 0x0c,
		}))
	})

	It("should link past a Thumb undefined instruction and leave Thumb", func() {
		cpu.Thumb = true
		cpu.SetPC(0x200)

		raise(arm.ExcUDEF)

		Expect(cpu.Mode()).To(Equal(arm.ModeUND))
		Expect(cpu.Reg(14)).To(Equal(uint32(0x202)))
		Expect(cpu.Thumb).To(BeFalse())
		Expect(cpu.SPSR() & arm.CPSRT).NotTo(BeZero())
		Expect(cpu.PC()).To(Equal(uint32(0x04)))
	})

	It("should mask FIQ only for FIQ entry", func() {
		cpu.SetCPSR(0, arm.CPSRA|arm.CPSRF|arm.CPSRI)
		raise(arm.ExcIRQ)
		Expect(cpu.CPSR() & arm.CPSRF).To(BeZero())

		raise(arm.ExcFIQ)
		Expect(cpu.CPSR() & arm.CPSRF).NotTo(BeZero())
		Expect(cpu.Mode()).To(Equal(arm.ModeFIQ))
		Expect(cpu.PC()).To(Equal(uint32(0x1c)))
	})

	It("should panic on an unknown class", func() {
		cpu.ExceptionIndex = arm.Exception(42)
		Expect(cpu.DoInterrupt).To(Panic())
	})

	Describe("interrupt lines", func() {
		BeforeEach(func() {
			cpu.SetCPSR(0, arm.CPSRA|arm.CPSRF|arm.CPSRI)
			cpu.SetPC(0x400)
		})

		It("should take an unmasked IRQ", func() {
			cpu.SetIRQ(true)

			Expect(cpu.ProcessInterrupts()).To(BeTrue())
			Expect(cpu.Mode()).To(Equal(arm.ModeIRQ))
			Expect(cpu.Reg(14)).To(Equal(uint32(0x404)))
			Expect(cpu.PC()).To(Equal(uint32(0x18)))

			Expect(cpu.ProcessInterrupts()).To(BeFalse())
		})

		It("should prefer FIQ", func() {
			cpu.SetIRQ(true)
			cpu.SetFIQ(true)

			Expect(cpu.ProcessInterrupts()).To(BeTrue())
			Expect(cpu.Mode()).To(Equal(arm.ModeFIQ))
		})

		It("should ignore lowered lines", func() {
			cpu.SetIRQ(true)
			cpu.SetIRQ(false)

			Expect(cpu.ProcessInterrupts()).To(BeFalse())
		})
	})

	Describe("debug monitor", func() {
		var calls int

		BeforeEach(func() {
			calls = 0
			r = newRig("arm926", arm.WithDebugMonitor(arm.MonitorFunc(func(c *arm.CPU) uint32 {
				calls++
				return c.Reg(1) + 1
			})))
			cpu = r.cpu

			r.poke(0x100, 0xEF123456)
			cpu.SetPC(0x104)
			cpu.SetReg(1, 41)
		})

		It("should service a privileged monitor call in place", func() {
			raise(arm.ExcSWI)

			Expect(calls).To(Equal(1))
			Expect(cpu.Reg(0)).To(Equal(uint32(42)))
			Expect(cpu.PC()).To(Equal(uint32(0x104)))
			Expect(cpu.Mode()).To(Equal(arm.ModeSVC))
			Expect(r.rec.Events(trace.HookPosException)).To(BeEmpty())
		})

		It("should recognise the Thumb form", func() {
			Expect(r.ram.Store(0x100, 2, 0xDFAB)).To(Succeed())
			cpu.Thumb = true
			cpu.SetPC(0x102)

			raise(arm.ExcSWI)

			Expect(calls).To(Equal(1))
			Expect(cpu.Reg(0)).To(Equal(uint32(42)))
		})

		It("should not intercept user mode calls", func() {
			cpu.SetCPSR(uint32(arm.ModeUSR), arm.CPSRM)
			user := cpu.CPSR()

			raise(arm.ExcSWI)

			Expect(calls).To(BeZero())
			Expect(cpu.Mode()).To(Equal(arm.ModeSVC))
			Expect(cpu.PC()).To(Equal(uint32(0x08)))
			Expect(cpu.Reg(14)).To(Equal(uint32(0x104)))
			Expect(cpu.SPSR()).To(Equal(user))
		})

		It("should not intercept other numbers", func() {
			r.poke(0x100, 0xEF000001)

			raise(arm.ExcSWI)

			Expect(calls).To(BeZero())
			Expect(cpu.PC()).To(Equal(uint32(0x08)))
		})
	})

	It("should deliver a prefetch abort for an unmapped fetch", func() {
		r.enableMMU(ttb)
		cpu.SetPC(0x00500000)

		_, ok := cpu.Fetch(cpu.PC(), 4, false)
		Expect(ok).To(BeFalse())
		cpu.DoInterrupt()

		Expect(cpu.Mode()).To(Equal(arm.ModeABT))
		Expect(cpu.PC()).To(Equal(uint32(0x0c)))
		Expect(cpu.CP15.InsnAddr).To(Equal(uint32(0x00500000)))
		Expect(r.rec.Events(trace.HookPosMMUFault)[0].Detail.(*arm.Fault).Access).
			To(Equal(mem.AccessExecute))
	})
})
