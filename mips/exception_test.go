package mips_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vcore/mips"
	"github.com/sarchlab/vcore/trace"
)

var _ = Describe("Exceptions", func() {
	var r *rig

	BeforeEach(func() {
		r = newRig("24Kc")
	})

	It("should start at the reset vector in the error level", func() {
		Expect(r.cpu.PC).To(Equal(resetPC))
		Expect(r.cpu.CP0.Status & (mips.StatusERL | mips.StatusBEV)).To(
			Equal(mips.StatusERL | mips.StatusBEV))
		Expect(r.cpu.CP0.EBase).To(Equal(uint32(0x80000000)))
		Expect(r.cpu.CP0.IntCtl).To(Equal(uint32(0xe0000000)))
		Expect(r.cpu.CP0.Random).To(Equal(uint32(len(r.cpu.TLB.Entries) - 1)))
		Expect(r.cpu.Flags() & mips.HFlagUM).To(BeZero())
	})

	It("should record EPC and BD for a syscall in a delay slot", func() {
		r.load(resetPC,
			j(resetPC+0x40),
			syscall,
		)

		r.machine.Step()

		Expect(r.excCode()).To(Equal(uint32(8)))
		Expect(r.cpu.CP0.EPC).To(Equal(resetPC))
		Expect(r.cpu.CP0.Cause & mips.CauseBD).NotTo(BeZero())
		Expect(r.cpu.CP0.Status & mips.StatusEXL).NotTo(BeZero())
		Expect(r.cpu.HFlags & mips.HFlagBMask).To(BeZero())
	})

	It("should use EBase once BEV is clear", func() {
		r.setStatus(0)
		r.load(resetPC, syscall)

		r.machine.Step()

		Expect(r.cpu.CP0.EPC).To(Equal(resetPC))
		Expect(r.cpu.CP0.Cause & mips.CauseBD).To(BeZero())

		evs := r.rec.Events(trace.HookPosException)
		Expect(evs).To(HaveLen(1))
		detail := evs[0].Detail.(trace.ExceptionDetail)
		Expect(detail.Class).To(Equal("syscall"))
		Expect(detail.Vector).To(Equal(uint64(0xFFFFFFFF80000180)))
	})

	It("should use the refill vector for a TLB miss", func() {
		r.setStatus(0)
		r.load(resetPC, lw(2, 0, 0x40))

		r.machine.Step()

		Expect(r.excCode()).To(Equal(uint32(2)))
		Expect(r.cpu.CP0.BadVAddr).To(Equal(uint64(0x40)))

		detail := r.rec.Events(trace.HookPosException)[0].Detail.(trace.ExceptionDetail)
		Expect(detail.Vector).To(Equal(uint64(0xFFFFFFFF80000000)))
		Expect(r.rec.Events(trace.HookPosMMUFault)).To(HaveLen(1))
	})

	It("should use the general vector for a miss at the exception level", func() {
		r.setStatus(mips.StatusEXL)
		r.cpu.CP0.EPC = 0x1234
		r.load(resetPC, lw(2, 0, 0x40))

		r.machine.Step()

		detail := r.rec.Events(trace.HookPosException)[0].Detail.(trace.ExceptionDetail)
		Expect(detail.Vector).To(Equal(uint64(0xFFFFFFFF80000180)))
		Expect(r.cpu.CP0.EPC).To(Equal(uint64(0x1234)))
	})

	It("should raise an address error for a misaligned load", func() {
		r.load(resetPC, lui(4, 0xA000), lw(2, 4, 0x1002))

		r.machine.Step()

		Expect(r.excCode()).To(Equal(uint32(4)))
		Expect(r.cpu.CP0.BadVAddr).To(Equal(uint64(0xFFFFFFFFA0001002)))
		Expect(r.cpu.CP0.EPC).To(Equal(resetPC + 4))
	})

	It("should raise an address error for a misaligned PC", func() {
		r.load(resetPC, lui(5, 0xBFC0), ori(5, 5, 0x22), jr(5), nop)
		r.setStatus(0)

		r.machine.Step()
		r.machine.Step()

		Expect(r.excCode()).To(Equal(uint32(4)))
		Expect(r.cpu.CP0.BadVAddr).To(Equal(resetPC + 0x22))
	})

	It("should return from an exception with ERET", func() {
		r.setStatus(mips.StatusEXL)
		r.cpu.CP0.EPC = resetPC + 0x10
		r.load(resetPC, eret, addiu(2, 0, 1))
		r.load(resetPC+0x10, wait)

		res := r.machine.Run()

		Expect(res.Halted).To(BeTrue())
		Expect(r.cpu.GPR(2)).To(BeZero())
		Expect(r.cpu.CP0.Status & mips.StatusEXL).To(BeZero())
		Expect(r.cpu.PC).To(Equal(resetPC + 0x14))
	})

	Describe("interrupts", func() {
		BeforeEach(func() {
			r.setStatus(mips.StatusIE | 1<<(mips.StatusIMShift+2))
		})

		It("should deliver an enabled interrupt line", func() {
			r.cpu.SetIRQ(2, true)

			Expect(r.cpu.PendingInterrupt()).To(BeTrue())
			Expect(r.cpu.ProcessInterrupts()).To(BeTrue())
			Expect(r.excCode()).To(BeZero())
			Expect(r.cpu.PC).To(Equal(uint64(0xFFFFFFFF80000180)))
			Expect(r.cpu.CP0.EPC).To(Equal(resetPC))
		})

		It("should use the special interrupt vector with Cause.IV", func() {
			r.cpu.CP0.Cause |= mips.CauseIV
			r.cpu.SetIRQ(2, true)

			r.cpu.ProcessInterrupts()

			Expect(r.cpu.PC).To(Equal(uint64(0xFFFFFFFF80000200)))
		})

		It("should ignore masked lines", func() {
			r.cpu.SetIRQ(3, true)

			Expect(r.cpu.ProcessInterrupts()).To(BeFalse())
			Expect(r.cpu.PC).To(Equal(resetPC))
		})

		It("should wake a waiting CPU", func() {
			r.load(resetPC, wait, addiu(2, 0, 1), wait)

			Expect(r.machine.Run().Halted).To(BeTrue())
			Expect(r.cpu.Waiting()).To(BeTrue())

			r.setStatus(1 << (mips.StatusIMShift + 2))
			r.cpu.SetIRQ(2, true)

			Expect(r.machine.Run().Halted).To(BeTrue())
			Expect(r.cpu.GPR(2)).To(Equal(uint64(1)))
		})

		It("should raise the timer line when Count passes Compare", func() {
			r.cpu.CP0.Compare = 100
			r.cpu.AdvanceCount(99)
			Expect(r.cpu.CP0.Cause & mips.CauseTI).To(BeZero())

			r.cpu.AdvanceCount(2)
			Expect(r.cpu.CP0.Cause & mips.CauseTI).NotTo(BeZero())
			Expect(r.cpu.CP0.Cause >> (mips.CauseIPShift + 7) & 1).To(Equal(uint32(1)))
		})
	})

	It("should enter debug mode on SDBBP", func() {
		r.load(resetPC, 0x7000003F)

		r.machine.Step()

		Expect(r.cpu.CP0.Debug & mips.DebugDM).NotTo(BeZero())
		Expect(r.cpu.CP0.DEPC).To(Equal(resetPC))
		Expect(r.cpu.PC).To(Equal(mips.DebugVector))
		Expect(r.cpu.Flags() & mips.HFlagDM).NotTo(BeZero())
	})

	It("should panic on an unknown exception class", func() {
		Expect(func() { r.cpu.Raise(999, 0) }).To(Panic())
	})
})
