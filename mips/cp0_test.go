package mips_test

import (
	"sort"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vcore/mem"
	"github.com/sarchlab/vcore/mips"
	"github.com/sarchlab/vcore/trace"
)

var _ = Describe("CP0", func() {
	It("should read the processor ID from code", func() {
		r := newRig("24Kc")
		r.load(resetPC, mfc0(2, 15, 0), wait)

		r.machine.Run()

		Expect(r.cpu.GPR(2)).To(Equal(uint64(0x00019300)))
	})

	It("should treat unknown registers as reserved in strict mode", func() {
		r := newRig("24Kc")
		r.setStatus(0)
		r.load(resetPC, mfc0(2, 22, 0))

		r.machine.Step()

		Expect(r.excCode()).To(Equal(uint32(10)))
		Expect(r.rec.Events(trace.HookPosUnimplementedRegister)).To(BeEmpty())
	})

	It("should hide 64-bit registers on 32-bit models", func() {
		r := newRig("24Kc")
		r.setStatus(0)
		r.load(resetPC, mfc0(2, 20, 0))

		r.machine.Step()

		Expect(r.excCode()).To(Equal(uint32(10)))
	})

	Context("in legacy mode", func() {
		var r *rig

		BeforeEach(func() {
			r = newRig("24Kc", mips.WithStrictCP0(false))
		})

		It("should read unknown registers as zero and report them", func() {
			r.load(resetPC, addiu(2, 0, 5), mfc0(2, 22, 0), wait)

			r.machine.Run()

			Expect(r.cpu.GPR(2)).To(BeZero())

			evs := r.rec.Events(trace.HookPosUnimplementedRegister)
			Expect(evs).To(HaveLen(1))

			d := evs[0].Detail.(trace.RegisterDetail)
			Expect(d.Write).To(BeFalse())
			Expect(d.Name).To(Equal("cp0 22,0"))
		})

		It("should drop writes to unknown registers and report them", func() {
			r.load(resetPC, addiu(2, 0, 7), mtc0(2, 22, 1), wait)

			r.machine.Run()

			evs := r.rec.Events(trace.HookPosUnimplementedRegister)
			Expect(evs).To(HaveLen(1))

			d := evs[0].Detail.(trace.RegisterDetail)
			Expect(d.Write).To(BeTrue())
			Expect(d.Value).To(Equal(uint64(7)))
			Expect(d.String()).To(ContainSubstring("cp0 22,1"))
		})
	})

	It("should mask Status writes to the writable bits", func() {
		r := newRig("24Kc")

		r.setStatus(0xFFFFFFFF)

		Expect(r.cpu.CP0.Status & mips.StatusCU1).To(BeZero())
		Expect(r.cpu.CP0.Status & mips.StatusBEV).NotTo(BeZero())
	})

	It("should flush translations when the ASID changes", func() {
		r := newRig("24Kc")
		before := len(r.rec.Events(trace.HookPosTranslationFlush))

		r.cpu.MTC0(10, 0, 0x00400000)
		Expect(r.rec.Events(trace.HookPosTranslationFlush)).To(HaveLen(before))

		r.cpu.MTC0(10, 0, 0x00400005)
		evs := r.rec.Events(trace.HookPosTranslationFlush)
		Expect(evs).To(HaveLen(before + 1))
		Expect(evs[len(evs)-1].Detail).To(Equal(mem.FlushAll()))
		Expect(r.cpu.CP0.EntryHi).To(Equal(uint64(0x00400005)))
	})

	It("should only let software write the IV and software interrupt bits of Cause", func() {
		r := newRig("24Kc")

		r.cpu.MTC0(13, 0, 0xFFFFFFFF)

		Expect(r.cpu.CP0.Cause & mips.CauseIV).NotTo(BeZero())
		Expect(r.cpu.CP0.Cause & mips.CauseBD).To(BeZero())
		Expect(r.cpu.CP0.Cause >> mips.CauseIPShift & 0xFF).To(Equal(uint32(3)))
	})

	It("should stop the block after a Compare write and clear the timer", func() {
		r := newRig("24Kc")
		r.cpu.CP0.Cause |= mips.CauseTI
		r.load(resetPC, addiu(2, 0, 100), mtc0(2, 11, 0), addiu(3, 0, 1), wait)

		r.machine.Step()

		Expect(r.cpu.PC).To(Equal(resetPC + 8))
		Expect(r.cpu.CP0.Compare).To(Equal(uint32(100)))
		Expect(r.cpu.CP0.Cause & mips.CauseTI).To(BeZero())
	})
})

var _ = Describe("Models", func() {
	It("should list every model in order", func() {
		names := mips.ModelNames()
		Expect(names).To(ContainElements("4Kc", "24Kf", "5Kc", "R4000"))
		Expect(sort.StringsAreSorted(names)).To(BeTrue())
	})

	It("should reject unknown models", func() {
		_, err := mips.LookupModel("68000")
		Expect(err).To(MatchError(mips.ErrUnknownModel))

		_, err = mips.New("68000", nil)
		Expect(err).To(MatchError(mips.ErrUnknownModel))
	})

	It("should require a bus", func() {
		_, err := mips.New("4Kc", nil)
		Expect(err).To(MatchError(mips.ErrNoBus))
	})

	It("should report FPU presence from Config1", func() {
		m, err := mips.LookupModel("24Kf")
		Expect(err).NotTo(HaveOccurred())
		Expect(m.HasFPU()).To(BeTrue())
		Expect(m.IsRelease2()).To(BeTrue())

		m, err = mips.LookupModel("4Kc")
		Expect(err).NotTo(HaveOccurred())
		Expect(m.HasFPU()).To(BeFalse())
	})
})
