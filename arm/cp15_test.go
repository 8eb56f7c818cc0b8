package arm_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vcore/arm"
	"github.com/sarchlab/vcore/mem"
	"github.com/sarchlab/vcore/trace"
)

var _ = Describe("CP15", func() {
	var r *rig

	BeforeEach(func() {
		r = newRig("arm926")
	})

	flushes := func() []mem.Scope {
		var out []mem.Scope
		for _, ev := range r.rec.Events(trace.HookPosTranslationFlush) {
			out = append(out, ev.Detail.(mem.Scope))
		}

		return out
	}

	It("should read the identity registers", func() {
		Expect(r.mrc(0, 0, 0)).To(Equal(uint32(arm.IDARM926)))
		Expect(r.mrc(0, 0, 1)).To(Equal(uint32(0x1dd20d2)))
		Expect(r.mrc(0, 0, 2)).To(BeZero())
		Expect(r.mrc(0, 0, 5)).To(Equal(uint32(arm.IDARM926)))
	})

	It("should flush and stop the block on a control write", func() {
		r.rec.Reset()
		r.mcr(1, 0, 0, 0x1)

		Expect(r.cpu.CP15.Control).To(Equal(uint32(1)))
		Expect(flushes()).To(Equal([]mem.Scope{mem.FlushAll()}))
		Expect(r.cpu.TakeExitRequest()).To(BeTrue())
		Expect(r.cpu.TakeExitRequest()).To(BeFalse())
	})

	It("should flush code on a coprocessor access write", func() {
		r.rec.Reset()
		r.mcr(1, 0, 2, 0x0fffffff)

		Expect(r.mrc(1, 0, 2)).To(Equal(uint32(0x0fffffff)))
		Expect(flushes()).To(Equal([]mem.Scope{mem.FlushCode()}))
	})

	It("should flush translations when the table base changes", func() {
		gen := r.sys.CodeGeneration()
		r.mcr(2, 0, 0, 0x8000)

		Expect(r.mrc(2, 0, 0)).To(Equal(uint32(0x8000)))
		Expect(r.sys.CodeGeneration()).To(BeNumerically(">", gen))
	})

	It("should flush only when the context ID changes", func() {
		r.mcr(13, 0, 1, 7)
		r.rec.Reset()
		r.mcr(13, 0, 1, 7)

		Expect(flushes()).To(BeEmpty())
		Expect(r.mrc(13, 0, 1)).To(Equal(uint32(7)))
	})

	It("should keep fault status and address registers", func() {
		r.mcr(5, 0, 0, 0x1d)
		r.mcr(5, 0, 1, 0x07)
		r.mcr(6, 0, 0, 0x1234)
		r.mcr(6, 0, 1, 0x5678)

		Expect(r.mrc(5, 0, 0)).To(Equal(uint32(0x1d)))
		Expect(r.mrc(5, 0, 1)).To(Equal(uint32(0x07)))
		Expect(r.mrc(6, 0, 0)).To(Equal(uint32(0x1234)))
		Expect(r.mrc(6, 0, 1)).To(Equal(uint32(0x5678)))
	})

	It("should set Z on cache test operations", func() {
		r.cpu.SetCPSR(arm.CPSRN, arm.CPSRNZCV)

		Expect(r.mrc(7, 10, 3)).To(BeZero())
		Expect(r.cpu.CPSR() & arm.CPSRNZCV).To(Equal(arm.CPSRZ))
	})

	It("should halt on wait for interrupt", func() {
		r.mcr(7, 0, 4, 0)

		Expect(r.cpu.Waiting()).To(BeTrue())

		r.cpu.SetIRQ(true)
		Expect(r.cpu.ProcessInterrupts()).To(BeFalse())
		Expect(r.cpu.Waiting()).To(BeFalse())
	})

	It("should read the auxiliary control register by model", func() {
		_, err := r.cpu.GetCP15(cp15(1, 0, 1))
		Expect(err).NotTo(HaveOccurred())

		Expect(r.cpu.SetModel("arm1026")).To(Succeed())
		Expect(r.mrc(1, 0, 1)).To(Equal(uint32(1)))
	})

	Describe("unimplemented registers", func() {
		It("should report and tolerate them by default", func() {
			Expect(r.cpu.SetCP15(cp15(4, 0, 0), 5)).To(Succeed())

			v, err := r.cpu.GetCP15(cp15(12, 0, 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(BeZero())

			evs := r.rec.Events(trace.HookPosUnimplementedRegister)
			Expect(evs).To(HaveLen(2))

			w := evs[0].Detail.(trace.RegisterDetail)
			Expect(w.Write).To(BeTrue())
			Expect(w.Value).To(Equal(uint64(5)))
			Expect(w.String()).To(Equal("Unimplemented cp15 c4,0,c0,0 register write (0x5)"))
			Expect(evs[1].Detail.(trace.RegisterDetail).String()).To(
				Equal("Unimplemented cp15 c12,0,c0,0 register read"))
			Expect(r.cpu.ExceptionIndex).To(Equal(arm.ExcNone))
		})

		It("should fail and leave an undefined instruction pending when strict", func() {
			r = newRig("arm926", arm.WithStrictSystemRegisters(true))

			err := r.cpu.SetCP15(cp15(0, 0, 0), 1)

			Expect(err).To(MatchError(arm.ErrUnimplementedRegister))
			Expect(r.cpu.ExceptionIndex).To(Equal(arm.ExcUDEF))
			Expect(r.rec.Events(trace.HookPosUnimplementedRegister)).To(BeEmpty())

			_, err = r.cpu.GetCP15(cp15(8, 0, 0))
			Expect(err).To(MatchError(ContainSubstring("read cp15 c8")))
		})
	})

	Describe("MPU cores", func() {
		BeforeEach(func() {
			r = newRig("arm946")
		})

		It("should keep the region registers", func() {
			r.mcr(6, 5, 0, 0x00400023)

			Expect(r.mrc(6, 5, 0)).To(Equal(uint32(0x00400023)))
			Expect(r.cpu.CP15.Regions[5]).To(Equal(uint32(0x00400023)))
		})

		It("should keep cacheable bits instead of a table base", func() {
			r.mcr(2, 0, 0, 0x81)
			r.mcr(2, 0, 1, 0x42)

			Expect(r.mrc(2, 0, 0)).To(Equal(uint32(0x81)))
			Expect(r.mrc(2, 0, 1)).To(Equal(uint32(0x42)))
			Expect(r.cpu.CP15.TTB).To(BeZero())
		})
	})

	Describe("implementation registers", func() {
		It("should update the XScale CPAR", func() {
			Expect(r.cpu.SetModel("pxa255")).To(Succeed())
			r.rec.Reset()

			r.mcr(15, 1, 0, 0xffff)

			Expect(r.mrc(15, 1, 0)).To(Equal(uint32(0x3fff)))
			Expect(flushes()).To(Equal([]mem.Scope{mem.FlushCode()}))
		})

		It("should ignore the control write on XScale when crm is set", func() {
			Expect(r.cpu.SetModel("pxa250")).To(Succeed())
			before := r.cpu.CP15.Control

			r.mcr(1, 1, 0, 0)

			Expect(r.cpu.CP15.Control).To(Equal(before))
		})

		It("should model the TI925T configuration", func() {
			Expect(r.cpu.SetModel("ti925t")).To(Succeed())

			r.mcr(15, 1, 0, 0xff)
			Expect(r.mrc(15, 1, 0)).To(Equal(uint32(0xe7)))
			Expect(r.mrc(0, 0, 0)).To(Equal(uint32(arm.IDTI915T)))

			r.mcr(15, 4, 0, 0x12345)
			Expect(r.mrc(15, 4, 0)).To(Equal(uint32(0x2345)))

			r.mcr(7, 5, 0, 0)
			Expect(r.mrc(15, 3, 0)).To(Equal(uint32(0xff0)))

			r.mcr(15, 8, 0, 0)
			Expect(r.cpu.Waiting()).To(BeTrue())
		})

		It("should read zero elsewhere", func() {
			Expect(r.mrc(15, 1, 0)).To(BeZero())
		})
	})

	Describe("generic coprocessors", func() {
		It("should dispatch to the registered handler", func() {
			var got []int
			r.cpu.SetCoprocessor(7, arm.CoprocessorFuncs{
				Read: func(info, reg, operand int) uint32 {
					return uint32(info<<8 | reg<<4 | operand)
				},
				Write: func(info, reg, operand int, v uint32) {
					got = []int{info, reg, operand, int(v)}
				},
			})

			// MRC p7, 0, r0, c3, c4, 5
			Expect(r.cpu.GetCP(0xEE1307B4)).To(Equal(uint32(0x534)))

			r.cpu.SetCP(0xEE030734, 9)
			Expect(got).To(Equal([]int{1, 3, 4, 9}))
		})

		It("should read zero from an absent coprocessor", func() {
			Expect(r.cpu.GetCP(0xEE130B10)).To(BeZero())
			r.cpu.SetCP(0xEE030B10, 1)
		})

		It("should panic on an out of range coprocessor", func() {
			Expect(func() { r.cpu.SetCoprocessor(15, nil) }).To(Panic())
			Expect(func() { r.cpu.GetCP(0xEE130F10) }).To(Panic())
			Expect(func() { r.cpu.SetCoprocessor(14, nil) }).NotTo(Panic())
		})
	})
})
