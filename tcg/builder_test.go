package tcg_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vcore/tcg"
)

var _ = Describe("Builder", func() {
	var b *tcg.Builder

	BeforeEach(func() {
		b = tcg.NewBuilder(8)
	})

	It("should track the remaining buffer space", func() {
		Expect(b.Remaining()).To(Equal(8))

		b.Movi(tcg.T0, 1)
		b.StoreReg(3, tcg.T0)

		Expect(b.Len()).To(Equal(2))
		Expect(b.Remaining()).To(Equal(6))
	})

	It("should never truncate past the limit", func() {
		for range 10 {
			b.ExitTB()
		}

		Expect(b.Len()).To(Equal(10))
		Expect(b.Remaining()).To(Equal(-2))
	})

	It("should hand out distinct labels", func() {
		l0 := b.NewLabel()
		l1 := b.NewLabel()
		Expect(l0).NotTo(Equal(l1))

		b.Movi(tcg.T1, 0)
		b.BrCondZero(tcg.T1, l1)
		b.SetLabel(l1)

		ops := b.Ops()
		Expect(ops[1]).To(Equal(tcg.Op{Code: tcg.OpBrCond, Src1: tcg.T1, Label: l1, Negate: true}))
		Expect(ops[2]).To(Equal(tcg.Op{Code: tcg.OpSetLabel, Label: l1}))
	})

	It("should record trapping arithmetic with its exception", func() {
		b.ArithTrap(tcg.OpAdd, 32, tcg.T2, tcg.T0, tcg.T1, 12)

		op := b.Ops()[0]
		Expect(op.Trap).To(BeTrue())
		Expect(op.Imm2).To(Equal(uint64(12)))
		Expect(op.Width).To(Equal(uint8(32)))
	})

	It("should record memory access size and privilege", func() {
		b.Load(tcg.T0, tcg.T1, 2, true, 1)
		b.Store(tcg.T1, tcg.T0, 8, 0)

		Expect(b.Ops()[0]).To(Equal(tcg.Op{
			Code: tcg.OpLoad, Dst: tcg.T0, Src1: tcg.T1, Width: 2, Signed: true, MemIdx: 1,
		}))
		Expect(b.Ops()[1]).To(Equal(tcg.Op{
			Code: tcg.OpStore, Src1: tcg.T1, Src2: tcg.T0, Width: 8,
		}))
	})
})

var _ = Describe("Op", func() {
	It("should print micro-ops", func() {
		Expect(tcg.Op{Code: tcg.OpMovi, Dst: tcg.T1, Imm: 0x10}.String()).To(Equal("movi t1, 0x10"))
		Expect(tcg.Op{Code: tcg.OpGotoTB, Imm: 0x400}.String()).To(Equal("goto_tb 0x400"))
		Expect(tcg.Op{Code: tcg.OpLoad, Dst: tcg.T0, Src1: tcg.T2, Width: 4}.String()).To(
			Equal("ld32 t0, [t2]"))
	})

	It("should name block exits", func() {
		Expect(tcg.ExitPageBoundary.String()).To(Equal("page boundary"))
		Expect(tcg.Exit(99).String()).To(Equal("exit99"))
	})
})
