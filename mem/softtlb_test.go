package mem_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vcore/mem"
)

var _ = Describe("SoftTLB", func() {
	var tlb *mem.SoftTLB

	BeforeEach(func() {
		tlb = mem.NewSoftTLB(mem.TLBConfig{Sets: 4, Ways: 2, PageBits: 12})
	})

	It("should miss when empty", func() {
		_, ok := tlb.LookupTranslation(0x4000, mem.PrivKernel)
		Expect(ok).To(BeFalse())
		Expect(tlb.Stats().Misses).To(Equal(uint64(1)))
	})

	It("should return the physical address with the page offset", func() {
		tlb.InsertTranslation(0x4123, 0x9000, mem.ProtRW, mem.PrivKernel)

		tr, ok := tlb.LookupTranslation(0x4FF0, mem.PrivKernel)
		Expect(ok).To(BeTrue())
		Expect(tr.PAddr).To(Equal(uint64(0x9FF0)))
		Expect(tr.Prot).To(Equal(mem.ProtRW))
	})

	It("should keep user and kernel entries apart", func() {
		tlb.InsertTranslation(0x4000, 0x9000, mem.ProtAll, mem.PrivKernel)

		_, ok := tlb.LookupTranslation(0x4000, mem.PrivUser)
		Expect(ok).To(BeFalse())
	})

	It("should replace an existing mapping in place", func() {
		tlb.InsertTranslation(0x4000, 0x9000, mem.ProtRead, mem.PrivUser)
		tlb.InsertTranslation(0x4000, 0xA000, mem.ProtRW, mem.PrivUser)

		tr, _ := tlb.LookupTranslation(0x4000, mem.PrivUser)
		Expect(tr.PAddr).To(Equal(uint64(0xA000)))
		Expect(tlb.Len()).To(Equal(1))
	})

	It("should evict the least recently used way", func() {
		// Sets: 4, page 4K, so these three pages share set 0.
		tlb.InsertTranslation(0x0000, 0x1000, mem.ProtAll, mem.PrivUser)
		tlb.InsertTranslation(0x4000, 0x2000, mem.ProtAll, mem.PrivUser)
		tlb.LookupTranslation(0x0000, mem.PrivUser)
		tlb.InsertTranslation(0x8000, 0x3000, mem.ProtAll, mem.PrivUser)

		_, ok := tlb.LookupTranslation(0x4000, mem.PrivUser)
		Expect(ok).To(BeFalse())
		_, ok = tlb.LookupTranslation(0x0000, mem.PrivUser)
		Expect(ok).To(BeTrue())
		Expect(tlb.Stats().Evictions).To(Equal(uint64(1)))
	})

	It("should flush one page or everything", func() {
		tlb.InsertTranslation(0x1000, 0x1000, mem.ProtAll, mem.PrivUser)
		tlb.InsertTranslation(0x2000, 0x2000, mem.ProtAll, mem.PrivKernel)

		tlb.FlushTranslations(mem.FlushPage(0x1234))
		Expect(tlb.Len()).To(Equal(1))

		tlb.FlushTranslations(mem.FlushAll())
		Expect(tlb.Len()).To(Equal(0))
	})

	It("should ignore code scopes", func() {
		tlb.InsertTranslation(0x1000, 0x1000, mem.ProtAll, mem.PrivUser)
		tlb.FlushTranslations(mem.FlushCode())
		Expect(tlb.Len()).To(Equal(1))
	})
})

var _ = Describe("System", func() {
	It("should advance the code generation on every flush", func() {
		sys := mem.NewSystem(mem.NewRAM(0, 0x1000), mem.NewSoftTLB(mem.DefaultTLBConfig()))
		gen := sys.CodeGeneration()

		sys.FlushTranslations(mem.FlushAll())
		Expect(sys.CodeGeneration()).To(Equal(gen + 1))
	})

	It("should satisfy the bus and lookup contracts", func() {
		var bus mem.Bus = mem.NewSystem(mem.NewRAM(0, 0x1000), mem.NewSoftTLB(mem.DefaultTLBConfig()))
		_, ok := bus.(mem.Lookup)
		Expect(ok).To(BeTrue())
	})
})
