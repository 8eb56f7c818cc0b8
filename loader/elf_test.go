package loader_test

import (
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vcore/loader"
	"github.com/sarchlab/vcore/mem"
)

var _ = Describe("ELF Loader", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "elf-loader-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	code := []byte{0x2a, 0x00, 0xa0, 0xe3, 0x1e, 0xff, 0x2f, 0xe1} // mov r0, #42; bx lr

	armImage := func(entry uint64, segs ...segment) elfImage {
		return elfImage{
			class:    elf.ELFCLASS32,
			machine:  elf.EM_ARM,
			entry:    entry,
			segments: segs,
		}
	}

	Describe("Load", func() {
		Context("with a valid 32-bit ARM ELF binary", func() {
			var elfPath string

			BeforeEach(func() {
				elfPath = filepath.Join(tempDir, "test.elf")
				armImage(0x8080, segment{vaddr: 0x8000, data: code, flags: elf.PF_R | elf.PF_X}).write(elfPath)
			})

			It("should extract the header fields", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.EntryPoint).To(Equal(uint64(0x8080)))
				Expect(prog.Machine).To(Equal(elf.EM_ARM))
				Expect(prog.Class).To(Equal(elf.ELFCLASS32))
				Expect(prog.ByteOrder).To(Equal(binary.LittleEndian))
			})

			It("should correctly load segment contents", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.Segments).To(HaveLen(1))

				seg := prog.Segments[0]
				Expect(seg.VirtAddr).To(Equal(uint64(0x8000)))
				Expect(seg.Data).To(Equal(code))
				Expect(seg.MemSize).To(Equal(uint64(len(code))))
				Expect(seg.Flags).To(Equal(loader.SegmentFlagRead | loader.SegmentFlagExecute))
			})

			It("should accept a matching machine", func() {
				_, err := loader.Load(elfPath, elf.EM_MIPS, elf.EM_ARM)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should reject any other machine", func() {
				_, err := loader.Load(elfPath, elf.EM_MIPS)
				Expect(err).To(MatchError(loader.ErrUnsupportedMachine))
			})
		})

		Context("with invalid files", func() {
			It("should return error for non-existent file", func() {
				_, err := loader.Load(filepath.Join(tempDir, "missing.elf"))
				Expect(err).To(HaveOccurred())
			})

			It("should return error for non-ELF file", func() {
				path := filepath.Join(tempDir, "notelf")
				Expect(os.WriteFile(path, []byte("not an ELF file"), 0o644)).To(Succeed())

				_, err := loader.Load(path)
				Expect(err).To(MatchError(loader.ErrNotELF))
			})

			It("should return error for empty file", func() {
				_, err := loader.Parse(nil)
				Expect(err).To(MatchError(loader.ErrNotELF))
			})

			It("should return error for a truncated header", func() {
				_, err := loader.Parse([]byte(elf.ELFMAG + "\x01"))
				Expect(err).To(MatchError(loader.ErrNotELF))
			})
		})
	})

	Describe("Parse", func() {
		It("should read big-endian 64-bit MIPS images", func() {
			img := elfImage{
				class:   elf.ELFCLASS64,
				order:   binary.BigEndian,
				machine: elf.EM_MIPS,
				entry:   0xFFFFFFFF80001000,
				segments: []segment{
					{vaddr: 0xFFFFFFFF80001000, data: []byte{0x24, 0x02, 0x00, 0x07}, flags: elf.PF_R | elf.PF_X},
				},
			}

			prog, err := loader.Parse(img.bytes(), elf.EM_MIPS)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.ByteOrder).To(Equal(binary.BigEndian))
			Expect(prog.EntryPoint).To(Equal(uint64(0xFFFFFFFF80001000)))
			Expect(prog.Segments[0].VirtAddr).To(Equal(uint64(0xFFFFFFFF80001000)))
		})

		It("should load multiple PT_LOAD segments", func() {
			img := armImage(0x8000,
				segment{vaddr: 0x8000, data: code, flags: elf.PF_R | elf.PF_X},
				segment{vaddr: 0x9000, paddr: 0x109000, data: []byte{1, 2, 3, 4}, flags: elf.PF_R | elf.PF_W},
			)

			prog, err := loader.Parse(img.bytes())
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(HaveLen(2))

			data := prog.Segments[1]
			Expect(data.PhysAddr).To(Equal(uint64(0x109000)))
			Expect(data.Data).To(Equal([]byte{1, 2, 3, 4}))
			Expect(data.Flags).To(Equal(loader.SegmentFlagRead | loader.SegmentFlagWrite))
		})

		It("should handle segments with zero file size", func() {
			img := armImage(0x8000, segment{vaddr: 0xA000, memSize: 0x100, flags: elf.PF_R | elf.PF_W})

			prog, err := loader.Parse(img.bytes())
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments[0].Data).To(BeEmpty())
			Expect(prog.Segments[0].MemSize).To(Equal(uint64(0x100)))
		})

		It("should return empty segments list for ELF with no PT_LOAD", func() {
			img := armImage(0x8000)
			img.noteOnly = true

			prog, err := loader.Parse(img.bytes())
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(BeEmpty())
		})
	})

	Describe("Place", func() {
		var ram *mem.RAM

		BeforeEach(func() {
			ram = mem.NewRAM(0, 0x10000)
		})

		identity := func(s loader.Segment) uint64 { return s.VirtAddr }

		It("should copy data and zero the BSS tail", func() {
			Expect(ram.WriteBytes(0x2004, []byte{0xff, 0xff, 0xff, 0xff})).To(Succeed())

			img := armImage(0x2000, segment{vaddr: 0x2000, data: []byte{1, 2, 3, 4}, memSize: 0x10})
			prog, err := loader.Parse(img.bytes())
			Expect(err).NotTo(HaveOccurred())

			Expect(prog.Place(ram, identity)).To(Succeed())

			got, err := ram.ReadBytes(0x2000, 8)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal([]byte{1, 2, 3, 4, 0, 0, 0, 0}))
		})

		It("should use the address chosen by the caller", func() {
			img := armImage(0x8000, segment{vaddr: 0xC0008000, paddr: 0x8000, data: code})
			prog, err := loader.Parse(img.bytes())
			Expect(err).NotTo(HaveOccurred())

			Expect(prog.Place(ram, func(s loader.Segment) uint64 { return s.PhysAddr })).To(Succeed())

			got, _ := ram.ReadBytes(0x8000, uint64(len(code)))
			Expect(got).To(Equal(code))
		})

		It("should reject segments outside RAM", func() {
			img := armImage(0xFFF0, segment{vaddr: 0xFFF0, data: code, memSize: 0x20})
			prog, err := loader.Parse(img.bytes())
			Expect(err).NotTo(HaveOccurred())

			Expect(prog.Place(ram, identity)).To(MatchError(loader.ErrImageTooLarge))
		})
	})
})
