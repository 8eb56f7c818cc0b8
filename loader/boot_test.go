package loader_test

import (
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vcore/arm"
	"github.com/sarchlab/vcore/loader"
	"github.com/sarchlab/vcore/mem"
	"github.com/sarchlab/vcore/mips"
)

func words(ram *mem.RAM, addr uint64, n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		v, err := ram.Load(addr+uint64(4*i), 4)
		Expect(err).NotTo(HaveOccurred())
		out[i] = uint32(v)
	}

	return out
}

var _ = Describe("Boot", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "boot-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	file := func(name string, data []byte) string {
		path := filepath.Join(tempDir, name)
		Expect(os.WriteFile(path, data, 0o644)).To(Succeed())

		return path
	}

	Describe("ARM", func() {
		var (
			ram *mem.RAM
			cpu *arm.CPU
		)

		BeforeEach(func() {
			ram = mem.NewRAM(0, 0x1000000)
			sys := mem.NewSystem(ram, mem.NewSoftTLB(mem.TLBConfig{Sets: 64, Ways: 4, PageBits: 10}))

			var err error
			cpu, err = arm.New("arm926", sys)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should boot a raw image through the stub", func() {
			kernel := file("zImage", []byte{0xde, 0xad, 0xbe, 0xef})
			initrd := file("initrd", make([]byte, 12))

			err := loader.BootARM(cpu, ram, loader.ARMBootInfo{
				KernelPath: kernel,
				InitrdPath: initrd,
				Cmdline:    "abcd",
				BoardID:    0x183,
				RAMSize:    0x1000000,
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(cpu.PC()).To(BeZero())
			Expect(cpu.Thumb).To(BeFalse())
			Expect(words(ram, 0, 7)).To(Equal([]uint32{
				0xe3a00000, 0xe3a01083, 0xe3811c01, 0xe59f2000, 0xe59ff000, 0x100, 0x10000,
			}))
			Expect(words(ram, 0x10000, 1)).To(Equal([]uint32{0xefbeadde}))
			Expect(words(ram, 0x100, 19)).To(Equal([]uint32{
				5, 0x54410001, 1, 0x1000, 0,
				4, 0x54410002, 0x1000000, 0,
				4, 0x54420005, 0x800000, 12,
				4, 0x54410009, 0x64636261, 0,
				0, 0,
			}))
		})

		It("should relocate everything to the loader start", func() {
			kernel := file("zImage", []byte{1, 2, 3, 4})

			err := loader.BootARM(cpu, ram, loader.ARMBootInfo{
				KernelPath:  kernel,
				LoaderStart: 0x200000,
				RAMSize:     0x800000,
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(cpu.PC()).To(Equal(uint32(0x200000)))
			Expect(words(ram, 0x200014, 2)).To(Equal([]uint32{0x200100, 0x210000}))
			Expect(words(ram, 0x200100+4*5, 6)).To(Equal([]uint32{4, 0x54410002, 0x800000, 0x200000, 0, 0}))
		})

		It("should reject a kernel that overlaps the initrd", func() {
			kernel := file("zImage", make([]byte, 0x800000))

			err := loader.BootARM(cpu, ram, loader.ARMBootInfo{KernelPath: kernel, RAMSize: 0x1000000})
			Expect(err).To(MatchError(loader.ErrImageTooLarge))
		})

		It("should report a missing kernel", func() {
			err := loader.BootARM(cpu, ram, loader.ARMBootInfo{KernelPath: filepath.Join(tempDir, "none")})
			Expect(err).To(MatchError(ContainSubstring("could not load kernel")))
		})

		It("should enter an ELF kernel in Thumb state when the entry is odd", func() {
			img := elfImage{
				class:   elf.ELFCLASS32,
				machine: elf.EM_ARM,
				entry:   0x8001,
				segments: []segment{
					{vaddr: 0xC0008000, paddr: 0x8000, data: []byte{0x2a, 0x20, 0x70, 0x47}},
				},
			}
			kernel := file("vmlinux", img.bytes())

			Expect(loader.BootARM(cpu, ram, loader.ARMBootInfo{KernelPath: kernel})).To(Succeed())

			Expect(cpu.PC()).To(Equal(uint32(0x8000)))
			Expect(cpu.Thumb).To(BeTrue())
			Expect(words(ram, 0x8000, 1)).To(Equal([]uint32{0x4770202a}))
		})

		It("should refuse an ELF built for another machine", func() {
			img := elfImage{class: elf.ELFCLASS32, machine: elf.EM_MIPS, entry: 0x8000}
			kernel := file("vmlinux", img.bytes())

			err := loader.BootARM(cpu, ram, loader.ARMBootInfo{KernelPath: kernel})
			Expect(err).To(MatchError(loader.ErrUnsupportedMachine))
		})

		It("should pad the command line to whole words", func() {
			tags := loader.ATAGs(loader.ARMBootInfo{Cmdline: "console=ttyAMA0"}, 0)

			// 15 characters plus the terminator fill four words.
			Expect(tags[9:11]).To(Equal([]uint32{6, 0x54410009}))
			Expect(tags).To(HaveLen(9 + 6 + 2))
		})
	})

	Describe("MIPS", func() {
		var (
			ram *mem.RAM
			cpu *mips.CPU
		)

		BeforeEach(func() {
			ram = mem.NewRAM(0, 0x20000000, mem.WithBigEndian())
			sys := mem.NewSystem(ram, mem.NewSoftTLB(mem.DefaultTLBConfig()))

			var err error
			cpu, err = mips.New("24Kf", sys)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should run a raw image from the reset vector", func() {
			rom := file("bios.bin", []byte{0x24, 0x02, 0x00, 0x07})

			Expect(loader.BootMIPS(cpu, ram, rom)).To(Succeed())

			Expect(cpu.PC).To(Equal(mips.ResetVector))
			Expect(words(ram, loader.MIPSBootROM, 1)).To(Equal([]uint32{0x24020007}))
		})

		It("should place ELF segments at their kseg0 physical address", func() {
			img := elfImage{
				class:   elf.ELFCLASS32,
				order:   binary.BigEndian,
				machine: elf.EM_MIPS,
				entry:   0x80001000,
				segments: []segment{
					{vaddr: 0x80001000, data: []byte{0x24, 0x02, 0x00, 0x07}, memSize: 8},
				},
			}
			path := file("prog.elf", img.bytes())

			Expect(loader.BootMIPS(cpu, ram, path)).To(Succeed())

			Expect(cpu.PC).To(Equal(uint64(0xFFFFFFFF80001000)))
			Expect(words(ram, 0x1000, 2)).To(Equal([]uint32{0x24020007, 0}))
		})

		It("should keep a 64-bit entry as is", func() {
			img := elfImage{
				class:   elf.ELFCLASS64,
				order:   binary.BigEndian,
				machine: elf.EM_MIPS,
				entry:   0xFFFFFFFF80002000,
				segments: []segment{
					{vaddr: 0xFFFFFFFF80002000, data: []byte{0, 0, 0, 0}},
				},
			}
			path := file("prog64.elf", img.bytes())

			Expect(loader.BootMIPS(cpu, ram, path)).To(Succeed())
			Expect(cpu.PC).To(Equal(uint64(0xFFFFFFFF80002000)))
		})

		It("should reject a ROM that runs past the end of RAM", func() {
			small := mem.NewRAM(0, 0x1FC00002)
			rom := file("bios.bin", []byte{1, 2, 3, 4})

			Expect(loader.BootMIPS(cpu, small, rom)).To(MatchError(loader.ErrImageTooLarge))
		})
	})
})
