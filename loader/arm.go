package loader

import (
	"debug/elf"
	"fmt"
	"os"

	"github.com/sarchlab/vcore/arm"
	"github.com/sarchlab/vcore/mem"
)

// Offsets from the start of the loader region.
const (
	ARMArgsOffset   = 0x100
	ARMKernelOffset = 0x10000
	ARMInitrdOffset = 0x800000
)

// ATAG tags.
const (
	atagCore    = 0x54410001
	atagMem     = 0x54410002
	atagInitrd2 = 0x54420005
	atagCmdline = 0x54410009
)

// ARMBootInfo describes a kernel and the board it boots on.
type ARMBootInfo struct {
	KernelPath  string
	InitrdPath  string
	Cmdline     string
	BoardID     uint32
	LoaderStart uint32
	RAMSize     uint32
}

// BootARM loads the kernel named by info into ram and points cpu at it.
//
// An ELF kernel starts at its entry point, with bit 0 of the entry
// selecting Thumb state. Any other image is booted as Linux: the image goes
// at LoaderStart+ARMKernelOffset, the optional initrd at
// LoaderStart+ARMInitrdOffset, the ATAG list at LoaderStart+ARMArgsOffset,
// and a stub at LoaderStart passes the board id and tag list in r1 and r2.
func BootARM(cpu *arm.CPU, ram *mem.RAM, info ARMBootInfo) error {
	data, err := os.ReadFile(info.KernelPath)
	if err != nil {
		return fmt.Errorf("could not load kernel '%s': %w", info.KernelPath, err)
	}

	if IsELF(data) {
		prog, err := Parse(data, elf.EM_ARM)
		if err != nil {
			return err
		}

		err = prog.Place(ram, func(s Segment) uint64 { return s.PhysAddr })
		if err != nil {
			return err
		}

		cpu.SetPC(uint32(prog.EntryPoint) &^ 1)
		cpu.Thumb = prog.EntryPoint&1 != 0

		return nil
	}

	base := uint64(info.LoaderStart)

	err = placeRaw(ram, data, base+ARMKernelOffset, base+ARMInitrdOffset)
	if err != nil {
		return fmt.Errorf("could not load kernel '%s': %w", info.KernelPath, err)
	}

	var initrdSize uint32
	if info.InitrdPath != "" {
		initrd, err := os.ReadFile(info.InitrdPath)
		if err != nil {
			return fmt.Errorf("could not load initrd '%s': %w", info.InitrdPath, err)
		}

		limit := base + uint64(info.RAMSize)
		if err := placeRaw(ram, initrd, base+ARMInitrdOffset, limit); err != nil {
			return fmt.Errorf("could not load initrd '%s': %w", info.InitrdPath, err)
		}

		initrdSize = uint32(len(initrd))
	}

	if err := writeWords(ram, base, BootStub(info)); err != nil {
		return err
	}

	if err := writeWords(ram, base+ARMArgsOffset, ATAGs(info, initrdSize)); err != nil {
		return err
	}

	cpu.SetPC(info.LoaderStart)
	cpu.Thumb = false

	return nil
}

// BootStub returns the instructions that enter a Linux kernel with r0 = 0,
// r1 = board id and r2 = the ATAG list.
func BootStub(info ARMBootInfo) []uint32 {
	return []uint32{
		0xe3a00000,                          // mov r0, #0
		0xe3a01000 | info.BoardID&0xff,      // mov r1, #0x..
		0xe3811c00 | (info.BoardID>>8)&0xff, // orr r1, r1, #0x..00
		0xe59f2000,                          // ldr r2, [pc, #0]
		0xe59ff000,                          // ldr pc, [pc, #0]
		info.LoaderStart + ARMArgsOffset,    // tag list
		info.LoaderStart + ARMKernelOffset,  // kernel entry
	}
}

// ATAGs returns the tag list describing memory, the initrd and the
// command line.
func ATAGs(info ARMBootInfo, initrdSize uint32) []uint32 {
	tags := []uint32{
		5, atagCore, 1, 0x1000, 0,
		4, atagMem, info.RAMSize, info.LoaderStart,
	}

	if initrdSize > 0 {
		tags = append(tags, 4, atagInitrd2, info.LoaderStart+ARMInitrdOffset, initrdSize)
	}

	if info.Cmdline != "" {
		// The string keeps its terminator and is padded to a word.
		n := len(info.Cmdline)
		words := make([]uint32, n>>2+1)

		for i := 0; i < n; i++ {
			words[i>>2] |= uint32(info.Cmdline[i]) << (8 * (i & 3))
		}

		tags = append(tags, uint32(len(words)+2), atagCmdline)
		tags = append(tags, words...)
	}

	return append(tags, 0, 0)
}

func writeWords(ram *mem.RAM, addr uint64, words []uint32) error {
	for i, w := range words {
		if err := ram.Store(addr+uint64(4*i), 4, uint64(w)); err != nil {
			return err
		}
	}

	return nil
}
