package loader

import (
	"debug/elf"
	"fmt"
	"os"

	"github.com/sarchlab/vcore/mem"
	"github.com/sarchlab/vcore/mips"
)

// MIPSBootROM is the physical address the reset vector maps to.
const MIPSBootROM = 0x1FC00000

// kseg0/kseg1 addresses map to physical memory by dropping the top bits.
const mipsPhysMask = 0x1FFFFFFF

// BootMIPS loads the image at path into ram and points cpu at it.
//
// ELF segments are placed at their unmapped physical address and execution
// begins at the entry point. Any other image is treated as a boot ROM and
// runs from the reset vector.
func BootMIPS(cpu *mips.CPU, ram *mem.RAM, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not load image '%s': %w", path, err)
	}

	if !IsELF(data) {
		err := placeRaw(ram, data, MIPSBootROM, ram.Base()+ram.Size())
		if err != nil {
			return fmt.Errorf("could not load image '%s': %w", path, err)
		}

		cpu.PC = mips.ResetVector

		return nil
	}

	prog, err := Parse(data, elf.EM_MIPS)
	if err != nil {
		return err
	}

	err = prog.Place(ram, func(s Segment) uint64 { return s.VirtAddr & mipsPhysMask })
	if err != nil {
		return err
	}

	cpu.PC = prog.EntryPoint
	if prog.Class == elf.ELFCLASS32 {
		cpu.PC = uint64(int64(int32(uint32(prog.EntryPoint))))
	}

	return nil
}
