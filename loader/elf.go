// Package loader places guest images in physical memory and prepares a CPU
// to run them: ELF executables for either core, and the Linux boot
// protocol (boot stub plus ATAG list) for ARM kernels.
package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/vcore/internal/translate"
	"github.com/sarchlab/vcore/mem"
)

var f = translate.From

var (
	// ErrNotELF reports an image without the ELF magic.
	ErrNotELF = errors.New(f("not an ELF file"))
	// ErrUnsupportedMachine reports an ELF built for another architecture.
	ErrUnsupportedMachine = errors.New(f("unsupported ELF machine"))
	// ErrImageTooLarge reports an image that does not fit its region.
	ErrImageTooLarge = errors.New(f("image too large"))
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// VirtAddr is the virtual address where this segment should be loaded.
	VirtAddr uint64
	// PhysAddr is the load address recorded in the program header.
	PhysAddr uint64
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint64
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program represents a parsed ELF image.
type Program struct {
	Machine   elf.Machine
	Class     elf.Class
	ByteOrder binary.ByteOrder
	// EntryPoint is the virtual address where execution should begin.
	EntryPoint uint64
	// Segments contains all loadable segments from the ELF file.
	Segments []Segment
}

// IsELF reports whether data starts with the ELF magic.
func IsELF(data []byte) bool {
	return bytes.HasPrefix(data, []byte(elf.ELFMAG))
}

// Load parses the ELF file at path.
func Load(path string, machines ...elf.Machine) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}

	return Parse(data, machines...)
}

// Parse decodes an ELF image. When machines is not empty the image must
// target one of them.
func Parse(data []byte, machines ...elf.Machine) (*Program, error) {
	if !IsELF(data) {
		return nil, ErrNotELF
	}

	ef, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotELF, err)
	}
	defer func() { _ = ef.Close() }()

	if len(machines) > 0 && !machineIn(ef.Machine, machines) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedMachine, ef.Machine)
	}

	prog := &Program{
		Machine:    ef.Machine,
		Class:      ef.Class,
		ByteOrder:  ef.ByteOrder,
		EntryPoint: ef.Entry,
	}

	for _, phdr := range ef.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		seg, err := readSegment(phdr)
		if err != nil {
			return nil, err
		}

		prog.Segments = append(prog.Segments, seg)
	}

	return prog, nil
}

func machineIn(m elf.Machine, list []elf.Machine) bool {
	for _, x := range list {
		if m == x {
			return true
		}
	}

	return false
}

func readSegment(phdr *elf.Prog) (Segment, error) {
	data := make([]byte, phdr.Filesz)
	if phdr.Filesz > 0 {
		n, err := phdr.ReadAt(data, 0)
		if err != nil && err != io.EOF {
			return Segment{}, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
		}

		if uint64(n) != phdr.Filesz {
			return Segment{}, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
				phdr.Vaddr, n, phdr.Filesz)
		}
	}

	var flags SegmentFlags
	if phdr.Flags&elf.PF_X != 0 {
		flags |= SegmentFlagExecute
	}

	if phdr.Flags&elf.PF_W != 0 {
		flags |= SegmentFlagWrite
	}

	if phdr.Flags&elf.PF_R != 0 {
		flags |= SegmentFlagRead
	}

	return Segment{
		VirtAddr: phdr.Vaddr,
		PhysAddr: phdr.Paddr,
		Data:     data,
		MemSize:  phdr.Memsz,
		Flags:    flags,
	}, nil
}

// Place copies every segment into ram at the address chosen by addr,
// zero filling the BSS tail.
func (p *Program) Place(ram *mem.RAM, addr func(Segment) uint64) error {
	for _, seg := range p.Segments {
		dst := addr(seg)

		size := seg.MemSize
		if uint64(len(seg.Data)) > size {
			size = uint64(len(seg.Data))
		}

		if !ram.Contains(dst, size) {
			return fmt.Errorf("%w: segment 0x%x+0x%x at 0x%x", ErrImageTooLarge, seg.VirtAddr, size, dst)
		}

		if err := ram.WriteBytes(dst, seg.Data); err != nil {
			return err
		}

		if bss := size - uint64(len(seg.Data)); bss > 0 {
			if err := ram.WriteBytes(dst+uint64(len(seg.Data)), make([]byte, bss)); err != nil {
				return err
			}
		}
	}

	return nil
}

// placeRaw copies a raw image to [base, limit).
func placeRaw(ram *mem.RAM, data []byte, base, limit uint64) error {
	if base+uint64(len(data)) > limit || !ram.Contains(base, uint64(len(data))) {
		return fmt.Errorf("%w: %d bytes at 0x%x", ErrImageTooLarge, len(data), base)
	}

	return ram.WriteBytes(base, data)
}
