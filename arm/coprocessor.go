package arm

import "fmt"

const numCoprocessors = 15

// Coprocessor is a board supplied handler for one of coprocessors 0-14.
// info is the opcode_2 field, reg the CRn field and operand the CRm field
// of the transfer instruction.
type Coprocessor interface {
	ReadCP(info, reg, operand int) uint32
	WriteCP(info, reg, operand int, v uint32)
}

// CoprocessorFuncs adapts a pair of functions to Coprocessor. A nil
// function reads zero or drops the write.
type CoprocessorFuncs struct {
	Read  func(info, reg, operand int) uint32
	Write func(info, reg, operand int, v uint32)
}

// ReadCP implements Coprocessor.
func (p CoprocessorFuncs) ReadCP(info, reg, operand int) uint32 {
	if p.Read == nil {
		return 0
	}

	return p.Read(info, reg, operand)
}

// WriteCP implements Coprocessor.
func (p CoprocessorFuncs) WriteCP(info, reg, operand int, v uint32) {
	if p.Write != nil {
		p.Write(info, reg, operand, v)
	}
}

func checkCoprocessor(cp int) {
	if cp < 0 || cp >= numCoprocessors {
		panic(fmt.Sprintf("arm: bad coprocessor number %d", cp))
	}
}

// SetCoprocessor registers the handler of coprocessor cp. A nil handler
// removes it.
func (c *CPU) SetCoprocessor(cp int, h Coprocessor) {
	checkCoprocessor(cp)
	c.coprocessors[cp] = h
}

func cpFields(insn uint32) (cp, info, reg, operand int) {
	return int(insn>>8) & 0xf, int(insn>>5) & 7, int(insn>>16) & 0xf, int(insn) & 0xf
}

// GetCP performs a coprocessor to ARM register transfer. Unregistered
// coprocessors read as zero.
func (c *CPU) GetCP(insn uint32) uint32 {
	cp, info, reg, operand := cpFields(insn)
	checkCoprocessor(cp)

	h := c.coprocessors[cp]
	if h == nil {
		return 0
	}

	return h.ReadCP(info, reg, operand)
}

// SetCP performs an ARM register to coprocessor transfer. Writes to
// unregistered coprocessors are dropped.
func (c *CPU) SetCP(insn, v uint32) {
	cp, info, reg, operand := cpFields(insn)
	checkCoprocessor(cp)

	if h := c.coprocessors[cp]; h != nil {
		h.WriteCP(info, reg, operand, v)
	}
}
