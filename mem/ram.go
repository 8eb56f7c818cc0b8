package mem

import (
	"encoding/binary"
	"fmt"

	akitamem "github.com/sarchlab/akita/v4/mem/mem"
)

// RAM is a contiguous block of physical memory starting at Base.
type RAM struct {
	base    uint64
	size    uint64
	order   binary.ByteOrder
	storage *akitamem.Storage
}

// RAMOption configures a RAM.
type RAMOption func(*RAM)

// WithBigEndian stores multi-byte values most significant byte first.
func WithBigEndian() RAMOption {
	return func(r *RAM) {
		r.order = binary.BigEndian
	}
}

// NewRAM creates size bytes of zeroed memory mapped at base.
func NewRAM(base, size uint64, opts ...RAMOption) *RAM {
	r := &RAM{
		base:    base,
		size:    size,
		order:   binary.LittleEndian,
		storage: akitamem.NewStorage(size),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Base returns the first physical address of the RAM.
func (r *RAM) Base() uint64 { return r.base }

// Size returns the RAM size in bytes.
func (r *RAM) Size() uint64 { return r.size }

// ByteOrder returns the byte order used for multi-byte accesses.
func (r *RAM) ByteOrder() binary.ByteOrder { return r.order }

// Contains reports whether [paddr, paddr+n) lies inside the RAM.
func (r *RAM) Contains(paddr, n uint64) bool {
	if paddr < r.base {
		return false
	}

	off := paddr - r.base

	return off <= r.size && n <= r.size-off
}

// ReadBytes copies n bytes starting at paddr.
func (r *RAM) ReadBytes(paddr, n uint64) ([]byte, error) {
	if !r.Contains(paddr, n) {
		return nil, fmt.Errorf("%w: 0x%x+%d", ErrBusError, paddr, n)
	}

	return r.storage.Read(paddr-r.base, n)
}

// WriteBytes copies data to paddr.
func (r *RAM) WriteBytes(paddr uint64, data []byte) error {
	if !r.Contains(paddr, uint64(len(data))) {
		return fmt.Errorf("%w: 0x%x+%d", ErrBusError, paddr, len(data))
	}

	return r.storage.Write(paddr-r.base, data)
}

// Load reads a width-byte value.
func (r *RAM) Load(paddr uint64, width int) (uint64, error) {
	data, err := r.ReadBytes(paddr, uint64(width))
	if err != nil {
		return 0, err
	}

	switch width {
	case 1:
		return uint64(data[0]), nil
	case 2:
		return uint64(r.order.Uint16(data)), nil
	case 4:
		return uint64(r.order.Uint32(data)), nil
	case 8:
		return r.order.Uint64(data), nil
	}

	return 0, fmt.Errorf("%w: %d", ErrBadWidth, width)
}

// Store writes the low width bytes of value.
func (r *RAM) Store(paddr uint64, width int, value uint64) error {
	data := make([]byte, width)

	switch width {
	case 1:
		data[0] = byte(value)
	case 2:
		r.order.PutUint16(data, uint16(value))
	case 4:
		r.order.PutUint32(data, uint32(value))
	case 8:
		r.order.PutUint64(data, value)
	default:
		return fmt.Errorf("%w: %d", ErrBadWidth, width)
	}

	return r.WriteBytes(paddr, data)
}

// FetchCode reads a 32-bit instruction word.
func (r *RAM) FetchCode(paddr uint64) (uint32, error) {
	v, err := r.Load(paddr, 4)
	return uint32(v), err
}
