package mips

import (
	"fmt"
	"sort"
)

// Model describes one MIPS implementation: its identity registers and the
// features the translator decodes against.
type Model struct {
	Name string

	PRid    uint32
	Config0 uint32
	Config1 uint32
	Config2 uint32
	Config3 uint32
	Config6 uint32
	Config7 uint32

	// StatusMask is the set of Status bits software may write.
	StatusMask uint32

	FCR0 uint32
	// NumTLB is the number of joint TLB entries.
	NumTLB int
	// Is64 enables the MIPS64 instructions and 64-bit addressing.
	Is64 bool
	// SEGBITS is the implemented virtual address width for 64-bit models.
	SEGBITS uint
	// PABITS is the implemented physical address width.
	PABITS uint
}

// Config0 fields.
const (
	config0M    = 1 << 31
	config0BE   = 1 << 15
	config0AR   = 10 // 3 bits
	config0MT   = 7  // 3 bits
	config0MTLB = 1 << config0MT
	config0AT64 = 2 << 13
)

// Config1 fields.
const (
	config1M       = 1 << 31
	config1MMUSize = 25
	config1FP      = 1 << 0
	config1CA      = 1 << 2
	config1WR      = 1 << 3
	config1PC      = 1 << 4
)

// Config3 fields.
const (
	config3VInt = 1 << 5
)

// FIR fields.
const (
	fcr0F64  = 1 << 22
	fcr0L    = 1 << 21
	fcr0W    = 1 << 20
	fcr0D    = 1 << 17
	fcr0S    = 1 << 16
	fcr0Prid = 0x00000100
)

func config1For(ntlb int, fp bool) uint32 {
	v := uint32(config1M) | uint32(ntlb-1)<<config1MMUSize |
		3<<22 | 4<<19 | 3<<16 | 3<<13 | 4<<10 | 3<<7 | config1WR | config1CA
	if fp {
		v |= config1FP
	}

	return v
}

var models = map[string]*Model{
	"4Kc": {
		Name:       "4Kc",
		PRid:       0x00018000,
		Config0:    config0M | config0MTLB,
		Config1:    config1For(16, false),
		Config2:    0x80000000,
		Config3:    0,
		StatusMask: 0x1278FF17,
		NumTLB:     16,
		PABITS:     32,
	},
	"4KEc": {
		Name:       "4KEc",
		PRid:       0x00019000,
		Config0:    config0M | config0MTLB | 1<<config0AR,
		Config1:    config1For(16, false),
		Config2:    0x80000000,
		Config3:    0,
		StatusMask: 0x1278FF17,
		NumTLB:     16,
		PABITS:     32,
	},
	"24Kc": {
		Name:       "24Kc",
		PRid:       0x00019300,
		Config0:    config0M | config0MTLB | 1<<config0AR,
		Config1:    config1For(16, false),
		Config2:    0x80000000,
		Config3:    config3VInt,
		Config7:    0x00010000,
		StatusMask: 0x1278FF17,
		NumTLB:     16,
		PABITS:     32,
	},
	"24Kf": {
		Name:       "24Kf",
		PRid:       0x00019300,
		Config0:    config0M | config0MTLB | 1<<config0AR,
		Config1:    config1For(16, true),
		Config2:    0x80000000,
		Config3:    config3VInt,
		Config7:    0x00010000,
		StatusMask: 0x3678FF17,
		FCR0:       fcr0L | fcr0W | fcr0D | fcr0S | 0x00009300,
		NumTLB:     16,
		PABITS:     32,
	},
	"34Kf": {
		Name:       "34Kf",
		PRid:       0x00019500,
		Config0:    config0M | config0MTLB | 1<<config0AR,
		Config1:    config1For(16, true),
		Config2:    0x80000000,
		Config3:    config3VInt,
		StatusMask: 0x3678FF17,
		FCR0:       fcr0L | fcr0W | fcr0D | fcr0S | 0x00009500,
		NumTLB:     16,
		PABITS:     32,
	},
	"R4000": {
		Name:       "R4000",
		PRid:       0x00000400,
		Config0:    config0MTLB | config0AT64,
		Config1:    config1For(48, true),
		StatusMask: 0x3678FFFF,
		FCR0:       fcr0F64 | fcr0D | fcr0S | 0x00000500,
		NumTLB:     48,
		Is64:       true,
		SEGBITS:    40,
		PABITS:     36,
	},
	"5Kc": {
		Name:       "5Kc",
		PRid:       0x00018100,
		Config0:    config0M | config0MTLB | config0AT64,
		Config1:    config1For(32, false),
		Config2:    0x80000000,
		StatusMask: 0x32F8FFFF,
		NumTLB:     32,
		Is64:       true,
		SEGBITS:    42,
		PABITS:     36,
	},
	"5KEf": {
		Name:       "5KEf",
		PRid:       0x00018900,
		Config0:    config0M | config0MTLB | config0AT64 | 1<<config0AR,
		Config1:    config1For(32, true),
		Config2:    0x80000000,
		StatusMask: 0x36F8FFFF,
		FCR0:       fcr0F64 | fcr0L | fcr0W | fcr0D | fcr0S | 0x00008900,
		NumTLB:     32,
		Is64:       true,
		SEGBITS:    42,
		PABITS:     36,
	},
	"20Kc": {
		Name:       "20Kc",
		PRid:       0x00018200,
		Config0:    config0M | config0MTLB | config0AT64,
		Config1:    config1For(48, true),
		Config2:    0x80000000,
		StatusMask: 0x36FBFFFF,
		FCR0:       fcr0F64 | fcr0L | fcr0W | fcr0D | fcr0S | 0x00008200,
		NumTLB:     48,
		Is64:       true,
		SEGBITS:    40,
		PABITS:     36,
	},
}

// LookupModel returns the model registered under name.
func LookupModel(name string) (*Model, error) {
	m, ok := models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}

	return m, nil
}

// ModelNames lists the registered models in sorted order.
func ModelNames() []string {
	names := make([]string, 0, len(models))
	for n := range models {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

// HasFPU reports whether the model implements coprocessor 1.
func (m *Model) HasFPU() bool {
	return m.Config1&config1FP != 0
}

// IsRelease2 reports whether Config0.AR announces Release 2.
func (m *Model) IsRelease2() bool {
	return (m.Config0>>config0AR)&7 >= 1
}
