// Package config describes an emulated machine: which core to build, how
// much memory it gets and how the translation cache and run loop behave.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"os"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/vcore/arm"
	"github.com/sarchlab/vcore/emu"
	"github.com/sarchlab/vcore/internal/translate"
	"github.com/sarchlab/vcore/mem"
	"github.com/sarchlab/vcore/mips"
	"github.com/sarchlab/vcore/trace"
)

// ErrBadConfig reports a configuration that fails validation.
var ErrBadConfig = errors.New(translate.From("invalid machine configuration"))

// Architectures.
const (
	ArchMIPS = "mips"
	ArchARM  = "arm"
)

// Config holds the machine parameters.
type Config struct {
	// Arch selects the core, "mips" or "arm".
	Arch string `json:"arch"`

	// Model names the CPU model within Arch.
	Model string `json:"model"`

	// RAMSize is the size of physical memory at address zero, in bytes.
	RAMSize uint64 `json:"ram_size"`

	// BigEndian stores multi-byte values most significant byte first.
	BigEndian bool `json:"big_endian"`

	// StrictSystemRegisters makes unmodelled CP0/CP15 accesses raise an
	// undefined instruction instead of being logged and ignored.
	StrictSystemRegisters bool `json:"strict_system_registers"`

	// BootQuirkLimit is the ARM address below which the page-table walk
	// grants full access. Zero disables the quirk.
	BootQuirkLimit uint32 `json:"boot_quirk_limit"`

	// TLBSets, TLBWays and PageBits give the translation cache geometry.
	TLBSets  int  `json:"tlb_sets"`
	TLBWays  int  `json:"tlb_ways"`
	PageBits uint `json:"page_bits"`

	// MaxBlockOps is the op buffer size of a translated MIPS block.
	MaxBlockOps int `json:"max_block_ops"`

	// MaxInstructions stops the run loop after this many guest
	// instructions. Zero means no limit.
	MaxInstructions uint64 `json:"max_instructions"`

	// SingleStep ends every translated block after one instruction.
	SingleStep bool `json:"single_step"`

	// HighVectors starts an ARM core with exception vectors at 0xffff0000.
	HighVectors bool `json:"high_vectors"`

	// DebugMonitor enables the ARM semihosting SWI intercept.
	DebugMonitor bool `json:"debug_monitor"`

	// Trace logs CPU events and executed blocks.
	Trace bool `json:"trace"`
}

// Default returns a Config for a big-endian 24Kf with 128MiB of RAM.
func Default() *Config {
	return &Config{
		Arch:           ArchMIPS,
		Model:          "24Kf",
		RAMSize:        128 << 20,
		BigEndian:      true,
		BootQuirkLimit: arm.DefaultBootQuirkLimit,
		TLBSets:        64,
		TLBWays:        4,
		PageBits:       12,
		MaxBlockOps:    mips.DefaultMaxBlockOps,
	}
}

// DefaultARM returns a Config for a little-endian arm926 with 128MiB of RAM.
func DefaultARM() *Config {
	c := Default()
	c.Arch = ArchARM
	c.Model = "arm926"
	c.BigEndian = false
	c.PageBits = arm.PageBits

	return c
}

// Load reads a Config from a JSON file. Fields missing from the file keep
// their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// Save writes the Config to a JSON file.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the Config describes a machine that can be built.
func (c *Config) Validate() error {
	var granule uint

	switch c.Arch {
	case ArchMIPS:
		if _, err := mips.LookupModel(c.Model); err != nil {
			return fmt.Errorf("%w: %w", ErrBadConfig, err)
		}

		granule = mips.PageBits
	case ArchARM:
		if _, err := arm.LookupModel(c.Model); err != nil {
			return fmt.Errorf("%w: %w", ErrBadConfig, err)
		}

		if c.RAMSize > 1<<32 {
			return fmt.Errorf("%w: ram_size exceeds the 32-bit address space", ErrBadConfig)
		}

		granule = arm.PageBits
	default:
		return fmt.Errorf("%w: unknown arch %q", ErrBadConfig, c.Arch)
	}

	if c.RAMSize == 0 {
		return fmt.Errorf("%w: ram_size must be > 0", ErrBadConfig)
	}

	if c.TLBSets <= 0 || bits.OnesCount(uint(c.TLBSets)) != 1 {
		return fmt.Errorf("%w: tlb_sets must be a power of two", ErrBadConfig)
	}

	if c.TLBWays <= 0 {
		return fmt.Errorf("%w: tlb_ways must be > 0", ErrBadConfig)
	}

	if c.PageBits == 0 || c.PageBits > granule {
		return fmt.Errorf("%w: page_bits must be between 1 and %d for %s", ErrBadConfig, granule, c.Arch)
	}

	if c.Arch == ArchMIPS && c.MaxBlockOps <= 0 {
		return fmt.Errorf("%w: max_block_ops must be > 0", ErrBadConfig)
	}

	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c

	return &clone
}

// TLBConfig returns the translation cache geometry.
func (c *Config) TLBConfig() mem.TLBConfig {
	return mem.TLBConfig{Sets: c.TLBSets, Ways: c.TLBWays, PageBits: c.PageBits}
}

// NewSystem builds the RAM and translation cache.
func (c *Config) NewSystem() (*mem.RAM, *mem.System) {
	var opts []mem.RAMOption
	if c.BigEndian {
		opts = append(opts, mem.WithBigEndian())
	}

	ram := mem.NewRAM(0, c.RAMSize, opts...)

	return ram, mem.NewSystem(ram, mem.NewSoftTLB(c.TLBConfig()))
}

// Hooks returns the event hooks the Config asks for, logging to w.
func (c *Config) Hooks(w io.Writer) []sim.Hook {
	if !c.Trace || w == nil {
		return nil
	}

	return []sim.Hook{trace.NewLogger(w)}
}

// MIPSOptions derives the MIPS constructor options.
func (c *Config) MIPSOptions(hooks ...sim.Hook) []mips.Option {
	opts := []mips.Option{
		mips.WithStrictCP0(c.StrictSystemRegisters),
		mips.WithMaxBlockOps(c.MaxBlockOps),
		mips.WithSingleStep(c.SingleStep),
	}

	for _, h := range hooks {
		opts = append(opts, mips.WithHook(h))
	}

	return opts
}

// ARMOptions derives the ARM constructor options. The monitor is used only
// when DebugMonitor is set.
func (c *Config) ARMOptions(monitor arm.Monitor, hooks ...sim.Hook) []arm.Option {
	opts := []arm.Option{
		arm.WithStrictSystemRegisters(c.StrictSystemRegisters),
		arm.WithBootQuirkLimit(c.BootQuirkLimit),
		arm.WithHighVectors(c.HighVectors),
	}

	if c.DebugMonitor && monitor != nil {
		opts = append(opts, arm.WithDebugMonitor(monitor))
	}

	for _, h := range hooks {
		opts = append(opts, arm.WithHook(h))
	}

	return opts
}

// MachineOptions derives the run loop options.
func (c *Config) MachineOptions(codeGen emu.CodeGenerations) []emu.MachineOption {
	opts := []emu.MachineOption{
		emu.WithMaxInstructions(c.MaxInstructions),
		emu.WithBlockTrace(c.Trace),
	}

	if codeGen != nil {
		opts = append(opts, emu.WithCodeGenerations(codeGen))
	}

	return opts
}
