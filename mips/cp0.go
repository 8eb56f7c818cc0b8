package mips

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/vcore/mem"
	"github.com/sarchlab/vcore/trace"
)

// Status register bits.
const (
	StatusIE       uint32 = 1 << 0
	StatusEXL      uint32 = 1 << 1
	StatusERL      uint32 = 1 << 2
	StatusKSUShift        = 3 // 2 bits, 2 = user
	StatusUX       uint32 = 1 << 5
	StatusSX       uint32 = 1 << 6
	StatusKX       uint32 = 1 << 7
	StatusIMShift         = 8
	StatusNMI      uint32 = 1 << 19
	StatusSR       uint32 = 1 << 20
	StatusBEV      uint32 = 1 << 22
	StatusFR       uint32 = 1 << 26
	StatusCU0      uint32 = 1 << 28
	StatusCU1      uint32 = 1 << 29
)

// Cause register bits.
const (
	CauseExcCodeShift        = 2
	CauseExcCodeMask  uint32 = 0x1F << CauseExcCodeShift
	CauseIPShift             = 8
	CauseIV           uint32 = 1 << 23
	CauseCEShift             = 28
	CauseTI           uint32 = 1 << 30
	CauseBD           uint32 = 1 << 31
)

// Debug register bits.
const (
	DebugDSS  uint32 = 1 << 0
	DebugDBp  uint32 = 1 << 1
	DebugDDBL uint32 = 1 << 2
	DebugDDBS uint32 = 1 << 3
	DebugDIB  uint32 = 1 << 4
	DebugDINT uint32 = 1 << 5
	DebugDM   uint32 = 1 << 30
	DebugDBD  uint32 = 1 << 31
)

// CP0 is the system control coprocessor state.
type CP0 struct {
	Index     uint32
	Random    uint32
	EntryLo0  uint64
	EntryLo1  uint64
	Context   uint64
	PageMask  uint32
	PageGrain uint32
	Wired     uint32
	HWREna    uint32
	BadVAddr  uint64
	Count     uint32
	EntryHi   uint64
	Compare   uint32
	Status    uint32
	IntCtl    uint32
	SRSCtl    uint32
	SRSMap    uint32
	Cause     uint32
	EPC       uint64
	PRid      uint32
	EBase     uint32
	Config0   uint32
	Config1   uint32
	Config2   uint32
	Config3   uint32
	Config6   uint32
	Config7   uint32
	WatchLo   [8]uint64
	WatchHi   [8]uint32
	XContext  uint64
	Framemask uint32
	Debug     uint32
	DEPC      uint64
	Perf0     uint32
	ErrCtl    uint32
	TagLo     uint32
	DataLo    uint32
	TagHi     uint32
	DataHi    uint32
	ErrorEPC  uint64
	DESAVE    uint64

	statusMask uint32
}

func (p *CP0) reset(m *Model) {
	*p = CP0{
		Random:     uint32(m.NumTLB - 1),
		Status:     StatusBEV | StatusERL,
		IntCtl:     0xe0000000,
		PRid:       m.PRid,
		EBase:      0x80000000,
		Config0:    m.Config0,
		Config1:    m.Config1,
		Config2:    m.Config2,
		Config3:    m.Config3,
		Config6:    m.Config6,
		Config7:    m.Config7,
		statusMask: m.StatusMask,
	}
}

// cp0Effect is what a register write means to the block translator.
type cp0Effect uint8

const (
	// cp0None lets translation continue after the write.
	cp0None cp0Effect = iota
	// cp0Stop ends the block after the write.
	cp0Stop
	// cp0Exit commits the PC past the instruction before the write and
	// leaves the block, for writes that change the execution mode.
	cp0Exit
)

type cp0Key struct {
	reg, sel uint8
}

type cp0Reg struct {
	name   string
	only64 bool
	effect cp0Effect
	read   func(c *CPU) uint64
	// write is nil for read-only registers; writes are then dropped.
	write func(c *CPU, v uint64)
}

func rd32(get func(p *CP0) uint32) func(c *CPU) uint64 {
	return func(c *CPU) uint64 { return sext32(uint64(get(&c.CP0))) }
}

func rd64(get func(p *CP0) uint64) func(c *CPU) uint64 {
	return func(c *CPU) uint64 { return get(&c.CP0) }
}

var cp0Regs map[cp0Key]*cp0Reg

func init() {
	cp0Regs = map[cp0Key]*cp0Reg{
		{0, 0}: {name: "Index",
			read: rd32(func(p *CP0) uint32 { return p.Index }),
			write: func(c *CPU, v uint64) {
				c.CP0.Index = c.CP0.Index&0x80000000 | uint32(v)%uint32(len(c.TLB.Entries))
			}},
		{1, 0}: {name: "Random",
			read: rd32(func(p *CP0) uint32 { return p.Random })},
		{2, 0}: {name: "EntryLo0",
			read:  rd64(func(p *CP0) uint64 { return p.EntryLo0 }),
			write: func(c *CPU, v uint64) { c.CP0.EntryLo0 = v & 0x3FFFFFFF }},
		{3, 0}: {name: "EntryLo1",
			read:  rd64(func(p *CP0) uint64 { return p.EntryLo1 }),
			write: func(c *CPU, v uint64) { c.CP0.EntryLo1 = v & 0x3FFFFFFF }},
		{4, 0}: {name: "Context",
			read: rd64(func(p *CP0) uint64 { return p.Context }),
			write: func(c *CPU, v uint64) {
				c.CP0.Context = c.CP0.Context&0x007FFFFF | v&^0x007FFFFF
			}},
		{5, 0}: {name: "PageMask",
			read:  rd32(func(p *CP0) uint32 { return p.PageMask }),
			write: func(c *CPU, v uint64) { c.CP0.PageMask = uint32(v) & 0x01FFE000 }},
		{5, 1}: {name: "PageGrain",
			read: rd32(func(p *CP0) uint32 { return p.PageGrain })},
		{6, 0}: {name: "Wired",
			read: rd32(func(p *CP0) uint32 { return p.Wired }),
			write: func(c *CPU, v uint64) {
				n := uint32(len(c.TLB.Entries))
				c.CP0.Wired = uint32(v) % n
				c.CP0.Random = n - 1
			}},
		{7, 0}: {name: "HWREna",
			read:  rd32(func(p *CP0) uint32 { return p.HWREna }),
			write: func(c *CPU, v uint64) { c.CP0.HWREna = uint32(v) & 0xF }},
		{8, 0}: {name: "BadVAddr",
			read: rd64(func(p *CP0) uint64 { return p.BadVAddr })},
		{9, 0}: {name: "Count", effect: cp0Stop,
			read:  rd32(func(p *CP0) uint32 { return p.Count }),
			write: func(c *CPU, v uint64) { c.CP0.Count = uint32(v) }},
		{10, 0}: {name: "EntryHi",
			read:  rd64(func(p *CP0) uint64 { return p.EntryHi }),
			write: (*CPU).writeEntryHi},
		{11, 0}: {name: "Compare", effect: cp0Stop,
			read: rd32(func(p *CP0) uint32 { return p.Compare }),
			write: func(c *CPU, v uint64) {
				c.CP0.Compare = uint32(v)
				c.CP0.Cause &^= CauseTI | 1<<(CauseIPShift+7)
			}},
		{12, 0}: {name: "Status", effect: cp0Exit,
			read:  rd32(func(p *CP0) uint32 { return p.Status }),
			write: (*CPU).writeStatus},
		{12, 1}: {name: "IntCtl", effect: cp0Stop,
			read: rd32(func(p *CP0) uint32 { return p.IntCtl }),
			write: func(c *CPU, v uint64) {
				c.CP0.IntCtl = c.CP0.IntCtl&^0x3e0 | uint32(v)&0x3e0
			}},
		{12, 2}: {name: "SRSCtl", effect: cp0Stop,
			read: rd32(func(p *CP0) uint32 { return p.SRSCtl }),
			write: func(c *CPU, v uint64) {
				c.CP0.SRSCtl = c.CP0.SRSCtl&^0xf3c0 | uint32(v)&0xf3c0
			}},
		{12, 3}: {name: "SRSMap", effect: cp0Stop,
			read:  rd32(func(p *CP0) uint32 { return p.SRSMap }),
			write: func(c *CPU, v uint64) { c.CP0.SRSMap = uint32(v) }},
		{13, 0}: {name: "Cause", effect: cp0Stop,
			read:  rd32(func(p *CP0) uint32 { return p.Cause }),
			write: (*CPU).writeCause},
		{14, 0}: {name: "EPC",
			read:  rd64(func(p *CP0) uint64 { return p.EPC }),
			write: func(c *CPU, v uint64) { c.CP0.EPC = v }},
		{15, 0}: {name: "PRid",
			read: rd32(func(p *CP0) uint32 { return p.PRid })},
		{15, 1}: {name: "EBase",
			read: rd32(func(p *CP0) uint32 { return p.EBase }),
			write: func(c *CPU, v uint64) {
				c.CP0.EBase = c.CP0.EBase&^0x3FFFF000 | uint32(v)&0x3FFFF000
			}},
		{16, 0}: {name: "Config0", effect: cp0Stop,
			read: rd32(func(p *CP0) uint32 { return p.Config0 }),
			write: func(c *CPU, v uint64) {
				c.CP0.Config0 = c.CP0.Config0&^7 | uint32(v)&7
			}},
		{16, 1}: {name: "Config1",
			read: rd32(func(p *CP0) uint32 { return p.Config1 })},
		{16, 2}: {name: "Config2", effect: cp0Stop,
			read:  rd32(func(p *CP0) uint32 { return p.Config2 }),
			write: func(*CPU, uint64) {}},
		{16, 3}: {name: "Config3",
			read: rd32(func(p *CP0) uint32 { return p.Config3 })},
		{16, 6}: {name: "Config6",
			read: rd32(func(p *CP0) uint32 { return p.Config6 })},
		{16, 7}: {name: "Config7",
			read: rd32(func(p *CP0) uint32 { return p.Config7 })},
		{17, 0}: {name: "LLAddr",
			read: func(c *CPU) uint64 { return c.llAddr >> 4 }},
		{20, 0}: {name: "XContext", only64: true,
			read: rd64(func(p *CP0) uint64 { return p.XContext }),
			write: func(c *CPU, v uint64) {
				mask := uint64(1)<<(c.model.SEGBITS-7) - 1
				c.CP0.XContext = c.CP0.XContext&mask | v&^mask
			}},
		{21, 0}: {name: "Framemask",
			read:  rd32(func(p *CP0) uint32 { return p.Framemask }),
			write: func(c *CPU, v uint64) { c.CP0.Framemask = uint32(v) }},
		{23, 0}: {name: "Debug", effect: cp0Exit,
			read:  rd32(func(p *CP0) uint32 { return p.Debug }),
			write: (*CPU).writeDebug},
		{24, 0}: {name: "DEPC",
			read:  rd64(func(p *CP0) uint64 { return p.DEPC }),
			write: func(c *CPU, v uint64) { c.CP0.DEPC = v }},
		{25, 0}: {name: "Performance0",
			read:  rd32(func(p *CP0) uint32 { return p.Perf0 }),
			write: func(c *CPU, v uint64) { c.CP0.Perf0 = uint32(v) & 0x7FF }},
		{26, 0}: {name: "ErrCtl",
			read:  rd32(func(p *CP0) uint32 { return p.ErrCtl }),
			write: func(c *CPU, v uint64) { c.CP0.ErrCtl = uint32(v) }},
		{27, 0}: {name: "CacheErr",
			read: func(*CPU) uint64 { return 0 }},
		{28, 0}: {name: "TagLo",
			read:  rd32(func(p *CP0) uint32 { return p.TagLo }),
			write: func(c *CPU, v uint64) { c.CP0.TagLo = uint32(v) & 0xFFFFFCF6 }},
		{28, 1}: {name: "DataLo",
			read:  rd32(func(p *CP0) uint32 { return p.DataLo }),
			write: func(c *CPU, v uint64) { c.CP0.DataLo = uint32(v) }},
		{29, 0}: {name: "TagHi",
			read:  rd32(func(p *CP0) uint32 { return p.TagHi }),
			write: func(c *CPU, v uint64) { c.CP0.TagHi = uint32(v) }},
		{29, 1}: {name: "DataHi",
			read:  rd32(func(p *CP0) uint32 { return p.DataHi }),
			write: func(c *CPU, v uint64) { c.CP0.DataHi = uint32(v) }},
		{30, 0}: {name: "ErrorEPC",
			read:  rd64(func(p *CP0) uint64 { return p.ErrorEPC }),
			write: func(c *CPU, v uint64) { c.CP0.ErrorEPC = v }},
		{31, 0}: {name: "DESAVE", effect: cp0Stop,
			read:  rd64(func(p *CP0) uint64 { return p.DESAVE }),
			write: func(c *CPU, v uint64) { c.CP0.DESAVE = v }},
	}

	for i := uint8(0); i < 8; i++ {
		sel := i

		cp0Regs[cp0Key{18, sel}] = &cp0Reg{
			name: fmt.Sprintf("WatchLo%d", sel),
			read: func(c *CPU) uint64 { return c.CP0.WatchLo[sel] },
			write: func(c *CPU, v uint64) {
				c.CP0.WatchLo[sel] = v
			},
		}
		cp0Regs[cp0Key{19, sel}] = &cp0Reg{
			name: fmt.Sprintf("WatchHi%d", sel),
			read: func(c *CPU) uint64 { return sext32(uint64(c.CP0.WatchHi[sel])) },
			write: func(c *CPU, v uint64) {
				c.CP0.WatchHi[sel] = uint32(v) & 0x40FF0FF8
			},
		}
	}
}

// cp0Lookup returns the register at (reg, sel) for this model, or nil when
// the pair is not modelled.
func (c *CPU) cp0Lookup(reg, sel uint8) *cp0Reg {
	r, ok := cp0Regs[cp0Key{reg, sel}]
	if !ok || (r.only64 && !c.model.Is64) {
		return nil
	}

	return r
}

func cp0Name(reg, sel uint8) string {
	return fmt.Sprintf("cp0 %d,%d", reg, sel)
}

// MFC0 reads CP0 register (reg, sel). Unmodelled registers read as zero
// and are reported on the hook.
func (c *CPU) MFC0(reg, sel uint8) uint64 {
	r := c.cp0Lookup(reg, sel)
	if r == nil {
		c.InvokeHook(sim.HookCtx{
			Domain: c,
			Pos:    trace.HookPosUnimplementedRegister,
			Detail: trace.RegisterDetail{Name: cp0Name(reg, sel)},
		})

		return 0
	}

	return r.read(c)
}

// MTC0 writes CP0 register (reg, sel). Writes to read-only and
// unmodelled registers are dropped; the latter are reported on the hook.
func (c *CPU) MTC0(reg, sel uint8, v uint64) {
	r := c.cp0Lookup(reg, sel)
	if r == nil {
		c.InvokeHook(sim.HookCtx{
			Domain: c,
			Pos:    trace.HookPosUnimplementedRegister,
			Detail: trace.RegisterDetail{Write: true, Name: cp0Name(reg, sel), Value: v},
		})

		return
	}

	if r.write != nil {
		r.write(c, v)
	}
}

func (c *CPU) writeEntryHi(v uint64) {
	mask := c.segMask() &^ 0x1F00
	if !c.model.Is64 {
		v = sext32(v)
		mask = sext32(mask)
	}

	old := c.CP0.EntryHi
	c.CP0.EntryHi = v & mask

	if old&0xFF != c.CP0.EntryHi&0xFF {
		c.flush(mem.FlushAll())
	}
}

func (c *CPU) writeStatus(v uint64) {
	old := c.CP0.Status
	mask := c.CP0.statusMask
	c.CP0.Status = old&^mask | uint32(v)&mask

	// ERL and the segment enables change which addresses map at all.
	if (old^c.CP0.Status)&(StatusERL|StatusUX|StatusSX|StatusKX) != 0 {
		c.flush(mem.FlushAll())
	}

	c.ComputeHFlags()
}

func (c *CPU) writeCause(v uint64) {
	mask := uint32(0x00C00300)
	if c.model.IsRelease2() {
		mask |= 1 << 27
	}

	c.CP0.Cause = c.CP0.Cause&^mask | uint32(v)&mask
}

func (c *CPU) writeDebug(v uint64) {
	c.CP0.Debug = c.CP0.Debug&0x8C03FC1F | uint32(v)&0x13300120
	c.ComputeHFlags()
}

// SetIRQ drives interrupt line 0-7. Lines 0 and 1 are the software
// interrupts, 7 is shared with the timer.
func (c *CPU) SetIRQ(line int, level bool) {
	if line < 0 || line > 7 {
		panic(fmt.Sprintf("mips: interrupt line %d out of range", line))
	}

	bit := uint32(1) << (CauseIPShift + line)
	if level {
		c.CP0.Cause |= bit
	} else {
		c.CP0.Cause &^= bit
	}
}

// AdvanceCount moves the Count register forward by n ticks and raises the
// timer interrupt when it passes Compare.
func (c *CPU) AdvanceCount(n uint32) {
	before := c.CP0.Count
	c.CP0.Count += n

	if c.CP0.Count-before >= c.CP0.Compare-before && c.CP0.Compare-before != 0 {
		c.CP0.Cause |= CauseTI | 1<<(CauseIPShift+7)
	}
}
