package mem

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
	"github.com/sarchlab/akita/v4/mem/vm"
)

// TLBConfig holds the geometry of a SoftTLB.
type TLBConfig struct {
	// Sets is the number of sets.
	Sets int
	// Ways is the associativity.
	Ways int
	// PageBits is log2 of the translation granule.
	PageBits uint
}

// DefaultTLBConfig returns a 256-entry, 4-way TLB over 4KiB pages.
func DefaultTLBConfig() TLBConfig {
	return TLBConfig{
		Sets:     64,
		Ways:     4,
		PageBits: 12,
	}
}

// TLBStatistics counts SoftTLB activity.
type TLBStatistics struct {
	Lookups   uint64
	Hits      uint64
	Misses    uint64
	Inserts   uint64
	Evictions uint64
	Flushes   uint64
}

// SoftTLB caches guest translations. Entries are tagged with the page
// address and the privilege level so user and kernel views never alias.
type SoftTLB struct {
	config TLBConfig

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	// Translation payload - indexed by (setID * ways + wayID)
	entries []Translation

	stats TLBStatistics
}

// NewSoftTLB creates an empty translation cache.
func NewSoftTLB(config TLBConfig) *SoftTLB {
	return &SoftTLB{
		config: config,
		directory: akitacache.NewDirectory(
			config.Sets,
			config.Ways,
			1<<config.PageBits,
			akitacache.NewLRUVictimFinder(),
		),
		entries: make([]Translation, config.Sets*config.Ways),
	}
}

// Config returns the TLB geometry.
func (t *SoftTLB) Config() TLBConfig { return t.config }

// Stats returns the TLB counters.
func (t *SoftTLB) Stats() TLBStatistics { return t.stats }

func (t *SoftTLB) pageMask() uint64 {
	return uint64(1)<<t.config.PageBits - 1
}

func (t *SoftTLB) blockIndex(block *akitacache.Block) int {
	return block.SetID*t.config.Ways + block.WayID
}

// LookupTranslation returns the cached mapping for vaddr, with PAddr
// already offset within the page.
func (t *SoftTLB) LookupTranslation(vaddr uint64, priv Privilege) (Translation, bool) {
	t.stats.Lookups++

	page := vaddr &^ t.pageMask()

	block := t.directory.Lookup(vm.PID(priv), page)
	if block == nil || !block.IsValid {
		t.stats.Misses++
		return Translation{}, false
	}

	t.stats.Hits++
	t.directory.Visit(block) // Update LRU

	e := t.entries[t.blockIndex(block)]
	e.VAddr = vaddr
	e.PAddr |= vaddr & t.pageMask()

	return e, true
}

// InsertTranslation records a page mapping, replacing the LRU way of the
// target set when it is full.
func (t *SoftTLB) InsertTranslation(vaddr, paddr uint64, prot Prot, priv Privilege) {
	t.stats.Inserts++

	page := vaddr &^ t.pageMask()

	block := t.directory.Lookup(vm.PID(priv), page)
	if block == nil {
		block = t.directory.FindVictim(page)
		if block == nil {
			return
		}

		if block.IsValid {
			t.stats.Evictions++
		}
	}

	block.Tag = page
	block.PID = vm.PID(priv)
	block.IsValid = true
	block.IsDirty = false

	t.entries[t.blockIndex(block)] = Translation{
		VAddr: page,
		PAddr: paddr &^ t.pageMask(),
		Prot:  prot,
		Priv:  priv,
	}

	t.directory.Visit(block)
}

// FlushTranslations invalidates the entries covered by scope. Code scopes
// carry no TLB state and are ignored here.
func (t *SoftTLB) FlushTranslations(scope Scope) {
	switch scope.Kind {
	case ScopeAll:
		t.stats.Flushes++
		t.directory.Reset()
	case ScopePage:
		t.stats.Flushes++
		page := scope.Addr &^ t.pageMask()

		for _, priv := range []Privilege{PrivUser, PrivKernel} {
			block := t.directory.Lookup(vm.PID(priv), page)
			if block != nil {
				block.IsValid = false
			}
		}
	}
}

// Len returns the number of valid entries.
func (t *SoftTLB) Len() int {
	n := 0

	for _, set := range t.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid {
				n++
			}
		}
	}

	return n
}
