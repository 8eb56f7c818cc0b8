// Package mem defines the memory collaborator contract the CPU cores call
// into, together with reference implementations built on Akita memory
// components.
package mem

// Access is the kind of memory access being translated or checked.
type Access uint8

// Access kinds.
const (
	AccessRead Access = iota
	AccessWrite
	AccessExecute
)

func (a Access) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessExecute:
		return "execute"
	}

	return "unknown"
}

// Prot is a set of page permission bits.
type Prot uint8

// Permission bits.
const (
	ProtRead Prot = 1 << iota
	ProtWrite
	ProtExec

	ProtRW  = ProtRead | ProtWrite
	ProtAll = ProtRead | ProtWrite | ProtExec
)

// Allows reports whether p grants the given access kind.
func (p Prot) Allows(a Access) bool {
	switch a {
	case AccessRead:
		return p&ProtRead != 0
	case AccessWrite:
		return p&ProtWrite != 0
	case AccessExecute:
		return p&ProtExec != 0
	}

	return false
}

// Privilege selects which translation table an entry belongs to.
type Privilege uint8

// Privilege levels.
const (
	PrivUser Privilege = iota
	PrivKernel
)

// ScopeKind selects what a flush invalidates.
type ScopeKind uint8

// Flush scopes.
const (
	// ScopeAll drops every cached translation.
	ScopeAll ScopeKind = iota
	// ScopePage drops the translations covering one virtual page.
	ScopePage
	// ScopeCode drops translated code blocks.
	ScopeCode
)

// Scope describes a flush request.
type Scope struct {
	Kind ScopeKind
	Addr uint64
}

// FlushAll returns a scope covering every cached translation.
func FlushAll() Scope { return Scope{Kind: ScopeAll} }

// FlushPage returns a scope covering the page holding addr.
func FlushPage(addr uint64) Scope { return Scope{Kind: ScopePage, Addr: addr} }

// FlushCode returns a scope covering translated code.
func FlushCode() Scope { return Scope{Kind: ScopeCode} }

// Translations is the TLB half of the memory collaborator.
type Translations interface {
	InsertTranslation(vaddr, paddr uint64, prot Prot, priv Privilege)
	FlushTranslations(scope Scope)
}

// Bus is the physical memory collaborator used by the CPU cores.
type Bus interface {
	Translations

	FetchCode(paddr uint64) (uint32, error)
	Load(paddr uint64, width int) (uint64, error)
	Store(paddr uint64, width int, value uint64) error
}

// Translation is a cached virtual to physical mapping.
type Translation struct {
	VAddr uint64
	PAddr uint64
	Prot  Prot
	Priv  Privilege
}

// Lookup is implemented by collaborators that can answer translation
// queries from their cache, letting the cores skip the page walk.
type Lookup interface {
	LookupTranslation(vaddr uint64, priv Privilege) (Translation, bool)
}
