package mem

// System is the reference memory collaborator: one RAM region plus a
// SoftTLB. It also counts code flushes so translated-block caches can
// notice when they must drop their contents.
type System struct {
	*RAM
	*SoftTLB

	codeGeneration uint64
}

// NewSystem joins ram and tlb into a Bus.
func NewSystem(ram *RAM, tlb *SoftTLB) *System {
	return &System{RAM: ram, SoftTLB: tlb}
}

// FlushTranslations forwards TLB scopes to the SoftTLB and advances the
// code generation on every flush, since a changed mapping can also change
// which bytes a cached block was translated from.
func (s *System) FlushTranslations(scope Scope) {
	s.codeGeneration++
	s.SoftTLB.FlushTranslations(scope)
}

// CodeGeneration returns a counter that changes whenever translated code
// may be stale.
func (s *System) CodeGeneration() uint64 {
	return s.codeGeneration
}
