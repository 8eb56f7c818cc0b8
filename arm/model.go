package arm

import (
	"fmt"
	"sort"
)

// Feature is a set of optional architecture features.
type Feature uint32

// Architecture features.
const (
	FeatureVFP Feature = 1 << iota
	FeatureAuxCR
	FeatureXScale
	FeatureIWMMXt
	FeatureMPU
	FeatureOMAPCP
	FeatureV6
	FeatureV6K
	FeatureV7
	FeatureThumb2
	FeatureM
	FeatureVFP3
	FeatureNEON
)

// Has reports whether every feature in want is present.
func (f Feature) Has(want Feature) bool { return f&want == want }

// Model describes one ARM implementation: its identity registers and the
// features that select the system control behavior.
type Model struct {
	Name string

	CPUID     uint32
	CacheType uint32
	Features  Feature

	// ResetControl is the c1 control register after reset.
	ResetControl uint32

	FPSID uint32
	MVFR0 uint32
	MVFR1 uint32

	// WCID is the iwMMXt coprocessor ID register.
	WCID uint32
}

// CPU identification codes.
const (
	IDARM926      = 0x41069265
	IDARM946      = 0x41059461
	IDARM1026     = 0x4106a262
	IDARM1136     = 0x4117b363
	IDARM11MPCore = 0x410fb022
	IDCortexM3    = 0x410fc231
	IDCortexA8    = 0x410fc080
	IDCortexA9    = 0x410fc090
	IDTI915T      = 0x54029152
	IDTI925T      = 0x54029252
	IDAny         = 0xffffffff
)

const (
	xscaleCacheType = 0xd172172
	xscaleControl   = 0x00000078
	iwmmxtWCID      = 0x69051000 | 'Q'
)

func pxa(name string, id uint32, iwmmxt bool) *Model {
	m := &Model{
		Name:         name,
		CPUID:        id,
		CacheType:    xscaleCacheType,
		Features:     FeatureXScale,
		ResetControl: xscaleControl,
	}

	if iwmmxt {
		m.Features |= FeatureIWMMXt
		m.WCID = iwmmxtWCID
	}

	return m
}

var models = map[string]*Model{}

func init() {
	list := []*Model{
		{
			Name:         "arm926",
			CPUID:        IDARM926,
			CacheType:    0x1dd20d2,
			Features:     FeatureVFP,
			ResetControl: 0x00090078,
			FPSID:        0x41011090,
		},
		{
			Name:         "arm946",
			CPUID:        IDARM946,
			CacheType:    0x0f004006,
			Features:     FeatureMPU,
			ResetControl: 0x00000078,
		},
		{
			Name:         "arm1026",
			CPUID:        IDARM1026,
			CacheType:    0x1dd20d2,
			Features:     FeatureVFP | FeatureAuxCR,
			ResetControl: 0x00090078,
			FPSID:        0x410110a0,
		},
		{
			Name:         "arm1136",
			CPUID:        IDARM1136,
			CacheType:    0x1dd20d2,
			Features:     FeatureVFP | FeatureV6,
			ResetControl: 0x00050078,
			FPSID:        0x410120b4,
			MVFR0:        0x11111111,
		},
		{
			Name:         "arm11mpcore",
			CPUID:        IDARM11MPCore,
			CacheType:    0x1dd20d2,
			Features:     FeatureVFP | FeatureV6 | FeatureV6K,
			ResetControl: 0x00050078,
			FPSID:        0x410120b4,
			MVFR0:        0x11111111,
		},
		{
			Name:     "cortex-m3",
			CPUID:    IDCortexM3,
			Features: FeatureV6 | FeatureV7 | FeatureThumb2 | FeatureM,
		},
		{
			Name:         "cortex-a8",
			CPUID:        IDCortexA8,
			CacheType:    0x82048004,
			Features:     FeatureVFP | FeatureVFP3 | FeatureNEON | FeatureV6 | FeatureV6K | FeatureV7 | FeatureThumb2,
			ResetControl: 0x00c50078,
			FPSID:        0x410330c0,
			MVFR0:        0x11110222,
			MVFR1:        0x00011100,
		},
		{
			Name:         "cortex-a9",
			CPUID:        IDCortexA9,
			CacheType:    0x80038003,
			Features:     FeatureVFP | FeatureVFP3 | FeatureNEON | FeatureV6 | FeatureV6K | FeatureV7 | FeatureThumb2,
			ResetControl: 0x00c50078,
			FPSID:        0x41034000,
			MVFR0:        0x11110222,
			MVFR1:        0x01111111,
		},
		{
			Name:         "ti925t",
			CPUID:        IDTI925T,
			CacheType:    0x5109149,
			Features:     FeatureOMAPCP,
			ResetControl: 0x00000070,
		},
		pxa("pxa250", 0x69052100, false),
		pxa("pxa255", 0x69052d00, false),
		pxa("pxa260", 0x69052903, false),
		pxa("pxa261", 0x69052d05, false),
		pxa("pxa262", 0x69052d06, false),
		pxa("pxa270", 0x69054110, true),
		pxa("pxa270-a0", 0x69054110, true),
		pxa("pxa270-a1", 0x69054111, true),
		pxa("pxa270-b0", 0x69054112, true),
		pxa("pxa270-b1", 0x69054113, true),
		pxa("pxa270-c0", 0x69054114, true),
		pxa("pxa270-c5", 0x69054117, true),
		{
			Name:     "any",
			CPUID:    IDAny,
			Features: FeatureVFP | FeatureVFP3 | FeatureNEON | FeatureV6 | FeatureV6K | FeatureV7 | FeatureThumb2,
			FPSID:    0x410330c0,
			MVFR0:    0x11110222,
			MVFR1:    0x00011100,
		},
	}

	for _, m := range list {
		models[m.Name] = m
	}
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
