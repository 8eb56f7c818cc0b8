package emu

import (
	"errors"

	"github.com/sarchlab/vcore/internal/translate"
)

var f = translate.From

// ErrInstructionLimit reports that the run loop reached its instruction
// budget.
var ErrInstructionLimit = errors.New(f("max instructions reached"))
