package mips

import (
	"errors"

	"github.com/sarchlab/vcore/internal/translate"
)

var f = translate.From

var (
	// ErrUnknownModel reports a model name missing from the model table.
	ErrUnknownModel = errors.New(f("unknown MIPS model"))
	// ErrNoBus reports a CPU constructed without a memory collaborator.
	ErrNoBus = errors.New(f("no memory bus"))
)
