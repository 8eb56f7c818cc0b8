package arm

import (
	"errors"

	"github.com/sarchlab/vcore/internal/translate"
)

var f = translate.From

var (
	// ErrUnknownModel reports a model name missing from the model table.
	ErrUnknownModel = errors.New(f("unknown ARM model"))
	// ErrNoBus reports a CPU constructed without a memory collaborator.
	ErrNoBus = errors.New(f("no memory bus"))
	// ErrUnimplementedRegister reports a strict access to a system
	// control register the core does not model.
	ErrUnimplementedRegister = errors.New(f("unimplemented system register"))
)
