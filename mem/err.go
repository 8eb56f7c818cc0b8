package mem

import (
	"errors"

	"github.com/sarchlab/vcore/internal/translate"
)

var f = translate.From

var (
	// ErrBusError reports an access outside the populated physical space.
	ErrBusError = errors.New(f("bus error"))
	// ErrBadWidth reports an access width other than 1, 2, 4 or 8 bytes.
	ErrBadWidth = errors.New(f("unsupported access width"))
)
