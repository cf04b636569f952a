package mathtools

import (
	"github.com/cockroachdb/errors"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
)

// Domain failures. Every error returned by this package for bad input is
// marked with one of these and with chat.ErrInvalidInput.
var (
	ErrDegenerateCoefficient = errors.New("degenerate coefficient")
	ErrInvalidExpression     = errors.New("invalid expression")
	ErrDivisionByZero        = errors.New("division by zero")
	ErrInvalidArguments      = errors.New("invalid tool arguments")
)

func invalid(kind error, format string, args ...any) error {
	err := errors.Newf(format, args...)
	return errors.Mark(errors.Mark(err, kind), chat.ErrInvalidInput)
}
