package errors

import (
	"errors"
	"fmt"
)

// define error types for generation runs
var (
	ErrFatal  = errors.New("fatal error")
	ErrReport = errors.New("reported error")

	ErrSchemaShape  = fmt.Errorf("%w: %v", ErrFatal, "schema shape error")
	ErrRegistry     = fmt.Errorf("%w: %v", ErrFatal, "invalid registry")
	ErrUnknownType  = fmt.Errorf("%w: %v", ErrFatal, "unknown type")
	ErrTarget       = fmt.Errorf("%w: %v", ErrFatal, "unknown target")
	ErrOutput       = fmt.Errorf("%w: %v", ErrFatal, "output error")
	ErrLengthExpr   = fmt.Errorf("%w: %v", ErrFatal, "invalid length expression")
	ErrInvalidInput = fmt.Errorf("%w: %v", ErrReport, "invalid input")
)

// IsFatal verifies error aborts the generation run
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// Is wraps standard errors.Is
func Is(err, target error) bool { return errors.Is(err, target) }

// As wraps standard errors.As
func As(err error, target any) bool { return errors.As(err, target) }

// Join wraps standard errors.Join
func Join(errs ...error) error { return errors.Join(errs...) }

// New wraps standard errors.New
func New(text string) error { return errors.New(text) }
