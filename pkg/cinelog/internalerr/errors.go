package internalerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrFrozen            = errors.New("knowledge base is frozen")
	ErrUnknownPredicate  = errors.New("unknown predicate")
	ErrArityMismatch     = errors.New("arity mismatch")
	ErrInvalidRule       = errors.New("invalid rule")
	ErrUnboundVariable   = errors.New("unbound variable")
	ErrArithmetic        = errors.New("arithmetic error")
	ErrResourceExhausted = errors.New("resource exhausted")
)

// PredicateError reports a reference to a predicate that is not registered.
type PredicateError struct {
	Name  string
	Arity int
}

func (e *PredicateError) Error() string {
	return fmt.Sprintf("unknown predicate %s/%d", e.Name, e.Arity)
}

func (e *PredicateError) Unwrap() error { return ErrUnknownPredicate }

// ArityError reports a predicate used with a different arity than the one it
// was registered with.
type ArityError struct {
	Name       string
	Registered int
	Got        int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("arity mismatch for %s: registered /%d, got /%d", e.Name, e.Registered, e.Got)
}

func (e *ArityError) Unwrap() error { return ErrArityMismatch }

// StepLimitError is returned when a query exceeds its resolution-step ceiling.
type StepLimitError struct {
	Limit int
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("resource exhausted: query exceeded %d resolution steps", e.Limit)
}

func (e *StepLimitError) Unwrap() error { return ErrResourceExhausted }

// IsBranchFailure reports whether err only fails the current resolution
// branch (unbound arithmetic operands, division by zero) rather than the
// whole query.
func IsBranchFailure(err error) bool {
	return errors.Is(err, ErrUnboundVariable) || errors.Is(err, ErrArithmetic)
}
