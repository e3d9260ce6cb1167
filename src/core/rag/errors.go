package rag

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error kinds. Match them with errors.Is.
var (
	ErrExtraction = errors.New("extraction error")
	ErrValidation = errors.New("validation error")
	ErrStorage    = errors.New("storage error")
	ErrEmbedding  = errors.New("embedding error")
	ErrGeneration = errors.New("generation error")

	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Error wraps a collaborator failure with its kind and the failing operation.
type Error struct {
	Kind      error
	Op        string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// NewError wraps err as kind. Retryability is inferred from err.
func NewError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Retryable: transient(err), Err: err}
}

// Permanent wraps err as a non-retryable failure of kind.
func Permanent(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Outcome classifies the result of a collaborator call.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeRetryable
	OutcomePermanent
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeRetryable:
		return "retryable"
	default:
		return "permanent"
	}
}

// Classify maps an error to an Outcome.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	var re *Error
	if errors.As(err, &re) {
		if re.Retryable {
			return OutcomeRetryable
		}
		return OutcomePermanent
	}
	if transient(err) {
		return OutcomeRetryable
	}
	return OutcomePermanent
}

func transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Retryable
	}
	return false
}
