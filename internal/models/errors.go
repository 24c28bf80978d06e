package models

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is wrapped by every InvalidInputError
var ErrInvalidInput = errors.New("invalid input")

// FetchError is a network or parse failure from an external source. It aborts the run.
type FetchError struct {
	Source string // barttorvik, kalshi
	Op     string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s %s: %v", e.Source, e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError wraps err as a FetchError
func NewFetchError(source, op string, err error) *FetchError {
	return &FetchError{Source: source, Op: op, Err: err}
}

// InvalidInputError reports a probability, price or factor outside [0,1]
type InvalidInputError struct {
	Field string
	Value float64
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("%s: %s=%v outside [0,1]", ErrInvalidInput, e.Field, e.Value)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}
