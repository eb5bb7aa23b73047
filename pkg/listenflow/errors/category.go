// Package errors provides the pipeline's error taxonomy and retry
// support.
//
// Per-record schema violations are terminal for that record only and
// are never retried (the input cannot become valid). Transient failures
// (sink writes, aggregate emission) are retried with backoff; anything
// unclassified is treated as permanent.
package errors

import (
	"context"
	"errors"
	"fmt"

	"github.com/listenflow/listenflow/pkg/listenflow/schema"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryRejection marks a per-record schema violation. Counted,
	// never retried, never aborts sibling records.
	CategoryRejection Category = iota

	// CategoryDefect marks a validator/deriver contract mismatch: a
	// programming defect. Log and drop the record, keep the pipeline up.
	CategoryDefect

	// CategoryTransient indicates retry will likely help.
	CategoryTransient

	// CategoryPermanent indicates retry won't help.
	CategoryPermanent
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryRejection:
		return "rejection"
	case CategoryDefect:
		return "defect"
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	Err      error
	Category Category
	Retries  int
	Context  string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Retries)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)", e.Err, e.Category, e.Retries)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a transient failure.
func Transient(err error, context string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryTransient, Context: context}
}

// Permanent wraps err as a permanent failure.
func Permanent(err error, context string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryPermanent, Context: context}
}

// Defect wraps err as a programming defect.
func Defect(err error, context string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryDefect, Context: context}
}

// Categorize determines how an error should be handled.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent // shouldn't happen, fail safe
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	var fieldErr *schema.FieldError
	if errors.As(err, &fieldErr) {
		return CategoryRejection
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CategoryPermanent
	}

	// Unknown errors are permanent (fail safe).
	return CategoryPermanent
}

// IsRejection reports whether the error is a per-record schema
// violation.
func IsRejection(err error) bool {
	return Categorize(err) == CategoryRejection
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}
