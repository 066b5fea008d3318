package dre

import (
	"fmt"
	"strings"
)

// ValidationErrorKind identifies a structural problem with a template or configuration
type ValidationErrorKind string

const (
	ErrKindDuplicateCode           ValidationErrorKind = "duplicate_code"
	ErrKindDanglingParent          ValidationErrorKind = "dangling_parent"
	ErrKindUnknownFormulaReference ValidationErrorKind = "unknown_formula_reference"
	ErrKindMalformedFormula        ValidationErrorKind = "malformed_formula"
	ErrKindCyclicDependency        ValidationErrorKind = "cyclic_dependency"
	ErrKindEmptyTemplate           ValidationErrorKind = "empty_template"
	ErrKindInvalidConfiguration    ValidationErrorKind = "invalid_configuration"
	ErrKindInvalidLineItem         ValidationErrorKind = "invalid_line_item"
)

// ValidationError is a fatal problem found before any computation.
// Codes lists every offending line item; References lists the unknown codes
// for ErrKindUnknownFormulaReference.
type ValidationError struct {
	Kind       ValidationErrorKind `json:"kind"`
	Codes      []string            `json:"codes,omitempty"`
	References []string            `json:"references,omitempty"`
	Message    string              `json:"message"`
}

func newValidationError(kind ValidationErrorKind, codes, refs []string, msg string) *ValidationError {
	return &ValidationError{Kind: kind, Codes: codes, References: refs, Message: msg}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if len(e.Codes) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, strings.Join(e.Codes, ", "), e.Message)
}

// Is matches sentinel errors by kind
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// ErrorCode returns the API error code for the kind
func (e *ValidationError) ErrorCode() string {
	return "ERR_DRE_" + strings.ToUpper(string(e.Kind))
}

// Sentinels for errors.Is
var (
	ErrDuplicateCode           = &ValidationError{Kind: ErrKindDuplicateCode}
	ErrDanglingParent          = &ValidationError{Kind: ErrKindDanglingParent}
	ErrUnknownFormulaReference = &ValidationError{Kind: ErrKindUnknownFormulaReference}
	ErrMalformedFormula        = &ValidationError{Kind: ErrKindMalformedFormula}
	ErrCyclicDependency        = &ValidationError{Kind: ErrKindCyclicDependency}
	ErrEmptyTemplate           = &ValidationError{Kind: ErrKindEmptyTemplate}
	ErrInvalidConfiguration    = &ValidationError{Kind: ErrKindInvalidConfiguration}
	ErrInvalidLineItem         = &ValidationError{Kind: ErrKindInvalidLineItem}
)

// EvalErrorKind identifies a fatal evaluation failure
type EvalErrorKind string

const (
	EvalErrUnresolvedReference EvalErrorKind = "unresolved_reference"
)

// EvalError signals an internal invariant violation during evaluation
type EvalError struct {
	Kind EvalErrorKind `json:"kind"`
	Code string        `json:"code"`
}

// Error implements the error interface
func (e *EvalError) Error() string {
	return fmt.Sprintf("%s: [%s] has no computed value", e.Kind, e.Code)
}

// WarningKind identifies a recovered numeric edge case
type WarningKind string

const (
	WarnDivisionByZero         WarningKind = "division_by_zero"
	WarnZeroRevenueDenominator WarningKind = "zero_revenue_denominator"
)

// Warning is a non-fatal annotation. Code is empty for report-wide warnings.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message"`
}

func divisionByZeroWarning(code string, comparison bool) Warning {
	msg := fmt.Sprintf("division by zero in formula of %s, value set to 0", code)
	if comparison {
		msg = fmt.Sprintf("division by zero in formula of %s for the comparison period, value set to 0", code)
	}
	return Warning{Kind: WarnDivisionByZero, Code: code, Message: msg}
}

func zeroRevenueWarning() Warning {
	return Warning{
		Kind:    WarnZeroRevenueDenominator,
		Message: "total revenue is zero, percentages of revenue and margins set to 0",
	}
}
