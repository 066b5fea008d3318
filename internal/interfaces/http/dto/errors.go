package dto

import (
	"net/http"
	"strings"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
	ErrCodeTimeout  = "ERR_TIMEOUT"
)

// Validation error codes
const (
	ErrCodeValidation = "ERR_VALIDATION"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Input error codes
const (
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Report error codes. Template validation failures use
// ERR_DRE_<KIND> codes built from the failure kind.
const (
	ErrCodeDREPrefix           = "ERR_DRE_"
	ErrCodeInvalidTemplate     = "ERR_DRE_INVALID_TEMPLATE"
	ErrCodeInvalidSettings     = "ERR_DRE_INVALID_SETTINGS"
	ErrCodeEvaluation          = "ERR_DRE_EVALUATION"
	ErrCodeLedgerLimitExceeded = "ERR_DRE_LEDGER_LIMIT_EXCEEDED"
)

// Import error codes
const (
	ErrCodeImportPrefix       = "ERR_IMPORT_"
	ErrCodeImportRejected     = "ERR_IMPORT_REJECTED"
	ErrCodeImportFileTooLarge = "ERR_IMPORT_FILE_TOO_LARGE"
)

// Rate limiting error codes
const (
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,
	ErrCodeTimeout:  http.StatusGatewayTimeout,

	ErrCodeValidation: http.StatusBadRequest,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	// Templates and settings that parse but break a rule -> 422
	ErrCodeInvalidTemplate:     http.StatusUnprocessableEntity,
	ErrCodeInvalidSettings:     http.StatusUnprocessableEntity,
	ErrCodeEvaluation:          http.StatusUnprocessableEntity,
	ErrCodeLedgerLimitExceeded: http.StatusUnprocessableEntity,

	ErrCodeImportRejected:     http.StatusUnprocessableEntity,
	ErrCodeImportFileTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Template validation codes map to 422 and import file codes to 400;
// anything else unknown is a 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	switch {
	case strings.HasPrefix(code, ErrCodeDREPrefix):
		return http.StatusUnprocessableEntity
	case strings.HasPrefix(code, ErrCodeImportPrefix):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps domain error codes to API error codes
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":             ErrCodeNotFound,
	"ALREADY_EXISTS":        ErrCodeAlreadyExists,
	"INVALID_INPUT":         ErrCodeInvalidInput,
	"INVALID_NAME":          ErrCodeInvalidInput,
	"INVALID_VISIBILITY":    ErrCodeInvalidInput,
	"INVALID_OWNER":         ErrCodeInvalidInput,
	"INVALID_STATE":         ErrCodeConflict,
	"CONCURRENCY_CONFLICT":  ErrCodeConcurrencyConflict,
	"INVALID_SETTINGS":      ErrCodeInvalidSettings,
	"LEDGER_LIMIT_EXCEEDED": ErrCodeLedgerLimitExceeded,
	"VALIDATION_ERROR":      ErrCodeValidation,
	"BAD_REQUEST":           ErrCodeBadRequest,
	"INTERNAL_ERROR":        ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format or unknown are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
