package csvimport

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/erp/dre/internal/domain/dre"
)

// Canonical ledger columns
const (
	ColAccount    = "account_id"
	ColUnit       = "unit_id"
	ColCostCenter = "cost_center_id"
	ColDate       = "date"
	ColAmount     = "amount"
	ColInactive   = "inactive"
)

var ledgerAliases = map[string]string{
	"account":      ColAccount,
	"conta":        ColAccount,
	"unit":         ColUnit,
	"unidade":      ColUnit,
	"cost_center":  ColCostCenter,
	"centro_custo": ColCostCenter,
	"entry_date":   ColDate,
	"data":         ColDate,
	"valor":        ColAmount,
	"value":        ColAmount,
	"inativo":      ColInactive,
}

// LedgerRules are the column rules of a ledger export
func LedgerRules() []FieldRule {
	return []FieldRule{
		Field(ColAccount).Required().MaxLength(64).Build(),
		Field(ColUnit).Required().MaxLength(64).Build(),
		Field(ColCostCenter).MaxLength(64).Build(),
		Field(ColDate).Required().Date().Build(),
		Field(ColAmount).Required().Decimal().Build(),
		Field(ColInactive).Bool().Build(),
	}
}

// LedgerImporter turns ledger CSV files into account records
type LedgerImporter struct {
	maxRows   int
	maxErrors int
	maxBytes  int64
}

// ImporterOption configures a LedgerImporter
type ImporterOption func(*LedgerImporter)

// WithMaxRows caps the number of data rows (0 = unlimited)
func WithMaxRows(n int) ImporterOption {
	return func(i *LedgerImporter) { i.maxRows = n }
}

// WithMaxErrors caps the number of row errors kept in the result
func WithMaxErrors(n int) ImporterOption {
	return func(i *LedgerImporter) { i.maxErrors = n }
}

// WithMaxFileSize caps the input size in bytes (0 = unlimited)
func WithMaxFileSize(n int64) ImporterOption {
	return func(i *LedgerImporter) { i.maxBytes = n }
}

// NewLedgerImporter creates an importer
func NewLedgerImporter(opts ...ImporterOption) *LedgerImporter {
	i := &LedgerImporter{maxRows: 1_000_000, maxErrors: 100}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Result is the outcome of parsing a ledger file. Records holds only the
// rows that passed validation.
type Result struct {
	Records     []dre.AccountRecord `json:"-"`
	TotalRows   int                 `json:"total_rows"`
	ValidRows   int                 `json:"valid_rows"`
	ErrorRows   int                 `json:"error_rows"`
	Errors      []RowError          `json:"errors,omitempty"`
	TotalErrors int                 `json:"total_errors,omitempty"`
	IsTruncated bool                `json:"is_truncated,omitempty"`
}

// IsValid reports whether every row passed validation
func (r *Result) IsValid() bool {
	return r.ErrorRows == 0
}

// Parse reads the whole file. File level problems (empty file, bad encoding,
// missing columns) return a *FileError; row problems are reported in the
// result and the offending rows are skipped.
func (i *LedgerImporter) Parse(ctx context.Context, r io.Reader) (*Result, error) {
	if i.maxBytes > 0 {
		r = &limitedReader{r: r, remaining: i.maxBytes}
	}

	parser, err := NewCSVParser(r, WithHeaderAliases(ledgerAliases))
	if err != nil {
		return nil, classify(err)
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, classify(err)
	}
	if missing := parser.MissingHeaders([]string{ColAccount, ColUnit, ColDate, ColAmount}); len(missing) > 0 {
		return nil, &FileError{
			Code:    ErrCodeImportMissingHeader,
			Message: fmt.Sprintf("missing required columns: %v", missing),
			Err:     ErrMissingHeader,
		}
	}

	errs := NewErrorCollection(i.maxErrors)
	validator := NewFieldValidator(LedgerRules(), errs)
	result := &Result{}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := parser.ReadRow()
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.Is(err, ErrFileTooLarge) {
				return nil, classify(err)
			}
			errs.Add(RowError{Row: parser.CurrentRow(), Code: ErrCodeImportMalformedRow, Message: err.Error()})
			result.TotalRows++
			result.ErrorRows++
			continue
		}
		if row.IsEmpty() {
			continue
		}
		result.TotalRows++
		if i.maxRows > 0 && result.TotalRows > i.maxRows {
			return nil, &FileError{
				Code:    ErrCodeImportTooManyRows,
				Message: fmt.Sprintf("file has more than %d data rows", i.maxRows),
			}
		}

		if !validator.ValidateRow(row) {
			result.ErrorRows++
			continue
		}
		result.Records = append(result.Records, toRecord(row))
	}

	if result.TotalRows == 0 {
		return nil, newFileError(ErrCodeImportEmptyFile, ErrNoDataRows)
	}

	result.ValidRows = len(result.Records)
	result.Errors = errs.Errors()
	result.TotalErrors = errs.TotalCount()
	result.IsTruncated = errs.IsTruncated()
	return result, nil
}

// toRecord converts a validated row; parse errors cannot occur here
func toRecord(row *Row) dre.AccountRecord {
	date, _ := ParseDate(row.Get(ColDate))
	amount, _ := ParseAmount(row.Get(ColAmount))
	inactive := false
	if v := row.Get(ColInactive); v != "" {
		inactive, _ = ParseBool(v)
	}
	return dre.AccountRecord{
		AccountID:    row.Get(ColAccount),
		UnitID:       row.Get(ColUnit),
		CostCenterID: row.Get(ColCostCenter),
		Date:         date,
		Amount:       amount,
		Inactive:     inactive,
	}
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrEmptyFile):
		return newFileError(ErrCodeImportEmptyFile, err)
	case errors.Is(err, ErrInvalidEncoding):
		return newFileError(ErrCodeImportInvalidEncoding, err)
	case errors.Is(err, ErrMissingHeader):
		return newFileError(ErrCodeImportMissingHeader, err)
	case errors.Is(err, ErrFileTooLarge):
		return newFileError(ErrCodeImportFileTooLarge, err)
	}
	return newFileError(ErrCodeImportInvalidFile, err)
}

// limitedReader fails with ErrFileTooLarge instead of truncating silently
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		// probe one byte to distinguish an exact fit from an overflow
		var probe [1]byte
		n, err := l.r.Read(probe[:])
		if n > 0 {
			return 0, ErrFileTooLarge
		}
		return 0, err
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	return n, err
}
