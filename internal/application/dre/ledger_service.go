package dre

import (
	"context"
	"fmt"
	"io"

	"github.com/erp/dre/internal/domain/dre"
	"github.com/erp/dre/internal/infrastructure/csvimport"
	"github.com/erp/dre/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// LedgerService loads account movements into the ledger store
type LedgerService struct {
	ledger   dre.LedgerRepository
	importer *csvimport.LedgerImporter
	logger   *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(ledger dre.LedgerRepository, importer *csvimport.LedgerImporter, log *zap.Logger) *LedgerService {
	if importer == nil {
		importer = csvimport.NewLedgerImporter()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LedgerService{
		ledger:   ledger,
		importer: importer,
		logger:   log.Named("ledger"),
	}
}

// Import parses a ledger CSV and stores its records in one transaction.
// Nothing is stored when any row is invalid; the response then lists the
// row errors.
func (s *LedgerService) Import(ctx context.Context, r io.Reader) (*ImportResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "import")
	defer span.End()

	result, err := s.importer.Parse(ctx, r)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	resp := &ImportResponse{
		TotalRows:   result.TotalRows,
		ErrorRows:   result.ErrorRows,
		TotalErrors: result.TotalErrors,
		Truncated:   result.IsTruncated,
	}
	for _, e := range result.Errors {
		resp.Errors = append(resp.Errors, ImportRowError{Row: e.Row, Column: e.Column, Code: e.Code, Message: e.Message})
	}
	if !result.IsValid() {
		s.logger.Warn("Ledger import rejected",
			zap.Int("rows", result.TotalRows),
			zap.Int("error_rows", result.ErrorRows),
		)
		return resp, nil
	}

	if err := s.ledger.SaveBatch(ctx, result.Records); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to store ledger records: %w", err)
	}
	resp.ImportedRows = len(result.Records)

	telemetry.SetAttributes(span, telemetry.SpanAttrRecordCount, resp.ImportedRows)
	telemetry.SetOK(span)
	s.logger.Info("Ledger imported", zap.Int("records", resp.ImportedRows))
	return resp, nil
}
