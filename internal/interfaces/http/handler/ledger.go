package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	dreapp "github.com/erp/dre/internal/application/dre"
	"github.com/erp/dre/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// LedgerImporter loads ledger CSV files
type LedgerImporter interface {
	Import(ctx context.Context, r io.Reader) (*dreapp.ImportResponse, error)
}

// LedgerHandler handles ledger uploads
type LedgerHandler struct {
	BaseHandler
	ledger LedgerImporter
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledger LedgerImporter) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// Import stores the account movements of a CSV file. The file is sent as
// the multipart field "file" or as a text/csv body. A file with invalid rows
// is rejected as a whole with 422 and the row errors as details.
// POST /api/v1/dre/ledger/import
func (h *LedgerHandler) Import(c *gin.Context) {
	body, closeFn, ok := h.csvBody(c)
	if !ok {
		return
	}
	defer closeFn()

	resp, err := h.ledger.Import(c.Request.Context(), body)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if resp.ErrorRows > 0 {
		c.JSON(http.StatusUnprocessableEntity, dto.NewDetailedErrorResponse(
			dto.ErrCodeImportRejected, "Ledger file contains invalid rows", getRequestID(c), resp))
		return
	}
	h.Created(c, resp)
}

func (h *LedgerHandler) csvBody(c *gin.Context) (io.Reader, func(), bool) {
	if strings.HasPrefix(c.ContentType(), "text/csv") {
		return c.Request.Body, func() {}, true
	}

	header, err := c.FormFile("file")
	if err != nil {
		h.BadRequest(c, "Missing CSV file: send multipart field 'file' or a text/csv body")
		return nil, nil, false
	}
	f, err := header.Open()
	if err != nil {
		h.BadRequest(c, "Unable to read uploaded file")
		return nil, nil, false
	}
	return f, func() { _ = f.Close() }, true
}
