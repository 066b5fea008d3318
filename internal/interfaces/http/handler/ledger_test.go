package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dreapp "github.com/erp/dre/internal/application/dre"
	"github.com/erp/dre/internal/infrastructure/csvimport"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const ledgerCSV = "account_id,unit_id,cost_center_id,date,amount\n3.1,U1,CC-1,2026-01-15,1000.00\n"

func newLedgerRouter(m LedgerImporter) *gin.Engine {
	h := NewLedgerHandler(m)
	return newTestRouter(func(r *gin.Engine) {
		r.POST("/ledger/import", h.Import)
	})
}

func multipartRequest(t *testing.T, field, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "ledger.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/ledger/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestLedgerHandler_Import(t *testing.T) {
	t.Run("multipart upload", func(t *testing.T) {
		m := new(MockLedgerImporter)
		m.On("Import", mock.Anything).Return(&dreapp.ImportResponse{TotalRows: 1, ImportedRows: 1}, nil)

		w := httptest.NewRecorder()
		newLedgerRouter(m).ServeHTTP(w, multipartRequest(t, "file", ledgerCSV))

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, ledgerCSV, m.body)
		assert.Equal(t, float64(1), decode(t, w).Data.(map[string]any)["imported_rows"])
	})

	t.Run("csv body", func(t *testing.T) {
		m := new(MockLedgerImporter)
		m.On("Import", mock.Anything).Return(&dreapp.ImportResponse{TotalRows: 1, ImportedRows: 1}, nil)

		req := httptest.NewRequest(http.MethodPost, "/ledger/import", strings.NewReader(ledgerCSV))
		req.Header.Set("Content-Type", "text/csv; charset=utf-8")
		w := httptest.NewRecorder()
		newLedgerRouter(m).ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, ledgerCSV, m.body)
	})

	t.Run("rejected rows", func(t *testing.T) {
		m := new(MockLedgerImporter)
		m.On("Import", mock.Anything).Return(&dreapp.ImportResponse{
			TotalRows: 2, ErrorRows: 1, TotalErrors: 1,
			Errors: []dreapp.ImportRowError{{Row: 3, Column: "date", Code: csvimport.ErrCodeImportInvalidType, Message: "invalid date"}},
		}, nil)

		w := httptest.NewRecorder()
		newLedgerRouter(m).ServeHTTP(w, multipartRequest(t, "file", ledgerCSV))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decode(t, w)
		assert.Equal(t, "ERR_IMPORT_REJECTED", resp.Error.Code)
		details := resp.Error.Details.(map[string]any)
		assert.Equal(t, float64(1), details["error_rows"])
	})

	t.Run("file error", func(t *testing.T) {
		m := new(MockLedgerImporter)
		m.On("Import", mock.Anything).Return(nil, &csvimport.FileError{Code: csvimport.ErrCodeImportEmptyFile, Message: "no data rows"})

		w := httptest.NewRecorder()
		newLedgerRouter(m).ServeHTTP(w, multipartRequest(t, "file", "account_id,unit_id,date,amount\n"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, csvimport.ErrCodeImportEmptyFile, decode(t, w).Error.Code)
	})

	t.Run("wrong field", func(t *testing.T) {
		m := new(MockLedgerImporter)
		w := httptest.NewRecorder()
		newLedgerRouter(m).ServeHTTP(w, multipartRequest(t, "upload", ledgerCSV))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		m.AssertNotCalled(t, "Import", mock.Anything)
	})
}
