package csvimport

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerImporter_Parse(t *testing.T) {
	ctx := context.Background()

	t.Run("valid file with localized headers", func(t *testing.T) {
		input := strings.Join([]string{
			"conta;unidade;centro_custo;data;valor;inativo",
			"3.1.01;U1;CC1;2024-01-10;1.500,00;",
			"4.1.01;U1;;15/01/2024;-320,10;sim",
			"4.1.02;U2;CC2;2024-01-20;(50,00);1",
		}, "\n")

		res, err := NewLedgerImporter().Parse(ctx, strings.NewReader(input))
		require.NoError(t, err)

		// "sim" is not a recognised boolean
		assert.Equal(t, 3, res.TotalRows)
		assert.Equal(t, 2, res.ValidRows)
		assert.Equal(t, 1, res.ErrorRows)
		assert.False(t, res.IsValid())
		require.Len(t, res.Errors, 1)
		assert.Equal(t, ColInactive, res.Errors[0].Column)
		assert.Equal(t, 3, res.Errors[0].Row)

		first := res.Records[0]
		assert.Equal(t, "3.1.01", first.AccountID)
		assert.Equal(t, "U1", first.UnitID)
		assert.Equal(t, "CC1", first.CostCenterID)
		assert.True(t, decimal.NewFromInt(1500).Equal(first.Amount))
		assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), first.Date)
		assert.False(t, first.Inactive)

		second := res.Records[1]
		assert.True(t, decimal.NewFromInt(-50).Equal(second.Amount))
		assert.True(t, second.Inactive)
	})

	t.Run("whole amount with a thousands dot is rejected", func(t *testing.T) {
		input := strings.Join([]string{
			"conta;unidade;data;valor",
			"3.1.01;U1;2024-01-10;1.500",
			"3.1.01;U1;2024-01-11;1.500,00",
		}, "\n")

		res, err := NewLedgerImporter().Parse(ctx, strings.NewReader(input))
		require.NoError(t, err)
		assert.False(t, res.IsValid())
		require.Len(t, res.Errors, 1)
		assert.Equal(t, ColAmount, res.Errors[0].Column)
		assert.Equal(t, 2, res.Errors[0].Row)
		require.Len(t, res.Records, 1)
		assert.True(t, decimal.NewFromInt(1500).Equal(res.Records[0].Amount))
	})

	t.Run("missing columns", func(t *testing.T) {
		_, err := NewLedgerImporter().Parse(ctx, strings.NewReader("account_id,amount\nA1,10\n"))
		var fe *FileError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, ErrCodeImportMissingHeader, fe.Code)
		assert.Contains(t, fe.Message, "unit_id")
		assert.Contains(t, fe.Message, "date")
	})

	t.Run("header only", func(t *testing.T) {
		_, err := NewLedgerImporter().Parse(ctx, strings.NewReader("account_id,unit_id,date,amount\n"))
		var fe *FileError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, ErrCodeImportEmptyFile, fe.Code)
		assert.ErrorIs(t, err, ErrNoDataRows)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := NewLedgerImporter().Parse(ctx, strings.NewReader(""))
		var fe *FileError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, ErrCodeImportEmptyFile, fe.Code)
	})

	t.Run("row limit", func(t *testing.T) {
		input := "account_id,unit_id,date,amount\nA,U,2024-01-01,1\nA,U,2024-01-02,2\nA,U,2024-01-03,3\n"
		_, err := NewLedgerImporter(WithMaxRows(2)).Parse(ctx, strings.NewReader(input))
		var fe *FileError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, ErrCodeImportTooManyRows, fe.Code)
	})

	t.Run("size limit", func(t *testing.T) {
		input := "account_id,unit_id,date,amount\n" + strings.Repeat("A,U,2024-01-01,1\n", 100)
		_, err := NewLedgerImporter(WithMaxFileSize(64)).Parse(ctx, strings.NewReader(input))
		assert.ErrorIs(t, err, ErrFileTooLarge)
	})

	t.Run("exact size fits", func(t *testing.T) {
		input := "account_id,unit_id,date,amount\nA,U,2024-01-01,1\n"
		res, err := NewLedgerImporter(WithMaxFileSize(int64(len(input)))).Parse(ctx, strings.NewReader(input))
		require.NoError(t, err)
		assert.Equal(t, 1, res.ValidRows)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewLedgerImporter().Parse(cctx, strings.NewReader("account_id,unit_id,date,amount\nA,U,2024-01-01,1\n"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
