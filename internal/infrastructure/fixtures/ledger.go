// Package fixtures generates reproducible sample data: a standard income
// statement template and fake ledgers that exercise it.
package fixtures

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/erp/dre/internal/domain/dre"
	"github.com/erp/dre/internal/infrastructure/csvimport"
	"github.com/shopspring/decimal"
)

// Account describes how amounts are drawn for one ledger account
type Account struct {
	ID       string
	MinCents int
	MaxCents int
	// chance in percent that a movement is a reversal (negated amount)
	ReversalPct int
}

// DefaultAccounts matches the accounts referenced by StandardTemplate
var DefaultAccounts = []Account{
	{ID: AccountProductSales, MinCents: 50_000, MaxCents: 2_500_000, ReversalPct: 3},
	{ID: AccountServiceSales, MinCents: 20_000, MaxCents: 900_000, ReversalPct: 3},
	{ID: AccountSalesTaxes, MinCents: 5_000, MaxCents: 200_000},
	{ID: AccountCostOfGoods, MinCents: 30_000, MaxCents: 1_200_000, ReversalPct: 2},
	{ID: AccountAdministrative, MinCents: 10_000, MaxCents: 300_000},
	{ID: AccountSelling, MinCents: 10_000, MaxCents: 250_000},
	{ID: AccountDepreciation, MinCents: 5_000, MaxCents: 60_000},
	{ID: AccountFinancial, MinCents: 1_000, MaxCents: 80_000, ReversalPct: 20},
}

// LedgerOptions controls ledger generation. Zero values take defaults.
type LedgerOptions struct {
	Seed        uint64
	Count       int
	Start       time.Time
	End         time.Time
	Units       []string
	CostCenters []string
	Accounts    []Account
	// chance in percent that a record is flagged inactive
	InactivePct int
}

func (o *LedgerOptions) applyDefaults() {
	if o.Count <= 0 {
		o.Count = 500
	}
	if o.Start.IsZero() {
		o.Start = time.Date(time.Now().Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if o.End.IsZero() || !o.End.After(o.Start) {
		o.End = o.Start.AddDate(0, 3, 0)
	}
	if len(o.Units) == 0 {
		o.Units = []string{"U1", "U2", "U3"}
	}
	if len(o.CostCenters) == 0 {
		o.CostCenters = []string{CostCenterAdmin, CostCenterOperations, CostCenterSales}
	}
	if len(o.Accounts) == 0 {
		o.Accounts = DefaultAccounts
	}
}

// Ledger returns opts.Count records. The same seed always yields the same
// ledger. Dates fall in [Start, End) at day granularity, in UTC.
func Ledger(opts LedgerOptions) []dre.AccountRecord {
	opts.applyDefaults()
	f := gofakeit.New(opts.Seed)

	days := int(opts.End.Sub(opts.Start).Hours() / 24)
	if days < 1 {
		days = 1
	}

	out := make([]dre.AccountRecord, 0, opts.Count)
	for range opts.Count {
		acct := opts.Accounts[f.IntRange(0, len(opts.Accounts)-1)]
		cents := int64(f.IntRange(acct.MinCents, acct.MaxCents))
		if acct.ReversalPct > 0 && f.IntRange(1, 100) <= acct.ReversalPct {
			cents = -cents
		}
		out = append(out, dre.AccountRecord{
			AccountID:    acct.ID,
			UnitID:       f.RandomString(opts.Units),
			CostCenterID: f.RandomString(opts.CostCenters),
			Date:         opts.Start.AddDate(0, 0, f.IntRange(0, days-1)),
			Amount:       decimal.New(cents, -2),
			Inactive:     opts.InactivePct > 0 && f.IntRange(1, 100) <= opts.InactivePct,
		})
	}
	return out
}

// WriteCSV writes records in the column layout read by csvimport
func WriteCSV(w io.Writer, records []dre.AccountRecord) error {
	cw := csv.NewWriter(w)
	header := []string{
		csvimport.ColAccount, csvimport.ColUnit, csvimport.ColCostCenter,
		csvimport.ColDate, csvimport.ColAmount, csvimport.ColInactive,
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.AccountID,
			r.UnitID,
			r.CostCenterID,
			r.Date.UTC().Format("2006-01-02"),
			r.Amount.StringFixed(2),
			fmt.Sprintf("%t", r.Inactive),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
