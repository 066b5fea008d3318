package dre

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(month time.Month, dayOfMonth int) time.Time {
	return time.Date(2026, month, dayOfMonth, 12, 0, 0, 0, time.UTC)
}

func monthPeriod(month time.Month) Period {
	start := time.Date(2026, month, 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

func leaf(code string, kind LineItemKind, order int, accounts ...string) LineItem {
	return LineItem{
		Code:        code,
		Name:        "Item " + code,
		Kind:        kind,
		AccountRefs: accounts,
		IsVisible:   true,
		Order:       order,
	}
}

func calc(code string, kind LineItemKind, order int, formula string) LineItem {
	return LineItem{
		Code:         code,
		Name:         "Item " + code,
		Kind:         kind,
		Formula:      formula,
		IsCalculated: true,
		IsVisible:    true,
		Order:        order,
	}
}

func withParent(it LineItem, parent string) LineItem {
	it.ParentCode = parent
	it.Level = 1
	return it
}

func withTags(it LineItem, tags ...string) LineItem {
	it.Tags = tags
	return it
}

func rec(account string, when time.Time, amount string) AccountRecord {
	return AccountRecord{
		AccountID: account,
		UnitID:    "U1",
		Date:      when,
		Amount:    d(amount),
	}
}

func januaryConfig() ReportConfiguration {
	return ReportConfiguration{
		Period:    monthPeriod(time.January),
		Units:     []string{UnitsAll},
		Precision: 2,
		Currency:  "BRL",
	}
}

// sampleTemplate is a small income statement:
// revenue 1500, direct costs 400, expenses 680, net 820
func sampleTemplate() Template {
	return Template{
		Name: "Monthly DRE",
		Items: []LineItem{
			calc("3", KindRevenue, 0, "[3.01] + [3.02]"),
			withParent(leaf("3.01", KindRevenue, 1, "4001"), "3"),
			withParent(leaf("3.02", KindRevenue, 2, "4002"), "3"),
			withTags(leaf("4.01", KindExpense, 10, "5001"), TagDirectCost),
			leaf("4.02", KindExpense, 11, "5002"),
			withTags(leaf("4.03", KindExpense, 12, "5003"), TagDepreciation),
			withTags(leaf("4.04", KindExpense, 13, "5004"), TagFinancialResult),
			calc("GP", KindSubtotal, 20, "[3] - [4.01]"),
			calc("NET", KindTotal, 30, "[3] - [4.01] - [4.02] - [4.03] - [4.04]"),
			calc("NM", KindSubtotal, 31, "[NET] / [3] * 100"),
		},
	}
}

func sampleRecords() []AccountRecord {
	return []AccountRecord{
		rec("4001", day(time.January, 5), "600"),
		rec("4001", day(time.January, 20), "400"),
		rec("4002", day(time.January, 12), "500"),
		rec("5001", day(time.January, 7), "400"),
		rec("5002", day(time.January, 15), "200"),
		rec("5003", day(time.January, 31), "50"),
		rec("5004", day(time.January, 28), "30"),
		// outside the period
		rec("4001", day(time.February, 1), "9999"),
		rec("5002", day(time.December, 31).AddDate(-1, 0, 0), "9999"),
	}
}

// fakeLedger generates a reproducible ledger touching the sample accounts
func fakeLedger(seed uint64, n int) []AccountRecord {
	f := gofakeit.New(seed)
	accounts := []string{"4001", "4002", "5001", "5002", "5003", "5004", "9999"}
	units := []string{"U1", "U2", "U3"}
	centers := []string{"CC-ADM", "CC-OPS", "CC-SALES"}
	start := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	out := make([]AccountRecord, 0, n)
	for range n {
		cents := f.IntRange(-50_000, 500_000)
		out = append(out, AccountRecord{
			AccountID:    f.RandomString(accounts),
			UnitID:       f.RandomString(units),
			CostCenterID: f.RandomString(centers),
			Date:         f.DateRange(start, end).UTC(),
			Amount:       decimal.New(int64(cents), -2),
			Inactive:     f.IntRange(0, 20) == 0,
		})
	}
	return out
}

func codesOf(items []LineItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Code
	}
	return out
}

func codeN(i int) string {
	return fmt.Sprintf("C%03d", i)
}
