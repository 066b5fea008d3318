package fixtures

import "github.com/erp/dre/internal/domain/dre"

// Accounts referenced by StandardTemplate
const (
	AccountProductSales   = "3.1.01"
	AccountServiceSales   = "3.1.02"
	AccountSalesTaxes     = "3.2.01"
	AccountCostOfGoods    = "4.1.01"
	AccountAdministrative = "4.2.01"
	AccountSelling        = "4.2.02"
	AccountDepreciation   = "4.3.01"
	AccountFinancial      = "4.4.01"
)

// Cost centers used by generated ledgers
const (
	CostCenterAdmin      = "CC-ADM"
	CostCenterOperations = "CC-OPS"
	CostCenterSales      = "CC-SALES"
)

// StandardTemplate is a conventional income statement: gross revenue,
// deductions, cost of goods, operating expenses, EBITDA, depreciation,
// financial result and net profit with its margin.
func StandardTemplate() dre.Template {
	leaf := func(code, name string, kind dre.LineItemKind, order int, accounts ...string) dre.LineItem {
		return dre.LineItem{Code: code, Name: name, Kind: kind, AccountRefs: accounts, IsVisible: true, Order: order}
	}
	calc := func(code, name string, kind dre.LineItemKind, order int, formula string) dre.LineItem {
		return dre.LineItem{Code: code, Name: name, Kind: kind, Formula: formula, IsCalculated: true, IsVisible: true, Order: order}
	}
	child := func(it dre.LineItem, parent string) dre.LineItem {
		it.ParentCode = parent
		it.Level = 1
		return it
	}
	tagged := func(it dre.LineItem, tags ...string) dre.LineItem {
		it.Tags = tags
		return it
	}

	return dre.Template{
		Name:        "Standard DRE",
		Description: "Income statement with EBITDA and net margin",
		Visibility:  dre.VisibilityPublic,
		Tags:        []string{"standard"},
		Items: []dre.LineItem{
			calc("REV", "Gross revenue", dre.KindRevenue, 10, "[REV.PRD] + [REV.SRV]"),
			child(leaf("REV.PRD", "Product sales", dre.KindRevenue, 11, AccountProductSales), "REV"),
			child(leaf("REV.SRV", "Service sales", dre.KindRevenue, 12, AccountServiceSales), "REV"),
			leaf("DED", "Sales deductions", dre.KindExpense, 20, AccountSalesTaxes),
			calc("NREV", "Net revenue", dre.KindSubtotal, 25, "[REV] - [DED]"),
			tagged(leaf("COGS", "Cost of goods sold", dre.KindExpense, 30, AccountCostOfGoods), dre.TagDirectCost),
			calc("GP", "Gross profit", dre.KindSubtotal, 35, "[NREV] - [COGS]"),
			calc("OPEX", "Operating expenses", dre.KindExpense, 40, "[OPEX.ADM] + [OPEX.SAL]"),
			child(leaf("OPEX.ADM", "Administrative", dre.KindExpense, 41, AccountAdministrative), "OPEX"),
			child(leaf("OPEX.SAL", "Selling", dre.KindExpense, 42, AccountSelling), "OPEX"),
			calc(dre.EBITDACode, "EBITDA", dre.KindSubtotal, 50, "[GP] - [OPEX]"),
			tagged(leaf("DEP", "Depreciation", dre.KindExpense, 60, AccountDepreciation), dre.TagDepreciation),
			tagged(leaf("FIN", "Financial result", dre.KindExpense, 70, AccountFinancial), dre.TagFinancialResult),
			calc("NET", "Net profit", dre.KindTotal, 80, "[EBITDA] - [DEP] - [FIN]"),
			calc("NM", "Net margin %", dre.KindSubtotal, 90, "[NET] / [REV] * 100"),
		},
	}
}
