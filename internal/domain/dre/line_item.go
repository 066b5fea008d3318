package dre

import (
	"fmt"
	"slices"
	"strings"
)

// LineItemKind classifies a line of the income statement
type LineItemKind string

const (
	KindRevenue  LineItemKind = "revenue"
	KindExpense  LineItemKind = "expense"
	KindSubtotal LineItemKind = "subtotal"
	KindTotal    LineItemKind = "total"
)

// IsValid returns true if the kind is one of the known kinds
func (k LineItemKind) IsValid() bool {
	switch k {
	case KindRevenue, KindExpense, KindSubtotal, KindTotal:
		return true
	}
	return false
}

// ParseLineItemKind parses a kind name, case-insensitively
func ParseLineItemKind(s string) (LineItemKind, error) {
	k := LineItemKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("unknown line item kind %q", s)
	}
	return k, nil
}

// Template conventions carried in LineItem.Tags
const (
	TagDirectCost      = "direct_cost"
	TagEBITDA          = "ebitda"
	TagDepreciation    = "depreciation"
	TagFinancialResult = "financial_result"
)

// LineItem is one row of a report template.
// ParentCode only groups rows for display; formula references are the
// structural dependencies.
type LineItem struct {
	Code           string       `json:"code" yaml:"code"`
	Name           string       `json:"name" yaml:"name"`
	Description    string       `json:"description,omitempty" yaml:"description,omitempty"`
	Kind           LineItemKind `json:"kind" yaml:"kind"`
	Level          int          `json:"level" yaml:"level"`
	ParentCode     string       `json:"parent_code,omitempty" yaml:"parent_code,omitempty"`
	AccountRefs    []string     `json:"account_refs,omitempty" yaml:"account_refs,omitempty"`
	CostCenterRefs []string     `json:"cost_center_refs,omitempty" yaml:"cost_center_refs,omitempty"`
	Formula        string       `json:"formula,omitempty" yaml:"formula,omitempty"`
	IsCalculated   bool         `json:"is_calculated" yaml:"is_calculated"`
	IsVisible      bool         `json:"is_visible" yaml:"is_visible"`
	Order          int          `json:"order" yaml:"order"`
	Tags           []string     `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// HasTag reports whether the item carries the given tag (case-insensitive)
func (li LineItem) HasTag(tag string) bool {
	return slices.ContainsFunc(li.Tags, func(t string) bool {
		return strings.EqualFold(t, tag)
	})
}

// HasParent reports whether the item is grouped under another item
func (li LineItem) HasParent() bool {
	return li.ParentCode != ""
}

// IsLeaf returns true if the value comes from account aggregation
func (li LineItem) IsLeaf() bool {
	return !li.IsCalculated
}
