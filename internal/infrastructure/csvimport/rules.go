package csvimport

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FieldType is the expected type of a column
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeDecimal FieldType = "decimal"
	TypeDate    FieldType = "date"
	TypeBool    FieldType = "bool"
)

// DateLayouts are tried in order when parsing dates
var DateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"02/01/2006",
}

// FieldRule defines how one column is validated
type FieldRule struct {
	Column    string
	Type      FieldType
	Required  bool
	MaxLength int
}

// FieldRuleBuilder builds field rules fluently
type FieldRuleBuilder struct {
	rule FieldRule
}

// Field starts a rule for column
func Field(column string) *FieldRuleBuilder {
	return &FieldRuleBuilder{rule: FieldRule{Column: column, Type: TypeString}}
}

func (b *FieldRuleBuilder) Required() *FieldRuleBuilder {
	b.rule.Required = true
	return b
}

func (b *FieldRuleBuilder) Decimal() *FieldRuleBuilder {
	b.rule.Type = TypeDecimal
	return b
}

func (b *FieldRuleBuilder) Date() *FieldRuleBuilder {
	b.rule.Type = TypeDate
	return b
}

func (b *FieldRuleBuilder) Bool() *FieldRuleBuilder {
	b.rule.Type = TypeBool
	return b
}

func (b *FieldRuleBuilder) MaxLength(n int) *FieldRuleBuilder {
	b.rule.MaxLength = n
	return b
}

func (b *FieldRuleBuilder) Build() FieldRule {
	return b.rule
}

// FieldValidator checks rows against rules, in rule order
type FieldValidator struct {
	rules  []FieldRule
	errors *ErrorCollection
}

// NewFieldValidator creates a validator sharing the given error collection
func NewFieldValidator(rules []FieldRule, errs *ErrorCollection) *FieldValidator {
	return &FieldValidator{rules: rules, errors: errs}
}

// ValidateRow validates a row and reports whether it is clean
func (v *FieldValidator) ValidateRow(row *Row) bool {
	ok := true
	for _, rule := range v.rules {
		value := row.Get(rule.Column)
		if value == "" {
			if rule.Required {
				v.errors.addRequired(row.LineNumber, rule.Column)
				ok = false
			}
			continue
		}
		if err := validateType(value, rule.Type); err != nil {
			v.errors.addType(row.LineNumber, rule.Column, rule.Type, value)
			ok = false
			continue
		}
		if rule.MaxLength > 0 && len(value) > rule.MaxLength {
			v.errors.Add(RowError{Row: row.LineNumber, Column: rule.Column, Code: ErrCodeImportInvalidLength,
				Message: fmt.Sprintf("length must be at most %d", rule.MaxLength), Value: value})
			ok = false
		}
	}
	return ok
}

func validateType(value string, t FieldType) error {
	switch t {
	case TypeDecimal:
		_, err := ParseAmount(value)
		return err
	case TypeDate:
		_, err := ParseDate(value)
		return err
	case TypeBool:
		_, err := ParseBool(value)
		return err
	}
	return nil
}

// ambiguousAmount matches "1.500" and "1,500": a single separator followed by
// exactly three digits reads as a thousands group in one locale and as a
// decimal fraction in another.
var ambiguousAmount = regexp.MustCompile(`^[-+]?[1-9][0-9]{0,2}[.,][0-9]{3}$`)

// ParseAmount parses a decimal written with either '.' or ',' as the
// decimal separator. When both appear the last one is the decimal
// separator and the other groups thousands. A lone separator before exactly
// three digits is rejected; write "1500", "1.500,00" or "1,500.00" instead.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if ambiguousAmount.MatchString(s) {
		return decimal.Zero, fmt.Errorf("ambiguous amount %q: separator may group thousands or mark decimals", s)
	}

	dot := strings.LastIndexByte(s, '.')
	comma := strings.LastIndexByte(s, ',')
	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case dot >= 0 && comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			return decimal.Zero, fmt.Errorf("ambiguous amount %q", s)
		}
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// ParseDate parses a date with the first matching layout in DateLayouts
func ParseDate(s string) (time.Time, error) {
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// ParseBool accepts true/false, 1/0, yes/no and y/n, case-insensitively
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y":
		return true, nil
	case "false", "0", "no", "n":
		return false, nil
	}
	return strconv.ParseBool(s)
}
