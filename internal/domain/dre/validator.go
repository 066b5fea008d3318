package dre

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
)

// ValidTemplate is a template that passed Validate. Downstream stages rely on
// its codes being unique, its parents resolving and its formulas compiling.
type ValidTemplate struct {
	name     string
	items    []LineItem
	index    map[string]int
	formulas map[string]*Formula
}

// Name returns the template name
func (vt *ValidTemplate) Name() string {
	return vt.name
}

// Items returns the template rows in declaration order
func (vt *ValidTemplate) Items() []LineItem {
	out := make([]LineItem, len(vt.items))
	for i, it := range vt.items {
		out[i] = cloneLineItem(it)
	}
	return out
}

// Len returns the number of rows
func (vt *ValidTemplate) Len() int {
	return len(vt.items)
}

// Item returns the row with the given code
func (vt *ValidTemplate) Item(code string) (LineItem, bool) {
	i, ok := vt.index[code]
	if !ok {
		return LineItem{}, false
	}
	return cloneLineItem(vt.items[i]), true
}

// Formula returns the compiled formula of a calculated row, or nil
func (vt *ValidTemplate) Formula(code string) *Formula {
	return vt.formulas[code]
}

// Validate checks the structure of a template and compiles its formulas.
// The first failing check is returned as a *ValidationError.
func Validate(t Template) (*ValidTemplate, error) {
	items := make([]LineItem, len(t.Items))
	for i, it := range t.Items {
		items[i] = cloneLineItem(it)
	}

	if err := checkRowShape(items); err != nil {
		return nil, err
	}

	index, err := checkDuplicateCodes(items)
	if err != nil {
		return nil, err
	}

	if err := checkParents(items, index); err != nil {
		return nil, err
	}

	formulas, err := compileFormulas(items, index)
	if err != nil {
		return nil, err
	}

	if err := checkDisplayTree(items, index); err != nil {
		return nil, err
	}

	if len(items) == 0 {
		return nil, newValidationError(ErrKindEmptyTemplate, nil, nil, "template has no line items")
	}

	return &ValidTemplate{
		name:     t.Name,
		items:    items,
		index:    index,
		formulas: formulas,
	}, nil
}

// checkRowShape rejects codes that a formula could never reference and unknown kinds
func checkRowShape(items []LineItem) error {
	var bad []string
	var reason string
	for i, it := range items {
		switch {
		case it.Code == "":
			bad = append(bad, fmt.Sprintf("#%d", i+1))
			reason = "line item code cannot be empty"
		case strings.ContainsAny(it.Code, "[] \t\r\n"):
			bad = append(bad, it.Code)
			reason = "line item code cannot contain brackets or whitespace"
		case !it.Kind.IsValid():
			bad = append(bad, it.Code)
			reason = fmt.Sprintf("unknown line item kind %q", it.Kind)
		}
	}
	if len(bad) > 0 {
		return newValidationError(ErrKindInvalidLineItem, bad, nil, reason)
	}
	return nil
}

func checkDuplicateCodes(items []LineItem) (map[string]int, error) {
	index := make(map[string]int, len(items))
	var dups []string
	for i, it := range items {
		if _, exists := index[it.Code]; exists {
			if !slices.Contains(dups, it.Code) {
				dups = append(dups, it.Code)
			}
			continue
		}
		index[it.Code] = i
	}
	if len(dups) > 0 {
		return nil, newValidationError(ErrKindDuplicateCode, dups, nil,
			fmt.Sprintf("line item codes must be unique, repeated: %s", strings.Join(dups, ", ")))
	}
	return index, nil
}

func checkParents(items []LineItem, index map[string]int) error {
	var dangling []string
	for _, it := range items {
		if !it.HasParent() {
			continue
		}
		if _, ok := index[it.ParentCode]; !ok {
			dangling = append(dangling, it.Code)
		}
	}
	if len(dangling) > 0 {
		return newValidationError(ErrKindDanglingParent, dangling, nil,
			"parent code does not match any line item")
	}
	return nil
}

func compileFormulas(items []LineItem, index map[string]int) (map[string]*Formula, error) {
	formulas := make(map[string]*Formula)

	var malformed []string
	var firstSyntaxErr string
	for _, it := range items {
		switch {
		case it.IsCalculated && strings.TrimSpace(it.Formula) == "":
			malformed = append(malformed, it.Code)
			if firstSyntaxErr == "" {
				firstSyntaxErr = fmt.Sprintf("%s: calculated line item has no formula", it.Code)
			}
		case !it.IsCalculated && it.Formula != "":
			malformed = append(malformed, it.Code)
			if firstSyntaxErr == "" {
				firstSyntaxErr = fmt.Sprintf("%s: formula set on a line item that is not calculated", it.Code)
			}
		case it.IsCalculated:
			f, err := ParseFormula(it.Formula)
			if err != nil {
				malformed = append(malformed, it.Code)
				if firstSyntaxErr == "" {
					var syn *FormulaSyntaxError
					if errors.As(err, &syn) {
						firstSyntaxErr = fmt.Sprintf("%s: %s at position %d", it.Code, syn.Msg, syn.Pos)
					} else {
						firstSyntaxErr = fmt.Sprintf("%s: %v", it.Code, err)
					}
				}
				continue
			}
			formulas[it.Code] = f
		}
	}
	if len(malformed) > 0 {
		return nil, newValidationError(ErrKindMalformedFormula, malformed, nil, firstSyntaxErr)
	}

	var offending, unknown []string
	var hints []string
	for _, it := range items {
		f, ok := formulas[it.Code]
		if !ok {
			continue
		}
		for _, ref := range f.References() {
			if _, exists := index[ref]; exists {
				continue
			}
			if !slices.Contains(offending, it.Code) {
				offending = append(offending, it.Code)
			}
			if !slices.Contains(unknown, ref) {
				unknown = append(unknown, ref)
				if s := suggestCode(ref, items); s != "" {
					hints = append(hints, fmt.Sprintf("[%s] (did you mean [%s]?)", ref, s))
				} else {
					hints = append(hints, fmt.Sprintf("[%s]", ref))
				}
			}
		}
	}
	if len(unknown) > 0 {
		return nil, newValidationError(ErrKindUnknownFormulaReference, offending, unknown,
			"formula references unknown line items: "+strings.Join(hints, ", "))
	}
	return formulas, nil
}

// suggestCode returns the closest existing code, if it is close enough to be a typo
func suggestCode(ref string, items []LineItem) string {
	best := ""
	bestDist := -1
	for _, it := range items {
		d := levenshtein.ComputeDistance(strings.ToLower(ref), strings.ToLower(it.Code))
		if bestDist < 0 || d < bestDist {
			best, bestDist = it.Code, d
		}
	}
	limit := max(2, len(ref)/3)
	if bestDist < 0 || bestDist > limit {
		return ""
	}
	return best
}

// checkDisplayTree walks every parent chain with a visited set and fails on revisit
func checkDisplayTree(items []LineItem, index map[string]int) error {
	const (
		unvisited = iota
		inPath
		done
	)
	state := make([]int, len(items))
	inCycle := make([]bool, len(items))

	for start := range items {
		if state[start] != unvisited {
			continue
		}
		var path []int
		cur := start
		for {
			if state[cur] == done {
				break
			}
			if state[cur] == inPath {
				// everything from the first occurrence of cur in path is a cycle
				for j := slices.Index(path, cur); j < len(path); j++ {
					inCycle[path[j]] = true
				}
				break
			}
			state[cur] = inPath
			path = append(path, cur)
			if !items[cur].HasParent() {
				break
			}
			cur = index[items[cur].ParentCode]
		}
		for _, p := range path {
			state[p] = done
		}
	}

	var codes []string
	for i, c := range inCycle {
		if c {
			codes = append(codes, items[i].Code)
		}
	}
	if len(codes) > 0 {
		return newValidationError(ErrKindCyclicDependency, codes, nil,
			"parent/child display tree contains a cycle")
	}
	return nil
}

func cloneLineItem(it LineItem) LineItem {
	it.AccountRefs = slices.Clone(it.AccountRefs)
	it.CostCenterRefs = slices.Clone(it.CostCenterRefs)
	it.Tags = slices.Clone(it.Tags)
	return it
}
