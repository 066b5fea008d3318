package dre

import (
	"fmt"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustValidate(t *testing.T, tpl Template) *ValidTemplate {
	t.Helper()
	vt, err := Validate(tpl)
	require.NoError(t, err)
	return vt
}

func TestResolve_SampleTemplate(t *testing.T) {
	order, err := Resolve(mustValidate(t, sampleTemplate()))
	require.NoError(t, err)

	assert.Equal(t, EvaluationOrder{
		"3.01", "3.02", "3", "4.01", "4.02", "4.03", "4.04", "GP", "NET", "NM",
	}, order)
}

func TestResolve_LeavesKeepDeclarationOrder(t *testing.T) {
	tpl := Template{Items: []LineItem{
		leaf("Z", KindRevenue, 3, "1"),
		leaf("A", KindRevenue, 1, "2"),
		leaf("M", KindExpense, 2, "3"),
	}}
	order, err := Resolve(mustValidate(t, tpl))
	require.NoError(t, err)
	assert.Equal(t, EvaluationOrder{"Z", "A", "M"}, order)
}

func TestResolve_CalculatedDeclaredBeforeDependencies(t *testing.T) {
	tpl := Template{Items: []LineItem{
		calc("TOTAL", KindTotal, 9, "[SUB] + [C]"),
		calc("SUB", KindSubtotal, 5, "[A] * 2"),
		leaf("A", KindRevenue, 1, "1"),
		leaf("C", KindExpense, 2, "2"),
	}}
	order, err := Resolve(mustValidate(t, tpl))
	require.NoError(t, err)
	assert.Equal(t, EvaluationOrder{"A", "SUB", "C", "TOTAL"}, order)
	assert.Equal(t, 3, order.Position("TOTAL"))
	assert.Equal(t, -1, order.Position("missing"))
}

func TestResolve_TopologicalProperty(t *testing.T) {
	for seed := uint64(1); seed <= 25; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			f := gofakeit.New(seed)
			n := f.IntRange(5, 40)

			// item i may only reference items with a smaller index, so the graph is acyclic
			items := make([]LineItem, n)
			for i := range n {
				if i < 2 || f.Bool() {
					items[i] = leaf(codeN(i), KindRevenue, i, "acc")
					continue
				}
				refCount := f.IntRange(1, min(4, i))
				refs := make([]string, refCount)
				for r := range refCount {
					refs[r] = "[" + codeN(f.IntRange(0, i-1)) + "]"
				}
				items[i] = calc(codeN(i), KindSubtotal, i, strings.Join(refs, " + "))
			}
			f.ShuffleAnySlice(items)

			vt := mustValidate(t, Template{Items: items})
			order, err := Resolve(vt)
			require.NoError(t, err)
			require.Len(t, order, n)
			assert.ElementsMatch(t, codesOf(items), []string(order))

			for _, it := range items {
				formula := vt.Formula(it.Code)
				if formula == nil {
					continue
				}
				for _, ref := range formula.References() {
					assert.Less(t, order.Position(ref), order.Position(it.Code),
						"%s must come after %s", it.Code, ref)
				}
			}
		})
	}
}

func TestResolve_CyclicDependency(t *testing.T) {
	t.Run("two item cycle", func(t *testing.T) {
		tpl := Template{Items: []LineItem{
			calc("X", KindSubtotal, 1, "[Y]"),
			calc("Y", KindSubtotal, 2, "[X]"),
		}}
		_, err := Resolve(mustValidate(t, tpl))
		ve := requireValidationError(t, err, ErrKindCyclicDependency)
		assert.ElementsMatch(t, []string{"X", "Y"}, ve.Codes)
		assert.ErrorIs(t, err, ErrCyclicDependency)
	})

	t.Run("dependents of a cycle are not reported", func(t *testing.T) {
		tpl := Template{Items: []LineItem{
			leaf("A", KindRevenue, 0, "1"),
			calc("X", KindSubtotal, 1, "[Y] + [A]"),
			calc("Y", KindSubtotal, 2, "[Z]"),
			calc("Z", KindSubtotal, 3, "[X]"),
			calc("DOWNSTREAM", KindTotal, 4, "[X] * 2"),
			calc("FURTHER", KindTotal, 5, "[DOWNSTREAM] + 1"),
			calc("OK", KindTotal, 6, "[A] + 1"),
		}}
		_, err := Resolve(mustValidate(t, tpl))
		ve := requireValidationError(t, err, ErrKindCyclicDependency)
		assert.Equal(t, []string{"X", "Y", "Z"}, ve.Codes)
	})

	t.Run("self reference", func(t *testing.T) {
		tpl := Template{Items: []LineItem{calc("S", KindTotal, 1, "[S] + 1")}}
		_, err := Resolve(mustValidate(t, tpl))
		ve := requireValidationError(t, err, ErrKindCyclicDependency)
		assert.Equal(t, []string{"S"}, ve.Codes)
	})

	t.Run("two independent cycles", func(t *testing.T) {
		tpl := Template{Items: []LineItem{
			calc("A", KindSubtotal, 1, "[B]"),
			calc("B", KindSubtotal, 2, "[A]"),
			calc("C", KindSubtotal, 3, "[D] / 2"),
			calc("D", KindSubtotal, 4, "[C] * 2"),
		}}
		_, err := Resolve(mustValidate(t, tpl))
		ve := requireValidationError(t, err, ErrKindCyclicDependency)
		assert.Equal(t, []string{"A", "B", "C", "D"}, ve.Codes)
	})
}
