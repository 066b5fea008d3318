package dre

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormula_Evaluate(t *testing.T) {
	values := map[string]decimal.Decimal{
		"A":    d("100"),
		"B":    d("30"),
		"3.01": d("12.5"),
		"X-1":  d("4"),
		"Z":    d("0"),
	}

	tests := []struct {
		name    string
		formula string
		want    string
	}{
		{"subtraction", "[A] - [B]", "70"},
		{"addition of dotted codes", "[3.01] + [3.01]", "25"},
		{"precedence", "[A] - [B] * 2", "40"},
		{"parentheses", "([A] - [B]) * 2", "140"},
		{"left associative minus", "[A] - [B] - [B]", "40"},
		{"left associative division", "[A] / 2 / 5", "10"},
		{"unary minus", "-[A] + [B]", "-70"},
		{"double unary minus", "--[B]", "30"},
		{"unary minus on group", "-([A] - [B])", "-70"},
		{"decimal literal", "[A] * 0.15", "15"},
		{"code with dash", "[X-1] * [X-1]", "16"},
		{"no whitespace", "[A]-[B]*2", "40"},
		{"number only", "42", "42"},
		{"margin", "[B] / [A] * 100", "30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFormula(tt.formula)
			require.NoError(t, err)

			got, err := f.Evaluate(values)
			require.NoError(t, err)
			assert.True(t, d(tt.want).Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}

func TestParseFormula_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name    string
		formula string
		pos     int
	}{
		{"empty", "   ", 0},
		{"dangling operator", "[A] +", 5},
		{"unclosed paren", "([A] + 1", 8},
		{"extra paren", "[A] + 1)", 7},
		{"unterminated reference", "[A+1", 0},
		{"empty reference", "[] + 1", 0},
		{"whitespace in reference", "[A B]", 2},
		{"nested bracket", "[A[B]]", 2},
		{"stray closing bracket", "]", 0},
		{"letters outside brackets", "A + 1", 0},
		{"trailing dot", "1. + 2", 0},
		{"leading dot", ".5 + 2", 0},
		{"thousands separator", "1,000", 1},
		{"two operands", "[A] [B]", 4},
		{"percent sign", "[A] % 2", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFormula(tt.formula)
			require.Error(t, err)

			var syn *FormulaSyntaxError
			require.True(t, errors.As(err, &syn), "expected FormulaSyntaxError, got %T", err)
			assert.Equal(t, tt.pos, syn.Pos)
			assert.Equal(t, tt.formula, syn.Formula)
		})
	}
}

func TestFormula_References(t *testing.T) {
	f := MustParseFormula("([B] + [A]) / [B] - -[C] * 2")
	assert.Equal(t, []string{"B", "A", "C"}, f.References())

	refs := f.References()
	refs[0] = "mutated"
	assert.Equal(t, "B", f.References()[0], "References must return a copy")

	assert.Empty(t, MustParseFormula("1 + 2").References())
}

func TestFormula_DivisionByZero(t *testing.T) {
	values := map[string]decimal.Decimal{"A": d("100"), "B": d("0")}

	t.Run("returns zero and sentinel", func(t *testing.T) {
		got, err := MustParseFormula("[A] / [B]").Evaluate(values)
		assert.ErrorIs(t, err, ErrDivisionByZero)
		assert.True(t, got.IsZero())
	})

	t.Run("nested division poisons whole formula", func(t *testing.T) {
		got, err := MustParseFormula("[A] + 1 / ([B] * 3)").Evaluate(values)
		assert.ErrorIs(t, err, ErrDivisionByZero)
		assert.True(t, got.IsZero())
	})

	t.Run("literal zero divisor", func(t *testing.T) {
		_, err := MustParseFormula("[A] / 0").Evaluate(values)
		assert.ErrorIs(t, err, ErrDivisionByZero)
	})
}

func TestFormula_UnresolvedReference(t *testing.T) {
	_, err := MustParseFormula("[A] + [MISSING]").Evaluate(map[string]decimal.Decimal{"A": d("1")})
	require.Error(t, err)

	var evalErr *EvalError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, EvalErrUnresolvedReference, evalErr.Kind)
	assert.Equal(t, "MISSING", evalErr.Code)
	assert.Contains(t, evalErr.Error(), "[MISSING]")
}

func TestMustParseFormula_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParseFormula("[A] +") })
}
