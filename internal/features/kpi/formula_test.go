package kpi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	e := NewEvaluator()

	tests := []struct {
		name    string
		formula string
		vars    map[string]float64
		want    float64
	}{
		{"ratio", "revenue / employees", map[string]float64{"revenue": 110000, "employees": 10}, 11000},
		{"integer division does not truncate", "7 / 2", nil, 3.5},
		{"precedence", "a + b * 2", map[string]float64{"a": 1, "b": 3}, 7},
		{"parentheses", "(a + b) * 2", map[string]float64{"a": 1, "b": 3}, 8},
		{"unary minus", "-a + 10", map[string]float64{"a": 4}, 6},
		{"round with places", "round(a / b, 2)", map[string]float64{"a": 10, "b": 3}, 3.33},
		{"nested functions", "max(abs(a), sqrt(b), pow(2, 3))", map[string]float64{"a": -5, "b": 16}, 8},
		{"min", "min(a, b)", map[string]float64{"a": 5, "b": 2}, 2},
		{"percentage", "(converted / visitors) * 100", map[string]float64{"converted": 25, "visitors": 200}, 12.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFormula(tt.formula)
			require.NoError(t, err)
			got, err := e.Evaluate(context.Background(), f, tt.vars)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	e := NewEvaluator()

	tests := []struct {
		name    string
		formula string
		vars    map[string]float64
	}{
		{"division by zero", "a / b", map[string]float64{"a": 1, "b": 0}},
		{"sqrt of negative", "sqrt(a)", map[string]float64{"a": -1}},
		{"unbound alias", "a + b", map[string]float64{"a": 1}},
		{"wrong arity", "abs(a, a)", map[string]float64{"a": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFormula(tt.formula)
			require.NoError(t, err)
			_, err = e.Evaluate(context.Background(), f, tt.vars)
			assert.Error(t, err)
		})
	}
}

func TestParseFormulaRejects(t *testing.T) {
	for _, src := range []string{
		"",
		"a +* (b",
		"a)",
		"unknown(a)",
		"a % b",
		"a; b",
		"__kpi_result",
		"1..2",
		"a.b",
		`"text"`,
		"true",
		"len + 1",
		"undefined * 2",
		"1e",
		"2e+x",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := ParseFormula(src)
			assert.Error(t, err)
		})
	}
}

func TestParseFormulaAliases(t *testing.T) {
	f, err := ParseFormula("round(revenue / employees) + revenue * 0.1")
	require.NoError(t, err)
	assert.Equal(t, []string{"employees", "revenue"}, f.Aliases())
}

func TestParseFormulaExponent(t *testing.T) {
	f, err := ParseFormula("1e5 + a * 2.5E-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, f.Aliases())

	got, err := NewEvaluator().Evaluate(context.Background(), f, map[string]float64{"a": 4})
	require.NoError(t, err)
	assert.InDelta(t, 100001, got, 1e-9)
}

func TestValidate(t *testing.T) {
	e := NewEvaluator()

	t.Run("valid", func(t *testing.T) {
		v := e.Validate("revenue / employees", []KpiSource{{Alias: "revenue"}, {Alias: "employees"}})
		assert.True(t, v.Valid)
		assert.Empty(t, v.Errors)
	})

	t.Run("missing and unused aliases", func(t *testing.T) {
		v := e.Validate("revenue / headcount", []KpiSource{{Alias: "revenue"}, {Alias: "employees"}})
		assert.False(t, v.Valid)
		assert.Equal(t, []string{"headcount"}, v.MissingAliases)
		assert.Equal(t, []string{"employees"}, v.UnusedAliases)
	})

	t.Run("syntax error", func(t *testing.T) {
		v := e.Validate("revenue +", []KpiSource{{Alias: "revenue"}})
		assert.False(t, v.Valid)
		assert.NotEmpty(t, v.Errors)
	})

	t.Run("duplicate alias", func(t *testing.T) {
		v := e.Validate("a", []KpiSource{{Alias: "a"}, {Alias: "a"}})
		assert.False(t, v.Valid)
		assert.Contains(t, v.Errors[0], "more than once")
	})

	t.Run("reserved alias", func(t *testing.T) {
		for _, alias := range []string{"true", "false", "undefined", "len", "string", "int", "float", "time", "format", "range"} {
			v := e.Validate(alias, []KpiSource{{Alias: alias}})
			assert.False(t, v.Valid, alias)
			assert.NotEmpty(t, v.Errors, alias)
		}
	})

	t.Run("exponent is not an alias", func(t *testing.T) {
		v := e.Validate("1e5 + a", []KpiSource{{Alias: "a"}})
		assert.True(t, v.Valid)
		assert.Empty(t, v.MissingAliases)
	})

	t.Run("alias shadows function", func(t *testing.T) {
		v := e.Validate("abs(1)", []KpiSource{{Alias: "abs"}})
		assert.False(t, v.Valid)
	})
}
