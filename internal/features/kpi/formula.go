package kpi

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/d5/tengo/v2"
)

var aliasPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reservedNames are tengo keywords and builtins; a variable with one of these
// names never reaches the script as a number.
var reservedNames = map[string]bool{
	"break": true, "continue": true, "else": true, "for": true, "func": true, "error": true,
	"immutable": true, "if": true, "return": true, "export": true, "true": true, "false": true,
	"in": true, "undefined": true, "import": true,

	"len": true, "copy": true, "append": true, "delete": true, "splice": true, "string": true,
	"int": true, "bool": true, "float": true, "char": true, "bytes": true, "time": true,
	"format": true, "range": true, "type_name": true,
	"is_int": true, "is_float": true, "is_string": true, "is_bool": true, "is_char": true,
	"is_bytes": true, "is_array": true, "is_immutable_array": true, "is_map": true,
	"is_immutable_map": true, "is_iterable": true, "is_time": true, "is_error": true,
	"is_undefined": true, "is_function": true, "is_callable": true,
}

func validAlias(name string) bool {
	return aliasPattern.MatchString(name) && !strings.HasPrefix(name, "__") && !reservedNames[name]
}

const resultVar = "__kpi_result"

// Formula is the checked form of a KPI expression
type Formula struct {
	Source     string
	normalized string
	aliases    []string
}

// Aliases returns the distinct identifiers the formula reads, sorted
func (f *Formula) Aliases() []string {
	return append([]string(nil), f.aliases...)
}

// ParseFormula accepts arithmetic over aliases, numeric literals, parentheses and the
// functions abs, min, max, round, sqrt and pow. Integer literals are widened to floats
// so division never truncates.
func ParseFormula(src string) (*Formula, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("formula is required")
	}

	var out strings.Builder
	seen := map[string]bool{}
	runes := []rune(src)
	depth := 0

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			out.WriteRune(' ')
			i++
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			ident := string(runes[start:i])

			j := i
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			if j < len(runes) && runes[j] == '(' {
				if _, ok := formulaFunctions[ident]; !ok {
					return nil, fmt.Errorf("unknown function %q", ident)
				}
				out.WriteString(functionPrefix + ident)
				continue
			}
			if reservedNames[ident] {
				return nil, fmt.Errorf("%q is a reserved word", ident)
			}
			if !validAlias(ident) {
				return nil, fmt.Errorf("invalid identifier %q", ident)
			}
			seen[ident] = true
			out.WriteString(ident)
		case unicode.IsDigit(r) || r == '.':
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			if i < len(runes) && (runes[i] == 'e' || runes[i] == 'E') {
				j := i + 1
				if j < len(runes) && (runes[j] == '+' || runes[j] == '-') {
					j++
				}
				if j >= len(runes) || !unicode.IsDigit(runes[j]) {
					return nil, fmt.Errorf("invalid number near position %d", start+1)
				}
				for j < len(runes) && unicode.IsDigit(runes[j]) {
					j++
				}
				i = j
			}
			v, err := strconv.ParseFloat(string(runes[start:i]), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number near position %d", start+1)
			}
			out.WriteString(floatLiteral(v))
		case strings.ContainsRune("+-*/,", r):
			out.WriteRune(r)
			i++
		case r == '(':
			depth++
			out.WriteRune(r)
			i++
		case r == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses")
			}
			out.WriteRune(r)
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q", r)
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parentheses")
	}

	aliases := make([]string, 0, len(seen))
	for a := range seen {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)

	return &Formula{Source: src, normalized: out.String(), aliases: aliases}, nil
}

// floatLiteral writes v in plain decimal form with a fractional part so tengo
// treats it as a float
func floatLiteral(v float64) string {
	lit := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(lit, '.') {
		lit += ".0"
	}
	return lit
}

const functionPrefix = "__fn_"

type formulaFunc func(args []float64) (float64, error)

var formulaFunctions = map[string]formulaFunc{
	"abs": func(args []float64) (float64, error) {
		if len(args) != 1 {
			return 0, fmt.Errorf("abs expects 1 argument")
		}
		return math.Abs(args[0]), nil
	},
	"sqrt": func(args []float64) (float64, error) {
		if len(args) != 1 {
			return 0, fmt.Errorf("sqrt expects 1 argument")
		}
		return math.Sqrt(args[0]), nil
	},
	"pow": func(args []float64) (float64, error) {
		if len(args) != 2 {
			return 0, fmt.Errorf("pow expects 2 arguments")
		}
		return math.Pow(args[0], args[1]), nil
	},
	"round": func(args []float64) (float64, error) {
		switch len(args) {
		case 1:
			return math.Round(args[0]), nil
		case 2:
			scale := math.Pow(10, math.Trunc(args[1]))
			return math.Round(args[0]*scale) / scale, nil
		}
		return 0, fmt.Errorf("round expects 1 or 2 arguments")
	},
	"min": func(args []float64) (float64, error) {
		if len(args) == 0 {
			return 0, fmt.Errorf("min expects at least 1 argument")
		}
		m := args[0]
		for _, a := range args[1:] {
			m = math.Min(m, a)
		}
		return m, nil
	},
	"max": func(args []float64) (float64, error) {
		if len(args) == 0 {
			return 0, fmt.Errorf("max expects at least 1 argument")
		}
		m := args[0]
		for _, a := range args[1:] {
			m = math.Max(m, a)
		}
		return m, nil
	},
}

func userFunction(name string, fn formulaFunc) *tengo.UserFunction {
	return &tengo.UserFunction{
		Name: name,
		Value: func(args ...tengo.Object) (tengo.Object, error) {
			nums := make([]float64, len(args))
			for i, a := range args {
				f, ok := tengo.ToFloat64(a)
				if !ok {
					return nil, fmt.Errorf("%s: argument %d is not a number", name, i+1)
				}
				nums[i] = f
			}
			v, err := fn(nums)
			if err != nil {
				return nil, err
			}
			return &tengo.Float{Value: v}, nil
		},
	}
}

// Evaluator runs parsed formulas in a sandboxed tengo VM
type Evaluator struct {
	Timeout time.Duration
}

func NewEvaluator() *Evaluator {
	return &Evaluator{Timeout: 2 * time.Second}
}

func (e *Evaluator) compile(f *Formula, vars map[string]float64) (*tengo.Compiled, error) {
	script := tengo.NewScript([]byte(resultVar + " := (" + f.normalized + ")"))
	script.SetMaxAllocs(10000)

	for name, fn := range formulaFunctions {
		if err := script.Add(functionPrefix+name, userFunction(name, fn)); err != nil {
			return nil, err
		}
	}
	for _, alias := range f.aliases {
		v, ok := vars[alias]
		if !ok {
			return nil, fmt.Errorf("no value bound for %q", alias)
		}
		if err := script.Add(alias, v); err != nil {
			return nil, err
		}
	}

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("invalid formula: %w", err)
	}
	return compiled, nil
}

// Evaluate computes the formula with vars bound to its aliases. Non-finite results are errors.
func (e *Evaluator) Evaluate(ctx context.Context, f *Formula, vars map[string]float64) (float64, error) {
	compiled, err := e.compile(f, vars)
	if err != nil {
		return 0, err
	}

	runCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()
	if err := compiled.RunContext(runCtx); err != nil {
		return 0, fmt.Errorf("evaluation failed: %w", err)
	}

	result, ok := tengo.ToFloat64(compiled.Get(resultVar).Object())
	if !ok {
		return 0, fmt.Errorf("formula did not produce a number")
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("formula result is not a finite number (division by zero?)")
	}
	return result, nil
}

// Validate checks syntax and the alias round trip between formula and sources
func (e *Evaluator) Validate(formula string, sources []KpiSource) FormulaValidation {
	result := FormulaValidation{Errors: []string{}, MissingAliases: []string{}, UnusedAliases: []string{}}

	declared := map[string]bool{}
	for _, s := range sources {
		switch {
		case reservedNames[s.Alias]:
			result.Errors = append(result.Errors, fmt.Sprintf("alias %q is a reserved word", s.Alias))
		case !validAlias(s.Alias):
			result.Errors = append(result.Errors, fmt.Sprintf("invalid alias %q", s.Alias))
		case declared[s.Alias]:
			result.Errors = append(result.Errors, fmt.Sprintf("alias %q is declared more than once", s.Alias))
		case formulaFunctions[s.Alias] != nil:
			result.Errors = append(result.Errors, fmt.Sprintf("alias %q shadows a function", s.Alias))
		}
		declared[s.Alias] = true
	}

	f, err := ParseFormula(formula)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	used := map[string]bool{}
	for _, a := range f.aliases {
		used[a] = true
		if !declared[a] {
			result.MissingAliases = append(result.MissingAliases, a)
		}
	}
	for _, s := range sources {
		if !used[s.Alias] && validAlias(s.Alias) {
			result.UnusedAliases = append(result.UnusedAliases, s.Alias)
		}
	}
	sort.Strings(result.UnusedAliases)

	// Compile with placeholder values to surface syntax errors such as "a +"
	probe := make(map[string]float64, len(f.aliases))
	for _, a := range f.aliases {
		probe[a] = 1
	}
	if _, err := e.compile(f, probe); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}

	result.Valid = len(result.Errors) == 0 && len(result.MissingAliases) == 0 && len(result.UnusedAliases) == 0
	return result
}
