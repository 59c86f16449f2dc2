package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/d5/tengo/v2"
)

// Coerce converts a raw ingested value into the representation stored for fieldType
func Coerce(fieldType FieldType, raw interface{}) (interface{}, error) {
	switch fieldType {
	case FieldNumber:
		f, err := ToFloat(raw)
		if err != nil {
			return nil, err
		}
		return f, nil
	case FieldBoolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("%q is not a boolean", v)
			}
			return b, nil
		}
		if f, err := ToFloat(raw); err == nil {
			return f != 0, nil
		}
		return nil, fmt.Errorf("%v is not a boolean", raw)
	case FieldDate:
		switch v := raw.(type) {
		case time.Time:
			return v.UTC(), nil
		case string:
			t, err := time.Parse(time.RFC3339, strings.TrimSpace(v))
			if err != nil {
				t, err = time.Parse("2006-01-02", strings.TrimSpace(v))
				if err != nil {
					return nil, fmt.Errorf("%q is not a date", v)
				}
			}
			return t.UTC(), nil
		}
		return nil, fmt.Errorf("%v is not a date", raw)
	case FieldJSON:
		if s, ok := raw.(string); ok {
			var decoded interface{}
			if err := json.Unmarshal([]byte(s), &decoded); err != nil {
				return nil, fmt.Errorf("invalid JSON: %w", err)
			}
			return decoded, nil
		}
		return raw, nil
	default:
		if raw == nil {
			return "", nil
		}
		if s, ok := raw.(string); ok {
			return s, nil
		}
		return fmt.Sprint(raw), nil
	}
}

// ToFloat accepts the numeric shapes produced by JSON, BSON, SQL drivers and tengo
func ToFloat(raw interface{}) (float64, error) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint64:
		f = float64(v)
	case []byte:
		return ToFloat(string(v))
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%v (%T) is not a number", raw, raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("value is not finite")
	}
	return f, nil
}

// Aggregate reduces a field's series (oldest first) to one number
func Aggregate(values []DataValue, agg Aggregation) (float64, error) {
	if agg == "" {
		agg = AggLast
	}
	if agg == AggCount {
		return float64(len(values)), nil
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("no values recorded")
	}

	if agg == AggLast {
		return ToFloat(values[len(values)-1].Value)
	}

	nums := make([]float64, 0, len(values))
	for _, v := range values {
		f, err := ToFloat(v.Value)
		if err != nil {
			return 0, err
		}
		nums = append(nums, f)
	}

	switch agg {
	case AggSum, AggAvg:
		sum := 0.0
		for _, n := range nums {
			sum += n
		}
		if agg == AggAvg {
			return sum / float64(len(nums)), nil
		}
		return sum, nil
	case AggMin:
		m := nums[0]
		for _, n := range nums[1:] {
			m = math.Min(m, n)
		}
		return m, nil
	case AggMax:
		m := nums[0]
		for _, n := range nums[1:] {
			m = math.Max(m, n)
		}
		return m, nil
	}
	return 0, fmt.Errorf("unsupported aggregation %q", agg)
}

const transformTimeout = 2 * time.Second

// ApplyTransform evaluates a tengo expression with the raw input bound to `value`
func ApplyTransform(ctx context.Context, expr string, value interface{}) (interface{}, error) {
	if strings.TrimSpace(expr) == "" {
		return value, nil
	}

	script := tengo.NewScript([]byte("__result := (" + expr + ")"))
	if err := script.Add("value", value); err != nil {
		return nil, fmt.Errorf("unsupported value for transform: %w", err)
	}

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("invalid transform: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, transformTimeout)
	defer cancel()
	if err := compiled.RunContext(runCtx); err != nil {
		return nil, fmt.Errorf("transform failed: %w", err)
	}

	return compiled.Get("__result").Value(), nil
}

// ValidateTransform compiles expr without running it
func ValidateTransform(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	script := tengo.NewScript([]byte("__result := (" + expr + ")"))
	_ = script.Add("value", 0)
	if _, err := script.Compile(); err != nil {
		return fmt.Errorf("invalid transform: %w", err)
	}
	return nil
}

// lookupPath walks a dotted path through nested maps and arrays, e.g. "data.items.0.total"
func lookupPath(doc interface{}, path string) (interface{}, bool) {
	if path == "" {
		return doc, true
	}
	current := doc
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]interface{}:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			current = next
		case []interface{}:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}
