package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/moznion/go-optional"
)

// StrategyConfig is one named strategy configuration, immutable after load.
type StrategyConfig struct {
	Name            string
	Symbol          string
	ReferenceSymbol optional.Option[string]
	StrategyType    string
	Enabled         bool
	Params          Params
}

// Symbols returns every symbol the configuration needs bars for.
func (c StrategyConfig) Symbols() []string {
	symbols := []string{c.Symbol}
	if c.ReferenceSymbol.IsSome() {
		symbols = append(symbols, c.ReferenceSymbol.Unwrap())
	}
	return symbols
}

// Params is the parameter mapping of a strategy configuration.
type Params map[string]interface{}

// Has reports whether the key is present.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Require returns an error naming every missing key and every required key whose value
// is not a number.
func (p Params) Require(keys ...string) error {
	var missing, invalid []string
	for _, k := range keys {
		v, ok := p[k]
		switch {
		case !ok:
			missing = append(missing, k)
		case !isNumber(v):
			invalid = append(invalid, fmt.Sprintf("%s=%v (%T)", k, v, v))
		}
	}
	var parts []string
	if len(missing) > 0 {
		sort.Strings(missing)
		parts = append(parts, "missing required parameters: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		parts = append(parts, "required parameters must be numbers: "+strings.Join(invalid, ", "))
	}
	if len(parts) > 0 {
		return errors.New(strings.Join(parts, "; "))
	}
	return nil
}

// Validate rejects values that no accessor can read: every parameter is a number, a
// boolean or a list of numbers.
func (p Params) Validate() error {
	var invalid []string
	for k, v := range p {
		if !isNumber(v) && !isBool(v) && !isNumberList(v) {
			invalid = append(invalid, fmt.Sprintf("%s=%v (%T)", k, v, v))
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return fmt.Errorf("parameters must be numbers, booleans or lists of numbers: %s", strings.Join(invalid, ", "))
	}
	return nil
}

func isNumber(v interface{}) bool {
	switch v.(type) {
	case float64, float32, int, int64, uint64:
		return true
	}
	return false
}

func isBool(v interface{}) bool {
	_, ok := v.(bool)
	return ok
}

func isNumberList(v interface{}) bool {
	switch items := v.(type) {
	case []int:
		return true
	case []interface{}:
		for _, it := range items {
			if !isNumber(it) {
				return false
			}
		}
		return true
	}
	return false
}

// Float returns the numeric value for key, or def when absent or not numeric.
func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	default:
		return def
	}
}

// Int returns the integer value for key, or def when absent or not numeric.
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// Bool returns the boolean value for key, or def.
func (p Params) Bool(key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

// Ints returns an integer list for key, or def. Non-numeric items are skipped.
func (p Params) Ints(key string, def []int) []int {
	raw, ok := p[key]
	if !ok {
		return def
	}
	var items []interface{}
	switch v := raw.(type) {
	case []int:
		return v
	case []interface{}:
		items = v
	default:
		return def
	}
	out := make([]int, 0, len(items))
	for _, it := range items {
		switch n := it.(type) {
		case int:
			out = append(out, n)
		case int64:
			out = append(out, int(n))
		case float64:
			out = append(out, int(n))
		}
	}
	return out
}
