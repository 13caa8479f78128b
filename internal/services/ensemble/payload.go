package ensemble

import (
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// Payload readers. Model payloads have arbitrary shapes: only well-known keys are
// inspected and a missing or unparsable key is reported as absent, never as an error.
// Keys may be dotted paths into nested maps, e.g. "risk.var_95".

func lookupValue(payload map[string]interface{}, path string) (interface{}, bool) {
	if payload == nil {
		return nil, false
	}
	if v, ok := payload[path]; ok {
		return v, v != nil
	}
	parts := strings.Split(path, ".")
	if len(parts) == 1 {
		return nil, false
	}
	var current interface{} = payload
	for _, part := range parts {
		m, ok := toStringMap(current)
		if !ok {
			return nil, false
		}
		next, ok := m[part]
		if !ok || next == nil {
			return nil, false
		}
		current = next
	}
	return current, true
}

// lookupFloat returns the first key that parses as a number. Strings with a trailing
// "%" and keys ending in _pct or _percent are read as percentages.
func lookupFloat(payload map[string]interface{}, keys ...string) (float64, string, bool) {
	for _, key := range keys {
		v, ok := lookupValue(payload, key)
		if !ok {
			continue
		}
		if f, ok := toFloat(v); ok {
			if isPercentKey(key) {
				f /= 100
			}
			return f, key, true
		}
	}
	return 0, "", false
}

func isPercentKey(key string) bool {
	return strings.HasSuffix(key, "_pct") || strings.HasSuffix(key, "_percent")
}

func toFloat(v interface{}) (float64, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if strings.HasSuffix(s, "%") {
			f, err := cast.ToFloat64E(strings.TrimSuffix(s, "%"))
			if err != nil {
				return 0, false
			}
			return f / 100, true
		}
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toStringMap accepts decoded JSON/YAML maps as well as typed maps such as map[string]float64
func toStringMap(v interface{}) (map[string]interface{}, bool) {
	if m, err := cast.ToStringMapE(v); err == nil {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]interface{}, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func lookupString(payload map[string]interface{}, keys ...string) (string, bool) {
	for _, key := range keys {
		v, ok := lookupValue(payload, key)
		if !ok {
			continue
		}
		if s, err := cast.ToStringE(v); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), true
		}
	}
	return "", false
}

// lookupWeights reads a symbol -> weight map. Entries that are not numeric are dropped.
func lookupWeights(payload map[string]interface{}, keys ...string) (map[string]float64, bool) {
	for _, key := range keys {
		v, ok := lookupValue(payload, key)
		if !ok {
			continue
		}
		raw, ok := toStringMap(v)
		if !ok {
			continue
		}
		weights := make(map[string]float64, len(raw))
		for symbol, w := range raw {
			if f, ok := toFloat(w); ok {
				weights[symbol] = f
			}
		}
		if len(weights) > 0 {
			return weights, true
		}
	}
	return nil, false
}

// maxWeight returns the largest weight and its symbol; ties resolve to the lexically first symbol
func maxWeight(weights map[string]float64) (string, float64) {
	symbols := make([]string, 0, len(weights))
	for s := range weights {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	best, bestWeight := "", math.Inf(-1)
	for _, s := range symbols {
		if w := weights[s]; w > bestWeight {
			best, bestWeight = s, w
		}
	}
	if best == "" {
		return "", 0
	}
	return best, bestWeight
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
