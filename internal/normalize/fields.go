package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// The engine's JSON decoder hands us float64 for numbers, but in-process
// engines send Go ints, so every accessor accepts both.

func intValue(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

func floatValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func intField(body map[string]interface{}, key string) (int, bool) {
	v, ok := body[key]
	if !ok {
		return 0, false
	}
	return intValue(v)
}

func intPtrField(body map[string]interface{}, key string) *int {
	if n, ok := intField(body, key); ok {
		return &n
	}
	return nil
}

func floatField(body map[string]interface{}, key string) (float64, bool) {
	v, ok := body[key]
	if !ok {
		return 0, false
	}
	return floatValue(v)
}

func stringField(body map[string]interface{}, key string) string {
	switch s := body[key].(type) {
	case string:
		return s
	case nil:
		return ""
	case float64, int, json.Number:
		return fmt.Sprint(s)
	}
	return ""
}

func boolField(body map[string]interface{}, key string) bool {
	b, _ := body[key].(bool)
	return b
}

func mapField(body map[string]interface{}, key string) map[string]interface{} {
	m, _ := body[key].(map[string]interface{})
	return m
}

func sliceField(body map[string]interface{}, key string) []interface{} {
	switch s := body[key].(type) {
	case []interface{}:
		return s
	case []map[string]interface{}:
		out := make([]interface{}, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out
	}
	return nil
}
