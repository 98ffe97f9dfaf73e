package reasoning

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toFloatSeries(v interface{}) []float64 {
	switch s := v.(type) {
	case []float64:
		return s
	case []interface{}:
		out := make([]float64, 0, len(s))
		for _, x := range s {
			if f, ok := toFloat(x); ok {
				out = append(out, f)
			}
		}
		return out
	}
	return nil
}

func coerce(v interface{}, kind Kind) (interface{}, bool) {
	switch kind {
	case KindFloat:
		return toFloat(v)
	case KindInt:
		f, ok := toFloat(v)
		if !ok {
			return nil, false
		}
		return int64(f), true
	case KindString:
		switch s := v.(type) {
		case string:
			return s, true
		case bool:
			return strconv.FormatBool(s), true
		case fmt.Stringer:
			return s.String(), true
		}
		if f, ok := toFloat(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		return nil, false
	case KindBool:
		switch b := v.(type) {
		case bool:
			return b, true
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(b))
			return parsed, err == nil
		}
		if f, ok := toFloat(v); ok {
			return f != 0, true
		}
		return nil, false
	}
	return v, true
}
