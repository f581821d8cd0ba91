package homework

import (
	"encoding/json"
	"fmt"
	"math"
)

// Validate is the only place where a decoded body becomes a StatusResponse.
// Every problem is collected before failing so the log shows the whole picture.
func Validate(raw any) (StatusResponse, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return StatusResponse{}, &ValidationError{
			Problems: []string{fmt.Sprintf("response is %s, want object", kindOf(raw))},
		}
	}

	var (
		problems []string
		out      StatusResponse
	)

	hw, hasHW := obj[KeyHomeworks]
	if !hasHW {
		problems = append(problems, "missing key "+KeyHomeworks)
	}
	cd, hasCD := obj[KeyCurrentDate]
	if !hasCD {
		problems = append(problems, "missing key "+KeyCurrentDate)
	}

	if hasHW {
		list, ok := hw.([]any)
		if !ok {
			problems = append(problems, fmt.Sprintf("%s is %s, want array", KeyHomeworks, kindOf(hw)))
		} else {
			out.Homeworks = list
		}
	}
	if hasCD {
		ts, ok := asUnix(cd)
		if !ok {
			problems = append(problems, fmt.Sprintf("%s is %s, want integer", KeyCurrentDate, kindOf(cd)))
		} else {
			out.CurrentDate = Cursor(ts)
		}
	}

	if len(problems) > 0 {
		return StatusResponse{}, &ValidationError{Problems: problems}
	}
	return out, nil
}

func asUnix(v any) (int64, bool) {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return floatToUnix(f)
	case float64:
		return floatToUnix(x)
	case int:
		return int64(x), true
	case int64:
		return x, true
	default:
		return 0, false
	}
}

func floatToUnix(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, int, int64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
