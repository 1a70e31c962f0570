package devices

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tuya-sensors/pkg/errors"
	"github.com/tuya-sensors/pkg/topology"
)

// Transform 按顺序应用 倍率 -> 定点格式化 -> 单位 三步转换。
// noUnit 为 true 时只应用倍率，结果保持数值类型。
func Transform(dp topology.DataPointDef, raw any, noUnit bool) (any, error) {
	value := raw

	if dp.Multiplier != nil {
		f, err := ToFloat(value)
		if err != nil {
			return nil, errors.ResponseParsef("Value '%v' of data point '%s' is not numeric, cannot apply multiplier", value, dp.Name).
				WithDataPoint(dp.Name)
		}
		value = f * *dp.Multiplier
	}

	if noUnit {
		return value, nil
	}

	if dp.FloatPrecision != nil {
		if f, ok := value.(float64); ok {
			value = strconv.FormatFloat(f, 'f', *dp.FloatPrecision, 64)
		}
	}

	if dp.Unit != nil {
		value = Stringify(value) + *dp.Unit
	}
	return value, nil
}

// ToFloat 把数值或数值字符串转成 float64，NaN 与 ±Inf 视为解析错误
func ToFloat(v any) (float64, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.ResponseParsef("value %v is not a finite number", v)
	}
	return f, nil
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case uint32:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, fmt.Errorf("value %v of type %T is not numeric", v, v)
	}
}

// Stringify 渲染测量值；整数值的浮点数保留 ".0"，与格式化后的读数保持一致
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") && !math.IsInf(t, 0) && !math.IsNaN(t) {
			s += ".0"
		}
		return s
	default:
		return fmt.Sprint(v)
	}
}
