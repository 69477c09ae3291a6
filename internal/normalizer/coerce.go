// Package normalizer 提供 Owlet 原始属性数据的标准化功能
//
// 将厂家两种 API 版本（旧版全大写扁平字段、新版小写字段 + REAL_TIME_VITALS
// 嵌套 JSON）的属性快照转换为统一的读数行，包括：
// - 宽松类型值的强制转换（数值字符串、包装对象等）
// - 字段同义名的优先级解析
// - 时间戳单位归一（秒/毫秒）
// - 稳定去重标识派生（UUID v5）
package normalizer

import (
	"strconv"
	"strings"

	"owlet-bridge/internal/models"
)

// AsFloat 宽松转换为浮点数
//
// nil 和空字符串返回 nil；解析失败返回 nil，从不报错。
// 字段级的转换歧义只降低行的完整度，不会导致整个周期失败。
func AsFloat(v any) *float64 {
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		return &val
	case float32:
		f := float64(val)
		return &f
	case int:
		f := float64(val)
		return &f
	case int32:
		f := float64(val)
		return &f
	case int64:
		f := float64(val)
		return &f
	case bool:
		f := 0.0
		if val {
			f = 1.0
		}
		return &f
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// AsInt 宽松转换为整数（先按浮点解析再截断）
func AsInt(v any) *int {
	f := AsFloat(v)
	if f == nil {
		return nil
	}
	i := int(*f)
	return &i
}

// AsBool 宽松转换为布尔值
//
// 数值非零为 true；字符串大小写不敏感匹配常见真/假写法；
// 其余情况返回 nil。
func AsBool(v any) *bool {
	switch val := v.(type) {
	case nil:
		return nil
	case bool:
		return &val
	case float64:
		b := val != 0
		return &b
	case float32:
		b := val != 0
		return &b
	case int:
		b := val != 0
		return &b
	case int32:
		b := val != 0
		return &b
	case int64:
		b := val != 0
		return &b
	case string:
		lowered := strings.ToLower(strings.TrimSpace(val))
		if lowered == "" {
			return nil
		}
		switch lowered {
		case "1", "true", "yes", "on":
			b := true
			return &b
		case "0", "false", "no", "off":
			b := false
			return &b
		}
		return nil
	default:
		return nil
	}
}

// PropValue 从原始属性映射中取值并解包
//
// 缺失返回 nil；包装对象（PropertyWrapper 或含 "value" 键的 map）
// 解出内层值；其余原样返回。
func PropValue(props map[string]any, key string) any {
	item, ok := props[key]
	if !ok || item == nil {
		return nil
	}
	if m, ok := item.(map[string]any); ok {
		if v, ok := m["value"]; ok {
			return v
		}
		return m
	}
	if w, ok := item.(models.PropertyWrapper); ok {
		return w.Value()
	}
	return item
}

// unwrapValue 单个值的解包（不查映射，rawPayload 构建用）
func unwrapValue(item any) any {
	if m, ok := item.(map[string]any); ok {
		if v, ok := m["value"]; ok {
			return v
		}
		return m
	}
	if w, ok := item.(models.PropertyWrapper); ok {
		return w.Value()
	}
	return item
}

// truthy 判断值是否为"非空且非零"
//
// 字段解析链取第一个 truthy 值（与厂家 SDK 的 or 链行为一致），
// 零值 / 空串 / false / 空容器都继续尝试下一个候选字段。
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case float32:
		return val != 0
	case int:
		return val != 0
	case int32:
		return val != 0
	case int64:
		return val != 0
	case string:
		return val != ""
	case map[string]any:
		return len(val) > 0
	case []any:
		return len(val) > 0
	default:
		return true
	}
}

// firstTruthy 按优先级返回第一个 truthy 候选值，全部落空返回 nil
func firstTruthy(vals ...any) any {
	for _, v := range vals {
		if truthy(v) {
			return v
		}
	}
	return nil
}
