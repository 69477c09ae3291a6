package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsFloat(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected *float64
	}{
		{"nil", nil, nil},
		{"empty string", "", nil},
		{"blank string", "   ", nil},
		{"float64", 97.5, floatPtr(97.5)},
		{"int", 120, floatPtr(120)},
		{"int64", int64(42), floatPtr(42)},
		{"numeric string", "98.6", floatPtr(98.6)},
		{"numeric string padded", " 15 ", floatPtr(15)},
		{"garbage string", "abc", nil},
		{"bool true", true, floatPtr(1)},
		{"bool false", false, floatPtr(0)},
		{"map", map[string]any{"a": 1}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AsFloat(tt.input)
			if tt.expected == nil {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.Equal(t, *tt.expected, *got)
			}
		})
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected *int
	}{
		{"nil", nil, nil},
		{"empty string", "", nil},
		{"float truncates", 120.9, intPtr(120)},
		{"numeric string", "85", intPtr(85)},
		{"float string truncates", "85.7", intPtr(85)},
		{"garbage", "n/a", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AsInt(tt.input)
			if tt.expected == nil {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.Equal(t, *tt.expected, *got)
			}
		})
	}
}

func TestAsBool(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected *bool
	}{
		{"nil", nil, nil},
		{"empty string", "", nil},
		{"bool true", true, boolPtr(true)},
		{"bool false", false, boolPtr(false)},
		{"nonzero int", 2, boolPtr(true)},
		{"zero int", 0, boolPtr(false)},
		{"nonzero float", 0.5, boolPtr(true)},
		{"string 1", "1", boolPtr(true)},
		{"string TRUE", "TRUE", boolPtr(true)},
		{"string Yes", "Yes", boolPtr(true)},
		{"string on", "on", boolPtr(true)},
		{"string 0", "0", boolPtr(false)},
		{"string false", "false", boolPtr(false)},
		{"string No", "No", boolPtr(false)},
		{"string OFF", "OFF", boolPtr(false)},
		{"string maybe", "maybe", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AsBool(tt.input)
			if tt.expected == nil {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.Equal(t, *tt.expected, *got)
			}
		})
	}
}

func TestPropValue(t *testing.T) {
	props := map[string]any{
		"wrapped":    map[string]any{"value": 42},
		"bare":       "hello",
		"mapping":    map[string]any{"hr": 120},
		"wrapper":    testWrapper{inner: 97.5},
		"nil_value":  nil,
	}

	assert.Equal(t, 42, PropValue(props, "wrapped"))
	assert.Equal(t, "hello", PropValue(props, "bare"))
	// 没有 value 键的 map 原样返回
	assert.Equal(t, map[string]any{"hr": 120}, PropValue(props, "mapping"))
	assert.Equal(t, 97.5, PropValue(props, "wrapper"))
	assert.Nil(t, PropValue(props, "nil_value"))
	assert.Nil(t, PropValue(props, "missing"))
}

func TestFirstTruthy(t *testing.T) {
	// 零值 / 空串 / false 被跳过，取第一个非空非零候选
	assert.Equal(t, 55, firstTruthy(nil, 0, "", false, 55, 60))
	assert.Equal(t, "x", firstTruthy("", "x"))
	assert.Nil(t, firstTruthy(nil, 0, "", false))
	assert.Nil(t, firstTruthy())
}

// testWrapper 模拟厂家 SDK 的属性包装对象
type testWrapper struct {
	inner any
}

func (w testWrapper) Value() any { return w.inner }

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }
func boolPtr(b bool) *bool        { return &b }
