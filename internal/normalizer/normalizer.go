package normalizer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"owlet-bridge/internal/models"
)

// 时间戳单位判定阈值：低于该值视为秒，乘 1000 归一为毫秒。
// 10^10 秒约为公元 2286 年、10^10 毫秒约为 1970 年，当前年代的
// 时间戳两种单位下都能可靠区分。已知的脆弱点，不是永久保证。
const millisThreshold = 10_000_000_000

// 实时体征嵌套数据的属性键（新版 API）
const realtimeVitalsKey = "REAL_TIME_VITALS"

// BuildRow 从原始属性快照构建一条标准化读数行
//
// 从不失败：无法解析的字段置为 nil，行本身总能构建出来。
// 字段解析按优先级尝试：当前版本字段名 → REAL_TIME_VITALS 内的
// 缩写键 → 旧版全大写字段名 → 顶层缩写键，取第一个非空非零值。
func BuildRow(childID, dsn string, props map[string]any) *models.Reading {
	rtVitals := parseRealtimeVitals(props)

	hr := AsInt(firstTruthy(
		PropValue(props, "heart_rate"),
		rtVitals["hr"],
		PropValue(props, "HEART_RATE"),
		PropValue(props, "hr"),
	))
	ox := AsFloat(firstTruthy(
		PropValue(props, "oxygen_saturation"),
		rtVitals["ox"],
		PropValue(props, "OXYGEN_LEVEL"),
		PropValue(props, "ox"),
	))
	movement := AsFloat(firstTruthy(
		PropValue(props, "movement"),
		rtVitals["mv"],
		PropValue(props, "MOVEMENT"),
		PropValue(props, "mv"),
	))
	sockConn := AsBool(firstTruthy(
		PropValue(props, "sock_connection"),
		rtVitals["sc"],
		PropValue(props, "SOCK_CONNECTION"),
		PropValue(props, "sc"),
	))
	battery := AsFloat(firstTruthy(
		PropValue(props, "battery_percentage"),
		rtVitals["bat"],
		PropValue(props, "BATT_LEVEL"),
		PropValue(props, "bat"),
	))

	tsMs := recordedAtMs(props)
	sessionID := fmt.Sprintf("%s:%d", dsn, tsMs)
	// UUID v5（SHA1 + URL 命名空间）：同一 (dsn, 时间戳) 重复轮询得到
	// 相同 ID，upsert 覆盖而不是产生重复行
	recordID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(sessionID)).String()

	sockOff := firstTruthy(
		PropValue(props, "sock_off"),
		PropValue(props, "SOCK_OFF"),
	)

	return &models.Reading{
		ID:                  recordID,
		ChildID:             childID,
		RecordedAt:          tsMs,
		HeartRateBpm:        hr,
		OxygenSaturationPct: ox,
		MovementLevel:       movement,
		SleepState:          SleepState(sockOff, movement),
		SockConnected:       sockConn,
		BatteryPct:          battery,
		SourceDeviceID:      dsn,
		SourceSessionID:     sessionID,
		RawPayload:          safeRawPayload(props),
		CreatedAt:           tsMs,
		UpdatedAt:           tsMs,
		SyncStatus:          models.SyncStatusSynced,
		Deleted:             false,
	}
}

// SleepState 睡眠状态判定
//
// 袜子脱落时没有可靠读数 → unknown；体动缺失 → unknown；
// 体动 ≤ 0 → asleep；否则 awake。
func SleepState(sockOff any, movement *float64) string {
	if b := AsBool(sockOff); b != nil && *b {
		return models.SleepStateUnknown
	}
	if movement == nil {
		return models.SleepStateUnknown
	}
	if *movement <= 0 {
		return models.SleepStateAsleep
	}
	return models.SleepStateAwake
}

// parseRealtimeVitals 提取 REAL_TIME_VITALS 嵌套数据
//
// 新版 API 把实时体征编码为 JSON 字符串；也可能已经是 map。
// 解析失败或形状不对一律按空 map 处理。
func parseRealtimeVitals(props map[string]any) map[string]any {
	raw := PropValue(props, realtimeVitalsKey)
	switch val := raw.(type) {
	case string:
		var parsed map[string]any
		if err := json.Unmarshal([]byte(val), &parsed); err == nil {
			return parsed
		}
		return map[string]any{}
	case map[string]any:
		return val
	default:
		return map[string]any{}
	}
}

// recordedAtMs 解析读数时间并归一为 epoch 毫秒
//
// 优先 data_updated_at（新版），回退 TIMESTAMP（旧版）；
// 都解析不出时用当前时间兜底（厂家未报时间戳时精度为近似值）。
func recordedAtMs(props map[string]any) int64 {
	parsed := AsFloat(PropValue(props, "data_updated_at"))
	if parsed == nil {
		parsed = AsFloat(PropValue(props, "TIMESTAMP"))
	}
	if parsed == nil {
		return time.Now().UnixMilli()
	}
	if *parsed < millisThreshold {
		return int64(*parsed * 1000)
	}
	return int64(*parsed)
}

// safeRawPayload 构建可安全 JSON 序列化的原始负载
//
// 逐键解包后尝试序列化，失败的值退化为其字符串形式，
// 从不丢键、从不失败。
func safeRawPayload(props map[string]any) map[string]any {
	data := make(map[string]any, len(props))
	for key, item := range props {
		value := unwrapValue(item)
		if _, err := json.Marshal(value); err != nil {
			data[key] = fmt.Sprintf("%v", value)
			continue
		}
		data[key] = value
	}
	return data
}
