package models

// SyncStatusSynced 读数行固定的同步状态
const SyncStatusSynced = "synced"

// 睡眠状态枚举值
const (
	SleepStateAsleep  = "asleep"
	SleepStateAwake   = "awake"
	SleepStateUnknown = "unknown"
)

// Reading 标准化的 Owlet 读数行（owlet_readings 表的一行）
//
// 每个轮询周期由 normalizer 从原始属性快照构建一条新行，
// 交给 sink 上传后即丢弃，不做任何修改。
// ID 由 SourceSessionID 的 UUID v5 派生，重复上传同一读数时幂等。
type Reading struct {
	ID                  string         `json:"id"`
	ChildID             string         `json:"childId"`
	RecordedAt          int64          `json:"recordedAt"` // epoch 毫秒
	HeartRateBpm        *int           `json:"heartRateBpm"`
	OxygenSaturationPct *float64       `json:"oxygenSaturationPct"`
	MovementLevel       *float64       `json:"movementLevel"`
	SleepState          string         `json:"sleepState"` // asleep / awake / unknown
	SockConnected       *bool          `json:"sockConnected"`
	BatteryPct          *float64       `json:"batteryPct"`
	SourceDeviceID      string         `json:"sourceDeviceId"`
	SourceSessionID     string         `json:"sourceSessionId"` // "{dsn}:{recordedAtMs}"
	RawPayload          map[string]any `json:"rawPayload"`
	CreatedAt           int64          `json:"createdAt"`
	UpdatedAt           int64          `json:"updatedAt"`
	SyncStatus          string         `json:"syncStatus"`
	Deleted             bool           `json:"_deleted"`
}

// PropertyWrapper 属性值包装器接口
//
// 部分厂家 SDK 把属性值包在对象里（暴露 value 字段），
// normalizer 在入口处统一解包，下游只处理裸标量。
type PropertyWrapper interface {
	Value() any
}
