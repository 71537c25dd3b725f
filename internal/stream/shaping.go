package stream

import "time"

// Các strategy throttle
const (
	ThrottleDrop     = "drop"
	ThrottleBuffer   = "buffer"
	ThrottleDebounce = "debounce"
)

// Các aggregation op
const (
	AggSum   = "sum"
	AggAvg   = "avg"
	AggMin   = "min"
	AggMax   = "max"
	AggCount = "count"
	AggLast  = "last"
	AggFirst = "first"
)

// Các loại transform
const (
	TransformMap    = "map"
	TransformFilter = "filter"
	TransformReduce = "reduce"
	TransformSort   = "sort"
	TransformGroup  = "group"
	TransformCustom = "custom"
)

// ThrottleConfig giới hạn tần suất emit của một subscription
type ThrottleConfig struct {
	Enabled      bool   `json:"enabled" bson:"enabled"`
	MaxPerSecond int    `json:"maxPerSecond" bson:"maxPerSecond" validate:"omitempty,min=1,max=1000"`
	Strategy     string `json:"strategy" bson:"strategy" validate:"omitempty,oneof=drop buffer debounce"`
}

// AggField một phép gộp trên một field payload, kết quả gắn alias
type AggField struct {
	Field string `json:"field" bson:"field" validate:"required"`
	Op    string `json:"op" bson:"op" validate:"required,oneof=sum avg min max count last first"`
	Alias string `json:"alias" bson:"alias" validate:"required"`
}

// AggregationConfig gộp sự kiện theo cửa sổ thời gian wall-clock
type AggregationConfig struct {
	Enabled  bool       `json:"enabled" bson:"enabled"`
	WindowMs int64      `json:"windowMs" bson:"windowMs" validate:"omitempty,min=100"`
	Fields   []AggField `json:"fields" bson:"fields" validate:"omitempty,dive"`
	GroupBy  []string   `json:"groupBy" bson:"groupBy"`
}

// TransformConfig một bước transform, áp dụng theo thứ tự khai báo
type TransformConfig struct {
	Type       string                 `json:"type" bson:"type" validate:"required,oneof=map filter reduce sort group custom"`
	Expression string                 `json:"expression,omitempty" bson:"expression,omitempty"`
	Params     map[string]interface{} `json:"params,omitempty" bson:"params,omitempty"`
}

// PersistenceConfig cấu hình lưu shaped output (opaque với router — worker đọc)
type PersistenceConfig struct {
	Enabled     bool   `json:"enabled" bson:"enabled"`
	Kind        string `json:"kind,omitempty" bson:"kind,omitempty"`
	RetentionMs int64  `json:"retentionMs,omitempty" bson:"retentionMs,omitempty"`
	BatchSize   int    `json:"batchSize,omitempty" bson:"batchSize,omitempty"`
}

// ShapingConfig cấu hình shaping đầy đủ của một subscription
type ShapingConfig struct {
	RefreshIntervalMs int64             `json:"refreshIntervalMs" bson:"refreshIntervalMs" validate:"omitempty,min=0"`
	BufferSize        int               `json:"bufferSize" bson:"bufferSize" validate:"omitempty,min=1,max=10000"`
	Compression       bool              `json:"compression" bson:"compression"`
	Throttle          ThrottleConfig    `json:"throttle" bson:"throttle"`
	Aggregation       AggregationConfig `json:"aggregation" bson:"aggregation"`
	Transforms        []TransformConfig `json:"transforms,omitempty" bson:"transforms,omitempty" validate:"omitempty,dive"`
	Persistence       PersistenceConfig `json:"persistence" bson:"persistence"`
}

// Defaults cho ResolveShapingConfig
const (
	defaultBufferSize      = 100
	defaultMaxPerSecond    = 10
	defaultAggWindowMs     = int64(10_000)
	defaultRefreshInterval = int64(0) // 0 = không giới hạn thêm ngoài throttle
)

// ResolveShapingConfig là ĐIỂM DUY NHẤT điền default cho shaping config.
// Cả create lẫn update subscription đều phải đi qua hàm này trước khi
// config được dùng — tránh default phân tán khiến hai path hành xử lệch nhau.
func ResolveShapingConfig(cfg ShapingConfig) ShapingConfig {
	if cfg.RefreshIntervalMs < 0 {
		cfg.RefreshIntervalMs = defaultRefreshInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}

	if cfg.Throttle.Enabled {
		if cfg.Throttle.MaxPerSecond <= 0 {
			cfg.Throttle.MaxPerSecond = defaultMaxPerSecond
		}
		switch cfg.Throttle.Strategy {
		case ThrottleDrop, ThrottleBuffer, ThrottleDebounce:
		default:
			cfg.Throttle.Strategy = ThrottleDrop
		}
	}

	if cfg.Aggregation.Enabled {
		if cfg.Aggregation.WindowMs <= 0 {
			cfg.Aggregation.WindowMs = defaultAggWindowMs
		}
		// Aggregation bật nhưng không có field nào ⇒ coi như tắt
		if len(cfg.Aggregation.Fields) == 0 {
			cfg.Aggregation.Enabled = false
		}
	}

	return cfg
}

// throttleInterval khoảng cách tối thiểu giữa hai lần emit
func (t ThrottleConfig) throttleInterval() time.Duration {
	if t.MaxPerSecond <= 0 {
		return 0
	}
	return time.Second / time.Duration(t.MaxPerSecond)
}
