package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ReviewModels 审核记录表
var ReviewModels = []interface{}{
	&Review{},
}

// TrackingModels 实验追踪表
var TrackingModels = []interface{}{
	&TrackingRun{},
	&TrackingMetric{},
	&TrackingArtifact{},
}

// JSON jsonb 字段
type JSON map[string]interface{}

// Value 实现 driver.Valuer
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = JSON{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON scan type %T", value)
	}
	return json.Unmarshal(data, j)
}
