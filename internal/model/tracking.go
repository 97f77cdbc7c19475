package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RunStatus 训练运行状态
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"  // 运行中
	RunStatusFinished RunStatus = "finished" // 已完成
	RunStatusFailed   RunStatus = "failed"   // 失败
)

// TrackingRun 实验运行记录
type TrackingRun struct {
	ID         string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	Experiment string     `json:"experiment" gorm:"type:varchar(255);index"`
	Name       string     `json:"name" gorm:"type:varchar(255)"`
	Status     RunStatus  `json:"status" gorm:"type:varchar(20);default:'running'"`
	Params     JSON       `json:"params" gorm:"type:jsonb"`
	StartedAt  time.Time  `json:"started_at" gorm:"autoCreateTime"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// BeforeCreate GORM 钩子
func (r *TrackingRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (TrackingRun) TableName() string {
	return "tracking_runs"
}

// TrackingMetric 标量指标
type TrackingMetric struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	RunID     string    `json:"run_id" gorm:"type:varchar(36);index"`
	Key       string    `json:"key" gorm:"type:varchar(255);index"`
	Value     float64   `json:"value"`
	Step      int       `json:"step"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (TrackingMetric) TableName() string {
	return "tracking_metrics"
}

// TrackingArtifact 产物记录
type TrackingArtifact struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	RunID     string    `json:"run_id" gorm:"type:varchar(36);index"`
	Name      string    `json:"name" gorm:"type:varchar(255)"`
	Location  string    `json:"location" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (TrackingArtifact) TableName() string {
	return "tracking_artifacts"
}
