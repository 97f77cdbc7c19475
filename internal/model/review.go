package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Review 人工审核的题目记录
type Review struct {
	ID         string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Question   string    `json:"question" gorm:"type:text;not null"`
	Topic      string    `json:"topic,omitempty" gorm:"type:varchar(255);index"`
	Answer     string    `json:"answer,omitempty" gorm:"type:text"`
	Approved   bool      `json:"approved"`
	Comment    string    `json:"comment,omitempty" gorm:"type:text"`
	Reviewer   string    `json:"reviewer,omitempty" gorm:"type:varchar(255)"`
	Checkpoint string    `json:"checkpoint,omitempty" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate GORM 钩子，创建前生成 UUID
func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (Review) TableName() string {
	return "reviews"
}
