package repository

import "gorm.io/gorm"

// Repositories 仓库集合
type Repositories struct {
	DB       *gorm.DB
	Review   ReviewRepository
	Tracking TrackingRepository
}

// NewRepositories 创建所有仓库
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:       db,
		Review:   NewReviewRepository(db),
		Tracking: NewTrackingRepository(db),
	}
}
