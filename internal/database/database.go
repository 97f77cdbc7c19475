// Package database 管理 PostgreSQL 连接（审核记录与实验追踪）
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ashwinyue/qa-grader/internal/config"
	"github.com/ashwinyue/qa-grader/internal/model"
)

const pingTimeout = 5 * time.Second

// DB 数据库封装
type DB struct {
	*gorm.DB
}

// New 连接数据库，只迁移当前配置用到的表
func New(ctx context.Context, cfg *config.Config) (*DB, error) {
	logLevel := gormlogger.Silent
	if cfg.App.Debug {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.GetDSN()), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.MaxLifetime) * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database %s:%d: %w", cfg.Database.Host, cfg.Database.Port, err)
	}

	if err := db.WithContext(ctx).AutoMigrate(MigrationModels(cfg)...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	return &DB{DB: db}, nil
}

// MigrationModels 审核表总是需要，tracking_* 表仅在 tracking.backend=database 时迁移
func MigrationModels(cfg *config.Config) []interface{} {
	models := append([]interface{}{}, model.ReviewModels...)
	if strings.EqualFold(cfg.Tracking.Backend, "database") {
		models = append(models, model.TrackingModels...)
	}
	return models
}

// Close 关闭数据库连接
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
