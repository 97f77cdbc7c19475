// Package cli 实现 qa-grader 命令行
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashwinyue/qa-grader/internal/config"
	"github.com/ashwinyue/qa-grader/internal/database"
	"github.com/ashwinyue/qa-grader/internal/logger"
	"github.com/ashwinyue/qa-grader/internal/repository"
	"github.com/ashwinyue/qa-grader/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Execute 运行根命令
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "qa-grader",
		Short:        "Question generation and answer grading toolkit",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath(), "config file path")

	cmd.AddCommand(
		serveCmd(opts),
		parseCmd(opts),
		trainCmd(opts),
		inferCmd(opts),
		checkpointCmd(opts),
	)
	return cmd
}

func defaultConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	if _, err := os.Stat("./configs/config.yaml"); err == nil {
		return "./configs/config.yaml"
	}
	return ""
}

// env 一次命令执行所需的配置与日志
type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

func loadEnv(opts *rootOptions) (*env, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: log}, nil
}

// infra 可选的数据库与 Redis 连接
type infra struct {
	db    *database.DB
	repos *repository.Repositories
	redis *redis.Client
}

func (i *infra) Close() {
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

func openInfra(ctx context.Context, e *env) (*infra, error) {
	i := &infra{}

	if e.cfg.Database.Enabled {
		db, err := database.New(ctx, e.cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to init database: %w", err)
		}
		i.db = db
		i.repos = repository.NewRepositories(db.DB)
		e.logger.Info("database connected", zap.String("db", e.cfg.Database.DBName))
	}

	if e.cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     e.cfg.Redis.GetAddr(),
			Password: e.cfg.Redis.Password,
			DB:       e.cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			e.logger.Warn("redis unavailable, using memory cache", zap.Error(err))
			_ = client.Close()
		} else {
			i.redis = client
		}
	}

	return i, nil
}

func openServices(ctx context.Context, e *env) (*service.Services, *infra, error) {
	i, err := openInfra(ctx, e)
	if err != nil {
		return nil, nil, err
	}
	svc, err := service.NewServices(ctx, e.cfg, i.repos, i.redis, e.logger)
	if err != nil {
		i.Close()
		return nil, nil, err
	}
	return svc, i, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
