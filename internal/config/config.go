package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置，进程启动时构建一次并逐层传递
type Config struct {
	App        AppConfig
	Server     ServerConfig
	Log        LogConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Auth       AuthConfig
	AI         AIConfig
	Base       BaseConfig
	DataParser DataParserConfig
	QA         TrainConfig
	Classifier TrainConfig
	Runtime    RuntimeConfig
	Tracking   TrackingConfig
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string
	Environment string
	Version     string
	Debug       bool
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

// LogConfig 日志配置
type LogConfig struct {
	Level       string
	Development bool
}

// DatabaseConfig 数据库配置，未启用时审核记录只写 JSONL
type DatabaseConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTL      int // 秒
}

// StorageConfig 产物存储配置
type StorageConfig struct {
	Type  string // local, minio
	Local LocalStorageConfig
	MinIO MinIOStorageConfig
}

// LocalStorageConfig 本地存储配置
type LocalStorageConfig struct {
	BasePath  string
	URLPrefix string
}

// MinIOStorageConfig MinIO 配置
type MinIOStorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLPrefix string
}

// AuthConfig 认证配置，JWTSecret 为空时不校验
type AuthConfig struct {
	JWTSecret string
}

// AIConfig AI配置
type AIConfig struct {
	Provider string
	OpenAI   OpenAIConfig
	Alibaba  AlibabaConfig
	DeepSeek DeepSeekConfig
}

// OpenAIConfig OpenAI配置
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int
}

// AlibabaConfig 阿里云配置
type AlibabaConfig struct {
	AccessKeyID     string
	AccessKeySecret string
	Region          string
	Model           string
	Timeout         int
}

// DeepSeekConfig DeepSeek配置
type DeepSeekConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int
}

// BaseConfig 数据文件与模型目录
type BaseConfig struct {
	QAFile         string
	ClassifierFile string
	ContextFile    string
	ReviewFile     string
	ModelRoot      string
	RunDir         string
}

// DataParserConfig 数据合成配置
type DataParserConfig struct {
	Subtopics        []string
	PairsPerTopic    int
	MaxRetries       int
	RateDelaySeconds float64
	Temperature      float32
	LogPrompts       bool
	Seed             int64
}

// RateDelay 返回请求间隔
func (c *DataParserConfig) RateDelay() time.Duration {
	return time.Duration(c.RateDelaySeconds * float64(time.Second))
}

// TrainConfig 训练任务配置
type TrainConfig struct {
	ModelName     string
	ModelDir      string
	Epochs        int
	BatchSize     int
	LR            float64
	MaxLen        int
	MaxIn         int
	MaxOut        int
	NumClasses    int
	NumWorkers    int
	ValSplit      float64
	Seed          int64
	Accelerator   string
	Devices       int
	Precision     string
	GradClip      float64
	AccumGrad     int
	UseContext    bool
	UseRefAnswers bool
	Monitor       string
	Mode          string
}

// RuntimeConfig 模型运行时配置
type RuntimeConfig struct {
	BaseURL string
	Timeout int // 秒
}

// TrackingConfig 实验追踪配置
type TrackingConfig struct {
	Backend     string // mlflow, database, none
	TrackingURI string
	Experiment  string
	RunName     string
	LogModel    bool
}

// Load 加载配置，path 为空时只使用默认值和环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 环境变量
	v.SetEnvPrefix("QA_GRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetAddr 获取服务器地址
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr 获取 Redis 地址
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TrainConfigFor 返回指定模型的训练配置
func (c *Config) TrainConfigFor(kind string) *TrainConfig {
	if kind == "qgen" {
		return &c.QA
	}
	return &c.Classifier
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "qa-grader")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.debug", false)

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 60)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	// Database
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "qa_grader")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 10)
	v.SetDefault("database.maxIdleConns", 2)
	v.SetDefault("database.maxLifetime", 300)

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 300)

	// Storage
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local.basePath", "./data/artifacts")
	v.SetDefault("storage.local.urlPrefix", "/artifacts")
	v.SetDefault("storage.minio.endpoint", "localhost:9000")
	v.SetDefault("storage.minio.accessKey", "")
	v.SetDefault("storage.minio.secretKey", "")
	v.SetDefault("storage.minio.bucket", "qa-grader")
	v.SetDefault("storage.minio.useSSL", false)
	v.SetDefault("storage.minio.urlPrefix", "")

	// Auth
	v.SetDefault("auth.jwtSecret", "")

	// AI
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.openai.apiKey", "")
	v.SetDefault("ai.openai.baseUrl", "https://api.openai.com/v1")
	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("ai.openai.timeout", 60)
	v.SetDefault("ai.alibaba.accessKeyId", "")
	v.SetDefault("ai.alibaba.accessKeySecret", "")
	v.SetDefault("ai.alibaba.region", "cn-beijing")
	v.SetDefault("ai.alibaba.model", "qwen-plus")
	v.SetDefault("ai.alibaba.timeout", 60)
	v.SetDefault("ai.deepseek.apiKey", "")
	v.SetDefault("ai.deepseek.baseUrl", "https://api.deepseek.com/v1")
	v.SetDefault("ai.deepseek.model", "deepseek-chat")
	v.SetDefault("ai.deepseek.timeout", 60)

	// Base
	v.SetDefault("base.qaFile", "./data/qa.jsonl")
	v.SetDefault("base.classifierFile", "./data/graded.jsonl")
	v.SetDefault("base.contextFile", "./data/context.jsonl")
	v.SetDefault("base.reviewFile", "./data/reviews.jsonl")
	v.SetDefault("base.modelRoot", "./models")
	v.SetDefault("base.runDir", "./runs")

	// DataParser
	v.SetDefault("dataParser.subtopics", []string{"mean", "median", "mode", "variance", "standard deviation"})
	v.SetDefault("dataParser.pairsPerTopic", 5)
	v.SetDefault("dataParser.maxRetries", 3)
	v.SetDefault("dataParser.rateDelaySeconds", 1.0)
	v.SetDefault("dataParser.temperature", 0.7)
	v.SetDefault("dataParser.logPrompts", false)
	v.SetDefault("dataParser.seed", 42)

	// QA (question generator)
	v.SetDefault("qa.modelName", "t5-small")
	v.SetDefault("qa.modelDir", "./models/question_generator")
	v.SetDefault("qa.epochs", 10)
	v.SetDefault("qa.batchSize", 8)
	v.SetDefault("qa.lr", 3e-4)
	v.SetDefault("qa.maxIn", 64)
	v.SetDefault("qa.maxOut", 64)
	v.SetDefault("qa.maxLen", 0)
	v.SetDefault("qa.numClasses", 0)
	v.SetDefault("qa.numWorkers", 4)
	v.SetDefault("qa.valSplit", 0.1)
	v.SetDefault("qa.seed", 42)
	v.SetDefault("qa.accelerator", "auto")
	v.SetDefault("qa.devices", 1)
	v.SetDefault("qa.precision", "32")
	v.SetDefault("qa.gradClip", 1.0)
	v.SetDefault("qa.accumGrad", 1)
	v.SetDefault("qa.useContext", false)
	v.SetDefault("qa.useRefAnswers", false)
	v.SetDefault("qa.monitor", "val_loss")
	v.SetDefault("qa.mode", "min")

	// Classifier (answer grader)
	v.SetDefault("classifier.modelName", "bert-base-uncased")
	v.SetDefault("classifier.modelDir", "./models/answer_classifier")
	v.SetDefault("classifier.epochs", 5)
	v.SetDefault("classifier.batchSize", 16)
	v.SetDefault("classifier.lr", 2e-5)
	v.SetDefault("classifier.maxLen", 128)
	v.SetDefault("classifier.maxIn", 0)
	v.SetDefault("classifier.maxOut", 0)
	v.SetDefault("classifier.numClasses", 4)
	v.SetDefault("classifier.numWorkers", 4)
	v.SetDefault("classifier.valSplit", 0.1)
	v.SetDefault("classifier.seed", 42)
	v.SetDefault("classifier.accelerator", "auto")
	v.SetDefault("classifier.devices", 1)
	v.SetDefault("classifier.precision", "32")
	v.SetDefault("classifier.gradClip", 1.0)
	v.SetDefault("classifier.accumGrad", 1)
	v.SetDefault("classifier.useRefAnswers", true)
	v.SetDefault("classifier.useContext", false)
	v.SetDefault("classifier.monitor", "val_loss")
	v.SetDefault("classifier.mode", "min")

	// Runtime
	v.SetDefault("runtime.baseUrl", "http://localhost:9000")
	v.SetDefault("runtime.timeout", 60)

	// Tracking
	v.SetDefault("tracking.backend", "none")
	v.SetDefault("tracking.trackingUri", "")
	v.SetDefault("tracking.experiment", "qa-grader")
	v.SetDefault("tracking.runName", "")
	v.SetDefault("tracking.logModel", false)
}
