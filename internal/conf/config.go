package conf

import (
	"fmt"
	"time"

	"github.com/jhilmilyatra/content-vault-sub004/internal/pkg/database"
	"github.com/jhilmilyatra/content-vault-sub004/internal/pkg/redis"
	"github.com/jhilmilyatra/content-vault-sub004/internal/pkg/storagenode"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig       `mapstructure:"server"`
	Database    database.Config    `mapstructure:"database"`
	Redis       redis.Config       `mapstructure:"redis"`
	StorageNode storagenode.Config `mapstructure:"storage_node"`
	Log         LogConfig          `mapstructure:"log"`
	Auth        AuthConfig         `mapstructure:"auth"`
	Upload      UploadConfig       `mapstructure:"upload"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type LogConfig struct {
	Level            string        `mapstructure:"level"`
	Format           string        `mapstructure:"format"`
	Output           string        `mapstructure:"output"`
	File             FileLogConfig `mapstructure:"file"`
	EnableCaller     bool          `mapstructure:"enablecaller"`
	EnableStacktrace bool          `mapstructure:"enablestacktrace"`
}

type FileLogConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"maxsize"`
	MaxAge     int    `mapstructure:"maxage"`
	MaxBackups int    `mapstructure:"maxbackups"`
	Compress   bool   `mapstructure:"compress"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
}

// UploadConfig 上传协调器配置
type UploadConfig struct {
	// ChunkSizeBytes 分块大小（默认 5 MiB），分块偏移 = chunkIndex * ChunkSizeBytes
	ChunkSizeBytes int64 `mapstructure:"chunk_size_bytes"`

	// SessionTTL 会话有效期（默认 24h）
	SessionTTL time.Duration `mapstructure:"session_ttl"`

	// CleanupWorkers 后台清理 Worker 数量
	CleanupWorkers int `mapstructure:"cleanup_workers"`

	// SweepInterval 过期会话扫描间隔
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

const (
	DefaultChunkSizeBytes = 5 << 20 // 5 MiB
	DefaultSessionTTL     = 24 * time.Hour
)

func LoadConfig(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Upload.applyDefaults()

	return &config, nil
}

func (c *UploadConfig) applyDefaults() {
	if c.ChunkSizeBytes <= 0 {
		c.ChunkSizeBytes = DefaultChunkSizeBytes
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.CleanupWorkers <= 0 {
		c.CleanupWorkers = 2
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 10 * time.Minute
	}
}
