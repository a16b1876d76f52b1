package storagenode

import (
	"errors"
	"time"
)

// Config 存储节点客户端配置
type Config struct {
	// BaseURL 存储节点 API 基础地址
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// APIKey API 密钥（通过环境变量或密钥管理注入，禁止写入源码）
	APIKey string `mapstructure:"api_key" yaml:"api_key"`

	// Timeout 单次请求超时时间
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// MaxRetries 传输失败时的最大重试次数
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// RetryBackoff 重试初始退避时间
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("storagenode: base_url is required")
	}

	if c.APIKey == "" {
		return errors.New("storagenode: api_key is required")
	}

	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}

	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}

	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}

	return nil
}
