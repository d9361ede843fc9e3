package connmgr

import (
	"fmt"
	"time"

	"github.com/dep2p/go-lanpeer/internal/config"
)

// Config 连接管理器配置
type Config struct {
	// AppName 重复实例标记文件名前缀
	AppName string

	// MarkerDir 标记文件目录，空表示系统临时目录
	MarkerDir string

	// DialTimeout 出站拨号超时
	// 默认值: 5 秒
	DialTimeout time.Duration

	// WriteTimeout 单条消息写超时，0 表示不设置
	// 默认值: 5 秒
	WriteTimeout time.Duration

	// MaxMessageSize 单条消息上限（不含分隔符），超出的缓冲被丢弃
	// 默认值: 1 MiB
	MaxMessageSize int

	// ReadBufferSize 每次读取的缓冲区大小
	// 默认值: 32 KiB
	ReadBufferSize int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		AppName:        "lanpeer",
		DialTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		MaxMessageSize: 1 << 20,
		ReadBufferSize: 32 << 10,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.DialTimeout <= 0 {
		return fmt.Errorf("%w: dial timeout must be positive", ErrInvalidConfig)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("%w: negative write timeout", ErrInvalidConfig)
	}
	if c.MaxMessageSize < 0 {
		return fmt.Errorf("%w: negative max message size", ErrInvalidConfig)
	}
	if c.ReadBufferSize <= 0 {
		return fmt.Errorf("%w: read buffer size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ConfigFromUnified 从统一配置创建连接管理器配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	if cfg.AppName != "" {
		c.AppName = cfg.AppName
	}
	if d := cfg.Transport.DialTimeout.Duration(); d > 0 {
		c.DialTimeout = d
	}
	c.WriteTimeout = cfg.Transport.WriteTimeout.Duration()
	c.MaxMessageSize = cfg.Transport.MaxMessageSize
	return c
}
