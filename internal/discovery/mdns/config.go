package mdns

import (
	"fmt"
	"time"

	"github.com/dep2p/go-lanpeer/internal/config"
)

const (
	// DefaultServiceType DNS-SD 服务类型
	DefaultServiceType = "_lanpeer._tcp"

	// DefaultDomain mDNS 域名
	DefaultDomain = "local."
)

// Config 广播与浏览配置
type Config struct {
	// ServiceType 服务类型，默认 "_lanpeer._tcp"
	ServiceType string

	// Domain 域名，默认 "local."
	Domain string

	// QueryInterval 查询间隔
	QueryInterval time.Duration

	// QueryTimeout 单次查询等待响应的时间
	QueryTimeout time.Duration

	// PeerTTL 记录多久未再出现视为下线，必须大于 QueryInterval
	PeerTTL time.Duration

	// Interface 指定网络接口（空表示所有接口）
	Interface string

	// DisableIPv6 禁用 IPv6
	DisableIPv6 bool
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		ServiceType:   DefaultServiceType,
		Domain:        DefaultDomain,
		QueryInterval: 10 * time.Second,
		QueryTimeout:  3 * time.Second,
		PeerTTL:       35 * time.Second,
		DisableIPv6:   true,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.ServiceType == "" || c.Domain == "" {
		return fmt.Errorf("%w: service type and domain required", ErrInvalidConfig)
	}
	if c.QueryInterval <= 0 || c.QueryTimeout <= 0 {
		return fmt.Errorf("%w: query interval and timeout must be positive", ErrInvalidConfig)
	}
	if c.PeerTTL <= c.QueryInterval {
		return fmt.Errorf("%w: peer ttl %s must exceed query interval %s", ErrInvalidConfig, c.PeerTTL, c.QueryInterval)
	}
	return nil
}

// ConfigFromUnified 从统一配置创建发现配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	d := cfg.Discovery
	if d.ServiceType != "" {
		c.ServiceType = d.ServiceType
	}
	if d.Domain != "" {
		c.Domain = d.Domain
	}
	if d.QueryInterval > 0 {
		c.QueryInterval = d.QueryInterval.Duration()
	}
	if d.QueryTimeout > 0 {
		c.QueryTimeout = d.QueryTimeout.Duration()
	}
	if d.PeerTTL > 0 {
		c.PeerTTL = d.PeerTTL.Duration()
	}
	c.Interface = d.Interface
	c.DisableIPv6 = d.DisableIPv6
	return c
}
