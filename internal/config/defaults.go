package config

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
//                              默认值
// ============================================================================

const (
	// DefaultAppName 默认应用名
	DefaultAppName = "lanpeer"

	// DefaultServiceType 默认服务类型
	DefaultServiceType = "_lanpeer._tcp"

	// DefaultDomain 默认 mDNS 域
	DefaultDomain = "local."

	// DefaultDuplicateMethod 默认重复实例检测方式
	DefaultDuplicateMethod = "lockfile"

	// DefaultHTTPAddr 默认 HTTP 监听地址
	DefaultHTTPAddr = "127.0.0.1:8080"
)

// ============================================================================
//                              环境变量
// ============================================================================

const (
	// EnvPrefix 环境变量前缀
	EnvPrefix = "LANPEER_"

	// EnvAppName 应用名
	EnvAppName = "APP_NAME"

	// EnvInstanceName 实例名
	EnvInstanceName = "INSTANCE_NAME"

	// EnvListenPort 监听端口
	EnvListenPort = "LISTEN_PORT"

	// EnvHTTPAddr HTTP 地址
	EnvHTTPAddr = "HTTP_ADDR"

	// EnvPreventDuplicates 启用重复实例保护
	EnvPreventDuplicates = "PREVENT_DUPLICATES"

	// EnvDuplicateMethod 检测方式
	EnvDuplicateMethod = "DUPLICATE_METHOD"

	// EnvSpecificPort port 检测方式的目标端口
	EnvSpecificPort = "SPECIFIC_PORT"

	// EnvServiceType 服务类型
	EnvServiceType = "SERVICE_TYPE"

	// EnvInterface 网络接口
	EnvInterface = "INTERFACE"
)

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		AppName:         DefaultAppName,
		InstanceName:    DefaultInstanceName(),
		ListenPort:      0,
		HTTPAddr:        DefaultHTTPAddr,
		DuplicateMethod: DefaultDuplicateMethod,
		Discovery:       DefaultDiscoveryConfig(),
		Transport:       DefaultTransportConfig(),
		Broadcast:       DefaultBroadcastConfig(),
	}
}

// DefaultInstanceName 生成 lanpeer-<8 位十六进制>
func DefaultInstanceName() string {
	return DefaultAppName + "-" + uuid.NewString()[:8]
}

// DefaultDiscoveryConfig 默认发现配置
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		ServiceType:   DefaultServiceType,
		Domain:        DefaultDomain,
		QueryInterval: Duration(10 * time.Second),
		QueryTimeout:  Duration(3 * time.Second),
		PeerTTL:       Duration(35 * time.Second),
		DisableIPv6:   true,
	}
}

// DefaultTransportConfig 默认传输配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		DialTimeout:    Duration(5 * time.Second),
		WriteTimeout:   Duration(5 * time.Second),
		MaxMessageSize: 1 << 20,
	}
}

// DefaultBroadcastConfig 默认广播配置
func DefaultBroadcastConfig() BroadcastConfig {
	return BroadcastConfig{
		Concurrency: 16,
	}
}
