// Package config 提供 lanpeer 配置管理
//
// config 包负责：
// - 定义配置结构（JSON 可序列化）
// - 提供默认值
// - 配置校验
// - 从 JSON 文件和 LANPEER_ 环境变量加载
//
// 优先级：命令行参数 > 环境变量 > 配置文件 > 默认值。
package config

// Config 配置结构
type Config struct {
	// AppName 应用名，决定重复实例标记文件名
	AppName string `json:"appName"`

	// InstanceName 广播的实例名，默认 lanpeer-<uuid 前 8 位>
	InstanceName string `json:"instanceName"`

	// ListenPort 节点间 TCP 监听端口，0 表示由系统分配
	ListenPort int `json:"listenPort"`

	// HTTPAddr HTTP 接口监听地址，空表示不启动
	HTTPAddr string `json:"httpAddr"`

	// PreventDuplicates 启用重复实例保护
	PreventDuplicates bool `json:"preventDuplicates"`

	// DuplicateMethod 检测方式：lockfile、pidfile、port
	DuplicateMethod string `json:"duplicateMethod"`

	// SpecificPort port 检测方式的目标端口，0 表示使用 ListenPort
	//
	// ListenPort 为 0 时节点绑定 SpecificPort，由它占住端口供后续实例检测。
	SpecificPort int `json:"specificPort,omitempty"`

	// Discovery 发现配置
	Discovery DiscoveryConfig `json:"discovery"`

	// Transport 传输配置
	Transport TransportConfig `json:"transport"`

	// Broadcast 广播配置
	Broadcast BroadcastConfig `json:"broadcast"`
}

// DiscoveryConfig mDNS 发现配置
type DiscoveryConfig struct {
	// ServiceType DNS-SD 服务类型
	ServiceType string `json:"serviceType"`

	// Domain 域名
	Domain string `json:"domain"`

	// QueryInterval 查询间隔
	QueryInterval Duration `json:"queryInterval"`

	// QueryTimeout 单次查询超时
	QueryTimeout Duration `json:"queryTimeout"`

	// PeerTTL 记录多久未再出现视为下线
	PeerTTL Duration `json:"peerTTL"`

	// Interface 指定网络接口
	Interface string `json:"interface,omitempty"`

	// DisableIPv6 禁用 IPv6
	DisableIPv6 bool `json:"disableIPv6"`
}

// TransportConfig TCP 传输配置
type TransportConfig struct {
	// DialTimeout 拨号超时
	DialTimeout Duration `json:"dialTimeout"`

	// WriteTimeout 写超时
	WriteTimeout Duration `json:"writeTimeout"`

	// MaxMessageSize 单条消息上限（字节）
	MaxMessageSize int `json:"maxMessageSize"`
}

// BroadcastConfig 广播配置
type BroadcastConfig struct {
	// Concurrency 同时进行的连接/发送数
	Concurrency int `json:"concurrency"`
}

// Clone 返回副本
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
