package types

import (
	"net"
	"strconv"
)

// 发现记录 TXT 元数据键
const (
	// MetaID 实例标识（等于实例名）
	MetaID = "id"

	// MetaTimestamp 广播时间戳（毫秒，十进制字符串）
	MetaTimestamp = "timestamp"
)

// Peer 局域网内已知的远端实例
//
// PeerKey 是发现协议分配的完全限定服务名（FQDN），
// 作为注册表的唯一键；InstanceName 仅用于展示和自身过滤。
type Peer struct {
	// InstanceName 对端广播的实例名
	InstanceName string `json:"instanceName"`

	// PeerKey 完全限定服务实例名，例如 "alice._lanpeer._tcp.local."
	PeerKey string `json:"peerKey"`

	// Host 拨号地址（IP 或主机名）
	Host string `json:"host"`

	// Port 拨号端口
	Port int `json:"port"`

	// Metadata 广播携带的 TXT 键值
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Addr 返回 host:port 形式的拨号地址
func (p Peer) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// Clone 深拷贝，避免调用方修改注册表内部的 Metadata
func (p Peer) Clone() Peer {
	if p.Metadata != nil {
		md := make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			md[k] = v
		}
		p.Metadata = md
	}
	return p
}

// IsZero 是否缺少 PeerKey
func (p Peer) IsZero() bool {
	return p.PeerKey == ""
}
