package types

import "time"

// ============================================================================
//                              对端事件
// ============================================================================

// EvtPeerUp 新对端加入注册表
//
// 同一 PeerKey 的刷新不会产生该事件。
type EvtPeerUp struct {
	Peer Peer
	Time time.Time
}

// EvtPeerDown 对端从注册表移除
type EvtPeerDown struct {
	Peer Peer
	Time time.Time
}

// EvtMessage 收到一条有效消息
//
// Payload 是经过校验的 JSON，SocketID 是发送方套接字的 "IP:端口"。
type EvtMessage struct {
	SocketID string
	Payload  []byte
	Time     time.Time
}
