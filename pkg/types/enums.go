package types

// ============================================================================
//                              Direction - 连接方向
// ============================================================================

// Direction 连接方向
type Direction int

const (
	// DirUnknown 未知方向
	DirUnknown Direction = iota
	// DirInbound 入站连接（由监听器接受）
	DirInbound
	// DirOutbound 出站连接（主动拨号到已知对端）
	DirOutbound
)

// String 返回方向的字符串表示
func (d Direction) String() string {
	switch d {
	case DirInbound:
		return "inbound"
	case DirOutbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              ConnState - 连接状态
// ============================================================================

// ConnState 连接状态
//
// 状态只会单向推进：Connecting → Open → Closing → Closed。
type ConnState int32

const (
	// ConnStateConnecting 拨号中
	ConnStateConnecting ConnState = iota
	// ConnStateOpen 可读写
	ConnStateOpen
	// ConnStateClosing 关闭中（出站连接此时已移出连接池）
	ConnStateClosing
	// ConnStateClosed 已关闭
	ConnStateClosed
)

// String 返回状态的字符串表示
func (s ConnState) String() string {
	switch s {
	case ConnStateConnecting:
		return "connecting"
	case ConnStateOpen:
		return "open"
	case ConnStateClosing:
		return "closing"
	case ConnStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
