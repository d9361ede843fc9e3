// Package types 定义 lanpeer 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他 lanpeer 内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - peer.go       - Peer 局域网对端记录
//   - enums.go      - Direction, ConnState
//   - events.go     - 对端上线/下线事件
package types
