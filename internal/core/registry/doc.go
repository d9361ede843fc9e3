// Package registry 维护当前已知节点表
//
// 注册表以 PeerKey 去重：同一 PeerKey 再次出现时原地更新记录，
// 不重复触发上线事件。上线/下线通过 eventbus 以 types.EvtPeerUp 和
// types.EvtPeerDown 发布。
//
// 每个 PeerService 持有独立的 Registry，没有包级单例。
package registry
