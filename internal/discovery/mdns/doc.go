// Package mdns 基于 mDNS/DNS-SD 的局域网服务广播与浏览
//
// Advertiser 为本实例发布一条 DNS-SD 记录：
//
//	<实例名>._lanpeer._tcp.local.  端口 + TXT: id=<实例名> timestamp=<毫秒>
//
// Browser 周期性查询同一服务类型，把每条响应转换为 types.Peer 交给 onUp。
// hashicorp/mdns 不提供下线通知，超过 PeerTTL 未再出现的记录由清理
// 循环判定为下线并交给 onDown。与本实例广播的名称和端口都相同的记录
// 被视为自身广播，直接丢弃。
//
// 查询函数和响应服务器的创建函数可以替换，测试无需真实组播网络。
package mdns
