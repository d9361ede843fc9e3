// Package lanpeer 提供局域网节点发现与 JSON 消息收发
//
// 同一局域网中的多个实例通过 mDNS/DNS-SD 互相发现，并在直连 TCP 连接上
// 交换任意 JSON 消息，无需中心协调者。
//
// # 快速开始
//
//	import "github.com/dep2p/go-lanpeer"
//
//	cfg := lanpeer.NewConfig()
//	svc, err := lanpeer.New(cfg, func(c *lanpeer.Conn, msg json.RawMessage, socketID string) {
//	    log.Printf("来自 %s: %s", socketID, msg)
//	})
//	if err != nil {
//	    return err
//	}
//
//	if err := svc.Start(ctx); err != nil {
//	    if errors.Is(err, lanpeer.ErrInstanceRunning) {
//	        // 本机已有实例
//	    }
//	    return err
//	}
//	defer svc.Stop(context.Background())
//
//	res := svc.Broadcast(ctx, map[string]any{"type": "timer-created", "id": 7})
//
// # 组件
//
//   - instance:  重复实例保护（锁文件 / 进程号文件 / 端口探测）
//   - mdns:      服务广播与浏览
//   - registry:  以 PeerKey 去重的节点表，发布上线/下线事件
//   - connmgr:   入站监听、出站连接池、换行分隔的 JSON 帧
//   - Broadcaster: 向所有已知节点并发发送同一消息
//
// 节点上线时 PeerService 会主动建立出站连接，失败只记录日志不重试；
// 广播时按需重新拨号。
//
// # 语义
//
//   - 同一连接上的消息按发送顺序到达
//   - 不同节点之间没有顺序保证，广播不是原子的
//   - 没有送达保证、认证或加密，假设局域网可信且组播可达
package lanpeer
