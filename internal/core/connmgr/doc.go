// Package connmgr 管理节点间的 TCP 连接
//
// Manager 同时持有一个入站监听器和一个出站连接池：
//
//   - 入站：每个被接受的套接字以 "远端IP:端口" 为 socketID 登记在入站表，
//     断开时移除并触发 OnClientDisconnected（至多一次）
//   - 出站：每个 PeerKey 至多一条存活连接，Connect 复用已打开的连接，
//     同一 PeerKey 的并发 Connect 共享一次拨号；连接出错即移出连接池，
//     下一次 Connect 重新拨号
//
// # 线路格式
//
// 每条消息是 json.Marshal 的紧凑输出加一个 '\n'，没有长度前缀和校验和。
// 读取端按连接维护 Deframer 缓冲半条消息，每个完整行校验为 JSON 后
// 交给 OnMessage；无效片段记录日志后丢弃，连接保持打开。
//
//	m, _ := connmgr.New(connmgr.DefaultConfig(), nil)
//	port, err := m.StartListening(ctx, connmgr.Handlers{
//	    OnMessage: func(c *connmgr.Conn, msg json.RawMessage, socketID string) { ... },
//	}, connmgr.ListenOptions{})
//
//	c, err := m.Connect(ctx, peer)
//	ok := m.Send(c, map[string]any{"type": "hello"})
//
// 同一连接上的消息按到达顺序在读协程内依次分发；不同连接之间没有顺序保证。
package connmgr
