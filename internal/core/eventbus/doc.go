// Package eventbus 实现进程内事件总线
//
// 按事件类型分发，订阅者通过带缓冲的通道接收事件：
//
//	bus := eventbus.NewBus()
//
//	sub, _ := bus.Subscribe(new(types.EvtPeerUp), eventbus.BufSize(64))
//	defer sub.Close()
//
//	em, _ := bus.Emitter(new(types.EvtPeerUp))
//	defer em.Close()
//	_ = em.Emit(types.EvtPeerUp{Peer: p})
//
// 订阅者缓冲区已满时事件被丢弃并告警，发射方永远不会阻塞。
// 每个 PeerService 持有自己的 Bus，不存在包级单例。
package eventbus
