package lanpeer

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-lanpeer/internal/core/connmgr"
	"github.com/dep2p/go-lanpeer/internal/core/metrics"
	"github.com/dep2p/go-lanpeer/pkg/types"
)

//go:generate mockgen -destination=mock_broadcaster_test.go -package=lanpeer . PeerSource,Transport

// PeerSource 提供广播目标快照
type PeerSource interface {
	GetAll() []types.Peer
}

// Transport 建立连接并发送消息
type Transport interface {
	Connect(ctx context.Context, p types.Peer) (*connmgr.Conn, error)
	Send(c *connmgr.Conn, payload any) bool
}

// BroadcastResult 一次广播的结果
type BroadcastResult struct {
	// Peers 快照中的节点数
	Peers int `json:"peers"`

	// Delivered 成功写出的节点数
	Delivered int `json:"delivered"`

	// Failed 连接或发送失败的节点数
	Failed int `json:"failed"`
}

// Broadcaster 向所有已知节点发送同一消息
type Broadcaster struct {
	peers       PeerSource
	transport   Transport
	concurrency int
	metrics     *metrics.Metrics
}

// NewBroadcaster 创建广播器，concurrency <= 0 时不限制并发
func NewBroadcaster(peers PeerSource, transport Transport, concurrency int, m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{
		peers:       peers,
		transport:   transport,
		concurrency: concurrency,
		metrics:     m,
	}
}

// Broadcast 对注册表快照中的每个节点复用或建立连接并发送 payload
//
// 单个节点失败只记录日志，不影响其他节点。payload 只序列化一次。
func (b *Broadcaster) Broadcast(ctx context.Context, payload any) BroadcastResult {
	b.metrics.Broadcast()

	peers := b.peers.GetAll()
	res := BroadcastResult{Peers: len(peers)}
	if len(peers) == 0 {
		return res
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		log.Warn("广播消息序列化失败", "err", err)
		res.Failed = len(peers)
		return res
	}
	msg := json.RawMessage(raw)

	var delivered atomic.Int32
	var g errgroup.Group
	if b.concurrency > 0 {
		g.SetLimit(b.concurrency)
	}

	for _, p := range peers {
		p := p
		g.Go(func() error {
			c, err := b.transport.Connect(ctx, p)
			if err != nil {
				log.Warn("广播连接失败", "peer", p.InstanceName, "addr", p.Addr(), "err", err)
				return nil
			}
			if !b.transport.Send(c, msg) {
				log.Warn("广播发送失败", "peer", p.InstanceName, "addr", p.Addr())
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res.Delivered = int(delivered.Load())
	res.Failed = res.Peers - res.Delivered
	log.Debug("广播完成", "peers", res.Peers, "delivered", res.Delivered, "failed", res.Failed)
	return res
}
