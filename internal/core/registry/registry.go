package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-lanpeer/internal/core/eventbus"
	"github.com/dep2p/go-lanpeer/internal/core/metrics"
	"github.com/dep2p/go-lanpeer/internal/util/logger"
	"github.com/dep2p/go-lanpeer/pkg/types"
)

var log = logger.Logger("registry")

// Registry 节点注册表
type Registry struct {
	mu    sync.RWMutex
	peers map[string]types.Peer

	upEmitter   *eventbus.Emitter
	downEmitter *eventbus.Emitter
	metrics     *metrics.Metrics

	now func() time.Time
}

// New 创建注册表，m 可以为 nil
func New(bus *eventbus.Bus, m *metrics.Metrics) (*Registry, error) {
	if bus == nil {
		return nil, ErrNilBus
	}

	up, err := bus.Emitter(new(types.EvtPeerUp))
	if err != nil {
		return nil, fmt.Errorf("registry: create peer-up emitter: %w", err)
	}
	down, err := bus.Emitter(new(types.EvtPeerDown))
	if err != nil {
		_ = up.Close()
		return nil, fmt.Errorf("registry: create peer-down emitter: %w", err)
	}

	return &Registry{
		peers:       make(map[string]types.Peer),
		upEmitter:   up,
		downEmitter: down,
		metrics:     m,
		now:         time.Now,
	}, nil
}

// AddPeer 添加或更新节点
//
// 返回 true 表示新节点（已发布 EvtPeerUp）。PeerKey 为空时忽略。
func (r *Registry) AddPeer(p types.Peer) bool {
	if p.IsZero() {
		log.Debug("忽略无 PeerKey 的节点", "name", p.InstanceName)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.peers[p.PeerKey]
	r.peers[p.PeerKey] = p.Clone()
	if exists {
		log.Debug("刷新节点", "key", p.PeerKey, "addr", p.Addr())
		return false
	}

	r.metrics.SetKnownPeers(len(r.peers))
	r.metrics.PeerUp()
	log.Info("节点上线", "name", p.InstanceName, "key", p.PeerKey, "addr", p.Addr())

	// 持锁发布保证同一节点的上线/下线事件有序，Emit 不会阻塞
	if err := r.upEmitter.Emit(types.EvtPeerUp{Peer: p.Clone(), Time: r.now()}); err != nil {
		log.Warn("发布上线事件失败", "key", p.PeerKey, "err", err)
	}
	return true
}

// RemovePeer 移除节点
//
// 返回 true 表示确实移除了记录（已发布 EvtPeerDown，携带被移除的记录）。
func (r *Registry) RemovePeer(p types.Peer) bool {
	if p.IsZero() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed, ok := r.peers[p.PeerKey]
	if !ok {
		return false
	}
	delete(r.peers, p.PeerKey)

	r.metrics.SetKnownPeers(len(r.peers))
	r.metrics.PeerDown()
	log.Info("节点下线", "name", removed.InstanceName, "key", removed.PeerKey)

	if err := r.downEmitter.Emit(types.EvtPeerDown{Peer: removed, Time: r.now()}); err != nil {
		log.Warn("发布下线事件失败", "key", p.PeerKey, "err", err)
	}
	return true
}

// GetByKey 按 PeerKey 查找
func (r *Registry) GetByKey(key string) (types.Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.peers[key]
	if !ok {
		return types.Peer{}, false
	}
	return p.Clone(), true
}

// GetByName 按实例名查找（线性扫描）
func (r *Registry) GetByName(name string) (types.Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.peers {
		if p.InstanceName == name {
			return p.Clone(), true
		}
	}
	return types.Peer{}, false
}

// GetAll 返回快照，按 PeerKey 排序
func (r *Registry) GetAll() []types.Peer {
	r.mu.RLock()
	out := make([]types.Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].PeerKey < out[j].PeerKey })
	return out
}

// Len 返回节点数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Close 释放事件发射器
func (r *Registry) Close() error {
	return multierr.Combine(r.upEmitter.Close(), r.downEmitter.Close())
}
