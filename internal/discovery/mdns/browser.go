package mdns

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/mdns"

	"github.com/dep2p/go-lanpeer/pkg/types"
)

// QueryFunc 执行一次 mDNS 查询，结果写入 params.Entries
type QueryFunc func(ctx context.Context, params *mdns.QueryParam) error

// queryWithContext 以 mdns.Query 执行查询
//
// mdns.Query 不接受 ctx，只在查询前检查取消，单次查询最长阻塞 params.Timeout。
func queryWithContext(ctx context.Context, params *mdns.QueryParam) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mdns.Query(params)
}

// SelfFunc 返回本实例当前广播的名称和端口
type SelfFunc func() (name string, port int, ok bool)

// entriesBuffer 单次查询结果通道容量，hashicorp/mdns 对满通道直接丢弃
const entriesBuffer = 64

// sighting 浏览到的记录及最后出现时间
type sighting struct {
	peer     types.Peer
	lastSeen time.Time
}

// BrowserOption 浏览器选项
type BrowserOption func(*Browser)

// WithQueryFunc 替换查询函数
func WithQueryFunc(q QueryFunc) BrowserOption {
	return func(b *Browser) {
		if q != nil {
			b.query = q
		}
	}
}

// WithBrowserClock 替换时钟
func WithBrowserClock(c clock.Clock) BrowserOption {
	return func(b *Browser) {
		if c != nil {
			b.clock = c
		}
	}
}

// Browser 服务浏览器
type Browser struct {
	cfg   Config
	clock clock.Clock
	query QueryFunc
	self  SelfFunc

	mu          sync.Mutex
	serviceType string
	seen        map[string]*sighting
	onUp        func(types.Peer)
	onDown      func(types.Peer)
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewBrowser 创建浏览器，self 可以为 nil
func NewBrowser(cfg Config, self SelfFunc, opts ...BrowserOption) (*Browser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Browser{
		cfg:   cfg,
		clock: clock.New(),
		query: queryWithContext,
		self:  self,
		seen:  make(map[string]*sighting),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// StartBrowsing 开始周期查询 serviceType，空值使用配置的服务类型
//
// 每次观察到非自身记录都调用 onUp，超过 PeerTTL 未再出现时调用 onDown。
// 回调在浏览协程内执行，panic 会被恢复并记录。
func (b *Browser) StartBrowsing(ctx context.Context, serviceType string, onUp, onDown func(types.Peer)) error {
	if serviceType == "" {
		serviceType = b.cfg.ServiceType
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		return ErrAlreadyBrowsing
	}

	ctx, cancel := context.WithCancel(ctx)
	b.serviceType = serviceType
	b.onUp = onUp
	b.onDown = onDown
	b.cancel = cancel
	b.done = make(chan struct{})

	go b.loop(ctx, b.done)

	log.Info("开始浏览服务", "service", serviceType, "domain", b.cfg.Domain, "interval", b.cfg.QueryInterval)
	return nil
}

// Stop 停止浏览并等待后台协程退出，可重复调用
func (b *Browser) Stop() {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel = nil
	b.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	b.mu.Lock()
	b.seen = make(map[string]*sighting)
	b.mu.Unlock()
	log.Debug("已停止浏览")
}

// Peers 返回当前可见的记录快照
func (b *Browser) Peers() []types.Peer {
	b.mu.Lock()
	out := make([]types.Peer, 0, len(b.seen))
	for _, s := range b.seen {
		out = append(out, s.peer.Clone())
	}
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].PeerKey < out[j].PeerKey })
	return out
}

func (b *Browser) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := b.clock.Ticker(b.cfg.QueryInterval)
	defer ticker.Stop()

	for {
		b.runQuery(ctx)
		b.sweep()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runQuery 执行一次查询并处理全部响应
func (b *Browser) runQuery(ctx context.Context) {
	entries := make(chan *mdns.ServiceEntry, entriesBuffer)
	handled := make(chan struct{})
	go func() {
		defer close(handled)
		for e := range entries {
			b.handleEntry(e)
		}
	}()

	params := &mdns.QueryParam{
		Service:             b.currentServiceType(),
		Domain:              b.cfg.Domain,
		Timeout:             b.cfg.QueryTimeout,
		Entries:             entries,
		WantUnicastResponse: true,
		DisableIPv6:         b.cfg.DisableIPv6,
	}
	if b.cfg.Interface != "" {
		if iface, err := net.InterfaceByName(b.cfg.Interface); err == nil {
			params.Interface = iface
		}
	}

	if err := b.query(ctx, params); err != nil && ctx.Err() == nil {
		log.Debug("mDNS 查询失败", "err", err)
	}

	close(entries)
	<-handled
}

func (b *Browser) currentServiceType() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.serviceType
}

// handleEntry 处理一条响应：过滤自身、刷新最后出现时间并通知 onUp
func (b *Browser) handleEntry(e *mdns.ServiceEntry) {
	p, ok := entryToPeer(e, b.currentServiceType(), b.cfg.Domain)
	if !ok {
		return
	}
	if b.isSelf(p) {
		return
	}

	b.mu.Lock()
	s, exists := b.seen[p.PeerKey]
	if !exists {
		s = &sighting{}
		b.seen[p.PeerKey] = s
	}
	s.peer = p
	s.lastSeen = b.clock.Now()
	onUp := b.onUp
	b.mu.Unlock()

	if !exists {
		log.Debug("发现服务", "name", p.InstanceName, "key", p.PeerKey, "addr", p.Addr())
	}
	if onUp != nil {
		safeCallback("onUp", func() { onUp(p.Clone()) })
	}
}

// isSelf 名称和端口都与本实例广播一致
func (b *Browser) isSelf(p types.Peer) bool {
	if b.self == nil {
		return false
	}
	name, port, ok := b.self()
	return ok && p.InstanceName == name && p.Port == port
}

// sweep 移除超过 PeerTTL 未出现的记录并通知 onDown
func (b *Browser) sweep() {
	cutoff := b.clock.Now().Add(-b.cfg.PeerTTL)

	b.mu.Lock()
	var expired []types.Peer
	for key, s := range b.seen {
		if s.lastSeen.Before(cutoff) {
			expired = append(expired, s.peer)
			delete(b.seen, key)
		}
	}
	onDown := b.onDown
	b.mu.Unlock()

	for _, p := range expired {
		log.Debug("服务记录过期", "name", p.InstanceName, "key", p.PeerKey)
		if onDown != nil {
			p := p
			safeCallback("onDown", func() { onDown(p) })
		}
	}
}

func safeCallback(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("发现回调 panic", "callback", name, "panic", r)
		}
	}()
	fn()
}
