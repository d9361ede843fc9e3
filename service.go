package lanpeer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-lanpeer/internal/config"
	"github.com/dep2p/go-lanpeer/internal/core/connmgr"
	"github.com/dep2p/go-lanpeer/internal/core/eventbus"
	"github.com/dep2p/go-lanpeer/internal/core/instance"
	"github.com/dep2p/go-lanpeer/internal/core/metrics"
	"github.com/dep2p/go-lanpeer/internal/core/registry"
	"github.com/dep2p/go-lanpeer/internal/discovery/mdns"
	"github.com/dep2p/go-lanpeer/internal/util/logger"
	"github.com/dep2p/go-lanpeer/pkg/types"
)

var log = logger.Logger("lanpeer")

// Config 服务配置
type Config = config.Config

// Conn 节点连接
type Conn = connmgr.Conn

// EventBus 进程内事件总线
type EventBus = eventbus.Bus

// NewConfig 返回带默认值的配置，实例名随机生成
func NewConfig() *Config { return config.NewConfig() }

// LoadConfig 在默认配置之上叠加 JSON 文件和 LANPEER_ 环境变量
func LoadConfig(path string) (*Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MessageHandler 消息回调，同一连接上的消息按顺序调用
type MessageHandler func(c *Conn, msg json.RawMessage, socketID string)

// PeerInfo 对外展示的节点信息
type PeerInfo struct {
	InstanceName string            `json:"instanceName"`
	Host         string            `json:"host"`
	Port         int               `json:"port"`
	Metadata     map[string]string `json:"metadata"`
}

// State 服务状态
type State int

const (
	// StateIdle 已创建未启动
	StateIdle State = iota
	// StateRunning 运行中
	StateRunning
	// StateStopped 已停止
	StateStopped
)

// String 返回状态名
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// PeerService 组装发现、注册表、连接管理和广播
type PeerService struct {
	cfg       *config.Config
	onMessage MessageHandler
	set       settings

	bus         *eventbus.Bus
	metrics     *metrics.Metrics
	registry    *registry.Registry
	conns       *connmgr.Manager
	advertiser  *mdns.Advertiser
	browser     *mdns.Browser
	broadcaster *Broadcaster
	msgEmitter  *eventbus.Emitter

	mu     sync.Mutex
	state  State
	handle *mdns.Handle
	upSub  *eventbus.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New 创建服务，onMessage 可以为 nil
func New(cfg *config.Config, onMessage MessageHandler, opts ...Option) (*PeerService, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("lanpeer: invalid config: %w", err)
	}

	var set settings
	for _, opt := range opts {
		opt(&set)
	}
	if set.bus == nil {
		set.bus = eventbus.NewBus()
	}
	if set.metrics == nil {
		set.metrics = metrics.New()
	}

	s := &PeerService{
		cfg:       cfg.Clone(),
		onMessage: onMessage,
		set:       set,
		bus:       set.bus,
		metrics:   set.metrics,
	}

	reg, err := registry.New(s.bus, s.metrics)
	if err != nil {
		return nil, err
	}
	s.registry = reg

	connCfg := connmgr.ConfigFromUnified(cfg)
	connCfg.MarkerDir = set.markerDir
	if s.conns, err = connmgr.New(connCfg, s.metrics, set.connOpts...); err != nil {
		_ = reg.Close()
		return nil, err
	}

	mdnsCfg := mdns.ConfigFromUnified(cfg)
	if s.advertiser, err = mdns.NewAdvertiser(mdnsCfg, set.advertiserOpts...); err != nil {
		_ = reg.Close()
		return nil, err
	}
	if s.browser, err = mdns.NewBrowser(mdnsCfg, s.advertiser.Self, set.browserOpts...); err != nil {
		_ = reg.Close()
		return nil, err
	}

	if s.msgEmitter, err = s.bus.Emitter(new(types.EvtMessage)); err != nil {
		_ = reg.Close()
		return nil, err
	}

	s.broadcaster = NewBroadcaster(s.registry, s.conns, cfg.Broadcast.Concurrency, s.metrics)
	return s, nil
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 绑定监听器、发布广播、开始浏览，并在节点上线时主动连接
//
// 重复实例保护拒绝时返回 ErrInstanceRunning，其他组件都不会启动。
func (s *PeerService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateRunning:
		return ErrAlreadyStarted
	case StateStopped:
		return ErrServiceClosed
	}

	method, err := instance.ParseMethod(s.cfg.DuplicateMethod)
	if err != nil {
		return err
	}

	port, err := s.conns.StartListening(ctx, connmgr.Handlers{
		OnMessage:            s.dispatch,
		OnClientConnected:    s.set.onConnected,
		OnClientDisconnected: s.set.onDisconnected,
	}, connmgr.ListenOptions{
		Port:              s.cfg.ListenPort,
		PreventDuplicates: s.cfg.PreventDuplicates,
		DuplicateMethod:   method,
		SpecificPort:      s.cfg.SpecificPort,
	})
	if err != nil {
		return err
	}

	handle, err := s.advertiser.Publish(s.cfg.InstanceName, port)
	if err != nil {
		_ = s.conns.CloseAll()
		return fmt.Errorf("lanpeer: publish: %w", err)
	}

	sub, err := s.bus.Subscribe(new(types.EvtPeerUp), eventbus.BufSize(64))
	if err != nil {
		_ = s.advertiser.Unpublish(handle)
		_ = s.conns.CloseAll()
		return fmt.Errorf("lanpeer: subscribe peer-up: %w", err)
	}

	// 运行期上下文与 Start 的 ctx 无关，Start 的 ctx 可能只覆盖启动阶段
	runCtx, cancel := context.WithCancel(context.Background())

	s.wg.Add(1)
	go s.connectOnPeerUp(runCtx, sub)

	if err := s.browser.StartBrowsing(runCtx, s.cfg.Discovery.ServiceType, s.onPeerFound, s.onPeerLost); err != nil {
		cancel()
		_ = sub.Close()
		s.wg.Wait()
		_ = s.advertiser.Unpublish(handle)
		_ = s.conns.CloseAll()
		return fmt.Errorf("lanpeer: browse: %w", err)
	}

	s.handle = handle
	s.upSub = sub
	s.cancel = cancel
	s.state = StateRunning

	log.Info("服务已启动", "name", s.cfg.InstanceName, "port", port,
		"service", s.cfg.Discovery.ServiceType, "prevent_duplicates", s.cfg.PreventDuplicates)
	return nil
}

// Stop 停止广播和浏览、关闭所有连接并释放重复实例标记，可重复调用
//
// 停止后的服务不能再次启动。
func (s *PeerService) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStopped {
		return nil
	}
	wasRunning := s.state == StateRunning
	s.state = StateStopped

	var errs error
	if wasRunning {
		errs = multierr.Append(errs, s.advertiser.Unpublish(s.handle))
		s.browser.Stop()
		s.cancel()
		errs = multierr.Append(errs, s.upSub.Close())
		s.wg.Wait()
	}
	errs = multierr.Append(errs, s.conns.CloseAll())
	errs = multierr.Append(errs, s.msgEmitter.Close())
	errs = multierr.Append(errs, s.registry.Close())

	log.Info("服务已停止", "name", s.cfg.InstanceName)
	return errs
}

// ============================================================================
//                              事件处理
// ============================================================================

func (s *PeerService) onPeerFound(p types.Peer) {
	s.registry.AddPeer(p)
}

func (s *PeerService) onPeerLost(p types.Peer) {
	s.registry.RemovePeer(p)
}

// connectOnPeerUp 节点上线时尝试建立出站连接，失败不重试
func (s *PeerService) connectOnPeerUp(ctx context.Context, sub *eventbus.Subscription) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.Out():
			if !ok {
				return
			}
			evt, ok := e.(types.EvtPeerUp)
			if !ok {
				continue
			}

			s.wg.Add(1)
			go func(p types.Peer) {
				defer s.wg.Done()
				if _, err := s.conns.Connect(ctx, p); err != nil {
					log.Info("连接新节点失败", "peer", p.InstanceName, "addr", p.Addr(), "err", err)
					return
				}
				log.Debug("已连接新节点", "peer", p.InstanceName, "addr", p.Addr())
			}(evt.Peer)
		}
	}
}

// dispatch 把消息交给应用回调并发布 EvtMessage
func (s *PeerService) dispatch(c *connmgr.Conn, msg json.RawMessage, socketID string) {
	if s.onMessage != nil {
		s.onMessage(c, msg, socketID)
	}
	if err := s.msgEmitter.Emit(types.EvtMessage{
		SocketID: socketID,
		Payload:  msg,
		Time:     time.Now(),
	}); err != nil {
		log.Debug("发布消息事件失败", "err", err)
	}
}

// ============================================================================
//                              访问接口
// ============================================================================

// Broadcast 向所有已知节点发送 payload
func (s *PeerService) Broadcast(ctx context.Context, payload any) BroadcastResult {
	return s.broadcaster.Broadcast(ctx, payload)
}

// Peers 返回已知节点，从不返回 nil
func (s *PeerService) Peers() []PeerInfo {
	peers := s.registry.GetAll()
	out := make([]PeerInfo, 0, len(peers))
	for _, p := range peers {
		md := p.Metadata
		if md == nil {
			md = map[string]string{}
		}
		out = append(out, PeerInfo{
			InstanceName: p.InstanceName,
			Host:         p.Host,
			Port:         p.Port,
			Metadata:     md,
		})
	}
	return out
}

// EventBus 返回事件总线，可订阅 types.EvtPeerUp、types.EvtPeerDown、types.EvtMessage
func (s *PeerService) EventBus() *eventbus.Bus { return s.bus }

// Metrics 返回指标集合
func (s *PeerService) Metrics() *metrics.Metrics { return s.metrics }

// Port 返回监听端口，未启动时为 0
func (s *PeerService) Port() int { return s.conns.Port() }

// InstanceName 返回广播的实例名
func (s *PeerService) InstanceName() string { return s.cfg.InstanceName }

// State 返回当前状态
func (s *PeerService) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
