package mdns

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/mdns"

	"github.com/dep2p/go-lanpeer/internal/util/logger"
)

var log = logger.Logger("discovery.mdns")

// Responder 运行中的 mDNS 响应服务器
type Responder interface {
	Shutdown() error
}

// ServerFactory 创建响应服务器
type ServerFactory func(cfg *mdns.Config) (Responder, error)

func defaultServerFactory(cfg *mdns.Config) (Responder, error) {
	return mdns.NewServer(cfg)
}

// Handle 一次广播的句柄
type Handle struct {
	// Name 广播的实例名
	Name string

	// Port 广播的端口
	Port int

	// Published 广播时间，即 TXT timestamp
	Published time.Time

	// IPs 广播的本机地址
	IPs []net.IP

	server   Responder
	stopOnce sync.Once
	stopErr  error
}

func (h *Handle) shutdown() error {
	h.stopOnce.Do(func() {
		if h.server != nil {
			h.stopErr = h.server.Shutdown()
		}
	})
	return h.stopErr
}

// AdvertiserOption 广播器选项
type AdvertiserOption func(*Advertiser)

// WithServerFactory 替换响应服务器的创建函数
func WithServerFactory(f ServerFactory) AdvertiserOption {
	return func(a *Advertiser) {
		if f != nil {
			a.newServer = f
		}
	}
}

// WithAdvertiserClock 替换时钟
func WithAdvertiserClock(c clock.Clock) AdvertiserOption {
	return func(a *Advertiser) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithLocalIPs 固定广播地址，不再枚举网卡
func WithLocalIPs(ips ...net.IP) AdvertiserOption {
	return func(a *Advertiser) {
		if len(ips) > 0 {
			a.localIPs = func() []net.IP { return ips }
		}
	}
}

// Advertiser 服务广播器，同一时间至多一条广播
type Advertiser struct {
	cfg       Config
	clock     clock.Clock
	newServer ServerFactory
	localIPs  func() []net.IP

	mu      sync.Mutex
	current *Handle
}

// NewAdvertiser 创建广播器
func NewAdvertiser(cfg Config, opts ...AdvertiserOption) (*Advertiser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Advertiser{
		cfg:       cfg,
		clock:     clock.New(),
		newServer: defaultServerFactory,
	}
	a.localIPs = func() []net.IP { return localIPs(cfg.Interface, cfg.DisableIPv6) }
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Publish 以 name 和 port 发布服务记录
//
// 已有广播时记录告警并返回现有句柄。
func (a *Advertiser) Publish(name string, port int) (*Handle, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != nil {
		log.Warn("已在广播，忽略重复发布", "name", a.current.Name, "port", a.current.Port,
			"requested_name", name, "requested_port", port)
		return a.current, nil
	}

	published := a.clock.Now()
	ips := a.localIPs()
	txt := buildTXT(name, published)

	service, err := mdns.NewMDNSService(name, a.cfg.ServiceType, a.cfg.Domain, "", port, ips, txt)
	if err != nil {
		return nil, fmt.Errorf("%w: create service record: %v", ErrServerStart, err)
	}

	serverCfg := &mdns.Config{Zone: service}
	if a.cfg.Interface != "" {
		iface, err := net.InterfaceByName(a.cfg.Interface)
		if err != nil {
			log.Warn("找不到指定接口，使用所有接口", "interface", a.cfg.Interface, "err", err)
		} else {
			serverCfg.Iface = iface
		}
	}

	server, err := a.newServer(serverCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServerStart, err)
	}

	a.current = &Handle{
		Name:      name,
		Port:      port,
		Published: published,
		IPs:       ips,
		server:    server,
	}
	log.Info("已发布服务", "name", name, "service", a.cfg.ServiceType, "port", port, "ips", ips)
	return a.current, nil
}

// Unpublish 停止广播，nil 句柄或重复调用无效果
func (a *Advertiser) Unpublish(h *Handle) error {
	if h == nil {
		return nil
	}

	a.mu.Lock()
	if a.current == h {
		a.current = nil
	}
	a.mu.Unlock()

	if err := h.shutdown(); err != nil {
		return fmt.Errorf("mdns: shutdown responder: %w", err)
	}
	log.Debug("已停止广播", "name", h.Name, "port", h.Port)
	return nil
}

// Self 返回当前广播的名称和端口，用于过滤自身记录
func (a *Advertiser) Self() (string, int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil {
		return "", 0, false
	}
	return a.current.Name, a.current.Port, true
}
