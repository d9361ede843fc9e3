package lanpeer

import (
	"github.com/dep2p/go-lanpeer/internal/core/connmgr"
	"github.com/dep2p/go-lanpeer/internal/core/eventbus"
	"github.com/dep2p/go-lanpeer/internal/core/metrics"
	"github.com/dep2p/go-lanpeer/internal/discovery/mdns"
)

// settings 构造参数
type settings struct {
	metrics        *metrics.Metrics
	bus            *eventbus.Bus
	markerDir      string
	connOpts       []connmgr.Option
	advertiserOpts []mdns.AdvertiserOption
	browserOpts    []mdns.BrowserOption
	onConnected    func(*connmgr.Conn)
	onDisconnected func(*connmgr.Conn)
}

// Option PeerService 选项
type Option func(*settings)

// WithMetrics 使用外部指标集合
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithEventBus 使用外部事件总线
func WithEventBus(bus *eventbus.Bus) Option {
	return func(s *settings) {
		s.bus = bus
	}
}

// WithMarkerDir 指定重复实例标记目录
func WithMarkerDir(dir string) Option {
	return func(s *settings) {
		s.markerDir = dir
	}
}

// WithConnOptions 传递连接管理器选项
func WithConnOptions(opts ...connmgr.Option) Option {
	return func(s *settings) {
		s.connOpts = append(s.connOpts, opts...)
	}
}

// WithAdvertiserOptions 传递广播器选项
func WithAdvertiserOptions(opts ...mdns.AdvertiserOption) Option {
	return func(s *settings) {
		s.advertiserOpts = append(s.advertiserOpts, opts...)
	}
}

// WithBrowserOptions 传递浏览器选项
func WithBrowserOptions(opts ...mdns.BrowserOption) Option {
	return func(s *settings) {
		s.browserOpts = append(s.browserOpts, opts...)
	}
}

// WithClientHandlers 设置入站连接建立/断开回调
func WithClientHandlers(onConnected, onDisconnected func(*connmgr.Conn)) Option {
	return func(s *settings) {
		s.onConnected = onConnected
		s.onDisconnected = onDisconnected
	}
}
