package connmgr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	tec "github.com/jbenet/go-temp-err-catcher"
	"go.uber.org/multierr"

	"github.com/dep2p/go-lanpeer/internal/core/instance"
	"github.com/dep2p/go-lanpeer/internal/core/metrics"
	"github.com/dep2p/go-lanpeer/internal/util/logger"
	"github.com/dep2p/go-lanpeer/pkg/types"
)

var log = logger.Logger("connmgr")

// Handlers 连接事件回调
type Handlers struct {
	// OnMessage 每条有效消息调用一次（必需）
	OnMessage func(c *Conn, msg json.RawMessage, socketID string)

	// OnClientConnected 入站连接建立
	OnClientConnected func(c *Conn)

	// OnClientDisconnected 入站连接断开，每条连接至多一次
	OnClientDisconnected func(c *Conn)
}

// ListenOptions 监听参数
type ListenOptions struct {
	// Host 监听地址，空表示所有接口
	Host string

	// Port 监听端口，0 表示由系统分配
	Port int

	// PreventDuplicates 启用重复实例保护
	PreventDuplicates bool

	// DuplicateMethod 检测方式，默认 lockfile
	DuplicateMethod instance.Method

	// SpecificPort 端口探测的目标端口，默认等于 Port
	SpecificPort int
}

// DialFunc 拨号函数
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Option 管理器选项
type Option func(*Manager)

// WithDialer 替换出站拨号函数
func WithDialer(dial DialFunc) Option {
	return func(m *Manager) {
		if dial != nil {
			m.dial = dial
		}
	}
}

// dialCall 进行中的拨号，同一 PeerKey 的并发 Connect 共享结果
type dialCall struct {
	done chan struct{}
	conn *Conn
	err  error
}

// Manager 连接管理器
type Manager struct {
	cfg     Config
	metrics *metrics.Metrics
	dial    DialFunc

	// mu 保护监听器、回调和入站表
	mu       sync.Mutex
	ln       net.Listener
	handlers Handlers
	guard    instance.Guard
	inbound  map[string]*Conn

	// poolMu 保护出站连接池和进行中的拨号
	poolMu   sync.Mutex
	outbound map[string]*Conn
	pending  map[string]*dialCall

	closed atomic.Bool
	wg     sync.WaitGroup
}

// New 创建连接管理器，m 可以为 nil
func New(cfg Config, m *metrics.Metrics, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var d net.Dialer
	mgr := &Manager{
		cfg:      cfg,
		metrics:  m,
		dial:     d.DialContext,
		inbound:  make(map[string]*Conn),
		outbound: make(map[string]*Conn),
		pending:  make(map[string]*dialCall),
	}
	for _, opt := range opts {
		opt(mgr)
	}
	return mgr, nil
}

// ============================================================================
//                              入站
// ============================================================================

// StartListening 在重复实例检查通过后绑定监听器并开始接受连接
//
// 返回实际监听端口。检查未通过时返回 ErrInstanceRunning 且不绑定任何端口。
func (m *Manager) StartListening(ctx context.Context, h Handlers, opts ListenOptions) (int, error) {
	if h.OnMessage == nil {
		return 0, ErrNoMessageHandler
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Load() {
		return 0, ErrManagerClosed
	}
	if m.ln != nil {
		return 0, ErrAlreadyListening
	}

	var guard instance.Guard
	if opts.PreventDuplicates {
		g, err := m.acquireGuard(opts)
		if err != nil {
			return 0, err
		}
		guard = g
	}

	listenPort := opts.listenPort()
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(opts.Host, strconv.Itoa(listenPort)))
	if err != nil {
		if guard != nil {
			_ = guard.Release()
		}
		return 0, fmt.Errorf("connmgr: listen on port %d: %w", listenPort, err)
	}

	m.ln = ln
	m.handlers = h
	m.guard = guard

	port := ln.Addr().(*net.TCPAddr).Port
	log.Info("开始监听", "addr", ln.Addr().String(), "port", port)

	m.wg.Add(1)
	go m.acceptLoop(ln)
	return port, nil
}

// method 返回实际使用的检测方式
func (o ListenOptions) method() instance.Method {
	if o.DuplicateMethod == "" {
		return instance.MethodLockFile
	}
	return o.DuplicateMethod
}

// guardPort 返回端口检测的目标端口
func (o ListenOptions) guardPort() int {
	if o.SpecificPort != 0 {
		return o.SpecificPort
	}
	return o.Port
}

// listenPort 返回实际绑定的端口
//
// 端口检测且 Port 为 0 时绑定 SpecificPort，由首个实例占住该端口，后续实例据此判定重复。
func (o ListenOptions) listenPort() int {
	if o.PreventDuplicates && o.method() == instance.MethodPort && o.Port == 0 {
		return o.SpecificPort
	}
	return o.Port
}

func (m *Manager) acquireGuard(opts ListenOptions) (instance.Guard, error) {
	method := opts.method()
	if method == instance.MethodPort && opts.Port != 0 && opts.SpecificPort != 0 && opts.Port != opts.SpecificPort {
		return nil, fmt.Errorf("%w: specific port %d differs from listen port %d", ErrInvalidConfig, opts.SpecificPort, opts.Port)
	}

	g, err := instance.New(method, instance.Options{
		AppName: m.cfg.AppName,
		Dir:     m.cfg.MarkerDir,
		Port:    opts.guardPort(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	ok, err := g.TryAcquire()
	if err != nil {
		return nil, fmt.Errorf("connmgr: duplicate instance check (%s): %w", method, err)
	}
	if !ok {
		log.Warn("检测到已运行的实例", "method", method)
		return nil, ErrInstanceRunning
	}
	return g, nil
}

func (m *Manager) acceptLoop(ln net.Listener) {
	defer m.wg.Done()

	var catcher tec.TempErrCatcher
	for {
		nc, err := ln.Accept()
		if err != nil {
			if catcher.IsTemporary(err) {
				continue
			}
			if !m.closed.Load() && !errors.Is(err, net.ErrClosed) {
				log.Error("接受连接失败，停止监听", "err", err)
			}
			return
		}
		m.handleInbound(nc)
	}
}

func (m *Manager) handleInbound(nc net.Conn) {
	c := newConn(nc, types.DirInbound, "", m.cfg.MaxMessageSize)

	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		_ = nc.Close()
		return
	}
	m.inbound[c.socketID] = c
	onConnected := m.handlers.OnClientConnected
	m.metrics.ConnOpened(types.DirInbound)
	m.wg.Add(1)
	m.mu.Unlock()

	log.Debug("接受入站连接", "socket", c.socketID, "conn", c.id)

	if onConnected != nil {
		safeCall("OnClientConnected", func() { onConnected(c) })
	}

	go m.readLoop(c)
}

// ============================================================================
//                              出站
// ============================================================================

// Connect 返回到 p 的出站连接
//
// 已有打开的连接时直接复用；拨号失败返回错误，陈旧的池条目已被移除。
// 同一 PeerKey 的并发调用共享一次拨号。拨号不受任何调用方 ctx 约束，只受 DialTimeout 限制；
// ctx 只决定调用方等待多久，取消的调用方不影响其他等待者。
func (m *Manager) Connect(ctx context.Context, p types.Peer) (*Conn, error) {
	if p.IsZero() || p.Host == "" || p.Port <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPeer, p.PeerKey)
	}
	key := p.PeerKey

	m.poolMu.Lock()
	if m.closed.Load() {
		m.poolMu.Unlock()
		return nil, ErrManagerClosed
	}
	if c, ok := m.outbound[key]; ok {
		if c.IsOpen() {
			m.poolMu.Unlock()
			return c, nil
		}
		delete(m.outbound, key)
	}
	call, ok := m.pending[key]
	if !ok {
		call = &dialCall{done: make(chan struct{})}
		m.pending[key] = call
		go m.runDial(key, p, call)
	}
	m.poolMu.Unlock()

	select {
	case <-call.done:
		return call.conn, call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// runDial 执行共享拨号，结果写入 call 后关闭 call.done
func (m *Manager) runDial(key string, p types.Peer, call *dialCall) {
	dctx, cancel := context.WithTimeout(context.Background(), m.cfg.DialTimeout)
	defer cancel()

	c, err := m.dialPeer(dctx, p)

	m.poolMu.Lock()
	delete(m.pending, key)
	if err == nil && m.closed.Load() {
		_ = c.finishClose()
		c, err = nil, ErrManagerClosed
	}
	if err == nil {
		m.outbound[key] = c
		m.metrics.ConnOpened(types.DirOutbound)
		m.wg.Add(1)
	}
	m.poolMu.Unlock()

	call.conn, call.err = c, err
	close(call.done)

	if err == nil {
		go m.readLoop(c)
	}
}

func (m *Manager) dialPeer(ctx context.Context, p types.Peer) (*Conn, error) {
	nc, err := m.dial(ctx, "tcp", p.Addr())
	if err != nil {
		m.metrics.DialFailure()
		log.Debug("拨号失败", "peer", p.InstanceName, "addr", p.Addr(), "err", err)
		return nil, fmt.Errorf("connmgr: dial %s (%s): %w", p.InstanceName, p.Addr(), err)
	}

	c := newConn(nc, types.DirOutbound, p.PeerKey, m.cfg.MaxMessageSize)
	log.Debug("出站连接已建立", "peer", p.InstanceName, "addr", p.Addr(), "conn", c.id)
	return c, nil
}

// ============================================================================
//                              读写
// ============================================================================

// Send 序列化 payload 并写出一帧
//
// 连接为 nil 或未打开、序列化失败、写失败时返回 false；写失败会关闭连接。
// 需要原样发送已编码的 JSON 时传入 json.RawMessage。
func (m *Manager) Send(c *Conn, payload any) bool {
	if c == nil || !c.IsOpen() {
		return false
	}

	frame, err := json.Marshal(payload)
	if err != nil {
		log.Warn("消息序列化失败", "conn", c.id, "err", err)
		return false
	}
	frame = append(frame, Delimiter)

	if err := c.write(frame, m.cfg.WriteTimeout); err != nil {
		log.Debug("写入失败，关闭连接", "socket", c.socketID, "peer", c.peerKey, "err", err)
		_ = m.closeConn(c)
		return false
	}

	m.metrics.MessageSent(len(frame))
	return true
}

func (m *Manager) readLoop(c *Conn) {
	defer m.wg.Done()
	defer func() { _ = m.closeConn(c) }()

	buf := make([]byte, m.cfg.ReadBufferSize)
	for {
		n, err := c.nc.Read(buf)
		if n > 0 {
			m.metrics.BytesReceived(n)
			for _, line := range c.deframer.Feed(buf[:n]) {
				m.dispatch(c, line)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && c.IsOpen() {
				log.Debug("读取失败", "socket", c.socketID, "err", err)
			}
			return
		}
	}
}

// dispatch 校验并分发一行
func (m *Manager) dispatch(c *Conn, line []byte) {
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}
	if !json.Valid(line) {
		m.metrics.DecodeError()
		log.Warn("丢弃无效 JSON 片段", "socket", c.socketID, "size", len(line))
		return
	}

	m.mu.Lock()
	onMessage := m.handlers.OnMessage
	m.mu.Unlock()
	if onMessage == nil {
		return
	}

	m.metrics.MessageReceived()
	safeCall("OnMessage", func() { onMessage(c, json.RawMessage(line), c.socketID) })
}

// closeConn 移出所属表并关闭连接，重复调用无效果
func (m *Manager) closeConn(c *Conn) error {
	if !c.beginClose() {
		return nil
	}

	var onDisconnected func(*Conn)
	switch c.dir {
	case types.DirOutbound:
		m.poolMu.Lock()
		if m.outbound[c.peerKey] == c {
			delete(m.outbound, c.peerKey)
		}
		m.poolMu.Unlock()
	case types.DirInbound:
		m.mu.Lock()
		if m.inbound[c.socketID] == c {
			delete(m.inbound, c.socketID)
		}
		onDisconnected = m.handlers.OnClientDisconnected
		m.mu.Unlock()
	}

	err := c.finishClose()
	m.metrics.ConnClosed(c.dir)
	log.Debug("连接已关闭", "dir", c.dir, "socket", c.socketID, "conn", c.id)

	if onDisconnected != nil {
		safeCall("OnClientDisconnected", func() { onDisconnected(c) })
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// ============================================================================
//                              生命周期
// ============================================================================

// CloseAll 关闭监听器和全部连接，清空两张表并释放重复实例标记
//
// 等待所有读协程退出，不能在连接回调中调用。
func (m *Manager) CloseAll() error {
	if m.closed.Swap(true) {
		return nil
	}

	var errs error

	m.mu.Lock()
	ln, guard := m.ln, m.guard
	m.ln, m.guard = nil, nil
	inbound := make([]*Conn, 0, len(m.inbound))
	for _, c := range m.inbound {
		inbound = append(inbound, c)
	}
	m.mu.Unlock()

	if ln != nil {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = multierr.Append(errs, fmt.Errorf("close listener: %w", err))
		}
	}

	m.poolMu.Lock()
	outbound := make([]*Conn, 0, len(m.outbound))
	for _, c := range m.outbound {
		outbound = append(outbound, c)
	}
	m.poolMu.Unlock()

	for _, c := range append(inbound, outbound...) {
		errs = multierr.Append(errs, m.closeConn(c))
	}

	m.mu.Lock()
	m.inbound = make(map[string]*Conn)
	m.mu.Unlock()
	m.poolMu.Lock()
	m.outbound = make(map[string]*Conn)
	m.poolMu.Unlock()

	m.wg.Wait()

	if guard != nil {
		errs = multierr.Append(errs, guard.Release())
	}

	log.Info("连接管理器已关闭", "inbound", len(inbound), "outbound", len(outbound))
	return errs
}

// Port 返回监听端口，未监听时为 0
func (m *Manager) Port() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ln == nil {
		return 0
	}
	return m.ln.Addr().(*net.TCPAddr).Port
}

// InboundCount 入站连接数
func (m *Manager) InboundCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inbound)
}

// OutboundCount 出站连接数
func (m *Manager) OutboundCount() int {
	m.poolMu.Lock()
	defer m.poolMu.Unlock()
	return len(m.outbound)
}

// Outbound 返回 PeerKey 对应的打开的出站连接
func (m *Manager) Outbound(peerKey string) (*Conn, bool) {
	m.poolMu.Lock()
	defer m.poolMu.Unlock()

	c, ok := m.outbound[peerKey]
	if !ok || !c.IsOpen() {
		return nil, false
	}
	return c, true
}

// safeCall 调用外部回调，panic 记录后吞掉
func safeCall(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("回调 panic", "callback", name, "panic", r)
		}
	}()
	fn()
}
