package lanpeer

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	hmdns "github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-lanpeer/internal/config"
	"github.com/dep2p/go-lanpeer/internal/core/connmgr"
	"github.com/dep2p/go-lanpeer/internal/discovery/mdns"
	"github.com/dep2p/go-lanpeer/pkg/types"
)

// ============================================================================
//                              测试辅助
// ============================================================================

// fakeLAN 在进程内模拟一个组播域：所有广播器注册到这里，所有查询从这里读取
type fakeLAN struct {
	mu       sync.Mutex
	services map[*lanResponder]*hmdns.MDNSService
}

func newFakeLAN() *fakeLAN {
	return &fakeLAN{services: make(map[*lanResponder]*hmdns.MDNSService)}
}

type lanResponder struct {
	lan *fakeLAN
}

func (r *lanResponder) Shutdown() error {
	r.lan.mu.Lock()
	defer r.lan.mu.Unlock()
	delete(r.lan.services, r)
	return nil
}

func (l *fakeLAN) server(cfg *hmdns.Config) (mdns.Responder, error) {
	svc := cfg.Zone.(*hmdns.MDNSService)
	r := &lanResponder{lan: l}
	l.mu.Lock()
	l.services[r] = svc
	l.mu.Unlock()
	return r, nil
}

func (l *fakeLAN) query(ctx context.Context, params *hmdns.QueryParam) error {
	l.mu.Lock()
	var entries []*hmdns.ServiceEntry
	for _, svc := range l.services {
		if strings.Trim(svc.Service, ".") != strings.Trim(params.Service, ".") {
			continue
		}
		name := strings.Trim(svc.Instance, ".") + "." + strings.Trim(svc.Service, ".") + "." +
			strings.Trim(svc.Domain, ".") + "."
		entries = append(entries, &hmdns.ServiceEntry{
			Name:       name,
			Host:       svc.HostName,
			AddrV4:     svc.IPs[0],
			Port:       svc.Port,
			InfoFields: svc.TXT,
		})
	}
	l.mu.Unlock()

	for _, e := range entries {
		select {
		case params.Entries <- e:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (l *fakeLAN) options() []Option {
	return []Option{
		WithAdvertiserOptions(
			mdns.WithServerFactory(l.server),
			mdns.WithLocalIPs(net.IPv4(127, 0, 0, 1)),
		),
		WithBrowserOptions(mdns.WithQueryFunc(l.query)),
	}
}

func testServiceConfig(name string) *config.Config {
	cfg := config.NewConfig()
	cfg.InstanceName = name
	cfg.Discovery.QueryInterval = config.Duration(50 * time.Millisecond)
	cfg.Discovery.QueryTimeout = config.Duration(20 * time.Millisecond)
	cfg.Discovery.PeerTTL = config.Duration(2 * time.Second)
	cfg.Transport.DialTimeout = config.Duration(time.Second)
	return cfg
}

// inbox 收集消息回调
type inbox struct {
	mu   sync.Mutex
	msgs []json.RawMessage
}

func (b *inbox) handle(_ *connmgr.Conn, msg json.RawMessage, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
}

func (b *inbox) snapshot() []json.RawMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]json.RawMessage(nil), b.msgs...)
}

func newTestService(t *testing.T, lan *fakeLAN, name string, h MessageHandler, extra ...Option) *PeerService {
	t.Helper()
	opts := append(lan.options(), WithMarkerDir(t.TempDir()))
	opts = append(opts, extra...)
	s, err := New(testServiceConfig(name), h, opts...)
	require.NoError(t, err)
	return s
}

func peerNames(infos []PeerInfo) []string {
	out := make([]string, 0, len(infos))
	for _, p := range infos {
		out = append(out, p.InstanceName)
	}
	return out
}

// ============================================================================
//                              构造与状态
// ============================================================================

func TestNew_Errors(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, ErrNilConfig)

	cfg := config.NewConfig()
	cfg.InstanceName = ""
	_, err = New(cfg, nil)
	assert.Error(t, err)
}

func TestService_Lifecycle(t *testing.T) {
	lan := newFakeLAN()
	s := newTestService(t, lan, "alpha", nil)

	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 0, s.Port())
	assert.NotNil(t, s.Peers())
	assert.Empty(t, s.Peers())

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	assert.Equal(t, StateRunning, s.State())
	assert.NotZero(t, s.Port())
	assert.Equal(t, "alpha", s.InstanceName())
	assert.ErrorIs(t, s.Start(ctx), ErrAlreadyStarted)

	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, StateStopped, s.State())
	assert.ErrorIs(t, s.Start(ctx), ErrServiceClosed)

	lan.mu.Lock()
	assert.Empty(t, lan.services, "advertisement withdrawn on stop")
	lan.mu.Unlock()
}

func TestService_StopWithoutStart(t *testing.T) {
	s := newTestService(t, newFakeLAN(), "idle", nil)
	assert.NoError(t, s.Stop(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrServiceClosed)
}

func TestService_InstanceRunning(t *testing.T) {
	lan := newFakeLAN()
	dir := t.TempDir()

	cfg := testServiceConfig("first")
	cfg.PreventDuplicates = true
	first, err := New(cfg, nil, append(lan.options(), WithMarkerDir(dir))...)
	require.NoError(t, err)
	require.NoError(t, first.Start(context.Background()))
	defer first.Stop(context.Background())

	cfg = testServiceConfig("second")
	cfg.PreventDuplicates = true
	second, err := New(cfg, nil, append(lan.options(), WithMarkerDir(dir))...)
	require.NoError(t, err)

	err = second.Start(context.Background())
	require.ErrorIs(t, err, ErrInstanceRunning)
	assert.Equal(t, StateIdle, second.State())
	assert.Equal(t, 0, second.Port(), "no listener bound")

	lan.mu.Lock()
	assert.Len(t, lan.services, 1, "refused instance never advertises")
	lan.mu.Unlock()
}

func freeTCPPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestService_InstanceRunning_SpecificPort(t *testing.T) {
	lan := newFakeLAN()
	port := freeTCPPort(t)

	portCfg := func(name string) *config.Config {
		cfg := testServiceConfig(name)
		cfg.PreventDuplicates = true
		cfg.DuplicateMethod = "port"
		cfg.SpecificPort = port
		return cfg
	}

	first, err := New(portCfg("first"), nil, append(lan.options(), WithMarkerDir(t.TempDir()))...)
	require.NoError(t, err)
	require.NoError(t, first.Start(context.Background()))
	defer first.Stop(context.Background())
	assert.Equal(t, port, first.Port(), "first instance holds the specific port")

	second, err := New(portCfg("second"), nil, append(lan.options(), WithMarkerDir(t.TempDir()))...)
	require.NoError(t, err)
	err = second.Start(context.Background())
	require.ErrorIs(t, err, ErrInstanceRunning)
	assert.Equal(t, 0, second.Port())
}

func TestNew_PortMethodWithoutPort(t *testing.T) {
	cfg := testServiceConfig("portless")
	cfg.PreventDuplicates = true
	cfg.DuplicateMethod = "port"

	_, err := New(cfg, nil, newFakeLAN().options()...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "specificPort")
}

// ============================================================================
//                              发现与消息
// ============================================================================

func TestService_DiscoverConnectAndBroadcast(t *testing.T) {
	lan := newFakeLAN()

	var inboxA, inboxB inbox
	a := newTestService(t, lan, "alpha", inboxA.handle)
	b := newTestService(t, lan, "beta", inboxB.handle)

	ctx := context.Background()
	require.NoError(t, a.Start(ctx))
	defer a.Stop(ctx)
	require.NoError(t, b.Start(ctx))
	defer b.Stop(ctx)

	require.Eventually(t, func() bool {
		return len(a.Peers()) == 1 && len(b.Peers()) == 1
	}, 3*time.Second, 20*time.Millisecond)

	assert.Equal(t, []string{"beta"}, peerNames(a.Peers()), "self never registered")
	assert.Equal(t, []string{"alpha"}, peerNames(b.Peers()))
	assert.Equal(t, "127.0.0.1", a.Peers()[0].Host)
	assert.Equal(t, b.Port(), a.Peers()[0].Port)
	assert.NotNil(t, a.Peers()[0].Metadata)

	// 节点上线后自动建立出站连接
	require.Eventually(t, func() bool {
		return a.conns.OutboundCount() == 1
	}, 3*time.Second, 20*time.Millisecond)

	res := a.Broadcast(ctx, map[string]string{"hello": "beta"})
	assert.Equal(t, BroadcastResult{Peers: 1, Delivered: 1, Failed: 0}, res)

	require.Eventually(t, func() bool {
		return len(inboxB.snapshot()) == 1
	}, 3*time.Second, 20*time.Millisecond)
	assert.JSONEq(t, `{"hello":"beta"}`, string(inboxB.snapshot()[0]))
	assert.Empty(t, inboxA.snapshot())
}

func TestService_MessageEventPublished(t *testing.T) {
	lan := newFakeLAN()
	a := newTestService(t, lan, "alpha", nil)
	b := newTestService(t, lan, "beta", nil)

	sub, err := b.EventBus().Subscribe(new(types.EvtMessage))
	require.NoError(t, err)
	defer sub.Close()

	ctx := context.Background()
	require.NoError(t, a.Start(ctx))
	defer a.Stop(ctx)
	require.NoError(t, b.Start(ctx))
	defer b.Stop(ctx)

	require.Eventually(t, func() bool { return len(a.Peers()) == 1 }, 3*time.Second, 20*time.Millisecond)
	a.Broadcast(ctx, []int{1, 2, 3})

	select {
	case e := <-sub.Out():
		evt := e.(types.EvtMessage)
		assert.JSONEq(t, `[1,2,3]`, string(evt.Payload))
		assert.NotEmpty(t, evt.SocketID)
	case <-time.After(3 * time.Second):
		t.Fatal("no message event")
	}
}

func TestService_PeerDownOnWithdraw(t *testing.T) {
	lan := newFakeLAN()
	a := newTestService(t, lan, "alpha", nil)
	b := newTestService(t, lan, "beta", nil)

	sub, err := a.EventBus().Subscribe(new(types.EvtPeerDown))
	require.NoError(t, err)
	defer sub.Close()

	ctx := context.Background()
	require.NoError(t, a.Start(ctx))
	defer a.Stop(ctx)
	require.NoError(t, b.Start(ctx))

	require.Eventually(t, func() bool { return len(a.Peers()) == 1 }, 3*time.Second, 20*time.Millisecond)
	require.NoError(t, b.Stop(ctx))

	select {
	case e := <-sub.Out():
		assert.Equal(t, "beta", e.(types.EvtPeerDown).Peer.InstanceName)
	case <-time.After(5 * time.Second):
		t.Fatal("peer never expired")
	}
	assert.Empty(t, a.Peers())
}
