package connmgr

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-lanpeer/internal/config"
	"github.com/dep2p/go-lanpeer/internal/core/instance"
	"github.com/dep2p/go-lanpeer/internal/core/metrics"
	"github.com/dep2p/go-lanpeer/pkg/types"
)

const waitFor = 2 * time.Second

type received struct {
	msg      json.RawMessage
	socketID string
}

// inbox 收集 OnMessage 的调用
type inbox struct {
	mu   sync.Mutex
	msgs []received
}

func (b *inbox) handler(_ *Conn, msg json.RawMessage, socketID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, received{msg: append(json.RawMessage(nil), msg...), socketID: socketID})
}

func (b *inbox) all() []received {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]received(nil), b.msgs...)
}

func (b *inbox) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.msgs)
}

func newManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MarkerDir = t.TempDir()
	cfg.DialTimeout = time.Second
	m, err := New(cfg, metrics.New(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.CloseAll() })
	return m
}

func listen(t *testing.T, m *Manager, b *inbox) int {
	t.Helper()
	port, err := m.StartListening(context.Background(), Handlers{OnMessage: b.handler}, ListenOptions{Host: "127.0.0.1"})
	require.NoError(t, err)
	require.NotZero(t, port)
	return port
}

func localPeer(name string, port int) types.Peer {
	return types.Peer{
		InstanceName: name,
		PeerKey:      name + "._lanpeer._tcp.local.",
		Host:         "127.0.0.1",
		Port:         port,
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DialTimeout = 0
	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestStartListening_RequiresHandler(t *testing.T) {
	m := newManager(t)
	_, err := m.StartListening(context.Background(), Handlers{}, ListenOptions{})
	assert.ErrorIs(t, err, ErrNoMessageHandler)

	b := &inbox{}
	listen(t, m, b)
	_, err = m.StartListening(context.Background(), Handlers{OnMessage: b.handler}, ListenOptions{})
	assert.ErrorIs(t, err, ErrAlreadyListening)
}

func TestSend_JSONRoundTrip(t *testing.T) {
	server, client := newManager(t), newManager(t)
	b := &inbox{}
	port := listen(t, server, b)

	c, err := client.Connect(context.Background(), localPeer("server", port))
	require.NoError(t, err)

	payload := map[string]any{"type": "timer", "id": 7.0, "tags": []any{"a", "b"}}
	require.True(t, client.Send(c, payload))

	require.Eventually(t, func() bool { return b.count() == 1 }, waitFor, 10*time.Millisecond)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b.all()[0].msg, &got))
	assert.Equal(t, payload, got)

	// socketID 是服务端看到的客户端地址
	local := c.nc.LocalAddr().String()
	assert.Equal(t, local, b.all()[0].socketID)
}

func TestInbound_TwoMessagesOneRead(t *testing.T) {
	server := newManager(t)
	b := &inbox{}
	port := listen(t, server, b)

	raw, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(port))
	require.NoError(t, err)
	defer raw.Close()

	_, err = raw.Write([]byte("{\"seq\":1}\n{\"seq\":2}\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return b.count() == 2 }, waitFor, 10*time.Millisecond)
	msgs := b.all()
	assert.JSONEq(t, `{"seq":1}`, string(msgs[0].msg))
	assert.JSONEq(t, `{"seq":2}`, string(msgs[1].msg))
}

func TestInbound_MalformedFragmentDropped(t *testing.T) {
	server := newManager(t)
	b := &inbox{}
	port := listen(t, server, b)

	raw, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(port))
	require.NoError(t, err)
	defer raw.Close()

	_, err = raw.Write([]byte("{not json\n"))
	require.NoError(t, err)
	_, err = raw.Write([]byte("{\"ok\":true}\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return b.count() == 1 }, waitFor, 10*time.Millisecond)
	assert.JSONEq(t, `{"ok":true}`, string(b.all()[0].msg))
	assert.Equal(t, 1, server.InboundCount())
}

func TestConnect_Reuse(t *testing.T) {
	server, client := newManager(t), newManager(t)
	port := listen(t, server, &inbox{})
	p := localPeer("server", port)

	c1, err := client.Connect(context.Background(), p)
	require.NoError(t, err)
	c2, err := client.Connect(context.Background(), p)
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	assert.Equal(t, 1, client.OutboundCount())
	require.Eventually(t, func() bool { return server.InboundCount() == 1 }, waitFor, 10*time.Millisecond)
}

func TestConnect_ConcurrentSharesDial(t *testing.T) {
	var dials atomic.Int32
	var d net.Dialer
	counting := func(ctx context.Context, network, addr string) (net.Conn, error) {
		dials.Add(1)
		time.Sleep(20 * time.Millisecond)
		return d.DialContext(ctx, network, addr)
	}

	server, client := newManager(t), newManager(t, WithDialer(counting))
	p := localPeer("server", listen(t, server, &inbox{}))

	const n = 8
	conns := make([]*Conn, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := client.Connect(context.Background(), p)
			assert.NoError(t, err)
			conns[i] = c
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), dials.Load())
	for _, c := range conns {
		assert.Same(t, conns[0], c)
	}
}

func TestConnect_CancelledCallerDoesNotFailSharedDial(t *testing.T) {
	entered := make(chan struct{})
	gate := make(chan struct{})
	var dialCtxErr atomic.Value
	var d net.Dialer
	slow := func(ctx context.Context, network, addr string) (net.Conn, error) {
		close(entered)
		<-gate
		if err := ctx.Err(); err != nil {
			dialCtxErr.Store(err)
		}
		return d.DialContext(ctx, network, addr)
	}

	server, client := newManager(t), newManager(t, WithDialer(slow))
	p := localPeer("server", listen(t, server, &inbox{}))

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := client.Connect(ctx, p)
		firstErr <- err
	}()
	<-entered

	type result struct {
		c   *Conn
		err error
	}
	second := make(chan result, 1)
	go func() {
		c, err := client.Connect(context.Background(), p)
		second <- result{c, err}
	}()

	cancel()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("取消的调用方未返回")
	}

	close(gate)
	select {
	case r := <-second:
		require.NoError(t, r.err)
		assert.True(t, r.c.IsOpen())
	case <-time.After(waitFor):
		t.Fatal("共享拨号的等待者未返回")
	}
	assert.Nil(t, dialCtxErr.Load(), "dial context must not inherit a caller's cancellation")
	assert.Equal(t, 1, client.OutboundCount())
}

func TestConnect_RedialAfterRemoteClose(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 2)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			accepted <- c
		}
	}()

	client := newManager(t)
	p := localPeer("flaky", ln.Addr().(*net.TCPAddr).Port)

	first, err := client.Connect(context.Background(), p)
	require.NoError(t, err)

	// 对端关闭后连接被移出连接池
	(<-accepted).Close()
	select {
	case <-first.Done():
	case <-time.After(waitFor):
		t.Fatal("连接未关闭")
	}
	assert.Equal(t, 0, client.OutboundCount())
	assert.False(t, client.Send(first, "late"))

	second, err := client.Connect(context.Background(), p)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), second.ID())
	assert.True(t, second.IsOpen())
	(<-accepted).Close()
}

func TestConnect_DialErrorLeavesPoolEmpty(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	client := newManager(t)
	_, err = client.Connect(context.Background(), localPeer("gone", port))
	require.Error(t, err)
	assert.Equal(t, 0, client.OutboundCount())

	_, err = client.Connect(context.Background(), types.Peer{Host: "127.0.0.1", Port: 1})
	assert.ErrorIs(t, err, ErrInvalidPeer)
}

func TestSend_Rejects(t *testing.T) {
	server, client := newManager(t), newManager(t)
	c, err := client.Connect(context.Background(), localPeer("server", listen(t, server, &inbox{})))
	require.NoError(t, err)

	assert.False(t, client.Send(nil, "x"))
	assert.False(t, client.Send(c, make(chan int)))
	assert.True(t, c.IsOpen())

	assert.False(t, client.Send(c, json.RawMessage(`{bad`)))
	assert.True(t, client.Send(c, json.RawMessage(`{ "spaced" : 1 }`)))
}

func TestStartListening_PreventDuplicates(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.AppName = "dup"
	cfg.MarkerDir = dir

	// 本进程存活，标记视为被占用
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dup.lock"), []byte(strconv.Itoa(os.Getpid())), 0o644))

	m, err := New(cfg, nil)
	require.NoError(t, err)
	defer m.CloseAll()

	_, err = m.StartListening(context.Background(), Handlers{OnMessage: (&inbox{}).handler}, ListenOptions{
		PreventDuplicates: true,
		DuplicateMethod:   instance.MethodLockFile,
	})
	assert.ErrorIs(t, err, ErrInstanceRunning)
	assert.Equal(t, 0, m.Port())
}

func TestStartListening_PortMethodBusy(t *testing.T) {
	busy, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer busy.Close()

	m := newManager(t)
	_, err = m.StartListening(context.Background(), Handlers{OnMessage: (&inbox{}).handler}, ListenOptions{
		PreventDuplicates: true,
		DuplicateMethod:   instance.MethodPort,
		SpecificPort:      busy.Addr().(*net.TCPAddr).Port,
	})
	assert.ErrorIs(t, err, ErrInstanceRunning)
	assert.Equal(t, 0, m.Port())
}

func TestStartListening_PortMethodHoldsSpecificPort(t *testing.T) {
	free, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	want := free.Addr().(*net.TCPAddr).Port
	require.NoError(t, free.Close())

	opts := ListenOptions{
		PreventDuplicates: true,
		DuplicateMethod:   instance.MethodPort,
		SpecificPort:      want,
	}

	first := newManager(t)
	port, err := first.StartListening(context.Background(), Handlers{OnMessage: (&inbox{}).handler}, opts)
	require.NoError(t, err)
	assert.Equal(t, want, port)

	second := newManager(t)
	_, err = second.StartListening(context.Background(), Handlers{OnMessage: (&inbox{}).handler}, opts)
	assert.ErrorIs(t, err, ErrInstanceRunning)
	assert.Equal(t, 0, second.Port())
}

func TestStartListening_PortMethodWithoutPort(t *testing.T) {
	m := newManager(t)
	_, err := m.StartListening(context.Background(), Handlers{OnMessage: (&inbox{}).handler}, ListenOptions{
		PreventDuplicates: true,
		DuplicateMethod:   instance.MethodPort,
	})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, instance.ErrNoPort)
	assert.Equal(t, 0, m.Port())

	_, err = m.StartListening(context.Background(), Handlers{OnMessage: (&inbox{}).handler}, ListenOptions{
		Port:              4300,
		PreventDuplicates: true,
		DuplicateMethod:   instance.MethodPort,
		SpecificPort:      4301,
	})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestInbound_DisconnectCallbackOnce(t *testing.T) {
	server := newManager(t)

	var connected, disconnected atomic.Int32
	port, err := server.StartListening(context.Background(), Handlers{
		OnMessage:            (&inbox{}).handler,
		OnClientConnected:    func(*Conn) { connected.Add(1) },
		OnClientDisconnected: func(*Conn) { disconnected.Add(1) },
	}, ListenOptions{Host: "127.0.0.1"})
	require.NoError(t, err)

	raw, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(port))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return server.InboundCount() == 1 }, waitFor, 10*time.Millisecond)

	require.NoError(t, raw.Close())
	require.Eventually(t, func() bool { return server.InboundCount() == 0 }, waitFor, 10*time.Millisecond)

	require.NoError(t, server.CloseAll())
	assert.Equal(t, int32(1), connected.Load())
	assert.Equal(t, int32(1), disconnected.Load())
}

func TestOnMessage_PanicRecovered(t *testing.T) {
	server, client := newManager(t), newManager(t)

	var calls atomic.Int32
	port, err := server.StartListening(context.Background(), Handlers{
		OnMessage: func(*Conn, json.RawMessage, string) {
			if calls.Add(1) == 1 {
				panic("handler bug")
			}
		},
	}, ListenOptions{Host: "127.0.0.1"})
	require.NoError(t, err)

	c, err := client.Connect(context.Background(), localPeer("server", port))
	require.NoError(t, err)
	require.True(t, client.Send(c, 1))
	require.True(t, client.Send(c, 2))

	require.Eventually(t, func() bool { return calls.Load() == 2 }, waitFor, 10*time.Millisecond)
	assert.True(t, c.IsOpen())
}

func TestCloseAll(t *testing.T) {
	server, client := newManager(t), newManager(t)
	port := listen(t, server, &inbox{})
	p := localPeer("server", port)

	_, err := client.Connect(context.Background(), p)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return server.InboundCount() == 1 }, waitFor, 10*time.Millisecond)

	require.NoError(t, server.CloseAll())
	require.NoError(t, client.CloseAll())
	require.NoError(t, client.CloseAll())

	assert.Equal(t, 0, server.InboundCount())
	assert.Equal(t, 0, server.Port())
	assert.Equal(t, 0, client.OutboundCount())

	_, err = client.Connect(context.Background(), p)
	assert.ErrorIs(t, err, ErrManagerClosed)
}

func TestConfigFromUnified(t *testing.T) {
	assert.Equal(t, DefaultConfig(), ConfigFromUnified(nil))

	u := config.NewConfig()
	u.AppName = "timers"
	u.Transport.DialTimeout = config.Duration(time.Second)
	u.Transport.MaxMessageSize = 4096

	c := ConfigFromUnified(u)
	assert.Equal(t, "timers", c.AppName)
	assert.Equal(t, time.Second, c.DialTimeout)
	assert.Equal(t, 4096, c.MaxMessageSize)
	assert.NoError(t, c.Validate())
}
