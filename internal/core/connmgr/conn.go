package connmgr

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dep2p/go-lanpeer/pkg/types"
)

// Conn 一条受管理的 TCP 连接
type Conn struct {
	id       string
	dir      types.Direction
	peerKey  string
	socketID string
	nc       net.Conn
	opened   time.Time

	state    atomic.Int32
	deframer *Deframer

	writeMu sync.Mutex
	done    chan struct{}
}

func newConn(nc net.Conn, dir types.Direction, peerKey string, maxMessage int) *Conn {
	c := &Conn{
		id:       uuid.NewString(),
		dir:      dir,
		peerKey:  peerKey,
		socketID: nc.RemoteAddr().String(),
		nc:       nc,
		opened:   time.Now(),
		deframer: NewDeframer(maxMessage),
		done:     make(chan struct{}),
	}
	c.state.Store(int32(types.ConnStateOpen))

	if tc, ok := nc.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
		_ = tc.SetKeepAlive(true)
	}
	return c
}

// ID 连接唯一标识，仅用于日志
func (c *Conn) ID() string { return c.id }

// Direction 连接方向
func (c *Conn) Direction() types.Direction { return c.dir }

// PeerKey 出站连接对应的节点键，入站连接为空
func (c *Conn) PeerKey() string { return c.peerKey }

// SocketID 远端 "IP:端口"
func (c *Conn) SocketID() string { return c.socketID }

// RemoteAddr 远端地址
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// Opened 建立时间
func (c *Conn) Opened() time.Time { return c.opened }

// State 当前状态
func (c *Conn) State() types.ConnState {
	return types.ConnState(c.state.Load())
}

// IsOpen 是否可写
func (c *Conn) IsOpen() bool {
	return c.State() == types.ConnStateOpen
}

// Done 连接关闭后关闭的通道
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// beginClose 进入 closing，只有第一个调用者返回 true
func (c *Conn) beginClose() bool {
	return c.state.CompareAndSwap(int32(types.ConnStateOpen), int32(types.ConnStateClosing))
}

// finishClose 关闭底层套接字并进入 closed
func (c *Conn) finishClose() error {
	err := c.nc.Close()
	c.state.Store(int32(types.ConnStateClosed))
	close(c.done)
	return err
}

// write 在写锁内写出完整帧
func (c *Conn) write(frame []byte, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if timeout > 0 {
		if err := c.nc.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
		defer func() { _ = c.nc.SetWriteDeadline(time.Time{}) }()
	}
	_, err := c.nc.Write(frame)
	return err
}
