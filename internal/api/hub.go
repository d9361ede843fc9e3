package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/multierr"

	"github.com/dep2p/go-lanpeer/internal/core/eventbus"
	"github.com/dep2p/go-lanpeer/pkg/types"
)

const (
	// clientQueueSize 每个客户端的发送队列长度，满了就断开该客户端
	clientQueueSize = 64

	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// ============================================================================
//                              Hub
// ============================================================================

// Hub 把总线事件扇出到所有 WebSocket 客户端
type Hub struct {
	subs []*eventbus.Subscription

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHub 订阅 peer-up / peer-down / message 事件并开始转发
func NewHub(bus *eventbus.Bus) (*Hub, error) {
	h := &Hub{clients: make(map[*client]struct{})}

	for _, typ := range []any{new(types.EvtPeerUp), new(types.EvtPeerDown), new(types.EvtMessage)} {
		sub, err := bus.Subscribe(typ, eventbus.BufSize(clientQueueSize))
		if err != nil {
			_ = h.closeSubs()
			return nil, err
		}
		h.subs = append(h.subs, sub)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	for _, sub := range h.subs {
		h.wg.Add(1)
		go h.forward(ctx, sub)
	}
	return h, nil
}

func (h *Hub) forward(ctx context.Context, sub *eventbus.Subscription) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.Out():
			if !ok {
				return
			}
			evt, ok := toEvent(e)
			if !ok {
				continue
			}
			data, err := json.Marshal(evt)
			if err != nil {
				log.Warn("事件序列化失败", "type", evt.Type, "err", err)
				continue
			}
			h.publish(data)
		}
	}
}

// publish 非阻塞投递，队列满的客户端被断开
func (h *Hub) publish(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Info("客户端过慢，断开", "remote", c.conn.RemoteAddr())
			h.removeLocked(c)
		}
	}
}

// register 加入客户端，hub 已关闭时返回 ErrHubClosed
func (h *Hub) register(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	h.clients[c] = struct{}{}
	return nil
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// ClientCount 当前连接的客户端数
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close 停止转发并断开所有客户端，可重复调用
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
	h.mu.Unlock()

	h.cancel()
	err := h.closeSubs()
	h.wg.Wait()
	return err
}

func (h *Hub) closeSubs() error {
	var errs error
	for _, sub := range h.subs {
		errs = multierr.Append(errs, sub.Close())
	}
	return errs
}

// ============================================================================
//                              client
// ============================================================================

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// writePump 把队列中的事件写到 WebSocket，并定期发送 ping
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 丢弃客户端发来的数据，只用于检测断开
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
