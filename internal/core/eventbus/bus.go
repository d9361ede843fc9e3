package eventbus

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-lanpeer/internal/util/logger"
)

var log = logger.Logger("eventbus")

// defaultBuffer 订阅默认缓冲区
const defaultBuffer = 16

// Bus 事件总线
type Bus struct {
	mu    sync.Mutex
	nodes map[reflect.Type]*node
}

// node 单个事件类型的订阅者集合
type node struct {
	mu       sync.Mutex
	typ      reflect.Type
	sinks    []*Subscription
	keepLast bool
	last     any

	emitters atomic.Int32
	dropped  atomic.Int64
}

// NewBus 创建事件总线
func NewBus() *Bus {
	return &Bus{nodes: make(map[reflect.Type]*node)}
}

// Subscribe 订阅 eventType 指向的事件类型
func (b *Bus) Subscribe(eventType any, opts ...SubOpt) (*Subscription, error) {
	typ, err := elemType(eventType)
	if err != nil {
		return nil, err
	}

	settings := subSettings{buffer: defaultBuffer}
	for _, opt := range opts {
		opt(&settings)
	}

	sub := &Subscription{
		bus: b,
		typ: typ,
		out: make(chan any, settings.buffer),
	}

	b.withNode(typ, func(n *node) {
		n.sinks = append(n.sinks, sub)
		if n.keepLast && n.last != nil {
			sub.out <- n.last
		}
	})

	return sub, nil
}

// Emitter 获取 eventType 的发射器
func (b *Bus) Emitter(eventType any, opts ...EmitterOpt) (*Emitter, error) {
	typ, err := elemType(eventType)
	if err != nil {
		return nil, err
	}

	var settings emitterSettings
	for _, opt := range opts {
		opt(&settings)
	}

	var target *node
	b.withNode(typ, func(n *node) {
		target = n
		n.emitters.Add(1)
		if settings.stateful {
			n.keepLast = true
		}
	})

	return &Emitter{bus: b, node: target, typ: typ}, nil
}

// elemType 校验并返回指针所指的元素类型
func elemType(eventType any) (reflect.Type, error) {
	if eventType == nil {
		return nil, ErrInvalidEventType
	}
	typ := reflect.TypeOf(eventType)
	if typ.Kind() != reflect.Ptr {
		return nil, ErrNonPointerType
	}
	return typ.Elem(), nil
}

// withNode 在持有节点锁的情况下执行 cb，节点不存在时创建
func (b *Bus) withNode(typ reflect.Type, cb func(*node)) {
	b.mu.Lock()
	n, ok := b.nodes[typ]
	if !ok {
		n = &node{typ: typ}
		b.nodes[typ] = n
	}
	n.mu.Lock()
	b.mu.Unlock()

	defer n.mu.Unlock()
	cb(n)
}

// tryDropNode 没有订阅者和发射器时删除节点
func (b *Bus) tryDropNode(typ reflect.Type) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[typ]
	if !ok {
		return
	}

	n.mu.Lock()
	idle := len(n.sinks) == 0 && n.emitters.Load() == 0
	n.mu.Unlock()

	if idle {
		delete(b.nodes, typ)
	}
}

// removeSub 移除订阅
func (b *Bus) removeSub(sub *Subscription) {
	b.mu.Lock()
	n, ok := b.nodes[sub.typ]
	if !ok {
		b.mu.Unlock()
		return
	}
	n.mu.Lock()
	b.mu.Unlock()

	for i, s := range n.sinks {
		if s == sub {
			n.sinks = append(n.sinks[:i], n.sinks[i+1:]...)
			break
		}
	}
	idle := len(n.sinks) == 0 && n.emitters.Load() == 0
	n.mu.Unlock()

	if idle {
		b.tryDropNode(sub.typ)
	}
}

// emit 非阻塞地投递到所有订阅者
func (n *node) emit(evt any) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.keepLast {
		n.last = evt
	}

	for _, sub := range n.sinks {
		select {
		case sub.out <- evt:
		default:
			// 每 100 次告警一次
			if d := n.dropped.Add(1); d%100 == 1 {
				log.Warn("订阅者缓冲区已满，丢弃事件", "type", n.typ.String(), "dropped", d)
			}
		}
	}
}
