package eventbus

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Subscription 事件订阅
type Subscription struct {
	bus       *Bus
	typ       reflect.Type
	out       chan any
	closeOnce sync.Once
}

// Out 返回事件通道，Close 后通道关闭
func (s *Subscription) Out() <-chan any {
	return s.out
}

// Close 取消订阅，可重复调用
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		// removeSub 持有节点锁，返回后不会再有 emit 写入 out
		s.bus.removeSub(s)
		close(s.out)
	})
	return nil
}

// Emitter 事件发射器
type Emitter struct {
	bus       *Bus
	node      *node
	typ       reflect.Type
	closed    atomic.Bool
	closeOnce sync.Once
}

// Emit 发射事件，事件类型必须与发射器一致
func (e *Emitter) Emit(evt any) error {
	if e.closed.Load() {
		return ErrEmitterClosed
	}
	if reflect.TypeOf(evt) != e.typ {
		return ErrWrongType
	}
	e.node.emit(evt)
	return nil
}

// Close 关闭发射器
func (e *Emitter) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		if e.node.emitters.Add(-1) == 0 {
			e.bus.tryDropNode(e.typ)
		}
	})
	return nil
}
