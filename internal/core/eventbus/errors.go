package eventbus

import "errors"

var (
	// ErrInvalidEventType 事件类型为 nil
	ErrInvalidEventType = errors.New("eventbus: invalid event type")

	// ErrNonPointerType 订阅/发射需要传入指针类型
	ErrNonPointerType = errors.New("eventbus: event type must be a pointer")

	// ErrEmitterClosed 发射器已关闭
	ErrEmitterClosed = errors.New("eventbus: emitter closed")

	// ErrWrongType 发射的事件与发射器类型不符
	ErrWrongType = errors.New("eventbus: event does not match emitter type")
)
