package registry

import "errors"

var (
	// ErrNilBus 未提供事件总线
	ErrNilBus = errors.New("registry: nil event bus")
)
