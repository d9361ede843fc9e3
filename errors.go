package lanpeer

import (
	"errors"

	"github.com/dep2p/go-lanpeer/internal/core/instance"
)

// 公共错误定义
var (
	// ErrInstanceRunning 启用重复实例保护且本机已有实例在运行
	ErrInstanceRunning = instance.ErrInstanceRunning

	// ErrAlreadyStarted 服务已启动
	ErrAlreadyStarted = errors.New("lanpeer: service already started")

	// ErrServiceClosed 服务已停止，不能再次启动
	ErrServiceClosed = errors.New("lanpeer: service closed")

	// ErrNilConfig 未提供配置
	ErrNilConfig = errors.New("lanpeer: nil config")
)
