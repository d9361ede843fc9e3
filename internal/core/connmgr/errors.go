package connmgr

import (
	"errors"

	"github.com/dep2p/go-lanpeer/internal/core/instance"
)

// 连接管理器错误定义
var (
	// ErrInstanceRunning 启用重复实例保护且本机已有实例，未绑定任何端口
	ErrInstanceRunning = instance.ErrInstanceRunning

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("connmgr: invalid config")

	// ErrManagerClosed 管理器已关闭
	ErrManagerClosed = errors.New("connmgr: manager closed")

	// ErrAlreadyListening 已在监听
	ErrAlreadyListening = errors.New("connmgr: already listening")

	// ErrNoMessageHandler 未提供 OnMessage
	ErrNoMessageHandler = errors.New("connmgr: OnMessage handler required")

	// ErrInvalidPeer 节点缺少 PeerKey 或地址
	ErrInvalidPeer = errors.New("connmgr: invalid peer")
)
