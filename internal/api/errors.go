package api

import "errors"

var (
	// ErrNilService 未提供节点服务
	ErrNilService = errors.New("api: nil service")

	// ErrAlreadyStarted 服务器已启动
	ErrAlreadyStarted = errors.New("api: server already started")

	// ErrHubClosed 事件中心已关闭
	ErrHubClosed = errors.New("api: event hub closed")
)
