package mdns

import "errors"

// 预定义错误
var (
	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("mdns: invalid config")

	// ErrInvalidName 实例名为空
	ErrInvalidName = errors.New("mdns: empty instance name")

	// ErrInvalidPort 端口无效
	ErrInvalidPort = errors.New("mdns: invalid port")

	// ErrAlreadyBrowsing 浏览已在进行
	ErrAlreadyBrowsing = errors.New("mdns: already browsing")

	// ErrServerStart 响应服务器启动失败
	ErrServerStart = errors.New("mdns: failed to start responder")
)
