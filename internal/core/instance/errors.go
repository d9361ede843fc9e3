package instance

import "errors"

var (
	// ErrInstanceRunning 本机已有同一应用的实例在运行
	ErrInstanceRunning = errors.New("another instance is already running")

	// ErrUnknownMethod 未知的检测方式
	ErrUnknownMethod = errors.New("instance: unknown duplicate detection method")

	// ErrNoPort 端口检测未指定端口
	ErrNoPort = errors.New("instance: port method requires a fixed port")

	// ErrCorruptMarker 锁文件不可读或内容不是进程号
	ErrCorruptMarker = errors.New("instance: corrupt lock marker")
)
