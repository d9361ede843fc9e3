// Package logger 提供 lanpeer 的统一日志系统
//
// 基于标准库 log/slog，按子系统划分 Logger：
//
//	var log = logger.Logger("connmgr")
//
//	log.Info("连接已建立", "peer", peer.InstanceName, "addr", addr)
//
// 环境变量:
//
//	# discovery 为 debug，其余为 info
//	LANPEER_LOG_LEVEL=discovery=debug,info
//
//	# JSON 输出
//	LANPEER_LOG_FORMAT=json
package logger

import (
	"io"
	"log/slog"
	"sync"
)

var (
	mu       sync.Mutex
	loggers  = make(map[string]*slog.Logger)
	handlers = make(map[string]*levelHandler)
)

// Logger 返回子系统的 Logger，同名子系统共享同一实例
func Logger(subsystem string) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if l, ok := loggers[subsystem]; ok {
		return l
	}

	h := newLevelHandler(subsystem, ConfigFromEnv())
	l := slog.New(h)
	loggers[subsystem] = l
	handlers[subsystem] = h
	return l
}

// SetLevel 运行时调整单个子系统的级别
func SetLevel(subsystem string, level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	if h, ok := handlers[subsystem]; ok {
		h.level.Set(level)
	}
}

// SetGlobalLevel 调整所有已创建子系统的级别
func SetGlobalLevel(level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	for _, h := range handlers {
		h.level.Set(level)
	}
}

// SetOutput 切换全局输出目标，对已创建的 Logger 同样生效
func SetOutput(w io.Writer) {
	outputMu.Lock()
	output = w
	outputMu.Unlock()
}

// Discard 返回丢弃所有日志的 Logger，主要用于测试
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}
