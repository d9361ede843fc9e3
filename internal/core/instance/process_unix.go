//go:build !windows
// +build !windows

package instance

import (
	"errors"

	"golang.org/x/sys/unix"
)

// processAlive 发送信号 0 探测进程，EPERM 说明进程存在但属于其他用户
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func isAddrInUse(err error) bool {
	return errors.Is(err, unix.EADDRINUSE)
}
