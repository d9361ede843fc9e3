package instance

import (
	"fmt"
	"os"
	"strconv"
	"sync"
)

// pidFile 进程号文件，读取失败视为陈旧标记
type pidFile struct {
	path  string
	pid   int
	alive func(pid int) bool

	mu       sync.Mutex
	acquired bool
	unhook   func()
}

func (p *pidFile) Method() Method { return MethodPIDFile }

// TryAcquire 记录的进程存活且不是自己时拒绝，否则覆盖
func (p *pidFile) TryAcquire() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	owner, err := readPID(p.path)
	switch {
	case err != nil:
		if !os.IsNotExist(err) {
			log.Debug("进程号文件无效，覆盖", "path", p.path, "err", err)
		}
	case owner != p.pid && p.alive(owner):
		log.Info("进程号文件被存活进程持有", "path", p.path, "pid", owner)
		return false, nil
	}

	if err := os.WriteFile(p.path, []byte(strconv.Itoa(p.pid)), 0o644); err != nil {
		return false, fmt.Errorf("instance: write pid file %s: %w", p.path, err)
	}
	if !p.acquired {
		p.acquired = true
		p.unhook = OnExit(func() { _ = p.Release() })
	}
	return true, nil
}

// Release 删除自己写入的进程号文件
func (p *pidFile) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.acquired {
		return nil
	}
	p.acquired = false
	if p.unhook != nil {
		p.unhook()
		p.unhook = nil
	}
	return removeOwned(p.path, p.pid)
}
