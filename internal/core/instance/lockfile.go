package instance

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"sync"
	"time"
)

// corruptGrace 损坏锁文件的宽限期
//
// 新建锁文件在写入进程号之前短暂为空，宽限期内的损坏锁视为正在创建；
// 超过宽限期仍不可解析的锁视为陈旧。
const corruptGrace = 5 * time.Second

// lockFile 独占创建锁文件
type lockFile struct {
	path  string
	pid   int
	alive func(pid int) bool
	grace time.Duration

	mu       sync.Mutex
	acquired bool
	unhook   func()
}

func (l *lockFile) Method() Method { return MethodLockFile }

// TryAcquire 独占创建锁文件
//
// 持有者已死或内容损坏且超过宽限期的锁视为陈旧，只清理重试一次。
func (l *lockFile) TryAcquire() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.acquired {
		return true, nil
	}

	for attempt := 0; attempt < 2; attempt++ {
		err := l.create()
		if err == nil {
			l.acquired = true
			l.unhook = OnExit(func() { _ = l.Release() })
			log.Debug("已获取锁文件", "path", l.path, "pid", l.pid)
			return true, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return false, fmt.Errorf("instance: create lock file %s: %w", l.path, err)
		}

		owner, err := readPID(l.path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// 持有者刚好释放
			continue
		case err != nil:
			if attempt > 0 || !l.expired() {
				return false, fmt.Errorf("%w: %s: %v", ErrCorruptMarker, l.path, err)
			}
			log.Info("清理损坏的陈旧锁文件", "path", l.path, "err", err)
		case l.alive(owner):
			log.Info("锁文件被存活进程持有", "path", l.path, "pid", owner)
			return false, nil
		default:
			if attempt > 0 {
				return false, nil
			}
			log.Info("清理陈旧锁文件", "path", l.path, "pid", owner)
		}

		if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("instance: remove stale lock %s: %w", l.path, err)
		}
	}
	return false, nil
}

// expired 锁文件修改时间早于宽限期
func (l *lockFile) expired() bool {
	info, err := os.Stat(l.path)
	if err != nil {
		return errors.Is(err, fs.ErrNotExist)
	}
	return time.Since(info.ModTime()) > l.grace
}

func (l *lockFile) create() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(strconv.Itoa(l.pid)); err != nil {
		_ = f.Close()
		_ = os.Remove(l.path)
		return err
	}
	return f.Close()
}

// Release 删除自己持有的锁文件
func (l *lockFile) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.acquired {
		return nil
	}
	l.acquired = false
	if l.unhook != nil {
		l.unhook()
		l.unhook = nil
	}
	return removeOwned(l.path, l.pid)
}
