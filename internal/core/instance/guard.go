package instance

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dep2p/go-lanpeer/internal/util/logger"
)

var log = logger.Logger("instance")

// Method 重复实例检测方式
type Method string

const (
	// MethodLockFile 独占创建锁文件
	MethodLockFile Method = "lockfile"
	// MethodPIDFile 进程号文件
	MethodPIDFile Method = "pidfile"
	// MethodPort 端口探测
	MethodPort Method = "port"
)

// ParseMethod 解析检测方式名
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodLockFile, MethodPIDFile, MethodPort:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// Guard 实例互斥守卫
type Guard interface {
	// TryAcquire 尝试获取互斥权，false 表示已有实例在运行
	TryAcquire() (bool, error)

	// Release 删除标记，可重复调用
	Release() error

	// Method 返回检测方式
	Method() Method
}

// Options 守卫参数
type Options struct {
	// AppName 决定标记文件名 <AppName>.lock / <AppName>.pid
	AppName string

	// Dir 标记文件目录，默认 os.TempDir()
	Dir string

	// Port 端口检测的目标端口，MethodPort 必须指定
	Port int
}

// New 按检测方式创建守卫
func New(method Method, opts Options) (Guard, error) {
	if opts.AppName == "" {
		opts.AppName = "lanpeer"
	}
	if opts.Dir == "" {
		opts.Dir = os.TempDir()
	}

	switch method {
	case MethodLockFile:
		return &lockFile{
			path:  filepath.Join(opts.Dir, opts.AppName+".lock"),
			pid:   os.Getpid(),
			alive: processAlive,
			grace: corruptGrace,
		}, nil
	case MethodPIDFile:
		return &pidFile{
			path:  filepath.Join(opts.Dir, opts.AppName+".pid"),
			pid:   os.Getpid(),
			alive: processAlive,
		}, nil
	case MethodPort:
		if opts.Port <= 0 || opts.Port > 65535 {
			return nil, fmt.Errorf("%w: %d", ErrNoPort, opts.Port)
		}
		return &portProbe{port: opts.Port}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}

// readPID 读取标记文件中的十进制进程号
func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid %q: %w", strings.TrimSpace(string(data)), err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid pid %d", pid)
	}
	return pid, nil
}

// removeOwned 标记仍属于 pid 时删除
func removeOwned(path string, pid int) error {
	recorded, err := readPID(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if recorded != pid {
		log.Warn("标记已被其他进程接管，保留", "path", path, "pid", recorded)
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
