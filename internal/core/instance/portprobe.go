package instance

import (
	"fmt"
	"net"
	"strconv"
)

// portProbe 试探绑定端口
type portProbe struct {
	port int
}

func (p *portProbe) Method() Method { return MethodPort }

// TryAcquire 绑定成功立即关闭并返回 true，端口被占用返回 false
func (p *portProbe) TryAcquire() (bool, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(p.port)))
	if err != nil {
		if isAddrInUse(err) {
			log.Info("端口已被占用", "port", p.port)
			return false, nil
		}
		return false, fmt.Errorf("instance: probe port %d: %w", p.port, err)
	}
	if err := ln.Close(); err != nil {
		log.Debug("关闭探测监听器失败", "port", p.port, "err", err)
	}
	return true, nil
}

// Release 端口探测不留下标记
func (p *portProbe) Release() error { return nil }
