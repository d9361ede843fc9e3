package eventbus

// subSettings 订阅设置
type subSettings struct {
	buffer int
}

// emitterSettings 发射器设置
type emitterSettings struct {
	stateful bool
}

// SubOpt 订阅选项
type SubOpt func(*subSettings)

// EmitterOpt 发射器选项
type EmitterOpt func(*emitterSettings)

// BufSize 设置订阅通道缓冲区大小
func BufSize(n int) SubOpt {
	return func(s *subSettings) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// Stateful 发射器记住最后一个事件，新订阅者立即收到它
func Stateful() EmitterOpt {
	return func(s *emitterSettings) {
		s.stateful = true
	}
}
