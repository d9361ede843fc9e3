package connmgr

import "bytes"

// Delimiter 消息分隔符
const Delimiter = '\n'

// Deframer 把字节流切分为以 '\n' 结尾的消息
//
// 不是并发安全的，每条连接的读协程独占一个实例。
type Deframer struct {
	buf     []byte
	max     int
	skip    bool
	dropped int
}

// NewDeframer 创建切分器，max 为单条消息上限，0 表示不限制
func NewDeframer(max int) *Deframer {
	return &Deframer{max: max}
}

// Feed 追加数据并按顺序返回所有完整消息（不含分隔符）
//
// 返回的切片归调用方所有。不完整的尾部留在缓冲区等待后续数据；
// 超过上限仍未遇到分隔符的数据整条丢弃，直到下一个分隔符为止。
func (d *Deframer) Feed(data []byte) [][]byte {
	var out [][]byte
	for len(data) > 0 {
		i := bytes.IndexByte(data, Delimiter)
		if i < 0 {
			if !d.skip {
				d.buf = append(d.buf, data...)
				if d.max > 0 && len(d.buf) > d.max {
					d.discard(len(d.buf))
					d.skip = true
				}
			}
			return out
		}

		if d.skip {
			// 超长消息的剩余部分
			d.skip = false
			data = data[i+1:]
			continue
		}

		var line []byte
		if len(d.buf) > 0 {
			line = append(d.buf, data[:i]...)
			d.buf = nil
		} else {
			line = append([]byte(nil), data[:i]...)
		}
		data = data[i+1:]

		if d.max > 0 && len(line) > d.max {
			d.discard(len(line))
			continue
		}
		out = append(out, line)
	}
	return out
}

func (d *Deframer) discard(n int) {
	d.dropped++
	d.buf = nil
	log.Warn("消息超过大小上限，丢弃", "size", n, "max", d.max)
}

// Buffered 返回等待分隔符的字节数
func (d *Deframer) Buffered() int {
	return len(d.buf)
}

// Dropped 返回因超长被丢弃的消息数
func (d *Deframer) Dropped() int {
	return d.dropped
}

// Reset 清空缓冲
func (d *Deframer) Reset() {
	d.buf = nil
	d.skip = false
}
