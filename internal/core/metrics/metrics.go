package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-lanpeer/pkg/types"
)

const namespace = "lanpeer"

// Metrics 组件共享的指标集合
type Metrics struct {
	reg *prometheus.Registry

	knownPeers     prometheus.Gauge
	connections    *prometheus.GaugeVec
	messagesSent   prometheus.Counter
	messagesRecv   prometheus.Counter
	bytesSent      prometheus.Counter
	bytesRecv      prometheus.Counter
	decodeErrors   prometheus.Counter
	dialFailures   prometheus.Counter
	broadcasts     prometheus.Counter
	peerEventsSeen *prometheus.CounterVec
}

// New 创建指标集合并注册到私有注册表
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		knownPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "known_peers",
			Help:      "当前注册表中的节点数",
		}),
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "当前打开的连接数",
		}, []string{"direction"}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "成功写出的消息数",
		}),
		messagesRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "成功解析并分发的消息数",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "写出的字节数（含分隔符）",
		}),
		bytesRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "读入的字节数",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "message_decode_errors_total",
			Help:      "被丢弃的无效 JSON 片段数",
		}),
		dialFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dial_failures_total",
			Help:      "出站拨号失败次数",
		}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "广播调用次数",
		}),
		peerEventsSeen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peer_events_total",
			Help:      "节点上线/下线事件数",
		}, []string{"event"}),
	}

	m.reg.MustRegister(
		m.knownPeers,
		m.connections,
		m.messagesSent,
		m.messagesRecv,
		m.bytesSent,
		m.bytesRecv,
		m.decodeErrors,
		m.dialFailures,
		m.broadcasts,
		m.peerEventsSeen,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry 返回私有注册表
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler 返回 Prometheus 暴露格式的 HTTP 处理器
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// SetKnownPeers 更新已知节点数
func (m *Metrics) SetKnownPeers(n int) {
	if m == nil {
		return
	}
	m.knownPeers.Set(float64(n))
}

// PeerUp 记录节点上线
func (m *Metrics) PeerUp() {
	if m == nil {
		return
	}
	m.peerEventsSeen.WithLabelValues("up").Inc()
}

// PeerDown 记录节点下线
func (m *Metrics) PeerDown() {
	if m == nil {
		return
	}
	m.peerEventsSeen.WithLabelValues("down").Inc()
}

// ConnOpened 连接打开
func (m *Metrics) ConnOpened(dir types.Direction) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(dir.String()).Inc()
}

// ConnClosed 连接关闭
func (m *Metrics) ConnClosed(dir types.Direction) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(dir.String()).Dec()
}

// MessageSent 记录一条写出的消息
func (m *Metrics) MessageSent(size int) {
	if m == nil {
		return
	}
	m.messagesSent.Inc()
	m.bytesSent.Add(float64(size))
}

// MessageReceived 记录一条分发的消息
func (m *Metrics) MessageReceived() {
	if m == nil {
		return
	}
	m.messagesRecv.Inc()
}

// BytesReceived 记录读入的字节
func (m *Metrics) BytesReceived(n int) {
	if m == nil {
		return
	}
	m.bytesRecv.Add(float64(n))
}

// DecodeError 记录无效片段
func (m *Metrics) DecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

// DialFailure 记录拨号失败
func (m *Metrics) DialFailure() {
	if m == nil {
		return
	}
	m.dialFailures.Inc()
}

// Broadcast 记录一次广播
func (m *Metrics) Broadcast() {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
}
