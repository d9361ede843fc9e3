// Package metrics 提供监控指标收集
//
// 所有指标注册在私有的 prometheus.Registry 上，不污染全局默认注册表：
//
//	m := metrics.New()
//	m.MessageSent(len(frame))
//	http.Handle("/metrics", m.Handler())
//
// nil *Metrics 是合法的空实现，组件无需判断是否启用了指标。
package metrics
