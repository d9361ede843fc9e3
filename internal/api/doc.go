// Package api 提供本地 HTTP 边界
//
// 路由:
//
//	GET  /api/peers      已知节点列表，无节点时返回 []
//	POST /api/broadcast  请求体必须是 JSON，原样广播给所有节点
//	GET  /api/events     WebSocket，推送 peer-up / peer-down / message 事件
//	GET  /metrics        Prometheus 指标
//	GET  /healthz        存活检查
//
// HTTPAddr 为空时不启动服务器。
package api
