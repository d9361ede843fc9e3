package api

import (
	"encoding/json"
	"time"

	"github.com/dep2p/go-lanpeer/pkg/types"
)

// 事件类型
const (
	EventPeerUp   = "peer-up"
	EventPeerDown = "peer-down"
	EventMessage  = "message"
)

// peerView WebSocket 事件中的节点表示
type peerView struct {
	InstanceName string            `json:"instanceName"`
	Host         string            `json:"host"`
	Port         int               `json:"port"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Event 推送给浏览器的事件
type Event struct {
	Type     string          `json:"type"`
	Time     time.Time       `json:"time"`
	Peer     *peerView       `json:"peer,omitempty"`
	SocketID string          `json:"socketId,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

func viewOf(p types.Peer) *peerView {
	return &peerView{
		InstanceName: p.InstanceName,
		Host:         p.Host,
		Port:         p.Port,
		Metadata:     p.Metadata,
	}
}

// toEvent 把总线事件转换为推送事件，未知类型返回 false
func toEvent(e any) (Event, bool) {
	switch evt := e.(type) {
	case types.EvtPeerUp:
		return Event{Type: EventPeerUp, Time: evt.Time, Peer: viewOf(evt.Peer)}, true
	case types.EvtPeerDown:
		return Event{Type: EventPeerDown, Time: evt.Time, Peer: viewOf(evt.Peer)}, true
	case types.EvtMessage:
		return Event{Type: EventMessage, Time: evt.Time, SocketID: evt.SocketID, Payload: evt.Payload}, true
	default:
		return Event{}, false
	}
}
