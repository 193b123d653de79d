// Package inflight 跟踪出站/入站的未完成 QoS 1/2 交互以及订阅请求
package inflight

import (
	"fmt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/packet"
	"time"
)

type Direction byte

const (
	Outbound Direction = iota
	Inbound
)

func (d Direction) String() string {
	if d == Inbound {
		return "inbound"
	}
	return "outbound"
}

type Kind byte

const (
	KindPublish Kind = iota
	KindSubscribe
	KindUnsubscribe
)

// State 交互当前等待的报文
type State byte

const (
	StateWaitPuback  State = iota // 出站 QoS 1 已发送 PUBLISH
	StateWaitPubrec               // 出站 QoS 2 已发送 PUBLISH
	StateWaitPubcomp              // 出站 QoS 2 已发送 PUBREL
	StateWaitPubrel               // 入站 QoS 2 已回复 PUBREC
	StateWaitSuback
	StateWaitUnsuback
)

var stateNames = map[State]string{
	StateWaitPuback:   "wait_puback",
	StateWaitPubrec:   "wait_pubrec",
	StateWaitPubcomp:  "wait_pubcomp",
	StateWaitPubrel:   "wait_pubrel",
	StateWaitSuback:   "wait_suback",
	StateWaitUnsuback: "wait_unsuback",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", byte(s))
}

// Message 一个未完成的交互
type Message struct {
	ID        uint16
	Direction Direction
	Kind      Kind
	State     State

	QoS     mqtt.QoS
	Topic   string
	Payload []byte
	Retain  bool
	Dup     bool

	Subscriptions []packet.Subscription
	Topics        []string

	CreatedAt time.Time
	SentAt    time.Time
	Retries   int

	seq uint64
}

// Packet 返回该交互在当前状态下需要发送（或重发）的报文
func (m *Message) Packet() packet.Packet {
	switch m.State {
	case StateWaitPuback, StateWaitPubrec:
		return &packet.PublishPacket{
			Topic:    m.Topic,
			Payload:  m.Payload,
			QoS:      m.QoS,
			Retain:   m.Retain,
			Dup:      m.Dup,
			PacketID: m.ID,
		}
	case StateWaitPubcomp:
		return &packet.PubrelPacket{PacketID: m.ID}
	case StateWaitPubrel:
		return &packet.PubrecPacket{PacketID: m.ID}
	case StateWaitSuback:
		return &packet.SubscribePacket{PacketID: m.ID, Subscriptions: m.Subscriptions}
	default:
		return &packet.UnsubscribePacket{PacketID: m.ID, Topics: m.Topics}
	}
}

func (m *Message) String() string {
	return fmt.Sprintf("%s #%d %s retries=%d", m.Direction, m.ID, m.State, m.Retries)
}
