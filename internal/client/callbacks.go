package client

import (
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/packet"
)

// MessageHandler 接收一条应用消息
type MessageHandler func(topic string, payload []byte, qos mqtt.QoS, retain bool)

type callbacks struct {
	onConnect        func(code packet.ConnectReturnCode)
	onDisconnect     func()
	onMessage        MessageHandler
	onPublish        func(id uint16)
	onSubscribe      func(id uint16, granted []packet.GrantedQoS)
	onUnsubscribe    func(id uint16)
	onConnectionLost func(err error)
	onDeliveryFailed func(id uint16, err error)
}

// 所有回调都在调用 Poll / Loop / Disconnect 的 goroutine 上同步执行

func (c *Client) SetOnConnect(f func(code packet.ConnectReturnCode)) { c.callbacks.onConnect = f }
func (c *Client) SetOnDisconnect(f func())                           { c.callbacks.onDisconnect = f }
func (c *Client) SetOnMessage(f MessageHandler)                      { c.callbacks.onMessage = f }
func (c *Client) SetOnPublish(f func(id uint16))                     { c.callbacks.onPublish = f }
func (c *Client) SetOnSubscribe(f func(id uint16, granted []packet.GrantedQoS)) {
	c.callbacks.onSubscribe = f
}
func (c *Client) SetOnUnsubscribe(f func(id uint16))               { c.callbacks.onUnsubscribe = f }
func (c *Client) SetOnConnectionLost(f func(err error))            { c.callbacks.onConnectionLost = f }
func (c *Client) SetOnDeliveryFailed(f func(id uint16, err error)) { c.callbacks.onDeliveryFailed = f }

func (c *Client) fireConnect(code packet.ConnectReturnCode) {
	if c.callbacks.onConnect != nil {
		c.callbacks.onConnect(code)
	}
}

func (c *Client) fireDisconnect() {
	if c.callbacks.onDisconnect != nil {
		c.callbacks.onDisconnect()
	}
}

func (c *Client) fireMessage(p *packet.PublishPacket) {
	if c.callbacks.onMessage != nil {
		c.callbacks.onMessage(p.Topic, p.Payload, p.QoS, p.Retain)
	}
	for _, handler := range c.routes.Match(p.Topic) {
		handler(p.Topic, p.Payload, p.QoS, p.Retain)
	}
}

func (c *Client) firePublish(id uint16) {
	if c.callbacks.onPublish != nil {
		c.callbacks.onPublish(id)
	}
}

func (c *Client) fireSubscribe(id uint16, granted []packet.GrantedQoS) {
	if c.callbacks.onSubscribe != nil {
		c.callbacks.onSubscribe(id, granted)
	}
}

func (c *Client) fireUnsubscribe(id uint16) {
	if c.callbacks.onUnsubscribe != nil {
		c.callbacks.onUnsubscribe(id)
	}
}

func (c *Client) fireConnectionLost(err error) {
	if c.callbacks.onConnectionLost != nil {
		c.callbacks.onConnectionLost(err)
	}
}

func (c *Client) fireDeliveryFailed(id uint16, err error) {
	if c.callbacks.onDeliveryFailed != nil {
		c.callbacks.onDeliveryFailed(id, err)
	}
}

// enqueue 把在 Poll 之外产生的事件排队，下一次 Poll 开始时派发
func (c *Client) enqueue(event func()) {
	c.pending = append(c.pending, event)
}

func (c *Client) dispatchPending() {
	for len(c.pending) > 0 {
		events := c.pending
		c.pending = nil
		for _, event := range events {
			event()
		}
	}
}
