// Package client 实现单连接的 MQTT 客户端协议引擎。
//
// 引擎内部不启动任何 goroutine：调用方在自己的 goroutine 上反复调用 Poll（或 Loop）
// 驱动网络读写，所有回调都在该 goroutine 上按报文到达顺序同步执行。
// 同一个 Client 不能被多个 goroutine 并发使用。
package client

import (
	"context"
	"fmt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/inflight"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/logger"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/packet"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/session"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/topic"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/transport"
	"math"
	"time"
)

type Client struct {
	id            string
	session       *session.Session
	tracker       *inflight.Tracker
	dialer        transport.Dialer
	conn          transport.Conn
	state         State
	now           func() time.Time
	maxPacketSize int

	// generation 每次关闭传输层时递增，用于识别回调中发生的断开或重连
	generation uint64
	readBuf    []byte
	chunk      []byte

	lastSend        time.Time
	lastRecv        time.Time
	connectSentAt   time.Time
	pingOutstanding bool
	pingSentAt      time.Time

	pending   []func()
	routes    *topic.Tree[MessageHandler]
	callbacks callbacks
}

func New(clientID string, opts ...Option) (*Client, error) {
	c := &Client{
		id:            clientID,
		session:       session.New(clientID),
		tracker:       inflight.NewTracker(inflight.DefaultRetryPolicy()),
		now:           time.Now,
		maxPacketSize: DefaultMaxPacketSize,
		routes:        topic.NewTree[MessageHandler](),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.dialer == nil {
		dialer, err := transport.NewDialer(transport.Options{})
		if err != nil {
			return nil, err
		}
		c.dialer = dialer
	}
	return c, nil
}

func (c *Client) ClientID() string {
	return c.id
}

func (c *Client) State() State {
	return c.state
}

func (c *Client) IsConnected() bool {
	return c.state == StateConnected
}

// Outstanding 返回未完成的出站和入站交互数量
func (c *Client) Outstanding() (outbound int, inbound int) {
	return c.tracker.Outstanding()
}

// Connect 建立传输层连接并发送 CONNECT，成功返回时状态为 Connecting。
// 服务器是否接受连接通过 OnConnect 回调报告。
func (c *Client) Connect(ctx context.Context, host string, port int, keepalive time.Duration, cleanSession bool) error {
	c.dispatchPending()
	if c.state != StateDisconnected {
		return ErrAlreadyConnected
	}
	if host == "" || port <= 0 || port > math.MaxUint16 {
		return fmt.Errorf("%w: broker address %q port %d", ErrInvalidArgument, host, port)
	}
	if keepalive < 0 || keepalive > math.MaxUint16*time.Second || keepalive%time.Second != 0 {
		return fmt.Errorf("%w: keepalive %s", ErrInvalidArgument, keepalive)
	}
	if c.id == "" && (c.session.Protocol.Level == mqtt.ProtocolV31.Level || !cleanSession) {
		return fmt.Errorf("%w: empty client id requires MQTT 3.1.1 and a clean session", ErrInvalidArgument)
	}

	c.session.Host = host
	c.session.Port = port
	c.session.KeepAlive = keepalive
	c.session.CleanSession = cleanSession
	if cleanSession {
		c.tracker.Reset()
	}

	data, err := c.session.ConnectPacket().Encode()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	logger.InfoF("[%s] Connecting to %s (MQTT %s, keepalive %s, clean session %v)",
		c.id, c.session.Address(), c.session.Protocol, keepalive, cleanSession)
	conn, err := c.dialer.Dial(ctx, c.session.Address())
	if err != nil {
		logger.ErrorF("[%s] Fail to connect to %s, details: %v", c.id, c.session.Address(), err)
		return err
	}

	c.conn = conn
	c.readBuf = c.readBuf[:0]
	c.pingOutstanding = false
	c.lastRecv = c.now()
	if err := c.write(data); err != nil {
		c.closeTransport()
		return err
	}
	c.connectSentAt = c.lastSend
	c.state = StateConnecting
	return nil
}

// Disconnect 发送 DISCONNECT 并关闭连接，不等待任何确认。
// 所有未完成的交互被丢弃且不触发回调，随后触发 OnDisconnect。
func (c *Client) Disconnect() error {
	if c.conn == nil {
		return ErrNotConnected
	}
	c.state = StateDisconnecting
	if err := c.send(&packet.DisconnectPacket{}); err != nil {
		logger.WarnF("[%s] Fail to send DISCONNECT packet, details: %v", c.id, err)
	}
	c.closeTransport()
	c.tracker.Reset()
	logger.InfoF("[%s] Disconnected", c.id)

	c.dispatchPending()
	c.fireDisconnect()
	return nil
}

// Publish 发布一条消息并返回报文标识符。
// QoS 0 的标识符仅用于 OnPublish 回调，不会出现在报文中。
func (c *Client) Publish(topicName string, payload []byte, qos mqtt.QoS, retain bool) (uint16, error) {
	if !qos.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidQoS, qos)
	}
	if err := topic.ValidateName(topicName); err != nil {
		return 0, err
	}
	if c.state != StateConnected {
		return 0, ErrNotConnected
	}
	if size := publishSize(topicName, payload, qos); size > c.maxPacketSize {
		return 0, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, size, c.maxPacketSize)
	}
	content := append([]byte(nil), payload...)

	if qos == mqtt.AtMostOnce {
		id, err := c.tracker.NextID()
		if err != nil {
			return 0, err
		}
		if err := c.send(&packet.PublishPacket{Topic: topicName, Payload: content, Retain: retain}); err != nil {
			c.enqueue(func() { c.fireDeliveryFailed(id, err) })
			c.dropConnection(err)
			return id, nil
		}
		c.enqueue(func() { c.firePublish(id) })
		return id, nil
	}

	m, err := c.tracker.TrackPublish(topicName, content, qos, retain, c.now())
	if err != nil {
		return 0, err
	}
	if err := c.send(m.Packet()); err != nil {
		c.dropConnection(err)
	}
	return m.ID, nil
}

func (c *Client) Subscribe(filter string, qos mqtt.QoS) (uint16, error) {
	return c.SubscribeMany([]packet.Subscription{{Topic: filter, QoS: qos}})
}

// SubscribeMany 在一个 SUBSCRIBE 报文中订阅多个过滤器，SUBACK 中的授予结果按相同顺序返回
func (c *Client) SubscribeMany(subscriptions []packet.Subscription) (uint16, error) {
	if len(subscriptions) == 0 {
		return 0, fmt.Errorf("%w: no subscriptions", ErrInvalidArgument)
	}
	for _, s := range subscriptions {
		if !s.QoS.Valid() {
			return 0, fmt.Errorf("%w: %d", ErrInvalidQoS, s.QoS)
		}
		if err := topic.ValidateFilter(s.Topic); err != nil {
			return 0, err
		}
	}
	if c.state != StateConnected {
		return 0, ErrNotConnected
	}

	m, err := c.tracker.TrackSubscribe(append([]packet.Subscription(nil), subscriptions...), c.now())
	if err != nil {
		return 0, err
	}
	if err := c.send(m.Packet()); err != nil {
		c.dropConnection(err)
	}
	return m.ID, nil
}

func (c *Client) Unsubscribe(filters ...string) (uint16, error) {
	if len(filters) == 0 {
		return 0, fmt.Errorf("%w: no topic filters", ErrInvalidArgument)
	}
	for _, filter := range filters {
		if err := topic.ValidateFilter(filter); err != nil {
			return 0, err
		}
	}
	if c.state != StateConnected {
		return 0, ErrNotConnected
	}

	m, err := c.tracker.TrackUnsubscribe(append([]string(nil), filters...), c.now())
	if err != nil {
		return 0, err
	}
	if err := c.send(m.Packet()); err != nil {
		c.dropConnection(err)
	}
	return m.ID, nil
}

// SetWill 设置遗嘱，在下一次 Connect 时生效
func (c *Client) SetWill(topicName string, payload []byte, qos mqtt.QoS, retain bool) error {
	return c.session.SetWill(topicName, payload, qos, retain)
}

func (c *Client) ClearWill() {
	c.session.ClearWill()
}

// SetCredentials 设置用户名和可选密码，在下一次 Connect 时生效；用户名为空时清除
func (c *Client) SetCredentials(username string, password *string) {
	c.session.SetCredentials(username, password)
}

// AddRoute 为匹配 filter 的消息注册处理函数，OnMessage 之外额外调用。
// 同一 filter 再次注册时替换原处理函数。
func (c *Client) AddRoute(filter string, handler MessageHandler) error {
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrInvalidArgument)
	}
	return c.routes.Insert(filter, handler)
}

func (c *Client) RemoveRoute(filter string) bool {
	return c.routes.Delete(filter)
}

// Loop 反复调用 Poll，直到 ctx 结束、连接断开或 Poll 返回错误
func (c *Client) Loop(ctx context.Context, timeout time.Duration) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.Poll(timeout); err != nil {
			return err
		}
		if c.state == StateDisconnected {
			return nil
		}
	}
}

func publishSize(topicName string, payload []byte, qos mqtt.QoS) int {
	remaining := 2 + len(topicName) + len(payload)
	if qos > mqtt.AtMostOnce {
		remaining += 2
	}
	if remaining > mqtt.MaxRemainingLength {
		return math.MaxInt
	}
	return 1 + len(mqtt.EncodeRemainingLength(remaining)) + remaining
}
