package inflight

import (
	"errors"
	"fmt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/packet"
	"slices"
	"time"
)

var ErrDeliveryTimeout = errors.New("inflight: delivery retry budget exceeded")

const (
	DefaultRetryInterval = 20 * time.Second
	DefaultMaxRetries    = 3
)

// RetryPolicy 固定间隔重传；MaxRetries < 0 表示不限次数
type RetryPolicy struct {
	Interval   time.Duration
	MaxRetries int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Interval: DefaultRetryInterval, MaxRetries: DefaultMaxRetries}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Interval <= 0 {
		p.Interval = DefaultRetryInterval
	}
	return p
}

func (p RetryPolicy) exhausted(retries int) bool {
	return p.MaxRetries >= 0 && retries >= p.MaxRetries
}

// Tracker 以报文标识符和方向为键维护交互状态机。
// 出站交互的标识符由内部的 PacketIDManager 分配，入站标识符由服务器分配。
type Tracker struct {
	ids      *PacketIDManager
	outbound map[uint16]*Message
	inbound  map[uint16]*Message
	policy   RetryPolicy
	seq      uint64
}

func NewTracker(policy RetryPolicy) *Tracker {
	return &Tracker{
		ids:      NewPacketIDManager(),
		outbound: make(map[uint16]*Message),
		inbound:  make(map[uint16]*Message),
		policy:   policy.normalized(),
	}
}

func (t *Tracker) Policy() RetryPolicy {
	return t.policy
}

// NextID 分配一个标识符并立即释放，用于无需确认的 QoS 0 发布
func (t *Tracker) NextID() (uint16, error) {
	id, err := t.ids.NextID()
	if err != nil {
		return 0, err
	}
	t.ids.ReleaseID(id)
	return id, nil
}

func (t *Tracker) track(m *Message, now time.Time) (*Message, error) {
	id, err := t.ids.NextID()
	if err != nil {
		return nil, err
	}
	t.seq++
	m.ID = id
	m.Direction = Outbound
	m.CreatedAt = now
	m.SentAt = now
	m.seq = t.seq
	t.outbound[id] = m
	return m, nil
}

// TrackPublish 登记一个出站 QoS 1/2 发布
func (t *Tracker) TrackPublish(topic string, payload []byte, qos mqtt.QoS, retain bool, now time.Time) (*Message, error) {
	m := &Message{Kind: KindPublish, QoS: qos, Topic: topic, Payload: payload, Retain: retain}
	switch qos {
	case mqtt.AtLeastOnce:
		m.State = StateWaitPuback
	case mqtt.ExactlyOnce:
		m.State = StateWaitPubrec
	default:
		return nil, fmt.Errorf("QoS %d publish has no acknowledgement to track", qos)
	}
	return t.track(m, now)
}

func (t *Tracker) TrackSubscribe(subscriptions []packet.Subscription, now time.Time) (*Message, error) {
	return t.track(&Message{Kind: KindSubscribe, State: StateWaitSuback, Subscriptions: subscriptions}, now)
}

func (t *Tracker) TrackUnsubscribe(topics []string, now time.Time) (*Message, error) {
	return t.track(&Message{Kind: KindUnsubscribe, State: StateWaitUnsuback, Topics: topics}, now)
}

// complete 结束出站交互并归还标识符
func (t *Tracker) complete(m *Message) {
	delete(t.outbound, m.ID)
	t.ids.ReleaseID(m.ID)
}

func (t *Tracker) finish(id uint16, state State) (*Message, bool) {
	m, ok := t.outbound[id]
	if !ok || m.State != state {
		return nil, false
	}
	t.complete(m)
	return m, true
}

// Puback 完成出站 QoS 1 发布
func (t *Tracker) Puback(id uint16) (*Message, bool) {
	return t.finish(id, StateWaitPuback)
}

// Pubrec 将出站 QoS 2 发布推进到等待 PUBCOMP，调用方随后发送 PUBREL。
// 重复的 PUBREC 返回同一交互，以便再次发送 PUBREL。
func (t *Tracker) Pubrec(id uint16, now time.Time) (*Message, bool) {
	m, ok := t.outbound[id]
	if !ok {
		return nil, false
	}
	switch m.State {
	case StateWaitPubrec:
		m.State = StateWaitPubcomp
		m.SentAt = now
		m.Retries = 0
		return m, true
	case StateWaitPubcomp:
		m.SentAt = now
		return m, true
	default:
		return nil, false
	}
}

// Pubcomp 完成出站 QoS 2 发布
func (t *Tracker) Pubcomp(id uint16) (*Message, bool) {
	return t.finish(id, StateWaitPubcomp)
}

func (t *Tracker) Suback(id uint16) (*Message, bool) {
	return t.finish(id, StateWaitSuback)
}

func (t *Tracker) Unsuback(id uint16) (*Message, bool) {
	return t.finish(id, StateWaitUnsuback)
}

// ReceivePublish 登记入站 QoS 2 发布。首次收到该标识符时返回 true，
// 在 PUBREL 到达前重复收到（DUP 重发）时返回 false，调用方不得再次投递。
func (t *Tracker) ReceivePublish(p *packet.PublishPacket, now time.Time) bool {
	if m, ok := t.inbound[p.PacketID]; ok {
		m.SentAt = now
		return false
	}
	t.seq++
	t.inbound[p.PacketID] = &Message{
		ID:        p.PacketID,
		Direction: Inbound,
		Kind:      KindPublish,
		State:     StateWaitPubrel,
		QoS:       p.QoS,
		Topic:     p.Topic,
		Retain:    p.Retain,
		CreatedAt: now,
		SentAt:    now,
		seq:       t.seq,
	}
	return true
}

// Pubrel 完成入站 QoS 2 交互，返回该标识符是否在跟踪中
func (t *Tracker) Pubrel(id uint16) bool {
	if _, ok := t.inbound[id]; !ok {
		return false
	}
	delete(t.inbound, id)
	return true
}

func (t *Tracker) ordered(messages map[uint16]*Message) []*Message {
	result := make([]*Message, 0, len(messages))
	for _, m := range messages {
		result = append(result, m)
	}
	slices.SortFunc(result, func(a, b *Message) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})
	return result
}

// Retry 检查到期的交互。resend 为需要重发的交互（按创建顺序），
// expired 为超出重传次数而被丢弃的出站交互，其标识符已归还。
// 入站交互只重发 PUBREC，永不过期，以保证去重。
func (t *Tracker) Retry(now time.Time) (resend []*Message, expired []*Message) {
	for _, m := range t.ordered(t.outbound) {
		if now.Sub(m.SentAt) < t.policy.Interval {
			continue
		}
		if t.policy.exhausted(m.Retries) {
			t.complete(m)
			expired = append(expired, m)
			continue
		}
		m.Retries++
		m.SentAt = now
		if m.State == StateWaitPuback || m.State == StateWaitPubrec {
			m.Dup = true
		}
		resend = append(resend, m)
	}
	for _, m := range t.ordered(t.inbound) {
		if now.Sub(m.SentAt) < t.policy.Interval {
			continue
		}
		m.Retries++
		m.SentAt = now
		resend = append(resend, m)
	}
	return resend, expired
}

// Resume 返回会话恢复时需要重发的全部出站交互（按创建顺序），
// 尚未确认的 PUBLISH 会带上 DUP 标志。
func (t *Tracker) Resume(now time.Time) []*Message {
	pending := t.ordered(t.outbound)
	for _, m := range pending {
		if m.State == StateWaitPuback || m.State == StateWaitPubrec {
			m.Dup = true
		}
		m.SentAt = now
	}
	return pending
}

// Reset 丢弃全部状态，不触发任何完成通知
func (t *Tracker) Reset() {
	t.outbound = make(map[uint16]*Message)
	t.inbound = make(map[uint16]*Message)
	t.ids.Reset()
}

func (t *Tracker) Outbound(id uint16) (*Message, bool) {
	m, ok := t.outbound[id]
	return m, ok
}

func (t *Tracker) Outstanding() (outbound int, inbound int) {
	return len(t.outbound), len(t.inbound)
}
