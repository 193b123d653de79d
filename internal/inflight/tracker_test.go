package inflight

import (
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestQoS1PublishFlow(t *testing.T) {
	tr := NewTracker(DefaultRetryPolicy())
	m, err := tr.TrackPublish("a/b", []byte("x"), mqtt.AtLeastOnce, false, t0)
	require.NoError(t, err)
	assert.Equal(t, StateWaitPuback, m.State)
	assert.Equal(t, &packet.PublishPacket{Topic: "a/b", Payload: []byte("x"), QoS: mqtt.AtLeastOnce, PacketID: m.ID}, m.Packet())

	_, ok := tr.Pubcomp(m.ID)
	assert.False(t, ok, "PUBCOMP does not complete a QoS 1 publish")

	done, ok := tr.Puback(m.ID)
	require.True(t, ok)
	assert.Same(t, m, done)
	assert.False(t, tr.ids.InUse(m.ID))

	_, ok = tr.Puback(m.ID)
	assert.False(t, ok, "second PUBACK is ignored")
}

func TestQoS2PublishFlow(t *testing.T) {
	tr := NewTracker(DefaultRetryPolicy())
	m, err := tr.TrackPublish("a/b", []byte("x"), mqtt.ExactlyOnce, true, t0)
	require.NoError(t, err)
	assert.Equal(t, StateWaitPubrec, m.State)

	_, ok := tr.Pubcomp(m.ID)
	assert.False(t, ok)

	rec, ok := tr.Pubrec(m.ID, t0.Add(time.Second))
	require.True(t, ok)
	assert.Equal(t, StateWaitPubcomp, rec.State)
	assert.Equal(t, &packet.PubrelPacket{PacketID: m.ID}, rec.Packet())

	_, ok = tr.Pubrec(m.ID, t0.Add(2*time.Second))
	assert.True(t, ok, "duplicate PUBREC still answers PUBREL")

	_, ok = tr.Puback(m.ID)
	assert.False(t, ok)

	done, ok := tr.Pubcomp(m.ID)
	require.True(t, ok)
	assert.Same(t, m, done)
	out, _ := tr.Outstanding()
	assert.Zero(t, out)
}

func TestTrackPublishRejectsQoS0(t *testing.T) {
	tr := NewTracker(DefaultRetryPolicy())
	_, err := tr.TrackPublish("a", nil, mqtt.AtMostOnce, false, t0)
	assert.Error(t, err)
}

func TestInboundQoS2Dedup(t *testing.T) {
	tr := NewTracker(DefaultRetryPolicy())
	p := &packet.PublishPacket{Topic: "t", Payload: []byte("v"), QoS: mqtt.ExactlyOnce, PacketID: 77}

	assert.True(t, tr.ReceivePublish(p, t0))
	dup := *p
	dup.Dup = true
	assert.False(t, tr.ReceivePublish(&dup, t0.Add(time.Second)))

	assert.True(t, tr.Pubrel(77))
	assert.False(t, tr.Pubrel(77))

	// 交互完成后同一标识符可以承载新消息
	assert.True(t, tr.ReceivePublish(p, t0.Add(time.Minute)))
}

func TestInboundIDsIndependentOfOutbound(t *testing.T) {
	tr := NewTracker(DefaultRetryPolicy())
	m, err := tr.TrackPublish("a", nil, mqtt.AtLeastOnce, false, t0)
	require.NoError(t, err)
	assert.True(t, tr.ReceivePublish(&packet.PublishPacket{Topic: "t", QoS: mqtt.ExactlyOnce, PacketID: m.ID}, t0))

	_, ok := tr.Puback(m.ID)
	assert.True(t, ok)
	assert.True(t, tr.Pubrel(m.ID))
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	tr := NewTracker(DefaultRetryPolicy())
	subs := []packet.Subscription{{Topic: "a", QoS: 0}, {Topic: "b", QoS: 1}, {Topic: "c", QoS: 2}}
	sub, err := tr.TrackSubscribe(subs, t0)
	require.NoError(t, err)
	unsub, err := tr.TrackUnsubscribe([]string{"a"}, t0)
	require.NoError(t, err)
	assert.NotEqual(t, sub.ID, unsub.ID)

	_, ok := tr.Unsuback(sub.ID)
	assert.False(t, ok)

	done, ok := tr.Suback(sub.ID)
	require.True(t, ok)
	assert.Equal(t, subs, done.Subscriptions)

	_, ok = tr.Unsuback(unsub.ID)
	assert.True(t, ok)
}

func TestRetryRetransmitsWithDupThenExpires(t *testing.T) {
	tr := NewTracker(RetryPolicy{Interval: 10 * time.Second, MaxRetries: 2})
	m, err := tr.TrackPublish("a", []byte("x"), mqtt.AtLeastOnce, false, t0)
	require.NoError(t, err)

	resend, expired := tr.Retry(t0.Add(9 * time.Second))
	assert.Empty(t, resend)
	assert.Empty(t, expired)

	resend, expired = tr.Retry(t0.Add(10 * time.Second))
	require.Len(t, resend, 1)
	assert.Empty(t, expired)
	assert.True(t, resend[0].Packet().(*packet.PublishPacket).Dup)
	assert.Equal(t, 1, m.Retries)

	resend, _ = tr.Retry(t0.Add(20 * time.Second))
	assert.Len(t, resend, 1)

	resend, expired = tr.Retry(t0.Add(30 * time.Second))
	assert.Empty(t, resend)
	require.Len(t, expired, 1)
	assert.Equal(t, m.ID, expired[0].ID)
	assert.False(t, tr.ids.InUse(m.ID))

	_, ok := tr.Puback(m.ID)
	assert.False(t, ok)
}

func TestRetryPubrelHasNoDup(t *testing.T) {
	tr := NewTracker(RetryPolicy{Interval: time.Second, MaxRetries: -1})
	m, _ := tr.TrackPublish("a", nil, mqtt.ExactlyOnce, false, t0)
	_, ok := tr.Pubrec(m.ID, t0)
	require.True(t, ok)

	resend, _ := tr.Retry(t0.Add(time.Second))
	require.Len(t, resend, 1)
	assert.Equal(t, &packet.PubrelPacket{PacketID: m.ID}, resend[0].Packet())
	assert.False(t, m.Dup)

	// 不限次数
	for i := 2; i < 50; i++ {
		resend, expired := tr.Retry(t0.Add(time.Duration(i) * time.Second))
		require.Len(t, resend, 1)
		require.Empty(t, expired)
	}
}

func TestRetryPubrecResetsBudget(t *testing.T) {
	tr := NewTracker(RetryPolicy{Interval: time.Second, MaxRetries: 1})
	m, _ := tr.TrackPublish("a", nil, mqtt.ExactlyOnce, false, t0)
	resend, _ := tr.Retry(t0.Add(time.Second))
	require.Len(t, resend, 1)
	assert.Equal(t, 1, m.Retries)

	_, ok := tr.Pubrec(m.ID, t0.Add(1500*time.Millisecond))
	require.True(t, ok)
	assert.Zero(t, m.Retries)

	resend, expired := tr.Retry(t0.Add(2500 * time.Millisecond))
	assert.Len(t, resend, 1)
	assert.Empty(t, expired)
}

func TestRetryInboundResendsPubrecAndNeverExpires(t *testing.T) {
	tr := NewTracker(RetryPolicy{Interval: time.Second, MaxRetries: 0})
	tr.ReceivePublish(&packet.PublishPacket{Topic: "t", QoS: mqtt.ExactlyOnce, PacketID: 5}, t0)
	for i := 1; i <= 3; i++ {
		resend, expired := tr.Retry(t0.Add(time.Duration(i) * time.Second))
		require.Len(t, resend, 1)
		assert.Empty(t, expired)
		assert.Equal(t, &packet.PubrecPacket{PacketID: 5}, resend[0].Packet())
	}
}

func TestResumeOrderAndDup(t *testing.T) {
	tr := NewTracker(DefaultRetryPolicy())
	first, _ := tr.TrackPublish("a", nil, mqtt.AtLeastOnce, false, t0)
	second, _ := tr.TrackPublish("b", nil, mqtt.ExactlyOnce, false, t0)
	third, _ := tr.TrackSubscribe([]packet.Subscription{{Topic: "c"}}, t0)
	_, _ = tr.Pubrec(second.ID, t0)

	pending := tr.Resume(t0.Add(time.Hour))
	require.Len(t, pending, 3)
	assert.Equal(t, []uint16{first.ID, second.ID, third.ID}, []uint16{pending[0].ID, pending[1].ID, pending[2].ID})
	assert.True(t, pending[0].Packet().(*packet.PublishPacket).Dup)
	assert.IsType(t, &packet.PubrelPacket{}, pending[1].Packet())
	assert.IsType(t, &packet.SubscribePacket{}, pending[2].Packet())
}

func TestReset(t *testing.T) {
	tr := NewTracker(DefaultRetryPolicy())
	m, _ := tr.TrackPublish("a", nil, mqtt.AtLeastOnce, false, t0)
	tr.ReceivePublish(&packet.PublishPacket{Topic: "t", QoS: mqtt.ExactlyOnce, PacketID: 9}, t0)
	tr.Reset()

	out, in := tr.Outstanding()
	assert.Zero(t, out)
	assert.Zero(t, in)
	assert.False(t, tr.ids.InUse(m.ID))
}

func TestNextIDForQoS0(t *testing.T) {
	tr := NewTracker(DefaultRetryPolicy())
	id, err := tr.NextID()
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.False(t, tr.ids.InUse(id))
}

func TestPolicyDefaults(t *testing.T) {
	tr := NewTracker(RetryPolicy{})
	assert.Equal(t, DefaultRetryInterval, tr.Policy().Interval)
	assert.Equal(t, 0, tr.Policy().MaxRetries)
}
