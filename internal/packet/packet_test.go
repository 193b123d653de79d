package packet

import (
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func strPtr(s string) *string { return &s }

func mustEncode(t *testing.T, p Packet) []byte {
	t.Helper()
	data, err := p.Encode()
	require.NoError(t, err)
	return data
}

func TestConnectEncodeV31(t *testing.T) {
	data := mustEncode(t, &ConnectPacket{ClientID: "abc", KeepAlive: 60, CleanSession: true})
	expect := []byte{
		0x10, 0x11,
		0x00, 0x06, 'M', 'Q', 'I', 's', 'd', 'p',
		0x03,
		0x02,
		0x00, 0x3C,
		0x00, 0x03, 'a', 'b', 'c',
	}
	assert.Equal(t, expect, data)
}

func TestConnectEncodeWillAndCredentials(t *testing.T) {
	p := &ConnectPacket{
		Protocol:  mqtt.ProtocolV311,
		ClientID:  "c",
		KeepAlive: 10,
		Will:      &Will{Topic: "w", Payload: []byte("bye"), QoS: mqtt.AtLeastOnce, Retain: true},
		Username:  strPtr("u"),
		Password:  strPtr("p"),
	}
	assert.Equal(t, byte(0x80|0x40|0x20|0x08|0x04), p.Flags().Byte())

	data := mustEncode(t, p)
	decoded, n, err := Decode(data, 0)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	connect := decoded.(*ConnectPacket)
	assert.Equal(t, mqtt.ProtocolV311, connect.Protocol)
	assert.Equal(t, "c", connect.ClientID)
	assert.Equal(t, uint16(10), connect.KeepAlive)
	require.NotNil(t, connect.Will)
	assert.Equal(t, "w", connect.Will.Topic)
	assert.Equal(t, []byte("bye"), connect.Will.Payload)
	assert.True(t, connect.Will.Retain)
	assert.Equal(t, "u", *connect.Username)
	assert.Equal(t, "p", *connect.Password)
	assert.False(t, connect.CleanSession)
}

func TestDecodeConnack(t *testing.T) {
	tests := []struct {
		data []byte
		code ConnectReturnCode
	}{
		{[]byte{0x20, 0x02, 0x00, 0x00}, Accepted},
		{[]byte{0x20, 0x02, 0x00, 0x01}, RefusedProtocolVersion},
		{[]byte{0x20, 0x02, 0x00, 0x02}, RefusedIdentifierRejected},
		{[]byte{0x20, 0x02, 0x00, 0x03}, RefusedServerUnavailable},
		{[]byte{0x20, 0x02, 0x00, 0x04}, RefusedBadCredentials},
		{[]byte{0x20, 0x02, 0x00, 0x05}, RefusedNotAuthorized},
	}
	for _, tt := range tests {
		p, n, err := Decode(tt.data, 0)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
		assert.Equal(t, tt.code, p.(*ConnackPacket).ReturnCode)
	}

	_, _, err := Decode([]byte{0x20, 0x03, 0x00, 0x00, 0x00}, 0)
	assert.ErrorIs(t, err, mqtt.ErrMalformedPacket)
	assert.Contains(t, RefusedBadCredentials.String(), "bad user name")
}

func TestPublishEncodeDecode(t *testing.T) {
	p := &PublishPacket{Topic: "a/b", Payload: []byte("hi"), QoS: mqtt.ExactlyOnce, Retain: true, Dup: true, PacketID: 7}
	data := mustEncode(t, p)
	assert.Equal(t, byte(0x3D), data[0])
	assert.Equal(t, []byte{0x00, 0x03, 'a', '/', 'b', 0x00, 0x07, 'h', 'i'}, data[2:])

	decoded, _, err := Decode(data, 0)
	require.NoError(t, err)
	assert.Equal(t, p, decoded)

	qos0 := mustEncode(t, &PublishPacket{Topic: "a/b", Payload: []byte("hi")})
	assert.Equal(t, []byte{0x30, 0x07, 0x00, 0x03, 'a', '/', 'b', 'h', 'i'}, qos0)

	empty, _, err := Decode(mustEncode(t, &PublishPacket{Topic: "t", QoS: mqtt.AtLeastOnce, PacketID: 1}), 0)
	require.NoError(t, err)
	assert.Empty(t, empty.(*PublishPacket).Payload)
}

func TestPublishEncodeRejects(t *testing.T) {
	_, err := (&PublishPacket{Topic: "t", QoS: mqtt.AtLeastOnce}).Encode()
	assert.Error(t, err)
	_, err = (&PublishPacket{Topic: "t", QoS: 3, PacketID: 1}).Encode()
	assert.Error(t, err)
}

func TestPublishDecodeMalformed(t *testing.T) {
	tests := map[string][]byte{
		"qos 3":           {0x36, 0x05, 0x00, 0x01, 't', 0x00, 0x01},
		"dup on qos 0":    {0x38, 0x03, 0x00, 0x01, 't'},
		"zero packet id":  {0x32, 0x05, 0x00, 0x01, 't', 0x00, 0x00},
		"empty topic":     {0x30, 0x02, 0x00, 0x00},
		"topic overflows": {0x30, 0x03, 0x00, 0x05, 't'},
	}
	for name, data := range tests {
		_, _, err := Decode(data, 0)
		assert.ErrorIs(t, err, mqtt.ErrMalformedPacket, name)
	}
}

func TestAckPackets(t *testing.T) {
	tests := []struct {
		packet Packet
		expect []byte
	}{
		{&PubackPacket{PacketID: 1}, []byte{0x40, 0x02, 0x00, 0x01}},
		{&PubrecPacket{PacketID: 0x0102}, []byte{0x50, 0x02, 0x01, 0x02}},
		{&PubrelPacket{PacketID: 3}, []byte{0x62, 0x02, 0x00, 0x03}},
		{&PubcompPacket{PacketID: 4}, []byte{0x70, 0x02, 0x00, 0x04}},
		{&UnsubackPacket{PacketID: 5}, []byte{0xB0, 0x02, 0x00, 0x05}},
		{&PingreqPacket{}, []byte{0xC0, 0x00}},
		{&PingrespPacket{}, []byte{0xD0, 0x00}},
		{&DisconnectPacket{}, []byte{0xE0, 0x00}},
	}
	for _, tt := range tests {
		data := mustEncode(t, tt.packet)
		assert.Equal(t, tt.expect, data, tt.packet.Type().String())

		decoded, n, err := Decode(data, 0)
		require.NoError(t, err, tt.packet.Type().String())
		assert.Equal(t, len(data), n)
		assert.Equal(t, tt.packet, decoded)
	}

	_, _, err := Decode([]byte{0x40, 0x03, 0x00, 0x01, 0x00}, 0)
	assert.ErrorIs(t, err, mqtt.ErrMalformedPacket)
	_, _, err = Decode([]byte{0xD0, 0x01, 0x00}, 0)
	assert.ErrorIs(t, err, mqtt.ErrMalformedPacket)
}

func TestSubscribeEncode(t *testing.T) {
	data := mustEncode(t, &SubscribePacket{PacketID: 10, Subscriptions: []Subscription{
		{Topic: "a/#", QoS: mqtt.AtLeastOnce},
		{Topic: "b", QoS: mqtt.ExactlyOnce},
	}})
	expect := []byte{
		0x82, 0x0C,
		0x00, 0x0A,
		0x00, 0x03, 'a', '/', '#', 0x01,
		0x00, 0x01, 'b', 0x02,
	}
	assert.Equal(t, expect, data)

	_, err := (&SubscribePacket{PacketID: 1}).Encode()
	assert.Error(t, err)
}

func TestSubackGrantedList(t *testing.T) {
	p, _, err := Decode([]byte{0x90, 0x05, 0x00, 0x09, 0x00, 0x01, 0x80}, 0)
	require.NoError(t, err)
	suback := p.(*SubackPacket)
	assert.Equal(t, uint16(9), suback.PacketID)
	assert.Equal(t, []GrantedQoS{GrantedQoS0, GrantedQoS1, SubscribeFailure}, suback.ReturnCodes)

	names := make([]string, 0, len(suback.ReturnCodes))
	for _, code := range suback.ReturnCodes {
		names = append(names, code.String())
	}
	assert.Equal(t, []string{"0", "1", "refused"}, names)

	_, ok := suback.ReturnCodes[2].QoS()
	assert.False(t, ok)
	qos, ok := suback.ReturnCodes[1].QoS()
	assert.True(t, ok)
	assert.Equal(t, mqtt.AtLeastOnce, qos)

	_, _, err = Decode([]byte{0x90, 0x03, 0x00, 0x09, 0x03}, 0)
	assert.ErrorIs(t, err, mqtt.ErrMalformedPacket)
}

func TestUnsubscribeEncodeDecode(t *testing.T) {
	p := &UnsubscribePacket{PacketID: 2, Topics: []string{"a", "b/+"}}
	data := mustEncode(t, p)
	assert.Equal(t, byte(0xA2), data[0])
	decoded, _, err := Decode(data, 0)
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}

func TestDecodeNeedMoreBytes(t *testing.T) {
	data := mustEncode(t, &PublishPacket{Topic: "a/b", Payload: []byte("hello"), QoS: mqtt.AtLeastOnce, PacketID: 1})
	for i := 0; i < len(data); i++ {
		p, n, err := Decode(data[:i], 0)
		assert.ErrorIs(t, err, mqtt.ErrNeedMoreBytes, "prefix %d", i)
		assert.Nil(t, p)
		assert.Zero(t, n)
	}
}

func TestDecodeConsecutivePackets(t *testing.T) {
	buf := append(mustEncode(t, &PubackPacket{PacketID: 1}), mustEncode(t, &PingrespPacket{})...)
	buf = append(buf, 0x30) // 下一个报文的第一个字节

	p, n, err := Decode(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, &PubackPacket{PacketID: 1}, p)
	buf = buf[n:]

	p, n, err = Decode(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, &PingrespPacket{}, p)
	buf = buf[n:]

	_, _, err = Decode(buf, 0)
	assert.ErrorIs(t, err, mqtt.ErrNeedMoreBytes)
}

func TestDecodeRemainingLengthOverflow(t *testing.T) {
	_, _, err := Decode([]byte{0x30, 0xFF, 0xFF, 0xFF, 0xFF, 0x7F}, 0)
	assert.ErrorIs(t, err, mqtt.ErrMalformedPacket)
}

func TestDecodeMaxSize(t *testing.T) {
	// 仅有固定头即可判定超限，无需缓冲报文体
	_, n, err := Decode([]byte{0x30, 0xFF, 0xFF, 0x7F}, 1024)
	assert.ErrorIs(t, err, mqtt.ErrPacketTooLarge)
	assert.ErrorIs(t, err, mqtt.ErrMalformedPacket)
	assert.Zero(t, n)

	data := mustEncode(t, &PublishPacket{Topic: "t", Payload: make([]byte, 100)})
	_, _, err = Decode(data, len(data))
	assert.NoError(t, err)
	_, _, err = Decode(data, len(data)-1)
	assert.ErrorIs(t, err, mqtt.ErrPacketTooLarge)
}

func TestDecodeDoesNotAliasBuffer(t *testing.T) {
	data := mustEncode(t, &PublishPacket{Topic: "t", Payload: []byte("abc")})
	p, _, err := Decode(data, 0)
	require.NoError(t, err)
	for i := range data {
		data[i] = 0
	}
	assert.Equal(t, []byte("abc"), p.(*PublishPacket).Payload)
}
