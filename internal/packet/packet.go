// Package packet 实现了MQTT v3.1/v3.1.1 控制报文的编码与解码
package packet

import (
	"fmt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
)

// Packet 是所有控制报文的公共接口
type Packet interface {
	Type() mqtt.PacketType
	Encode() ([]byte, error)
}

// Decode 尝试从 buf 头部解码一个完整报文，返回报文和消费的字节数。
// 报文不完整时返回 mqtt.ErrNeedMoreBytes 且不消费任何字节；
// maxSize > 0 时，整包长度超过 maxSize 立即返回 mqtt.ErrPacketTooLarge，不必等待报文体。
// 返回的报文不引用 buf 的内存。
func Decode(buf []byte, maxSize int) (Packet, int, error) {
	header, n, err := mqtt.ParseFixedHeader(buf)
	if err != nil {
		return nil, 0, err
	}
	total := n + header.RemainingLength
	if maxSize > 0 && total > maxSize {
		return nil, 0, fmt.Errorf("%w: %s packet of %d bytes, limit %d", mqtt.ErrPacketTooLarge, header.Type, total, maxSize)
	}
	if len(buf) < total {
		return nil, 0, mqtt.ErrNeedMoreBytes
	}
	body := make([]byte, header.RemainingLength)
	copy(body, buf[n:total])
	p, err := decodeBody(header, mqtt.NewPayload(body))
	if err != nil {
		return nil, 0, err
	}
	return p, total, nil
}

func decodeBody(header mqtt.FixedHeader, payload *mqtt.Payload) (Packet, error) {
	switch header.Type {
	case mqtt.CONNECT:
		return ParseConnectPacket(payload)
	case mqtt.CONNACK:
		return ParseConnackPacket(payload)
	case mqtt.PUBLISH:
		return ParsePublishPacket(header, payload)
	case mqtt.PUBACK, mqtt.PUBREC, mqtt.PUBREL, mqtt.PUBCOMP, mqtt.UNSUBACK:
		return parseAckPacket(header.Type, payload)
	case mqtt.SUBSCRIBE:
		return ParseSubscribePacket(payload)
	case mqtt.SUBACK:
		return ParseSubackPacket(payload)
	case mqtt.UNSUBSCRIBE:
		return ParseUnsubscribePacket(payload)
	case mqtt.PINGREQ, mqtt.PINGRESP, mqtt.DISCONNECT:
		return parseEmptyPacket(header.Type, payload)
	default:
		return nil, malformed("unsupported packet type %s", header.Type)
	}
}
