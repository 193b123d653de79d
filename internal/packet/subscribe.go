package packet

import (
	"fmt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
)

// GrantedQoS SUBACK 中每个主题过滤器的授予结果
type GrantedQoS byte

const (
	GrantedQoS0 GrantedQoS = iota
	GrantedQoS1
	GrantedQoS2
	// SubscribeFailure 服务器拒绝了该过滤器
	SubscribeFailure GrantedQoS = 0x80
)

func (g GrantedQoS) Refused() bool {
	return g == SubscribeFailure
}

// QoS 返回授予的服务质量等级，被拒绝时 ok 为 false
func (g GrantedQoS) QoS() (mqtt.QoS, bool) {
	if g.Refused() {
		return 0, false
	}
	return mqtt.QoS(g), true
}

func (g GrantedQoS) String() string {
	if g.Refused() {
		return "refused"
	}
	return fmt.Sprintf("%d", byte(g))
}

func (g GrantedQoS) valid() bool {
	return g <= GrantedQoS2 || g == SubscribeFailure
}

// Subscription 一个主题过滤器及其请求的服务质量
type Subscription struct {
	Topic string
	QoS   mqtt.QoS
}

type SubscribePacket struct {
	PacketID      uint16
	Subscriptions []Subscription
}

func (p *SubscribePacket) Type() mqtt.PacketType { return mqtt.SUBSCRIBE }

func (p *SubscribePacket) Encode() ([]byte, error) {
	if len(p.Subscriptions) == 0 {
		return nil, fmt.Errorf("SUBSCRIBE requires at least one topic filter")
	}
	body := mqtt.UInt16ToByte(p.PacketID)
	var err error
	for _, sub := range p.Subscriptions {
		if !sub.QoS.Valid() {
			return nil, fmt.Errorf("invalid QoS %d for filter %q", sub.QoS, sub.Topic)
		}
		if body, err = appendField(body, []byte(sub.Topic)); err != nil {
			return nil, fmt.Errorf("topic filter: %w", err)
		}
		body = append(body, byte(sub.QoS))
	}
	return encodePacket(mqtt.SUBSCRIBE, 0x02, body)
}

func ParseSubscribePacket(payload *mqtt.Payload) (*SubscribePacket, error) {
	result := &SubscribePacket{}

	var err error
	if result.PacketID, err = readPacketID(payload); err != nil {
		return nil, fmt.Errorf("error occured when reading packet ID: %w", err)
	}

	for payload.Remaining() > 0 {
		topicFilter, err := readPacketString(payload)
		if err != nil {
			return nil, fmt.Errorf("error occured when reading topic filter: %w", err)
		}
		qos, err := readPacketByte(payload)
		if err != nil {
			return nil, fmt.Errorf("error occured when reading qos level: %w", err)
		}
		if !mqtt.QoS(qos).Valid() {
			return nil, malformed("invalid requested QoS %d", qos)
		}
		result.Subscriptions = append(result.Subscriptions, Subscription{Topic: topicFilter, QoS: mqtt.QoS(qos)})
	}
	if len(result.Subscriptions) == 0 {
		return nil, malformed("SUBSCRIBE without topic filters")
	}
	return result, nil
}

type SubackPacket struct {
	PacketID    uint16
	ReturnCodes []GrantedQoS
}

func (p *SubackPacket) Type() mqtt.PacketType { return mqtt.SUBACK }

func (p *SubackPacket) Encode() ([]byte, error) {
	body := mqtt.UInt16ToByte(p.PacketID)
	for _, code := range p.ReturnCodes {
		body = append(body, byte(code))
	}
	return encodePacket(mqtt.SUBACK, 0, body)
}

func ParseSubackPacket(payload *mqtt.Payload) (*SubackPacket, error) {
	result := &SubackPacket{}

	var err error
	if result.PacketID, err = readPacketID(payload); err != nil {
		return nil, fmt.Errorf("error occured when reading packet ID: %w", err)
	}
	result.ReturnCodes = make([]GrantedQoS, 0, payload.Remaining())
	for payload.Remaining() > 0 {
		code, _ := readPacketByte(payload)
		granted := GrantedQoS(code)
		if !granted.valid() {
			return nil, malformed("invalid SUBACK return code 0x%02X", code)
		}
		result.ReturnCodes = append(result.ReturnCodes, granted)
	}
	return result, nil
}
