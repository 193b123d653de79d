package packet

import (
	"fmt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
)

type UnsubscribePacket struct {
	PacketID uint16
	Topics   []string
}

func (p *UnsubscribePacket) Type() mqtt.PacketType { return mqtt.UNSUBSCRIBE }

func (p *UnsubscribePacket) Encode() ([]byte, error) {
	if len(p.Topics) == 0 {
		return nil, fmt.Errorf("UNSUBSCRIBE requires at least one topic filter")
	}
	body := mqtt.UInt16ToByte(p.PacketID)
	var err error
	for _, topic := range p.Topics {
		if body, err = appendField(body, []byte(topic)); err != nil {
			return nil, fmt.Errorf("topic filter: %w", err)
		}
	}
	return encodePacket(mqtt.UNSUBSCRIBE, 0x02, body)
}

func ParseUnsubscribePacket(payload *mqtt.Payload) (*UnsubscribePacket, error) {
	result := &UnsubscribePacket{}

	var err error
	if result.PacketID, err = readPacketID(payload); err != nil {
		return nil, fmt.Errorf("error occured when reading packet ID: %w", err)
	}

	for payload.Remaining() > 0 {
		topicFilter, err := readPacketString(payload)
		if err != nil {
			return nil, fmt.Errorf("error occured when reading topic filter: %w", err)
		}
		result.Topics = append(result.Topics, topicFilter)
	}
	if len(result.Topics) == 0 {
		return nil, malformed("UNSUBSCRIBE without topic filters")
	}
	return result, nil
}
