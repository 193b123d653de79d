package packet

import (
	"fmt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
)

type PublishPacket struct {
	Topic    string
	Payload  []byte
	QoS      mqtt.QoS
	Retain   bool
	Dup      bool
	PacketID uint16
}

func (p *PublishPacket) Type() mqtt.PacketType { return mqtt.PUBLISH }

func (p *PublishPacket) flags() byte {
	flags := byte(p.QoS) << 1
	if p.Dup {
		flags |= mqtt.FlagDup
	}
	if p.Retain {
		flags |= mqtt.FlagRetain
	}
	return flags
}

func (p *PublishPacket) Encode() ([]byte, error) {
	if !p.QoS.Valid() {
		return nil, fmt.Errorf("the QoS Level must not set to %d", p.QoS)
	}
	if p.QoS > mqtt.AtMostOnce && p.PacketID == 0 {
		return nil, fmt.Errorf("QoS %d publish requires a non-zero packet ID", p.QoS)
	}
	body, err := appendField(make([]byte, 0, 4+len(p.Topic)+len(p.Payload)), []byte(p.Topic))
	if err != nil {
		return nil, fmt.Errorf("topic name: %w", err)
	}
	if p.QoS > mqtt.AtMostOnce {
		body = append(body, mqtt.UInt16ToByte(p.PacketID)...)
	}
	body = append(body, p.Payload...)
	return encodePacket(mqtt.PUBLISH, p.flags(), body)
}

func ParsePublishPacket(header mqtt.FixedHeader, payload *mqtt.Payload) (*PublishPacket, error) {
	result := &PublishPacket{
		Dup:    header.Flags&mqtt.FlagDup != 0,
		QoS:    mqtt.QoS((header.Flags & mqtt.FlagQoS) >> 1),
		Retain: header.Flags&mqtt.FlagRetain != 0,
	}

	if !result.QoS.Valid() {
		return nil, malformed("the QoS Level must not set to 3")
	}
	if result.QoS == mqtt.AtMostOnce && result.Dup {
		return nil, malformed("when QoS Level set to 0, retry flag must be set to 0 either")
	}

	topicName, err := readPacketString(payload)
	if err != nil {
		return nil, fmt.Errorf("error occured when reading topic name: %w", err)
	}
	if topicName == "" {
		return nil, malformed("empty topic name")
	}
	result.Topic = topicName

	if result.QoS > mqtt.AtMostOnce {
		if result.PacketID, err = readPacketID(payload); err != nil {
			return nil, fmt.Errorf("error occured when reading packet ID: %w", err)
		}
		if result.PacketID == 0 {
			return nil, malformed("packet ID must not be 0")
		}
	}

	if result.Payload, err = readPacketBytes(payload, payload.Remaining()); err != nil {
		return nil, fmt.Errorf("error occured when reading payload: %w", err)
	}
	return result, nil
}
