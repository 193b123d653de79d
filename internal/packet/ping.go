package packet

import (
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
)

type PingreqPacket struct{}
type PingrespPacket struct{}

func (p *PingreqPacket) Type() mqtt.PacketType  { return mqtt.PINGREQ }
func (p *PingrespPacket) Type() mqtt.PacketType { return mqtt.PINGRESP }

func (p *PingreqPacket) Encode() ([]byte, error)  { return encodePacket(mqtt.PINGREQ, 0, nil) }
func (p *PingrespPacket) Encode() ([]byte, error) { return encodePacket(mqtt.PINGRESP, 0, nil) }

func parseEmptyPacket(packetType mqtt.PacketType, payload *mqtt.Payload) (Packet, error) {
	if err := expectEnd(payload, packetType); err != nil {
		return nil, err
	}
	switch packetType {
	case mqtt.PINGREQ:
		return &PingreqPacket{}, nil
	case mqtt.PINGRESP:
		return &PingrespPacket{}, nil
	default:
		return &DisconnectPacket{}, nil
	}
}
