package packet

import (
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
)

// 只携带报文标识符的确认类报文

type PubackPacket struct{ PacketID uint16 }
type PubrecPacket struct{ PacketID uint16 }
type PubrelPacket struct{ PacketID uint16 }
type PubcompPacket struct{ PacketID uint16 }
type UnsubackPacket struct{ PacketID uint16 }

func (p *PubackPacket) Type() mqtt.PacketType   { return mqtt.PUBACK }
func (p *PubrecPacket) Type() mqtt.PacketType   { return mqtt.PUBREC }
func (p *PubrelPacket) Type() mqtt.PacketType   { return mqtt.PUBREL }
func (p *PubcompPacket) Type() mqtt.PacketType  { return mqtt.PUBCOMP }
func (p *UnsubackPacket) Type() mqtt.PacketType { return mqtt.UNSUBACK }

func (p *PubackPacket) Encode() ([]byte, error)   { return encodeAck(mqtt.PUBACK, p.PacketID) }
func (p *PubrecPacket) Encode() ([]byte, error)   { return encodeAck(mqtt.PUBREC, p.PacketID) }
func (p *PubrelPacket) Encode() ([]byte, error)   { return encodeAck(mqtt.PUBREL, p.PacketID) }
func (p *PubcompPacket) Encode() ([]byte, error)  { return encodeAck(mqtt.PUBCOMP, p.PacketID) }
func (p *UnsubackPacket) Encode() ([]byte, error) { return encodeAck(mqtt.UNSUBACK, p.PacketID) }

func encodeAck(packetType mqtt.PacketType, packetID uint16) ([]byte, error) {
	var flags byte
	if packetType == mqtt.PUBREL {
		flags = 0x02
	}
	return encodePacket(packetType, flags, mqtt.UInt16ToByte(packetID))
}

func parseAckPacket(packetType mqtt.PacketType, payload *mqtt.Payload) (Packet, error) {
	if payload.ContextLen != 2 {
		return nil, malformed("%s remaining length must be 2, got %d", packetType, payload.ContextLen)
	}
	id, _ := readPacketID(payload)
	switch packetType {
	case mqtt.PUBACK:
		return &PubackPacket{PacketID: id}, nil
	case mqtt.PUBREC:
		return &PubrecPacket{PacketID: id}, nil
	case mqtt.PUBREL:
		return &PubrelPacket{PacketID: id}, nil
	case mqtt.PUBCOMP:
		return &PubcompPacket{PacketID: id}, nil
	default:
		return &UnsubackPacket{PacketID: id}, nil
	}
}
