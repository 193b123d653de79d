package packet

import (
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
)

type DisconnectPacket struct{}

func (p *DisconnectPacket) Type() mqtt.PacketType { return mqtt.DISCONNECT }

func (p *DisconnectPacket) Encode() ([]byte, error) {
	return encodePacket(mqtt.DISCONNECT, 0, nil)
}
