package packet

import (
	"fmt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
	"math"
)

type FieldPayload struct {
	PayloadLength int
	Payload       []byte
}

func malformed(format string, v ...any) error {
	return fmt.Errorf("%w: %s", mqtt.ErrMalformedPacket, fmt.Sprintf(format, v...))
}

func readPacketByte(payload *mqtt.Payload) (byte, error) {
	startByte := payload.CurrentPtr
	if startByte >= payload.ContextLen {
		return 0, malformed("invalid packet context length")
	}
	payload.CurrentPtr++
	return payload.Context[startByte], nil
}

func readPacketBytes(payload *mqtt.Payload, length int) ([]byte, error) {
	if length < 0 {
		return nil, malformed("invalid reading length %d", length)
	}
	if length == 0 {
		return []byte{}, nil
	}
	end := payload.CurrentPtr + length
	if end > payload.ContextLen {
		return nil, malformed("need %d bytes but only %d left", length, payload.Remaining())
	}
	data := payload.Context[payload.CurrentPtr:end]
	payload.CurrentPtr = end
	return data, nil
}

func readPacketID(payload *mqtt.Payload) (uint16, error) {
	data, err := readPacketBytes(payload, 2)
	if err != nil {
		return 0, err
	}
	return mqtt.ByteToUInt16(data), nil
}

func readPacketPayload(payload *mqtt.Payload) (FieldPayload, error) {
	startByte := payload.CurrentPtr
	contextLen := payload.ContextLen
	if startByte+1 >= contextLen {
		return FieldPayload{}, malformed("insufficient bytes for length")
	}
	length := int(mqtt.ByteToUInt16(payload.Context[startByte : startByte+2]))
	end := startByte + 2 + length
	if end > contextLen {
		return FieldPayload{}, malformed("payload length %d exceeds buffer (len=%d)", length, contextLen)
	}
	payload.CurrentPtr += 2 + length
	return FieldPayload{
		PayloadLength: length,
		Payload:       payload.Context[startByte+2 : end],
	}, nil
}

func readPacketString(payload *mqtt.Payload) (string, error) {
	field, err := readPacketPayload(payload)
	if err != nil {
		return "", err
	}
	return string(field.Payload), nil
}

// appendField 写入带两字节长度前缀的字段
func appendField(dst []byte, field []byte) ([]byte, error) {
	if len(field) > math.MaxUint16 {
		return dst, fmt.Errorf("field length %d exceeds %d bytes", len(field), math.MaxUint16)
	}
	dst = append(dst, mqtt.UInt16ToByte(uint16(len(field)))...)
	return append(dst, field...), nil
}

// encodePacket 为可变头+有效载荷加上固定头
func encodePacket(packetType mqtt.PacketType, flags byte, body []byte) ([]byte, error) {
	header, err := mqtt.FixedHeader{Type: packetType, Flags: flags, RemainingLength: len(body)}.Encode()
	if err != nil {
		return nil, err
	}
	return append(header, body...), nil
}

// expectEnd 确认报文已被完整读取
func expectEnd(payload *mqtt.Payload, packetType mqtt.PacketType) error {
	if payload.Remaining() != 0 {
		return malformed("%d trailing bytes in %s packet", payload.Remaining(), packetType)
	}
	return nil
}
