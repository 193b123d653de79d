package mqtt

import (
	"encoding/binary"
	"fmt"
)

func UInt16ToByte(number uint16) []byte {
	result := make([]byte, 2)
	binary.BigEndian.PutUint16(result, number)
	return result
}

func ByteToUInt16(data []byte) uint16 {
	return binary.BigEndian.Uint16(data)
}

// DecodeRemainingLength 从 buf 起始处解析剩余长度，返回值和占用的字节数。
// 字节不足时返回 ErrNeedMoreBytes，不消费任何数据。
func DecodeRemainingLength(buf []byte) (int, int, error) {
	multiplier := 1
	value := 0
	for i := 0; i < 4; i++ { // 最多读取4字节
		if i >= len(buf) {
			return 0, 0, ErrNeedMoreBytes
		}
		encodedByte := buf[i]
		value += int(encodedByte&127) * multiplier
		multiplier *= 128
		if (encodedByte & 128) == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: the remaining length exceeds the 4 byte limit", ErrMalformedPacket)
}

// EncodeRemainingLength 按 base-128 编码剩余长度，0 编码为单字节 0x00
func EncodeRemainingLength(x int) []byte {
	var buf [4]byte
	i := 0
	for {
		buf[i] = byte(x % 128)
		if x /= 128; x > 0 {
			buf[i] |= 128
		}
		i++
		if x == 0 || i == 4 {
			break
		}
	}
	return buf[:i]
}

func ValidateFlags(pt PacketType, flags byte) bool {
	allowed, ok := allowedFlags[pt]
	if !ok {
		return false
	}
	if pt == PUBLISH || pt == CONNECT {
		// 检查标志位是否在允许范围内
		return (flags & ^allowed) == 0
	}
	// 其余报文的标志位为固定值
	return flags == allowed
}

// ParseFixedHeader 从 buf 解析固定头，返回固定头与其占用的字节数
func ParseFixedHeader(buf []byte) (FixedHeader, int, error) {
	if len(buf) < 2 {
		return FixedHeader{}, 0, ErrNeedMoreBytes
	}
	header := FixedHeader{
		Type:  PacketType(buf[0] >> 4),
		Flags: buf[0] & 0x0F,
	}
	if !header.Type.Valid() {
		return FixedHeader{}, 0, fmt.Errorf("%w: reserved packet type %d", ErrMalformedPacket, byte(header.Type))
	}
	if !ValidateFlags(header.Type, header.Flags) {
		return FixedHeader{}, 0, fmt.Errorf("%w: flags %04b of %s packet is not valid", ErrMalformedPacket, header.Flags, header.Type)
	}
	remaining, n, err := DecodeRemainingLength(buf[1:])
	if err != nil {
		return FixedHeader{}, 0, err
	}
	header.RemainingLength = remaining
	return header, 1 + n, nil
}
