package mqtt

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPacket 报文结构错误，连接级致命错误
	ErrMalformedPacket = errors.New("mqtt: malformed packet")
	// ErrPacketTooLarge 报文超出允许的最大长度
	ErrPacketTooLarge = fmt.Errorf("%w: packet exceeds maximum size", ErrMalformedPacket)
	// ErrNeedMoreBytes 缓冲区中还没有完整的报文
	ErrNeedMoreBytes = errors.New("mqtt: need more bytes")
)
