// Package mqtt 实现了MQTT协议的核心类型定义和常量
package mqtt

import "fmt"

// PacketType 定义了MQTT控制报文的类型
type PacketType byte

// MQTT 控制报文类型常量定义
const (
	CONNECT     PacketType = iota + 1 // 客户端请求连接到服务器
	CONNACK                           // 连接确认
	PUBLISH                           // 发布消息
	PUBACK                            // 发布确认
	PUBREC                            // 发布收到（QoS 2第一步）
	PUBREL                            // 发布释放（QoS 2第二步）
	PUBCOMP                           // 发布完成（QoS 2第三步）
	SUBSCRIBE                         // 订阅请求
	SUBACK                            // 订阅确认
	UNSUBSCRIBE                       // 取消订阅
	UNSUBACK                          // 取消订阅确认
	PINGREQ                           // 心跳请求
	PINGRESP                          // 心跳响应
	DISCONNECT                        // 断开连接
)

// PacketTypeMap 将PacketType映射到其字符串表示
var PacketTypeMap = map[PacketType]string{
	CONNECT:     "CONNECT",
	CONNACK:     "CONNACK",
	PUBLISH:     "PUBLISH",
	PUBACK:      "PUBACK",
	PUBREC:      "PUBREC",
	PUBREL:      "PUBREL",
	PUBCOMP:     "PUBCOMP",
	SUBSCRIBE:   "SUBSCRIBE",
	SUBACK:      "SUBACK",
	UNSUBSCRIBE: "UNSUBSCRIBE",
	UNSUBACK:    "UNSUBACK",
	PINGREQ:     "PINGREQ",
	PINGRESP:    "PINGRESP",
	DISCONNECT:  "DISCONNECT",
}

func (packetType PacketType) String() string {
	if name, ok := PacketTypeMap[packetType]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", byte(packetType))
}

// Valid 报告类型是否在 CONNECT..DISCONNECT 范围内（0 和 15 为保留值）
func (packetType PacketType) Valid() bool {
	return packetType >= CONNECT && packetType <= DISCONNECT
}

// allowedFlags 定义了每种报文类型允许的标志位组合
var allowedFlags = map[PacketType]byte{
	CONNECT:     0x00, // 0000
	CONNACK:     0x00, // 0000
	PUBLISH:     0x0F, // 1111（允许所有标志位组合）
	PUBACK:      0x00, // 0000
	PUBREC:      0x00, // 0000
	PUBREL:      0x02, // 0010
	PUBCOMP:     0x00, // 0000
	SUBSCRIBE:   0x02, // 0010
	SUBACK:      0x00, // 0000
	UNSUBSCRIBE: 0x02, // 0010
	UNSUBACK:    0x00, // 0000
	PINGREQ:     0x00, // 0000
	PINGRESP:    0x00, // 0000
	DISCONNECT:  0x00, // 0000
}

// PUBLISH 固定头标志位
const (
	FlagDup    byte = 0x08
	FlagQoS    byte = 0x06
	FlagRetain byte = 0x01
)

// QoS 服务质量等级
type QoS byte

const (
	AtMostOnce  QoS = 0
	AtLeastOnce QoS = 1
	ExactlyOnce QoS = 2
)

func (q QoS) Valid() bool {
	return q <= ExactlyOnce
}

// ProtocolVersion 描述 CONNECT 可变头中的协议名和协议级别
type ProtocolVersion struct {
	Name  string
	Level byte
}

var (
	// ProtocolV31 MQTT v3.1，默认版本
	ProtocolV31 = ProtocolVersion{Name: "MQIsdp", Level: 3}
	// ProtocolV311 MQTT v3.1.1
	ProtocolV311 = ProtocolVersion{Name: "MQTT", Level: 4}
)

func (v ProtocolVersion) String() string {
	switch v.Level {
	case 3:
		return "3.1"
	case 4:
		return "3.1.1"
	default:
		return fmt.Sprintf("%s/%d", v.Name, v.Level)
	}
}

// MaxRemainingLength 剩余长度字段4字节所能表示的最大值
const MaxRemainingLength = 268435455

// FixedHeader 定义了MQTT固定头部结构
type FixedHeader struct {
	Type            PacketType // 报文类型
	Flags           byte       // 标志位
	RemainingLength int        // 剩余长度
}

// Encode 编码固定头（类型/标志位 + 剩余长度）
func (h FixedHeader) Encode() ([]byte, error) {
	if h.RemainingLength < 0 || h.RemainingLength > MaxRemainingLength {
		return nil, fmt.Errorf("%w: remaining length %d", ErrPacketTooLarge, h.RemainingLength)
	}
	header := make([]byte, 1, 5)
	header[0] = byte(h.Type)<<4 | h.Flags&0x0F
	return append(header, EncodeRemainingLength(h.RemainingLength)...), nil
}

// Payload 定义了MQTT报文负载结构（可变头+有效载荷的读取游标）
type Payload struct {
	Context    []byte // 负载内容
	ContextLen int    // 负载长度
	CurrentPtr int    // 当前读取位置
}

func NewPayload(context []byte) *Payload {
	return &Payload{Context: context, ContextLen: len(context)}
}

// Remaining 返回尚未读取的字节数
func (p *Payload) Remaining() int {
	return p.ContextLen - p.CurrentPtr
}
