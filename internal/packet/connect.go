package packet

// 控制包类型 CONNECT / CONNACK 相关函数

import (
	"fmt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
)

// ConnectReturnCode CONNACK 返回码
type ConnectReturnCode byte

const (
	Accepted ConnectReturnCode = iota
	RefusedProtocolVersion
	RefusedIdentifierRejected
	RefusedServerUnavailable
	RefusedBadCredentials
	RefusedNotAuthorized
)

var connectReturnCodeNames = map[ConnectReturnCode]string{
	Accepted:                  "connection accepted",
	RefusedProtocolVersion:    "connection refused: unacceptable protocol version",
	RefusedIdentifierRejected: "connection refused: identifier rejected",
	RefusedServerUnavailable:  "connection refused: server unavailable",
	RefusedBadCredentials:     "connection refused: bad user name or password",
	RefusedNotAuthorized:      "connection refused: not authorized",
}

func (code ConnectReturnCode) String() string {
	if name, ok := connectReturnCodeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("connection refused: unknown reason %d", byte(code))
}

// ConnectPacketFlag CONNECT控制包连接标志位
type ConnectPacketFlag struct {
	UsernameFlag    bool
	PasswordFlag    bool
	WillRetain      bool
	WillQoS         mqtt.QoS
	WillMessageFlag bool
	CleanSession    bool
}

func (f ConnectPacketFlag) Byte() byte {
	var b byte
	if f.UsernameFlag {
		b |= 0x80
	}
	if f.PasswordFlag {
		b |= 0x40
	}
	if f.WillRetain {
		b |= 0x20
	}
	b |= byte(f.WillQoS&0x03) << 3
	if f.WillMessageFlag {
		b |= 0x04
	}
	if f.CleanSession {
		b |= 0x02
	}
	return b
}

func parseConnectFlag(connectFlag byte) (ConnectPacketFlag, error) {
	if connectFlag&0x01 != 0 {
		return ConnectPacketFlag{}, malformed("reserved connect flag is set")
	}
	flag := ConnectPacketFlag{
		UsernameFlag:    connectFlag&0x80 != 0,
		PasswordFlag:    connectFlag&0x40 != 0,
		WillRetain:      connectFlag&0x20 != 0,
		WillQoS:         mqtt.QoS((connectFlag & 0x18) >> 3), // 0x18 = 00011000
		WillMessageFlag: connectFlag&0x04 != 0,
		CleanSession:    connectFlag&0x02 != 0,
	}
	if !flag.WillQoS.Valid() {
		return flag, malformed("will QoS must not be 3")
	}
	if !flag.WillMessageFlag && (flag.WillRetain || flag.WillQoS != 0) {
		return flag, malformed("when will message flag is not set, will retain must not be set and will QoS must be 0")
	}
	return flag, nil
}

// Will 遗嘱消息
type Will struct {
	Topic   string
	Payload []byte
	QoS     mqtt.QoS
	Retain  bool
}

type ConnectPacket struct {
	Protocol     mqtt.ProtocolVersion
	ClientID     string
	KeepAlive    uint16
	CleanSession bool
	Will         *Will
	Username     *string
	Password     *string
}

func (p *ConnectPacket) Type() mqtt.PacketType { return mqtt.CONNECT }

func (p *ConnectPacket) Flags() ConnectPacketFlag {
	flag := ConnectPacketFlag{
		UsernameFlag: p.Username != nil,
		PasswordFlag: p.Password != nil,
		CleanSession: p.CleanSession,
	}
	if p.Will != nil {
		flag.WillMessageFlag = true
		flag.WillQoS = p.Will.QoS
		flag.WillRetain = p.Will.Retain
	}
	return flag
}

func (p *ConnectPacket) Encode() ([]byte, error) {
	protocol := p.Protocol
	if protocol.Name == "" {
		protocol = mqtt.ProtocolV31
	}
	if p.Will != nil && !p.Will.QoS.Valid() {
		return nil, fmt.Errorf("invalid will QoS %d", p.Will.QoS)
	}

	body, err := appendField(make([]byte, 0, 64), []byte(protocol.Name))
	if err != nil {
		return nil, err
	}
	body = append(body, protocol.Level, p.Flags().Byte())
	body = append(body, mqtt.UInt16ToByte(p.KeepAlive)...)

	fields := [][]byte{[]byte(p.ClientID)}
	if p.Will != nil {
		fields = append(fields, []byte(p.Will.Topic), p.Will.Payload)
	}
	if p.Username != nil {
		fields = append(fields, []byte(*p.Username))
	}
	if p.Password != nil {
		fields = append(fields, []byte(*p.Password))
	}
	for _, field := range fields {
		if body, err = appendField(body, field); err != nil {
			return nil, err
		}
	}
	return encodePacket(mqtt.CONNECT, 0, body)
}

// ParseConnectPacket 解析 CONNECT 控制包的可变头和负载
func ParseConnectPacket(payload *mqtt.Payload) (*ConnectPacket, error) {
	result := &ConnectPacket{}

	protocolName, err := readPacketString(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol name: %w", err)
	}
	// 协议版本
	protocolLevel, err := readPacketByte(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol level: %w", err)
	}
	result.Protocol = mqtt.ProtocolVersion{Name: protocolName, Level: protocolLevel}

	// 连接标志位
	connectFlag, err := readPacketByte(payload)
	if err != nil {
		return nil, fmt.Errorf("connect flag: %w", err)
	}
	flag, err := parseConnectFlag(connectFlag)
	if err != nil {
		return nil, err
	}
	result.CleanSession = flag.CleanSession

	// Keep Alive Time
	if result.KeepAlive, err = readPacketID(payload); err != nil {
		return nil, fmt.Errorf("keep alive: %w", err)
	}

	if result.ClientID, err = readPacketString(payload); err != nil {
		return nil, fmt.Errorf("client ID: %w", err)
	}

	if flag.WillMessageFlag {
		will := &Will{QoS: flag.WillQoS, Retain: flag.WillRetain}
		if will.Topic, err = readPacketString(payload); err != nil {
			return nil, fmt.Errorf("will topic: %w", err)
		}
		content, err := readPacketPayload(payload)
		if err != nil {
			return nil, fmt.Errorf("will content: %w", err)
		}
		will.Payload = content.Payload
		result.Will = will
	}

	if flag.UsernameFlag {
		username, err := readPacketString(payload)
		if err != nil {
			return nil, fmt.Errorf("username: %w", err)
		}
		result.Username = &username
	}

	if flag.PasswordFlag {
		password, err := readPacketString(payload)
		if err != nil {
			return nil, fmt.Errorf("password: %w", err)
		}
		result.Password = &password
	}

	return result, expectEnd(payload, mqtt.CONNECT)
}

type ConnackPacket struct {
	SessionPresent bool
	ReturnCode     ConnectReturnCode
}

func (p *ConnackPacket) Type() mqtt.PacketType { return mqtt.CONNACK }

func (p *ConnackPacket) Encode() ([]byte, error) {
	var ack byte
	if p.SessionPresent {
		ack = 0x01
	}
	return encodePacket(mqtt.CONNACK, 0, []byte{ack, byte(p.ReturnCode)})
}

func ParseConnackPacket(payload *mqtt.Payload) (*ConnackPacket, error) {
	if payload.ContextLen != 2 {
		return nil, malformed("CONNACK remaining length must be 2, got %d", payload.ContextLen)
	}
	ack, _ := readPacketByte(payload)
	code, _ := readPacketByte(payload)
	return &ConnackPacket{
		SessionPresent: ack&0x01 != 0,
		ReturnCode:     ConnectReturnCode(code),
	}, nil
}
