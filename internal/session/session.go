// Package session 保存连接时使用的会话配置：客户端标识、遗嘱、认证信息和保活参数。
// 修改只在下一次 CONNECT 时生效。
package session

import (
	"errors"
	"fmt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/packet"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/topic"
	"net"
	"strconv"
	"time"
)

var ErrInvalidWill = errors.New("session: invalid will")

// WillMessage 遗嘱消息配置
type WillMessage struct {
	Topic   string
	Payload []byte
	QoS     mqtt.QoS
	Retain  bool
}

func NewWillMessage(topicName string, payload []byte, qos mqtt.QoS, retain bool) (*WillMessage, error) {
	if !qos.Valid() {
		return nil, fmt.Errorf("%w: QoS %d", ErrInvalidWill, qos)
	}
	if err := topic.ValidateName(topicName); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWill, err)
	}
	return &WillMessage{
		Topic:   topicName,
		Payload: append([]byte(nil), payload...),
		QoS:     qos,
		Retain:  retain,
	}, nil
}

type Credentials struct {
	Username string
	Password *string
}

type Session struct {
	clientID     string
	Host         string
	Port         int
	KeepAlive    time.Duration
	CleanSession bool
	Protocol     mqtt.ProtocolVersion

	will        *WillMessage
	credentials *Credentials
}

func New(clientID string) *Session {
	return &Session{
		clientID:     clientID,
		KeepAlive:    60 * time.Second,
		CleanSession: true,
		Protocol:     mqtt.ProtocolV31,
	}
}

func (s *Session) ClientID() string {
	return s.clientID
}

func (s *Session) SetWill(topicName string, payload []byte, qos mqtt.QoS, retain bool) error {
	will, err := NewWillMessage(topicName, payload, qos, retain)
	if err != nil {
		return err
	}
	s.will = will
	return nil
}

func (s *Session) ClearWill() {
	s.will = nil
}

func (s *Session) Will() *WillMessage {
	return s.will
}

// SetCredentials 设置用户名和可选密码，用户名为空时同时清除两者
func (s *Session) SetCredentials(username string, password *string) {
	if username == "" {
		s.credentials = nil
		return
	}
	creds := &Credentials{Username: username}
	if password != nil {
		p := *password
		creds.Password = &p
	}
	s.credentials = creds
}

func (s *Session) Credentials() *Credentials {
	return s.credentials
}

// Address 返回 host:port
func (s *Session) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ConnectPacket 以当前配置生成 CONNECT 报文
func (s *Session) ConnectPacket() *packet.ConnectPacket {
	p := &packet.ConnectPacket{
		Protocol:     s.Protocol,
		ClientID:     s.clientID,
		KeepAlive:    uint16(s.KeepAlive / time.Second),
		CleanSession: s.CleanSession,
	}
	if s.will != nil {
		p.Will = &packet.Will{
			Topic:   s.will.Topic,
			Payload: s.will.Payload,
			QoS:     s.will.QoS,
			Retain:  s.will.Retain,
		}
	}
	if s.credentials != nil {
		username := s.credentials.Username
		p.Username = &username
		if s.credentials.Password != nil {
			password := *s.credentials.Password
			p.Password = &password
		}
	}
	return p
}
