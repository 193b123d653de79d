package database

import (
	"context"
	"errors"
	"time"
)

const (
	MessageCollectionName = "messages"
)

var (
	ErrTopicEmpty     = errors.New("topic is empty")
	ErrArchiveClosed  = errors.New("archive is closed")
	ErrUnknownBackend = errors.New("unknown archive backend")
)

// ArchivedMessage 订阅端收到的一条应用消息
type ArchivedMessage struct {
	ClientID   string    `bson:"client_id"`
	Topic      string    `bson:"topic"`
	Payload    []byte    `bson:"payload"`
	QoS        byte      `bson:"qos"`
	Retained   bool      `bson:"retained"`
	ReceivedAt time.Time `bson:"received_at"`
}

// Archive 收到消息的存储，Recent 按接收时间倒序返回，topic 为空表示所有主题
type Archive interface {
	Save(ctx context.Context, message *ArchivedMessage) error
	Recent(ctx context.Context, topic string, limit int) ([]*ArchivedMessage, error)
	Close(ctx context.Context) error
}

func NewArchivedMessage(clientID string, topic string, payload []byte, qos byte, retained bool) *ArchivedMessage {
	content := make([]byte, len(payload))
	copy(content, payload)
	return &ArchivedMessage{
		ClientID:   clientID,
		Topic:      topic,
		Payload:    content,
		QoS:        qos,
		Retained:   retained,
		ReceivedAt: time.Now().UTC(),
	}
}
