package database

import (
	"context"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/logger"
	"sync"
)

const DefaultMemoryCapacity = 1000

// MemoryArchive 定长环形缓冲，写满后覆盖最旧的消息
type MemoryArchive struct {
	mu       sync.Mutex
	messages []*ArchivedMessage
	next     int
	count    int
	closed   bool
}

func NewMemoryArchive(capacity int) *MemoryArchive {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryArchive{messages: make([]*ArchivedMessage, capacity)}
}

func (ma *MemoryArchive) Save(_ context.Context, message *ArchivedMessage) error {
	if message.Topic == "" {
		return ErrTopicEmpty
	}
	ma.mu.Lock()
	defer ma.mu.Unlock()
	if ma.closed {
		return ErrArchiveClosed
	}
	if ma.count == len(ma.messages) {
		logger.DebugF("Memory archive full, dropping message on %s", ma.messages[ma.next].Topic)
	} else {
		ma.count++
	}
	ma.messages[ma.next] = message
	ma.next = (ma.next + 1) % len(ma.messages)
	return nil
}

func (ma *MemoryArchive) Recent(_ context.Context, topic string, limit int) ([]*ArchivedMessage, error) {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	if ma.closed {
		return nil, ErrArchiveClosed
	}
	result := make([]*ArchivedMessage, 0)
	for i := 1; i <= ma.count; i++ {
		if limit > 0 && len(result) >= limit {
			break
		}
		message := ma.messages[(ma.next-i+len(ma.messages))%len(ma.messages)]
		if topic != "" && message.Topic != topic {
			continue
		}
		result = append(result, message)
	}
	return result, nil
}

func (ma *MemoryArchive) Len() int {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	return ma.count
}

func (ma *MemoryArchive) Close(_ context.Context) error {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	ma.closed = true
	ma.messages = nil
	ma.count = 0
	return nil
}

// Invoke 让 MemoryArchive 可以直接注册到 event.Cleaner
func (ma *MemoryArchive) Invoke(ctx context.Context) error {
	return ma.Close(ctx)
}
