package inflight

import (
	"errors"
	"math"
)

var ErrIdentifierSpaceExhausted = errors.New("inflight: all 65535 packet identifiers are in use")

// PacketIDManager 为出站的 QoS 1/2 报文及 SUBSCRIBE/UNSUBSCRIBE 分配报文标识符。
// 每个客户端持有独立的实例，只在 Poll 所在的 goroutine 上使用，不加锁。
type PacketIDManager struct {
	currentID uint16
	inUse     map[uint16]struct{}
}

func NewPacketIDManager() *PacketIDManager {
	return &PacketIDManager{
		currentID: 1, // 起始值为1
		inUse:     make(map[uint16]struct{}),
	}
}

// NextID 获取下一个可用ID，回绕时跳过仍在使用中的ID
func (m *PacketIDManager) NextID() (uint16, error) {
	if len(m.inUse) >= math.MaxUint16 {
		return 0, ErrIdentifierSpaceExhausted
	}
	for {
		id := m.currentID
		m.currentID++
		if m.currentID == 0 { // 溢出处理
			m.currentID = 1
		}
		if _, used := m.inUse[id]; !used {
			m.inUse[id] = struct{}{}
			return id, nil
		}
	}
}

// ReleaseID 释放ID（交互完成后调用）
func (m *PacketIDManager) ReleaseID(id uint16) {
	delete(m.inUse, id)
}

func (m *PacketIDManager) InUse(id uint16) bool {
	_, used := m.inUse[id]
	return used
}

func (m *PacketIDManager) Outstanding() int {
	return len(m.inUse)
}

// Reset 释放全部ID，游标保持不变
func (m *PacketIDManager) Reset() {
	m.inUse = make(map[uint16]struct{})
}
