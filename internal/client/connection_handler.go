package client

import (
	"errors"
	"fmt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/inflight"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/logger"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/packet"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/transport"
	"time"
)

// Poll 执行一次有界的网络 I/O：最多等待 timeout 读取数据，解码并处理所有完整报文，
// 然后处理保活和重传。timeout < 0 使用 DefaultPollTimeout。
// 连接因错误断开时触发 OnConnectionLost 并返回该错误。
func (c *Client) Poll(timeout time.Duration) error {
	c.dispatchPending()
	if c.conn == nil {
		return ErrNotConnected
	}
	switch {
	case timeout < 0:
		timeout = DefaultPollTimeout
	case timeout < minPollTimeout:
		timeout = minPollTimeout
	}

	generation := c.generation
	readErr := c.readAvailable(timeout)
	if err := c.handleBuffered(); err != nil {
		if c.generation != generation {
			return nil
		}
		return c.connectionLost(err)
	}
	if c.generation != generation {
		return nil
	}
	if readErr != nil {
		return c.connectionLost(readErr)
	}

	now := c.now()
	if err := c.checkKeepalive(now); err != nil {
		return c.connectionLost(err)
	}
	if c.state == StateConnected {
		if err := c.retry(now); err != nil && c.generation == generation {
			return c.connectionLost(err)
		}
	}
	return nil
}

func (c *Client) readAvailable(timeout time.Duration) error {
	if c.chunk == nil {
		c.chunk = make([]byte, readChunkSize)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	n, err := c.conn.Read(c.chunk)
	if n > 0 {
		c.readBuf = append(c.readBuf, c.chunk[:n]...)
	}
	if err != nil {
		if transport.IsTimeout(err) {
			return nil
		}
		transport.HandleReadError(c.id, err)
		return err
	}
	return nil
}

// handleBuffered 依次解码缓冲区中的完整报文，剩余的不完整字节留待下次读取
func (c *Client) handleBuffered() error {
	generation := c.generation
	offset := 0
	defer func() {
		if c.generation != generation {
			return
		}
		if offset >= len(c.readBuf) {
			c.readBuf = c.readBuf[:0]
		} else if offset > 0 {
			c.readBuf = append(c.readBuf[:0], c.readBuf[offset:]...)
		}
	}()

	for c.generation == generation && offset < len(c.readBuf) {
		p, n, err := packet.Decode(c.readBuf[offset:], c.maxPacketSize)
		if errors.Is(err, mqtt.ErrNeedMoreBytes) {
			return nil
		}
		if err != nil {
			logger.ErrorF("[%s] Fail to decode packet, details: %v", c.id, err)
			return err
		}
		offset += n
		c.lastRecv = c.now()
		if err := c.handlePacket(p); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) handlePacket(p packet.Packet) error {
	logger.DebugF("[%s] Receive %s packet, data %+v", c.id, p.Type(), p)

	if c.state == StateConnecting {
		connack, ok := p.(*packet.ConnackPacket)
		if !ok {
			return fmt.Errorf("%w: %s packet before CONNACK", ErrProtocolViolation, p.Type())
		}
		return c.handleConnack(connack)
	}

	switch p := p.(type) {
	case *packet.PublishPacket:
		return c.handlePublish(p)
	case *packet.PubackPacket:
		if _, ok := c.tracker.Puback(p.PacketID); !ok {
			logger.WarnF("[%s] PUBACK for unknown packet %d", c.id, p.PacketID)
			return nil
		}
		c.firePublish(p.PacketID)
	case *packet.PubrecPacket:
		if m, ok := c.tracker.Pubrec(p.PacketID, c.now()); ok {
			return c.send(m.Packet())
		}
		logger.WarnF("[%s] PUBREC for unknown packet %d", c.id, p.PacketID)
		return c.send(&packet.PubrelPacket{PacketID: p.PacketID})
	case *packet.PubcompPacket:
		if _, ok := c.tracker.Pubcomp(p.PacketID); !ok {
			logger.WarnF("[%s] PUBCOMP for unknown packet %d", c.id, p.PacketID)
			return nil
		}
		c.firePublish(p.PacketID)
	case *packet.PubrelPacket:
		if !c.tracker.Pubrel(p.PacketID) {
			logger.DebugF("[%s] PUBREL for unknown packet %d", c.id, p.PacketID)
		}
		return c.send(&packet.PubcompPacket{PacketID: p.PacketID})
	case *packet.SubackPacket:
		m, ok := c.tracker.Suback(p.PacketID)
		if !ok {
			logger.WarnF("[%s] SUBACK for unknown packet %d", c.id, p.PacketID)
			return nil
		}
		if len(p.ReturnCodes) != len(m.Subscriptions) {
			logger.WarnF("[%s] SUBACK %d carries %d return codes for %d filters",
				c.id, p.PacketID, len(p.ReturnCodes), len(m.Subscriptions))
		}
		c.fireSubscribe(p.PacketID, p.ReturnCodes)
	case *packet.UnsubackPacket:
		if _, ok := c.tracker.Unsuback(p.PacketID); !ok {
			logger.WarnF("[%s] UNSUBACK for unknown packet %d", c.id, p.PacketID)
			return nil
		}
		c.fireUnsubscribe(p.PacketID)
	case *packet.PingreqPacket:
		return c.send(&packet.PingrespPacket{})
	case *packet.PingrespPacket:
		c.pingOutstanding = false
	case *packet.ConnackPacket:
		return fmt.Errorf("%w: duplicate CONNACK", ErrProtocolViolation)
	default:
		return fmt.Errorf("%w: %s packet is not sent by brokers", ErrProtocolViolation, p.Type())
	}
	return nil
}

func (c *Client) handleConnack(p *packet.ConnackPacket) error {
	if p.ReturnCode != packet.Accepted {
		logger.WarnF("[%s] %s", c.id, p.ReturnCode)
		c.closeTransport()
		c.fireConnect(p.ReturnCode)
		return nil
	}

	c.state = StateConnected
	logger.InfoF("[%s] Connected to %s, session present %v", c.id, c.session.Address(), p.SessionPresent)
	if !c.session.CleanSession {
		for _, m := range c.tracker.Resume(c.now()) {
			logger.DebugF("[%s] Resume %s", c.id, m)
			if err := c.send(m.Packet()); err != nil {
				// CONNACK 已被接受，连接结果先于 OnConnectionLost 报告
				c.fireConnect(p.ReturnCode)
				return err
			}
		}
	}
	c.fireConnect(p.ReturnCode)
	return nil
}

func (c *Client) handlePublish(p *packet.PublishPacket) error {
	switch p.QoS {
	case mqtt.AtLeastOnce:
		if err := c.send(&packet.PubackPacket{PacketID: p.PacketID}); err != nil {
			return err
		}
	case mqtt.ExactlyOnce:
		first := c.tracker.ReceivePublish(p, c.now())
		if err := c.send(&packet.PubrecPacket{PacketID: p.PacketID}); err != nil {
			return err
		}
		if !first {
			logger.DebugF("[%s] Duplicate QoS 2 publish %d suppressed", c.id, p.PacketID)
			return nil
		}
	}
	c.fireMessage(p)
	return nil
}

func (c *Client) checkKeepalive(now time.Time) error {
	keepalive := c.session.KeepAlive
	switch c.state {
	case StateConnecting:
		limit := keepalive
		if limit == 0 {
			limit = DefaultConnectTimeout
		}
		if now.Sub(c.connectSentAt) >= limit {
			return fmt.Errorf("%w: no CONNACK within %s", ErrKeepaliveTimeout, limit)
		}
	case StateConnected:
		if keepalive == 0 {
			return nil
		}
		if c.pingOutstanding {
			if now.Sub(c.pingSentAt) >= keepalive && now.Sub(c.lastRecv) >= keepalive {
				return fmt.Errorf("%w: no PINGRESP within %s", ErrKeepaliveTimeout, keepalive)
			}
			return nil
		}
		if now.Sub(c.lastSend) >= keepalive {
			if err := c.send(&packet.PingreqPacket{}); err != nil {
				return err
			}
			c.pingOutstanding = true
			c.pingSentAt = now
		}
	}
	return nil
}

// retry 先报告超时的交互再重发，重发失败时已出队的交互仍会收到 OnDeliveryFailed
func (c *Client) retry(now time.Time) error {
	generation := c.generation
	resend, expired := c.tracker.Retry(now)
	for _, m := range expired {
		logger.WarnF("[%s] Give up %s", c.id, m)
		c.fireDeliveryFailed(m.ID, inflight.ErrDeliveryTimeout)
	}
	if c.generation != generation {
		return nil
	}
	for _, m := range resend {
		logger.DebugF("[%s] Retransmit %s", c.id, m)
		if err := c.send(m.Packet()); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) send(p packet.Packet) error {
	data, err := p.Encode()
	if err != nil {
		return err
	}
	logger.DebugF("[%s] Send %s packet", c.id, p.Type())
	return c.write(data)
}

func (c *Client) write(data []byte) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := transport.Send(c.conn, data, c.id); err != nil {
		return err
	}
	c.lastSend = c.now()
	return nil
}

func (c *Client) closeTransport() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !transport.IsNetClosedError(err) {
			logger.WarnF("[%s] Error occured while closing connection, details: %v", c.id, err)
		}
		logger.DebugF("[%s] Connection closed", c.id)
	}
	c.conn = nil
	c.generation++
	c.state = StateDisconnected
	c.readBuf = c.readBuf[:0]
	c.pingOutstanding = false
}

// connectionLost 在 Poll 中关闭连接并立即触发 OnConnectionLost
func (c *Client) connectionLost(err error) error {
	logger.WarnF("[%s] Connection lost, details: %v", c.id, err)
	c.closeTransport()
	c.fireConnectionLost(err)
	return err
}

// dropConnection 在 Poll 之外关闭连接，OnConnectionLost 留到下一次 Poll 派发
func (c *Client) dropConnection(err error) {
	logger.WarnF("[%s] Connection lost, details: %v", c.id, err)
	c.closeTransport()
	c.enqueue(func() { c.fireConnectionLost(err) })
}
