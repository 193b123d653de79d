package client

import (
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/inflight"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/transport"
	"time"
)

const (
	DefaultMaxPacketSize  = 16 * 1024 * 1024
	DefaultPollTimeout    = time.Second
	DefaultConnectTimeout = 30 * time.Second

	minPollTimeout = time.Millisecond
	readChunkSize  = 64 * 1024
)

type Option func(c *Client) error

// WithWill 设置遗嘱，与连接前调用 SetWill 等价
func WithWill(topicName string, payload []byte, qos mqtt.QoS, retain bool) Option {
	return func(c *Client) error {
		return c.session.SetWill(topicName, payload, qos, retain)
	}
}

func WithCredentials(username string, password *string) Option {
	return func(c *Client) error {
		c.session.SetCredentials(username, password)
		return nil
	}
}

func WithRetryPolicy(policy inflight.RetryPolicy) Option {
	return func(c *Client) error {
		c.tracker = inflight.NewTracker(policy)
		return nil
	}
}

// WithMaxPacketSize 限制收发报文的总长度，0 表示协议上限
func WithMaxPacketSize(size int) Option {
	return func(c *Client) error {
		if size < 0 {
			return ErrInvalidArgument
		}
		if size == 0 || size > mqtt.MaxRemainingLength+5 {
			size = mqtt.MaxRemainingLength + 5
		}
		c.maxPacketSize = size
		return nil
	}
}

func WithProtocol(version mqtt.ProtocolVersion) Option {
	return func(c *Client) error {
		c.session.Protocol = version
		return nil
	}
}

func WithDialer(dialer transport.Dialer) Option {
	return func(c *Client) error {
		c.dialer = dialer
		return nil
	}
}

// WithClock 替换时间来源，用于保活和重传计时
func WithClock(now func() time.Time) Option {
	return func(c *Client) error {
		c.now = now
		return nil
	}
}
