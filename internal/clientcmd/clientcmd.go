// Package clientcmd 为 mqtt-pub / mqtt-sub 提供公共的命令行参数、配置合并和客户端构建
package clientcmd

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"github.com/google/uuid"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/client"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/config"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/inflight"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/logger"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/transport"
	"strings"
	"time"
)

var ErrConnectRefused = errors.New("connection refused by broker")

// Common 两个命令共用的参数。命令行上显式给出的参数覆盖配置文件和环境变量。
type Common struct {
	fs *flag.FlagSet

	ConfigPath  string
	Host        string
	Port        int
	Transport   string
	Insecure    bool
	ClientID    string
	IDPrefix    string
	KeepAlive   int
	Username    string
	Password    string
	Protocol    string
	Debug       bool
	WillTopic   string
	WillPayload string
	WillQoS     int
	WillRetain  bool
}

func Register(fs *flag.FlagSet, idPrefix string) *Common {
	defaults := config.DefaultConfig()
	c := &Common{fs: fs}
	fs.StringVar(&c.ConfigPath, "c", "", "configuration file (.json, .yaml or .yml)")
	fs.StringVar(&c.Host, "h", defaults.Broker.Host, "broker host")
	fs.IntVar(&c.Port, "p", defaults.Broker.Port, "broker port")
	fs.StringVar(&c.Transport, "transport", defaults.Broker.Transport, "transport: tcp, ssl, ws or wss")
	fs.BoolVar(&c.Insecure, "insecure", false, "do not verify the broker certificate")
	fs.StringVar(&c.ClientID, "i", "", "client id (default: <prefix>-<random>)")
	fs.StringVar(&c.IDPrefix, "I", idPrefix, "client id prefix used when -i is not given")
	fs.IntVar(&c.KeepAlive, "k", 60, "keepalive in seconds")
	fs.StringVar(&c.Username, "u", "", "username")
	fs.StringVar(&c.Password, "P", "", "password")
	fs.StringVar(&c.Protocol, "V", defaults.Client.Protocol, "protocol version: 3.1 or 3.1.1")
	fs.BoolVar(&c.Debug, "d", false, "enable debug logging")
	fs.StringVar(&c.WillTopic, "will-topic", "", "will topic")
	fs.StringVar(&c.WillPayload, "will-payload", "", "will payload")
	fs.IntVar(&c.WillQoS, "will-qos", 0, "will QoS")
	fs.BoolVar(&c.WillRetain, "will-retain", false, "retain the will message")
	return c
}

// GenerateClientID 返回 <prefix>-<8位随机串>，不超过 v3.1 的 23 字节限制
func GenerateClientID(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	id := prefix + "-" + suffix
	if len(id) > 23 {
		id = id[len(id)-23:]
	}
	return id
}

// Resolve 读取配置（文件或默认值），叠加环境变量和显式给出的命令行参数
func (c *Common) Resolve() (*config.Config, error) {
	var cfg *config.Config
	if c.ConfigPath != "" {
		loaded, err := config.ReadConfig(c.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
		if err := cfg.ApplyEnv(); err != nil {
			return nil, err
		}
	}

	c.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "h":
			cfg.Broker.Host = c.Host
		case "p":
			cfg.Broker.Port = c.Port
		case "transport":
			cfg.Broker.Transport = c.Transport
		case "insecure":
			cfg.Broker.Insecure = c.Insecure
		case "i":
			cfg.Client.ClientID = c.ClientID
		case "k":
			cfg.Client.KeepAlive = fmt.Sprintf("%ds", c.KeepAlive)
		case "u":
			cfg.Client.Username = c.Username
		case "P":
			cfg.Client.Password = c.Password
		case "V":
			cfg.Client.Protocol = c.Protocol
		case "d":
			cfg.DebugMode = c.Debug
		case "will-topic":
			cfg.Will.Topic = c.WillTopic
		case "will-payload":
			cfg.Will.Payload = c.WillPayload
		case "will-qos":
			cfg.Will.QoS = c.WillQoS
		case "will-retain":
			cfg.Will.Retain = c.WillRetain
		}
	})

	if cfg.Client.ClientID == "" {
		cfg.Client.ClientID = GenerateClientID(c.IDPrefix)
	}
	if cfg.Will.Topic == "" && (cfg.Will.Payload != "" || cfg.Will.Retain) {
		return nil, fmt.Errorf("%w: will payload or retain given without a will topic", config.ErrInvalidConfig)
	}
	if cfg.Client.Password != "" && cfg.Client.Username == "" {
		return nil, fmt.Errorf("%w: password given without a username", config.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func protocolVersion(name string) mqtt.ProtocolVersion {
	if name == mqtt.ProtocolV311.String() {
		return mqtt.ProtocolV311
	}
	return mqtt.ProtocolV31
}

// NewClient 按配置构建客户端：传输层、协议版本、重传策略、遗嘱和认证信息
func NewClient(cfg *config.Config) (*client.Client, error) {
	scheme, err := transport.ParseScheme(cfg.Broker.Transport)
	if err != nil {
		return nil, err
	}
	transportOptions := transport.Options{Scheme: scheme, WebSocketPath: cfg.Broker.WebSocketPath}
	if cfg.Broker.Insecure {
		transportOptions.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	dialer, err := transport.NewDialer(transportOptions)
	if err != nil {
		return nil, err
	}

	retryInterval, err := cfg.RetryInterval()
	if err != nil {
		return nil, err
	}

	options := []client.Option{
		client.WithDialer(dialer),
		client.WithProtocol(protocolVersion(cfg.Client.Protocol)),
		client.WithRetryPolicy(inflight.RetryPolicy{Interval: retryInterval, MaxRetries: cfg.Client.MaxRetries}),
		client.WithMaxPacketSize(cfg.Client.MaxPacketSize),
	}
	if cfg.Will.Topic != "" {
		options = append(options, client.WithWill(cfg.Will.Topic, []byte(cfg.Will.Payload), mqtt.QoS(cfg.Will.QoS), cfg.Will.Retain))
	}
	if cfg.Client.Username != "" {
		var password *string
		if cfg.Client.Password != "" {
			password = &cfg.Client.Password
		}
		options = append(options, client.WithCredentials(cfg.Client.Username, password))
	}
	return client.New(cfg.Client.ClientID, options...)
}

// Connect 连接到配置中的服务器，并在调用方的 goroutine 上等待 CONNACK
func Connect(ctx context.Context, c *client.Client, cfg *config.Config) error {
	keepalive, err := cfg.KeepAlive()
	if err != nil {
		return err
	}
	pollTimeout, err := cfg.PollTimeout()
	if err != nil {
		return err
	}
	if err := c.Connect(ctx, cfg.Broker.Host, cfg.Broker.Port, keepalive, cfg.Client.CleanSession); err != nil {
		return err
	}
	for c.State() == client.StateConnecting {
		if err := ctx.Err(); err != nil {
			_ = c.Disconnect()
			return err
		}
		if err := c.Poll(pollTimeout); err != nil {
			return err
		}
	}
	if !c.IsConnected() {
		return ErrConnectRefused
	}
	logger.DebugF("[%s] Session ready", c.ClientID())
	return nil
}

// PollTimeout 返回配置中的单次 Poll 等待时间
func PollTimeout(cfg *config.Config) time.Duration {
	timeout, err := cfg.PollTimeout()
	if err != nil {
		return client.DefaultPollTimeout
	}
	return timeout
}

// StringList 可重复出现的字符串参数，例如多个 -t
type StringList []string

func (s *StringList) String() string {
	return strings.Join(*s, ",")
}

func (s *StringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}
