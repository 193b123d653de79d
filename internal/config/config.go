package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/joeshaw/envdecode"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/utils"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrConfigCreated = errors.New("the configuration file does not exist and has been created. Please try again after editing the configuration file")
	ErrInvalidConfig = errors.New("invalid configuration")
)

type BrokerConfig struct {
	Host          string `json:"host" yaml:"host" env:"MQTT_HOST"`
	Port          int    `json:"port" yaml:"port" env:"MQTT_PORT"`
	Transport     string `json:"transport" yaml:"transport" env:"MQTT_TRANSPORT"`
	WebSocketPath string `json:"ws_path" yaml:"ws_path" env:"MQTT_WS_PATH"`
	Insecure      bool   `json:"tls_skip_verify" yaml:"tls_skip_verify" env:"MQTT_TLS_SKIP_VERIFY"`
}

type ClientConfig struct {
	ClientID      string `json:"client_id" yaml:"client_id" env:"MQTT_CLIENT_ID"`
	Protocol      string `json:"protocol" yaml:"protocol" env:"MQTT_PROTOCOL"`
	KeepAlive     string `json:"keepalive" yaml:"keepalive" env:"MQTT_KEEPALIVE"`
	CleanSession  bool   `json:"clean_session" yaml:"clean_session" env:"MQTT_CLEAN_SESSION"`
	Username      string `json:"username" yaml:"username" env:"MQTT_USERNAME"`
	Password      string `json:"password" yaml:"password" env:"MQTT_PASSWORD"`
	RetryInterval string `json:"retry_interval" yaml:"retry_interval" env:"MQTT_RETRY_INTERVAL"`
	MaxRetries    int    `json:"max_retries" yaml:"max_retries" env:"MQTT_MAX_RETRIES"`
	MaxPacketSize int    `json:"max_packet_size" yaml:"max_packet_size" env:"MQTT_MAX_PACKET_SIZE"`
	PollTimeout   string `json:"poll_timeout" yaml:"poll_timeout" env:"MQTT_POLL_TIMEOUT"`
}

type WillConfig struct {
	Topic   string `json:"topic" yaml:"topic" env:"MQTT_WILL_TOPIC"`
	Payload string `json:"payload" yaml:"payload" env:"MQTT_WILL_PAYLOAD"`
	QoS     int    `json:"qos" yaml:"qos" env:"MQTT_WILL_QOS"`
	Retain  bool   `json:"retain" yaml:"retain" env:"MQTT_WILL_RETAIN"`
}

// ArchiveConfig 收到的消息的归档位置，mongo 的连接池参数沿用 database 配置
type ArchiveConfig struct {
	Backend            string `json:"backend" yaml:"backend" env:"MQTT_ARCHIVE_BACKEND"`
	URI                string `json:"uri" yaml:"uri" env:"MQTT_ARCHIVE_URI"`
	Host               string `json:"host" yaml:"host" env:"MQTT_ARCHIVE_HOST"`
	Port               uint64 `json:"port" yaml:"port" env:"MQTT_ARCHIVE_PORT"`
	Username           string `json:"username" yaml:"username" env:"MQTT_ARCHIVE_USERNAME"`
	Password           string `json:"password" yaml:"password" env:"MQTT_ARCHIVE_PASSWORD"`
	Database           string `json:"database" yaml:"database" env:"MQTT_ARCHIVE_DATABASE"`
	Collection         string `json:"collection" yaml:"collection" env:"MQTT_ARCHIVE_COLLECTION"`
	UseTLS             bool   `json:"use_tls" yaml:"use_tls" env:"MQTT_ARCHIVE_USE_TLS"`
	ConnectTimeout     string `json:"connect_timeout" yaml:"connect_timeout"`
	SocketTimeout      string `json:"socket_timeout" yaml:"socket_timeout"`
	ConnectIdleTimeout string `json:"connect_idle_timeout" yaml:"connect_idle_timeout"`
	OperationTimeout   string `json:"operation_timeout" yaml:"operation_timeout"`
	Heartbeat          string `json:"heartbeat" yaml:"heartbeat"`
	MinPoolSize        uint64 `json:"min_pool_size" yaml:"min_pool_size"`
	MaxPoolSize        uint64 `json:"max_pool_size" yaml:"max_pool_size"`
	MemoryCapacity     int    `json:"memory_capacity" yaml:"memory_capacity"`
}

type Config struct {
	Broker    BrokerConfig  `json:"broker" yaml:"broker"`
	Client    ClientConfig  `json:"client" yaml:"client"`
	Will      WillConfig    `json:"will" yaml:"will"`
	Archive   ArchiveConfig `json:"archive" yaml:"archive"`
	DebugMode bool          `json:"debug_mode" yaml:"debug_mode" env:"MQTT_DEBUG"`
	AppName   string        `json:"app_name" yaml:"app_name" env:"MQTT_APP_NAME"`
	LogDir    string        `json:"log_dir" yaml:"log_dir" env:"MQTT_LOG_DIR"`
}

func DefaultConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			Host:          "localhost",
			Port:          1883,
			Transport:     "tcp",
			WebSocketPath: "/mqtt",
		},
		Client: ClientConfig{
			Protocol:      "3.1",
			KeepAlive:     "60s",
			CleanSession:  true,
			RetryInterval: "20s",
			MaxRetries:    3,
			MaxPacketSize: 16 * 1024 * 1024,
			PollTimeout:   "1s",
		},
		Archive: ArchiveConfig{
			Backend:            "memory",
			Port:               27017,
			Database:           "mqtt",
			Collection:         "messages",
			ConnectTimeout:     "10s",
			SocketTimeout:      "30s",
			ConnectIdleTimeout: "5m",
			OperationTimeout:   "5s",
			Heartbeat:          "10s",
			MinPoolSize:        1,
			MaxPoolSize:        10,
			MemoryCapacity:     1000,
		},
		AppName: "mqtt-client",
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func (c *Config) marshal(path string) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(c)
	}
	return json.MarshalIndent(c, "", "\t")
}

func (c *Config) unmarshal(path string, data []byte) error {
	if isYAML(path) {
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("the configuration file does not contain valid YAML: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("the configuration file does not contain valid JSON: %w", err)
	}
	return nil
}

// ReadConfig 读取配置文件，文件不存在时写入默认配置并返回 ErrConfigCreated
func ReadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	bytes, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		data, err := config.marshal(path)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, err
		}
		return config, ErrConfigCreated
	}

	if err := config.unmarshal(path, bytes); err != nil {
		return nil, err
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyEnv 用 MQTT_* 环境变量覆盖配置
func (c *Config) ApplyEnv() error {
	err := envdecode.Decode(c)
	if err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("environment override failed: %w", err)
	}
	return nil
}

func invalid(format string, v ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, v...))
}

func (c *Config) Validate() error {
	var errs []error
	if c.Broker.Host == "" {
		errs = append(errs, invalid("broker.host is empty"))
	}
	if c.Broker.Port <= 0 || c.Broker.Port > 65535 {
		errs = append(errs, invalid("broker.port %d out of range", c.Broker.Port))
	}
	switch strings.ToLower(c.Broker.Transport) {
	case "", "tcp", "mqtt", "ssl", "tls", "mqtts", "ws", "wss":
	default:
		errs = append(errs, invalid("unsupported transport %q", c.Broker.Transport))
	}
	switch c.Client.Protocol {
	case "", "3.1", "3.1.1":
	default:
		errs = append(errs, invalid("unsupported protocol %q", c.Client.Protocol))
	}
	if c.Will.QoS < 0 || c.Will.QoS > 2 {
		errs = append(errs, invalid("will.qos %d out of range", c.Will.QoS))
	}
	if c.Client.MaxPacketSize < 0 {
		errs = append(errs, invalid("client.max_packet_size must not be negative"))
	}
	for name, value := range map[string]string{
		"client.keepalive":      c.Client.KeepAlive,
		"client.retry_interval": c.Client.RetryInterval,
		"client.poll_timeout":   c.Client.PollTimeout,
	} {
		if value == "" {
			continue
		}
		if _, err := utils.ParseDuration(value); err != nil {
			errs = append(errs, invalid("%s: %v", name, err))
		}
	}
	if keepalive, err := c.KeepAlive(); err == nil && keepalive > 65535*time.Second {
		errs = append(errs, invalid("client.keepalive %s exceeds 65535s", keepalive))
	} else if err == nil && keepalive%time.Second != 0 {
		errs = append(errs, invalid("client.keepalive %s is not a whole number of seconds", keepalive))
	}
	switch c.Archive.Backend {
	case "", "none", "memory", "mongo":
	default:
		errs = append(errs, invalid("unsupported archive backend %q", c.Archive.Backend))
	}
	return errors.Join(errs...)
}

func (c *Config) KeepAlive() (time.Duration, error) {
	if c.Client.KeepAlive == "" {
		return 60 * time.Second, nil
	}
	return utils.ParseDuration(c.Client.KeepAlive)
}

func (c *Config) RetryInterval() (time.Duration, error) {
	if c.Client.RetryInterval == "" {
		return 20 * time.Second, nil
	}
	return utils.ParseDuration(c.Client.RetryInterval)
}

func (c *Config) PollTimeout() (time.Duration, error) {
	if c.Client.PollTimeout == "" {
		return time.Second, nil
	}
	return utils.ParseDuration(c.Client.PollTimeout)
}
