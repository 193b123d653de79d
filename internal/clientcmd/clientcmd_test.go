package clientcmd

import (
	"flag"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/client"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/config"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

func parse(t *testing.T, args ...string) *Common {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	common := Register(fs, "mqttpub")
	require.NoError(t, fs.Parse(args))
	return common
}

func TestGenerateClientID(t *testing.T) {
	id := GenerateClientID("mqttsub")
	assert.Regexp(t, regexp.MustCompile(`^mqttsub-[0-9a-f]{8}$`), id)
	assert.NotEqual(t, id, GenerateClientID("mqttsub"))

	long := GenerateClientID("a-very-long-client-prefix")
	assert.Len(t, long, 23)
}

func TestResolveDefaults(t *testing.T) {
	cfg, err := parse(t).Resolve()
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Broker.Host)
	assert.Equal(t, 1883, cfg.Broker.Port)
	assert.Regexp(t, `^mqttpub-`, cfg.Client.ClientID)
	assert.True(t, cfg.Client.CleanSession)
}

func TestResolveFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte("broker:\n  host: file-host\n  port: 1884\nclient:\n  client_id: from-file\n"), 0644))

	cfg, err := parse(t, "-c", path, "-p", "8883", "-transport", "ssl", "-k", "15", "-u", "bob", "-P", "pw",
		"-V", "3.1.1", "-will-topic", "status", "-will-payload", "gone", "-will-qos", "1").Resolve()
	require.NoError(t, err)

	assert.Equal(t, "file-host", cfg.Broker.Host)
	assert.Equal(t, 8883, cfg.Broker.Port)
	assert.Equal(t, "ssl", cfg.Broker.Transport)
	assert.Equal(t, "from-file", cfg.Client.ClientID)
	assert.Equal(t, "15s", cfg.Client.KeepAlive)
	assert.Equal(t, "bob", cfg.Client.Username)
	assert.Equal(t, "pw", cfg.Client.Password)
	assert.Equal(t, "3.1.1", cfg.Client.Protocol)
	assert.Equal(t, "status", cfg.Will.Topic)
	assert.Equal(t, 1, cfg.Will.QoS)
}

func TestResolveRejectsInconsistentFlags(t *testing.T) {
	_, err := parse(t, "-will-payload", "orphan").Resolve()
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = parse(t, "-P", "secret").Resolve()
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = parse(t, "-will-topic", "status", "-will-qos", "3").Resolve()
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = parse(t, "-transport", "quic").Resolve()
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewClient(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Client.ClientID = "cli-test"
	cfg.Client.Username = "bob"
	cfg.Will.Topic = "status/cli-test"
	cfg.Broker.Transport = "ws"

	c, err := NewClient(cfg)
	require.NoError(t, err)
	assert.Equal(t, "cli-test", c.ClientID())
	assert.Equal(t, client.StateDisconnected, c.State())

	cfg.Will.Topic = "status/#"
	_, err = NewClient(cfg)
	assert.Error(t, err)

	cfg.Will.Topic = ""
	cfg.Broker.Transport = "carrier-pigeon"
	_, err = NewClient(cfg)
	assert.ErrorIs(t, err, transport.ErrUnsupportedScheme)
}

func TestProtocolVersion(t *testing.T) {
	assert.Equal(t, mqtt.ProtocolV311, protocolVersion("3.1.1"))
	assert.Equal(t, mqtt.ProtocolV31, protocolVersion("3.1"))
	assert.Equal(t, mqtt.ProtocolV31, protocolVersion(""))
}

func TestStringList(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var topics StringList
	fs.Var(&topics, "t", "topic")
	require.NoError(t, fs.Parse([]string{"-t", "a/#", "-t", "b"}))
	assert.Equal(t, StringList{"a/#", "b"}, topics)
	assert.Equal(t, "a/#,b", topics.String())
}
