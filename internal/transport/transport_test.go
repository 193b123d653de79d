package transport

import (
	"bytes"
	"context"
	"errors"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func TestParseScheme(t *testing.T) {
	tests := map[string]Scheme{
		"":      SchemeTCP,
		"tcp":   SchemeTCP,
		"mqtt":  SchemeTCP,
		"SSL":   SchemeSSL,
		"mqtts": SchemeSSL,
		"tls":   SchemeTLS,
		"ws":    SchemeWS,
		"wss":   SchemeWSS,
	}
	for input, expect := range tests {
		scheme, err := ParseScheme(input)
		require.NoError(t, err, input)
		assert.Equal(t, expect, scheme, input)
	}
	_, err := ParseScheme("quic")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

type trickleWriter struct {
	bytes.Buffer
}

func (w *trickleWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return w.Buffer.Write(p[:1])
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestSendWritesEverything(t *testing.T) {
	var w trickleWriter
	require.NoError(t, Send(&w, []byte{1, 2, 3, 4, 5}, "test"))
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, w.Bytes())

	assert.Error(t, Send(failingWriter{}, []byte{1}, "test"))
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsTimeout(os.ErrDeadlineExceeded))
	assert.False(t, IsTimeout(io.EOF))
	assert.False(t, IsTimeout(nil))
	assert.True(t, IsNetClosedError(io.EOF))
	assert.True(t, IsNetClosedError(net.ErrClosed))
	assert.False(t, IsNetClosedError(os.ErrDeadlineExceeded))
}

func TestTCPDial(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = io.Copy(conn, conn)
	}()

	dialer, err := NewDialer(Options{})
	require.NoError(t, err)
	assert.Equal(t, SchemeTCP, dialer.Scheme())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := dialer.Dial(ctx, listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, Send(conn, []byte{0xC0, 0x00}, "tcp"))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 2)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xC0, 0x00}, buf)
}

func newEchoWebSocketServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{
		Subprotocols: []string{"mqttv3.1", "mqtt"},
		CheckOrigin:  func(r *http.Request) bool { return true },
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/mqtt", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			// 分成两帧回写，验证读取端跨帧拼接
			half := len(data) / 2
			_ = conn.WriteMessage(messageType, data[:half])
			_ = conn.WriteMessage(messageType, data[half:])
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestWebSocketDial(t *testing.T) {
	server := newEchoWebSocketServer(t)
	dialer, err := NewDialer(Options{Scheme: SchemeWS})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := dialer.Dial(ctx, server.Listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	// 空闲超时之后连接仍然可用
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(20*time.Millisecond)))
	_, err = conn.Read(make([]byte, 8))
	assert.True(t, IsTimeout(err))

	require.NoError(t, Send(conn, []byte{0x30, 0x03, 0x00, 0x01, 'a'}, "ws"))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 5)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x30, 0x03, 0x00, 0x01, 'a'}, buf)

	require.NoError(t, conn.Close())
	_, err = conn.Read(buf)
	assert.Error(t, err)
}
