// Package transport 为客户端建立到服务器的字节流连接（tcp / ssl / ws / wss）
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"github.com/gorilla/websocket"
	"io"
	"net"
	"net/url"
	"strings"
	"time"
)

// Conn 客户端使用的传输层连接
type Conn interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
	RemoteAddr() net.Addr
}

// Dialer 建立传输层连接，address 为 host:port
type Dialer interface {
	Dial(ctx context.Context, address string) (Conn, error)
}

type Scheme string

const (
	SchemeTCP Scheme = "tcp"
	SchemeSSL Scheme = "ssl"
	SchemeTLS Scheme = "tls"
	SchemeWS  Scheme = "ws"
	SchemeWSS Scheme = "wss"
)

func ParseScheme(s string) (Scheme, error) {
	switch scheme := Scheme(strings.ToLower(strings.TrimSpace(s))); scheme {
	case "", "mqtt":
		return SchemeTCP, nil
	case "mqtts":
		return SchemeSSL, nil
	case SchemeTCP, SchemeSSL, SchemeTLS, SchemeWS, SchemeWSS:
		return scheme, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, s)
	}
}

func (s Scheme) secure() bool {
	return s == SchemeSSL || s == SchemeTLS || s == SchemeWSS
}

type Options struct {
	Scheme        Scheme
	TLSConfig     *tls.Config
	WebSocketPath string
	Subprotocols  []string
}

// NetDialer 默认的拨号器
type NetDialer struct {
	opts Options
}

func NewDialer(opts Options) (*NetDialer, error) {
	scheme, err := ParseScheme(string(opts.Scheme))
	if err != nil {
		return nil, err
	}
	opts.Scheme = scheme
	if opts.WebSocketPath == "" {
		opts.WebSocketPath = "/mqtt"
	}
	if len(opts.Subprotocols) == 0 {
		opts.Subprotocols = []string{"mqttv3.1", "mqtt"}
	}
	if opts.Scheme.secure() && opts.TLSConfig == nil {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return &NetDialer{opts: opts}, nil
}

func (d *NetDialer) Scheme() Scheme {
	return d.opts.Scheme
}

func (d *NetDialer) Dial(ctx context.Context, address string) (Conn, error) {
	switch d.opts.Scheme {
	case SchemeTCP:
		var dialer net.Dialer
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case SchemeSSL, SchemeTLS:
		dialer := tls.Dialer{Config: d.tlsConfig(address)}
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return nil, err
		}
		return conn, nil
	default:
		return d.dialWebSocket(ctx, address)
	}
}

func (d *NetDialer) tlsConfig(address string) *tls.Config {
	config := d.opts.TLSConfig.Clone()
	if config.ServerName == "" {
		if host, _, err := net.SplitHostPort(address); err == nil {
			config.ServerName = host
		}
	}
	return config
}

func (d *NetDialer) dialWebSocket(ctx context.Context, address string) (Conn, error) {
	scheme := "ws"
	dialer := websocket.Dialer{
		Subprotocols:     d.opts.Subprotocols,
		HandshakeTimeout: 45 * time.Second,
		Proxy:            nil,
	}
	if d.opts.Scheme == SchemeWSS {
		scheme = "wss"
		dialer.TLSClientConfig = d.tlsConfig(address)
	}
	target := url.URL{Scheme: scheme, Host: address, Path: d.opts.WebSocketPath}
	conn, resp, err := dialer.DialContext(ctx, target.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", target.String(), err)
	}
	return NewWebSocketConn(conn), nil
}
