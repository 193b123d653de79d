package transport

import (
	"errors"
	"github.com/gorilla/websocket"
	"net"
	"os"
	"sync"
	"time"
)

// WebSocketConn WebSocket连接包装器，将二进制帧还原为字节流。
// gorilla 的读超时会使连接永久失效，因此由独立的 goroutine 读取帧，
// Read 按截止时间等待帧到达。
type WebSocketConn struct {
	conn     *websocket.Conn
	frames   chan []byte
	done     chan struct{}
	pending  []byte
	deadline time.Time
	readErr  error
	once     sync.Once
}

func NewWebSocketConn(conn *websocket.Conn) *WebSocketConn {
	w := &WebSocketConn{
		conn:   conn,
		frames: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	go w.pump()
	return w
}

func (w *WebSocketConn) pump() {
	defer close(w.frames)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.readErr = err
			return
		}
		if messageType != websocket.BinaryMessage {
			w.readErr = errors.New("websocket: unsupported message type")
			return
		}
		select {
		case w.frames <- data:
		case <-w.done:
			return
		}
	}
}

func (w *WebSocketConn) Read(b []byte) (int, error) {
	if len(w.pending) == 0 {
		select {
		case frame, ok := <-w.frames:
			if !ok {
				return 0, w.readErr
			}
			w.pending = frame
		default:
		}
	}
	if len(w.pending) == 0 {
		var timeout <-chan time.Time
		if !w.deadline.IsZero() {
			timer := time.NewTimer(time.Until(w.deadline))
			defer timer.Stop()
			timeout = timer.C
		}
		select {
		case frame, ok := <-w.frames:
			if !ok {
				// frames 关闭之前 readErr 已写入
				return 0, w.readErr
			}
			w.pending = frame
		case <-timeout:
			return 0, os.ErrDeadlineExceeded
		case <-w.done:
			return 0, net.ErrClosed
		}
	}
	n := copy(b, w.pending)
	w.pending = w.pending[n:]
	return n, nil
}

func (w *WebSocketConn) Write(b []byte) (n int, err error) {
	writer, err := w.conn.NextWriter(websocket.BinaryMessage)
	if err != nil {
		return 0, err
	}
	n, err = writer.Write(b)
	if closeErr := writer.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

func (w *WebSocketConn) SetReadDeadline(t time.Time) error {
	w.deadline = t
	return nil
}

func (w *WebSocketConn) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = w.conn.Close()
	})
	return err
}

func (w *WebSocketConn) RemoteAddr() net.Addr {
	return w.conn.RemoteAddr()
}
