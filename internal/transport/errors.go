package transport

import (
	"errors"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/logger"
	"io"
	"net"
	"os"
)

var ErrUnsupportedScheme = errors.New("transport: unsupported scheme")

func IsNetClosedError(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// IsTimeout 报告读取是否仅因截止时间到达而返回
func IsTimeout(err error) bool {
	return err != nil && os.IsTimeout(err)
}

func HandleReadError(connID string, err error) {
	switch {
	case errors.Is(err, io.EOF):
		logger.InfoF("[%s] Broker close connection", connID)
	case IsTimeout(err):
		logger.DebugF("[%s] Reading timeout", connID)
	case errors.Is(err, net.ErrClosed):
		logger.DebugF("[%s] Connection already closed", connID)
	default:
		logger.ErrorF("[%s] Error occured while reading packet, details: %v", connID, err)
	}
}
