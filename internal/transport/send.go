package transport

import (
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/logger"
	"io"
)

// Send 将数据完整写入连接
func Send(conn io.Writer, data []byte, connID string) error {
	total := 0
	for total < len(data) {
		n, err := conn.Write(data[total:])
		if err != nil {
			logger.ErrorF("[%s] Fail to send data, details: %v", connID, err)
			return err
		}
		if n == 0 {
			logger.ErrorF("[%s] Fail to send data, details: %v", connID, io.ErrShortWrite)
			return io.ErrShortWrite
		}
		total += n
	}
	logger.DebugF("[%s] Send %d bytes to broker, data %v", connID, total, data)
	return nil
}
