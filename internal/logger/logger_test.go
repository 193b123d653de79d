package logger

import (
	"bytes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAsyncHandlerWritesConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	console := &syncBuffer{}
	handler := NewAsyncHandler(dir, slog.LevelInfo, console)
	log := slog.New(handler)

	log.Debug("hidden")
	log.Info("visible", "topic", "a/b")
	log.With("client", "c1").WithGroup("packet").Warn("derived", "id", 7)
	require.NoError(t, handler.Close())

	out := console.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "topic=a/b")
	assert.Contains(t, out, "client=c1")
	assert.Contains(t, out, "packet.id=7")

	data, err := os.ReadFile(filepath.Join(dir, time.Now().Format("2006-01-02")+".log"))
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "\n"))
	assert.Equal(t, out, string(data))
}

func TestAsyncHandlerCloseIsIdempotent(t *testing.T) {
	handler := NewAsyncHandler("", slog.LevelDebug, &syncBuffer{})
	require.NoError(t, handler.Close())
	require.NoError(t, handler.Close())
	// 关闭后写入被丢弃
	handler.Write([]byte("late\n"))
}

func TestCleanOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "2000-01-01.log")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0644))
	stale := time.Now().Add(-40 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(old, stale, stale))

	handler := NewAsyncHandler(dir, slog.LevelInfo, &syncBuffer{})
	defer handler.Close()

	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err))
}
