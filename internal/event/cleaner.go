package event

import (
	"context"
	"errors"
	"fmt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/logger"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

type Callable interface {
	Invoke(ctx context.Context) error
}

// CallableFunc 把普通函数包装成 Callable
type CallableFunc func(ctx context.Context) error

func (f CallableFunc) Invoke(ctx context.Context) error {
	return f(ctx)
}

const defaultInvokeTimeout = 10 * time.Second

type Cleaner struct {
	cleaners      []Callable
	mu            sync.Mutex
	cleaning      bool
	invokeTimeout time.Duration
}

func NewCleaner() *Cleaner {
	return &Cleaner{invokeTimeout: defaultInvokeTimeout}
}

func (c *Cleaner) Add(callable Callable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cleaning {
		logger.Debug("Cleaner is already shutting down, ignoring new cleaner")
		return
	}
	c.cleaners = append(c.cleaners, callable)
}

// Clean 按注册的相反顺序执行所有清理函数，只执行一次
func (c *Cleaner) Clean(ctx context.Context) error {
	c.mu.Lock()
	if c.cleaning {
		c.mu.Unlock()
		return nil
	}
	c.cleaning = true // 标记为清理中，阻止后续Add操作
	cleanersCopy := make([]Callable, len(c.cleaners))
	copy(cleanersCopy, c.cleaners)
	c.mu.Unlock()

	logger.DebugF("Starting cleanup of %d registered functions", len(cleanersCopy))

	var errs []error
	for i := len(cleanersCopy) - 1; i >= 0; i-- {
		func(idx int, c Callable, timeout time.Duration) { // 使用匿名函数确保defer在每次迭代执行
			logger.DebugF("Invoking cleaner #%d (%T)", idx+1, c)
			timeoutCtx, cancelFunc := context.WithTimeout(ctx, timeout)
			defer cancelFunc()
			if err := c.Invoke(timeoutCtx); err != nil {
				logger.ErrorF("Cleaner #%d (%T) failed: %v", idx+1, c, err) // 记录类型和错误
				errs = append(errs, fmt.Errorf("cleaner #%d: %w", idx+1, err))
			}
		}(i, cleanersCopy[i], c.invokeTimeout)
	}

	if len(errs) > 0 {
		logger.ErrorF("%d errors occurred during cleanup", len(errs))
	} else {
		logger.Debug("All cleaners executed successfully")
	}
	return errors.Join(errs...)
}

// NotifyContext 返回在收到 SIGINT/SIGTERM 时取消的 context
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		if parent.Err() == nil {
			logger.Info("Received interrupt signal, shutting down")
		}
	}()
	return ctx, stop
}
