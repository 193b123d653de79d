package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/client"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/clientcmd"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/event"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/logger"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/packet"
	"io"
	"os"
	"time"
)

const linePollTimeout = 50 * time.Millisecond

type options struct {
	topic   string
	message string
	file    string
	null    bool
	lines   bool
	qos     int
	retain  bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin))
}

func run(args []string, stdin io.Reader) int {
	fs := flag.NewFlagSet("mqtt-pub", flag.ContinueOnError)
	common := clientcmd.Register(fs, "mqttpub")
	opts := options{}
	fs.StringVar(&opts.topic, "t", "", "topic to publish to")
	fs.StringVar(&opts.message, "m", "", "send a single message")
	fs.StringVar(&opts.file, "f", "", "send the contents of a file as the message")
	fs.BoolVar(&opts.null, "n", false, "send a null (zero length) message")
	fs.BoolVar(&opts.lines, "l", false, "read messages from stdin, one per line")
	fs.IntVar(&opts.qos, "q", 0, "quality of service level (0, 1 or 2)")
	fs.BoolVar(&opts.retain, "r", false, "retain the message on the broker")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	payload, err := opts.validate(fs)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "mqtt-pub: %v\n", err)
		fs.Usage()
		return 2
	}

	cfg, err := common.Resolve()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "mqtt-pub: %v\n", err)
		return 1
	}

	cleaner := event.NewCleaner()
	cleaner.Add(logger.Init(cfg))
	defer func() {
		_ = cleaner.Clean(context.Background())
	}()

	ctx, stop := event.NotifyContext(context.Background())
	defer stop()

	c, err := clientcmd.NewClient(cfg)
	if err != nil {
		logger.ErrorF("Fail to create client, details: %v", err)
		return 1
	}
	p := &publisher{client: c, qos: mqtt.QoS(opts.qos), retain: opts.retain, topic: opts.topic}
	p.attach()

	if err := clientcmd.Connect(ctx, c, cfg); err != nil {
		logger.ErrorF("Fail to connect, details: %v", err)
		return 1
	}

	if opts.lines {
		err = p.publishLines(ctx, stdin)
	} else {
		err = p.publishOne(ctx, payload, clientcmd.PollTimeout(cfg))
	}
	if c.State() != client.StateDisconnected {
		_ = c.Disconnect()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorF("Publish failed, details: %v", err)
		return 1
	}
	if p.failed > 0 {
		return 1
	}
	return 0
}

func (o *options) validate(fs *flag.FlagSet) ([]byte, error) {
	if o.topic == "" {
		return nil, errors.New("a topic (-t) is required")
	}
	if o.qos < 0 || o.qos > 2 {
		return nil, fmt.Errorf("invalid QoS %d", o.qos)
	}
	sources := 0
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "m", "f", "n", "l":
			sources++
		}
	})
	if sources != 1 {
		return nil, errors.New("exactly one of -m, -f, -n or -l is required")
	}
	switch {
	case o.file != "":
		return os.ReadFile(o.file)
	case o.null:
		return []byte{}, nil
	default:
		return []byte(o.message), nil
	}
}

// publisher 统计尚未完成的发布，全部完成后才断开连接
type publisher struct {
	client  *client.Client
	topic   string
	qos     mqtt.QoS
	retain  bool
	pending map[uint16]struct{}
	failed  int
}

func (p *publisher) attach() {
	p.pending = make(map[uint16]struct{})
	p.client.SetOnConnect(func(code packet.ConnectReturnCode) {
		if code != packet.Accepted {
			logger.ErrorF("[%s] %s", p.client.ClientID(), code)
		}
	})
	p.client.SetOnPublish(func(id uint16) {
		delete(p.pending, id)
		logger.DebugF("[%s] Message %d delivered", p.client.ClientID(), id)
	})
	p.client.SetOnDeliveryFailed(func(id uint16, err error) {
		delete(p.pending, id)
		p.failed++
		logger.ErrorF("[%s] Message %d not delivered, details: %v", p.client.ClientID(), id, err)
	})
	p.client.SetOnConnectionLost(func(err error) {
		logger.ErrorF("[%s] Connection lost, details: %v", p.client.ClientID(), err)
	})
}

func (p *publisher) publish(payload []byte) error {
	id, err := p.client.Publish(p.topic, payload, p.qos, p.retain)
	if err != nil {
		return err
	}
	p.pending[id] = struct{}{}
	return nil
}

// drain 一直 Poll 到所有发布完成
func (p *publisher) drain(ctx context.Context, timeout time.Duration) error {
	for len(p.pending) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.client.Poll(timeout); err != nil {
			return err
		}
	}
	return nil
}

func (p *publisher) publishOne(ctx context.Context, payload []byte, timeout time.Duration) error {
	if err := p.publish(payload); err != nil {
		return err
	}
	return p.drain(ctx, timeout)
}

// publishLines 逐行发布 stdin。读取在独立 goroutine 中进行，只通过 channel 交给 Poll 所在的 goroutine。
func (p *publisher) publishLines(ctx context.Context, stdin io.Reader) error {
	lines := make(chan []byte, 64)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdin)
		scanner.Buffer(make([]byte, 64*1024), client.DefaultMaxPacketSize)
		for scanner.Scan() {
			lines <- append([]byte(nil), scanner.Bytes()...)
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return err
				}
				return p.drain(ctx, linePollTimeout)
			}
			if err := p.publish(line); err != nil {
				return err
			}
		case <-time.After(linePollTimeout):
		}
		if err := p.client.Poll(0); err != nil {
			return err
		}
	}
}
