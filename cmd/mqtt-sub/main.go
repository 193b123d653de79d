package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/client"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/clientcmd"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/database"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/event"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/logger"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/packet"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/topic"
	"io"
	"os"
	"time"
)

const archiveTimeout = 5 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("mqtt-sub", flag.ContinueOnError)
	common := clientcmd.Register(fs, "mqttsub")
	var filters clientcmd.StringList
	fs.Var(&filters, "t", "topic filter to subscribe to, may be repeated")
	qos := fs.Int("q", 0, "requested quality of service level (0, 1 or 2)")
	verbose := fs.Bool("v", false, "print the topic before each message")
	persistent := fs.Bool("persistent", false, "keep the session on the broker between connections")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if len(filters) == 0 {
		_, _ = fmt.Fprintln(os.Stderr, "mqtt-sub: at least one topic filter (-t) is required")
		fs.Usage()
		return 2
	}
	if *qos < 0 || !mqtt.QoS(*qos).Valid() {
		_, _ = fmt.Fprintf(os.Stderr, "mqtt-sub: invalid QoS %d\n", *qos)
		return 2
	}
	subscriptions := make([]packet.Subscription, 0, len(filters))
	for _, filter := range filters {
		if err := topic.ValidateFilter(filter); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "mqtt-sub: %q: %v\n", filter, err)
			return 2
		}
		subscriptions = append(subscriptions, packet.Subscription{Topic: filter, QoS: mqtt.QoS(*qos)})
	}

	cfg, err := common.Resolve()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "mqtt-sub: %v\n", err)
		return 1
	}
	if *persistent {
		cfg.Client.CleanSession = false
	}

	cleaner := event.NewCleaner()
	cleaner.Add(logger.Init(cfg))
	defer func() {
		_ = cleaner.Clean(context.Background())
	}()

	ctx, stop := event.NotifyContext(context.Background())
	defer stop()

	archive, err := database.NewArchive(ctx, cfg)
	if err != nil {
		logger.ErrorF("Fail to open message archive, details: %v", err)
		return 1
	}
	if archive != nil {
		cleaner.Add(event.CallableFunc(archive.Close))
	}

	c, err := clientcmd.NewClient(cfg)
	if err != nil {
		logger.ErrorF("Fail to create client, details: %v", err)
		return 1
	}
	s := &subscriber{client: c, archive: archive, stdout: stdout, verbose: *verbose, subscriptions: subscriptions}
	s.attach()

	if err := clientcmd.Connect(ctx, c, cfg); err != nil {
		logger.ErrorF("Fail to connect, details: %v", err)
		return 1
	}

	err = c.Loop(ctx, clientcmd.PollTimeout(cfg))
	if c.State() != client.StateDisconnected {
		_ = c.Disconnect()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorF("Connection closed, details: %v", err)
		return 1
	}
	return 0
}

type subscriber struct {
	client        *client.Client
	archive       database.Archive
	stdout        io.Writer
	verbose       bool
	subscriptions []packet.Subscription
}

func (s *subscriber) attach() {
	s.client.SetOnConnect(s.onConnect)
	s.client.SetOnSubscribe(s.onSubscribe)
	s.client.SetOnMessage(s.onMessage)
	s.client.SetOnConnectionLost(func(err error) {
		logger.ErrorF("[%s] Connection lost, details: %v", s.client.ClientID(), err)
	})
}

func (s *subscriber) onConnect(code packet.ConnectReturnCode) {
	if code != packet.Accepted {
		logger.ErrorF("[%s] %s", s.client.ClientID(), code)
		return
	}
	if _, err := s.client.SubscribeMany(s.subscriptions); err != nil {
		logger.ErrorF("[%s] Fail to subscribe, details: %v", s.client.ClientID(), err)
	}
}

func (s *subscriber) onSubscribe(_ uint16, granted []packet.GrantedQoS) {
	for i, g := range granted {
		if i >= len(s.subscriptions) {
			break
		}
		if q, ok := g.QoS(); ok {
			logger.InfoF("[%s] Subscribed to %s with QoS %d", s.client.ClientID(), s.subscriptions[i].Topic, q)
		} else {
			logger.WarnF("[%s] Subscription to %s refused", s.client.ClientID(), s.subscriptions[i].Topic)
		}
	}
}

func (s *subscriber) onMessage(topicName string, payload []byte, qos mqtt.QoS, retain bool) {
	if s.verbose {
		_, _ = fmt.Fprintf(s.stdout, "%s %s\n", topicName, payload)
	} else {
		_, _ = fmt.Fprintf(s.stdout, "%s\n", payload)
	}
	if s.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	message := database.NewArchivedMessage(s.client.ClientID(), topicName, payload, byte(qos), retain)
	if err := s.archive.Save(ctx, message); err != nil {
		logger.WarnF("[%s] Fail to archive message on %s, details: %v", s.client.ClientID(), topicName, err)
	}
}
