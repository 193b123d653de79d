package database

import (
	"context"
	"crypto/tls"
	"fmt"
	c "github.com/life-stream-dev/life-stream-go-mqtt-client/internal/config"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/logger"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"net/url"
	"time"
)

const defaultOperationTimeout = 5 * time.Second

// DatabaseURI 优先使用配置里的完整 uri，否则由主机和账号拼出
func DatabaseURI(config *c.ArchiveConfig) string {
	if config.URI != "" {
		return config.URI
	}
	host := config.Host
	if host == "" {
		host = "localhost"
	}
	port := config.Port
	if port == 0 {
		port = 27017
	}
	if config.Username == "" {
		return fmt.Sprintf("mongodb://%s:%d/", host, port)
	}
	// 编码特殊字符
	encodedUser := url.QueryEscape(config.Username)
	encodedPass := url.QueryEscape(config.Password)
	return fmt.Sprintf("mongodb://%s:%s@%s:%d/?authSource=admin",
		encodedUser, encodedPass,
		host,
		port,
	)
}

func clientOptions(config *c.ArchiveConfig, appName string) *options.ClientOptions {
	clientOptions := options.Client().ApplyURI(DatabaseURI(config)).SetAppName(appName)
	// 连接池配置
	if config.MinPoolSize > 0 {
		clientOptions.SetMinPoolSize(config.MinPoolSize) // 最小连接数
	}
	if config.MaxPoolSize > 0 {
		clientOptions.SetMaxPoolSize(config.MaxPoolSize) // 最大连接数
	}
	if d, err := utils.ParseDuration(config.ConnectIdleTimeout); err == nil {
		clientOptions.SetMaxConnIdleTime(d)
	}
	// 超时限制
	if d, err := utils.ParseDuration(config.ConnectTimeout); err == nil {
		clientOptions.SetConnectTimeout(d)
	}
	if d, err := utils.ParseDuration(config.SocketTimeout); err == nil {
		clientOptions.SetSocketTimeout(d)
	}
	// 心跳包
	if d, err := utils.ParseDuration(config.Heartbeat); err == nil && d > 0 {
		clientOptions.SetHeartbeatInterval(d)
	}
	// TLS
	if config.UseTLS {
		tlsConfig := &tls.Config{
			InsecureSkipVerify: false,
		}
		clientOptions.SetTLSConfig(tlsConfig)
	}
	// 连接池监控
	clientOptions.SetPoolMonitor(&event.PoolMonitor{
		Event: func(evt *event.PoolEvent) {
			switch evt.Type {
			case event.ConnectionCreated:
				logger.DebugF("Database connection created: %s #%d", evt.Address, evt.ConnectionID)
			case event.ConnectionClosed:
				logger.DebugF("Database connection closed: %s #%d (%s)", evt.Address, evt.ConnectionID, evt.Reason)
			}
		},
	})
	return clientOptions
}

// ConnectMongoArchive 连接 mongo，检查连通性并建立 (topic, received_at) 索引
func ConnectMongoArchive(ctx context.Context, config *c.ArchiveConfig, appName string) (*MongoArchive, error) {
	logger.DebugF("Connecting to database...")

	operationTimeout := defaultOperationTimeout
	if d, err := utils.ParseDuration(config.OperationTimeout); err == nil && d > 0 {
		operationTimeout = d
	}

	// 创建客户端
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions(config, appName))
	if err != nil {
		return nil, fmt.Errorf("error occured while connecting to database: %w", err)
	}

	// 验证连接
	if err = client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, fmt.Errorf("error occured while pinging database: %w", err)
	}

	databaseName := config.Database
	if databaseName == "" {
		databaseName = "mqtt"
	}
	collectionName := config.Collection
	if collectionName == "" {
		collectionName = MessageCollectionName
	}
	messages := client.Database(databaseName).Collection(collectionName)

	_, err = messages.Indexes().CreateOne(
		connectCtx,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "topic", Value: 1}, {Key: "received_at", Value: -1}},
			Options: options.Index().SetName("messages_topic_received_at"),
		},
	)
	if err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, fmt.Errorf("error occured while creating database indexes: %w", err)
	}

	logger.InfoF("Connected to database %s, archiving into %s", databaseName, collectionName)
	return &MongoArchive{
		client:           client,
		messages:         messages,
		operationTimeout: operationTimeout,
	}, nil
}

// NewArchive 按 archive.backend 选择存储，"none" 或空时返回 nil
func NewArchive(ctx context.Context, config *c.Config) (Archive, error) {
	switch config.Archive.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryArchive(config.Archive.MemoryCapacity), nil
	case "mongo":
		return ConnectMongoArchive(ctx, &config.Archive, config.AppName)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, config.Archive.Backend)
	}
}
