package database

import (
	"context"
	"errors"
	"fmt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"time"
)

type MongoArchive struct {
	client           *mongo.Client
	messages         *mongo.Collection
	operationTimeout time.Duration
}

func wrapDatabaseError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("unique key conflicts: %w", err)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("document does not exist: %w", err)
	}
	if errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("%w: %w", ErrArchiveClosed, err)
	}
	return fmt.Errorf("database operation failed: %w", err)
}

func (ma *MongoArchive) Save(ctx context.Context, message *ArchivedMessage) error {
	ctx, cancel := context.WithTimeout(ctx, ma.operationTimeout)
	defer cancel()

	if message.Topic == "" {
		return ErrTopicEmpty
	}

	startTime := time.Now()
	_, err := ma.messages.InsertOne(ctx, message)
	logger.DebugF("message insert cost: %v", time.Since(startTime))

	if err != nil {
		return wrapDatabaseError(err)
	}
	return nil
}

func (ma *MongoArchive) Recent(ctx context.Context, topic string, limit int) ([]*ArchivedMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, ma.operationTimeout)
	defer cancel()

	filter := bson.D{}
	if topic != "" {
		filter = bson.D{{Key: "topic", Value: topic}}
	}
	opts := options.Find().SetSort(bson.D{{Key: "received_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := ma.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapDatabaseError(err)
	}
	defer cursor.Close(ctx)

	result := make([]*ArchivedMessage, 0)
	if err := cursor.All(ctx, &result); err != nil {
		return nil, wrapDatabaseError(err)
	}
	return result, nil
}

func (ma *MongoArchive) Close(ctx context.Context) error {
	logger.InfoF("Closing database connection")
	ctx, cancel := context.WithTimeout(ctx, ma.operationTimeout)
	defer cancel()
	return ma.client.Disconnect(ctx)
}

// Invoke 让 MongoArchive 可以直接注册到 event.Cleaner
func (ma *MongoArchive) Invoke(ctx context.Context) error {
	return ma.Close(ctx)
}
