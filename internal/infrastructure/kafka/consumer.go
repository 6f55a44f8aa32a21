package kafka

import (
	"context"
	"encoding/json"
	"time"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/glowforum/imagepipeline/internal/config"
	"github.com/glowforum/imagepipeline/internal/dto"
)

type EventHandler func(ctx context.Context, event *dto.UploadEventMessage) error

// Consumer feeds upload-completion bucket notifications into the pipeline.
type Consumer struct {
	client  *wbfkafka.Consumer
	handler EventHandler
	topic   string
}

func NewConsumer(cfg *config.KafkaConfig, handler EventHandler) (*Consumer, error) {
	client := wbfkafka.NewConsumer(cfg.Brokers, cfg.Topic, cfg.GroupID)

	zlog.Logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("group_id", cfg.GroupID).
		Msg("Kafka consumer initialized")

	return &Consumer{
		client:  client,
		handler: handler,
		topic:   cfg.Topic,
	}, nil
}

func (c *Consumer) Start(ctx context.Context) error {
	strategy := retry.Strategy{
		Attempts: 3,
		Delay:    2 * time.Second,
		Backoff:  2.0,
	}

	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Info().Msg("Kafka consumer stopped")
			return nil
		default:
			msg, err := c.client.FetchWithRetry(ctx, strategy)
			if err != nil {
				zlog.Logger.Error().Err(err).Msg("Failed to fetch Kafka message")
				time.Sleep(time.Second)
				continue
			}

			// malformed events are committed, otherwise they redeliver forever
			var event dto.UploadEventMessage
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				zlog.Logger.Error().
					Err(err).
					Bytes("msg", msg.Value).
					Msg("Failed to unmarshal upload event")
				if err := c.client.Commit(ctx, msg); err != nil {
					zlog.Logger.Error().Err(err).Msg("Failed to commit malformed message")
				}
				continue
			}

			if event.Name == "" || event.Bucket == "" {
				zlog.Logger.Error().
					Str("name", event.Name).
					Str("bucket", event.Bucket).
					Msg("Invalid upload event: empty name or bucket")
				if err := c.client.Commit(ctx, msg); err != nil {
					zlog.Logger.Error().Err(err).Msg("Failed to commit invalid message")
				}
				continue
			}

			zlog.Logger.Info().
				Str("name", event.Name).
				Str("bucket", event.Bucket).
				Msg("Received upload event")

			if err := c.handler(ctx, &event); err != nil {
				zlog.Logger.Error().
					Err(err).
					Str("name", event.Name).
					Msg("Upload event handling failed")
				continue
			}

			if err := c.client.Commit(ctx, msg); err != nil {
				zlog.Logger.Error().
					Err(err).
					Str("name", event.Name).
					Msg("Failed to commit message")
				continue
			}
		}
	}
}

func (c *Consumer) Close() error {
	if err := c.client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka consumer")
		return err
	}
	zlog.Logger.Info().Msg("Kafka consumer closed successfully")
	return nil
}
