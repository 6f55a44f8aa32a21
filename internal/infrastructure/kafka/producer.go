package kafka

import (
	"context"
	"encoding/json"
	"time"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/glowforum/imagepipeline/internal/config"
	"github.com/glowforum/imagepipeline/internal/domain"
	"github.com/glowforum/imagepipeline/internal/dto"
)

// Producer re-enqueues upload events, mirroring what the storage trigger
// would emit. The admin reprocess endpoint is its only client.
type Producer struct {
	client *wbfkafka.Producer
	topic  string
}

func NewProducer(cfg *config.KafkaConfig) *Producer {
	client := wbfkafka.NewProducer(cfg.Brokers, cfg.Topic)
	zlog.Logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("Kafka producer initialized")
	return &Producer{
		client: client,
		topic:  cfg.Topic,
	}
}

func (p *Producer) PublishUploadEvent(ctx context.Context, event domain.UploadEvent) error {
	data, err := json.Marshal(dto.FromDomain(event))
	if err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("path", event.Path).
			Msg("Failed to marshal upload event")
		return err
	}

	strategy := retry.Strategy{
		Attempts: 3,
		Delay:    2 * time.Second,
		Backoff:  2.0,
	}
	if err := p.client.SendWithRetry(ctx, strategy, nil, data); err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("path", event.Path).
			Msg("Failed to publish upload event")
		return err
	}

	zlog.Logger.Info().
		Str("path", event.Path).
		Str("bucket", event.Bucket).
		Msg("Upload event published")
	return nil
}

func (p *Producer) Close() error {
	if err := p.client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka producer")
		return err
	}
	zlog.Logger.Info().Msg("Kafka producer closed successfully")
	return nil
}
