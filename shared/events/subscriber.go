package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type Handler func(ctx context.Context, event Event) error

type Subscriber struct {
	client        redis.UniversalClient
	group         string
	consumer      string
	stream        string
	handler       Handler
	batchSize     int64
	blockDuration time.Duration
	retryInterval time.Duration
	log           zerolog.Logger
}

type SubscriberConfig struct {
	Group         string
	Consumer      string
	Stream        string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
	// RetryInterval is how often entries that failed and were left un-acked
	// are read again from this consumer's pending list.
	RetryInterval time.Duration
}

func NewSubscriber(client redis.UniversalClient, config SubscriberConfig, log zerolog.Logger) *Subscriber {
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.BlockDuration == 0 {
		config.BlockDuration = 5 * time.Second
	}
	if config.RetryInterval == 0 {
		config.RetryInterval = 30 * time.Second
	}

	return &Subscriber{
		client:        client,
		group:         config.Group,
		consumer:      config.Consumer,
		stream:        config.Stream,
		handler:       config.Handler,
		batchSize:     config.BatchSize,
		blockDuration: config.BlockDuration,
		retryInterval: config.RetryInterval,
		log: log.With().
			Str("component", "subscriber").
			Str("stream", config.Stream).
			Str("group", config.Group).
			Logger(),
	}
}

// Start consumes the stream until ctx is cancelled. Pending entries left by
// an earlier run are retried first, then again every RetryInterval.
func (s *Subscriber) Start(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	s.log.Info().Str("consumer", s.consumer).Msg("subscriber started")

	var lastRetry time.Time
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("subscriber stopping")
			return ctx.Err()
		default:
			if time.Since(lastRetry) >= s.retryInterval {
				if err := s.retryPending(ctx); err != nil && ctx.Err() == nil {
					s.log.Error().Err(err).Msg("error retrying pending messages")
				}
				lastRetry = time.Now()
			}
			if err := s.readMessages(ctx); err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Msg("error reading messages")
				time.Sleep(time.Second)
			}
		}
	}
}

// readMessages blocks for new entries.
func (s *Subscriber) readMessages(ctx context.Context) error {
	return s.read(ctx, ">", s.blockDuration)
}

// retryPending reads one batch of entries delivered to this consumer but never
// acked. Reads from the pending list do not block.
func (s *Subscriber) retryPending(ctx context.Context) error {
	return s.read(ctx, "0", -1)
}

func (s *Subscriber) read(ctx context.Context, id string, block time.Duration) error {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, id},
		Count:    s.batchSize,
		Block:    block,
	}).Result()

	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			if err := s.processMessage(ctx, message); err != nil {
				// stays on the pending list for retryPending
				s.log.Error().Err(err).Str("message_id", message.ID).Msg("failed to process message")
				continue
			}
			s.ack(ctx, message.ID)
		}
	}

	return nil
}

func (s *Subscriber) processMessage(ctx context.Context, message redis.XMessage) error {
	event, err := DecodeMessage(message)
	if err != nil {
		// never decodes on a retry either
		s.log.Warn().Err(err).Str("message_id", message.ID).Msg("dropping undecodable message")
		return nil
	}
	return s.handler(ctx, event)
}

func (s *Subscriber) ack(ctx context.Context, id string) {
	if err := s.client.XAck(ctx, s.stream, s.group, id).Err(); err != nil {
		s.log.Warn().Err(err).Str("message_id", id).Msg("failed to ack message")
	}
}

// DecodeMessage extracts the Event published by Publisher from a stream entry.
func DecodeMessage(message redis.XMessage) (Event, error) {
	eventData, ok := message.Values["event"].(string)
	if !ok {
		return Event{}, fmt.Errorf("invalid message format")
	}

	var event Event
	if err := json.Unmarshal([]byte(eventData), &event); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return event, nil
}
