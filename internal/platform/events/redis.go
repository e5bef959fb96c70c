package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ChannelAll carries every consultation event. Each event is also sent to
// the per-doctor and per-patient channels so consumers can subscribe
// narrowly.
const ChannelAll = "consultations"

func DoctorChannel(id fmt.Stringer) string  { return ChannelAll + ".doctor." + id.String() }
func PatientChannel(id fmt.Stringer) string { return ChannelAll + ".patient." + id.String() }

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

type publishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type RedisPublisher struct {
	client publishClient
	logger zerolog.Logger
}

func NewRedisPublisher(client *redis.Client, logger zerolog.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, logger: logger}
}

func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	for _, ch := range []string{ChannelAll, DoctorChannel(evt.DoctorID), PatientChannel(evt.PatientID)} {
		if err := p.client.Publish(ctx, ch, data).Err(); err != nil {
			return fmt.Errorf("failed to publish event to %s: %w", ch, err)
		}
	}

	p.logger.Debug().
		Str("event_id", evt.ID.String()).
		Str("type", evt.Type).
		Str("consultation_id", evt.ConsultationID.String()).
		Msg("published event")
	return nil
}
