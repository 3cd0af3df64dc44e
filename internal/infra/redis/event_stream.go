package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/model"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/ports/adapter"
)

const (
	eventStreamPrefix = "coursegen:events:"
	insertHintStream  = "coursegen:inserts"
	dataKey           = "event"
	streamMaxLen      = 4096
	streamRetention   = 24 * time.Hour
)

func tenantStreamKey(tenantID string) string { return eventStreamPrefix + tenantID }

var (
	_ adapter.EventPublisher  = (*EventStream)(nil)
	_ adapter.EventSubscriber = (*EventStream)(nil)
)

// EventStream is the change-notification channel: one Redis Stream per
// tenant carrying JSON-encoded job events. XADD preserves the order events
// are published in; consumers treat delivery as at-least-once and
// reconcile duplicates against the snapshot's updated_at.
type EventStream struct {
	cli *redis.Client
	log *zerolog.Logger
}

func NewEventStream(c *Client, logger *zerolog.Logger) *EventStream {
	l := logger.With().Str("component", "EventStream").Logger()
	return &EventStream{cli: c.cli, log: &l}
}

func (s *EventStream) Publish(ctx context.Context, event model.JobEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	key := tenantStreamKey(event.Snapshot.TenantID)
	pipe := s.cli.Pipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{dataKey: payload},
	})
	pipe.Expire(ctx, key, streamRetention)
	if event.EventType == model.JobEventInsert {
		// Scheduler wake-up; carries no payload worth reading.
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: insertHintStream,
			MaxLen: streamMaxLen,
			Approx: true,
			Values: map[string]interface{}{dataKey: event.Snapshot.JobID},
		})
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Hints tails the insert stream and delivers one signal per new job row.
// The channel closes when ctx is cancelled.
func (s *EventStream) Hints(ctx context.Context) (<-chan struct{}, error) {
	out := make(chan struct{}, 16)
	go func() {
		defer close(out)
		lastID := "$"
		for {
			res, err := s.cli.XRead(ctx, &redis.XReadArgs{
				Streams: []string{insertHintStream, lastID},
				Count:   16,
				Block:   5 * time.Second,
			}).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if err != redis.Nil {
					s.log.Warn().Err(err).Msg("hint stream read failed")
					select {
					case <-ctx.Done():
						return
					case <-time.After(time.Second):
					}
				}
				continue
			}
			for _, stream := range res {
				for _, msg := range stream.Messages {
					lastID = msg.ID
					select {
					case out <- struct{}{}:
					default:
						// processor is already awake; coalesce
					}
				}
			}
		}
	}()
	return out, nil
}

// Subscribe tails a tenant's stream from its current tip. The returned
// channel closes when ctx is cancelled. Malformed entries are logged and
// skipped; observers fall back to the periodic full read anyway.
func (s *EventStream) Subscribe(ctx context.Context, tenantID string) (<-chan model.JobEvent, error) {
	key := tenantStreamKey(tenantID)
	out := make(chan model.JobEvent, 64)

	go func() {
		defer close(out)
		lastID := "$"
		for {
			res, err := s.cli.XRead(ctx, &redis.XReadArgs{
				Streams: []string{key, lastID},
				Count:   64,
				Block:   5 * time.Second,
			}).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if err != redis.Nil {
					s.log.Warn().Err(err).Str("tenant_id", tenantID).Msg("stream read failed")
					select {
					case <-ctx.Done():
						return
					case <-time.After(time.Second):
					}
				}
				continue
			}
			for _, stream := range res {
				for _, msg := range stream.Messages {
					lastID = msg.ID
					raw, ok := msg.Values[dataKey].(string)
					if !ok {
						continue
					}
					var event model.JobEvent
					if err := json.Unmarshal([]byte(raw), &event); err != nil {
						s.log.Warn().Err(err).Str("stream_id", msg.ID).Msg("malformed event entry")
						continue
					}
					select {
					case out <- event:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}
