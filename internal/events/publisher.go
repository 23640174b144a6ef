// Package events publishes meeting lifecycle events to Redis pub/sub so
// other services can react to completed or failed recordings.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis channels for meeting lifecycle events.
const (
	ChannelMeetingCompleted = "voxnote.meeting.completed"
	ChannelMeetingFailed    = "voxnote.meeting.failed"
	ChannelMeetingAbandoned = "voxnote.meeting.abandoned"
)

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
}

// NewBaseEvent creates a BaseEvent with sensible defaults.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Source:    "voxnote",
		Version:   "1.0",
	}
}

// MeetingCompletedEvent is published when a meeting is transcribed,
// summarized, and persisted.
type MeetingCompletedEvent struct {
	BaseEvent

	MeetingID string `json:"meeting_id"`
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	Name      string `json:"name"`

	DurationSeconds float64 `json:"duration_seconds"`
	SegmentCount    int     `json:"segment_count"`
	DecisionCount   int     `json:"decision_count"`
	ActionCount     int     `json:"action_count"`
}

// MeetingFailedEvent is published when a pipeline stage fails.
type MeetingFailedEvent struct {
	BaseEvent

	SessionID string `json:"session_id"`
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	Stage     string `json:"stage"`
	Reason    string `json:"reason"`
}

// MeetingAbandonedEvent is published when the operator discards a failed
// session without retrying.
type MeetingAbandonedEvent struct {
	BaseEvent

	SessionID string `json:"session_id"`
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
}

// Publisher publishes meeting events to Redis. A nil Publisher is valid
// and drops every event, so callers never need to branch on whether
// eventing is configured.
type Publisher struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewPublisher connects to Redis at addr and verifies the connection.
func NewPublisher(ctx context.Context, addr string, logger zerolog.Logger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}

	return &Publisher{
		client: client,
		logger: logger.With().Str("component", "events").Logger(),
	}, nil
}

// MeetingCompleted publishes a completion event.
func (p *Publisher) MeetingCompleted(ctx context.Context, ev MeetingCompletedEvent) error {
	if p == nil {
		return nil
	}
	ev.BaseEvent = NewBaseEvent("meeting.completed")
	return p.publish(ctx, ChannelMeetingCompleted, ev)
}

// MeetingFailed publishes a failure event.
func (p *Publisher) MeetingFailed(ctx context.Context, ev MeetingFailedEvent) error {
	if p == nil {
		return nil
	}
	ev.BaseEvent = NewBaseEvent("meeting.failed")
	return p.publish(ctx, ChannelMeetingFailed, ev)
}

// MeetingAbandoned publishes an abandon event.
func (p *Publisher) MeetingAbandoned(ctx context.Context, ev MeetingAbandonedEvent) error {
	if p == nil {
		return nil
	}
	ev.BaseEvent = NewBaseEvent("meeting.abandoned")
	return p.publish(ctx, ChannelMeetingAbandoned, ev)
}

func (p *Publisher) publish(ctx context.Context, channel string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		p.logger.Error().Err(err).Str("channel", channel).Msg("failed to publish event")
		return fmt.Errorf("publishing to %s: %w", channel, err)
	}

	p.logger.Debug().Str("channel", channel).Int("payload_size", len(data)).Msg("event published")
	return nil
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.client.Close()
}
