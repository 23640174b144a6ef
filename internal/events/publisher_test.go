package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilPublisherDropsEvents(t *testing.T) {
	var p *Publisher
	ctx := context.Background()

	assert.NoError(t, p.MeetingCompleted(ctx, MeetingCompletedEvent{MeetingID: "m-1"}))
	assert.NoError(t, p.MeetingFailed(ctx, MeetingFailedEvent{SessionID: "s-1"}))
	assert.NoError(t, p.MeetingAbandoned(ctx, MeetingAbandonedEvent{SessionID: "s-1"}))
	assert.NoError(t, p.Close())
}

func TestBaseEventDefaults(t *testing.T) {
	ev := NewBaseEvent("meeting.completed")
	assert.Equal(t, "meeting.completed", ev.EventType)
	assert.Equal(t, "voxnote", ev.Source)
	assert.Equal(t, "1.0", ev.Version)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestCompletedEventSerializes(t *testing.T) {
	ev := MeetingCompletedEvent{
		BaseEvent:       NewBaseEvent("meeting.completed"),
		MeetingID:       "m-1",
		GuildID:         "g-1",
		ChannelID:       "c-1",
		Name:            "Standup",
		DurationSeconds: 120,
		SegmentCount:    14,
	}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "m-1", decoded["meeting_id"])
	assert.Equal(t, "meeting.completed", decoded["event_type"])
	assert.Equal(t, float64(120), decoded["duration_seconds"])
}
