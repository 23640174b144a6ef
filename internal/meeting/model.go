// Package meeting defines the domain types shared across the recording
// pipeline: transcript segments, synthesized notes, and the persisted meeting.
package meeting

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Segment is a time-bounded unit of transcribed speech. Text may be empty for
// stretches of silence so that a segment sequence covers the full recording.
type Segment struct {
	Start   time.Duration `json:"start"`
	End     time.Duration `json:"end"`
	Text    string        `json:"text"`
	Speaker string        `json:"speaker,omitempty"`
}

// ActionItem is a task extracted from the meeting, optionally with an owner.
type ActionItem struct {
	Task  string `json:"task"`
	Owner string `json:"owner,omitempty"`
}

// Notes holds the structured output of note synthesis.
type Notes struct {
	Summary   string       `json:"summary"`
	Decisions []string     `json:"decisions"`
	Actions   []ActionItem `json:"actions"`
}

// Meeting is the unit of persistence. Immutable once saved; the store deletes
// it after ExpiresAt.
type Meeting struct {
	ID         string    `json:"id"`
	GuildID    string    `json:"guild_id"`
	ChannelID  string    `json:"channel_id"`
	Name       string    `json:"name"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	CreatedAt  time.Time `json:"created_at"`
	Transcript []Segment `json:"transcript"`
	Notes      Notes     `json:"notes"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// NewID returns a fresh meeting or session identifier.
func NewID() string {
	return uuid.NewString()
}

// DefaultName builds a meeting name from its start time, matching the
// Meeting-YYYYMMDD-HHMMSS convention.
func DefaultName(start time.Time) string {
	return "Meeting-" + start.Format("20060102-150405")
}

// TranscriptText renders the transcript as timestamped lines, one segment per
// line, skipping empty silence segments.
func (m *Meeting) TranscriptText() string {
	return RenderTranscript(m.Transcript)
}

// RenderTranscript formats segments as "[MM:SS] text" lines.
func RenderTranscript(segments []Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%s] %s", FormatOffset(seg.Start), text)
	}
	return b.String()
}

// FormatOffset renders an offset into the recording as MM:SS.
func FormatOffset(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// Duration returns the wall-clock length of the meeting.
func (m *Meeting) Duration() time.Duration {
	return m.EndedAt.Sub(m.StartedAt)
}
