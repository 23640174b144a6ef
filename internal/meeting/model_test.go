package meeting

import (
	"strings"
	"testing"
	"time"
)

func TestRenderTranscript(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 2 * time.Second, Text: "hello everyone"},
		{Start: 2 * time.Second, End: 65 * time.Second, Text: ""},
		{Start: 65 * time.Second, End: 70 * time.Second, Text: "let's get started"},
	}

	got := RenderTranscript(segments)
	want := "[00:00] hello everyone\n[01:05] let's get started"
	if got != want {
		t.Errorf("RenderTranscript = %q, want %q", got, want)
	}
}

func TestRenderTranscriptEmpty(t *testing.T) {
	if got := RenderTranscript(nil); got != "" {
		t.Errorf("RenderTranscript(nil) = %q, want empty", got)
	}
}

func TestFormatOffset(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{59 * time.Second, "00:59"},
		{60 * time.Second, "01:00"},
		{61*time.Minute + 5*time.Second, "61:05"},
	}
	for _, tt := range tests {
		if got := FormatOffset(tt.d); got != tt.want {
			t.Errorf("FormatOffset(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestDefaultName(t *testing.T) {
	start := time.Date(2026, 8, 31, 14, 30, 5, 0, time.UTC)
	if got, want := DefaultName(start), "Meeting-20260831-143005"; got != want {
		t.Errorf("DefaultName = %q, want %q", got, want)
	}
}

func TestDuration(t *testing.T) {
	start := time.Now()
	m := Meeting{StartedAt: start, EndedAt: start.Add(10 * time.Minute)}
	if got := m.Duration(); got != 10*time.Minute {
		t.Errorf("Duration = %v, want 10m", got)
	}
}

func TestNewIDUnique(t *testing.T) {
	a, b := NewID(), NewID()
	if a == b || a == "" {
		t.Errorf("NewID returned %q and %q", a, b)
	}
	if strings.Count(a, "-") != 4 {
		t.Errorf("NewID %q is not a uuid", a)
	}
}
