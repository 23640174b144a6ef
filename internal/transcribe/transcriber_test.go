package transcribe

import (
	"testing"
	"time"

	"github.com/voxnote/voxnote/internal/meeting"
)

func seg(start, end time.Duration, text string) meeting.Segment {
	return meeting.Segment{Start: start, End: end, Text: text}
}

func TestNormalizeSegmentsFillsGaps(t *testing.T) {
	in := []meeting.Segment{
		seg(2*time.Second, 5*time.Second, "hello"),
		seg(8*time.Second, 10*time.Second, "world"),
	}
	out := normalizeSegments(in, 12*time.Second)

	want := []meeting.Segment{
		seg(0, 2*time.Second, ""),
		seg(2*time.Second, 5*time.Second, "hello"),
		seg(5*time.Second, 8*time.Second, ""),
		seg(8*time.Second, 10*time.Second, "world"),
		seg(10*time.Second, 12*time.Second, ""),
	}
	if len(out) != len(want) {
		t.Fatalf("got %d segments, want %d: %+v", len(out), len(want), out)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, out[i], want[i])
		}
	}
}

func TestNormalizeSegmentsClampsOverlap(t *testing.T) {
	in := []meeting.Segment{
		seg(0, 4*time.Second, "a"),
		seg(3*time.Second, 6*time.Second, "b"), // overlaps previous
	}
	out := normalizeSegments(in, 6*time.Second)

	var prevEnd time.Duration
	for i, s := range out {
		if s.Start < prevEnd {
			t.Errorf("segment %d starts at %v before previous end %v", i, s.Start, prevEnd)
		}
		if s.End < s.Start {
			t.Errorf("segment %d end %v before start %v", i, s.End, s.Start)
		}
		prevEnd = s.End
	}
	if prevEnd != 6*time.Second {
		t.Errorf("coverage ends at %v, want 6s", prevEnd)
	}
}

func TestNormalizeSegmentsCoverageSpansInput(t *testing.T) {
	cases := []struct {
		name  string
		in    []meeting.Segment
		total time.Duration
	}{
		{"empty input", nil, 3 * time.Second},
		{"exact coverage", []meeting.Segment{seg(0, 3*time.Second, "x")}, 3 * time.Second},
		{"segment past end", []meeting.Segment{seg(0, 5*time.Second, "x")}, 3 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := normalizeSegments(tc.in, tc.total)
			if len(out) == 0 {
				t.Fatal("no segments returned")
			}
			if out[0].Start != 0 {
				t.Errorf("first segment starts at %v, want 0", out[0].Start)
			}
			if last := out[len(out)-1].End; last != tc.total {
				t.Errorf("last segment ends at %v, want %v", last, tc.total)
			}
		})
	}
}

func TestNormalizeSegmentsMonotonicStarts(t *testing.T) {
	in := []meeting.Segment{
		seg(5*time.Second, 6*time.Second, "late"),
		seg(1*time.Second, 2*time.Second, "early"), // regressed start from the model
	}
	out := normalizeSegments(in, 7*time.Second)
	for i := 1; i < len(out); i++ {
		if out[i].Start < out[i-1].Start {
			t.Fatalf("start offsets decrease at %d: %+v", i, out)
		}
	}
}
