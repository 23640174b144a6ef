// Package transcribe converts normalized audio into timed transcript
// segments using a local whisper.cpp model.
//
// The native backend requires the whispercpp build tag; without it New
// returns ErrBackendUnavailable.
package transcribe

import (
	"context"
	"errors"
	"time"

	"github.com/voxnote/voxnote/internal/meeting"
)

// ErrBackendUnavailable indicates the binary was built without the native
// whisper backend.
var ErrBackendUnavailable = errors.New("transcribe: built without whispercpp support")

// Transcriber converts mono 16kHz audio samples into timed segments. The
// returned segments are non-overlapping, cover the full input duration
// (silence as empty-text segments), and have non-decreasing start offsets.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32) ([]meeting.Segment, error)
	Close() error
}

// Config holds speech model parameters.
type Config struct {
	ModelPath string
	Language  string
	Threads   int
}

// normalizeSegments enforces the segment contract on raw model output:
// non-decreasing, non-overlapping offsets and full coverage of [0, total],
// with gaps filled by empty-text silence segments.
func normalizeSegments(segs []meeting.Segment, total time.Duration) []meeting.Segment {
	out := make([]meeting.Segment, 0, len(segs)+2)
	cursor := time.Duration(0)

	for _, seg := range segs {
		if seg.Start < cursor {
			seg.Start = cursor
		}
		if seg.End < seg.Start {
			seg.End = seg.Start
		}
		if total > 0 && seg.End > total {
			seg.End = total
		}
		if seg.Start > cursor {
			out = append(out, meeting.Segment{Start: cursor, End: seg.Start})
		}
		if seg.End == seg.Start && seg.Text == "" {
			cursor = seg.End
			continue
		}
		out = append(out, seg)
		cursor = seg.End
	}

	if total > cursor {
		out = append(out, meeting.Segment{Start: cursor, End: total})
	}
	return out
}
