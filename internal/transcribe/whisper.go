//go:build whispercpp

package transcribe

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/voxnote/voxnote/internal/audio"
	"github.com/voxnote/voxnote/internal/meeting"
)

// Available reports whether the native whisper backend is compiled in.
func Available() bool { return true }

// whisperTranscriber wraps a whisper.cpp model.
type whisperTranscriber struct {
	model whisper.Model
	cfg   Config
}

// New loads the whisper model from cfg.ModelPath. The caller must call
// Close() to release the weights.
func New(cfg Config) (Transcriber, error) {
	model, err := whisper.New(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe: load whisper model %q: %w", cfg.ModelPath, err)
	}
	return &whisperTranscriber{model: model, cfg: cfg}, nil
}

// Close releases the whisper model resources.
func (t *whisperTranscriber) Close() error {
	if t.model != nil {
		return t.model.Close()
	}
	return nil
}

// Transcribe runs whisper over the samples and returns normalized segments.
// Inference runs on a worker goroutine so the context deadline is honored;
// whisper.cpp itself cannot be interrupted mid-decode, so a timed-out decode
// finishes in the background before its resources are dropped.
func (t *whisperTranscriber) Transcribe(ctx context.Context, samples []float32) ([]meeting.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := time.Duration(len(samples)) * time.Second / audio.SampleRate

	type result struct {
		segs []meeting.Segment
		err  error
	}
	done := make(chan result, 1)
	go func() {
		segs, err := t.run(samples)
		done <- result{segs, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return normalizeSegments(r.segs, total), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *whisperTranscriber) run(samples []float32) ([]meeting.Segment, error) {
	wctx, err := t.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("transcribe: create context: %w", err)
	}

	if t.cfg.Language != "" {
		if err := wctx.SetLanguage(t.cfg.Language); err != nil {
			return nil, fmt.Errorf("transcribe: set language %q: %w", t.cfg.Language, err)
		}
	}
	if t.cfg.Threads > 0 {
		wctx.SetThreads(uint(t.cfg.Threads))
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("transcribe: process: %w", err)
	}

	var segs []meeting.Segment
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("transcribe: next segment: %w", err)
		}
		segs = append(segs, meeting.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		})
	}
	return segs, nil
}
