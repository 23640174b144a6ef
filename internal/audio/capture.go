// Package audio accumulates voice frames for a recording session and
// normalizes them into the mono 16kHz stream the speech model expects.
package audio

import (
	"errors"
	"sync"
	"time"
)

// SampleRate is the output rate of every capture. Whisper models operate on
// 16kHz mono input.
const SampleRate = 16000

var (
	// ErrCapacity is returned by Append once the duration ceiling is reached.
	// The frame that crossed the ceiling is truncated to fit, never dropped
	// silently past the limit.
	ErrCapacity = errors.New("audio: capture duration ceiling reached")

	// ErrFinalized is returned by Append after Finalize has been called.
	ErrFinalized = errors.New("audio: capture already finalized")
)

// Frame is one block of interleaved samples from an upstream source. Frames
// must arrive in sequence order; the capture performs no reordering.
type Frame struct {
	Samples    []float32
	SampleRate int
	Channels   int
	Seq        uint64
	Source     string
}

// Capture buffers incoming frames, downmixing and resampling each one to mono
// 16kHz. The duration ceiling is enforced by counting accumulated samples, so
// backlogged delivery cannot exceed the limit.
type Capture struct {
	maxSamples int

	mu        sync.Mutex
	buf       []float32
	finalized bool
}

// NewCapture creates a capture with the given duration ceiling.
func NewCapture(maxDuration time.Duration) *Capture {
	return &Capture{
		maxSamples: int(maxDuration.Seconds() * SampleRate),
	}
}

// Append normalizes the frame and adds it to the buffer. It returns
// ErrCapacity when the ceiling is reached, after truncating the frame so that
// the buffer holds exactly the ceiling duration.
func (c *Capture) Append(f Frame) error {
	normalized := normalizeFrame(f)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finalized {
		return ErrFinalized
	}

	remaining := c.maxSamples - len(c.buf)
	if remaining <= 0 {
		return ErrCapacity
	}
	if len(normalized) >= remaining {
		c.buf = append(c.buf, normalized[:remaining]...)
		return ErrCapacity
	}

	c.buf = append(c.buf, normalized...)
	return nil
}

// Duration returns the accumulated audio duration.
func (c *Capture) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(len(c.buf)) * time.Second / SampleRate
}

// Finalize flushes the capture and returns the normalized sample stream. The
// capture rejects further frames afterwards. Calling Finalize again returns
// the same samples.
func (c *Capture) Finalize() []float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finalized = true
	return c.buf
}

// normalizeFrame downmixes interleaved samples to mono and resamples them to
// SampleRate.
func normalizeFrame(f Frame) []float32 {
	mono := downmix(f.Samples, f.Channels)
	if f.SampleRate == SampleRate || f.SampleRate <= 0 {
		return mono
	}
	return resample(mono, f.SampleRate, SampleRate)
}

// downmix averages interleaved channels into a mono stream.
func downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	n := len(samples) / channels
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += samples[i*channels+ch]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// resample converts mono samples between rates using linear interpolation.
// Voice-band content at meeting quality does not warrant a polyphase filter.
func resample(samples []float32, from, to int) []float32 {
	if from == to || len(samples) == 0 {
		return samples
	}
	outLen := int((int64(len(samples))*int64(to) + int64(from)/2) / int64(from))
	if outLen == 0 {
		return nil
	}
	out := make([]float32, outLen)
	ratio := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}

// PCM16ToFloat32 converts signed 16-bit PCM samples to normalized float32.
func PCM16ToFloat32(pcm []int16) []float32 {
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768.0
	}
	return out
}
