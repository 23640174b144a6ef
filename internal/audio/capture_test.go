package audio

import (
	"errors"
	"math"
	"testing"
	"time"
)

// frameOf builds a frame of the given duration filled with a constant value.
func frameOf(d time.Duration, rate, channels int, seq uint64) Frame {
	n := int(d.Seconds()*float64(rate)) * channels
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.25
	}
	return Frame{Samples: samples, SampleRate: rate, Channels: channels, Seq: seq}
}

func TestCaptureAccumulatesDuration(t *testing.T) {
	c := NewCapture(time.Hour)

	// 100 frames of 20ms at 48kHz stereo = 2 seconds.
	for i := 0; i < 100; i++ {
		if err := c.Append(frameOf(20*time.Millisecond, 48000, 2, uint64(i))); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got := c.Duration()
	want := 2 * time.Second
	// Tolerance of one frame period.
	if diff := got - want; diff < -20*time.Millisecond || diff > 20*time.Millisecond {
		t.Errorf("Duration() = %v, want %v ±20ms", got, want)
	}
}

func TestCaptureCeiling(t *testing.T) {
	c := NewCapture(time.Second)

	var capErr error
	for i := 0; i < 200; i++ {
		err := c.Append(frameOf(20*time.Millisecond, SampleRate, 1, uint64(i)))
		if err != nil {
			capErr = err
			break
		}
	}

	if !errors.Is(capErr, ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", capErr)
	}
	if got := c.Duration(); got > time.Second {
		t.Errorf("Duration() = %v, exceeds 1s ceiling", got)
	}
	if got := len(c.Finalize()); got != SampleRate {
		t.Errorf("Finalize() returned %d samples, want exactly %d at ceiling", got, SampleRate)
	}
}

func TestCaptureRejectsAfterFinalize(t *testing.T) {
	c := NewCapture(time.Hour)
	if err := c.Append(frameOf(20*time.Millisecond, SampleRate, 1, 0)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	first := c.Finalize()
	if err := c.Append(frameOf(20*time.Millisecond, SampleRate, 1, 1)); !errors.Is(err, ErrFinalized) {
		t.Errorf("Append() after Finalize = %v, want ErrFinalized", err)
	}
	if second := c.Finalize(); len(second) != len(first) {
		t.Errorf("repeated Finalize() returned %d samples, want %d", len(second), len(first))
	}
}

func TestDownmixAveragesChannels(t *testing.T) {
	stereo := []float32{1, 0, 0.5, 0.5, -1, 1}
	mono := downmix(stereo, 2)
	want := []float32{0.5, 0.5, 0}
	if len(mono) != len(want) {
		t.Fatalf("downmix returned %d samples, want %d", len(mono), len(want))
	}
	for i := range want {
		if math.Abs(float64(mono[i]-want[i])) > 1e-6 {
			t.Errorf("mono[%d] = %f, want %f", i, mono[i], want[i])
		}
	}
}

func TestResampleLength(t *testing.T) {
	cases := []struct {
		name     string
		in       int
		from, to int
		want     int
	}{
		{"48k to 16k", 960, 48000, 16000, 320},
		{"44.1k to 16k", 882, 44100, 16000, 320},
		{"16k passthrough", 320, 16000, 16000, 320},
		{"8k upsample", 160, 8000, 16000, 320},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := make([]float32, tc.in)
			out := resample(in, tc.from, tc.to)
			if len(out) != tc.want {
				t.Errorf("resample(%d, %d->%d) = %d samples, want %d", tc.in, tc.from, tc.to, len(out), tc.want)
			}
		})
	}
}

func TestResamplePreservesConstantSignal(t *testing.T) {
	in := make([]float32, 480)
	for i := range in {
		in[i] = 0.7
	}
	out := resample(in, 48000, 16000)
	for i, s := range out {
		if math.Abs(float64(s-0.7)) > 1e-5 {
			t.Fatalf("out[%d] = %f, want 0.7", i, s)
		}
	}
}

func TestPCM16ToFloat32(t *testing.T) {
	pcm := []int16{0, 16384, -32768}
	out := PCM16ToFloat32(pcm)
	want := []float32{0, 0.5, -1}
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > 1e-6 {
			t.Errorf("out[%d] = %f, want %f", i, out[i], want[i])
		}
	}
}
