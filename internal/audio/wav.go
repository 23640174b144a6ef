package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV archives normalized samples as a 16-bit mono WAV file.
func WriteWAV(path string, samples []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating wav file: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, SampleRate, 16, 1, 1)

	data := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(s * 32767)
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("writing wav data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing wav file: %w", err)
	}
	return nil
}
