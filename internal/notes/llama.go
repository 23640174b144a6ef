//go:build llamacpp

package notes

import (
	"context"
	"fmt"

	llama "github.com/go-skynet/go-llama.cpp"

	"github.com/voxnote/voxnote/internal/meeting"
)

// Available reports whether the native llama backend is compiled in.
func Available() bool { return true }

type llamaSynthesizer struct {
	model *llama.LLama
	cfg   Config
}

// New loads the GGUF model from cfg.ModelPath. When GPU offload fails the
// model is reloaded CPU-only rather than failing the stage. The caller must
// call Close() to release the weights.
func New(cfg Config) (Synthesizer, error) {
	model, err := load(cfg, cfg.GPULayers)
	if err != nil && cfg.GPULayers > 0 {
		model, err = load(cfg, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("notes: load model %q: %w", cfg.ModelPath, err)
	}
	return &llamaSynthesizer{model: model, cfg: cfg}, nil
}

func load(cfg Config, gpuLayers int) (*llama.LLama, error) {
	return llama.New(cfg.ModelPath,
		llama.SetContext(cfg.ContextSize),
		llama.SetGPULayers(gpuLayers),
	)
}

// Close releases the model weights.
func (s *llamaSynthesizer) Close() error {
	if s.model != nil {
		s.model.Free()
		s.model = nil
	}
	return nil
}

// Summarize renders the prompt, runs generation on a worker goroutine so the
// context deadline is honored, and parses the structured output. Unstructured
// output degrades to a raw-text summary instead of failing.
func (s *llamaSynthesizer) Summarize(ctx context.Context, segments []meeting.Segment) (meeting.Notes, error) {
	if err := ctx.Err(); err != nil {
		return meeting.Notes{}, err
	}

	prompt := buildPrompt(transcriptForPrompt(segments, s.cfg.ContextSize))

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := s.model.Predict(prompt,
			llama.SetTemperature(0.3),
			llama.SetTokens(s.cfg.MaxTokens),
			llama.SetTopP(0.9),
			llama.SetTopK(40),
			llama.SetThreads(s.cfg.Threads),
			llama.SetStopWords("</s>", "<|im_end|>"),
		)
		done <- result{text, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return meeting.Notes{}, fmt.Errorf("notes: generate: %w", r.err)
		}
		n, _ := parseNotes(r.text)
		return n, nil
	case <-ctx.Done():
		return meeting.Notes{}, ctx.Err()
	}
}
