// Package notes synthesizes structured meeting notes from a transcript using
// a local llama.cpp model.
//
// The native backend requires the llamacpp build tag; without it New returns
// ErrBackendUnavailable.
package notes

import (
	"context"
	"errors"

	"github.com/voxnote/voxnote/internal/meeting"
)

// ErrBackendUnavailable indicates the binary was built without the native
// llama backend.
var ErrBackendUnavailable = errors.New("notes: built without llamacpp support")

// Synthesizer produces meeting notes from transcript segments. When the model
// emits output with no discernible structure the raw text is preserved as the
// summary and the decision/action lists are left empty; that is a degraded
// result, not an error.
type Synthesizer interface {
	Summarize(ctx context.Context, segments []meeting.Segment) (meeting.Notes, error)
	Close() error
}

// Config holds language model parameters.
type Config struct {
	ModelPath   string
	ContextSize int
	GPULayers   int
	Threads     int
	MaxTokens   int
}
