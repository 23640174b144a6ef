//go:build !llamacpp

package notes

// Available reports whether the native llama backend is compiled in.
func Available() bool { return false }

// New returns ErrBackendUnavailable when built without the llamacpp tag.
func New(cfg Config) (Synthesizer, error) {
	return nil, ErrBackendUnavailable
}
