//go:build !whispercpp

package transcribe

// Available reports whether the native whisper backend is compiled in.
func Available() bool { return false }

// New returns ErrBackendUnavailable when built without the whispercpp tag.
func New(cfg Config) (Transcriber, error) {
	return nil, ErrBackendUnavailable
}
