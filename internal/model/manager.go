// Package model arbitrates residency of the two heavyweight on-device models.
// Only one model kind is resident at a time; acquisition is served in arrival
// order and released models are unloaded immediately to stay inside the memory
// budget.
package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxnote/voxnote/internal/metrics"
)

// Kind identifies one of the two arbitrated model classes.
type Kind string

const (
	// KindSpeech is the speech-to-text model.
	KindSpeech Kind = "speech"
	// KindLanguage is the note-synthesis language model.
	KindLanguage Kind = "language"
)

// ErrLoad wraps failures to load model weights. The stage fails; the process
// does not.
var ErrLoad = errors.New("model: load failed")

// Resource is a loaded model. Close must fully release its memory.
type Resource interface {
	Close() error
}

// LoaderFunc loads the weights for a kind. Called with no model resident.
type LoaderFunc func() (Resource, error)

// Handle is an exclusive grant on a loaded model.
type Handle struct {
	kind Kind
	res  Resource
	mgr  *Manager

	once sync.Once
}

// Kind returns the granted model kind.
func (h *Handle) Kind() Kind { return h.kind }

// Resource returns the loaded model.
func (h *Handle) Resource() Resource { return h.res }

// Release returns the grant and unloads the model. Safe to call more than
// once.
func (h *Handle) Release() {
	h.once.Do(func() { h.mgr.release(h) })
}

type waiter struct {
	kind    Kind
	ready   chan struct{}
	granted bool
}

// Manager owns the process-wide residency state. All mutations go through a
// single critical section; loading and unloading happen outside it while the
// caller holds the grant, so a slow load never blocks enqueueing.
type Manager struct {
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	loaders  map[Kind]LoaderFunc
	resident Kind
	refs     int
	waiters  []*waiter
}

// NewManager creates a manager with no registered loaders. Metrics may be nil.
func NewManager(logger zerolog.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		logger:  logger.With().Str("component", "model").Logger(),
		loaders: make(map[Kind]LoaderFunc),
		metrics: m,
	}
}

// Register installs the loader for a kind.
func (m *Manager) Register(kind Kind, load LoaderFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaders[kind] = load
}

// Resident reports which kind is currently loaded, if any.
func (m *Manager) Resident() (Kind, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resident, m.refs > 0
}

// Acquire waits for the grant in FIFO order, loads the model, and returns an
// exclusive handle. Canceling the context while queued removes the waiter
// without side effects. A load failure releases the grant and returns an
// error wrapping ErrLoad.
func (m *Manager) Acquire(ctx context.Context, kind Kind) (*Handle, error) {
	m.mu.Lock()
	load, ok := m.loaders[kind]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("model: no loader registered for kind %q", kind)
	}

	w := &waiter{kind: kind, ready: make(chan struct{})}
	m.waiters = append(m.waiters, w)
	m.dispatchLocked()
	m.mu.Unlock()

	waitStart := time.Now()
	select {
	case <-w.ready:
	case <-ctx.Done():
		m.mu.Lock()
		if !w.granted {
			m.removeWaiterLocked(w)
			m.mu.Unlock()
			return nil, ctx.Err()
		}
		// The grant raced the cancellation; give it back.
		m.refs = 0
		m.resident = ""
		m.dispatchLocked()
		m.mu.Unlock()
		return nil, ctx.Err()
	}

	if m.metrics != nil {
		m.metrics.ModelQueueWait.Observe(time.Since(waitStart).Seconds())
	}

	loadStart := time.Now()
	res, err := load()
	if err != nil {
		if m.metrics != nil {
			m.metrics.ModelLoadFails.WithLabelValues(string(kind)).Inc()
		}
		m.mu.Lock()
		m.refs = 0
		m.resident = ""
		m.dispatchLocked()
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s: %v", ErrLoad, kind, err)
	}

	if m.metrics != nil {
		m.metrics.ModelLoads.WithLabelValues(string(kind)).Inc()
	}
	m.logger.Info().
		Str("kind", string(kind)).
		Dur("load_time", time.Since(loadStart)).
		Msg("model loaded")

	return &Handle{kind: kind, res: res, mgr: m}, nil
}

// release unloads the handle's resource and hands the grant to the next
// waiter.
func (m *Manager) release(h *Handle) {
	// Unload before clearing residency so the next load never overlaps it.
	if err := h.res.Close(); err != nil {
		m.logger.Warn().Err(err).Str("kind", string(h.kind)).Msg("model unload failed")
	}
	if m.metrics != nil {
		m.metrics.ModelUnloads.WithLabelValues(string(h.kind)).Inc()
	}
	m.logger.Debug().Str("kind", string(h.kind)).Msg("model unloaded")

	m.mu.Lock()
	m.refs = 0
	m.resident = ""
	m.dispatchLocked()
	m.mu.Unlock()
}

// dispatchLocked grants the head waiter when nothing is resident.
func (m *Manager) dispatchLocked() {
	if m.refs > 0 || len(m.waiters) == 0 {
		return
	}
	w := m.waiters[0]
	m.waiters = m.waiters[1:]
	m.refs = 1
	m.resident = w.kind
	w.granted = true
	close(w.ready)
}

func (m *Manager) removeWaiterLocked(target *waiter) {
	for i, w := range m.waiters {
		if w == target {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			return
		}
	}
}
