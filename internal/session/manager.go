package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxnote/voxnote/internal/audio"
	"github.com/voxnote/voxnote/internal/events"
	"github.com/voxnote/voxnote/internal/meeting"
	"github.com/voxnote/voxnote/internal/metrics"
	"github.com/voxnote/voxnote/internal/model"
	"github.com/voxnote/voxnote/internal/notes"
	"github.com/voxnote/voxnote/internal/store"
	"github.com/voxnote/voxnote/internal/transcribe"
)

// Config holds the orchestration parameters.
type Config struct {
	// MaxDuration is the hard capture ceiling. Reaching it auto-stops the
	// recording instead of failing it.
	MaxDuration time.Duration
	// MinDuration below which Stop returns ErrEmptyRecording.
	MinDuration time.Duration
	// IdleTimeout stops a recording that receives no frames for this long.
	// Zero disables the timer.
	IdleTimeout time.Duration
	// InferenceTimeout bounds each model stage, queue wait included. Zero
	// means no deadline.
	InferenceTimeout time.Duration
	// ArchiveDir, when set, receives a WAV copy of every finalized capture.
	ArchiveDir string
}

// Notifier receives terminal session outcomes. Methods are called from
// pipeline goroutines and must not block for long.
type Notifier interface {
	MeetingReady(m *meeting.Meeting)
	SessionFailed(st Status)
}

// Manager runs one session per channel. Frame ingestion never blocks on
// inference; the model manager serializes the inference stages process-wide.
type Manager struct {
	cfg      Config
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	models   *model.Manager
	store    store.Store
	events   *events.Publisher
	notifier Notifier

	mu       sync.Mutex
	sessions map[string]*session
}

// NewManager creates a session manager. Metrics, events, and notifier may be
// nil.
func NewManager(cfg Config, logger zerolog.Logger, m *metrics.Metrics, models *model.Manager, st store.Store, ev *events.Publisher, notifier Notifier) *Manager {
	return &Manager{
		cfg:      cfg,
		logger:   logger.With().Str("component", "session").Logger(),
		metrics:  m,
		models:   models,
		store:    st,
		events:   ev,
		notifier: notifier,
		sessions: make(map[string]*session),
	}
}

// SetNotifier installs the outcome receiver. The adapter is constructed
// after the manager, so this runs once during wiring, before any session
// starts.
func (g *Manager) SetNotifier(n Notifier) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notifier = n
}

// Start begins a recording in the channel. An empty name defaults to a
// timestamped one.
func (g *Manager) Start(guildID, channelID, name string) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.sessions[channelID]; ok {
		return Status{}, ErrAlreadyActive
	}

	now := time.Now().UTC()
	if name == "" {
		name = meeting.DefaultName(now)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:        meeting.NewID(),
		guildID:   guildID,
		channelID: channelID,
		name:      name,
		startedAt: now,
		state:     StateRecording,
		capture:   audio.NewCapture(g.cfg.MaxDuration),
		ctx:       ctx,
		cancel:    cancel,
	}
	if g.cfg.IdleTimeout > 0 {
		s.idleTimer = time.AfterFunc(g.cfg.IdleTimeout, func() { g.idleStop(channelID, s.id) })
	}
	g.sessions[channelID] = s

	if g.metrics != nil {
		g.metrics.ActiveSessions.Inc()
		g.metrics.SessionsStarted.Inc()
	}
	g.logger.Info().
		Str("session_id", s.id).
		Str("channel_id", channelID).
		Str("name", name).
		Msg("recording started")

	return g.statusLocked(s), nil
}

// PushFrame appends a captured frame to the channel's recording. Frames that
// arrive outside the recording state are dropped. Reaching the duration
// ceiling auto-stops the session; it is not surfaced as an error.
func (g *Manager) PushFrame(channelID string, f audio.Frame) error {
	g.mu.Lock()
	s, ok := g.sessions[channelID]
	if !ok {
		g.mu.Unlock()
		return ErrNoSession
	}
	if s.state != StateRecording {
		g.mu.Unlock()
		return nil
	}
	if s.idleTimer != nil {
		s.idleTimer.Reset(g.cfg.IdleTimeout)
	}
	g.mu.Unlock()

	if g.metrics != nil {
		g.metrics.FramesReceived.Inc()
	}

	err := s.capture.Append(f)
	switch {
	case errors.Is(err, audio.ErrCapacity):
		s.ceilingOnce.Do(func() {
			if g.metrics != nil {
				g.metrics.CeilingStops.Inc()
			}
			g.logger.Warn().
				Str("session_id", s.id).
				Dur("duration", s.capture.Duration()).
				Msg("capture ceiling reached, auto-stopping")
			go g.autoStop(channelID, s.id)
		})
		return nil
	case errors.Is(err, audio.ErrFinalized):
		return nil
	}
	return err
}

// Stop finalizes the capture and hands the session to the pipeline. A
// recording below the minimum duration is discarded with ErrEmptyRecording.
func (g *Manager) Stop(channelID string) (Status, error) {
	return g.stop(channelID, "")
}

// stop is the id-checked core of Stop. A non-empty sessionID must match the
// channel's current session, so a stale ceiling or idle timer can never stop
// a successor session started after its own was removed.
func (g *Manager) stop(channelID, sessionID string) (Status, error) {
	g.mu.Lock()
	s, ok := g.sessions[channelID]
	if !ok || (sessionID != "" && s.id != sessionID) {
		g.mu.Unlock()
		return Status{}, ErrNoSession
	}
	if s.state != StateRecording {
		st := g.statusLocked(s)
		g.mu.Unlock()
		return st, ErrNotRecording
	}
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}

	dur := s.capture.Duration()
	if dur < g.cfg.MinDuration {
		delete(g.sessions, channelID)
		g.mu.Unlock()
		s.cancel()
		if g.metrics != nil {
			g.metrics.ActiveSessions.Dec()
		}
		g.logger.Info().
			Str("session_id", s.id).
			Dur("duration", dur).
			Msg("recording too short, discarded")
		return Status{SessionID: s.id, ChannelID: channelID, State: StateIdle}, ErrEmptyRecording
	}

	s.endedAt = time.Now().UTC()
	s.samples = s.capture.Finalize()
	s.state = StateTranscribing
	st := g.statusLocked(s)
	g.mu.Unlock()

	if g.metrics != nil {
		g.metrics.CaptureDuration.Observe(dur.Seconds())
	}
	g.logger.Info().
		Str("session_id", s.id).
		Dur("duration", dur).
		Msg("recording stopped")

	if g.cfg.ArchiveDir != "" {
		go g.archive(s)
	}
	go g.runPipeline(s, StageTranscribing)
	return st, nil
}

// Status reports the channel's session snapshot.
func (g *Manager) Status(channelID string) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[channelID]
	if !ok {
		return Status{}, ErrNoSession
	}
	return g.statusLocked(s), nil
}

// Retry re-runs only the failed stage, reusing the inputs retained at
// failure time. A spent persistence retry returns ErrRetryExhausted.
func (g *Manager) Retry(channelID string) (Status, error) {
	g.mu.Lock()
	s, ok := g.sessions[channelID]
	if !ok {
		g.mu.Unlock()
		return Status{}, ErrNoSession
	}
	if s.state != StateError || s.failure == nil {
		st := g.statusLocked(s)
		g.mu.Unlock()
		return st, ErrNotFailed
	}
	if errors.Is(s.failure.Err, ErrRetryExhausted) {
		st := g.statusLocked(s)
		g.mu.Unlock()
		return st, ErrRetryExhausted
	}

	stage := s.failure.Stage
	s.failure = nil
	switch stage {
	case StageTranscribing:
		s.state = StateTranscribing
	case StageSynthesizing:
		s.state = StateSynthesizing
	case StageSaving:
		s.state = StateSaving
	}
	st := g.statusLocked(s)
	g.mu.Unlock()

	g.logger.Info().
		Str("session_id", s.id).
		Str("stage", string(stage)).
		Msg("retrying failed stage")
	go g.runPipeline(s, stage)
	return st, nil
}

// Abandon discards the session. A queued or in-flight inference is canceled
// without side effects.
func (g *Manager) Abandon(channelID string) error {
	return g.abandon(channelID, "")
}

// abandon is the id-checked core of Abandon, mirroring stop.
func (g *Manager) abandon(channelID, sessionID string) error {
	g.mu.Lock()
	s, ok := g.sessions[channelID]
	if !ok || (sessionID != "" && s.id != sessionID) {
		g.mu.Unlock()
		return ErrNoSession
	}
	delete(g.sessions, channelID)
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	g.mu.Unlock()

	s.cancel()
	if g.metrics != nil {
		g.metrics.ActiveSessions.Dec()
		g.metrics.SessionsAbandoned.Inc()
	}
	g.logger.Info().Str("session_id", s.id).Msg("session abandoned")
	g.publishAbandoned(s)
	return nil
}

// autoStop is the ceiling trigger. It runs off the frame path.
func (g *Manager) autoStop(channelID, sessionID string) {
	_, err := g.stop(channelID, sessionID)
	if err != nil && !errors.Is(err, ErrNoSession) && !errors.Is(err, ErrNotRecording) {
		g.logger.Error().Err(err).Str("session_id", sessionID).Msg("auto-stop failed")
	}
}

// idleStop fires when a recording has seen no frames for the idle timeout.
// Enough audio becomes a normal stop; too little is abandoned.
func (g *Manager) idleStop(channelID, sessionID string) {
	g.mu.Lock()
	s, ok := g.sessions[channelID]
	if !ok || s.id != sessionID || s.state != StateRecording {
		g.mu.Unlock()
		return
	}
	dur := s.capture.Duration()
	g.mu.Unlock()

	g.logger.Warn().
		Str("session_id", sessionID).
		Dur("duration", dur).
		Msg("recording idle, stopping")
	if dur >= g.cfg.MinDuration {
		g.stop(channelID, sessionID)
		return
	}
	g.abandon(channelID, sessionID)
}

func (g *Manager) archive(s *session) {
	path := filepath.Join(g.cfg.ArchiveDir, s.id+".wav")
	if err := audio.WriteWAV(path, s.samples); err != nil {
		g.logger.Warn().Err(err).Str("session_id", s.id).Msg("wav archive failed")
		return
	}
	g.logger.Debug().Str("session_id", s.id).Str("path", path).Msg("capture archived")
}

// runPipeline executes the stages from the given one onward. Each stage
// records its own failure; a retry re-enters here at the failed stage.
func (g *Manager) runPipeline(s *session, from Stage) {
	switch from {
	case StageTranscribing:
		if !g.transcribeStage(s) {
			return
		}
		fallthrough
	case StageSynthesizing:
		if !g.synthesizeStage(s) {
			return
		}
		fallthrough
	case StageSaving:
		g.saveStage(s)
	}
}

func (g *Manager) transcribeStage(s *session) bool {
	start := time.Now()
	ctx, cancel := g.stageContext(s)
	defer cancel()

	h, err := g.models.Acquire(ctx, model.KindSpeech)
	if err != nil {
		return g.fail(s, StageTranscribing, g.classify(ctx, err))
	}
	t := h.Resource().(transcribe.Transcriber)
	segs, err := t.Transcribe(ctx, s.samples)
	h.Release()
	if err != nil {
		return g.fail(s, StageTranscribing, g.classify(ctx, err))
	}

	g.mu.Lock()
	s.transcript = segs
	s.state = StateSynthesizing
	g.mu.Unlock()

	g.observeStage(StageTranscribing, start)
	g.logger.Info().
		Str("session_id", s.id).
		Int("segments", len(segs)).
		Dur("elapsed", time.Since(start)).
		Msg("transcription complete")
	return true
}

func (g *Manager) synthesizeStage(s *session) bool {
	start := time.Now()
	ctx, cancel := g.stageContext(s)
	defer cancel()

	h, err := g.models.Acquire(ctx, model.KindLanguage)
	if err != nil {
		return g.fail(s, StageSynthesizing, g.classify(ctx, err))
	}
	syn := h.Resource().(notes.Synthesizer)
	ns, err := syn.Summarize(ctx, s.transcript)
	h.Release()
	if err != nil {
		return g.fail(s, StageSynthesizing, g.classify(ctx, err))
	}

	g.mu.Lock()
	s.pending = &meeting.Meeting{
		ID:         s.id,
		GuildID:    s.guildID,
		ChannelID:  s.channelID,
		Name:       s.name,
		StartedAt:  s.startedAt,
		EndedAt:    s.endedAt,
		Transcript: s.transcript,
		Notes:      ns,
	}
	s.state = StateSaving
	g.mu.Unlock()

	g.observeStage(StageSynthesizing, start)
	g.logger.Info().
		Str("session_id", s.id).
		Dur("elapsed", time.Since(start)).
		Msg("notes synthesized")
	return true
}

func (g *Manager) saveStage(s *session) {
	start := time.Now()
	s.saveAttempts++

	if _, err := g.store.Save(s.ctx, s.pending); err != nil {
		// One retained retry, then the session must be abandoned.
		if s.saveAttempts >= 2 {
			err = errors.Join(ErrRetryExhausted, err)
		}
		g.fail(s, StageSaving, err)
		return
	}
	if s.ctx.Err() != nil {
		return
	}

	g.mu.Lock()
	s.state = StateIdle
	delete(g.sessions, s.channelID)
	g.mu.Unlock()
	s.cancel()

	if g.metrics != nil {
		g.metrics.ActiveSessions.Dec()
		g.metrics.SessionsCompleted.Inc()
		g.metrics.MeetingsSaved.Inc()
	}
	g.observeStage(StageSaving, start)
	g.logger.Info().
		Str("session_id", s.id).
		Str("meeting_id", s.pending.ID).
		Msg("meeting persisted")

	g.publishCompleted(s)
	if g.notifier != nil {
		g.notifier.MeetingReady(s.pending)
	}
}

// fail moves the session to the error state, keeping the stage inputs for a
// retry. Returns false so stage functions can tail-call it.
func (g *Manager) fail(s *session, stage Stage, err error) bool {
	g.mu.Lock()
	if s.ctx.Err() != nil {
		// Abandoned while the stage was in flight.
		g.mu.Unlock()
		return false
	}
	s.state = StateError
	s.failure = &Failure{Stage: stage, Err: err}
	st := g.statusLocked(s)
	g.mu.Unlock()

	if g.metrics != nil {
		g.metrics.SessionsFailed.WithLabelValues(string(stage)).Inc()
	}
	g.logger.Error().Err(err).
		Str("session_id", s.id).
		Str("stage", string(stage)).
		Msg("stage failed")

	g.publishFailed(s, stage, err)
	if g.notifier != nil {
		g.notifier.SessionFailed(st)
	}
	return false
}

// stageContext scopes a model stage to the session and the inference
// deadline.
func (g *Manager) stageContext(s *session) (context.Context, context.CancelFunc) {
	if g.cfg.InferenceTimeout > 0 {
		return context.WithTimeout(s.ctx, g.cfg.InferenceTimeout)
	}
	return context.WithCancel(s.ctx)
}

// classify tags deadline-caused stage errors as inference timeouts.
func (g *Manager) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Join(ErrInferenceTimeout, err)
	}
	return err
}

func (g *Manager) observeStage(stage Stage, start time.Time) {
	if g.metrics != nil {
		g.metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	}
}

func (g *Manager) statusLocked(s *session) Status {
	return Status{
		SessionID: s.id,
		GuildID:   s.guildID,
		ChannelID: s.channelID,
		Name:      s.name,
		State:     s.state,
		StartedAt: s.startedAt,
		Duration:  s.capture.Duration(),
		Failure:   s.failure,
	}
}

func (g *Manager) publishCompleted(s *session) {
	m := s.pending
	err := g.events.MeetingCompleted(context.Background(), events.MeetingCompletedEvent{
		MeetingID:       m.ID,
		GuildID:         m.GuildID,
		ChannelID:       m.ChannelID,
		Name:            m.Name,
		DurationSeconds: m.Duration().Seconds(),
		SegmentCount:    len(m.Transcript),
		DecisionCount:   len(m.Notes.Decisions),
		ActionCount:     len(m.Notes.Actions),
	})
	if err != nil {
		g.logger.Warn().Err(err).Msg("completion event not published")
	}
}

func (g *Manager) publishFailed(s *session, stage Stage, cause error) {
	err := g.events.MeetingFailed(context.Background(), events.MeetingFailedEvent{
		SessionID: s.id,
		GuildID:   s.guildID,
		ChannelID: s.channelID,
		Stage:     string(stage),
		Reason:    cause.Error(),
	})
	if err != nil {
		g.logger.Warn().Err(err).Msg("failure event not published")
	}
}

func (g *Manager) publishAbandoned(s *session) {
	err := g.events.MeetingAbandoned(context.Background(), events.MeetingAbandonedEvent{
		SessionID: s.id,
		GuildID:   s.guildID,
		ChannelID: s.channelID,
	})
	if err != nil {
		g.logger.Warn().Err(err).Msg("abandon event not published")
	}
}
