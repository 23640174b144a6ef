// Package session orchestrates meeting recordings: it drives each session
// from capture through transcription, note synthesis, and persistence, with
// stage-scoped failures that can be retried or abandoned.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/voxnote/voxnote/internal/audio"
	"github.com/voxnote/voxnote/internal/meeting"
)

// State is the lifecycle position of a session.
type State string

const (
	StateIdle         State = "idle"
	StateRecording    State = "recording"
	StateTranscribing State = "transcribing"
	StateSynthesizing State = "synthesizing"
	StateSaving       State = "saving"
	StateError        State = "error"
)

// Stage names a pipeline step for failure tagging and metrics.
type Stage string

const (
	StageTranscribing Stage = "transcribing"
	StageSynthesizing Stage = "synthesizing"
	StageSaving       Stage = "saving"
)

var (
	// ErrAlreadyActive is returned by Start when the channel already has a
	// session.
	ErrAlreadyActive = errors.New("session: a recording is already active in this channel")
	// ErrEmptyRecording is returned by Stop when less than the minimum
	// duration of audio was captured. The session is discarded.
	ErrEmptyRecording = errors.New("session: recording shorter than the minimum duration")
	// ErrNoSession is returned when no session exists for the channel.
	ErrNoSession = errors.New("session: no session for this channel")
	// ErrNotRecording is returned by Stop when the session is already past
	// the recording state.
	ErrNotRecording = errors.New("session: not recording")
	// ErrNotFailed is returned by Retry when the session is not in the
	// error state.
	ErrNotFailed = errors.New("session: nothing to retry")
	// ErrInferenceTimeout tags stage failures caused by the inference
	// deadline.
	ErrInferenceTimeout = errors.New("session: inference timed out")
	// ErrRetryExhausted is returned once the single retained persistence
	// retry has been spent. Only abandon remains.
	ErrRetryExhausted = errors.New("session: persistence retry exhausted")
)

// Failure records which stage failed and why. The session keeps the stage's
// input (audio, transcript, or meeting) so a retry re-runs only that stage.
type Failure struct {
	Stage Stage
	Err   error
}

func (f *Failure) Error() string { return fmt.Sprintf("%s failed: %v", f.Stage, f.Err) }

func (f *Failure) Unwrap() error { return f.Err }

// Status is a point-in-time snapshot of a session.
type Status struct {
	SessionID string
	GuildID   string
	ChannelID string
	Name      string
	State     State
	StartedAt time.Time
	Duration  time.Duration
	Failure   *Failure
}

// session owns one meeting recording. Its capture buffer, transcript, and
// pending meeting are never shared between sessions; the manager's mutex
// serializes state transitions.
type session struct {
	id        string
	guildID   string
	channelID string
	name      string
	startedAt time.Time
	endedAt   time.Time

	state   State
	capture *audio.Capture
	failure *Failure

	// Stage inputs, retained so a retry resumes from the failed stage.
	samples    []float32
	transcript []meeting.Segment
	pending    *meeting.Meeting

	saveAttempts int

	ctx         context.Context
	cancel      context.CancelFunc
	ceilingOnce sync.Once
	idleTimer   *time.Timer
}
