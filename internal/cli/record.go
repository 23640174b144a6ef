package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/voxnote/voxnote/internal/audio"
	"github.com/voxnote/voxnote/internal/config"
	"github.com/voxnote/voxnote/internal/logging"
	"github.com/voxnote/voxnote/internal/meeting"
	"github.com/voxnote/voxnote/internal/metrics"
	"github.com/voxnote/voxnote/internal/session"
	"github.com/voxnote/voxnote/internal/store"
)

// The mic pipeline uses a fixed pseudo-channel so session bookkeeping works
// the same way as for voice channels.
const micChannelID = "mic"

var recordName string

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a meeting from the microphone",
	Long: `Records from the default microphone until interrupted (Ctrl-C) or the
capture ceiling is reached, then transcribes, summarizes, and stores the
meeting like any voice-channel recording.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return recordMic(cfg)
	},
}

func init() {
	recordCmd.Flags().StringVar(&recordName, "name", "", "meeting name (default: timestamped)")
	rootCmd.AddCommand(recordCmd)
}

// consoleNotifier prints pipeline outcomes and unblocks the waiting command.
type consoleNotifier struct {
	done chan error
}

func (n *consoleNotifier) MeetingReady(m *meeting.Meeting) {
	fmt.Printf("\nMeeting saved: %s\n", m.ID)
	fmt.Printf("  Name:     %s\n", m.Name)
	fmt.Printf("  Duration: %s\n", m.Duration().Round(time.Second))
	fmt.Printf("  Summary:  %s\n", m.Notes.Summary)
	for _, d := range m.Notes.Decisions {
		fmt.Printf("  Decision: %s\n", d)
	}
	for _, item := range m.Notes.Actions {
		if item.Owner != "" {
			fmt.Printf("  Action:   %s (owner: %s)\n", item.Task, item.Owner)
		} else {
			fmt.Printf("  Action:   %s\n", item.Task)
		}
	}
	n.done <- nil
}

func (n *consoleNotifier) SessionFailed(st session.Status) {
	n.done <- fmt.Errorf("%s stage failed: %w", st.Failure.Stage, st.Failure.Err)
}

func recordMic(cfg *config.Config) error {
	logger := logging.New(cfg.LogLevel, cfg.LogJSON)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	st, err := store.Open(ctx, store.Config{
		Backend:       cfg.Store.Backend,
		DSN:           cfg.StoreDSN(),
		RetentionDays: cfg.Store.RetentionDays,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	met := metrics.New(prometheus.NewRegistry())
	notifier := &consoleNotifier{done: make(chan error, 1)}
	// No idle timeout for mic capture; silence in the room is expected.
	sc := sessionConfig(cfg)
	sc.IdleTimeout = 0
	sessions := session.NewManager(
		sc, logger, met, newModelManager(cfg, logger, met), st, nil, notifier)

	mic, err := audio.NewMicSource(audio.SampleRate, 1)
	if err != nil {
		return err
	}
	defer mic.Close()

	status, err := sessions.Start("local", micChannelID, recordName)
	if err != nil {
		return err
	}
	if err := mic.Start(func(f audio.Frame) {
		sessions.PushFrame(micChannelID, f)
	}); err != nil {
		sessions.Abandon(micChannelID)
		return err
	}

	fmt.Printf("Recording %q... press Ctrl-C to stop.\n", status.Name)
	<-ctx.Done()
	mic.Stop()

	_, err = sessions.Stop(micChannelID)
	if errors.Is(err, session.ErrEmptyRecording) {
		return errors.New("recording too short, nothing saved")
	}
	if errors.Is(err, session.ErrNotRecording) || errors.Is(err, session.ErrNoSession) {
		err = nil // ceiling auto-stop beat us to it
	}
	if err != nil {
		return err
	}

	fmt.Println("Processing... this may take a few minutes.")
	return <-notifier.done
}
