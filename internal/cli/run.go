package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/voxnote/voxnote/internal/config"
	"github.com/voxnote/voxnote/internal/discord"
	"github.com/voxnote/voxnote/internal/events"
	"github.com/voxnote/voxnote/internal/logging"
	"github.com/voxnote/voxnote/internal/metrics"
	"github.com/voxnote/voxnote/internal/model"
	"github.com/voxnote/voxnote/internal/notes"
	"github.com/voxnote/voxnote/internal/session"
	"github.com/voxnote/voxnote/internal/store"
	"github.com/voxnote/voxnote/internal/transcribe"
	"github.com/voxnote/voxnote/internal/version"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the Discord bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runBot(cfg)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runBot(cfg *config.Config) error {
	logger := logging.New(cfg.LogLevel, cfg.LogJSON)
	logger.Info().Str("version", version.Version).Msg("starting voxnote")

	if !transcribe.Available() {
		logger.Warn().Msg("built without whispercpp; transcription stages will fail")
	}
	if !notes.Available() {
		logger.Warn().Msg("built without llamacpp; synthesis stages will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	met := metrics.New(reg)
	if cfg.Metrics.ListenAddr != "" {
		go serveMetrics(logger, reg, cfg.Metrics.ListenAddr)
	}

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

	var ev *events.Publisher
	if cfg.Events.RedisAddr != "" {
		ev, err = events.NewPublisher(ctx, cfg.Events.RedisAddr, logger)
		if err != nil {
			return err
		}
		defer ev.Close()
	}

	sessions := session.NewManager(
		sessionConfig(cfg), logger, met, newModelManager(cfg, logger, met), st, ev, nil)

	adapter, err := discord.New(discord.Config{
		Token:         cfg.Discord.Token,
		CommandPrefix: cfg.Discord.CommandPrefix,
	}, logger, sessions, st)
	if err != nil {
		return err
	}
	sessions.SetNotifier(adapter)

	go pruneLoop(ctx, logger, met, st)

	return adapter.Run(ctx)
}

// newModelManager wires the arbitrated loaders for both model kinds.
func newModelManager(cfg *config.Config, logger zerolog.Logger, met *metrics.Metrics) *model.Manager {
	models := model.NewManager(logger, met)
	models.Register(model.KindSpeech, func() (model.Resource, error) {
		return transcribe.New(transcribe.Config{
			ModelPath: cfg.Speech.ModelPath,
			Language:  cfg.Speech.Language,
			Threads:   cfg.Speech.Threads,
		})
	})
	models.Register(model.KindLanguage, func() (model.Resource, error) {
		return notes.New(notes.Config{
			ModelPath:   cfg.LanguageModel.ModelPath,
			ContextSize: cfg.LanguageModel.ContextSize,
			GPULayers:   cfg.LanguageModel.GPULayers,
			Threads:     cfg.LanguageModel.Threads,
			MaxTokens:   cfg.LanguageModel.MaxTokens,
		})
	})
	return models
}

func sessionConfig(cfg *config.Config) session.Config {
	sc := session.Config{
		MaxDuration:      cfg.Capture.MaxDuration,
		MinDuration:      cfg.Capture.MinDuration,
		IdleTimeout:      cfg.Capture.IdleTimeout,
		InferenceTimeout: cfg.Pipeline.InferenceTimeout,
	}
	if cfg.Capture.ArchiveWAV {
		sc.ArchiveDir = filepath.Join(cfg.DataDir, "archive")
		os.MkdirAll(sc.ArchiveDir, 0755)
	}
	return sc
}

func serveMetrics(logger zerolog.Logger, reg *prometheus.Registry, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.Info().Str("addr", addr).Msg("metrics listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}

// pruneLoop deletes expired meetings once at startup and then hourly.
func pruneLoop(ctx context.Context, logger zerolog.Logger, met *metrics.Metrics, st store.Store) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		n, err := st.PruneExpired(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Error().Err(err).Msg("retention prune failed")
			}
		} else if n > 0 {
			met.MeetingsPruned.Add(float64(n))
			logger.Info().Int64("pruned", n).Msg("expired meetings deleted")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
