// Package store persists completed meetings with retention-based expiry.
// Save has upsert semantics keyed by meeting id so a retried save overwrites
// rather than duplicates.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voxnote/voxnote/internal/meeting"
)

// ErrNotFound is returned by Load for unknown or expired meeting ids.
var ErrNotFound = errors.New("store: meeting not found")

// Store is the persistence contract consumed by the pipeline.
type Store interface {
	// Save upserts the meeting and returns its id.
	Save(ctx context.Context, m *meeting.Meeting) (string, error)
	// Load returns the meeting, or ErrNotFound when missing or expired.
	Load(ctx context.Context, id string) (*meeting.Meeting, error)
	// Recent lists the latest meetings for a guild, newest first.
	Recent(ctx context.Context, guildID string, limit int) ([]meeting.Meeting, error)
	// PruneExpired deletes meetings past their retention expiry.
	PruneExpired(ctx context.Context) (int64, error)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend       string // "sqlite", "postgres", or "memory"
	DSN           string
	RetentionDays int
}

// Open creates the configured store backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
	switch cfg.Backend {
	case "sqlite":
		return OpenSQLite(ctx, cfg.DSN, retention)
	case "postgres":
		return OpenPostgres(ctx, cfg.DSN, retention)
	case "memory":
		return NewMemoryStore(retention), nil
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}

// stampExpiry fills CreatedAt and ExpiresAt on first save.
func stampExpiry(m *meeting.Meeting, retention time.Duration, now time.Time) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.ExpiresAt.IsZero() {
		m.ExpiresAt = m.CreatedAt.Add(retention)
	}
}
