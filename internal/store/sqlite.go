package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/voxnote/voxnote/internal/meeting"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS meetings (
	id          TEXT PRIMARY KEY,
	guild_id    TEXT NOT NULL,
	channel_id  TEXT NOT NULL,
	name        TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	ended_at    TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	transcript  TEXT NOT NULL,
	notes       TEXT NOT NULL,
	expires_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_meetings_guild_started ON meetings(guild_id, started_at DESC);
`

// SQLiteStore persists meetings in a local SQLite database.
type SQLiteStore struct {
	db        *sql.DB
	retention time.Duration
}

// OpenSQLite opens (creating if needed) the database at path and ensures the
// schema exists.
func OpenSQLite(ctx context.Context, path string, retention time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %q: %w", path, err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db, retention: retention}, nil
}

// Save upserts the meeting keyed by id.
func (s *SQLiteStore) Save(ctx context.Context, m *meeting.Meeting) (string, error) {
	stampExpiry(m, s.retention, time.Now().UTC())

	transcript, notes, err := encodeJSON(m)
	if err != nil {
		return "", err
	}

	const query = `
	INSERT INTO meetings (id, guild_id, channel_id, name, started_at, ended_at, created_at, transcript, notes, expires_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		guild_id = excluded.guild_id,
		channel_id = excluded.channel_id,
		name = excluded.name,
		started_at = excluded.started_at,
		ended_at = excluded.ended_at,
		created_at = excluded.created_at,
		transcript = excluded.transcript,
		notes = excluded.notes,
		expires_at = excluded.expires_at`

	_, err = s.db.ExecContext(ctx, query,
		m.ID, m.GuildID, m.ChannelID, m.Name,
		formatTime(m.StartedAt), formatTime(m.EndedAt), formatTime(m.CreatedAt),
		transcript, notes, formatTime(m.ExpiresAt),
	)
	if err != nil {
		return "", fmt.Errorf("saving meeting %s: %w", m.ID, err)
	}
	return m.ID, nil
}

// Load returns the meeting, treating expired rows as absent.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*meeting.Meeting, error) {
	const query = `
	SELECT id, guild_id, channel_id, name, started_at, ended_at, created_at, transcript, notes, expires_at
	FROM meetings WHERE id = ? AND expires_at > ?`

	row := s.db.QueryRowContext(ctx, query, id, formatTime(time.Now().UTC()))
	m, err := scanMeeting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading meeting %s: %w", id, err)
	}
	return m, nil
}

// Recent lists the latest unexpired meetings for a guild, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, guildID string, limit int) ([]meeting.Meeting, error) {
	const query = `
	SELECT id, guild_id, channel_id, name, started_at, ended_at, created_at, transcript, notes, expires_at
	FROM meetings WHERE guild_id = ? AND expires_at > ?
	ORDER BY started_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, guildID, formatTime(time.Now().UTC()), limit)
	if err != nil {
		return nil, fmt.Errorf("listing meetings for guild %s: %w", guildID, err)
	}
	defer rows.Close()

	var out []meeting.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("listing meetings for guild %s: %w", guildID, err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// PruneExpired deletes meetings past their retention expiry.
func (s *SQLiteStore) PruneExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM meetings WHERE expires_at <= ?`, formatTime(time.Now().UTC()))
	if err != nil {
		return 0, fmt.Errorf("pruning expired meetings: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row rowScanner) (*meeting.Meeting, error) {
	var m meeting.Meeting
	var startedAt, endedAt, createdAt, expiresAt string
	var transcript, notes []byte

	err := row.Scan(&m.ID, &m.GuildID, &m.ChannelID, &m.Name,
		&startedAt, &endedAt, &createdAt, &transcript, &notes, &expiresAt)
	if err != nil {
		return nil, err
	}

	for _, f := range []struct {
		raw  string
		dest *time.Time
	}{
		{startedAt, &m.StartedAt},
		{endedAt, &m.EndedAt},
		{createdAt, &m.CreatedAt},
		{expiresAt, &m.ExpiresAt},
	} {
		t, err := time.Parse(time.RFC3339, f.raw)
		if err != nil {
			return nil, fmt.Errorf("parsing stored timestamp %q: %w", f.raw, err)
		}
		*f.dest = t
	}

	if err := json.Unmarshal(transcript, &m.Transcript); err != nil {
		return nil, fmt.Errorf("decoding transcript: %w", err)
	}
	if err := json.Unmarshal(notes, &m.Notes); err != nil {
		return nil, fmt.Errorf("decoding notes: %w", err)
	}
	return &m, nil
}

func encodeJSON(m *meeting.Meeting) (transcript, notes []byte, err error) {
	transcript, err = json.Marshal(m.Transcript)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding transcript: %w", err)
	}
	notes, err = json.Marshal(m.Notes)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding notes: %w", err)
	}
	return transcript, notes, nil
}

func formatTime(t time.Time) string {
	// Second precision and fixed width keep stored timestamps lexicographically
	// comparable in SQL.
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}
