package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxnote/voxnote/internal/meeting"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS meetings (
	id          TEXT PRIMARY KEY,
	guild_id    TEXT NOT NULL,
	channel_id  TEXT NOT NULL,
	name        TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	ended_at    TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	transcript  JSONB NOT NULL,
	notes       JSONB NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_meetings_guild_started ON meetings(guild_id, started_at DESC);
`

// PostgresStore persists meetings in PostgreSQL.
type PostgresStore struct {
	db        *pgxpool.Pool
	retention time.Duration
}

// OpenPostgres connects to the database and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string, retention time.Duration) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if _, err := db.Exec(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing postgres schema: %w", err)
	}

	return &PostgresStore{db: db, retention: retention}, nil
}

// Save upserts the meeting keyed by id.
func (s *PostgresStore) Save(ctx context.Context, m *meeting.Meeting) (string, error) {
	stampExpiry(m, s.retention, time.Now().UTC())

	transcript, notes, err := encodeJSON(m)
	if err != nil {
		return "", err
	}

	const query = `
	INSERT INTO meetings (id, guild_id, channel_id, name, started_at, ended_at, created_at, transcript, notes, expires_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE SET
		guild_id = EXCLUDED.guild_id,
		channel_id = EXCLUDED.channel_id,
		name = EXCLUDED.name,
		started_at = EXCLUDED.started_at,
		ended_at = EXCLUDED.ended_at,
		created_at = EXCLUDED.created_at,
		transcript = EXCLUDED.transcript,
		notes = EXCLUDED.notes,
		expires_at = EXCLUDED.expires_at`

	_, err = s.db.Exec(ctx, query,
		m.ID, m.GuildID, m.ChannelID, m.Name,
		m.StartedAt, m.EndedAt, m.CreatedAt,
		transcript, notes, m.ExpiresAt,
	)
	if err != nil {
		return "", fmt.Errorf("saving meeting %s: %w", m.ID, err)
	}
	return m.ID, nil
}

// Load returns the meeting, treating expired rows as absent.
func (s *PostgresStore) Load(ctx context.Context, id string) (*meeting.Meeting, error) {
	const query = `
	SELECT id, guild_id, channel_id, name, started_at, ended_at, created_at, transcript, notes, expires_at
	FROM meetings WHERE id = $1 AND expires_at > now()`

	m, err := scanPgMeeting(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading meeting %s: %w", id, err)
	}
	return m, nil
}

// Recent lists the latest unexpired meetings for a guild, newest first.
func (s *PostgresStore) Recent(ctx context.Context, guildID string, limit int) ([]meeting.Meeting, error) {
	const query = `
	SELECT id, guild_id, channel_id, name, started_at, ended_at, created_at, transcript, notes, expires_at
	FROM meetings WHERE guild_id = $1 AND expires_at > now()
	ORDER BY started_at DESC LIMIT $2`

	rows, err := s.db.Query(ctx, query, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing meetings for guild %s: %w", guildID, err)
	}
	defer rows.Close()

	var out []meeting.Meeting
	for rows.Next() {
		m, err := scanPgMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("listing meetings for guild %s: %w", guildID, err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// PruneExpired deletes meetings past their retention expiry.
func (s *PostgresStore) PruneExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM meetings WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("pruning expired meetings: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func scanPgMeeting(row pgx.Row) (*meeting.Meeting, error) {
	var m meeting.Meeting
	var transcript, notes []byte

	err := row.Scan(&m.ID, &m.GuildID, &m.ChannelID, &m.Name,
		&m.StartedAt, &m.EndedAt, &m.CreatedAt, &transcript, &notes, &m.ExpiresAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(transcript, &m.Transcript); err != nil {
		return nil, fmt.Errorf("decoding transcript: %w", err)
	}
	if err := json.Unmarshal(notes, &m.Notes); err != nil {
		return nil, fmt.Errorf("decoding notes: %w", err)
	}
	return &m, nil
}
