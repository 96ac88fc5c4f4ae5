package song

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the songs and setlists tables. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS songs (
    id         UUID PRIMARY KEY,
    title      TEXT NOT NULL,
    key        TEXT NOT NULL DEFAULT '',
    bpm        INTEGER NOT NULL DEFAULT 120,
    lyrics     TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_songs_title ON songs(title);

CREATE TABLE IF NOT EXISTS setlists (
    id         UUID PRIMARY KEY,
    name       TEXT NOT NULL,
    song_ids   UUID[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

var (
	_ Store        = (*PostgresStore)(nil)
	_ SetlistStore = (*PostgresStore)(nil)
)

// NewPostgresStore creates a store over db. The caller is responsible for
// calling [PostgresStore.Migrate] before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("song: migrate: %w", err)
	}
	return nil
}

// List implements Store
func (s *PostgresStore) List(ctx context.Context) ([]Song, error) {
	const query = `
		SELECT id::text, title, key, bpm, lyrics
		FROM songs
		ORDER BY title, id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("song: list: %w", err)
	}
	defer rows.Close()

	var songs []Song
	for rows.Next() {
		var sg Song
		if err := rows.Scan(&sg.ID, &sg.Title, &sg.Key, &sg.BPM, &sg.Lyrics); err != nil {
			return nil, fmt.Errorf("song: list scan: %w", err)
		}
		if sg.BPM <= 0 {
			sg.BPM = DefaultBPM
		}
		songs = append(songs, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("song: list rows: %w", err)
	}
	return songs, nil
}

// Get implements Store. IDs that are not UUIDs are rejected before
// reaching the database.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Song, error) {
	if err := ValidateID(id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	const query = `
		SELECT id::text, title, key, bpm, lyrics
		FROM songs
		WHERE id = $1`

	var sg Song
	err := s.db.QueryRow(ctx, query, id).Scan(&sg.ID, &sg.Title, &sg.Key, &sg.BPM, &sg.Lyrics)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("song: get %q: %w", id, err)
	}
	if sg.BPM <= 0 {
		sg.BPM = DefaultBPM
	}
	return &sg, nil
}

// Import upserts songs, e.g. from a YAML library, so a database can be
// seeded from a file.
func (s *PostgresStore) Import(ctx context.Context, songs []Song) error {
	const query = `
		INSERT INTO songs (id, title, key, bpm, lyrics)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, key = EXCLUDED.key,
			bpm = EXCLUDED.bpm, lyrics = EXCLUDED.lyrics`

	for i := range songs {
		sg := songs[i]
		if err := sg.Normalize(); err != nil {
			return fmt.Errorf("song: import %d: %w", i, err)
		}
		if _, err := s.db.Exec(ctx, query, sg.ID, sg.Title, sg.Key, sg.BPM, sg.Lyrics); err != nil {
			return fmt.Errorf("song: import %q: %w", sg.Title, err)
		}
	}
	return nil
}

// Setlists implements SetlistStore
func (s *PostgresStore) Setlists(ctx context.Context) ([]Setlist, error) {
	const query = `
		SELECT id::text, name, song_ids::text[]
		FROM setlists
		ORDER BY name, id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("song: list setlists: %w", err)
	}
	defer rows.Close()

	var lists []Setlist
	for rows.Next() {
		var l Setlist
		if err := rows.Scan(&l.ID, &l.Name, &l.SongIDs); err != nil {
			return nil, fmt.Errorf("song: setlist scan: %w", err)
		}
		lists = append(lists, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("song: setlist rows: %w", err)
	}
	return lists, nil
}

// ImportSetlists upserts setlists. Import their songs first.
func (s *PostgresStore) ImportSetlists(ctx context.Context, lists []Setlist) error {
	const query = `
		INSERT INTO setlists (id, name, song_ids)
		VALUES ($1, $2, $3::uuid[])
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, song_ids = EXCLUDED.song_ids`

	for i := range lists {
		l := lists[i]
		if err := l.Normalize(); err != nil {
			return fmt.Errorf("song: import setlist %d: %w", i, err)
		}
		if _, err := s.db.Exec(ctx, query, l.ID, l.Name, l.SongIDs); err != nil {
			return fmt.Errorf("song: import setlist %q: %w", l.Name, err)
		}
	}
	return nil
}
