package song

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	amazingGraceID = "3f0c2a4e-5b6d-4e7f-8a9b-0c1d2e3f4a5b"
	holyID         = "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"
)

// ---------------------------------------------------------------------------
// Test helpers: mock DB types
// ---------------------------------------------------------------------------

type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

type mockRows struct {
	data   [][]any
	idx    int
	err    error
	closed bool
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	return scanInto(r.data[r.idx-1], dest)
}

func scanInto(row []any, dest []any) error {
	if len(dest) != len(row) {
		return fmt.Errorf("scan: expected %d columns, got %d destinations", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *[]string:
			*d = v.([]string)
		default:
			return fmt.Errorf("scan: unsupported type at index %d: %T", i, dest[i])
		}
	}
	return nil
}

type mockDB struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFunc != nil {
		return m.queryRowFunc(ctx, sql, args...)
	}
	return &mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, sql, args...)
	}
	return &mockRows{}, nil
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

// ---------------------------------------------------------------------------
// Song / MemStore
// ---------------------------------------------------------------------------

func TestValidateID(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateID(amazingGraceID))
	assert.NoError(t, ValidateID(strings.ToUpper(amazingGraceID)))
	assert.Error(t, ValidateID("42"))
	assert.Error(t, ValidateID(""))
	assert.Error(t, ValidateID("{"+amazingGraceID+"}"))
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	s := Song{Title: "  Amazing Grace "}
	require.NoError(t, s.Normalize())
	assert.Equal(t, "Amazing Grace", s.Title)
	assert.Equal(t, DefaultBPM, s.BPM)
	assert.NoError(t, ValidateID(s.ID))
	assert.Equal(t, TitleID("amazing grace"), s.ID, "missing ID is derived from the title")

	assert.Error(t, (&Song{}).Normalize())
	assert.Error(t, (&Song{Title: "x", ID: "17"}).Normalize())
}

func TestMemStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := NewMemStore(
		Song{ID: holyID, Title: "Holy", Key: "D", BPM: 72},
		Song{ID: amazingGraceID, Title: "Amazing Grace", Key: "G"},
	)
	require.NoError(t, err)

	songs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, songs, 2)
	assert.Equal(t, "Amazing Grace", songs[0].Title)
	assert.Equal(t, DefaultBPM, songs[0].BPM)
	assert.Equal(t, 72, songs[1].BPM)

	got, err := store.Get(ctx, strings.ToUpper(holyID))
	require.NoError(t, err)
	assert.Equal(t, "Holy", got.Title)

	_, err = store.Get(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemStoreRejectsDuplicates(t *testing.T) {
	t.Parallel()
	_, err := NewMemStore(
		Song{ID: holyID, Title: "Holy"},
		Song{ID: holyID, Title: "Holy again"},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

// ---------------------------------------------------------------------------
// YAML library
// ---------------------------------------------------------------------------

const libraryYAML = `
songs:
  - id: 3f0c2a4e-5b6d-4e7f-8a9b-0c1d2e3f4a5b
    title: Amazing Grace
    key: G
    bpm: 90
    lyrics: |
      [G]Amazing [C]grace how [G]sweet the sound
  - title: Untitled sketch
    key: Bb
setlists:
  - name: Sunday morning
    songs:
      - Untitled sketch
      - 3F0C2A4E-5B6D-4E7F-8A9B-0C1D2E3F4A5B
`

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	store, err := LoadYAML(strings.NewReader(libraryYAML))
	require.NoError(t, err)

	songs, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, songs, 2)
	assert.Equal(t, 90, songs[0].BPM)
	assert.Contains(t, songs[0].Lyrics, "[C]grace")
	assert.NoError(t, ValidateID(songs[1].ID))
}

func TestLoadYAMLStableIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	load := func() []Song {
		store, err := LoadYAML(strings.NewReader(libraryYAML))
		require.NoError(t, err)
		songs, err := store.List(ctx)
		require.NoError(t, err)
		return songs
	}
	first, second := load(), load()
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID, first[i].Title)
	}
	assert.Equal(t, TitleID("Untitled sketch"), first[1].ID)
	assert.NotEqual(t, TitleID("Untitled sketch"), TitleID("Amazing Grace"))

	_, err := LoadYAML(strings.NewReader("songs:\n  - title: Sketch\n  - title: sketch\n"))
	require.Error(t, err, "untitled duplicates collide")
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoadYAMLSetlists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, err := LoadYAML(strings.NewReader(libraryYAML))
	require.NoError(t, err)

	lists, err := store.Setlists(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	sunday := lists[0]
	assert.Equal(t, "Sunday morning", sunday.Name)
	assert.NoError(t, ValidateID(sunday.ID))
	assert.Equal(t, []string{TitleID("Untitled sketch"), amazingGraceID}, sunday.SongIDs)

	songs, err := store.List(ctx)
	require.NoError(t, err)
	ordered := sunday.Resolve(songs)
	require.Len(t, ordered, 2)
	assert.Equal(t, "Untitled sketch", ordered[0].Title)
	assert.Equal(t, "Amazing Grace", ordered[1].Title)
}

func TestAddSetlistsRejectsBadInput(t *testing.T) {
	t.Parallel()
	tests := map[string][]Setlist{
		"no name":       {{SongIDs: []string{holyID}}},
		"bad id":        {{ID: "3", Name: "Evening"}},
		"unknown song":  {{Name: "Evening", SongIDs: []string{amazingGraceID}}},
		"unknown title": {{Name: "Evening", SongIDs: []string{"Not in the library"}}},
		"duplicate":     {{Name: "Evening"}, {Name: "evening"}},
	}
	for name, lists := range tests {
		t.Run(name, func(t *testing.T) {
			store, err := NewMemStore(Song{ID: holyID, Title: "Holy"})
			require.NoError(t, err)
			assert.Error(t, store.AddSetlists(lists...))
		})
	}
}

func TestLoadYAMLRejectsBadInput(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"numeric id":    "songs:\n  - id: 12\n    title: Old row\n",
		"unknown field": "songs:\n  - title: X\n    tempo: 90\n",
		"no title":      "songs:\n  - key: C\n",
		"missing song":  "songs:\n  - title: X\nsetlists:\n  - name: Y\n    songs: [Z]\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadYAML(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadYAMLEmpty(t *testing.T) {
	t.Parallel()
	store, err := LoadYAML(strings.NewReader(""))
	require.NoError(t, err)
	songs, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, songs)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "songs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(libraryYAML), 0o644))

	store, err := LoadFile(path)
	require.NoError(t, err)
	got, err := store.Get(context.Background(), amazingGraceID)
	require.NoError(t, err)
	assert.Equal(t, "G", got.Key)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// ---------------------------------------------------------------------------
// PostgresStore
// ---------------------------------------------------------------------------

func TestPostgresMigrate(t *testing.T) {
	t.Parallel()
	var executed string
	db := &mockDB{execFunc: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
		executed = sql
		return pgconn.CommandTag{}, nil
	}}
	require.NoError(t, NewPostgresStore(db).Migrate(context.Background()))
	assert.Equal(t, Schema, executed)

	failing := &mockDB{execFunc: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
		return pgconn.CommandTag{}, errors.New("permission denied")
	}}
	err := NewPostgresStore(failing).Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate")
}

func TestPostgresList(t *testing.T) {
	t.Parallel()
	rows := &mockRows{data: [][]any{
		{amazingGraceID, "Amazing Grace", "G", 90, "[G]Amazing"},
		{holyID, "Holy", "D", 0, ""},
	}}
	db := &mockDB{queryFunc: func(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
		assert.Contains(t, sql, "ORDER BY title")
		return rows, nil
	}}

	songs, err := NewPostgresStore(db).List(context.Background())
	require.NoError(t, err)
	require.Len(t, songs, 2)
	assert.Equal(t, "Amazing Grace", songs[0].Title)
	assert.Equal(t, DefaultBPM, songs[1].BPM)
	assert.True(t, rows.closed)
}

func TestPostgresListRowsError(t *testing.T) {
	t.Parallel()
	db := &mockDB{queryFunc: func(context.Context, string, ...any) (pgx.Rows, error) {
		return &mockRows{err: errors.New("connection reset")}, nil
	}}
	_, err := NewPostgresStore(db).List(context.Background())
	assert.Error(t, err)
}

func TestPostgresGet(t *testing.T) {
	t.Parallel()
	db := &mockDB{queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
		require.Len(t, args, 1)
		if args[0] != holyID {
			return &mockRow{scanFunc: func(...any) error { return pgx.ErrNoRows }}
		}
		return &mockRow{scanFunc: func(dest ...any) error {
			return scanInto([]any{holyID, "Holy", "D", 72, "[D]Holy"}, dest)
		}}
	}}
	store := NewPostgresStore(db)
	ctx := context.Background()

	got, err := store.Get(ctx, holyID)
	require.NoError(t, err)
	assert.Equal(t, 72, got.BPM)

	_, err = store.Get(ctx, amazingGraceID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(ctx, "7")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresImport(t *testing.T) {
	t.Parallel()
	var calls [][]any
	db := &mockDB{execFunc: func(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
		calls = append(calls, args)
		return pgconn.CommandTag{}, nil
	}}

	err := NewPostgresStore(db).Import(context.Background(), []Song{
		{ID: holyID, Title: "Holy", Key: "D"},
		{Title: "New one"},
	})
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, holyID, calls[0][0])
	assert.Equal(t, DefaultBPM, calls[0][3])
	assert.Equal(t, TitleID("New one"), calls[1][0], "re-importing keeps the row")

	err = NewPostgresStore(db).Import(context.Background(), []Song{{ID: "1", Title: "bad"}})
	assert.Error(t, err)
}

func TestPostgresSetlists(t *testing.T) {
	t.Parallel()
	rows := &mockRows{data: [][]any{
		{"0b7c1f3e-2d4a-4c5b-9e6f-7a8b9c0d1e2f", "Sunday morning", []string{holyID, amazingGraceID}},
	}}
	db := &mockDB{queryFunc: func(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
		assert.Contains(t, sql, "FROM setlists")
		return rows, nil
	}}

	lists, err := NewPostgresStore(db).Setlists(context.Background())
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, "Sunday morning", lists[0].Name)
	assert.Equal(t, []string{holyID, amazingGraceID}, lists[0].SongIDs)
	assert.True(t, rows.closed)
}

func TestPostgresImportSetlists(t *testing.T) {
	t.Parallel()
	var calls [][]any
	db := &mockDB{execFunc: func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
		assert.Contains(t, sql, "INSERT INTO setlists")
		calls = append(calls, args)
		return pgconn.CommandTag{}, nil
	}}
	store := NewPostgresStore(db)

	err := store.ImportSetlists(context.Background(), []Setlist{
		{Name: "Sunday morning", SongIDs: []string{strings.ToUpper(holyID), "New one"}},
	})
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.NoError(t, ValidateID(calls[0][0].(string)))
	assert.Equal(t, []string{holyID, TitleID("New one")}, calls[0][2])

	assert.Error(t, store.ImportSetlists(context.Background(), []Setlist{{Name: " "}}))
}
