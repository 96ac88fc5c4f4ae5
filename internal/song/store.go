// Package song provides the read-only song library: song records and the
// stores that serve them.
package song

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// DefaultBPM is the tempo of songs stored without one
const DefaultBPM = 120

// ErrNotFound is returned when no song has the requested ID
var ErrNotFound = errors.New("song: not found")

// idNamespace scopes the name-based IDs of songs stored without one
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/0xlemi/chordpad/songs"))

// TitleID is the ID given to a song stored without one. It depends only on
// the case-folded title, so reloading a library yields the same ID.
func TitleID(title string) string {
	return uuid.NewSHA1(idNamespace, []byte(strings.ToLower(strings.TrimSpace(title)))).String()
}

// Song is one chord chart
type Song struct {
	ID     string `json:"id" yaml:"id"`
	Title  string `json:"title" yaml:"title"`
	Key    string `json:"key" yaml:"key"`
	BPM    int    `json:"bpm" yaml:"bpm"`
	Lyrics string `json:"lyrics" yaml:"lyrics"`
}

// Normalize fills defaults and validates the record. A missing ID is
// derived from the title with TitleID.
func (s *Song) Normalize() error {
	s.Title = strings.TrimSpace(s.Title)
	if s.Title == "" {
		return errors.New("song: title is required")
	}
	if s.ID == "" {
		s.ID = TitleID(s.Title)
	} else if err := ValidateID(s.ID); err != nil {
		return err
	}
	if s.BPM <= 0 {
		s.BPM = DefaultBPM
	}
	return nil
}

// ValidateID rejects IDs that are not canonical UUID strings, such as
// numeric row IDs.
func ValidateID(id string) error {
	u, err := uuid.Parse(id)
	if err != nil || u.String() != strings.ToLower(id) {
		return fmt.Errorf("song: invalid id %q: must be a UUID", id)
	}
	return nil
}

// Store serves songs
type Store interface {
	// List returns all songs ordered by title
	List(ctx context.Context) ([]Song, error)

	// Get returns one song or ErrNotFound
	Get(ctx context.Context, id string) (*Song, error)
}

// MemStore is an in-memory Store
type MemStore struct {
	songs    map[string]Song
	setlists []Setlist
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates a store holding songs. Songs are normalized; the first
// invalid one is returned as an error.
func NewMemStore(songs ...Song) (*MemStore, error) {
	m := &MemStore{songs: make(map[string]Song, len(songs))}
	for i := range songs {
		s := songs[i]
		if err := s.Normalize(); err != nil {
			return nil, fmt.Errorf("song %d: %w", i, err)
		}
		id := strings.ToLower(s.ID)
		if prev, dup := m.songs[id]; dup {
			return nil, fmt.Errorf("song %d: duplicate id %q (also used by %q)", i, s.ID, prev.Title)
		}
		m.songs[id] = s
	}
	return m, nil
}

// List implements Store
func (m *MemStore) List(_ context.Context) ([]Song, error) {
	out := make([]Song, 0, len(m.songs))
	for _, s := range m.songs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Get implements Store
func (m *MemStore) Get(_ context.Context, id string) (*Song, error) {
	s, ok := m.songs[strings.ToLower(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &s, nil
}
