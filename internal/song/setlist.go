package song

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var setlistNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/0xlemi/chordpad/setlists"))

// Setlist is an ordered selection of songs for one service or rehearsal
type Setlist struct {
	ID      string   `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	SongIDs []string `json:"song_ids" yaml:"songs"`
}

// SetlistStore serves setlists. MemStore and PostgresStore implement it.
type SetlistStore interface {
	// Setlists returns all setlists ordered by name
	Setlists(ctx context.Context) ([]Setlist, error)
}

// Normalize validates the setlist. A missing ID is derived from the name.
// Song references may be UUIDs or, for songs stored without an ID, their
// titles; both are resolved to canonical IDs.
func (l *Setlist) Normalize() error {
	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" {
		return errors.New("song: setlist name is required")
	}
	if l.ID == "" {
		l.ID = uuid.NewSHA1(setlistNamespace, []byte(strings.ToLower(l.Name))).String()
	} else if err := ValidateID(l.ID); err != nil {
		return fmt.Errorf("setlist %q: %w", l.Name, err)
	}
	l.ID = strings.ToLower(l.ID)

	ids := make([]string, len(l.SongIDs))
	for i, ref := range l.SongIDs {
		ref = strings.TrimSpace(ref)
		if ValidateID(ref) == nil {
			ids[i] = strings.ToLower(ref)
		} else {
			ids[i] = TitleID(ref)
		}
	}
	l.SongIDs = ids
	return nil
}

// Resolve returns the setlist's songs in order, looked up in songs. Missing
// songs are skipped.
func (l Setlist) Resolve(songs []Song) []Song {
	byID := make(map[string]Song, len(songs))
	for _, s := range songs {
		byID[strings.ToLower(s.ID)] = s
	}
	out := make([]Song, 0, len(l.SongIDs))
	for _, id := range l.SongIDs {
		if s, ok := byID[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

var _ SetlistStore = (*MemStore)(nil)

// AddSetlists normalizes lists and stores them. Every referenced song must
// already be in the store.
func (m *MemStore) AddSetlists(lists ...Setlist) error {
	seen := make(map[string]bool, len(m.setlists)+len(lists))
	for _, l := range m.setlists {
		seen[l.ID] = true
	}
	for i := range lists {
		l := lists[i]
		if err := l.Normalize(); err != nil {
			return fmt.Errorf("setlist %d: %w", i, err)
		}
		if seen[l.ID] {
			return fmt.Errorf("setlist %d: duplicate id %q", i, l.ID)
		}
		for j, id := range l.SongIDs {
			if _, ok := m.songs[id]; !ok {
				return fmt.Errorf("setlist %q: song %d (%s): %w", l.Name, j, lists[i].SongIDs[j], ErrNotFound)
			}
		}
		seen[l.ID] = true
		m.setlists = append(m.setlists, l)
	}
	return nil
}

// Setlists implements SetlistStore
func (m *MemStore) Setlists(_ context.Context) ([]Setlist, error) {
	out := make([]Setlist, len(m.setlists))
	copy(out, m.setlists)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
