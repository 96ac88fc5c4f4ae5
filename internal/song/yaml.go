package song

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// library is the on-disk layout of a song file
type library struct {
	Songs    []Song    `yaml:"songs"`
	Setlists []Setlist `yaml:"setlists"`
}

// LoadYAML reads a song library document, songs and setlists, into a
// MemStore
func LoadYAML(r io.Reader) (*MemStore, error) {
	var lib library
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&lib); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("song: decode library: %w", err)
	}
	store, err := NewMemStore(lib.Songs...)
	if err != nil {
		return nil, err
	}
	if err := store.AddSetlists(lib.Setlists...); err != nil {
		return nil, err
	}
	return store, nil
}

// LoadFile reads the song library at path
func LoadFile(path string) (*MemStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("song: open library %q: %w", path, err)
	}
	defer f.Close()

	store, err := LoadYAML(f)
	if err != nil {
		return nil, fmt.Errorf("song: load %q: %w", path, err)
	}
	return store, nil
}
