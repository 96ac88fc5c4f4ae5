package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/0xlemi/chordpad/internal/audio"
	"github.com/0xlemi/chordpad/internal/chord"
	"github.com/0xlemi/chordpad/internal/pitch"
	"github.com/0xlemi/chordpad/internal/song"
)

// NoteResponse is the JSON form of a detected or converted note
type NoteResponse struct {
	Name      string  `json:"name"`
	Octave    int     `json:"octave"`
	Label     string  `json:"label"`
	Frequency float64 `json:"frequency"`
	Cents     float64 `json:"cents"`
}

func noteResponse(n *pitch.Note) *NoteResponse {
	return &NoteResponse{
		Name:      n.Name,
		Octave:    n.Octave,
		Label:     n.String(),
		Frequency: n.Frequency,
		Cents:     n.Cents,
	}
}

// SongResponse is a song with its chart rendered at a transposition
type SongResponse struct {
	song.Song
	Transpose  int          `json:"transpose"`
	DisplayKey string       `json:"display_key"`
	Chords     []string     `json:"chords"`
	Sheet      []chord.Line `json:"sheet"`
}

// SetlistResponse is a setlist with its songs in order
type SetlistResponse struct {
	song.Setlist
	Songs []song.Song `json:"songs"`
}

// TransposeResponse is the result of GET /api/transpose
type TransposeResponse struct {
	Chord     string `json:"chord"`
	Semitones int    `json:"semitones"`
	Result    string `json:"result"`
}

// FrequencyResponse is the result of GET /api/frequency
type FrequencyResponse struct {
	Note      string  `json:"note"`
	Frequency float64 `json:"frequency"`
}

// DetectRequest carries one analysis frame. Samples are floats in [-1, 1];
// Bytes are unsigned 8-bit samples centred on 128, as produced by a browser
// analyser node, and are used when Samples is empty.
type DetectRequest struct {
	SampleRate int       `json:"sample_rate"`
	Samples    []float32 `json:"samples,omitempty"`
	Bytes      []int     `json:"bytes,omitempty"`
}

// DetectResponse reports the detection result. Note is nil when nothing
// was found.
type DetectResponse struct {
	Found bool          `json:"found"`
	Note  *NoteResponse `json:"note,omitempty"`
	RMS   float64       `json:"rms"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.songs.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list songs", "err", err)
		s.writeError(w, http.StatusInternalServerError, "could not list songs")
		return
	}
	if q := r.URL.Query().Get("q"); q != "" {
		songs = song.Search(songs, q, song.DefaultSearchThreshold)
	}
	if songs == nil {
		songs = []song.Song{}
	}
	s.writeJSON(w, http.StatusOK, songs)
}

// setlists lists the store's setlists; stores without setlists have none
func (s *Server) setlists(r *http.Request) ([]song.Setlist, error) {
	store, ok := s.songs.(song.SetlistStore)
	if !ok {
		return nil, nil
	}
	return store.Setlists(r.Context())
}

func (s *Server) handleListSetlists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.setlists(r)
	if err != nil {
		s.logger.Error("failed to list setlists", "err", err)
		s.writeError(w, http.StatusInternalServerError, "could not list setlists")
		return
	}
	if lists == nil {
		lists = []song.Setlist{}
	}
	s.writeJSON(w, http.StatusOK, lists)
}

func (s *Server) handleGetSetlist(w http.ResponseWriter, r *http.Request) {
	id := strings.ToLower(mux.Vars(r)["id"])
	lists, err := s.setlists(r)
	if err != nil {
		s.logger.Error("failed to list setlists", "err", err)
		s.writeError(w, http.StatusInternalServerError, "could not list setlists")
		return
	}
	idx := slices.IndexFunc(lists, func(l song.Setlist) bool { return l.ID == id })
	if idx < 0 {
		s.writeError(w, http.StatusNotFound, "setlist not found")
		return
	}
	songs, err := s.songs.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list songs", "err", err)
		s.writeError(w, http.StatusInternalServerError, "could not list songs")
		return
	}
	s.writeJSON(w, http.StatusOK, SetlistResponse{Setlist: lists[idx], Songs: lists[idx].Resolve(songs)})
}

func (s *Server) handleGetSong(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	semitones, err := intParam(r, "transpose")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "transpose must be an integer")
		return
	}
	policy := chord.ParseSpellingPolicy(r.URL.Query().Get("spelling"))

	sg, err := s.songs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, song.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "song not found")
			return
		}
		s.logger.Error("failed to load song", "id", id, "err", err)
		s.writeError(w, http.StatusInternalServerError, "could not load song")
		return
	}

	// ?key= transposes to a target key and wins over ?transpose=
	if target := r.URL.Query().Get("key"); target != "" {
		n, ok := chord.Interval(rootOf(sg.Key), rootOf(target))
		if !ok {
			s.writeError(w, http.StatusBadRequest, "key must be a pitch class and the song needs a key")
			return
		}
		semitones = n
	}

	chords := chord.Chords(sg.Lyrics)
	for i, c := range chords {
		chords[i] = chord.TransposeWith(c, semitones, policy)
	}
	if chords == nil {
		chords = []string{}
	}

	s.writeJSON(w, http.StatusOK, SongResponse{
		Song:       *sg,
		Transpose:  semitones,
		DisplayKey: chord.TransposeWith(sg.Key, semitones, policy),
		Chords:     chords,
		Sheet:      chord.RenderSheet(sg.Lyrics, semitones, policy),
	})
}

// rootOf strips the quality from a key such as "F#m"
func rootOf(key string) string {
	if sym, ok := chord.Parse(key); ok {
		return sym.Root
	}
	return key
}

func (s *Server) handleTranspose(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c := q.Get("chord")
	if c == "" {
		s.writeError(w, http.StatusBadRequest, "chord is required")
		return
	}
	semitones, err := intParam(r, "semitones")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "semitones must be an integer")
		return
	}
	policy := chord.ParseSpellingPolicy(q.Get("spelling"))

	s.writeJSON(w, http.StatusOK, TransposeResponse{
		Chord:     c,
		Semitones: semitones,
		Result:    chord.TransposeWith(c, semitones, policy),
	})
}

func (s *Server) handleNote(w http.ResponseWriter, r *http.Request) {
	f, err := strconv.ParseFloat(r.URL.Query().Get("frequency"), 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "frequency must be a number")
		return
	}
	note, ok := pitch.FrequencyToNote(f)
	if !ok {
		s.writeError(w, http.StatusUnprocessableEntity, "frequency must be positive")
		return
	}
	s.writeJSON(w, http.StatusOK, noteResponse(note))
}

func (s *Server) handleFrequency(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("note")
	if name == "" {
		s.writeError(w, http.StatusBadRequest, "note is required")
		return
	}
	s.writeJSON(w, http.StatusOK, FrequencyResponse{
		Note:      name,
		Frequency: pitch.NoteToFrequency(name),
	})
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 32*maxDetectSamples)

	var req DetectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "frame too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SampleRate <= 0 {
		s.writeError(w, http.StatusBadRequest, "sample_rate must be positive")
		return
	}

	var buffer *audio.AudioBuffer
	switch {
	case len(req.Samples) > 0:
		buffer = &audio.AudioBuffer{Samples: req.Samples, SampleRate: req.SampleRate}
	case len(req.Bytes) > 0:
		buffer = audio.FromUnsigned8(toUint8(req.Bytes), req.SampleRate)
	default:
		s.writeError(w, http.StatusBadRequest, "samples or bytes are required")
		return
	}
	if buffer.Len() > maxDetectSamples {
		s.writeError(w, http.StatusRequestEntityTooLarge, "frame too large")
		return
	}

	rms, _ := audio.Level(buffer)
	note, err := s.detector.DetectPitch(buffer)
	if err != nil {
		s.writeJSON(w, http.StatusOK, DetectResponse{Found: false, RMS: rms})
		return
	}
	s.writeJSON(w, http.StatusOK, DetectResponse{Found: true, Note: noteResponse(note), RMS: rms})
}

// intParam parses an optional integer query parameter; absent means 0
func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func toUint8(values []int) []uint8 {
	out := make([]uint8, len(values))
	for i, v := range values {
		out[i] = uint8(max(0, min(255, v)))
	}
	return out
}
