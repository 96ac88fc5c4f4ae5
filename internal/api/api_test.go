package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/0xlemi/chordpad/internal/chord"
	"github.com/0xlemi/chordpad/internal/observe"
	"github.com/0xlemi/chordpad/internal/song"
)

const graceID = "3f0c2a4e-5b6d-4e7f-8a9b-0c1d2e3f4a5b"

type failingStore struct{}

func (failingStore) List(context.Context) ([]song.Song, error) {
	return nil, errors.New("db down")
}

func (failingStore) Get(context.Context, string) (*song.Song, error) {
	return nil, errors.New("db down")
}

// songsOnly is a Store without setlists
type songsOnly struct{}

func (songsOnly) List(context.Context) ([]song.Song, error) { return nil, nil }

func (songsOnly) Get(context.Context, string) (*song.Song, error) {
	return nil, song.ErrNotFound
}

func newTestServer(t *testing.T, store song.Store) (http.Handler, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	require.NoError(t, err)

	if store == nil {
		store, err = song.NewMemStore(song.Song{
			ID:     graceID,
			Title:  "Amazing Grace",
			Key:    "G",
			BPM:    90,
			Lyrics: "[G]Amazing [C]grace\n\nhow sweet the sound",
		})
		require.NoError(t, err)
	}
	srv := New(store, nil, Options{Metrics: m, ExposeMetrics: true})
	return srv.Handler(), reader
}

func get(t *testing.T, h http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, nil)
	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListSongs(t *testing.T) {
	h, _ := newTestServer(t, nil)
	rec := get(t, h, "/api/songs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	songs := decode[[]song.Song](t, rec)
	require.Len(t, songs, 1)
	assert.Equal(t, "Amazing Grace", songs[0].Title)
}

func TestListSongsSearch(t *testing.T) {
	h, _ := newTestServer(t, nil)

	songs := decode[[]song.Song](t, get(t, h, "/api/songs?q=amayzing"))
	require.Len(t, songs, 1)
	assert.Equal(t, graceID, songs[0].ID)

	assert.JSONEq(t, `[]`, get(t, h, "/api/songs?q=zzz").Body.String())
}

func TestListSongsEmptyIsArray(t *testing.T) {
	empty, err := song.NewMemStore()
	require.NoError(t, err)
	h, _ := newTestServer(t, empty)
	rec := get(t, h, "/api/songs")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestSetlists(t *testing.T) {
	store, err := song.NewMemStore(
		song.Song{ID: graceID, Title: "Amazing Grace", Key: "G"},
		song.Song{Title: "Holy", Key: "D"},
	)
	require.NoError(t, err)
	require.NoError(t, store.AddSetlists(song.Setlist{Name: "Sunday", SongIDs: []string{"Holy", graceID}}))
	h, _ := newTestServer(t, store)

	rec := get(t, h, "/api/setlists")
	require.Equal(t, http.StatusOK, rec.Code)
	lists := decode[[]song.Setlist](t, rec)
	require.Len(t, lists, 1)
	assert.Equal(t, "Sunday", lists[0].Name)
	assert.Equal(t, []string{song.TitleID("Holy"), graceID}, lists[0].SongIDs)

	rec = get(t, h, "/api/setlists/"+strings.ToUpper(lists[0].ID))
	require.Equal(t, http.StatusOK, rec.Code)
	one := decode[SetlistResponse](t, rec)
	assert.Equal(t, "Sunday", one.Name)
	require.Len(t, one.Songs, 2)
	assert.Equal(t, "Holy", one.Songs[0].Title)
	assert.Equal(t, "Amazing Grace", one.Songs[1].Title)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/setlists/"+graceID).Code)
}

func TestSetlistsWithoutSetlistStore(t *testing.T) {
	h, _ := newTestServer(t, songsOnly{})
	rec := get(t, h, "/api/setlists")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/setlists/"+graceID).Code)
}

func TestStoreFailure(t *testing.T) {
	h, _ := newTestServer(t, failingStore{})
	assert.Equal(t, http.StatusInternalServerError, get(t, h, "/api/songs").Code)
	assert.Equal(t, http.StatusInternalServerError, get(t, h, "/api/songs/"+graceID).Code)
}

func TestGetSongTransposed(t *testing.T) {
	h, _ := newTestServer(t, nil)
	rec := get(t, h, "/api/songs/"+graceID+"?transpose=2")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[SongResponse](t, rec)
	assert.Equal(t, "Amazing Grace", resp.Title)
	assert.Equal(t, 2, resp.Transpose)
	assert.Equal(t, "A", resp.DisplayKey)
	require.Len(t, resp.Sheet, 3)
	assert.Equal(t, "[A]Amazing [D]grace", resp.Sheet[0].Text())
	assert.Contains(t, rec.Body.String(), `"kind":"chords"`)
	assert.Contains(t, rec.Body.String(), `"kind":"break"`)
}

func TestGetSongToKey(t *testing.T) {
	h, _ := newTestServer(t, nil)

	resp := decode[SongResponse](t, get(t, h, "/api/songs/"+graceID+"?key=Am&transpose=5"))
	assert.Equal(t, 2, resp.Transpose)
	assert.Equal(t, "A", resp.DisplayKey)
	assert.Equal(t, []string{"A", "D"}, resp.Chords)

	resp = decode[SongResponse](t, get(t, h, "/api/songs/"+graceID+"?key=F"))
	assert.Equal(t, 10, resp.Transpose)
	assert.Equal(t, []string{"F", "A#"}, resp.Chords)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/songs/"+graceID+"?key=H").Code)
}

func TestGetSongErrors(t *testing.T) {
	h, _ := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/songs/0b7f2a1e-0000-4000-8000-000000000000").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/songs/"+graceID+"?transpose=up").Code)
}

func TestTranspose(t *testing.T) {
	h, _ := newTestServer(t, nil)
	tests := []struct {
		query string
		want  string
	}{
		{"chord=C&semitones=2", "D"},
		{"chord=Am&semitones=3", "Cm"},
		{"chord=Bb&semitones=1", "B"},
		{"chord=Eb&semitones=2", "F"},
		{"chord=Db&semitones=2&spelling=accidental", "Eb"},
		{"chord=Db&semitones=2", "D#"},
		{"chord=G&semitones=-2", "F"},
		{"chord=N.C.&semitones=5", "N.C."},
	}
	for _, tt := range tests {
		rec := get(t, h, "/api/transpose?"+tt.query)
		require.Equal(t, http.StatusOK, rec.Code, tt.query)
		assert.Equal(t, tt.want, decode[TransposeResponse](t, rec).Result, tt.query)
	}

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/transpose?semitones=1").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/transpose?chord=C&semitones=x").Code)
}

func TestNoteAndFrequency(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := get(t, h, "/api/note?frequency=440")
	require.Equal(t, http.StatusOK, rec.Code)
	n := decode[NoteResponse](t, rec)
	assert.Equal(t, "A", n.Name)
	assert.Equal(t, 4, n.Octave)
	assert.Equal(t, "A4", n.Label)

	assert.Equal(t, http.StatusUnprocessableEntity, get(t, h, "/api/note?frequency=0").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/note?frequency=loud").Code)

	rec = get(t, h, "/api/frequency?note=C%234")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 277.18, decode[FrequencyResponse](t, rec).Frequency)

	rec = get(t, h, "/api/frequency?note=H")
	assert.Equal(t, 440.0, decode[FrequencyResponse](t, rec).Frequency)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/frequency").Code)
}

func postDetect(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/detect", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	return rec
}

func TestDetectFloatSamples(t *testing.T) {
	h, _ := newTestServer(t, nil)

	samples := make([]float32, 2048)
	for i := range samples {
		samples[i] = float32(0.7 * math.Sin(2*math.Pi*220*float64(i)/44100))
	}
	body, err := json.Marshal(DetectRequest{SampleRate: 44100, Samples: samples})
	require.NoError(t, err)

	rec := postDetect(t, h, string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[DetectResponse](t, rec)
	require.True(t, resp.Found)
	assert.Equal(t, "A3", resp.Note.Label)
	assert.InDelta(t, 0.7/math.Sqrt2, resp.RMS, 0.01)
}

func TestDetectUnsignedBytes(t *testing.T) {
	h, _ := newTestServer(t, nil)

	raw := make([]int, 2048)
	for i := range raw {
		raw[i] = 128 + int(math.Round(100*math.Sin(2*math.Pi*330*float64(i)/44100)))
	}
	body, err := json.Marshal(DetectRequest{SampleRate: 44100, Bytes: raw})
	require.NoError(t, err)

	resp := decode[DetectResponse](t, postDetect(t, h, string(body)))
	require.True(t, resp.Found)
	assert.Equal(t, "E", resp.Note.Name)
}

func TestDetectSilence(t *testing.T) {
	h, _ := newTestServer(t, nil)
	body, err := json.Marshal(DetectRequest{SampleRate: 44100, Samples: make([]float32, 1024)})
	require.NoError(t, err)

	rec := postDetect(t, h, string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"found":false,"rms":0}`, rec.Body.String())
}

func TestDetectBadRequests(t *testing.T) {
	h, _ := newTestServer(t, nil)
	for _, body := range []string{
		`not json`,
		`{"samples":[0.1,0.2]}`,
		`{"sample_rate":44100}`,
	} {
		assert.Equal(t, http.StatusBadRequest, postDetect(t, h, body).Code, body)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/detect", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDetectRejectsLongFrames(t *testing.T) {
	h, _ := newTestServer(t, nil)

	body, err := json.Marshal(DetectRequest{SampleRate: 44100, Samples: make([]float32, maxDetectSamples)})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, postDetect(t, h, string(body)).Code)

	body, err = json.Marshal(DetectRequest{SampleRate: 44100, Samples: make([]float32, maxDetectSamples+1)})
	require.NoError(t, err)
	assert.Equal(t, http.StatusRequestEntityTooLarge, postDetect(t, h, string(body)).Code)

	raw := make([]int, maxDetectSamples+1)
	body, err = json.Marshal(DetectRequest{SampleRate: 44100, Bytes: raw})
	require.NoError(t, err)
	assert.Equal(t, http.StatusRequestEntityTooLarge, postDetect(t, h, string(body)).Code)

	// Bodies past the byte limit never reach the decoder's result.
	huge := `{"sample_rate":44100,"samples":[` + strings.Repeat("0.123456789,", 32*maxDetectSamples/12+1) + `0]}`
	assert.Equal(t, http.StatusRequestEntityTooLarge, postDetect(t, h, huge).Code)
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/detect", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpointAndRequestCounter(t *testing.T) {
	h, reader := newTestServer(t, nil)
	get(t, h, "/api/songs/"+graceID)
	get(t, h, "/api/songs/"+graceID)

	assert.Equal(t, http.StatusOK, get(t, h, "/metrics").Code)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "chordpad.http.requests" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				route, _ := dp.Attributes.Value("route")
				if route.AsString() == "/api/songs/{id}" {
					total += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), total)
}

func TestSheetLineKindsEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(chord.Line{Kind: chord.LyricLine}))
	assert.JSONEq(t, `{"kind":"lyrics"}`, buf.String())
}
