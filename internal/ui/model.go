package ui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/0xlemi/chordpad/internal/audio"
	"github.com/0xlemi/chordpad/internal/chord"
	"github.com/0xlemi/chordpad/internal/config"
	"github.com/0xlemi/chordpad/internal/detect"
	"github.com/0xlemi/chordpad/internal/pitch"
	"github.com/0xlemi/chordpad/internal/practice"
	"github.com/0xlemi/chordpad/internal/song"
	"github.com/0xlemi/chordpad/internal/tone"
)

const (
	// Autoscroll steps per displayed line; one step is one pixel in a browser
	scrollStepsPerLine = 20

	volumeStep = 0.1

	// How long a status message stays on screen
	statusDuration = 3 * time.Second
)

// Keys 1-0, - and = select the twelve pad pitch classes in chromatic order
var pitchKeys = []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "0", "-", "="}

// TickMsg represents a timer tick
type TickMsg time.Time

// UpdateNoteMsg is a message to update the detected note
type UpdateNoteMsg pitch.Note

// ClearNoteMsg clears the detected note
type ClearNoteMsg struct{}

// DetectionErrorMsg reports a microphone failure
type DetectionErrorMsg struct {
	Err error
}

// ScrollMsg carries the autoscroll offset
type ScrollMsg int

// Deps are the engines driven by the UI. Any of them may be nil in which
// case the matching keys only report that the feature is unavailable.
type Deps struct {
	Songs      []song.Song
	Setlists   []song.Setlist
	Pad        *tone.Engine
	Loop       *detect.Loop
	Metronome  *practice.Metronome
	Autoscroll *practice.Autoscroll
	Settings   *config.SettingsStore
	Spelling   chord.SpellingPolicy
}

// Model represents the UI state
type Model struct {
	deps Deps

	// list is the song list on screen: the library, or the active setlist
	// (setlist >= 0) in its order
	list    []song.Song
	setlist int

	selected  int
	open      *song.Song
	sheet     []chord.Line
	transpose int
	scroll    int

	detected  *pitch.Note
	listening bool

	status     string
	statusTime time.Time

	width  int
	height int
}

// NewModel creates a new UI model
func NewModel(deps Deps) Model {
	m := Model{deps: deps, list: deps.Songs, setlist: -1}
	if deps.Settings != nil {
		m.transpose = deps.Settings.Get().Transpose
	}
	return m
}

// Init initializes the UI model
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Update updates the UI model based on messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		if m.status != "" && time.Time(msg).Sub(m.statusTime) > statusDuration {
			m.status = ""
		}
		return m, tick()

	case UpdateNoteMsg:
		// Notes queued before the microphone was turned off are stale.
		if m.deps.Loop != nil && m.deps.Loop.State() != detect.Listening {
			break
		}
		note := pitch.Note(msg)
		m.detected = &note
		m.listening = true

	case ClearNoteMsg:
		m.detected = nil
		if m.deps.Loop != nil {
			m.listening = m.deps.Loop.State() == detect.Listening
		}

	case DetectionErrorMsg:
		m.listening = false
		m.detected = nil
		switch {
		case errors.Is(msg.Err, audio.ErrPermissionDenied):
			m.setStatus("Could not access microphone. Please ensure you have granted permission.")
		default:
			m.setStatus("Microphone unavailable: " + msg.Err.Error())
		}

	case ScrollMsg:
		if m.open != nil {
			m.scroll = m.clampScroll(int(msg) / scrollStepsPerLine)
		}
	}

	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	if idx := slices.Index(pitchKeys, key); idx >= 0 {
		return m.selectPitch(pitch.SharpNames[idx]), nil
	}

	switch key {
	case "q", "ctrl+c":
		m.shutdown()
		return m, tea.Quit

	case "up", "k":
		if m.open != nil {
			m.scroll = m.clampScroll(m.scroll - 1)
		} else if m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.open != nil {
			m.scroll = m.clampScroll(m.scroll + 1)
		} else if m.selected < len(m.list)-1 {
			m.selected++
		}

	case "enter":
		if m.open == nil && len(m.list) > 0 {
			m.openSong(m.selected)
		}

	case "s":
		if m.open == nil {
			m.cycleSetlist()
		}

	case "n":
		m.stepSong(1)

	case "b":
		m.stepSong(-1)

	case "esc", "backspace":
		m.closeSong()

	case "[":
		m.setTranspose(m.transpose - 1)

	case "]":
		m.setTranspose(m.transpose + 1)

	case "p":
		m.togglePad()

	case "+":
		m.changeVolume(volumeStep)

	case ",":
		m.changeVolume(-volumeStep)

	case "h":
		return m.toggleListening()

	case "u":
		if m.detected == nil {
			m.setStatus("No pitch detected yet")
			break
		}
		m = m.selectPitch(m.detected.Name)

	case "m":
		m.toggleMetronome()

	case "a":
		m.toggleAutoscroll()

	case ">":
		m.changeMetronomeVolume(volumeStep)

	case "<":
		m.changeMetronomeVolume(-volumeStep)

	case "{":
		m.changeScrollLevel(-1)

	case "}":
		m.changeScrollLevel(1)
	}

	return m, nil
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusTime = time.Now()
}

func (m *Model) render() {
	if m.open == nil {
		m.sheet = nil
		return
	}
	m.sheet = chord.RenderSheet(m.open.Lyrics, m.transpose, m.deps.Spelling)
}

func (m Model) clampScroll(v int) int {
	if v > len(m.sheet)-1 {
		v = len(m.sheet) - 1
	}
	if v < 0 {
		v = 0
	}
	return v
}

func (m *Model) openSong(i int) {
	s := m.list[i]
	m.selected = i
	m.open = &s
	m.scroll = 0
	m.render()
}

// cycleSetlist steps through the setlists and back to the whole library
func (m *Model) cycleSetlist() {
	if len(m.deps.Setlists) == 0 {
		m.setStatus("No setlists in the library")
		return
	}
	m.setlist++
	if m.setlist >= len(m.deps.Setlists) {
		m.setlist = -1
	}
	m.selected = 0
	if m.setlist < 0 {
		m.list = m.deps.Songs
		m.setStatus("All songs")
		return
	}
	l := m.deps.Setlists[m.setlist]
	m.list = l.Resolve(m.deps.Songs)
	m.setStatus("Setlist: " + l.Name)
}

// stepSong opens the next or previous song of the list from an open song.
// A running metronome follows the new song's tempo.
func (m *Model) stepSong(delta int) {
	if m.open == nil {
		return
	}
	next := m.selected + delta
	if next < 0 || next >= len(m.list) {
		if delta > 0 {
			m.setStatus("Last song")
		} else {
			m.setStatus("First song")
		}
		return
	}
	ticking := m.deps.Metronome != nil && m.deps.Metronome.Active()
	m.closeSong()
	m.openSong(next)
	if ticking {
		m.deps.Metronome.Start(m.open.BPM)
	}
}

func (m *Model) closeSong() {
	if m.open == nil {
		return
	}
	if m.deps.Metronome != nil {
		m.deps.Metronome.Stop()
	}
	if m.deps.Autoscroll != nil {
		m.deps.Autoscroll.Stop()
		m.deps.Autoscroll.Reset()
	}
	m.open = nil
	m.sheet = nil
	m.scroll = 0
}

func (m *Model) setTranspose(n int) {
	m.transpose = n
	m.render()
	if m.deps.Settings != nil {
		m.deps.Settings.Update(func(s *config.Settings) { s.Transpose = n })
	}
}

func (m Model) selectPitch(name string) Model {
	if m.deps.Pad == nil {
		m.setStatus("Audio output unavailable")
		return m
	}
	if err := m.deps.Pad.SelectPitch(name); err != nil {
		m.setStatus(err.Error())
	}
	return m
}

func (m *Model) togglePad() {
	if m.deps.Pad == nil {
		m.setStatus("Audio output unavailable")
		return
	}
	if err := m.deps.Pad.Toggle(); err != nil {
		if errors.Is(err, tone.ErrNoPitch) {
			m.setStatus("Please select a pitch first")
			return
		}
		m.setStatus(err.Error())
	}
}

func (m *Model) changeVolume(delta float64) {
	if m.deps.Pad == nil {
		return
	}
	v := m.deps.Pad.Volume() + delta
	m.deps.Pad.SetVolume(v)
	if m.deps.Settings != nil {
		v = m.deps.Pad.Volume()
		m.deps.Settings.Update(func(s *config.Settings) { s.PadVolume = v })
	}
}

func (m Model) toggleListening() (tea.Model, tea.Cmd) {
	loop := m.deps.Loop
	if loop == nil {
		m.setStatus("Microphone unavailable")
		return m, nil
	}
	if loop.State() != detect.Idle {
		loop.Stop()
		m.listening = false
		m.detected = nil
		return m, nil
	}
	m.listening = true
	return m, func() tea.Msg {
		// Failures reach the model through the loop's listener.
		_ = loop.Start(context.Background())
		return nil
	}
}

func (m *Model) toggleMetronome() {
	if m.deps.Metronome == nil {
		return
	}
	if m.open == nil {
		m.setStatus("Open a song to use the metronome")
		return
	}
	m.deps.Metronome.Toggle(m.open.BPM)
}

func (m *Model) toggleAutoscroll() {
	if m.deps.Autoscroll == nil || m.open == nil {
		return
	}
	m.deps.Autoscroll.Toggle()
}

func (m *Model) changeMetronomeVolume(delta float64) {
	if m.deps.Metronome == nil {
		return
	}
	m.deps.Metronome.SetVolume(m.deps.Metronome.Volume() + delta)
	if m.deps.Settings != nil {
		v := m.deps.Metronome.Volume()
		m.deps.Settings.Update(func(s *config.Settings) { s.MetronomeVolume = v })
	}
}

func (m *Model) changeScrollLevel(delta int) {
	a := m.deps.Autoscroll
	if a == nil {
		return
	}
	level := max(0, min(10, a.Level()+delta))
	a.SetLevel(level)
	if m.deps.Settings != nil {
		m.deps.Settings.Update(func(s *config.Settings) { s.AutoscrollLevel = level })
	}
}

// shutdown stops every engine before the program exits
func (m *Model) shutdown() {
	if m.deps.Loop != nil {
		m.deps.Loop.Stop()
	}
	if m.deps.Pad != nil {
		_ = m.deps.Pad.Close()
	}
	if m.deps.Metronome != nil {
		m.deps.Metronome.Stop()
	}
	if m.deps.Autoscroll != nil {
		m.deps.Autoscroll.Stop()
	}
	if m.deps.Settings != nil {
		if err := m.deps.Settings.Flush(); err != nil {
			m.setStatus(fmt.Sprintf("settings not saved: %v", err))
		}
	}
}
