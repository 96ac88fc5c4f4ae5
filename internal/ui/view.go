package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/0xlemi/chordpad/internal/chord"
	"github.com/0xlemi/chordpad/internal/detect"
	"github.com/0xlemi/chordpad/internal/pitch"
)

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			PaddingLeft(2).
			PaddingRight(2).
			MarginBottom(1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCCCCC"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))

	chordStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFA500"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))

	activeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FF00"))

	// Note colors
	noteColors = map[string]string{
		"C": "#E8D6B0", // Beige
		"D": "#A020F0", // Purple
		"E": "#FFFF00", // Yellow
		"F": "#FFA500", // Orange
		"G": "#00FF00", // Green
		"A": "#FF0000", // Red
		"B": "#0000FF", // Blue
	}
)

// Get the next natural note (for sharp note colors)
func getNextNote(note string) string {
	switch note {
	case "C":
		return "D"
	case "D":
		return "E"
	case "E":
		return "F"
	case "F":
		return "G"
	case "G":
		return "A"
	case "A":
		return "B"
	default:
		return "C"
	}
}

func tileStyle(color string) lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color(color)).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#333333"))
}

// renderNoteTile draws a colored tile for a note. Sharps are split between
// the colors of their two neighbours.
func renderNoteTile(n pitch.Note) string {
	text := n.String()
	if !strings.HasSuffix(n.Name, "#") {
		return tileStyle(noteColors[n.Name]).Padding(1, 3).Render(text)
	}

	base := n.Name[:1]
	left := tileStyle(noteColors[base]).
		BorderRight(false).
		PaddingLeft(2).PaddingRight(1).PaddingTop(1).PaddingBottom(1)
	right := tileStyle(noteColors[getNextNote(base)]).
		BorderLeft(false).
		PaddingLeft(1).PaddingRight(2).PaddingTop(1).PaddingBottom(1)

	return lipgloss.JoinHorizontal(lipgloss.Top, left.Render(base), right.Render(text[1:]))
}

// View renders the UI
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("ChordPad"))
	b.WriteString("\n")

	if m.open == nil {
		b.WriteString(m.viewSongList())
	} else {
		b.WriteString(m.viewSheet())
	}

	b.WriteString("\n")
	b.WriteString(m.viewPad())
	b.WriteString("\n")
	b.WriteString(m.viewDetection())

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(m.status))
	}

	b.WriteString("\n\n")
	b.WriteString(infoStyle.Render(m.help()))
	return b.String()
}

func (m Model) viewSongList() string {
	var b strings.Builder
	if m.setlist >= 0 {
		b.WriteString(selectedStyle.Render("Setlist: " + m.deps.Setlists[m.setlist].Name))
		b.WriteString("\n")
	}
	if len(m.list) == 0 {
		b.WriteString(infoStyle.Render("No songs in the library"))
		b.WriteString("\n")
		return b.String()
	}
	for i, s := range m.list {
		line := fmt.Sprintf("%s  %s • %d bpm", s.Title, s.Key, s.BPM)
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// visibleLines is how many sheet lines fit on screen
func (m Model) visibleLines() int {
	if m.height <= 0 {
		return 20
	}
	return max(5, m.height-14)
}

func (m Model) viewSheet() string {
	var b strings.Builder
	key := chord.TransposeWith(m.open.Key, m.transpose, m.deps.Spelling)
	b.WriteString(selectedStyle.Render(m.open.Title))
	b.WriteString(infoStyle.Render(fmt.Sprintf("  Key: %s • %d bpm • Transpose: %+d", key, m.open.BPM, m.transpose)))
	if len(m.list) > 1 {
		b.WriteString(infoStyle.Render(fmt.Sprintf(" • %d/%d", m.selected+1, len(m.list))))
	}
	if m.deps.Metronome != nil && m.deps.Metronome.Active() {
		b.WriteString(activeStyle.Render(fmt.Sprintf("  ♩ metronome %d%%", int(m.deps.Metronome.Volume()*100+0.5))))
	}
	if m.deps.Autoscroll != nil && m.deps.Autoscroll.Active() {
		b.WriteString(activeStyle.Render(fmt.Sprintf("  ↓ autoscroll %d", m.deps.Autoscroll.Level())))
	}
	b.WriteString("\n\n")

	end := min(len(m.sheet), m.scroll+m.visibleLines())
	for _, line := range m.sheet[m.scroll:end] {
		b.WriteString(renderLine(line))
		b.WriteString("\n")
	}
	return b.String()
}

func renderLine(line chord.Line) string {
	if line.Kind == chord.LineBreak {
		return ""
	}
	var b strings.Builder
	for _, seg := range line.Segments {
		if seg.IsChord {
			b.WriteString(chordStyle.Render(seg.Text))
			continue
		}
		b.WriteString(seg.Text)
	}
	return b.String()
}

func (m Model) viewPad() string {
	if m.deps.Pad == nil {
		return infoStyle.Render("Ambient pad: unavailable")
	}
	st := m.deps.Pad.Status()
	var b strings.Builder
	b.WriteString("Pad: ")
	for i, name := range pitch.SharpNames {
		label := fmt.Sprintf("%s:%s", pitchKeys[i], name)
		if name == st.Pitch {
			b.WriteString(selectedStyle.Render("[" + label + "]"))
		} else {
			b.WriteString(" " + label + " ")
		}
	}
	b.WriteString("\n")
	status := st.String()
	if st.Active {
		status = activeStyle.Render(status)
	}
	b.WriteString(fmt.Sprintf("%s  volume %d%%", status, int(st.Volume*100+0.5)))
	return b.String()
}

func (m Model) viewDetection() string {
	listening := m.listening
	if m.deps.Loop != nil && m.deps.Loop.State() == detect.Idle {
		listening = false
	}
	if !listening {
		return infoStyle.Render("Press h to hum a pitch")
	}
	if m.detected == nil {
		return infoStyle.Render("Listening for audio...")
	}
	info := infoStyle.Render(fmt.Sprintf("Frequency: %.2f Hz | Cents: %+.1f | u to use",
		m.detected.Frequency,
		m.detected.Cents))
	return renderNoteTile(*m.detected) + "\n" + info
}

func (m Model) help() string {
	if m.open == nil {
		return "↑/↓ select • enter open • s setlist • 1-0 - = pitch • p pad • +/, volume • h hum • q quit"
	}
	return "[/] transpose • n/b next/prev song • m metronome • </> click volume • a autoscroll • {/} speed • p pad • h hum • esc back • q quit"
}
