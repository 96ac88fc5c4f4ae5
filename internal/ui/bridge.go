package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/0xlemi/chordpad/internal/pitch"
)

// Bridge forwards detection and autoscroll events into a running program.
// Events sent before Attach are dropped.
type Bridge struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

// Attach connects the bridge to a program's Send
func (b *Bridge) Attach(send func(tea.Msg)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.send = send
}

// AttachBuffered connects the bridge through a queue drained by one
// goroutine, so engines calling back from inside Update never wait on the
// program's event loop. Messages arriving while size are pending are dropped.
func (b *Bridge) AttachBuffered(send func(tea.Msg), size int) {
	queue := make(chan tea.Msg, max(1, size))
	go func() {
		for msg := range queue {
			send(msg)
		}
	}()
	b.Attach(func(msg tea.Msg) {
		select {
		case queue <- msg:
		default:
		}
	})
}

// Send delivers msg if a program is attached
func (b *Bridge) Send(msg tea.Msg) {
	b.mu.Lock()
	send := b.send
	b.mu.Unlock()
	if send != nil {
		send(msg)
	}
}

// OnNote implements detect.Listener
func (b *Bridge) OnNote(note pitch.Note) { b.Send(UpdateNoteMsg(note)) }

// OnClear implements detect.Listener
func (b *Bridge) OnClear() { b.Send(ClearNoteMsg{}) }

// OnError implements detect.Listener
func (b *Bridge) OnError(err error) { b.Send(DetectionErrorMsg{Err: err}) }

// OnScroll is the autoscroll step callback
func (b *Bridge) OnScroll(offset int) { b.Send(ScrollMsg(offset)) }
