package practice

import (
	"sync"
	"time"
)

// ScrollInterval returns the time between two one-line scroll steps for an
// autoscroll level. Higher levels scroll faster.
func ScrollInterval(level int) time.Duration {
	ms := 30 - level*5
	if ms < 1 {
		ms = 1
	}
	return time.Duration(ms) * time.Millisecond
}

// Autoscroll advances a scroll offset at a level-dependent rate
type Autoscroll struct {
	step func(offset int)

	mu     sync.Mutex
	level  int
	offset int
	stop   chan struct{}
	done   chan struct{}
}

// NewAutoscroll creates a stopped autoscroll. step, if non-nil, is called
// with the new offset after every advance.
func NewAutoscroll(level int, step func(offset int)) *Autoscroll {
	return &Autoscroll{level: level, step: step}
}

// Start begins scrolling. It is a no-op while active.
func (a *Autoscroll) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.startLocked()
}

func (a *Autoscroll) startLocked() {
	if a.stop != nil {
		return
	}
	a.stop = make(chan struct{})
	a.done = make(chan struct{})
	go a.run(ScrollInterval(a.level), a.stop, a.done)
}

// Stop halts scrolling; the offset is kept
func (a *Autoscroll) Stop() {
	a.mu.Lock()
	stop, done := a.stop, a.done
	a.stop, a.done = nil, nil
	a.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

// Toggle starts or stops scrolling
func (a *Autoscroll) Toggle() {
	if a.Active() {
		a.Stop()
		return
	}
	a.Start()
}

// Active reports whether the autoscroll is running
func (a *Autoscroll) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stop != nil
}

// Level returns the speed level
func (a *Autoscroll) Level() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.level
}

// SetLevel changes the speed. A running autoscroll restarts at the new rate.
func (a *Autoscroll) SetLevel(level int) {
	active := a.Active()
	if active {
		a.Stop()
	}
	a.mu.Lock()
	a.level = level
	if active {
		a.startLocked()
	}
	a.mu.Unlock()
}

// Offset returns the number of steps scrolled so far
func (a *Autoscroll) Offset() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.offset
}

// Reset moves the offset back to the top
func (a *Autoscroll) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.offset = 0
}

func (a *Autoscroll) run(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			a.mu.Lock()
			a.offset++
			offset := a.offset
			a.mu.Unlock()
			if a.step != nil {
				a.step(offset)
			}
		}
	}
}
