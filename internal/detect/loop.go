// Package detect runs the tap-to-hum pitch detection loop: it owns the
// microphone session, samples it on a fixed period and publishes the
// detected note.
package detect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/0xlemi/chordpad/internal/audio"
	"github.com/0xlemi/chordpad/internal/observe"
	"github.com/0xlemi/chordpad/internal/pitch"
)

// DefaultPeriod is the time between two detection ticks
const DefaultPeriod = 200 * time.Millisecond

// State is the lifecycle state of a Loop
type State int

const (
	Idle State = iota
	Requesting
	Listening
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Requesting:
		return "requesting"
	case Listening:
		return "listening"
	default:
		return "idle"
	}
}

// Listener receives detection results. Callbacks are serialized, run with
// no state lock held and must not call back into the Loop.
type Listener interface {
	// OnNote publishes a detected note
	OnNote(note pitch.Note)

	// OnClear resets the displayed detection
	OnClear()

	// OnError reports a failure to open the microphone
	OnError(err error)
}

// Timer is a pending tick
type Timer interface {
	Stop() bool
}

// Scheduler arms one-shot callbacks
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Options configures a Loop
type Options struct {
	Period    time.Duration
	Scheduler Scheduler
	Logger    *slog.Logger
	Metrics   *observe.Metrics
}

// session is one microphone grant and its pending tick
type session struct {
	capturer audio.Capturer
	timer    Timer
}

// Loop is the pitch detection state machine
// (Idle → Requesting → Listening → Idle). At most one session is alive.
type Loop struct {
	provider audio.CaptureProvider
	detector pitch.Detector
	listener Listener

	period    time.Duration
	scheduler Scheduler
	logger    *slog.Logger
	metrics   *observe.Metrics

	// pubMu orders listener callbacks; it is taken before mu, never after
	pubMu sync.Mutex

	mu         sync.Mutex
	state      State
	generation uint64
	session    *session
	detected   *pitch.Note
}

// New creates an idle loop
func New(provider audio.CaptureProvider, detector pitch.Detector, listener Listener, opts Options) *Loop {
	if opts.Period <= 0 {
		opts.Period = DefaultPeriod
	}
	if opts.Scheduler == nil {
		opts.Scheduler = realScheduler{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.DefaultMetrics()
	}
	return &Loop{
		provider:  provider,
		detector:  detector,
		listener:  listener,
		period:    opts.Period,
		scheduler: opts.Scheduler,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
}

// State returns the current lifecycle state
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Detected returns the last detected note while listening. It is the pitch
// offered to "use detected pitch".
func (l *Loop) Detected() (pitch.Note, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.detected == nil {
		return pitch.Note{}, false
	}
	return *l.detected, true
}

// Start tears down any running session, asks for the microphone and starts
// sampling. A refused grant leaves the loop idle and is returned; it is not
// retried.
func (l *Loop) Start(ctx context.Context) error {
	l.Stop()

	l.mu.Lock()
	l.generation++
	gen := l.generation
	l.state = Requesting
	l.mu.Unlock()

	capturer, err := l.provider.Open(ctx)

	l.mu.Lock()
	if l.generation != gen {
		// Stopped or superseded while the grant was pending.
		l.mu.Unlock()
		if capturer != nil {
			_ = capturer.Stop()
		}
		if err != nil {
			return err
		}
		return context.Canceled
	}
	if err != nil {
		l.state = Idle
		l.mu.Unlock()

		if errors.Is(err, audio.ErrPermissionDenied) {
			l.logger.Warn("microphone permission denied", "err", err)
		} else {
			l.logger.Error("microphone unavailable", "err", err)
		}
		err = fmt.Errorf("detect: open microphone: %w", err)
		l.pubMu.Lock()
		l.listener.OnError(err)
		l.pubMu.Unlock()
		return err
	}

	l.session = &session{capturer: capturer}
	l.state = Listening
	l.session.timer = l.scheduler.AfterFunc(l.period, func() { l.tick(gen) })
	l.mu.Unlock()

	l.metrics.CaptureSessions.Add(ctx, 1)
	l.logger.Info("pitch detection started", "period", l.period)
	return nil
}

// Stop cancels the pending tick, releases the microphone and clears the
// detection. Stopping an idle loop is a no-op.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.state == Idle {
		l.mu.Unlock()
		return
	}
	l.generation++
	s := l.session
	l.session = nil
	l.state = Idle
	l.detected = nil
	l.mu.Unlock()

	if s != nil {
		if s.timer != nil {
			s.timer.Stop()
		}
		if err := s.capturer.Stop(); err != nil {
			l.logger.Warn("failed to release microphone", "err", err)
		}
		l.metrics.CaptureSessions.Add(context.Background(), -1)
		l.logger.Info("pitch detection stopped")
	}

	// A tick that got past its generation check before us publishes first.
	l.pubMu.Lock()
	l.listener.OnClear()
	l.pubMu.Unlock()
}

// tick samples the microphone once and re-arms the next tick only after
// the current one has finished.
func (l *Loop) tick(gen uint64) {
	l.mu.Lock()
	if l.generation != gen || l.session == nil {
		l.mu.Unlock()
		return
	}
	capturer := l.session.capturer
	l.mu.Unlock()

	ctx := context.Background()
	l.metrics.DetectionTicks.Add(ctx, 1)

	note, found := l.detect(ctx, capturer)

	l.pubMu.Lock()
	defer l.pubMu.Unlock()

	l.mu.Lock()
	if l.generation != gen || l.session == nil {
		l.mu.Unlock()
		return
	}
	if found {
		l.detected = &note
	} else {
		l.detected = nil
	}
	l.session.timer = l.scheduler.AfterFunc(l.period, func() { l.tick(gen) })
	l.mu.Unlock()

	if found {
		l.metrics.DetectedNotes.Add(ctx, 1, metric.WithAttributes(attribute.String("note", note.Name)))
		l.listener.OnNote(note)
	} else {
		l.metrics.DetectionMisses.Add(ctx, 1)
		l.listener.OnClear()
	}
}

// detect captures the current frame and runs the detector on it
func (l *Loop) detect(ctx context.Context, capturer audio.Capturer) (pitch.Note, bool) {
	buffer, err := capturer.GetBuffer()
	if err != nil {
		l.logger.Debug("no audio frame", "err", err)
		return pitch.Note{}, false
	}

	start := time.Now()
	note, err := l.detector.DetectPitch(buffer)
	l.metrics.EstimateDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, pitch.ErrNoFundamental) && !errors.Is(err, pitch.ErrEmptyBuffer) {
			l.logger.Debug("pitch detection failed", "err", err)
		}
		return pitch.Note{}, false
	}
	return *note, true
}
