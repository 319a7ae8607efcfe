// Package capture drives the timed liveness capture protocol and the bounded
// voice recording window.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kycbuster/internal/evidence/models"
	dErrors "kycbuster/pkg/domain-errors"
)

// Phase is where the sequencer is within the current step.
type Phase string

const (
	PhaseCountdown Phase = "countdown"
	PhaseConfirm   Phase = "confirm"
	PhaseComplete  Phase = "complete"
)

// State is the sequencer's position. It only changes on a tick.
type State struct {
	Step      int
	Countdown int
	Phase     Phase
}

// EventType labels what an observer is being told.
type EventType string

const (
	EventInstruction EventType = "instruction"
	EventCountdown   EventType = "countdown"
	EventCaptured    EventType = "captured"
	EventComplete    EventType = "complete"
)

// Event describes a visible change in the capture protocol.
type Event struct {
	Type  EventType
	State State
	Pose  models.Pose
	Text  string
}

const (
	DefaultUnit           = time.Second
	DefaultCountdownTicks = 3
	DefaultConfirmTicks   = 1
)

// Sequencer runs the five-pose capture protocol. It is not safe for
// concurrent Runs; each session owns its own.
type Sequencer struct {
	clock          Clock
	unit           time.Duration
	countdownTicks int
	confirmTicks   int
	observe        func(Event)
}

type SequencerOption func(*Sequencer)

// WithUnit sets the duration of one tick.
func WithUnit(d time.Duration) SequencerOption {
	return func(s *Sequencer) {
		if d > 0 {
			s.unit = d
		}
	}
}

// WithObserver receives every event synchronously on the sequencer goroutine.
func WithObserver(fn func(Event)) SequencerOption {
	return func(s *Sequencer) { s.observe = fn }
}

func NewSequencer(clock Clock, opts ...SequencerOption) *Sequencer {
	if clock == nil {
		clock = RealClock{}
	}
	s := &Sequencer{
		clock:          clock,
		unit:           DefaultUnit,
		countdownTicks: DefaultCountdownTicks,
		confirmTicks:   DefaultConfirmTicks,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run captures one frame per pose in order. The camera is released before Run
// returns, whether the sequence completes, fails or is cancelled. A cancelled
// or failed run discards its partial frames. A camera that cannot be stopped
// fails the run, even when every frame was captured.
func (s *Sequencer) Run(ctx context.Context, cam Camera) (capture *models.LivenessCapture, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := cam.Start(ctx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeResourceUnavailable, "camera unavailable")
	}
	released := false
	var stopErr error
	release := func() error {
		if !released {
			released = true
			if err := cam.Stop(); err != nil {
				stopErr = dErrors.Wrap(err, dErrors.CodeResourceUnavailable, "camera could not be released")
			}
		}
		return stopErr
	}
	defer func() {
		if release() != nil && !errors.Is(err, stopErr) {
			capture = nil
			err = errors.Join(err, stopErr)
		}
	}()

	ticker := s.clock.NewTicker(s.unit)
	defer ticker.Stop()

	frames := make([]models.Frame, 0, models.FrameCount)
	st := State{Step: 0, Countdown: s.countdownTicks, Phase: PhaseCountdown}
	confirmLeft := 0
	s.enterStep(st)

	for st.Phase != PhaseComplete {
		select {
		case <-ctx.Done():
		case <-ticker.C():
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("liveness capture aborted after %d of %d frames: %w", len(frames), models.FrameCount, err)
		}

		pose := models.Poses[st.Step]
		switch st.Phase {
		case PhaseCountdown:
			st.Countdown--
			if st.Countdown > 0 {
				s.emit(Event{Type: EventCountdown, State: st, Pose: pose})
				continue
			}
			img, err := cam.Capture(ctx)
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeResourceUnavailable,
					fmt.Sprintf("camera failed during %s", pose))
			}
			frames = append(frames, models.Frame{Step: st.Step, Pose: pose, Image: img})
			st.Phase = PhaseConfirm
			confirmLeft = s.confirmTicks
			s.emit(Event{Type: EventCaptured, State: st, Pose: pose, Text: pose.Feedback()})

		case PhaseConfirm:
			confirmLeft--
			if confirmLeft > 0 {
				continue
			}
			if st.Step == models.FrameCount-1 {
				if err := release(); err != nil {
					return nil, err
				}
				st.Phase = PhaseComplete
				s.emit(Event{Type: EventComplete, State: st, Pose: pose})
				continue
			}
			st = State{Step: st.Step + 1, Countdown: s.countdownTicks, Phase: PhaseCountdown}
			s.enterStep(st)
		}
	}

	return models.NewLivenessCapture(frames)
}

func (s *Sequencer) enterStep(st State) {
	pose := models.Poses[st.Step]
	s.emit(Event{Type: EventInstruction, State: st, Pose: pose, Text: pose.Instruction()})
	s.emit(Event{Type: EventCountdown, State: st, Pose: pose})
}

func (s *Sequencer) emit(e Event) {
	if s.observe != nil {
		s.observe(e)
	}
}
