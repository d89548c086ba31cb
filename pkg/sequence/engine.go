package sequence

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/itohio/gogmc/pkg/channel"
	"github.com/itohio/gogmc/pkg/gmc"
)

// Outcome tells how a run ended.
type Outcome int

const (
	Completed Outcome = iota
	Cancelled
	Faulted
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Faulted:
		return "faulted"
	}
	return "unknown"
}

// holdTick bounds how long a stop request can go unnoticed during a hold.
const holdTick = 200 * time.Millisecond

var (
	// ErrAlreadyRunning is returned by Start while a run is in progress.
	ErrAlreadyRunning = errors.New("sequence already running")
	// ErrNotConnected is returned by Start without an open device session.
	ErrNotConnected = errors.New("device not connected")
	// ErrEmptySequence is returned by Start when no step drives a channel.
	ErrEmptySequence = errors.New("sequence has no effective steps")
)

// Engine runs one dosing program at a time on a worker goroutine.
//
// Callbacks fire on the worker; UI code hops threads itself. Set them
// before the first Start.
type Engine struct {
	// OnStep reports the 1-based step about to be driven and the total.
	OnStep func(index, total int)
	// OnSetpoint reports every setpoint written, once per slot currently
	// assigned to the written channel. Needs Mapping.
	OnSetpoint func(slot channel.Slot, value float64)
	// OnDone fires exactly once per run, however it ended.
	OnDone func(outcome Outcome)
	// Mapping supplies the live slot assignment for OnSetpoint. The
	// lookup happens at command time: editing the mapping mid-run moves
	// the bookkeeping, not the commands.
	Mapping func() channel.Mapping

	mu      sync.Mutex
	running bool
	step    int
	cancel  context.CancelFunc
}

// NewEngine creates an idle engine.
func NewEngine() *Engine {
	return &Engine{step: -1}
}

// Status reports whether a run is in progress and the 0-based index of the
// step being driven, -1 when idle.
func (e *Engine) Status() (running bool, stepIndex int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running, e.step
}

// Start launches a program on dev and returns immediately. Steps that
// drive no channel are dropped first.
func (e *Engine) Start(dev gmc.Device, steps []Step) error {
	effective := make([]Step, 0, len(steps))
	for _, s := range steps {
		if !s.Empty() {
			effective = append(effective, s)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrAlreadyRunning
	}
	if dev == nil || !dev.IsConnected() {
		return ErrNotConnected
	}
	if len(effective) == 0 {
		return ErrEmptySequence
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.running = true
	e.step = -1
	e.cancel = cancel

	go e.run(ctx, dev, effective)

	return nil
}

// Stop requests cancellation of the running program. The command in flight
// finishes; the run ends before the next step starts. No-op when idle.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) run(ctx context.Context, dev gmc.Device, steps []Step) {
	outcome := Completed

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Sequence fault: %v", r)
			outcome = Faulted
		}

		// Whatever ended the run, leave the rig with every valve shut.
		dev.AllOff(0)

		e.mu.Lock()
		e.running = false
		e.step = -1
		e.cancel = nil
		e.mu.Unlock()

		if e.OnDone != nil {
			e.OnDone(outcome)
		}
	}()

	for i, step := range steps {
		e.mu.Lock()
		e.step = i
		e.mu.Unlock()

		if e.OnStep != nil {
			e.OnStep(i+1, len(steps))
		}

		if ctx.Err() != nil {
			outcome = Cancelled
			return
		}

		e.applyStep(dev, step)

		if !e.hold(ctx, step.Duration) {
			outcome = Cancelled
			return
		}
	}
}

// applyStep issues one step's commands: offs first, then every setpoint in
// channel order, then the matching flow-on commands. A failed command is
// logged and the step carries on.
func (e *Engine) applyStep(dev gmc.Device, step Step) {
	for _, ch := range step.Off {
		if _, err := dev.SetFlow(ch, false); err != nil {
			log.Printf("Failed to switch off channel %d: %v", ch, err)
		}
	}

	channels := step.Channels()
	for _, ch := range channels {
		value := step.Setpoints[ch]
		if _, err := dev.SetSetpoint(ch, value); err != nil {
			log.Printf("Failed to set channel %d setpoint: %v", ch, err)
		}
		e.notifySetpoint(ch, value)
	}

	for _, ch := range channels {
		if _, err := dev.SetFlow(ch, true); err != nil {
			log.Printf("Failed to open channel %d: %v", ch, err)
		}
	}
}

// notifySetpoint reports a written setpoint against the slots the channel
// is assigned to right now.
func (e *Engine) notifySetpoint(ch int, value float64) {
	if e.OnSetpoint == nil || e.Mapping == nil {
		return
	}
	for _, slot := range e.Mapping().SlotsFor(ch) {
		e.OnSetpoint(slot, value)
	}
}

// hold waits out a step's duration in short ticks so a stop request is
// noticed promptly. Returns false when the run was cancelled.
func (e *Engine) hold(ctx context.Context, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		if remaining > holdTick {
			remaining = holdTick
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(remaining):
		}
	}
}
