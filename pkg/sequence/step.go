// Package sequence runs timed dosing programs against a GMC1200. A program
// is a list of steps; each step drives a set of physical channels to new
// setpoints, switches the rest off and holds for a duration.
package sequence

import (
	"sort"
	"time"

	"github.com/itohio/gogmc/pkg/channel"
)

// Step is one row of a dosing program, bound to physical channels. A
// channel appears in Setpoints or in Off, never both; StepForSlots
// guarantees that.
type Step struct {
	// Setpoints holds the flow (sccm) each driven channel is set to.
	Setpoints map[int]float64
	// Off lists the channels switched off for this step, ascending.
	Off []int
	// Duration is how long the step holds after its commands are sent.
	Duration time.Duration
}

// Empty reports whether the step drives no channel at all. Empty steps are
// dropped before a run starts.
func (s Step) Empty() bool {
	return len(s.Setpoints) == 0 && len(s.Off) == 0
}

// Channels returns the step's setpoint channels in ascending order, the
// order they are written to the mainframe in.
func (s Step) Channels() []int {
	out := make([]int, 0, len(s.Setpoints))
	for ch := range s.Setpoints {
		out = append(out, ch)
	}
	sort.Ints(out)
	return out
}

// StepForSlots builds a step from per-slot flows. A slot with positive
// flow becomes a setpoint, anything else switches its channel off. Each
// slot is resolved through the mapping once, here: the step's physical
// channels are fixed from this point on, even if the mapping is edited
// while the program runs.
func StepForSlots(mapping channel.Mapping, flows map[channel.Slot]float64, duration time.Duration) (Step, error) {
	slots := make([]channel.Slot, 0, len(flows))
	for slot := range flows {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })

	step := Step{
		Setpoints: make(map[int]float64, len(flows)),
		Duration:  duration,
	}

	var offs []int
	for _, slot := range slots {
		ch, err := mapping.Resolve(slot)
		if err != nil {
			return Step{}, err
		}
		if flow := flows[slot]; flow > 0 {
			step.Setpoints[ch] = flow
		} else {
			offs = append(offs, ch)
		}
	}

	// Aliased slots can claim the same channel twice; a driven channel
	// stays driven and Off never repeats a channel.
	seen := make(map[int]bool, len(offs))
	for _, ch := range offs {
		if seen[ch] {
			continue
		}
		seen[ch] = true
		if _, driven := step.Setpoints[ch]; !driven {
			step.Off = append(step.Off, ch)
		}
	}
	sort.Ints(step.Off)

	return step, nil
}
