package channel

import (
	"errors"
	"fmt"
)

// Slot identifies a logical gas line on the panel. Which physical GMC1200
// channel a slot drives is decided by the Mapping, not by the slot itself.
type Slot string

const (
	SlotA Slot = "A"
	SlotB Slot = "B"
	SlotC Slot = "C"
	SlotD Slot = "D"
)

// Physical channel numbers accepted by the GMC1200 mainframe.
const (
	MinChannel = 1
	MaxChannel = 8
)

var (
	ErrInvalidSlot    = errors.New("slot not configured")
	ErrInvalidChannel = errors.New("channel out of range")
)

var allSlots = []Slot{SlotA, SlotB, SlotC, SlotD}

// Slots returns the logical slots of a panel with the given number of lines.
// Panels come in two- and four-line builds; anything else is clamped.
func Slots(count int) []Slot {
	if count < 2 {
		count = 2
	}
	if count > len(allSlots) {
		count = len(allSlots)
	}
	slots := make([]Slot, count)
	copy(slots, allSlots[:count])
	return slots
}

// Mapping assigns logical slots to physical GMC1200 channels. It is owned
// and edited by the UI layer; everything else reads it at the moment a
// command is issued and never caches the result. Duplicate physical
// channels across slots are permitted, the mainframe simply receives the
// same channel number twice.
type Mapping map[Slot]int

// DefaultMapping maps the first count slots onto channels 1..count.
func DefaultMapping(count int) Mapping {
	m := make(Mapping, count)
	for i, slot := range Slots(count) {
		m[slot] = i + 1
	}
	return m
}

// Resolve returns the physical channel assigned to slot.
func (m Mapping) Resolve(slot Slot) (int, error) {
	ch, ok := m[slot]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrInvalidSlot, slot)
	}
	if ch < MinChannel || ch > MaxChannel {
		return 0, fmt.Errorf("%w: slot %s maps to channel %d", ErrInvalidChannel, slot, ch)
	}
	return ch, nil
}

// Validate checks that every assigned channel is one the mainframe accepts.
func (m Mapping) Validate() error {
	for slot, ch := range m {
		if ch < MinChannel || ch > MaxChannel {
			return fmt.Errorf("%w: slot %s maps to channel %d", ErrInvalidChannel, slot, ch)
		}
	}
	return nil
}

// SlotsFor returns the slots currently assigned to a physical channel, in
// slot order. With duplicate assignments a channel can have several; a
// channel no slot points at yields none.
func (m Mapping) SlotsFor(ch int) []Slot {
	var out []Slot
	for _, slot := range allSlots {
		if mapped, ok := m[slot]; ok && mapped == ch {
			out = append(out, slot)
		}
	}
	return out
}

// Clone returns an independent copy of the mapping.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for slot, ch := range m {
		out[slot] = ch
	}
	return out
}
