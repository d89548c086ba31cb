// Package sample holds the panel's flow readings: the sample type, the
// session history, the background poller that produces readings and the
// statistics and export helpers that consume them.
package sample

import (
	"math"
	"sync"
	"time"

	"github.com/itohio/gogmc/pkg/channel"
)

// Sample is one polling tick's worth of flow readings. A NaN value means
// the slot had no valid reading that tick (command failure, empty or
// non-numeric response), never that the slot doesn't exist.
type Sample struct {
	Timestamp time.Time
	Flows     map[channel.Slot]float64
}

// Flow returns the reading for a slot, NaN when the sample has none.
func (s Sample) Flow(slot channel.Slot) float64 {
	if v, ok := s.Flows[slot]; ok {
		return v
	}
	return math.NaN()
}

// Log is the session's append-only reading history. The poller writes it,
// the chart and export read it through Snapshot.
type Log struct {
	mu      sync.RWMutex
	samples []Sample
}

// NewLog creates an empty history.
func NewLog() *Log {
	return &Log{}
}

// Append adds a sample to the history.
func (l *Log) Append(s Sample) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.samples = append(l.samples, s)
}

// Len returns the number of samples recorded so far.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.samples)
}

// Snapshot returns a copy of the history.
func (l *Log) Snapshot() []Sample {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Sample, len(l.samples))
	copy(out, l.samples)
	return out
}

// Reset drops the recorded history, e.g. when a new session starts.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.samples = nil
}
