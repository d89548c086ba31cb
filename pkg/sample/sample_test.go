package sample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gogmc/pkg/channel"
)

func TestSample_Flow(t *testing.T) {
	s := Sample{Flows: map[channel.Slot]float64{channel.SlotA: 42}}

	assert.Equal(t, 42.0, s.Flow(channel.SlotA))
	assert.True(t, math.IsNaN(s.Flow(channel.SlotB)))
	assert.True(t, math.IsNaN(Sample{}.Flow(channel.SlotA)))
}

func TestLog(t *testing.T) {
	l := NewLog()
	assert.Zero(t, l.Len())

	l.Append(Sample{Flows: map[channel.Slot]float64{channel.SlotA: 1}})
	l.Append(Sample{Flows: map[channel.Slot]float64{channel.SlotA: 2}})
	assert.Equal(t, 2, l.Len())

	snap := l.Snapshot()
	require.Len(t, snap, 2)

	l.Append(Sample{})
	assert.Len(t, snap, 2, "snapshot must not grow with the log")
	assert.Equal(t, 3, l.Len())

	l.Reset()
	assert.Zero(t, l.Len())
	assert.Len(t, snap, 2)
}
