package gmc

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gogmc/pkg/config"
)

func TestSim_Execute(t *testing.T) {
	tests := []struct {
		name string
		cmd  string
		want string
	}{
		{"setpoint", "SS1 100", "OK"},
		{"setpoint with prefix", "#SS1 100", "OK"},
		{"setpoint fractional", "SS8 12.5", "OK"},
		{"flow on", "SF1 1", "OK"},
		{"flow off", "SF1 0", "OK"},
		{"read flow", "RF1", "0.00"},
		{"read flow padded", " RF1 ", "0.00"},
		{"channel zero", "SS0 100", "ERR"},
		{"channel out of range", "SS9 100", "ERR"},
		{"missing value", "SS1", "ERR"},
		{"garbage value", "SS1 abc", "ERR"},
		{"unknown op", "XX1 1", "ERR"},
		{"lowercase op", "ss1 100", "ERR"},
		{"too short", "RF", "ERR"},
		{"empty", "", "ERR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSim(&config.MockConfig{TimeConstant: time.Second})
			assert.Equal(t, tt.want, s.Execute(time.Now(), tt.cmd))
		})
	}
}

func TestSim_FirstOrderResponse(t *testing.T) {
	s := NewSim(&config.MockConfig{TimeConstant: time.Second})
	now := time.Now()

	require.Equal(t, "OK", s.Execute(now, "SS1 100"))
	require.Equal(t, "OK", s.Execute(now, "SF1 1"))

	resp := s.Execute(now.Add(500*time.Millisecond), "RF1")
	half, err := strconv.ParseFloat(resp, 64)
	require.NoError(t, err)
	assert.InDelta(t, 50, half, 0.5)

	assert.Equal(t, "100.00", s.Execute(now.Add(10*time.Second), "RF1"))

	require.Equal(t, "OK", s.Execute(now.Add(10*time.Second), "SF1 0"))
	assert.Equal(t, "0.00", s.Execute(now.Add(20*time.Second), "RF1"))
}

func TestSim_ChannelsIndependent(t *testing.T) {
	s := NewSim(&config.MockConfig{TimeConstant: time.Second})
	now := time.Now()

	require.Equal(t, "OK", s.Execute(now, "SS1 100"))
	require.Equal(t, "OK", s.Execute(now, "SF1 1"))
	require.Equal(t, "OK", s.Execute(now, "SS2 300"))

	later := now.Add(5 * time.Second)
	assert.Equal(t, "100.00", s.Execute(later, "RF1"))
	assert.Equal(t, "0.00", s.Execute(later, "RF2"))
	assert.Equal(t, 300.0, s.Setpoint(2))
	assert.False(t, s.FlowOn(2))
}

func TestSim_Reset(t *testing.T) {
	s := NewSim(nil)
	now := time.Now()

	require.Equal(t, "OK", s.Execute(now, "SS3 40"))
	require.Equal(t, "OK", s.Execute(now, "SF3 1"))

	s.Reset(now.Add(time.Minute))

	assert.Zero(t, s.Setpoint(3))
	assert.False(t, s.FlowOn(3))
	assert.Zero(t, s.Flow(now.Add(time.Minute), 3))
}

func TestSim_NoisyReading(t *testing.T) {
	s := NewSim(&config.MockConfig{TimeConstant: 50 * time.Millisecond, Noise: 0.5})
	now := time.Now()

	require.Equal(t, "OK", s.Execute(now, "SS1 200"))
	require.Equal(t, "OK", s.Execute(now, "SF1 1"))

	resp := s.Execute(now.Add(time.Second), "RF1")
	v, err := strconv.ParseFloat(resp, 64)
	require.NoError(t, err)
	assert.InDelta(t, 200, v, 1)
}
