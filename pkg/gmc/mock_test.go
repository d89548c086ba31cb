package gmc

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gogmc/pkg/config"
)

func TestMock_ConnectClose(t *testing.T) {
	m := NewMock(nil)
	assert.False(t, m.IsConnected())

	require.NoError(t, m.Connect())
	assert.True(t, m.IsConnected())

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.False(t, m.IsConnected())
}

func TestMock_NotConnected(t *testing.T) {
	m := NewMock(nil)

	_, err := m.SendCommand("RF1", true)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = m.ReadFlow(1)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestMock_CommandLog(t *testing.T) {
	m := NewMock(nil)
	require.NoError(t, m.Connect())

	_, err := m.SetSetpoint(1, 100)
	require.NoError(t, err)
	_, err = m.SendCommand("#SF1 1", true)
	require.NoError(t, err)

	assert.Equal(t, []string{"#SS1 100", "#SF1 1"}, m.Commands())

	m.ResetCommands()
	assert.Empty(t, m.Commands())
}

func TestMock_StateTracking(t *testing.T) {
	m := NewMock(nil)
	require.NoError(t, m.Connect())

	resp, err := m.SetSetpoint(2, 250)
	require.NoError(t, err)
	assert.Equal(t, "OK", resp)

	resp, err = m.SetFlow(2, true)
	require.NoError(t, err)
	assert.Equal(t, "OK", resp)

	assert.Equal(t, 250.0, m.Setpoint(2))
	assert.True(t, m.FlowOn(2))
	assert.False(t, m.FlowOn(1))
}

func TestMock_ReadFlowConverges(t *testing.T) {
	m := NewMock(&config.MockConfig{TimeConstant: 50 * time.Millisecond})
	require.NoError(t, m.Connect())

	_, err := m.SetSetpoint(1, 200)
	require.NoError(t, err)
	_, err = m.SetFlow(1, true)
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)

	resp, err := m.ReadFlow(1)
	require.NoError(t, err)

	v, err := strconv.ParseFloat(resp, 64)
	require.NoError(t, err)
	assert.InDelta(t, 200, v, 1)
}

func TestMock_MalformedCommand(t *testing.T) {
	m := NewMock(nil)
	require.NoError(t, m.Connect())

	resp, err := m.SendCommand("XX1 5", true)
	require.NoError(t, err)
	assert.Equal(t, "ERR", resp)
}

func TestMock_AllOff(t *testing.T) {
	m := NewMock(nil)
	require.NoError(t, m.Connect())

	_, err := m.SetFlow(1, true)
	require.NoError(t, err)
	_, err = m.SetFlow(3, true)
	require.NoError(t, err)
	m.ResetCommands()

	m.AllOff(4)

	assert.Equal(t, []string{"#SF1 0", "#SF2 0", "#SF3 0", "#SF4 0"}, m.Commands())
	assert.False(t, m.FlowOn(1))
	assert.False(t, m.FlowOn(3))
}

func TestMock_ReconnectResets(t *testing.T) {
	m := NewMock(nil)
	require.NoError(t, m.Connect())

	_, err := m.SetSetpoint(1, 500)
	require.NoError(t, err)
	_, err = m.SetFlow(1, true)
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Connect())

	assert.Zero(t, m.Setpoint(1))
	assert.False(t, m.FlowOn(1))
}
