package gmc

import (
	"strings"
	"sync"
	"time"

	"github.com/itohio/gogmc/pkg/config"
)

// Mock simulates a GMC1200 for testing and development. It speaks the full
// command set through the same SendCommand path as the real client, backed
// by a Sim, and records every framed command it receives.
type Mock struct {
	cfg *config.MockConfig

	mu        sync.RWMutex
	connected bool
	sim       *Sim
	commands  []string
}

// NewMock creates a new mocked device instance.
func NewMock(cfg *config.MockConfig) *Mock {
	return &Mock{
		cfg: cfg,
		sim: NewSim(cfg),
	}
}

// Connect simulates connecting to the device. Reconnecting resets the
// simulated mainframe, like power-cycling the real one.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sim.Reset(time.Now())
	m.connected = true

	return nil
}

// Close stops the mocked device. Idempotent.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = false

	return nil
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// SendCommand frames the body exactly like the serial client, records it,
// and feeds it to the simulated mainframe.
func (m *Mock) SendCommand(body string, expectResponse bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return "", ErrNotConnected
	}

	if !strings.HasPrefix(body, "#") {
		body = "#" + body
	}
	m.commands = append(m.commands, body)

	resp := m.sim.Execute(time.Now(), body)
	if !expectResponse {
		return "", nil
	}

	return resp, nil
}

// SetSetpoint writes the flow setpoint of a simulated channel.
func (m *Mock) SetSetpoint(channel int, value float64) (string, error) {
	return m.SendCommand(setpointCommand(channel, value), true)
}

// SetFlow switches a simulated channel's flow on or off.
func (m *Mock) SetFlow(channel int, on bool) (string, error) {
	return m.SendCommand(flowCommand(channel, on), true)
}

// ReadFlow reads the simulated flow of a channel.
func (m *Mock) ReadFlow(channel int) (string, error) {
	return m.SendCommand(readFlowCommand(channel), true)
}

// AllOff sweeps flow-off commands across the simulated channels.
func (m *Mock) AllOff(maxChannels int) {
	allOff(m, maxChannels)
}

// Commands returns a copy of every framed command received so far.
func (m *Mock) Commands() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.commands))
	copy(out, m.commands)
	return out
}

// ResetCommands clears the recorded command log.
func (m *Mock) ResetCommands() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = m.commands[:0]
}

// Setpoint returns the last setpoint written to a simulated channel.
func (m *Mock) Setpoint(ch int) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sim.Setpoint(ch)
}

// FlowOn reports whether a simulated channel's flow switch is on.
func (m *Mock) FlowOn(ch int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sim.FlowOn(ch)
}
