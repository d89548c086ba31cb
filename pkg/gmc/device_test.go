package gmc

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// fakePort stands in for the OS serial port behind openPort.
type fakePort struct {
	mu       sync.Mutex
	writes   []string
	reads    []string
	writeErr func(wire string) error
	readErr  error
	resets   int
	closed   bool
	timeout  time.Duration
}

func (f *fakePort) SetReadTimeout(t time.Duration) error {
	f.timeout = t
	return nil
}

func (f *fakePort) ResetInputBuffer() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return nil
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	wire := string(p)
	f.writes = append(f.writes, wire)
	if f.writeErr != nil {
		if err := f.writeErr(wire); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (f *fakePort) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.readErr != nil {
		return 0, f.readErr
	}
	if len(f.reads) == 0 {
		// Timeout expired with nothing on the wire.
		return 0, nil
	}
	n := copy(p, f.reads[0])
	f.reads = f.reads[1:]
	return n, nil
}

func (f *fakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakePort) sentWires() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.writes))
	copy(out, f.writes)
	return out
}

// connectFake wires a Serial client to a fake port for the test's duration.
func connectFake(t *testing.T, f *fakePort) *Serial {
	t.Helper()

	orig := openPort
	openPort = func(name string, mode *serial.Mode) (portHandle, error) { return f, nil }
	t.Cleanup(func() { openPort = orig })

	d := New("COM9", 0, 0)
	require.NoError(t, d.Connect())
	return d
}

func TestNew_Defaults(t *testing.T) {
	d := New("COM3", 0, 0)

	assert.Equal(t, "COM3", d.port)
	assert.Equal(t, DefaultBaudRate, d.baudRate)
	assert.Equal(t, DefaultReadTimeout, d.readTimeout)
	assert.False(t, d.IsConnected())
}

func TestNew_ExplicitSettings(t *testing.T) {
	d := New("/dev/ttyUSB0", 19200, 500*time.Millisecond)

	assert.Equal(t, 19200, d.baudRate)
	assert.Equal(t, 500*time.Millisecond, d.readTimeout)
}

func TestConnect_OpenError(t *testing.T) {
	orig := openPort
	openPort = func(name string, mode *serial.Mode) (portHandle, error) {
		return nil, errors.New("no such port")
	}
	t.Cleanup(func() { openPort = orig })

	d := New("COM9", 0, 0)
	err := d.Connect()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "COM9")
	assert.False(t, d.IsConnected())
}

func TestConnect_AppliesFixedFraming(t *testing.T) {
	f := &fakePort{}
	var got *serial.Mode

	orig := openPort
	openPort = func(name string, mode *serial.Mode) (portHandle, error) {
		got = mode
		return f, nil
	}
	t.Cleanup(func() { openPort = orig })

	d := New("COM9", 0, 300*time.Millisecond)
	require.NoError(t, d.Connect())

	require.NotNil(t, got)
	assert.Equal(t, DefaultBaudRate, got.BaudRate)
	assert.Equal(t, 8, got.DataBits)
	assert.Equal(t, serial.NoParity, got.Parity)
	assert.Equal(t, serial.OneStopBit, got.StopBits)
	assert.Equal(t, 300*time.Millisecond, f.timeout)
}

func TestConnect_ReplacesOpenSession(t *testing.T) {
	first := &fakePort{}
	second := &fakePort{}
	ports := []*fakePort{first, second}

	orig := openPort
	openPort = func(name string, mode *serial.Mode) (portHandle, error) {
		p := ports[0]
		ports = ports[1:]
		return p, nil
	}
	t.Cleanup(func() { openPort = orig })

	d := New("COM9", 0, 0)
	require.NoError(t, d.Connect())
	require.NoError(t, d.Connect())

	assert.True(t, first.closed)
	assert.False(t, second.closed)
	assert.True(t, d.IsConnected())
}

func TestClose_Idempotent(t *testing.T) {
	f := &fakePort{}
	d := connectFake(t, f)

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	assert.True(t, f.closed)
	assert.False(t, d.IsConnected())
}

func TestClose_NotConnected(t *testing.T) {
	d := New("COM9", 0, 0)
	assert.NoError(t, d.Close())
}

func TestSendCommand_Framing(t *testing.T) {
	tests := []struct {
		name string
		body string
		wire string
	}{
		{"bare body gains prefix", "SS1 100", "#SS1 100\r"},
		{"existing prefix kept", "#SS1 100", "#SS1 100\r"},
		{"flow off", "SF2 0", "#SF2 0\r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakePort{reads: []string{"OK\r\n"}}
			d := connectFake(t, f)

			resp, err := d.SendCommand(tt.body, true)
			require.NoError(t, err)
			assert.Equal(t, "OK", resp)

			wires := f.sentWires()
			require.Len(t, wires, 1)
			assert.Equal(t, tt.wire, wires[0])
			assert.Equal(t, 1, f.resets)
		})
	}
}

func TestSendCommand_FireAndForget(t *testing.T) {
	f := &fakePort{}
	d := connectFake(t, f)

	resp, err := d.SendCommand("SF1 0", false)
	require.NoError(t, err)

	assert.Empty(t, resp)
	assert.Equal(t, 0, f.resets)
	assert.Equal(t, []string{"#SF1 0\r"}, f.sentWires())
}

func TestSendCommand_NotConnected(t *testing.T) {
	d := New("COM9", 0, 0)

	_, err := d.SendCommand("RF1", true)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = d.SetSetpoint(1, 100)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = d.SetFlow(1, true)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = d.ReadFlow(1)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSendCommand_WriteError(t *testing.T) {
	f := &fakePort{writeErr: func(string) error { return errors.New("port gone") }}
	d := connectFake(t, f)

	_, err := d.SendCommand("RF1", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "#RF1")
}

func TestSendCommand_ReadError(t *testing.T) {
	f := &fakePort{readErr: errors.New("io fail")}
	d := connectFake(t, f)

	_, err := d.SendCommand("RF1", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read response")
}

func TestSendCommand_TimeoutReturnsEmpty(t *testing.T) {
	f := &fakePort{}
	d := connectFake(t, f)

	resp, err := d.SendCommand("RF1", true)
	require.NoError(t, err)
	assert.Empty(t, resp)
}

func TestCommandWires(t *testing.T) {
	f := &fakePort{reads: []string{"OK\r\n", "OK\r\n", "123.45\r\n"}}
	d := connectFake(t, f)

	_, err := d.SetSetpoint(1, 750)
	require.NoError(t, err)
	_, err = d.SetFlow(3, true)
	require.NoError(t, err)
	resp, err := d.ReadFlow(2)
	require.NoError(t, err)

	assert.Equal(t, "123.45", resp)
	assert.Equal(t, []string{"#SS1 750\r", "#SF3 1\r", "#RF2\r"}, f.sentWires())
}

func TestAllOff_BestEffort(t *testing.T) {
	f := &fakePort{
		writeErr: func(wire string) error {
			if strings.HasPrefix(wire, "#SF1 ") || strings.HasPrefix(wire, "#SF2 ") {
				return errors.New("write failed")
			}
			return nil
		},
	}
	d := connectFake(t, f)

	d.AllOff(4)

	assert.Equal(t, []string{"#SF1 0\r", "#SF2 0\r", "#SF3 0\r", "#SF4 0\r"}, f.sentWires())
}

func TestAllOff_DefaultSweep(t *testing.T) {
	f := &fakePort{}
	d := connectFake(t, f)

	d.AllOff(0)

	wires := f.sentWires()
	require.Len(t, wires, MaxChannels)
	assert.Equal(t, "#SF1 0\r", wires[0])
	assert.Equal(t, "#SF8 0\r", wires[7])
}

func TestFormatFlow(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{100, "100"},
		{750, "750"},
		{12.5, "12.5"},
		{0.25, "0.25"},
		{0, "0"},
		{1000, "1000"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatFlow(tt.value))
	}
}

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"crlf trimmed", []byte("12.3\r\n"), "12.3"},
		{"padding trimmed", []byte("  OK \r"), "OK"},
		{"line noise dropped", []byte{0xff, '4', '2', 0x80, '\r'}, "42"},
		{"empty", nil, ""},
		{"noise only", []byte{0xfe, 0xff}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeResponse(tt.in))
		})
	}
}
