package gmc

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the factory baud rate of the GMC1200 mainframe.
	DefaultBaudRate = 9600
	// DefaultReadTimeout bounds how long one response read may block.
	DefaultReadTimeout = 200 * time.Millisecond
	// MaxChannels is the number of physical channels on the mainframe.
	MaxChannels = 8

	// The mainframe needs a moment after a command before it answers.
	settleDelay = 50 * time.Millisecond
	// Responses never exceed this; one read per exchange.
	maxResponseLen = 100
)

// ErrNotConnected is returned when a device operation is attempted with no
// open session.
var ErrNotConnected = errors.New("not connected")

// allow tests to override the transport
var openPort = func(name string, mode *serial.Mode) (portHandle, error) { return serial.Open(name, mode) }

// portHandle is the slice of go.bug.st/serial.Port the client actually uses.
type portHandle interface {
	SetReadTimeout(timeout time.Duration) error
	ResetInputBuffer() error
	Write([]byte) (int, error)
	Read([]byte) (int, error)
	Close() error
}

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns the serial ports present on the system. Listing only: no
// port is opened or probed.
func Ports() ([]Port, error) {
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(names))
	for _, name := range names {
		result = append(result, Port{Name: name, Description: name})
	}

	return result, nil
}

// Serial drives a GMC1200 mainframe over a serial link. The link is
// half-duplex in practice: one command/response exchange at a time, so the
// whole exchange (buffer clear, write, settle, read) runs under one lock.
type Serial struct {
	port        string
	baudRate    int
	readTimeout time.Duration

	conn      portHandle
	mu        sync.RWMutex
	connected bool
}

// New creates a new Serial client for the given port. Zero baudRate and
// readTimeout select the mainframe defaults.
func New(port string, baudRate int, readTimeout time.Duration) *Serial {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	return &Serial{
		port:        port,
		baudRate:    baudRate,
		readTimeout: readTimeout,
	}
}

// Connect opens the serial session with the instrument's fixed 8-N-1
// framing. A session that is already open is closed first, so two handles
// never coexist.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			log.Printf("Error closing previous session: %v", err)
		}
		d.conn = nil
		d.connected = false
	}

	mode := &serial.Mode{
		BaudRate: d.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := openPort(d.port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	if err := port.SetReadTimeout(d.readTimeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout on %s: %w", d.port, err)
	}

	d.conn = port
	d.connected = true

	return nil
}

// Close closes the session. Calling it when already closed is a no-op.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.connected = false
	conn := d.conn
	d.conn = nil

	if conn != nil {
		if err := conn.Close(); err != nil {
			return fmt.Errorf("failed to close serial port: %w", err)
		}
	}

	return nil
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// SendCommand performs one command/response exchange. The body is prefixed
// with a single '#' if it doesn't carry one, terminated with a carriage
// return and written as ASCII. When a response is expected, the receive
// buffer is cleared first and the read happens after the settle delay;
// the response comes back with surrounding whitespace trimmed and any
// non-ASCII bytes dropped.
func (d *Serial) SendCommand(body string, expectResponse bool) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected || d.conn == nil {
		return "", ErrNotConnected
	}

	if !strings.HasPrefix(body, "#") {
		body = "#" + body
	}
	wire := body + "\r"

	if expectResponse {
		// Stale bytes from an earlier exchange would be read back as
		// this command's response.
		if err := d.conn.ResetInputBuffer(); err != nil {
			log.Printf("Failed to clear receive buffer: %v", err)
		}
	}

	if _, err := d.conn.Write([]byte(wire)); err != nil {
		return "", fmt.Errorf("failed to send command %q: %w", body, err)
	}

	if !expectResponse {
		return "", nil
	}

	time.Sleep(settleDelay)

	buf := make([]byte, maxResponseLen)
	n, err := d.conn.Read(buf)
	if err != nil {
		return "", fmt.Errorf("failed to read response to %q: %w", body, err)
	}

	return decodeResponse(buf[:n]), nil
}

// SetSetpoint writes the flow setpoint (sccm) of a physical channel and
// returns the raw response.
func (d *Serial) SetSetpoint(channel int, value float64) (string, error) {
	return d.SendCommand(setpointCommand(channel, value), true)
}

// SetFlow switches a physical channel's flow on or off and returns the raw
// response.
func (d *Serial) SetFlow(channel int, on bool) (string, error) {
	return d.SendCommand(flowCommand(channel, on), true)
}

// ReadFlow reads the current flow of a physical channel. The response is
// returned as the raw trimmed string; the caller decides what a non-numeric
// answer means.
func (d *Serial) ReadFlow(channel int) (string, error) {
	return d.SendCommand(readFlowCommand(channel), true)
}

// AllOff switches off channels 1..maxChannels (all 8 when maxChannels is
// zero or negative). Best effort: every channel is attempted regardless of
// individual failures, which are logged and swallowed.
func (d *Serial) AllOff(maxChannels int) {
	allOff(d, maxChannels)
}

// allOff drives the off-sweep shared by every Device implementation.
func allOff(d Device, maxChannels int) {
	if maxChannels <= 0 {
		maxChannels = MaxChannels
	}
	for ch := 1; ch <= maxChannels; ch++ {
		if _, err := d.SetFlow(ch, false); err != nil {
			log.Printf("Failed to switch off channel %d: %v", ch, err)
		}
	}
}

func setpointCommand(channel int, value float64) string {
	return fmt.Sprintf("SS%d %s", channel, formatFlow(value))
}

func flowCommand(channel int, on bool) string {
	state := 0
	if on {
		state = 1
	}
	return fmt.Sprintf("SF%d %d", channel, state)
}

func readFlowCommand(channel int) string {
	return fmt.Sprintf("RF%d", channel)
}

// formatFlow renders a setpoint the way the mainframe expects: plain
// decimal, no trailing zeros, no exponent.
func formatFlow(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// decodeResponse drops bytes the instrument should never send (the link
// picks up line noise) and trims surrounding whitespace.
func decodeResponse(buf []byte) string {
	ascii := make([]byte, 0, len(buf))
	for _, b := range buf {
		if b < 0x80 {
			ascii = append(ascii, b)
		}
	}
	return strings.TrimSpace(string(ascii))
}
