package gmc

// Device defines the interface for GMC1200 mainframes (real or mocked).
type Device interface {
	Connect() error
	Close() error
	// SendCommand frames body for the wire and performs one exchange.
	// The raw trimmed response is returned when expectResponse is true.
	SendCommand(body string, expectResponse bool) (string, error)
	SetSetpoint(channel int, value float64) (string, error)
	SetFlow(channel int, on bool) (string, error)
	ReadFlow(channel int) (string, error)
	// AllOff sweeps channels 1..maxChannels with flow-off commands,
	// tolerating and continuing past individual failures.
	AllOff(maxChannels int)
	IsConnected() bool
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)
