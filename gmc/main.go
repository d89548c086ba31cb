package main

import (
	"flag"
	"fmt"
	"log"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/gogmc/pkg/channel"
	"github.com/itohio/gogmc/pkg/chart"
	"github.com/itohio/gogmc/pkg/config"
	"github.com/itohio/gogmc/pkg/gmc"
	"github.com/itohio/gogmc/pkg/remote"
	"github.com/itohio/gogmc/pkg/sample"
	"github.com/itohio/gogmc/pkg/sequence"
)

func main() {
	var (
		portFlag     = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyUSB0)")
		configFlag   = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag     = flag.Bool("mock", false, "Use mocked device instead of serial port")
		channelsFlag = flag.Int("channels", 0, "Panel variant override: 2 or 4 lines")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override serial port if provided via command line
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}

	// Override panel variant if provided via command line. Lines the stored
	// mapping does not know yet get their factory channel.
	if *channelsFlag == 2 || *channelsFlag == 4 {
		cfg.Panel.Channels = *channelsFlag
		factory := channel.DefaultMapping(cfg.Panel.Channels)
		for _, slot := range channel.Slots(cfg.Panel.Channels) {
			if _, ok := cfg.Panel.Mapping[slot]; !ok {
				cfg.Panel.Mapping[slot] = factory[slot]
			}
		}
	}

	// Create Fyne application
	application := app.NewWithID("com.itohio.gogmc")

	// Create main window
	window := application.NewWindow("GMC1200 Control Panel")
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()

	// Create application state
	state := &appState{
		cfg:     cfg,
		cfgPath: *configFlag,
		window:  window,
		useMock: *mockFlag,
		slots:   channel.Slots(cfg.Panel.Channels),
		history: sample.NewLog(),
		engine:  sequence.NewEngine(),
	}
	state.engine.Mapping = state.mapping

	// Create flow chart widget
	state.chartWidget = chart.New(state.slots)

	// Start the readout server when enabled. It lives for the whole run;
	// config edits apply after a restart.
	if cfg.Remote.Enabled {
		state.remote = remote.NewServer(cfg.Remote.Listen)
		state.remote.Start()
		fmt.Printf("Readout server listening on %s\n", cfg.Remote.Listen)
	}

	state.manual = newManualPanel(state)
	state.seqPanel = newSequencePanel(state)
	wireEngineCallbacks(state)

	bar := createConnectionBar(state)

	// Manual controls stacked over the sequence table on the left, the
	// chart with its export strip on the right.
	left := container.NewBorder(state.manual.content(), nil, nil, nil, state.seqPanel.content())
	right := container.NewBorder(nil, createExportBar(state), nil, nil, state.chartWidget)

	split := container.NewHSplit(left, right)
	split.SetOffset(0.38)

	window.SetContent(container.NewBorder(bar, nil, nil, nil, split))
	window.SetOnClosed(func() {
		state.engine.Stop()
		closeSession(state)
		if state.remote != nil {
			state.remote.Close()
		}
	})
	window.ShowAndRun()
}

// session tracks the live device and its polling chain for graceful shutdown.
type session struct {
	device    gmc.Device
	poller    *sample.Poller
	chartFeed chan struct{} // closed when the chart feed goroutine exits
}

// appState holds the application state.
type appState struct {
	cfg     *config.Config
	cfgPath string
	window  fyne.Window
	useMock bool
	slots   []channel.Slot

	history     *sample.Log
	engine      *sequence.Engine
	chartWidget *chart.FlowChart
	remote      *remote.Server

	manual   *manualPanel
	seqPanel *sequencePanel

	connectBtn  *widget.Button
	portSelect  *widget.Select
	portMap     map[string]string
	baudLabel   *widget.Label
	statusLabel *widget.Label

	mu     sync.Mutex // guards device and chain
	device gmc.Device
	chain  *session

	mappingMu sync.RWMutex // guards cfg.Panel.Mapping
}

// mapping returns a snapshot of the live line-to-channel assignment. The
// engine and the poller re-resolve through this on every use, so moving a
// line to another channel takes effect immediately.
func (s *appState) mapping() channel.Mapping {
	s.mappingMu.RLock()
	defer s.mappingMu.RUnlock()
	return s.cfg.Panel.Mapping.Clone()
}

// setChannel reassigns a line to a physical channel.
func (s *appState) setChannel(slot channel.Slot, ch int) {
	s.mappingMu.Lock()
	s.cfg.Panel.Mapping[slot] = ch
	s.mappingMu.Unlock()
}

// currentDevice returns the session's device, or nil when disconnected.
func (s *appState) currentDevice() gmc.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

func (s *appState) isConnected() bool {
	dev := s.currentDevice()
	return dev != nil && dev.IsConnected()
}

// createConnectionBar builds the top bar: port picker, framing label,
// connect toggle, settings and session status.
func createConnectionBar(state *appState) fyne.CanvasObject {
	state.statusLabel = widget.NewLabel("Disconnected")
	state.baudLabel = widget.NewLabel(fmt.Sprintf("%d 8N1", state.cfg.Serial.BaudRate))

	options, portMap := portOptions(state.cfg.Serial.Port)
	state.portMap = portMap
	state.portSelect = widget.NewSelect(options, func(selected string) {
		if port, ok := state.portMap[selected]; ok && port != "" {
			state.cfg.Serial.Port = port
		}
	})
	for _, opt := range options {
		if portMap[opt] == state.cfg.Serial.Port {
			state.portSelect.SetSelected(opt)
			break
		}
	}

	state.connectBtn = widget.NewButtonWithIcon("Connect", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	return container.NewBorder(
		nil,
		nil,
		container.NewHBox(state.portSelect, state.baudLabel, state.connectBtn, settingsBtn),
		state.statusLabel,
		nil,
	)
}

// portOptions lists serial ports for a Select, keeping the display-name to
// device-name association. current is appended when the system list misses it.
func portOptions(current string) ([]string, map[string]string) {
	options := []string{}
	portMap := make(map[string]string)

	if ports, err := gmc.Ports(); err == nil {
		for _, port := range ports {
			display := port.Name
			if port.Description != "" && port.Description != port.Name {
				display = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			options = append(options, display)
			portMap[display] = port.Name
		}
	}

	found := false
	for _, opt := range options {
		if portMap[opt] == current {
			found = true
			break
		}
	}
	if !found && current != "" {
		options = append(options, current)
		portMap[current] = current
	}

	return options, portMap
}

// refreshPortBar re-syncs the connection bar with the configured port and
// baud rate after a settings change.
func refreshPortBar(state *appState) {
	options, portMap := portOptions(state.cfg.Serial.Port)
	state.portMap = portMap
	state.portSelect.Options = options
	for _, opt := range options {
		if portMap[opt] == state.cfg.Serial.Port {
			state.portSelect.SetSelected(opt)
			break
		}
	}
	state.portSelect.Refresh()
	state.baudLabel.SetText(fmt.Sprintf("%d 8N1", state.cfg.Serial.BaudRate))
}

// wireEngineCallbacks connects engine progress to the UI and the readout.
// The callbacks run on the engine goroutine; UI work hops through fyne.Do.
func wireEngineCallbacks(state *appState) {
	state.engine.OnStep = func(index, total int) {
		fyne.Do(func() {
			state.seqPanel.showRunning(index, total)
		})
		if state.remote != nil {
			state.remote.PublishStatus(true, true, index)
		}
	}
	state.engine.OnSetpoint = func(slot channel.Slot, value float64) {
		fyne.Do(func() {
			state.manual.showSetpoint(slot, value)
		})
	}
	state.engine.OnDone = func(outcome sequence.Outcome) {
		log.Printf("Sequence finished: %s", outcome)
		fyne.Do(func() {
			state.seqPanel.showIdle(outcome)
		})
		if state.remote != nil {
			state.remote.PublishStatus(state.isConnected(), false, 0)
		}
	}
}

// handleConnect toggles the serial session.
func handleConnect(state *appState) {
	if state.isConnected() {
		disconnect(state)
		return
	}

	// Connect
	var device gmc.Device
	if state.useMock {
		device = gmc.NewMock(&state.cfg.Mock)
	} else {
		device = gmc.New(state.cfg.Serial.Port, state.cfg.Serial.BaudRate, state.cfg.Serial.ReadTimeout)
	}

	if err := device.Connect(); err != nil {
		if state.useMock {
			dialog.ShowError(fmt.Errorf("failed to connect to mocked device: %w", err), state.window)
		} else {
			dialog.ShowError(fmt.Errorf("failed to connect to %s: %w", state.cfg.Serial.Port, err), state.window)
		}
		return
	}
	if state.useMock {
		fmt.Println("Connected to mocked device")
	} else {
		fmt.Printf("Connected to serial port: %s\n", state.cfg.Serial.Port)
	}

	// Poll flows into the shared history and feed the chart. The feed
	// goroutine drains until the poller closes its channel.
	poller := sample.NewPoller(device, state.history, state.cfg.Poll.Interval, state.slots, state.mapping)

	chartFeed := make(chan struct{})
	go func() {
		defer close(chartFeed)
		for smp := range poller.Samples() {
			snapshot := state.history.Snapshot()
			fyne.Do(func() {
				state.chartWidget.UpdateData(snapshot)
			})
			if state.remote != nil {
				state.remote.PublishSample(smp, state.slots)
			}
		}
	}()
	poller.Start()

	state.mu.Lock()
	state.device = device
	state.chain = &session{device: device, poller: poller, chartFeed: chartFeed}
	state.mu.Unlock()

	state.connectBtn.SetText("Disconnect")
	if state.useMock {
		state.statusLabel.SetText("Connected (mock)")
	} else {
		state.statusLabel.SetText("Connected to " + state.cfg.Serial.Port)
	}
	state.manual.setConnected(true)
	state.seqPanel.setConnected(true)
	if state.remote != nil {
		state.remote.PublishStatus(true, false, 0)
	}
}

// disconnect stops any running sequence, drains the polling chain and
// closes the device.
func disconnect(state *appState) {
	state.engine.Stop()
	closeSession(state)

	state.connectBtn.SetText("Connect")
	state.statusLabel.SetText("Disconnected")
	state.manual.setConnected(false)
	state.seqPanel.setConnected(false)
	if state.remote != nil {
		state.remote.PublishStatus(false, false, 0)
	}
	if state.useMock {
		fmt.Println("Disconnected from mocked device")
	} else {
		fmt.Println("Disconnected from serial port")
	}
}

// closeSession gracefully closes the polling chain.
// Waits for the chart feed goroutine to finish draining.
func closeSession(state *appState) {
	state.mu.Lock()
	chain := state.chain
	state.chain = nil
	state.device = nil
	state.mu.Unlock()

	if chain == nil {
		return
	}

	// Close the poller first; its channel closing ends the feed goroutine.
	chain.poller.Close()
	<-chain.chartFeed
	chain.device.Close()
}
