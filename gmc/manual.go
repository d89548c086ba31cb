package main

import (
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/gogmc/pkg/channel"
	"github.com/itohio/gogmc/pkg/mixture"
)

// manualPanel holds the per-line manual controls and, on two-line panels,
// the mixture entry group.
type manualPanel struct {
	state *appState
	rows  map[channel.Slot]*slotRow

	totalEntry   *widget.Entry
	concEntry    *widget.Entry
	carrierRadio *widget.RadioGroup
	ppmEntry     *widget.Entry

	box fyne.CanvasObject
}

// slotRow is one line of manual control: which mainframe channel the line
// plugs into, a setpoint entry and apply/on/off actions.
type slotRow struct {
	slot       channel.Slot
	channelSel *widget.Select
	setpoint   *widget.Entry
	applyBtn   *widget.Button
	onBtn      *widget.Button
	offBtn     *widget.Button
}

func newManualPanel(state *appState) *manualPanel {
	m := &manualPanel{
		state: state,
		rows:  make(map[channel.Slot]*slotRow, len(state.slots)),
	}

	channelOptions := make([]string, 0, channel.MaxChannel)
	for ch := channel.MinChannel; ch <= channel.MaxChannel; ch++ {
		channelOptions = append(channelOptions, strconv.Itoa(ch))
	}

	rows := make([]fyne.CanvasObject, 0, len(state.slots))
	for _, slot := range state.slots {
		row := m.newSlotRow(slot, channelOptions)
		m.rows[slot] = row
		rows = append(rows, container.NewBorder(
			nil,
			nil,
			container.NewHBox(widget.NewLabel(string(slot)), row.channelSel),
			container.NewHBox(row.applyBtn, row.onBtn, row.offBtn),
			row.setpoint,
		))
	}

	items := []fyne.CanvasObject{
		widget.NewCard("Manual control", "", container.NewVBox(rows...)),
	}
	if state.cfg.Panel.Channels == 2 {
		items = append(items, m.mixtureCard())
	}
	m.box = container.NewVBox(items...)

	m.setConnected(false)
	return m
}

func (m *manualPanel) content() fyne.CanvasObject {
	return m.box
}

func (m *manualPanel) newSlotRow(slot channel.Slot, channelOptions []string) *slotRow {
	row := &slotRow{slot: slot}

	row.channelSel = widget.NewSelect(channelOptions, func(selected string) {
		ch, err := strconv.Atoi(selected)
		if err != nil {
			return
		}
		m.state.setChannel(slot, ch)
	})
	if ch, err := m.state.mapping().Resolve(slot); err == nil {
		row.channelSel.SetSelected(strconv.Itoa(ch))
	}

	row.setpoint = widget.NewEntry()
	row.setpoint.SetPlaceHolder("sccm")

	row.applyBtn = widget.NewButton("Set", func() { m.applySetpoint(row) })
	row.onBtn = widget.NewButton("On", func() { m.setFlow(row, true) })
	row.offBtn = widget.NewButton("Off", func() { m.setFlow(row, false) })

	return row
}

// applySetpoint sends the entered setpoint to whatever channel the line is
// assigned to right now.
func (m *manualPanel) applySetpoint(row *slotRow) {
	dev := m.state.currentDevice()
	if dev == nil || !dev.IsConnected() {
		return
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(row.setpoint.Text), 64)
	if err != nil {
		dialog.ShowError(fmt.Errorf("invalid setpoint %q", row.setpoint.Text), m.state.window)
		return
	}

	ch, err := m.state.mapping().Resolve(row.slot)
	if err != nil {
		dialog.ShowError(err, m.state.window)
		return
	}

	if _, err := dev.SetSetpoint(ch, value); err != nil {
		dialog.ShowError(fmt.Errorf("failed to set channel %d setpoint: %w", ch, err), m.state.window)
	}
}

// setFlow opens or closes the valve of the line's current channel.
func (m *manualPanel) setFlow(row *slotRow, on bool) {
	dev := m.state.currentDevice()
	if dev == nil || !dev.IsConnected() {
		return
	}

	ch, err := m.state.mapping().Resolve(row.slot)
	if err != nil {
		dialog.ShowError(err, m.state.window)
		return
	}

	if _, err := dev.SetFlow(ch, on); err != nil {
		dialog.ShowError(fmt.Errorf("failed to switch channel %d: %w", ch, err), m.state.window)
	}
}

// showSetpoint mirrors a sequence-issued setpoint into the line's entry.
// Called on the UI thread.
func (m *manualPanel) showSetpoint(slot channel.Slot, value float64) {
	if row, ok := m.rows[slot]; ok {
		row.setpoint.SetText(strconv.FormatFloat(value, 'f', -1, 64))
	}
}

// setConnected enables the actions that talk to the device. The mixture
// group stays usable offline; it only fills entries.
func (m *manualPanel) setConnected(connected bool) {
	for _, row := range m.rows {
		if connected {
			row.applyBtn.Enable()
			row.onBtn.Enable()
			row.offBtn.Enable()
		} else {
			row.applyBtn.Disable()
			row.onBtn.Disable()
			row.offBtn.Disable()
		}
	}
}

// mixtureCard builds the dilution entry group. Applying computes the two
// line flows and fills the setpoint entries; nothing is sent to the device.
func (m *manualPanel) mixtureCard() fyne.CanvasObject {
	cfg := m.state.cfg.Mixture

	m.totalEntry = widget.NewEntry()
	m.totalEntry.SetText(strconv.FormatFloat(cfg.TotalFlow, 'f', -1, 64))

	m.concEntry = widget.NewEntry()
	m.concEntry.SetText(strconv.FormatFloat(cfg.TargetConcentration, 'f', -1, 64))

	m.carrierRadio = widget.NewRadioGroup([]string{string(channel.SlotA), string(channel.SlotB)}, nil)
	m.carrierRadio.Horizontal = true
	m.carrierRadio.SetSelected(string(cfg.Carrier))

	m.ppmEntry = widget.NewEntry()
	m.ppmEntry.SetPlaceHolder("ppm")

	applyBtn := widget.NewButton("Apply mixture", func() { m.applyMixture() })

	form := widget.NewForm(
		widget.NewFormItem("Total flow (sccm)", m.totalEntry),
		widget.NewFormItem("Bottle concentration (ppm)", m.concEntry),
		widget.NewFormItem("Carrier line", m.carrierRadio),
		widget.NewFormItem("Target (ppm)", m.ppmEntry),
	)

	return widget.NewCard("Mixture", "", container.NewVBox(form, applyBtn))
}

// mixtureParams parses the dilution setup entries.
func (m *manualPanel) mixtureParams() (mixture.Params, error) {
	total, err := strconv.ParseFloat(strings.TrimSpace(m.totalEntry.Text), 64)
	if err != nil {
		return mixture.Params{}, fmt.Errorf("invalid total flow %q", m.totalEntry.Text)
	}
	conc, err := strconv.ParseFloat(strings.TrimSpace(m.concEntry.Text), 64)
	if err != nil {
		return mixture.Params{}, fmt.Errorf("invalid concentration %q", m.concEntry.Text)
	}

	return mixture.Params{
		TotalFlow:           total,
		TargetConcentration: conc,
		Carrier:             channel.Slot(m.carrierRadio.Selected),
	}, nil
}

// applyMixture computes the carrier/target split for the requested ppm and
// fills both setpoint entries. The operator reviews and sends them with the
// per-line Set buttons.
func (m *manualPanel) applyMixture() {
	params, err := m.mixtureParams()
	if err != nil {
		dialog.ShowError(err, m.state.window)
		return
	}

	ppm, err := strconv.ParseFloat(strings.TrimSpace(m.ppmEntry.Text), 64)
	if err != nil {
		dialog.ShowError(fmt.Errorf("invalid target ppm %q", m.ppmEntry.Text), m.state.window)
		return
	}

	a, b, err := mixture.SlotFlows(ppm, params)
	if err != nil {
		dialog.ShowError(err, m.state.window)
		return
	}

	// Remember the dilution setup for sequence rows added later.
	m.state.cfg.Mixture.TotalFlow = params.TotalFlow
	m.state.cfg.Mixture.TargetConcentration = params.TargetConcentration
	m.state.cfg.Mixture.Carrier = params.Carrier

	m.rows[channel.SlotA].setpoint.SetText(strconv.FormatFloat(a, 'f', -1, 64))
	m.rows[channel.SlotB].setpoint.SetText(strconv.FormatFloat(b, 'f', -1, 64))
}
