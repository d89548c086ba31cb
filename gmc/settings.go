package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/gogmc/pkg/channel"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createPanelTab(state),
		createMixtureTab(state),
		createPollTab(state),
		createRemoteTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	options, portMap := portOptions(state.cfg.Serial.Port)

	currentDisplay := state.cfg.Serial.Port
	for _, opt := range options {
		if portMap[opt] == state.cfg.Serial.Port {
			currentDisplay = opt
			break
		}
	}

	portSelect := widget.NewSelect(options, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Serial.BaudRate))

	timeoutEntry := widget.NewEntry()
	timeoutEntry.SetText(state.cfg.Serial.ReadTimeout.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
			{Text: "Read Timeout", Widget: timeoutEntry},
		},
		OnSubmit: func() {
			if baud, err := strconv.Atoi(baudEntry.Text); err == nil && baud > 0 {
				state.cfg.Serial.BaudRate = baud
			}
			if rt, err := time.ParseDuration(timeoutEntry.Text); err == nil && rt > 0 {
				state.cfg.Serial.ReadTimeout = rt
			}

			portChanged := false
			if portSelect.Selected != "" {
				selectedPort := portMap[portSelect.Selected]
				if selectedPort == "" {
					selectedPort = portSelect.Selected // Fallback to selected text
				}
				portChanged = state.cfg.Serial.Port != selectedPort
				state.cfg.Serial.Port = selectedPort
			}

			if err := state.cfg.Save(state.cfgPath); err != nil {
				dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
				return
			}
			refreshPortBar(state)

			// A port change under a live session restarts it on the new port.
			if portChanged && state.isConnected() {
				disconnect(state)
				handleConnect(state)
			}
		},
	}

	return container.NewTabItem("Serial", form)
}

// createPanelTab creates the Panel configuration tab. The variant applies
// on the next start; line-to-channel assignment is edited directly on the
// manual control rows.
func createPanelTab(state *appState) *container.TabItem {
	variantRadio := widget.NewRadioGroup([]string{"2", "4"}, nil)
	variantRadio.Horizontal = true
	variantRadio.SetSelected(strconv.Itoa(state.cfg.Panel.Channels))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Lines", Widget: variantRadio},
		},
		OnSubmit: func() {
			if n, err := strconv.Atoi(variantRadio.Selected); err == nil && (n == 2 || n == 4) {
				state.cfg.Panel.Channels = n
			}
			if err := state.cfg.Save(state.cfgPath); err != nil {
				dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
			}
		},
	}

	note := widget.NewLabel("The variant applies after restarting the panel.")

	return container.NewTabItem("Panel", container.NewVBox(form, note))
}

// createMixtureTab creates the Mixture defaults tab.
func createMixtureTab(state *appState) *container.TabItem {
	totalEntry := widget.NewEntry()
	totalEntry.SetText(fmt.Sprintf("%.0f", state.cfg.Mixture.TotalFlow))

	concEntry := widget.NewEntry()
	concEntry.SetText(fmt.Sprintf("%.0f", state.cfg.Mixture.TargetConcentration))

	carrierRadio := widget.NewRadioGroup([]string{string(channel.SlotA), string(channel.SlotB)}, nil)
	carrierRadio.Horizontal = true
	carrierRadio.SetSelected(string(state.cfg.Mixture.Carrier))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Total Flow (sccm)", Widget: totalEntry},
			{Text: "Bottle Concentration (ppm)", Widget: concEntry},
			{Text: "Carrier Line", Widget: carrierRadio},
		},
		OnSubmit: func() {
			if tf, err := strconv.ParseFloat(totalEntry.Text, 64); err == nil && tf > 0 {
				state.cfg.Mixture.TotalFlow = tf
			}
			if tc, err := strconv.ParseFloat(concEntry.Text, 64); err == nil && tc > 0 {
				state.cfg.Mixture.TargetConcentration = tc
			}
			if carrierRadio.Selected != "" {
				state.cfg.Mixture.Carrier = channel.Slot(carrierRadio.Selected)
			}
			if err := state.cfg.Save(state.cfgPath); err != nil {
				dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
			}
		},
	}

	return container.NewTabItem("Mixture", form)
}

// createPollTab creates the Poll configuration tab. A new interval applies
// on the next connect.
func createPollTab(state *appState) *container.TabItem {
	intervalEntry := widget.NewEntry()
	intervalEntry.SetText(state.cfg.Poll.Interval.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Poll Interval", Widget: intervalEntry},
		},
		OnSubmit: func() {
			if iv, err := time.ParseDuration(intervalEntry.Text); err == nil && iv > 0 {
				state.cfg.Poll.Interval = iv
			}
			if err := state.cfg.Save(state.cfgPath); err != nil {
				dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
			}
		},
	}

	return container.NewTabItem("Poll", form)
}

// createRemoteTab creates the Remote readout tab. The readout server starts
// with the panel, so changes apply after a restart.
func createRemoteTab(state *appState) *container.TabItem {
	enabledCheck := widget.NewCheck("Enabled", nil)
	enabledCheck.SetChecked(state.cfg.Remote.Enabled)

	listenEntry := widget.NewEntry()
	listenEntry.SetText(state.cfg.Remote.Listen)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Readout Server", Widget: enabledCheck},
			{Text: "Listen Address", Widget: listenEntry},
		},
		OnSubmit: func() {
			state.cfg.Remote.Enabled = enabledCheck.Checked
			if listenEntry.Text != "" {
				state.cfg.Remote.Listen = listenEntry.Text
			}
			if err := state.cfg.Save(state.cfgPath); err != nil {
				dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
			}
		},
	}

	note := widget.NewLabel("Changes apply after restarting the panel.")

	return container.NewTabItem("Remote", container.NewVBox(form, note))
}

// createMockTab creates the Mock device configuration tab.
func createMockTab(state *appState) *container.TabItem {
	tauEntry := widget.NewEntry()
	tauEntry.SetText(state.cfg.Mock.TimeConstant.String())

	noiseEntry := widget.NewEntry()
	noiseEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Mock.Noise))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Time Constant", Widget: tauEntry},
			{Text: "Reading Noise (sccm)", Widget: noiseEntry},
		},
		OnSubmit: func() {
			if tau, err := time.ParseDuration(tauEntry.Text); err == nil && tau > 0 {
				state.cfg.Mock.TimeConstant = tau
			}
			if n, err := strconv.ParseFloat(noiseEntry.Text, 64); err == nil && n >= 0 {
				state.cfg.Mock.Noise = n
			}
			if err := state.cfg.Save(state.cfgPath); err != nil {
				dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
			}
		},
	}

	return container.NewTabItem("Mock", form)
}
