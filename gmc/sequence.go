package main

import (
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/gogmc/pkg/channel"
	"github.com/itohio/gogmc/pkg/mixture"
	"github.com/itohio/gogmc/pkg/sequence"
)

// sequencePanel is the dosing program table with its transport controls.
type sequencePanel struct {
	state *appState

	records  []sequence.Record
	list     *widget.List
	selected int // selected row, -1 when nothing is selected

	ppmEntry    *widget.Entry                  // two-line panels
	flowEntries map[channel.Slot]*widget.Entry // four-line panels
	durEntry    *widget.Entry

	status    *widget.Label
	addBtn    *widget.Button
	removeBtn *widget.Button
	clearBtn  *widget.Button
	saveBtn   *widget.Button
	loadBtn   *widget.Button
	startBtn  *widget.Button
	stopBtn   *widget.Button

	runningStep int // 1-based while a sequence runs, 0 otherwise
	box         fyne.CanvasObject
}

func newSequencePanel(state *appState) *sequencePanel {
	p := &sequencePanel{
		state:    state,
		selected: -1,
	}

	p.list = widget.NewList(
		func() int { return len(p.records) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, item fyne.CanvasObject) {
			label := item.(*widget.Label)
			if id >= len(p.records) {
				label.SetText("")
				return
			}
			text := p.describe(p.records[id])
			if p.runningStep == id+1 {
				label.TextStyle = fyne.TextStyle{Bold: true}
				text = "> " + text
			} else {
				label.TextStyle = fyne.TextStyle{}
			}
			label.SetText(text)
		},
	)
	p.list.OnSelected = func(id widget.ListItemID) { p.selected = id }
	p.list.OnUnselected = func(id widget.ListItemID) {
		if p.selected == id {
			p.selected = -1
		}
	}

	p.durEntry = widget.NewEntry()
	p.durEntry.SetPlaceHolder("s")

	addItems := []fyne.CanvasObject{}
	if state.cfg.Panel.Channels == 2 {
		p.ppmEntry = widget.NewEntry()
		p.ppmEntry.SetPlaceHolder("ppm")
		addItems = append(addItems, p.ppmEntry)
	} else {
		p.flowEntries = make(map[channel.Slot]*widget.Entry, len(state.slots))
		for _, slot := range state.slots {
			e := widget.NewEntry()
			e.SetPlaceHolder(string(slot) + " sccm")
			p.flowEntries[slot] = e
			addItems = append(addItems, e)
		}
	}
	addItems = append(addItems, p.durEntry)
	p.addBtn = widget.NewButton("Add", func() { p.addStep() })
	addItems = append(addItems, p.addBtn)

	p.removeBtn = widget.NewButton("Remove", func() { p.removeSelected() })
	p.clearBtn = widget.NewButton("Clear", func() { p.clear() })
	p.saveBtn = widget.NewButtonWithIcon("", theme.DocumentSaveIcon(), func() { p.saveCSV() })
	p.loadBtn = widget.NewButtonWithIcon("", theme.FolderOpenIcon(), func() { p.loadCSV() })
	p.startBtn = widget.NewButtonWithIcon("Start", theme.MediaPlayIcon(), func() { p.start() })
	p.stopBtn = widget.NewButtonWithIcon("Stop", theme.MediaStopIcon(), func() { p.stop() })
	p.startBtn.Disable()
	p.stopBtn.Disable()

	p.status = widget.NewLabel("")

	controls := container.NewVBox(
		container.NewGridWithColumns(len(addItems), addItems...),
		container.NewHBox(
			p.removeBtn, p.clearBtn,
			widget.NewSeparator(),
			p.saveBtn, p.loadBtn,
			widget.NewSeparator(),
			p.startBtn, p.stopBtn,
		),
		p.status,
	)
	p.box = widget.NewCard("Sequence", "", container.NewBorder(controls, nil, nil, nil, p.list))

	return p
}

func (p *sequencePanel) content() fyne.CanvasObject {
	return p.box
}

// describe renders one record for the table.
func (p *sequencePanel) describe(rec sequence.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.", rec.Index)
	if ppm := strings.TrimSpace(rec.PPM); ppm != "" {
		fmt.Fprintf(&b, "  %s ppm", ppm)
	}
	for _, slot := range p.state.slots {
		cell := strings.TrimSpace(rec.Values[slot])
		if cell == "" {
			cell = "-"
		}
		fmt.Fprintf(&b, "  %s=%s", slot, cell)
	}
	fmt.Fprintf(&b, "  %gs", rec.Duration)
	return b.String()
}

// addStep appends a table row from the entry fields. On two-line panels the
// row is derived from a target ppm through the mixture split; on four-line
// panels each line gets its raw setpoint, blank meaning off.
func (p *sequencePanel) addStep() {
	dur, err := strconv.ParseFloat(strings.TrimSpace(p.durEntry.Text), 64)
	if err != nil || dur <= 0 {
		dialog.ShowError(fmt.Errorf("invalid duration %q", p.durEntry.Text), p.state.window)
		return
	}

	rec := sequence.Record{
		Index:    len(p.records) + 1,
		Values:   make(map[channel.Slot]string, len(p.state.slots)),
		Duration: dur,
	}

	if p.ppmEntry != nil {
		ppmText := strings.TrimSpace(p.ppmEntry.Text)
		ppm, err := strconv.ParseFloat(ppmText, 64)
		if err != nil {
			dialog.ShowError(fmt.Errorf("invalid target ppm %q", p.ppmEntry.Text), p.state.window)
			return
		}
		params, err := p.state.manual.mixtureParams()
		if err != nil {
			dialog.ShowError(err, p.state.window)
			return
		}
		a, b, err := mixture.SlotFlows(ppm, params)
		if err != nil {
			dialog.ShowError(err, p.state.window)
			return
		}
		rec.PPM = ppmText
		rec.Values[channel.SlotA] = strconv.FormatFloat(a, 'f', -1, 64)
		rec.Values[channel.SlotB] = strconv.FormatFloat(b, 'f', -1, 64)
	} else {
		for _, slot := range p.state.slots {
			text := strings.TrimSpace(p.flowEntries[slot].Text)
			if text == "" || text == "-" {
				rec.Values[slot] = "-"
				continue
			}
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				dialog.ShowError(fmt.Errorf("invalid %s flow %q", slot, text), p.state.window)
				return
			}
			rec.Values[slot] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}

	p.records = append(p.records, rec)
	p.list.Refresh()
}

func (p *sequencePanel) removeSelected() {
	if p.selected < 0 || p.selected >= len(p.records) {
		return
	}
	p.records = append(p.records[:p.selected], p.records[p.selected+1:]...)
	p.renumber()
	p.selected = -1
	p.list.UnselectAll()
	p.list.Refresh()
}

func (p *sequencePanel) clear() {
	p.records = p.records[:0]
	p.selected = -1
	p.list.UnselectAll()
	p.list.Refresh()
}

// renumber restores 1-based consecutive indices after removals.
func (p *sequencePanel) renumber() {
	for i := range p.records {
		p.records[i].Index = i + 1
	}
}

// start binds every row to physical channels and hands the program to the
// engine. Binding errors abort before anything is sent.
func (p *sequencePanel) start() {
	mapping := p.state.mapping()
	steps := make([]sequence.Step, 0, len(p.records))
	for _, rec := range p.records {
		step, err := sequence.StepFromRecord(rec, mapping, p.state.slots)
		if err != nil {
			dialog.ShowError(fmt.Errorf("step %d: %w", rec.Index, err), p.state.window)
			return
		}
		steps = append(steps, step)
	}

	if err := p.state.engine.Start(p.state.currentDevice(), steps); err != nil {
		dialog.ShowError(err, p.state.window)
		return
	}
	p.status.SetText("Starting...")
}

func (p *sequencePanel) stop() {
	p.state.engine.Stop()
}

// showRunning highlights the active row. Called on the UI thread.
func (p *sequencePanel) showRunning(index, total int) {
	p.runningStep = index
	p.status.SetText(fmt.Sprintf("Running step %d of %d", index, total))
	p.startBtn.Disable()
	p.stopBtn.Enable()
	p.addBtn.Disable()
	p.removeBtn.Disable()
	p.clearBtn.Disable()
	p.loadBtn.Disable()
	p.list.Refresh()
}

// showIdle clears the run display once the engine reports an outcome.
// Called on the UI thread.
func (p *sequencePanel) showIdle(outcome sequence.Outcome) {
	p.runningStep = 0
	p.status.SetText("Sequence " + outcome.String())
	p.stopBtn.Disable()
	if p.state.isConnected() {
		p.startBtn.Enable()
	}
	p.addBtn.Enable()
	p.removeBtn.Enable()
	p.clearBtn.Enable()
	p.loadBtn.Enable()
	p.list.Refresh()
}

func (p *sequencePanel) setConnected(connected bool) {
	running, _ := p.state.engine.Status()
	if connected && !running {
		p.startBtn.Enable()
	} else if !connected {
		p.startBtn.Disable()
	}
}

// saveCSV writes the table through the file dialog.
func (p *sequencePanel) saveCSV() {
	dialog.ShowFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, p.state.window)
			return
		}
		if writer == nil {
			return
		}
		defer writer.Close()

		withPPM := p.state.cfg.Panel.Channels == 2
		if err := sequence.WriteCSV(writer, p.state.slots, withPPM, p.records); err != nil {
			dialog.ShowError(fmt.Errorf("failed to save sequence: %w", err), p.state.window)
		}
	}, p.state.window)
}

// loadCSV replaces the table from a file. Files from a different panel
// variant are rejected before touching the table.
func (p *sequencePanel) loadCSV() {
	dialog.ShowFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, p.state.window)
			return
		}
		if reader == nil {
			return
		}
		defer reader.Close()

		records, slots, err := sequence.ReadCSV(reader)
		if err != nil {
			dialog.ShowError(fmt.Errorf("failed to load sequence: %w", err), p.state.window)
			return
		}
		for _, slot := range slots {
			if !slotOnPanel(p.state.slots, slot) {
				dialog.ShowError(fmt.Errorf("sequence uses line %s which this panel does not have", slot), p.state.window)
				return
			}
		}

		p.records = records
		p.selected = -1
		p.list.UnselectAll()
		p.list.Refresh()
	}, p.state.window)
}

func slotOnPanel(slots []channel.Slot, slot channel.Slot) bool {
	for _, s := range slots {
		if s == slot {
			return true
		}
	}
	return false
}
