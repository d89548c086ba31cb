package main

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/gogmc/pkg/sample"
)

// createExportBar builds the strip under the chart: flow log export,
// per-line statistics and history clear.
func createExportBar(state *appState) fyne.CanvasObject {
	exportBtn := widget.NewButton("Export CSV", func() { exportFlowLog(state) })
	statsBtn := widget.NewButton("Statistics", func() { showStatistics(state) })
	clearBtn := widget.NewButton("Clear", func() {
		state.history.Reset()
		state.chartWidget.Reset()
	})

	return container.NewHBox(exportBtn, statsBtn, clearBtn)
}

// exportFlowLog writes the polled history as CSV through the file dialog.
func exportFlowLog(state *appState) {
	samples := state.history.Snapshot()
	if len(samples) == 0 {
		dialog.ShowInformation("Export", "No readings collected yet.", state.window)
		return
	}

	dialog.ShowFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, state.window)
			return
		}
		if writer == nil {
			return
		}
		defer writer.Close()

		if err := sample.WriteCSV(writer, state.slots, samples); err != nil {
			dialog.ShowError(fmt.Errorf("failed to export flow log: %w", err), state.window)
		}
	}, state.window)
}

// showStatistics summarizes the collected history per line. Failed
// readings are left out of the numbers.
func showStatistics(state *appState) {
	samples := state.history.Snapshot()

	var b strings.Builder
	for _, slot := range state.slots {
		st := sample.Statistics(samples, slot)
		if st.N == 0 {
			fmt.Fprintf(&b, "%s: no readings\n", slot)
			continue
		}
		fmt.Fprintf(&b, "%s: mean %.2f  std %.2f  min %.2f  max %.2f  n=%d\n",
			slot, st.Mean, st.Std, st.Min, st.Max, st.N)
	}

	dialog.ShowInformation("Flow statistics", b.String(), state.window)
}
