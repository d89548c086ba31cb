package chart

import (
	"image/color"
	"math"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/chewxy/math32"

	"github.com/itohio/gogmc/pkg/channel"
	"github.com/itohio/gogmc/pkg/sample"
)

var slotColors = map[channel.Slot]color.RGBA{
	channel.SlotA: {R: 255, G: 165, B: 0, A: 255},
	channel.SlotB: {R: 100, G: 200, B: 255, A: 255},
	channel.SlotC: {R: 120, G: 220, B: 120, A: 255},
	channel.SlotD: {R: 230, G: 120, B: 230, A: 255},
}

var (
	gridColor  = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}
)

// flowRenderer renders the chart widget.
type flowRenderer struct {
	chart *FlowChart

	// Background
	bg *canvas.Rectangle

	gridLines   []*canvas.Line
	gridTexts   []*canvas.Text
	seriesLines []*canvas.Line
	valueLabels []*canvas.Text

	// Objects list for Fyne
	objects []fyne.CanvasObject

	// Track last size to detect changes
	lastSize fyne.Size
}

// MinSize returns the minimum size of the widget.
func (r *flowRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *flowRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)

	if r.lastSize.Width != size.Width || r.lastSize.Height != size.Height {
		r.lastSize = size
		// Size changed, redraw with the new dimensions.
		r.chart.BaseWidget.Refresh()
	}
}

// Refresh rebuilds grid, series and readouts from the chart's state.
func (r *flowRenderer) Refresh() {
	r.chart.mu.RLock()
	display := r.chart.display
	slots := r.chart.slots
	active := r.chart.active
	current := r.chart.current
	yMin := r.chart.yMin
	yMax := r.chart.yMax
	xMin := r.chart.xMin
	xMax := r.chart.xMax
	r.chart.mu.RUnlock()

	size := r.chart.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	// Clear old objects (but keep the background)
	r.objects = []fyne.CanvasObject{r.bg}
	r.gridLines = r.gridLines[:0]
	r.gridTexts = r.gridTexts[:0]
	r.seriesLines = r.seriesLines[:0]
	r.valueLabels = r.valueLabels[:0]

	marginLeft := float32(60.0)
	marginRight := float32(20.0)
	marginTop := float32(20.0)
	marginBottom := float32(40.0)

	plotWidth := size.Width - marginLeft - marginRight
	plotHeight := size.Height - marginTop - marginBottom
	plotX := marginLeft
	plotY := marginTop

	r.drawGrid(plotX, plotY, plotWidth, plotHeight, yMin, yMax, xMin, xMax)

	for _, slot := range slots {
		if active[slot] && len(display) > 1 {
			r.drawSeries(plotX, plotY, plotWidth, plotHeight, display, slot, yMin, yMax, xMin, xMax)
		}
	}

	r.drawReadouts(plotX, plotY, slots, current)
}

// drawGrid draws the oscilloscope-style grid with flow and time labels.
func (r *flowRenderer) drawGrid(plotX, plotY, plotWidth, plotHeight float32, yMin, yMax float64, xMin, xMax time.Time) {
	numHLines := 8
	for i := range numHLines + 1 {
		y := plotY + float32(i)*plotHeight/float32(numHLines)
		line := canvas.NewLine(gridColor)
		line.Position1 = fyne.NewPos(plotX, y)
		line.Position2 = fyne.NewPos(plotX+plotWidth, y)
		line.StrokeWidth = 1
		r.gridLines = append(r.gridLines, line)
		r.objects = append(r.objects, line)

		// Y-axis label (sccm)
		value := yMax - float64(i)*(yMax-yMin)/float64(numHLines)
		text := canvas.NewText(formatFlow(value), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(plotX-5, y-6))
		r.gridTexts = append(r.gridTexts, text)
		r.objects = append(r.objects, text)
	}

	numVLines := 10
	for i := range numVLines + 1 {
		x := plotX + float32(i)*plotWidth/float32(numVLines)
		line := canvas.NewLine(gridColor)
		line.Position1 = fyne.NewPos(x, plotY)
		line.Position2 = fyne.NewPos(x, plotY+plotHeight)
		line.StrokeWidth = 1
		r.gridLines = append(r.gridLines, line)
		r.objects = append(r.objects, line)

		// X-axis label (seconds into the history)
		offset := float64(i) * xMax.Sub(xMin).Seconds() / float64(numVLines)
		text := canvas.NewText(formatElapsed(time.Duration(offset*float64(time.Second))), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-20, plotY+plotHeight+5))
		r.gridTexts = append(r.gridTexts, text)
		r.objects = append(r.objects, text)
	}
}

// drawSeries draws one slot's polyline. Failed readings leave gaps in the
// line rather than dragging it to zero.
func (r *flowRenderer) drawSeries(plotX, plotY, plotWidth, plotHeight float32, display []sample.Sample, slot channel.Slot, yMin, yMax float64, xMin, xMax time.Time) {
	col := slotColors[slot]

	havePrev := false
	var prev fyne.Position
	for _, s := range display {
		v := s.Flow(slot)
		if math.IsNaN(v) {
			havePrev = false
			continue
		}

		pt := fyne.NewPos(
			pixelX(s.Timestamp, xMin, xMax, plotX, plotWidth),
			pixelY(v, yMin, yMax, plotY, plotHeight),
		)
		if havePrev {
			line := canvas.NewLine(col)
			line.Position1 = prev
			line.Position2 = pt
			line.StrokeWidth = 1.5
			r.seriesLines = append(r.seriesLines, line)
			r.objects = append(r.objects, line)
		}
		prev = pt
		havePrev = true
	}
}

// drawReadouts stacks the per-slot current-flow labels in the top left
// corner of the plot.
func (r *flowRenderer) drawReadouts(plotX, plotY float32, slots []channel.Slot, current map[channel.Slot]float64) {
	for i, slot := range slots {
		v := current[slot]
		label := string(slot) + ": ---"
		if !math.IsNaN(v) {
			label = string(slot) + ": " + formatFlow(v) + " sccm"
		}

		text := canvas.NewText(label, slotColors[slot])
		text.TextSize = 12
		text.Alignment = fyne.TextAlignLeading
		text.Move(fyne.NewPos(plotX+10, plotY+10+float32(i)*16))
		r.valueLabels = append(r.valueLabels, text)
		r.objects = append(r.objects, text)
	}
}

// Objects returns all canvas objects for rendering.
func (r *flowRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *flowRenderer) Destroy() {
	// Cleanup handled by Fyne
}

// pixelX maps a timestamp into the plot, clamped to its edges.
func pixelX(ts time.Time, xMin, xMax time.Time, plotX, plotWidth float32) float32 {
	span := xMax.Sub(xMin).Seconds()
	if span <= 0 {
		return plotX
	}
	frac := float32(ts.Sub(xMin).Seconds() / span)
	return plotX + math32.Max(0, math32.Min(1, frac))*plotWidth
}

// pixelY maps a flow value into the plot, clamped to its edges.
func pixelY(v, yMin, yMax float64, plotY, plotHeight float32) float32 {
	if yMax <= yMin {
		return plotY + plotHeight
	}
	frac := float32((v - yMin) / (yMax - yMin))
	return plotY + plotHeight - math32.Max(0, math32.Min(1, frac))*plotHeight
}

func formatFlow(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func formatElapsed(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 1, 64) + "s"
}
