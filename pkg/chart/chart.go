// Package chart renders the panel's flow history as an oscilloscope-style
// strip chart, one colored line per slot.
package chart

import (
	"image/color"
	"math"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gogmc/pkg/channel"
	"github.com/itohio/gogmc/pkg/sample"
)

const (
	// maxDisplayPoints caps how many history points one series draws.
	maxDisplayPoints = 1000
	// defaultYMax keeps the Y axis at the instrument's full scale until a
	// reading exceeds it.
	defaultYMax = 1000.0
	// activityThreshold decides when a slot's line starts being drawn.
	activityThreshold = 0.1
	// minWindow keeps the time axis from collapsing on short histories.
	minWindow = 10 * time.Second
)

// FlowChart is a custom Fyne widget that plots per-slot flow readings.
type FlowChart struct {
	widget.BaseWidget

	slots []channel.Slot

	// Data (protected by mu)
	mu      sync.RWMutex
	display []sample.Sample
	active  map[channel.Slot]bool
	current map[channel.Slot]float64

	yMin, yMax float64
	xMin, xMax time.Time
}

// New creates a chart for the given slots.
func New(slots []channel.Slot) *FlowChart {
	c := &FlowChart{
		slots:   slots,
		display: make([]sample.Sample, 0, maxDisplayPoints),
		active:  make(map[channel.Slot]bool, len(slots)),
		current: make(map[channel.Slot]float64, len(slots)),
		yMin:    0,
		yMax:    defaultYMax,
	}
	for _, slot := range slots {
		c.current[slot] = math.NaN()
	}
	c.ExtendBaseWidget(c)
	c.Refresh()
	return c
}

// UpdateData replaces the plotted history. Call on the UI thread, e.g.
// wrapped in fyne.Do from the poller goroutine.
func (c *FlowChart) UpdateData(samples []sample.Sample) {
	c.mu.Lock()

	c.display = sample.Downsample(c.display, samples, maxDisplayPoints)

	for _, slot := range c.slots {
		c.current[slot] = math.NaN()
	}
	if len(c.display) > 0 {
		last := c.display[len(c.display)-1]
		for _, slot := range c.slots {
			c.current[slot] = last.Flow(slot)
		}
	}

	// A slot's line appears once the slot has shown real flow and stays
	// visible from then on.
	for _, s := range c.display {
		for _, slot := range c.slots {
			if v := s.Flow(slot); !math.IsNaN(v) && math.Abs(v) > activityThreshold {
				c.active[slot] = true
			}
		}
	}

	c.updateAutoScale()

	c.mu.Unlock()

	// Refresh outside the lock, the renderer takes it again.
	c.Refresh()
}

// Reset clears the plotted history, e.g. when a new session starts.
func (c *FlowChart) Reset() {
	c.mu.Lock()
	c.display = c.display[:0]
	c.active = make(map[channel.Slot]bool, len(c.slots))
	for _, slot := range c.slots {
		c.current[slot] = math.NaN()
	}
	c.yMin, c.yMax = 0, defaultYMax
	c.mu.Unlock()

	c.Refresh()
}

// updateAutoScale pins Y to the instrument's scale, growing it only when a
// reading overshoots, and fits X to the history with a minimum window.
func (c *FlowChart) updateAutoScale() {
	c.yMin = 0
	c.yMax = defaultYMax

	maxFlow := 0.0
	for _, s := range c.display {
		for _, slot := range c.slots {
			if v := s.Flow(slot); !math.IsNaN(v) && v > maxFlow {
				maxFlow = v
			}
		}
	}
	if maxFlow*1.1 > c.yMax {
		c.yMax = maxFlow * 1.1
	}

	if len(c.display) == 0 {
		now := time.Now()
		c.xMin = now
		c.xMax = now.Add(minWindow)
		return
	}

	c.xMin = c.display[0].Timestamp
	c.xMax = c.display[len(c.display)-1].Timestamp
	if c.xMax.Sub(c.xMin) < minWindow {
		c.xMax = c.xMin.Add(minWindow)
	}
}

// CreateRenderer creates the widget renderer.
func (c *FlowChart) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &flowRenderer{
		chart:    c,
		bg:       bg,
		objects:  []fyne.CanvasObject{bg},
		lastSize: fyne.Size{Width: 0, Height: 0},
	}
}
