package sample

import (
	"context"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/itohio/gogmc/pkg/channel"
	"github.com/itohio/gogmc/pkg/gmc"
)

// DefaultInterval is the polling period when none is configured.
const DefaultInterval = time.Second

// Poller reads every configured slot's flow at a fixed period, records the
// readings in the session history and feeds the live stream.
type Poller struct {
	dev      gmc.Device
	history  *Log
	interval time.Duration
	slots    []channel.Slot
	mapping  func() channel.Mapping

	cancel  context.CancelFunc
	samples chan Sample
	done    chan struct{}
}

// NewPoller creates a poller. The mapping is consulted on every tick, so
// slot assignments edited mid-session take effect on the next poll.
func NewPoller(dev gmc.Device, history *Log, interval time.Duration, slots []channel.Slot, mapping func() channel.Mapping) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Poller{
		dev:      dev,
		history:  history,
		interval: interval,
		slots:    slots,
		mapping:  mapping,
		samples:  make(chan Sample, 100),
		done:     make(chan struct{}),
	}
}

// Start launches the polling loop. Call once.
func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.run(ctx)
}

// Samples returns the live stream. It closes when the poller stops.
func (p *Poller) Samples() <-chan Sample {
	return p.samples
}

// Close stops the poller and waits for the loop to exit. The loop closes
// the samples channel itself, so a send can never hit a closed channel.
func (p *Poller) Close() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)
	defer close(p.samples)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.dev.IsConnected() {
				continue
			}

			s := p.PollOnce()
			select {
			case p.samples <- s:
			case <-ctx.Done():
				return
			default:
				log.Printf("Samples channel full, dropping sample")
			}
		}
	}
}

// PollOnce reads every slot immediately, records the sample in the history
// and returns it. The polling loop calls this once per tick.
func (p *Poller) PollOnce() Sample {
	s := Sample{
		Timestamp: time.Now(),
		Flows:     make(map[channel.Slot]float64, len(p.slots)),
	}

	mapping := p.mapping()
	for _, slot := range p.slots {
		s.Flows[slot] = p.readFlow(mapping, slot)
	}

	if p.history != nil {
		p.history.Append(s)
	}

	return s
}

// readFlow resolves and reads one slot. Anything that prevents a numeric
// reading yields NaN. Transport and mapping trouble is logged; a
// non-numeric response is normal while a channel settles and stays quiet.
func (p *Poller) readFlow(mapping channel.Mapping, slot channel.Slot) float64 {
	ch, err := mapping.Resolve(slot)
	if err != nil {
		log.Printf("Cannot poll slot %s: %v", slot, err)
		return math.NaN()
	}

	resp, err := p.dev.ReadFlow(ch)
	if err != nil {
		log.Printf("Failed to read flow on channel %d: %v", ch, err)
		return math.NaN()
	}

	v, err := strconv.ParseFloat(resp, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
