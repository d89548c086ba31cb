package gmc

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/itohio/gogmc/pkg/config"
)

// Sim models the flow state of a GMC1200 mainframe: eight channels, each
// with a setpoint, a flow switch, and an actual flow that approaches its
// target with a first-order lag. It answers the instrument's command set
// the way the hardware does. Not safe for concurrent use; Mock adds the
// locking.
type Sim struct {
	timeConstant time.Duration
	noise        float64

	channels [MaxChannels]simChannel
	lastStep time.Time
}

type simChannel struct {
	setpoint float64
	on       bool
	flow     float64
}

// NewSim creates a simulated mainframe. A nil cfg selects the default
// response lag and noise.
func NewSim(cfg *config.MockConfig) *Sim {
	if cfg == nil {
		cfg = &config.MockConfig{
			TimeConstant: 2 * time.Second,
			Noise:        0.5,
		}
	}

	tc := cfg.TimeConstant
	if tc <= 0 {
		tc = 2 * time.Second
	}

	return &Sim{
		timeConstant: tc,
		noise:        cfg.Noise,
		lastStep:     time.Now(),
	}
}

// Reset returns every channel to zero flow, switched off.
func (s *Sim) Reset(now time.Time) {
	s.channels = [MaxChannels]simChannel{}
	s.lastStep = now
}

// Execute parses one CR-stripped command line and returns the mainframe's
// response. Malformed commands answer ERR, like the hardware.
func (s *Sim) Execute(now time.Time, cmd string) string {
	body := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(cmd), "#"))
	if len(body) < 3 {
		return "ERR"
	}

	op := body[:2]
	args := strings.TrimSpace(body[2:])

	switch op {
	case "SS":
		var ch int
		var value float64
		if n, err := fmt.Sscanf(args, "%d %f", &ch, &value); err != nil || n != 2 || !validChannel(ch) {
			return "ERR"
		}
		s.advance(now)
		s.channels[ch-1].setpoint = value
		return "OK"

	case "SF":
		var ch, state int
		if n, err := fmt.Sscanf(args, "%d %d", &ch, &state); err != nil || n != 2 || !validChannel(ch) {
			return "ERR"
		}
		s.advance(now)
		s.channels[ch-1].on = state != 0
		return "OK"

	case "RF":
		var ch int
		if n, err := fmt.Sscanf(args, "%d", &ch); err != nil || n != 1 || !validChannel(ch) {
			return "ERR"
		}
		s.advance(now)
		return strconv.FormatFloat(s.readingNoise(now)+s.channels[ch-1].flow, 'f', 2, 64)
	}

	return "ERR"
}

// Setpoint returns the last setpoint written to a channel.
func (s *Sim) Setpoint(ch int) float64 {
	if !validChannel(ch) {
		return 0
	}
	return s.channels[ch-1].setpoint
}

// FlowOn reports whether a channel's flow switch is on.
func (s *Sim) FlowOn(ch int) bool {
	if !validChannel(ch) {
		return false
	}
	return s.channels[ch-1].on
}

// Flow returns a channel's actual flow at the given instant.
func (s *Sim) Flow(now time.Time, ch int) float64 {
	if !validChannel(ch) {
		return 0
	}
	s.advance(now)
	return s.channels[ch-1].flow
}

// advance moves every channel's actual flow toward its target. An open
// channel converges on its setpoint, a closed one decays to zero.
func (s *Sim) advance(now time.Time) {
	dt := now.Sub(s.lastStep).Seconds()
	if dt <= 0 {
		return
	}
	s.lastStep = now

	alpha := dt / s.timeConstant.Seconds()
	if alpha > 1 {
		alpha = 1
	}

	for i := range s.channels {
		target := 0.0
		if s.channels[i].on {
			target = s.channels[i].setpoint
		}
		s.channels[i].flow += alpha * (target - s.channels[i].flow)
	}
}

// readingNoise is a deterministic stand-in for sensor noise.
func (s *Sim) readingNoise(now time.Time) float64 {
	if s.noise == 0 {
		return 0
	}
	t := float64(now.UnixNano()) * 1e-9
	return (math.Sin(t*2.7) + math.Cos(t*3.1)) * s.noise * 0.5
}

func validChannel(ch int) bool {
	return ch >= 1 && ch <= MaxChannels
}
