// Package mixture computes the two-way flow split that dilutes a target gas
// down to a requested concentration inside a fixed total flow.
package mixture

import (
	"errors"
	"fmt"

	"github.com/itohio/gogmc/pkg/channel"
)

var (
	// ErrInvalidParams marks mixture parameters that can never produce a split.
	ErrInvalidParams = errors.New("total flow and target concentration must be positive")
	// ErrOutOfRange marks a requested ppm that the configured total flow cannot reach.
	ErrOutOfRange = errors.New("target flow out of range")
)

// Params describes the dilution setup: how much gas flows in total, the
// concentration of the target-gas bottle, and which slot carries the diluent.
type Params struct {
	TotalFlow           float64 // sccm
	TargetConcentration float64 // ppm of target gas in its bottle
	Carrier             channel.Slot
}

// Split computes the carrier and target line flows for a requested
// concentration. The two always sum to TotalFlow.
//
//	target  = TotalFlow * flowPPM / TargetConcentration
//	carrier = TotalFlow - target
func Split(flowPPM float64, p Params) (carrier, target float64, err error) {
	if p.TotalFlow <= 0 || p.TargetConcentration <= 0 {
		return 0, 0, fmt.Errorf("%w (total %v sccm, concentration %v ppm)",
			ErrInvalidParams, p.TotalFlow, p.TargetConcentration)
	}

	target = p.TotalFlow * flowPPM / p.TargetConcentration
	if target < 0 || target > p.TotalFlow {
		return 0, 0, fmt.Errorf("%w: %v ppm needs %v sccm of %v sccm total",
			ErrOutOfRange, flowPPM, target, p.TotalFlow)
	}

	return p.TotalFlow - target, target, nil
}

// SlotFlows maps the split onto the panel's first two slots. The carrier
// flow lands on p.Carrier; the target flow on the other slot. Any carrier
// other than B means A.
func SlotFlows(flowPPM float64, p Params) (a, b float64, err error) {
	carrier, target, err := Split(flowPPM, p)
	if err != nil {
		return 0, 0, err
	}

	if p.Carrier == channel.SlotB {
		return target, carrier, nil
	}
	return carrier, target, nil
}
