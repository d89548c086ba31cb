package sample

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/itohio/gogmc/pkg/channel"
)

// Stats summarizes one slot's readings over a stretch of samples. Std is
// the sample standard deviation and needs at least two readings.
type Stats struct {
	Mean float64
	Std  float64
	Min  float64
	Max  float64
	N    int
}

// Statistics computes a slot's flow statistics. NaN readings (failed
// ticks) are excluded; with no valid reading at all every moment is NaN
// and N is zero.
func Statistics(samples []Sample, slot channel.Slot) Stats {
	values := make([]float64, 0, len(samples))
	for _, s := range samples {
		if v := s.Flow(slot); !math.IsNaN(v) {
			values = append(values, v)
		}
	}

	if len(values) == 0 {
		return Stats{
			Mean: math.NaN(),
			Std:  math.NaN(),
			Min:  math.NaN(),
			Max:  math.NaN(),
		}
	}

	return Stats{
		Mean: stat.Mean(values, nil),
		Std:  stat.StdDev(values, nil),
		Min:  floats.Min(values),
		Max:  floats.Max(values),
		N:    len(values),
	}
}
