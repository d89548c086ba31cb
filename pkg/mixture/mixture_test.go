package mixture

import (
	"testing"

	"github.com/itohio/gogmc/pkg/channel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name        string
		flowPPM     float64
		params      Params
		wantCarrier float64
		wantTarget  float64
		wantErr     error
	}{
		{
			name:        "quarter of bottle concentration",
			flowPPM:     5000,
			params:      Params{TotalFlow: 1000, TargetConcentration: 20000},
			wantCarrier: 750,
			wantTarget:  250,
		},
		{
			name:        "zero ppm is all carrier",
			flowPPM:     0,
			params:      Params{TotalFlow: 1000, TargetConcentration: 20000},
			wantCarrier: 1000,
			wantTarget:  0,
		},
		{
			name:        "full bottle concentration is all target",
			flowPPM:     20000,
			params:      Params{TotalFlow: 1000, TargetConcentration: 20000},
			wantCarrier: 0,
			wantTarget:  1000,
		},
		{
			name:    "ppm above bottle concentration is unreachable",
			flowPPM: 30000,
			params:  Params{TotalFlow: 1000, TargetConcentration: 20000},
			wantErr: ErrOutOfRange,
		},
		{
			name:    "negative ppm is unreachable",
			flowPPM: -5,
			params:  Params{TotalFlow: 1000, TargetConcentration: 20000},
			wantErr: ErrOutOfRange,
		},
		{
			name:    "zero total flow",
			flowPPM: 100,
			params:  Params{TotalFlow: 0, TargetConcentration: 20000},
			wantErr: ErrInvalidParams,
		},
		{
			name:    "negative total flow",
			flowPPM: 100,
			params:  Params{TotalFlow: -10, TargetConcentration: 20000},
			wantErr: ErrInvalidParams,
		},
		{
			name:    "zero bottle concentration",
			flowPPM: 100,
			params:  Params{TotalFlow: 1000, TargetConcentration: 0},
			wantErr: ErrInvalidParams,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			carrier, target, err := Split(tt.flowPPM, tt.params)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantCarrier, carrier, 1e-9)
			assert.InDelta(t, tt.wantTarget, target, 1e-9)
		})
	}
}

func TestSplit_SumPreserved(t *testing.T) {
	params := Params{TotalFlow: 1234.5, TargetConcentration: 18000}

	for _, ppm := range []float64{0, 1, 250, 4999.5, 9000, 18000} {
		carrier, target, err := Split(ppm, params)
		require.NoError(t, err, "ppm %v", ppm)
		assert.InDelta(t, params.TotalFlow, carrier+target, 1e-9, "ppm %v", ppm)
		assert.GreaterOrEqual(t, carrier, 0.0)
		assert.GreaterOrEqual(t, target, 0.0)
	}
}

func TestSlotFlows(t *testing.T) {
	params := Params{TotalFlow: 1000, TargetConcentration: 20000, Carrier: channel.SlotA}

	a, b, err := SlotFlows(5000, params)
	require.NoError(t, err)
	assert.InDelta(t, 750.0, a, 1e-9, "carrier flow lands on A")
	assert.InDelta(t, 250.0, b, 1e-9, "target flow lands on B")

	params.Carrier = channel.SlotB
	a, b, err = SlotFlows(5000, params)
	require.NoError(t, err)
	assert.InDelta(t, 250.0, a, 1e-9)
	assert.InDelta(t, 750.0, b, 1e-9)
}

func TestSlotFlows_ErrorPassthrough(t *testing.T) {
	_, _, err := SlotFlows(30000, Params{TotalFlow: 1000, TargetConcentration: 20000})
	assert.ErrorIs(t, err, ErrOutOfRange)
}
