package signal

import (
	"math"
	"testing"

	"github.com/arloliu/bidsphysio/errs"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	samples := []float64{1, 2, math.NaN(), 4}
	s, err := New("cardiac", 50, -0.5, samples, WithUnits("mV"))
	require.NoError(t, err)

	require.Equal(t, "cardiac", s.Name())
	require.Equal(t, 50.0, s.SamplingRate())
	require.Equal(t, -0.5, s.StartTime())
	require.Equal(t, "mV", s.Units())
	require.Equal(t, 4, s.Len())
	require.InDelta(t, 0.02, s.Period(), 1e-12)
	require.InDelta(t, 0.08, s.Duration(), 1e-12)
	require.InDelta(t, -0.46, s.TimeOf(2), 1e-12)
	require.True(t, math.IsNaN(s.At(2)))

	// construction copies the input
	samples[0] = 100
	require.Equal(t, 1.0, s.At(0))

	// accessor returns a copy
	out := s.Samples()
	out[1] = 200
	require.Equal(t, 2.0, s.At(1))
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		sigName string
		rate    float64
		start   float64
		samples []float64
	}{
		{"empty name", "", 1, 0, []float64{1}},
		{"zero rate", "x", 0, 0, []float64{1}},
		{"negative rate", "x", -5, 0, []float64{1}},
		{"nan rate", "x", math.NaN(), 0, []float64{1}},
		{"inf rate", "x", math.Inf(1), 0, []float64{1}},
		{"nan start", "x", 1, math.NaN(), []float64{1}},
		{"no samples", "x", 1, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.sigName, tt.rate, tt.start, tt.samples)
			require.ErrorIs(t, err, errs.ErrInvalidSignal)
		})
	}
}

func TestWithStartTime(t *testing.T) {
	s, err := New("respiratory", 25, 0, []float64{1, 2})
	require.NoError(t, err)

	shifted := s.WithStartTime(-1.25)
	require.Equal(t, -1.25, shifted.StartTime())
	require.Equal(t, 0.0, s.StartTime())
	require.Equal(t, s.Samples(), shifted.Samples())
	require.Equal(t, "respiratory", shifted.Name())
}

func TestNameClassifier(t *testing.T) {
	require.Equal(t, CategoryCardiac, NameClassifier.Category("cardiac"))
	require.Equal(t, CategoryRespiratory, NameClassifier.Category("respiratory"))
	require.Equal(t, CategoryTrigger, NameClassifier.Category("trigger"))
	require.Equal(t, CategoryOther, NameClassifier.Category("ecg1"))
}
