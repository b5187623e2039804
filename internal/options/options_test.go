package options

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type testTarget struct {
	rate  float64
	label string
	calls []string
}

func withRate(r float64) Option[*testTarget] {
	return New(func(t *testTarget) error {
		if r <= 0 {
			return errors.New("rate must be positive")
		}
		t.rate = r
		t.calls = append(t.calls, "rate")

		return nil
	})
}

func withLabel(l string) Option[*testTarget] {
	return NoError(func(t *testTarget) {
		t.label = l
		t.calls = append(t.calls, "label")
	})
}

func TestApply_InOrder(t *testing.T) {
	target := &testTarget{}

	err := Apply(target, withLabel("cardiac"), withRate(50), nil)

	require.NoError(t, err)
	require.Equal(t, 50.0, target.rate)
	require.Equal(t, "cardiac", target.label)
	require.Equal(t, []string{"label", "rate"}, target.calls)
}

func TestApply_StopsAtError(t *testing.T) {
	target := &testTarget{}

	err := Apply(target, withRate(-1), withLabel("never"))

	require.Error(t, err)
	require.Empty(t, target.label)
	require.Empty(t, target.calls)
}

func TestApply_NoOptions(t *testing.T) {
	require.NoError(t, Apply(&testTarget{}))
}
