package plasmocore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSimplexAcceptsValidVector(t *testing.T) {
	s := NewSimplex("freq.A", []float64{0.25, 0.25, 0.5}, 1e-6, 1e-9)
	assert.Equal(t, []float64{0.25, 0.25, 0.5}, s.Value())
}

func TestNewSimplexPanicsOnBadSum(t *testing.T) {
	assert.Panics(t, func() {
		NewSimplex("freq.A", []float64{0.1, 0.1, 0.1}, 1e-6, 1e-9)
	})
}

func TestNewSimplexPanicsBelowEpsLow(t *testing.T) {
	assert.Panics(t, func() {
		NewSimplex("freq.A", []float64{-0.1, 1.1}, 1e-6, 1e-9)
	})
}

func TestSimplexSetValueEnforcesInvariant(t *testing.T) {
	s := NewSimplex("freq.A", []float64{0.5, 0.5}, 1e-6, 1e-9)
	s.SaveState(1)
	assert.Panics(t, func() { s.SetValue([]float64{0.9, 0.9}) })
	s.RestoreState(1)
	assert.Equal(t, []float64{0.5, 0.5}, s.Value())
}

func TestSimplexSetValueClonesInput(t *testing.T) {
	s := NewSimplex("freq.A", []float64{0.5, 0.5}, 1e-6, 1e-9)
	s.SaveState(1)
	input := []float64{0.3, 0.7}
	s.SetValue(input)
	s.AcceptState()
	input[0] = 999
	require.Equal(t, 0.3, s.Value()[0], "Simplex.SetValue must copy its input rather than alias the caller's slice")
}
