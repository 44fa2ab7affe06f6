package plasmocore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newParamComputation(p *Parameter[float64]) *Computation[float64] {
	c := NewComputation(p.Label()+".readback", func() float64 { return p.Value() })
	Wire(p, c)
	return c
}

func TestAccumulatorSumsInputs(t *testing.T) {
	a := NewAccumulator("total")
	p1 := NewParameter("x", 2.0)
	p2 := NewParameter("y", 3.0)
	a.AddInput(1, newParamComputation(p1))
	a.AddInput(2, newParamComputation(p2))

	assert.Equal(t, 5.0, a.Value())
}

func TestAccumulatorOnlyRefoldsDirtyInputs(t *testing.T) {
	a := NewAccumulator("total")
	p1 := NewParameter("x", 2.0)
	c1 := newParamComputation(p1)
	a.AddInput(1, c1)
	require.Equal(t, 2.0, a.Value())

	id := StateID(1)
	p1.SaveState(id)
	p1.SetValue(10.0)
	assert.Equal(t, 10.0, a.Value())

	p1.RestoreState(id)
	assert.Equal(t, 2.0, a.Value())
}

func TestAccumulatorSaveRestoreAccept(t *testing.T) {
	a := NewAccumulator("total")
	p1 := NewParameter("x", 2.0)
	a.AddInput(1, newParamComputation(p1))
	require.Equal(t, 2.0, a.Value())

	id := StateID(7)
	a.SaveState(id)
	p1.SaveState(id)
	p1.SetValue(100.0)
	assert.Equal(t, 100.0, a.Value())

	a.RestoreState(id)
	p1.RestoreState(id)
	assert.Equal(t, 2.0, a.Value())

	a.SaveState(id)
	p1.SaveState(id)
	p1.SetValue(50.0)
	assert.Equal(t, 50.0, a.Value())
	a.AcceptState()
	p1.AcceptState()
	assert.Equal(t, 50.0, a.Value())
}

func TestAccumulatorRestoreStateMismatchPanics(t *testing.T) {
	a := NewAccumulator("total")
	a.SaveState(StateID(2))
	assert.Panics(t, func() { a.RestoreState(StateID(1)) })
}

func TestAccumulatorRemoveInputSubtractsContribution(t *testing.T) {
	a := NewAccumulator("total")
	p1 := NewParameter("x", 2.0)
	p2 := NewParameter("y", 3.0)
	a.AddInput(1, newParamComputation(p1))
	a.AddInput(2, newParamComputation(p2))
	require.Equal(t, 5.0, a.Value())

	a.RemoveInput(2)
	assert.Equal(t, 2.0, a.Value())
}
