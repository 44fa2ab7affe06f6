package plasmocore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fourHandles() []InfectionHandle {
	return []InfectionHandle{newInfectionHandle(), newInfectionHandle(), newInfectionHandle(), newInfectionHandle()}
}

func TestOrderingSwapUpdatesPositions(t *testing.T) {
	h := fourHandles()
	o := NewOrdering("ordering", h)

	o.Swap(0, 2)
	assert.Equal(t, h[2], o.At(0))
	assert.Equal(t, h[0], o.At(2))
	assert.Equal(t, 0, o.PositionOf(h[2]))
	assert.Equal(t, 2, o.PositionOf(h[0]))
	assert.True(t, o.Precedes(h[2], h[1]))
}

func TestOrderDerivedParentSetTracksPredecessors(t *testing.T) {
	h := fourHandles()
	o := NewOrdering("ordering", h)

	// h[3] starts last, so its parent set is everyone preceding it: h0,h1,h2.
	ps := NewOrderDerivedParentSet(o, h[3], nil)
	require.ElementsMatch(t, []InfectionHandle{h[0], h[1], h[2]}, ps.Members())

	// Move h[3] to the front: swap(0,3) crosses every other handle, so h[3]
	// now precedes all of them and its parent set empties out.
	o.Swap(0, 3)
	assert.Equal(t, 0, ps.Size())
}

func TestOrderDerivedParentSetRespectsDisallowed(t *testing.T) {
	h := fourHandles()
	o := NewOrdering("ordering", h)
	disallowed := map[InfectionHandle]struct{}{h[1]: {}}

	ps := NewOrderDerivedParentSet(o, h[3], disallowed)
	assert.False(t, ps.Contains(h[1]))
	assert.True(t, ps.Contains(h[0]))
	assert.True(t, ps.Contains(h[2]))
	assert.Equal(t, 2, ps.Size())
}

func TestOrderDerivedParentSetSnapshotRoundTrip(t *testing.T) {
	h := fourHandles()
	o := NewOrdering("ordering", h)
	ps := NewOrderDerivedParentSet(o, h[3], nil)
	before := ps.Members()

	id := StateID(1)
	o.SaveState(id)
	ps.SaveState(id)
	o.Swap(0, 3)
	assert.NotEqual(t, len(before), ps.Size())

	o.RestoreState(id)
	ps.RestoreState(id)
	require.ElementsMatch(t, before, ps.Members())
}
