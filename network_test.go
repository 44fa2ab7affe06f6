package plasmocore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransmissionNetworkEdgeOperations(t *testing.T) {
	h := fourHandles()
	n := NewTransmissionNetwork(h)

	n.AddEdge(h[0], h[1])
	assert.True(t, n.HasEdge(h[0], h[1]))
	assert.ElementsMatch(t, []InfectionHandle{h[1]}, n.Children(h[0]))
	assert.ElementsMatch(t, []InfectionHandle{h[0]}, n.Parents(h[1]))

	assert.True(t, n.WouldCreateCycle(h[1], h[0]), "h1 -> h0 would close a 2-cycle")

	n.ReverseEdge(h[0], h[1])
	assert.False(t, n.HasEdge(h[0], h[1]))
	assert.True(t, n.HasEdge(h[1], h[0]))

	n.RemoveEdge(h[1], h[0])
	assert.False(t, n.HasEdge(h[1], h[0]))
}

func TestTransmissionNetworkSwapEdge(t *testing.T) {
	h := fourHandles()
	n := NewTransmissionNetwork(h)
	n.AddEdge(h[0], h[1])
	n.AddEdge(h[2], h[3])

	n.SwapEdge(h[0], h[1], h[2], h[3])
	assert.True(t, n.HasEdge(h[0], h[3]))
	assert.True(t, n.HasEdge(h[2], h[1]))
	assert.False(t, n.HasEdge(h[0], h[1]))
	assert.False(t, n.HasEdge(h[2], h[3]))
}

func TestTransmissionNetworkSnapshotRoundTrip(t *testing.T) {
	h := fourHandles()
	n := NewTransmissionNetwork(h)
	n.AddEdge(h[0], h[1])

	id := StateID(1)
	n.SaveState(id)
	n.AddEdge(h[1], h[2])
	require.True(t, n.HasEdge(h[1], h[2]))

	n.RestoreState(id)
	assert.False(t, n.HasEdge(h[1], h[2]))
	assert.True(t, n.HasEdge(h[0], h[1]))
}

func TestAddEdgeSamplerAddsAnEdge(t *testing.T) {
	h := fourHandles()
	n := NewTransmissionNetwork(h)
	states := NewStateIDSource()
	rng := NewRNG(1)

	k := NewAddEdgeSampler("add_edge", n, h, constantPosterior(0), states)
	for i := 0; i < 50 && k.Acceptances() == 0; i++ {
		k.Update(rng)
	}
	assert.Greater(t, k.Acceptances(), 0)

	total := 0
	for _, a := range h {
		total += len(n.Children(a))
	}
	assert.Greater(t, total, 0)
}

func TestRemoveEdgeSamplerRemovesAnEdge(t *testing.T) {
	h := fourHandles()
	n := NewTransmissionNetwork(h)
	n.AddEdge(h[0], h[1])
	states := NewStateIDSource()
	rng := NewRNG(2)

	k := NewRemoveEdgeSampler("remove_edge", n, h, constantPosterior(0), states)
	k.Update(rng)

	assert.Equal(t, 1, k.Acceptances())
	assert.False(t, n.HasEdge(h[0], h[1]))
}

func TestRemoveEdgeSamplerNoOpWhenNetworkEmpty(t *testing.T) {
	h := fourHandles()
	n := NewTransmissionNetwork(h)
	states := NewStateIDSource()
	rng := NewRNG(3)

	k := NewRemoveEdgeSampler("remove_edge", n, h, constantPosterior(0), states)
	k.Update(rng)

	assert.Equal(t, 0, k.Acceptances())
	assert.Equal(t, 1, k.Rejections())
}

func TestReverseEdgeSamplerFlipsDirection(t *testing.T) {
	h := fourHandles()
	n := NewTransmissionNetwork(h)
	n.AddEdge(h[0], h[1])
	states := NewStateIDSource()
	rng := NewRNG(4)

	k := NewReverseEdgeSampler("reverse_edge", n, h, constantPosterior(0), states)
	k.Update(rng)

	assert.Equal(t, 1, k.Acceptances())
	assert.True(t, n.HasEdge(h[1], h[0]))
	assert.False(t, n.HasEdge(h[0], h[1]))
}

func TestReverseEdgeSamplerRejectsCycleClosure(t *testing.T) {
	h := fourHandles()
	n := NewTransmissionNetwork(h)
	// h0 -> h1 -> h2, plus h0 -> h2 directly. Reversing h0->h1 into h1->h0
	// doesn't close a cycle here, but reversing h1->h2 into h2->h1 would,
	// since h0 already reaches h1 via h0->h2->h1 once h2->h1 exists... to
	// force an actual cycle, build a simple triangle: h0->h1, h1->h2, h2->h0
	// is already cyclic, so instead check h0->h1 reversal is rejected when
	// h1 can already reach h0 some other way.
	n.AddEdge(h[0], h[1])
	n.AddEdge(h[1], h[2])
	n.AddEdge(h[2], h[0])
	states := NewStateIDSource()
	rng := NewRNG(5)

	k := NewReverseEdgeSampler("reverse_edge", n, h, constantPosterior(0), states)
	for i := 0; i < 10; i++ {
		k.Update(rng)
	}
	// Every reversal in this 3-cycle closes a (different) cycle, so every
	// attempt must be rejected locally; the original edges must survive
	// untouched.
	assert.Equal(t, 0, k.Acceptances())
	assert.True(t, n.HasEdge(h[0], h[1]))
	assert.True(t, n.HasEdge(h[1], h[2]))
	assert.True(t, n.HasEdge(h[2], h[0]))
}

func TestSwapEdgeSamplerRewiresTwoEdges(t *testing.T) {
	h := fourHandles()
	n := NewTransmissionNetwork(h)
	n.AddEdge(h[0], h[1])
	n.AddEdge(h[2], h[3])
	states := NewStateIDSource()
	rng := NewRNG(6)

	k := NewSwapEdgeSampler("swap_edge", n, h, constantPosterior(0), states)
	for i := 0; i < 20 && k.Acceptances() == 0; i++ {
		k.Update(rng)
	}

	assert.Equal(t, 1, k.Acceptances())
	assert.True(t, n.HasEdge(h[0], h[3]))
	assert.True(t, n.HasEdge(h[2], h[1]))
}
