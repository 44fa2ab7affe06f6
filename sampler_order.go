package plasmocore

import "math"

func orderPair(a, b int) (int, int) {
	if a < b {
		return a, b
	}
	return b, a
}

// OrderSampler picks a pivot position and an offset in {±1,...,±maxDist},
// then proposes the swap of those two positions via Ordering. Symmetric, so the MH adjustment is 0.
type OrderSampler struct {
	kernelStats
	ordering  *Ordering
	posterior LogPosterior
	states    *StateIDSource
	maxDist   int
}

// NewOrderSampler constructs a kernel over ordering.
func NewOrderSampler(label string, ordering *Ordering, posterior LogPosterior, states *StateIDSource, maxDist int) *OrderSampler {
	return &OrderSampler{kernelStats: kernelStats{label: label}, ordering: ordering, posterior: posterior, states: states, maxDist: maxDist}
}

func (k *OrderSampler) Update(rng *RNG) {
	n := k.ordering.Len()
	if n < 2 {
		return
	}
	pivot := rng.Intn(n)
	dist := k.maxDist
	if dist > n-1 {
		dist = n - 1
	}
	offset := rng.Intn(dist) + 1
	if rng.Uniform() < 0.5 {
		offset = -offset
	}
	q := pivot + offset
	if q < 0 || q >= n {
		k.rejections++
		return
	}
	lo, hi := orderPair(pivot, q)

	id := k.states.Next()
	curLlik := k.posterior.Value()
	k.ordering.SaveState(id)
	k.ordering.Swap(lo, hi)

	accepted := metropolisHastingsAccept(rng, k.posterior, curLlik, 0,
		func() { k.ordering.AcceptState() },
		func() { k.ordering.RestoreState(id) },
	)
	if accepted {
		k.acceptances++
	} else {
		k.rejections++
	}
}

func (k *OrderSampler) Adapt(step int) {}

var _ Kernel = (*OrderSampler)(nil)

// neighborhoodFunc reports the candidate positions a Zanella-style kernel
// considers swapping a pivot with, given the current ordering length.
type neighborhoodFunc func(pivot, n int) []int

// windowNeighborhood restricts candidates to a ±maxDist window around pivot:
// ZanellaNeighborOrderSampler's locally-informed neighborhood.
func windowNeighborhood(maxDist int) neighborhoodFunc {
	return func(pivot, n int) []int {
		var out []int
		for d := 1; d <= maxDist; d++ {
			if pivot-d >= 0 {
				out = append(out, pivot-d)
			}
			if pivot+d < n {
				out = append(out, pivot+d)
			}
		}
		return out
	}
}

// fullNeighborhood treats every other position as a candidate:
// ZanellaOrderSampler's global-informed neighborhood.
func fullNeighborhood(pivot, n int) []int {
	out := make([]int, 0, n-1)
	for q := 0; q < n; q++ {
		if q != pivot {
			out = append(out, q)
		}
	}
	return out
}

// zanellaOrderKernel is the shared locally-informed proposal machinery
// behind ZanellaNeighborOrderSampler and ZanellaOrderSampler:
// evaluate ½·ln p(state after each candidate swap), sample the next state
// proportional to the softmax of those weights, then correct for the
// asymmetric proposal via the reverse neighborhood's own log-sum-exp.
type zanellaOrderKernel struct {
	kernelStats
	ordering     *Ordering
	posterior    LogPosterior
	states       *StateIDSource
	neighborhood neighborhoodFunc
}

func (k *zanellaOrderKernel) update(rng *RNG) {
	n := k.ordering.Len()
	if n < 2 {
		return
	}
	pivot := rng.Intn(n)
	candidates := k.neighborhood(pivot, n)
	if len(candidates) == 0 {
		k.rejections++
		return
	}

	id := k.states.Next()
	curLlik := k.posterior.Value()
	k.ordering.SaveState(id)

	forwardLogWeights := make([]float64, len(candidates))
	for i, q := range candidates {
		lo, hi := orderPair(pivot, q)
		k.ordering.Swap(lo, hi)
		forwardLogWeights[i] = 0.5 * k.posterior.Value()
		k.ordering.Swap(lo, hi) // undo the trial: swap is its own inverse
	}
	forwardLogZ := logSumExp(forwardLogWeights)
	chosen := sampleCategoricalLog(rng, forwardLogWeights, forwardLogZ)
	q := candidates[chosen]
	lo, hi := orderPair(pivot, q)
	k.ordering.Swap(lo, hi)

	reverseCandidates := k.neighborhood(q, n)
	reverseLogWeights := make([]float64, len(reverseCandidates))
	for i, r := range reverseCandidates {
		rlo, rhi := orderPair(q, r)
		k.ordering.Swap(rlo, rhi)
		reverseLogWeights[i] = 0.5 * k.posterior.Value()
		k.ordering.Swap(rlo, rhi)
	}
	reverseLogZ := logSumExp(reverseLogWeights)
	propLlik := k.posterior.Value()

	// Zanella's locally-informed correction takes the square root of the
	// target ratio (hence the 0.5 coefficients) and trades the forward and
	// reverse neighborhood normalizers the opposite way a plain
	// Metropolis-Hastings proposal-ratio adjustment would: the forward sum
	// favors the proposal, the reverse sum penalizes it.
	logRatio := 0.5*propLlik + forwardLogZ - 0.5*curLlik - reverseLogZ
	u := rng.Uniform()
	if u <= 0 {
		u = 1e-300
	}
	if math.Log(u) <= logRatio {
		k.ordering.AcceptState()
		k.acceptances++
	} else {
		k.ordering.RestoreState(id)
		k.rejections++
	}
}

// sampleCategoricalLog draws an index i with probability proportional to
// exp(logWeights[i] - logZ), where logZ = logSumExp(logWeights).
func sampleCategoricalLog(rng *RNG, logWeights []float64, logZ float64) int {
	u := rng.Uniform()
	cum := 0.0
	for i, lw := range logWeights {
		cum += math.Exp(lw - logZ)
		if u <= cum {
			return i
		}
	}
	return len(logWeights) - 1
}

// ZanellaNeighborOrderSampler is the locally-informed order kernel restricted
// to a ±maxDist window around the pivot.
type ZanellaNeighborOrderSampler struct{ zanellaOrderKernel }

// NewZanellaNeighborOrderSampler constructs the windowed variant.
func NewZanellaNeighborOrderSampler(label string, ordering *Ordering, posterior LogPosterior, states *StateIDSource, maxDist int) *ZanellaNeighborOrderSampler {
	return &ZanellaNeighborOrderSampler{zanellaOrderKernel{
		kernelStats:  kernelStats{label: label},
		ordering:     ordering,
		posterior:    posterior,
		states:       states,
		neighborhood: windowNeighborhood(maxDist),
	}}
}

func (k *ZanellaNeighborOrderSampler) Update(rng *RNG) { k.update(rng) }
func (k *ZanellaNeighborOrderSampler) Adapt(step int)  {}

var _ Kernel = (*ZanellaNeighborOrderSampler)(nil)

// ZanellaOrderSampler is the locally-informed order kernel considering every
// other position in the ordering as a candidate.
type ZanellaOrderSampler struct{ zanellaOrderKernel }

// NewZanellaOrderSampler constructs the global variant.
func NewZanellaOrderSampler(label string, ordering *Ordering, posterior LogPosterior, states *StateIDSource) *ZanellaOrderSampler {
	return &ZanellaOrderSampler{zanellaOrderKernel{
		kernelStats:  kernelStats{label: label},
		ordering:     ordering,
		posterior:    posterior,
		states:       states,
		neighborhood: fullNeighborhood,
	}}
}

func (k *ZanellaOrderSampler) Update(rng *RNG) { k.update(rng) }
func (k *ZanellaOrderSampler) Adapt(step int)  {}

var _ Kernel = (*ZanellaOrderSampler)(nil)
