package plasmocore

import "math"

// StateIDSource hands out monotonically increasing StateIDs shared by every
// kernel in one chain, so a kernel's save_state/restore_state/accept_state
// call always carries an id no other in-flight proposal could also be
// using.
type StateIDSource struct{ next StateID }

// NewStateIDSource creates a fresh counter starting at 1 (0 is reserved as
// the zero value of an unset StateID).
func NewStateIDSource() *StateIDSource { return &StateIDSource{} }

// Next returns the next unused StateID.
func (s *StateIDSource) Next() StateID {
	s.next++
	return s.next
}

// LogPosterior is what a kernel reads to score a proposal: the root of the
// computation graph, or any sub-Accumulator a test wants to target directly.
type LogPosterior interface {
	Value() float64
}

// Kernel is a single Metropolis-Hastings proposal mechanism operating on one
// target parameter. Every kernel follows the same save/propose/score/
// accept-or-restore update cycle; what differs between kernels is how a
// proposal is sampled and what Hastings adjustment its asymmetry needs.
type Kernel interface {
	Label() string
	Update(rng *RNG)
	Adapt(step int)
	Acceptances() int
	Rejections() int
	AcceptanceRate() float64
}

// kernelStats is embedded by every concrete kernel for the shared
// acceptances/rejections bookkeeping every kernel reports.
type kernelStats struct {
	label       string
	acceptances int
	rejections  int
}

func (k *kernelStats) Label() string { return k.label }
func (k *kernelStats) Acceptances() int { return k.acceptances }
func (k *kernelStats) Rejections() int  { return k.rejections }
func (k *kernelStats) AcceptanceRate() float64 {
	total := k.acceptances + k.rejections
	if total == 0 {
		return 0
	}
	return float64(k.acceptances) / float64(total)
}

// metropolisHastingsAccept runs the shared accept/reject decision given the current and proposed log-posterior values and a
// (possibly zero) log-MH adjustment, and commits or restores accordingly.
func metropolisHastingsAccept(rng *RNG, target LogPosterior, curLlik, logAdjustment float64, accept, restore func()) bool {
	accRatio := target.Value() - curLlik + logAdjustment
	u := rng.Uniform()
	if u <= 0 {
		u = 1e-300 // avoid log(0); a literal zero draw is vanishingly rare
	}
	if math.Log(u) <= accRatio {
		accept()
		return true
	}
	restore()
	return false
}

// ContinuousRandomWalk proposes cur + Normal()*sigma on an unconstrained
// float64 parameter. Symmetric, so the MH adjustment is
// always 0. sigma self-adapts toward targetRate using a Robbins-Monro step
// of size 1/n^alpha, clamped to [sigmaMin, sigmaMax].
type ContinuousRandomWalk struct {
	kernelStats
	target     *Parameter[float64]
	posterior  LogPosterior
	states     *StateIDSource
	sigma      float64
	sigmaMin   float64
	sigmaMax   float64
	targetRate float64
	alpha      float64
	n          int
}

// NewContinuousRandomWalk constructs a kernel for target, reading posterior
// to score proposals.
func NewContinuousRandomWalk(label string, target *Parameter[float64], posterior LogPosterior, states *StateIDSource, sigma0, sigmaMin, sigmaMax, targetRate, alpha float64) *ContinuousRandomWalk {
	return &ContinuousRandomWalk{
		kernelStats: kernelStats{label: label},
		target:      target,
		posterior:   posterior,
		states:      states,
		sigma:       sigma0,
		sigmaMin:    sigmaMin,
		sigmaMax:    sigmaMax,
		targetRate:  targetRate,
		alpha:       alpha,
	}
}

func (k *ContinuousRandomWalk) Update(rng *RNG) {
	id := k.states.Next()
	curVal := k.target.Value()
	curLlik := k.posterior.Value()

	k.target.SaveState(id)
	prop := curVal + rng.Normal()*k.sigma
	k.target.SetValue(prop)

	accepted := metropolisHastingsAccept(rng, k.posterior, curLlik, 0,
		func() { k.target.AcceptState() },
		func() { k.target.RestoreState(id) },
	)
	if accepted {
		k.acceptances++
	} else {
		k.rejections++
	}
}

// Adapt nudges sigma toward the acceptance rate producing targetRate,
// clamping to [sigmaMin, sigmaMax] rather than letting a runaway adaptation
// drift sigma to NaN or an unusable extreme.
func (k *ContinuousRandomWalk) Adapt(step int) {
	k.n++
	rate := k.AcceptanceRate()
	step_ := 1.0 / math.Pow(float64(k.n), k.alpha)
	k.sigma += (rate - k.targetRate) * step_
	if math.IsNaN(k.sigma) || k.sigma < k.sigmaMin {
		k.sigma = k.sigmaMin
	}
	if k.sigma > k.sigmaMax {
		k.sigma = k.sigmaMax
	}
}

var _ Kernel = (*ContinuousRandomWalk)(nil)

// BoundedContinuousRandomWalk proposes on the logit-transformed scale of a
// parameter constrained to (lo, hi), then back-transforms.
// The MH adjustment is the log-Jacobian of that transform.
type BoundedContinuousRandomWalk struct {
	kernelStats
	target     *Parameter[float64]
	posterior  LogPosterior
	states     *StateIDSource
	lo, hi     float64
	sigma      float64
	sigmaMin   float64
	sigmaMax   float64
	targetRate float64
	alpha      float64
	n          int
}

// NewBoundedContinuousRandomWalk constructs a kernel bounding proposals to
// (lo, hi).
func NewBoundedContinuousRandomWalk(label string, target *Parameter[float64], posterior LogPosterior, states *StateIDSource, lo, hi, sigma0, sigmaMin, sigmaMax, targetRate, alpha float64) *BoundedContinuousRandomWalk {
	return &BoundedContinuousRandomWalk{
		kernelStats: kernelStats{label: label},
		target:      target,
		posterior:   posterior,
		states:      states,
		lo:          lo,
		hi:          hi,
		sigma:       sigma0,
		sigmaMin:    sigmaMin,
		sigmaMax:    sigmaMax,
		targetRate:  targetRate,
		alpha:       alpha,
	}
}

func logit(p float64) float64    { return math.Log(p / (1 - p)) }
func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func (k *BoundedContinuousRandomWalk) Update(rng *RNG) {
	id := k.states.Next()
	curVal := k.target.Value()
	curLlik := k.posterior.Value()

	curUnit := (curVal - k.lo) / (k.hi - k.lo)
	x := logit(curUnit)
	xProp := x + rng.Normal()*k.sigma
	propUnit := sigmoid(xProp)
	prop := k.lo + (k.hi-k.lo)*propUnit

	adjustment := math.Log(prop-k.lo) + math.Log(k.hi-prop) - math.Log(curVal-k.lo) - math.Log(k.hi-curVal)

	k.target.SaveState(id)
	k.target.SetValue(prop)

	accepted := metropolisHastingsAccept(rng, k.posterior, curLlik, adjustment,
		func() { k.target.AcceptState() },
		func() { k.target.RestoreState(id) },
	)
	if accepted {
		k.acceptances++
	} else {
		k.rejections++
	}
}

func (k *BoundedContinuousRandomWalk) Adapt(step int) {
	k.n++
	rate := k.AcceptanceRate()
	step_ := 1.0 / math.Pow(float64(k.n), k.alpha)
	k.sigma += (rate - k.targetRate) * step_
	if math.IsNaN(k.sigma) || k.sigma < k.sigmaMin {
		k.sigma = k.sigmaMin
	}
	if k.sigma > k.sigmaMax {
		k.sigma = k.sigmaMax
	}
}

var _ Kernel = (*BoundedContinuousRandomWalk)(nil)
