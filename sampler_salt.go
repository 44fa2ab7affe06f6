package plasmocore

import "math"

// SALTSampler is the simplex-preserving kernel for AlleleFrequencies: one
// Update() sweeps every component of the simplex, in a random order,
// proposing a logit-scale Gaussian step on that component while
// renormalising the rest proportionally so the simplex invariant always
// holds after each individual component's accept/reject. A component
// proposal that would fall below EpsLow is rejected without ever touching
// the posterior.
type SALTSampler struct {
	kernelStats
	target     *Simplex
	posterior  LogPosterior
	states     *StateIDSource
	sigma      float64
	sigmaMin   float64
	sigmaMax   float64
	targetRate float64
	alpha      float64
	n          int
}

// NewSALTSampler constructs a kernel over target.
func NewSALTSampler(label string, target *Simplex, posterior LogPosterior, states *StateIDSource, sigma0, sigmaMin, sigmaMax, targetRate, alpha float64) *SALTSampler {
	return &SALTSampler{
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

// Update sweeps every component once, in a random permutation, each as its
// own full save/propose/accept-or-restore cycle against the shared
// posterior.
func (k *SALTSampler) Update(rng *RNG) {
	n := len(k.target.Value())
	order := rng.Perm(n)
	for _, i := range order {
		k.updateComponent(rng, i)
	}
}

func (k *SALTSampler) updateComponent(rng *RNG, i int) {
	n := len(k.target.Value())
	epsLow := k.target.EpsLow
	hi := 1 - epsLow*float64(n-1)

	cur := append([]float64(nil), k.target.Value()...)
	curComponent := cur[i]

	curUnit := (curComponent - epsLow) / (hi - epsLow)
	x := logit(curUnit)
	xProp := x + rng.Normal()*k.sigma
	propUnit := sigmoid(xProp)
	propComponent := epsLow + (hi-epsLow)*propUnit

	if propComponent < epsLow || propComponent > hi {
		k.rejections++
		return
	}

	restMassCur := 1 - curComponent
	restMassProp := 1 - propComponent
	scale := restMassProp / restMassCur

	prop := make([]float64, n)
	prop[i] = propComponent
	for j := range cur {
		if j == i {
			continue
		}
		prop[j] = cur[j] * scale
		if prop[j] < epsLow {
			// The rescale pushed another component below its floor: reject
			// without ever evaluating the posterior.
			k.rejections++
			return
		}
	}

	adjustment := math.Log(propComponent-epsLow) + math.Log(hi-propComponent) -
		math.Log(curComponent-epsLow) - math.Log(hi-curComponent) +
		float64(n-1)*math.Log(scale)

	id := k.states.Next()
	curLlik := k.posterior.Value()
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

func (k *SALTSampler) Adapt(step int) {
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

var _ Kernel = (*SALTSampler)(nil)
