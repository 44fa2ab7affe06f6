package plasmocore

// TemperedTarget is the log-posterior a chain's kernels actually read under
// replica exchange: the data log-likelihood raised to the chain's inverse
// temperature, plus the untempered prior and structural log-density terms.
// A swap in ReplicaExchange only ever reassigns InverseTemperature between
// two chains' targets — the Likelihood and Prior graphs themselves, and
// every parameter they touch, stay put, so each chain's loggers keep
// observing that chain's own trace across a swap.
type TemperedTarget struct {
	Likelihood         LogPosterior
	Prior              LogPosterior
	InverseTemperature float64
}

// NewTemperedTarget constructs a tempered target at the given inverse
// temperature (1 is untempered / cold).
func NewTemperedTarget(likelihood, prior LogPosterior, beta float64) *TemperedTarget {
	return &TemperedTarget{Likelihood: likelihood, Prior: prior, InverseTemperature: beta}
}

// Value returns beta*log-likelihood + log-prior, what every kernel in this
// chain scores proposals against.
func (t *TemperedTarget) Value() float64 {
	return t.InverseTemperature*t.Likelihood.Value() + t.Prior.Value()
}

var _ LogPosterior = (*TemperedTarget)(nil)

// Chain bundles everything one replica-exchange replica owns independently:
// its tempered target, the scheduler cycling its kernels, and its own RNG
// stream. Chains share only the immutable input data baked into Likelihood
// and Prior at construction; nothing here is touched by any other chain.
type Chain struct {
	ID        int
	Target    *TemperedTarget
	Scheduler *RandomizedScheduler
	RNG       *RNG
	StepCount int
}

// NewChain constructs a chain. id labels the chain in logging and reporting,
// and ChainSet keys the chain's Model and loggers by it.
func NewChain(id int, target *TemperedTarget, scheduler *RandomizedScheduler, rng *RNG) *Chain {
	return &Chain{ID: id, Target: target, Scheduler: scheduler, RNG: rng}
}

// Step runs one scheduler-selected kernel update, and that kernel's own
// adaptation if its window has come due, advancing the chain by one step.
// Returns the label of the kernel that ran, or "" if none was due.
func (c *Chain) Step() string {
	label := c.Scheduler.Step(c.RNG)
	c.StepCount++
	return label
}

// LogLikelihood reports the chain's untempered data log-likelihood, the
// quantity replica exchange compares across adjacent chains when deciding
// whether to swap their temperatures.
func (c *Chain) LogLikelihood() float64 { return c.Target.Likelihood.Value() }
