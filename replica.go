package plasmocore

import (
	"context"
	"math"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ReplicaExchange drives N chains at distinct inverse temperatures, running
// each chain's own steps in parallel and periodically proposing swaps
// between adjacent temperatures. The permutation mapping temperature rank to
// chain is the only mutable state this driver owns; a swap mutates that
// permutation (and the two affected chains' InverseTemperature fields), it
// never swaps the chains' underlying parameter graphs.
type ReplicaExchange struct {
	chains []*Chain // chains[rank] is the chain currently holding temperature rank rank's beta
	log    zerolog.Logger

	swapAcceptances int
	swapRejections  int
	parity          int // alternates 0/1 each SwapOnce call
}

// NewReplicaExchange builds a driver over chains already constructed with
// the desired inverse-temperature schedule (chains[0] hottest,
// chains[len-1] cold at beta=1).
func NewReplicaExchange(chains []*Chain, logger zerolog.Logger) *ReplicaExchange {
	return &ReplicaExchange{chains: chains, log: logger}
}

// StepAll runs one Step on every chain concurrently, returning once every
// chain's worker has finished — the only suspension point in a replica
// exchange run (the swap step that follows is not concurrent).
func (r *ReplicaExchange) StepAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range r.chains {
		c := c
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			c.Step()
			return nil
		})
	}
	return g.Wait()
}

// SwapOnce attempts a swap between every adjacent pair (i, i+1) of a single
// parity — alternating even/odd on successive calls, per the classic
// non-reversible sweep schedule — computing r = (beta_{i+1}-beta_i) *
// (V_{i+1}-V_i) with V = -log-likelihood, and swapping temperature
// assignments (never chain state) iff ln(u) < r.
func (r *ReplicaExchange) SwapOnce(rng *RNG) {
	start := r.parity
	r.parity = 1 - r.parity
	for i := start; i+1 < len(r.chains); i += 2 {
		lo, hi := r.chains[i], r.chains[i+1]
		vLo := -lo.LogLikelihood()
		vHi := -hi.LogLikelihood()
		betaLo := lo.Target.InverseTemperature
		betaHi := hi.Target.InverseTemperature

		logRatio := (betaHi - betaLo) * (vHi - vLo)
		u := rng.Uniform()
		accept := u > 0 && math.Log(u) < logRatio
		if accept {
			lo.Target.InverseTemperature, hi.Target.InverseTemperature = betaHi, betaLo
			r.chains[i], r.chains[i+1] = hi, lo
			r.swapAcceptances++
		} else {
			r.swapRejections++
		}
		r.log.Debug().
			Int("rank_lo", i).
			Int("rank_hi", i+1).
			Float64("log_ratio", logRatio).
			Bool("accepted", accept).
			Msg("replica exchange swap attempt")
	}
}

// SwapAcceptanceRate reports the fraction of attempted adjacent swaps
// accepted so far, across the whole run.
func (r *ReplicaExchange) SwapAcceptanceRate() float64 {
	total := r.swapAcceptances + r.swapRejections
	if total == 0 {
		return 0
	}
	return float64(r.swapAcceptances) / float64(total)
}

// Run advances every chain for steps iterations, attempting a swap sweep
// every swapInterval steps, using driverRNG for the swap accept/reject draws
// (a stream distinct from any chain's own RNG, since the swap step runs
// outside the parallel region and must not race a chain's proposals).
func (r *ReplicaExchange) Run(ctx context.Context, steps, swapInterval int, driverRNG *RNG) error {
	for step := 1; step <= steps; step++ {
		if err := r.StepAll(ctx); err != nil {
			return err
		}
		if swapInterval > 0 && step%swapInterval == 0 {
			r.SwapOnce(driverRNG)
		}
	}
	return nil
}

// ColdChain returns the chain currently assigned beta=1, the one whose trace
// is the actual posterior sample of interest.
func (r *ReplicaExchange) ColdChain() *Chain {
	return r.chains[len(r.chains)-1]
}

// LinearInverseTemperatures builds n inverse temperatures spaced linearly
// from gradient (hottest, index 0) to 1 (coldest, index n-1).
func LinearInverseTemperatures(n int, gradient float64) []float64 {
	if n == 1 {
		return []float64{1}
	}
	out := make([]float64, n)
	step := (1 - gradient) / float64(n-1)
	for i := 0; i < n; i++ {
		out[i] = gradient + step*float64(i)
	}
	out[n-1] = 1
	return out
}
